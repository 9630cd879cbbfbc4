// Package bus assembles one context's endpoint on the message bus: its
// handler registry, its direct channel to the privileged context, and its
// propagation channel across the window hierarchy.
package bus

import (
	"context"
	"fmt"
	"log/slog"

	comms "github.com/nats-io/nats.go"

	"github.com/quiltmail/contextbus/pkg/blobstore"
	"github.com/quiltmail/contextbus/pkg/buserr"
	"github.com/quiltmail/contextbus/pkg/catalog"
	"github.com/quiltmail/contextbus/pkg/dedup"
	"github.com/quiltmail/contextbus/pkg/direct"
	"github.com/quiltmail/contextbus/pkg/envelope"
	"github.com/quiltmail/contextbus/pkg/propagate"
	"github.com/quiltmail/contextbus/pkg/router"
	"github.com/quiltmail/contextbus/pkg/seal"
	"github.com/quiltmail/contextbus/pkg/vault"
)

const logPrefix = "bus:bus"

// degradedNotice is rendered into the document when no messaging channel
// exists at all.
const degradedNotice = "The mail extension lost its messaging channel. Reload the page to restore full functionality."

// Params configures one context's bus endpoint. Collaborators are injected;
// zero values get working defaults where a default exists.
type Params struct {
	// Privileged marks the privileged background context.
	Privileged bool
	// ContextID identifies a non-privileged context; generated when empty.
	ContextID string

	// Conn is the host messaging connection; nil means no direct channel
	// (a privileged context can still call itself).
	Conn          *comms.Conn
	SubjectPrefix string
	MaxPayload    int
	DedupWindow   int

	// Window and Cipher enable the propagation channel.
	Window propagate.Window
	Cipher seal.Cipher

	Blobs   blobstore.Store
	Catalog *catalog.Catalog
	Mutator DocumentMutator

	// Privileged-context collaborators.
	Auth   AuthFlow
	Chunks ChunkFetcher
	Vault  *vault.Vault
}

// Bus is one context's endpoint.
type Bus struct {
	contextID  string
	privileged bool
	router     *router.Router
	direct     *direct.Channel
	prop       *propagate.Channel
	mutator    DocumentMutator
	vault      *vault.Vault
	auth       AuthFlow
	chunks     ChunkFetcher
	noticed    bool
}

// New builds a Bus and registers the built-in capabilities for its role.
func New(p Params) (*Bus, error) {
	if p.ContextID == "" && !p.Privileged {
		p.ContextID = envelope.NewContextID()
	}
	if p.Mutator == nil {
		p.Mutator = NoOpMutator{}
	}
	if p.Vault == nil {
		p.Vault = vault.New()
	}

	r := router.New(router.Params{
		Ledger:  dedup.NewLedger(p.DedupWindow),
		Blobs:   p.Blobs,
		Catalog: p.Catalog,
	})

	b := &Bus{
		contextID:  p.ContextID,
		privileged: p.Privileged,
		router:     r,
		mutator:    p.Mutator,
		vault:      p.Vault,
		auth:       p.Auth,
		chunks:     p.Chunks,
	}

	if p.Conn != nil || p.Privileged {
		d, err := direct.New(direct.Params{
			Conn:       p.Conn,
			Prefix:     p.SubjectPrefix,
			Router:     r,
			Privileged: p.Privileged,
			ContextID:  p.ContextID,
			MaxPayload: p.MaxPayload,
		})
		if err != nil {
			return nil, fmt.Errorf("%s - direct channel: %w", logPrefix, err)
		}
		b.direct = d
	}

	if p.Window != nil {
		if p.Cipher == nil {
			return nil, fmt.Errorf("%s - a cipher is required with a window", logPrefix)
		}
		pc, err := propagate.New(propagate.Params{Window: p.Window, Cipher: p.Cipher, Router: r})
		if err != nil {
			return nil, fmt.Errorf("%s - propagation channel: %w", logPrefix, err)
		}
		b.prop = pc
	}

	if p.Privileged {
		b.registerPrivileged()
	} else {
		b.registerGeneric()
	}
	return b, nil
}

// ContextID returns this context's id ("" for the privileged context).
func (b *Bus) ContextID() string { return b.contextID }

// Router returns the context's registry for caller extension at startup.
func (b *Bus) Router() *router.Router { return b.router }

// Register adds a handler capability; last writer wins.
func (b *Bus) Register(name string, h router.Handler) {
	b.router.Register(name, h)
}

// Call sends an awaited request to the privileged context.
func (b *Bus) Call(ctx context.Context, name string, payload map[string]any) (map[string]any, error) {
	return b.CallContext(ctx, "", name, payload)
}

// CallContext sends an awaited request to the named context ("" addresses
// the privileged context).
func (b *Bus) CallContext(ctx context.Context, dest, name string, payload map[string]any) (map[string]any, error) {
	if b.direct == nil {
		return nil, b.degrade(name)
	}
	env := envelope.New(name, payload, dest)
	if err := env.EncodeBinary(ctx, b.router.Blobs()); err != nil {
		return nil, buserr.New(buserr.KindPermanent, name, err.Error())
	}
	return b.direct.Call(ctx, env)
}

// Notify sends a fire-and-forget message to the privileged context. It
// resolves once the transport accepts the send; failures are logged, not
// raised.
func (b *Bus) Notify(name string, payload map[string]any) {
	b.NotifyContext("", name, payload)
}

// NotifyContext sends a fire-and-forget message to the named context.
func (b *Bus) NotifyContext(dest, name string, payload map[string]any) {
	if b.direct == nil {
		b.degrade(name)
		return
	}
	env := envelope.New(name, payload, dest)
	if err := env.EncodeBinary(context.Background(), b.router.Blobs()); err != nil {
		slog.Error(fmt.Sprintf("%s - failed to encode binary fields of %s: %v", logPrefix, name, err))
		return
	}
	b.direct.Notify(env)
}

// Broadcast sends a message to every context, over the direct channel and
// the window hierarchy at once when both exist. The two paths race; the
// receivers' dedup ledgers keep dispatch at-most-once per context.
func (b *Bus) Broadcast(name string, payload map[string]any, propagateUp bool) error {
	if b.direct == nil && b.prop == nil {
		return b.degrade(name)
	}
	env := envelope.New(name, payload, envelope.DestBroadcast)
	env.Propagate = propagateUp

	if b.direct != nil {
		b.direct.Notify(env)
	}
	if b.prop != nil {
		if err := b.prop.Send(env); err != nil {
			return err
		}
	}
	return nil
}

// Serve starts both channels' inbound sides. The returned stop function
// unsubscribes the direct channel.
func (b *Bus) Serve(ctx context.Context) (func(), error) {
	stop := func() {}
	if b.direct != nil {
		s, err := b.direct.Serve(ctx)
		if err != nil {
			return nil, err
		}
		stop = s
	}
	if b.prop != nil {
		b.prop.Start(ctx)
	}
	return stop, nil
}

// degrade renders the last-resort notice once and reports a permanent
// failure.
func (b *Bus) degrade(name string) error {
	if !b.noticed {
		b.noticed = true
		b.mutator.ShowNotice(degradedNotice)
	}
	slog.Error(fmt.Sprintf("%s - no messaging channel for %s", logPrefix, name))
	return buserr.New(buserr.KindPermanent, name, "no messaging channel available")
}
