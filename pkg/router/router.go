// Package router maps message names to handler capabilities for one context
// and dispatches incoming envelopes to them. Each context constructs its own
// Router at startup and passes it explicitly to the channels that deliver
// into it; there is no ambient global registry.
package router

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/quiltmail/contextbus/pkg/blobstore"
	"github.com/quiltmail/contextbus/pkg/buserr"
	"github.com/quiltmail/contextbus/pkg/catalog"
	"github.com/quiltmail/contextbus/pkg/dedup"
	"github.com/quiltmail/contextbus/pkg/envelope"
)

const logPrefix = "router:dispatch"

// Responder handles a message and returns a result payload.
type Responder func(ctx context.Context, payload map[string]any) (map[string]any, error)

// Notifier handles a message best-effort, with no response.
type Notifier func(ctx context.Context, payload map[string]any)

// Handler is one registered capability. Exactly one of Respond and Notify is
// set.
type Handler struct {
	Respond Responder
	Notify  Notifier
}

// Responds wraps a Responder as a Handler.
func Responds(f Responder) Handler { return Handler{Respond: f} }

// Notifies wraps a Notifier as a Handler.
func Notifies(f Notifier) Handler { return Handler{Notify: f} }

// Router is a per-context handler registry plus the dispatch path shared by
// all transports delivering into this context.
type Router struct {
	handlers map[string]Handler
	ledger   *dedup.Ledger
	blobs    blobstore.Store
	cat      *catalog.Catalog
}

// Params configures a Router. Zero fields get working defaults.
type Params struct {
	Ledger  *dedup.Ledger
	Blobs   blobstore.Store
	Catalog *catalog.Catalog
}

// New creates a Router.
func New(p Params) *Router {
	if p.Ledger == nil {
		p.Ledger = dedup.NewLedger(0)
	}
	if p.Blobs == nil {
		p.Blobs = blobstore.NewMemory()
	}
	if p.Catalog == nil {
		p.Catalog = catalog.New()
	}
	return &Router{
		handlers: make(map[string]Handler),
		ledger:   p.Ledger,
		blobs:    p.Blobs,
		cat:      p.Catalog,
	}
}

// Register maps a message name to a handler. Re-registering a name replaces
// the prior handler; last writer wins.
func (r *Router) Register(name string, h Handler) {
	r.handlers[name] = h
}

// Handles reports whether a handler is registered for the name.
func (r *Router) Handles(name string) bool {
	_, ok := r.handlers[name]
	return ok
}

// Ledger returns the context's dedup ledger, shared with the channels that
// mark forwarded envelopes as seen.
func (r *Router) Ledger() *dedup.Ledger { return r.ledger }

// Blobs returns the context's blob store.
func (r *Router) Blobs() blobstore.Store { return r.blobs }

// Catalog returns the context's message catalog.
func (r *Router) Catalog() *catalog.Catalog { return r.cat }

// Dispatch delivers an envelope to its handler. It returns the response (nil
// for responseless handlers) and whether the handler actually ran. Duplicate
// ids, unknown names, and protocol-incompatible senders do not run a handler.
//
// The dedup check precedes binary decode so a duplicate delivery never
// attempts a second consume of an already-consumed handle.
func (r *Router) Dispatch(ctx context.Context, env *envelope.Envelope) (*envelope.Response, bool) {
	if env.ID != "" && r.ledger.Seen(env.ID) {
		slog.Debug(fmt.Sprintf("%s - duplicate envelope %s for %s ignored", logPrefix, env.ID, env.Name))
		return nil, false
	}
	h, ok := r.handlers[env.Name]
	if !ok {
		return nil, false
	}
	if !r.cat.Compatible(env.Name, env.Proto) {
		slog.Warn(fmt.Sprintf("%s - sender proto %s incompatible with %s", logPrefix, env.Proto, env.Name))
		return nil, false
	}

	if env.ID != "" {
		r.ledger.Mark(env.ID)
	}
	if err := env.DecodeBinary(ctx, r.blobs); err != nil {
		slog.Error(fmt.Sprintf("%s - binary decode for %s: %v", logPrefix, env.Name, err))
		rec := buserr.ToRecord(buserr.New(buserr.KindPermanent, env.Name, err.Error()))
		return &envelope.Response{Exception: rec}, true
	}

	if h.Notify != nil {
		h.Notify(ctx, env.Payload)
		return nil, true
	}

	result, err := h.Respond(ctx, env.Payload)
	if err != nil {
		return &envelope.Response{Exception: buserr.ToRecord(err)}, true
	}
	resp := &envelope.Response{Result: result}
	if err := resp.EncodeBinary(ctx, r.blobs); err != nil {
		slog.Error(fmt.Sprintf("%s - binary encode for %s: %v", logPrefix, env.Name, err))
		rec := buserr.ToRecord(buserr.New(buserr.KindPermanent, env.Name, err.Error()))
		return &envelope.Response{Exception: rec}, true
	}
	return resp, true
}
