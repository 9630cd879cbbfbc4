package direct

import (
	"context"
	"fmt"
	"log/slog"

	comms "github.com/nats-io/nats.go"

	"github.com/quiltmail/contextbus/pkg/blobstore"
	"github.com/quiltmail/contextbus/pkg/buserr"
	"github.com/quiltmail/contextbus/pkg/envelope"
	"github.com/quiltmail/contextbus/pkg/router"
)

const logPrefix = "direct:channel"

// Channel delivers envelopes between this context and the privileged context
// over COMMS. The underlying primitive supports at most one reply per
// delivery; a zero-length reply body means the receiving end closed without
// responding.
type Channel struct {
	nc         *comms.Conn
	prefix     string
	router     *router.Router
	blobs      blobstore.Store
	privileged bool
	contextID  string
	maxPayload int
}

// Params configures a Channel.
type Params struct {
	// Conn may be nil for a privileged context that only talks to itself.
	Conn   *comms.Conn
	Prefix string
	Router *router.Router
	// Privileged marks the privileged context; calls it addresses to itself
	// (empty destination) bypass the transport.
	Privileged bool
	// ContextID is required for non-privileged contexts; it anchors the
	// context's unicast subject.
	ContextID string
	// MaxPayload is the inline payload policy ceiling in bytes. Zero uses
	// envelope.MaxInlinePayload.
	MaxPayload int
}

// New creates a Channel.
func New(p Params) (*Channel, error) {
	if p.Router == nil {
		return nil, fmt.Errorf("%s - router is required", logPrefix)
	}
	if !p.Privileged && p.ContextID == "" {
		return nil, fmt.Errorf("%s - context id is required for a non-privileged context", logPrefix)
	}
	if p.Prefix == "" {
		p.Prefix = DefaultPrefix
	}
	if p.MaxPayload == 0 {
		p.MaxPayload = envelope.MaxInlinePayload
	}
	return &Channel{
		nc:         p.Conn,
		prefix:     p.Prefix,
		router:     p.Router,
		blobs:      p.Router.Blobs(),
		privileged: p.Privileged,
		contextID:  p.ContextID,
		maxPayload: p.MaxPayload,
	}, nil
}

// Call sends an envelope and suspends until a reply arrives or the transport
// reports it could not deliver. Delivery failures come back classified as
// transient or permanent; handler failures come back reconstructed from the
// response envelope's exception record.
func (c *Channel) Call(ctx context.Context, env *envelope.Envelope) (map[string]any, error) {
	if env.Destination == envelope.DestBroadcast {
		return nil, buserr.New(buserr.KindPermanent, env.Name, "broadcast cannot be awaited")
	}

	// Privileged context calling itself: skip the transport but keep the
	// success/error semantics of the transport path.
	if c.privileged && env.Destination == "" {
		resp, dispatched := c.router.Dispatch(ctx, env)
		if !dispatched {
			return nil, transientErr(env, textNoReceivingEnd)
		}
		if resp == nil {
			return nil, transientErr(env, textPortClosed)
		}
		return c.correlate(ctx, env, resp)
	}

	if c.nc == nil {
		return nil, buserr.New(buserr.KindPermanent, env.Name, "no messaging channel available")
	}
	data, err := envelope.Encode(env)
	if err != nil {
		return nil, classify(err, env)
	}
	if len(data) > c.maxPayload {
		return nil, buserr.New(buserr.KindPermanent, env.Name,
			fmt.Sprintf("payload of %d bytes exceeds the %d byte ceiling; transfer binary fields by blob handle", len(data), c.maxPayload))
	}

	msg, err := c.nc.RequestWithContext(ctx, c.subjectFor(env.Destination), data)
	if err != nil {
		return nil, classify(err, env)
	}
	if len(msg.Data) == 0 {
		return nil, transientErr(env, textPortClosed)
	}

	var resp envelope.Response
	if err := envelope.Decode(msg.Data, &resp); err != nil {
		// Malformed reply shape is a protocol violation, classified rather
		// than surfaced as a decoding error.
		return nil, &buserr.BusError{
			Kind:    buserr.KindProtocol,
			Name:    env.Name,
			Message: fmt.Sprintf("malformed response envelope: %v", err),
			Stack:   env.OriginTrace,
		}
	}
	return c.correlate(ctx, env, &resp)
}

// Notify sends an envelope without awaiting a response. It returns once the
// transport accepts the send; failures are logged and swallowed since no
// caller is waiting.
func (c *Channel) Notify(env *envelope.Envelope) {
	if c.privileged && env.Destination == "" {
		c.router.Dispatch(context.Background(), env)
		return
	}
	if c.nc == nil {
		slog.Warn(fmt.Sprintf("%s - dropping %s: no messaging channel", logPrefix, env.Name))
		return
	}
	data, err := envelope.Encode(env)
	if err != nil {
		slog.Error(fmt.Sprintf("%s - failed to encode %s: %v", logPrefix, env.Name, err))
		return
	}
	if len(data) > c.maxPayload {
		slog.Error(fmt.Sprintf("%s - dropping %s: payload of %d bytes exceeds the %d byte ceiling", logPrefix, env.Name, len(data), c.maxPayload))
		return
	}
	if err := c.nc.Publish(c.subjectFor(env.Destination), data); err != nil {
		slog.Error(fmt.Sprintf("%s - failed to publish %s: %v", logPrefix, env.Name, err))
	}
}

// Serve subscribes this context's inbox and the broadcast subject, routing
// deliveries through the context's registry. The returned stop function
// unsubscribes.
func (c *Channel) Serve(ctx context.Context) (func(), error) {
	if c.nc == nil {
		return func() {}, nil
	}

	subjects := []string{BroadcastSubject(c.prefix)}
	if c.privileged {
		subjects = append(subjects, PrivilegedSubject(c.prefix))
	} else {
		subjects = append(subjects, ContextSubject(c.prefix, c.contextID))
	}

	var subs []*comms.Subscription
	stop := func() {
		for _, s := range subs {
			s.Unsubscribe()
		}
	}
	for _, subject := range subjects {
		sub, err := c.nc.Subscribe(subject, func(msg *comms.Msg) {
			c.handle(ctx, msg)
		})
		if err != nil {
			stop()
			return nil, fmt.Errorf("%s - failed to subscribe to %s: %w", logPrefix, subject, err)
		}
		subs = append(subs, sub)
		slog.Info(fmt.Sprintf("%s - Subscribed to %s", logPrefix, subject))
	}
	return stop, nil
}

func (c *Channel) handle(ctx context.Context, msg *comms.Msg) {
	var env envelope.Envelope
	if err := envelope.Decode(msg.Data, &env); err != nil {
		slog.Error(fmt.Sprintf("%s - failed to decode envelope: %v", logPrefix, err))
		if msg.Reply != "" {
			rec := buserr.ToRecord(buserr.New(buserr.KindProtocol, "", "malformed envelope"))
			if data, err := envelope.Encode(&envelope.Response{Exception: rec}); err == nil {
				msg.Respond(data)
			}
		}
		return
	}

	resp, dispatched := c.router.Dispatch(ctx, &env)
	if msg.Reply == "" {
		return
	}
	if !dispatched || resp == nil {
		// No handler produced a reply; close the port empty so the caller
		// classifies it instead of hanging.
		msg.Respond(nil)
		return
	}
	data, err := envelope.Encode(resp)
	if err != nil {
		slog.Error(fmt.Sprintf("%s - failed to encode response for %s: %v", logPrefix, env.Name, err))
		msg.Respond(nil)
		return
	}
	msg.Respond(data)
}

// correlate resolves an awaited call from its response envelope: the
// reconstructed error when an exception record is present, the decoded
// result otherwise.
func (c *Channel) correlate(ctx context.Context, env *envelope.Envelope, resp *envelope.Response) (map[string]any, error) {
	if resp.Exception != nil {
		return nil, buserr.FromRecord(resp.Exception, env.Name, env.OriginTrace)
	}
	if err := resp.DecodeBinary(ctx, c.blobs); err != nil {
		return nil, buserr.New(buserr.KindPermanent, env.Name, err.Error())
	}
	return resp.Result, nil
}

func (c *Channel) subjectFor(dest string) string {
	switch dest {
	case "":
		return PrivilegedSubject(c.prefix)
	case envelope.DestBroadcast:
		return BroadcastSubject(c.prefix)
	default:
		return ContextSubject(c.prefix, dest)
	}
}
