package propagate

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/quiltmail/contextbus/pkg/dedup"
	"github.com/quiltmail/contextbus/pkg/envelope"
	"github.com/quiltmail/contextbus/pkg/router"
	"github.com/quiltmail/contextbus/pkg/seal"
)

const logPrefix = "propagate:channel"

// Message is the cleartext wrapper posted between windows. Addressing, the
// envelope id, and the propagation flag stay readable so intermediate frames
// can filter, dedup, and forward without opening the payload; everything
// else rides in the ciphertext.
type Message struct {
	ID          string `json:"id"`
	Destination string `json:"destination,omitempty"`
	Propagate   bool   `json:"propagate,omitempty"`
	Ciphertext  []byte `json:"ciphertext"`
}

// Channel is one context's endpoint on the window hierarchy.
type Channel struct {
	win    Window
	cipher seal.Cipher
	router *router.Router
	ledger *dedup.Ledger
}

// Params configures a Channel. The router's ledger doubles as the forward
// dedup record.
type Params struct {
	Window Window
	Cipher seal.Cipher
	Router *router.Router
}

// New creates a Channel.
func New(p Params) (*Channel, error) {
	if p.Window == nil || p.Cipher == nil || p.Router == nil {
		return nil, fmt.Errorf("%s - window, cipher, and router are required", logPrefix)
	}
	return &Channel{
		win:    p.Window,
		cipher: p.Cipher,
		router: p.Router,
		ledger: p.Router.Ledger(),
	}, nil
}

// Send seals the envelope under its id and posts it to every attached child
// frame, to this window itself, and to each ancestor level up to the top
// window (children and window at every level), so ancestors and siblings not
// directly reachable still observe it.
func (c *Channel) Send(env *envelope.Envelope) error {
	plain, err := envelope.Encode(env)
	if err != nil {
		return fmt.Errorf("%s - failed to encode envelope: %w", logPrefix, err)
	}
	ct, err := c.cipher.Seal(plain, env.ID)
	if err != nil {
		return fmt.Errorf("%s - failed to seal envelope: %w", logPrefix, err)
	}
	raw, err := json.Marshal(&Message{
		ID:          env.ID,
		Destination: env.Destination,
		Propagate:   env.Propagate,
		Ciphertext:  ct,
	})
	if err != nil {
		return fmt.Errorf("%s - failed to encode message: %w", logPrefix, err)
	}

	for w := c.win; w != nil; w = w.Parent() {
		for _, child := range w.Children() {
			child.Deliver(raw)
		}
		w.Deliver(raw)
	}
	return nil
}

// Start installs the inbound listener on the window.
func (c *Channel) Start(ctx context.Context) {
	c.win.Listen(func(data []byte) {
		c.Receive(ctx, data)
	})
}

// Receive is the window-message listener. Start wires it; tests may call it
// directly.
func (c *Channel) Receive(ctx context.Context, raw []byte) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		slog.Debug(fmt.Sprintf("%s - ignoring unreadable window message: %v", logPrefix, err))
		return
	}
	if msg.ID == "" || c.ledger.Seen(msg.ID) {
		return
	}

	if msg.Destination == envelope.DestBroadcast || msg.Destination == c.win.ContextID() {
		plain, err := c.cipher.Open(msg.Ciphertext, msg.ID)
		if err != nil {
			// Not sealed under our key, or tampered. Drop rather than
			// forward; a trusted sender's copy arrives on its own paths.
			slog.Warn(fmt.Sprintf("%s - failed to open message %s: %v", logPrefix, msg.ID, err))
			return
		}
		var env envelope.Envelope
		if err := envelope.Decode(plain, &env); err != nil {
			slog.Warn(fmt.Sprintf("%s - malformed envelope in message %s: %v", logPrefix, msg.ID, err))
			return
		}
		if _, dispatched := c.router.Dispatch(ctx, &env); dispatched {
			// Handled contexts do not re-propagate.
			return
		}
	}

	// Not handled here. Forward up so an ancestor several levels away still
	// receives it despite this frame having no handler for the name.
	if msg.Propagate {
		if parent := c.win.Parent(); parent != nil {
			c.ledger.Mark(msg.ID)
			parent.Deliver(raw)
		}
	}
}
