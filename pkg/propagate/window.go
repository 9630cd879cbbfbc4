// Package propagate delivers envelopes across a window hierarchy when the
// direct channel cannot address nested frames. Envelopes travel encrypted:
// window messaging is observable by any script sharing the page.
package propagate

// Window is the injected window capability: identity, hierarchy links, and
// raw message delivery. pkg/frame provides the in-process implementation.
type Window interface {
	ContextID() string
	// Parent returns the enclosing window, or nil at the top.
	Parent() Window
	// Children returns the same-origin child frames currently attached.
	Children() []Window
	// Deliver hands raw message bytes to the window's listener.
	Deliver(data []byte)
	// Listen installs the window-message listener; the last listener wins.
	Listen(fn func(data []byte))
}
