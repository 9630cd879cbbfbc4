// Package frame is the in-process window hierarchy backing the propagation
// channel: a tree of windows where delivery invokes the receiver's listener
// synchronously, modeling the cooperative event loop of a page.
package frame

import (
	"sync"

	"github.com/quiltmail/contextbus/pkg/propagate"
)

// Window is one node of the hierarchy. It implements propagate.Window.
type Window struct {
	mu        sync.Mutex
	contextID string
	parent    *Window
	children  []*Window
	listener  func([]byte)
}

// NewRoot creates a top window with no parent.
func NewRoot(contextID string) *Window {
	return &Window{contextID: contextID}
}

// NewChild attaches and returns a child frame.
func (w *Window) NewChild(contextID string) *Window {
	child := &Window{contextID: contextID, parent: w}
	w.mu.Lock()
	w.children = append(w.children, child)
	w.mu.Unlock()
	return child
}

// ContextID returns the window's context id.
func (w *Window) ContextID() string { return w.contextID }

// Parent returns the enclosing window, or nil at the top.
func (w *Window) Parent() propagate.Window {
	if w.parent == nil {
		return nil
	}
	return w.parent
}

// Children returns the currently attached child frames.
func (w *Window) Children() []propagate.Window {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]propagate.Window, len(w.children))
	for i, c := range w.children {
		out[i] = c
	}
	return out
}

// Listen installs the window-message listener. The last listener wins.
func (w *Window) Listen(fn func([]byte)) {
	w.mu.Lock()
	w.listener = fn
	w.mu.Unlock()
}

// Deliver invokes the listener with the raw message bytes. Windows without a
// listener drop deliveries.
func (w *Window) Deliver(data []byte) {
	w.mu.Lock()
	fn := w.listener
	w.mu.Unlock()
	if fn != nil {
		fn(data)
	}
}
