// Package buserr defines the bus failure taxonomy and the wire form of
// handler errors.
package buserr

import (
	"errors"
	"fmt"
)

// Kind classifies a bus failure.
type Kind string

const (
	// KindTransient means the receiving context was not ready; the caller
	// may retry after a delay.
	KindTransient Kind = "transient"
	// KindPermanent means the failure is not retryable (serialization
	// failure, runtime invalidated).
	KindPermanent Kind = "permanent"
	// KindHandler means the remote handler itself failed.
	KindHandler Kind = "handler"
	// KindProtocol means the reply was not a well-formed response envelope.
	// Treated the same as KindPermanent by callers.
	KindProtocol Kind = "protocol"
)

// Retryable reports whether a failure of this kind may succeed on retry.
func (k Kind) Retryable() bool {
	return k == KindTransient
}

// BusError is a classified bus failure.
type BusError struct {
	Kind    Kind
	Name    string // message name of the originating call
	Message string
	Stack   string
}

// Error implements the error interface.
func (e *BusError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("%s: %s", e.Name, e.Message)
	}
	return e.Message
}

// HTTPError is a handler failure carrying HTTP failure detail, reconstructed
// with full fidelity so callers can branch on status.
type HTTPError struct {
	BusError
	Status        int
	URL           string
	ResponseText  string
	StatusText    string
	ServerMessage string
	ServerDetails string
}

// New builds a BusError of the given kind.
func New(kind Kind, name, message string) *BusError {
	return &BusError{Kind: kind, Name: name, Message: message}
}

// KindOf extracts the Kind from an error, or "" when the error did not come
// from the bus.
func KindOf(err error) Kind {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.Kind
	}
	var be *BusError
	if errors.As(err, &be) {
		return be.Kind
	}
	return ""
}
