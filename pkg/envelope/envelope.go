// Package envelope defines the wire shape of bus messages and the
// binary-indirection transform.
package envelope

import (
	"runtime/debug"

	"github.com/nats-io/nuid"

	"github.com/quiltmail/contextbus/pkg/blobstore"
	"github.com/quiltmail/contextbus/pkg/buserr"
)

// ProtocolVersion is stamped on every outgoing envelope.
const ProtocolVersion = "1.2.0"

// DestBroadcast addresses an envelope to every context. An empty destination
// addresses the privileged context.
const DestBroadcast = "broadcast"

// MaxInlinePayload is the policy ceiling for inline payload bytes. Larger
// payloads must cross by blob handle instead (see EncodeBinary).
const MaxInlinePayload = 256 << 10

// Envelope is one message unit. The id is unique per send, never reused, and
// is the sole deduplication key on the receiving side.
type Envelope struct {
	Name        string                         `json:"name"`
	Payload     map[string]any                 `json:"payload,omitempty"`
	BinaryRefs  map[string]blobstore.Handle    `json:"binaryRefs,omitempty"`
	Destination string                         `json:"destination,omitempty"`
	ID          string                         `json:"id"`
	OriginTrace string                         `json:"originTrace,omitempty"`
	Propagate   bool                           `json:"propagate,omitempty"`
	Proto       string                         `json:"proto,omitempty"`
}

// Response carries a handler's outcome back to the caller. Exactly one of
// Result and Exception is meaningful.
type Response struct {
	Result     map[string]any              `json:"result,omitempty"`
	BinaryRefs map[string]blobstore.Handle `json:"binaryRefs,omitempty"`
	Exception  *buserr.Record              `json:"exception,omitempty"`
}

// New builds an envelope with a fresh id, the current protocol version, and
// the caller's stack as the origin trace. An empty dest addresses the
// privileged context.
func New(name string, payload map[string]any, dest string) *Envelope {
	return &Envelope{
		Name:        name,
		Payload:     payload,
		Destination: dest,
		ID:          nuid.Next(),
		OriginTrace: string(debug.Stack()),
		Proto:       ProtocolVersion,
	}
}

// NewContextID generates an id for a non-privileged context.
func NewContextID() string {
	return "cs." + nuid.Next()
}
