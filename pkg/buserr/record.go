package buserr

import (
	"errors"
	"fmt"
	"runtime/debug"
)

// Record tags for the two error variants carried on the wire.
const (
	TagStandard = "standard"
	TagAjax     = "ajax"
)

// stackMarker separates the caller's send-time stack from the responder's
// stack in a reconstructed error.
const stackMarker = "----- remote handler -----"

// Record is the transferable form of a handler failure. The tag determines
// which reconstruction rule applies on the receiving side.
type Record struct {
	Tag     string `json:"tag"`
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`

	// Ajax variant only.
	Status        int    `json:"status,omitempty"`
	URL           string `json:"url,omitempty"`
	ResponseText  string `json:"responseText,omitempty"`
	StatusText    string `json:"statusText,omitempty"`
	ServerMessage string `json:"serverMessage,omitempty"`
	ServerDetails string `json:"serverDetails,omitempty"`
}

// ToRecord converts a thrown failure into its wire form. Errors carrying
// HTTP failure detail become the ajax variant; everything else becomes the
// standard variant with message and stack.
func ToRecord(err error) *Record {
	var he *HTTPError
	if errors.As(err, &he) {
		return &Record{
			Tag:           TagAjax,
			Message:       he.Message,
			Stack:         stackOf(&he.BusError),
			Status:        he.Status,
			URL:           he.URL,
			ResponseText:  he.ResponseText,
			StatusText:    he.StatusText,
			ServerMessage: he.ServerMessage,
			ServerDetails: he.ServerDetails,
		}
	}
	var be *BusError
	if errors.As(err, &be) {
		return &Record{Tag: TagStandard, Message: be.Message, Stack: stackOf(be)}
	}
	return &Record{Tag: TagStandard, Message: err.Error(), Stack: string(debug.Stack())}
}

// FromRecord rebuilds an error on the caller side. The message is prefixed
// with the original message name; the stack concatenates the caller's
// send-time stack, a marker, and the responder's stack.
func FromRecord(rec *Record, name, callerStack string) error {
	msg := rec.Message
	stack := fmt.Sprintf("%s\n%s\n%s", callerStack, stackMarker, rec.Stack)
	base := BusError{Kind: KindHandler, Name: name, Message: msg, Stack: stack}
	if rec.Tag == TagAjax {
		return &HTTPError{
			BusError:      base,
			Status:        rec.Status,
			URL:           rec.URL,
			ResponseText:  rec.ResponseText,
			StatusText:    rec.StatusText,
			ServerMessage: rec.ServerMessage,
			ServerDetails: rec.ServerDetails,
		}
	}
	return &base
}

func stackOf(e *BusError) string {
	if e.Stack != "" {
		return e.Stack
	}
	return string(debug.Stack())
}
