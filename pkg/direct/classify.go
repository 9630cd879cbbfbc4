package direct

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"

	comms "github.com/nats-io/nats.go"

	"github.com/quiltmail/contextbus/pkg/buserr"
	"github.com/quiltmail/contextbus/pkg/envelope"
)

// Platform failure texts with a known classification.
const (
	textNoReceivingEnd = "no receiving end"
	textPortClosed     = "port closed before a response was received"
	textNotCloned      = "could not be cloned"
)

// classify maps a transport-level delivery failure to the bus taxonomy.
// Context cancellation passes through untouched; the caller asked for it.
func classify(err error, env *envelope.Envelope) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, comms.ErrNoResponders) {
		return transientErr(env, textNoReceivingEnd)
	}
	if errors.Is(err, comms.ErrMaxPayload) {
		return serializationErr(env, err.Error())
	}
	var typeErr *json.UnsupportedTypeError
	var valueErr *json.UnsupportedValueError
	if errors.As(err, &typeErr) || errors.As(err, &valueErr) {
		return serializationErr(env, err.Error())
	}

	text := err.Error()
	switch {
	case strings.Contains(text, textNoReceivingEnd), strings.Contains(text, textPortClosed):
		return transientErr(env, text)
	case strings.Contains(text, textNotCloned):
		return serializationErr(env, text)
	}

	// Unrecognized platform failure: permanent, carrying the message name,
	// the raw failure text, and the combined send+receive stacks.
	return &buserr.BusError{
		Kind:    buserr.KindPermanent,
		Name:    env.Name,
		Message: fmt.Sprintf("send failed: %s", text),
		Stack:   env.OriginTrace + "\n" + string(debug.Stack()),
	}
}

// transientErr means the target context may not have finished initializing;
// the caller may retry after a delay.
func transientErr(env *envelope.Envelope, text string) error {
	return &buserr.BusError{
		Kind:    buserr.KindTransient,
		Name:    env.Name,
		Message: text,
		Stack:   env.OriginTrace,
	}
}

func serializationErr(env *envelope.Envelope, text string) error {
	return &buserr.BusError{
		Kind:    buserr.KindPermanent,
		Name:    env.Name,
		Message: fmt.Sprintf("serialization failed: %s", text),
		Stack:   env.OriginTrace,
	}
}
