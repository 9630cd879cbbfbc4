// Package direct delivers envelopes between any context and the privileged
// context over the host messaging primitive, with at most one reply per
// delivery.
package direct

import (
	"fmt"
	"log/slog"
	"time"

	comms "github.com/nats-io/nats.go"
)

const connectLogPrefix = "direct:connect"

// Connect dials the host messaging endpoint for one bus context. Contexts
// start in any order relative to the endpoint, so the initial dial retries
// instead of failing and reconnect attempts are unbounded; while the channel
// is down, awaited calls classify as transient and the caller retries.
func Connect(url, name string) (*comms.Conn, error) {
	slog.Info(fmt.Sprintf("%s - Dialing host channel at %s as %s", connectLogPrefix, url, name))

	nc, err := comms.Connect(url,
		comms.Name(name),
		comms.Timeout(5*time.Second),
		comms.RetryOnFailedConnect(true),
		comms.ReconnectWait(time.Second),
		comms.MaxReconnects(-1),
		comms.DisconnectErrHandler(func(_ *comms.Conn, err error) {
			slog.Warn(fmt.Sprintf("%s - Host channel lost, calls will classify transient: %v", connectLogPrefix, err))
		}),
		comms.ReconnectHandler(func(nc *comms.Conn) {
			slog.Info(fmt.Sprintf("%s - Host channel restored at %s", connectLogPrefix, nc.ConnectedUrl()))
		}),
		comms.ClosedHandler(func(_ *comms.Conn) {
			slog.Info(fmt.Sprintf("%s - Host channel closed", connectLogPrefix))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to dial host channel: %w", connectLogPrefix, err)
	}
	return nc, nil
}
