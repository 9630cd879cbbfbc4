package direct

import "fmt"

// DefaultPrefix is the subject prefix for bus traffic.
const DefaultPrefix = "bus"

// PrivilegedSubject is the privileged context's inbox.
func PrivilegedSubject(prefix string) string {
	return fmt.Sprintf("%s.priv", prefix)
}

// ContextSubject is the inbox of one non-privileged context.
func ContextSubject(prefix, contextID string) string {
	return fmt.Sprintf("%s.ctx.%s", prefix, contextID)
}

// BroadcastSubject carries envelopes addressed to every context.
func BroadcastSubject(prefix string) string {
	return fmt.Sprintf("%s.cast", prefix)
}
