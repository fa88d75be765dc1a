package ws

import "time"

// ConnInfo is the handshake metadata of a connection, carried into its
// lifecycle events.
type ConnInfo struct {
	ConnID      string
	UserID      string
	DeviceID    string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}
