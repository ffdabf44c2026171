// Package event defines the ambient, observability-only record that the
// session engine emits for every message it sends or receives. A
// BridgeEvent is never part of the wire format; it exists purely to
// drive the broker/inspector stack described in SPEC_FULL.md.
package event

import "time"

// BridgeEvent describes one message crossing a session in either
// direction.
type BridgeEvent struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Direction string    `json:"direction"` // "send" | "recv"
	Type      byte      `json:"type"`
	TypeName  string    `json:"type_name"`
	Summary   string    `json:"summary"`
	At        time.Time `json:"at"`
}
