// Package event defines the envelope and payloads pushed to observability
// sinks after a message has been accepted. Sinks are side effects only:
// core delivery never depends on them.
package event

import (
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	MessageType Type = "MESSAGE"
	SessionType Type = "SESSION"
)

type Event struct {
	Type      Type
	CreatedAt time.Time
	Payload   any
}

// MessagePosted is published after a message has been durably stored and
// fanned out. Recipients is the fan-out width at accept time.
type MessagePosted struct {
	ID         uuid.UUID
	Sender     string
	Receiver   string
	Body       string
	At         time.Time
	Recipients int
}

// SessionClosed is published when a session reaches its terminal state.
type SessionClosed struct {
	SessionID uuid.UUID
	Identity  string
	Dropped   uint64
	At        time.Time
}
