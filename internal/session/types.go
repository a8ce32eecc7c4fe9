package session

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/Iron-Ham/sleepgate/internal/event"
	"github.com/Iron-Ham/sleepgate/internal/logging"
)

// State is the lifecycle state of a Session.
type State int

const (
	// Requesting means the session is waiting for, or attempting, the gate.
	Requesting State = iota
	// Holding means the session owns the gate and may use the mailbox.
	Holding
	// Cancelled means the session never acquired the gate.
	Cancelled
	// Released means the session held the gate and gave it back.
	Released
)

// String returns the lower-case name of the state.
func (s State) String() string {
	switch s {
	case Requesting:
		return "requesting"
	case Holding:
		return "holding"
	case Cancelled:
		return "cancelled"
	case Released:
		return "released"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == Cancelled || s == Released
}

// Option configures a Session.
type Option func(*Session)

// WithID sets the session identifier used as the gate owner.
func WithID(id string) Option {
	return func(s *Session) {
		if id != "" {
			s.id = id
		}
	}
}

// WithLogger sets the logger for session diagnostics.
func WithLogger(logger *logging.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithBus sets the event bus that receives mailbox events.
func WithBus(bus *event.Bus) Option {
	return func(s *Session) {
		s.bus = bus
	}
}

// GenerateID creates a short random session ID.
// Falls back to a timestamp-based ID if crypto/rand fails.
func GenerateID() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("s-%08x", time.Now().UnixNano()&0xFFFFFFFF)
	}
	return "s-" + hex.EncodeToString(b)
}
