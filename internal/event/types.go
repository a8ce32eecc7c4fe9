package event

import "time"

// Event is the interface that all events must implement.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "gate.acquired", "mailbox.read")
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Event type identifiers.
const (
	TypeGateAcquired  = "gate.acquired"
	TypeGateBusy      = "gate.busy"
	TypeGateCancelled = "gate.cancelled"
	TypeGateReleased  = "gate.released"
	TypeGateClosed    = "gate.closed"
	TypeMailboxWrite  = "mailbox.written"
	TypeMailboxRead   = "mailbox.read"
)

type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// -----------------------------------------------------------------------------
// Gate Events
// -----------------------------------------------------------------------------

// GateAcquiredEvent is emitted when a caller becomes the gate holder.
type GateAcquiredEvent struct {
	baseEvent
	Owner    string
	Blocking bool          // Whether the caller was willing to wait
	Waited   time.Duration // Time spent suspended before the grant
}

// NewGateAcquiredEvent creates a GateAcquiredEvent.
func NewGateAcquiredEvent(owner string, blocking bool, waited time.Duration) GateAcquiredEvent {
	return GateAcquiredEvent{
		baseEvent: newBaseEvent(TypeGateAcquired),
		Owner:     owner,
		Blocking:  blocking,
		Waited:    waited,
	}
}

// GateBusyEvent is emitted when a non-blocking acquire finds the gate held.
type GateBusyEvent struct {
	baseEvent
	Owner  string // Caller that was turned away
	Holder string // Current holder
}

// NewGateBusyEvent creates a GateBusyEvent.
func NewGateBusyEvent(owner, holder string) GateBusyEvent {
	return GateBusyEvent{
		baseEvent: newBaseEvent(TypeGateBusy),
		Owner:     owner,
		Holder:    holder,
	}
}

// GateCancelledEvent is emitted when a blocking acquire is abandoned.
type GateCancelledEvent struct {
	baseEvent
	Owner  string
	Reason string // "interrupted" or "closed"
	Waited time.Duration
}

// NewGateCancelledEvent creates a GateCancelledEvent.
func NewGateCancelledEvent(owner, reason string, waited time.Duration) GateCancelledEvent {
	return GateCancelledEvent{
		baseEvent: newBaseEvent(TypeGateCancelled),
		Owner:     owner,
		Reason:    reason,
		Waited:    waited,
	}
}

// GateReleasedEvent is emitted when the holder gives the gate up.
type GateReleasedEvent struct {
	baseEvent
	Owner string
	Held  time.Duration // How long the gate was held
	Woken int           // Number of waiters notified
}

// NewGateReleasedEvent creates a GateReleasedEvent.
func NewGateReleasedEvent(owner string, held time.Duration, woken int) GateReleasedEvent {
	return GateReleasedEvent{
		baseEvent: newBaseEvent(TypeGateReleased),
		Owner:     owner,
		Held:      held,
		Woken:     woken,
	}
}

// GateClosedEvent is emitted once when the gate is torn down.
type GateClosedEvent struct {
	baseEvent
	Cancelled int // Waiters force-cancelled by the teardown
}

// NewGateClosedEvent creates a GateClosedEvent.
func NewGateClosedEvent(cancelled int) GateClosedEvent {
	return GateClosedEvent{
		baseEvent: newBaseEvent(TypeGateClosed),
		Cancelled: cancelled,
	}
}

// -----------------------------------------------------------------------------
// Mailbox Events
// -----------------------------------------------------------------------------

// MailboxWrittenEvent is emitted after a holder overwrites the mailbox.
type MailboxWrittenEvent struct {
	baseEvent
	Owner     string
	Bytes     int  // Bytes stored
	Truncated bool // Whether input beyond capacity was discarded
}

// NewMailboxWrittenEvent creates a MailboxWrittenEvent.
func NewMailboxWrittenEvent(owner string, n int, truncated bool) MailboxWrittenEvent {
	return MailboxWrittenEvent{
		baseEvent: newBaseEvent(TypeMailboxWrite),
		Owner:     owner,
		Bytes:     n,
		Truncated: truncated,
	}
}

// MailboxReadEvent is emitted after a holder reads the mailbox.
type MailboxReadEvent struct {
	baseEvent
	Owner string
	Bytes int
	EOF   bool // The mailbox had no unread message
}

// NewMailboxReadEvent creates a MailboxReadEvent.
func NewMailboxReadEvent(owner string, n int, eof bool) MailboxReadEvent {
	return MailboxReadEvent{
		baseEvent: newBaseEvent(TypeMailboxRead),
		Owner:     owner,
		Bytes:     n,
		EOF:       eof,
	}
}
