// Package event provides a pub-sub event bus that decouples the gate and its
// sessions from the components observing them.
//
// The gate and the session layer publish events; metrics collectors, the
// simulate report and debug tooling subscribe to them. Publishers never learn
// who is listening.
//
// # Main Types
//
//   - [Event]: Interface that all events must implement, providing EventType() and Timestamp()
//   - [Bus]: Synchronous pub-sub event dispatcher with thread-safe operations
//   - [Handler]: Function type for event handlers (func(Event))
//
// # Event Categories
//
// Gate:
//   - [GateAcquiredEvent], [GateBusyEvent], [GateCancelledEvent],
//     [GateReleasedEvent], [GateClosedEvent]
//
// Mailbox:
//   - [MailboxWrittenEvent], [MailboxReadEvent]
//
// # Thread Safety
//
// [Bus] is safe for concurrent use. Handlers run synchronously on the
// publishing goroutine, after the publisher has dropped its own locks, so a
// handler may call back into the gate without deadlocking. A panicking
// handler is recovered and logged; delivery continues to the rest.
package event
