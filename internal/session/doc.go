// Package session implements one caller's acquire, use, release lifecycle
// over a gate and the mailbox it guards.
//
// A [Session] is opened with [Open], which acquires the gate either blocking
// or non-blocking. While the session is [Holding] it may read and write the
// mailbox; [Session.Close] releases the gate exactly once. Mailbox access in
// any other state fails with errors.ErrNotHeld.
//
// # State Machine
//
//	Requesting -> Holding    (acquire granted)
//	Requesting -> Cancelled  (busy, interrupted, or gate closed)
//	Holding    -> Released   (Close)
//
// Cancelled and Released are terminal.
//
// # Scoped Use
//
// [Do] opens a session, runs a function, and closes the session on every
// exit path including panics:
//
//	err := session.Do(ctx, g, mb, true, func(s *session.Session) error {
//	    _, err := s.Write([]byte("hello"))
//	    return err
//	})
package session
