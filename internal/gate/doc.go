// Package gate provides a single-slot exclusive access gate.
//
// At most one caller holds a [Gate] at a time. Callers either fail fast with
// [Gate.TryAcquire] when the gate is busy, or suspend in [Gate.Acquire] until
// the holder calls [Gate.Release] or their context is cancelled.
//
// # Architecture
//
// The gate owns one "held" flag, the identity of the current holder, and a
// [WaitSet] of suspended acquire attempts. Every mutation of the flag happens
// under the gate's mutex; the check and the set of an acquire are a single
// critical section, so two callers can never both observe a grant.
//
// Suspended callers obtain their wakeup channel from the WaitSet while still
// holding the gate's mutex, and Release clears the flag and notifies the
// WaitSet inside the same critical section. A release therefore cannot slip
// between a waiter's check and its suspension.
//
// # Fairness
//
// Release wakes every waiter and they race to re-check the flag. Any waiter
// that wins proceeds; there is no FIFO ordering. Under sustained contention a
// long-waiting caller can lose the race indefinitely to newer arrivals. This
// is a known limitation, kept so that every waiter observes every release.
//
// # Cancellation
//
// The context passed to Acquire is the caller's interrupt. After every wakeup
// the context is checked before the flag: a cancelled caller returns an error
// wrapping [errors.ErrCancelled] and never modifies the gate. Cancellation
// cannot revoke a grant that has already happened.
//
// # Teardown
//
// [Gate.Close] force-cancels every pending waiter and rejects later acquires
// with [errors.ErrClosed]. The holder at the time of Close may still release.
//
// # Basic Usage
//
//	g := gate.New(gate.WithLogger(logger), gate.WithBus(bus))
//
//	if err := g.Acquire(ctx, "session-1"); err != nil {
//	    return err // errors.ErrCancelled or errors.ErrClosed
//	}
//	defer g.Release("session-1")
package gate
