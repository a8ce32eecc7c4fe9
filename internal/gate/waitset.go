package gate

import "sync"

// WaitSet is a collection of suspended callers waiting on a condition.
// NotifyAll wakes every caller enqueued before it; callers that enqueue
// afterwards wait for the next NotifyAll.
//
// The zero value is ready to use.
type WaitSet struct {
	mu      sync.Mutex
	ready   chan struct{}
	gen     uint64
	waiting int
}

// Ticket identifies one enqueued caller.
type Ticket struct {
	ready <-chan struct{}
	gen   uint64
}

// Ready returns a channel that is closed by the NotifyAll that wakes this ticket.
func (t Ticket) Ready() <-chan struct{} {
	return t.ready
}

// NewWaitSet creates an empty WaitSet.
func NewWaitSet() *WaitSet {
	return &WaitSet{ready: make(chan struct{})}
}

// Enqueue registers a caller and returns its ticket. The caller suspends by
// receiving from the ticket's Ready channel.
func (w *WaitSet) Enqueue() Ticket {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.ready == nil {
		w.ready = make(chan struct{})
	}
	w.waiting++
	return Ticket{ready: w.ready, gen: w.gen}
}

// Abandon removes a caller that stopped waiting without being notified.
// It reports whether the ticket was still pending.
func (w *WaitSet) Abandon(t Ticket) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t.gen != w.gen || w.waiting == 0 {
		return false
	}
	w.waiting--
	return true
}

// NotifyAll wakes every enqueued caller and returns how many were woken.
func (w *WaitSet) NotifyAll() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	woken := w.waiting
	if w.ready != nil {
		close(w.ready)
	}
	w.ready = make(chan struct{})
	w.gen++
	w.waiting = 0
	return woken
}

// Len returns the number of callers currently enqueued.
func (w *WaitSet) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.waiting
}
