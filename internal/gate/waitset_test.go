package gate

import (
	"testing"
	"time"
)

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func TestWaitSet_NotifyAllWakesEveryTicket(t *testing.T) {
	w := NewWaitSet()

	a := w.Enqueue()
	b := w.Enqueue()
	if w.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", w.Len())
	}
	if isClosed(a.Ready()) || isClosed(b.Ready()) {
		t.Fatal("tickets must not be ready before NotifyAll")
	}

	if n := w.NotifyAll(); n != 2 {
		t.Errorf("NotifyAll() = %d, want 2", n)
	}
	if !isClosed(a.Ready()) || !isClosed(b.Ready()) {
		t.Error("every ticket should be ready after NotifyAll")
	}
	if w.Len() != 0 {
		t.Errorf("Len() after NotifyAll = %d, want 0", w.Len())
	}
}

func TestWaitSet_LateEnqueueWaitsForNextNotify(t *testing.T) {
	w := NewWaitSet()
	w.Enqueue()
	w.NotifyAll()

	late := w.Enqueue()
	if isClosed(late.Ready()) {
		t.Fatal("ticket enqueued after NotifyAll must wait for the next one")
	}

	done := make(chan struct{})
	go func() {
		<-late.Ready()
		close(done)
	}()

	w.NotifyAll()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for second NotifyAll to wake the late ticket")
	}
}

func TestWaitSet_Abandon(t *testing.T) {
	w := NewWaitSet()

	a := w.Enqueue()
	w.Enqueue()
	if !w.Abandon(a) {
		t.Error("Abandon() of pending ticket = false, want true")
	}
	if w.Len() != 1 {
		t.Errorf("Len() = %d, want 1", w.Len())
	}

	stale := w.Enqueue()
	w.NotifyAll()
	if w.Abandon(stale) {
		t.Error("Abandon() of notified ticket = true, want false")
	}
	if w.Len() != 0 {
		t.Errorf("Len() = %d, want 0", w.Len())
	}
}

func TestWaitSet_ZeroValue(t *testing.T) {
	var w WaitSet

	if n := w.NotifyAll(); n != 0 {
		t.Errorf("NotifyAll() on empty set = %d, want 0", n)
	}
	ticket := w.Enqueue()
	w.NotifyAll()
	if !isClosed(ticket.Ready()) {
		t.Error("zero-value WaitSet should wake its tickets")
	}
}
