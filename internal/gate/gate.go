package gate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Iron-Ham/sleepgate/internal/errors"
	"github.com/Iron-Ham/sleepgate/internal/event"
	"github.com/Iron-Ham/sleepgate/internal/logging"
)

// Gate is an exclusive single-holder access gate.
type Gate struct {
	mu      sync.Mutex
	held    bool
	closed  bool
	holder  string
	since   time.Time
	waiters *WaitSet
	stats   Stats

	logger        *logging.Logger
	bus           *event.Bus
	logContention bool
	now           func() time.Time
}

// New creates an unheld Gate.
func New(opts ...Option) *Gate {
	g := &Gate{
		waiters:       NewWaitSet(),
		logger:        logging.NopLogger(),
		logContention: true,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.WithComponent("gate")
	return g
}

// TryAcquire grants the gate to owner if it is free and returns an error
// wrapping errors.ErrBusy otherwise. It never suspends and leaves the gate
// untouched when busy.
func (g *Gate) TryAcquire(owner string) error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return errors.NewGateError("acquire", errors.ErrClosed).WithOwner(owner)
	}
	if g.held {
		holder := g.holder
		g.stats.Busy++
		g.mu.Unlock()

		if g.logContention {
			g.logger.Debug("gate busy", "owner", owner, "holder", holder)
		}
		g.bus.Publish(event.NewGateBusyEvent(owner, holder))
		return errors.NewGateError("acquire", errors.ErrBusy).WithOwner(owner)
	}
	g.grantLocked(owner)
	g.mu.Unlock()

	g.logger.Debug("gate acquired", "owner", owner, "blocking", false)
	g.bus.Publish(event.NewGateAcquiredEvent(owner, false, 0))
	return nil
}

// Acquire grants the gate to owner, suspending while another caller holds it.
//
// A free gate is granted immediately, even if ctx is already done. Otherwise
// the caller waits for a release; after every wakeup it checks ctx first and
// then races the other woken waiters for the flag, suspending again if it
// loses. If ctx ends before a grant, Acquire returns an error wrapping both
// errors.ErrCancelled and the context's cause. If the gate is closed while
// waiting, the error wraps errors.ErrCancelled and errors.ErrClosed.
//
// Waiters are not served in arrival order; see the package documentation.
func (g *Gate) Acquire(ctx context.Context, owner string) error {
	start := g.now()

	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return errors.NewGateError("acquire", errors.ErrClosed).WithOwner(owner)
	}

	for g.held {
		ticket := g.waiters.Enqueue()
		if g.logContention {
			g.logger.Debug("gate waiting", "owner", owner, "holder", g.holder)
		}
		g.mu.Unlock()

		select {
		case <-ticket.Ready():
		case <-ctx.Done():
		}

		g.mu.Lock()
		if g.closed {
			g.waiters.Abandon(ticket)
			g.stats.Cancelled++
			g.mu.Unlock()
			return g.cancelled(owner, "closed", start, errors.ErrClosed)
		}
		if ctx.Err() != nil {
			g.waiters.Abandon(ticket)
			g.stats.Cancelled++
			g.mu.Unlock()
			return g.cancelled(owner, "interrupted", start, context.Cause(ctx))
		}
	}

	g.grantLocked(owner)
	g.mu.Unlock()

	waited := g.now().Sub(start)
	g.logger.Debug("gate acquired", "owner", owner, "blocking", true, "waited", waited)
	g.bus.Publish(event.NewGateAcquiredEvent(owner, true, waited))
	return nil
}

// cancelled reports an abandoned wait. Must be called without g.mu held.
func (g *Gate) cancelled(owner, reason string, start time.Time, cause error) error {
	waited := g.now().Sub(start)
	g.logger.Debug("gate wait cancelled", "owner", owner, "reason", reason, "waited", waited)
	g.bus.Publish(event.NewGateCancelledEvent(owner, reason, waited))
	return errors.NewGateError("acquire", fmt.Errorf("%w: %w", errors.ErrCancelled, cause)).WithOwner(owner)
}

// grantLocked marks owner as the holder. The caller must hold g.mu and have
// observed held == false in the same critical section.
func (g *Gate) grantLocked(owner string) {
	g.held = true
	g.holder = owner
	g.since = g.now()
	g.stats.Granted++
}

// Release gives the gate up on behalf of owner and wakes every waiter.
// It returns an error wrapping errors.ErrNotHeld if the gate is free, or
// errors.ErrNotOwner if another caller holds it; in both cases the gate is
// left unchanged. Release never suspends and works after Close.
func (g *Gate) Release(owner string) error {
	g.mu.Lock()
	if !g.held {
		g.stats.Misuse++
		g.mu.Unlock()
		g.logger.Warn("release of free gate", "owner", owner)
		return errors.NewGateError("release", errors.ErrNotHeld).WithOwner(owner)
	}
	if g.holder != owner {
		holder := g.holder
		g.stats.Misuse++
		g.mu.Unlock()
		g.logger.Warn("release by non-holder", "owner", owner, "holder", holder)
		return errors.NewGateError("release", errors.ErrNotOwner).WithOwner(owner)
	}

	held := g.now().Sub(g.since)
	g.held = false
	g.holder = ""
	g.since = time.Time{}
	woken := g.waiters.NotifyAll()
	g.stats.Released++
	g.mu.Unlock()

	g.logger.Debug("gate released", "owner", owner, "held", held, "woken", woken)
	g.bus.Publish(event.NewGateReleasedEvent(owner, held, woken))
	return nil
}

// Close tears the gate down. Every pending waiter is woken and returns an
// error wrapping errors.ErrCancelled and errors.ErrClosed; later acquires fail
// with errors.ErrClosed. Close is idempotent and returns the number of waiters
// it cancelled.
func (g *Gate) Close() int {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return 0
	}
	g.closed = true
	cancelled := g.waiters.NotifyAll()
	holder := g.holder
	g.mu.Unlock()

	g.logger.Info("gate closed", "cancelled_waiters", cancelled, "holder", holder)
	g.bus.Publish(event.NewGateClosedEvent(cancelled))
	return cancelled
}

// Held reports whether some caller currently holds the gate.
func (g *Gate) Held() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.held
}

// Holder returns the current holder and when it acquired the gate.
// ok is false if the gate is free.
func (g *Gate) Holder() (owner string, since time.Time, ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.holder, g.since, g.held
}

// IsHeldBy reports whether owner is the current holder.
func (g *Gate) IsHeldBy(owner string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.held && g.holder == owner
}

// Waiting returns the number of callers suspended in Acquire.
func (g *Gate) Waiting() int {
	return g.waiters.Len()
}

// Closed reports whether Close has been called.
func (g *Gate) Closed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.closed
}

// Stats returns a snapshot of the gate's counters.
func (g *Gate) Stats() Stats {
	g.mu.Lock()
	s := g.stats
	s.Held = g.held
	s.Holder = g.holder
	s.Closed = g.closed
	g.mu.Unlock()

	s.Waiting = g.waiters.Len()
	return s
}
