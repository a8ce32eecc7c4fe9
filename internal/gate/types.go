package gate

import (
	"time"

	"github.com/Iron-Ham/sleepgate/internal/event"
	"github.com/Iron-Ham/sleepgate/internal/logging"
)

// Stats is a point-in-time snapshot of gate activity.
type Stats struct {
	Granted   uint64 // Successful acquires, blocking or not
	Busy      uint64 // Non-blocking acquires turned away
	Cancelled uint64 // Blocking acquires abandoned (interrupt or teardown)
	Released  uint64 // Successful releases
	Misuse    uint64 // Releases without holding the gate

	Held    bool
	Holder  string
	Waiting int
	Closed  bool
}

// Option configures a Gate.
type Option func(*Gate)

// WithLogger sets the logger used for gate diagnostics.
func WithLogger(logger *logging.Logger) Option {
	return func(g *Gate) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithBus sets the event bus that receives gate events.
func WithBus(bus *event.Bus) Option {
	return func(g *Gate) {
		g.bus = bus
	}
}

// WithContentionLogging toggles the debug records emitted for busy and
// waiting callers. Under heavy contention these dominate the log.
func WithContentionLogging(enabled bool) Option {
	return func(g *Gate) {
		g.logContention = enabled
	}
}

// WithClock overrides the time source used for hold and wait durations.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) {
		if now != nil {
			g.now = now
		}
	}
}
