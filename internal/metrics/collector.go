package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Iron-Ham/sleepgate/internal/errors"
	"github.com/Iron-Ham/sleepgate/internal/event"
	"github.com/Iron-Ham/sleepgate/internal/gate"
	"github.com/Iron-Ham/sleepgate/internal/logging"
)

const namespace = "sleepgate"

// Collector turns bus events into Prometheus metrics.
type Collector struct {
	acquired     *prometheus.CounterVec
	busy         prometheus.Counter
	cancelled    *prometheus.CounterVec
	released     prometheus.Counter
	waitSeconds  prometheus.Histogram
	holdSeconds  prometheus.Histogram
	writtenBytes prometheus.Counter
	truncated    prometheus.Counter
	reads        *prometheus.CounterVec
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		acquired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gate",
			Name:      "acquired_total",
			Help:      "Successful gate acquisitions by mode (blocking or nonblocking).",
		}, []string{"mode"}),
		busy: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gate",
			Name:      "busy_total",
			Help:      "Non-blocking acquisitions rejected because the gate was held.",
		}),
		cancelled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gate",
			Name:      "cancelled_total",
			Help:      "Blocking acquisitions abandoned, by reason (interrupted or closed).",
		}, []string{"reason"}),
		released: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gate",
			Name:      "released_total",
			Help:      "Gate releases.",
		}),
		waitSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "gate",
			Name:      "wait_seconds",
			Help:      "Time blocking callers spent suspended before a grant.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),
		holdSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "gate",
			Name:      "hold_seconds",
			Help:      "Time the gate was held per acquisition.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),
		writtenBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mailbox",
			Name:      "written_bytes_total",
			Help:      "Bytes stored in the mailbox.",
		}),
		truncated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mailbox",
			Name:      "truncated_writes_total",
			Help:      "Writes that exceeded the mailbox capacity.",
		}),
		reads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mailbox",
			Name:      "reads_total",
			Help:      "Mailbox reads by result (data or eof).",
		}, []string{"result"}),
	}

	for _, col := range []prometheus.Collector{
		c.acquired, c.busy, c.cancelled, c.released,
		c.waitSeconds, c.holdSeconds,
		c.writtenBytes, c.truncated, c.reads,
	} {
		if err := reg.Register(col); err != nil {
			return nil, fmt.Errorf("register metric: %w", err)
		}
	}
	return c, nil
}

// Attach subscribes the collector to every event on bus and returns the
// subscription ID.
func (c *Collector) Attach(bus *event.Bus) uint64 {
	return bus.SubscribeAll(c.Handle)
}

// Handle records a single event. Unknown event types are ignored.
func (c *Collector) Handle(e event.Event) {
	switch ev := e.(type) {
	case event.GateAcquiredEvent:
		mode := "nonblocking"
		if ev.Blocking {
			mode = "blocking"
			c.waitSeconds.Observe(ev.Waited.Seconds())
		}
		c.acquired.WithLabelValues(mode).Inc()
	case event.GateBusyEvent:
		c.busy.Inc()
	case event.GateCancelledEvent:
		c.cancelled.WithLabelValues(ev.Reason).Inc()
	case event.GateReleasedEvent:
		c.released.Inc()
		c.holdSeconds.Observe(ev.Held.Seconds())
	case event.MailboxWrittenEvent:
		c.writtenBytes.Add(float64(ev.Bytes))
		if ev.Truncated {
			c.truncated.Inc()
		}
	case event.MailboxReadEvent:
		result := "data"
		if ev.EOF {
			result = "eof"
		}
		c.reads.WithLabelValues(result).Inc()
	}
}

// RegisterGateGauges registers scrape-time gauges for g's holder and waiters.
func RegisterGateGauges(reg prometheus.Registerer, g *gate.Gate) error {
	held := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "gate",
		Name:      "held",
		Help:      "1 if the gate is currently held, 0 otherwise.",
	}, func() float64 {
		if g.Held() {
			return 1
		}
		return 0
	})
	waiters := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "gate",
		Name:      "waiters",
		Help:      "Callers currently suspended waiting for the gate.",
	}, func() float64 {
		return float64(g.Waiting())
	})

	if err := reg.Register(held); err != nil {
		return fmt.Errorf("register held gauge: %w", err)
	}
	if err := reg.Register(waiters); err != nil {
		return fmt.Errorf("register waiters gauge: %w", err)
	}
	return nil
}

// Serve exposes the metrics gathered by gatherer on addr at /metrics until
// ctx is cancelled.
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer, logger *logging.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("metrics shutdown: %w", err)
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	}
}
