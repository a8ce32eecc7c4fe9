// Package internal contains integration tests that verify the device, server
// and metrics packages work together over a shared event bus.
package internal

import (
	"context"
	"io"
	"net"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Iron-Ham/sleepgate/internal/device"
	"github.com/Iron-Ham/sleepgate/internal/errors"
	"github.com/Iron-Ham/sleepgate/internal/event"
	"github.com/Iron-Ham/sleepgate/internal/metrics"
	"github.com/Iron-Ham/sleepgate/internal/server"
	"github.com/Iron-Ham/sleepgate/internal/testutil"
)

// recorder collects event types in publish order.
type recorder struct {
	mu    sync.Mutex
	types []string
}

func (r *recorder) handle(e event.Event) {
	r.mu.Lock()
	r.types = append(r.types, e.EventType())
	r.mu.Unlock()
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.types...)
}

// connect serves one side of a pipe and returns a client for the other.
func connect(t *testing.T, srv *server.Server) (*server.Client, net.Conn) {
	t.Helper()

	clientSide, serverSide := net.Pipe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		srv.ServeConn(context.Background(), serverSide)
	}()
	t.Cleanup(func() {
		clientSide.Close()
		<-done
	})
	return server.NewClient(clientSide), clientSide
}

// counterValue sums every series of the named counter family.
func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error: %v", err)
	}
	var total float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

// TestEventBusIntegration verifies that a session's lifecycle reaches bus
// subscribers in order.
func TestEventBusIntegration(t *testing.T) {
	bus := event.NewBus()
	rec := &recorder{}
	bus.SubscribeAll(rec.handle)

	dev, err := device.New(16, device.WithBus(bus))
	if err != nil {
		t.Fatal(err)
	}

	f, err := dev.Open(context.Background(), true)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	if _, err := f.Write([]byte("ping")); err != nil {
		t.Fatal(err)
	}
	if _, err := io.ReadAll(f); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	dev.Close()

	want := []string{
		event.TypeGateAcquired,
		event.TypeMailboxWrite,
		event.TypeMailboxRead,
		event.TypeMailboxRead,
		event.TypeGateReleased,
		event.TypeGateClosed,
	}
	got := rec.snapshot()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

// TestServerMetricsIntegration drives the device through protocol clients and
// checks the contention shows up in the exported metrics.
func TestServerMetricsIntegration(t *testing.T) {
	bus := event.NewBus()
	dev, err := device.New(100, device.WithBus(bus))
	if err != nil {
		t.Fatal(err)
	}

	reg := prometheus.NewRegistry()
	col, err := metrics.NewCollector(reg)
	if err != nil {
		t.Fatal(err)
	}
	col.Attach(bus)
	if err := metrics.RegisterGateGauges(reg, dev.Gate()); err != nil {
		t.Fatal(err)
	}

	srv := server.New(dev)
	a, _ := connect(t, srv)
	b, _ := connect(t, srv)
	c, cConn := connect(t, srv)

	if _, err := a.Open(true); err != nil {
		t.Fatalf("a.Open() error: %v", err)
	}
	if _, err := b.Open(true); !errors.Is(err, syscall.EAGAIN) {
		t.Fatalf("b.Open() = %v, want EAGAIN", err)
	}

	// c waits, then hangs up while waiting
	waitErr := make(chan error, 1)
	go func() {
		_, err := c.Open(false)
		waitErr <- err
	}()
	testutil.WaitFor(t, 2*time.Second, func() bool { return dev.Gate().Waiting() == 1 })
	cConn.Close()
	if err := testutil.RecvErr(t, waitErr, 2*time.Second); err == nil {
		t.Error("c.Open() should fail once its connection is gone")
	}
	testutil.WaitFor(t, 2*time.Second, func() bool { return dev.Gate().Waiting() == 0 })

	if _, err := a.Write("hello"); err != nil {
		t.Fatal(err)
	}
	if err := a.CloseDevice(); err != nil {
		t.Fatal(err)
	}

	// b retries and reads what a left behind
	if _, err := b.Open(false); err != nil {
		t.Fatalf("b.Open() retry error: %v", err)
	}
	data, err := b.Read(server.DefaultReadSize)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "Last input: hello\n" {
		t.Errorf("b.Read() = %q", data)
	}
	if err := b.CloseDevice(); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		want float64
	}{
		{name: "sleepgate_gate_acquired_total", want: 2},
		{name: "sleepgate_gate_busy_total", want: 1},
		{name: "sleepgate_gate_cancelled_total", want: 1},
		{name: "sleepgate_gate_released_total", want: 2},
		{name: "sleepgate_mailbox_written_bytes_total", want: 5},
		{name: "sleepgate_mailbox_reads_total", want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := counterValue(t, reg, tt.name); got != tt.want {
				t.Errorf("%s = %v, want %v", tt.name, got, tt.want)
			}
		})
	}

	stats := dev.Gate().Stats()
	if stats.Held || stats.Granted != 2 || stats.Cancelled != 1 {
		t.Errorf("Stats() = %+v", stats)
	}
}

// TestServeShutdownIntegration verifies that stopping the server releases a
// device held by a connected client.
func TestServeShutdownIntegration(t *testing.T) {
	dev, err := device.New(100)
	if err != nil {
		t.Fatal(err)
	}
	srv := server.New(dev)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- srv.Serve(ctx, ln) }()

	c, err := server.Dial(context.Background(), "tcp", ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Abort()
	if _, err := c.Open(true); err != nil {
		t.Fatal(err)
	}
	if !dev.Gate().Stats().Held {
		t.Fatal("device should be held")
	}

	cancel()
	if err := testutil.RecvErr(t, served, 2*time.Second); err != nil {
		t.Errorf("Serve() = %v, want nil after cancel", err)
	}
	if dev.Gate().Stats().Held {
		t.Error("device should be released after shutdown")
	}
}
