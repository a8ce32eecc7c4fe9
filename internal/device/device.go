package device

import (
	"context"
	"fmt"
	"io"
	"sync"
	"syscall"

	"github.com/Iron-Ham/sleepgate/internal/errors"
	"github.com/Iron-Ham/sleepgate/internal/event"
	"github.com/Iron-Ham/sleepgate/internal/gate"
	"github.com/Iron-Ham/sleepgate/internal/logging"
	"github.com/Iron-Ham/sleepgate/internal/mailbox"
	"github.com/Iron-Ham/sleepgate/internal/session"
)

// DefaultName is the device name used in errors and logs.
const DefaultName = "sleepgate"

// framePrefix precedes the mailbox contents on every framed read.
const framePrefix = "Last input: "

// Device is a single-open resource backed by a gate and a mailbox.
type Device struct {
	name          string
	gate          *gate.Gate
	mailbox       *mailbox.Mailbox
	logger        *logging.Logger
	bus           *event.Bus
	logContention bool

	mu    sync.Mutex
	files map[*File]struct{}
}

// Option configures a Device.
type Option func(*Device)

// WithName sets the name reported in errors.
func WithName(name string) Option {
	return func(d *Device) {
		if name != "" {
			d.name = name
		}
	}
}

// WithLogger sets the logger shared by the device, its gate and its files.
func WithLogger(logger *logging.Logger) Option {
	return func(d *Device) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithBus sets the event bus for gate and mailbox events.
func WithBus(bus *event.Bus) Option {
	return func(d *Device) {
		d.bus = bus
	}
}

// WithContentionLogging toggles debug logs for busy and waiting opens.
func WithContentionLogging(enabled bool) Option {
	return func(d *Device) {
		d.logContention = enabled
	}
}

// New creates a device whose mailbox holds capacity bytes.
func New(capacity int, opts ...Option) (*Device, error) {
	d := &Device{
		name:          DefaultName,
		logger:        logging.NopLogger(),
		logContention: true,
		files:         make(map[*File]struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}

	mb, err := mailbox.New(capacity)
	if err != nil {
		return nil, fmt.Errorf("create device %s: %w", d.name, err)
	}
	d.mailbox = mb
	d.gate = gate.New(
		gate.WithLogger(d.logger),
		gate.WithBus(d.bus),
		gate.WithContentionLogging(d.logContention),
	)
	d.logger = d.logger.WithComponent("device")
	return d, nil
}

// Name returns the device name.
func (d *Device) Name() string {
	return d.name
}

// Gate returns the gate guarding the device.
func (d *Device) Gate() *gate.Gate {
	return d.gate
}

// Capacity returns the mailbox capacity in bytes.
func (d *Device) Capacity() int {
	return d.mailbox.Capacity()
}

// Open acquires the device. With nonblock set it fails at once if the device
// is already open; otherwise it waits until the device is free or ctx ends.
// Errors are *OpError values carrying the matching errno.
func (d *Device) Open(ctx context.Context, nonblock bool) (*File, error) {
	s, err := session.Open(ctx, d.gate, d.mailbox, !nonblock,
		session.WithLogger(d.logger),
		session.WithBus(d.bus),
	)
	if err != nil {
		return nil, d.opError("open", err)
	}

	f := &File{dev: d, sess: s}
	d.mu.Lock()
	d.files[f] = struct{}{}
	d.mu.Unlock()
	return f, nil
}

// Close tears the device down. Pending opens fail with EINTR, later opens
// fail with ENODEV, and a File that is still open keeps working until it is
// closed. Close returns the number of pending opens it cancelled.
func (d *Device) Close() int {
	cancelled := d.gate.Close()

	d.mu.Lock()
	open := len(d.files)
	d.mu.Unlock()

	d.logger.Info("device closed", "cancelled_opens", cancelled, "open_files", open)
	return cancelled
}

func (d *Device) forget(f *File) {
	d.mu.Lock()
	delete(d.files, f)
	d.mu.Unlock()
}

func (d *Device) opError(op string, err error) error {
	errno, ok := errors.Errno(err)
	if !ok {
		errno = syscall.EIO
	}
	return &OpError{Op: op, Device: d.name, Errno: errno, Err: err}
}

// File is an open handle on a Device. It holds the device's gate from Open
// until Close. A File must not be used after Close.
type File struct {
	dev  *Device
	sess *session.Session
}

// ID returns the session identifier that owns the gate for this file.
func (f *File) ID() string {
	return f.sess.ID()
}

// Write stores p in the mailbox, truncated to the device capacity, and
// returns the number of bytes kept. Truncation is not an error, so a short
// count with a nil error means the tail of p was dropped.
func (f *File) Write(p []byte) (int, error) {
	n, err := f.sess.Write(p)
	if err != nil {
		return 0, f.dev.opError("write", err)
	}
	return n, nil
}

// Read copies the framed message into p. It returns io.EOF once the message
// has been delivered; a write makes the next Read return data again.
// A message longer than p is cut short and the remainder is lost.
func (f *File) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	msg, err := f.sess.Read(f.dev.mailbox.Capacity())
	if err != nil {
		return 0, f.dev.opError("read", err)
	}
	if len(msg) == 0 {
		return 0, io.EOF
	}
	framed := make([]byte, 0, len(framePrefix)+len(msg)+1)
	framed = append(framed, framePrefix...)
	framed = append(framed, msg...)
	framed = append(framed, '\n')
	return copy(p, framed), nil
}

// Close releases the device. A second Close returns an error.
func (f *File) Close() error {
	defer f.dev.forget(f)
	if err := f.sess.Close(); err != nil {
		return f.dev.opError("close", err)
	}
	return nil
}

// OpError describes a failed device operation and the errno it maps to.
// It matches both its Errno and the underlying cause with errors.Is.
type OpError struct {
	Op     string
	Device string
	Errno  syscall.Errno
	Err    error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s %s: %s: %v", e.Op, e.Device, errors.ErrnoName(e.Err), e.Err)
}

// Unwrap returns the errno and the underlying cause.
func (e *OpError) Unwrap() []error {
	return []error{e.Errno, e.Err}
}
