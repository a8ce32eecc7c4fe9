package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Iron-Ham/sleepgate/internal/errors"
	"github.com/Iron-Ham/sleepgate/internal/event"
	"github.com/Iron-Ham/sleepgate/internal/gate"
	"github.com/Iron-Ham/sleepgate/internal/logging"
	"github.com/Iron-Ham/sleepgate/internal/mailbox"
)

// Session is one caller's transient right to use the gated mailbox.
// Its methods are safe for concurrent use, so a supervisor may Close a
// session while its owner is between operations.
type Session struct {
	id       string
	blocking bool
	gate     *gate.Gate
	mailbox  *mailbox.Mailbox
	logger   *logging.Logger
	bus      *event.Bus

	mu       sync.Mutex
	state    State
	openedAt time.Time
}

// Open creates a session and acquires g for it. With blocking set the call
// waits for the gate until ctx ends; otherwise it fails immediately with an
// error wrapping errors.ErrBusy if the gate is held.
//
// On failure no session is returned and the gate is unchanged.
func Open(ctx context.Context, g *gate.Gate, mb *mailbox.Mailbox, blocking bool, opts ...Option) (*Session, error) {
	s := &Session{
		blocking: blocking,
		gate:     g,
		mailbox:  mb,
		logger:   logging.NopLogger(),
		state:    Requesting,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.id == "" {
		s.id = GenerateID()
	}
	s.logger = s.logger.WithSession(s.id)

	var err error
	if blocking {
		err = g.Acquire(ctx, s.id)
	} else {
		err = g.TryAcquire(s.id)
	}
	if err != nil {
		s.state = Cancelled
		s.logger.Debug("session open failed", "blocking", blocking, "error", err)
		return nil, fmt.Errorf("open session %s: %w", s.id, err)
	}

	s.state = Holding
	s.openedAt = time.Now()
	s.logger.Debug("session opened", "blocking", blocking)
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Blocking reports whether the session was opened in blocking mode.
func (s *Session) Blocking() bool {
	return s.blocking
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// checkHoldingLocked returns an error unless the session holds the gate.
// The caller must hold s.mu.
func (s *Session) checkHoldingLocked(op string) error {
	if s.state == Holding && s.gate.IsHeldBy(s.id) {
		return nil
	}
	s.logger.Warn("mailbox access without gate", "op", op, "state", s.state.String())
	return fmt.Errorf("%s in state %s: %w", op, s.state, errors.ErrNotHeld)
}

// Write overwrites the mailbox with data, truncated to the mailbox capacity,
// and returns the number of bytes stored.
func (s *Session) Write(data []byte) (int, error) {
	s.mu.Lock()
	if err := s.checkHoldingLocked("write"); err != nil {
		s.mu.Unlock()
		return 0, err
	}
	n := s.mailbox.Write(data)
	s.mu.Unlock()

	truncated := n < len(data)
	s.logger.Debug("mailbox written", "bytes", n, "truncated", truncated)
	s.bus.Publish(event.NewMailboxWrittenEvent(s.id, n, truncated))
	return n, nil
}

// Read returns up to max bytes of the unread mailbox message. An empty
// result means end-of-data.
func (s *Session) Read(max int) ([]byte, error) {
	s.mu.Lock()
	if err := s.checkHoldingLocked("read"); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	data := s.mailbox.Read(max)
	s.mu.Unlock()

	s.logger.Debug("mailbox read", "bytes", len(data), "eof", len(data) == 0)
	s.bus.Publish(event.NewMailboxReadEvent(s.id, len(data), len(data) == 0))
	return data, nil
}

// Close releases the gate and moves the session to Released. Only the first
// Close of a holding session releases; later calls return an error wrapping
// errors.ErrSessionClosed and leave the gate alone.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case Holding:
	case Released:
		return fmt.Errorf("close session %s: %w", s.id, errors.ErrSessionClosed)
	default:
		return fmt.Errorf("close session %s in state %s: %w", s.id, s.state, errors.ErrNotHeld)
	}

	// Released even if the gate rejects the release: ownership cannot come back.
	s.state = Released
	if err := s.gate.Release(s.id); err != nil {
		return fmt.Errorf("close session %s: %w", s.id, err)
	}
	s.logger.Debug("session closed", "held", time.Since(s.openedAt))
	return nil
}

// Do opens a session, runs fn with it, and closes the session on every exit
// path. A panic in fn is re-raised after the gate is released. The returned
// error joins fn's error with any close error.
func Do(ctx context.Context, g *gate.Gate, mb *mailbox.Mailbox, blocking bool, fn func(*Session) error, opts ...Option) (err error) {
	s, err := Open(ctx, g, mb, blocking, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := s.Close(); closeErr != nil {
			err = errors.Join(err, closeErr)
		}
	}()
	return fn(s)
}
