package server

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/Iron-Ham/sleepgate/internal/device"
	"github.com/Iron-Ham/sleepgate/internal/errors"
	"github.com/Iron-Ham/sleepgate/internal/logging"
)

const (
	// DefaultReadSize is the buffer size for a READ without an explicit size.
	DefaultReadSize = 4096

	// MaxReadSize caps the size a client may ask for in one READ.
	MaxReadSize = 1 << 16

	// maxLineLength bounds a single protocol line.
	maxLineLength = 1 << 20

	// MaxPipelined is how many commands a connection may queue behind one
	// that is still running, such as a pending OPEN BLOCK. A client that
	// exceeds it is disconnected.
	MaxPipelined = 16
)

var (
	// ErrDisconnected is the context cause when a client goes away.
	ErrDisconnected = errors.New("client disconnected")

	// ErrTooManyPipelined is the context cause when a client queues more than
	// MaxPipelined commands. It wraps ErrDisconnected.
	ErrTooManyPipelined = fmt.Errorf("%w: more than %d pipelined commands", ErrDisconnected, MaxPipelined)
)

// Server accepts protocol connections for a single device.
type Server struct {
	dev         *device.Device
	logger      *logging.Logger
	idleTimeout time.Duration

	nextID atomic.Uint64

	mu    sync.Mutex
	conns map[uint64]net.Conn
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *logging.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithIdleTimeout closes connections that send nothing for d.
// Zero disables the timeout.
func WithIdleTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.idleTimeout = d
	}
}

// New creates a server for dev.
func New(dev *device.Device, opts ...Option) *Server {
	s := &Server{
		dev:    dev,
		logger: logging.NopLogger(),
		conns:  make(map[uint64]net.Conn),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent("server")
	return s
}

// Listen opens a listener on network and address. A stale unix socket file
// at address is removed first.
func Listen(network, address string) (net.Listener, error) {
	if network == "unix" {
		if err := os.Remove(address); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("remove stale socket %s: %w", address, err)
		}
	}
	ln, err := net.Listen(network, address)
	if err != nil {
		return nil, fmt.Errorf("listen %s %s: %w", network, address, err)
	}
	return ln, nil
}

// ListenAndServe listens on network and address and serves until ctx ends.
func (s *Server) ListenAndServe(ctx context.Context, network, address string) error {
	ln, err := Listen(network, address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx ends or ln fails. It closes ln
// and waits for every connection handler before returning.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)

	var wg conc.WaitGroup
	defer wg.Wait()
	defer cancel()

	stop := context.AfterFunc(ctx, func() {
		ln.Close()
	})
	defer stop()

	s.logger.Info("server listening", "network", ln.Addr().Network(), "address", ln.Addr().String())

	for {
		nc, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.logger.Info("server stopped")
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		wg.Go(func() {
			s.ServeConn(ctx, nc)
		})
	}
}

// ActiveConns returns the number of connections being served.
func (s *Server) ActiveConns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// ServeConn runs the protocol on nc until the client quits, disconnects or
// ctx ends. It closes nc and releases the device if the client left it open.
func (s *Server) ServeConn(ctx context.Context, nc net.Conn) {
	id := s.nextID.Add(1)
	s.track(id, nc)
	defer s.untrack(id)

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	c := &conn{
		srv:    s,
		nc:     nc,
		w:      bufio.NewWriter(nc),
		logger: s.logger.With("conn", id, "remote", nc.RemoteAddr().String()),
	}
	c.logger.Debug("client connected")

	lines := make(chan string, MaxPipelined)
	var wg conc.WaitGroup
	wg.Go(func() {
		c.readLines(ctx, lines, cancel)
	})

	defer func() {
		c.release()
		nc.Close()
		wg.Wait()
		c.logger.Debug("client disconnected", "cause", context.Cause(ctx))
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if !c.handle(ctx, line) {
				return
			}
		}
	}
}

func (s *Server) track(id uint64, nc net.Conn) {
	s.mu.Lock()
	s.conns[id] = nc
	s.mu.Unlock()
}

func (s *Server) untrack(id uint64) {
	s.mu.Lock()
	delete(s.conns, id)
	s.mu.Unlock()
}

// conn is the per-connection protocol state. Only the ServeConn goroutine
// touches file and w.
type conn struct {
	srv    *Server
	nc     net.Conn
	w      *bufio.Writer
	logger *logging.Logger
	file   *device.File
}

// readLines feeds lines from the connection to the handler and cancels ctx
// with ErrDisconnected when the connection fails or times out, or with
// ErrTooManyPipelined when the handler falls MaxPipelined lines behind.
func (c *conn) readLines(ctx context.Context, lines chan<- string, cancel context.CancelCauseFunc) {
	defer close(lines)

	scanner := bufio.NewScanner(c.nc)
	scanner.Buffer(make([]byte, 0, 4096), maxLineLength)
	for {
		if c.srv.idleTimeout > 0 {
			c.nc.SetReadDeadline(time.Now().Add(c.srv.idleTimeout)) //nolint:errcheck
		}
		if !scanner.Scan() {
			cause := ErrDisconnected
			if err := scanner.Err(); err != nil {
				cause = fmt.Errorf("%w: %w", ErrDisconnected, err)
			}
			cancel(cause)
			return
		}
		if ctx.Err() != nil {
			return
		}
		// The reader must never block: it is the only thing watching for the
		// client going away while a command is pending.
		select {
		case lines <- strings.TrimRight(scanner.Text(), "\r"):
		default:
			cancel(ErrTooManyPipelined)
			c.nc.Close()
			return
		}
	}
}

// handle runs one command and reports whether the connection should stay up.
func (c *conn) handle(ctx context.Context, line string) bool {
	verb, arg, _ := strings.Cut(line, " ")
	switch strings.ToUpper(verb) {
	case "":
		return true
	case "OPEN":
		return c.open(ctx, arg)
	case "WRITE":
		return c.write(arg)
	case "READ":
		return c.read(arg)
	case "CLOSE":
		return c.close()
	case "STAT":
		return c.stat()
	case "QUIT":
		return false
	default:
		return c.replyErr(errors.Wrapf(errors.ErrInvalidInput, "unknown command %q", verb))
	}
}

func (c *conn) open(ctx context.Context, arg string) bool {
	if c.file != nil {
		return c.replyErr(errors.Wrap(errors.ErrInvalidInput, "device already open on this connection"))
	}

	var nonblock bool
	switch strings.ToUpper(strings.TrimSpace(arg)) {
	case "BLOCK":
	case "NONBLOCK":
		nonblock = true
	default:
		return c.replyErr(errors.Wrapf(errors.ErrInvalidInput, "open mode %q", arg))
	}

	f, err := c.srv.dev.Open(ctx, nonblock)
	if err != nil {
		c.logger.Debug("open failed", "nonblock", nonblock, "error", err)
		return c.replyErr(err)
	}
	c.file = f
	c.logger.Debug("device opened", "session", f.ID(), "nonblock", nonblock)
	return c.reply("OK " + f.ID())
}

func (c *conn) write(arg string) bool {
	if c.file == nil {
		return c.replyErr(errors.Wrap(errors.ErrNotHeld, "write without open"))
	}
	n, err := c.file.Write([]byte(arg))
	if err != nil {
		return c.replyErr(err)
	}
	return c.reply("OK " + strconv.Itoa(n))
}

func (c *conn) read(arg string) bool {
	if c.file == nil {
		return c.replyErr(errors.Wrap(errors.ErrNotHeld, "read without open"))
	}

	size := DefaultReadSize
	if arg = strings.TrimSpace(arg); arg != "" {
		n, err := strconv.Atoi(arg)
		if err != nil || n < 0 {
			return c.replyErr(errors.Wrapf(errors.ErrInvalidInput, "read size %q", arg))
		}
		size = min(n, MaxReadSize)
	}

	buf := make([]byte, size)
	n, err := c.file.Read(buf)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return c.reply("EOF")
		}
		return c.replyErr(err)
	}

	fmt.Fprintf(c.w, "DATA %d\n", n)
	c.w.Write(buf[:n]) //nolint:errcheck
	return c.flush()
}

func (c *conn) close() bool {
	if c.file == nil {
		return c.replyErr(errors.Wrap(errors.ErrNotHeld, "close without open"))
	}
	f := c.file
	c.file = nil
	if err := f.Close(); err != nil {
		return c.replyErr(err)
	}
	c.logger.Debug("device closed", "session", f.ID())
	return c.reply("OK")
}

func (c *conn) stat() bool {
	st := c.srv.dev.Gate().Stats()
	holder := st.Holder
	if holder == "" {
		holder = "-"
	}
	return c.reply(fmt.Sprintf(
		"STAT held=%t holder=%s waiters=%d granted=%d busy=%d cancelled=%d released=%d closed=%t",
		st.Held, holder, st.Waiting, st.Granted, st.Busy, st.Cancelled, st.Released, st.Closed,
	))
}

// release closes a file the client left open.
func (c *conn) release() {
	if c.file == nil {
		return
	}
	f := c.file
	c.file = nil
	if err := f.Close(); err != nil {
		c.logger.Warn("release on disconnect failed", "session", f.ID(), "error", err)
		return
	}
	c.logger.Info("released device held by departed client", "session", f.ID())
}

func (c *conn) reply(line string) bool {
	c.w.WriteString(line) //nolint:errcheck
	c.w.WriteByte('\n')   //nolint:errcheck
	return c.flush()
}

func (c *conn) replyErr(err error) bool {
	msg := strings.ReplaceAll(err.Error(), "\n", " ")
	return c.reply("ERR " + errors.ErrnoName(err) + " " + msg)
}

func (c *conn) flush() bool {
	if err := c.w.Flush(); err != nil {
		c.logger.Debug("write to client failed", "error", err)
		return false
	}
	return true
}
