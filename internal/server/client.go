package server

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"syscall"

	"github.com/Iron-Ham/sleepgate/internal/errors"
)

// RemoteError is an ERR reply from the server.
type RemoteError struct {
	Errno   string
	Message string
}

func (e *RemoteError) Error() string {
	return e.Errno + ": " + e.Message
}

// Unwrap returns the errno named in the reply, so callers can test the error
// with errors.Is(err, syscall.EAGAIN) and friends.
func (e *RemoteError) Unwrap() error {
	switch e.Errno {
	case "EAGAIN":
		return syscall.EAGAIN
	case "EINTR":
		return syscall.EINTR
	case "EBADF":
		return syscall.EBADF
	case "ENODEV":
		return syscall.ENODEV
	case "EINVAL":
		return syscall.EINVAL
	default:
		return syscall.EIO
	}
}

// Client speaks the line protocol. It is not safe for concurrent use.
type Client struct {
	conn net.Conn
	r    *bufio.Reader
	w    *bufio.Writer
}

// Dial connects to a server.
func Dial(ctx context.Context, network, address string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, network, address)
	if err != nil {
		return nil, fmt.Errorf("dial %s %s: %w", network, address, err)
	}
	return NewClient(conn), nil
}

// NewClient wraps an established connection.
func NewClient(conn net.Conn) *Client {
	return &Client{
		conn: conn,
		r:    bufio.NewReader(conn),
		w:    bufio.NewWriter(conn),
	}
}

// Open opens the remote device and returns the session ID. A blocking open
// waits on the server; closing the client abandons it.
func (c *Client) Open(nonblock bool) (string, error) {
	mode := "BLOCK"
	if nonblock {
		mode = "NONBLOCK"
	}
	reply, err := c.call("OPEN " + mode)
	if err != nil {
		return "", err
	}
	return strings.TrimPrefix(reply, "OK "), nil
}

// Write stores msg and returns the number of bytes the device kept.
// msg must not contain a newline.
func (c *Client) Write(msg string) (int, error) {
	if strings.ContainsAny(msg, "\r\n") {
		return 0, errors.Wrap(errors.ErrInvalidInput, "message contains a line break")
	}
	reply, err := c.call("WRITE " + msg)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimPrefix(reply, "OK "))
	if err != nil {
		return 0, fmt.Errorf("malformed WRITE reply %q", reply)
	}
	return n, nil
}

// Read reads up to max bytes of framed data. It returns io.EOF when the
// device has nothing new.
func (c *Client) Read(max int) ([]byte, error) {
	reply, err := c.call("READ " + strconv.Itoa(max))
	if err != nil {
		return nil, err
	}
	if reply == "EOF" {
		return nil, io.EOF
	}
	n, err := strconv.Atoi(strings.TrimPrefix(reply, "DATA "))
	if !strings.HasPrefix(reply, "DATA ") || err != nil || n < 0 {
		return nil, fmt.Errorf("malformed READ reply %q", reply)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(c.r, buf); err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	return buf, nil
}

// CloseDevice releases the remote device and keeps the connection open.
func (c *Client) CloseDevice() error {
	_, err := c.call("CLOSE")
	return err
}

// Stat returns the server's STAT line without its prefix.
func (c *Client) Stat() (string, error) {
	reply, err := c.call("STAT")
	if err != nil {
		return "", err
	}
	return strings.TrimPrefix(reply, "STAT "), nil
}

// Close ends the connection. The server releases anything it still holds.
func (c *Client) Close() error {
	c.w.WriteString("QUIT\n") //nolint:errcheck
	c.w.Flush()               //nolint:errcheck
	return c.conn.Close()
}

// Abort closes the connection without a goodbye. It is safe to call from
// another goroutine, e.g. to interrupt a blocking Open.
func (c *Client) Abort() error {
	return c.conn.Close()
}

func (c *Client) call(line string) (string, error) {
	if _, err := c.w.WriteString(line + "\n"); err != nil {
		return "", fmt.Errorf("send: %w", err)
	}
	if err := c.w.Flush(); err != nil {
		return "", fmt.Errorf("send: %w", err)
	}

	reply, err := c.r.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("receive: %w", err)
	}
	reply = strings.TrimRight(reply, "\r\n")

	if rest, ok := strings.CutPrefix(reply, "ERR "); ok {
		errno, msg, _ := strings.Cut(rest, " ")
		return "", &RemoteError{Errno: errno, Message: msg}
	}
	return reply, nil
}
