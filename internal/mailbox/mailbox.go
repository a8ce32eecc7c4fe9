package mailbox

import "fmt"

// DefaultCapacity is the message capacity used when none is configured.
const DefaultCapacity = 100

// Mailbox is a one-shot message slot with a fixed capacity.
type Mailbox struct {
	buf    []byte
	n      int
	unread bool
}

// New creates an empty Mailbox holding at most capacity bytes.
func New(capacity int) (*Mailbox, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("mailbox capacity must be positive, got %d", capacity)
	}
	return &Mailbox{buf: make([]byte, capacity)}, nil
}

// Write replaces the message with the first Capacity bytes of data and
// returns how many bytes were stored. Excess input is dropped silently; a
// result smaller than len(data) is the only sign of truncation.
//
// A non-empty write marks the message unread. An empty write clears the
// message, leaving nothing to read.
func (m *Mailbox) Write(data []byte) int {
	m.n = copy(m.buf, data)
	m.unread = m.n > 0
	return m.n
}

// WriteString is like Write but takes a string.
func (m *Mailbox) WriteString(s string) int {
	m.n = copy(m.buf, s)
	m.unread = m.n > 0
	return m.n
}

// Read returns up to max bytes of the unread message and marks it consumed.
// With nothing unread it returns an empty slice and changes nothing. A max
// of zero or less also returns an empty slice without consuming the message.
//
// The returned slice is a copy owned by the caller.
func (m *Mailbox) Read(max int) []byte {
	if !m.unread || max <= 0 {
		return []byte{}
	}

	n := min(max, m.n)
	out := make([]byte, n)
	copy(out, m.buf[:n])
	m.unread = false
	return out
}

// Unread reports whether a message is waiting to be read.
func (m *Mailbox) Unread() bool {
	return m.unread
}

// Len returns the length of the stored message, read or not.
func (m *Mailbox) Len() int {
	return m.n
}

// Capacity returns the maximum message length.
func (m *Mailbox) Capacity() int {
	return len(m.buf)
}

// Peek returns a copy of the stored message without consuming it.
func (m *Mailbox) Peek() []byte {
	out := make([]byte, m.n)
	copy(out, m.buf[:m.n])
	return out
}
