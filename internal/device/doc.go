// Package device exposes the gated mailbox through a file-like interface.
//
// A [Device] owns one [gate.Gate] and one [mailbox.Mailbox]. [Device.Open]
// returns a [File] that holds the gate until it is closed, so at most one
// File is open at any moment. Opening in non-blocking mode fails with an
// error matching syscall.EAGAIN when another File is open; a blocking open
// suspends until the device is free or its context ends, in which case the
// error matches syscall.EINTR.
//
// Reads are framed: the first Read after a Write returns
//
//	Last input: <message>\n
//
// truncated to the caller's buffer, and the following Read returns io.EOF
// until the mailbox is written again.
package device
