// Package mailbox provides a one-shot, overwritable message slot.
//
// A [Mailbox] holds at most one message of at most Capacity bytes. Every
// Write replaces the message, whether or not the previous one was read. A
// Read delivers the current message once and then reports end-of-data (a
// zero-length result) until the next Write.
//
// Reads are single-shot rather than streaming: a Read with a limit shorter
// than the message returns a prefix and the rest is discarded. Callers that
// need the whole message read with a limit of at least [Mailbox.Capacity].
//
// # Thread Safety
//
// A Mailbox is not safe for concurrent use. It is meant to be touched only
// by whichever session currently holds the gate guarding it.
package mailbox
