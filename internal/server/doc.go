// Package server serves a device over a line-oriented stream protocol.
//
// Each connection is one client. The client opens the device, uses it and
// closes it, possibly several times over the life of the connection:
//
//	OPEN BLOCK | OPEN NONBLOCK   -> OK <session-id> | ERR <ERRNO> <message>
//	WRITE <text>                 -> OK <bytes-stored>
//	READ [n]                     -> DATA <len>\n<bytes> | EOF
//	CLOSE                        -> OK
//	STAT                         -> STAT held=<bool> holder=<id> waiters=<n> ...
//	QUIT                         -> connection closed
//
// Commands are case-insensitive; WRITE keeps the rest of the line verbatim.
// A client should wait for the reply to OPEN before sending more commands;
// one that queues more than MaxPipelined commands behind a pending command
// is disconnected.
//
// Dropping the connection while an OPEN BLOCK is pending abandons the wait,
// the analogue of a signal interrupting a blocked open. Dropping it while
// the device is open releases the device.
package server
