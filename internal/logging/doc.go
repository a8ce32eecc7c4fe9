// Package logging provides structured logging for sleepgate.
//
// This package wraps Go's log/slog to emit JSON-formatted records. Child
// loggers carry persistent attributes so that every record emitted by a gate,
// session or connection can be filtered after the fact.
//
// # Basic Usage
//
//	logger, err := logging.NewLogger("/var/log/sleepgate.log", "INFO")
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	gateLog := logger.WithComponent("gate")
//	gateLog.WithSession("s-1").Debug("acquired", "blocking", true)
//
// An empty path logs to stderr. [NopLogger] discards everything and is meant
// for tests.
//
// # Thread Safety
//
// All types in this package are safe for concurrent use.
package logging
