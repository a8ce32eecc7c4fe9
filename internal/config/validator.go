package config

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "mailbox.capacity")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

const (
	// MaxMailboxCapacity bounds mailbox.capacity
	MaxMailboxCapacity = 1 << 20

	// MaxSimulateSessions bounds simulate.sessions
	MaxSimulateSessions = 10000
)

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// ValidNetworks returns the list of valid server networks
func ValidNetworks() []string {
	return []string{"unix", "tcp"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateMailbox()...)
	errors = append(errors, c.validateLogging()...)
	errors = append(errors, c.validateServer()...)
	errors = append(errors, c.validateMetrics()...)
	errors = append(errors, c.validateSimulate()...)

	return errors
}

func (c *Config) validateMailbox() []ValidationError {
	var errors []ValidationError

	if c.Mailbox.Capacity <= 0 {
		errors = append(errors, ValidationError{
			Field:   "mailbox.capacity",
			Value:   c.Mailbox.Capacity,
			Message: "must be positive",
		})
	} else if c.Mailbox.Capacity > MaxMailboxCapacity {
		errors = append(errors, ValidationError{
			Field:   "mailbox.capacity",
			Value:   c.Mailbox.Capacity,
			Message: fmt.Sprintf("exceeds maximum of %d bytes", MaxMailboxCapacity),
		})
	}

	return errors
}

func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	return errors
}

func (c *Config) validateServer() []ValidationError {
	var errors []ValidationError

	if !slices.Contains(ValidNetworks(), c.Server.Network) {
		errors = append(errors, ValidationError{
			Field:   "server.network",
			Value:   c.Server.Network,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidNetworks(), ", ")),
		})
	}

	if strings.TrimSpace(c.Server.Address) == "" {
		errors = append(errors, ValidationError{
			Field:   "server.address",
			Value:   c.Server.Address,
			Message: "must not be empty",
		})
	}

	if c.Server.IdleTimeout < 0 {
		errors = append(errors, ValidationError{
			Field:   "server.idle_timeout",
			Value:   c.Server.IdleTimeout,
			Message: "must be non-negative",
		})
	}

	return errors
}

func (c *Config) validateMetrics() []ValidationError {
	var errors []ValidationError

	// Address only matters when the endpoint is served
	if c.Metrics.Enabled && strings.TrimSpace(c.Metrics.Address) == "" {
		errors = append(errors, ValidationError{
			Field:   "metrics.address",
			Value:   c.Metrics.Address,
			Message: "must not be empty when metrics are enabled",
		})
	}

	return errors
}

func (c *Config) validateSimulate() []ValidationError {
	var errors []ValidationError

	if c.Simulate.Sessions <= 0 || c.Simulate.Sessions > MaxSimulateSessions {
		errors = append(errors, ValidationError{
			Field:   "simulate.sessions",
			Value:   c.Simulate.Sessions,
			Message: fmt.Sprintf("must be between 1 and %d", MaxSimulateSessions),
		})
	}

	if c.Simulate.Hold < 0 {
		errors = append(errors, ValidationError{
			Field:   "simulate.hold",
			Value:   c.Simulate.Hold,
			Message: "must be non-negative",
		})
	}

	return errors
}
