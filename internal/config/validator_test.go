package config

import (
	"strings"
	"testing"
	"time"
)

func TestValidationError_Error(t *testing.T) {
	err := ValidationError{
		Field:   "mailbox.capacity",
		Value:   0,
		Message: "must be positive",
	}

	expected := "mailbox.capacity: must be positive (got: 0)"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestValidationErrors_Error(t *testing.T) {
	t.Run("empty errors", func(t *testing.T) {
		var errs ValidationErrors
		if errs.Error() != "" {
			t.Errorf("Error() for empty = %q, want empty string", errs.Error())
		}
	})

	t.Run("single error", func(t *testing.T) {
		errs := ValidationErrors{
			{Field: "test.field", Value: 123, Message: "is invalid"},
		}
		expected := "test.field: is invalid (got: 123)"
		if errs.Error() != expected {
			t.Errorf("Error() = %q, want %q", errs.Error(), expected)
		}
	})

	t.Run("multiple errors", func(t *testing.T) {
		errs := ValidationErrors{
			{Field: "field1", Value: "bad", Message: "is invalid"},
			{Field: "field2", Value: -1, Message: "must be positive"},
		}
		result := errs.Error()
		if !strings.Contains(result, "2 validation errors") {
			t.Errorf("Error() should mention 2 errors: %s", result)
		}
		if !strings.Contains(result, "field1") || !strings.Contains(result, "field2") {
			t.Errorf("Error() should mention both fields: %s", result)
		}
	})
}

func TestConfig_Validate_DefaultConfig(t *testing.T) {
	cfg := Default()
	errs := cfg.Validate()
	if len(errs) != 0 {
		t.Errorf("Default config should be valid, got %d errors: %v", len(errs), errs)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		field  string
	}{
		{"zero capacity", func(c *Config) { c.Mailbox.Capacity = 0 }, "mailbox.capacity"},
		{"negative capacity", func(c *Config) { c.Mailbox.Capacity = -1 }, "mailbox.capacity"},
		{"excessive capacity", func(c *Config) { c.Mailbox.Capacity = MaxMailboxCapacity + 1 }, "mailbox.capacity"},
		{"max capacity", func(c *Config) { c.Mailbox.Capacity = MaxMailboxCapacity }, ""},
		{"unknown log level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
		{"upper-case log level", func(c *Config) { c.Logging.Level = "DEBUG" }, "logging.level"},
		{"empty log level", func(c *Config) { c.Logging.Level = "" }, ""},
		{"bad network", func(c *Config) { c.Server.Network = "udp" }, "server.network"},
		{"tcp network", func(c *Config) { c.Server = ServerConfig{Network: "tcp", Address: "127.0.0.1:7000"} }, ""},
		{"empty address", func(c *Config) { c.Server.Address = "  " }, "server.address"},
		{"negative idle timeout", func(c *Config) { c.Server.IdleTimeout = -time.Second }, "server.idle_timeout"},
		{"metrics without address", func(c *Config) { c.Metrics = MetricsConfig{Enabled: true} }, "metrics.address"},
		{"disabled metrics without address", func(c *Config) { c.Metrics.Address = "" }, ""},
		{"zero sessions", func(c *Config) { c.Simulate.Sessions = 0 }, "simulate.sessions"},
		{"too many sessions", func(c *Config) { c.Simulate.Sessions = MaxSimulateSessions + 1 }, "simulate.sessions"},
		{"negative hold", func(c *Config) { c.Simulate.Hold = -time.Millisecond }, "simulate.hold"},
		{"zero hold", func(c *Config) { c.Simulate.Hold = 0 }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			errs := cfg.Validate()

			if tt.field == "" {
				if len(errs) != 0 {
					t.Errorf("Validate() = %v, want no errors", errs)
				}
				return
			}

			found := false
			for _, err := range errs {
				if err.Field == tt.field {
					found = true
					break
				}
			}
			if !found {
				t.Errorf("Validate() = %v, want an error for %s", errs, tt.field)
			}
		})
	}
}
