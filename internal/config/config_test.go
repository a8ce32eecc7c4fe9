package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

// resetViper gives each test a clean global viper with defaults registered.
func resetViper(t *testing.T) {
	t.Helper()

	viper.Reset()
	SetDefaults()
	t.Cleanup(viper.Reset)
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg == nil {
		t.Fatal("Default() returned nil")
	}

	if cfg.Mailbox.Capacity != 100 {
		t.Errorf("Mailbox.Capacity = %d, want 100", cfg.Mailbox.Capacity)
	}
	if !cfg.Gate.LogContention {
		t.Error("Gate.LogContention should be true by default")
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "info")
	}
	if cfg.Logging.File != "" {
		t.Errorf("Logging.File = %q, want stderr (empty)", cfg.Logging.File)
	}

	if cfg.Server.Network != "unix" {
		t.Errorf("Server.Network = %q, want unix", cfg.Server.Network)
	}
	if cfg.Server.Address != filepath.Join(os.TempDir(), "sleepgate.sock") {
		t.Errorf("Server.Address = %q", cfg.Server.Address)
	}
	if cfg.Server.IdleTimeout != 0 {
		t.Errorf("Server.IdleTimeout = %v, want 0", cfg.Server.IdleTimeout)
	}

	if cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled should be false by default")
	}
	if cfg.Metrics.Address != ":9464" {
		t.Errorf("Metrics.Address = %q, want :9464", cfg.Metrics.Address)
	}

	if cfg.Simulate.Sessions != 8 {
		t.Errorf("Simulate.Sessions = %d, want 8", cfg.Simulate.Sessions)
	}
	if !cfg.Simulate.Blocking {
		t.Error("Simulate.Blocking should be true by default")
	}
	if cfg.Simulate.Hold != 50*time.Millisecond {
		t.Errorf("Simulate.Hold = %v, want 50ms", cfg.Simulate.Hold)
	}
	if cfg.Simulate.Message != "hello" {
		t.Errorf("Simulate.Message = %q, want hello", cfg.Simulate.Message)
	}
}

func TestLoad_Defaults(t *testing.T) {
	resetViper(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if *cfg != *Default() {
		t.Errorf("Load() = %+v, want defaults %+v", cfg, Default())
	}
}

func TestLoad_Overrides(t *testing.T) {
	resetViper(t)
	viper.Set("mailbox.capacity", 256)
	viper.Set("server.idle_timeout", "2s")
	viper.Set("simulate.hold", "10ms")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Mailbox.Capacity != 256 {
		t.Errorf("Mailbox.Capacity = %d, want 256", cfg.Mailbox.Capacity)
	}
	if cfg.Server.IdleTimeout != 2*time.Second {
		t.Errorf("Server.IdleTimeout = %v, want 2s", cfg.Server.IdleTimeout)
	}
	if cfg.Simulate.Hold != 10*time.Millisecond {
		t.Errorf("Simulate.Hold = %v, want 10ms", cfg.Simulate.Hold)
	}
}

func TestLoad_Invalid(t *testing.T) {
	resetViper(t)
	viper.Set("mailbox.capacity", 0)

	_, err := Load()
	if err == nil {
		t.Fatal("Load() should fail for zero capacity")
	}
	var verrs ValidationErrors
	if !asValidationErrors(err, &verrs) || verrs[0].Field != "mailbox.capacity" {
		t.Errorf("Load() error = %v, want a mailbox.capacity validation error", err)
	}

	if got := Get(); got.Mailbox.Capacity != 100 {
		t.Errorf("Get() capacity = %d, want fallback to default 100", got.Mailbox.Capacity)
	}
}

func asValidationErrors(err error, target *ValidationErrors) bool {
	verrs, ok := err.(ValidationErrors)
	if ok {
		*target = verrs
	}
	return ok
}

func TestConfigDir(t *testing.T) {
	t.Run("XDG_CONFIG_HOME", func(t *testing.T) {
		xdg := t.TempDir()
		t.Setenv("XDG_CONFIG_HOME", xdg)

		if got := ConfigDir(); got != filepath.Join(xdg, "sleepgate") {
			t.Errorf("ConfigDir() = %q, want %q", got, filepath.Join(xdg, "sleepgate"))
		}
		if got := ConfigFile(); got != filepath.Join(xdg, "sleepgate", "config.yaml") {
			t.Errorf("ConfigFile() = %q", got)
		}
	})

	t.Run("home fallback", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "")
		home := t.TempDir()
		t.Setenv("HOME", home)

		if got := ConfigDir(); got != filepath.Join(home, ".config", "sleepgate") {
			t.Errorf("ConfigDir() = %q", got)
		}
	})
}

func TestMarshal_ReadableByViper(t *testing.T) {
	resetViper(t)

	cfg := Default()
	cfg.Mailbox.Capacity = 42
	cfg.Server.IdleTimeout = 90 * time.Second
	cfg.Simulate.Message = "custom"

	data, err := cfg.Marshal()
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	if !strings.Contains(string(data), "idle_timeout: 1m30s") {
		t.Errorf("Marshal() should write durations in Go notation:\n%s", data)
	}

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		t.Fatalf("ReadInConfig() error: %v", err)
	}

	loaded, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if *loaded != *cfg {
		t.Errorf("Load() = %+v, want %+v", loaded, cfg)
	}
}
