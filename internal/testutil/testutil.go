// Package testutil provides testing utilities for sleepgate tests.
package testutil

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"
)

// pollInterval is how often WaitFor re-evaluates its condition.
const pollInterval = time.Millisecond

// WaitFor polls cond until it returns true, failing the test if timeout
// elapses first. Use it to wait for another goroutine to reach a state that
// has no channel to signal it, such as a caller suspended on a gate.
func WaitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met within %v", timeout)
		}
		time.Sleep(pollInterval)
	}
}

// RecvErr receives one error from ch, failing the test after timeout.
func RecvErr(t *testing.T, ch <-chan error, timeout time.Duration) error {
	t.Helper()

	select {
	case err := <-ch:
		return err
	case <-time.After(timeout):
		t.Fatalf("no result within %v", timeout)
		return nil
	}
}

// NeverWithin fails the test if ch delivers anything within d.
func NeverWithin[T any](t *testing.T, ch <-chan T, d time.Duration) {
	t.Helper()

	select {
	case v := <-ch:
		t.Fatalf("unexpected value %v within %v", v, d)
	case <-time.After(d):
	}
}

// SkipIfNoGolangciLint skips the test if golangci-lint is not installed.
func SkipIfNoGolangciLint(t *testing.T) {
	t.Helper()

	if _, err := exec.LookPath("golangci-lint"); err != nil {
		t.Skip("golangci-lint not found in PATH, skipping test")
	}
}

// ModuleRoot returns the nearest directory at or above the working directory
// that holds a go.mod.
func ModuleRoot(t *testing.T) string {
	t.Helper()

	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("no go.mod above the working directory")
		}
		dir = parent
	}
}
