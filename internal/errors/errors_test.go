package errors

import (
	"errors"
	"fmt"
	"syscall"
	"testing"
)

// -----------------------------------------------------------------------------
// Severity Tests
// -----------------------------------------------------------------------------

func TestSeverity_String(t *testing.T) {
	tests := []struct {
		severity Severity
		want     string
	}{
		{SeverityDebug, "debug"},
		{SeverityInfo, "info"},
		{SeverityWarning, "warning"},
		{SeverityError, "error"},
		{Severity(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.severity.String(); got != tt.want {
				t.Errorf("Severity.String() = %q, want %q", got, tt.want)
			}
		})
	}
}

// -----------------------------------------------------------------------------
// GateError Tests
// -----------------------------------------------------------------------------

func TestGateError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *GateError
		want string
	}{
		{
			name: "op and cause",
			err:  NewGateError("acquire", ErrBusy),
			want: "gate acquire: gate is busy",
		},
		{
			name: "with owner",
			err:  NewGateError("release", ErrNotOwner).WithOwner("s-2"),
			want: "gate release [owner=s-2]: caller does not hold the gate",
		},
		{
			name: "no cause",
			err:  NewGateError("close", nil),
			want: "gate close",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGateError_Unwrap(t *testing.T) {
	err := fmt.Errorf("open: %w", NewGateError("acquire", ErrCancelled))

	if !errors.Is(err, ErrCancelled) {
		t.Error("errors.Is(err, ErrCancelled) = false, want true")
	}

	var gateErr *GateError
	if !errors.As(err, &gateErr) {
		t.Fatal("errors.As(err, *GateError) = false, want true")
	}
	if gateErr.Op != "acquire" {
		t.Errorf("Op = %q, want %q", gateErr.Op, "acquire")
	}
	if !gateErr.IsRetryable() {
		t.Error("IsRetryable() = false, want true for cancelled acquire")
	}
	if gateErr.Severity() != SeverityInfo {
		t.Errorf("Severity() = %v, want %v", gateErr.Severity(), SeverityInfo)
	}
}

// -----------------------------------------------------------------------------
// Classification Tests
// -----------------------------------------------------------------------------

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"busy", ErrBusy, true},
		{"cancelled", Wrap(ErrCancelled, "open"), true},
		{"cancelled by close", Join(ErrCancelled, ErrClosed), false},
		{"not held", ErrNotHeld, false},
		{"unrelated", New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetSeverity(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Severity
	}{
		{"nil", nil, SeverityDebug},
		{"busy", ErrBusy, SeverityInfo},
		{"not owner", ErrNotOwner, SeverityWarning},
		{"session closed", ErrSessionClosed, SeverityWarning},
		{"closed", ErrClosed, SeverityError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetSeverity(tt.err); got != tt.want {
				t.Errorf("GetSeverity() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestErrno(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		want     syscall.Errno
		wantOK   bool
		wantName string
	}{
		{"busy", NewGateError("acquire", ErrBusy), syscall.EAGAIN, true, "EAGAIN"},
		{"cancelled", Wrap(ErrCancelled, "open"), syscall.EINTR, true, "EINTR"},
		{"cancelled by teardown", Join(ErrCancelled, ErrClosed), syscall.EINTR, true, "EINTR"},
		{"closed", NewGateError("acquire", ErrClosed), syscall.ENODEV, true, "ENODEV"},
		{"not held", ErrNotHeld, syscall.EBADF, true, "EBADF"},
		{"invalid", ErrInvalidInput, syscall.EINVAL, true, "EINVAL"},
		{"unknown", New("boom"), 0, false, "EIO"},
		{"nil", nil, 0, false, "EIO"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Errno(tt.err)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("Errno() = (%v, %v), want (%v, %v)", got, ok, tt.want, tt.wantOK)
			}
			if name := ErrnoName(tt.err); name != tt.wantName {
				t.Errorf("ErrnoName() = %q, want %q", name, tt.wantName)
			}
		})
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, "ctx") != nil {
		t.Error("Wrap(nil) should return nil")
	}
	if Wrapf(nil, "ctx %d", 1) != nil {
		t.Error("Wrapf(nil) should return nil")
	}

	err := Wrapf(ErrBusy, "open %s", "dev")
	if err.Error() != "open dev: gate is busy" {
		t.Errorf("Wrapf() = %q", err.Error())
	}
	if !Is(err, ErrBusy) {
		t.Error("Wrapf() should preserve the wrapped sentinel")
	}
}
