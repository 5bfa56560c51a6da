package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestVigilError_Error(t *testing.T) {
	err := New(ErrCodeConfigInvalid, "Startup", "invalid config file", nil)
	expected := "[1001] Startup: invalid config file"
	if err.Error() != expected {
		t.Errorf("Expected %q, got %q", expected, err.Error())
	}

	cause := errors.New("file not found")
	errWithCause := New(ErrCodeConfigInvalid, "Startup", "invalid config file", cause)
	expectedWithCause := "[1001] Startup: invalid config file (cause: file not found)"
	if errWithCause.Error() != expectedWithCause {
		t.Errorf("Expected %q, got %q", expectedWithCause, errWithCause.Error())
	}
}

func TestVigilError_Unwrap(t *testing.T) {
	cause := errors.New("file not found")
	err := New(ErrCodeConfigInvalid, "Startup", "invalid config file", cause)

	unwrapped := errors.Unwrap(err)
	if unwrapped != cause {
		t.Errorf("Expected cause %v, got %v", cause, unwrapped)
	}

	errNoCause := New(ErrCodeConfigInvalid, "Startup", "invalid config file", nil)
	if errors.Unwrap(errNoCause) != nil {
		t.Errorf("Expected nil cause, got %v", errors.Unwrap(errNoCause))
	}
}

func TestVigilError_Fields(t *testing.T) {
	err := New(ErrCodeDesktop, "StartDesktop", "desktop start failed", nil).(*VigilError)
	if err.Code != ErrCodeDesktop {
		t.Errorf("Expected code %v, got %v", ErrCodeDesktop, err.Code)
	}
	if err.Operation != "StartDesktop" {
		t.Errorf("Expected operation %q, got %q", "StartDesktop", err.Operation)
	}
	if err.Msg != "desktop start failed" {
		t.Errorf("Expected message %q, got %q", "desktop start failed", err.Msg)
	}
}

func TestCodeOf(t *testing.T) {
	inner := New(ErrCodeTimeout, "RequestLogout", "no ack", nil)
	outer := fmt.Errorf("logout: %w", inner)

	if got := CodeOf(outer); got != ErrCodeTimeout {
		t.Errorf("Expected code %v, got %v", ErrCodeTimeout, got)
	}
	if got := CodeOf(errors.New("plain")); got != ErrCodeUnknown {
		t.Errorf("Expected unknown code, got %v", got)
	}
}

func TestHasCode_Nested(t *testing.T) {
	inner := New(ErrCodePermissionDenied, "Bind", "permission denied", nil)
	outer := New(ErrCodeInboxOpen, "Start", "could not open inbox", inner)

	if !HasCode(outer, ErrCodeInboxOpen) {
		t.Error("Expected outer code to match")
	}
	if !HasCode(outer, ErrCodePermissionDenied) {
		t.Error("Expected nested code to match")
	}
	if HasCode(outer, ErrCodeDesktop) {
		t.Error("Unexpected code match")
	}
	if HasCode(nil, ErrCodeUnknown) {
		t.Error("nil error should carry no code")
	}
}
