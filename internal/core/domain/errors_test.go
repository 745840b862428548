package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestDomainError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *DomainError
		expected string
	}{
		{
			name:     "error without details",
			err:      NewDomainError("TRM-TEST-1000", "test message"),
			expected: "[TRM-TEST-1000] test message",
		},
		{
			name:     "error with details",
			err:      NewDomainError("TRM-TEST-1001", "test message").WithDetails("extra info"),
			expected: "[TRM-TEST-1001] test message: extra info",
		},
		{
			name:     "error with formatted details",
			err:      NewDomainError("TRM-TEST-1002", "test message").Detailf("rank %d", 3),
			expected: "[TRM-TEST-1002] test message: rank 3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestDomainError_Is(t *testing.T) {
	err1 := NewDomainError("TRM-TEST-1000", "message 1")
	err2 := NewDomainError("TRM-TEST-1000", "message 2")
	err3 := NewDomainError("TRM-TEST-1001", "message 1")

	if !errors.Is(err1, err2) {
		t.Error("errors.Is should return true for same error code")
	}
	if errors.Is(err1, err3) {
		t.Error("errors.Is should return false for different error code")
	}
	if errors.Is(err1, fmt.Errorf("some error")) {
		t.Error("errors.Is should return false for non-DomainError")
	}

	wrapped := fmt.Errorf("join: %w", ErrSelfTestFailed.WithDetails("sentinel mismatch"))
	if !errors.Is(wrapped, ErrSelfTestFailed) {
		t.Error("errors.Is should see through fmt.Errorf wrapping and details")
	}
}

func TestDomainError_WithCause(t *testing.T) {
	original := NewDomainError("TRM-TEST-1000", "original message")
	cause := fmt.Errorf("root cause")
	withCause := original.WithCause(cause)

	if original.Cause != nil {
		t.Error("WithCause should not modify original error")
	}
	if errors.Unwrap(withCause) != cause {
		t.Errorf("Unwrap() = %v, want %v", errors.Unwrap(withCause), cause)
	}
	if withCause.Code != original.Code {
		t.Errorf("Code = %q, want %q", withCause.Code, original.Code)
	}
}

func TestGetErrorCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"domain error", ErrUnsupportedRequest, "TRM-RDV-4050"},
		{"wrapped domain error", fmt.Errorf("wrapped: %w", ErrInvalidDevice), "TRM-CONF-4003"},
		{"regular error", fmt.Errorf("regular error"), ""},
		{"nil error", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetErrorCode(tt.err); got != tt.expected {
				t.Errorf("GetErrorCode() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestIsFatal(t *testing.T) {
	tests := []struct {
		err   error
		fatal bool
	}{
		{ErrSelfTestFailed, true},
		{ErrRemoteSize, true},
		{ErrUnsupportedModel, true},
		{fmt.Errorf("spawn: %w", ErrSpawnFailed), true},
		{ErrUnsupportedRequest, false},
		{ErrDuplicateWorker, false},
		{ErrChecksumMismatch, false},
		{fmt.Errorf("plain"), false},
	}

	for _, tt := range tests {
		if got := IsFatal(tt.err); got != tt.fatal {
			t.Errorf("IsFatal(%v) = %v, want %v", tt.err, got, tt.fatal)
		}
	}
}

func TestIsDomainError(t *testing.T) {
	if !IsDomainError(ErrDuplicateWorker, "TRM-RDV-4090") {
		t.Error("IsDomainError should return true for matching code")
	}
	if IsDomainError(ErrDuplicateWorker, "TRM-RDV-9999") {
		t.Error("IsDomainError should return false for non-matching code")
	}
	if !IsDomainError(fmt.Errorf("x: %w", ErrDuplicateWorker), "") {
		t.Error("IsDomainError with empty code should match any DomainError")
	}
	if IsDomainError(fmt.Errorf("regular error"), "") {
		t.Error("IsDomainError should return false for non-DomainError")
	}
}
