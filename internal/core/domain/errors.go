// Package domain defines the core domain models for trainmesh.
package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a coordination error with a structured error code.
// Codes have the form TRM-<AREA>-<NNNN>.
type DomainError struct {
	Code    string // Error code (e.g., "TRM-TOPO-5000")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is matches any DomainError carrying the same code.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// Detailf is WithDetails with fmt.Sprintf formatting.
func (e *DomainError) Detailf(format string, args ...any) *DomainError {
	return e.WithDetails(fmt.Sprintf(format, args...))
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// IsDomainError checks if an error is a DomainError with the given code.
// If code is empty, it only checks if the error is a DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		if code == "" {
			return true
		}
		return de.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// IsFatal reports whether err belongs to a class that must abort the process:
// topology, configuration and loader handoff errors.
func IsFatal(err error) bool {
	switch area(GetErrorCode(err)) {
	case "TOPO", "CONF", "LOAD":
		return true
	}
	return false
}

func area(code string) string {
	// TRM-AREA-NNNN
	if len(code) < 9 || code[:4] != "TRM-" {
		return ""
	}
	rest := code[4:]
	for i := 0; i < len(rest); i++ {
		if rest[i] == '-' {
			return rest[:i]
		}
	}
	return ""
}

// ============================================================================
// Topology Errors (TOPO)
// ============================================================================

var (
	// ErrGroupIncomplete indicates not every rank joined the group in time.
	ErrGroupIncomplete = NewDomainError("TRM-TOPO-5000", "process group incomplete")

	// ErrGroupClosed indicates the group channel was lost.
	ErrGroupClosed = NewDomainError("TRM-TOPO-5001", "process group closed")

	// ErrSelfTestFailed indicates the post-join channel self-test failed.
	ErrSelfTestFailed = NewDomainError("TRM-TOPO-5002", "channel self-test failed")

	// ErrRemoteSize indicates a private channel reported an unexpected remote size.
	ErrRemoteSize = NewDomainError("TRM-TOPO-5003", "unexpected remote group size")

	// ErrInvalidRank indicates a rank outside [0, size).
	ErrInvalidRank = NewDomainError("TRM-TOPO-4000", "invalid rank")
)

// ============================================================================
// Rendezvous Errors (RDV)
// ============================================================================

var (
	// ErrUnsupportedRequest indicates a request kind the coordinator does not serve.
	ErrUnsupportedRequest = NewDomainError("TRM-RDV-4050", "unsupported request")

	// ErrDuplicateWorker indicates a second join attempt for a registered worker id.
	ErrDuplicateWorker = NewDomainError("TRM-RDV-4090", "worker already registered")

	// ErrMissingWorkerID indicates a connect request without a worker id.
	ErrMissingWorkerID = NewDomainError("TRM-RDV-4001", "worker id required")

	// ErrJoinRejected indicates the coordinator refused the join.
	ErrJoinRejected = NewDomainError("TRM-RDV-4030", "join rejected")

	// ErrProtocol indicates an out-of-sequence or malformed rendezvous message.
	ErrProtocol = NewDomainError("TRM-RDV-4000", "rendezvous protocol violation")
)

// ============================================================================
// Configuration Errors (CONF)
// ============================================================================

var (
	// ErrMissingKey indicates a required configuration key is absent.
	ErrMissingKey = NewDomainError("TRM-CONF-4001", "missing configuration key")

	// ErrInvalidSyncRule indicates a sync_rule outside {EASGD, BSP}.
	ErrInvalidSyncRule = NewDomainError("TRM-CONF-4002", "invalid sync rule")

	// ErrInvalidDevice indicates a device identifier without a trailing index.
	ErrInvalidDevice = NewDomainError("TRM-CONF-4003", "invalid device identifier")

	// ErrUnsupportedDataSource indicates a data_source the manifest cannot serve.
	ErrUnsupportedDataSource = NewDomainError("TRM-CONF-4004", "wrong data source")

	// ErrUnsupportedModel indicates an unknown model name.
	ErrUnsupportedModel = NewDomainError("TRM-CONF-4005", "wrong model name")

	// ErrInvalidConfig indicates any other invalid configuration value.
	ErrInvalidConfig = NewDomainError("TRM-CONF-4000", "invalid configuration")
)

// ============================================================================
// Loader Handoff Errors (LOAD)
// ============================================================================

var (
	// ErrSpawnFailed indicates the loader process could not be started.
	ErrSpawnFailed = NewDomainError("TRM-LOAD-5000", "loader spawn failed")

	// ErrChannelClosed indicates use of a disconnected channel.
	ErrChannelClosed = NewDomainError("TRM-LOAD-5001", "channel closed")

	// ErrHandleConsumed indicates a second memory handle for the same loader.
	ErrHandleConsumed = NewDomainError("TRM-LOAD-4090", "memory handle already consumed")

	// ErrHandshake indicates an out-of-order handoff message.
	ErrHandshake = NewDomainError("TRM-LOAD-4000", "handoff out of sequence")

	// ErrLoaderStopped indicates the loader already observed the stop message.
	ErrLoaderStopped = NewDomainError("TRM-LOAD-4100", "loader stopped")
)

// ============================================================================
// Wire Errors (WIRE)
// ============================================================================

var (
	// ErrChecksumMismatch indicates a frame failed checksum verification.
	ErrChecksumMismatch = NewDomainError("TRM-WIRE-4000", "frame checksum mismatch")

	// ErrFrameTooLarge indicates a frame larger than the configured limit.
	ErrFrameTooLarge = NewDomainError("TRM-WIRE-4130", "frame too large")

	// ErrUnexpectedTag indicates a frame tag the receiver did not ask for.
	ErrUnexpectedTag = NewDomainError("TRM-WIRE-4001", "unexpected frame tag")
)
