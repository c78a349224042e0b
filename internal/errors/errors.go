package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents stable error codes for all failure modes
type ErrorCode string

const (
	// ConfigInvalid indicates malformed TOML, unknown keys, or a bad pattern spec
	ConfigInvalid ErrorCode = "CONFIG_INVALID"
	// ScanIO indicates a per-file read failure (permissions, oversize, encoding)
	ScanIO ErrorCode = "SCAN_IO"
	// ParseFailed indicates a grammar error or unsupported language tag
	ParseFailed ErrorCode = "PARSE_FAILED"
	// DetectorFailed indicates a detector threw on a valid file
	DetectorFailed ErrorCode = "DETECTOR_FAILED"
	// DetectionInvalid indicates a numeric guard tripped in scoring (NaN/Inf)
	DetectionInvalid ErrorCode = "DETECTION_INVALID"
	// PipelineInconsistent indicates an unrecoverable derived-state inconsistency
	PipelineInconsistent ErrorCode = "PIPELINE_INCONSISTENT"
	// StorageBusy indicates the store stayed locked past the busy timeout
	StorageBusy ErrorCode = "STORAGE_BUSY"
	// StorageCorrupt indicates database corruption was detected
	StorageCorrupt ErrorCode = "STORAGE_CORRUPT"
	// StorageFull indicates the disk filled mid-write
	StorageFull ErrorCode = "STORAGE_FULL"
	// MigrationFailed indicates a schema migration step failed
	MigrationFailed ErrorCode = "MIGRATION_FAILED"
	// VersionTooNew indicates the database schema is newer than this build
	VersionTooNew ErrorCode = "VERSION_TOO_NEW"
	// Cancelled is a sentinel carried via status, not a failure
	Cancelled ErrorCode = "CANCELLED"
	// InternalError indicates an unexpected error
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// DriftError represents an engine error with a stable code
type DriftError struct {
	Code    ErrorCode   `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
	cause   error
}

// New creates a new DriftError
func New(code ErrorCode, message string, cause error) *DriftError {
	return &DriftError{
		Code:    code,
		Message: message,
		cause:   cause,
	}
}

// Newf creates a new DriftError with a formatted message and no cause
func Newf(code ErrorCode, format string, args ...interface{}) *DriftError {
	return &DriftError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Error implements the error interface
func (e *DriftError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DriftError) Unwrap() error {
	return e.cause
}

// WithDetails adds details to the error
func (e *DriftError) WithDetails(details interface{}) *DriftError {
	e.Details = details
	return e
}

// CodeOf extracts the ErrorCode from err, or InternalError if it carries none.
func CodeOf(err error) ErrorCode {
	var de *DriftError
	if errors.As(err, &de) {
		return de.Code
	}
	return InternalError
}

// IsRetryable reports whether the operation behind err may be retried as-is.
// Only storage contention qualifies; everything else needs operator action.
func IsRetryable(err error) bool {
	return CodeOf(err) == StorageBusy
}

// IsCancelled reports whether err is the cancellation sentinel.
func IsCancelled(err error) bool {
	return CodeOf(err) == Cancelled
}
