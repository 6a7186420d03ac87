package domain

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Codes
// =============================================================================

// ErrorCode classifies a failed operation. The set is closed.
type ErrorCode string

const (
	ErrorCodeNone              ErrorCode = ""
	ErrorCodeConfigInvalid     ErrorCode = "CONFIG_INVALID"
	ErrorCodeConfigMissing     ErrorCode = "CONFIG_MISSING"
	ErrorCodeDependencyMissing ErrorCode = "DEPENDENCY_MISSING"
	ErrorCodeBuildFailed       ErrorCode = "BUILD_FAILED"
	ErrorCodePushFailed        ErrorCode = "PUSH_FAILED"
	ErrorCodeDeployFailed      ErrorCode = "DEPLOY_FAILED"
	ErrorCodeDeployNotReady    ErrorCode = "DEPLOY_NOT_READY"
	ErrorCodeInvokeFailed      ErrorCode = "INVOKE_FAILED"
	ErrorCodeServiceNotRunning ErrorCode = "SERVICE_NOT_RUNNING"
	ErrorCodeResourceNotFound  ErrorCode = "RESOURCE_NOT_FOUND"
	ErrorCodeResourceConflict  ErrorCode = "RESOURCE_CONFLICT"
	ErrorCodeUnknown           ErrorCode = "UNKNOWN_ERROR"
)

// IsValid checks if the code belongs to the taxonomy.
func (c ErrorCode) IsValid() bool {
	switch c {
	case ErrorCodeNone, ErrorCodeConfigInvalid, ErrorCodeConfigMissing, ErrorCodeDependencyMissing,
		ErrorCodeBuildFailed, ErrorCodePushFailed, ErrorCodeDeployFailed, ErrorCodeDeployNotReady,
		ErrorCodeInvokeFailed, ErrorCodeServiceNotRunning, ErrorCodeResourceNotFound,
		ErrorCodeResourceConflict, ErrorCodeUnknown:
		return true
	default:
		return false
	}
}

// =============================================================================
// Error Type
// =============================================================================

// Error carries an ErrorCode through Go error chains so the executor boundary
// can turn it into a typed result.
type Error struct {
	Code    ErrorCode
	Op      string // Operation that failed (e.g. "Build", "CreateRuntime")
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	switch {
	case msg == "" && e.Err != nil:
		msg = e.Err.Error()
	case e.Err != nil:
		msg += ": " + e.Err.Error()
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, msg)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new Error.
func NewError(code ErrorCode, op, message string, err error) *Error {
	return &Error{Code: code, Op: op, Message: message, Err: err}
}

// CodeOf returns the ErrorCode carried by err, ErrorCodeUnknown when err has
// none, or ErrorCodeNone for a nil error.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ErrorCodeNone
	}
	var e *Error
	if errors.As(err, &e) && e.Code != ErrorCodeNone {
		return e.Code
	}
	return ErrorCodeUnknown
}
