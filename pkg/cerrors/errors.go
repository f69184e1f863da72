package cerrors

import (
	"errors"

	"github.com/palantir/stacktrace"
)

type ErrorType string

const (
	ErrorTypeNonUserFriendly      ErrorType = "NON_USER_FRIENDLY_ERROR"
	ErrorTypeGeneric              ErrorType = "GENERIC_ERROR"
	ErrorTypeValidation           ErrorType = "VALIDATION_ERROR"
	ErrorTypeUnsupportedAction    ErrorType = "UNSUPPORTED_ACTION_ERROR"
	ErrorTypeRunNotFound          ErrorType = "RUN_NOT_FOUND_ERROR"
	ErrorTypeClusterAPI           ErrorType = "CLUSTER_API_ERROR"
	ErrorTypeTelemetryUnavailable ErrorType = "TELEMETRY_UNAVAILABLE_ERROR"
	ErrorTypeMonitorFailure       ErrorType = "MONITOR_FAILURE_ERROR"
)

type userFriendly interface {
	UserFriendly() bool
	ErrorType() ErrorType
}

// IsUserFriendly returns true if err, or anything it wraps, is marked as safe to present to the user
func IsUserFriendly(err error) bool {
	var ufe userFriendly
	return errors.As(err, &ufe) && ufe.UserFriendly()
}

// GetErrorType returns the type of the first user-friendly error in the chain
func GetErrorType(err error) ErrorType {
	var ufe userFriendly
	if errors.As(err, &ufe) {
		return ufe.ErrorType()
	}
	return ErrorTypeNonUserFriendly
}

// GetRootCauseAndErrorCode returns the message that should be shown to the user along with its type.
// Typed errors win over the stacktrace root cause, since wrapping only adds context to them.
func GetRootCauseAndErrorCode(err error) (string, ErrorType) {
	var ufe userFriendly
	if errors.As(err, &ufe) {
		return ufe.(error).Error(), ufe.ErrorType()
	}
	rootCause := stacktrace.RootCause(err)
	return rootCause.Error(), GetErrorType(rootCause)
}

// ExitCode maps an error to the process exit code used by the advisor binary
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch GetErrorType(err) {
	case ErrorTypeValidation, ErrorTypeUnsupportedAction:
		return 2
	case ErrorTypeRunNotFound:
		return 3
	case ErrorTypeClusterAPI:
		return 4
	case ErrorTypeMonitorFailure:
		return 5
	default:
		return 1
	}
}

// IsValidation reports whether err is a Validation error
func IsValidation(err error) bool {
	var target Validation
	return errors.As(err, &target)
}

// IsUnsupportedAction reports whether err is an UnsupportedAction error
func IsUnsupportedAction(err error) bool {
	var target UnsupportedAction
	return errors.As(err, &target)
}

// IsRunNotFound reports whether err is a RunNotFound error
func IsRunNotFound(err error) bool {
	var target RunNotFound
	return errors.As(err, &target)
}

// IsClusterAPI reports whether err is a ClusterAPI error
func IsClusterAPI(err error) bool {
	var target ClusterAPI
	return errors.As(err, &target)
}

// IsMonitorFailure reports whether err is a MonitorFailure error
func IsMonitorFailure(err error) bool {
	var target MonitorFailure
	return errors.As(err, &target)
}
