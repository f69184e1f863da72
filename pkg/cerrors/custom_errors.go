package cerrors

import (
	"fmt"
	"net/http"
)

type Generic struct {
	Phase  string
	Reason string
}

func (e Generic) Error() string {
	if e.Phase == "" {
		return e.Reason
	}
	return fmt.Sprintf("[%s]: %s", e.Phase, e.Reason)
}

func (e Generic) UserFriendly() bool {
	return true
}

func (e Generic) ErrorType() ErrorType {
	return ErrorTypeGeneric
}

// Validation is returned when an experiment intent has a bad shape
type Validation struct {
	Field  string
	Reason string
}

func (e Validation) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid experiment intent, %s", e.Reason)
	}
	return fmt.Sprintf("invalid experiment intent: field '%s' %s", e.Field, e.Reason)
}

func (e Validation) UserFriendly() bool {
	return true
}

func (e Validation) ErrorType() ErrorType {
	return ErrorTypeValidation
}

type UnsupportedAction struct {
	Action string
}

func (e UnsupportedAction) Error() string {
	return fmt.Sprintf("unsupported chaos action: '%s'", e.Action)
}

func (e UnsupportedAction) UserFriendly() bool {
	return true
}

func (e UnsupportedAction) ErrorType() ErrorType {
	return ErrorTypeUnsupportedAction
}

type RunNotFound struct {
	RunID string
}

func (e RunNotFound) Error() string {
	return fmt.Sprintf("run ID not found: '%s'", e.RunID)
}

func (e RunNotFound) UserFriendly() bool {
	return true
}

func (e RunNotFound) ErrorType() ErrorType {
	return ErrorTypeRunNotFound
}

// ClusterAPI wraps a failed call against the kubernetes API server
type ClusterAPI struct {
	Operation string
	Target    string
	Code      int32
	Reason    string
	Err       error
}

func (e ClusterAPI) Error() string {
	if e.Code == 0 {
		return fmt.Sprintf("failed to %s '%s', %s", e.Operation, e.Target, e.Reason)
	}
	return fmt.Sprintf("failed to %s '%s' (status %d), %s", e.Operation, e.Target, e.Code, e.Reason)
}

func (e ClusterAPI) Unwrap() error {
	return e.Err
}

// Transient reports whether the call is worth retrying
func (e ClusterAPI) Transient() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= http.StatusInternalServerError
}

func (e ClusterAPI) UserFriendly() bool {
	return true
}

func (e ClusterAPI) ErrorType() ErrorType {
	return ErrorTypeClusterAPI
}

// TelemetryUnavailable is only ever logged, the metric it concerns is treated as missing
type TelemetryUnavailable struct {
	Query  string
	Reason string
}

func (e TelemetryUnavailable) Error() string {
	return fmt.Sprintf("telemetry unavailable for query '%s', %s", e.Query, e.Reason)
}

func (e TelemetryUnavailable) UserFriendly() bool {
	return true
}

func (e TelemetryUnavailable) ErrorType() ErrorType {
	return ErrorTypeTelemetryUnavailable
}

// MonitorFailure is terminal to a single monitored run
type MonitorFailure struct {
	RunID  string
	Reason string
	Err    error
}

func (e MonitorFailure) Error() string {
	return fmt.Sprintf("monitoring of run '%s' failed, %s", e.RunID, e.Reason)
}

func (e MonitorFailure) Unwrap() error {
	return e.Err
}

func (e MonitorFailure) UserFriendly() bool {
	return true
}

func (e MonitorFailure) ErrorType() ErrorType {
	return ErrorTypeMonitorFailure
}
