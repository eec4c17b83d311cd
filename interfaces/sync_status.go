package interfaces

import (
	"fmt"
	"strings"
	"time"
)

// SyncMode describes how the SDK is currently keeping its data up to date.
type SyncMode string

const (
	// SyncModeInitializing is the mode before the first successful synchronization.
	SyncModeInitializing SyncMode = "INITIALIZING"
	// SyncModeStreaming means that updates are delivered over the push channel.
	SyncModeStreaming SyncMode = "STREAMING"
	// SyncModePolling means that the SDK is fetching data periodically, either because streaming was
	// disabled in configuration or because the push channel is unavailable.
	SyncModePolling SyncMode = "POLLING"
	// SyncModeOff means that the SDK has stopped synchronizing, either because the client was closed
	// or because it was configured in offline mode.
	SyncModeOff SyncMode = "OFF"
)

// SyncErrorKind is an enumeration of the kinds of errors reported in SyncErrorInfo.
type SyncErrorKind string

const (
	// SyncErrorKindUnknown indicates an unexpected error.
	SyncErrorKindUnknown SyncErrorKind = "UNKNOWN"
	// SyncErrorKindNetworkError represents an I/O error, such as a dropped connection.
	SyncErrorKindNetworkError SyncErrorKind = "NETWORK_ERROR"
	// SyncErrorKindErrorResponse means the service returned an HTTP error status.
	SyncErrorKindErrorResponse SyncErrorKind = "ERROR_RESPONSE"
	// SyncErrorKindInvalidData means the service returned data that could not be parsed.
	SyncErrorKindInvalidData SyncErrorKind = "INVALID_DATA"
	// SyncErrorKindPushError means the push channel reported an error or was disabled by the service.
	SyncErrorKindPushError SyncErrorKind = "PUSH_ERROR"
)

// SyncErrorInfo is a description of an error condition that the synchronization engine encountered.
type SyncErrorInfo struct {
	// Kind is the general category of the error.
	Kind SyncErrorKind
	// StatusCode is the HTTP status code if the error was an error response, or zero otherwise.
	StatusCode int
	// Message is any additional human-readable information relevant to the error.
	Message string
	// Time is the date/time that the error occurred.
	Time time.Time
}

// String returns a simple string representation of the error.
func (e SyncErrorInfo) String() string {
	ret := string(e.Kind)
	if e.StatusCode > 0 || e.Message != "" {
		ret += "("
		if e.StatusCode > 0 {
			ret += fmt.Sprintf("%d", e.StatusCode)
		}
		if e.Message != "" {
			if e.StatusCode > 0 {
				ret += ","
			}
			ret += e.Message
		}
		ret += ")"
	}
	if !e.Time.IsZero() {
		ret += fmt.Sprintf("@%s", e.Time.Format(time.RFC3339))
	}
	return ret
}

// SyncStatus is information about the synchronization engine's status.
type SyncStatus struct {
	// Mode is the current synchronization mode.
	Mode SyncMode
	// Since is the date/time that the value of Mode most recently changed.
	Since time.Time
	// LastError is information about the last error that was encountered, if any.
	LastError *SyncErrorInfo
}

// String returns a simple string representation of the status.
func (s SyncStatus) String() string {
	var b strings.Builder
	b.WriteString("Status(")
	b.WriteString(string(s.Mode))
	b.WriteString(",")
	b.WriteString(s.Since.Format(time.RFC3339))
	b.WriteString(",")
	if s.LastError != nil {
		b.WriteString(s.LastError.String())
	}
	b.WriteString(")")
	return b.String()
}

// SyncStatusProvider is an interface for querying the status of the synchronization engine.
// An implementation of this interface is returned by Client.GetSyncStatusProvider().
type SyncStatusProvider interface {
	// GetStatus returns the current status of the synchronization engine.
	GetStatus() SyncStatus

	// AddStatusListener subscribes for notifications of status changes. The returned channel will
	// receive a new SyncStatus value for any change in status.
	//
	// It is the caller's responsibility to consume values from the channel. Allowing values to
	// accumulate in the channel can cause an SDK goroutine to be blocked.
	AddStatusListener() <-chan SyncStatus

	// RemoveStatusListener unsubscribes from notifications of status changes. The specified
	// channel must be one that was previously returned by AddStatusListener(); otherwise, the method
	// has no effect.
	RemoveStatusListener(listener <-chan SyncStatus)
}
