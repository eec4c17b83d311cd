package push

import (
	"fmt"
	"time"

	"github.com/flagsync/go-client-sdk/internal/auth"

	es "github.com/launchdarkly/eventsource"
)

// PushEventKind identifies a change in the availability of the push subsystem.
type PushEventKind int //nolint:revive // name is clearer than EventKind outside the package

const (
	// PushSubsystemUp means notifications are flowing and polling may stop.
	PushSubsystemUp PushEventKind = iota
	// PushSubsystemDown means notifications are not currently flowing; polling should run.
	PushSubsystemDown
	// PushRetryableError means the connection failed and the manager will retry.
	PushRetryableError
	// PushNonRetryableError means the connection failed permanently for this session.
	PushNonRetryableError
	// PushSubsystemDisabled means the server disabled streaming for this session.
	PushSubsystemDisabled
	// PushReset means the server asked for a full reconnection.
	PushReset
	// PushDelayReceived reports the connection delay returned by the auth service.
	PushDelayReceived
)

func (k PushEventKind) String() string {
	switch k {
	case PushSubsystemUp:
		return "PUSH_SUBSYSTEM_UP"
	case PushSubsystemDown:
		return "PUSH_SUBSYSTEM_DOWN"
	case PushRetryableError:
		return "PUSH_RETRYABLE_ERROR"
	case PushNonRetryableError:
		return "PUSH_NON_RETRYABLE_ERROR"
	case PushSubsystemDisabled:
		return "PUSH_SUBSYSTEM_DISABLED"
	case PushReset:
		return "PUSH_RESET"
	case PushDelayReceived:
		return "PUSH_DELAY_RECEIVED"
	default:
		return fmt.Sprintf("PushEventKind(%d)", int(k))
	}
}

// PushEvent is published by the push manager to its listeners.
type PushEvent struct { //nolint:revive
	Kind PushEventKind
	// DelaySeconds is set for PushDelayReceived.
	DelaySeconds int64
	// Err is set for PushRetryableError and PushNonRetryableError.
	Err error
}

// StatusSink receives push events.
type StatusSink interface {
	PublishPushEvent(event PushEvent)
}

// ErrorKind says whether a connection error may be retried.
type ErrorKind int

const (
	ErrorKindRecoverable    ErrorKind = iota //nolint:revive // self-explanatory
	ErrorKindNonRecoverable                  //nolint:revive // self-explanatory
)

// ConnectionError describes the failure of an authentication or stream connection attempt.
type ConnectionError struct {
	Kind ErrorKind
	// StatusCode is zero for errors that did not come from an HTTP response.
	StatusCode int
	Message    string
}

func (e *ConnectionError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s (HTTP %d)", e.Message, e.StatusCode)
	}
	return e.Message
}

// IsRecoverable returns true if the connection may be retried.
func (e *ConnectionError) IsRecoverable() bool {
	return e.Kind == ErrorKindRecoverable
}

// ConnectionEventKind identifies a ConnectionEvent.
type ConnectionEventKind int

const (
	// EventAuthenticated is emitted when a streaming token was obtained.
	EventAuthenticated ConnectionEventKind = iota
	// EventOpen is emitted when the stream response has been received.
	EventOpen
	// EventMessage is emitted for every event read from the stream.
	EventMessage
	// EventError is emitted when the attempt failed or the stream dropped. No further events follow
	// for that attempt.
	EventError
	// EventPushDisabled is emitted when the auth service says push is not enabled.
	EventPushDisabled
)

// ConnectionEvent is emitted by a ConnectionHandler on its Events channel.
type ConnectionEvent struct {
	Kind ConnectionEventKind
	// Attempt is the value returned by the Connect call that produced this event.
	Attempt uint64

	Token           *auth.JwtToken
	ConnectionDelay time.Duration
	Message         es.Event
	Err             *ConnectionError
}
