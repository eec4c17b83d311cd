package notification

import "fmt"

// DecodeError means a frame or payload could not be turned into a notification. The notification
// is dropped; it never reaches storage.
type DecodeError struct {
	Message string
	Cause   error
}

func (e *DecodeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("malformed notification: %s: %s", e.Message, e.Cause)
	}
	return "malformed notification: " + e.Message
}

func (e *DecodeError) Unwrap() error {
	return e.Cause
}

func decodeErrorf(cause error, format string, args ...interface{}) *DecodeError {
	return &DecodeError{Message: fmt.Sprintf(format, args...), Cause: cause}
}
