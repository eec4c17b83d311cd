package internal

import (
	"fmt"
	"net/http"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
)

// HTTPStatusError is returned when a service responds with a non-2xx status.
type HTTPStatusError struct {
	Message string
	Code    int
}

func (e HTTPStatusError) Error() string {
	return e.Message
}

// IsHTTPErrorRecoverable tests whether an HTTP error status represents a condition that might resolve
// on its own if we retry. 400, 408 and 429 are retried; every other 4xx status is permanent.
func IsHTTPErrorRecoverable(statusCode int) bool {
	if statusCode >= 400 && statusCode < 500 {
		switch statusCode {
		case 400, 408, 429:
			return true
		default:
			return false
		}
	}
	return true
}

// HTTPErrorDescription returns a short description of an HTTP error status for logging.
func HTTPErrorDescription(statusCode int) string {
	message := ""
	if statusCode == 401 || statusCode == 403 {
		message = " (invalid SDK key)"
	}
	return fmt.Sprintf("HTTP error %d%s", statusCode, message)
}

// CheckIfErrorIsRecoverableAndLog logs an HTTP or network error at the appropriate level and
// reports whether it is recoverable as defined by IsHTTPErrorRecoverable.
func CheckIfErrorIsRecoverableAndLog(
	loggers ldlog.Loggers,
	errorDesc, errorContext string,
	statusCode int,
	recoverableMessage string,
) bool {
	if statusCode > 0 && !IsHTTPErrorRecoverable(statusCode) {
		loggers.Errorf("Error %s (giving up permanently): %s", errorContext, errorDesc)
		return false
	}
	loggers.Warnf("Error %s (%s): %s", errorContext, recoverableMessage, errorDesc)
	return true
}

// CheckForHTTPError returns an HTTPStatusError for any non-2xx status.
func CheckForHTTPError(statusCode int, url string) error {
	switch {
	case statusCode == http.StatusUnauthorized:
		return HTTPStatusError{
			Message: fmt.Sprintf("Invalid SDK key when accessing URL: %s. Verify that your SDK key is correct.", url),
			Code:    statusCode,
		}
	case statusCode == http.StatusNotFound:
		return HTTPStatusError{
			Message: fmt.Sprintf("Resource not found when accessing URL: %s. Verify that this resource exists.", url),
			Code:    statusCode,
		}
	case statusCode/100 != 2:
		return HTTPStatusError{
			Message: fmt.Sprintf("Unexpected response code: %d when accessing URL: %s", statusCode, url),
			Code:    statusCode,
		}
	}
	return nil
}
