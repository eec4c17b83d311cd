package sharedtest

import (
	"net/http"

	"github.com/flagsync/go-client-sdk/subsystems"
)

// NewSimpleTestContext returns a basic implementation of subsystems.ClientContext for use in test code.
func NewSimpleTestContext(sdkKey string) subsystems.ClientContext {
	return NewTestContext(sdkKey, nil, nil)
}

// NewTestContext returns a basic implementation of subsystems.ClientContext for use in test code.
func NewTestContext(
	sdkKey string,
	optHTTPConfig *subsystems.HTTPConfiguration,
	optLoggingConfig *subsystems.LoggingConfiguration,
) subsystems.BasicClientContext {
	ret := subsystems.BasicClientContext{SDKKey: sdkKey}
	if optHTTPConfig != nil {
		ret.HTTP = *optHTTPConfig
	}
	if optLoggingConfig != nil {
		ret.Logging = *optLoggingConfig
	} else {
		ret.Logging = TestLoggingConfig()
	}
	return ret
}

// TestLoggingConfig returns a LoggingConfiguration corresponding to NewTestLoggers().
func TestLoggingConfig() subsystems.LoggingConfiguration {
	return subsystems.LoggingConfiguration{Loggers: NewTestLoggers()}
}

// TestHTTPConfigWithHeaders returns an HTTPConfiguration that adds the specified headers to requests.
func TestHTTPConfigWithHeaders(headers http.Header) *subsystems.HTTPConfiguration {
	return &subsystems.HTTPConfiguration{DefaultHeaders: headers}
}
