package fsclient

import (
	"errors"
	"regexp"

	"github.com/flagsync/go-client-sdk/fscomponents"
	"github.com/flagsync/go-client-sdk/internal/synchronizer"
	"github.com/flagsync/go-client-sdk/subsystems"
)

var validTokenKeyRegex = regexp.MustCompile("^[-a-zA-Z0-9._]+$") //nolint:gochecknoglobals

func newClientContextFromConfig(
	sdkKey string,
	config Config,
) (*synchronizer.ClientContextImpl, error) {
	if !stringIsValidHTTPHeaderValue(sdkKey) {
		// We can't just let net/http fail on an invalid header later, because the error it returns
		// would include the whole key in the message.
		return nil, errors.New("SDK key contains invalid characters")
	}

	basicContext := subsystems.BasicClientContext{
		SDKKey:           sdkKey,
		Offline:          config.Offline,
		ServiceEndpoints: config.ServiceEndpoints,
	}

	loggingFactory := config.Logging
	if loggingFactory == nil {
		loggingFactory = fscomponents.Logging()
	}
	logging, err := loggingFactory.Build(basicContext)
	if err != nil {
		return nil, err
	}
	basicContext.Logging = logging

	httpFactory := config.HTTP
	if httpFactory == nil {
		httpFactory = fscomponents.HTTPConfiguration()
	}
	http, err := httpFactory.Build(basicContext)
	if err != nil {
		return nil, err
	}
	basicContext.HTTP = http

	return &synchronizer.ClientContextImpl{BasicClientContext: basicContext}, nil
}

func stringIsValidHTTPHeaderValue(s string) bool {
	return s == "" || validTokenKeyRegex.MatchString(s)
}
