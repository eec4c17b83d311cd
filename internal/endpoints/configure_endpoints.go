package endpoints

import (
	"strings"

	"github.com/flagsync/go-client-sdk/interfaces"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
)

// ServiceType is used internally to denote which endpoint a URI is for.
type ServiceType int

const (
	SDKService       ServiceType = iota //nolint:revive // internal constant
	AuthService      ServiceType = iota //nolint:revive // internal constant
	StreamingService ServiceType = iota //nolint:revive // internal constant
)

func (s ServiceType) String() string {
	switch s {
	case SDKService:
		return "SDK"
	case AuthService:
		return "Auth"
	case StreamingService:
		return "Streaming"
	default:
		return "???"
	}
}

func anyCustom(serviceEndpoints interfaces.ServiceEndpoints) bool {
	return serviceEndpoints.SDK != "" || serviceEndpoints.Auth != "" || serviceEndpoints.Streaming != ""
}

func getCustom(serviceEndpoints interfaces.ServiceEndpoints, serviceType ServiceType) string {
	switch serviceType {
	case SDKService:
		return serviceEndpoints.SDK
	case AuthService:
		return serviceEndpoints.Auth
	case StreamingService:
		return serviceEndpoints.Streaming
	default:
		return ""
	}
}

// DefaultBaseURI returns the default base URI for the given kind of endpoint.
func DefaultBaseURI(serviceType ServiceType) string {
	switch serviceType {
	case SDKService:
		return DefaultSDKBaseURI
	case AuthService:
		return DefaultAuthBaseURI
	case StreamingService:
		return DefaultStreamingBaseURI
	default:
		return ""
	}
}

// IsCustom returns true if the service endpoint has been overridden with a non-default value.
func IsCustom(serviceEndpoints interfaces.ServiceEndpoints, serviceType ServiceType) bool {
	uri := getCustom(serviceEndpoints, serviceType)
	return uri != "" && strings.TrimSuffix(uri, "/") != strings.TrimSuffix(DefaultBaseURI(serviceType), "/")
}

// SelectBaseURI is a helper for getting either a custom or a default URI for the given kind of endpoint.
//
// If some endpoints were customized but not this one, an error is logged and the default is used.
func SelectBaseURI(
	serviceEndpoints interfaces.ServiceEndpoints,
	serviceType ServiceType,
	loggers ldlog.Loggers,
) string {
	configuredBaseURI := DefaultBaseURI(serviceType)
	if anyCustom(serviceEndpoints) {
		if custom := getCustom(serviceEndpoints, serviceType); custom != "" {
			configuredBaseURI = custom
		} else {
			loggers.Errorf(
				"You have set custom ServiceEndpoints without specifying the %s base URI; connections may not work properly",
				serviceType,
			)
		}
	}
	return strings.TrimRight(configuredBaseURI, "/")
}

// AddPath concatenates a subpath to a URL in a way that will not cause a double slash.
func AddPath(baseURI string, path string) string {
	return strings.TrimSuffix(baseURI, "/") + "/" + strings.TrimPrefix(path, "/")
}
