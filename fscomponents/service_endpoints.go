package fscomponents

import (
	"github.com/flagsync/go-client-sdk/interfaces"
	"github.com/flagsync/go-client-sdk/internal/endpoints"
)

// RelayServiceEndpoints specifies a single base URI for a proxy that serves every FlagSync service,
// telling the SDK to use it for all of them.
//
// The proxy is expected to serve the SDK service under "/api", the auth service under "/api/v2" and
// the streaming service under "/sse". Store this value in the ServiceEndpoints field of your SDK
// configuration. For example:
//
//	relayURI := "http://my-relay-hostname:8080"
//	config := fsclient.Config{
//	    ServiceEndpoints: fscomponents.RelayServiceEndpoints(relayURI),
//	}
//
// See Config.ServiceEndpoints for more details.
func RelayServiceEndpoints(relayBaseURI string) interfaces.ServiceEndpoints {
	return interfaces.ServiceEndpoints{
		SDK:       endpoints.AddPath(relayBaseURI, "/api"),
		Auth:      endpoints.AddPath(relayBaseURI, "/api/v2"),
		Streaming: endpoints.AddPath(relayBaseURI, "/sse"),
	}
}
