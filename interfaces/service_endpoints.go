package interfaces

// ServiceEndpoints allow configuration of custom service URIs.
//
// If you want to set non-default values for any of these fields, set the ServiceEndpoints field
// in the SDK's Config struct. You may set individual values such as Streaming, or use the
// helper method fscomponents.RelayServiceEndpoints().
//
// If you set any of these fields, you should set all of them; the SDK logs an error for each service
// whose URI was left blank while others were customized.
type ServiceEndpoints struct {
	// SDK is the base URI of the service that serves flag definitions and memberships.
	SDK string
	// Auth is the base URI of the service that issues streaming tokens.
	Auth string
	// Streaming is the base URI of the server-sent events service.
	Streaming string
}
