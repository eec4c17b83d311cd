package endpoints

const (
	// DefaultSDKBaseURI is the default base URI of the definitions and memberships service.
	DefaultSDKBaseURI = "https://sdk.flagsync.io/api"

	// DefaultAuthBaseURI is the default base URI of the streaming token service.
	DefaultAuthBaseURI = "https://auth.flagsync.io/api/v2"

	// DefaultStreamingBaseURI is the default base URI of the server-sent events service.
	DefaultStreamingBaseURI = "https://streaming.flagsync.io/sse"

	// DefinitionsRequestPath is the URL path for fetching definitions and rule-based segments.
	DefinitionsRequestPath = "/splitChanges"

	// MembershipsRequestPath is the URL path prefix for fetching one key's memberships. The
	// URL-escaped key is appended.
	MembershipsRequestPath = "/memberships/"

	// AuthRequestPath is the URL path for obtaining a streaming token.
	AuthRequestPath = "/auth"

	// SpecVersion is the data format version requested from the SDK and auth services.
	SpecVersion = "1.3"

	// StreamingProtocolVersion is the version of the streaming protocol requested in the "v" parameter.
	StreamingProtocolVersion = "1.1"
)
