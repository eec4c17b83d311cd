package interfaces

// SdkEvent is a notification delivered to listeners of a client handle for one user key.
type SdkEvent string

const (
	// SdkReadyFromCache means that definitions and the key's memberships were loaded from the
	// persistent cache. The data may be stale until SdkReady is delivered.
	SdkReadyFromCache SdkEvent = "SDK_READY_FROM_CACHE"
	// SdkReady means that definitions and the key's memberships have been fetched from the server
	// at least once.
	SdkReady SdkEvent = "SDK_READY"
	// SdkUpdated means that definitions or the key's memberships changed after SdkReady.
	SdkUpdated SdkEvent = "SDK_UPDATE"
)
