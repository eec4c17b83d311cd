package synchronizer

import (
	"github.com/flagsync/go-client-sdk/internal/fetch"
	"github.com/flagsync/go-client-sdk/internal/storage"
	"github.com/flagsync/go-client-sdk/subsystems"
)

// ClientContextImpl is the SDK's standard implementation of subsystems.ClientContext.
type ClientContextImpl struct {
	subsystems.BasicClientContext
	// Stores are the local copies shared by every synchronizer of the client.
	Stores *storage.Stores
	// Facade holds the per-key components of the client.
	Facade *ByKeyFacade
	// Filter restricts the definitions that are fetched.
	Filter fetch.Filter
}
