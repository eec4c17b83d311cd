package fscomponents

import (
	"errors"

	"github.com/flagsync/go-client-sdk/internal/storage"
	"github.com/flagsync/go-client-sdk/subsystems"
)

// PersistentCacheBuilder is a configurable factory for the SDK's persistent cache.
//
// See PersistentCache for usage.
type PersistentCacheBuilder struct {
	path         string
	clearOnStart bool
}

// PersistentCache returns a configurable factory for a cache that keeps the last synchronized
// definitions and memberships in a local database file, so that a restarted client can be used before
// its first fetch completes. The file is created if it does not exist.
//
//	config := fsclient.Config{
//	    Cache: fscomponents.PersistentCache("/var/lib/myapp/flags.db"),
//	}
//
// Cached definitions are discarded if they were retrieved with a different Config.Filter.
func PersistentCache(path string) *PersistentCacheBuilder {
	return &PersistentCacheBuilder{path: path}
}

// ClearOnStart specifies whether the cached data is discarded when the client starts. The default
// is false.
func (b *PersistentCacheBuilder) ClearOnStart(clearOnStart bool) *PersistentCacheBuilder {
	b.clearOnStart = clearOnStart
	return b
}

// Build is called internally by the SDK.
func (b *PersistentCacheBuilder) Build(context subsystems.ClientContext) (storage.PersistentCache, error) {
	if b.path == "" {
		return nil, errors.New("persistent cache path must not be empty")
	}
	cache, err := storage.OpenBoltCache(b.path)
	if err != nil {
		return nil, err
	}
	if b.clearOnStart {
		if err := cache.Clear(); err != nil {
			_ = cache.Close()
			return nil, err
		}
		context.GetLogging().Loggers.Info("Cleared the persistent cache")
	}
	return cache, nil
}
