package synchronizer

import (
	gocache "github.com/patrickmn/go-cache"
)

// AttributesStore holds the application-supplied attributes of one key, for use by an evaluation
// engine. Entries never expire.
type AttributesStore struct {
	cache *gocache.Cache
}

// NewAttributesStore creates an empty AttributesStore.
func NewAttributesStore() *AttributesStore {
	return &AttributesStore{cache: gocache.New(gocache.NoExpiration, 0)}
}

// Set stores one attribute.
func (a *AttributesStore) Set(name string, value interface{}) {
	a.cache.Set(name, value, gocache.NoExpiration)
}

// SetAll stores several attributes, keeping any others.
func (a *AttributesStore) SetAll(values map[string]interface{}) {
	for k, v := range values {
		a.Set(k, v)
	}
}

// Get returns one attribute.
func (a *AttributesStore) Get(name string) (interface{}, bool) {
	return a.cache.Get(name)
}

// GetAll returns a copy of every attribute.
func (a *AttributesStore) GetAll() map[string]interface{} {
	items := a.cache.Items()
	ret := make(map[string]interface{}, len(items))
	for k, item := range items {
		ret[k] = item.Object
	}
	return ret
}

// Remove deletes one attribute.
func (a *AttributesStore) Remove(name string) {
	a.cache.Delete(name)
}

// Clear deletes every attribute.
func (a *AttributesStore) Clear() {
	a.cache.Flush()
}
