package storage

import (
	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
)

// Stores groups the local copies of every synchronized resource, sharing one persistent cache.
type Stores struct {
	Definitions       *Definitions
	RuleBasedSegments *RuleBasedSegments
	Memberships       *Memberships
	cache             PersistentCache
}

// NewStores creates empty stores. The cache may be nil.
func NewStores(cache PersistentCache, filterQuery string, loggers ldlog.Loggers) *Stores {
	return &Stores{
		Definitions:       NewDefinitions(cache, filterQuery, loggers),
		RuleBasedSegments: NewRuleBasedSegments(cache, loggers),
		Memberships:       NewMemberships(cache, loggers),
		cache:             cache,
	}
}

// Close closes the persistent cache, if any.
func (s *Stores) Close() error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Close()
}
