package storage

import (
	"github.com/flagsync/go-client-sdk/interfaces"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
)

// RuleBasedSegments is the local copy of the rule-based segments.
type RuleBasedSegments struct {
	store   *itemStore[*interfaces.RuleBasedSegment]
	cache   PersistentCache
	loggers ldlog.Loggers
}

// NewRuleBasedSegments creates an empty RuleBasedSegments store.
func NewRuleBasedSegments(cache PersistentCache, loggers ldlog.Loggers) *RuleBasedSegments {
	return &RuleBasedSegments{
		store:   newItemStore[*interfaces.RuleBasedSegment](),
		cache:   cache,
		loggers: loggers,
	}
}

// Get returns the segment with the given name, or nil.
func (r *RuleBasedSegments) Get(name string) *interfaces.RuleBasedSegment {
	seg, _ := r.store.get(name)
	return seg
}

// All returns every stored segment, sorted by name.
func (r *RuleBasedSegments) All() []*interfaces.RuleBasedSegment {
	return r.store.all()
}

// Names returns the names of every stored segment, sorted.
func (r *RuleBasedSegments) Names() []string {
	return r.store.names()
}

// ChangeNumber returns the change number of the last synchronization, or NoChangeNumber.
func (r *RuleBasedSegments) ChangeNumber() int64 {
	return r.store.getChangeNumber()
}

// Update applies fetched or pushed segments and advances the change number to at least changeNumber.
func (r *RuleBasedSegments) Update(segments []*interfaces.RuleBasedSegment, changeNumber int64) []string {
	before := r.store.getChangeNumber()
	changed := r.store.update(segments, changeNumber)
	if len(changed) > 0 || r.store.getChangeNumber() != before {
		r.persist()
	}
	return changed
}

// LoadFromCache replaces the store's contents with the cached segments.
func (r *RuleBasedSegments) LoadFromCache() bool {
	if r.cache == nil {
		return false
	}
	segments, changeNumber, err := r.cache.LoadRuleBasedSegments()
	if err != nil {
		r.loggers.Warnf("Unable to load rule-based segments from cache: %s", err)
		return false
	}
	r.store.reset(segments, changeNumber)
	return changeNumber != NoChangeNumber
}

// Clear removes every segment and resets the change number.
func (r *RuleBasedSegments) Clear() {
	r.store.reset(nil, NoChangeNumber)
	r.persist()
}

func (r *RuleBasedSegments) persist() {
	if r.cache == nil {
		return
	}
	segments, changeNumber := r.store.snapshot()
	if err := r.cache.SaveRuleBasedSegments(segments, changeNumber); err != nil {
		r.loggers.Warnf("Unable to write rule-based segments to cache: %s", err)
	}
}
