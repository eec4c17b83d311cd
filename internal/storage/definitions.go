package storage

import (
	"sort"

	"github.com/flagsync/go-client-sdk/interfaces"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
)

// Definitions is the local copy of the feature-flag definitions.
//
// Every modification is written through to the persistent cache, if there is one. Cache errors are
// logged and otherwise ignored, since the in-memory copy remains authoritative.
type Definitions struct {
	store       *itemStore[*interfaces.Definition]
	cache       PersistentCache
	filterQuery string
	loggers     ldlog.Loggers
}

// NewDefinitions creates an empty Definitions store. The filter query identifies the subset of
// definitions being synchronized; cached data produced under a different filter is discarded.
func NewDefinitions(cache PersistentCache, filterQuery string, loggers ldlog.Loggers) *Definitions {
	return &Definitions{
		store:       newItemStore[*interfaces.Definition](),
		cache:       cache,
		filterQuery: filterQuery,
		loggers:     loggers,
	}
}

// Get returns the definition with the given name, or nil.
func (d *Definitions) Get(name string) *interfaces.Definition {
	def, _ := d.store.get(name)
	return def
}

// All returns every stored definition, sorted by name.
func (d *Definitions) All() []*interfaces.Definition {
	return d.store.all()
}

// Names returns the names of every stored definition, sorted.
func (d *Definitions) Names() []string {
	return d.store.names()
}

// NamesByFlagSet returns the sorted names of the definitions that belong to the given flag set.
func (d *Definitions) NamesByFlagSet(set string) []string {
	var ret []string
	for _, def := range d.store.all() {
		for _, s := range def.Sets {
			if s == set {
				ret = append(ret, def.Name)
				break
			}
		}
	}
	sort.Strings(ret)
	return ret
}

// ChangeNumber returns the change number of the last synchronization, or NoChangeNumber.
func (d *Definitions) ChangeNumber() int64 {
	return d.store.getChangeNumber()
}

// Update applies fetched or pushed definitions and advances the change number to at least
// changeNumber. It returns the names of the definitions that changed.
func (d *Definitions) Update(defs []*interfaces.Definition, changeNumber int64) []string {
	before := d.store.getChangeNumber()
	changed := d.store.update(defs, changeNumber)
	if len(changed) > 0 || d.store.getChangeNumber() != before {
		d.persist()
	}
	return changed
}

// Kill marks a definition as killed with the given default treatment. It has no effect unless the
// definition exists and changeNumber is newer than the definition's own change number. The store's
// overall change number is not advanced, so that the next fetch still retrieves the full change.
func (d *Definitions) Kill(name, defaultTreatment string, changeNumber int64) bool {
	killed := d.store.modify(name, func(def *interfaces.Definition) (*interfaces.Definition, bool) {
		if changeNumber <= def.ChangeNumber {
			return def, false
		}
		updated := *def
		updated.Killed = true
		updated.DefaultTreatment = defaultTreatment
		updated.ChangeNumber = changeNumber
		return &updated, true
	})
	if killed {
		d.persist()
	}
	return killed
}

// LoadFromCache replaces the store's contents with the cached definitions. It returns true if any
// usable cached data was found. If the cache was written under a different filter query, the cached
// definitions are discarded and the store is left empty.
func (d *Definitions) LoadFromCache() bool {
	if d.cache == nil {
		return false
	}
	defs, changeNumber, filterQuery, err := d.cache.LoadDefinitions()
	if err != nil {
		d.loggers.Warnf("Unable to load definitions from cache: %s", err)
		return false
	}
	if filterQuery != d.filterQuery && changeNumber != NoChangeNumber {
		d.loggers.Info("Flag filter changed since definitions were cached; discarding cache")
		d.Clear()
		return false
	}
	d.store.reset(defs, changeNumber)
	return changeNumber != NoChangeNumber
}

// Clear removes every definition and resets the change number.
func (d *Definitions) Clear() {
	d.store.reset(nil, NoChangeNumber)
	d.persist()
}

func (d *Definitions) persist() {
	if d.cache == nil {
		return
	}
	defs, changeNumber := d.store.snapshot()
	if err := d.cache.SaveDefinitions(defs, changeNumber, d.filterQuery); err != nil {
		d.loggers.Warnf("Unable to write definitions to cache: %s", err)
	}
}
