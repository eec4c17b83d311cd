package storage

import (
	"sort"
	"sync"

	"github.com/flagsync/go-client-sdk/internal/notification"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Membership is the set of segments a key belongs to for one kind of segment.
type Membership struct {
	// Names is sorted and has no duplicates.
	Names        []string `json:"names"`
	ChangeNumber int64    `json:"cn"`
}

func emptyMembership() Membership {
	return Membership{ChangeNumber: NoChangeNumber}
}

// Contains returns true if the segment name is in the set.
func (m Membership) Contains(name string) bool {
	_, found := slices.BinarySearch(m.Names, name)
	return found
}

// KeyMemberships holds both kinds of memberships for one key.
type KeyMemberships struct {
	MySegments      Membership `json:"ms"`
	MyLargeSegments Membership `json:"ls"`
}

func emptyKeyMemberships() KeyMemberships {
	return KeyMemberships{MySegments: emptyMembership(), MyLargeSegments: emptyMembership()}
}

func (k *KeyMemberships) of(resource notification.Resource) *Membership {
	if resource == notification.ResourceMyLargeSegments {
		return &k.MyLargeSegments
	}
	return &k.MySegments
}

// Memberships is the local copy of the segment memberships of every registered key.
type Memberships struct {
	byKey   map[string]KeyMemberships
	cache   PersistentCache
	loggers ldlog.Loggers
	lock    sync.RWMutex
}

// NewMemberships creates an empty Memberships store.
func NewMemberships(cache PersistentCache, loggers ldlog.Loggers) *Memberships {
	return &Memberships{byKey: make(map[string]KeyMemberships), cache: cache, loggers: loggers}
}

// Get returns the memberships of a key. A key that was never synchronized has empty memberships with
// NoChangeNumber.
func (s *Memberships) Get(key string) KeyMemberships {
	s.lock.RLock()
	defer s.lock.RUnlock()
	if m, ok := s.byKey[key]; ok {
		return m
	}
	return emptyKeyMemberships()
}

// GetResource returns one kind of membership of a key.
func (s *Memberships) GetResource(key string, resource notification.Resource) Membership {
	m := s.Get(key)
	return *m.of(resource)
}

// Keys returns the keys that have stored memberships, sorted.
func (s *Memberships) Keys() []string {
	s.lock.RLock()
	defer s.lock.RUnlock()
	ret := maps.Keys(s.byKey)
	sort.Strings(ret)
	return ret
}

// ApplyFetched stores memberships returned by a fetch. Each kind is replaced only if its change number
// is not lower than the stored one, so a late response cannot undo a newer pushed change. A change
// number of zero means the service did not version the data; it is applied and the stored change
// number is kept. It returns true if either set of names changed.
func (s *Memberships) ApplyFetched(key string, fetched KeyMemberships) bool {
	return s.modify(key, func(m *KeyMemberships) bool {
		changed := false
		for _, r := range []notification.Resource{notification.ResourceMySegments, notification.ResourceMyLargeSegments} {
			current, incoming := m.of(r), fetched.of(r)
			if incoming.ChangeNumber > 0 && incoming.ChangeNumber < current.ChangeNumber {
				continue
			}
			names := normalizeNames(incoming.Names)
			if !slices.Equal(names, current.Names) {
				changed = true
			}
			*current = Membership{Names: names, ChangeNumber: max(current.ChangeNumber, incoming.ChangeNumber)}
		}
		return changed
	})
}

// Replace sets one kind of membership from a notification payload. It has no effect unless
// changeNumber is newer than the stored change number. It returns true if the names changed.
func (s *Memberships) Replace(key string, resource notification.Resource, names []string, changeNumber int64) bool {
	return s.modify(key, func(m *KeyMemberships) bool {
		current := m.of(resource)
		if changeNumber <= current.ChangeNumber {
			return false
		}
		names = normalizeNames(names)
		changed := !slices.Equal(names, current.Names)
		*current = Membership{Names: names, ChangeNumber: changeNumber}
		return changed
	})
}

// AddAndRemove adds and removes segment names for one kind of membership. It has no effect unless
// changeNumber is newer than the stored change number. It returns true if the names changed.
func (s *Memberships) AddAndRemove(
	key string,
	resource notification.Resource,
	added, removed []string,
	changeNumber int64,
) bool {
	return s.modify(key, func(m *KeyMemberships) bool {
		current := m.of(resource)
		if changeNumber <= current.ChangeNumber {
			return false
		}
		set := make(map[string]struct{}, len(current.Names)+len(added))
		for _, n := range current.Names {
			set[n] = struct{}{}
		}
		for _, n := range added {
			set[n] = struct{}{}
		}
		for _, n := range removed {
			delete(set, n)
		}
		names := normalizeNames(maps.Keys(set))
		changed := !slices.Equal(names, current.Names)
		*current = Membership{Names: names, ChangeNumber: changeNumber}
		return changed
	})
}

// LoadFromCache replaces a key's memberships with the cached ones. It returns true if the key was
// found in the cache.
func (s *Memberships) LoadFromCache(key string) bool {
	if s.cache == nil {
		return false
	}
	cached, found, err := s.cache.LoadMemberships(key)
	if err != nil {
		s.loggers.Warnf("Unable to load memberships from cache: %s", err)
		return false
	}
	if !found {
		return false
	}
	cached.MySegments.Names = normalizeNames(cached.MySegments.Names)
	cached.MyLargeSegments.Names = normalizeNames(cached.MyLargeSegments.Names)
	s.lock.Lock()
	s.byKey[key] = cached
	s.lock.Unlock()
	return true
}

// Remove forgets a key. Cached data for the key is kept so that it is available if the key is
// registered again.
func (s *Memberships) Remove(key string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	delete(s.byKey, key)
}

func (s *Memberships) modify(key string, fn func(*KeyMemberships) bool) bool {
	s.lock.Lock()
	m, ok := s.byKey[key]
	if !ok {
		m = emptyKeyMemberships()
	}
	msBefore, lsBefore := m.MySegments.ChangeNumber, m.MyLargeSegments.ChangeNumber
	changed := fn(&m)
	s.byKey[key] = m
	s.lock.Unlock()

	cnChanged := msBefore != m.MySegments.ChangeNumber || lsBefore != m.MyLargeSegments.ChangeNumber
	if s.cache != nil && (changed || cnChanged) {
		if err := s.cache.SaveMemberships(key, m); err != nil {
			s.loggers.Warnf("Unable to write memberships to cache: %s", err)
		}
	}
	return changed
}

func normalizeNames(names []string) []string {
	if len(names) == 0 {
		return nil
	}
	ret := slices.Clone(names)
	sort.Strings(ret)
	return slices.Compact(ret)
}
