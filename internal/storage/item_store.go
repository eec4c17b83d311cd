package storage

import (
	"sort"
	"sync"

	"golang.org/x/exp/maps"
)

// NoChangeNumber is the change number of a resource that has never been synchronized.
const NoChangeNumber int64 = -1

// Item is implemented by the versioned items kept in an itemStore.
type Item interface {
	GetName() string
	GetChangeNumber() int64
	IsArchived() bool
}

// itemStore holds items by name plus the change number of the collection as a whole.
type itemStore[T Item] struct {
	items        map[string]T
	changeNumber int64
	lock         sync.RWMutex
}

func newItemStore[T Item]() *itemStore[T] {
	return &itemStore[T]{items: make(map[string]T), changeNumber: NoChangeNumber}
}

func (s *itemStore[T]) get(name string) (T, bool) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	item, ok := s.items[name]
	return item, ok
}

func (s *itemStore[T]) all() []T {
	s.lock.RLock()
	defer s.lock.RUnlock()
	ret := maps.Values(s.items)
	sort.Slice(ret, func(i, j int) bool { return ret[i].GetName() < ret[j].GetName() })
	return ret
}

func (s *itemStore[T]) names() []string {
	s.lock.RLock()
	defer s.lock.RUnlock()
	ret := maps.Keys(s.items)
	sort.Strings(ret)
	return ret
}

func (s *itemStore[T]) getChangeNumber() int64 {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.changeNumber
}

// update applies a batch of items. Each item replaces the stored item of the same name unless the
// stored one has a higher change number, so an older batch can never undo a newer change. Archived
// items are removed. The collection's change number becomes the larger of the current one and
// changeNumber. It returns the names of the items that changed.
func (s *itemStore[T]) update(items []T, changeNumber int64) []string {
	s.lock.Lock()
	defer s.lock.Unlock()
	var changed []string
	for _, item := range items {
		name := item.GetName()
		existing, exists := s.items[name]
		if exists && existing.GetChangeNumber() > item.GetChangeNumber() {
			continue
		}
		if item.IsArchived() {
			if exists {
				delete(s.items, name)
				changed = append(changed, name)
			}
			continue
		}
		s.items[name] = item
		changed = append(changed, name)
	}
	if changeNumber > s.changeNumber {
		s.changeNumber = changeNumber
	}
	return changed
}

// modify replaces an existing item with the result of fn, if fn reports a change. The collection's
// change number is not affected.
func (s *itemStore[T]) modify(name string, fn func(T) (T, bool)) bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	existing, ok := s.items[name]
	if !ok {
		return false
	}
	updated, changed := fn(existing)
	if changed {
		s.items[name] = updated
	}
	return changed
}

func (s *itemStore[T]) snapshot() ([]T, int64) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return maps.Values(s.items), s.changeNumber
}

func (s *itemStore[T]) reset(items []T, changeNumber int64) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.items = make(map[string]T, len(items))
	for _, item := range items {
		if !item.IsArchived() {
			s.items[item.GetName()] = item
		}
	}
	s.changeNumber = changeNumber
}
