package synchronizer

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/flagsync/go-client-sdk/internal/notification"

	"golang.org/x/sync/errgroup"
)

// ClientHandle is the evaluation handle the application holds for one key.
type ClientHandle interface {
	Key() string
}

// KeyGroup holds the components replicated for each registered key. Segments is set by
// ByKeyFacade.AttachSegments once the data source has created the key's synchronizer.
type KeyGroup struct {
	Key        string
	Client     ClientHandle
	Events     *EventsManager
	Segments   *MembershipsSynchronizer
	Attributes *AttributesStore
	stopOnce   sync.Once
}

// NewKeyGroup creates a group with a new events manager and attributes store.
func NewKeyGroup(key string, client ClientHandle) *KeyGroup {
	return &KeyGroup{
		Key:        key,
		Client:     client,
		Events:     NewEventsManager(),
		Attributes: NewAttributesStore(),
	}
}

func (g *KeyGroup) stop(segments *MembershipsSynchronizer) {
	g.stopOnce.Do(func() {
		if segments != nil {
			segments.Stop()
		}
	})
}

// ByKeyFacade owns the KeyGroups of every registered key. Broadcast operations work on a snapshot
// taken under the lock, so keys can be added or removed while they run. Operations on unknown keys
// do nothing.
type ByKeyFacade struct {
	groups map[string]*KeyGroup
	lock   sync.RWMutex
}

// NewByKeyFacade creates an empty ByKeyFacade.
func NewByKeyFacade() *ByKeyFacade {
	return &ByKeyFacade{groups: make(map[string]*KeyGroup)}
}

// Append registers a group. A group already registered for the same key is stopped and replaced.
func (f *ByKeyFacade) Append(group *KeyGroup) {
	f.lock.Lock()
	old := f.groups[group.Key]
	f.groups[group.Key] = group
	var oldSegments *MembershipsSynchronizer
	if old != nil {
		oldSegments = old.Segments
	}
	f.lock.Unlock()
	if old != nil && old != group {
		old.stop(oldSegments)
		old.Events.Close()
	}
}

// AttachSegments sets the memberships synchronizer of a registered key. It returns false if the key
// is not registered or already has one, in which case the caller still owns the synchronizer.
func (f *ByKeyFacade) AttachSegments(key string, segments *MembershipsSynchronizer) bool {
	f.lock.Lock()
	defer f.lock.Unlock()
	g := f.groups[key]
	if g == nil || g.Segments != nil {
		return false
	}
	g.Segments = segments
	return true
}

// Remove stops and unregisters the group of a key. It returns the number of groups remaining.
func (f *ByKeyFacade) Remove(key string) int {
	f.lock.Lock()
	group := f.groups[key]
	var segments *MembershipsSynchronizer
	if group != nil {
		segments = group.Segments
	}
	delete(f.groups, key)
	remaining := len(f.groups)
	f.lock.Unlock()
	if group != nil {
		group.stop(segments)
		group.Events.Close()
	}
	return remaining
}

// Get returns the group of a key, or nil.
func (f *ByKeyFacade) Get(key string) *KeyGroup {
	f.lock.RLock()
	defer f.lock.RUnlock()
	return f.groups[key]
}

// Keys returns the registered keys, sorted.
func (f *ByKeyFacade) Keys() []string {
	f.lock.RLock()
	ret := make([]string, 0, len(f.groups))
	for k := range f.groups {
		ret = append(ret, k)
	}
	f.lock.RUnlock()
	sort.Strings(ret)
	return ret
}

// Count returns the number of registered keys.
func (f *ByKeyFacade) Count() int {
	f.lock.RLock()
	defer f.lock.RUnlock()
	return len(f.groups)
}

// StartPeriodicSync starts periodic memberships fetching for every key.
func (f *ByKeyFacade) StartPeriodicSync() {
	f.forEachSegments(func(s *MembershipsSynchronizer) { s.StartPeriodicFetching() })
}

// StopPeriodicSync stops periodic memberships fetching for every key.
func (f *ByKeyFacade) StopPeriodicSync() {
	f.forEachSegments(func(s *MembershipsSynchronizer) { s.StopPeriodicFetching() })
}

// Pause pauses every key's memberships synchronizer.
func (f *ByKeyFacade) Pause() {
	f.forEachSegments(func(s *MembershipsSynchronizer) { s.Pause() })
}

// Resume resumes every key's memberships synchronizer.
func (f *ByKeyFacade) Resume() {
	f.forEachSegments(func(s *MembershipsSynchronizer) { s.Resume() })
}

// Sync fetches the memberships of one key, blocking until done.
func (f *ByKeyFacade) Sync(ctx context.Context, key string) error {
	if s := f.segmentsOf(key); s != nil {
		return s.Synchronize(ctx)
	}
	return nil
}

// SyncAll fetches the memberships of every key concurrently, blocking until all are done. It returns
// the first error.
func (f *ByKeyFacade) SyncAll(ctx context.Context) error {
	var eg errgroup.Group
	for _, s := range f.segmentsSnapshot() {
		s := s
		eg.Go(func() error { return s.Synchronize(ctx) })
	}
	return eg.Wait()
}

// ForceSync schedules a forced memberships fetch for one key.
func (f *ByKeyFacade) ForceSync(key string, target ChangeNumbers, delay time.Duration) {
	if s := f.segmentsOf(key); s != nil {
		s.ForceSync(target, delay)
	}
}

// ForceSyncAll schedules a forced memberships fetch for every key.
func (f *ByKeyFacade) ForceSyncAll(target ChangeNumbers, delay time.Duration) {
	f.forEachSegments(func(s *MembershipsSynchronizer) { s.ForceSync(target, delay) })
}

// LoadFromCache loads the cached memberships of one key. It returns true if they were found.
func (f *ByKeyFacade) LoadFromCache(key string) bool {
	if s := f.segmentsOf(key); s != nil {
		return s.LoadFromCache()
	}
	return false
}

// LoadAllFromCache loads the cached memberships of every key.
func (f *ByKeyFacade) LoadAllFromCache() {
	f.forEachSegments(func(s *MembershipsSynchronizer) { s.LoadFromCache() })
}

// Process passes a segments notification to every key. Each synchronizer decides whether the
// notification concerns its key.
func (f *ByKeyFacade) Process(n notification.SegmentsUpdate) {
	f.forEachSegments(func(s *MembershipsSynchronizer) { s.Process(n) })
}

// NotifyFlagsEvent passes a flags signal to the events manager of every key.
func (f *ByKeyFacade) NotifyFlagsEvent(event SyncEvent) {
	f.lock.RLock()
	managers := make([]*EventsManager, 0, len(f.groups))
	for _, g := range f.groups {
		managers = append(managers, g.Events)
	}
	f.lock.RUnlock()
	for _, m := range managers {
		m.Notify(event)
	}
}

// Stop stops the synchronizers of every key. Groups stay registered.
func (f *ByKeyFacade) Stop() {
	f.lock.RLock()
	groups := make(map[*KeyGroup]*MembershipsSynchronizer, len(f.groups))
	for _, g := range f.groups {
		groups[g] = g.Segments
	}
	f.lock.RUnlock()
	for g, s := range groups {
		g.stop(s)
	}
}

// Destroy stops every group and unregisters all keys.
func (f *ByKeyFacade) Destroy() {
	f.lock.Lock()
	groups := f.groups
	f.groups = make(map[string]*KeyGroup)
	f.lock.Unlock()
	for _, g := range groups {
		g.stop(g.Segments)
		g.Events.Close()
	}
}

func (f *ByKeyFacade) segmentsOf(key string) *MembershipsSynchronizer {
	f.lock.RLock()
	defer f.lock.RUnlock()
	if g := f.groups[key]; g != nil {
		return g.Segments
	}
	return nil
}

func (f *ByKeyFacade) segmentsSnapshot() []*MembershipsSynchronizer {
	f.lock.RLock()
	defer f.lock.RUnlock()
	ret := make([]*MembershipsSynchronizer, 0, len(f.groups))
	for _, g := range f.groups {
		if g.Segments != nil {
			ret = append(ret, g.Segments)
		}
	}
	return ret
}

func (f *ByKeyFacade) forEachSegments(fn func(*MembershipsSynchronizer)) {
	for _, s := range f.segmentsSnapshot() {
		fn(s)
	}
}
