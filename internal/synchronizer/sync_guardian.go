package synchronizer

import (
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// DefaultMaxSyncPeriod is the minimum time between two syncs triggered by resuming while streaming
// is enabled.
const DefaultMaxSyncPeriod = 30 * time.Second

const lastSyncEntry = "lastSync"

// SyncGuardian suppresses redundant full syncs. While streaming is enabled, a sync is only needed if
// none has run within the sync period; without streaming every sync runs.
type SyncGuardian struct {
	lastSync         *gocache.Cache
	period           time.Duration
	streamingEnabled bool
	lock             sync.Mutex
}

// NewSyncGuardian creates a SyncGuardian. A non-positive period means DefaultMaxSyncPeriod.
func NewSyncGuardian(period time.Duration, streamingEnabled bool) *SyncGuardian {
	if period <= 0 {
		period = DefaultMaxSyncPeriod
	}
	return &SyncGuardian{
		lastSync:         gocache.New(gocache.NoExpiration, 0),
		period:           period,
		streamingEnabled: streamingEnabled,
	}
}

// MustSync reports whether a sync should run now.
func (g *SyncGuardian) MustSync() bool {
	g.lock.Lock()
	streaming := g.streamingEnabled
	g.lock.Unlock()
	if !streaming {
		return true
	}
	_, recent := g.lastSync.Get(lastSyncEntry)
	return !recent
}

// UpdateLastSync records that a sync just ran.
func (g *SyncGuardian) UpdateLastSync() {
	g.lock.Lock()
	period := g.period
	g.lock.Unlock()
	g.lastSync.Set(lastSyncEntry, time.Now(), period)
}

// SetMaxSyncPeriod raises the sync period. A shorter period than the current one is ignored.
func (g *SyncGuardian) SetMaxSyncPeriod(period time.Duration) {
	g.lock.Lock()
	defer g.lock.Unlock()
	if period > g.period {
		g.period = period
	}
}

// MaxSyncPeriod returns the current sync period.
func (g *SyncGuardian) MaxSyncPeriod() time.Duration {
	g.lock.Lock()
	defer g.lock.Unlock()
	return g.period
}

// SetStreamingEnabled records whether streaming is in use.
func (g *SyncGuardian) SetStreamingEnabled(enabled bool) {
	g.lock.Lock()
	g.streamingEnabled = enabled
	g.lock.Unlock()
}
