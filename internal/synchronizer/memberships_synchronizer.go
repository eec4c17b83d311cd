package synchronizer

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/flagsync/go-client-sdk/internal/backoff"
	"github.com/flagsync/go-client-sdk/internal/fetch"
	"github.com/flagsync/go-client-sdk/internal/notification"
	"github.com/flagsync/go-client-sdk/internal/storage"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
)

// ChangeNumbers are the change numbers a forced memberships fetch must reach. Zero means no target for
// that kind of membership.
type ChangeNumbers struct {
	MySegments      int64
	MyLargeSegments int64
}

func (c ChangeNumbers) till() int64 {
	return max(c.MySegments, c.MyLargeSegments)
}

func (c ChangeNumbers) reachedBy(m storage.KeyMemberships) bool {
	return (c.MySegments <= 0 || m.MySegments.ChangeNumber >= c.MySegments) &&
		(c.MyLargeSegments <= 0 || m.MyLargeSegments.ChangeNumber >= c.MyLargeSegments)
}

func changeNumbersFor(resource notification.Resource, cn int64) ChangeNumbers {
	if resource == notification.ResourceMyLargeSegments {
		return ChangeNumbers{MyLargeSegments: cn}
	}
	return ChangeNumbers{MySegments: cn}
}

// MembershipsSynchronizer keeps the segment memberships of a single key up to date.
type MembershipsSynchronizer struct {
	key         string
	memberships *storage.Memberships
	fetcher     fetch.MembershipsFetcher
	onEvent     func(SyncEvent)
	worker      *UpdateWorker[notification.SegmentsUpdate]
	poller      *periodicTask
	cfg         FetchConfig
	loggers     ldlog.Loggers
	ctx         context.Context
	cancel      context.CancelFunc
	paused      atomic.Bool
	closed      atomic.Bool
}

// NewMembershipsSynchronizer creates a MembershipsSynchronizer for one key.
func NewMembershipsSynchronizer(
	key string,
	memberships *storage.Memberships,
	fetcher fetch.MembershipsFetcher,
	onEvent func(SyncEvent),
	cfg FetchConfig,
	loggers ldlog.Loggers,
) *MembershipsSynchronizer {
	ctx, cancel := context.WithCancel(context.Background())
	s := &MembershipsSynchronizer{
		key:         key,
		memberships: memberships,
		fetcher:     fetcher,
		onEvent:     onEvent,
		cfg:         cfg.withDefaults(),
		loggers:     loggers,
		ctx:         ctx,
		cancel:      cancel,
	}
	s.worker = NewUpdateWorker("memberships", s.apply, loggers)
	s.poller = newPeriodicTask(s.cfg.PollInterval, s.periodicFetch)
	return s
}

// Key returns the key whose memberships are synchronized.
func (s *MembershipsSynchronizer) Key() string {
	return s.key
}

// LoadFromCache loads the key's memberships from the persistent cache. It returns true if they were
// found.
func (s *MembershipsSynchronizer) LoadFromCache() bool {
	if !s.memberships.LoadFromCache(s.key) {
		return false
	}
	s.onEvent(SegmentsLoadedFromCache)
	return true
}

// Synchronize fetches the key's memberships once. It blocks until done.
func (s *MembershipsSynchronizer) Synchronize(ctx context.Context) error {
	_, err := s.fetchOnce(ctx, 0)
	return err
}

// ForceSync schedules a fetch after the given delay, retrying with backoff until the memberships reach
// the given change numbers. Every call results in its own fetch.
func (s *MembershipsSynchronizer) ForceSync(target ChangeNumbers, delay time.Duration) {
	if s.closed.Load() {
		return
	}
	go func() {
		if !waitOrDone(s.ctx, delay) {
			return
		}
		counter := backoff.New(s.cfg.BackoffBase, s.cfg.MaxBackoffDelay)
		retryFetch(s.ctx, counter, s.loggers, "fetching memberships", func(ctx context.Context) (fetchOutcome, error) {
			m, err := s.fetchOnce(ctx, target.till())
			if err != nil {
				return fetchFailed, err
			}
			if !target.reachedBy(m) {
				return fetchStale, nil
			}
			return fetchComplete, nil
		})
	}()
}

// Process queues a segments notification for the update worker.
func (s *MembershipsSynchronizer) Process(n notification.SegmentsUpdate) {
	s.worker.Process(n)
}

// StartPeriodicFetching begins polling. It has no effect if already polling.
func (s *MembershipsSynchronizer) StartPeriodicFetching() {
	if !s.closed.Load() {
		s.poller.start()
	}
}

// StopPeriodicFetching stops polling.
func (s *MembershipsSynchronizer) StopPeriodicFetching() {
	s.poller.stop()
}

// Pause suspends periodic fetches until Resume.
func (s *MembershipsSynchronizer) Pause() {
	s.paused.Store(true)
}

// Resume undoes Pause.
func (s *MembershipsSynchronizer) Resume() {
	s.paused.Store(false)
}

// Stop ends all activity. Fetches in progress are cancelled and their results discarded.
func (s *MembershipsSynchronizer) Stop() {
	if s.closed.Swap(true) {
		return
	}
	s.cancel()
	s.poller.stop()
	s.worker.Stop()
}

func (s *MembershipsSynchronizer) periodicFetch() {
	if s.paused.Load() {
		return
	}
	if _, err := s.fetchOnce(s.ctx, 0); err != nil && s.ctx.Err() == nil && !errors.Is(err, errStopped) {
		s.loggers.Warnf("Error fetching memberships: %s", err)
	}
}

func (s *MembershipsSynchronizer) fetchOnce(ctx context.Context, till int64) (storage.KeyMemberships, error) {
	fetched, err := s.fetcher.FetchMemberships(ctx, s.key, till)
	if s.closed.Load() {
		return storage.KeyMemberships{}, errStopped
	}
	if err != nil {
		return storage.KeyMemberships{}, err
	}
	if s.memberships.ApplyFetched(s.key, fetched) {
		s.onEvent(SegmentsUpdated)
	}
	s.onEvent(SegmentsFetched)
	return s.memberships.Get(s.key), nil
}

func (s *MembershipsSynchronizer) apply(n notification.SegmentsUpdate) {
	if n.Type == notification.TypeMySegmentsUpdate {
		s.applyLegacy(n)
		return
	}
	switch n.Strategy {
	case notification.StrategyUnboundedFetch:
		delay := notification.FetchDelayMillis(s.key, n.HashSeed, n.UpdateIntervalMs)
		s.ForceSync(changeNumbersFor(n.Resource, n.ChangeNumber), time.Duration(delay)*time.Millisecond)
	case notification.StrategyBoundedFetch:
		bitmap, err := n.DecodeBitmap()
		if err != nil {
			s.loggers.Warnf("Could not decode %s notification, fetching instead: %s", n.Resource, err)
			s.ForceSync(changeNumbersFor(n.Resource, n.ChangeNumber), 0)
			return
		}
		if notification.IsKeyInBitmap(bitmap, notification.KeyListHash(s.key)) {
			delay := notification.FetchDelayMillis(s.key, n.HashSeed, n.UpdateIntervalMs)
			s.ForceSync(changeNumbersFor(n.Resource, n.ChangeNumber), time.Duration(delay)*time.Millisecond)
		}
	case notification.StrategyKeyList:
		keys, err := n.DecodeKeyList()
		if err != nil || n.ChangeNumber <= 0 {
			if err != nil {
				s.loggers.Warnf("Could not decode %s notification, fetching instead: %s", n.Resource, err)
			}
			s.ForceSync(changeNumbersFor(n.Resource, n.ChangeNumber), 0)
			return
		}
		added, removed := keys.Contains(notification.KeyListHash(s.key))
		switch {
		case added:
			s.addAndRemove(n, n.SegmentNames, nil)
		case removed:
			s.addAndRemove(n, nil, n.SegmentNames)
		}
	case notification.StrategySegmentRemoval:
		if n.ChangeNumber <= 0 {
			s.ForceSync(changeNumbersFor(n.Resource, n.ChangeNumber), 0)
			return
		}
		current := s.memberships.GetResource(s.key, n.Resource)
		for _, name := range n.SegmentNames {
			if current.Contains(name) {
				s.addAndRemove(n, nil, n.SegmentNames)
				return
			}
		}
	}
}

// applyLegacy handles notifications of the older per-key format, which either carry the complete
// list of segments or ask for a fetch.
func (s *MembershipsSynchronizer) applyLegacy(n notification.SegmentsUpdate) {
	if n.ChannelKeyHash != "" && n.ChannelKeyHash != notification.ChannelKeyHash(s.key) {
		return
	}
	if !n.IncludesPayload || n.ChangeNumber <= 0 {
		s.ForceSync(changeNumbersFor(n.Resource, n.ChangeNumber), 0)
		return
	}
	if s.memberships.Replace(s.key, n.Resource, n.SegmentList, n.ChangeNumber) {
		s.onEvent(SegmentsUpdated)
	}
}

func (s *MembershipsSynchronizer) addAndRemove(n notification.SegmentsUpdate, added, removed []string) {
	if s.memberships.AddAndRemove(s.key, n.Resource, added, removed, n.ChangeNumber) {
		s.onEvent(SegmentsUpdated)
	}
}
