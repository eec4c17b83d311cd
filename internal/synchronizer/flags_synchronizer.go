package synchronizer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/flagsync/go-client-sdk/interfaces"
	"github.com/flagsync/go-client-sdk/internal/backoff"
	"github.com/flagsync/go-client-sdk/internal/fetch"
	"github.com/flagsync/go-client-sdk/internal/notification"
	"github.com/flagsync/go-client-sdk/internal/storage"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
)

// DefaultPollInterval is the interval of periodic fetches when no other value is configured.
const DefaultPollInterval = 60 * time.Second

var errStopped = errors.New("synchronizer was stopped") //nolint:gochecknoglobals

// FetchConfig holds the fetch scheduling settings shared by the synchronizers.
type FetchConfig struct {
	// PollInterval is the interval of periodic fetches.
	PollInterval time.Duration
	// BackoffBase and MaxBackoffDelay configure the delay between forced fetch retries.
	BackoffBase     int
	MaxBackoffDelay time.Duration
}

func (c FetchConfig) withDefaults() FetchConfig {
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	return c
}

// FlagsSynchronizer keeps definitions and rule-based segments up to date. Push notifications are
// applied by two update workers, one per resource kind; fetches run on their own goroutines and
// pass their results through the same change number comparison as notifications.
type FlagsSynchronizer struct {
	definitions *storage.Definitions
	segments    *storage.RuleBasedSegments
	fetcher     fetch.DefinitionsFetcher
	onEvent     func(SyncEvent)
	flagsWorker *UpdateWorker[notification.Notification]
	rbWorker    *UpdateWorker[notification.RuleBasedSegmentUpdate]
	poller      *periodicTask
	cfg         FetchConfig
	loggers     ldlog.Loggers
	ctx         context.Context
	cancel      context.CancelFunc
	fetchLock   sync.Mutex
	paused      atomic.Bool
	closed      atomic.Bool
}

// NewFlagsSynchronizer creates a FlagsSynchronizer. Signals for the events managers are passed to
// onEvent.
func NewFlagsSynchronizer(
	stores *storage.Stores,
	fetcher fetch.DefinitionsFetcher,
	onEvent func(SyncEvent),
	cfg FetchConfig,
	loggers ldlog.Loggers,
) *FlagsSynchronizer {
	ctx, cancel := context.WithCancel(context.Background())
	s := &FlagsSynchronizer{
		definitions: stores.Definitions,
		segments:    stores.RuleBasedSegments,
		fetcher:     fetcher,
		onEvent:     onEvent,
		cfg:         cfg.withDefaults(),
		loggers:     loggers,
		ctx:         ctx,
		cancel:      cancel,
	}
	s.flagsWorker = NewUpdateWorker("flags", s.applyFlagsNotification, loggers)
	s.rbWorker = NewUpdateWorker("rule-based segments", s.applyRuleBasedSegmentUpdate, loggers)
	s.poller = newPeriodicTask(s.cfg.PollInterval, s.periodicFetch)
	return s
}

// LoadFromCache loads definitions and rule-based segments from the persistent cache. It returns true
// if cached definitions were found.
func (s *FlagsSynchronizer) LoadFromCache() bool {
	s.segments.LoadFromCache()
	if !s.definitions.LoadFromCache() {
		return false
	}
	s.onEvent(FlagsLoadedFromCache)
	return true
}

// SyncAll fetches until the local data is current. It blocks until done.
func (s *FlagsSynchronizer) SyncAll(ctx context.Context) error {
	changed, err := s.fetchUntilCurrent(ctx, 0)
	if changed {
		s.onEvent(FlagsUpdated)
	}
	if err != nil {
		return err
	}
	s.onEvent(FlagsFetched)
	return nil
}

// SynchronizeFlags starts a forced fetch that continues until definitions are at least at the given
// change number, retrying with backoff.
func (s *FlagsSynchronizer) SynchronizeFlags(till int64) {
	s.forceFetch(till, "fetching definitions", s.definitions.ChangeNumber)
}

// SynchronizeRuleBasedSegments starts a forced fetch that continues until rule-based segments are at
// least at the given change number.
func (s *FlagsSynchronizer) SynchronizeRuleBasedSegments(till int64) {
	s.forceFetch(till, "fetching rule-based segments", s.segments.ChangeNumber)
}

// Process queues a push notification for the worker of its resource kind. Notifications of other
// kinds are ignored.
func (s *FlagsSynchronizer) Process(n notification.Notification) {
	switch n := n.(type) {
	case notification.SplitUpdate, notification.SplitKill:
		s.flagsWorker.Process(n)
	case notification.RuleBasedSegmentUpdate:
		s.rbWorker.Process(n)
	}
}

// StartPeriodicFetching begins polling. It has no effect if already polling.
func (s *FlagsSynchronizer) StartPeriodicFetching() {
	if !s.closed.Load() {
		s.poller.start()
	}
}

// StopPeriodicFetching stops polling.
func (s *FlagsSynchronizer) StopPeriodicFetching() {
	s.poller.stop()
}

// IsPolling returns true if periodic fetching is active.
func (s *FlagsSynchronizer) IsPolling() bool {
	return s.poller.isRunning()
}

// Pause suspends periodic fetches until Resume.
func (s *FlagsSynchronizer) Pause() {
	s.paused.Store(true)
}

// Resume undoes Pause.
func (s *FlagsSynchronizer) Resume() {
	s.paused.Store(false)
}

// Stop ends all activity. Fetches in progress are cancelled and their results discarded.
func (s *FlagsSynchronizer) Stop() {
	if s.closed.Swap(true) {
		return
	}
	s.cancel()
	s.poller.stop()
	s.flagsWorker.Stop()
	s.rbWorker.Stop()
}

func (s *FlagsSynchronizer) applyFlagsNotification(n notification.Notification) {
	switch n := n.(type) {
	case notification.SplitUpdate:
		s.applySplitUpdate(n)
	case notification.SplitKill:
		s.applySplitKill(n)
	}
}

func (s *FlagsSynchronizer) applySplitUpdate(n notification.SplitUpdate) {
	stored := s.definitions.ChangeNumber()
	if n.ChangeNumber <= stored {
		return
	}
	if n.Data != "" && (n.PreviousChangeNumber == 0 || n.PreviousChangeNumber == stored) {
		def, err := n.DecodeDefinition()
		if err == nil && def != nil {
			if len(s.definitions.Update([]*interfaces.Definition{def}, n.ChangeNumber)) > 0 {
				s.onEvent(FlagsUpdated)
			}
			return
		}
		if err != nil {
			s.loggers.Warnf("Could not apply flag update directly, fetching instead: %s", err)
		}
	}
	s.SynchronizeFlags(n.ChangeNumber)
}

func (s *FlagsSynchronizer) applySplitKill(n notification.SplitKill) {
	if n.ChangeNumber <= s.definitions.ChangeNumber() {
		return
	}
	if s.definitions.Kill(n.SplitName, n.DefaultTreatment, n.ChangeNumber) {
		s.onEvent(FlagsUpdated)
	}
	s.SynchronizeFlags(n.ChangeNumber)
}

func (s *FlagsSynchronizer) applyRuleBasedSegmentUpdate(n notification.RuleBasedSegmentUpdate) {
	stored := s.segments.ChangeNumber()
	if n.ChangeNumber <= stored {
		return
	}
	if n.Data != "" && (n.PreviousChangeNumber == 0 || n.PreviousChangeNumber == stored) {
		seg, err := n.DecodeSegment()
		if err == nil && seg != nil {
			if len(s.segments.Update([]*interfaces.RuleBasedSegment{seg}, n.ChangeNumber)) > 0 {
				s.onEvent(FlagsUpdated)
			}
			return
		}
		if err != nil {
			s.loggers.Warnf("Could not apply rule-based segment update directly, fetching instead: %s", err)
		}
	}
	s.SynchronizeRuleBasedSegments(n.ChangeNumber)
}

func (s *FlagsSynchronizer) forceFetch(till int64, description string, current func() int64) {
	if s.closed.Load() {
		return
	}
	go func() {
		counter := backoff.New(s.cfg.BackoffBase, s.cfg.MaxBackoffDelay)
		retryFetch(s.ctx, counter, s.loggers, description, func(ctx context.Context) (fetchOutcome, error) {
			if current() >= till {
				return fetchComplete, nil
			}
			changed, err := s.fetchUntilCurrent(ctx, till)
			if changed {
				s.onEvent(FlagsUpdated)
			}
			if err != nil {
				return fetchFailed, err
			}
			s.onEvent(FlagsFetched)
			if current() < till {
				return fetchStale, nil
			}
			return fetchComplete, nil
		})
	}()
}

func (s *FlagsSynchronizer) periodicFetch() {
	if s.paused.Load() {
		return
	}
	if err := s.SyncAll(s.ctx); err != nil && !errors.Is(err, errStopped) && s.ctx.Err() == nil {
		s.loggers.Warnf("Error fetching definitions: %s", err)
	}
}

// fetchUntilCurrent follows the change cursor until the service reports no further changes. Fetch
// loops are serialized so that two of them never race on the cursor.
func (s *FlagsSynchronizer) fetchUntilCurrent(ctx context.Context, till int64) (bool, error) {
	s.fetchLock.Lock()
	defer s.fetchLock.Unlock()
	changed := false
	for {
		since, rbSince := s.definitions.ChangeNumber(), s.segments.ChangeNumber()
		changes, err := s.fetcher.FetchDefinitions(ctx, fetch.DefinitionsRequest{
			Since:          since,
			RuleBasedSince: rbSince,
			Till:           till,
		})
		if s.closed.Load() {
			return changed, errStopped
		}
		if err != nil {
			return changed, err
		}
		if len(s.segments.Update(changes.RuleBasedSegments, changes.RuleBasedTill)) > 0 {
			changed = true
		}
		if len(s.definitions.Update(changes.Definitions, changes.Till)) > 0 {
			changed = true
		}
		if changes.Since == changes.Till && changes.RuleBasedSince == changes.RuleBasedTill {
			return changed, nil
		}
		if changes.Till <= since && changes.RuleBasedTill <= rbSince {
			return changed, nil
		}
	}
}
