package synchronizer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/flagsync/go-client-sdk/interfaces"
	"github.com/flagsync/go-client-sdk/internal"
	"github.com/flagsync/go-client-sdk/internal/backoff"
	"github.com/flagsync/go-client-sdk/internal/fetch"
	"github.com/flagsync/go-client-sdk/internal/push"
	"github.com/flagsync/go-client-sdk/internal/storage"
	"github.com/flagsync/go-client-sdk/internal/timers"
	"github.com/flagsync/go-client-sdk/subsystems"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"

	"golang.org/x/sync/errgroup"
)

const pushRestartTimer timers.ID = "pushRestart"

// PushManager is the part of push.Manager that the SyncManager depends on.
type PushManager interface {
	Events() <-chan push.PushEvent
	RemoveEventListener(ch <-chan push.PushEvent)
	Start()
	Stop()
	Pause()
	Resume()
	UpdateKeys(keys []string)
	Close()
}

// PushManagerFactory creates the push manager once the notification sink and initial keys are known.
type PushManagerFactory func(sink push.NotificationSink, keys []string) PushManager

// SyncManagerConfig describes the configuration of a SyncManager.
type SyncManagerConfig struct {
	// StreamingEnabled selects push notifications with polling as a fallback; otherwise the SyncManager
	// only polls.
	StreamingEnabled bool
	Fetch            FetchConfig
	// MaxSyncPeriod is the initial period of the sync guardian.
	MaxSyncPeriod time.Duration
	// LogUserKeyInErrors allows per-key error messages to name the key.
	LogUserKeyInErrors bool
}

// SyncManager is the data source that keeps definitions and memberships up to date, using push
// notifications when available and periodic fetches otherwise.
type SyncManager struct {
	stores             *storage.Stores
	facade             *ByKeyFacade
	sink               subsystems.DataSourceUpdateSink
	flags              *FlagsSynchronizer
	membershipsFetcher fetch.MembershipsFetcher
	newPush            PushManagerFactory
	push               PushManager
	pushEvents         <-chan push.PushEvent
	guardian           *SyncGuardian
	timers             *timers.Manager
	resetBackoff       *backoff.Counter
	cfg                SyncManagerConfig
	loggers            ldlog.Loggers
	ctx                context.Context
	cancel             context.CancelFunc

	started      atomic.Bool
	initialized  atomic.Bool
	flagsCached  atomic.Bool
	flagsFetched atomic.Bool
	closed       atomic.Bool
	readyCh      chan<- struct{}
	readyOnce    sync.Once
	polling      bool
	mode         interfaces.SyncMode
	lock         sync.Mutex
	closeOnce    sync.Once
}

// NewSyncManager creates a SyncManager. If newPush is nil, or streaming is disabled in the
// configuration, the SyncManager only polls.
func NewSyncManager(
	stores *storage.Stores,
	facade *ByKeyFacade,
	sink subsystems.DataSourceUpdateSink,
	flagsFetcher fetch.DefinitionsFetcher,
	membershipsFetcher fetch.MembershipsFetcher,
	newPush PushManagerFactory,
	cfg SyncManagerConfig,
	loggers ldlog.Loggers,
) *SyncManager {
	if newPush == nil {
		cfg.StreamingEnabled = false
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &SyncManager{
		stores:             stores,
		facade:             facade,
		sink:               sink,
		membershipsFetcher: membershipsFetcher,
		newPush:            newPush,
		guardian:           NewSyncGuardian(cfg.MaxSyncPeriod, cfg.StreamingEnabled),
		resetBackoff:       backoff.New(cfg.Fetch.BackoffBase, cfg.Fetch.MaxBackoffDelay),
		cfg:                cfg,
		loggers:            loggers,
		ctx:                ctx,
		cancel:             cancel,
		mode:               interfaces.SyncModeInitializing,
	}
	s.flags = NewFlagsSynchronizer(stores, flagsFetcher, s.onFlagsEvent, cfg.Fetch, loggers)
	s.timers = timers.NewManager(s.timerFired)
	return s
}

// IsInitialized is a standard method of DataSource.
func (s *SyncManager) IsInitialized() bool {
	return s.initialized.Load()
}

// IsStreaming returns true while push notifications are flowing.
func (s *SyncManager) IsStreaming() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.push != nil && !s.polling
}

// IsPolling returns true while periodic fetches are running.
func (s *SyncManager) IsPolling() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.polling
}

// Start is a standard method of DataSource. It loads cached data, runs an initial fetch of every
// resource, then starts either the push subsystem or polling.
func (s *SyncManager) Start(closeWhenReady chan<- struct{}) {
	if s.closed.Load() || s.started.Swap(true) {
		return
	}
	s.readyCh = closeWhenReady
	for _, key := range s.facade.Keys() {
		s.attachSegments(key)
	}
	go s.run()
}

func (s *SyncManager) run() {
	s.flags.LoadFromCache()
	s.facade.LoadAllFromCache()

	if err := s.syncAll(s.ctx); err != nil && s.ctx.Err() == nil {
		s.loggers.Warnf("Initial synchronization failed: %s", err)
		s.reportError(err)
	}
	if s.closed.Load() {
		return
	}

	if s.cfg.StreamingEnabled {
		s.startPush()
		return
	}
	s.startPolling()
	s.updateStatus(interfaces.SyncModePolling, nil)
}

func (s *SyncManager) startPush() {
	s.lock.Lock()
	if s.closed.Load() {
		s.lock.Unlock()
		return
	}
	s.push = s.newPush(NewNotificationProcessor(s.flags, s.facade, s.loggers), s.facade.Keys())
	s.pushEvents = s.push.Events()
	pm, events := s.push, s.pushEvents
	s.lock.Unlock()

	go s.consumePushEvents(pm, events)
	pm.Start()
}

func (s *SyncManager) consumePushEvents(pm PushManager, events <-chan push.PushEvent) {
	for event := range events {
		s.handlePushEvent(pm, event)
	}
}

func (s *SyncManager) handlePushEvent(pm PushManager, event push.PushEvent) {
	if s.closed.Load() {
		return
	}
	s.loggers.Debugf("Received push event %s", event.Kind)
	switch event.Kind {
	case push.PushSubsystemUp:
		s.resetBackoff.Reset()
		s.stopPolling()
		s.updateStatus(interfaces.SyncModeStreaming, nil)
		go s.syncAllLogged()
	case push.PushSubsystemDown:
		s.startPolling()
		s.updateStatus(interfaces.SyncModePolling, nil)
	case push.PushRetryableError:
		s.startPolling()
		s.updateStatus(interfaces.SyncModePolling, pushErrorInfo(event.Err))
	case push.PushNonRetryableError, push.PushSubsystemDisabled:
		s.guardian.SetStreamingEnabled(false)
		s.startPolling()
		s.updateStatus(interfaces.SyncModePolling, pushErrorInfo(event.Err))
		go pm.Stop()
	case push.PushReset:
		go func() {
			pm.Stop()
			s.timers.Add(pushRestartTimer, s.resetBackoff.NextDelay())
		}()
	case push.PushDelayReceived:
		s.guardian.SetMaxSyncPeriod(time.Duration(event.DelaySeconds) * time.Second)
	}
}

func (s *SyncManager) timerFired(id timers.ID) {
	if id != pushRestartTimer || s.closed.Load() {
		return
	}
	s.lock.Lock()
	pm := s.push
	s.lock.Unlock()
	if pm != nil {
		pm.Start()
	}
}

func (s *SyncManager) startPolling() {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.polling || s.closed.Load() {
		return
	}
	s.polling = true
	s.flags.StartPeriodicFetching()
	s.facade.StartPeriodicSync()
}

func (s *SyncManager) stopPolling() {
	s.lock.Lock()
	defer s.lock.Unlock()
	if !s.polling {
		return
	}
	s.polling = false
	s.flags.StopPeriodicFetching()
	s.facade.StopPeriodicSync()
}

// Pause is a standard method of DataSource.
func (s *SyncManager) Pause() {
	s.flags.Pause()
	s.facade.Pause()
	if pm := s.currentPush(); pm != nil {
		pm.Pause()
	}
}

// Resume is a standard method of DataSource. A full sync runs if the sync guardian allows it.
func (s *SyncManager) Resume() {
	s.flags.Resume()
	s.facade.Resume()
	if pm := s.currentPush(); pm != nil {
		pm.Resume()
	}
	if s.started.Load() && s.guardian.MustSync() {
		go s.syncAllLogged()
	}
}

// KeyAdded is a standard method of DataSource.
func (s *SyncManager) KeyAdded(key string) {
	if s.closed.Load() {
		return
	}
	seg := s.attachSegments(key)
	group := s.facade.Get(key)
	if seg == nil || group == nil || !s.started.Load() {
		return
	}
	if s.flagsCached.Load() {
		group.Events.Notify(FlagsLoadedFromCache)
	}
	if s.flagsFetched.Load() {
		group.Events.Notify(FlagsFetched)
	}
	s.facade.LoadFromCache(key)
	go func() {
		if err := s.facade.Sync(s.ctx, key); err != nil && s.ctx.Err() == nil && !errors.Is(err, errStopped) {
			if s.cfg.LogUserKeyInErrors {
				s.loggers.Warnf("Error fetching memberships for key %q: %s", key, err)
			} else {
				s.loggers.Warnf("Error fetching memberships for new key: %s", err)
			}
		}
	}()
	if s.IsPolling() {
		seg.StartPeriodicFetching()
	}
	if pm := s.currentPush(); pm != nil {
		pm.UpdateKeys(s.facade.Keys())
	}
}

// KeyRemoved is a standard method of DataSource. The key's group must already have been removed from
// the facade.
func (s *SyncManager) KeyRemoved(key string) {
	s.stores.Memberships.Remove(key)
	if pm := s.currentPush(); pm != nil && !s.closed.Load() {
		pm.UpdateKeys(s.facade.Keys())
	}
}

// Close is a standard method of DataSource.
func (s *SyncManager) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.cancel()
		s.timers.Close()
		s.lock.Lock()
		pm, events := s.push, s.pushEvents
		s.polling = false
		s.lock.Unlock()
		if pm != nil {
			pm.RemoveEventListener(events)
			pm.Close()
		}
		s.flags.Stop()
		s.facade.Stop()
		s.updateStatus(interfaces.SyncModeOff, nil)
		s.markReady()
	})
	return nil
}

func (s *SyncManager) currentPush() PushManager {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.push
}

// attachSegments creates the memberships synchronizer of a registered key. It returns nil if the key
// is unknown or already has one.
func (s *SyncManager) attachSegments(key string) *MembershipsSynchronizer {
	group := s.facade.Get(key)
	if group == nil {
		return nil
	}
	seg := NewMembershipsSynchronizer(key, s.stores.Memberships, s.membershipsFetcher, group.Events.Notify,
		s.cfg.Fetch, s.loggers)
	if !s.facade.AttachSegments(key, seg) {
		seg.Stop()
		return nil
	}
	return seg
}

func (s *SyncManager) syncAll(ctx context.Context) error {
	var eg errgroup.Group
	eg.Go(func() error { return s.flags.SyncAll(ctx) })
	eg.Go(func() error { return s.facade.SyncAll(ctx) })
	err := eg.Wait()
	if err == nil {
		s.guardian.UpdateLastSync()
	}
	return err
}

func (s *SyncManager) syncAllLogged() {
	if err := s.syncAll(s.ctx); err != nil && s.ctx.Err() == nil && !errors.Is(err, errStopped) {
		s.loggers.Warnf("Error synchronizing: %s", err)
		s.reportError(err)
	}
}

func (s *SyncManager) onFlagsEvent(event SyncEvent) {
	switch event {
	case FlagsLoadedFromCache:
		s.flagsCached.Store(true)
	case FlagsFetched:
		s.flagsFetched.Store(true)
		s.initialized.Store(true)
		s.markReady()
	}
	s.facade.NotifyFlagsEvent(event)
}

func (s *SyncManager) markReady() {
	s.readyOnce.Do(func() {
		if s.readyCh != nil {
			close(s.readyCh)
		}
	})
}

func (s *SyncManager) reportError(err error) {
	info := &interfaces.SyncErrorInfo{Kind: interfaces.SyncErrorKindUnknown, Message: err.Error(), Time: time.Now()}
	var statusErr internal.HTTPStatusError
	var jsonErr fetch.MalformedJSONError
	switch {
	case errors.As(err, &statusErr):
		info.Kind = interfaces.SyncErrorKindErrorResponse
		info.StatusCode = statusErr.Code
		if !internal.IsHTTPErrorRecoverable(statusErr.Code) {
			// initialization cannot succeed
			s.markReady()
		}
	case errors.As(err, &jsonErr):
		info.Kind = interfaces.SyncErrorKindInvalidData
	default:
		info.Kind = interfaces.SyncErrorKindNetworkError
	}
	s.lock.Lock()
	mode := s.mode
	s.lock.Unlock()
	s.sink.UpdateStatus(mode, info)
}

func (s *SyncManager) updateStatus(mode interfaces.SyncMode, err *interfaces.SyncErrorInfo) {
	s.lock.Lock()
	s.mode = mode
	s.lock.Unlock()
	s.sink.UpdateStatus(mode, err)
}

func pushErrorInfo(err error) *interfaces.SyncErrorInfo {
	if err == nil {
		return nil
	}
	info := &interfaces.SyncErrorInfo{Kind: interfaces.SyncErrorKindPushError, Message: err.Error(), Time: time.Now()}
	var connErr *push.ConnectionError
	if errors.As(err, &connErr) {
		info.StatusCode = connErr.StatusCode
	}
	return info
}
