package synchronizer

import (
	"sync"
	"time"

	"github.com/flagsync/go-client-sdk/interfaces"
	"github.com/flagsync/go-client-sdk/internal"
	"github.com/flagsync/go-client-sdk/internal/storage"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
)

// DataSourceUpdateSinkImpl is the internal implementation of subsystems.DataSourceUpdateSink. It is
// exported because the data sources built into the SDK need the implementation type rather than the
// interface.
type DataSourceUpdateSinkImpl struct {
	stores        *storage.Stores
	facade        *ByKeyFacade
	broadcaster   *internal.Broadcaster[interfaces.SyncStatus]
	loggers       ldlog.Loggers
	currentStatus interfaces.SyncStatus
	initialized   bool
	lock          sync.Mutex
}

// NewDataSourceUpdateSinkImpl creates the internal implementation of DataSourceUpdateSink.
func NewDataSourceUpdateSinkImpl(
	stores *storage.Stores,
	facade *ByKeyFacade,
	broadcaster *internal.Broadcaster[interfaces.SyncStatus],
	loggers ldlog.Loggers,
) *DataSourceUpdateSinkImpl {
	return &DataSourceUpdateSinkImpl{
		stores:      stores,
		facade:      facade,
		broadcaster: broadcaster,
		loggers:     loggers,
		currentStatus: interfaces.SyncStatus{
			Mode:  interfaces.SyncModeInitializing,
			Since: time.Now(),
		},
	}
}

// Keys is a standard method of DataSourceUpdateSink.
func (d *DataSourceUpdateSinkImpl) Keys() []string {
	return d.facade.Keys()
}

// InitDefinitions is a standard method of DataSourceUpdateSink.
func (d *DataSourceUpdateSinkImpl) InitDefinitions(
	definitions []interfaces.Definition,
	segments []interfaces.RuleBasedSegment,
	changeNumber int64,
) {
	defs := make([]*interfaces.Definition, 0, len(definitions))
	for i := range definitions {
		def := definitions[i]
		defs = append(defs, &def)
	}
	segs := make([]*interfaces.RuleBasedSegment, 0, len(segments))
	for i := range segments {
		seg := segments[i]
		segs = append(segs, &seg)
	}
	d.stores.Definitions.Clear()
	d.stores.Definitions.Update(defs, changeNumber)
	d.stores.RuleBasedSegments.Clear()
	d.stores.RuleBasedSegments.Update(segs, changeNumber)

	d.lock.Lock()
	d.initialized = true
	d.lock.Unlock()

	d.facade.NotifyFlagsEvent(FlagsUpdated)
	d.facade.NotifyFlagsEvent(FlagsFetched)
	for _, key := range d.facade.Keys() {
		if g := d.facade.Get(key); g != nil {
			g.Events.Notify(SegmentsFetched)
		}
	}
}

// InitMemberships is a standard method of DataSourceUpdateSink.
func (d *DataSourceUpdateSinkImpl) InitMemberships(key string, segments []string, largeSegments []string) {
	group := d.facade.Get(key)
	if group == nil {
		return
	}
	changed := d.stores.Memberships.ApplyFetched(key, storage.KeyMemberships{
		MySegments:      storage.Membership{Names: segments},
		MyLargeSegments: storage.Membership{Names: largeSegments},
	})
	if changed {
		group.Events.Notify(SegmentsUpdated)
	}
	d.lock.Lock()
	initialized := d.initialized
	d.lock.Unlock()
	if initialized {
		group.Events.Notify(FlagsFetched)
	}
	group.Events.Notify(SegmentsFetched)
}

// UpdateStatus is a standard method of DataSourceUpdateSink.
func (d *DataSourceUpdateSinkImpl) UpdateStatus(newMode interfaces.SyncMode, newError *interfaces.SyncErrorInfo) {
	if newMode == "" {
		return
	}
	if statusToBroadcast, changed := d.maybeUpdateStatus(newMode, newError); changed {
		d.broadcaster.Broadcast(statusToBroadcast)
	}
}

func (d *DataSourceUpdateSinkImpl) maybeUpdateStatus(
	newMode interfaces.SyncMode,
	newError *interfaces.SyncErrorInfo,
) (interfaces.SyncStatus, bool) {
	d.lock.Lock()
	defer d.lock.Unlock()

	oldStatus := d.currentStatus
	if newMode == oldStatus.Mode && newError == nil {
		return interfaces.SyncStatus{}, false
	}

	since := oldStatus.Since
	if newMode != oldStatus.Mode {
		since = time.Now()
	}
	lastError := oldStatus.LastError
	if newError != nil {
		e := *newError
		lastError = &e
	}
	d.currentStatus = interfaces.SyncStatus{
		Mode:      newMode,
		Since:     since,
		LastError: lastError,
	}
	return d.currentStatus, true
}

// GetLastStatus is used internally by SDK components.
func (d *DataSourceUpdateSinkImpl) GetLastStatus() interfaces.SyncStatus {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.currentStatus
}

// WaitFor blocks until the status reaches the desired mode, the mode becomes Off, or the timeout
// elapses. A timeout of zero means no timeout.
func (d *DataSourceUpdateSinkImpl) WaitFor(desiredMode interfaces.SyncMode, timeout time.Duration) bool {
	d.lock.Lock()
	if d.currentStatus.Mode == desiredMode {
		d.lock.Unlock()
		return true
	}
	if d.currentStatus.Mode == interfaces.SyncModeOff {
		d.lock.Unlock()
		return false
	}

	statusCh := d.broadcaster.AddListener()
	defer d.broadcaster.RemoveListener(statusCh)
	d.lock.Unlock()

	var deadline <-chan time.Time
	if timeout > 0 {
		deadline = time.After(timeout)
	}

	for {
		select {
		case newStatus, ok := <-statusCh:
			if !ok {
				return false
			}
			if newStatus.Mode == desiredMode {
				return true
			}
			if newStatus.Mode == interfaces.SyncModeOff {
				return false
			}
		case <-deadline:
			return false
		}
	}
}

// syncStatusProviderImpl is the internal implementation of SyncStatusProvider.
type syncStatusProviderImpl struct {
	broadcaster *internal.Broadcaster[interfaces.SyncStatus]
	sink        *DataSourceUpdateSinkImpl
}

// NewSyncStatusProviderImpl creates the internal implementation of SyncStatusProvider.
func NewSyncStatusProviderImpl(
	broadcaster *internal.Broadcaster[interfaces.SyncStatus],
	sink *DataSourceUpdateSinkImpl,
) interfaces.SyncStatusProvider {
	return &syncStatusProviderImpl{broadcaster, sink}
}

func (s *syncStatusProviderImpl) GetStatus() interfaces.SyncStatus { //nolint:revive
	return s.sink.GetLastStatus()
}

func (s *syncStatusProviderImpl) AddStatusListener() <-chan interfaces.SyncStatus { //nolint:revive
	return s.broadcaster.AddListener()
}

func (s *syncStatusProviderImpl) RemoveStatusListener(listener <-chan interfaces.SyncStatus) { //nolint:revive
	s.broadcaster.RemoveListener(listener)
}
