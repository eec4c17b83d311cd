package synchronizer

import (
	"sync"

	"github.com/flagsync/go-client-sdk/interfaces"
	"github.com/flagsync/go-client-sdk/internal"
)

// SyncEvent is an internal signal from the synchronizers to the events manager of a key.
type SyncEvent int

const (
	FlagsLoadedFromCache    SyncEvent = iota //nolint:revive // internal constant
	FlagsFetched                             //nolint:revive // internal constant
	FlagsUpdated                             //nolint:revive // internal constant
	SegmentsLoadedFromCache                  //nolint:revive // internal constant
	SegmentsFetched                          //nolint:revive // internal constant
	SegmentsUpdated                          //nolint:revive // internal constant
)

// EventsManager turns synchronization signals into the SdkEvents seen by the application for one key.
//
// SdkReadyFromCache is delivered once, when both flags and the key's memberships have been loaded from
// the cache before any fetch completed. SdkReady is delivered once, when both have been fetched.
// SdkUpdated is delivered for every change after SdkReady.
type EventsManager struct {
	broadcaster     *internal.Broadcaster[interfaces.SdkEvent]
	readyCh         chan struct{}
	flagsCached     bool
	segmentsCached  bool
	flagsFetched    bool
	segmentsFetched bool
	readyFromCache  bool
	ready           bool
	lock            sync.Mutex
}

// NewEventsManager creates an EventsManager.
func NewEventsManager() *EventsManager {
	return &EventsManager{
		broadcaster: internal.NewBroadcaster[interfaces.SdkEvent](),
		readyCh:     make(chan struct{}),
	}
}

// AddListener subscribes to SdkEvents.
func (e *EventsManager) AddListener() <-chan interfaces.SdkEvent {
	return e.broadcaster.AddListener()
}

// RemoveListener unsubscribes a channel returned by AddListener.
func (e *EventsManager) RemoveListener(ch <-chan interfaces.SdkEvent) {
	e.broadcaster.RemoveListener(ch)
}

// IsReady returns true once SdkReady has been delivered.
func (e *EventsManager) IsReady() bool {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.ready
}

// Ready returns a channel that is closed when SdkReady is delivered.
func (e *EventsManager) Ready() <-chan struct{} {
	return e.readyCh
}

// Notify records a synchronization signal and delivers any resulting SdkEvent.
func (e *EventsManager) Notify(event SyncEvent) {
	var toSend []interfaces.SdkEvent
	e.lock.Lock()
	switch event {
	case FlagsLoadedFromCache:
		e.flagsCached = true
	case SegmentsLoadedFromCache:
		e.segmentsCached = true
	case FlagsFetched:
		e.flagsFetched = true
	case SegmentsFetched:
		e.segmentsFetched = true
	case FlagsUpdated, SegmentsUpdated:
		if e.ready {
			toSend = append(toSend, interfaces.SdkUpdated)
		}
	}
	if !e.ready && !e.readyFromCache && e.flagsCached && e.segmentsCached {
		e.readyFromCache = true
		toSend = append(toSend, interfaces.SdkReadyFromCache)
	}
	if !e.ready && e.flagsFetched && e.segmentsFetched {
		e.ready = true
		close(e.readyCh)
		toSend = append(toSend, interfaces.SdkReady)
	}
	e.lock.Unlock()

	for _, ev := range toSend {
		e.broadcaster.Broadcast(ev)
	}
}

// Close unsubscribes every listener.
func (e *EventsManager) Close() {
	e.broadcaster.Close()
}
