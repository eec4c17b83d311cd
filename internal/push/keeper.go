package push

import (
	"sync"

	"github.com/flagsync/go-client-sdk/internal/notification"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/launchdarkly/go-sdk-common/v3/ldtime"
)

// Keeper decides whether push notifications are usable, based only on occupancy and control
// notifications. Streaming is usable while either control channel has publishers and streaming has
// not been paused by a control message.
type Keeper struct {
	sink                 StatusSink
	loggers              ldlog.Loggers
	publishers           map[notification.ControlChannel]int
	lastOccupancy        map[notification.ControlChannel]ldtime.UnixMillisecondTime
	lastControlTimestamp ldtime.UnixMillisecondTime
	paused               bool
	active               bool
	lock                 sync.Mutex
}

// NewKeeper creates a Keeper in its initial state.
func NewKeeper(sink StatusSink, loggers ldlog.Loggers) *Keeper {
	k := &Keeper{sink: sink, loggers: loggers}
	k.Reset()
	return k
}

// Reset restores the state assumed for a newly opened connection: one publisher on the primary
// channel, none on the secondary, streaming not paused.
func (k *Keeper) Reset() {
	k.lock.Lock()
	defer k.lock.Unlock()
	k.publishers = map[notification.ControlChannel]int{
		notification.ControlChannelPrimary:   1,
		notification.ControlChannelSecondary: 0,
	}
	k.lastOccupancy = make(map[notification.ControlChannel]ldtime.UnixMillisecondTime)
	k.lastControlTimestamp = 0
	k.paused = false
	k.active = true
}

// IsStreamingActive returns true if notifications are currently considered usable.
func (k *Keeper) IsStreamingActive() bool {
	k.lock.Lock()
	defer k.lock.Unlock()
	return k.active
}

// PublisherCount returns the last known number of publishers on a control channel.
func (k *Keeper) PublisherCount(channel notification.ControlChannel) int {
	k.lock.Lock()
	defer k.lock.Unlock()
	return k.publishers[channel]
}

// HandleOccupancy applies an occupancy notification. Notifications for an unknown channel, or with a
// timestamp not newer than the last one applied for the same channel, are ignored.
func (k *Keeper) HandleOccupancy(n notification.Occupancy) {
	k.lock.Lock()
	defer k.lock.Unlock()
	if n.ControlChannel == notification.ControlChannelUnknown {
		return
	}
	if n.Timestamp <= k.lastOccupancy[n.ControlChannel] {
		if k.loggers.IsDebugEnabled() {
			k.loggers.Debugf("Ignoring out-of-order occupancy notification for %s", n.Channel)
		}
		return
	}
	k.lastOccupancy[n.ControlChannel] = n.Timestamp
	k.publishers[n.ControlChannel] = n.Publishers
	k.evaluateLocked()
}

// HandleControl applies a control notification.
func (k *Keeper) HandleControl(n notification.Control) {
	k.lock.Lock()
	if n.Timestamp > 0 && n.Timestamp <= k.lastControlTimestamp {
		k.lock.Unlock()
		return
	}
	if n.Timestamp > 0 {
		k.lastControlTimestamp = n.Timestamp
	}

	switch n.ControlType {
	case notification.ControlStreamingPaused:
		k.paused = true
		k.evaluateLocked()
		k.lock.Unlock()
	case notification.ControlStreamingResumed:
		k.paused = false
		k.evaluateLocked()
		k.lock.Unlock()
	case notification.ControlStreamingDisabled:
		k.lock.Unlock()
		k.sink.PublishPushEvent(PushEvent{Kind: PushSubsystemDisabled})
	case notification.ControlStreamingReset:
		k.lock.Unlock()
		k.sink.PublishPushEvent(PushEvent{Kind: PushReset})
	default:
		k.lock.Unlock()
		k.loggers.Warnf("Ignoring unknown control notification type %q", n.ControlType)
	}
}

func (k *Keeper) evaluateLocked() {
	active := !k.paused && (k.publishers[notification.ControlChannelPrimary] > 0 ||
		k.publishers[notification.ControlChannelSecondary] > 0)
	if active == k.active {
		return
	}
	k.active = active
	if active {
		k.sink.PublishPushEvent(PushEvent{Kind: PushSubsystemUp})
	} else {
		k.sink.PublishPushEvent(PushEvent{Kind: PushSubsystemDown})
	}
}
