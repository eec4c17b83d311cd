package internal

import (
	"sync"

	"golang.org/x/exp/maps"
)

// Status and event types in the SDK are delivered through a publish-subscribe model.
//
// AddListener returns a new receive-only channel; RemoveListener unsubscribes that channel and closes
// the sending end of it; Broadcast sends a value to every subscribed channel; Close unsubscribes and
// closes all channels.

// Buffer size for subscriber channels. Consumers are still responsible for reading their channel;
// a full channel blocks Broadcast.
const subscriberChannelBufferLength = 10

// Broadcaster is a generic fan-out of values to any number of subscriber channels.
type Broadcaster[V any] struct {
	// keyed by the receive side so RemoveListener can find the send side
	subscribers map[<-chan V]chan V
	closed      bool
	lock        sync.Mutex
}

// NewBroadcaster creates a Broadcaster that operates on the specified value type.
func NewBroadcaster[V any]() *Broadcaster[V] {
	return &Broadcaster[V]{subscribers: make(map[<-chan V]chan V)}
}

// AddListener adds a subscriber and returns a channel for it to receive values. If the Broadcaster
// has already been closed, the returned channel is closed.
func (b *Broadcaster[V]) AddListener() <-chan V {
	ch := make(chan V, subscriberChannelBufferLength)
	b.lock.Lock()
	defer b.lock.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.subscribers[ch] = ch
	return ch
}

// RemoveListener removes a subscriber. The parameter is the same channel that was returned by
// AddListener.
func (b *Broadcaster[V]) RemoveListener(ch <-chan V) {
	b.lock.Lock()
	defer b.lock.Unlock()
	if sendCh, ok := b.subscribers[ch]; ok {
		delete(b.subscribers, ch)
		close(sendCh)
	}
}

// HasListeners returns true if there are any current subscribers.
func (b *Broadcaster[V]) HasListeners() bool {
	b.lock.Lock()
	defer b.lock.Unlock()
	return len(b.subscribers) > 0
}

// Broadcast sends a value to all current subscribers.
//
// The subscriber list is copied before sending so that a listener may call RemoveListener from
// another goroutine while a broadcast is in progress.
func (b *Broadcaster[V]) Broadcast(value V) {
	b.lock.Lock()
	targets := maps.Values(b.subscribers)
	b.lock.Unlock()
	for _, ch := range targets {
		b.send(ch, value)
	}
}

func (b *Broadcaster[V]) send(ch chan V, value V) {
	// A subscriber that was removed concurrently has a closed channel; sending to it would panic.
	defer func() {
		_ = recover()
	}()
	ch <- value
}

// Close closes all current subscriber channels. Subsequent broadcasts are no-ops.
func (b *Broadcaster[V]) Close() {
	b.lock.Lock()
	defer b.lock.Unlock()
	for _, ch := range b.subscribers {
		close(ch)
	}
	b.subscribers = make(map[<-chan V]chan V)
	b.closed = true
}
