// Package backoff provides the reconnect delay sequence used by the push channel and forced fetches.
package backoff

import (
	"sync"
	"time"

	cbackoff "github.com/cenkalti/backoff/v5"
)

const (
	// DefaultBase is the base used when none is configured; it yields 1s, 2s, 4s, ...
	DefaultBase = 1

	// DefaultMaxDelay caps every delay returned by NextDelay.
	DefaultMaxDelay = 1800 * time.Second

	firstDelay = time.Second
)

// Counter produces delays that grow as (base*2)^attempt seconds, starting at one second and capped
// at a maximum. It is safe for concurrent use.
//
// With base 2 the sequence is 1s, 4s, 16s, 64s and so on until the cap. Reset restarts it.
type Counter struct {
	exp  *cbackoff.ExponentialBackOff
	lock sync.Mutex
}

// New creates a Counter. A base below 1 is treated as DefaultBase, and a non-positive maxDelay as
// DefaultMaxDelay.
func New(base int, maxDelay time.Duration) *Counter {
	if base < 1 {
		base = DefaultBase
	}
	if maxDelay <= 0 {
		maxDelay = DefaultMaxDelay
	}
	exp := &cbackoff.ExponentialBackOff{
		InitialInterval:     firstDelay,
		RandomizationFactor: 0,
		Multiplier:          float64(base * 2),
		MaxInterval:         maxDelay,
	}
	exp.Reset()
	return &Counter{exp: exp}
}

// NextDelay returns the delay for the current attempt and advances the attempt counter.
func (c *Counter) NextDelay() time.Duration {
	c.lock.Lock()
	defer c.lock.Unlock()
	next := c.exp.NextBackOff()
	if next > c.exp.MaxInterval {
		return c.exp.MaxInterval
	}
	return next
}

// Reset sets the attempt counter back to zero, so the next delay is one second.
func (c *Counter) Reset() {
	c.lock.Lock()
	c.exp.Reset()
	c.lock.Unlock()
}
