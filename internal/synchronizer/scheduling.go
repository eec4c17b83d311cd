package synchronizer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/flagsync/go-client-sdk/internal"
	"github.com/flagsync/go-client-sdk/internal/backoff"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
)

// Number of times a forced fetch is repeated when the service keeps returning data older than the
// requested change number.
const maxStaleFetchAttempts = 10

// fetchOutcome is the result of one attempt of a forced fetch.
type fetchOutcome int

const (
	fetchComplete fetchOutcome = iota
	// the service answered, but with data older than requested
	fetchStale
	fetchFailed
)

// retryFetch runs attempt until it completes, the context is cancelled, the service reports an
// unrecoverable error, or the data stays stale for maxStaleFetchAttempts attempts. Attempts are
// separated by delays from the backoff counter.
func retryFetch(
	ctx context.Context,
	counter *backoff.Counter,
	loggers ldlog.Loggers,
	description string,
	attempt func(context.Context) (fetchOutcome, error),
) bool {
	staleAttempts := 0
	for {
		outcome, err := attempt(ctx)
		if ctx.Err() != nil {
			return false
		}
		switch outcome {
		case fetchComplete:
			return true
		case fetchStale:
			staleAttempts++
			if staleAttempts >= maxStaleFetchAttempts {
				loggers.Warnf("Gave up %s: the service did not return the expected change", description)
				return false
			}
		case fetchFailed:
			var statusErr internal.HTTPStatusError
			if errors.As(err, &statusErr) {
				if !internal.CheckIfErrorIsRecoverableAndLog(loggers, statusErr.Error(), description,
					statusErr.Code, "will retry") {
					return false
				}
			} else {
				loggers.Warnf("Error %s (will retry): %s", description, err)
			}
		}
		select {
		case <-time.After(counter.NextDelay()):
		case <-ctx.Done():
			return false
		}
	}
}

// periodicTask calls a function on a fixed interval between start and stop.
type periodicTask struct {
	interval time.Duration
	run      func()
	quit     chan struct{}
	lock     sync.Mutex
}

func newPeriodicTask(interval time.Duration, run func()) *periodicTask {
	return &periodicTask{interval: interval, run: run}
}

func (p *periodicTask) start() {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.quit != nil || p.interval <= 0 {
		return
	}
	quit := make(chan struct{})
	p.quit = quit
	go func() {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-quit:
				return
			case <-ticker.C:
				p.run()
			}
		}
	}()
}

func (p *periodicTask) stop() {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.quit != nil {
		close(p.quit)
		p.quit = nil
	}
}

func (p *periodicTask) isRunning() bool {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.quit != nil
}

// waitOrDone sleeps for the delay unless the context ends first. It returns false if the context
// ended.
func waitOrDone(ctx context.Context, delay time.Duration) bool {
	if delay <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
