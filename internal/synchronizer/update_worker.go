package synchronizer

import (
	"sync"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
)

const updateWorkerQueueLength = 100

// UpdateWorker applies notifications of one resource kind, one at a time and in arrival order, on its
// own goroutine.
type UpdateWorker[N any] struct {
	name      string
	queue     chan N
	apply     func(N)
	loggers   ldlog.Loggers
	quit      chan struct{}
	closeOnce sync.Once
}

// NewUpdateWorker starts a worker that passes each notification to apply.
func NewUpdateWorker[N any](name string, apply func(N), loggers ldlog.Loggers) *UpdateWorker[N] {
	w := &UpdateWorker[N]{
		name:    name,
		queue:   make(chan N, updateWorkerQueueLength),
		apply:   apply,
		loggers: loggers,
		quit:    make(chan struct{}),
	}
	go w.run()
	return w
}

// Process queues a notification. It never blocks: if the queue is full the notification is dropped,
// and the next fetch brings the data up to date.
func (w *UpdateWorker[N]) Process(n N) {
	select {
	case <-w.quit:
		return
	default:
	}
	select {
	case w.queue <- n:
	default:
		w.loggers.Warnf("Dropped %s notification because the update queue is full", w.name)
	}
}

// Stop ends the worker. Queued notifications are discarded.
func (w *UpdateWorker[N]) Stop() {
	w.closeOnce.Do(func() { close(w.quit) })
}

func (w *UpdateWorker[N]) run() {
	for {
		select {
		case n := <-w.queue:
			w.applySafely(n)
		case <-w.quit:
			return
		}
	}
}

func (w *UpdateWorker[N]) applySafely(n N) {
	defer func() {
		if r := recover(); r != nil {
			w.loggers.Errorf("Unexpected panic while applying %s notification: %v", w.name, r)
		}
	}()
	w.apply(n)
}
