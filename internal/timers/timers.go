// Package timers provides named one-shot timers whose firing is reported to a single dispatch
// function.
package timers

import (
	"sync"
	"time"
)

// ID identifies a timer within one Manager.
type ID string

// Manager schedules one-shot timers by ID.
//
// Adding an ID that is already scheduled replaces the pending timer. A timer that is cancelled or
// replaced before it fires never dispatches; a timer whose dispatch has already begun is not undone.
// Dispatch is called on a goroutine owned by the Manager, never on the caller's goroutine. Different
// IDs may dispatch concurrently.
type Manager struct {
	dispatch   func(ID)
	timers     map[ID]*entry
	generation uint64
	closed     bool
	lock       sync.Mutex
}

type entry struct {
	timer      *time.Timer
	generation uint64
}

// NewManager creates a Manager that calls dispatch whenever a timer fires.
func NewManager(dispatch func(ID)) *Manager {
	return &Manager{
		dispatch: dispatch,
		timers:   make(map[ID]*entry),
	}
}

// Add schedules the timer to fire after the given delay, replacing any pending timer with the same ID.
func (m *Manager) Add(id ID, delay time.Duration) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.closed {
		return
	}
	if old, ok := m.timers[id]; ok {
		old.timer.Stop()
	}
	m.generation++
	gen := m.generation
	e := &entry{generation: gen}
	e.timer = time.AfterFunc(delay, func() { m.fire(id, gen) })
	m.timers[id] = e
}

func (m *Manager) fire(id ID, gen uint64) {
	m.lock.Lock()
	e, ok := m.timers[id]
	if !ok || e.generation != gen {
		m.lock.Unlock()
		return
	}
	delete(m.timers, id)
	m.lock.Unlock()
	m.dispatch(id)
}

// Cancel removes a pending timer. It has no effect if no timer with that ID is pending.
func (m *Manager) Cancel(id ID) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if e, ok := m.timers[id]; ok {
		e.timer.Stop()
		delete(m.timers, id)
	}
}

// CancelAll removes every pending timer.
func (m *Manager) CancelAll() {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.cancelAllLocked()
}

func (m *Manager) cancelAllLocked() {
	for id, e := range m.timers {
		e.timer.Stop()
		delete(m.timers, id)
	}
}

// IsScheduled returns true if a timer with the given ID is pending.
func (m *Manager) IsScheduled(id ID) bool {
	m.lock.Lock()
	defer m.lock.Unlock()
	_, ok := m.timers[id]
	return ok
}

// Close cancels every pending timer and makes later calls to Add no-ops.
func (m *Manager) Close() {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.cancelAllLocked()
	m.closed = true
}
