package mocks

import (
	"sync"
	"testing"
	"time"

	"github.com/flagsync/go-client-sdk/interfaces"

	"github.com/stretchr/testify/require"
)

// DefinitionsInit records one call to MockDataSourceUpdateSink.InitDefinitions.
type DefinitionsInit struct {
	Definitions       []interfaces.Definition
	RuleBasedSegments []interfaces.RuleBasedSegment
	ChangeNumber      int64
}

// MembershipsInit records one call to MockDataSourceUpdateSink.InitMemberships.
type MembershipsInit struct {
	Key           string
	Segments      []string
	LargeSegments []string
}

// MockDataSourceUpdateSink is a mock implementation of DataSourceUpdateSink for testing data sources.
type MockDataSourceUpdateSink struct {
	// Inits receives every data set passed to InitDefinitions, if there is room in the channel.
	Inits chan DefinitionsInit
	// Memberships receives every call to InitMemberships, if there is room in the channel.
	Memberships chan MembershipsInit
	// Statuses receives every status passed to UpdateStatus, if there is room in the channel.
	Statuses chan interfaces.SyncStatus
	keys     []string
	last     *DefinitionsInit
	lock     sync.Mutex
}

// NewMockDataSourceUpdateSink creates an instance of MockDataSourceUpdateSink whose Keys method returns
// the given keys.
func NewMockDataSourceUpdateSink(keys ...string) *MockDataSourceUpdateSink {
	return &MockDataSourceUpdateSink{
		Inits:       make(chan DefinitionsInit, 10),
		Memberships: make(chan MembershipsInit, 10),
		Statuses:    make(chan interfaces.SyncStatus, 10),
		keys:        keys,
	}
}

// Keys is a standard method of DataSourceUpdateSink.
func (m *MockDataSourceUpdateSink) Keys() []string {
	return m.keys
}

// InitDefinitions, in this test implementation, records the data and pushes it onto the Inits channel.
func (m *MockDataSourceUpdateSink) InitDefinitions(
	definitions []interfaces.Definition,
	segments []interfaces.RuleBasedSegment,
	changeNumber int64,
) {
	init := DefinitionsInit{Definitions: definitions, RuleBasedSegments: segments, ChangeNumber: changeNumber}
	m.lock.Lock()
	m.last = &init
	m.lock.Unlock()
	select {
	case m.Inits <- init:
	default:
	}
}

// InitMemberships, in this test implementation, pushes the call onto the Memberships channel.
func (m *MockDataSourceUpdateSink) InitMemberships(key string, segments []string, largeSegments []string) {
	select {
	case m.Memberships <- MembershipsInit{Key: key, Segments: segments, LargeSegments: largeSegments}:
	default:
	}
}

// UpdateStatus, in this test implementation, pushes a value onto the Statuses channel.
func (m *MockDataSourceUpdateSink) UpdateStatus(newMode interfaces.SyncMode, newError *interfaces.SyncErrorInfo) {
	select {
	case m.Statuses <- interfaces.SyncStatus{Mode: newMode, Since: time.Now(), LastError: newError}:
	default:
	}
}

// LastInit returns the most recent data set, or nil.
func (m *MockDataSourceUpdateSink) LastInit() *DefinitionsInit {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.last
}

// RequireStatusOf blocks until a status with the given mode is received, and returns it.
func (m *MockDataSourceUpdateSink) RequireStatusOf(t *testing.T, mode interfaces.SyncMode) interfaces.SyncStatus {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		select {
		case s := <-m.Statuses:
			if s.Mode == mode {
				return s
			}
		case <-deadline:
			require.Failf(t, "timed out", "did not receive status with mode %s", mode)
		}
	}
}

// RequireInit blocks until a data set is received, and returns it.
func (m *MockDataSourceUpdateSink) RequireInit(t *testing.T) DefinitionsInit {
	t.Helper()
	select {
	case init := <-m.Inits:
		return init
	case <-time.After(time.Second):
		require.Fail(t, "timed out waiting for definitions")
		return DefinitionsInit{}
	}
}

// RequireNoMoreInits asserts that no data set arrives within the given time.
func (m *MockDataSourceUpdateSink) RequireNoMoreInits(t *testing.T, wait time.Duration) {
	t.Helper()
	select {
	case init := <-m.Inits:
		require.Failf(t, "unexpected definitions", "received %+v", init)
	case <-time.After(wait):
	}
}
