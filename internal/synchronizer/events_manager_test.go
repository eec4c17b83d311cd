package synchronizer

import (
	"testing"
	"time"

	"github.com/flagsync/go-client-sdk/interfaces"

	th "github.com/launchdarkly/go-test-helpers/v3"

	"github.com/stretchr/testify/assert"
)

func TestEventsManagerReadyAfterFlagsAndSegmentsFetched(t *testing.T) {
	m := NewEventsManager()
	defer m.Close()
	ch := m.AddListener()

	m.Notify(FlagsFetched)
	th.AssertNoMoreValues(t, ch, 50*time.Millisecond)
	assert.False(t, m.IsReady())

	m.Notify(SegmentsFetched)
	assert.Equal(t, interfaces.SdkReady, th.RequireValue(t, ch, timeout))
	assert.True(t, m.IsReady())
	th.AssertChannelClosed(t, m.Ready(), timeout)

	m.Notify(FlagsFetched)
	m.Notify(SegmentsFetched)
	th.AssertNoMoreValues(t, ch, 50*time.Millisecond)
}

func TestEventsManagerReadyFromCache(t *testing.T) {
	t.Run("delivered once when both are cached", func(t *testing.T) {
		m := NewEventsManager()
		defer m.Close()
		ch := m.AddListener()

		m.Notify(SegmentsLoadedFromCache)
		m.Notify(FlagsLoadedFromCache)
		assert.Equal(t, interfaces.SdkReadyFromCache, th.RequireValue(t, ch, timeout))

		m.Notify(FlagsLoadedFromCache)
		th.AssertNoMoreValues(t, ch, 50*time.Millisecond)
	})

	t.Run("not delivered after ready", func(t *testing.T) {
		m := NewEventsManager()
		defer m.Close()
		ch := m.AddListener()

		m.Notify(FlagsFetched)
		m.Notify(SegmentsFetched)
		assert.Equal(t, interfaces.SdkReady, th.RequireValue(t, ch, timeout))

		m.Notify(FlagsLoadedFromCache)
		m.Notify(SegmentsLoadedFromCache)
		th.AssertNoMoreValues(t, ch, 50*time.Millisecond)
	})
}

func TestEventsManagerUpdatedOnlyAfterReady(t *testing.T) {
	m := NewEventsManager()
	defer m.Close()
	ch := m.AddListener()

	m.Notify(FlagsUpdated)
	m.Notify(SegmentsUpdated)
	th.AssertNoMoreValues(t, ch, 50*time.Millisecond)

	m.Notify(FlagsFetched)
	m.Notify(SegmentsFetched)
	assert.Equal(t, interfaces.SdkReady, th.RequireValue(t, ch, timeout))

	m.Notify(SegmentsUpdated)
	assert.Equal(t, interfaces.SdkUpdated, th.RequireValue(t, ch, timeout))
	m.Notify(FlagsUpdated)
	assert.Equal(t, interfaces.SdkUpdated, th.RequireValue(t, ch, timeout))
}

func TestEventsManagerCloseClosesListeners(t *testing.T) {
	m := NewEventsManager()
	ch := m.AddListener()
	m.Close()
	th.AssertChannelClosed(t, ch, timeout)
}
