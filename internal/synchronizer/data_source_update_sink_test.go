package synchronizer

import (
	"testing"
	"time"

	"github.com/flagsync/go-client-sdk/interfaces"
	"github.com/flagsync/go-client-sdk/internal"
	"github.com/flagsync/go-client-sdk/internal/sharedtest"

	th "github.com/launchdarkly/go-test-helpers/v3"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type updateSinkTestParams struct {
	sink        *DataSourceUpdateSinkImpl
	facade      *ByKeyFacade
	broadcaster *internal.Broadcaster[interfaces.SyncStatus]
}

func updateSinkTest(action func(updateSinkTestParams)) {
	p := updateSinkTestParams{
		facade:      NewByKeyFacade(),
		broadcaster: internal.NewBroadcaster[interfaces.SyncStatus](),
	}
	defer p.broadcaster.Close()
	defer p.facade.Destroy()
	p.sink = NewDataSourceUpdateSinkImpl(newTestStores(), p.facade, p.broadcaster, sharedtest.NewTestLoggers())
	action(p)
}

func TestDataSourceUpdateSinkImpl(t *testing.T) {
	t.Run("InitDefinitions", func(t *testing.T) {
		t.Run("replaces stored data and marks keys ready", func(t *testing.T) {
			updateSinkTest(func(p updateSinkTestParams) {
				p.sink.stores.Definitions.Update([]*interfaces.Definition{makeDefinition("old", 1)}, 1)
				g := newTestGroup("u1")
				p.facade.Append(g)
				events := g.Events.AddListener()

				p.sink.InitDefinitions(
					[]interfaces.Definition{*makeDefinition("a", 5), *makeDefinition("b", 5)},
					[]interfaces.RuleBasedSegment{{Name: "rbs", ChangeNumber: 5}},
					5,
				)

				assert.Equal(t, []string{"a", "b"}, p.sink.stores.Definitions.Names())
				assert.Equal(t, int64(5), p.sink.stores.Definitions.ChangeNumber())
				assert.NotNil(t, p.sink.stores.RuleBasedSegments.Get("rbs"))
				assert.Equal(t, interfaces.SdkReady, th.RequireValue(t, events, timeout))
				assert.Equal(t, []string{"u1"}, p.sink.Keys())
			})
		})
	})

	t.Run("InitMemberships", func(t *testing.T) {
		t.Run("replaces memberships of a registered key", func(t *testing.T) {
			updateSinkTest(func(p updateSinkTestParams) {
				g := newTestGroup("u1")
				p.facade.Append(g)

				p.sink.InitMemberships("u1", []string{"s2", "s1"}, []string{"big"})
				m := p.sink.stores.Memberships.Get("u1")
				assert.Equal(t, []string{"s1", "s2"}, m.MySegments.Names)
				assert.Equal(t, []string{"big"}, m.MyLargeSegments.Names)
				assert.False(t, g.Events.IsReady())

				p.sink.InitDefinitions(nil, nil, 1)
				assert.True(t, g.Events.IsReady())
			})
		})

		t.Run("marks a key added after definitions as ready", func(t *testing.T) {
			updateSinkTest(func(p updateSinkTestParams) {
				p.sink.InitDefinitions(nil, nil, 1)
				g := newTestGroup("u2")
				p.facade.Append(g)
				require.False(t, g.Events.IsReady())

				p.sink.InitMemberships("u2", nil, nil)
				assert.True(t, g.Events.IsReady())
			})
		})

		t.Run("ignores unknown keys", func(t *testing.T) {
			updateSinkTest(func(p updateSinkTestParams) {
				p.sink.InitMemberships("nobody", []string{"s1"}, nil)
				assert.Nil(t, p.sink.stores.Memberships.Get("nobody").MySegments.Names)
			})
		})
	})

	t.Run("UpdateStatus", func(t *testing.T) {
		t.Run("does not update status if mode is the same and error is nil", func(t *testing.T) {
			updateSinkTest(func(p updateSinkTestParams) {
				p.sink.UpdateStatus(interfaces.SyncModeStreaming, nil)
				status1 := p.sink.GetLastStatus()
				<-time.After(time.Millisecond) // so time is different

				p.sink.UpdateStatus(interfaces.SyncModeStreaming, nil)
				assert.Equal(t, status1, p.sink.GetLastStatus())
			})
		})

		t.Run("does not update status if new mode is empty", func(t *testing.T) {
			updateSinkTest(func(p updateSinkTestParams) {
				p.sink.UpdateStatus(interfaces.SyncModeStreaming, nil)
				status1 := p.sink.GetLastStatus()

				p.sink.UpdateStatus("", &interfaces.SyncErrorInfo{Kind: interfaces.SyncErrorKindUnknown})
				assert.Equal(t, status1, p.sink.GetLastStatus())
			})
		})

		t.Run("updates status if mode is the same and error is not nil", func(t *testing.T) {
			updateSinkTest(func(p updateSinkTestParams) {
				p.sink.UpdateStatus(interfaces.SyncModeStreaming, nil)
				status1 := p.sink.GetLastStatus()

				errorInfo := interfaces.SyncErrorInfo{Kind: interfaces.SyncErrorKindUnknown}
				p.sink.UpdateStatus(interfaces.SyncModeStreaming, &errorInfo)
				status2 := p.sink.GetLastStatus()
				assert.Equal(t, status1.Mode, status2.Mode)
				assert.Equal(t, status1.Since, status2.Since)
				require.NotNil(t, status2.LastError)
				assert.Equal(t, errorInfo, *status2.LastError)
			})
		})

		t.Run("keeps last error when mode changes", func(t *testing.T) {
			updateSinkTest(func(p updateSinkTestParams) {
				errorInfo := interfaces.SyncErrorInfo{Kind: interfaces.SyncErrorKindPushError}
				p.sink.UpdateStatus(interfaces.SyncModeStreaming, &errorInfo)

				p.sink.UpdateStatus(interfaces.SyncModePolling, nil)
				status := p.sink.GetLastStatus()
				assert.Equal(t, interfaces.SyncModePolling, status.Mode)
				require.NotNil(t, status.LastError)
				assert.Equal(t, errorInfo, *status.LastError)
			})
		})

		t.Run("broadcasts changes", func(t *testing.T) {
			updateSinkTest(func(p updateSinkTestParams) {
				provider := NewSyncStatusProviderImpl(p.broadcaster, p.sink)
				ch := provider.AddStatusListener()
				defer provider.RemoveStatusListener(ch)

				p.sink.UpdateStatus(interfaces.SyncModePolling, nil)
				status := th.RequireValue(t, ch, timeout)
				assert.Equal(t, interfaces.SyncModePolling, status.Mode)
				assert.Equal(t, status, provider.GetStatus())

				p.sink.UpdateStatus(interfaces.SyncModePolling, nil)
				th.AssertNoMoreValues(t, ch, 50*time.Millisecond)
			})
		})
	})

	t.Run("WaitFor", func(t *testing.T) {
		t.Run("returns true immediately if mode already matches", func(t *testing.T) {
			updateSinkTest(func(p updateSinkTestParams) {
				p.sink.UpdateStatus(interfaces.SyncModeStreaming, nil)
				assert.True(t, p.sink.WaitFor(interfaces.SyncModeStreaming, 0))
			})
		})

		t.Run("returns true when mode changes", func(t *testing.T) {
			updateSinkTest(func(p updateSinkTestParams) {
				go func() {
					<-time.After(20 * time.Millisecond)
					p.sink.UpdateStatus(interfaces.SyncModeStreaming, nil)
				}()
				assert.True(t, p.sink.WaitFor(interfaces.SyncModeStreaming, timeout))
			})
		})

		t.Run("returns false on timeout", func(t *testing.T) {
			updateSinkTest(func(p updateSinkTestParams) {
				assert.False(t, p.sink.WaitFor(interfaces.SyncModeStreaming, 20*time.Millisecond))
			})
		})

		t.Run("returns false when mode becomes Off", func(t *testing.T) {
			updateSinkTest(func(p updateSinkTestParams) {
				go func() {
					<-time.After(20 * time.Millisecond)
					p.sink.UpdateStatus(interfaces.SyncModeOff, nil)
				}()
				assert.False(t, p.sink.WaitFor(interfaces.SyncModeStreaming, timeout))
			})
		})
	})
}
