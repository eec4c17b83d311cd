package synchronizer

import (
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"github.com/flagsync/go-client-sdk/interfaces"
	"github.com/flagsync/go-client-sdk/internal/storage"
	"github.com/flagsync/go-client-sdk/internal/sharedtest"

	"github.com/stretchr/testify/require"
)

const timeout = 3 * time.Second

type eventRecorder chan SyncEvent

func newEventRecorder() eventRecorder {
	return make(chan SyncEvent, 100)
}

func (r eventRecorder) notify(e SyncEvent) {
	r <- e
}

// drain returns every event recorded so far.
func (r eventRecorder) drain() []SyncEvent {
	var ret []SyncEvent
	for {
		select {
		case e := <-r:
			ret = append(ret, e)
		default:
			return ret
		}
	}
}

func makeDefinition(name string, cn int64) *interfaces.Definition {
	return &interfaces.Definition{
		Name:             name,
		DefaultTreatment: "off",
		ChangeNumber:     cn,
		Status:           interfaces.StatusActive,
	}
}

func encodePayload(t *testing.T, value interface{}) string {
	data, err := json.Marshal(value)
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(data)
}

func testFetchConfig() FetchConfig {
	return FetchConfig{PollInterval: time.Hour}
}

func newTestStores() *storage.Stores {
	return storage.NewStores(nil, "", sharedtest.NewTestLoggers())
}
