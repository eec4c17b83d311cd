package fscomponents

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/flagsync/go-client-sdk/interfaces"
	"github.com/flagsync/go-client-sdk/internal"
	"github.com/flagsync/go-client-sdk/internal/sharedtest"
	"github.com/flagsync/go-client-sdk/internal/storage"
	"github.com/flagsync/go-client-sdk/internal/synchronizer"
	"github.com/flagsync/go-client-sdk/subsystems"

	"github.com/launchdarkly/go-test-helpers/v3/httphelpers"
)

const (
	testSDKKey = "sdk-key"
	testKey    = "user-1"
	timeout    = 3 * time.Second
)

type keyHandle string

func (k keyHandle) Key() string { return string(k) }

type sdkContextParams struct {
	context *synchronizer.ClientContextImpl
	sink    *synchronizer.DataSourceUpdateSinkImpl
	facade  *synchronizer.ByKeyFacade
	stores  *storage.Stores
}

func withSDKContext(serviceEndpoints interfaces.ServiceEndpoints, action func(p sdkContextParams)) {
	loggers := sharedtest.NewTestLoggers()
	stores := storage.NewStores(nil, "", loggers)
	facade := synchronizer.NewByKeyFacade()
	broadcaster := internal.NewBroadcaster[interfaces.SyncStatus]()
	defer broadcaster.Close()
	defer facade.Destroy()
	sink := synchronizer.NewDataSourceUpdateSinkImpl(stores, facade, broadcaster, loggers)
	facade.Append(synchronizer.NewKeyGroup(testKey, keyHandle(testKey)))
	context := &synchronizer.ClientContextImpl{
		BasicClientContext: subsystems.BasicClientContext{
			SDKKey:               testSDKKey,
			Logging:              sharedtest.TestLoggingConfig(),
			ServiceEndpoints:     serviceEndpoints,
			DataSourceUpdateSink: sink,
		},
		Stores: stores,
		Facade: facade,
	}
	action(sdkContextParams{context: context, sink: sink, facade: facade, stores: stores})
}

// serviceHandler serves one definition at change number 10 and one segment membership for every key,
// under the paths of RelayServiceEndpoints. The auth service always disables push.
func serviceHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/splitChanges", func(w http.ResponseWriter, r *http.Request) {
		body := `{"ff":{"d":[],"s":10,"t":10}}`
		if r.URL.Query().Get("since") == "-1" {
			body = `{"ff":{"d":[{"name":"flag1","changeNumber":10,"status":"ACTIVE","defaultTreatment":"off"}],` +
				`"s":-1,"t":10}}`
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	})
	mux.HandleFunc("/api/memberships/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, `{"ms":{"k":[{"n":"seg1"}],"cn":5},"ls":{"k":[],"cn":0}}`)
	})
	mux.HandleFunc("/api/v2/auth", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(sharedtest.MakeAuthResponse(false, "", 0))
	})
	return mux
}

func withServiceServer(action func(server *httptest.Server, requests <-chan httphelpers.HTTPRequestInfo)) {
	handler, requests := httphelpers.RecordingHandler(serviceHandler())
	httphelpers.WithServer(handler, func(server *httptest.Server) {
		action(server, requests)
	})
}
