package fsclient

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/flagsync/go-client-sdk/fscomponents"
	"github.com/flagsync/go-client-sdk/internal/sharedtest"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/launchdarkly/go-sdk-common/v3/ldlogtest"
	"github.com/launchdarkly/go-test-helpers/v3/httphelpers"
)

const (
	testSDKKey = "sdk-key"
	testKey    = "user-1"
	timeout    = 3 * time.Second
)

// serviceHandler serves two definitions at change number 20 and a membership per key, under the paths of
// RelayServiceEndpoints. Key "user-1" belongs to seg1 and the large segment big1; other keys belong to
// seg2. The auth service always disables push.
func serviceHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/splitChanges", func(w http.ResponseWriter, r *http.Request) {
		body := `{"ff":{"d":[],"s":20,"t":20}}`
		if r.URL.Query().Get("since") == "-1" {
			body = `{"ff":{"d":[` +
				`{"name":"flag1","changeNumber":10,"status":"ACTIVE","defaultTreatment":"off","sets":["front"]},` +
				`{"name":"flag2","changeNumber":20,"status":"ACTIVE","defaultTreatment":"on"}` +
				`],"s":-1,"t":20}}`
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	})
	mux.HandleFunc("/api/memberships/", func(w http.ResponseWriter, r *http.Request) {
		body := `{"ms":{"k":[{"n":"seg2"}],"cn":5},"ls":{"k":[],"cn":0}}`
		if strings.HasSuffix(r.URL.Path, "/"+testKey) {
			body = `{"ms":{"k":[{"n":"seg1"}],"cn":5},"ls":{"k":[{"n":"big1"}],"cn":7}}`
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
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

func makeTestConfig(serverURL string, mockLog *ldlogtest.MockLog) Config {
	return Config{
		Logging:          fscomponents.Logging().Loggers(mockLog.Loggers).MinLevel(ldlog.Debug),
		ServiceEndpoints: fscomponents.RelayServiceEndpoints(serverURL),
	}
}
