package fscomponents

import (
	"errors"
	"time"

	"github.com/flagsync/go-client-sdk/internal/endpoints"
	"github.com/flagsync/go-client-sdk/internal/fetch"
	"github.com/flagsync/go-client-sdk/internal/synchronizer"
	"github.com/flagsync/go-client-sdk/subsystems"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
)

var errNotSDKContext = errors.New( //nolint:gochecknoglobals
	"this data source can only be created by the SDK client")

// The synchronizing data sources share the client's stores and per-key components, which only the
// SDK's own ClientContext implementation carries.
func sdkClientContext(context subsystems.ClientContext) (*synchronizer.ClientContextImpl, error) {
	cci, ok := context.(*synchronizer.ClientContextImpl)
	if !ok || cci.Stores == nil || cci.Facade == nil || cci.GetDataSourceUpdateSink() == nil {
		return nil, errNotSDKContext
	}
	return cci, nil
}

func newSyncManager(
	cci *synchronizer.ClientContextImpl,
	newPush synchronizer.PushManagerFactory,
	cfg synchronizer.SyncManagerConfig,
	loggers ldlog.Loggers,
) *synchronizer.SyncManager {
	sdkURI := endpoints.SelectBaseURI(cci.GetServiceEndpoints(), endpoints.SDKService, loggers)
	httpClient := cci.GetHTTP().CreateHTTPClient()
	cfg.LogUserKeyInErrors = cci.GetLogging().LogUserKeyInErrors
	return synchronizer.NewSyncManager(
		cci.Stores,
		cci.Facade,
		cci.GetDataSourceUpdateSink(),
		fetch.NewHTTPDefinitionsFetcher(cci, httpClient, sdkURI, cci.Filter),
		fetch.NewHTTPMembershipsFetcher(cci, httpClient, sdkURI),
		newPush,
		cfg,
		loggers,
	)
}

func durationOrDefault(d, defaultValue time.Duration) time.Duration {
	if d <= 0 {
		return defaultValue
	}
	return d
}
