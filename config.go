package fsclient

import (
	"github.com/flagsync/go-client-sdk/interfaces"
	"github.com/flagsync/go-client-sdk/internal/storage"
	"github.com/flagsync/go-client-sdk/subsystems"
)

// Config exposes advanced configuration options for the FlagSync client.
//
// All of these settings are optional, so an empty Config struct is always valid. See the description of each
// field for the default behavior if it is not set.
//
// Some of the Config fields are actually configurers for subcomponents of the SDK. The implementation types,
// which have methods for configuring that subcomponent, are normally provided by corresponding functions in
// the fscomponents package. For instance, to set the DataSource field to a configuration in which the SDK
// polls every two minutes:
//
//	var config fsclient.Config
//	config.DataSource = fscomponents.PollingDataSource().PollInterval(2 * time.Minute)
type Config struct {
	// Sets the persistent cache that keeps the last synchronized data across restarts.
	//
	// If nil, data is only kept in memory, and a new client is not ready until its first fetch completes.
	// With a cache, a client whose data was cached delivers SdkReadyFromCache before that.
	//
	//	// example: cache in a local database file
	//	config.Cache = fscomponents.PersistentCache("/var/lib/myapp/flags.db")
	Cache subsystems.ComponentConfigurer[storage.PersistentCache]

	// Sets the implementation of DataSource for receiving definition and membership updates.
	//
	// If nil, the default is fscomponents.StreamingDataSource(); see that method for an explanation of how to
	// further configure streaming behavior. Other options include fscomponents.PollingDataSource(),
	// fscomponents.ExternalUpdatesOnly(), fsfiledata.DataSource(), or a custom implementation for testing.
	//
	// If Offline is set to true, then DataSource is ignored.
	//
	//	// example: using streaming mode and setting streaming options
	//	config.DataSource = fscomponents.StreamingDataSource().MaxBackoffDelay(5 * time.Minute)
	//
	//	// example: using polling mode and setting polling options
	//	config.DataSource = fscomponents.PollingDataSource().PollInterval(time.Minute)
	DataSource subsystems.ComponentConfigurer[subsystems.DataSource]

	// Restricts the definitions that the SDK retrieves.
	//
	// The default is to retrieve every definition of the environment.
	//
	//	// example: only retrieve the definitions of two flag sets
	//	config.Filter = fscomponents.FlagSetsFilter("frontend", "checkout")
	Filter interfaces.FlagFilter

	// Provides configuration of the SDK's network connection behavior.
	//
	// If nil, the default is fscomponents.HTTPConfiguration(); see that method for an explanation of how to
	// further configure these options.
	//
	// If Offline is set to true, then HTTP is ignored.
	//
	//	// example: set connection timeout to 8 seconds and use a proxy server
	//	config.HTTP = fscomponents.HTTPConfiguration().ConnectTimeout(8 * time.Second).ProxyURL(myProxyURL)
	HTTP subsystems.ComponentConfigurer[subsystems.HTTPConfiguration]

	// Provides configuration of the SDK's logging behavior.
	//
	// If nil, the default is fscomponents.Logging(); see that method for an explanation of how to
	// further configure logging behavior. The other option is fscomponents.NoLogging().
	//
	// This example sets the minimum logging level to Warn, so Debug and Info messages will not be logged:
	//
	//	// example: enable logging only for Warn level and above
	//	// (note: ldlog is github.com/launchdarkly/go-sdk-common/v3/ldlog)
	//	config.Logging = fscomponents.Logging().MinLevel(ldlog.Warn)
	Logging subsystems.ComponentConfigurer[subsystems.LoggingConfiguration]

	// Sets whether this client is offline. An offline client will not make any network connections to
	// FlagSync, and its stores stay empty unless they were loaded from the persistent cache.
	Offline bool

	// Provides configuration of custom service base URIs.
	//
	// Set this field only if you want to specify non-default values for any of the URIs. You may set
	// individual values such as Streaming, or use the helper method fscomponents.RelayServiceEndpoints().
	//
	// The default behavior, if you do not set any of these values, is that the SDK will connect to
	// the standard endpoints of the FlagSync production service. If you set any of them, you should
	// set all three:
	//
	//	config := fsclient.Config{
	//	    ServiceEndpoints: interfaces.ServiceEndpoints{
	//	        SDK:       "https://sdk.example.com/api",
	//	        Auth:      "https://auth.example.com/api/v2",
	//	        Streaming: "https://streaming.example.com/sse",
	//	    },
	//	}
	ServiceEndpoints interfaces.ServiceEndpoints
}
