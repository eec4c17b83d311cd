package fsclient

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/flagsync/go-client-sdk/fscomponents"
	"github.com/flagsync/go-client-sdk/interfaces"
	"github.com/flagsync/go-client-sdk/internal"
	"github.com/flagsync/go-client-sdk/internal/fetch"
	"github.com/flagsync/go-client-sdk/internal/storage"
	"github.com/flagsync/go-client-sdk/internal/synchronizer"
	"github.com/flagsync/go-client-sdk/subsystems"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
)

// Version is the SDK version.
const Version = internal.SDKVersion

var (
	// ErrInitializationTimeout is returned by MakeClient or MakeCustomClient if the client did not
	// initialize within the specified time. The client is still usable and keeps trying to connect.
	ErrInitializationTimeout = errors.New("timeout encountered waiting for FlagSync client initialization")

	// ErrInitializationFailed is returned by MakeClient or MakeCustomClient if the client determined
	// that it cannot initialize, for instance because the SDK key was rejected.
	ErrInitializationFailed = errors.New("FlagSync client initialization failed")

	// ErrClientClosed is returned by Client.Client after the client has been closed.
	ErrClientClosed = errors.New("FlagSync client has been closed")

	// ErrEmptyKey is returned when a user key is empty.
	ErrEmptyKey = errors.New("user key must not be empty")
)

// Client is the FlagSync client.
//
// Create it with MakeClient or MakeCustomClient. It is safe for concurrent use. The client holds a
// KeyClient for each registered user key; the first one is created for the key passed to
// MakeClient, and others are added with Client.Client.
type Client struct {
	sdkKey                string
	loggers               ldlog.Loggers
	offline               bool
	stores                *storage.Stores
	facade                *synchronizer.ByKeyFacade
	dataSource            subsystems.DataSource
	syncStatusBroadcaster *internal.Broadcaster[interfaces.SyncStatus]
	syncStatusProvider    interfaces.SyncStatusProvider
	mainClient            *KeyClient
	keysLock              sync.Mutex
	closed                bool
	closeOnce             sync.Once
}

// MakeClient creates a new client instance that connects to FlagSync with the default configuration,
// with a handle for the given user key.
//
// For advanced configuration options, use MakeCustomClient. Calling MakeClient is exactly equivalent
// to calling MakeCustomClient with the config parameter set to an empty value, fsclient.Config{}.
//
// The client begins attempting to connect to FlagSync as soon as you call this constructor. The
// constructor returns when it successfully connects, or when the timeout set by the waitFor
// parameter expires, whichever comes first.
//
// If the connection succeeded, the first return value is the client instance, and the error value is
// nil.
//
// If the timeout elapsed without a successful connection, it still returns a client instance--in an
// uninitialized state, where the stores are empty until data arrives--and the error value is
// ErrInitializationTimeout. In this case, it will still continue trying to connect in the background.
//
// If there was an unrecoverable error such that it cannot succeed by retrying--for instance, the SDK
// key is invalid--it will return a client instance in an uninitialized state, and the error value is
// ErrInitializationFailed.
//
// If you set waitFor to zero, the function will return immediately after creating the client instance,
// and do any further initialization in the background. Use KeyClient.Ready or the SdkReady event to
// learn when a key's data is available.
//
// The only time it returns nil instead of a client instance is if the client cannot be created at all
// due to an invalid configuration. This is rare, but could happen if for instance you specified a
// custom TLS certificate file that did not contain a valid certificate.
func MakeClient(sdkKey string, key string, waitFor time.Duration) (*Client, error) {
	// COVERAGE: this constructor cannot be called in unit tests because it uses the default base
	// URI and will attempt to make a live connection to FlagSync.
	return MakeCustomClient(sdkKey, key, Config{}, waitFor)
}

// MakeCustomClient creates a new client instance that connects to FlagSync with a custom
// configuration, with a handle for the given user key.
//
// The config parameter allows customization of all SDK properties; some of these are represented
// directly as fields in Config, while others are set by builder methods on a more specific
// configuration object. See Config for details.
//
// Unless it is configured to be offline with Config.Offline or fscomponents.ExternalUpdatesOnly(), the
// client begins attempting to connect to FlagSync as soon as you call this constructor. The constructor
// returns when it successfully connects, or when the timeout set by the waitFor parameter expires,
// whichever comes first. See MakeClient for the meaning of the return values.
func MakeCustomClient(sdkKey string, key string, config Config, waitFor time.Duration) (*Client, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}
	closeWhenReady := make(chan struct{})

	clientContext, err := newClientContextFromConfig(sdkKey, config)
	if err != nil {
		return nil, err
	}
	loggers := clientContext.GetLogging().Loggers
	loggers.Infof("Starting FlagSync client %s", Version)

	var cache storage.PersistentCache
	if config.Cache != nil {
		if cache, err = config.Cache.Build(clientContext); err != nil {
			return nil, err
		}
	}

	filter := fetch.Filter{
		Sets:     fetch.NormalizeFlagSets(config.Filter.Sets, loggers),
		Names:    config.Filter.Names,
		Prefixes: config.Filter.Prefixes,
	}
	if len(config.Filter.Sets) > 0 && len(filter.Sets) == 0 {
		loggers.Warn("None of the configured flag sets is valid; all definitions will be retrieved")
	}

	client := &Client{
		sdkKey:                sdkKey,
		loggers:               loggers,
		offline:               config.Offline,
		stores:                storage.NewStores(cache, filter.QueryString(), loggers),
		facade:                synchronizer.NewByKeyFacade(),
		syncStatusBroadcaster: internal.NewBroadcaster[interfaces.SyncStatus](),
	}
	sink := synchronizer.NewDataSourceUpdateSinkImpl(client.stores, client.facade, client.syncStatusBroadcaster,
		loggers)
	client.syncStatusProvider = synchronizer.NewSyncStatusProviderImpl(client.syncStatusBroadcaster, sink)
	client.mainClient = client.addKeyClient(key)

	clientContext.DataSourceUpdateSink = sink
	clientContext.Stores = client.stores
	clientContext.Facade = client.facade
	clientContext.Filter = filter

	dataSource, err := createDataSource(config, clientContext)
	if err != nil {
		client.closeStores()
		return nil, err
	}
	client.dataSource = dataSource

	if config.Offline {
		client.loadCachedData(key)
	}

	dataSource.Start(closeWhenReady)
	if waitFor > 0 && !config.Offline {
		loggers.Infof("Waiting up to %d milliseconds for FlagSync client to start...",
			waitFor/time.Millisecond)
		timeout := time.After(waitFor)
		select {
		case <-closeWhenReady:
			if !dataSource.IsInitialized() {
				loggers.Warn("FlagSync client initialization failed")
				return client, ErrInitializationFailed
			}
			loggers.Info("Initialized FlagSync client")
			return client, nil
		case <-timeout:
			loggers.Warn("Timeout encountered waiting for FlagSync client initialization")
			return client, ErrInitializationTimeout
		}
	}
	return client, nil
}

func createDataSource(
	config Config,
	context *synchronizer.ClientContextImpl,
) (subsystems.DataSource, error) {
	if config.Offline {
		context.GetLogging().Loggers.Info("Starting FlagSync client in offline mode")
		return fscomponents.ExternalUpdatesOnly().Build(context)
	}
	factory := config.DataSource
	if factory == nil {
		factory = fscomponents.StreamingDataSource()
	}
	return factory.Build(context)
}

// Client returns the handle for the given user key, registering the key if it is new.
//
// A new key starts synchronizing its memberships right away. Its handle delivers SdkReady once both
// definitions and its memberships have been fetched.
func (c *Client) Client(key string) (*KeyClient, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, ErrEmptyKey
	}
	c.keysLock.Lock()
	if c.closed {
		c.keysLock.Unlock()
		return nil, ErrClientClosed
	}
	if group := c.facade.Get(key); group != nil {
		c.keysLock.Unlock()
		return group.Client.(*KeyClient), nil
	}
	kc := c.addKeyClient(key)
	c.keysLock.Unlock()

	c.dataSource.KeyAdded(key)
	if c.offline {
		c.loadCachedData(key)
	}
	c.loggers.Debugf("Registered %s", c.describeKey(key))
	return kc, nil
}

func (c *Client) addKeyClient(key string) *KeyClient {
	kc := &KeyClient{key: key, client: c}
	kc.group = synchronizer.NewKeyGroup(key, kc)
	c.facade.Append(kc.group)
	return kc
}

func (c *Client) removeKey(key string) {
	c.keysLock.Lock()
	if c.closed || c.facade.Get(key) == nil {
		c.keysLock.Unlock()
		return
	}
	c.facade.Remove(key)
	c.keysLock.Unlock()
	c.dataSource.KeyRemoved(key)
	c.loggers.Debugf("Removed %s", c.describeKey(key))
}

// loadCachedData makes whatever the persistent cache holds for a key available in offline mode. No
// other data will arrive, so the key is ready afterward.
func (c *Client) loadCachedData(key string) {
	group := c.facade.Get(key)
	if group == nil {
		return
	}
	flagsCached := c.stores.Definitions.LoadFromCache()
	c.stores.RuleBasedSegments.LoadFromCache()
	if flagsCached {
		group.Events.Notify(synchronizer.FlagsLoadedFromCache)
	}
	if c.stores.Memberships.LoadFromCache(key) {
		group.Events.Notify(synchronizer.SegmentsLoadedFromCache)
	}
	group.Events.Notify(synchronizer.FlagsFetched)
	group.Events.Notify(synchronizer.SegmentsFetched)
}

func (c *Client) describeKey(key string) string {
	if c.mainClient != nil && c.mainClient.key == key {
		return "the main user key"
	}
	return "a user key"
}

// MainClient returns the handle of the key passed to MakeClient or MakeCustomClient.
func (c *Client) MainClient() *KeyClient {
	return c.mainClient
}

// Keys returns the registered user keys, sorted.
func (c *Client) Keys() []string {
	return c.facade.Keys()
}

// IsInitialized returns true if the client has successfully fetched definitions at least once.
func (c *Client) IsInitialized() bool {
	return c.dataSource.IsInitialized()
}

// IsOffline returns true if the client was configured to be offline.
func (c *Client) IsOffline() bool {
	return c.offline
}

// GetSyncStatusProvider returns an interface for tracking the status of the synchronization engine.
//
// The SyncStatusProvider has methods for checking whether the client is currently streaming, polling,
// or not synchronizing at all, and what the last error was.
func (c *Client) GetSyncStatusProvider() interfaces.SyncStatusProvider {
	return c.syncStatusProvider
}

// Pause suspends all background activity, for instance while an application is in the background.
// Registered keys keep their current data.
func (c *Client) Pause() {
	c.dataSource.Pause()
}

// Resume undoes Pause. If enough time has passed since the last synchronization, a full one runs.
func (c *Client) Resume() {
	c.dataSource.Resume()
}

// Definition returns a copy of the stored definition with the given name.
func (c *Client) Definition(name string) (interfaces.Definition, bool) {
	if def := c.stores.Definitions.Get(name); def != nil {
		return *def, true
	}
	return interfaces.Definition{}, false
}

// Definitions returns copies of every stored definition.
func (c *Client) Definitions() []interfaces.Definition {
	all := c.stores.Definitions.All()
	ret := make([]interfaces.Definition, 0, len(all))
	for _, def := range all {
		ret = append(ret, *def)
	}
	return ret
}

// DefinitionNames returns the names of every stored definition, sorted.
func (c *Client) DefinitionNames() []string {
	return c.stores.Definitions.Names()
}

// DefinitionNamesByFlagSet returns the names of the stored definitions that belong to a flag set.
func (c *Client) DefinitionNamesByFlagSet(set string) []string {
	return c.stores.Definitions.NamesByFlagSet(set)
}

// RuleBasedSegment returns a copy of the stored rule-based segment with the given name.
func (c *Client) RuleBasedSegment(name string) (interfaces.RuleBasedSegment, bool) {
	if seg := c.stores.RuleBasedSegments.Get(name); seg != nil {
		return *seg, true
	}
	return interfaces.RuleBasedSegment{}, false
}

// Close shuts down the client. After calling this, the client stops synchronizing, every KeyClient's
// event channels are closed, and the persistent cache, if any, is closed.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.loggers.Info("Closing FlagSync client")
		c.keysLock.Lock()
		c.closed = true
		c.keysLock.Unlock()
		_ = c.dataSource.Close()
		c.facade.Destroy()
		c.syncStatusBroadcaster.Close()
		c.closeStores()
	})
	return nil
}

func (c *Client) closeStores() {
	if err := c.stores.Close(); err != nil {
		c.loggers.Warnf("Error closing the persistent cache: %s", err)
	}
}
