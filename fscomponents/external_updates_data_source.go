package fscomponents

import (
	"github.com/flagsync/go-client-sdk/interfaces"
	"github.com/flagsync/go-client-sdk/subsystems"
)

type nullDataSourceFactory struct{}

// ExternalUpdatesOnly returns a configuration object that disables a direct connection with FlagSync
// for definition and membership updates.
//
// Storing this in Config.DataSource causes the SDK not to retrieve any data, regardless of any other
// configuration. The client is ready immediately, and its stores stay empty. This is also the data
// source used when Config.Offline is set.
//
//	config := fsclient.Config{
//	    DataSource: fscomponents.ExternalUpdatesOnly(),
//	}
func ExternalUpdatesOnly() subsystems.ComponentConfigurer[subsystems.DataSource] {
	return nullDataSourceFactory{}
}

// Build is called internally by the SDK.
func (f nullDataSourceFactory) Build(
	context subsystems.ClientContext,
) (subsystems.DataSource, error) {
	context.GetLogging().Loggers.Info("FlagSync client will not connect to FlagSync for flag data")
	if sink := context.GetDataSourceUpdateSink(); sink != nil {
		sink.UpdateStatus(interfaces.SyncModeOff, nil)
	}
	return nullDataSource{}, nil
}

type nullDataSource struct{}

func (n nullDataSource) IsInitialized() bool {
	return true
}

func (n nullDataSource) Close() error {
	return nil
}

func (n nullDataSource) Start(closeWhenReady chan<- struct{}) {
	close(closeWhenReady)
}

func (n nullDataSource) Pause() {}

func (n nullDataSource) Resume() {}

func (n nullDataSource) KeyAdded(string) {}

func (n nullDataSource) KeyRemoved(string) {}
