package subsystems

import (
	"io"

	"github.com/flagsync/go-client-sdk/interfaces"
)

// DataSource describes the interface for an object that keeps the SDK's definitions and memberships
// up to date.
//
// The built-in implementations are the streaming and polling synchronizers created by
// fscomponents.StreamingDataSource() and fscomponents.PollingDataSource(), and the file data source
// in fsfiledata.
type DataSource interface {
	io.Closer

	// IsInitialized returns true if the data source has successfully initialized at some point.
	IsInitialized() bool

	// Start tells the data source to begin initializing. It should not try to make any connections
	// or do any other significant activity until Start is called.
	//
	// The data source should close the closeWhenReady channel if and when it has either successfully
	// initialized for the first time, or determined that initialization cannot ever succeed.
	Start(closeWhenReady chan<- struct{})

	// Pause suspends all background activity, for instance while the application is in the background.
	Pause()

	// Resume undoes Pause.
	Resume()

	// KeyAdded is called after the application registers a new user key with the client.
	KeyAdded(key string)

	// KeyRemoved is called after the application removes a user key from the client.
	KeyRemoved(key string)
}

// DataSourceUpdateSink is an interface that a data source implementation will use to push data
// into the SDK.
//
// Application code does not need to use this type. It is for data source implementations.
type DataSourceUpdateSink interface {
	// Keys returns the user keys that are currently registered with the client.
	Keys() []string

	// InitDefinitions replaces all stored definitions and rule-based segments with a complete data
	// set, and marks every registered key as ready.
	InitDefinitions(
		definitions []interfaces.Definition,
		segments []interfaces.RuleBasedSegment,
		changeNumber int64,
	)

	// InitMemberships replaces the segment memberships of a registered key and marks its memberships
	// as synchronized. It has no effect on keys that are not registered.
	InitMemberships(key string, segments []string, largeSegments []string)

	// UpdateStatus informs the SDK of a change in the data source's status.
	//
	// If newError is non-nil it is recorded as the last error even if the mode is unchanged.
	UpdateStatus(newMode interfaces.SyncMode, newError *interfaces.SyncErrorInfo)
}
