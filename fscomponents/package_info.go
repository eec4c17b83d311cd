// Package fscomponents provides the standard implementations and configuration options of SDK components.
//
// Some configuration options are represented as fields in the Config struct of the root package, but
// others are specific to a particular component. For those, call the builder function in this package
// (such as StreamingDataSource), set its properties with the builder's methods, and store it in the
// corresponding Config field:
//
//	config := fsclient.Config{
//	    DataSource: fscomponents.StreamingDataSource().MaxBackoffDelay(5 * time.Minute),
//	    Logging:    fscomponents.Logging().MinLevel(ldlog.Warn),
//	}
package fscomponents
