// Package fsfilewatch allows the FlagSync client to read definitions from a file that will be
// automatically reloaded if the file changes.
//
// It should be used in conjunction with the [github.com/flagsync/go-client-sdk/fsfiledata] package:
//
//	config := fsclient.Config{
//	    DataSource: fsfiledata.DataSource().
//	        FilePaths(filePaths).
//	        Reloader(fsfilewatch.WatchFiles),
//	}
//
// The two packages are separate so as to avoid bringing additional dependencies for users who
// do not need automatic reloading.
package fsfilewatch
