// Package fsfiledata allows the FlagSync client to read definitions and segment memberships from a
// file instead of connecting to FlagSync.
//
// To use the file-based data source in your SDK configuration, call fsfiledata.DataSource to obtain a
// configurable object that you will use as the configuration's DataSource:
//
//	config := fsclient.Config{
//	    DataSource: fsfiledata.DataSource().
//	        FilePaths("./test-data/my-flags.yaml"),
//	}
//	client, err := fsclient.MakeCustomClient(mySDKKey, "user-1", config, 5*time.Second)
//
// Use FilePaths to specify any number of file paths. The files are not actually loaded until the
// client starts up. At that point, if any file does not exist or cannot be parsed, the data source
// will log an error and will not load any data.
//
// Files may contain either JSON or YAML; if the first non-whitespace character is '{', the file is parsed
// as JSON, otherwise it is parsed as YAML. The file data should consist of an object with up to four
// properties:
//
// - "flags": Definitions in the same form that the SDK service returns them, keyed by name.
//
// - "flagValues": Simplified definitions that contain only a default treatment.
//
// - "ruleBasedSegments": Rule-based segment definitions, keyed by name.
//
// - "memberships": The segments and large segments of each user key.
//
// For example:
//
//	flags:
//	  new-checkout:
//	    defaultTreatment: "off"
//	    sets: ["checkout"]
//	flagValues:
//	  dark-mode: "on"
//	  banner-color: "blue"
//	memberships:
//	  user-1:
//	    segments: ["beta-testers"]
//	    largeSegments: ["emea"]
//
// Quote treatment values in YAML; an unquoted on or off is read as a boolean.
//
// It is an error to use the same definition name, segment name or user key more than once, either in a
// single file or across multiple files, unless DuplicateKeysHandling is set to
// DuplicateKeysIgnoreAllButFirst.
//
// If the data source encounters any error in any file-- malformed content, a missing file, or a
// duplicate name-- it will not load data from any of the files.
//
// Keys without an entry under "memberships" belong to no segments. Every registered key becomes ready
// once the files have been loaded.
package fsfiledata
