package fscomponents

import "github.com/flagsync/go-client-sdk/interfaces"

// FlagSetsFilter returns a filter that limits the SDK to the definitions of the given flag sets.
//
// Flag set names are lowercased and trimmed, and names that are not valid flag set names are dropped
// with a warning when the client starts. Store the value in Config.Filter:
//
//	config := fsclient.Config{
//	    Filter: fscomponents.FlagSetsFilter("frontend", "checkout"),
//	}
func FlagSetsFilter(sets ...string) interfaces.FlagFilter {
	return interfaces.FlagFilter{Sets: sets}
}

// NamesFilter returns a filter that limits the SDK to the definitions with the given names.
func NamesFilter(names ...string) interfaces.FlagFilter {
	return interfaces.FlagFilter{Names: names}
}

// PrefixesFilter returns a filter that limits the SDK to the definitions whose names start with one
// of the given prefixes.
func PrefixesFilter(prefixes ...string) interfaces.FlagFilter {
	return interfaces.FlagFilter{Prefixes: prefixes}
}
