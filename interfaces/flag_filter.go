package interfaces

// FlagFilter restricts the definitions that the SDK retrieves.
//
// When Sets is non-empty, only definitions belonging to at least one of the named flag sets are
// retrieved, and Names and Prefixes are ignored. Otherwise Names and Prefixes select definitions by
// exact name or by name prefix. An empty FlagFilter retrieves every definition.
type FlagFilter struct {
	Sets     []string
	Names    []string
	Prefixes []string
}

// IsEmpty returns true if the filter does not restrict anything.
func (f FlagFilter) IsEmpty() bool {
	return len(f.Sets) == 0 && len(f.Names) == 0 && len(f.Prefixes) == 0
}
