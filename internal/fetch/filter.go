package fetch

import (
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"

	"golang.org/x/exp/slices"
)

var flagSetNamePattern = regexp.MustCompile(`^[a-z0-9][_a-z0-9]{0,49}$`) //nolint:gochecknoglobals

// Filter restricts which definitions are fetched. When Sets is non-empty, Names and Prefixes are
// ignored.
type Filter struct {
	Sets     []string
	Names    []string
	Prefixes []string
}

// NormalizeFlagSets lowercases and trims flag set names, drops invalid ones with a warning, and
// returns the remaining names sorted and without duplicates.
func NormalizeFlagSets(sets []string, loggers ldlog.Loggers) []string {
	ret := make([]string, 0, len(sets))
	for _, s := range sets {
		name := strings.ToLower(strings.TrimSpace(s))
		if name != s {
			loggers.Warnf("Flag set name %q was converted to %q", s, name)
		}
		if !flagSetNamePattern.MatchString(name) {
			loggers.Warnf("Flag set name %q is not valid and will be ignored", s)
			continue
		}
		ret = append(ret, name)
	}
	sort.Strings(ret)
	return slices.Compact(ret)
}

// QueryString returns the filter as it appears in requests. The definitions store uses it to detect
// that cached data was produced under a different filter.
func (f Filter) QueryString() string {
	q := url.Values{}
	f.addTo(q)
	return q.Encode()
}

func (f Filter) addTo(q url.Values) {
	if len(f.Sets) > 0 {
		q.Set("sets", strings.Join(f.Sets, ","))
		return
	}
	if len(f.Names) > 0 {
		q.Set("names", strings.Join(f.Names, ","))
	}
	if len(f.Prefixes) > 0 {
		q.Set("prefixes", strings.Join(f.Prefixes, ","))
	}
}
