package mocks

import (
	"context"
	"sync"

	"github.com/flagsync/go-client-sdk/interfaces"
	"github.com/flagsync/go-client-sdk/internal/fetch"
)

// MockDefinitionsFetcher is a fetch.DefinitionsFetcher that serves definitions from memory, the way
// the service does: a request returns every item newer than its since cursor, along with the current
// till. Tests can replace that behavior with SetResponder.
type MockDefinitionsFetcher struct {
	// Requests receives every request made, if there is room in the channel.
	Requests  chan fetch.DefinitionsRequest
	defs      map[string]*interfaces.Definition
	segments  map[string]*interfaces.RuleBasedSegment
	till      int64
	rbTill    int64
	err       error
	responder func(fetch.DefinitionsRequest) (*fetch.DefinitionChanges, error)
	lock      sync.Mutex
}

// NewMockDefinitionsFetcher creates a MockDefinitionsFetcher with no data.
func NewMockDefinitionsFetcher() *MockDefinitionsFetcher {
	return &MockDefinitionsFetcher{
		Requests: make(chan fetch.DefinitionsRequest, 100),
		defs:     make(map[string]*interfaces.Definition),
		segments: make(map[string]*interfaces.RuleBasedSegment),
		till:     -1,
		rbTill:   -1,
	}
}

// PutDefinitions adds or replaces definitions and advances the till to at least each one's change
// number.
func (f *MockDefinitionsFetcher) PutDefinitions(defs ...*interfaces.Definition) {
	f.lock.Lock()
	defer f.lock.Unlock()
	for _, d := range defs {
		f.defs[d.Name] = d
		f.till = max(f.till, d.ChangeNumber)
	}
}

// PutRuleBasedSegments adds or replaces rule-based segments and advances their till.
func (f *MockDefinitionsFetcher) PutRuleBasedSegments(segments ...*interfaces.RuleBasedSegment) {
	f.lock.Lock()
	defer f.lock.Unlock()
	for _, s := range segments {
		f.segments[s.Name] = s
		f.rbTill = max(f.rbTill, s.ChangeNumber)
	}
}

// SetError makes subsequent requests fail. A nil error restores normal behavior.
func (f *MockDefinitionsFetcher) SetError(err error) {
	f.lock.Lock()
	f.err = err
	f.lock.Unlock()
}

// SetResponder replaces the in-memory behavior.
func (f *MockDefinitionsFetcher) SetResponder(fn func(fetch.DefinitionsRequest) (*fetch.DefinitionChanges, error)) {
	f.lock.Lock()
	f.responder = fn
	f.lock.Unlock()
}

// FetchDefinitions is a standard method of fetch.DefinitionsFetcher.
func (f *MockDefinitionsFetcher) FetchDefinitions(
	ctx context.Context,
	req fetch.DefinitionsRequest,
) (*fetch.DefinitionChanges, error) {
	select {
	case f.Requests <- req:
	default:
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.lock.Lock()
	defer f.lock.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.responder != nil {
		return f.responder(req)
	}
	ret := &fetch.DefinitionChanges{
		Since:          req.Since,
		Till:           max(req.Since, f.till),
		RuleBasedSince: req.RuleBasedSince,
		RuleBasedTill:  max(req.RuleBasedSince, f.rbTill),
	}
	for _, d := range f.defs {
		if d.ChangeNumber > req.Since {
			copied := *d
			ret.Definitions = append(ret.Definitions, &copied)
		}
	}
	for _, s := range f.segments {
		if s.ChangeNumber > req.RuleBasedSince {
			copied := *s
			ret.RuleBasedSegments = append(ret.RuleBasedSegments, &copied)
		}
	}
	return ret, nil
}
