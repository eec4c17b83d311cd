package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/flagsync/go-client-sdk/interfaces"
	"github.com/flagsync/go-client-sdk/internal/endpoints"
	"github.com/flagsync/go-client-sdk/subsystems"
)

// DefinitionsRequest is the cursor of a definitions fetch.
type DefinitionsRequest struct {
	Since          int64
	RuleBasedSince int64
	// Till asks the service for data at least as new as this change number, bypassing any CDN
	// cache. Zero means no bound.
	Till int64
}

// DefinitionChanges is one page of changes returned by the service.
type DefinitionChanges struct {
	Definitions []*interfaces.Definition
	Since       int64
	Till        int64

	RuleBasedSegments []*interfaces.RuleBasedSegment
	RuleBasedSince    int64
	RuleBasedTill     int64

	// Cached is true if the response was served from the local HTTP cache.
	Cached bool
}

// DefinitionsFetcher retrieves definition changes.
type DefinitionsFetcher interface {
	FetchDefinitions(ctx context.Context, req DefinitionsRequest) (*DefinitionChanges, error)
}

// HTTPDefinitionsFetcher is the DefinitionsFetcher that talks to the SDK service.
type HTTPDefinitionsFetcher struct {
	requester requester
	uri       string
	filter    Filter
}

// NewHTTPDefinitionsFetcher creates an HTTPDefinitionsFetcher. If httpClient is nil, one is created
// from the client context.
func NewHTTPDefinitionsFetcher(
	context subsystems.ClientContext,
	httpClient *http.Client,
	baseURI string,
	filter Filter,
) *HTTPDefinitionsFetcher {
	return &HTTPDefinitionsFetcher{
		requester: newRequester(context, httpClient),
		uri:       endpoints.AddPath(baseURI, endpoints.DefinitionsRequestPath),
		filter:    filter,
	}
}

// FetchDefinitions requests the changes after the given cursor.
func (f *HTTPDefinitionsFetcher) FetchDefinitions(ctx context.Context, req DefinitionsRequest) (*DefinitionChanges, error) {
	query := url.Values{
		"s":       {endpoints.SpecVersion},
		"since":   {strconv.FormatInt(req.Since, 10)},
		"rbSince": {strconv.FormatInt(req.RuleBasedSince, 10)},
	}
	if req.Till > 0 {
		query.Set("till", strconv.FormatInt(req.Till, 10))
	}
	f.filter.addTo(query)

	if f.requester.loggers.IsDebugEnabled() {
		f.requester.loggers.Debugf("Fetching definitions since %d (rule-based segments since %d)",
			req.Since, req.RuleBasedSince)
	}
	body, cached, err := f.requester.get(ctx, f.uri, query, req.Till > 0)
	if err != nil {
		return nil, err
	}
	ret, err := parseDefinitionChanges(body, req)
	if err != nil {
		return nil, MalformedJSONError{err}
	}
	ret.Cached = cached
	return ret, nil
}

type changesSection[T any] struct {
	Items []T    `json:"d"`
	Since *int64 `json:"s"`
	Till  *int64 `json:"t"`
}

type changesResponse struct {
	Definitions       *changesSection[*interfaces.Definition]       `json:"ff"`
	RuleBasedSegments *changesSection[*interfaces.RuleBasedSegment] `json:"rbs"`

	// older response format, with definitions only
	LegacySplits []*interfaces.Definition `json:"splits"`
	LegacySince  *int64                   `json:"since"`
	LegacyTill   *int64                   `json:"till"`
}

var errMissingTill = errors.New("changes response has no till") //nolint:gochecknoglobals

func parseDefinitionChanges(body []byte, req DefinitionsRequest) (*DefinitionChanges, error) {
	var resp changesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	ret := DefinitionChanges{
		Since:          req.Since,
		RuleBasedSince: req.RuleBasedSince,
		RuleBasedTill:  req.RuleBasedSince,
	}
	switch {
	case resp.Definitions != nil:
		if resp.Definitions.Till == nil {
			return nil, errMissingTill
		}
		ret.Definitions = resp.Definitions.Items
		ret.Till = *resp.Definitions.Till
		if resp.Definitions.Since != nil {
			ret.Since = *resp.Definitions.Since
		}
	case resp.LegacyTill != nil:
		ret.Definitions = resp.LegacySplits
		ret.Till = *resp.LegacyTill
		if resp.LegacySince != nil {
			ret.Since = *resp.LegacySince
		}
	default:
		return nil, errMissingTill
	}
	if rbs := resp.RuleBasedSegments; rbs != nil {
		if rbs.Till == nil {
			return nil, errMissingTill
		}
		ret.RuleBasedSegments = rbs.Items
		ret.RuleBasedTill = *rbs.Till
		if rbs.Since != nil {
			ret.RuleBasedSince = *rbs.Since
		}
	}
	return &ret, nil
}
