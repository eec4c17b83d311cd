package fetch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/flagsync/go-client-sdk/internal/endpoints"
	"github.com/flagsync/go-client-sdk/internal/storage"
	"github.com/flagsync/go-client-sdk/subsystems"
)

// MembershipsFetcher retrieves the segment memberships of one user key.
type MembershipsFetcher interface {
	// FetchMemberships returns the key's memberships. A positive till asks for data at least as new
	// as that change number. A change number the service did not report is returned as zero.
	FetchMemberships(ctx context.Context, key string, till int64) (storage.KeyMemberships, error)
}

// HTTPMembershipsFetcher is the MembershipsFetcher that talks to the SDK service.
type HTTPMembershipsFetcher struct {
	requester requester
	uri       string
}

// NewHTTPMembershipsFetcher creates an HTTPMembershipsFetcher. If httpClient is nil, one is created
// from the client context.
func NewHTTPMembershipsFetcher(
	context subsystems.ClientContext,
	httpClient *http.Client,
	baseURI string,
) *HTTPMembershipsFetcher {
	return &HTTPMembershipsFetcher{
		requester: newRequester(context, httpClient),
		uri:       endpoints.AddPath(baseURI, endpoints.MembershipsRequestPath),
	}
}

//nolint:revive // interface method
func (f *HTTPMembershipsFetcher) FetchMemberships(
	ctx context.Context,
	key string,
	till int64,
) (storage.KeyMemberships, error) {
	query := url.Values{}
	if till > 0 {
		query.Set("till", strconv.FormatInt(till, 10))
	}
	body, _, err := f.requester.get(ctx, f.uri+url.PathEscape(key), query, till > 0)
	if err != nil {
		return storage.KeyMemberships{}, err
	}
	ret, err := parseMemberships(body)
	if err != nil {
		return storage.KeyMemberships{}, MalformedJSONError{err}
	}
	return ret, nil
}

type membershipsSection struct {
	Keys []struct {
		Name string `json:"n"`
	} `json:"k"`
	ChangeNumber int64 `json:"cn"`
}

func (s *membershipsSection) toMembership() storage.Membership {
	if s == nil {
		return storage.Membership{}
	}
	ret := storage.Membership{ChangeNumber: s.ChangeNumber}
	for _, k := range s.Keys {
		ret.Names = append(ret.Names, k.Name)
	}
	return ret
}

func parseMemberships(body []byte) (storage.KeyMemberships, error) {
	var resp struct {
		MySegments      *membershipsSection `json:"ms"`
		MyLargeSegments *membershipsSection `json:"ls"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return storage.KeyMemberships{}, err
	}
	return storage.KeyMemberships{
		MySegments:      resp.MySegments.toMembership(),
		MyLargeSegments: resp.MyLargeSegments.toMembership(),
	}, nil
}
