package fetch

import (
	"context"
	"io"
	"net/http"
	"net/url"

	"github.com/flagsync/go-client-sdk/internal"
	"github.com/flagsync/go-client-sdk/subsystems"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"

	"github.com/gregjones/httpcache"

	"golang.org/x/exp/maps"
)

// requester performs GET requests against the SDK service. Responses go through an in-memory
// HTTP cache so that unchanged data costs only a conditional request.
type requester struct {
	httpClient *http.Client
	sdkKey     string
	headers    http.Header
	loggers    ldlog.Loggers
}

func newRequester(context subsystems.ClientContext, httpClient *http.Client) requester {
	if httpClient == nil {
		httpClient = context.GetHTTP().CreateHTTPClient()
	}
	modifiedClient := *httpClient
	modifiedClient.Transport = &httpcache.Transport{
		Cache:               httpcache.NewMemoryCache(),
		MarkCachedResponses: true,
		Transport:           httpClient.Transport,
	}
	return requester{
		httpClient: &modifiedClient,
		sdkKey:     context.GetSDKKey(),
		headers:    context.GetHTTP().DefaultHeaders,
		loggers:    context.GetLogging().Loggers,
	}
}

// get returns the response body, and whether it was served from the HTTP cache. Non-2xx responses
// are returned as internal.HTTPStatusError.
func (r requester) get(ctx context.Context, uri string, query url.Values, bypassCache bool) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, false, err
	}
	req.URL.RawQuery = query.Encode()
	if r.headers != nil {
		req.Header = maps.Clone(r.headers)
	}
	req.Header.Set("Authorization", "Bearer "+r.sdkKey)
	if bypassCache {
		req.Header.Set("Cache-Control", "no-cache")
	}

	res, err := r.httpClient.Do(req)
	if err != nil {
		return nil, false, err
	}
	defer func() {
		_, _ = io.ReadAll(res.Body)
		_ = res.Body.Close()
	}()

	if err := internal.CheckForHTTPError(res.StatusCode, req.URL.String()); err != nil {
		return nil, false, err
	}
	cached := res.Header.Get(httpcache.XFromCache) != ""
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, false, err // COVERAGE: there is no way to simulate this condition in unit tests
	}
	return body, cached, nil
}
