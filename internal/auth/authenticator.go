package auth

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/flagsync/go-client-sdk/internal"
	"github.com/flagsync/go-client-sdk/internal/endpoints"
	"github.com/flagsync/go-client-sdk/subsystems"

	"github.com/launchdarkly/go-jsonstream/v3/jreader"
	"github.com/launchdarkly/go-sdk-common/v3/ldlog"

	"golang.org/x/exp/maps"
)

// Result is the outcome of a successful authentication request.
type Result struct {
	PushEnabled bool
	// Token is nil when PushEnabled is false.
	Token *JwtToken
	// ConnectionDelay is how long to wait before opening the stream.
	ConnectionDelay time.Duration
}

// Error describes a failed authentication request.
type Error struct {
	// StatusCode is zero for network and parse errors.
	StatusCode  int
	Recoverable bool
	Cause       error
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("authentication failed: %s", internal.HTTPErrorDescription(e.StatusCode))
	}
	return fmt.Sprintf("authentication failed: %s", e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Authenticator obtains streaming tokens for a set of user keys.
type Authenticator interface {
	Authenticate(ctx context.Context, keys []string) (Result, error)
}

// HTTPAuthenticator is the Authenticator that talks to the auth service.
type HTTPAuthenticator struct {
	httpClient *http.Client
	baseURI    string
	sdkKey     string
	headers    http.Header
	loggers    ldlog.Loggers
}

// NewHTTPAuthenticator creates an HTTPAuthenticator.
func NewHTTPAuthenticator(context subsystems.ClientContext, baseURI string) *HTTPAuthenticator {
	return &HTTPAuthenticator{
		httpClient: context.GetHTTP().CreateHTTPClient(),
		baseURI:    baseURI,
		sdkKey:     context.GetSDKKey(),
		headers:    context.GetHTTP().DefaultHeaders,
		loggers:    context.GetLogging().Loggers,
	}
}

// Authenticate requests a streaming token. Failures are returned as *Error.
func (a *HTTPAuthenticator) Authenticate(ctx context.Context, keys []string) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoints.AddPath(a.baseURI, endpoints.AuthRequestPath), nil)
	if err != nil {
		return Result{}, &Error{Cause: err}
	}
	query := url.Values{"s": {endpoints.SpecVersion}}
	for _, k := range keys {
		query.Add("users", k)
	}
	req.URL.RawQuery = query.Encode()
	if a.headers != nil {
		req.Header = maps.Clone(a.headers)
	}
	req.Header.Set("Authorization", "Bearer "+a.sdkKey)

	if a.loggers.IsDebugEnabled() {
		a.loggers.Debugf("Requesting streaming token for %d key(s)", len(keys))
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return Result{}, &Error{Recoverable: true, Cause: err}
	}
	defer func() {
		_, _ = io.ReadAll(resp.Body)
		_ = resp.Body.Close()
	}()

	if err := internal.CheckForHTTPError(resp.StatusCode, req.URL.String()); err != nil {
		return Result{}, &Error{
			StatusCode:  resp.StatusCode,
			Recoverable: internal.IsHTTPErrorRecoverable(resp.StatusCode),
			Cause:       err,
		}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, &Error{Recoverable: true, Cause: err} // COVERAGE: can't cause this condition in unit tests
	}
	return parseAuthResponse(body)
}

func parseAuthResponse(body []byte) (Result, error) {
	var ret Result
	var rawToken string
	var connDelaySeconds int
	r := jreader.NewReader(body)
	for obj := r.Object().WithRequiredProperties([]string{"pushEnabled"}); obj.Next(); {
		switch string(obj.Name()) {
		case "pushEnabled":
			ret.PushEnabled = r.Bool()
		case "token":
			rawToken, _ = r.StringOrNull()
		case "connDelay":
			connDelaySeconds, _ = r.IntOrNull()
		}
	}
	if err := r.Error(); err != nil {
		return Result{}, &Error{Recoverable: true, Cause: fmt.Errorf("malformed auth response: %w", err)}
	}
	ret.ConnectionDelay = time.Duration(connDelaySeconds) * time.Second
	if !ret.PushEnabled {
		return ret, nil
	}
	token, err := ParseJwt(rawToken)
	if err != nil {
		return Result{}, &Error{Recoverable: true, Cause: err}
	}
	ret.Token = token
	return ret, nil
}
