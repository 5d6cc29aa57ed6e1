package credentials

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"github.com/florianilch/julekalender/internal/apiclient"
)

// TokenPath is the endpoint of the password-grant exchange, relative to the base URL.
const TokenPath = "token"

// ErrNoSession is returned when a credential is requested while anonymous.
var ErrNoSession = errors.New("no session")

// StoreOption configures a Store.
type StoreOption func(*storeConfig)

type storeConfig struct {
	baseTransport http.RoundTripper
	timeout       time.Duration
	now           func() time.Time
}

// WithTransport sets the base transport for token exchange requests.
// If not provided, http.DefaultTransport is used.
func WithTransport(transport http.RoundTripper) StoreOption {
	return func(c *storeConfig) {
		c.baseTransport = transport
	}
}

// WithTimeout bounds a single token exchange. Defaults to 30 seconds.
func WithTimeout(timeout time.Duration) StoreOption {
	return func(c *storeConfig) {
		c.timeout = timeout
	}
}

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) StoreOption {
	return func(c *storeConfig) {
		c.now = now
	}
}

// Store exchanges username and password for an access token and holds it.
type Store struct {
	oauthConfig *oauth2.Config
	httpClient  *http.Client
	now         func() time.Time

	current atomic.Pointer[oauth2.Token]
}

// Compile-time check to ensure Store implements oauth2.TokenSource
var _ oauth2.TokenSource = (*Store)(nil)

// NewStore creates an anonymous Store whose token endpoint is baseURL + "/token".
// No I/O is performed until Login.
func NewStore(baseURL string, opts ...StoreOption) (*Store, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q: scheme and host required", baseURL)
	}

	cfg := &storeConfig{
		baseTransport: http.DefaultTransport,
		timeout:       30 * time.Second,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return &Store{
		oauthConfig: &oauth2.Config{
			// Public client, both sent as empty placeholders by passwordGrantTransport
			ClientID:     "",
			ClientSecret: "",
			Endpoint: oauth2.Endpoint{
				TokenURL:  strings.TrimRight(base.String(), "/") + "/" + TokenPath,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		httpClient: &http.Client{
			Timeout:   cfg.timeout,
			Transport: &passwordGrantTransport{base: cfg.baseTransport},
		},
		now: cfg.now,
	}, nil
}

// TokenURL returns the endpoint used by Login.
func (s *Store) TokenURL() string {
	return s.oauthConfig.Endpoint.TokenURL
}

// Login exchanges username and password for a token and holds it, replacing
// any previous token. On failure the held token is left unchanged and the
// error is an *apiclient.APIError or *apiclient.TransportError.
func (s *Store) Login(ctx context.Context, username, password string) (*oauth2.Token, error) {
	// oauth2 picks up the HTTP client from the context
	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)

	tok, err := s.oauthConfig.PasswordCredentialsToken(ctx, username, password)
	if err != nil {
		return nil, exchangeError(err)
	}

	if tok.Expiry.IsZero() {
		if exp, ok := accessTokenExpiry(tok.AccessToken); ok {
			tok.Expiry = exp
		}
	}

	s.current.Store(tok)
	return tok, nil
}

// Get returns the held token, or false while anonymous. An expired token is
// dropped and reported as absent.
func (s *Store) Get() (*oauth2.Token, bool) {
	tok := s.current.Load()
	if tok == nil {
		return nil, false
	}
	if s.expired(tok) {
		// Only drop the token we inspected; a concurrent Login wins
		s.current.CompareAndSwap(tok, nil)
		return nil, false
	}
	return tok, true
}

// Logout drops the held token.
func (s *Store) Logout() {
	s.current.Store(nil)
}

// Restore holds a previously obtained token, e.g. one read back from
// persistent storage. Empty or expired tokens are rejected.
func (s *Store) Restore(tok *oauth2.Token) error {
	if tok == nil || tok.AccessToken == "" {
		return fmt.Errorf("restoring session: empty token")
	}
	if tok.Expiry.IsZero() {
		if exp, ok := accessTokenExpiry(tok.AccessToken); ok {
			restored := *tok
			restored.Expiry = exp
			tok = &restored
		}
	}
	if s.expired(tok) {
		return fmt.Errorf("restoring session: token expired at %s", tok.Expiry.Format(time.RFC3339))
	}

	s.current.Store(tok)
	return nil
}

// Token implements oauth2.TokenSource. Returns ErrNoSession while anonymous.
func (s *Store) Token() (*oauth2.Token, error) {
	tok, ok := s.Get()
	if !ok {
		return nil, ErrNoSession
	}
	return tok, nil
}

// Subject returns the "sub" claim of the held access token, if it is a JWT.
func (s *Store) Subject() (string, bool) {
	tok, ok := s.Get()
	if !ok {
		return "", false
	}
	claims, ok := accessTokenClaims(tok.AccessToken)
	if !ok {
		return "", false
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", false
	}
	return sub, true
}

func (s *Store) expired(tok *oauth2.Token) bool {
	return !tok.Expiry.IsZero() && !s.now().Before(tok.Expiry)
}

// exchangeError maps oauth2 failures onto the client's error taxonomy.
func exchangeError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
		return apiclient.NewAPIError(retrieveErr.Response.StatusCode, retrieveErr.Body)
	}
	return &apiclient.TransportError{Op: "token exchange", Err: err}
}

// accessTokenClaims decodes the claims of a JWT access token without
// verifying its signature. The backend owns verification; the client only
// reads hints such as expiry and subject.
func accessTokenClaims(accessToken string) (jwt.MapClaims, bool) {
	if strings.Count(accessToken, ".") != 2 {
		return nil, false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return nil, false
	}
	return claims, true
}

func accessTokenExpiry(accessToken string) (time.Time, bool) {
	claims, ok := accessTokenClaims(accessToken)
	if !ok {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
