package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// Args holds the flat arguments of a request. Values are scalars or
// anything else that serializes to a string (query) or to JSON (body).
type Args map[string]any

// supportedMethods lists the verbs a Dispatcher accepts.
var supportedMethods = map[string]bool{
	http.MethodGet:    true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
}

// Option configures a Dispatcher.
type Option func(*config)

type config struct {
	httpClient *http.Client
}

// WithHTTPClient sets the HTTP client used for outbound calls.
// If not provided, a client with a 30 second timeout is used.
func WithHTTPClient(client *http.Client) Option {
	return func(c *config) {
		c.httpClient = client
	}
}

// Dispatcher sends generic JSON requests relative to a base URL.
// It is safe for concurrent use.
type Dispatcher struct {
	baseURL    *url.URL
	httpClient *http.Client
}

// New creates a Dispatcher for the given base URL (scheme and host, optionally a path prefix).
func New(baseURL string, opts ...Option) (*Dispatcher, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q: scheme and host required", baseURL)
	}

	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.httpClient == nil {
		cfg.httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &Dispatcher{
		baseURL:    base,
		httpClient: cfg.httpClient,
	}, nil
}

// BaseURL returns the origin every endpoint is resolved against.
func (d *Dispatcher) BaseURL() string {
	return d.baseURL.String()
}

// Send issues one request and returns the decoded JSON result.
//
// A nil cred sends the request unauthenticated. DELETE requests and empty
// success bodies return a nil result. Non-success responses return *APIError,
// failures without a usable response return *TransportError.
func (d *Dispatcher) Send(ctx context.Context, endpoint, method string, args Args, cred *oauth2.Token) (json.RawMessage, error) {
	req, err := d.NewRequest(ctx, endpoint, method, args)
	if err != nil {
		return nil, err
	}
	if cred != nil {
		cred.SetAuthHeader(req)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: method + " " + endpoint, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: "reading response body", Err: err}
	}

	if !IsSuccess(resp.StatusCode) {
		return nil, NewAPIError(resp.StatusCode, body)
	}

	// Successful DELETE never yields a payload, even if the server sent one
	if req.Method == http.MethodDelete {
		return nil, nil
	}

	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}
	if !json.Valid(body) {
		return nil, &TransportError{Op: "decoding response body", Err: fmt.Errorf("malformed JSON (status %d)", resp.StatusCode)}
	}

	return json.RawMessage(body), nil
}

// NewRequest builds the outbound request for endpoint, method and args
// without sending it. GET arguments go into the query string, all other
// verbs carry them as a JSON body.
func (d *Dispatcher) NewRequest(ctx context.Context, endpoint, method string, args Args) (*http.Request, error) {
	method = strings.ToUpper(strings.TrimSpace(method))
	if !supportedMethods[method] {
		return nil, fmt.Errorf("%w: unsupported method %q", ErrInvalidRequest, method)
	}

	endpoint = strings.TrimLeft(strings.TrimSpace(endpoint), "/")
	if endpoint == "" {
		return nil, fmt.Errorf("%w: empty endpoint", ErrInvalidRequest)
	}
	if strings.Contains(endpoint, "://") {
		return nil, fmt.Errorf("%w: endpoint %q must be a path, not a URL", ErrInvalidRequest, endpoint)
	}

	target := d.ResolveURL(endpoint)

	var body io.Reader
	if method == http.MethodGet {
		if query := EncodeQuery(args); query != "" {
			target += "?" + query
		}
	} else {
		payload, err := EncodeBody(args)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, &TransportError{Op: "building request", Err: err}
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return req, nil
}

// ResolveURL joins the base URL and an endpoint path with a single slash.
func (d *Dispatcher) ResolveURL(endpoint string) string {
	return strings.TrimRight(d.baseURL.String(), "/") + "/" + strings.TrimLeft(endpoint, "/")
}

// EncodeQuery URL-encodes args as query parameters. Empty args encode to "".
func EncodeQuery(args Args) string {
	if len(args) == 0 {
		return ""
	}

	values := make(url.Values, len(args))
	for key, value := range args {
		values.Set(key, stringify(value))
	}
	return values.Encode()
}

// EncodeBody serializes args as a JSON object. Nil args encode as {}.
func EncodeBody(args Args) ([]byte, error) {
	if args == nil {
		args = Args{}
	}

	payload, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("encoding JSON body: %w", err)
	}
	return payload, nil
}

// IsSuccess reports whether status is in the 2xx range.
func IsSuccess(status int) bool {
	return status >= 200 && status <= 299
}

func stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}
