package credentials

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// placeholderFields are sent empty when the oauth2 package omits them.
var placeholderFields = []string{"scope", "client_id", "client_secret"}

// passwordGrantTransport completes oauth2's password grant form with the
// placeholder fields the token endpoint expects.
// The oauth2 package guarantees this transport only receives token endpoint requests.
type passwordGrantTransport struct {
	base http.RoundTripper
}

// Compile-time check that passwordGrantTransport implements http.RoundTripper.
var _ http.RoundTripper = (*passwordGrantTransport)(nil)

// RoundTrip rewrites the form body and forwards the cloned request.
func (t *passwordGrantTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	if req.Body == nil {
		return nil, fmt.Errorf("token request without body")
	}

	// The original body is consumed entirely and replaced on the clone
	defer func() { _ = req.Body.Close() }()
	body, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, fmt.Errorf("reading request body: %w", err)
	}

	form, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, fmt.Errorf("parsing form data: %w", err)
	}
	for _, field := range placeholderFields {
		if !form.Has(field) {
			form.Set(field, "")
		}
	}
	encoded := form.Encode()

	newReq := req.Clone(req.Context())
	newReq.Body = io.NopCloser(strings.NewReader(encoded))
	newReq.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(encoded)), nil
	}
	newReq.ContentLength = int64(len(encoded))
	newReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	newReq.Header.Set("Accept", "application/json")

	return base.RoundTrip(newReq)
}
