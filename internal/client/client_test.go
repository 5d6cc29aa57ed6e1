package client_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/florianilch/julekalender/internal/apiclient"
	"github.com/florianilch/julekalender/internal/client"
	"github.com/florianilch/julekalender/internal/credentials"
	"github.com/florianilch/julekalender/internal/media"
)

// backend is a small stand-in for the julekalender API.
type backend struct {
	*httptest.Server

	mu          sync.Mutex
	authHeaders []string
}

func newBackend(t *testing.T) *backend {
	t.Helper()
	b := &backend{}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.FormValue("username") != "nisse" || r.FormValue("password") != "hunter2" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"detail":"Incorrect username or password"}`)
			return
		}
		_, _ = io.WriteString(w, `{"access_token":"session-token","token_type":"bearer"}`)
	})
	mux.HandleFunc("GET /time", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.authHeaders = append(b.authHeaders, r.Header.Get("Authorization"))
		b.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"time":"2024-12-24T18:00:00"}`)
	})
	mux.HandleFunc("GET /media/download/{name}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/markdown")
		_, _ = io.WriteString(w, "# Luke "+r.PathValue("name"))
	})
	b.Server = httptest.NewServer(mux)
	t.Cleanup(b.Close)
	return b
}

func (b *backend) seenAuth() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.authHeaders...)
}

func newClient(t *testing.T, baseURL string) *client.Client {
	t.Helper()
	dispatcher, err := apiclient.New(baseURL)
	require.NoError(t, err)
	store, err := credentials.NewStore(baseURL)
	require.NoError(t, err)
	fetcher, err := media.NewFetcher(baseURL, media.WithDir(t.TempDir()))
	require.NoError(t, err)

	c, err := client.New(dispatcher, store, fetcher)
	require.NoError(t, err)
	return c
}

func TestClient_SendAttachesSessionCredential(t *testing.T) {
	b := newBackend(t)
	c := newClient(t, b.URL)
	ctx := context.Background()

	result, err := c.Send(ctx, "time", http.MethodGet, nil)
	require.NoError(t, err)
	var payload struct {
		Time string `json:"time"`
	}
	require.NoError(t, json.Unmarshal(result, &payload))
	assert.Equal(t, "2024-12-24T18:00:00", payload.Time)

	_, err = c.Login(ctx, "nisse", "hunter2")
	require.NoError(t, err)
	_, err = c.Send(ctx, "time", http.MethodGet, nil)
	require.NoError(t, err)

	c.Logout()
	_, err = c.Send(ctx, "time", http.MethodGet, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"", "Bearer session-token", ""}, b.seenAuth())
}

func TestClient_LoginFailureIsReturned(t *testing.T) {
	b := newBackend(t)
	c := newClient(t, b.URL)

	_, err := c.Login(context.Background(), "nisse", "nope")
	var apiErr *apiclient.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)

	_, ok := c.Get()
	assert.False(t, ok)
}

func TestClient_FetchBinary(t *testing.T) {
	b := newBackend(t)
	c := newClient(t, b.URL)

	h, err := c.FetchBinary(context.Background(), "hint.md")
	require.NoError(t, err)
	defer func() { _ = h.Release() }()

	data, err := h.Bytes()
	require.NoError(t, err)
	assert.Equal(t, "# Luke hint.md", string(data))
	assert.Equal(t, "text/markdown", h.ContentType())
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := client.New(nil, nil, nil)
	assert.Error(t, err)
}
