package app

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/florianilch/julekalender/internal/apiclient"
	"github.com/florianilch/julekalender/internal/tokenstore"
)

// newBackend serves /token, /user/me and /media/download/{name}.
// /user/me answers 401 unless the request carries the issued token.
func newBackend(t *testing.T, accessToken string, files map[string]string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.FormValue("password") != "hunter2" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"detail":"Incorrect username or password"}`)
			return
		}
		_, _ = io.WriteString(w, `{"access_token":"`+accessToken+`","token_type":"bearer"}`)
	})
	mux.HandleFunc("GET /user/me", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Header.Get("Authorization") != "Bearer "+accessToken {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"error":"not_authenticated"}`)
			return
		}
		_, _ = io.WriteString(w, `{"username":"nisse"}`)
	})
	mux.HandleFunc("GET /media/download/{name}", func(w http.ResponseWriter, r *http.Request) {
		data, ok := files[r.PathValue("name")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = io.WriteString(w, data)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, baseURL string) *Config {
	t.Helper()
	cfg := &Config{
		Server: ServerConfig{BaseURL: baseURL},
		Media:  MediaConfig{Dir: t.TempDir()},
		Auth:   AuthConfig{Storage: SessionStorageFile, File: filepath.Join(t.TempDir(), "session")},
	}
	require.NoError(t, cfg.ApplyDefaults())
	return cfg
}

func TestApp_SessionSurvivesRestart(t *testing.T) {
	srv := newBackend(t, "issued-token", nil)
	cfg := testConfig(t, srv.URL)
	ctx := context.Background()

	first, err := New(cfg)
	require.NoError(t, err)
	_, err = first.Session().Login(ctx, "nisse", "hunter2")
	require.NoError(t, err)

	second, err := New(cfg)
	require.NoError(t, err)
	c, err := second.Connect(ctx)
	require.NoError(t, err)

	result, err := c.Send(ctx, "user/me", http.MethodGet, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"username":"nisse"}`, string(result))

	require.NoError(t, second.Session().Logout(ctx))

	third, err := New(cfg)
	require.NoError(t, err)
	c, err = third.Connect(ctx)
	require.NoError(t, err)

	_, err = c.Send(ctx, "user/me", http.MethodGet, nil)
	var apiErr *apiclient.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "not_authenticated", apiErr.Message)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
}

func TestApp_FailedLoginPersistsNothing(t *testing.T) {
	srv := newBackend(t, "issued-token", nil)
	cfg := testConfig(t, srv.URL)

	a, err := New(cfg)
	require.NoError(t, err)
	_, err = a.Session().Login(context.Background(), "nisse", "wrong")
	require.Error(t, err)

	_, err = os.Stat(cfg.Auth.File)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestApp_DownloadMedia(t *testing.T) {
	files := map[string]string{
		"day01.md":  "# Luke 1",
		"day02.md":  "# Luke 2",
		"hint.png":  "\x89PNG\r\n\x1a\nrest",
		"song.mp3":  "ID3",
		"extra.txt": "x",
	}
	srv := newBackend(t, "issued-token", files)
	cfg := testConfig(t, srv.URL)
	cfg.Download.Concurrency = 2

	a, err := New(cfg)
	require.NoError(t, err)

	outDir := filepath.Join(t.TempDir(), "out")
	names := []string{"day01.md", "day02.md", "hint.png", "song.mp3", "extra.txt"}
	paths, err := a.DownloadMedia(context.Background(), names, outDir)
	require.NoError(t, err)
	require.Len(t, paths, len(names))

	for i, name := range names {
		assert.Equal(t, filepath.Join(outDir, name), paths[i])
		data, err := os.ReadFile(paths[i])
		require.NoError(t, err)
		assert.Equal(t, files[name], string(data))
	}

	entries, err := os.ReadDir(cfg.Media.Dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "media handles are released after copying")
}

func TestApp_DownloadMediaStopsOnFailure(t *testing.T) {
	srv := newBackend(t, "issued-token", map[string]string{"day01.md": "# Luke 1"})
	a, err := New(testConfig(t, srv.URL))
	require.NoError(t, err)

	_, err = a.DownloadMedia(context.Background(), []string{"day01.md", "missing.md"}, t.TempDir())
	var apiErr *apiclient.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Contains(t, err.Error(), "missing.md")
}

func TestPersistentSession_EnvStaticToken(t *testing.T) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "nisse",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("k"))
	require.NoError(t, err)
	t.Setenv("JULEKALENDER_TEST_TOKEN", signed)

	cfg := testConfig(t, "http://localhost:8000")
	cfg.Auth = AuthConfig{Storage: SessionStorageEnv, EnvKey: "JULEKALENDER_TEST_TOKEN"}

	a, err := New(cfg)
	require.NoError(t, err)
	c, err := a.Connect(context.Background())
	require.NoError(t, err)

	tok, ok := c.Get()
	require.True(t, ok)
	assert.Equal(t, signed, tok.AccessToken)
	assert.Equal(t, "Bearer", tok.Type())
	assert.False(t, tok.Expiry.IsZero())

	sub, ok := c.Store().Subject()
	require.True(t, ok)
	assert.Equal(t, "nisse", sub)
}

func TestPersistentSession_IgnoresBrokenAndExpiredSessions(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, "http://localhost:8000")

	for name, stored := range map[string]string{
		"garbage": "{not json",
		"expired": `{"access_token":"old","token_type":"bearer","expiry":"2001-01-01T00:00:00Z"}`,
	} {
		t.Run(name, func(t *testing.T) {
			a, err := New(cfg)
			require.NoError(t, err)

			mem := tokenstore.NewMemoryStore()
			require.NoError(t, mem.Write(ctx, stored))
			session, err := NewPersistentSession(a.Client().Store(), mem)
			require.NoError(t, err)

			require.NoError(t, session.Load(ctx))
			_, ok := a.Client().Get()
			assert.False(t, ok)
		})
	}
}

func TestSessionEncoding(t *testing.T) {
	expiry := time.Date(2024, time.December, 24, 18, 0, 0, 0, time.UTC)
	encoded, err := encodeSession(&oauth2.Token{AccessToken: "a", TokenType: "bearer", Expiry: expiry})
	require.NoError(t, err)

	decoded, err := decodeSession(encoded)
	require.NoError(t, err)
	assert.Equal(t, "a", decoded.AccessToken)
	assert.Equal(t, "bearer", decoded.TokenType)
	assert.True(t, decoded.Expiry.Equal(expiry))

	encoded, err = encodeSession(&oauth2.Token{AccessToken: "b"})
	require.NoError(t, err)
	assert.NotContains(t, encoded, "expiry")
}
