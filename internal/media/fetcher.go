// Package media downloads binary media from the backend into locally scoped
// handles. A Handle owns a temporary file; callers release it once the media
// is no longer displayed.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/florianilch/julekalender/internal/apiclient"
)

// DownloadPath is the media-serving route, relative to the base URL.
const DownloadPath = "media/download/"

// ErrReleased is returned when a released handle is used.
var ErrReleased = errors.New("media handle released")

// Option configures a Fetcher.
type Option func(*config)

type config struct {
	httpClient *http.Client
	dir        string
}

// WithHTTPClient sets the HTTP client used for downloads.
func WithHTTPClient(client *http.Client) Option {
	return func(c *config) {
		c.httpClient = client
	}
}

// WithDir sets the directory temporary media files are created in.
// Defaults to os.TempDir().
func WithDir(dir string) Option {
	return func(c *config) {
		c.dir = dir
	}
}

// Fetcher downloads media files by name.
type Fetcher struct {
	baseURL    string
	httpClient *http.Client
	dir        string
}

// NewFetcher creates a Fetcher resolving names against baseURL + "/media/download/".
func NewFetcher(baseURL string, opts ...Option) (*Fetcher, error) {
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
		cfg.httpClient = &http.Client{Timeout: 5 * time.Minute}
	}

	return &Fetcher{
		baseURL:    strings.TrimRight(base.String(), "/"),
		httpClient: cfg.httpClient,
		dir:        cfg.dir,
	}, nil
}

// URL returns the download URL for fileName.
func (f *Fetcher) URL(fileName string) string {
	return f.baseURL + "/" + DownloadPath + url.PathEscape(fileName)
}

// FetchBinary downloads fileName without credentials and returns a handle
// to the local copy. Non-success responses return *apiclient.APIError,
// network and write failures *apiclient.TransportError.
func (f *Fetcher) FetchBinary(ctx context.Context, fileName string) (*Handle, error) {
	if fileName == "" || strings.ContainsAny(fileName, "/\\") {
		return nil, fmt.Errorf("%w: invalid media name %q", apiclient.ErrInvalidRequest, fileName)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL(fileName), nil)
	if err != nil {
		return nil, &apiclient.TransportError{Op: "building media request", Err: err}
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, &apiclient.TransportError{Op: "GET " + DownloadPath + fileName, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if !apiclient.IsSuccess(resp.StatusCode) {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return nil, apiclient.NewAPIError(resp.StatusCode, body)
	}

	tempFile, err := os.CreateTemp(f.dir, "media-*")
	if err != nil {
		return nil, &apiclient.TransportError{Op: "creating media file", Err: err}
	}
	tempName := tempFile.Name()

	size, err := io.Copy(tempFile, resp.Body)
	if closeErr := tempFile.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tempName)
		return nil, &apiclient.TransportError{Op: "reading media body", Err: err}
	}

	contentType, err := resolveContentType(resp.Header.Get("Content-Type"), tempName)
	if err != nil {
		_ = os.Remove(tempName)
		return nil, &apiclient.TransportError{Op: "detecting media type", Err: err}
	}

	return &Handle{
		name:        fileName,
		path:        tempName,
		contentType: contentType,
		size:        size,
	}, nil
}

// resolveContentType trusts a specific server Content-Type and sniffs the
// downloaded bytes otherwise.
func resolveContentType(header, path string) (string, error) {
	if header != "" {
		mediaType, _, err := mime.ParseMediaType(header)
		if err == nil && mediaType != "application/octet-stream" {
			return header, nil
		}
	}

	detected, err := mimetype.DetectFile(path)
	if err != nil {
		return "", err
	}
	return detected.String(), nil
}

// Handle references downloaded media held in a temporary file.
type Handle struct {
	name        string
	path        string
	contentType string
	size        int64

	mu       sync.Mutex
	released bool
}

// Name returns the server-side name the handle was fetched by.
func (h *Handle) Name() string { return h.name }

// Path returns the local file holding the media. It is removed by Release.
func (h *Handle) Path() string { return h.path }

// ContentType returns the media type reported by the server or detected locally.
func (h *Handle) ContentType() string { return h.contentType }

// Size returns the number of bytes downloaded.
func (h *Handle) Size() int64 { return h.size }

// Open opens the local copy for reading.
func (h *Handle) Open() (*os.File, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return nil, ErrReleased
	}
	return os.Open(h.path)
}

// Bytes reads the whole local copy into memory.
func (h *Handle) Bytes() ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return nil, ErrReleased
	}
	return os.ReadFile(h.path)
}

// Release removes the local copy. Releasing twice is a no-op.
func (h *Handle) Release() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return nil
	}
	h.released = true
	if err := os.Remove(h.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("releasing media handle: %w", err)
	}
	return nil
}
