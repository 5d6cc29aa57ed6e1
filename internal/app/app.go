package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/florianilch/julekalender/internal/apiclient"
	"github.com/florianilch/julekalender/internal/client"
	"github.com/florianilch/julekalender/internal/credentials"
	"github.com/florianilch/julekalender/internal/media"
	"github.com/florianilch/julekalender/internal/observability"
)

// App wires the client core to configuration and session persistence.
type App struct {
	cfg     *Config
	client  *client.Client
	session *PersistentSession
}

// New creates a new App instance. No network or storage I/O is performed.
func New(cfg *Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// All outbound calls share one logged transport for connection pooling
	transport := observability.NewTransport(http.DefaultTransport)
	httpClient := &http.Client{
		Timeout:   cfg.Server.Timeout,
		Transport: transport,
	}

	dispatcher, err := apiclient.New(cfg.Server.BaseURL, apiclient.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create dispatcher: %w", err)
	}

	store, err := credentials.NewStore(cfg.Server.BaseURL,
		credentials.WithTransport(transport),
		credentials.WithTimeout(cfg.Server.Timeout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create credential store: %w", err)
	}

	// Media downloads are bounded by context rather than a client timeout
	fetcher, err := media.NewFetcher(cfg.Server.BaseURL,
		media.WithHTTPClient(&http.Client{Transport: transport}),
		media.WithDir(cfg.Media.Dir),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create media fetcher: %w", err)
	}

	c, err := client.New(dispatcher, store, fetcher)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	tokenStore, err := cfg.Auth.NewTokenStore()
	if err != nil {
		return nil, fmt.Errorf("failed to create token store: %w", err)
	}

	session, err := NewPersistentSession(store, tokenStore)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return &App{
		cfg:     cfg,
		client:  c,
		session: session,
	}, nil
}

// Client returns the client core.
func (a *App) Client() *client.Client {
	return a.client
}

// Session returns the persistent session.
func (a *App) Session() *PersistentSession {
	return a.session
}

// Connect restores a stored session, if any, and returns the client.
func (a *App) Connect(ctx context.Context) (*client.Client, error) {
	if err := a.session.Load(ctx); err != nil {
		return nil, err
	}
	return a.client, nil
}

// DownloadMedia fetches names concurrently into outDir and returns the
// written paths in input order. Downloads stop at the first failure.
func (a *App) DownloadMedia(ctx context.Context, names []string, outDir string) ([]string, error) {
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	paths := make([]string, len(names))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.Download.Concurrency)

	for i, name := range names {
		g.Go(func() error {
			path, err := a.downloadOne(gCtx, name, outDir)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			paths[i] = path
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return paths, nil
}

func (a *App) downloadOne(ctx context.Context, name, outDir string) (path string, err error) {
	handle, err := a.client.FetchBinary(ctx, name)
	if err != nil {
		return "", err
	}
	defer func() {
		err = errors.Join(err, handle.Release())
	}()

	src, err := handle.Open()
	if err != nil {
		return "", err
	}
	defer func() { _ = src.Close() }()

	path = filepath.Join(outDir, filepath.Base(name))
	dst, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return "", err
	}
	if err := dst.Close(); err != nil {
		return "", err
	}

	slog.DebugContext(ctx, "media downloaded", "name", name, "path", path, "bytes", handle.Size(), "content_type", handle.ContentType())
	return path, nil
}
