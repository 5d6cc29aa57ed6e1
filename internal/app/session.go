package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/florianilch/julekalender/internal/credentials"
	"github.com/florianilch/julekalender/internal/tokenstore"
)

// PersistentSession keeps a credentials.Store in sync with a TokenStore so
// that a login survives process exit. The Store stays the only owner of the
// live credential; this type only copies it in and out.
type PersistentSession struct {
	store      *credentials.Store
	tokenStore tokenstore.TokenStore

	// load runs once, on the first Load call
	load func() error
	mu   sync.Mutex
}

// NewPersistentSession creates a PersistentSession.
// No I/O is performed until Load.
func NewPersistentSession(store *credentials.Store, tokenStore tokenstore.TokenStore) (*PersistentSession, error) {
	if store == nil {
		return nil, fmt.Errorf("missing credential store")
	}
	if tokenStore == nil {
		return nil, fmt.Errorf("missing token store")
	}

	p := &PersistentSession{
		store:      store,
		tokenStore: tokenStore,
	}
	p.load = sync.OnceValue(func() error {
		return p.restore(context.Background())
	})
	return p, nil
}

// Load seeds the Store from persistent storage. A missing, unreadable or
// expired session leaves the Store anonymous; only storage failures are errors.
func (p *PersistentSession) Load(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.load()
}

func (p *PersistentSession) restore(ctx context.Context) error {
	value, err := p.tokenStore.Read(ctx)
	if errors.Is(err, tokenstore.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading stored session: %w", err)
	}

	tok, err := decodeSession(value)
	if err != nil {
		slog.WarnContext(ctx, "ignoring unreadable stored session", "error", err)
		return nil
	}

	if err := p.store.Restore(tok); err != nil {
		slog.InfoContext(ctx, "stored session not restored", "reason", err)
	}
	return nil
}

// Login authenticates and persists the new session.
func (p *PersistentSession) Login(ctx context.Context, username, password string) (*oauth2.Token, error) {
	tok, err := p.store.Login(ctx, username, password)
	if err != nil {
		return nil, err
	}

	if err := p.save(ctx, tok); err != nil {
		// The in-memory session is valid; the next invocation will just be anonymous
		return tok, fmt.Errorf("persisting session: %w", err)
	}
	return tok, nil
}

// Logout ends the session and removes it from persistent storage.
func (p *PersistentSession) Logout(ctx context.Context) error {
	p.store.Logout()

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.tokenStore.Delete(ctx); err != nil {
		return fmt.Errorf("removing stored session: %w", err)
	}
	return nil
}

func (p *PersistentSession) save(ctx context.Context, tok *oauth2.Token) error {
	value, err := encodeSession(tok)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tokenStore.Write(ctx, value)
}

// storedSession is the persisted form of a credential.
type storedSession struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type,omitempty"`
	Expiry      time.Time `json:"expiry,omitzero"`
}

func encodeSession(tok *oauth2.Token) (string, error) {
	s := storedSession{
		AccessToken: tok.AccessToken,
		TokenType:   tok.TokenType,
		Expiry:      tok.Expiry.UTC(),
	}

	data, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("encoding session: %w", err)
	}
	return string(data), nil
}

// decodeSession accepts the JSON written by encodeSession, or a bare access
// token as provided through env storage.
func decodeSession(value string) (*oauth2.Token, error) {
	value = strings.TrimSpace(value)
	if !strings.HasPrefix(value, "{") {
		return &oauth2.Token{AccessToken: value, TokenType: "bearer"}, nil
	}

	var s storedSession
	if err := json.Unmarshal([]byte(value), &s); err != nil {
		return nil, fmt.Errorf("decoding session: %w", err)
	}

	return &oauth2.Token{
		AccessToken: s.AccessToken,
		TokenType:   s.TokenType,
		Expiry:      s.Expiry,
	}, nil
}
