// Package client is the caller-facing surface of the julekalender client core.
package client

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/oauth2"

	"github.com/florianilch/julekalender/internal/apiclient"
	"github.com/florianilch/julekalender/internal/credentials"
	"github.com/florianilch/julekalender/internal/media"
)

// Client combines request dispatch, the session and media downloads.
// The held credential, if any, is attached to every Send.
type Client struct {
	dispatcher *apiclient.Dispatcher
	store      *credentials.Store
	fetcher    *media.Fetcher
}

// New creates a Client from its collaborators.
func New(dispatcher *apiclient.Dispatcher, store *credentials.Store, fetcher *media.Fetcher) (*Client, error) {
	if dispatcher == nil {
		return nil, fmt.Errorf("missing dispatcher")
	}
	if store == nil {
		return nil, fmt.Errorf("missing credential store")
	}
	if fetcher == nil {
		return nil, fmt.Errorf("missing media fetcher")
	}

	return &Client{
		dispatcher: dispatcher,
		store:      store,
		fetcher:    fetcher,
	}, nil
}

// Send dispatches one request, authenticated when a session is held.
func (c *Client) Send(ctx context.Context, endpoint, method string, args apiclient.Args) (json.RawMessage, error) {
	cred, _ := c.store.Get()
	return c.dispatcher.Send(ctx, endpoint, method, args, cred)
}

// Login exchanges username and password for a session.
func (c *Client) Login(ctx context.Context, username, password string) (*oauth2.Token, error) {
	return c.store.Login(ctx, username, password)
}

// Get returns the current session credential, or false while anonymous.
func (c *Client) Get() (*oauth2.Token, bool) {
	return c.store.Get()
}

// Logout ends the session.
func (c *Client) Logout() {
	c.store.Logout()
}

// FetchBinary downloads a media file. The caller releases the handle.
func (c *Client) FetchBinary(ctx context.Context, fileName string) (*media.Handle, error) {
	return c.fetcher.FetchBinary(ctx, fileName)
}

// Store exposes the credential store, e.g. for session persistence.
func (c *Client) Store() *credentials.Store {
	return c.store
}
