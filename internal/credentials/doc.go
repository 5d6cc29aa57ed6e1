// Package credentials performs the password-grant token exchange against the
// julekalender backend and holds the resulting access token.
//
// The exchange is a form-encoded POST to /token. Unlike the generic JSON
// requests of package apiclient it is built by golang.org/x/oauth2, with a
// transport that pads the form to the exact field set the backend expects:
//
//	grant_type=password&username=…&password=…&scope=&client_id=&client_secret=
//
// # Session lifecycle
//
// A Store starts anonymous. A successful Login replaces the held token as a
// whole; a failed Login leaves it untouched and returns the error. Get never
// re-authenticates: an expired token is dropped and reported as absent.
//
//	store, _ := credentials.NewStore("http://localhost:8000")
//	tok, err := store.Login(ctx, "nisse", "hunter2")
//	if cred, ok := store.Get(); ok { ... }
//
// Store is safe for concurrent use. Readers may observe the token change
// between calls; they never observe a partially written one.
package credentials
