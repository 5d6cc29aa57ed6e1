package tokenstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Read when no session is stored.
var ErrNotFound = errors.New("no stored session")

// ErrReadOnly is returned by Write and Delete on backends that cannot be modified.
var ErrReadOnly = errors.New("token storage is read-only")

// TokenStore reads and writes a serialized session.
type TokenStore interface {
	// Read returns the stored value, or ErrNotFound if there is none.
	Read(ctx context.Context) (string, error)

	// Write persists value, replacing any previous one.
	Write(ctx context.Context, value string) error

	// Delete removes the stored value. Deleting a missing value is not an error.
	Delete(ctx context.Context) error
}
