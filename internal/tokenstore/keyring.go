package tokenstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// KeyringStore keeps the session in the OS-native credential storage
// (macOS Keychain, Windows Credential Manager, Linux Secret Service).
type KeyringStore struct {
	service string
	user    string
}

// Compile-time check to ensure KeyringStore implements TokenStore
var _ TokenStore = (*KeyringStore)(nil)

// NewKeyringStore creates a KeyringStore for the given service and user identifiers.
func NewKeyringStore(service, user string) (*KeyringStore, error) {
	if service == "" {
		return nil, fmt.Errorf("service cannot be empty")
	}
	if user == "" {
		return nil, fmt.Errorf("user cannot be empty")
	}

	return &KeyringStore{
		service: service,
		user:    user,
	}, nil
}

// Read returns the stored session, or ErrNotFound if the keyring has no entry.
func (k *KeyringStore) Read(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	value, err := keyring.Get(k.service, k.user)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("reading keyring (service %s, user %s): %w", k.service, k.user, err)
	}
	if value == "" {
		return "", ErrNotFound
	}
	return value, nil
}

// Write stores the session, overwriting any existing entry.
func (k *KeyringStore) Write(ctx context.Context, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return keyring.Set(k.service, k.user, value)
}

// Delete removes the keyring entry.
func (k *KeyringStore) Delete(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := keyring.Delete(k.service, k.user); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("deleting keyring entry: %w", err)
	}
	return nil
}
