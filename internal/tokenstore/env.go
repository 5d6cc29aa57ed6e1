package tokenstore

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// EnvStore reads a session from an environment variable. It cannot be written.
type EnvStore struct {
	envKey string
	lookup func(string) (string, bool)
}

// Compile-time check to ensure EnvStore implements TokenStore
var _ TokenStore = (*EnvStore)(nil)

// NewEnvStore creates an EnvStore for the given environment variable.
func NewEnvStore(envKey string) (*EnvStore, error) {
	if envKey == "" {
		return nil, fmt.Errorf("environment key cannot be empty")
	}

	return &EnvStore{
		envKey: envKey,
		lookup: os.LookupEnv,
	}, nil
}

// Read returns the variable's value, or ErrNotFound when it is unset or blank.
func (e *EnvStore) Read(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	value, _ := e.lookup(e.envKey)
	value = strings.TrimSpace(value)
	if value == "" {
		return "", ErrNotFound
	}
	return value, nil
}

// Write always fails with ErrReadOnly.
func (e *EnvStore) Write(ctx context.Context, _ string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fmt.Errorf("%w: environment variable %s", ErrReadOnly, e.envKey)
}

// Delete always fails with ErrReadOnly.
func (e *EnvStore) Delete(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fmt.Errorf("%w: environment variable %s", ErrReadOnly, e.envKey)
}
