package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileStore keeps the session in a single file readable only by its owner.
// Writes go through a temp file and rename.
type FileStore struct {
	filePath string
}

// Compile-time check to ensure FileStore implements TokenStore
var _ TokenStore = (*FileStore)(nil)

// NewFileStore creates a FileStore for the given path, creating parent directories
// with 0700 permissions if they don't exist.
func NewFileStore(filePath string) (*FileStore, error) {
	if filePath == "" {
		return nil, fmt.Errorf("file path cannot be empty")
	}

	if err := os.MkdirAll(filepath.Dir(filePath), 0700); err != nil {
		return nil, fmt.Errorf("creating session directory: %w", err)
	}

	return &FileStore{filePath: filePath}, nil
}

// Path returns the file the session is stored in.
func (f *FileStore) Path() string {
	return f.filePath
}

// Read returns the stored session. A missing or empty file yields ErrNotFound;
// a file with permissions other than 0600 is refused.
func (f *FileStore) Read(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	info, err := os.Stat(f.filePath)
	if errors.Is(err, os.ErrNotExist) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	if info.Mode().Perm() != 0600 {
		return "", fmt.Errorf("insecure permissions on %s: %04o (expected 0600)", f.filePath, info.Mode().Perm())
	}

	data, err := os.ReadFile(f.filePath)
	if err != nil {
		return "", err
	}

	value := strings.TrimSpace(string(data))
	if value == "" {
		return "", ErrNotFound
	}
	return value, nil
}

// Write atomically replaces the stored session with 0600 permissions.
func (f *FileStore) Write(ctx context.Context, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tempFile, err := os.CreateTemp(filepath.Dir(f.filePath), "*.tmp")
	if err != nil {
		return err
	}
	tempName := tempFile.Name()
	defer func() { _ = os.Remove(tempName) }()
	defer func() { _ = tempFile.Close() }()

	if err := tempFile.Chmod(0600); err != nil {
		return err
	}
	if _, err := tempFile.WriteString(strings.TrimSpace(value) + "\n"); err != nil {
		return err
	}
	if err := tempFile.Close(); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	return os.Rename(tempName, f.filePath)
}

// Delete removes the session file.
func (f *FileStore) Delete(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.Remove(f.filePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
