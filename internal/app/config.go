package app

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/user"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/florianilch/julekalender/internal/tokenstore"
)

// LogFormat represents the logging output format.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
	LogFormatOTel LogFormat = "otel"
	LogFormatOTLP LogFormat = "otlp"
)

// SessionStorageType represents where a session is kept between invocations.
type SessionStorageType string

const (
	SessionStorageFile    SessionStorageType = "file"
	SessionStorageEnv     SessionStorageType = "env"
	SessionStorageKeyring SessionStorageType = "keyring"
	SessionStorageMemory  SessionStorageType = "memory"
)

// keyringService names the keyring entry holding the session.
const keyringService = "julekalender-session"

// Default configuration values
const (
	DefaultConfigLogFormat           = LogFormatText
	DefaultConfigServerBaseURL       = "http://localhost:8000"
	DefaultConfigServerTimeout       = 30 * time.Second
	DefaultConfigDownloadConcurrency = 4
	DefaultConfigAuthStorage         = SessionStorageFile
	DefaultConfigAuthEnvKey          = "JULEKALENDER_ACCESS_TOKEN"
)

// ServerConfig describes the backend the client talks to.
type ServerConfig struct {
	BaseURL string `json:"base_url" validate:"required,url"`
	// Timeout bounds a single request, including reading the response body.
	Timeout time.Duration `json:"timeout" validate:"gte=0"`
}

// MediaConfig controls where downloaded media is buffered.
type MediaConfig struct {
	// Dir for temporary media files (defaults to the OS temp dir).
	Dir string `json:"dir"`
}

// DownloadConfig controls bulk media downloads.
type DownloadConfig struct {
	Concurrency int `json:"concurrency" validate:"min=1,max=32"`
}

// AuthConfig describes where the session is persisted.
type AuthConfig struct {
	Storage SessionStorageType `json:"storage" validate:"required,oneof=file env keyring memory"`

	// Storage-specific settings (mutually exclusive based on Storage type)
	File        string `json:"file,omitempty"`         // For file storage: path to session file
	EnvKey      string `json:"env_key,omitempty"`      // For env storage: environment variable name
	KeyringUser string `json:"keyring_user,omitempty"` // For keyring storage: user identifier
}

// NewTokenStore creates the session backend described by the configuration.
func (a *AuthConfig) NewTokenStore() (tokenstore.TokenStore, error) {
	switch a.Storage {
	case SessionStorageFile:
		return tokenstore.NewFileStore(a.File)
	case SessionStorageEnv:
		return tokenstore.NewEnvStore(a.EnvKey)
	case SessionStorageKeyring:
		return tokenstore.NewKeyringStore(keyringService, a.KeyringUser)
	case SessionStorageMemory:
		return tokenstore.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", a.Storage)
	}
}

// Config holds the application's configuration.
type Config struct {
	// LogLevel for logging output (defaults to Info if unset).
	LogLevel  slog.Level     `json:"log_level"`
	LogFormat LogFormat      `json:"log_format" validate:"oneof=text json otel otlp"`
	Server    ServerConfig   `json:"server"`
	Media     MediaConfig    `json:"media"`
	Download  DownloadConfig `json:"download"`
	Auth      AuthConfig     `json:"auth"`
}

// Default creates a new Config with default values applied.
func Default() (*Config, error) {
	cfg := &Config{}
	if err := cfg.ApplyDefaults(); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}
	return cfg, nil
}

// ApplyDefaults fills unset config fields with sensible defaults.
func (c *Config) ApplyDefaults() error {
	if c.LogFormat == "" {
		c.LogFormat = DefaultConfigLogFormat
	}
	if c.Server.BaseURL == "" {
		c.Server.BaseURL = DefaultConfigServerBaseURL
	}
	if c.Server.Timeout == 0 {
		c.Server.Timeout = DefaultConfigServerTimeout
	}
	if c.Download.Concurrency == 0 {
		c.Download.Concurrency = DefaultConfigDownloadConcurrency
	}
	if c.Auth.Storage == "" {
		c.Auth.Storage = DefaultConfigAuthStorage
	}

	// Dynamic defaults based on storage type
	switch c.Auth.Storage {
	case SessionStorageFile:
		if c.Auth.File == "" {
			configDir, err := os.UserConfigDir()
			if err != nil {
				return fmt.Errorf("auth.file required (auto-detect failed: %w)", err)
			}
			c.Auth.File = filepath.Join(configDir, "julekalender", "session")
		}
	case SessionStorageKeyring:
		if c.Auth.KeyringUser == "" {
			currentUser, err := user.Current()
			if err != nil {
				return fmt.Errorf("auth.keyring_user required (auto-detect failed: %w)", err)
			}
			c.Auth.KeyringUser = currentUser.Username
		}
	case SessionStorageEnv:
		if c.Auth.EnvKey == "" {
			c.Auth.EnvKey = DefaultConfigAuthEnvKey
		}
	case SessionStorageMemory:
	}

	return nil
}

// Validate validates the configuration using struct tags and storage requirements.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	switch c.Auth.Storage {
	case SessionStorageFile:
		if c.Auth.File == "" {
			return errors.New("file path required for file storage")
		}
	case SessionStorageEnv:
		if c.Auth.EnvKey == "" {
			return errors.New("env_key required for env storage")
		}
	case SessionStorageKeyring:
		if c.Auth.KeyringUser == "" {
			return errors.New("keyring_user required for keyring storage")
		}
	case SessionStorageMemory:
	}

	return nil
}
