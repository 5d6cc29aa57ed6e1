package app

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg, err := Default()
	require.NoError(t, err)

	assert.Equal(t, LogFormatText, cfg.LogFormat)
	assert.Equal(t, "http://localhost:8000", cfg.Server.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Server.Timeout)
	assert.Equal(t, 4, cfg.Download.Concurrency)
	assert.Equal(t, SessionStorageFile, cfg.Auth.Storage)
	assert.True(t, strings.HasSuffix(cfg.Auth.File, filepath.Join("julekalender", "session")))
	require.NoError(t, cfg.Validate())
}

func TestApplyDefaults_PerStorage(t *testing.T) {
	cfg := &Config{Auth: AuthConfig{Storage: SessionStorageEnv}}
	require.NoError(t, cfg.ApplyDefaults())
	assert.Equal(t, DefaultConfigAuthEnvKey, cfg.Auth.EnvKey)
	assert.Empty(t, cfg.Auth.File)

	cfg = &Config{Auth: AuthConfig{Storage: SessionStorageMemory}}
	require.NoError(t, cfg.ApplyDefaults())
	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			LogFormat: LogFormatJSON,
			Server:    ServerConfig{BaseURL: "http://localhost:8000", Timeout: time.Second},
			Download:  DownloadConfig{Concurrency: 2},
			Auth:      AuthConfig{Storage: SessionStorageFile, File: "/tmp/session"},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown log format", func(c *Config) { c.LogFormat = "xml" }},
		{"missing base URL", func(c *Config) { c.Server.BaseURL = "" }},
		{"malformed base URL", func(c *Config) { c.Server.BaseURL = "not a url" }},
		{"negative timeout", func(c *Config) { c.Server.Timeout = -time.Second }},
		{"zero concurrency", func(c *Config) { c.Download.Concurrency = 0 }},
		{"excessive concurrency", func(c *Config) { c.Download.Concurrency = 1000 }},
		{"unknown storage", func(c *Config) { c.Auth.Storage = "cloud" }},
		{"file storage without path", func(c *Config) { c.Auth.File = "" }},
		{"env storage without key", func(c *Config) { c.Auth.Storage = SessionStorageEnv }},
		{"keyring storage without user", func(c *Config) { c.Auth.Storage = SessionStorageKeyring }},
	}

	require.NoError(t, valid().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestAuthConfig_NewTokenStore(t *testing.T) {
	for _, auth := range []AuthConfig{
		{Storage: SessionStorageFile, File: filepath.Join(t.TempDir(), "session")},
		{Storage: SessionStorageEnv, EnvKey: "JULEKALENDER_ACCESS_TOKEN"},
		{Storage: SessionStorageKeyring, KeyringUser: "nisse"},
		{Storage: SessionStorageMemory},
	} {
		store, err := auth.NewTokenStore()
		require.NoError(t, err, "storage %s", auth.Storage)
		assert.NotNil(t, store)
	}

	_, err := (&AuthConfig{Storage: "cloud"}).NewTokenStore()
	assert.Error(t, err)
}
