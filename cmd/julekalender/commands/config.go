package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/urfave/cli/v3"

	"github.com/florianilch/julekalender/internal/app"
)

// envPrefix is stripped from environment variables during config loading (e.g., JULEKALENDER_SERVER__BASE_URL → server.base_url)
const envPrefix = "JULEKALENDER_"

// loadConfig loads application configuration from various sources with precedence:
// config file → environment variables → CLI flags → defaults
//
// Without an explicit path, <user config dir>/julekalender/config.toml is
// used when it exists.
func loadConfig(configPath string, cmd *cli.Command, environFunc func() []string) (*app.Config, error) {
	k := koanf.New(".")

	if configPath == "" {
		configPath = defaultConfigPath()
	} else if _, err := os.Stat(configPath); err != nil {
		return nil, fmt.Errorf("loading config file: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", configPath, err)
		}
	}

	envProvider := env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(key, value string) (string, any) {
			stripped := strings.TrimPrefix(key, envPrefix)
			nested := strings.ToLower(strings.ReplaceAll(stripped, "__", "."))
			return nested, value
		},
		EnvironFunc: environFunc,
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	if cmd != nil {
		if err := k.Load(confmap.Provider(extractAndTransformFlags(cmd), "."), nil); err != nil {
			return nil, fmt.Errorf("loading CLI flags: %w", err)
		}
	}

	config := &app.Config{}
	if err := k.UnmarshalWithConf("", config, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := config.ApplyDefaults(); err != nil {
		return nil, fmt.Errorf("applying defaults: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return config, nil
}

// defaultConfigPath returns the per-user config file if it exists, else "".
func defaultConfigPath() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	path := filepath.Join(configDir, "julekalender", "config.toml")
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

// extractAndTransformFlags transforms CLI flag names to match config structure.
// Includes parent flags. Examples: --server--base-url → server.base_url, --log-level → log_level
// Flags without a config counterpart (username, output-dir, ...) are harmless:
// unknown keys are ignored when unmarshaling.
func extractAndTransformFlags(cmd *cli.Command) map[string]any {
	values := make(map[string]any)

	// FlagNames() includes flags from parent commands (via lineage)
	for _, name := range cmd.FlagNames() {
		// Skip unset flags to preserve precedence from earlier config sources
		if !cmd.IsSet(name) {
			continue
		}

		if value := cmd.Value(name); value != nil {
			key := strings.ReplaceAll(name, "--", ".")
			key = strings.ReplaceAll(key, "-", "_")
			values[key] = value
		}
	}

	return values
}
