package books

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// =============================================================================
// CONFIG - Optional TOML file; command-line flags take precedence
// =============================================================================

// Config is the server configuration. Every field has a working default so
// the config file is optional.
type Config struct {
	Port           int      `toml:"port"`
	DBPath         string   `toml:"db_path"`
	AllowedOrigins []string `toml:"allowed_origins"`
}

// DefaultConfig returns the defaults used when no config file is given.
func DefaultConfig() Config {
	return Config{
		Port:   8080,
		DBPath: "books.db",
		AllowedOrigins: []string{
			"http://localhost:5173",
			"http://localhost:8080",
		},
	}
}

// LoadConfig reads a TOML config file over the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return Config{}, fmt.Errorf("config %s: invalid port %d", path, cfg.Port)
	}
	return cfg, nil
}
