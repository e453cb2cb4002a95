// Package config loads the server configuration from a TOML file,
// with sensible defaults for every field so a bare binary still runs.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config is the full server configuration.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Log      LogConfig      `toml:"log"`
	Witness  WitnessConfig  `toml:"witness"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Addr string `toml:"addr"`
}

// DatabaseConfig controls the SQLite store.
type DatabaseConfig struct {
	Path string `toml:"path"`
}

// LogConfig controls log output.
type LogConfig struct {
	// Path is an optional file that all levels are also written to.
	Path string `toml:"path"`
}

// WitnessConfig controls witness invite quotas.
type WitnessConfig struct {
	// FreeMonthlyInvites caps how many witness invites a free-plan
	// user may send per calendar month.
	FreeMonthlyInvites int `toml:"free_monthly_invites"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Server:   ServerConfig{Addr: ":8080"},
		Database: DatabaseConfig{Path: "owemi.sqlite3"},
		Witness:  WitnessConfig{FreeMonthlyInvites: 5},
	}
}

// Load reads a TOML config file over the defaults. An empty path
// returns the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config file: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config file: %w", err)
	}

	if cfg.Witness.FreeMonthlyInvites < 0 {
		return cfg, fmt.Errorf("witness.free_monthly_invites must not be negative")
	}

	return cfg, nil
}
