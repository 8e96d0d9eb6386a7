// Package app wires configuration, logging and storage backends for the commands.
package app

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"bond-reversion-lab/internal/config"
)

// Environment variables read before viper.
const (
	EnvConfigPath = "BRL_CONFIG"
	EnvOnly       = "BRL_ENV_ONLY"
)

// DefaultConfigPath is used when BRL_CONFIG is unset.
const DefaultConfigPath = "config/config.yaml"

// LoadConfig loads .env if present, then the YAML config with BRL_* overrides.
// Without BRL_CONFIG a missing default file means environment-only configuration.
func LoadConfig() (config.Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return config.Config{}, fmt.Errorf("load .env: %w", err)
	}

	path := os.Getenv(EnvConfigPath)
	envOnly := false
	if raw := os.Getenv(EnvOnly); raw != "" {
		envOnly = strings.EqualFold(raw, "true") || raw == "1"
	}
	if path == "" {
		path = DefaultConfigPath
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			envOnly = true
		}
	}

	cfg, err := config.Load(path, envOnly)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}
