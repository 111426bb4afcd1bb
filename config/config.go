// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

// Package config loads the settlement operator's configuration: TOML file,
// then SETTLE_* environment overrides, then validation.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/pelletier/go-toml/v2"

	"github.com/bitfsorg/libsettle-go/reimburse"
	"github.com/bitfsorg/libsettle-go/rewards"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SETTLE_"

// Config holds the operator configuration.
type Config struct {
	DataDir  string `toml:"data_dir" env:"DATA_DIR"`
	LogLevel string `toml:"log_level" env:"LOG_LEVEL"`
	LogFile  string `toml:"log_file" env:"LOG_FILE"`

	Assets  Assets         `toml:"assets" envPrefix:"ASSETS_"`
	Storage reimburse.Rate `toml:"storage" envPrefix:"STORAGE_"`
	Rewards rewards.Policy `toml:"rewards" envPrefix:"REWARDS_"`
	Escrow  Escrow         `toml:"escrow" envPrefix:"ESCROW_"`
	DNS     DNS            `toml:"dns" envPrefix:"DNS_"`
}

// Assets names the ledger assets the engine settles in.
type Assets struct {
	Payment        string `toml:"payment" env:"PAYMENT"`
	ListenerReward string `toml:"listener_reward" env:"LISTENER_REWARD"`
	CreatorReward  string `toml:"creator_reward" env:"CREATOR_REWARD"`
	Native         string `toml:"native" env:"NATIVE"`
}

// Escrow bounds escrow entries.
type Escrow struct {
	MaxSplits int `toml:"max_splits" env:"MAX_SPLITS"`
}

// DNS configures payout-handle lookups.
type DNS struct {
	Upstream string `toml:"upstream" env:"UPSTREAM"`
	DNSSEC   bool   `toml:"dnssec" env:"DNSSEC"`
}

// DefaultDataDir returns ~/.settle, or .settle when the home directory is unknown.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".settle"
	}
	return filepath.Join(home, ".settle")
}

// ConfigPath returns the configuration file path inside dataDir.
func ConfigPath(dataDir string) string {
	return filepath.Join(dataDir, "config.toml")
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		DataDir:  DefaultDataDir(),
		LogLevel: "info",
		Assets: Assets{
			Payment:        "usdc",
			ListenerReward: "music",
			CreatorReward:  "cnctd",
			Native:         "native",
		},
		Storage: reimburse.DefaultRate(),
		Rewards: rewards.DefaultPolicy(),
		Escrow:  Escrow{MaxSplits: 10},
		DNS:     DNS{Upstream: "8.8.8.8:53", DNSSEC: true},
	}
}

// LoadConfig reads the TOML file at path over DefaultConfig. Keys absent
// from the file keep their defaults; unknown keys are ignored.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: %s: %w", ErrInvalidConfigFile, path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides cfg fields from SETTLE_* environment variables.
func ApplyEnv(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidEnv, err)
	}
	return nil
}

// Load reads path if it exists, applies environment overrides and validates.
// A missing file is not an error.
func Load(path string) (Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil && !errors.Is(err, ErrConfigNotFound) {
		return cfg, err
	}
	if err := ApplyEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := ValidateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// SaveConfig writes cfg to path as TOML, creating parent directories.
func SaveConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("config: create directory: %w", err)
	}
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}
	out := append([]byte("# Settlement operator configuration\n\n"), data...)
	if err := os.WriteFile(path, out, 0600); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}
