// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/bitfsorg/libsettle-go/escrow"
)

// validLogLevels lists the accepted log level strings.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// ValidateConfig checks that all configuration values are within acceptable
// ranges and returns the first error encountered, or nil if valid.
func ValidateConfig(cfg Config) error {
	if cfg.DataDir == "" {
		return ErrEmptyDataDir
	}

	if !validLogLevels[strings.ToLower(cfg.LogLevel)] {
		return ErrInvalidLogLevel
	}

	if err := validateAssets(cfg.Assets); err != nil {
		return err
	}

	if err := cfg.Storage.Validate(); err != nil {
		return err
	}

	if err := cfg.Rewards.Validate(); err != nil {
		return err
	}

	if cfg.Escrow.MaxSplits < 1 || cfg.Escrow.MaxSplits > escrow.MaxSplits {
		return fmt.Errorf("%w: %d not in 1..%d", ErrInvalidMaxSplits, cfg.Escrow.MaxSplits, escrow.MaxSplits)
	}

	if cfg.DNS.Upstream != "" {
		if _, _, err := net.SplitHostPort(cfg.DNS.Upstream); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidUpstream, err)
		}
	}

	return nil
}

func validateAssets(a Assets) error {
	ids := []string{a.Payment, a.ListenerReward, a.CreatorReward, a.Native}
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			return fmt.Errorf("%w: %q", ErrInvalidAssets, id)
		}
		seen[id] = true
	}
	return nil
}
