// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

package config

import "errors"

var (
	// ErrInvalidLogLevel indicates the log level is not recognized.
	ErrInvalidLogLevel = errors.New("config: invalid log level (must be \"debug\", \"info\", \"warn\", or \"error\")")

	// ErrEmptyDataDir indicates the data directory path is empty.
	ErrEmptyDataDir = errors.New("config: data directory must not be empty")

	// ErrConfigNotFound indicates the configuration file does not exist.
	ErrConfigNotFound = errors.New("config: configuration file not found")

	// ErrInvalidConfigFile indicates the configuration file is not valid TOML.
	ErrInvalidConfigFile = errors.New("config: invalid configuration file")

	// ErrInvalidAssets indicates an asset id is empty or reused.
	ErrInvalidAssets = errors.New("config: asset ids must be non-empty and distinct")

	// ErrInvalidMaxSplits indicates escrow.max_splits is out of range.
	ErrInvalidMaxSplits = errors.New("config: escrow.max_splits out of range")

	// ErrInvalidUpstream indicates the DNS upstream is not host:port.
	ErrInvalidUpstream = errors.New("config: invalid dns upstream address")

	// ErrInvalidEnv indicates an environment override could not be parsed.
	ErrInvalidEnv = errors.New("config: invalid environment override")
)
