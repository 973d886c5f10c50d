// Copyright (c) 2026 The mpcparty Authors.
// Use of this source code is governed by the MIT license found in the
// LICENSE file at the root of this repository.

// Package config provides configuration loading for the MPC participant core.
package config

import "time"

// Config is the root configuration structure for a participant process.
type Config struct {
	Environment  string             `yaml:"environment" json:"environment"`
	Relay        RelayConfig        `yaml:"relay" json:"relay"`
	SessionToken SessionTokenConfig `yaml:"session_token" json:"session_token"`
	Keystore     KeystoreConfig     `yaml:"keystore" json:"keystore"`
	Logging      LoggingConfig      `yaml:"logging" json:"logging"`
}

// RelayConfig describes how to reach the relay server (§6.1, §6.2).
type RelayConfig struct {
	BaseURL        string        `yaml:"base_url" json:"base_url"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" json:"connect_timeout"`
	// WebSocketURL is the transport's base URL (C3). Empty means derive it
	// from BaseURL by swapping the http(s) scheme for ws(s).
	WebSocketURL string `yaml:"websocket_url" json:"websocket_url"`
}

// SessionTokenConfig holds the out-of-band token freshness windows (§4.7).
// They are defaulted and validated by this package only: pkg/bootstrap
// enforces the fixed wire.BootstrapWindow and wire.ParseWindow instead.
type SessionTokenConfig struct {
	BootstrapWindow time.Duration `yaml:"bootstrap_window" json:"bootstrap_window"`
	ParseWindow     time.Duration `yaml:"parse_window" json:"parse_window"`
}

// KeystoreConfig selects and configures the keyshare store backend (§4.8).
type KeystoreConfig struct {
	Backend     string `yaml:"backend" json:"backend"` // memory | file | postgres
	Directory   string `yaml:"directory" json:"directory"`
	PostgresDSN string `yaml:"postgres_dsn" json:"postgres_dsn"`
	// PassphraseEnv names the environment variable holding the passphrase used
	// to derive the at-rest encryption key via PBKDF2 (§4.8). Empty disables
	// at-rest encryption of stored keyshare blobs.
	PassphraseEnv string `yaml:"passphrase_env" json:"passphrase_env"`
	// SaltFile holds the PBKDF2 salt used alongside PassphraseEnv. Created on
	// first use if it does not exist; empty defaults to ".salt" inside
	// Directory.
	SaltFile string `yaml:"salt_file" json:"salt_file"`
	// PBKDF2Iterations overrides keystore.MinIterations. Zero uses the
	// minimum.
	PBKDF2Iterations int `yaml:"pbkdf2_iterations" json:"pbkdf2_iterations"`
}

// LoggingConfig controls the leveled logger in internal/logger.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"` // text | json
}
