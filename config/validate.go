// Copyright (c) 2026 The mpcparty Authors.
// Use of this source code is governed by the MIT license found in the
// LICENSE file at the root of this repository.

package config

import "fmt"

// ValidationIssue is a single configuration validation finding.
type ValidationIssue struct {
	Field   string
	Message string
	Level   string // "error" | "warning"
}

// ValidateConfiguration checks a loaded Config for values that would make a
// participant process unable to start or behave unexpectedly. Warning-level
// issues are returned but never fail Load.
func ValidateConfiguration(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue

	if cfg.Relay.BaseURL == "" {
		issues = append(issues, ValidationIssue{
			Field:   "relay.base_url",
			Message: "relay base URL is empty",
			Level:   "error",
		})
	}
	if cfg.Relay.ConnectTimeout <= 0 {
		issues = append(issues, ValidationIssue{
			Field:   "relay.connect_timeout",
			Message: "connect timeout must be positive",
			Level:   "error",
		})
	}

	switch cfg.Keystore.Backend {
	case "memory", "file", "postgres":
	default:
		issues = append(issues, ValidationIssue{
			Field:   "keystore.backend",
			Message: fmt.Sprintf("unknown keystore backend %q, expected memory, file, or postgres", cfg.Keystore.Backend),
			Level:   "error",
		})
	}
	if cfg.Keystore.Backend == "file" && cfg.Keystore.Directory == "" {
		issues = append(issues, ValidationIssue{
			Field:   "keystore.directory",
			Message: "file backend requires a directory",
			Level:   "error",
		})
	}
	if cfg.Keystore.Backend == "postgres" && cfg.Keystore.PostgresDSN == "" {
		issues = append(issues, ValidationIssue{
			Field:   "keystore.postgres_dsn",
			Message: "postgres backend requires a DSN",
			Level:   "error",
		})
	}
	if cfg.Keystore.PassphraseEnv == "" {
		issues = append(issues, ValidationIssue{
			Field:   "keystore.passphrase_env",
			Message: "at-rest encryption disabled: no passphrase env var configured",
			Level:   "warning",
		})
	}

	if cfg.SessionToken.BootstrapWindow <= 0 {
		issues = append(issues, ValidationIssue{
			Field:   "session_token.bootstrap_window",
			Message: "bootstrap window must be positive",
			Level:   "error",
		})
	}
	if cfg.SessionToken.ParseWindow <= 0 {
		issues = append(issues, ValidationIssue{
			Field:   "session_token.parse_window",
			Message: "parse window must be positive",
			Level:   "error",
		})
	}

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error", "fatal":
	default:
		issues = append(issues, ValidationIssue{
			Field:   "logging.level",
			Message: fmt.Sprintf("unknown log level %q", cfg.Logging.Level),
			Level:   "warning",
		})
	}
	switch cfg.Logging.Format {
	case "text", "json":
	default:
		issues = append(issues, ValidationIssue{
			Field:   "logging.format",
			Message: fmt.Sprintf("unknown log format %q", cfg.Logging.Format),
			Level:   "warning",
		})
	}

	return issues
}
