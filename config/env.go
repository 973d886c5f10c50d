// Copyright (c) 2026 The mpcparty Authors.
// Use of this source code is governed by the MIT license found in the
// LICENSE file at the root of this repository.

package config

import (
	"os"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads .env-style KEY=VALUE pairs from path into the process
// environment, without overwriting variables already set. A missing file is
// not an error: local dev may supply one, deployed environments never do.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	return godotenv.Load(path)
}

// envVarPattern matches ${VAR} or ${VAR:default}
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

// SubstituteEnvVars replaces ${VAR} or ${VAR:default} with environment variable values
func SubstituteEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		parts := envVarPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultValue := ""
		if len(parts) > 2 {
			defaultValue = parts[2]
		}

		value := os.Getenv(varName)
		if value == "" {
			return defaultValue
		}
		return value
	})
}

// SubstituteEnvVarsInConfig substitutes environment variables in the fields
// that commonly carry them (endpoints, paths, DSNs).
func SubstituteEnvVarsInConfig(cfg *Config) {
	if cfg == nil {
		return
	}

	cfg.Relay.BaseURL = SubstituteEnvVars(cfg.Relay.BaseURL)

	cfg.Keystore.Backend = SubstituteEnvVars(cfg.Keystore.Backend)
	cfg.Keystore.Directory = SubstituteEnvVars(cfg.Keystore.Directory)
	cfg.Keystore.PostgresDSN = SubstituteEnvVars(cfg.Keystore.PostgresDSN)
	cfg.Keystore.PassphraseEnv = SubstituteEnvVars(cfg.Keystore.PassphraseEnv)

	cfg.Logging.Level = SubstituteEnvVars(cfg.Logging.Level)
	cfg.Logging.Format = SubstituteEnvVars(cfg.Logging.Format)
}

// GetEnvironment returns the current environment from MPCPARTY_ENV or defaults
// to development.
func GetEnvironment() string {
	env := os.Getenv("MPCPARTY_ENV")
	if env == "" {
		env = os.Getenv("ENVIRONMENT")
	}
	if env == "" {
		env = "development"
	}
	return strings.ToLower(env)
}

// IsProduction returns true if running in the production environment.
func IsProduction() bool {
	return GetEnvironment() == "production"
}

// IsDevelopment returns true if running in development or local environment.
func IsDevelopment() bool {
	env := GetEnvironment()
	return env == "development" || env == "local"
}
