// Copyright (c) 2026 The mpcparty Authors.
// Use of this source code is governed by the MIT license found in the
// LICENSE file at the root of this repository.

package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mpcparty/core/config"
	"github.com/mpcparty/core/internal/logger"
	"github.com/mpcparty/core/pkg/coordinator"
	"github.com/mpcparty/core/pkg/engine"
	"github.com/mpcparty/core/pkg/keystore"
)

// loadAppConfig loads --config if given, else starts from config.Default,
// then applies environment substitution and CLI flag overrides.
func loadAppConfig() (*config.Config, error) {
	if err := config.LoadDotEnv(".env"); err != nil {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	var cfg *config.Config
	if configPath != "" {
		loaded, err := config.LoadFromFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	} else {
		cfg = config.Default()
	}
	config.SubstituteEnvVarsInConfig(cfg)

	if relayURL != "" {
		cfg.Relay.BaseURL = relayURL
	}
	if transportURL != "" {
		cfg.Relay.WebSocketURL = transportURL
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if cfg.Relay.WebSocketURL == "" && cfg.Relay.BaseURL != "" {
		cfg.Relay.WebSocketURL = strings.Replace(strings.Replace(cfg.Relay.BaseURL, "https://", "wss://", 1), "http://", "ws://", 1)
	}

	if issues := config.ValidateConfiguration(cfg); len(issues) > 0 {
		for _, issue := range issues {
			if issue.Level == "error" {
				return nil, fmt.Errorf("invalid config: %s: %s", issue.Field, issue.Message)
			}
		}
	}
	return cfg, nil
}

func buildLogger(cfg *config.Config) logger.Logger {
	l := logger.NewDefaultLogger()
	switch strings.ToLower(cfg.Logging.Level) {
	case "debug":
		l.SetLevel(logger.DebugLevel)
	case "warn":
		l.SetLevel(logger.WarnLevel)
	case "error":
		l.SetLevel(logger.ErrorLevel)
	default:
		l.SetLevel(logger.InfoLevel)
	}
	return l
}

// buildStore constructs the keyshare store named by cfg.Keystore.Backend,
// wrapping it with an at-rest cipher when PassphraseEnv is configured; it
// fails if the named environment variable is unset (spec.md §4.8).
func buildStore(ctx context.Context, cfg *config.Config) (*keystore.Manager, error) {
	var store keystore.Store
	switch cfg.Keystore.Backend {
	case "memory":
		store = keystore.NewMemoryStore()
	case "file":
		fs, err := keystore.NewFileStore(cfg.Keystore.Directory)
		if err != nil {
			return nil, fmt.Errorf("failed to open file keystore: %w", err)
		}
		store = fs
	case "postgres":
		ps, err := keystore.NewPostgresStore(ctx, cfg.Keystore.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres keystore: %w", err)
		}
		store = ps
	default:
		return nil, fmt.Errorf("unknown keystore backend %q", cfg.Keystore.Backend)
	}

	cipher, err := buildCipher(cfg)
	if err != nil {
		return nil, err
	}
	return keystore.NewManager(store, cipher), nil
}

func buildCipher(cfg *config.Config) (*keystore.Cipher, error) {
	if cfg.Keystore.PassphraseEnv == "" {
		return nil, nil
	}
	passphrase := os.Getenv(cfg.Keystore.PassphraseEnv)
	if passphrase == "" {
		return nil, fmt.Errorf("keystore.passphrase_env %q is not set", cfg.Keystore.PassphraseEnv)
	}

	saltFile := cfg.Keystore.SaltFile
	if saltFile == "" {
		saltFile = filepath.Join(cfg.Keystore.Directory, ".salt")
	}
	salt, err := loadOrCreateSalt(saltFile)
	if err != nil {
		return nil, err
	}

	iterations := cfg.Keystore.PBKDF2Iterations
	if iterations == 0 {
		iterations = keystore.MinIterations
	}
	return keystore.NewCipher(passphrase, salt, iterations)
}

// loadOrCreateSalt reads a 16-byte salt from path, generating and
// persisting one on first use so the same at-rest key is derivable across
// runs.
func loadOrCreateSalt(path string) ([]byte, error) {
	if data, err := os.ReadFile(path); err == nil && len(data) > 0 {
		return data, nil
	}

	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate pbkdf2 salt: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create keystore directory: %w", err)
	}
	if err := os.WriteFile(path, salt, 0600); err != nil {
		return nil, fmt.Errorf("failed to persist pbkdf2 salt: %w", err)
	}
	return salt, nil
}

// buildCoordinator wires a Coordinator against cfg's relay/transport
// endpoints and the mock keygen/rotation engine (the real engine is out of
// scope; see main.go). The SignFactory is left unset: sign.go installs one
// via SetSignFactory once the signer's index within the group is known.
func buildCoordinator(cfg *config.Config, log logger.Logger, store *keystore.Manager) *coordinator.Coordinator {
	return coordinator.New(coordinator.Config{
		RelayBaseURL:     cfg.Relay.BaseURL,
		TransportBaseURL: cfg.Relay.WebSocketURL,
		Log:              log,
		KeygenFactory:    engine.NewMockKeygen,
		RotationFactory:  engine.NewMockRotation,
		Store:            store,
	})
}

func decodeAESKey(hexKey string) ([]byte, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("--key must be hex-encoded: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("--key must decode to exactly 32 bytes, got %d", len(key))
	}
	return key, nil
}
