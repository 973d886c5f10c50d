package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default returns a Config with every field from setDefaults already
// applied, for callers with no config file (e.g. cmd/mpcparty with no
// --config flag).
func Default() *Config {
	cfg := &Config{}
	setDefaults(cfg)
	return cfg
}

// LoadFromFile loads configuration from a YAML (or JSON) file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}

	// Try YAML first, fall back to JSON.
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jsonErr := json.Unmarshal(data, cfg); jsonErr != nil {
			return nil, fmt.Errorf("failed to parse config file (tried YAML and JSON): %w", err)
		}
	}

	setDefaults(cfg)
	return cfg, nil
}

// SaveToFile saves configuration to a file, choosing YAML or JSON by extension.
func SaveToFile(cfg *Config, path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".json") {
		data, err = json.MarshalIndent(cfg, "", "  ")
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// setDefaults fills in the defaults named in SPEC_FULL.md §A.3.
func setDefaults(cfg *Config) {
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.Relay.ConnectTimeout == 0 {
		cfg.Relay.ConnectTimeout = 10 * time.Second
	}
	if cfg.Relay.WebSocketURL == "" && cfg.Relay.BaseURL != "" {
		cfg.Relay.WebSocketURL = deriveWebSocketURL(cfg.Relay.BaseURL)
	}
	if cfg.SessionToken.BootstrapWindow == 0 {
		cfg.SessionToken.BootstrapWindow = 2 * time.Minute
	}
	if cfg.SessionToken.ParseWindow == 0 {
		cfg.SessionToken.ParseWindow = 24 * time.Hour
	}
	if cfg.Keystore.Backend == "" {
		cfg.Keystore.Backend = "file"
	}
	if cfg.Keystore.Directory == "" {
		cfg.Keystore.Directory = "./data/keyshares"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}

// deriveWebSocketURL swaps an http(s) scheme for ws(s), the relay and
// transport being the same host (§6.1).
func deriveWebSocketURL(baseURL string) string {
	switch {
	case strings.HasPrefix(baseURL, "https://"):
		return "wss://" + strings.TrimPrefix(baseURL, "https://")
	case strings.HasPrefix(baseURL, "http://"):
		return "ws://" + strings.TrimPrefix(baseURL, "http://")
	default:
		return baseURL
	}
}
