// Copyright (c) 2026 The mpcparty Authors.
// Use of this source code is governed by the MIT license found in the
// LICENSE file at the root of this repository.

package config

import (
	"path/filepath"
	"testing"
)

func TestDefaultFillsExpectedFields(t *testing.T) {
	cfg := Default()

	if cfg.Environment != "development" {
		t.Errorf("Environment = %q, want %q", cfg.Environment, "development")
	}
	if cfg.Relay.ConnectTimeout <= 0 {
		t.Error("Relay.ConnectTimeout should have a default value")
	}
	if cfg.Keystore.Backend != "file" {
		t.Errorf("Keystore.Backend = %q, want %q", cfg.Keystore.Backend, "file")
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "text" {
		t.Errorf("Logging defaults = %+v, want level=info format=text", cfg.Logging)
	}
}

func TestDeriveWebSocketURLFromBaseURL(t *testing.T) {
	cfg := &Config{Relay: RelayConfig{BaseURL: "https://relay.example.com"}}
	setDefaults(cfg)
	if cfg.Relay.WebSocketURL != "wss://relay.example.com" {
		t.Errorf("WebSocketURL = %q, want %q", cfg.Relay.WebSocketURL, "wss://relay.example.com")
	}

	cfg2 := &Config{Relay: RelayConfig{BaseURL: "http://127.0.0.1:8080"}}
	setDefaults(cfg2)
	if cfg2.Relay.WebSocketURL != "ws://127.0.0.1:8080" {
		t.Errorf("WebSocketURL = %q, want %q", cfg2.Relay.WebSocketURL, "ws://127.0.0.1:8080")
	}
}

func TestRelayWebSocketURLExplicitOverrideIsKept(t *testing.T) {
	cfg := &Config{Relay: RelayConfig{BaseURL: "http://relay", WebSocketURL: "ws://other-host"}}
	setDefaults(cfg)
	if cfg.Relay.WebSocketURL != "ws://other-host" {
		t.Errorf("explicit WebSocketURL was overwritten: got %q", cfg.Relay.WebSocketURL)
	}
}

func TestLoadFromFileAndSaveToFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mpcparty.yaml")

	cfg := Default()
	cfg.Relay.BaseURL = "http://localhost:8080"
	if err := SaveToFile(cfg, path); err != nil {
		t.Fatalf("SaveToFile: %v", err)
	}

	loaded, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if loaded.Relay.BaseURL != cfg.Relay.BaseURL {
		t.Errorf("Relay.BaseURL = %q, want %q", loaded.Relay.BaseURL, cfg.Relay.BaseURL)
	}
}
