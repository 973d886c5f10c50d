// Command mpcparty is a thin cobra CLI over pkg/coordinator: register with
// the relay, create or join a group, run keygen/rotation/signing, and list
// persisted keyshares (spec.md §4.9).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath   string
	relayURL     string
	transportURL string
	logLevel     string
)

var rootCmd = &cobra.Command{
	Use:   "mpcparty",
	Short: "mpcparty drives one participant's side of a threshold ECDSA MPC session",
	Long: `mpcparty drives a single participant's side of threshold ECDSA key
generation, signing, and key rotation against an mpcparty relay.

This CLI wires pkg/coordinator against the mock cryptographic engine in
pkg/engine: the real threshold-ECDSA engine is a black box outside the
scope of this library, so every run here exercises the session
lifecycle and wire protocol, not production-grade signatures.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a YAML/JSON config file")
	rootCmd.PersistentFlags().StringVar(&relayURL, "relay", "", "Relay base URL (overrides config)")
	rootCmd.PersistentFlags().StringVar(&transportURL, "transport", "", "Transport (websocket) base URL (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
}
