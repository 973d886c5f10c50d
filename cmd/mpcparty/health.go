package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mpcparty/core/pkg/relay"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check connectivity to the relay",
	Example: `  mpcparty health --relay https://relay.example.com`,
	RunE: runHealth,
}

func init() {
	rootCmd.AddCommand(healthCmd)
}

func runHealth(cmd *cobra.Command, args []string) error {
	cfg, err := loadAppConfig()
	if err != nil {
		return err
	}
	log := buildLogger(cfg)

	client := relay.New(cfg.Relay.BaseURL, log)
	if err := client.Health(context.Background()); err != nil {
		return fmt.Errorf("relay at %s is unreachable: %w", cfg.Relay.BaseURL, err)
	}

	fmt.Printf("Relay at %s is reachable.\n", cfg.Relay.BaseURL)
	return nil
}
