package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mpcparty/core/pkg/relay"
	"github.com/mpcparty/core/pkg/wire"
)

var registerPartyID string

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Register this party with the relay and print its bearer token",
	Example: `  # Let the relay assign a party id
  mpcparty register

  # Re-register with a known party id
  mpcparty register --party-id 02aaaa...`,
	RunE: runRegister,
}

func init() {
	rootCmd.AddCommand(registerCmd)
	registerCmd.Flags().StringVar(&registerPartyID, "party-id", "", "Party id to register as (empty lets the relay assign one)")
}

func runRegister(cmd *cobra.Command, args []string) error {
	cfg, err := loadAppConfig()
	if err != nil {
		return err
	}
	log := buildLogger(cfg)

	client := relay.New(cfg.Relay.BaseURL, log)
	ctx := context.Background()

	id, err := client.Register(ctx, wire.PartyId(registerPartyID))
	if err != nil {
		return fmt.Errorf("register failed: %w", err)
	}
	token, _ := client.BearerToken()

	fmt.Println("Registered successfully.")
	fmt.Printf("  Party ID: %s\n", id)
	fmt.Printf("  Token:    %s\n", token)
	return nil
}
