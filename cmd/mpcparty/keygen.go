// Copyright (c) 2026 The mpcparty Authors.
// Use of this source code is governed by the MIT license found in the
// LICENSE file at the root of this repository.

package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mpcparty/core/pkg/keygen"
	"github.com/mpcparty/core/pkg/wire"
)

var (
	keygenPartyID string
	keygenKeyHex  string
	keygenSeedHex string
	keygenTimeout time.Duration
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Run distributed key generation for a group",
	Example: `  mpcparty keygen --party-id 02aaaa... --group g1 --key $(openssl rand -hex 32)`,
	RunE: runKeygen,
}

func init() {
	rootCmd.AddCommand(keygenCmd)

	keygenCmd.Flags().StringVar(&keygenPartyID, "party-id", "", "This party's id")
	keygenCmd.Flags().StringVar(&groupIDFlag, "group", "", "Group id to run keygen for")
	keygenCmd.Flags().StringVar(&keygenKeyHex, "key", "", "Hex-encoded 32-byte AES key shared out of band with the group")
	keygenCmd.Flags().StringVar(&keygenSeedHex, "seed", "", "Optional hex-encoded deterministic seed")
	keygenCmd.Flags().DurationVar(&keygenTimeout, "timeout", 2*time.Minute, "How long to wait for the session to complete")

	keygenCmd.MarkFlagRequired("party-id")
	keygenCmd.MarkFlagRequired("group")
	keygenCmd.MarkFlagRequired("key")
}

func runKeygen(cmd *cobra.Command, args []string) error {
	cfg, err := loadAppConfig()
	if err != nil {
		return err
	}
	log := buildLogger(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), keygenTimeout)
	defer cancel()

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return err
	}
	c := buildCoordinator(cfg, log, store)
	defer c.Disconnect()

	aesKey, err := decodeAESKey(keygenKeyHex)
	if err != nil {
		return err
	}
	var seed []byte
	if keygenSeedHex != "" {
		seed, err = hex.DecodeString(keygenSeedHex)
		if err != nil {
			return fmt.Errorf("--seed must be hex-encoded: %w", err)
		}
	}

	ownID, err := c.Register(ctx, wire.PartyId(keygenPartyID))
	if err != nil {
		return fmt.Errorf("register failed: %w", err)
	}

	done := make(chan error, 1)
	var result keygen.Result
	c.SetKeygenHandlers(func(r keygen.Result) {
		result = r
		done <- nil
	}, func(err error) {
		done <- err
	})

	if err := c.StartKeygen(ctx, wire.GroupId(groupIDFlag), aesKey, seed); err != nil {
		return fmt.Errorf("start keygen failed: %w", err)
	}

	fmt.Printf("Running keygen as %s in group %s...\n", ownID, groupIDFlag)
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("keygen failed: %w", err)
		}
	case <-ctx.Done():
		return fmt.Errorf("keygen timed out after %s", keygenTimeout)
	}

	fmt.Println("Keygen complete.")
	fmt.Printf("  Public key:    %s\n", result.KeyShare.PublicKey)
	fmt.Printf("  Party index:   %d\n", result.KeyShare.PartyIndex)
	fmt.Printf("  Participants:  %d\n", result.KeyShare.TotalParties)
	if store != nil {
		fmt.Println("  Saved to keystore.")
	}
	return nil
}
