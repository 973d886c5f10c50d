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
	rotatePartyID    string
	rotatePartyIndex int
	rotateKeyHex     string
	rotateSeedHex    string
	rotateTimeout    time.Duration
)

var rotateCmd = &cobra.Command{
	Use:   "rotate",
	Short: "Rotate the group's key, preserving the public key",
	Example: `  mpcparty rotate --party-id 02aaaa... --party-index 0 --group g1 --key $(openssl rand -hex 32)`,
	RunE: runRotate,
}

func init() {
	rootCmd.AddCommand(rotateCmd)

	rotateCmd.Flags().StringVar(&rotatePartyID, "party-id", "", "This party's id")
	rotateCmd.Flags().StringVar(&groupIDFlag, "group", "", "Group id to rotate")
	rotateCmd.Flags().IntVar(&rotatePartyIndex, "party-index", 0, "This party's index, used to load its prior keyshare")
	rotateCmd.Flags().StringVar(&rotateKeyHex, "key", "", "Hex-encoded 32-byte AES key shared out of band with the group")
	rotateCmd.Flags().StringVar(&rotateSeedHex, "seed", "", "Optional hex-encoded deterministic seed")
	rotateCmd.Flags().DurationVar(&rotateTimeout, "timeout", 2*time.Minute, "How long to wait for the session to complete")

	rotateCmd.MarkFlagRequired("party-id")
	rotateCmd.MarkFlagRequired("group")
	rotateCmd.MarkFlagRequired("key")
}

func runRotate(cmd *cobra.Command, args []string) error {
	cfg, err := loadAppConfig()
	if err != nil {
		return err
	}
	log := buildLogger(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), rotateTimeout)
	defer cancel()

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return err
	}
	prior, err := store.Load(wire.GroupId(groupIDFlag), rotatePartyIndex)
	if err != nil {
		return fmt.Errorf("failed to load prior keyshare: %w", err)
	}

	c := buildCoordinator(cfg, log, store)
	defer c.Disconnect()

	aesKey, err := decodeAESKey(rotateKeyHex)
	if err != nil {
		return err
	}
	var seed []byte
	if rotateSeedHex != "" {
		seed, err = hex.DecodeString(rotateSeedHex)
		if err != nil {
			return fmt.Errorf("--seed must be hex-encoded: %w", err)
		}
	}

	ownID, err := c.Register(ctx, wire.PartyId(rotatePartyID))
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

	if err := c.StartKeyRotation(ctx, wire.GroupId(groupIDFlag), prior, aesKey, seed); err != nil {
		return fmt.Errorf("start rotation failed: %w", err)
	}

	fmt.Printf("Rotating key as %s in group %s...\n", ownID, groupIDFlag)
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("rotation failed: %w", err)
		}
	case <-ctx.Done():
		return fmt.Errorf("rotation timed out after %s", rotateTimeout)
	}

	fmt.Println("Rotation complete.")
	fmt.Printf("  Prior public key: %s\n", prior.PublicKey)
	fmt.Printf("  New public key:   %s\n", result.KeyShare.PublicKey)
	if prior.PublicKey != result.KeyShare.PublicKey {
		fmt.Println("  WARNING: public key changed across rotation")
	}
	return nil
}
