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

	"github.com/mpcparty/core/pkg/engine"
	"github.com/mpcparty/core/pkg/mpcerrors"
	"github.com/mpcparty/core/pkg/signing"
	"github.com/mpcparty/core/pkg/wire"
)

var (
	signPartyID     string
	signPartyIndex  int
	signKeyHex      string
	signMessageHash string
	signDerivation  string
	signTimeout     time.Duration
)

var signCmd = &cobra.Command{
	Use:   "sign",
	Short: "Run distributed signing over a 32-byte message hash",
	Example: `  mpcparty sign --party-id 02aaaa... --party-index 0 --group g1 \
    --key $(openssl rand -hex 32) --hash $(sha256sum file | cut -d' ' -f1)`,
	RunE: runSign,
}

func init() {
	rootCmd.AddCommand(signCmd)

	signCmd.Flags().StringVar(&signPartyID, "party-id", "", "This party's id")
	signCmd.Flags().StringVar(&groupIDFlag, "group", "", "Group id to sign under")
	signCmd.Flags().IntVar(&signPartyIndex, "party-index", 0, "This party's index, used to load its keyshare")
	signCmd.Flags().StringVar(&signKeyHex, "key", "", "Hex-encoded 32-byte AES key shared out of band with the group")
	signCmd.Flags().StringVar(&signMessageHash, "hash", "", "Hex-encoded 32-byte message hash to sign")
	signCmd.Flags().StringVar(&signDerivation, "derivation-path", "", "Optional key derivation path")
	signCmd.Flags().DurationVar(&signTimeout, "timeout", 2*time.Minute, "How long to wait for the session to complete")

	signCmd.MarkFlagRequired("party-id")
	signCmd.MarkFlagRequired("group")
	signCmd.MarkFlagRequired("key")
	signCmd.MarkFlagRequired("hash")
}

func runSign(cmd *cobra.Command, args []string) error {
	cfg, err := loadAppConfig()
	if err != nil {
		return err
	}
	log := buildLogger(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), signTimeout)
	defer cancel()

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return err
	}
	keyshare, err := store.Load(wire.GroupId(groupIDFlag), signPartyIndex)
	if err != nil {
		return fmt.Errorf("failed to load keyshare: %w", err)
	}

	c := buildCoordinator(cfg, log, store)
	defer c.Disconnect()

	aesKey, err := decodeAESKey(signKeyHex)
	if err != nil {
		return err
	}
	messageHash, err := hex.DecodeString(signMessageHash)
	if err != nil {
		return fmt.Errorf("--hash must be hex-encoded: %w", err)
	}

	ownID, err := c.Register(ctx, wire.PartyId(signPartyID))
	if err != nil {
		return fmt.Errorf("register failed: %w", err)
	}

	// The mock signing engine needs to know the peer count and this party's
	// index ahead of time, neither of which is known until the group's
	// membership is fetched; SetSignFactory installs the bound factory just
	// before starting the session.
	group, err := c.JoinGroup(ctx, wire.GroupId(groupIDFlag))
	if err != nil {
		return fmt.Errorf("failed to fetch group info: %w", err)
	}
	ownIndex, ok := group.IndexOf(ownID)
	if !ok {
		return mpcerrors.New(mpcerrors.Config, "this party is not a member of the group")
	}
	c.SetSignFactory(engine.NewMockSignFactory(group.N, ownIndex))

	done := make(chan error, 1)
	var sig signing.Signature
	c.SetSigningHandlers(func(s signing.Signature) {
		sig = s
		done <- nil
	}, func(err error) {
		done <- err
	})

	if err := c.StartSigning(ctx, wire.GroupId(groupIDFlag), messageHash, keyshare, signDerivation, aesKey); err != nil {
		return fmt.Errorf("start signing failed: %w", err)
	}

	fmt.Printf("Signing as %s in group %s...\n", ownID, groupIDFlag)
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("signing failed: %w", err)
		}
	case <-ctx.Done():
		return fmt.Errorf("signing timed out after %s", signTimeout)
	}

	fmt.Println("Signing complete.")
	fmt.Printf("  r: %s\n", hex.EncodeToString(sig.R))
	fmt.Printf("  s: %s\n", hex.EncodeToString(sig.S))
	return nil
}
