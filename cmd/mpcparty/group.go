// Copyright (c) 2026 The mpcparty Authors.
// Use of this source code is governed by the MIT license found in the
// LICENSE file at the root of this repository.

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mpcparty/core/pkg/relay"
	"github.com/mpcparty/core/pkg/wire"
)

var (
	groupPartyID      string
	groupThreshold    int
	groupTotalParties int
	groupTimeoutMin   int
	groupIDFlag       string
)

var groupCmd = &cobra.Command{
	Use:   "group",
	Short: "Create or join a group",
}

var groupCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new group with threshold t and size n",
	Example: `  mpcparty group create --party-id 02aaaa... --t 2 --n 3 --timeout-minutes 30`,
	RunE: runGroupCreate,
}

var groupJoinCmd = &cobra.Command{
	Use:   "join",
	Short: "Join an existing group",
	Example: `  mpcparty group join --party-id 02bbbb... --group g1`,
	RunE: runGroupJoin,
}

func init() {
	rootCmd.AddCommand(groupCmd)
	groupCmd.AddCommand(groupCreateCmd)
	groupCmd.AddCommand(groupJoinCmd)

	groupCreateCmd.Flags().StringVar(&groupPartyID, "party-id", "", "Party id to register as before creating the group")
	groupCreateCmd.Flags().IntVar(&groupThreshold, "t", 2, "Signing threshold")
	groupCreateCmd.Flags().IntVar(&groupTotalParties, "n", 3, "Total number of parties")
	groupCreateCmd.Flags().IntVar(&groupTimeoutMin, "timeout-minutes", 30, "Group session timeout in minutes")

	groupJoinCmd.Flags().StringVar(&groupPartyID, "party-id", "", "Party id to register as before joining")
	groupJoinCmd.Flags().StringVar(&groupIDFlag, "group", "", "Group id to join")
	groupJoinCmd.MarkFlagRequired("group")
}

func runGroupCreate(cmd *cobra.Command, args []string) error {
	cfg, err := loadAppConfig()
	if err != nil {
		return err
	}
	log := buildLogger(cfg)
	client := relay.New(cfg.Relay.BaseURL, log)
	ctx := context.Background()

	if _, err := client.Register(ctx, wire.PartyId(groupPartyID)); err != nil {
		return fmt.Errorf("register failed: %w", err)
	}

	group, err := client.CreateGroup(ctx, groupThreshold, groupTotalParties, groupTimeoutMin)
	if err != nil {
		return fmt.Errorf("create group failed: %w", err)
	}

	fmt.Println("Group created.")
	printGroup(group)
	return nil
}

func runGroupJoin(cmd *cobra.Command, args []string) error {
	cfg, err := loadAppConfig()
	if err != nil {
		return err
	}
	log := buildLogger(cfg)
	client := relay.New(cfg.Relay.BaseURL, log)
	ctx := context.Background()

	if _, err := client.Register(ctx, wire.PartyId(groupPartyID)); err != nil {
		return fmt.Errorf("register failed: %w", err)
	}
	if err := client.JoinGroup(ctx, wire.GroupId(groupIDFlag)); err != nil {
		return fmt.Errorf("join group failed: %w", err)
	}

	group, err := client.GroupInfo(ctx, wire.GroupId(groupIDFlag))
	if err != nil {
		return fmt.Errorf("failed to fetch group info: %w", err)
	}

	fmt.Println("Joined group.")
	printGroup(group)
	return nil
}

func printGroup(group wire.GroupInfo) {
	fmt.Printf("  Group ID: %s\n", group.GroupId)
	fmt.Printf("  t-of-n:   %d-of-%d\n", group.T, group.N)
	fmt.Println("  Members:")
	for _, m := range group.Members {
		fmt.Printf("    [%d] %s\n", m.Index, m.PartyId)
	}
}
