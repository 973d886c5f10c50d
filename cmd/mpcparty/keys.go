// Copyright (c) 2026 The mpcparty Authors.
// Use of this source code is governed by the MIT license found in the
// LICENSE file at the root of this repository.

package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Inspect persisted keyshares",
}

var keysListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every keyshare in the configured keystore",
	Example: `  mpcparty keys list --config ./mpcparty.yaml`,
	RunE: runKeysList,
}

func init() {
	rootCmd.AddCommand(keysCmd)
	keysCmd.AddCommand(keysListCmd)
}

func runKeysList(cmd *cobra.Command, args []string) error {
	cfg, err := loadAppConfig()
	if err != nil {
		return err
	}

	store, err := buildStore(context.Background(), cfg)
	if err != nil {
		return err
	}

	keys, err := store.List()
	if err != nil {
		return fmt.Errorf("failed to list keyshares: %w", err)
	}
	if len(keys) == 0 {
		fmt.Println("No keyshares found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KEY")
	for _, k := range keys {
		fmt.Fprintln(w, k)
	}
	return w.Flush()
}
