// Copyright (c) 2026 The mpcparty Authors.
// Use of this source code is governed by the MIT license found in the
// LICENSE file at the root of this repository.

package main

import (
	"github.com/spf13/cobra"

	"github.com/mpcparty/core/pkg/version"
)

var versionJSON bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print mpcparty's version",
	RunE:  runVersion,
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "Print version info as JSON")
}

func runVersion(cmd *cobra.Command, args []string) error {
	if versionJSON {
		version.PrintVersionJSON()
		return nil
	}
	version.PrintVersion()
	return nil
}
