// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package app provides the sidserver CLI commands.
package app

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "sidserver",
	Short: "Lightweight OpenID Connect and UMA authorization server",
	Long: `sidserver issues authorization codes, access tokens and signed ID tokens
through the OpenID Connect authorization endpoint, and resolves UMA permission
tickets to requesting-party tokens through policy evaluation.`,
	Run: func(cmd *cobra.Command, _ []string) {
		// If no subcommand is provided, print help
		if err := cmd.Help(); err != nil {
			cmd.PrintErrf("Error displaying help: %v\n", err)
		}
	},
}

// NewRootCmd creates the root command for the sidserver CLI.
func NewRootCmd() *cobra.Command {
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug mode")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}
