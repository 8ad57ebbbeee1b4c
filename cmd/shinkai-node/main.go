// SAGE - Secure Agent Guarantee Engine
// Copyright (C) 2025 SAGE-X-project
//
// This file is part of SAGE.
//
// SAGE is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SAGE is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with SAGE. If not, see <https://www.gnu.org/licenses/>.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Exit codes, per the node's startup contract: 0 normal, 1 unrecoverable
// startup error, 2 invalid configuration.
const (
	exitOK        = 0
	exitFail      = 1
	exitBadConfig = 2
)

var rootCmd = &cobra.Command{
	Use:   "shinkai-node",
	Short: "Shinkai node - P2P agent-network node",
	Long: `shinkai-node runs a single P2P agent-network node: a libp2p overlay
transport, a persistent column-family store, a cross-chain identity
resolver, and a work queue engine for job-schema inbound traffic.

This tool supports:
- Starting a node (serve)
- Validating a configuration file without starting (config validate)
- Printing build version information (version)`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitFail)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	// Note: commands are registered in their respective files
	// - serve.go: serveCmd
	// - config.go: configCmd (validate subcommand)
	// - version.go: versionCmd
}
