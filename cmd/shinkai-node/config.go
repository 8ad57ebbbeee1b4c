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

	"github.com/shinkainet/node/config"
)

var configDir string
var configEnv string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and validate node configuration",
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Load configuration and report whether it is valid, without starting the node",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(config.LoaderOptions{ConfigDir: configDir, Environment: configEnv})
		if err != nil {
			fmt.Fprintf(cmd.OutOrStderr(), "invalid configuration: %v\n", err)
			os.Exit(exitBadConfig)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "configuration OK (environment=%s, listen_port=%d, db_path=%s)\n",
			cfg.Environment, cfg.ListenPort, cfg.DBPath)
		return nil
	},
}

func init() {
	configCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "directory holding config.yaml / <env>.yaml")
	configCmd.PersistentFlags().StringVar(&configEnv, "env", "", "environment name (defaults to SHINKAI_ENV/ENVIRONMENT)")
	configCmd.AddCommand(configValidateCmd)
	rootCmd.AddCommand(configCmd)
}
