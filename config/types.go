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

// Package config loads and validates node startup configuration.
package config

// Config is the node's full startup configuration, covering the
// recognized options of spec.md §6 plus the ambient logging and identity
// registry settings the node needs to actually start.
type Config struct {
	Environment string `yaml:"environment" json:"environment"`

	ListenPort                        int    `yaml:"listen_port" json:"listen_port"`
	RelayAddress                      string `yaml:"relay_address" json:"relay_address"`
	DBPath                            string `yaml:"db_path" json:"db_path"`
	LogLevel                          string `yaml:"log_level" json:"log_level"`
	DebugTiming                       bool   `yaml:"debug_timing" json:"debug_timing"`
	WorkQueueConcurrency              int    `yaml:"work_queue_concurrency" json:"work_queue_concurrency"`
	SubscriptionHTTPUploadConcurrency int    `yaml:"subscription_http_upload_concurrency" json:"subscription_http_upload_concurrency"`
	LinkExpirationSecs                int    `yaml:"link_expiration_secs" json:"link_expiration_secs"`
	LinkSafeGapSecs                   int    `yaml:"link_safe_gap_secs" json:"link_safe_gap_secs"`
	IsTesting                         bool   `yaml:"is_testing" json:"is_testing"`
	SecretDesktopKey                  string `yaml:"secret_desktop_key" json:"secret_desktop_key"`

	Logging  LoggingConfig  `yaml:"logging" json:"logging"`
	Ethereum EthereumConfig `yaml:"ethereum" json:"ethereum"`
	Solana   SolanaConfig   `yaml:"solana" json:"solana"`
	Health   HealthConfig   `yaml:"health" json:"health"`
	Metrics  MetricsConfig  `yaml:"metrics" json:"metrics"`
	Postgres PostgresConfig `yaml:"postgres" json:"postgres"`
}

// LoggingConfig controls the structured logger's verbosity and sink.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`   // debug, info, warn, error
	Format string `yaml:"format" json:"format"` // json, text
	Output string `yaml:"output" json:"output"` // stdout, stderr, file path
}

// HealthConfig controls the node's health endpoint.
type HealthConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Port    int    `yaml:"port" json:"port"`
	Path    string `yaml:"path" json:"path"`
}

// MetricsConfig controls the node's Prometheus exporter.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Port    int    `yaml:"port" json:"port"`
	Path    string `yaml:"path" json:"path"`
}
