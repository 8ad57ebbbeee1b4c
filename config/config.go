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

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadFromFile loads configuration from a YAML (or, as a fallback, JSON)
// file and fills in defaults for anything left unset.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse file (tried YAML and JSON): %w", err)
		}
	}

	setDefaults(cfg)
	return cfg, nil
}

// SaveToFile writes cfg to path, choosing JSON or YAML by extension.
func SaveToFile(cfg *Config, path string) error {
	var data []byte
	var err error
	if strings.HasSuffix(path, ".json") {
		data, err = json.MarshalIndent(cfg, "", "  ")
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: write file: %w", err)
	}
	return nil
}

// setDefaults fills in every option spec.md §6 recognizes that was left at
// its zero value.
func setDefaults(cfg *Config) {
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.ListenPort == 0 {
		cfg.ListenPort = 9452
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "./storage"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.WorkQueueConcurrency == 0 {
		cfg.WorkQueueConcurrency = 4
	}
	if cfg.SubscriptionHTTPUploadConcurrency == 0 {
		cfg.SubscriptionHTTPUploadConcurrency = 2
	}
	if cfg.LinkExpirationSecs == 0 {
		cfg.LinkExpirationSecs = 300
	}
	if cfg.LinkSafeGapSecs == 0 {
		cfg.LinkSafeGapSecs = 30
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = cfg.LogLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	if cfg.Health.Port == 0 {
		cfg.Health.Port = 9453
		cfg.Health.Enabled = true
	}
	if cfg.Health.Path == "" {
		cfg.Health.Path = "/healthz"
	}

	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = 9454
		cfg.Metrics.Enabled = true
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}

	if cfg.Postgres.Enabled() && cfg.Postgres.SSLMode == "" {
		cfg.Postgres.SSLMode = "disable"
	}
	if cfg.Postgres.Port == 0 {
		cfg.Postgres.Port = 5432
	}
}

// Validate rejects configurations that would fail during startup rather
// than at the point of use, matching exit code 2 of spec.md §6.
func Validate(cfg *Config) error {
	if cfg.ListenPort <= 0 || cfg.ListenPort > 65535 {
		return fmt.Errorf("config: listen_port %d out of range", cfg.ListenPort)
	}
	if cfg.DBPath == "" {
		return fmt.Errorf("config: db_path is required")
	}
	if cfg.WorkQueueConcurrency <= 0 {
		return fmt.Errorf("config: work_queue_concurrency must be positive")
	}
	if cfg.LinkExpirationSecs <= cfg.LinkSafeGapSecs {
		return fmt.Errorf("config: link_expiration_secs must exceed link_safe_gap_secs")
	}
	if !cfg.IsTesting && cfg.SecretDesktopKey == "" {
		return fmt.Errorf("config: secret_desktop_key is required outside test mode")
	}
	return nil
}
