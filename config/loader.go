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
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// LoaderOptions configures the configuration loader.
type LoaderOptions struct {
	// ConfigDir is the directory containing config files (default: ./config).
	ConfigDir string
	// Environment overrides automatic environment detection.
	Environment string
	// SkipValidation disables configuration validation.
	SkipValidation bool
}

// DefaultLoaderOptions returns default loader options.
func DefaultLoaderOptions() LoaderOptions {
	return LoaderOptions{ConfigDir: "config"}
}

// Load loads a .env file if present, then a YAML config file, then applies
// SHINKAI_*-prefixed environment overrides (highest priority), matching the
// teacher's layered config/env.go + config/loader.go precedence.
func Load(opts ...LoaderOptions) (*Config, error) {
	options := DefaultLoaderOptions()
	if len(opts) > 0 {
		options = opts[0]
	}

	_ = godotenv.Load() // optional; missing .env is not an error

	env := options.Environment
	if env == "" {
		env = GetEnvironment()
	}

	cfg, err := loadConfigFile(filepath.Join(options.ConfigDir, fmt.Sprintf("%s.yaml", env)))
	if err != nil {
		cfg, err = loadConfigFile(filepath.Join(options.ConfigDir, "config.yaml"))
		if err != nil {
			cfg = &Config{}
			setDefaults(cfg)
		}
	}
	if options.Environment != "" {
		cfg.Environment = options.Environment
	} else if cfg.Environment == "" {
		cfg.Environment = env
	}

	applyEnvironmentOverrides(cfg)

	if !options.SkipValidation {
		if err := Validate(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func loadConfigFile(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config: file not found: %s", path)
	}
	return LoadFromFile(path)
}

// applyEnvironmentOverrides lets SHINKAI_*-prefixed environment variables
// override file-loaded values, the highest-priority layer.
func applyEnvironmentOverrides(cfg *Config) {
	if v := os.Getenv("SHINKAI_LISTEN_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ListenPort = n
		}
	}
	if v := os.Getenv("SHINKAI_RELAY_ADDRESS"); v != "" {
		cfg.RelayAddress = v
	}
	if v := os.Getenv("SHINKAI_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("SHINKAI_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SHINKAI_DEBUG_TIMING"); v != "" {
		cfg.DebugTiming = v == "true"
	}
	if v := os.Getenv("SHINKAI_WORK_QUEUE_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.WorkQueueConcurrency = n
		}
	}
	if v := os.Getenv("SHINKAI_SUBSCRIPTION_HTTP_UPLOAD_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.SubscriptionHTTPUploadConcurrency = n
		}
	}
	if v := os.Getenv("SHINKAI_LINK_EXPIRATION_SECS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.LinkExpirationSecs = n
		}
	}
	if v := os.Getenv("SHINKAI_LINK_SAFE_GAP_SECS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.LinkSafeGapSecs = n
		}
	}
	if v := os.Getenv("SHINKAI_IS_TESTING"); v != "" {
		cfg.IsTesting = v == "true"
	}
	if v := os.Getenv("SHINKAI_SECRET_DESKTOP_KEY"); v != "" {
		cfg.SecretDesktopKey = v
	}
	if v := os.Getenv("SHINKAI_ETH_RPC_ENDPOINT"); v != "" {
		cfg.Ethereum.RPCEndpoint = v
	}
	if v := os.Getenv("SHINKAI_ETH_CONTRACT_ADDRESS"); v != "" {
		cfg.Ethereum.ContractAddress = v
	}
	if v := os.Getenv("SHINKAI_SOLANA_RPC_ENDPOINT"); v != "" {
		cfg.Solana.RPCEndpoint = v
	}
	if v := os.Getenv("SHINKAI_SOLANA_PROGRAM_ID"); v != "" {
		cfg.Solana.ProgramID = v
	}
}

// LoadForEnvironment loads configuration for a specific environment.
func LoadForEnvironment(environment string) (*Config, error) {
	return Load(LoaderOptions{ConfigDir: "config", Environment: environment})
}

// MustLoad loads configuration or panics on error.
func MustLoad(opts ...LoaderOptions) *Config {
	cfg, err := Load(opts...)
	if err != nil {
		panic(fmt.Sprintf("config: load failed: %v", err))
	}
	return cfg
}
