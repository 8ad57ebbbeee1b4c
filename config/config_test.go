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
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromFileAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, SaveToFile(&Config{IsTesting: true}, path))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 9452, cfg.ListenPort)
	assert.Equal(t, "./storage", cfg.DBPath)
	assert.Equal(t, 4, cfg.WorkQueueConcurrency)
	assert.Equal(t, 300, cfg.LinkExpirationSecs)
	assert.Equal(t, 30, cfg.LinkSafeGapSecs)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestSaveAndLoadRoundTripsJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	original := &Config{ListenPort: 7000, DBPath: "/tmp/db", IsTesting: true}
	require.NoError(t, SaveToFile(original, path))

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 7000, loaded.ListenPort)
	assert.Equal(t, "/tmp/db", loaded.DBPath)
}

func TestValidateRejectsBadPort(t *testing.T) {
	cfg := &Config{ListenPort: 0, DBPath: "x", WorkQueueConcurrency: 1, LinkExpirationSecs: 10, LinkSafeGapSecs: 1, IsTesting: true}
	assert.Error(t, Validate(cfg))
}

func TestValidateRejectsMissingSecretOutsideTesting(t *testing.T) {
	cfg := &Config{ListenPort: 9452, DBPath: "x", WorkQueueConcurrency: 1, LinkExpirationSecs: 10, LinkSafeGapSecs: 1, IsTesting: false}
	assert.Error(t, Validate(cfg))
}

func TestValidateAcceptsWellFormedConfig(t *testing.T) {
	cfg := &Config{ListenPort: 9452, DBPath: "x", WorkQueueConcurrency: 1, LinkExpirationSecs: 10, LinkSafeGapSecs: 1, IsTesting: true}
	assert.NoError(t, Validate(cfg))
}
