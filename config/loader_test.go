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

func TestLoadFallsBackToDefaultsWhenNoFileExists(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(LoaderOptions{ConfigDir: dir, SkipValidation: true})
	require.NoError(t, err)
	assert.Equal(t, 9452, cfg.ListenPort)
}

func TestLoadReadsEnvironmentSpecificFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, SaveToFile(&Config{ListenPort: 9999, IsTesting: true}, filepath.Join(dir, "staging.yaml")))

	cfg, err := Load(LoaderOptions{ConfigDir: dir, Environment: "staging"})
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.ListenPort)
	assert.Equal(t, "staging", cfg.Environment)
}

func TestEnvironmentOverrideWinsOverFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, SaveToFile(&Config{ListenPort: 9999, IsTesting: true}, filepath.Join(dir, "config.yaml")))
	t.Setenv("SHINKAI_LISTEN_PORT", "1234")

	cfg, err := Load(LoaderOptions{ConfigDir: dir})
	require.NoError(t, err)
	assert.Equal(t, 1234, cfg.ListenPort)
}

func TestLoadRejectsInvalidConfiguration(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, SaveToFile(&Config{ListenPort: -1, IsTesting: true}, filepath.Join(dir, "config.yaml")))

	_, err := Load(LoaderOptions{ConfigDir: dir})
	assert.Error(t, err)
}

func TestMustLoadPanicsOnInvalidConfiguration(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, SaveToFile(&Config{ListenPort: -1, IsTesting: true}, filepath.Join(dir, "config.yaml")))

	assert.Panics(t, func() {
		MustLoad(LoaderOptions{ConfigDir: dir})
	})
}
