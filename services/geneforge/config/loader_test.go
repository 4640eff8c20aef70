// Copyright (C) 2025 Umbral Works (dev@umbralworks.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "geneforge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const minimalConfig = `
mint:
  entropy: "operator entropy"
  admin: "root-admin"
`

func TestLoadMinimal(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "operator entropy", cfg.Mint.Entropy)
	assert.Equal(t, "root-admin", cfg.Mint.Admin)
	// Defaults survive a partial file.
	assert.Equal(t, 8420, cfg.Server.Port)
	assert.Equal(t, 20, cfg.Mint.MaxBatch)
	assert.Equal(t, 10000, cfg.Mint.SupplyCap)
	assert.Equal(t, Duration(time.Hour), cfg.Reveal.RandomCooldown)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadFullFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
server:
  host: "0.0.0.0"
  port: 9000
storage:
  in_memory: true
mint:
  entropy: "e"
  admin: "a"
  max_batch: 5
  supply_cap: 100
reveal:
  random_cooldown: 30m
logging:
  level: debug
  json: true
`))
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.True(t, cfg.Storage.InMemory)
	assert.Equal(t, 5, cfg.Mint.MaxBatch)
	assert.Equal(t, Duration(30*time.Minute), cfg.Reveal.RandomCooldown)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.JSON)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("GENEFORGE_PORT", "7777")
	t.Setenv("GENEFORGE_ENTROPY", "env entropy")
	t.Setenv("GENEFORGE_ADMIN", "env-admin")
	t.Setenv("GENEFORGE_IN_MEMORY", "true")
	t.Setenv("GENEFORGE_RANDOM_COOLDOWN", "90s")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7777, cfg.Server.Port)
	assert.Equal(t, "env entropy", cfg.Mint.Entropy)
	assert.Equal(t, "env-admin", cfg.Mint.Admin)
	assert.True(t, cfg.Storage.InMemory)
	assert.Equal(t, Duration(90*time.Second), cfg.Reveal.RandomCooldown)
}

func TestEnvOverridesBeatFile(t *testing.T) {
	t.Setenv("GENEFORGE_ADMIN", "env-admin")
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)
	assert.Equal(t, "env-admin", cfg.Mint.Admin)
}

func TestValidation(t *testing.T) {
	// Missing entropy and admin.
	_, err := Load("")
	assert.ErrorContains(t, err, "invalid config")

	t.Setenv("GENEFORGE_ENTROPY", "e")
	t.Setenv("GENEFORGE_ADMIN", "a")
	t.Setenv("GENEFORGE_MAX_BATCH", "500")
	_, err = Load("")
	assert.ErrorContains(t, err, "invalid config")

	t.Setenv("GENEFORGE_MAX_BATCH", "10")
	_, err = Load("")
	assert.NoError(t, err)
}

func TestBadEnvValue(t *testing.T) {
	t.Setenv("GENEFORGE_PORT", "not-a-number")
	_, err := Load("")
	assert.ErrorContains(t, err, "GENEFORGE_PORT")
}

func TestMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorContains(t, err, "read config file")
}
