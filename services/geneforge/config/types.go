// Copyright (C) 2025 Umbral Works (dev@umbralworks.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that yaml-decodes from strings like
// "30m" or "24h".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string like \"30m\": %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration: %w", err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Mint      MintConfig      `yaml:"mint"`
	Reveal    RevealConfig    `yaml:"reveal"`
	Logging   LoggingConfig   `yaml:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port" validate:"gte=1,lte=65535"`
	ShutdownTimeout Duration      `yaml:"shutdown_timeout"`
}

type StorageConfig struct {
	// Path is the Badger directory; ignored when InMemory is set.
	Path       string `yaml:"path" validate:"required_without=InMemory"`
	InMemory   bool   `yaml:"in_memory"`
	SyncWrites bool   `yaml:"sync_writes"`
}

type MintConfig struct {
	// Entropy seeds the draw stream on first run. It should be a long
	// random string and is never logged.
	Entropy string `yaml:"entropy" validate:"required"`
	// Admin is the bootstrap admin address installed on first run.
	Admin string `yaml:"admin" validate:"required"`
	// MaxBatch caps the number of genes rolled per request.
	MaxBatch int `yaml:"max_batch" validate:"gte=1,lte=100"`
	// SupplyCap is the total number of tokens that may ever be minted.
	SupplyCap int `yaml:"supply_cap" validate:"gte=1"`
	// MaxAttempts bounds uniqueness retries per gene; zero means
	// unbounded.
	MaxAttempts int `yaml:"max_attempts" validate:"gte=0"`
}

type RevealConfig struct {
	RandomCooldown   Duration `yaml:"random_cooldown"`
	TargetedCooldown Duration `yaml:"targeted_cooldown"`
	AllCooldown      Duration `yaml:"all_cooldown"`
}

type LoggingConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
	Dir   string `yaml:"dir"`
	JSON  bool   `yaml:"json"`
}

type TelemetryConfig struct {
	Enabled     bool `yaml:"enabled"`
	StdoutTrace bool `yaml:"stdout_trace"`
}

func DefaultConfig() Config {
	dataDir := "geneforge-data"
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, ".geneforge", "data")
	}
	return Config{
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            8420,
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Storage: StorageConfig{
			Path:       dataDir,
			SyncWrites: true,
		},
		Mint: MintConfig{
			Entropy:     "",
			Admin:       "",
			MaxBatch:    20,
			SupplyCap:   10000,
			MaxAttempts: 0,
		},
		Reveal: RevealConfig{
			RandomCooldown:   Duration(time.Hour),
			TargetedCooldown: Duration(4 * time.Hour),
			AllCooldown:      Duration(24 * time.Hour),
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
