// Copyright (C) 2025 Umbral Works (dev@umbralworks.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package config loads the service configuration from a yaml file with
// GENEFORGE_* environment overrides layered on top.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Load reads the config at path, or the defaults when path is empty,
// applies environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	if err := validator.New().Struct(&cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return nil, fmt.Errorf("invalid config: %s failed %q", verrs[0].Namespace(), verrs[0].Tag())
		}
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// applyEnv layers GENEFORGE_* variables over the file values. Only the
// settings an operator plausibly injects at deploy time are covered;
// everything else belongs in the file.
func applyEnv(cfg *Config) error {
	setStr := func(name string, dst *string) {
		if v, ok := os.LookupEnv(name); ok {
			*dst = v
		}
	}
	setInt := func(name string, dst *int) error {
		v, ok := os.LookupEnv(name)
		if !ok {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		*dst = n
		return nil
	}
	setBool := func(name string, dst *bool) error {
		v, ok := os.LookupEnv(name)
		if !ok {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		*dst = b
		return nil
	}
	setDur := func(name string, dst *Duration) error {
		v, ok := os.LookupEnv(name)
		if !ok {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		*dst = Duration(d)
		return nil
	}

	setStr("GENEFORGE_HOST", &cfg.Server.Host)
	setStr("GENEFORGE_STORAGE_PATH", &cfg.Storage.Path)
	setStr("GENEFORGE_ENTROPY", &cfg.Mint.Entropy)
	setStr("GENEFORGE_ADMIN", &cfg.Mint.Admin)
	setStr("GENEFORGE_LOG_LEVEL", &cfg.Logging.Level)
	setStr("GENEFORGE_LOG_DIR", &cfg.Logging.Dir)

	for _, e := range []error{
		setInt("GENEFORGE_PORT", &cfg.Server.Port),
		setInt("GENEFORGE_MAX_BATCH", &cfg.Mint.MaxBatch),
		setInt("GENEFORGE_SUPPLY_CAP", &cfg.Mint.SupplyCap),
		setInt("GENEFORGE_MAX_ATTEMPTS", &cfg.Mint.MaxAttempts),
		setBool("GENEFORGE_IN_MEMORY", &cfg.Storage.InMemory),
		setBool("GENEFORGE_TELEMETRY", &cfg.Telemetry.Enabled),
		setDur("GENEFORGE_RANDOM_COOLDOWN", &cfg.Reveal.RandomCooldown),
		setDur("GENEFORGE_TARGETED_COOLDOWN", &cfg.Reveal.TargetedCooldown),
		setDur("GENEFORGE_ALL_COOLDOWN", &cfg.Reveal.AllCooldown),
	} {
		if e != nil {
			return fmt.Errorf("environment override: %w", e)
		}
	}
	return nil
}
