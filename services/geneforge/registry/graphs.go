// Copyright (C) 2025 Umbral Works (dev@umbralworks.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package registry

import (
	"context"
	"fmt"

	badgerdb "github.com/dgraph-io/badger/v4"
)

// SetDependencies replaces the dependency graph.
//
// Description:
//
//	Validates every layer id against the catalog and rejects graphs
//	where a correlated target is itself a dependency source, keeping
//	propagation single-step. The whole graph is stored as one record;
//	graphs are small (tens of entries) and always read whole.
func (r *Registry) SetDependencies(ctx context.Context, deps []Dependency) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.validateGraph(deps); err != nil {
		return err
	}
	sources := make(map[LayerID]bool, len(deps))
	for _, d := range deps {
		sources[d.ID] = true
	}
	for _, d := range deps {
		for _, c := range d.Correlated {
			if sources[c] {
				return fmt.Errorf("dependency %s -> %s: %w", d.ID, c, ErrDependencyCycle)
			}
		}
	}

	err := r.db.WithTxn(ctx, func(txn *badgerdb.Txn) error {
		return writeJSON(txn, keyDependencies, deps)
	})
	if err != nil {
		return fmt.Errorf("persist dependencies: %w", err)
	}

	r.deps = deps
	r.depIdx = buildGraphIndex(deps)
	return nil
}

// SetHiders replaces the hider graph. Hiders only affect
// fingerprinting, so chained entries carry no propagation hazard and
// only catalog validity is checked.
func (r *Registry) SetHiders(ctx context.Context, hiders []Dependency) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.validateGraph(hiders); err != nil {
		return err
	}

	err := r.db.WithTxn(ctx, func(txn *badgerdb.Txn) error {
		return writeJSON(txn, keyHiders, hiders)
	})
	if err != nil {
		return fmt.Errorf("persist hiders: %w", err)
	}

	r.hiders = hiders
	r.hiderIdx = buildGraphIndex(hiders)
	return nil
}

// Dependencies returns the dependency graph.
func (r *Registry) Dependencies() []Dependency {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.deps
}

// Hiders returns the hider graph.
func (r *Registry) Hiders() []Dependency {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.hiders
}

// CorrelatedOf returns the traits forced alongside id by the
// dependency graph, or nil if id is not a source.
func (r *Registry) CorrelatedOf(id LayerID) []LayerID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.depIdx[id]
}

// HiddenBy returns the traits masked during fingerprinting when id is
// present in a gene, or nil if id is not a hider source.
func (r *Registry) HiddenBy(id LayerID) []LayerID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.hiderIdx[id]
}

// SetRollConfig stores the roll configuration after resolving its
// category and variant names against the catalog.
func (r *Registry) SetRollConfig(ctx context.Context, rc RollConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(rc.JawWeights) != 0 && len(rc.JawWeights) != 2 {
		return fmt.Errorf("jaw weights must have 0 or 2 entries, got %d", len(rc.JawWeights))
	}
	for _, idx := range rc.Skip {
		if int(idx) >= len(r.cats) {
			return fmt.Errorf("skip index %d: %w", idx, ErrUnknownCategory)
		}
	}
	if _, ok := r.catIdx[rc.BackgroundCategory]; !ok {
		return fmt.Errorf("background category %q: %w", rc.BackgroundCategory, ErrUnknownCategory)
	}
	if (rc.SkullCategory == "") != (rc.ChinCategory == "") {
		return fmt.Errorf("skull and chin categories must be configured together")
	}
	for _, name := range []string{rc.SkullCategory, rc.ChinCategory, rc.EyeTypeCategory} {
		if name == "" {
			continue
		}
		if _, ok := r.catIdx[name]; !ok {
			return fmt.Errorf("roll config category %q: %w", name, ErrUnknownCategory)
		}
	}
	if rc.EyeTypeCategory != "" {
		eyeIdx := r.catIdx[rc.EyeTypeCategory]
		if _, ok := r.varIdx[eyeIdx][rc.CyclopsVariant]; !ok {
			return fmt.Errorf("cyclops variant %q: %w", rc.CyclopsVariant, ErrUnknownVariant)
		}
	}

	err := r.db.WithTxn(ctx, func(txn *badgerdb.Txn) error {
		return writeJSON(txn, keyRollConfig, &rc)
	})
	if err != nil {
		return fmt.Errorf("persist roll config: %w", err)
	}

	r.rollConf = &rc
	return nil
}

// RollConfig returns the stored roll configuration, or ErrNoRollConfig
// if none has been set.
func (r *Registry) RollConfig() (*RollConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.rollConf == nil {
		return nil, ErrNoRollConfig
	}
	rc := *r.rollConf
	return &rc, nil
}

// validateGraph checks every layer id in entries against the catalog.
// Caller holds r.mu.
func (r *Registry) validateGraph(entries []Dependency) error {
	check := func(id LayerID) error {
		if int(id.Category) >= len(r.variants) {
			return fmt.Errorf("layer %s: %w", id, ErrUnknownCategory)
		}
		if int(id.Variant) >= len(r.variants[id.Category]) {
			return fmt.Errorf("layer %s: %w", id, ErrUnknownVariant)
		}
		return nil
	}
	for _, e := range entries {
		if err := check(e.ID); err != nil {
			return err
		}
		for _, c := range e.Correlated {
			if err := check(c); err != nil {
				return err
			}
		}
	}
	return nil
}

func buildGraphIndex(entries []Dependency) map[LayerID][]LayerID {
	idx := make(map[LayerID][]LayerID, len(entries))
	for _, e := range entries {
		idx[e.ID] = e.Correlated
	}
	return idx
}
