// Copyright (C) 2025 Umbral Works (dev@umbralworks.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/umbralworks/geneforge/pkg/validation"
	storage "github.com/umbralworks/geneforge/services/geneforge/storage/badger"
)

// Storage key namespaces. Category and variant records are keyed by
// index; name indexes are rebuilt in memory at load time.
const (
	nsCategory      = "cat"
	nsCategoryCount = "catcnt"
	nsVariant       = "var"
	nsVariantCount  = "varcnt"
	nsConfig        = "conf"
)

var (
	keyDependencies = storage.Key(nsConfig, []byte("depend"))
	keyHiders       = storage.Key(nsConfig, []byte("hider"))
	keyRollConfig   = storage.Key(nsConfig, []byte("roll"))
)

// VariantSpec is the admin-surface form of a variant: the variant
// record plus its weight in each archetype table.
type VariantSpec struct {
	Variant

	// Weight is the entry added to the category's normal table.
	Weight uint16 `json:"weight"`

	// JawlessWeight is the entry added to the category's jawless table.
	// The first variant of a new category decides whether the table
	// exists; after that every variant must provide the weight exactly
	// when the table does.
	JawlessWeight *uint16 `json:"jawless_weight,omitempty"`

	// CyclopsWeight works the same way for the cyclops table.
	CyclopsWeight *uint16 `json:"cyclops_weight,omitempty"`
}

// Registry is the storage-backed trait catalog.
//
// All reads are served from in-memory caches populated by Load and kept
// current by the mutating methods, which persist to BadgerDB before
// updating the caches. Safe for concurrent use.
type Registry struct {
	db  *storage.DB
	log *slog.Logger

	mu       sync.RWMutex
	cats     []Category
	variants [][]Variant
	catIdx   map[string]uint8
	varIdx   []map[string]uint8
	deps     []Dependency
	hiders   []Dependency
	depIdx   map[LayerID][]LayerID
	hiderIdx map[LayerID][]LayerID
	rollConf *RollConfig
}

// New creates a Registry over db. Call Load before first use.
func New(db *storage.DB, log *slog.Logger) *Registry {
	return &Registry{
		db:       db,
		log:      log,
		catIdx:   make(map[string]uint8),
		depIdx:   make(map[LayerID][]LayerID),
		hiderIdx: make(map[LayerID][]LayerID),
	}
}

// Load populates the in-memory caches from storage.
//
// Description:
//
//	Reads every category, variant, both graphs, and the roll config
//	into memory and rebuilds the name indexes. Called once at startup;
//	an empty database loads an empty catalog.
func (r *Registry) Load(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.db.WithReadTxn(ctx, func(txn *badgerdb.Txn) error {
		count, err := readCount(txn, storage.Key(nsCategoryCount))
		if err != nil {
			return fmt.Errorf("read category count: %w", err)
		}

		r.cats = make([]Category, count)
		r.variants = make([][]Variant, count)
		r.varIdx = make([]map[string]uint8, count)
		r.catIdx = make(map[string]uint8, count)

		for i := 0; i < count; i++ {
			idx := uint8(i)
			if err := readJSON(txn, storage.Key(nsCategory, []byte{idx}), &r.cats[i]); err != nil {
				return fmt.Errorf("read category %d: %w", idx, err)
			}
			r.catIdx[r.cats[i].Name] = idx

			varCount, err := readCount(txn, storage.Key(nsVariantCount, []byte{idx}))
			if err != nil {
				return fmt.Errorf("read variant count for category %d: %w", idx, err)
			}
			r.variants[i] = make([]Variant, varCount)
			r.varIdx[i] = make(map[string]uint8, varCount)
			for j := 0; j < varCount; j++ {
				vIdx := uint8(j)
				if err := readJSON(txn, storage.Key(nsVariant, []byte{idx}, []byte{vIdx}), &r.variants[i][j]); err != nil {
					return fmt.Errorf("read variant %d/%d: %w", idx, vIdx, err)
				}
				r.varIdx[i][r.variants[i][j].Name] = vIdx
			}
		}

		if err := readJSONOptional(txn, keyDependencies, &r.deps); err != nil {
			return fmt.Errorf("read dependencies: %w", err)
		}
		if err := readJSONOptional(txn, keyHiders, &r.hiders); err != nil {
			return fmt.Errorf("read hiders: %w", err)
		}
		r.depIdx = buildGraphIndex(r.deps)
		r.hiderIdx = buildGraphIndex(r.hiders)

		var rc RollConfig
		found, err := readJSONFound(txn, keyRollConfig, &rc)
		if err != nil {
			return fmt.Errorf("read roll config: %w", err)
		}
		if found {
			r.rollConf = &rc
		}
		return nil
	})
}

// AddCategory appends a new category with its initial variants.
//
// Description:
//
//	Assigns the next category index, builds the weight tables from the
//	specs, persists everything in one transaction, and updates the
//	caches. The jawless and cyclops tables exist only when at least one
//	spec carries the corresponding weight.
//
// Outputs:
//
//	uint8 - The assigned category index.
//	error - ErrNameExists, ErrIndexExhausted, or a storage failure.
func (r *Registry) AddCategory(ctx context.Context, cat Category, specs []VariantSpec) (uint8, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := validation.ValidateName(cat.Name); err != nil {
		return 0, fmt.Errorf("category name: %w", err)
	}
	if err := validateSpecNames(specs); err != nil {
		return 0, fmt.Errorf("category %q: %w", cat.Name, err)
	}
	if _, taken := r.catIdx[cat.Name]; taken {
		return 0, fmt.Errorf("category %q: %w", cat.Name, ErrNameExists)
	}
	if len(r.cats) > MaxIndex {
		return 0, fmt.Errorf("adding category %q: %w", cat.Name, ErrIndexExhausted)
	}
	if len(specs) > MaxIndex+1 {
		return 0, fmt.Errorf("category %q variants: %w", cat.Name, ErrIndexExhausted)
	}

	variants, err := buildTables(&cat, specs, nil)
	if err != nil {
		return 0, err
	}

	idx := uint8(len(r.cats))
	err = r.db.WithTxn(ctx, func(txn *badgerdb.Txn) error {
		if err := writeJSON(txn, storage.Key(nsCategory, []byte{idx}), &cat); err != nil {
			return err
		}
		if err := writeCount(txn, storage.Key(nsCategoryCount), len(r.cats)+1); err != nil {
			return err
		}
		if err := writeCount(txn, storage.Key(nsVariantCount, []byte{idx}), len(variants)); err != nil {
			return err
		}
		for j := range variants {
			if err := writeJSON(txn, storage.Key(nsVariant, []byte{idx}, []byte{uint8(j)}), &variants[j]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("persist category %q: %w", cat.Name, err)
	}

	r.cats = append(r.cats, cat)
	r.variants = append(r.variants, variants)
	r.catIdx[cat.Name] = idx
	nameIdx := make(map[string]uint8, len(variants))
	for j := range variants {
		nameIdx[variants[j].Name] = uint8(j)
	}
	r.varIdx = append(r.varIdx, nameIdx)

	r.log.Info("category added", "name", cat.Name, "index", idx, "variants", len(variants))
	return idx, nil
}

// ModifyCategory updates a category's name and forced-variant overrides.
// Weight tables are changed through AddVariants and ModifyVariant.
func (r *Registry) ModifyCategory(ctx context.Context, name string, newName string, forcedCyclops, forcedJawless *uint8) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx, ok := r.catIdx[name]
	if !ok {
		return fmt.Errorf("category %q: %w", name, ErrUnknownCategory)
	}
	if newName != name {
		if err := validation.ValidateName(newName); err != nil {
			return fmt.Errorf("category name: %w", err)
		}
		if _, taken := r.catIdx[newName]; taken {
			return fmt.Errorf("category %q: %w", newName, ErrNameExists)
		}
	}
	varCount := len(r.variants[idx])
	for _, forced := range []*uint8{forcedCyclops, forcedJawless} {
		if forced != nil && int(*forced) >= varCount {
			return fmt.Errorf("forced variant %d in category %q: %w", *forced, name, ErrUnknownVariant)
		}
	}

	updated := r.cats[idx]
	updated.Name = newName
	updated.ForcedCyclops = forcedCyclops
	updated.ForcedJawless = forcedJawless

	err := r.db.WithTxn(ctx, func(txn *badgerdb.Txn) error {
		return writeJSON(txn, storage.Key(nsCategory, []byte{idx}), &updated)
	})
	if err != nil {
		return fmt.Errorf("persist category %q: %w", name, err)
	}

	delete(r.catIdx, name)
	r.catIdx[newName] = idx
	r.cats[idx] = updated
	return nil
}

// AddVariants appends variants to an existing category, extending every
// weight table the category carries.
func (r *Registry) AddVariants(ctx context.Context, category string, specs []VariantSpec) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx, ok := r.catIdx[category]
	if !ok {
		return fmt.Errorf("category %q: %w", category, ErrUnknownCategory)
	}
	if err := validateSpecNames(specs); err != nil {
		return fmt.Errorf("category %q: %w", category, err)
	}
	if len(r.variants[idx])+len(specs) > MaxIndex+1 {
		return fmt.Errorf("category %q variants: %w", category, ErrIndexExhausted)
	}
	for _, spec := range specs {
		if _, taken := r.varIdx[idx][spec.Name]; taken {
			return fmt.Errorf("variant %q in category %q: %w", spec.Name, category, ErrNameExists)
		}
	}

	updated := r.cats[idx]
	added, err := buildTables(&updated, specs, r.variants[idx])
	if err != nil {
		return err
	}

	base := len(r.variants[idx])
	err = r.db.WithTxn(ctx, func(txn *badgerdb.Txn) error {
		if err := writeJSON(txn, storage.Key(nsCategory, []byte{idx}), &updated); err != nil {
			return err
		}
		if err := writeCount(txn, storage.Key(nsVariantCount, []byte{idx}), base+len(added)); err != nil {
			return err
		}
		for j := range added {
			if err := writeJSON(txn, storage.Key(nsVariant, []byte{idx}, []byte{uint8(base + j)}), &added[j]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("persist variants for %q: %w", category, err)
	}

	r.cats[idx] = updated
	for j := range added {
		r.varIdx[idx][added[j].Name] = uint8(base + j)
	}
	r.variants[idx] = append(r.variants[idx], added...)
	return nil
}

// ModifyVariant updates one variant's record and weights in place.
func (r *Registry) ModifyVariant(ctx context.Context, category, name string, spec VariantSpec) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	catI, ok := r.catIdx[category]
	if !ok {
		return fmt.Errorf("category %q: %w", category, ErrUnknownCategory)
	}
	varI, ok := r.varIdx[catI][name]
	if !ok {
		return fmt.Errorf("variant %q in category %q: %w", name, category, ErrUnknownVariant)
	}
	if spec.Name != name {
		if err := validation.ValidateName(spec.Name); err != nil {
			return fmt.Errorf("variant name: %w", err)
		}
		if _, taken := r.varIdx[catI][spec.Name]; taken {
			return fmt.Errorf("variant %q in category %q: %w", spec.Name, category, ErrNameExists)
		}
	}

	updated := r.cats[catI]
	if err := checkArchetypeWeights(category, spec, updated.JawlessWeights != nil, updated.CyclopsWeights != nil); err != nil {
		return err
	}
	updated.NormalWeights = cloneWeights(updated.NormalWeights)
	updated.NormalWeights[varI] = spec.Weight
	if updated.JawlessWeights != nil {
		updated.JawlessWeights = cloneWeights(updated.JawlessWeights)
		updated.JawlessWeights[varI] = *spec.JawlessWeight
	}
	if updated.CyclopsWeights != nil {
		updated.CyclopsWeights = cloneWeights(updated.CyclopsWeights)
		updated.CyclopsWeights[varI] = *spec.CyclopsWeight
	}

	err := r.db.WithTxn(ctx, func(txn *badgerdb.Txn) error {
		if err := writeJSON(txn, storage.Key(nsCategory, []byte{catI}), &updated); err != nil {
			return err
		}
		return writeJSON(txn, storage.Key(nsVariant, []byte{catI}, []byte{varI}), &spec.Variant)
	})
	if err != nil {
		return fmt.Errorf("persist variant %q: %w", name, err)
	}

	r.cats[catI] = updated
	if spec.Name != name {
		delete(r.varIdx[catI], name)
		r.varIdx[catI][spec.Name] = varI
	}
	r.variants[catI][varI] = spec.Variant
	return nil
}

// CategoryCount returns the number of categories in the catalog.
func (r *Registry) CategoryCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cats)
}

// Category returns the category at idx.
func (r *Registry) Category(idx uint8) (*Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if int(idx) >= len(r.cats) {
		return nil, fmt.Errorf("category %d: %w", idx, ErrUnknownCategory)
	}
	cat := r.cats[idx]
	return &cat, nil
}

// CategoryByName returns the index and record of the named category.
func (r *Registry) CategoryByName(name string) (uint8, *Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	idx, ok := r.catIdx[name]
	if !ok {
		return 0, nil, fmt.Errorf("category %q: %w", name, ErrUnknownCategory)
	}
	cat := r.cats[idx]
	return idx, &cat, nil
}

// Variant returns the variant record at cat/idx.
func (r *Registry) Variant(cat, idx uint8) (*Variant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if int(cat) >= len(r.variants) {
		return nil, fmt.Errorf("category %d: %w", cat, ErrUnknownCategory)
	}
	if int(idx) >= len(r.variants[cat]) {
		return nil, fmt.Errorf("variant %d/%d: %w", cat, idx, ErrUnknownVariant)
	}
	v := r.variants[cat][idx]
	return &v, nil
}

// VariantIndex returns the index of the named variant within cat.
func (r *Registry) VariantIndex(cat uint8, name string) (uint8, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if int(cat) >= len(r.varIdx) {
		return 0, fmt.Errorf("category %d: %w", cat, ErrUnknownCategory)
	}
	idx, ok := r.varIdx[cat][name]
	if !ok {
		return 0, fmt.Errorf("variant %q in category %d: %w", name, cat, ErrUnknownVariant)
	}
	return idx, nil
}

// VariantCount returns the number of variants in cat.
func (r *Registry) VariantCount(cat uint8) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if int(cat) >= len(r.variants) {
		return 0, fmt.Errorf("category %d: %w", cat, ErrUnknownCategory)
	}
	return len(r.variants[cat]), nil
}

func validateSpecNames(specs []VariantSpec) error {
	for _, spec := range specs {
		if err := validation.ValidateName(spec.Name); err != nil {
			return fmt.Errorf("variant name: %w", err)
		}
	}
	return nil
}

// checkArchetypeWeights enforces table membership: a spec provides a
// jawless or cyclops weight exactly when its category carries that
// table.
func checkArchetypeWeights(catName string, spec VariantSpec, hasJawless, hasCyclops bool) error {
	if (spec.JawlessWeight != nil) != hasJawless {
		return fmt.Errorf("jawless weight for variant %q in category %q: %w", spec.Name, catName, ErrWeightTableMismatch)
	}
	if (spec.CyclopsWeight != nil) != hasCyclops {
		return fmt.Errorf("cyclops weight for variant %q in category %q: %w", spec.Name, catName, ErrWeightTableMismatch)
	}
	return nil
}

// buildTables validates specs against cat's existing tables, appends
// the new weight entries, and returns the new variant records.
// existing is nil for a fresh category, where the first spec decides
// which archetype tables the category carries.
func buildTables(cat *Category, specs []VariantSpec, existing []Variant) ([]Variant, error) {
	hasJawless := cat.JawlessWeights != nil
	hasCyclops := cat.CyclopsWeights != nil
	if existing == nil && len(specs) > 0 {
		hasJawless = specs[0].JawlessWeight != nil
		hasCyclops = specs[0].CyclopsWeight != nil
	}

	cat.NormalWeights = cloneWeights(cat.NormalWeights)
	if hasJawless {
		cat.JawlessWeights = cloneWeights(cat.JawlessWeights)
	}
	if hasCyclops {
		cat.CyclopsWeights = cloneWeights(cat.CyclopsWeights)
	}

	seen := make(map[string]bool, len(specs))
	variants := make([]Variant, 0, len(specs))
	for _, spec := range specs {
		if seen[spec.Name] {
			return nil, fmt.Errorf("variant %q: %w", spec.Name, ErrNameExists)
		}
		seen[spec.Name] = true
		if err := checkArchetypeWeights(cat.Name, spec, hasJawless, hasCyclops); err != nil {
			return nil, err
		}

		cat.NormalWeights = append(cat.NormalWeights, spec.Weight)
		if hasJawless {
			cat.JawlessWeights = append(cat.JawlessWeights, *spec.JawlessWeight)
		}
		if hasCyclops {
			cat.CyclopsWeights = append(cat.CyclopsWeights, *spec.CyclopsWeight)
		}
		variants = append(variants, spec.Variant)
	}
	return variants, nil
}

func cloneWeights(w []uint16) []uint16 {
	out := make([]uint16, len(w))
	copy(out, w)
	return out
}

// readCount reads a stored uvarint count, treating absence as zero.
func readCount(txn *badgerdb.Txn, key []byte) (int, error) {
	val, err := storage.Get(txn, key)
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var n int
	if err := json.Unmarshal(val, &n); err != nil {
		return 0, err
	}
	return n, nil
}

func writeCount(txn *badgerdb.Txn, key []byte, n int) error {
	val, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return txn.Set(key, val)
}

func readJSON(txn *badgerdb.Txn, key []byte, out any) error {
	val, err := storage.Get(txn, key)
	if err != nil {
		return err
	}
	return json.Unmarshal(val, out)
}

// readJSONOptional is readJSON treating a missing key as a no-op.
func readJSONOptional(txn *badgerdb.Txn, key []byte, out any) error {
	_, err := readJSONFound(txn, key, out)
	return err
}

func readJSONFound(txn *badgerdb.Txn, key []byte, out any) (bool, error) {
	val, err := storage.Get(txn, key)
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(val, out)
}

func writeJSON(txn *badgerdb.Txn, key []byte, in any) error {
	val, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return txn.Set(key, val)
}
