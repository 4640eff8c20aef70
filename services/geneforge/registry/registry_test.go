// Copyright (C) 2025 Umbral Works (dev@umbralworks.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package registry

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	storage "github.com/umbralworks/geneforge/services/geneforge/storage/badger"
)

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	db, err := storage.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db, slog.New(slog.DiscardHandler))
}

func specs(names ...string) []VariantSpec {
	out := make([]VariantSpec, len(names))
	for i, n := range names {
		out[i] = VariantSpec{Variant: Variant{Name: n, Display: n}, Weight: 10}
	}
	return out
}

// TestAddCategory verifies index assignment and name lookups.
func TestAddCategory(t *testing.T) {
	r := testRegistry(t)
	ctx := context.Background()

	idx, err := r.AddCategory(ctx, Category{Name: "Background"}, specs("Red", "Blue"))
	require.NoError(t, err)
	assert.Equal(t, uint8(0), idx)

	idx, err = r.AddCategory(ctx, Category{Name: "Skull"}, specs("Bone", "Obsidian"))
	require.NoError(t, err)
	assert.Equal(t, uint8(1), idx)

	gotIdx, cat, err := r.CategoryByName("Skull")
	require.NoError(t, err)
	assert.Equal(t, uint8(1), gotIdx)
	assert.Equal(t, []uint16{10, 10}, cat.NormalWeights)

	vIdx, err := r.VariantIndex(1, "Obsidian")
	require.NoError(t, err)
	assert.Equal(t, uint8(1), vIdx)

	_, err = r.VariantIndex(1, "Missing")
	assert.ErrorIs(t, err, ErrUnknownVariant)
}

// TestAddCategoryDuplicateName verifies name collisions are rejected.
func TestAddCategoryDuplicateName(t *testing.T) {
	r := testRegistry(t)
	ctx := context.Background()

	_, err := r.AddCategory(ctx, Category{Name: "Skull"}, specs("Bone"))
	require.NoError(t, err)

	_, err = r.AddCategory(ctx, Category{Name: "Skull"}, specs("Other"))
	assert.ErrorIs(t, err, ErrNameExists)
}

// TestAddCategoryRejectsBadNames verifies names that would break the
// storage key encoding are refused up front.
func TestAddCategoryRejectsBadNames(t *testing.T) {
	r := testRegistry(t)
	ctx := context.Background()

	_, err := r.AddCategory(ctx, Category{Name: "bad:name"}, specs("Bone"))
	assert.Error(t, err)

	_, err = r.AddCategory(ctx, Category{Name: "Skull"}, specs("line\nbreak"))
	assert.Error(t, err)
}

// TestArchetypeTables verifies a jawless weight on the first variant
// creates the jawless table and every later variant must feed it.
func TestArchetypeTables(t *testing.T) {
	r := testRegistry(t)
	ctx := context.Background()

	zero, seventy := uint16(0), uint16(70)
	sp := []VariantSpec{
		{Variant: Variant{Name: "Goatee"}, Weight: 30, JawlessWeight: &zero},
		{Variant: Variant{Name: "None"}, Weight: 70, JawlessWeight: &seventy},
	}
	idx, err := r.AddCategory(ctx, Category{Name: "Beard"}, sp)
	require.NoError(t, err)

	cat, err := r.Category(idx)
	require.NoError(t, err)
	assert.Equal(t, []uint16{30, 70}, cat.NormalWeights)
	assert.Equal(t, []uint16{0, 70}, cat.JawlessWeights)
	assert.Nil(t, cat.CyclopsWeights)

	assert.Equal(t, []uint16{0, 70}, cat.WeightsFor(false, true))
	assert.Equal(t, []uint16{30, 70}, cat.WeightsFor(true, true))
}

// TestArchetypeTableMembership verifies mixed specs are rejected: once
// the first variant decides the category's tables, later variants must
// provide the same weights and no others.
func TestArchetypeTableMembership(t *testing.T) {
	r := testRegistry(t)
	ctx := context.Background()

	w := uint16(5)
	_, err := r.AddCategory(ctx, Category{Name: "Beard"}, []VariantSpec{
		{Variant: Variant{Name: "Goatee"}, Weight: 30, JawlessWeight: &w},
		{Variant: Variant{Name: "None"}, Weight: 70},
	})
	assert.ErrorIs(t, err, ErrWeightTableMismatch)

	_, err = r.AddCategory(ctx, Category{Name: "Beard"}, []VariantSpec{
		{Variant: Variant{Name: "Goatee"}, Weight: 30},
		{Variant: Variant{Name: "None"}, Weight: 70, CyclopsWeight: &w},
	})
	assert.ErrorIs(t, err, ErrWeightTableMismatch)
}

// TestAddVariantsExtendsTables verifies appended variants extend every
// table the category carries.
func TestAddVariantsExtendsTables(t *testing.T) {
	r := testRegistry(t)
	ctx := context.Background()

	cw, cw2 := uint16(5), uint16(10)
	sp := []VariantSpec{{Variant: Variant{Name: "Left"}, Weight: 50, CyclopsWeight: &cw}}
	idx, err := r.AddCategory(ctx, Category{Name: "Eye"}, sp)
	require.NoError(t, err)

	// Appending without a cyclops weight leaves the table short.
	err = r.AddVariants(ctx, "Eye", specs("Right"))
	assert.ErrorIs(t, err, ErrWeightTableMismatch)

	require.NoError(t, r.AddVariants(ctx, "Eye", []VariantSpec{
		{Variant: Variant{Name: "Right"}, Weight: 10, CyclopsWeight: &cw2},
	}))

	cat, err := r.Category(idx)
	require.NoError(t, err)
	assert.Equal(t, []uint16{50, 10}, cat.NormalWeights)
	assert.Equal(t, []uint16{5, 10}, cat.CyclopsWeights)

	err = r.AddVariants(ctx, "Eye", []VariantSpec{
		{Variant: Variant{Name: "Right"}, Weight: 10, CyclopsWeight: &cw2},
	})
	assert.ErrorIs(t, err, ErrNameExists)
}

// TestModifyVariant verifies rename and reweight.
func TestModifyVariant(t *testing.T) {
	r := testRegistry(t)
	ctx := context.Background()

	idx, err := r.AddCategory(ctx, Category{Name: "Hat"}, specs("Cap", "None"))
	require.NoError(t, err)

	err = r.ModifyVariant(ctx, "Hat", "Cap", VariantSpec{
		Variant: Variant{Name: "Crown", Display: "Crown"},
		Weight:  99,
	})
	require.NoError(t, err)

	vIdx, err := r.VariantIndex(idx, "Crown")
	require.NoError(t, err)
	assert.Equal(t, uint8(0), vIdx)

	_, err = r.VariantIndex(idx, "Cap")
	assert.ErrorIs(t, err, ErrUnknownVariant)

	cat, err := r.Category(idx)
	require.NoError(t, err)
	assert.Equal(t, []uint16{99, 10}, cat.NormalWeights)

	// Hat carries no jawless table, so a jawless weight is rejected.
	jw := uint16(1)
	err = r.ModifyVariant(ctx, "Hat", "Crown", VariantSpec{
		Variant: Variant{Name: "Crown"}, Weight: 99, JawlessWeight: &jw,
	})
	assert.ErrorIs(t, err, ErrWeightTableMismatch)
}

// TestLoadRoundTrip verifies a second registry over the same database
// reconstructs catalog, graphs, and roll config.
func TestLoadRoundTrip(t *testing.T) {
	db, err := storage.OpenInMemory()
	require.NoError(t, err)
	defer db.Close()

	log := slog.New(slog.DiscardHandler)
	ctx := context.Background()

	r := New(db, log)
	require.NoError(t, r.Load(ctx))

	_, err = r.AddCategory(ctx, Category{Name: "Background"}, specs("Red"))
	require.NoError(t, err)
	_, err = r.AddCategory(ctx, Category{Name: "Skull"}, specs("Bone", "Obsidian"))
	require.NoError(t, err)
	_, err = r.AddCategory(ctx, Category{Name: "Chin"}, specs("Bone", "Obsidian", "None"))
	require.NoError(t, err)
	_, err = r.AddCategory(ctx, Category{Name: "Eye Type"}, specs("Round", "Cyclops"))
	require.NoError(t, err)

	deps := []Dependency{{ID: LayerID{1, 1}, Correlated: []LayerID{{2, 1}}}}
	require.NoError(t, r.SetDependencies(ctx, deps))
	hiders := []Dependency{{ID: LayerID{3, 1}, Correlated: []LayerID{{2, 0}}}}
	require.NoError(t, r.SetHiders(ctx, hiders))

	rc := RollConfig{
		Skip:               []uint8{0},
		JawWeights:         []uint16{80, 20},
		BackgroundCategory: "Background",
		SkullCategory:      "Skull",
		ChinCategory:       "Chin",
		EyeTypeCategory:    "Eye Type",
		CyclopsVariant:     "Cyclops",
		NoneVariant:        "None",
	}
	require.NoError(t, r.SetRollConfig(ctx, rc))

	reloaded := New(db, log)
	require.NoError(t, reloaded.Load(ctx))

	assert.Equal(t, 4, reloaded.CategoryCount())
	idx, _, err := reloaded.CategoryByName("Eye Type")
	require.NoError(t, err)
	assert.Equal(t, uint8(3), idx)

	assert.Equal(t, []LayerID{{2, 1}}, reloaded.CorrelatedOf(LayerID{1, 1}))
	assert.Equal(t, []LayerID{{2, 0}}, reloaded.HiddenBy(LayerID{3, 1}))

	got, err := reloaded.RollConfig()
	require.NoError(t, err)
	assert.Equal(t, rc, *got)
}

// TestSetDependenciesRejectsChains verifies a correlated target that is
// itself a source is refused.
func TestSetDependenciesRejectsChains(t *testing.T) {
	r := testRegistry(t)
	ctx := context.Background()

	_, err := r.AddCategory(ctx, Category{Name: "A"}, specs("x", "y"))
	require.NoError(t, err)
	_, err = r.AddCategory(ctx, Category{Name: "B"}, specs("x", "y"))
	require.NoError(t, err)

	deps := []Dependency{
		{ID: LayerID{0, 0}, Correlated: []LayerID{{1, 0}}},
		{ID: LayerID{1, 0}, Correlated: []LayerID{{0, 1}}},
	}
	err = r.SetDependencies(ctx, deps)
	assert.ErrorIs(t, err, ErrDependencyCycle)
}

// TestSetDependenciesValidatesLayers verifies unknown ids are refused.
func TestSetDependenciesValidatesLayers(t *testing.T) {
	r := testRegistry(t)
	ctx := context.Background()

	_, err := r.AddCategory(ctx, Category{Name: "A"}, specs("x"))
	require.NoError(t, err)

	err = r.SetDependencies(ctx, []Dependency{{ID: LayerID{5, 0}}})
	assert.ErrorIs(t, err, ErrUnknownCategory)

	err = r.SetDependencies(ctx, []Dependency{{ID: LayerID{0, 9}}})
	assert.ErrorIs(t, err, ErrUnknownVariant)
}

// TestRollConfigValidation verifies jaw table arity and name checks.
func TestRollConfigValidation(t *testing.T) {
	r := testRegistry(t)
	ctx := context.Background()

	_, err := r.AddCategory(ctx, Category{Name: "Background"}, specs("Red"))
	require.NoError(t, err)

	_, err = r.RollConfig()
	assert.ErrorIs(t, err, ErrNoRollConfig)

	rc := RollConfig{
		JawWeights:         []uint16{1, 2, 3},
		BackgroundCategory: "Background",
		SkullCategory:      "Background",
		ChinCategory:       "Background",
		EyeTypeCategory:    "Background",
		CyclopsVariant:     "Red",
	}
	err = r.SetRollConfig(ctx, rc)
	assert.Error(t, err)

	rc.JawWeights = []uint16{1, 2}
	rc.SkullCategory = "Missing"
	err = r.SetRollConfig(ctx, rc)
	assert.ErrorIs(t, err, ErrUnknownCategory)
}
