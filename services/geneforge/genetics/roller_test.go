// Copyright (C) 2025 Umbral Works (dev@umbralworks.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package genetics

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umbralworks/geneforge/services/geneforge/registry"
	storage "github.com/umbralworks/geneforge/services/geneforge/storage/badger"
)

// scriptedSource replays a fixed draw sequence and counts consumption.
type scriptedSource struct {
	draws    []uint64
	consumed int
}

func (s *scriptedSource) NextUint64() uint64 {
	v := s.draws[s.consumed]
	s.consumed++
	return v
}

// mapLedger is an in-memory LedgerView.
type mapLedger map[string]bool

func (m mapLedger) Contains(fp []byte) (bool, error) { return m[string(fp)], nil }

func fixedTime() time.Time { return time.Unix(1700000000, 0) }

// testEntropy is a pinned entropy extension for deterministic rolls.
func testEntropy() []byte {
	return ExtendEntropy(42, fixedTime(), "tester", "roll-entropy")
}

func emptyRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	db, err := storage.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	reg := registry.New(db, slog.New(slog.DiscardHandler))
	require.NoError(t, reg.Load(context.Background()))
	return reg
}

func addCat(t *testing.T, reg *registry.Registry, name string, cat registry.Category, variants ...string) uint8 {
	t.Helper()
	cat.Name = name
	sp := make([]registry.VariantSpec, len(variants))
	for i, v := range variants {
		sp[i] = registry.VariantSpec{Variant: registry.Variant{Name: v, Display: v}, Weight: 1}
	}
	idx, err := reg.AddCategory(context.Background(), cat, sp)
	require.NoError(t, err)
	return idx
}

// basicConfig is Scenario A's trait space: background plus four plain
// two-variant categories, no archetype features, nothing skipped but
// the background.
func basicConfig(t *testing.T) *registry.Registry {
	reg := emptyRegistry(t)
	addCat(t, reg, "Background", registry.Category{}, "Red", "Blue")
	for _, name := range []string{"Base", "Marks", "Aura", "Crown"} {
		addCat(t, reg, name, registry.Category{}, name+" A", name+" B")
	}
	require.NoError(t, reg.SetRollConfig(context.Background(), registry.RollConfig{
		Skip:               []uint8{0},
		BackgroundCategory: "Background",
		NoneVariant:        "None",
	}))
	return reg
}

// TestBasicRoll rolls one unit against an empty ledger: a full-length
// gene with valid indexes and a background-stripped fingerprint.
func TestBasicRoll(t *testing.T) {
	reg := basicConfig(t)
	roller, err := NewRoller(reg)
	require.NoError(t, err)

	src, err := NewPrng(NewSeed("init"), testEntropy())
	require.NoError(t, err)

	batch := NewBatch()
	res, err := roller.Roll(src, 1, mapLedger{}, batch)
	require.NoError(t, err)

	require.Len(t, res.Gene, 5)
	assert.Equal(t, uint8(1), res.Gene[0])
	for i := 1; i < 5; i++ {
		assert.Less(t, res.Gene[i], uint8(2), "slot %d", i)
	}
	assert.Len(t, res.Fingerprint, 4)
	assert.True(t, batch.Contains(res.Fingerprint))
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, 0, res.PartialRerolls)
}

// TestDeterminism verifies identical (seed, entropy) reproduce the
// identical gene and differing entropy diverges the draw stream.
func TestDeterminism(t *testing.T) {
	reg := basicConfig(t)
	roller, err := NewRoller(reg)
	require.NoError(t, err)

	seed := NewSeed("init")
	ext := testEntropy()

	roll := func(entropy []byte) []uint8 {
		src, err := NewPrng(seed, entropy)
		require.NoError(t, err)
		res, err := roller.Roll(src, 0, mapLedger{}, NewBatch())
		require.NoError(t, err)
		return res.Gene
	}

	first := roll(ext)
	second := roll(ext)
	assert.Equal(t, first, second)

	var diverged bool
	for i := 0; i < 8 && !diverged; i++ {
		other := roll(ExtendEntropy(uint64(100+i), fixedTime(), "someone-else", "x"))
		diverged = !assert.ObjectsAreEqual(first, other)
	}
	assert.True(t, diverged, "eight differing entropies never diverged")
}

// TestDependencyPropagation is Scenario B: settling the source variant
// forces the correlated slot without an independent draw.
func TestDependencyPropagation(t *testing.T) {
	reg := emptyRegistry(t)
	ctx := context.Background()
	addCat(t, reg, "Background", registry.Category{}, "Red")
	addCat(t, reg, "Base", registry.Category{}, "A", "B")
	addCat(t, reg, "Source", registry.Category{}, "W", "X")
	addCat(t, reg, "Target", registry.Category{}, "Y", "N1", "N2")

	require.NoError(t, reg.SetDependencies(ctx, []registry.Dependency{
		{ID: registry.LayerID{Category: 2, Variant: 1}, Correlated: []registry.LayerID{{Category: 3, Variant: 0}}},
	}))
	require.NoError(t, reg.SetRollConfig(ctx, registry.RollConfig{
		Skip:               []uint8{0},
		BackgroundCategory: "Background",
		NoneVariant:        "None",
	}))

	roller, err := NewRoller(reg)
	require.NoError(t, err)

	// One draw for Base, one for Source landing on "X". Target must
	// settle by propagation, consuming nothing.
	src := &scriptedSource{draws: []uint64{0, 1}}
	res, err := roller.Roll(src, 0, mapLedger{}, NewBatch())
	require.NoError(t, err)

	assert.Equal(t, uint8(1), res.Gene[2])
	assert.Equal(t, uint8(0), res.Gene[3])
	assert.Equal(t, 2, src.consumed)
}

// TestCollisionPartialReroll is Scenario C: a ledger hit clears only
// the free categories and the archetype draws are not repeated.
func TestCollisionPartialReroll(t *testing.T) {
	reg := emptyRegistry(t)
	ctx := context.Background()
	addCat(t, reg, "Background", registry.Category{}, "Red")
	addCat(t, reg, "Base", registry.Category{}, "A", "B")
	addCat(t, reg, "Marks", registry.Category{}, "A", "B")
	addCat(t, reg, "Aura", registry.Category{}, "A", "B")

	require.NoError(t, reg.SetRollConfig(ctx, registry.RollConfig{
		Skip:               []uint8{0},
		JawWeights:         []uint16{1, 1},
		BackgroundCategory: "Background",
		NoneVariant:        "None",
	}))

	roller, err := NewRoller(reg)
	require.NoError(t, err)

	// Draws: jaw (0 = jawed), then categories 1..3 produce gene G,
	// then the partial pass redraws 1..3 producing G'. The jaw flag
	// must not be redrawn, so exactly 7 draws are consumed.
	src := &scriptedSource{draws: []uint64{0, 0, 0, 0, 1, 0, 0}}

	// Pre-seed the ledger with G's fingerprint: [0,0,0] + jawed flag.
	collided := string([]byte{0, 0, 0, 0})
	ledger := mapLedger{collided: true}

	batch := NewBatch()
	res, err := roller.Roll(src, 0, ledger, batch)
	require.NoError(t, err)

	assert.Equal(t, []uint8{0, 1, 0, 0}, res.Gene)
	assert.Equal(t, 1, res.Attempts, "expected a partial reroll, not a full one")
	assert.Equal(t, 1, res.PartialRerolls)
	assert.Equal(t, 7, src.consumed)

	// G was never recorded anywhere.
	assert.False(t, batch.Contains([]byte(collided)))
	require.Len(t, batch.Fingerprints(), 1)
	assert.Equal(t, res.Fingerprint, batch.Fingerprints()[0])
}

// TestForcedVariantOverride is Scenario D: with the cyclops archetype
// active, a category declaring a forced-cyclops variant settles to it
// regardless of its weight table.
func TestForcedVariantOverride(t *testing.T) {
	reg := emptyRegistry(t)
	ctx := context.Background()
	addCat(t, reg, "Background", registry.Category{}, "Red")
	addCat(t, reg, "Eye Type", registry.Category{}, "Round", "Cyclops")
	forced := uint8(2)
	addCat(t, reg, "Eyewear", registry.Category{ForcedCyclops: &forced}, "Patch", "Monocle", "Goggles")
	addCat(t, reg, "Base", registry.Category{}, "A", "B")

	require.NoError(t, reg.SetRollConfig(ctx, registry.RollConfig{
		Skip:               []uint8{0},
		BackgroundCategory: "Background",
		EyeTypeCategory:    "Eye Type",
		CyclopsVariant:     "Cyclops",
		NoneVariant:        "None",
	}))

	roller, err := NewRoller(reg)
	require.NoError(t, err)

	// Eye draw lands on Cyclops; Eyewear is forced without a draw;
	// one draw remains for Base.
	src := &scriptedSource{draws: []uint64{1, 0}}
	res, err := roller.Roll(src, 0, mapLedger{}, NewBatch())
	require.NoError(t, err)

	assert.True(t, res.Cyclops)
	assert.Equal(t, uint8(2), res.Gene[2])
	assert.Equal(t, 2, src.consumed)
}

// TestBatchIntraCollision is Scenario E: three units in one batch over
// a collision-prone space must come out pairwise distinct.
func TestBatchIntraCollision(t *testing.T) {
	reg := emptyRegistry(t)
	ctx := context.Background()
	addCat(t, reg, "Background", registry.Category{}, "Red")
	addCat(t, reg, "Base", registry.Category{}, "A", "B", "C")

	require.NoError(t, reg.SetRollConfig(ctx, registry.RollConfig{
		Skip:               []uint8{0},
		BackgroundCategory: "Background",
		NoneVariant:        "None",
	}))

	roller, err := NewRoller(reg)
	require.NoError(t, err)

	src, err := NewPrng(NewSeed("init"), testEntropy())
	require.NoError(t, err)

	batch := NewBatch()
	seen := make(map[string]bool)
	for i := 0; i < 3; i++ {
		res, err := roller.Roll(src, 0, mapLedger{}, batch)
		require.NoError(t, err)
		assert.False(t, seen[string(res.Fingerprint)], "unit %d repeated a fingerprint", i)
		seen[string(res.Fingerprint)] = true
	}
	assert.Len(t, batch.Fingerprints(), 3)
}

// TestFullRerollWhenNothingFree verifies EXHAUSTED restarts at the
// archetype phase when every category is pinned.
func TestFullRerollWhenNothingFree(t *testing.T) {
	reg := emptyRegistry(t)
	ctx := context.Background()
	addCat(t, reg, "Background", registry.Category{}, "Red")
	forcedA := uint8(0)
	addCat(t, reg, "Eye Type", registry.Category{}, "Round", "Cyclops")
	addCat(t, reg, "Relic", registry.Category{ForcedCyclops: &forcedA}, "Orb", "Staff")

	require.NoError(t, reg.SetRollConfig(ctx, registry.RollConfig{
		Skip:               []uint8{0},
		BackgroundCategory: "Background",
		EyeTypeCategory:    "Eye Type",
		CyclopsVariant:     "Cyclops",
		NoneVariant:        "None",
	}))

	roller, err := NewRoller(reg)
	require.NoError(t, err)

	// First attempt: eye draw = Cyclops, Relic forced to Orb, and the
	// resulting fingerprint is already taken. No free category exists,
	// so the roller must restart at the archetype. Second attempt: eye
	// draw = Round, Relic drawn normally.
	taken := string([]byte{0, 1}) // relic Orb + cyclops flag
	src := &scriptedSource{draws: []uint64{1, 0, 1}}
	res, err := roller.Roll(src, 0, mapLedger{taken: true}, NewBatch())
	require.NoError(t, err)

	assert.Equal(t, 2, res.Attempts)
	assert.False(t, res.Cyclops)
	assert.Equal(t, uint8(1), res.Gene[2])
}

// TestMaxAttempts verifies the configured cap surfaces
// ErrAttemptsExhausted instead of looping forever.
func TestMaxAttempts(t *testing.T) {
	reg := emptyRegistry(t)
	ctx := context.Background()
	addCat(t, reg, "Background", registry.Category{}, "Red")
	addCat(t, reg, "Base", registry.Category{}, "Only")

	require.NoError(t, reg.SetRollConfig(ctx, registry.RollConfig{
		Skip:               []uint8{0},
		BackgroundCategory: "Background",
		NoneVariant:        "None",
	}))

	roller, err := NewRoller(reg)
	require.NoError(t, err)
	roller.MaxAttempts = 3

	// The only possible fingerprint is already issued.
	src, err := NewPrng(NewSeed("init"), testEntropy())
	require.NoError(t, err)
	_, err = roller.Roll(src, 0, mapLedger{string([]byte{0}): true}, NewBatch())
	assert.ErrorIs(t, err, ErrAttemptsExhausted)
}

// TestZeroWeightTableFatal verifies a zero-sum table aborts the roll.
func TestZeroWeightTableFatal(t *testing.T) {
	reg := emptyRegistry(t)
	ctx := context.Background()
	addCat(t, reg, "Background", registry.Category{}, "Red")

	sp := []registry.VariantSpec{{Variant: registry.Variant{Name: "A"}, Weight: 0}}
	_, err := reg.AddCategory(ctx, registry.Category{Name: "Broken"}, sp)
	require.NoError(t, err)

	require.NoError(t, reg.SetRollConfig(ctx, registry.RollConfig{
		Skip:               []uint8{0},
		BackgroundCategory: "Background",
		NoneVariant:        "None",
	}))

	roller, err := NewRoller(reg)
	require.NoError(t, err)

	src, err := NewPrng(NewSeed("init"), testEntropy())
	require.NoError(t, err)
	_, err = roller.Roll(src, 0, mapLedger{}, NewBatch())
	assert.ErrorIs(t, err, ErrZeroWeightTable)
}

// TestJawlessChinCompanion verifies the skull draw picks the matching
// chin by name when jawed and forces None when jawless.
func TestJawlessChinCompanion(t *testing.T) {
	reg := emptyRegistry(t)
	ctx := context.Background()
	addCat(t, reg, "Background", registry.Category{}, "Red")
	addCat(t, reg, "Skull", registry.Category{}, "Bone", "Obsidian")
	addCat(t, reg, "Chin", registry.Category{}, "None", "Bone", "Obsidian")

	require.NoError(t, reg.SetRollConfig(ctx, registry.RollConfig{
		Skip:               []uint8{0},
		JawWeights:         []uint16{1, 1},
		BackgroundCategory: "Background",
		SkullCategory:      "Skull",
		ChinCategory:       "Chin",
		NoneVariant:        "None",
	}))

	roller, err := NewRoller(reg)
	require.NoError(t, err)

	// Jawed: jaw draw 0, skull draw lands on Obsidian, chin follows.
	src := &scriptedSource{draws: []uint64{0, 1}}
	res, err := roller.Roll(src, 0, mapLedger{}, NewBatch())
	require.NoError(t, err)
	assert.False(t, res.Jawless)
	assert.Equal(t, uint8(1), res.Gene[1])
	assert.Equal(t, uint8(2), res.Gene[2], "chin should match skull by name")

	// Jawless: chin forced to None regardless of the skull.
	src = &scriptedSource{draws: []uint64{1, 1}}
	res, err = roller.Roll(src, 0, mapLedger{}, NewBatch())
	require.NoError(t, err)
	assert.True(t, res.Jawless)
	assert.Equal(t, uint8(0), res.Gene[2])
}
