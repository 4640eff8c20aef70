// Copyright (C) 2025 Umbral Works (dev@umbralworks.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package reveal

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

type scriptedSource struct {
	draws    []uint64
	consumed int
}

func (s *scriptedSource) NextUint64() uint64 {
	v := s.draws[s.consumed]
	s.consumed++
	return v
}

type fixture struct {
	rev   *Revealer
	store *Store
	clock time.Time
}

func (f *fixture) advance(d time.Duration) { f.clock = f.clock.Add(d) }

// newFixture builds Background (skipped) plus Base, Marks, Aura with a
// dependency from Base variant 1 onto Aura.
func newFixture(t *testing.T, cool Cooldowns) *fixture {
	t.Helper()
	db, err := storage.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	reg := registry.New(db, slog.New(slog.DiscardHandler))
	require.NoError(t, reg.Load(ctx))
	for _, name := range []string{"Background", "Base", "Marks", "Aura"} {
		sp := make([]registry.VariantSpec, 3)
		for i := range sp {
			vn := name + string(rune('A'+i))
			sp[i] = registry.VariantSpec{Variant: registry.Variant{Name: vn, Display: vn}, Weight: 1}
		}
		_, err := reg.AddCategory(ctx, registry.Category{Name: name}, sp)
		require.NoError(t, err)
	}
	require.NoError(t, reg.SetRollConfig(ctx, registry.RollConfig{
		Skip:               []uint8{0},
		BackgroundCategory: "Background",
		NoneVariant:        "None",
	}))
	require.NoError(t, reg.SetDependencies(ctx, []registry.Dependency{
		{
			ID:         registry.LayerID{Category: 1, Variant: 1},
			Correlated: []registry.LayerID{{Category: 3, Variant: 1}},
		},
	}))

	f := &fixture{
		store: NewStore(db),
		clock: time.Unix(1700000000, 0),
	}
	f.rev = New(f.store, reg, cool, nil)
	f.rev.now = func() time.Time { return f.clock }
	return f
}

func (f *fixture) mint(t *testing.T, tokenID string, natural []uint8) {
	t.Helper()
	require.NoError(t, f.store.Save(context.Background(), tokenID, NewImage(natural)))
}

func TestNewImageAllUnknown(t *testing.T) {
	img := NewImage([]uint8{2, 1, 0, 1})
	assert.Equal(t, []uint8{Unknown, Unknown, Unknown, Unknown}, img.Current)
	assert.Equal(t, []uint8{2, 1, 0, 1}, img.Natural)
}

func TestFirstRevealMustBeRandom(t *testing.T) {
	f := newFixture(t, Cooldowns{})
	f.mint(t, "tok1", []uint8{2, 0, 1, 2})
	ctx := context.Background()

	_, err := f.rev.Targeted(ctx, "tok1", "Marks")
	assert.ErrorIs(t, err, ErrFirstRevealRandom)
	_, err = f.rev.All(ctx, "tok1")
	assert.ErrorIs(t, err, ErrFirstRevealRandom)
}

func TestRandomRevealOne(t *testing.T) {
	f := newFixture(t, Cooldowns{})
	f.mint(t, "tok1", []uint8{2, 0, 1, 2})
	ctx := context.Background()

	// Eligible unknowns are categories 1, 2, 3; draw 1 picks Marks.
	src := &scriptedSource{draws: []uint64{1}}
	names, err := f.rev.Random(ctx, "tok1", src)
	require.NoError(t, err)
	assert.Equal(t, []string{"Marks"}, names)

	img, err := f.store.Image(ctx, "tok1")
	require.NoError(t, err)
	assert.Equal(t, []uint8{Unknown, Unknown, 1, Unknown}, img.Current)
	assert.Equal(t, []uint8{Unknown, Unknown, Unknown, Unknown}, img.Previous)
}

func TestRandomRevealDependencies(t *testing.T) {
	f := newFixture(t, Cooldowns{})
	// Base is variant 1, which carries Aura with it.
	f.mint(t, "tok1", []uint8{0, 1, 2, 1})
	ctx := context.Background()

	src := &scriptedSource{draws: []uint64{0}}
	names, err := f.rev.Random(ctx, "tok1", src)
	require.NoError(t, err)
	assert.Equal(t, []string{"Base"}, names)

	img, err := f.store.Image(ctx, "tok1")
	require.NoError(t, err)
	assert.Equal(t, []uint8{Unknown, 1, Unknown, 1}, img.Current)
}

func TestRandomCooldown(t *testing.T) {
	f := newFixture(t, Cooldowns{Random: time.Hour})
	f.mint(t, "tok1", []uint8{0, 0, 0, 0})
	ctx := context.Background()

	// The first reveal ignores the cooldown.
	_, err := f.rev.Random(ctx, "tok1", &scriptedSource{draws: []uint64{0}})
	require.NoError(t, err)

	_, err = f.rev.Random(ctx, "tok1", &scriptedSource{draws: []uint64{0}})
	assert.ErrorIs(t, err, ErrCooldown)

	f.advance(time.Hour)
	_, err = f.rev.Random(ctx, "tok1", &scriptedSource{draws: []uint64{0}})
	assert.NoError(t, err)
}

func TestRandomLastUnknownSnapsToNatural(t *testing.T) {
	f := newFixture(t, Cooldowns{})
	f.mint(t, "tok1", []uint8{2, 0, 1, 2})
	ctx := context.Background()

	img, err := f.store.Image(ctx, "tok1")
	require.NoError(t, err)
	img.Current = []uint8{Unknown, 0, 1, Unknown}
	require.NoError(t, f.store.Save(ctx, "tok1", img))

	// Only Aura is eligible, so no draw is consumed and the skipped
	// background clears too.
	src := &scriptedSource{}
	names, err := f.rev.Random(ctx, "tok1", src)
	require.NoError(t, err)
	assert.Equal(t, []string{"Aura"}, names)
	assert.Zero(t, src.consumed)

	img, err = f.store.Image(ctx, "tok1")
	require.NoError(t, err)
	assert.Equal(t, []uint8{2, 0, 1, 2}, img.Current)
}

func TestTargetedReveal(t *testing.T) {
	f := newFixture(t, Cooldowns{})
	f.mint(t, "tok1", []uint8{2, 0, 1, 2})
	ctx := context.Background()

	_, err := f.rev.Random(ctx, "tok1", &scriptedSource{draws: []uint64{0}})
	require.NoError(t, err)

	names, err := f.rev.Targeted(ctx, "tok1", "Marks")
	require.NoError(t, err)
	assert.Equal(t, []string{"Marks"}, names)

	_, err = f.rev.Targeted(ctx, "tok1", "Marks")
	assert.ErrorIs(t, err, ErrAlreadyRevealed)

	_, err = f.rev.Targeted(ctx, "tok1", "Nope")
	assert.ErrorIs(t, err, registry.ErrUnknownCategory)

	// The skipped background cannot be picked while still hidden.
	_, err = f.rev.Targeted(ctx, "tok1", "Background")
	assert.ErrorIs(t, err, ErrNotRevealable)

	// Aura is the last eligible unknown; targeting it clears the
	// skipped background marker as well.
	_, err = f.rev.Targeted(ctx, "tok1", "Aura")
	require.NoError(t, err)
	img, err := f.store.Image(ctx, "tok1")
	require.NoError(t, err)
	assert.Equal(t, []uint8{2, 0, 1, 2}, img.Current)
}

func TestAllReveal(t *testing.T) {
	f := newFixture(t, Cooldowns{})
	f.mint(t, "tok1", []uint8{2, 0, 1, 2})
	ctx := context.Background()

	_, err := f.rev.Random(ctx, "tok1", &scriptedSource{draws: []uint64{0}})
	require.NoError(t, err)

	names, err := f.rev.All(ctx, "tok1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Marks", "Aura"}, names)

	img, err := f.store.Image(ctx, "tok1")
	require.NoError(t, err)
	assert.Equal(t, []uint8{2, 0, 1, 2}, img.Current)

	_, err = f.rev.All(ctx, "tok1")
	assert.ErrorIs(t, err, ErrAllRevealed)
}

func TestHalt(t *testing.T) {
	f := newFixture(t, Cooldowns{})
	f.mint(t, "tok1", []uint8{0, 0, 0, 0})
	ctx := context.Background()

	f.rev.SetHalt(true)
	_, err := f.rev.Random(ctx, "tok1", &scriptedSource{draws: []uint64{0}})
	assert.ErrorIs(t, err, ErrHalted)

	f.rev.SetHalt(false)
	_, err = f.rev.Random(ctx, "tok1", &scriptedSource{draws: []uint64{0}})
	assert.NoError(t, err)
}

func TestUnknownToken(t *testing.T) {
	f := newFixture(t, Cooldowns{})
	_, err := f.rev.Random(context.Background(), "missing", &scriptedSource{})
	assert.ErrorIs(t, err, ErrUnknownToken)
}

func TestCooldownSettings(t *testing.T) {
	f := newFixture(t, Cooldowns{Random: time.Minute})
	assert.Equal(t, time.Minute, f.rev.CooldownSettings().Random)
	f.rev.SetCooldowns(Cooldowns{All: time.Hour})
	assert.Equal(t, time.Hour, f.rev.CooldownSettings().All)
	assert.Zero(t, f.rev.CooldownSettings().Random)
}
