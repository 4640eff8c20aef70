// Copyright (C) 2025 Umbral Works (dev@umbralworks.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package reveal projects a token's hidden gene into its public image
// one trait at a time. A freshly minted token shows Unknown in every
// slot; owners burn down the unknowns with random draws, targeted picks,
// or a final reveal-all, each gated by its own cooldown.
package reveal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/umbralworks/geneforge/services/geneforge/genetics"
	"github.com/umbralworks/geneforge/services/geneforge/registry"
)

var (
	// ErrHalted is returned while an admin has paused reveals.
	ErrHalted = errors.New("reveals have been halted")
	// ErrFirstRevealRandom is returned when a targeted or full reveal
	// is attempted on a token that has never been revealed.
	ErrFirstRevealRandom = errors.New("your first reveal must be random")
	// ErrCooldown is returned while a token's cooldown is still
	// running; the wrapping message carries the ready time.
	ErrCooldown = errors.New("reveal cooldown has not expired")
	// ErrAllRevealed is returned when no unknown traits remain.
	ErrAllRevealed = errors.New("all traits have already been revealed")
	// ErrAlreadyRevealed is returned when the targeted trait is
	// already visible.
	ErrAlreadyRevealed = errors.New("that trait has already been revealed")
	// ErrNotRevealable is returned when the targeted trait is in the
	// skip set. Those slots only clear when the final eligible unknown
	// is revealed.
	ErrNotRevealable = errors.New("that trait can not be revealed individually")
)

// Cooldowns are the minimum waits between reveals on one token, keyed
// by the kind of reveal being attempted.
type Cooldowns struct {
	Random   time.Duration
	Targeted time.Duration
	All      time.Duration
}

// Revealer applies reveal operations to stored token images.
//
// Thread Safety: safe for concurrent use. Operations on the same token
// are serialized by the caller holding the service mint lock; halt and
// cooldown settings are guarded here.
type Revealer struct {
	store *Store
	reg   *registry.Registry
	log   *slog.Logger

	mu   sync.RWMutex
	cool Cooldowns
	halt bool

	// now is swappable for tests.
	now func() time.Time
}

// New builds a revealer.
func New(store *Store, reg *registry.Registry, cool Cooldowns, log *slog.Logger) *Revealer {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Revealer{
		store: store,
		reg:   reg,
		log:   log.With("component", "reveal"),
		cool:  cool,
		now:   time.Now,
	}
}

// SetHalt pauses or resumes all reveal operations.
func (r *Revealer) SetHalt(halt bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.halt = halt
}

// Halted reports whether reveals are paused.
func (r *Revealer) Halted() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.halt
}

// SetCooldowns replaces the cooldown periods.
func (r *Revealer) SetCooldowns(cool Cooldowns) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cool = cool
}

// CooldownSettings returns the current cooldown periods.
func (r *Revealer) CooldownSettings() Cooldowns {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cool
}

// Random reveals one randomly chosen unknown trait.
//
// Description:
//
//	Eligible slots are those still Unknown and not in the skip set. One
//	is drawn uniformly from src and set to its natural value, along
//	with any correlated traits it depends on. When only one eligible
//	unknown remains no draw is consumed and the whole image snaps to
//	natural, clearing the skip-set markers too. Random is the only kind
//	permitted as a token's first reveal.
//
// Outputs:
//
//	[]string - Names of the categories revealed by this call.
func (r *Revealer) Random(ctx context.Context, tokenID string, src genetics.DrawSource) ([]string, error) {
	img, last, revealed, err := r.begin(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	now := r.now()
	if revealed {
		if err := r.checkCooldown(now, last, r.cooldown().Random, "random"); err != nil {
			return nil, err
		}
	}

	skip := r.skipSet()
	unknowns := eligibleUnknowns(img.Current, skip)
	if len(unknowns) == 0 {
		return nil, ErrAllRevealed
	}

	img.Previous = append([]uint8(nil), img.Current...)
	var catIdx uint8
	if len(unknowns) == 1 {
		// Last one: no draw needed, and skipped slots lose their
		// Unknown markers as well.
		catIdx = unknowns[0]
		img.Current = append([]uint8(nil), img.Natural...)
	} else {
		catIdx = unknowns[src.NextUint64()%uint64(len(unknowns))]
		img.Current[catIdx] = img.Natural[catIdx]
		r.revealDependencies(&img, catIdx)
	}

	if err := r.store.commit(ctx, tokenID, img, now); err != nil {
		return nil, err
	}
	name, err := r.categoryName(catIdx)
	if err != nil {
		return nil, err
	}
	r.log.Info("random reveal", "token", tokenID, "category", name)
	return []string{name}, nil
}

// Targeted reveals one named category.
func (r *Revealer) Targeted(ctx context.Context, tokenID, category string) ([]string, error) {
	img, last, revealed, err := r.begin(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	if !revealed {
		return nil, ErrFirstRevealRandom
	}
	now := r.now()
	if err := r.checkCooldown(now, last, r.cooldown().Targeted, "targeted"); err != nil {
		return nil, err
	}

	catIdx, _, err := r.reg.CategoryByName(category)
	if err != nil {
		return nil, fmt.Errorf("%s is not a valid trait category: %w", category, err)
	}
	skip := r.skipSet()
	if skip[catIdx] {
		return nil, fmt.Errorf("%s: %w", category, ErrNotRevealable)
	}
	if img.Current[catIdx] != Unknown {
		return nil, ErrAlreadyRevealed
	}

	img.Previous = append([]uint8(nil), img.Current...)
	if othersRemain(img.Current, skip, catIdx) {
		img.Current[catIdx] = img.Natural[catIdx]
		r.revealDependencies(&img, catIdx)
	} else {
		// This is the last eligible unknown.
		img.Current = append([]uint8(nil), img.Natural...)
	}

	if err := r.store.commit(ctx, tokenID, img, now); err != nil {
		return nil, err
	}
	r.log.Info("targeted reveal", "token", tokenID, "category", category)
	return []string{category}, nil
}

// All reveals every remaining trait at once.
func (r *Revealer) All(ctx context.Context, tokenID string) ([]string, error) {
	img, last, revealed, err := r.begin(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	if !revealed {
		return nil, ErrFirstRevealRandom
	}
	now := r.now()
	if err := r.checkCooldown(now, last, r.cooldown().All, "all"); err != nil {
		return nil, err
	}

	skip := r.skipSet()
	var names []string
	for _, idx := range eligibleUnknowns(img.Current, skip) {
		name, err := r.categoryName(idx)
		if err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	if len(names) == 0 {
		return nil, ErrAllRevealed
	}

	img.Previous = append([]uint8(nil), img.Current...)
	img.Current = append([]uint8(nil), img.Natural...)
	if err := r.store.commit(ctx, tokenID, img, now); err != nil {
		return nil, err
	}
	r.log.Info("full reveal", "token", tokenID, "categories", len(names))
	return names, nil
}

func (r *Revealer) begin(ctx context.Context, tokenID string) (Image, time.Time, bool, error) {
	if r.Halted() {
		return Image{}, time.Time{}, false, ErrHalted
	}
	img, err := r.store.Image(ctx, tokenID)
	if err != nil {
		return Image{}, time.Time{}, false, err
	}
	last, revealed, err := r.store.RevealedAt(ctx, tokenID)
	if err != nil {
		return Image{}, time.Time{}, false, err
	}
	return img, last, revealed, nil
}

func (r *Revealer) cooldown() Cooldowns {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cool
}

func (r *Revealer) checkCooldown(now, last time.Time, cool time.Duration, kind string) error {
	ready := last.Add(cool)
	if now.Before(ready) {
		return fmt.Errorf("cannot do a %s reveal until %s: %w",
			kind, ready.UTC().Format(time.RFC3339), ErrCooldown)
	}
	return nil
}

func (r *Revealer) skipSet() map[uint8]bool {
	rc, err := r.reg.RollConfig()
	if err != nil {
		return nil
	}
	return rc.SkipSet()
}

func (r *Revealer) categoryName(idx uint8) (string, error) {
	cat, err := r.reg.Category(idx)
	if err != nil {
		return "", err
	}
	return cat.Name, nil
}

// revealDependencies copies the natural value of every trait correlated
// with the just-revealed one, so multi-layer traits never show partially.
func (r *Revealer) revealDependencies(img *Image, catIdx uint8) {
	id := registry.LayerID{Category: catIdx, Variant: img.Current[catIdx]}
	for _, cor := range r.reg.CorrelatedOf(id) {
		img.Current[cor.Category] = img.Natural[cor.Category]
	}
}

func eligibleUnknowns(current []uint8, skip map[uint8]bool) []uint8 {
	var out []uint8
	for i, v := range current {
		if v == Unknown && !skip[uint8(i)] {
			out = append(out, uint8(i))
		}
	}
	return out
}

// othersRemain reports whether any eligible unknown besides target is
// left.
func othersRemain(current []uint8, skip map[uint8]bool, target uint8) bool {
	for i, v := range current {
		if uint8(i) != target && v == Unknown && !skip[uint8(i)] {
			return true
		}
	}
	return false
}
