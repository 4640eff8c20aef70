// Copyright (C) 2025 Umbral Works (dev@umbralworks.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package genetics implements gene generation: the seeded draw source,
// the weighted sampler, the archetype-first roller with its partial and
// full reroll tiers, and the fingerprint canonicalizer used for
// duplicate detection.
//
// A gene is a fixed-length array of variant indexes, one slot per
// registry category. Generation settles the archetype first (jaw flag,
// base skull with its companion chin, eye configuration), because those
// outcomes select which weight tables and forced-variant overrides the
// remaining categories use. Every accepted gene's fingerprint must be
// absent from the persisted ledger and from the current batch.
//
// Rolling is not safe for concurrent use; the owning service
// serializes generation behind a single mutex and commits each batch's
// writes in one storage transaction. A Roller is read-only after
// construction, so Fingerprint may be called concurrently.
package genetics

import (
	"fmt"

	"github.com/umbralworks/geneforge/services/geneforge/registry"
)

// LedgerView is the read side of the fingerprint ledger consulted
// during COMPLETE_CHECK.
type LedgerView interface {
	Contains(fp []byte) (bool, error)
}

// Batch is the transient supplement holding fingerprints produced
// earlier in the same request but not yet committed, so the units of
// one batch cannot collide with each other.
type Batch struct {
	set   map[string]bool
	order [][]byte
}

// NewBatch returns an empty batch supplement.
func NewBatch() *Batch {
	return &Batch{set: make(map[string]bool)}
}

// Contains reports whether fp was produced earlier in this batch.
func (b *Batch) Contains(fp []byte) bool {
	return b.set[string(fp)]
}

// Add records fp in the supplement.
func (b *Batch) Add(fp []byte) {
	b.set[string(fp)] = true
	b.order = append(b.order, fp)
}

// Fingerprints returns the batch's fingerprints in production order.
func (b *Batch) Fingerprints() [][]byte {
	return b.order
}

// Result is one accepted gene.
type Result struct {
	// Gene holds one variant index per category.
	Gene []uint8

	// Fingerprint is the canonicalized comparison form of Gene.
	Fingerprint []byte

	// Cyclops and Jawless are the archetype flags settled by the
	// archetype phase.
	Cyclops bool
	Jawless bool

	// Attempts counts archetype passes (1 = no full reroll happened).
	Attempts int

	// PartialRerolls counts collisions absorbed by redrawing only the
	// free categories.
	PartialRerolls int
}

// Roller generates genes against a registry snapshot.
//
// Construction resolves every configured category and variant name once
// so the roll loop works purely on indexes. Build a fresh Roller after
// any admin change to the catalog.
type Roller struct {
	reg *registry.Registry
	rc  *registry.RollConfig

	// MaxAttempts caps uniqueness checks per unit, counting partial and
	// full rerolls alike. Zero means uncapped: a trait space smaller
	// than the requested supply will loop forever, which operators opt
	// into by leaving the cap unset.
	MaxAttempts int

	bgIdx    uint8
	skullIdx uint8
	chinIdx  uint8
	eyeIdx   uint8
	hasJaw   bool
	hasSkull bool
	hasEye   bool
	cyclops  uint8

	skip  map[uint8]bool
	strip map[uint8]bool
	none  map[uint8]uint8
}

// NewRoller builds a Roller from the registry's stored roll config.
func NewRoller(reg *registry.Registry) (*Roller, error) {
	rc, err := reg.RollConfig()
	if err != nil {
		return nil, err
	}

	r := &Roller{
		reg:   reg,
		rc:    rc,
		skip:  rc.SkipSet(),
		strip: make(map[uint8]bool),
		none:  make(map[uint8]uint8),
	}

	r.bgIdx, _, err = reg.CategoryByName(rc.BackgroundCategory)
	if err != nil {
		return nil, fmt.Errorf("background: %w", err)
	}
	r.strip[r.bgIdx] = true
	r.hasJaw = len(rc.JawWeights) == 2

	if rc.SkullCategory != "" {
		r.skullIdx, _, err = reg.CategoryByName(rc.SkullCategory)
		if err != nil {
			return nil, fmt.Errorf("skull: %w", err)
		}
		r.chinIdx, _, err = reg.CategoryByName(rc.ChinCategory)
		if err != nil {
			return nil, fmt.Errorf("chin: %w", err)
		}
		r.hasSkull = true
		// The chin is fully determined by the skull draw and the jaw
		// flag, so it carries no information of its own.
		r.strip[r.chinIdx] = true
	}

	if rc.EyeTypeCategory != "" {
		r.eyeIdx, _, err = reg.CategoryByName(rc.EyeTypeCategory)
		if err != nil {
			return nil, fmt.Errorf("eye type: %w", err)
		}
		r.cyclops, err = reg.VariantIndex(r.eyeIdx, rc.CyclopsVariant)
		if err != nil {
			return nil, fmt.Errorf("cyclops variant: %w", err)
		}
		r.hasEye = true
		// The eye configuration is represented by the appended cyclops
		// flag.
		r.strip[r.eyeIdx] = true
	}

	// Resolve the None index of every category that has one up front,
	// so the roller is read-only after construction and Fingerprint can
	// be called without synchronization.
	for i := 0; i < reg.CategoryCount(); i++ {
		if idx, err := reg.VariantIndex(uint8(i), rc.NoneVariant); err == nil {
			r.none[uint8(i)] = idx
		}
	}

	return r, nil
}

// noneIndex returns the index of the configured None variant within
// cat, resolved at construction.
func (r *Roller) noneIndex(cat uint8) (uint8, error) {
	idx, ok := r.none[cat]
	if !ok {
		return 0, fmt.Errorf("category %d: %w", cat, ErrMissingNoneVariant)
	}
	return idx, nil
}

// rollState tracks one unit's generation across reroll passes.
type rollState struct {
	gene    []uint8
	settled []bool
	// forced marks categories settled by the archetype phase, a skip
	// rule, a forced-variant override, or dependency propagation.
	// Forced categories never participate in a partial reroll.
	forced []bool
}

func newRollState(n int) *rollState {
	return &rollState{
		gene:    make([]uint8, n),
		settled: make([]bool, n),
		forced:  make([]bool, n),
	}
}

// set settles one category and propagates any dependency the chosen
// trait triggers, force-setting every correlated pair.
func (s *rollState) set(r *Roller, cat uint8, variant uint8, force bool) {
	s.gene[cat] = variant
	s.settled[cat] = true
	if force {
		s.forced[cat] = true
	}
	if corr := r.reg.CorrelatedOf(registry.LayerID{Category: cat, Variant: variant}); len(corr) > 0 {
		s.forced[cat] = true
		for _, c := range corr {
			s.gene[c.Category] = c.Variant
			s.settled[c.Category] = true
			s.forced[c.Category] = true
		}
	}
}

// freeCategories returns the indexes settled by an unconstrained draw,
// the only ones a partial reroll may clear.
func (s *rollState) freeCategories() []uint8 {
	var free []uint8
	for i := range s.settled {
		if s.settled[i] && !s.forced[i] {
			free = append(free, uint8(i))
		}
	}
	return free
}

// Roll generates one unique gene for the given background variant.
//
// Description:
//
//	Runs the archetype phase, settles the remaining categories in
//	ascending index order, canonicalizes, and checks the ledger plus
//	the batch supplement. A collision with free categories left clears
//	only those and redraws (partial reroll); a collision with nothing
//	free restarts from the archetype phase (full reroll). Collisions
//	are absorbed here and never surface as errors.
//
// Inputs:
//
//	src - Draw source for this call. Consumed draw by draw; identical
//	      construction inputs reproduce the identical gene sequence.
//	background - Buyer-chosen variant index of the background category.
//	ledger - Persisted fingerprint set.
//	batch - Supplement holding this request's earlier fingerprints.
//	        The accepted fingerprint is added to it before returning.
//
// Outputs:
//
//	*Result - The accepted gene, its fingerprint, and roll statistics.
//	error - Configuration faults, storage failures, or
//	        ErrAttemptsExhausted when a configured cap is hit.
func (r *Roller) Roll(src DrawSource, background uint8, ledger LedgerView, batch *Batch) (*Result, error) {
	n := r.reg.CategoryCount()
	res := &Result{}
	checks := 0

	for {
		res.Attempts++
		st := newRollState(n)
		cyclops, jawless, err := r.rollArchetype(src, st, background)
		if err != nil {
			return nil, err
		}

		for {
			checks++
			if r.MaxAttempts > 0 && checks > r.MaxAttempts {
				return nil, fmt.Errorf("after %d checks: %w", r.MaxAttempts, ErrAttemptsExhausted)
			}
			if err := r.rollRemaining(src, st, cyclops, jawless); err != nil {
				return nil, err
			}

			fp, err := r.Fingerprint(st.gene, cyclops, jawless)
			if err != nil {
				return nil, err
			}

			taken, err := ledger.Contains(fp)
			if err != nil {
				return nil, fmt.Errorf("ledger check: %w", err)
			}
			if !taken && !batch.Contains(fp) {
				batch.Add(fp)
				res.Gene = st.gene
				res.Fingerprint = fp
				res.Cyclops = cyclops
				res.Jawless = jawless
				return res, nil
			}

			free := st.freeCategories()
			if len(free) == 0 {
				// Nothing left to vary; only a fresh archetype can
				// produce novelty.
				break
			}
			res.PartialRerolls++
			for _, idx := range free {
				st.settled[idx] = false
			}
		}
	}
}

// rollArchetype settles the background, the skip categories, and the
// three archetype draws.
func (r *Roller) rollArchetype(src DrawSource, st *rollState, background uint8) (cyclops, jawless bool, err error) {
	st.set(r, r.bgIdx, background, true)

	for idx := range r.skip {
		if st.settled[idx] {
			continue
		}
		none, err := r.noneIndex(idx)
		if err != nil {
			return false, false, err
		}
		st.set(r, idx, none, true)
	}

	if r.hasJaw {
		jawIdx, err := SampleIndex(src, r.rc.JawWeights)
		if err != nil {
			return false, false, fmt.Errorf("jaw table: %w", err)
		}
		jawless = jawIdx == 1
	}

	if r.hasSkull {
		skullCat, err := r.reg.Category(r.skullIdx)
		if err != nil {
			return false, false, err
		}
		skullVar, err := SampleIndex(src, skullCat.WeightsFor(false, jawless))
		if err != nil {
			return false, false, fmt.Errorf("skull table: %w", err)
		}
		st.set(r, r.skullIdx, skullVar, true)

		if jawless {
			none, err := r.noneIndex(r.chinIdx)
			if err != nil {
				return false, false, err
			}
			st.set(r, r.chinIdx, none, true)
		} else {
			skull, err := r.reg.Variant(r.skullIdx, skullVar)
			if err != nil {
				return false, false, err
			}
			companion, err := r.reg.VariantIndex(r.chinIdx, skull.Name)
			if err != nil {
				return false, false, fmt.Errorf("companion chin for skull %q: %w", skull.Name, err)
			}
			st.set(r, r.chinIdx, companion, true)
		}
	}

	if r.hasEye {
		eyeCat, err := r.reg.Category(r.eyeIdx)
		if err != nil {
			return false, false, err
		}
		eyeVar, err := SampleIndex(src, eyeCat.WeightsFor(false, jawless))
		if err != nil {
			return false, false, fmt.Errorf("eye table: %w", err)
		}
		cyclops = eyeVar == r.cyclops
		st.set(r, r.eyeIdx, eyeVar, true)
	}

	return cyclops, jawless, nil
}

// rollRemaining settles every unsettled category in ascending order,
// honoring forced-variant overrides for the active archetype.
func (r *Roller) rollRemaining(src DrawSource, st *rollState, cyclops, jawless bool) error {
	for i := 0; i < len(st.gene); i++ {
		idx := uint8(i)
		if st.settled[i] {
			continue
		}
		cat, err := r.reg.Category(idx)
		if err != nil {
			return err
		}

		switch {
		case cyclops && cat.ForcedCyclops != nil:
			st.set(r, idx, *cat.ForcedCyclops, true)
		case jawless && cat.ForcedJawless != nil:
			st.set(r, idx, *cat.ForcedJawless, true)
		default:
			v, err := SampleIndex(src, cat.WeightsFor(cyclops, jawless))
			if err != nil {
				return fmt.Errorf("category %q: %w", cat.Name, err)
			}
			st.set(r, idx, v, false)
		}
	}
	return nil
}
