// Copyright (C) 2025 Umbral Works (dev@umbralworks.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package registry maintains the trait catalog: layer categories, their
// variants, the weight tables driving random selection, and the
// dependency and hider graphs that relate traits across categories.
//
// Categories and variants are addressed two ways: by dense uint8 index
// (the form genes are stored in) and by name (the form admin requests
// and companion-trait lookups use). The registry keeps both directions
// cached in memory and persists every record to BadgerDB.
package registry

import "fmt"

// MaxIndex is the largest valid category or variant index. Index 255 is
// reserved by the reveal projection as its "unknown" marker, so neither
// a category nor a variant may ever be assigned it.
const MaxIndex = 254

// LayerID addresses one trait: a category index and a variant index
// within that category.
type LayerID struct {
	Category uint8 `json:"category"`
	Variant  uint8 `json:"variant"`
}

// String renders the id for log output.
func (l LayerID) String() string {
	return fmt.Sprintf("%d/%d", l.Category, l.Variant)
}

// Variant is one selectable trait within a category.
type Variant struct {
	// Name is the variant's unique name within its category. Companion
	// chin lookups match on this name, so jawed skull variants and
	// their chins must share it.
	Name string `json:"name"`

	// Display is the human-facing label shown in metadata.
	Display string `json:"display"`
}

// Category is one layer slot of a gene.
//
// Weight tables are parallel to the category's variant list: entry i is
// the sampling weight of variant i. JawlessWeights and CyclopsWeights
// are nil when the category rolls the same regardless of archetype.
type Category struct {
	// Name is the category's unique name.
	Name string `json:"name"`

	// ForcedCyclops, when set, pins this category to the given variant
	// index for cyclops genes instead of sampling.
	ForcedCyclops *uint8 `json:"forced_cyclops,omitempty"`

	// ForcedJawless does the same for jawless genes.
	ForcedJawless *uint8 `json:"forced_jawless,omitempty"`

	// NormalWeights is the base weight table. Always present.
	NormalWeights []uint16 `json:"normal_weights"`

	// JawlessWeights overrides NormalWeights for jawless genes.
	JawlessWeights []uint16 `json:"jawless_weights,omitempty"`

	// CyclopsWeights overrides NormalWeights for cyclops genes.
	CyclopsWeights []uint16 `json:"cyclops_weights,omitempty"`
}

// WeightsFor returns the weight table matching the archetype flags.
// Cyclops takes precedence over jawless, mirroring the order the
// archetype roller settles them.
func (c *Category) WeightsFor(cyclops, jawless bool) []uint16 {
	if cyclops && c.CyclopsWeights != nil {
		return c.CyclopsWeights
	}
	if jawless && c.JawlessWeights != nil {
		return c.JawlessWeights
	}
	return c.NormalWeights
}

// Dependency relates a trait to the traits that must accompany it. The
// same shape serves both graphs: the dependency graph (correlated
// traits forced into the gene) and the hider graph (traits masked to
// None during fingerprinting).
type Dependency struct {
	ID         LayerID   `json:"id"`
	Correlated []LayerID `json:"correlated"`
}

// RollConfig drives gene generation.
type RollConfig struct {
	// Skip lists category indexes the roller never samples: the
	// background layer (chosen by the buyer) and any layers whose
	// values arrive from outside the roll.
	Skip []uint8 `json:"skip"`

	// JawWeights is the two-entry table for the jaw draw:
	// index 0 weighs jawed, index 1 weighs jawless.
	JawWeights []uint16 `json:"jaw_weights"`

	// BackgroundCategory names the buyer-chosen layer. It is stripped
	// from fingerprints.
	BackgroundCategory string `json:"background_category"`

	// SkullCategory names the base-shape layer drawn second in the
	// archetype phase.
	SkullCategory string `json:"skull_category"`

	// ChinCategory names the companion layer tied to the skull by
	// variant name.
	ChinCategory string `json:"chin_category"`

	// EyeTypeCategory names the layer whose draw can produce a cyclops.
	EyeTypeCategory string `json:"eye_type_category"`

	// CyclopsVariant is the variant name within EyeTypeCategory that
	// sets the cyclops flag.
	CyclopsVariant string `json:"cyclops_variant"`

	// NoneVariant is the variant name categories use for "no trait".
	// Hider masking and the jawless chin both resolve to it.
	NoneVariant string `json:"none_variant"`
}

// SkipSet returns Skip as a lookup set.
func (rc *RollConfig) SkipSet() map[uint8]bool {
	set := make(map[uint8]bool, len(rc.Skip))
	for _, idx := range rc.Skip {
		set[idx] = true
	}
	return set
}
