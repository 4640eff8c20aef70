// Copyright (C) 2025 Umbral Works (dev@umbralworks.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package genetics

import "github.com/umbralworks/geneforge/services/geneforge/registry"

// Fingerprint canonicalizes a fully settled gene for duplicate
// detection.
//
// Description:
//
//	Copies the gene, masks every hider-covered slot to the category's
//	None variant, drops the background and archetype-represented
//	categories, and appends the configured archetype flags. Two genes that
//	differ only in a slot cosmetically masked by another trait
//	canonicalize identically; without the masking the apparent trait
//	space would be larger than what is visually distinguishable.
//
// Inputs:
//
//	gene - One variant index per category, every slot settled.
//	cyclops, jawless - The gene's archetype flags.
//
// Outputs:
//
//	[]byte - One byte per kept category followed by the cyclops and
//	         jawless flag bytes.
//	error - ErrMissingNoneVariant when a hidden category has no None
//	        variant to mask to.
func (r *Roller) Fingerprint(gene []uint8, cyclops, jawless bool) ([]byte, error) {
	masked := make([]uint8, len(gene))
	copy(masked, gene)

	// Masking tests against the true gene, not the copy, so hider
	// entries cannot cascade through each other in list order.
	for i, variant := range gene {
		hidden := r.reg.HiddenBy(registry.LayerID{Category: uint8(i), Variant: variant})
		for _, h := range hidden {
			if gene[h.Category] != h.Variant {
				continue
			}
			none, err := r.noneIndex(h.Category)
			if err != nil {
				return nil, err
			}
			masked[h.Category] = none
		}
	}

	fp := make([]byte, 0, len(gene)+2)
	for i := range masked {
		if r.strip[uint8(i)] {
			continue
		}
		fp = append(fp, masked[i])
	}
	// Flags are appended only when the corresponding archetype feature
	// exists in the configuration; an unconfigured feature contributes
	// nothing to uniqueness.
	if r.hasEye {
		fp = append(fp, flagByte(cyclops))
	}
	if r.hasJaw {
		fp = append(fp, flagByte(jawless))
	}
	return fp, nil
}

func flagByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
