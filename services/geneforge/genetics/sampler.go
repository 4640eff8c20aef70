// Copyright (C) 2025 Umbral Works (dev@umbralworks.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package genetics

import "fmt"

// SampleIndex draws one variant index from a weight table.
//
// Description:
//
//	Inverse-CDF linear scan: draw a uniform integer in [0, total) and
//	return the first index whose running sum exceeds it. The total is
//	accumulated in uint64 so a table of maximal uint16 entries cannot
//	overflow.
//
// Inputs:
//
//	src - Draw source consumed exactly once.
//	weights - Weight table, one entry per variant.
//
// Outputs:
//
//	uint8 - The selected variant index.
//	error - ErrZeroWeightTable when the table is empty or sums to zero.
//	        A zero-sum table is a configuration fault, never a random
//	        outcome.
func SampleIndex(src DrawSource, weights []uint16) (uint8, error) {
	var total uint64
	for _, w := range weights {
		total += uint64(w)
	}
	if total == 0 {
		return 0, fmt.Errorf("table of %d entries: %w", len(weights), ErrZeroWeightTable)
	}

	r := src.NextUint64() % total
	var acc uint64
	for i, w := range weights {
		acc += uint64(w)
		if r < acc {
			return uint8(i), nil
		}
	}
	// Unreachable: acc equals total and r < total.
	return uint8(len(weights) - 1), nil
}
