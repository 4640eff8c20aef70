// Copyright (C) 2025 Umbral Works (dev@umbralworks.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package genetics

import "errors"

var (
	// ErrZeroWeightTable marks a weight table that is empty or sums to
	// zero. Fatal configuration fault.
	ErrZeroWeightTable = errors.New("weight table sums to zero")

	// ErrMissingNoneVariant marks a skipped or hidden category that has
	// no canonical "None" variant to fall back to. Fatal configuration
	// fault.
	ErrMissingNoneVariant = errors.New("category lacks a None variant")

	// ErrAttemptsExhausted is returned when a configured full-reroll cap
	// is hit before a unique gene was found. Only possible when
	// MaxAttempts > 0; the default is an uncapped loop.
	ErrAttemptsExhausted = errors.New("roll attempts exhausted without a unique gene")
)
