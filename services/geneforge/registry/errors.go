// Copyright (C) 2025 Umbral Works (dev@umbralworks.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package registry

import "errors"

var (
	// ErrNameExists is returned when adding a category or variant whose
	// name is already taken within its scope.
	ErrNameExists = errors.New("name already exists")

	// ErrIndexExhausted is returned when a category or variant list has
	// reached MaxIndex entries.
	ErrIndexExhausted = errors.New("index space exhausted")

	// ErrUnknownCategory is returned for lookups of absent categories.
	ErrUnknownCategory = errors.New("unknown category")

	// ErrUnknownVariant is returned for lookups of absent variants.
	ErrUnknownVariant = errors.New("unknown variant")

	// ErrDependencyCycle is returned when a dependency's correlated
	// target is itself the source of another dependency. Propagation is
	// single-step, so chained dependencies are rejected at admin time.
	ErrDependencyCycle = errors.New("dependency target is another dependency's source")

	// ErrNoRollConfig is returned when gene generation is attempted
	// before a roll configuration has been stored.
	ErrNoRollConfig = errors.New("roll configuration not set")

	// ErrWeightTableMismatch is returned when a variant spec provides a
	// jawless or cyclops weight for a category without that table, or
	// omits one the category's table requires.
	ErrWeightTableMismatch = errors.New("variant weights do not match the category's tables")
)
