// Copyright (C) 2025 Umbral Works (dev@umbralworks.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package geneforge

import "errors"

// Sentinel errors for the GeneForge service.
var (
	// ErrMintHalted indicates an admin has paused minting.
	ErrMintHalted = errors.New("minting has been halted")

	// ErrBatchTooLarge indicates the mint count exceeds the per-request cap.
	ErrBatchTooLarge = errors.New("mint count exceeds batch limit")

	// ErrSupplyExhausted indicates the collection supply cap has been reached.
	ErrSupplyExhausted = errors.New("supply cap reached")

	// ErrBackgroundExhausted indicates the requested background has no
	// remaining supply.
	ErrBackgroundExhausted = errors.New("background supply exhausted")

	// ErrNotOwner indicates the sender does not own the token.
	ErrNotOwner = errors.New("sender does not own this token")
)
