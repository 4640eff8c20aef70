// Copyright (C) 2025 Umbral Works (dev@umbralworks.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package geneforge

import (
	"github.com/umbralworks/geneforge/services/geneforge/registry"
)

// ServiceVersion is the GeneForge service version.
const ServiceVersion = "0.1.0"

// MintRequest is the request body for POST /v1/geneforge/mint.
type MintRequest struct {
	// Sender is the minting address. Must be on the minter list.
	Sender string `json:"sender" binding:"required"`

	// Count is the number of tokens to mint. Default: 1.
	Count int `json:"count"`

	// Background names the background for every token in the batch.
	Background string `json:"background" binding:"required"`

	// Entropy is caller-supplied randomness folded into the draw
	// stream.
	Entropy string `json:"entropy" binding:"required"`
}

// MintedToken describes one token produced by a mint.
type MintedToken struct {
	// ID is the new token's identifier.
	ID string `json:"id"`

	// Serial is the token's 1-based mint order.
	Serial int `json:"serial"`

	// Attempts is the number of archetype passes the roll needed.
	Attempts int `json:"attempts"`

	// PartialRerolls is the number of free-category rerolls consumed.
	PartialRerolls int `json:"partial_rerolls"`
}

// MintResponse is the response for POST /v1/geneforge/mint. Genes are
// never included; tokens start fully hidden.
type MintResponse struct {
	Tokens []MintedToken `json:"tokens"`

	// Minted is the total supply after this mint.
	Minted int `json:"minted"`
}

// RevealRequest is the request body for POST /v1/geneforge/tokens/:id/reveal.
type RevealRequest struct {
	// Sender must be the token's owner.
	Sender string `json:"sender" binding:"required"`

	// Type selects the reveal kind.
	Type string `json:"type" binding:"required,oneof=random targeted all"`

	// Category names the trait to reveal. Required for targeted.
	Category string `json:"category"`

	// Entropy is folded into the draw for random reveals.
	Entropy string `json:"entropy"`
}

// RevealResponse is the response for a reveal.
type RevealResponse struct {
	// Revealed lists the category names made visible by this call.
	Revealed []string `json:"revealed"`
}

// TokenQuery authenticates a private token read: the owner, or a
// listed viewer presenting a valid viewing key.
type TokenQuery struct {
	Sender     string `json:"sender" binding:"required"`
	ViewingKey string `json:"viewing_key"`
}

// GeneInfo is the private view of a token.
type GeneInfo struct {
	// Current is the public projection, 255 in unrevealed slots.
	Current []uint8 `json:"current"`

	// Previous is Current as of the start of the latest reveal.
	Previous []uint8 `json:"previous"`

	// Natural is the true gene.
	Natural []uint8 `json:"natural"`

	// Fingerprint is the canonical uniqueness form, hex encoded.
	Fingerprint string `json:"fingerprint"`

	// Owner is the token owner's address.
	Owner string `json:"owner"`
}

// ViewingKeyRequest creates or sets a viewing key.
type ViewingKeyRequest struct {
	Sender string `json:"sender" binding:"required"`

	// Key, when present, is stored as-is; otherwise a fresh key is
	// drawn. Entropy feeds the draw in that case.
	Key     string `json:"key"`
	Entropy string `json:"entropy"`
}

// ViewingKeyResponse returns the plaintext key exactly once.
type ViewingKeyResponse struct {
	Key string `json:"key"`
}

// AdminRequest is the shared envelope for admin operations that carry
// only a sender.
type AdminRequest struct {
	Sender string `json:"sender" binding:"required"`
}

// HaltRequest toggles minting or reveals.
type HaltRequest struct {
	Sender string `json:"sender" binding:"required"`
	Halt   bool   `json:"halt"`
}

// RosterRequest edits a role allow-list.
type RosterRequest struct {
	Sender    string   `json:"sender" binding:"required"`
	Addresses []string `json:"addresses" binding:"required,min=1"`
}

// RosterResponse returns the resulting allow-list.
type RosterResponse struct {
	Addresses []string `json:"addresses"`
}

// CategoryRequest creates a trait category with its variants.
type CategoryRequest struct {
	Sender   string                 `json:"sender" binding:"required"`
	Category registry.Category      `json:"category" binding:"required"`
	Variants []registry.VariantSpec `json:"variants" binding:"required,min=1"`
}

// CategoryResponse returns the index assigned to a new category.
type CategoryResponse struct {
	Index uint8 `json:"index"`
}

// ModifyCategoryRequest renames a category or changes its forced
// archetype variants.
type ModifyCategoryRequest struct {
	Sender        string `json:"sender" binding:"required"`
	Name          string `json:"name" binding:"required"`
	NewName       string `json:"new_name"`
	ForcedCyclops *uint8 `json:"forced_cyclops"`
	ForcedJawless *uint8 `json:"forced_jawless"`
}

// VariantsRequest appends variants to an existing category.
type VariantsRequest struct {
	Sender   string                 `json:"sender" binding:"required"`
	Category string                 `json:"category" binding:"required"`
	Variants []registry.VariantSpec `json:"variants" binding:"required,min=1"`
}

// ModifyVariantRequest renames or reweights one variant.
type ModifyVariantRequest struct {
	Sender   string               `json:"sender" binding:"required"`
	Category string               `json:"category" binding:"required"`
	Name     string               `json:"name" binding:"required"`
	Spec     registry.VariantSpec `json:"spec" binding:"required"`
}

// GraphRequest replaces the dependency or hider graph.
type GraphRequest struct {
	Sender  string                `json:"sender" binding:"required"`
	Entries []registry.Dependency `json:"entries"`
}

// RollConfigRequest replaces the roll configuration.
type RollConfigRequest struct {
	Sender string              `json:"sender" binding:"required"`
	Config registry.RollConfig `json:"config" binding:"required"`
}

// CooldownsRequest updates the reveal cooldowns. Nil fields keep the
// current value; units are seconds.
type CooldownsRequest struct {
	Sender   string `json:"sender" binding:"required"`
	Random   *int64 `json:"random_cooldown"`
	Targeted *int64 `json:"targeted_cooldown"`
	All      *int64 `json:"all_cooldown"`
}

// BackgroundCount sets the mintable supply of one background.
type BackgroundCount struct {
	Background string `json:"background" binding:"required"`
	Count      int    `json:"count" binding:"gte=0"`
}

// BackgroundCountsRequest replaces the per-background supply counts.
type BackgroundCountsRequest struct {
	Sender string            `json:"sender" binding:"required"`
	Counts []BackgroundCount `json:"counts" binding:"required,min=1"`
}

// AddGenesRequest imports pre-generated genes into the ledger so they
// can never be rolled again.
type AddGenesRequest struct {
	Sender string    `json:"sender" binding:"required"`
	Genes  [][]uint8 `json:"genes" binding:"required,min=1"`
}

// AddGenesResponse reports how many fingerprints were recorded.
type AddGenesResponse struct {
	Recorded int `json:"recorded"`
}

// StatusResponse is the public service status.
type StatusResponse struct {
	MintHalted   bool `json:"mint_halted"`
	RevealHalted bool `json:"reveal_halted"`
	Minted       int  `json:"minted"`
	SupplyCap    int  `json:"supply_cap"`
	LedgerCount  int  `json:"ledger_count"`

	// BackgroundCounts holds the remaining supply per tracked
	// background. Untracked backgrounds are unlimited and absent.
	BackgroundCounts map[string]int `json:"background_counts,omitempty"`
}

// HealthResponse is the health check response.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	// Error is the error message.
	Error string `json:"error"`

	// Code is the error code (optional).
	Code string `json:"code,omitempty"`
}
