// Copyright (C) 2025 Umbral Works (dev@umbralworks.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package geneforge

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/umbralworks/geneforge/services/geneforge/auth"
	"github.com/umbralworks/geneforge/services/geneforge/genetics"
	"github.com/umbralworks/geneforge/services/geneforge/ledger"
	"github.com/umbralworks/geneforge/services/geneforge/registry"
	"github.com/umbralworks/geneforge/services/geneforge/reveal"
)

// Handlers contains the HTTP handlers for GeneForge.
type Handlers struct {
	svc *Service
}

// NewHandlers creates handlers for the given service.
func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

// getOrCreateRequestID gets or creates a request ID.
func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}

// respondError maps service errors onto HTTP statuses and the standard
// error body.
func respondError(c *gin.Context, logger *slog.Logger, err error) {
	status := http.StatusInternalServerError
	code := "INTERNAL"

	switch {
	case errors.Is(err, auth.ErrUnauthorized), errors.Is(err, ErrNotOwner):
		status = http.StatusForbidden
		code = "UNAUTHORIZED"
	case errors.Is(err, reveal.ErrUnknownToken):
		status = http.StatusNotFound
		code = "UNKNOWN_TOKEN"
	case errors.Is(err, ErrMintHalted), errors.Is(err, reveal.ErrHalted):
		status = http.StatusServiceUnavailable
		code = "HALTED"
	case errors.Is(err, ErrSupplyExhausted), errors.Is(err, ErrBackgroundExhausted):
		status = http.StatusConflict
		code = "SUPPLY_EXHAUSTED"
	case errors.Is(err, ledger.ErrDuplicateFingerprint):
		status = http.StatusConflict
		code = "DUPLICATE_GENE"
	case errors.Is(err, reveal.ErrCooldown):
		status = http.StatusTooManyRequests
		code = "COOLDOWN"
	case errors.Is(err, ErrBatchTooLarge),
		errors.Is(err, reveal.ErrFirstRevealRandom),
		errors.Is(err, reveal.ErrAllRevealed),
		errors.Is(err, reveal.ErrAlreadyRevealed),
		errors.Is(err, reveal.ErrNotRevealable),
		errors.Is(err, registry.ErrUnknownCategory),
		errors.Is(err, registry.ErrUnknownVariant),
		errors.Is(err, registry.ErrNameExists),
		errors.Is(err, registry.ErrIndexExhausted),
		errors.Is(err, registry.ErrDependencyCycle),
		errors.Is(err, registry.ErrNoRollConfig),
		errors.Is(err, registry.ErrWeightTableMismatch),
		errors.Is(err, auth.ErrUnknownRole),
		errors.Is(err, genetics.ErrZeroWeightTable),
		errors.Is(err, genetics.ErrAttemptsExhausted):
		status = http.StatusBadRequest
		code = "INVALID_REQUEST"
	}

	if status == http.StatusInternalServerError {
		logger.Error("Request failed", "error", err)
	} else {
		logger.Warn("Request rejected", "error", err)
	}
	c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
}

func bindJSON(c *gin.Context, logger *slog.Logger, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return false
	}
	return true
}

// HandleMint handles POST /v1/geneforge/mint.
//
// Response:
//
//	200 OK: MintResponse
//	400 Bad Request: Validation error
//	403 Forbidden: Sender is not a minter
//	409 Conflict: Supply exhausted
//	503 Service Unavailable: Minting halted
func (h *Handlers) HandleMint(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleMint")

	var req MintRequest
	if !bindJSON(c, logger, &req) {
		return
	}

	resp, err := h.svc.Mint(c.Request.Context(), req)
	if err != nil {
		respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleReveal handles POST /v1/geneforge/tokens/:id/reveal.
func (h *Handlers) HandleReveal(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleReveal")

	var req RevealRequest
	if !bindJSON(c, logger, &req) {
		return
	}

	resp, err := h.svc.Reveal(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleTokenInfo handles POST /v1/geneforge/tokens/:id/info.
//
// A POST because the query carries a viewing key that must not appear
// in URLs or access logs.
func (h *Handlers) HandleTokenInfo(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleTokenInfo")

	var q TokenQuery
	if !bindJSON(c, logger, &q) {
		return
	}

	resp, err := h.svc.TokenInfo(c.Request.Context(), c.Param("id"), q)
	if err != nil {
		respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleViewingKey handles POST /v1/geneforge/viewing_key.
func (h *Handlers) HandleViewingKey(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleViewingKey")

	var req ViewingKeyRequest
	if !bindJSON(c, logger, &req) {
		return
	}

	resp, err := h.svc.ViewingKey(c.Request.Context(), req)
	if err != nil {
		respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleStatus handles GET /v1/geneforge/status.
func (h *Handlers) HandleStatus(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleStatus")

	resp, err := h.svc.Status(c.Request.Context())
	if err != nil {
		respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleAddGenes handles POST /v1/geneforge/admin/genes.
func (h *Handlers) HandleAddGenes(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleAddGenes")

	var req AddGenesRequest
	if !bindJSON(c, logger, &req) {
		return
	}

	resp, err := h.svc.AddGenes(c.Request.Context(), req)
	if err != nil {
		respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleMintHalt handles POST /v1/geneforge/admin/mint_halt.
func (h *Handlers) HandleMintHalt(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleMintHalt")

	var req HaltRequest
	if !bindJSON(c, logger, &req) {
		return
	}

	if err := h.svc.SetMintHalt(c.Request.Context(), req.Sender, req.Halt); err != nil {
		respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"mint_halted": req.Halt})
}

// HandleRevealHalt handles POST /v1/geneforge/admin/reveal_halt.
func (h *Handlers) HandleRevealHalt(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleRevealHalt")

	var req HaltRequest
	if !bindJSON(c, logger, &req) {
		return
	}

	if err := h.svc.SetRevealHalt(req.Sender, req.Halt); err != nil {
		respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reveal_halted": req.Halt})
}

// HandleCooldowns handles POST /v1/geneforge/admin/cooldowns.
func (h *Handlers) HandleCooldowns(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleCooldowns")

	var req CooldownsRequest
	if !bindJSON(c, logger, &req) {
		return
	}

	cool, err := h.svc.SetCooldowns(req)
	if err != nil {
		respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"random_cooldown":   int64(cool.Random.Seconds()),
		"targeted_cooldown": int64(cool.Targeted.Seconds()),
		"all_cooldown":      int64(cool.All.Seconds()),
	})
}

// HandleBackgroundCounts handles POST /v1/geneforge/admin/backgrounds.
func (h *Handlers) HandleBackgroundCounts(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleBackgroundCounts")

	var req BackgroundCountsRequest
	if !bindJSON(c, logger, &req) {
		return
	}

	if err := h.svc.SetBackgroundCounts(c.Request.Context(), req); err != nil {
		respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"backgrounds": len(req.Counts)})
}

// rosterHandler builds an add or remove handler for one role.
func (h *Handlers) rosterHandler(role auth.Role, add bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := getOrCreateRequestID(c)
		logger := slog.With("request_id", requestID, "handler", "HandleRoster", "role", string(role))

		var req RosterRequest
		if !bindJSON(c, logger, &req) {
			return
		}

		resp, err := h.svc.EditRoster(c.Request.Context(), role, req, add)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

// HandleAddCategory handles POST /v1/geneforge/admin/categories.
func (h *Handlers) HandleAddCategory(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleAddCategory")

	var req CategoryRequest
	if !bindJSON(c, logger, &req) {
		return
	}

	resp, err := h.svc.AddCategory(c.Request.Context(), req)
	if err != nil {
		respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleModifyCategory handles PUT /v1/geneforge/admin/categories.
func (h *Handlers) HandleModifyCategory(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleModifyCategory")

	var req ModifyCategoryRequest
	if !bindJSON(c, logger, &req) {
		return
	}

	if err := h.svc.ModifyCategory(c.Request.Context(), req); err != nil {
		respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"category": req.Name})
}

// HandleAddVariants handles POST /v1/geneforge/admin/variants.
func (h *Handlers) HandleAddVariants(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleAddVariants")

	var req VariantsRequest
	if !bindJSON(c, logger, &req) {
		return
	}

	if err := h.svc.AddVariants(c.Request.Context(), req); err != nil {
		respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"category": req.Category, "added": len(req.Variants)})
}

// HandleModifyVariant handles PUT /v1/geneforge/admin/variants.
func (h *Handlers) HandleModifyVariant(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleModifyVariant")

	var req ModifyVariantRequest
	if !bindJSON(c, logger, &req) {
		return
	}

	if err := h.svc.ModifyVariant(c.Request.Context(), req); err != nil {
		respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"category": req.Category, "variant": req.Name})
}

// HandleSetDependencies handles PUT /v1/geneforge/admin/dependencies.
func (h *Handlers) HandleSetDependencies(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleSetDependencies")

	var req GraphRequest
	if !bindJSON(c, logger, &req) {
		return
	}

	if err := h.svc.SetDependencies(c.Request.Context(), req); err != nil {
		respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": len(req.Entries)})
}

// HandleSetHiders handles PUT /v1/geneforge/admin/hiders.
func (h *Handlers) HandleSetHiders(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleSetHiders")

	var req GraphRequest
	if !bindJSON(c, logger, &req) {
		return
	}

	if err := h.svc.SetHiders(c.Request.Context(), req); err != nil {
		respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": len(req.Entries)})
}

// HandleSetRollConfig handles PUT /v1/geneforge/admin/roll_config.
func (h *Handlers) HandleSetRollConfig(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleSetRollConfig")

	var req RollConfigRequest
	if !bindJSON(c, logger, &req) {
		return
	}

	if err := h.svc.SetRollConfig(c.Request.Context(), req); err != nil {
		respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"background": req.Config.BackgroundCategory})
}

// HandleHealth handles GET /v1/geneforge/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok", Version: ServiceVersion})
}
