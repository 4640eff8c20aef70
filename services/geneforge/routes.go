// Copyright (C) 2025 Umbral Works (dev@umbralworks.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package geneforge

import (
	"github.com/gin-gonic/gin"

	"github.com/umbralworks/geneforge/services/geneforge/auth"
)

// RegisterRoutes registers all GeneForge routes with the router.
//
// Description:
//
//	Registers all /v1/geneforge/* endpoints with the given Gin router
//	group. The router group should already have any required middleware
//	applied.
//
// Minting and Tokens:
//
//	POST /v1/geneforge/mint - Roll and mint a batch of unique genes
//	POST /v1/geneforge/tokens/:id/reveal - Reveal traits on a token
//	POST /v1/geneforge/tokens/:id/info - Private token view
//	POST /v1/geneforge/viewing_key - Create or set a viewing key
//
// Admin Endpoints:
//
//	POST /v1/geneforge/admin/categories - Add a trait category
//	PUT  /v1/geneforge/admin/categories - Modify a category
//	POST /v1/geneforge/admin/variants - Add variants
//	PUT  /v1/geneforge/admin/variants - Modify a variant
//	PUT  /v1/geneforge/admin/dependencies - Replace the dependency graph
//	PUT  /v1/geneforge/admin/hiders - Replace the hider graph
//	PUT  /v1/geneforge/admin/roll_config - Replace the roll configuration
//	POST /v1/geneforge/admin/genes - Import pre-generated genes
//	POST /v1/geneforge/admin/backgrounds - Set per-background counts
//	POST /v1/geneforge/admin/mint_halt - Pause or resume minting
//	POST /v1/geneforge/admin/reveal_halt - Pause or resume reveals
//	POST /v1/geneforge/admin/cooldowns - Update reveal cooldowns
//	POST /v1/geneforge/admin/{admins,minters,viewers}/{add,remove}
//
// Health Endpoints:
//
//	GET  /v1/geneforge/status - Public supply and halt state
//	GET  /v1/geneforge/health - Health check
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	gf := rg.Group("/geneforge")
	{
		gf.POST("/mint", handlers.HandleMint)
		gf.POST("/tokens/:id/reveal", handlers.HandleReveal)
		gf.POST("/tokens/:id/info", handlers.HandleTokenInfo)
		gf.POST("/viewing_key", handlers.HandleViewingKey)

		gf.GET("/status", handlers.HandleStatus)
		gf.GET("/health", handlers.HandleHealth)

		admin := gf.Group("/admin")
		{
			admin.POST("/categories", handlers.HandleAddCategory)
			admin.PUT("/categories", handlers.HandleModifyCategory)
			admin.POST("/variants", handlers.HandleAddVariants)
			admin.PUT("/variants", handlers.HandleModifyVariant)
			admin.PUT("/dependencies", handlers.HandleSetDependencies)
			admin.PUT("/hiders", handlers.HandleSetHiders)
			admin.PUT("/roll_config", handlers.HandleSetRollConfig)
			admin.POST("/genes", handlers.HandleAddGenes)
			admin.POST("/backgrounds", handlers.HandleBackgroundCounts)
			admin.POST("/mint_halt", handlers.HandleMintHalt)
			admin.POST("/reveal_halt", handlers.HandleRevealHalt)
			admin.POST("/cooldowns", handlers.HandleCooldowns)

			admin.POST("/admins/add", handlers.rosterHandler(auth.RoleAdmin, true))
			admin.POST("/admins/remove", handlers.rosterHandler(auth.RoleAdmin, false))
			admin.POST("/minters/add", handlers.rosterHandler(auth.RoleMinter, true))
			admin.POST("/minters/remove", handlers.rosterHandler(auth.RoleMinter, false))
			admin.POST("/viewers/add", handlers.rosterHandler(auth.RoleViewer, true))
			admin.POST("/viewers/remove", handlers.rosterHandler(auth.RoleViewer, false))
		}
	}
}
