// Copyright (C) 2025 Umbral Works (dev@umbralworks.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command geneforge starts the GeneForge trait generation server.
//
// GeneForge mints collections of layered-image tokens with provably
// unique genes: weighted trait sampling, archetype constraints,
// dependency and hider graphs, a persistent fingerprint ledger, and a
// staged reveal flow.
//
// Usage:
//
//	geneforge serve --config geneforge.yaml
//	GENEFORGE_ENTROPY=... GENEFORGE_ADMIN=... geneforge serve
//
// Example requests:
//
//	# Health check
//	curl http://localhost:8420/v1/geneforge/health
//
//	# Mint two tokens
//	curl -X POST http://localhost:8420/v1/geneforge/mint \
//	  -H "Content-Type: application/json" \
//	  -d '{"sender": "alice", "count": 2, "background": "Midnight", "entropy": "r"}'
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string

	rootCmd = &cobra.Command{
		Use:   "geneforge",
		Short: "A server minting layered-image tokens with unique genes",
		Long: `GeneForge rolls weighted trait combinations into provably unique
genes, mints them as hidden tokens, and reveals them trait by trait.`,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the GeneForge API server",
		RunE:  runServe,
	}
)

func init() {
	serveCmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to the yaml config file")
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
