// Copyright (C) 2025 Umbral Works (dev@umbralworks.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package geneforge

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricMinted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "geneforge_minted_total",
		Help: "Tokens minted.",
	})

	metricRollAttempts = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "geneforge_roll_attempts",
		Help:    "Archetype passes needed per accepted gene.",
		Buckets: []float64{1, 2, 3, 5, 8, 13, 21},
	})

	metricPartialRerolls = promauto.NewCounter(prometheus.CounterOpts{
		Name: "geneforge_partial_rerolls_total",
		Help: "Free-category rerolls consumed by uniqueness collisions.",
	})

	metricReveals = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "geneforge_reveals_total",
		Help: "Reveal operations by kind.",
	}, []string{"kind"})

	metricGenesImported = promauto.NewCounter(prometheus.CounterOpts{
		Name: "geneforge_genes_imported_total",
		Help: "Pre-generated genes imported into the ledger.",
	})
)
