// Copyright (C) 2025 Umbral Works (dev@umbralworks.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ledger persists the set of canonical gene fingerprints that
// have been issued. The roller consults it during generation and the
// service records accepted batches through it, so a fingerprint that
// reaches Record twice indicates a logic fault upstream, not a retry
// condition.
package ledger

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"

	badgerdb "github.com/dgraph-io/badger/v4"

	storage "github.com/umbralworks/geneforge/services/geneforge/storage/badger"
)

// ErrDuplicateFingerprint is returned when a fingerprint being recorded
// is already in the ledger.
var ErrDuplicateFingerprint = errors.New("gene has already been issued")

const nsGene = "gene"

// Ledger is the persistent fingerprint set.
//
// Thread Safety: safe for concurrent use; Badger transactions provide
// the required isolation.
type Ledger struct {
	db  *storage.DB
	log *slog.Logger
}

// New builds a ledger over an open database.
func New(db *storage.DB, log *slog.Logger) *Ledger {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Ledger{db: db, log: log.With("component", "ledger")}
}

// Contains reports whether fp has been issued. The signature carries no
// context so the roller can call it on every candidate without plumbing
// one through the sampling loop.
func (l *Ledger) Contains(fp []byte) (bool, error) {
	var found bool
	err := l.db.WithReadTxn(context.Background(), func(txn *badgerdb.Txn) error {
		var err error
		found, err = storage.Exists(txn, storage.Key(nsGene, fp))
		return err
	})
	if err != nil {
		return false, fmt.Errorf("ledger lookup: %w", err)
	}
	return found, nil
}

// Record writes a batch of fingerprints in a single transaction.
//
// Description:
//
//	All-or-nothing: if any fingerprint is already present the whole
//	batch is discarded and ErrDuplicateFingerprint is returned. The
//	roller has already vetted every candidate, so a hit here means two
//	writers raced or the caller skipped generation.
//
// Inputs:
//
//	fps - Canonical fingerprints, one per accepted gene.
//
// Outputs:
//
//	error - ErrDuplicateFingerprint with the offending fingerprint in
//	        hex, or a storage failure.
func (l *Ledger) Record(ctx context.Context, fps [][]byte) error {
	if len(fps) == 0 {
		return nil
	}
	err := l.db.WithTxn(ctx, func(txn *badgerdb.Txn) error {
		return l.RecordIn(txn, fps)
	})
	if err != nil {
		return fmt.Errorf("ledger record: %w", err)
	}
	return nil
}

// RecordIn writes a batch of fingerprints inside the caller's
// transaction, so ledger entries can commit atomically with the other
// writes of a mint. Same duplicate semantics as Record.
func (l *Ledger) RecordIn(txn *badgerdb.Txn, fps [][]byte) error {
	for _, fp := range fps {
		key := storage.Key(nsGene, fp)
		exists, err := storage.Exists(txn, key)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%s: %w", hex.EncodeToString(fp), ErrDuplicateFingerprint)
		}
		if err := txn.Set(key, []byte{1}); err != nil {
			return err
		}
	}
	l.log.Debug("fingerprints recorded", "count", len(fps))
	return nil
}

// Count returns the number of issued fingerprints.
func (l *Ledger) Count(ctx context.Context) (int, error) {
	var n int
	err := l.db.WithReadTxn(ctx, func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = storage.Key(nsGene, nil)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("ledger count: %w", err)
	}
	return n, nil
}
