// Copyright (C) 2025 Umbral Works (dev@umbralworks.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ledger

import (
	"context"
	"testing"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	storage "github.com/umbralworks/geneforge/services/geneforge/storage/badger"
)

func testLedger(t *testing.T) *Ledger {
	t.Helper()
	db, err := storage.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db, nil)
}

func TestRecordAndContains(t *testing.T) {
	l := testLedger(t)
	ctx := context.Background()

	found, err := l.Contains([]byte{1, 2, 3})
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, l.Record(ctx, [][]byte{{1, 2, 3}, {4, 5, 6}}))

	found, err = l.Contains([]byte{1, 2, 3})
	require.NoError(t, err)
	assert.True(t, found)
	found, err = l.Contains([]byte{4, 5, 6})
	require.NoError(t, err)
	assert.True(t, found)
}

func TestRecordDuplicateDiscardsBatch(t *testing.T) {
	l := testLedger(t)
	ctx := context.Background()

	require.NoError(t, l.Record(ctx, [][]byte{{9, 9}}))

	err := l.Record(ctx, [][]byte{{7, 7}, {9, 9}})
	assert.ErrorIs(t, err, ErrDuplicateFingerprint)

	// The partial batch must not have leaked.
	found, err := l.Contains([]byte{7, 7})
	require.NoError(t, err)
	assert.False(t, found)
}

// TestRecordInSharedTransaction verifies ledger entries share the
// caller's transaction, so a duplicate discards every write staged
// alongside them.
func TestRecordInSharedTransaction(t *testing.T) {
	db, err := storage.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	l := New(db, nil)
	ctx := context.Background()

	require.NoError(t, l.Record(ctx, [][]byte{{9, 9}}))

	other := storage.Key("tok", []byte("abc"))
	err = db.WithTxn(ctx, func(txn *badgerdb.Txn) error {
		if err := txn.Set(other, []byte{1}); err != nil {
			return err
		}
		return l.RecordIn(txn, [][]byte{{7, 7}, {9, 9}})
	})
	assert.ErrorIs(t, err, ErrDuplicateFingerprint)

	found, err := l.Contains([]byte{7, 7})
	require.NoError(t, err)
	assert.False(t, found)
	err = db.WithReadTxn(ctx, func(txn *badgerdb.Txn) error {
		exists, err := storage.Exists(txn, other)
		require.NoError(t, err)
		assert.False(t, exists, "companion write survived a failed batch")
		return nil
	})
	require.NoError(t, err)
}

func TestRecordEmptyBatch(t *testing.T) {
	l := testLedger(t)
	assert.NoError(t, l.Record(context.Background(), nil))
}

func TestCount(t *testing.T) {
	l := testLedger(t)
	ctx := context.Background()

	n, err := l.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	require.NoError(t, l.Record(ctx, [][]byte{{1}, {2}, {3}}))
	n, err = l.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
