// Copyright (C) 2025 Umbral Works (dev@umbralworks.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package reveal

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"

	storage "github.com/umbralworks/geneforge/services/geneforge/storage/badger"
)

// Unknown is the sentinel variant index marking a slot whose true trait
// has not been shown yet. Variant catalogs stop one short of it, so it
// can never collide with a real index.
const Unknown uint8 = 255

// ErrUnknownToken is returned when no image exists for a token id.
var ErrUnknownToken = errors.New("unknown token")

const nsToken = "tok"

// Image is a token's layered appearance.
//
// Natural is the true gene and never changes after mint. Current is the
// publicly visible projection, Unknown in every slot that has not been
// revealed. Previous snapshots Current as of the start of the latest
// reveal.
type Image struct {
	Current  []uint8 `json:"current"`
	Previous []uint8 `json:"previous"`
	Natural  []uint8 `json:"natural"`
}

// NewImage builds the fully hidden projection of a freshly minted gene.
func NewImage(natural []uint8) Image {
	hidden := make([]uint8, len(natural))
	for i := range hidden {
		hidden[i] = Unknown
	}
	img := Image{
		Current:  hidden,
		Previous: append([]uint8(nil), hidden...),
		Natural:  append([]uint8(nil), natural...),
	}
	return img
}

// Store persists token images and per-token reveal timestamps.
//
// Thread Safety: safe for concurrent use.
type Store struct {
	db *storage.DB
}

// NewStore builds a store over an open database.
func NewStore(db *storage.DB) *Store {
	return &Store{db: db}
}

func keyImage(tokenID string) []byte {
	return storage.Key(nsToken, []byte(tokenID))
}

func keyRevealedAt(tokenID string) []byte {
	return storage.Key(nsToken, []byte(tokenID), []byte("rvl"))
}

// Save writes a token's image.
func (s *Store) Save(ctx context.Context, tokenID string, img Image) error {
	err := s.db.WithTxn(ctx, func(txn *badgerdb.Txn) error {
		return s.SaveIn(txn, tokenID, img)
	})
	if err != nil {
		return fmt.Errorf("save image %s: %w", tokenID, err)
	}
	return nil
}

// SaveIn writes a token's image inside the caller's transaction, so a
// mint can commit its images atomically with its ledger entries.
func (s *Store) SaveIn(txn *badgerdb.Txn, tokenID string, img Image) error {
	raw, err := json.Marshal(img)
	if err != nil {
		return fmt.Errorf("encode image: %w", err)
	}
	return txn.Set(keyImage(tokenID), raw)
}

// Image loads a token's image.
func (s *Store) Image(ctx context.Context, tokenID string) (Image, error) {
	var img Image
	err := s.db.WithReadTxn(ctx, func(txn *badgerdb.Txn) error {
		raw, err := storage.Get(txn, keyImage(tokenID))
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return fmt.Errorf("%s: %w", tokenID, ErrUnknownToken)
		}
		if err != nil {
			return err
		}
		return json.Unmarshal(raw, &img)
	})
	if err != nil {
		return Image{}, err
	}
	return img, nil
}

// RevealedAt returns the time of the token's latest reveal, or ok false
// when it has never been revealed.
func (s *Store) RevealedAt(ctx context.Context, tokenID string) (time.Time, bool, error) {
	var at time.Time
	var ok bool
	err := s.db.WithReadTxn(ctx, func(txn *badgerdb.Txn) error {
		raw, err := storage.Get(txn, keyRevealedAt(tokenID))
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		at = time.Unix(int64(binary.BigEndian.Uint64(raw)), 0)
		ok = true
		return nil
	})
	if err != nil {
		return time.Time{}, false, fmt.Errorf("load reveal time %s: %w", tokenID, err)
	}
	return at, ok, nil
}

// commit writes the mutated image and the new reveal timestamp in one
// transaction, so a reveal is never half recorded.
func (s *Store) commit(ctx context.Context, tokenID string, img Image, at time.Time) error {
	raw, err := json.Marshal(img)
	if err != nil {
		return fmt.Errorf("encode image: %w", err)
	}
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(at.Unix()))
	err = s.db.WithTxn(ctx, func(txn *badgerdb.Txn) error {
		if err := txn.Set(keyImage(tokenID), raw); err != nil {
			return err
		}
		return txn.Set(keyRevealedAt(tokenID), ts[:])
	})
	if err != nil {
		return fmt.Errorf("commit reveal %s: %w", tokenID, err)
	}
	return nil
}
