// Copyright (C) 2025 Umbral Works (dev@umbralworks.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package genetics

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"golang.org/x/crypto/chacha20"

	storage "github.com/umbralworks/geneforge/services/geneforge/storage/badger"
)

// DrawSource produces the uniform random draws consumed by the
// sampler, 8 bytes at a time. Implementations must be deterministic
// for fixed construction inputs; tests substitute scripted doubles.
type DrawSource interface {
	NextUint64() uint64
}

// Prng is a ChaCha20-keyed draw source.
//
// The key is the SHA-256 digest of the persistent seed concatenated
// with the per-call entropy extension, so two calls with identical
// (seed, height, time, sender, entropy) produce identical draw
// sequences and anything else diverges.
type Prng struct {
	stream *chacha20.Cipher
}

// NewPrng builds a draw source from the persistent seed and a per-call
// entropy extension (see ExtendEntropy).
func NewPrng(seed, entropy []byte) (*Prng, error) {
	h := sha256.New()
	h.Write(seed)
	h.Write(entropy)
	key := h.Sum(nil)

	stream, err := chacha20.NewUnauthenticatedCipher(key, make([]byte, chacha20.NonceSize))
	if err != nil {
		return nil, fmt.Errorf("init draw stream: %w", err)
	}
	return &Prng{stream: stream}, nil
}

// NextUint64 consumes 8 bytes of keystream.
func (p *Prng) NextUint64() uint64 {
	var buf [8]byte
	p.stream.XORKeyStream(buf[:], buf[:])
	return binary.LittleEndian.Uint64(buf[:])
}

// NewSeed derives the persistent secret seed from operator-supplied
// init entropy: the SHA-256 digest of its base64 encoding.
func NewSeed(initEntropy string) []byte {
	enc := base64.StdEncoding.EncodeToString([]byte(initEntropy))
	sum := sha256.Sum256([]byte(enc))
	return sum[:]
}

// ExtendEntropy folds the caller-visible call context into a one-way
// digest mixed into every draw stream. Height is a monotonically
// increasing call counter standing in for a chain height.
func ExtendEntropy(height uint64, at time.Time, sender string, entropy string) []byte {
	var hb [8]byte
	binary.BigEndian.PutUint64(hb[:], height)
	var tb [8]byte
	binary.BigEndian.PutUint64(tb[:], uint64(at.UnixNano()))

	h := sha256.New()
	h.Write(hb[:])
	h.Write(tb[:])
	h.Write([]byte(sender))
	h.Write([]byte(entropy))
	return h.Sum(nil)
}

var keySeed = storage.Key("conf", []byte("seed"))

// LoadOrCreateSeed returns the stored secret seed, deriving and
// persisting one from initEntropy on first run. The seed never leaves
// this process and must never be logged.
func LoadOrCreateSeed(ctx context.Context, db *storage.DB, initEntropy string) ([]byte, error) {
	var seed []byte
	err := db.WithTxn(ctx, func(txn *badgerdb.Txn) error {
		val, err := storage.Get(txn, keySeed)
		if err == nil {
			seed = val
			return nil
		}
		if !errors.Is(err, badgerdb.ErrKeyNotFound) {
			return err
		}
		seed = NewSeed(initEntropy)
		return txn.Set(keySeed, seed)
	})
	if err != nil {
		return nil, fmt.Errorf("load seed: %w", err)
	}
	return seed, nil
}
