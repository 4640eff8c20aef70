// Copyright (C) 2025 Umbral Works (dev@umbralworks.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package auth holds the role allow-lists and viewing keys that gate
// the service's endpoints. Admins manage configuration, minters may
// request new genes, and viewers may read private token state. Viewing
// keys are stored as SHA-256 digests only; the plaintext is returned
// once at creation and never persisted or logged.
package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/umbralworks/geneforge/pkg/validation"
	"github.com/umbralworks/geneforge/services/geneforge/genetics"
	storage "github.com/umbralworks/geneforge/services/geneforge/storage/badger"
)

// Role names an allow-list.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMinter Role = "minter"
	RoleViewer Role = "viewer"
)

// ErrUnknownRole is returned for a role outside the fixed set.
var ErrUnknownRole = errors.New("unknown role")

// ErrUnauthorized is returned when an address fails a role or key
// check.
var ErrUnauthorized = errors.New("unauthorized")

const (
	nsAuth    = "auth"
	keyPrefix = "key_"
)

// Auth is the persistent access-control state.
//
// Thread Safety: safe for concurrent use. Allow-lists are cached in
// memory under a lock; viewing key digests live only in storage.
type Auth struct {
	db  *storage.DB
	log *slog.Logger

	mu    sync.RWMutex
	lists map[Role]map[string]bool
}

// New builds the access-control state and loads the allow-lists.
// bootstrap, when non-empty, is added to the admin list on first run so
// a fresh deployment is never locked out.
func New(ctx context.Context, db *storage.DB, bootstrap string, log *slog.Logger) (*Auth, error) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	a := &Auth{
		db:  db,
		log: log.With("component", "auth"),
		lists: map[Role]map[string]bool{
			RoleAdmin:  {},
			RoleMinter: {},
			RoleViewer: {},
		},
	}
	if err := a.load(ctx); err != nil {
		return nil, err
	}
	if bootstrap != "" && len(a.lists[RoleAdmin]) == 0 {
		if err := a.Add(ctx, RoleAdmin, []string{bootstrap}); err != nil {
			return nil, err
		}
		a.log.Info("bootstrap admin installed", "address", bootstrap)
	}
	return a, nil
}

func roleKey(role Role) []byte {
	return storage.Key(nsAuth, []byte("role"), []byte(role))
}

func keyViewingKey(addr string) []byte {
	return storage.Key(nsAuth, []byte("vk"), []byte(addr))
}

func (a *Auth) load(ctx context.Context) error {
	err := a.db.WithReadTxn(ctx, func(txn *badgerdb.Txn) error {
		for role := range a.lists {
			raw, err := storage.Get(txn, roleKey(role))
			if errors.Is(err, badgerdb.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			for _, addr := range strings.Split(string(raw), "\n") {
				if addr != "" {
					a.lists[role][addr] = true
				}
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("load allow-lists: %w", err)
	}
	return nil
}

// Add puts addresses on a role's allow-list. Already listed addresses
// are silently kept. Addresses are validated because the lists persist
// newline-joined.
func (a *Auth) Add(ctx context.Context, role Role, addrs []string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	list, ok := a.lists[role]
	if !ok {
		return fmt.Errorf("%q: %w", role, ErrUnknownRole)
	}
	if err := validation.ValidateAddresses(addrs); err != nil {
		return err
	}
	changed := false
	for _, addr := range addrs {
		if addr != "" && !list[addr] {
			list[addr] = true
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return a.persist(ctx, role, list)
}

// Remove drops addresses from a role's allow-list.
func (a *Auth) Remove(ctx context.Context, role Role, addrs []string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	list, ok := a.lists[role]
	if !ok {
		return fmt.Errorf("%q: %w", role, ErrUnknownRole)
	}
	changed := false
	for _, addr := range addrs {
		if list[addr] {
			delete(list, addr)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return a.persist(ctx, role, list)
}

// List returns a role's allow-list.
func (a *Auth) List(role Role) ([]string, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	list, ok := a.lists[role]
	if !ok {
		return nil, fmt.Errorf("%q: %w", role, ErrUnknownRole)
	}
	out := make([]string, 0, len(list))
	for addr := range list {
		out = append(out, addr)
	}
	return out, nil
}

// Allowed reports whether addr holds the role. Admins implicitly hold
// every role.
func (a *Auth) Allowed(role Role, addr string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.lists[RoleAdmin][addr] {
		return true
	}
	list, ok := a.lists[role]
	return ok && list[addr]
}

// Require returns ErrUnauthorized unless addr holds the role.
func (a *Auth) Require(role Role, addr string) error {
	if !a.Allowed(role, addr) {
		return fmt.Errorf("%s is not a %s: %w", addr, role, ErrUnauthorized)
	}
	return nil
}

func (a *Auth) persist(ctx context.Context, role Role, list map[string]bool) error {
	addrs := make([]string, 0, len(list))
	for addr := range list {
		addrs = append(addrs, addr)
	}
	err := a.db.WithTxn(ctx, func(txn *badgerdb.Txn) error {
		return txn.Set(roleKey(role), []byte(strings.Join(addrs, "\n")))
	})
	if err != nil {
		return fmt.Errorf("persist %s list: %w", role, err)
	}
	return nil
}

// CreateKey mints a fresh viewing key for addr from the seeded draw
// source, stores its digest, and returns the plaintext. Any previous
// key for the address stops working.
func (a *Auth) CreateKey(ctx context.Context, addr string, src genetics.DrawSource) (string, error) {
	var raw [32]byte
	for i := 0; i < len(raw); i += 8 {
		binary.LittleEndian.PutUint64(raw[i:], src.NextUint64())
	}
	sum := sha256.Sum256(raw[:])
	key := keyPrefix + base64.StdEncoding.EncodeToString(sum[:])
	if err := a.SetKey(ctx, addr, key); err != nil {
		return "", err
	}
	return key, nil
}

// SetKey stores the digest of a caller-chosen viewing key.
func (a *Auth) SetKey(ctx context.Context, addr, key string) error {
	sum := sha256.Sum256([]byte(key))
	err := a.db.WithTxn(ctx, func(txn *badgerdb.Txn) error {
		return txn.Set(keyViewingKey(addr), sum[:])
	})
	if err != nil {
		return fmt.Errorf("store viewing key for %s: %w", addr, err)
	}
	a.log.Info("viewing key set", "address", addr)
	return nil
}

// CheckKey verifies a presented viewing key in constant time. An
// address with no stored key is compared against an all-zero digest so
// the timing is identical either way.
func (a *Auth) CheckKey(ctx context.Context, addr, key string) (bool, error) {
	stored := make([]byte, sha256.Size)
	err := a.db.WithReadTxn(ctx, func(txn *badgerdb.Txn) error {
		raw, err := storage.Get(txn, keyViewingKey(addr))
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		copy(stored, raw)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("load viewing key for %s: %w", addr, err)
	}
	sum := sha256.Sum256([]byte(key))
	return subtle.ConstantTimeCompare(stored, sum[:]) == 1, nil
}
