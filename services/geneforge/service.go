// Copyright (C) 2025 Umbral Works (dev@umbralworks.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package geneforge is the HTTP service tying the trait registry, gene
// roller, fingerprint ledger, and reveal engine together. Minting is
// serialized under one lock so uniqueness decisions never race.
package geneforge

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/umbralworks/geneforge/services/geneforge/auth"
	"github.com/umbralworks/geneforge/services/geneforge/config"
	"github.com/umbralworks/geneforge/services/geneforge/genetics"
	"github.com/umbralworks/geneforge/services/geneforge/ledger"
	"github.com/umbralworks/geneforge/services/geneforge/registry"
	"github.com/umbralworks/geneforge/services/geneforge/reveal"
	storage "github.com/umbralworks/geneforge/services/geneforge/storage/badger"
)

var tracer = otel.Tracer("geneforge/service")

var (
	keyMinted   = storage.Key("conf", []byte("minted"))
	keyHeight   = storage.Key("conf", []byte("height"))
	keyMintHalt = storage.Key("conf", []byte("minthalt"))
	keyBgCounts = storage.Key("conf", []byte("bgcnt"))
)

// Service is the GeneForge application core.
//
// Thread Safety: safe for concurrent use. Mint, reveal, and admin
// mutations are serialized under mu; read-only queries take storage
// snapshots.
type Service struct {
	db     *storage.DB
	reg    *registry.Registry
	ledger *ledger.Ledger
	store  *reveal.Store
	rev    *reveal.Revealer
	auth   *auth.Auth
	log    *slog.Logger

	cfg  config.MintConfig
	seed []byte

	mu       sync.Mutex
	roller   *genetics.Roller
	minted   int
	height   uint64
	halted   bool
	bgCounts map[string]int

	// now is swappable for tests.
	now func() time.Time
}

// NewService wires the application core over an open database.
//
// Description:
//
//	Loads the registry, derives or restores the draw seed, restores
//	mint counters, installs the bootstrap admin, and builds the roller
//	when a roll configuration already exists.
func NewService(ctx context.Context, db *storage.DB, cfg *config.Config, log *slog.Logger) (*Service, error) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	log = log.With("component", "service")

	reg := registry.New(db, log)
	if err := reg.Load(ctx); err != nil {
		return nil, fmt.Errorf("load registry: %w", err)
	}
	seed, err := genetics.LoadOrCreateSeed(ctx, db, cfg.Mint.Entropy)
	if err != nil {
		return nil, err
	}
	ac, err := auth.New(ctx, db, cfg.Mint.Admin, log)
	if err != nil {
		return nil, err
	}

	store := reveal.NewStore(db)
	s := &Service{
		db:     db,
		reg:    reg,
		ledger: ledger.New(db, log),
		store:  store,
		rev: reveal.New(store, reg, reveal.Cooldowns{
			Random:   cfg.Reveal.RandomCooldown.Std(),
			Targeted: cfg.Reveal.TargetedCooldown.Std(),
			All:      cfg.Reveal.AllCooldown.Std(),
		}, log),
		auth:     ac,
		log:      log,
		cfg:      cfg.Mint,
		seed:     seed,
		bgCounts: map[string]int{},
		now:      time.Now,
	}
	if err := s.restoreState(ctx); err != nil {
		return nil, err
	}
	if err := s.rebuildRoller(); err != nil && !errors.Is(err, registry.ErrNoRollConfig) {
		return nil, err
	}
	log.Info("service ready", "minted", s.minted, "supply_cap", cfg.Mint.SupplyCap)
	return s, nil
}

func (s *Service) restoreState(ctx context.Context) error {
	err := s.db.WithReadTxn(ctx, func(txn *badgerdb.Txn) error {
		if raw, err := storage.Get(txn, keyMinted); err == nil {
			s.minted = int(binary.BigEndian.Uint64(raw))
		} else if !errors.Is(err, badgerdb.ErrKeyNotFound) {
			return err
		}
		if raw, err := storage.Get(txn, keyHeight); err == nil {
			s.height = binary.BigEndian.Uint64(raw)
		} else if !errors.Is(err, badgerdb.ErrKeyNotFound) {
			return err
		}
		if raw, err := storage.Get(txn, keyMintHalt); err == nil {
			s.halted = len(raw) == 1 && raw[0] == 1
		} else if !errors.Is(err, badgerdb.ErrKeyNotFound) {
			return err
		}
		if raw, err := storage.Get(txn, keyBgCounts); err == nil {
			return json.Unmarshal(raw, &s.bgCounts)
		} else if !errors.Is(err, badgerdb.ErrKeyNotFound) {
			return err
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("restore mint state: %w", err)
	}
	return nil
}

// rebuildRoller is called after every registry mutation; caller holds
// mu except during construction.
func (s *Service) rebuildRoller() error {
	roller, err := genetics.NewRoller(s.reg)
	if err != nil {
		s.roller = nil
		return err
	}
	roller.MaxAttempts = s.cfg.MaxAttempts
	s.roller = roller
	return nil
}

// nextHeight advances and persists the entropy counter. Caller holds mu.
func (s *Service) nextHeight(ctx context.Context) (uint64, error) {
	s.height++
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], s.height)
	err := s.db.WithTxn(ctx, func(txn *badgerdb.Txn) error {
		return txn.Set(keyHeight, buf[:])
	})
	if err != nil {
		return 0, fmt.Errorf("advance height: %w", err)
	}
	return s.height, nil
}

func (s *Service) drawSource(ctx context.Context, sender, entropy string) (*genetics.Prng, error) {
	h, err := s.nextHeight(ctx)
	if err != nil {
		return nil, err
	}
	ext := genetics.ExtendEntropy(h, s.now(), sender, entropy)
	return genetics.NewPrng(s.seed, ext)
}

func keyOwner(tokenID string) []byte {
	return storage.Key("tok", []byte(tokenID), []byte("own"))
}

// Mint rolls and stores a batch of unique genes.
//
// Description:
//
//	Checks the minter role, the halt switch, the batch cap, the supply
//	cap, and the requested background's remaining count, then rolls
//	Count genes against the ledger plus an intra-batch supplement.
//	Accepted fingerprints are committed to the ledger in one
//	transaction before any token becomes visible.
//
// Outputs:
//
//	*MintResponse - Token ids only; genes stay hidden until revealed.
func (s *Service) Mint(ctx context.Context, req MintRequest) (*MintResponse, error) {
	ctx, span := tracer.Start(ctx, "Mint", trace.WithAttributes(
		attribute.Int("mint.count", req.Count),
		attribute.String("mint.background", req.Background),
	))
	defer span.End()

	if err := s.auth.Require(auth.RoleMinter, req.Sender); err != nil {
		return nil, err
	}
	count := req.Count
	if count == 0 {
		count = 1
	}
	if count < 1 || count > s.cfg.MaxBatch {
		return nil, fmt.Errorf("count %d, limit %d: %w", count, s.cfg.MaxBatch, ErrBatchTooLarge)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.halted {
		return nil, ErrMintHalted
	}
	if s.roller == nil {
		if err := s.rebuildRoller(); err != nil {
			return nil, err
		}
	}
	if s.minted+count > s.cfg.SupplyCap {
		return nil, fmt.Errorf("minted %d of %d: %w", s.minted, s.cfg.SupplyCap, ErrSupplyExhausted)
	}

	rc, err := s.reg.RollConfig()
	if err != nil {
		return nil, err
	}
	bgCat, _, err := s.reg.CategoryByName(rc.BackgroundCategory)
	if err != nil {
		return nil, err
	}
	bgIdx, err := s.reg.VariantIndex(bgCat, req.Background)
	if err != nil {
		return nil, err
	}
	if remaining, tracked := s.bgCounts[req.Background]; tracked && remaining < count {
		return nil, fmt.Errorf("%s has %d left: %w", req.Background, remaining, ErrBackgroundExhausted)
	}

	src, err := s.drawSource(ctx, req.Sender, req.Entropy)
	if err != nil {
		return nil, err
	}

	batch := genetics.NewBatch()
	results := make([]*genetics.Result, 0, count)
	for i := 0; i < count; i++ {
		res, err := s.roller.Roll(src, bgIdx, s.ledger, batch)
		if err != nil {
			return nil, fmt.Errorf("roll %d of %d: %w", i+1, count, err)
		}
		results = append(results, res)
	}

	// Stage the in-memory state the commit will establish, then write
	// ledger entries, images, owners, and counters in one transaction.
	// A failure anywhere leaves neither burned fingerprints nor partial
	// tokens behind.
	newMinted := s.minted + count
	newBg := s.bgCounts
	if _, tracked := s.bgCounts[req.Background]; tracked {
		newBg = make(map[string]int, len(s.bgCounts))
		for k, v := range s.bgCounts {
			newBg[k] = v
		}
		newBg[req.Background] -= count
	}

	resp := &MintResponse{Tokens: make([]MintedToken, 0, count)}
	for i, res := range results {
		resp.Tokens = append(resp.Tokens, MintedToken{
			ID:             uuid.NewString(),
			Serial:         s.minted + i + 1,
			Attempts:       res.Attempts,
			PartialRerolls: res.PartialRerolls,
		})
	}

	err = s.db.WithTxn(ctx, func(txn *badgerdb.Txn) error {
		if err := s.ledger.RecordIn(txn, batch.Fingerprints()); err != nil {
			return err
		}
		for i, res := range results {
			id := resp.Tokens[i].ID
			if err := s.store.SaveIn(txn, id, reveal.NewImage(res.Gene)); err != nil {
				return err
			}
			if err := txn.Set(keyOwner(id), []byte(req.Sender)); err != nil {
				return err
			}
		}
		return writeCounters(txn, newMinted, newBg)
	})
	if err != nil {
		return nil, fmt.Errorf("commit mint: %w", err)
	}

	s.minted = newMinted
	s.bgCounts = newBg
	for _, res := range results {
		metricMinted.Inc()
		metricRollAttempts.Observe(float64(res.Attempts))
		metricPartialRerolls.Add(float64(res.PartialRerolls))
	}
	resp.Minted = s.minted
	s.log.Info("mint complete", "sender", req.Sender, "count", count, "minted", s.minted)
	return resp, nil
}

func writeCounters(txn *badgerdb.Txn, minted int, bgCounts map[string]int) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(minted))
	raw, err := json.Marshal(bgCounts)
	if err != nil {
		return err
	}
	if err := txn.Set(keyMinted, buf[:]); err != nil {
		return err
	}
	return txn.Set(keyBgCounts, raw)
}

func (s *Service) persistCounters(ctx context.Context) error {
	err := s.db.WithTxn(ctx, func(txn *badgerdb.Txn) error {
		return writeCounters(txn, s.minted, s.bgCounts)
	})
	if err != nil {
		return fmt.Errorf("persist counters: %w", err)
	}
	return nil
}

// Reveal applies one reveal operation to a token the sender owns.
func (s *Service) Reveal(ctx context.Context, tokenID string, req RevealRequest) (*RevealResponse, error) {
	ctx, span := tracer.Start(ctx, "Reveal", trace.WithAttributes(
		attribute.String("reveal.kind", req.Type),
	))
	defer span.End()

	owner, err := s.tokenOwner(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	if owner != req.Sender {
		return nil, fmt.Errorf("token %s: %w", tokenID, ErrNotOwner)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var revealed []string
	switch req.Type {
	case "random":
		src, err := s.drawSource(ctx, req.Sender, req.Entropy)
		if err != nil {
			return nil, err
		}
		revealed, err = s.rev.Random(ctx, tokenID, src)
		if err != nil {
			return nil, err
		}
	case "targeted":
		revealed, err = s.rev.Targeted(ctx, tokenID, req.Category)
		if err != nil {
			return nil, err
		}
	case "all":
		revealed, err = s.rev.All(ctx, tokenID)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown reveal type %q", req.Type)
	}
	metricReveals.WithLabelValues(req.Type).Inc()
	return &RevealResponse{Revealed: revealed}, nil
}

func (s *Service) tokenOwner(ctx context.Context, tokenID string) (string, error) {
	var owner string
	err := s.db.WithReadTxn(ctx, func(txn *badgerdb.Txn) error {
		raw, err := storage.Get(txn, keyOwner(tokenID))
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return fmt.Errorf("%s: %w", tokenID, reveal.ErrUnknownToken)
		}
		if err != nil {
			return err
		}
		owner = string(raw)
		return nil
	})
	return owner, err
}

// TokenInfo returns the private view of a token to its owner or to a
// listed viewer with a valid viewing key.
func (s *Service) TokenInfo(ctx context.Context, tokenID string, q TokenQuery) (*GeneInfo, error) {
	owner, err := s.tokenOwner(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	if q.Sender != owner {
		if !s.auth.Allowed(auth.RoleViewer, q.Sender) {
			return nil, fmt.Errorf("%s: %w", q.Sender, auth.ErrUnauthorized)
		}
		ok, err := s.auth.CheckKey(ctx, q.Sender, q.ViewingKey)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("viewing key rejected: %w", auth.ErrUnauthorized)
		}
	}

	img, err := s.store.Image(ctx, tokenID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	roller := s.roller
	s.mu.Unlock()
	var fp string
	if roller != nil {
		cyclops, jawless, err := s.archetypeFlags(img.Natural)
		if err != nil {
			return nil, err
		}
		raw, err := roller.Fingerprint(img.Natural, cyclops, jawless)
		if err != nil {
			return nil, err
		}
		fp = hex.EncodeToString(raw)
	}
	return &GeneInfo{
		Current:     img.Current,
		Previous:    img.Previous,
		Natural:     img.Natural,
		Fingerprint: fp,
		Owner:       owner,
	}, nil
}

// archetypeFlags recovers the cyclops and jawless flags from a stored
// gene using the configured eye and jaw tables.
func (s *Service) archetypeFlags(gene []uint8) (bool, bool, error) {
	rc, err := s.reg.RollConfig()
	if err != nil {
		return false, false, err
	}
	var cyclops, jawless bool
	if rc.EyeTypeCategory != "" {
		eyeCat, _, err := s.reg.CategoryByName(rc.EyeTypeCategory)
		if err != nil {
			return false, false, err
		}
		cycVar, err := s.reg.VariantIndex(eyeCat, rc.CyclopsVariant)
		if err != nil {
			return false, false, err
		}
		cyclops = gene[eyeCat] == cycVar
	}
	if rc.ChinCategory != "" {
		chinCat, _, err := s.reg.CategoryByName(rc.ChinCategory)
		if err != nil {
			return false, false, err
		}
		noneVar, err := s.reg.VariantIndex(chinCat, rc.NoneVariant)
		if err == nil && len(rc.JawWeights) == 2 {
			jawless = gene[chinCat] == noneVar
		}
	}
	return cyclops, jawless, nil
}

// AddGenes imports externally generated genes into the ledger.
func (s *Service) AddGenes(ctx context.Context, req AddGenesRequest) (*AddGenesResponse, error) {
	if err := s.auth.Require(auth.RoleAdmin, req.Sender); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.roller == nil {
		if err := s.rebuildRoller(); err != nil {
			return nil, err
		}
	}
	fps := make([][]byte, 0, len(req.Genes))
	for _, gene := range req.Genes {
		if len(gene) != s.reg.CategoryCount() {
			return nil, fmt.Errorf("gene has %d slots, catalog has %d", len(gene), s.reg.CategoryCount())
		}
		cyclops, jawless, err := s.archetypeFlags(gene)
		if err != nil {
			return nil, err
		}
		fp, err := s.roller.Fingerprint(gene, cyclops, jawless)
		if err != nil {
			return nil, err
		}
		fps = append(fps, fp)
	}
	if err := s.ledger.Record(ctx, fps); err != nil {
		return nil, err
	}
	metricGenesImported.Add(float64(len(fps)))
	s.log.Info("genes imported", "count", len(fps), "sender", req.Sender)
	return &AddGenesResponse{Recorded: len(fps)}, nil
}

// SetMintHalt pauses or resumes minting.
func (s *Service) SetMintHalt(ctx context.Context, sender string, halt bool) error {
	if err := s.auth.Require(auth.RoleAdmin, sender); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.halted == halt {
		return nil
	}
	s.halted = halt
	flag := []byte{0}
	if halt {
		flag[0] = 1
	}
	err := s.db.WithTxn(ctx, func(txn *badgerdb.Txn) error {
		return txn.Set(keyMintHalt, flag)
	})
	if err != nil {
		return fmt.Errorf("persist halt: %w", err)
	}
	s.log.Info("mint halt changed", "halt", halt, "sender", sender)
	return nil
}

// SetRevealHalt pauses or resumes reveals.
func (s *Service) SetRevealHalt(sender string, halt bool) error {
	if err := s.auth.Require(auth.RoleAdmin, sender); err != nil {
		return err
	}
	s.rev.SetHalt(halt)
	return nil
}

// SetCooldowns updates the reveal cooldown periods. Nil fields keep
// their current value.
func (s *Service) SetCooldowns(req CooldownsRequest) (reveal.Cooldowns, error) {
	if err := s.auth.Require(auth.RoleAdmin, req.Sender); err != nil {
		return reveal.Cooldowns{}, err
	}
	cool := s.rev.CooldownSettings()
	if req.Random != nil {
		cool.Random = time.Duration(*req.Random) * time.Second
	}
	if req.Targeted != nil {
		cool.Targeted = time.Duration(*req.Targeted) * time.Second
	}
	if req.All != nil {
		cool.All = time.Duration(*req.All) * time.Second
	}
	s.rev.SetCooldowns(cool)
	return cool, nil
}

// SetBackgroundCounts replaces the per-background mintable counts.
func (s *Service) SetBackgroundCounts(ctx context.Context, req BackgroundCountsRequest) error {
	if err := s.auth.Require(auth.RoleAdmin, req.Sender); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rc, err := s.reg.RollConfig()
	if err != nil {
		return err
	}
	bgCat, _, err := s.reg.CategoryByName(rc.BackgroundCategory)
	if err != nil {
		return err
	}
	counts := make(map[string]int, len(req.Counts))
	for _, bc := range req.Counts {
		if _, err := s.reg.VariantIndex(bgCat, bc.Background); err != nil {
			return err
		}
		counts[bc.Background] = bc.Count
	}
	s.bgCounts = counts
	return s.persistCounters(ctx)
}

// Status reports the public service state.
func (s *Service) Status(ctx context.Context) (*StatusResponse, error) {
	n, err := s.ledger.Count(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var bg map[string]int
	if len(s.bgCounts) > 0 {
		bg = make(map[string]int, len(s.bgCounts))
		for name, remaining := range s.bgCounts {
			bg[name] = remaining
		}
	}
	return &StatusResponse{
		MintHalted:       s.halted,
		RevealHalted:     s.rev.Halted(),
		Minted:           s.minted,
		SupplyCap:        s.cfg.SupplyCap,
		LedgerCount:      n,
		BackgroundCounts: bg,
	}, nil
}

// ViewingKey creates or sets a viewing key for the sender.
func (s *Service) ViewingKey(ctx context.Context, req ViewingKeyRequest) (*ViewingKeyResponse, error) {
	if req.Key != "" {
		if err := s.auth.SetKey(ctx, req.Sender, req.Key); err != nil {
			return nil, err
		}
		return &ViewingKeyResponse{Key: req.Key}, nil
	}
	s.mu.Lock()
	src, err := s.drawSource(ctx, req.Sender, req.Entropy)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	key, err := s.auth.CreateKey(ctx, req.Sender, src)
	if err != nil {
		return nil, err
	}
	return &ViewingKeyResponse{Key: key}, nil
}

// EditRoster adds or removes addresses on a role allow-list.
func (s *Service) EditRoster(ctx context.Context, role auth.Role, req RosterRequest, add bool) (*RosterResponse, error) {
	if err := s.auth.Require(auth.RoleAdmin, req.Sender); err != nil {
		return nil, err
	}
	var err error
	if add {
		err = s.auth.Add(ctx, role, req.Addresses)
	} else {
		err = s.auth.Remove(ctx, role, req.Addresses)
	}
	if err != nil {
		return nil, err
	}
	list, err := s.auth.List(role)
	if err != nil {
		return nil, err
	}
	return &RosterResponse{Addresses: list}, nil
}

// AddCategory creates a trait category and rebuilds the roller.
func (s *Service) AddCategory(ctx context.Context, req CategoryRequest) (*CategoryResponse, error) {
	if err := s.auth.Require(auth.RoleAdmin, req.Sender); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, err := s.reg.AddCategory(ctx, req.Category, req.Variants)
	if err != nil {
		return nil, err
	}
	s.refreshRoller()
	return &CategoryResponse{Index: idx}, nil
}

// ModifyCategory renames a category or changes its forced variants.
func (s *Service) ModifyCategory(ctx context.Context, req ModifyCategoryRequest) error {
	if err := s.auth.Require(auth.RoleAdmin, req.Sender); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.reg.ModifyCategory(ctx, req.Name, req.NewName, req.ForcedCyclops, req.ForcedJawless); err != nil {
		return err
	}
	s.refreshRoller()
	return nil
}

// AddVariants appends variants to a category.
func (s *Service) AddVariants(ctx context.Context, req VariantsRequest) error {
	if err := s.auth.Require(auth.RoleAdmin, req.Sender); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.reg.AddVariants(ctx, req.Category, req.Variants); err != nil {
		return err
	}
	s.refreshRoller()
	return nil
}

// ModifyVariant renames or reweights one variant.
func (s *Service) ModifyVariant(ctx context.Context, req ModifyVariantRequest) error {
	if err := s.auth.Require(auth.RoleAdmin, req.Sender); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.reg.ModifyVariant(ctx, req.Category, req.Name, req.Spec); err != nil {
		return err
	}
	s.refreshRoller()
	return nil
}

// SetDependencies replaces the dependency graph.
func (s *Service) SetDependencies(ctx context.Context, req GraphRequest) error {
	if err := s.auth.Require(auth.RoleAdmin, req.Sender); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.reg.SetDependencies(ctx, req.Entries); err != nil {
		return err
	}
	s.refreshRoller()
	return nil
}

// SetHiders replaces the hider graph.
func (s *Service) SetHiders(ctx context.Context, req GraphRequest) error {
	if err := s.auth.Require(auth.RoleAdmin, req.Sender); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.reg.SetHiders(ctx, req.Entries); err != nil {
		return err
	}
	s.refreshRoller()
	return nil
}

// SetRollConfig replaces the roll configuration.
func (s *Service) SetRollConfig(ctx context.Context, req RollConfigRequest) error {
	if err := s.auth.Require(auth.RoleAdmin, req.Sender); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.reg.SetRollConfig(ctx, req.Config); err != nil {
		return err
	}
	return s.rebuildRoller()
}

// refreshRoller rebuilds the roller after a registry mutation,
// tolerating an absent roll configuration. Caller holds mu.
func (s *Service) refreshRoller() {
	if err := s.rebuildRoller(); err != nil && !errors.Is(err, registry.ErrNoRollConfig) {
		s.log.Warn("roller rebuild failed", "error", err)
	}
}

// Registry exposes the trait catalog for read-only queries.
func (s *Service) Registry() *registry.Registry { return s.reg }
