// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package anchor implements the quorum-gated root registry of the main
// chain.  Each (chain, block) pair can be anchored once; anchors are never
// changed or removed afterwards.
package anchor

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"gitlab.com/jaxnet/smicp/database"
	"gitlab.com/jaxnet/smicp/node/keylock"
	"gitlab.com/jaxnet/smicp/node/validators"
	"gitlab.com/jaxnet/smicp/types/chainhash"
	"gitlab.com/jaxnet/smicp/types/coreerr"
	"gitlab.com/jaxnet/smicp/types/events"
	"gitlab.com/jaxnet/smicp/types/wire"
)

const (
	rootPrefix    = "root"
	validatorsKey = "validators"
)

// Anchor is the committed, signed fingerprint of one sidechain block.
type Anchor struct {
	ChainID     string         `json:"chain_id"`
	BlockNumber uint64         `json:"block_number"`
	Root        chainhash.Hash `json:"root"`
	Signers     []string       `json:"signers"`
	Timestamp   time.Time      `json:"timestamp"`
	Submitter   string         `json:"submitter"`
}

// ValidatorSetInfo is a read-only view of the validator set.
type ValidatorSetInfo struct {
	Validators         []validators.Validator `json:"validators"`
	RequiredSignatures int                    `json:"required_signatures"`
}

// Config holds the registry collaborators.
type Config struct {
	DB database.DB

	// Validators seeds the set on first start.  A set persisted by an
	// earlier run takes precedence.
	Validators *validators.Set

	// Locks is shared with the other components of the node.  Nil creates
	// a private locker.
	Locks *keylock.Locker

	// Now defaults to time.Now.
	Now func() time.Time
}

// Registry is the AnchorRegistry.
type Registry struct {
	db    database.DB
	locks *keylock.Locker
	now   func() time.Time

	setMtx sync.RWMutex
	set    *validators.Set
}

// RootKey returns the storage key of the anchor for (chainID, blockNumber).
func RootKey(chainID string, blockNumber uint64) []byte {
	return database.Key(rootPrefix, chainID, database.Uint(blockNumber))
}

// New builds a registry and loads or seeds the persisted validator set.
func New(cfg Config) (*Registry, error) {
	r := &Registry{db: cfg.DB, locks: cfg.Locks, now: cfg.Now}
	if r.locks == nil {
		r.locks = keylock.New()
	}
	if r.now == nil {
		r.now = time.Now
	}

	raw, err := r.db.Get([]byte(validatorsKey))
	switch {
	case err == nil:
		set := new(validators.Set)
		if err := json.Unmarshal(raw, set); err != nil {
			return nil, coreerr.Storage(validatorsKey, err, "unable to decode validator set")
		}
		r.set = set
		log.Info().Int("validators", set.Len()).Int("required", set.Required()).
			Msg("Loaded persisted validator set")

	case database.IsNotFound(err):
		if cfg.Validators == nil {
			return nil, coreerr.New(coreerr.ErrInvalidInput, validatorsKey,
				"no validator set configured")
		}
		if err := r.persistSet(cfg.Validators); err != nil {
			return nil, err
		}
		r.set = cfg.Validators.Clone()

	default:
		return nil, coreerr.Storage(validatorsKey, err, "unable to load validator set")
	}
	return r, nil
}

func (r *Registry) persistSet(set *validators.Set) error {
	raw, err := json.Marshal(set)
	if err != nil {
		return coreerr.Storage(validatorsKey, err, "unable to encode validator set")
	}
	if err := r.db.Put([]byte(validatorsKey), raw); err != nil {
		return coreerr.Storage(validatorsKey, err, "unable to store validator set")
	}
	return nil
}

func (r *Registry) currentSet() *validators.Set {
	r.setMtx.RLock()
	defer r.setMtx.RUnlock()
	return r.set
}

func checkChain(chainID, key string) error {
	if !database.ValidSegment(chainID) {
		return coreerr.Newf(coreerr.ErrInvalidInput, key,
			"chain id %q must be non-empty and must not contain %q", chainID, database.KeySeparator)
	}
	return nil
}

// AnchorRoot stores root for (chainID, blockNumber) once at least the
// required number of distinct validators signed the canonical anchor
// message.  The duplicate check comes first, so a second anchor for the
// same block fails with a conflict whatever its signatures.
func (r *Registry) AnchorRoot(submitter, chainID string, blockNumber uint64,
	root chainhash.Hash, sigs []validators.Signature) (*Anchor, []events.Event, error) {

	key := RootKey(chainID, blockNumber)
	if err := checkChain(chainID, string(key)); err != nil {
		return nil, nil, err
	}
	if root.IsZero() {
		return nil, nil, coreerr.New(coreerr.ErrInvalidInput, string(key), "root is empty")
	}

	unlock := r.locks.Lock(string(key))
	defer unlock()

	exists, err := r.db.Has(key)
	if err != nil {
		return nil, nil, coreerr.Storage(string(key), err, "unable to check anchor")
	}
	if exists {
		log.Debug().Str("key", string(key)).Msg("Rejected duplicate anchor")
		return nil, nil, coreerr.New(coreerr.ErrDuplicateAnchor, string(key),
			"block already anchored")
	}

	set := r.currentSet()
	msg := wire.AnchorMessage{ChainID: chainID, BlockNumber: blockNumber, Root: root}
	signers := set.Signers(msg.SigHash(), sigs)
	if len(signers) < set.Required() {
		log.Debug().Str("key", string(key)).Int("valid", len(signers)).
			Int("required", set.Required()).Msg("Rejected anchor without quorum")
		return nil, nil, coreerr.Newf(coreerr.ErrInsufficientSignatures, string(key),
			"%d distinct valid signatures, %d required", len(signers), set.Required())
	}

	anchor := &Anchor{
		ChainID:     chainID,
		BlockNumber: blockNumber,
		Root:        root,
		Signers:     signers,
		Timestamp:   r.now().UTC(),
		Submitter:   submitter,
	}
	raw, err := json.Marshal(anchor)
	if err != nil {
		return nil, nil, coreerr.Storage(string(key), err, "unable to encode anchor")
	}
	if err := r.db.Put(key, raw); err != nil {
		return nil, nil, coreerr.Storage(string(key), err, "unable to store anchor")
	}

	log.Info().Str("chain", chainID).Uint64("block", blockNumber).
		Stringer("root", root).Int("signers", len(signers)).Msg("Root anchored")
	ev := events.New(events.RootAnchored, string(key), anchor.Timestamp, *anchor)
	return anchor, []events.Event{ev}, nil
}

// GetAnchor returns the anchor for (chainID, blockNumber).
func (r *Registry) GetAnchor(chainID string, blockNumber uint64) (*Anchor, error) {
	key := RootKey(chainID, blockNumber)
	raw, err := r.db.Get(key)
	if database.IsNotFound(err) {
		return nil, coreerr.New(coreerr.ErrNotFound, string(key), "no anchor for block")
	}
	if err != nil {
		return nil, coreerr.Storage(string(key), err, "unable to read anchor")
	}

	anchor := new(Anchor)
	if err := json.Unmarshal(raw, anchor); err != nil {
		return nil, coreerr.Storage(string(key), err, "unable to decode anchor")
	}
	return anchor, nil
}

// AnchoredRoot returns only the root of the anchor for (chainID, blockNumber).
func (r *Registry) AnchoredRoot(chainID string, blockNumber uint64) (chainhash.Hash, error) {
	anchor, err := r.GetAnchor(chainID, blockNumber)
	if err != nil {
		return chainhash.Hash{}, err
	}
	return anchor.Root, nil
}

// ListAnchors returns the anchors of chainID ordered by block number, or of
// every chain when chainID is empty.
func (r *Registry) ListAnchors(chainID string) ([]Anchor, error) {
	prefix := database.Prefix(rootPrefix)
	if chainID != "" {
		if err := checkChain(chainID, string(prefix)); err != nil {
			return nil, err
		}
		prefix = database.Prefix(rootPrefix, chainID)
	}

	var anchors []Anchor
	err := r.db.Iterate(prefix, func(key, value []byte) error {
		var a Anchor
		if err := json.Unmarshal(value, &a); err != nil {
			return coreerr.Storage(string(key), err, "unable to decode anchor")
		}
		anchors = append(anchors, a)
		return nil
	})
	if err != nil {
		if _, ok := coreerr.As(err); ok {
			return nil, err
		}
		return nil, coreerr.Storage(string(prefix), err, "unable to list anchors")
	}

	sort.Slice(anchors, func(i, j int) bool {
		if anchors[i].ChainID != anchors[j].ChainID {
			return anchors[i].ChainID < anchors[j].ChainID
		}
		return anchors[i].BlockNumber < anchors[j].BlockNumber
	})
	return anchors, nil
}

// Validators returns a snapshot of the validator set.
func (r *Registry) Validators() ValidatorSetInfo {
	set := r.currentSet()
	return ValidatorSetInfo{Validators: set.Members(), RequiredSignatures: set.Required()}
}

// updateSet applies fn to a copy of the set, persists it and swaps it in.
// Stored anchors are not touched.
func (r *Registry) updateSet(fn func(set *validators.Set) error) (ValidatorSetInfo, error) {
	r.setMtx.Lock()
	defer r.setMtx.Unlock()

	next := r.set.Clone()
	if err := fn(next); err != nil {
		return ValidatorSetInfo{}, err
	}
	if err := r.persistSet(next); err != nil {
		return ValidatorSetInfo{}, err
	}
	r.set = next
	return ValidatorSetInfo{Validators: next.Members(), RequiredSignatures: next.Required()}, nil
}

// AddValidator admits a validator.
func (r *Registry) AddValidator(v validators.Validator) (*validators.Validator, []events.Event, error) {
	var added validators.Validator
	_, err := r.updateSet(func(set *validators.Set) error {
		var err error
		added, err = set.Add(v)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	log.Info().Str("validator", added.ID).Msg("Validator added")
	ev := events.New(events.ValidatorAdded, added.ID, r.now().UTC(), added)
	return &added, []events.Event{ev}, nil
}

// RemoveValidator drops a validator.  Anchors it already signed stay valid.
func (r *Registry) RemoveValidator(id string) (ValidatorSetInfo, []events.Event, error) {
	info, err := r.updateSet(func(set *validators.Set) error {
		return set.Remove(id)
	})
	if err != nil {
		return ValidatorSetInfo{}, nil, err
	}

	log.Info().Str("validator", id).Msg("Validator removed")
	ev := events.New(events.ValidatorRemoved, id, r.now().UTC(), info)
	return info, []events.Event{ev}, nil
}

// SetRequiredSignatures changes the quorum threshold.
func (r *Registry) SetRequiredSignatures(n int) (ValidatorSetInfo, []events.Event, error) {
	info, err := r.updateSet(func(set *validators.Set) error {
		return set.SetRequired(n)
	})
	if err != nil {
		return ValidatorSetInfo{}, nil, err
	}

	log.Info().Int("required", n).Msg("Quorum changed")
	ev := events.New(events.QuorumChanged, validatorsKey, r.now().UTC(), info)
	return info, []events.Event{ev}, nil
}
