// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package verifier checks inclusion proofs of foreign sidechain transactions
// against roots the local chain has chosen to trust.
//
// Whoever may call SetTrustedRoot decides what this chain trusts; access to
// it is controlled by the caller (the RPC server restricts it to admin
// users).  When an AnchorSource is configured, roots that differ from the
// anchored one are refused as well.
package verifier

import (
	"encoding/json"
	"sort"
	"time"

	"gitlab.com/jaxnet/smicp/database"
	"gitlab.com/jaxnet/smicp/node/keylock"
	"gitlab.com/jaxnet/smicp/node/merkle"
	"gitlab.com/jaxnet/smicp/types/chainhash"
	"gitlab.com/jaxnet/smicp/types/coreerr"
	"gitlab.com/jaxnet/smicp/types/events"
	"gitlab.com/jaxnet/smicp/types/wire"
)

const (
	trustedPrefix      = "trusted"
	verificationPrefix = "verification"
)

// TrustedRoot is a foreign block root accepted by this chain.
type TrustedRoot struct {
	SourceChain string         `json:"source_chain"`
	BlockNumber uint64         `json:"block_number"`
	Root        chainhash.Hash `json:"root"`
	RelayProof  string         `json:"relay_proof,omitempty"`
	RelayedBy   string         `json:"relayed_by,omitempty"`
	SetAt       time.Time      `json:"set_at"`
	Verified    []string       `json:"verified"`
}

// VerificationRecord proves one successful cross-chain check.
type VerificationRecord struct {
	TransactionHash chainhash.Hash `json:"transaction_hash"`
	SourceChain     string         `json:"source_chain"`
	BlockNumber     uint64         `json:"block_number"`
	Verifier        string         `json:"verifier"`
	Timestamp       time.Time      `json:"timestamp"`
}

// AnchorSource resolves the anchored root of a block.
type AnchorSource interface {
	AnchoredRoot(chainID string, blockNumber uint64) (chainhash.Hash, error)
}

// Config holds the verifier collaborators.
type Config struct {
	DB database.DB

	// Anchors enables the anchored-root policy when set.
	Anchors AnchorSource

	Locks *keylock.Locker
	Now   func() time.Time
}

// Verifier is the SidechainVerifier.
type Verifier struct {
	db      database.DB
	anchors AnchorSource
	locks   *keylock.Locker
	now     func() time.Time
}

// New builds a verifier.
func New(cfg Config) *Verifier {
	v := &Verifier{db: cfg.DB, anchors: cfg.Anchors, locks: cfg.Locks, now: cfg.Now}
	if v.locks == nil {
		v.locks = keylock.New()
	}
	if v.now == nil {
		v.now = time.Now
	}
	return v
}

// TrustedKey returns the storage key of a trusted root.
func TrustedKey(sourceChain string, blockNumber uint64) []byte {
	return database.Key(trustedPrefix, sourceChain, database.Uint(blockNumber))
}

// VerificationKey returns the storage key of a verification record.
func VerificationKey(txHash chainhash.Hash) []byte {
	return database.Key(verificationPrefix, txHash.String())
}

func (v *Verifier) loadTrusted(key []byte) (*TrustedRoot, error) {
	raw, err := v.db.Get(key)
	if database.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, coreerr.Storage(string(key), err, "unable to read trusted root")
	}
	tr := new(TrustedRoot)
	if err := json.Unmarshal(raw, tr); err != nil {
		return nil, coreerr.Storage(string(key), err, "unable to decode trusted root")
	}
	return tr, nil
}

func (v *Verifier) checkAnchored(key string, sourceChain string, blockNumber uint64,
	root chainhash.Hash) error {

	if v.anchors == nil {
		return nil
	}
	anchored, err := v.anchors.AnchoredRoot(sourceChain, blockNumber)
	switch {
	case err == nil:
	case coreerr.CodeIs(err, coreerr.ErrNotFound):
		return coreerr.New(coreerr.ErrUntrustedRoot, key, "block is not anchored")
	default:
		return err
	}
	if !anchored.IsEqual(&root) {
		return coreerr.Newf(coreerr.ErrUntrustedRoot, key,
			"root differs from anchored root %s", anchored)
	}
	return nil
}

// SetTrustedRoot stores or overwrites the trusted root of (sourceChain,
// blockNumber).  Replacing it with a different root drops the verified list
// collected under the old one.
func (v *Verifier) SetTrustedRoot(relayer, sourceChain string, blockNumber uint64,
	root chainhash.Hash, relayProof string) (*TrustedRoot, []events.Event, error) {

	key := TrustedKey(sourceChain, blockNumber)
	if !database.ValidSegment(sourceChain) {
		return nil, nil, coreerr.Newf(coreerr.ErrInvalidInput, string(key),
			"source chain %q must be non-empty and must not contain %q",
			sourceChain, database.KeySeparator)
	}
	if root.IsZero() {
		return nil, nil, coreerr.New(coreerr.ErrInvalidInput, string(key), "root is empty")
	}
	if err := v.checkAnchored(string(key), sourceChain, blockNumber, root); err != nil {
		log.Debug().Str("key", string(key)).Err(err).Msg("Refused trusted root")
		return nil, nil, err
	}

	unlock := v.locks.Lock(string(key))
	defer unlock()

	prev, err := v.loadTrusted(key)
	if err != nil {
		return nil, nil, err
	}

	tr := &TrustedRoot{
		SourceChain: sourceChain,
		BlockNumber: blockNumber,
		Root:        root,
		RelayProof:  relayProof,
		RelayedBy:   relayer,
		SetAt:       v.now().UTC(),
		Verified:    []string{},
	}
	if prev != nil && prev.Root.IsEqual(&root) {
		tr.Verified = prev.Verified
	}

	raw, err := json.Marshal(tr)
	if err != nil {
		return nil, nil, coreerr.Storage(string(key), err, "unable to encode trusted root")
	}
	if err := v.db.Put(key, raw); err != nil {
		return nil, nil, coreerr.Storage(string(key), err, "unable to store trusted root")
	}

	log.Info().Str("source", sourceChain).Uint64("block", blockNumber).
		Stringer("root", root).Bool("replaced", prev != nil).Msg("Trusted root set")
	ev := events.New(events.TrustedRootSet, string(key), tr.SetAt, *tr)
	return tr, []events.Event{ev}, nil
}

// GetTrustedRoot returns the trusted root of (sourceChain, blockNumber).
func (v *Verifier) GetTrustedRoot(sourceChain string, blockNumber uint64) (*TrustedRoot, error) {
	key := TrustedKey(sourceChain, blockNumber)
	tr, err := v.loadTrusted(key)
	if err != nil {
		return nil, err
	}
	if tr == nil {
		return nil, coreerr.New(coreerr.ErrNoTrustedRoot, string(key), "no trusted root for block")
	}
	return tr, nil
}

// GetTrustedRoots lists the trusted roots of sourceChain, or of every chain
// when sourceChain is empty, ordered by chain and block.
func (v *Verifier) GetTrustedRoots(sourceChain string) ([]TrustedRoot, error) {
	prefix := database.Prefix(trustedPrefix)
	if sourceChain != "" {
		prefix = database.Prefix(trustedPrefix, sourceChain)
		if !database.ValidSegment(sourceChain) {
			return nil, coreerr.Newf(coreerr.ErrInvalidInput, string(prefix),
				"source chain %q must not contain %q", sourceChain, database.KeySeparator)
		}
	}

	roots := []TrustedRoot{}
	err := v.db.Iterate(prefix, func(key, value []byte) error {
		var tr TrustedRoot
		if err := json.Unmarshal(value, &tr); err != nil {
			return coreerr.Storage(string(key), err, "unable to decode trusted root")
		}
		roots = append(roots, tr)
		return nil
	})
	if err != nil {
		if _, ok := coreerr.As(err); ok {
			return nil, err
		}
		return nil, coreerr.Storage(string(prefix), err, "unable to list trusted roots")
	}

	sort.Slice(roots, func(i, j int) bool {
		if roots[i].SourceChain != roots[j].SourceChain {
			return roots[i].SourceChain < roots[j].SourceChain
		}
		return roots[i].BlockNumber < roots[j].BlockNumber
	})
	return roots, nil
}

// GetVerification returns the record of a verified transaction.
func (v *Verifier) GetVerification(txHash chainhash.Hash) (*VerificationRecord, error) {
	key := VerificationKey(txHash)
	raw, err := v.db.Get(key)
	if database.IsNotFound(err) {
		return nil, coreerr.New(coreerr.ErrNotFound, string(key), "transaction not verified")
	}
	if err != nil {
		return nil, coreerr.Storage(string(key), err, "unable to read verification")
	}
	rec := new(VerificationRecord)
	if err := json.Unmarshal(raw, rec); err != nil {
		return nil, coreerr.Storage(string(key), err, "unable to decode verification")
	}
	return rec, nil
}

// markVerified adds leaf to the verified list of tr when a replaced root
// dropped it.  The caller holds the key lock.
func (v *Verifier) markVerified(key []byte, tr *TrustedRoot, leaf chainhash.Hash) error {
	hash := leaf.String()
	for _, h := range tr.Verified {
		if h == hash {
			return nil
		}
	}

	tr.Verified = append(tr.Verified, hash)
	raw, err := json.Marshal(tr)
	if err != nil {
		return coreerr.Storage(string(key), err, "unable to encode trusted root")
	}
	if err := v.db.Put(key, raw); err != nil {
		return coreerr.Storage(string(key), err, "unable to store trusted root")
	}
	return nil
}

// VerifyTransaction checks that tx is included in the trusted block of
// (sourceChain, blockNumber).  The transaction hash is its leaf hash.  A
// transaction verified before returns its existing record and no event, and
// is listed again on the trusted root if a root replacement dropped it.
func (v *Verifier) VerifyTransaction(verifier, sourceChain string, blockNumber uint64,
	tx *wire.Transaction, proof *merkle.Proof) (*VerificationRecord, []events.Event, error) {

	key := TrustedKey(sourceChain, blockNumber)
	if tx == nil || proof == nil {
		return nil, nil, coreerr.New(coreerr.ErrInvalidInput, string(key),
			"transaction and proof are required")
	}

	unlock := v.locks.Lock(string(key))
	defer unlock()

	tr, err := v.loadTrusted(key)
	if err != nil {
		return nil, nil, err
	}
	if tr == nil {
		return nil, nil, coreerr.New(coreerr.ErrNoTrustedRoot, string(key), "no trusted root for block")
	}

	leaf := tx.LeafHash()
	if !proof.LeafHash.IsZero() && !proof.LeafHash.IsEqual(&leaf) {
		return nil, nil, coreerr.New(coreerr.ErrProofInvalid, string(key),
			"proof leaf does not match transaction")
	}
	if !merkle.VerifyProof(leaf, proof.Path, tr.Root) {
		log.Debug().Str("key", string(key)).Stringer("tx", leaf).Msg("Proof rejected")
		return nil, nil, coreerr.New(coreerr.ErrProofInvalid, string(key),
			"proof does not reproduce the trusted root")
	}

	if existing, err := v.GetVerification(leaf); err == nil {
		if err := v.markVerified(key, tr, leaf); err != nil {
			return nil, nil, err
		}
		return existing, nil, nil
	} else if !coreerr.CodeIs(err, coreerr.ErrNotFound) {
		return nil, nil, err
	}

	rec := &VerificationRecord{
		TransactionHash: leaf,
		SourceChain:     sourceChain,
		BlockNumber:     blockNumber,
		Verifier:        verifier,
		Timestamp:       v.now().UTC(),
	}
	tr.Verified = append(tr.Verified, leaf.String())

	recRaw, err := json.Marshal(rec)
	if err != nil {
		return nil, nil, coreerr.Storage(string(key), err, "unable to encode verification")
	}
	trRaw, err := json.Marshal(tr)
	if err != nil {
		return nil, nil, coreerr.Storage(string(key), err, "unable to encode trusted root")
	}

	batch := database.NewBatch()
	batch.Put(VerificationKey(leaf), recRaw)
	batch.Put(key, trRaw)
	if err := v.db.Write(batch); err != nil {
		return nil, nil, coreerr.Storage(string(key), err, "unable to store verification")
	}

	log.Info().Str("source", sourceChain).Uint64("block", blockNumber).
		Stringer("tx", leaf).Msg("Transaction verified")
	ev := events.New(events.TransactionVerified, string(VerificationKey(leaf)), rec.Timestamp, *rec)
	return rec, []events.Event{ev}, nil
}

// BatchItem is one element of VerifyTransactionBatch.
type BatchItem struct {
	SourceChain string           `json:"source_chain"`
	BlockNumber uint64           `json:"block_number"`
	Transaction wire.Transaction `json:"transaction"`
	Proof       merkle.Proof     `json:"proof"`
}

// BatchResult reports the outcome of one BatchItem.
type BatchResult struct {
	Index  int                 `json:"index"`
	Record *VerificationRecord `json:"record,omitempty"`
	Err    error               `json:"-"`
}

// VerifyTransactionBatch verifies every item independently.  A failing item
// does not affect the others.
func (v *Verifier) VerifyTransactionBatch(verifier string, items []BatchItem) ([]BatchResult, []events.Event) {
	results := make([]BatchResult, len(items))
	var evs []events.Event
	for i := range items {
		item := &items[i]
		rec, itemEvs, err := v.VerifyTransaction(verifier, item.SourceChain, item.BlockNumber,
			&item.Transaction, &item.Proof)
		results[i] = BatchResult{Index: i, Record: rec, Err: err}
		evs = append(evs, itemEvs...)
	}
	return results, evs
}
