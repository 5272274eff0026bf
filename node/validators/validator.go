// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package validators holds the anchor signer set and the secp256k1 ECDSA
// scheme validators use to vouch for sidechain roots.
package validators

import (
	"encoding/hex"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"gitlab.com/jaxnet/smicp/types/chainhash"
	"gitlab.com/jaxnet/smicp/types/coreerr"
	"gitlab.com/jaxnet/smicp/types/wire"
	"golang.org/x/crypto/ripemd160"
)

// Validator is one authorized anchor signer.
type Validator struct {
	ID     string `json:"id" yaml:"id"`
	PubKey string `json:"pubkey" yaml:"pubkey"`

	key *btcec.PublicKey
}

// Signature is a DER signature by the validator with the given ID.  An
// empty Validator field makes the set try every member key.
type Signature struct {
	Validator string `json:"validator,omitempty"`
	Signature string `json:"signature"`
}

// IDFromPubKey returns hex(RIPEMD160(SHA256(compressed pubkey))).
func IDFromPubKey(pub *btcec.PublicKey) string {
	sha := chainhash.HashB(pub.SerializeCompressed())
	h := ripemd160.New()
	_, _ = h.Write(sha)
	return hex.EncodeToString(h.Sum(nil))
}

// ParseValidator decodes pubKeyHex and checks id against it.  An empty id is
// filled from the key.
func ParseValidator(id, pubKeyHex string) (Validator, error) {
	raw, err := hex.DecodeString(pubKeyHex)
	if err != nil {
		return Validator{}, coreerr.Newf(coreerr.ErrInvalidInput, id,
			"malformed public key hex: %v", err)
	}
	pub, err := btcec.ParsePubKey(raw)
	if err != nil {
		return Validator{}, coreerr.Newf(coreerr.ErrInvalidInput, id,
			"invalid public key: %v", err)
	}

	derived := IDFromPubKey(pub)
	if id != "" && id != derived {
		return Validator{}, coreerr.Newf(coreerr.ErrInvalidInput, id,
			"validator id does not match public key (want %s)", derived)
	}
	return Validator{
		ID:     derived,
		PubKey: hex.EncodeToString(pub.SerializeCompressed()),
		key:    pub,
	}, nil
}

// Verify reports whether sig is this validator's valid DER signature over
// hash.  Malformed signatures are simply invalid.
func (v *Validator) Verify(hash chainhash.Hash, sig []byte) bool {
	if v.key == nil {
		return false
	}
	parsed, err := ecdsa.ParseDERSignature(sig)
	if err != nil {
		return false
	}
	return parsed.Verify(hash[:], v.key)
}

// Signer owns a validator private key.
type Signer struct {
	key *btcec.PrivateKey
}

// NewSigner generates a fresh key.
func NewSigner() (*Signer, error) {
	key, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, err
	}
	return &Signer{key: key}, nil
}

// SignerFromHex loads a 32-byte hex private key.
func SignerFromHex(privHex string) (*Signer, error) {
	raw, err := hex.DecodeString(privHex)
	if err != nil || len(raw) != 32 {
		return nil, coreerr.New(coreerr.ErrInvalidInput, "",
			"private key must be 32 bytes of hex")
	}
	key, _ := btcec.PrivKeyFromBytes(raw)
	return &Signer{key: key}, nil
}

// PrivKeyHex returns the hex private key.
func (s *Signer) PrivKeyHex() string {
	return hex.EncodeToString(s.key.Serialize())
}

// PubKeyHex returns the hex compressed public key.
func (s *Signer) PubKeyHex() string {
	return hex.EncodeToString(s.key.PubKey().SerializeCompressed())
}

// ID returns the validator id of the key.
func (s *Signer) ID() string {
	return IDFromPubKey(s.key.PubKey())
}

// Validator returns the public half as a set member.
func (s *Signer) Validator() Validator {
	pub := s.key.PubKey()
	return Validator{ID: IDFromPubKey(pub), PubKey: s.PubKeyHex(), key: pub}
}

// Sign signs a 32-byte digest.
func (s *Signer) Sign(hash chainhash.Hash) Signature {
	sig := ecdsa.Sign(s.key, hash[:])
	return Signature{Validator: s.ID(), Signature: hex.EncodeToString(sig.Serialize())}
}

// SignAnchor signs the canonical anchor message for (chainID, block, root).
func (s *Signer) SignAnchor(chainID string, blockNumber uint64, root chainhash.Hash) Signature {
	msg := wire.AnchorMessage{ChainID: chainID, BlockNumber: blockNumber, Root: root}
	return s.Sign(msg.SigHash())
}
