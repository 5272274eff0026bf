// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"io"

	"gitlab.com/jaxnet/smicp/types/chainhash"
)

// Leaf and inner node prefixes keep a leaf from ever being reinterpreted as
// an inner node of the same tree.
const (
	LeafPrefix byte = 0x00
	NodePrefix byte = 0x01
)

// Transaction is the logical content of one sidechain transaction.  Its
// canonical form is produced by Serialize and never by a display format, so
// a generator and a verifier in different processes hash identical bytes.
type Transaction struct {
	ID          string `json:"id" csv:"id" yaml:"id"`
	ChainID     string `json:"chain_id" csv:"chain_id" yaml:"chain_id"`
	BlockNumber uint64 `json:"block_number" csv:"block_number" yaml:"block_number"`
	Index       uint32 `json:"index" csv:"index" yaml:"index"`
	From        string `json:"from" csv:"from" yaml:"from"`
	To          string `json:"to" csv:"to" yaml:"to"`
	Amount      uint64 `json:"amount" csv:"amount" yaml:"amount"`
	Nonce       uint64 `json:"nonce" csv:"nonce" yaml:"nonce"`
	Timestamp   int64  `json:"timestamp" csv:"timestamp" yaml:"timestamp"`
	Payload     []byte `json:"payload,omitempty" csv:"-" yaml:"payload,omitempty"`
}

// Serialize writes the canonical encoding of the transaction to w.
func (tx *Transaction) Serialize(w io.Writer) error {
	if err := WriteVarString(w, tx.ID); err != nil {
		return err
	}
	if err := WriteVarString(w, tx.ChainID); err != nil {
		return err
	}
	if err := PutUint64(w, tx.BlockNumber); err != nil {
		return err
	}
	if err := PutUint32(w, tx.Index); err != nil {
		return err
	}
	if err := WriteVarString(w, tx.From); err != nil {
		return err
	}
	if err := WriteVarString(w, tx.To); err != nil {
		return err
	}
	if err := PutUint64(w, tx.Amount); err != nil {
		return err
	}
	if err := PutUint64(w, tx.Nonce); err != nil {
		return err
	}
	if err := PutUint64(w, uint64(tx.Timestamp)); err != nil {
		return err
	}
	return WriteVarBytes(w, tx.Payload)
}

// Deserialize decodes a transaction previously written by Serialize.
func (tx *Transaction) Deserialize(r io.Reader) error {
	var err error
	if tx.ID, err = ReadVarString(r); err != nil {
		return err
	}
	if tx.ChainID, err = ReadVarString(r); err != nil {
		return err
	}
	if tx.BlockNumber, err = Uint64(r); err != nil {
		return err
	}
	if tx.Index, err = Uint32(r); err != nil {
		return err
	}
	if tx.From, err = ReadVarString(r); err != nil {
		return err
	}
	if tx.To, err = ReadVarString(r); err != nil {
		return err
	}
	if tx.Amount, err = Uint64(r); err != nil {
		return err
	}
	if tx.Nonce, err = Uint64(r); err != nil {
		return err
	}
	ts, err := Uint64(r)
	if err != nil {
		return err
	}
	tx.Timestamp = int64(ts)

	payload, err := ReadVarBytes(r, MaxVarBytesLen, "payload")
	if err != nil {
		return err
	}
	if len(payload) > 0 {
		tx.Payload = payload
	}
	return nil
}

// SerializeSize returns the number of bytes Serialize writes.
func (tx *Transaction) SerializeSize() int {
	varStr := func(s string) int { return VarIntSerializeSize(uint64(len(s))) + len(s) }
	return varStr(tx.ID) + varStr(tx.ChainID) + 8 + 4 + varStr(tx.From) + varStr(tx.To) +
		8 + 8 + 8 + VarIntSerializeSize(uint64(len(tx.Payload))) + len(tx.Payload)
}

// Bytes returns the canonical encoding.
func (tx *Transaction) Bytes() []byte {
	buf := bytes.NewBuffer(make([]byte, 0, tx.SerializeSize()))
	// Writes to a bytes.Buffer never fail.
	_ = tx.Serialize(buf)
	return buf.Bytes()
}

// LeafHash returns the Merkle leaf fingerprint of the transaction:
// H(LeafPrefix || canonical bytes).
func (tx *Transaction) LeafHash() chainhash.Hash {
	raw := tx.Bytes()
	data := make([]byte, 0, len(raw)+1)
	data = append(data, LeafPrefix)
	data = append(data, raw...)
	return chainhash.DoubleHashH(data)
}

// NodeHash combines two child hashes into their parent: H(NodePrefix || left || right).
func NodeHash(left, right *chainhash.Hash) chainhash.Hash {
	var data [1 + chainhash.HashSize*2]byte
	data[0] = NodePrefix
	copy(data[1:], left[:])
	copy(data[1+chainhash.HashSize:], right[:])
	return chainhash.DoubleHashH(data[:])
}
