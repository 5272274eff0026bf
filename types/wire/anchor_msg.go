// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"

	"gitlab.com/jaxnet/smicp/types/chainhash"
)

// AnchorMessage is the statement validators sign when they vouch for a
// sidechain block root.
type AnchorMessage struct {
	ChainID     string
	BlockNumber uint64
	Root        chainhash.Hash
}

// Bytes returns varstring(ChainID) || uint64LE(BlockNumber) || Root.
func (m *AnchorMessage) Bytes() []byte {
	buf := bytes.NewBuffer(make([]byte, 0,
		VarIntSerializeSize(uint64(len(m.ChainID)))+len(m.ChainID)+8+chainhash.HashSize))
	_ = WriteVarString(buf, m.ChainID)
	_ = PutUint64(buf, m.BlockNumber)
	buf.Write(m.Root[:])
	return buf.Bytes()
}

// SigHash is the 32-byte digest that validator signatures commit to.
func (m *AnchorMessage) SigHash() chainhash.Hash {
	return chainhash.DoubleHashH(m.Bytes())
}
