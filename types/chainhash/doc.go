// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package chainhash provides abstracted hash functionality.
//
// This package provides a generic hash type and associated functions that
// allows the specific hash algorithm to be abstracted.  Every fingerprint in
// the protocol (transaction leaves, Merkle nodes, anchor signing messages) is
// produced by DoubleHashH, so independent processes agree byte-for-byte.
package chainhash
