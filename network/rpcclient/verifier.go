// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package rpcclient

import (
	"gitlab.com/jaxnet/smicp/node/merkle"
	"gitlab.com/jaxnet/smicp/node/verifier"
	"gitlab.com/jaxnet/smicp/types/chainhash"
	"gitlab.com/jaxnet/smicp/types/rpcjson"
	"gitlab.com/jaxnet/smicp/types/wire"
)

// FutureTrustedRootResult is a future promise to deliver the result of a
// SetTrustedRootAsync RPC invocation (or an applicable error).
type FutureTrustedRootResult chan *response

// Receive waits for the response promised by the future and returns the
// stored trusted root.
func (r FutureTrustedRootResult) Receive() (*verifier.TrustedRoot, error) {
	var tr verifier.TrustedRoot
	if err := receiveInto(r, &tr); err != nil {
		return nil, err
	}
	return &tr, nil
}

// SetTrustedRootAsync is the future variant of SetTrustedRoot.
func (c *Client) SetTrustedRootAsync(sourceChain string, blockNumber uint64, root chainhash.Hash,
	relayProof string) FutureTrustedRootResult {
	return c.sendCmd(rpcjson.MethodSetTrustedRoot, &rpcjson.SetTrustedRootCmd{
		SourceChain: sourceChain,
		BlockNumber: blockNumber,
		Root:        root,
		Proof:       relayProof,
	})
}

// SetTrustedRoot registers the root of a source chain block as trusted.
// Admin only.
func (c *Client) SetTrustedRoot(sourceChain string, blockNumber uint64, root chainhash.Hash,
	relayProof string) (*verifier.TrustedRoot, error) {
	return c.SetTrustedRootAsync(sourceChain, blockNumber, root, relayProof).Receive()
}

// FutureTrustedRootsResult is a future promise to deliver the result of a
// GetTrustedRootsAsync RPC invocation (or an applicable error).
type FutureTrustedRootsResult chan *response

// Receive waits for the response promised by the future and returns the
// trusted roots.
func (r FutureTrustedRootsResult) Receive() ([]verifier.TrustedRoot, error) {
	var list []verifier.TrustedRoot
	if err := receiveInto(r, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// GetTrustedRootsAsync is the future variant of GetTrustedRoots.
func (c *Client) GetTrustedRootsAsync(sourceChain string) FutureTrustedRootsResult {
	return c.sendCmd(rpcjson.MethodGetTrustedRoots, &rpcjson.GetTrustedRootsCmd{SourceChain: sourceChain})
}

// GetTrustedRoots lists the trusted roots of one source chain, or all of
// them when sourceChain is empty.
func (c *Client) GetTrustedRoots(sourceChain string) ([]verifier.TrustedRoot, error) {
	return c.GetTrustedRootsAsync(sourceChain).Receive()
}

// FutureVerificationResult is a future promise to deliver the result of a
// VerifyTransactionAsync or GetVerificationAsync RPC invocation.
type FutureVerificationResult chan *response

// Receive waits for the response promised by the future and returns the
// verification record.
func (r FutureVerificationResult) Receive() (*verifier.VerificationRecord, error) {
	var rec verifier.VerificationRecord
	if err := receiveInto(r, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// VerifyTransactionAsync is the future variant of VerifyTransaction.
func (c *Client) VerifyTransactionAsync(sourceChain string, blockNumber uint64, tx wire.Transaction,
	proof merkle.Proof) FutureVerificationResult {
	return c.sendCmd(rpcjson.MethodVerifyTransaction, &rpcjson.VerifyTransactionCmd{
		SourceChain: sourceChain,
		BlockNumber: blockNumber,
		Transaction: tx,
		Proof:       proof,
	})
}

// VerifyTransaction checks the inclusion proof of tx against the trusted
// root of the block.
func (c *Client) VerifyTransaction(sourceChain string, blockNumber uint64, tx wire.Transaction,
	proof merkle.Proof) (*verifier.VerificationRecord, error) {
	return c.VerifyTransactionAsync(sourceChain, blockNumber, tx, proof).Receive()
}

// GetVerificationAsync is the future variant of GetVerification.
func (c *Client) GetVerificationAsync(txHash chainhash.Hash) FutureVerificationResult {
	return c.sendCmd(rpcjson.MethodGetVerification, &rpcjson.GetVerificationCmd{TransactionHash: txHash})
}

// GetVerification returns the stored verification of a transaction.
func (c *Client) GetVerification(txHash chainhash.Hash) (*verifier.VerificationRecord, error) {
	return c.GetVerificationAsync(txHash).Receive()
}

// BatchVerification is the decoded outcome of one batch item.  Exactly one
// of Record and Error is set.
type BatchVerification struct {
	Index  int                          `json:"index"`
	Record *verifier.VerificationRecord `json:"record,omitempty"`
	Error  *rpcjson.RPCError            `json:"error,omitempty"`
}

// FutureBatchResult is a future promise to deliver the result of a
// VerifyTransactionBatchAsync RPC invocation (or an applicable error).
type FutureBatchResult chan *response

// Receive waits for the response promised by the future and returns the
// per item outcomes.
func (r FutureBatchResult) Receive() ([]BatchVerification, error) {
	var results []BatchVerification
	if err := receiveInto(r, &results); err != nil {
		return nil, err
	}
	return results, nil
}

// VerifyTransactionBatchAsync is the future variant of VerifyTransactionBatch.
func (c *Client) VerifyTransactionBatchAsync(items []rpcjson.VerifyTransactionCmd) FutureBatchResult {
	return c.sendCmd(rpcjson.MethodVerifyTransactionBatch, &rpcjson.VerifyTransactionBatchCmd{Items: items})
}

// VerifyTransactionBatch verifies every item independently.  A failing item
// does not fail the call.
func (c *Client) VerifyTransactionBatch(items []rpcjson.VerifyTransactionCmd) ([]BatchVerification, error) {
	return c.VerifyTransactionBatchAsync(items).Receive()
}
