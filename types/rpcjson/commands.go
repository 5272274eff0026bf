// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package rpcjson

import (
	"gitlab.com/jaxnet/smicp/node/merkle"
	"gitlab.com/jaxnet/smicp/node/validators"
	"gitlab.com/jaxnet/smicp/types/chainhash"
	"gitlab.com/jaxnet/smicp/types/wire"
)

// Method names served by the node.
const (
	MethodAnchorRoot             = "anchorRoot"
	MethodGetAnchoredRoot        = "getAnchoredRoot"
	MethodListAnchors            = "listAnchors"
	MethodGetValidators          = "getValidators"
	MethodAddValidator           = "addValidator"
	MethodRemoveValidator        = "removeValidator"
	MethodSetRequiredSignatures  = "setRequiredSignatures"
	MethodSetTrustedRoot         = "setTrustedRoot"
	MethodGetTrustedRoots        = "getTrustedRoots"
	MethodVerifyTransaction      = "verifyTransaction"
	MethodVerifyTransactionBatch = "verifyTransactionBatch"
	MethodGetVerification        = "getVerification"
	MethodBeginEpoch             = "beginEpoch"
	MethodPrepare                = "prepare"
	MethodCommit                 = "commit"
	MethodAbort                  = "abort"
	MethodConfirmCommit          = "confirmCommit"
	MethodGetEpochStatus         = "getEpochStatus"
	MethodListEpochs             = "listEpochs"
	MethodCleanupTimeouts        = "cleanupTimeouts"

	// MethodEvent is the method of websocket event notifications.
	MethodEvent = "event"
)

// AnchorRootCmd defines the anchorRoot JSON-RPC command.
type AnchorRootCmd struct {
	ChainID     string                 `json:"chain_id"`
	BlockNumber uint64                 `json:"block_number"`
	Root        chainhash.Hash         `json:"root"`
	Signatures  []validators.Signature `json:"signatures"`
}

// AnchorKeyCmd addresses one anchor; used by getAnchoredRoot.
type AnchorKeyCmd struct {
	ChainID     string `json:"chain_id"`
	BlockNumber uint64 `json:"block_number"`
}

// ListAnchorsCmd defines the listAnchors JSON-RPC command.  An empty
// ChainID lists every chain.
type ListAnchorsCmd struct {
	ChainID string `json:"chain_id,omitempty"`
}

// AddValidatorCmd defines the addValidator JSON-RPC command.  ID may be
// omitted and is then derived from the public key.
type AddValidatorCmd struct {
	ID     string `json:"id,omitempty"`
	PubKey string `json:"pubkey"`
}

// RemoveValidatorCmd defines the removeValidator JSON-RPC command.
type RemoveValidatorCmd struct {
	ID string `json:"id"`
}

// SetRequiredSignaturesCmd defines the setRequiredSignatures JSON-RPC command.
type SetRequiredSignaturesCmd struct {
	Required int `json:"required"`
}

// SetTrustedRootCmd defines the setTrustedRoot JSON-RPC command.
type SetTrustedRootCmd struct {
	SourceChain string         `json:"source_chain"`
	BlockNumber uint64         `json:"block_number"`
	Root        chainhash.Hash `json:"root"`
	Proof       string         `json:"proof,omitempty"`
}

// GetTrustedRootsCmd defines the getTrustedRoots JSON-RPC command.
type GetTrustedRootsCmd struct {
	SourceChain string `json:"source_chain,omitempty"`
}

// VerifyTransactionCmd defines the verifyTransaction JSON-RPC command.
type VerifyTransactionCmd struct {
	SourceChain string           `json:"source_chain"`
	BlockNumber uint64           `json:"block_number"`
	Transaction wire.Transaction `json:"transaction"`
	Proof       merkle.Proof     `json:"proof"`
}

// VerifyTransactionBatchCmd defines the verifyTransactionBatch JSON-RPC
// command.
type VerifyTransactionBatchCmd struct {
	Items []VerifyTransactionCmd `json:"items"`
}

// GetVerificationCmd defines the getVerification JSON-RPC command.
type GetVerificationCmd struct {
	TransactionHash chainhash.Hash `json:"transaction_hash"`
}

// BeginEpochCmd defines the beginEpoch JSON-RPC command.  Timeout is in
// milliseconds.
type BeginEpochCmd struct {
	EpochID      string            `json:"epoch_id"`
	Participants []string          `json:"participants"`
	Timeout      int64             `json:"timeout"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// PrepareCmd defines the prepare JSON-RPC command.
type PrepareCmd struct {
	EpochID       string `json:"epoch_id"`
	ParticipantID string `json:"participant_id"`
	Data          string `json:"data,omitempty"`
}

// EpochCmd addresses one epoch; used by commit and getEpochStatus.
type EpochCmd struct {
	EpochID string `json:"epoch_id"`
}

// AbortCmd defines the abort JSON-RPC command.
type AbortCmd struct {
	EpochID string `json:"epoch_id"`
	Reason  string `json:"reason"`
}

// ConfirmCommitCmd defines the confirmCommit JSON-RPC command.
type ConfirmCommitCmd struct {
	EpochID       string `json:"epoch_id"`
	ParticipantID string `json:"participant_id"`
}

// ListEpochsCmd defines the listEpochs JSON-RPC command.  An empty Status
// lists every epoch.
type ListEpochsCmd struct {
	Status string `json:"status,omitempty"`
}

// BatchItemResult is one element of the verifyTransactionBatch reply.
type BatchItemResult struct {
	Index  int         `json:"index"`
	Record interface{} `json:"record,omitempty"`
	Error  *RPCError   `json:"error,omitempty"`
}

// CleanupTimeoutsResult is the reply of cleanupTimeouts.
type CleanupTimeoutsResult struct {
	Aborted []string `json:"aborted"`
}
