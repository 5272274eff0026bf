// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package rpc

import (
	"encoding/json"
	"time"

	"gitlab.com/jaxnet/smicp/node/anchor"
	"gitlab.com/jaxnet/smicp/node/coordinator"
	"gitlab.com/jaxnet/smicp/node/merkle"
	"gitlab.com/jaxnet/smicp/node/validators"
	"gitlab.com/jaxnet/smicp/node/verifier"
	"gitlab.com/jaxnet/smicp/types/chainhash"
	"gitlab.com/jaxnet/smicp/types/rpcjson"
	"gitlab.com/jaxnet/smicp/types/wire"
)

// Backend is the protocol surface served over RPC.  Implementations publish
// the events of successful calls themselves.
type Backend interface {
	AnchorRoot(submitter, chainID string, blockNumber uint64, root chainhash.Hash,
		sigs []validators.Signature) (*anchor.Anchor, error)
	GetAnchor(chainID string, blockNumber uint64) (*anchor.Anchor, error)
	ListAnchors(chainID string) ([]anchor.Anchor, error)
	Validators() anchor.ValidatorSetInfo
	AddValidator(v validators.Validator) (*validators.Validator, error)
	RemoveValidator(id string) (anchor.ValidatorSetInfo, error)
	SetRequiredSignatures(n int) (anchor.ValidatorSetInfo, error)

	SetTrustedRoot(relayer, sourceChain string, blockNumber uint64, root chainhash.Hash,
		relayProof string) (*verifier.TrustedRoot, error)
	GetTrustedRoots(sourceChain string) ([]verifier.TrustedRoot, error)
	VerifyTransaction(verifierID, sourceChain string, blockNumber uint64, tx *wire.Transaction,
		proof *merkle.Proof) (*verifier.VerificationRecord, error)
	VerifyTransactionBatch(verifierID string, items []verifier.BatchItem) []verifier.BatchResult
	GetVerification(txHash chainhash.Hash) (*verifier.VerificationRecord, error)

	BeginEpoch(epochID string, participants []string, timeout time.Duration,
		metadata map[string]string) (*coordinator.Epoch, error)
	Prepare(epochID, participantID, data string) (*coordinator.PrepareResult, error)
	Commit(epochID string) (*coordinator.Epoch, error)
	Abort(epochID, reason string) (*coordinator.Epoch, error)
	ConfirmCommit(epochID, participantID string) (*coordinator.ConfirmResult, error)
	GetEpochStatus(epochID string) (*coordinator.Epoch, error)
	ListEpochs(status coordinator.Status) ([]coordinator.Epoch, error)
	CleanupTimeouts() ([]string, error)
}

// CmdCtx is one decoded request.
type CmdCtx struct {
	Method string
	Params json.RawMessage
	Caller string
	Admin  bool
}

// CommandHandler serves one method.
type CommandHandler func(ctx CmdCtx) (interface{}, error)

// rpcAdminOnly lists the methods a limited user may not call.
var rpcAdminOnly = map[string]struct{}{
	rpcjson.MethodSetTrustedRoot:        {},
	rpcjson.MethodAddValidator:          {},
	rpcjson.MethodRemoveValidator:       {},
	rpcjson.MethodSetRequiredSignatures: {},
	rpcjson.MethodCleanupTimeouts:       {},
	rpcjson.MethodAbort:                 {},
}

// Mux dispatches requests by method name.
type Mux struct {
	backend  Backend
	handlers map[string]CommandHandler
}

// NewMux registers every protocol method for backend.
func NewMux(backend Backend) Mux {
	m := Mux{backend: backend}
	m.SetCommands(map[string]CommandHandler{
		rpcjson.MethodAnchorRoot:             m.handleAnchorRoot,
		rpcjson.MethodGetAnchoredRoot:        m.handleGetAnchoredRoot,
		rpcjson.MethodListAnchors:            m.handleListAnchors,
		rpcjson.MethodGetValidators:          m.handleGetValidators,
		rpcjson.MethodAddValidator:           m.handleAddValidator,
		rpcjson.MethodRemoveValidator:        m.handleRemoveValidator,
		rpcjson.MethodSetRequiredSignatures:  m.handleSetRequiredSignatures,
		rpcjson.MethodSetTrustedRoot:         m.handleSetTrustedRoot,
		rpcjson.MethodGetTrustedRoots:        m.handleGetTrustedRoots,
		rpcjson.MethodVerifyTransaction:      m.handleVerifyTransaction,
		rpcjson.MethodVerifyTransactionBatch: m.handleVerifyTransactionBatch,
		rpcjson.MethodGetVerification:        m.handleGetVerification,
		rpcjson.MethodBeginEpoch:             m.handleBeginEpoch,
		rpcjson.MethodPrepare:                m.handlePrepare,
		rpcjson.MethodCommit:                 m.handleCommit,
		rpcjson.MethodAbort:                  m.handleAbort,
		rpcjson.MethodConfirmCommit:          m.handleConfirmCommit,
		rpcjson.MethodGetEpochStatus:         m.handleGetEpochStatus,
		rpcjson.MethodListEpochs:             m.handleListEpochs,
		rpcjson.MethodCleanupTimeouts:        m.handleCleanupTimeouts,
	})
	return m
}

// SetCommands adds or replaces handlers.
func (m *Mux) SetCommands(commands map[string]CommandHandler) {
	if m.handlers == nil {
		m.handlers = make(map[string]CommandHandler, len(commands))
	}
	for name, handler := range commands {
		m.handlers[name] = handler
	}
}

// HandleCommand dispatches ctx to its handler.
func (m Mux) HandleCommand(ctx CmdCtx) (interface{}, error) {
	handler, ok := m.handlers[ctx.Method]
	if !ok {
		return nil, rpcjson.ErrRPCMethodNotFound
	}
	return handler(ctx)
}

// parseParams decodes the raw params into cmd.
func parseParams(raw json.RawMessage, cmd interface{}) error {
	if len(raw) == 0 || string(raw) == "null" {
		return &rpcjson.RPCError{
			Code:    rpcjson.ErrRPCInvalidParams.Code,
			Message: "missing params",
		}
	}
	if err := json.Unmarshal(raw, cmd); err != nil {
		return &rpcjson.RPCError{
			Code:    rpcjson.ErrRPCInvalidParams.Code,
			Message: "Failed to parse params: " + err.Error(),
		}
	}
	return nil
}

// parseOptionalParams accepts absent params.
func parseOptionalParams(raw json.RawMessage, cmd interface{}) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return parseParams(raw, cmd)
}
