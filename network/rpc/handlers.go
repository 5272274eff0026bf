// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package rpc

import (
	"math"
	"time"

	"gitlab.com/jaxnet/smicp/node/coordinator"
	"gitlab.com/jaxnet/smicp/node/validators"
	"gitlab.com/jaxnet/smicp/node/verifier"
	"gitlab.com/jaxnet/smicp/types/coreerr"
	"gitlab.com/jaxnet/smicp/types/rpcjson"
)

// maxTimeoutMillis is the largest millisecond timeout a time.Duration holds.
const maxTimeoutMillis = math.MaxInt64 / int64(time.Millisecond)

func (m Mux) handleAnchorRoot(ctx CmdCtx) (interface{}, error) {
	var cmd rpcjson.AnchorRootCmd
	if err := parseParams(ctx.Params, &cmd); err != nil {
		return nil, err
	}
	return m.backend.AnchorRoot(ctx.Caller, cmd.ChainID, cmd.BlockNumber, cmd.Root, cmd.Signatures)
}

func (m Mux) handleGetAnchoredRoot(ctx CmdCtx) (interface{}, error) {
	var cmd rpcjson.AnchorKeyCmd
	if err := parseParams(ctx.Params, &cmd); err != nil {
		return nil, err
	}
	return m.backend.GetAnchor(cmd.ChainID, cmd.BlockNumber)
}

func (m Mux) handleListAnchors(ctx CmdCtx) (interface{}, error) {
	var cmd rpcjson.ListAnchorsCmd
	if err := parseOptionalParams(ctx.Params, &cmd); err != nil {
		return nil, err
	}
	return m.backend.ListAnchors(cmd.ChainID)
}

func (m Mux) handleGetValidators(CmdCtx) (interface{}, error) {
	return m.backend.Validators(), nil
}

func (m Mux) handleAddValidator(ctx CmdCtx) (interface{}, error) {
	var cmd rpcjson.AddValidatorCmd
	if err := parseParams(ctx.Params, &cmd); err != nil {
		return nil, err
	}
	v, err := validators.ParseValidator(cmd.ID, cmd.PubKey)
	if err != nil {
		return nil, err
	}
	return m.backend.AddValidator(v)
}

func (m Mux) handleRemoveValidator(ctx CmdCtx) (interface{}, error) {
	var cmd rpcjson.RemoveValidatorCmd
	if err := parseParams(ctx.Params, &cmd); err != nil {
		return nil, err
	}
	return m.backend.RemoveValidator(cmd.ID)
}

func (m Mux) handleSetRequiredSignatures(ctx CmdCtx) (interface{}, error) {
	var cmd rpcjson.SetRequiredSignaturesCmd
	if err := parseParams(ctx.Params, &cmd); err != nil {
		return nil, err
	}
	return m.backend.SetRequiredSignatures(cmd.Required)
}

func (m Mux) handleSetTrustedRoot(ctx CmdCtx) (interface{}, error) {
	var cmd rpcjson.SetTrustedRootCmd
	if err := parseParams(ctx.Params, &cmd); err != nil {
		return nil, err
	}
	return m.backend.SetTrustedRoot(ctx.Caller, cmd.SourceChain, cmd.BlockNumber, cmd.Root, cmd.Proof)
}

func (m Mux) handleGetTrustedRoots(ctx CmdCtx) (interface{}, error) {
	var cmd rpcjson.GetTrustedRootsCmd
	if err := parseOptionalParams(ctx.Params, &cmd); err != nil {
		return nil, err
	}
	return m.backend.GetTrustedRoots(cmd.SourceChain)
}

func (m Mux) handleVerifyTransaction(ctx CmdCtx) (interface{}, error) {
	var cmd rpcjson.VerifyTransactionCmd
	if err := parseParams(ctx.Params, &cmd); err != nil {
		return nil, err
	}
	return m.backend.VerifyTransaction(ctx.Caller, cmd.SourceChain, cmd.BlockNumber, &cmd.Transaction, &cmd.Proof)
}

func (m Mux) handleVerifyTransactionBatch(ctx CmdCtx) (interface{}, error) {
	var cmd rpcjson.VerifyTransactionBatchCmd
	if err := parseParams(ctx.Params, &cmd); err != nil {
		return nil, err
	}

	items := make([]verifier.BatchItem, len(cmd.Items))
	for i, item := range cmd.Items {
		items[i] = verifier.BatchItem{
			SourceChain: item.SourceChain,
			BlockNumber: item.BlockNumber,
			Transaction: item.Transaction,
			Proof:       item.Proof,
		}
	}

	results := m.backend.VerifyTransactionBatch(ctx.Caller, items)
	reply := make([]rpcjson.BatchItemResult, len(results))
	for i, res := range results {
		reply[i] = rpcjson.BatchItemResult{Index: res.Index}
		if res.Err != nil {
			reply[i].Error = rpcjson.FromError(res.Err)
			continue
		}
		reply[i].Record = res.Record
	}
	return reply, nil
}

func (m Mux) handleGetVerification(ctx CmdCtx) (interface{}, error) {
	var cmd rpcjson.GetVerificationCmd
	if err := parseParams(ctx.Params, &cmd); err != nil {
		return nil, err
	}
	return m.backend.GetVerification(cmd.TransactionHash)
}

func (m Mux) handleBeginEpoch(ctx CmdCtx) (interface{}, error) {
	var cmd rpcjson.BeginEpochCmd
	if err := parseParams(ctx.Params, &cmd); err != nil {
		return nil, err
	}
	if cmd.Timeout <= 0 || cmd.Timeout > maxTimeoutMillis {
		return nil, coreerr.Newf(coreerr.ErrInvalidInput, string(coordinator.EpochKey(cmd.EpochID)),
			"timeout %dms must be in 1..%d", cmd.Timeout, maxTimeoutMillis)
	}
	timeout := time.Duration(cmd.Timeout) * time.Millisecond
	return m.backend.BeginEpoch(cmd.EpochID, cmd.Participants, timeout, cmd.Metadata)
}

func (m Mux) handlePrepare(ctx CmdCtx) (interface{}, error) {
	var cmd rpcjson.PrepareCmd
	if err := parseParams(ctx.Params, &cmd); err != nil {
		return nil, err
	}
	return m.backend.Prepare(cmd.EpochID, cmd.ParticipantID, cmd.Data)
}

func (m Mux) handleCommit(ctx CmdCtx) (interface{}, error) {
	var cmd rpcjson.EpochCmd
	if err := parseParams(ctx.Params, &cmd); err != nil {
		return nil, err
	}
	return m.backend.Commit(cmd.EpochID)
}

func (m Mux) handleAbort(ctx CmdCtx) (interface{}, error) {
	var cmd rpcjson.AbortCmd
	if err := parseParams(ctx.Params, &cmd); err != nil {
		return nil, err
	}
	return m.backend.Abort(cmd.EpochID, cmd.Reason)
}

func (m Mux) handleConfirmCommit(ctx CmdCtx) (interface{}, error) {
	var cmd rpcjson.ConfirmCommitCmd
	if err := parseParams(ctx.Params, &cmd); err != nil {
		return nil, err
	}
	return m.backend.ConfirmCommit(cmd.EpochID, cmd.ParticipantID)
}

func (m Mux) handleGetEpochStatus(ctx CmdCtx) (interface{}, error) {
	var cmd rpcjson.EpochCmd
	if err := parseParams(ctx.Params, &cmd); err != nil {
		return nil, err
	}
	return m.backend.GetEpochStatus(cmd.EpochID)
}

func (m Mux) handleListEpochs(ctx CmdCtx) (interface{}, error) {
	var cmd rpcjson.ListEpochsCmd
	if err := parseOptionalParams(ctx.Params, &cmd); err != nil {
		return nil, err
	}
	return m.backend.ListEpochs(coordinator.Status(cmd.Status))
}

func (m Mux) handleCleanupTimeouts(CmdCtx) (interface{}, error) {
	aborted, err := m.backend.CleanupTimeouts()
	if err != nil {
		return nil, err
	}
	if aborted == nil {
		aborted = []string{}
	}
	return &rpcjson.CleanupTimeoutsResult{Aborted: aborted}, nil
}
