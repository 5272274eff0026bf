// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package node

import (
	"time"

	"gitlab.com/jaxnet/smicp/network/rpc"
	"gitlab.com/jaxnet/smicp/node/anchor"
	"gitlab.com/jaxnet/smicp/node/coordinator"
	"gitlab.com/jaxnet/smicp/node/merkle"
	"gitlab.com/jaxnet/smicp/node/metrics"
	"gitlab.com/jaxnet/smicp/node/validators"
	"gitlab.com/jaxnet/smicp/node/verifier"
	"gitlab.com/jaxnet/smicp/types/chainhash"
	"gitlab.com/jaxnet/smicp/types/events"
	"gitlab.com/jaxnet/smicp/types/wire"
)

var (
	_ rpc.Backend    = (*Controller)(nil)
	_ metrics.Source = (*Controller)(nil)
)

// publish forwards the events of a call.  Events returned next to an error
// (a timeout abort) are published too.
func (ctl *Controller) publish(evs []events.Event) {
	ctl.sink.Publish(evs...)
}

func (ctl *Controller) AnchorRoot(submitter, chainID string, blockNumber uint64, root chainhash.Hash,
	sigs []validators.Signature) (*anchor.Anchor, error) {
	a, evs, err := ctl.anchors.AnchorRoot(submitter, chainID, blockNumber, root, sigs)
	ctl.publish(evs)
	return a, err
}

func (ctl *Controller) GetAnchor(chainID string, blockNumber uint64) (*anchor.Anchor, error) {
	return ctl.anchors.GetAnchor(chainID, blockNumber)
}

func (ctl *Controller) ListAnchors(chainID string) ([]anchor.Anchor, error) {
	return ctl.anchors.ListAnchors(chainID)
}

func (ctl *Controller) Validators() anchor.ValidatorSetInfo {
	return ctl.anchors.Validators()
}

func (ctl *Controller) AddValidator(v validators.Validator) (*validators.Validator, error) {
	added, evs, err := ctl.anchors.AddValidator(v)
	ctl.publish(evs)
	return added, err
}

func (ctl *Controller) RemoveValidator(id string) (anchor.ValidatorSetInfo, error) {
	info, evs, err := ctl.anchors.RemoveValidator(id)
	ctl.publish(evs)
	return info, err
}

func (ctl *Controller) SetRequiredSignatures(n int) (anchor.ValidatorSetInfo, error) {
	info, evs, err := ctl.anchors.SetRequiredSignatures(n)
	ctl.publish(evs)
	return info, err
}

func (ctl *Controller) SetTrustedRoot(relayer, sourceChain string, blockNumber uint64, root chainhash.Hash,
	relayProof string) (*verifier.TrustedRoot, error) {
	tr, evs, err := ctl.verifier.SetTrustedRoot(relayer, sourceChain, blockNumber, root, relayProof)
	ctl.publish(evs)
	return tr, err
}

func (ctl *Controller) GetTrustedRoots(sourceChain string) ([]verifier.TrustedRoot, error) {
	return ctl.verifier.GetTrustedRoots(sourceChain)
}

func (ctl *Controller) VerifyTransaction(verifierID, sourceChain string, blockNumber uint64,
	tx *wire.Transaction, proof *merkle.Proof) (*verifier.VerificationRecord, error) {
	rec, evs, err := ctl.verifier.VerifyTransaction(verifierID, sourceChain, blockNumber, tx, proof)
	ctl.publish(evs)
	return rec, err
}

func (ctl *Controller) VerifyTransactionBatch(verifierID string, items []verifier.BatchItem) []verifier.BatchResult {
	results, evs := ctl.verifier.VerifyTransactionBatch(verifierID, items)
	ctl.publish(evs)
	return results
}

func (ctl *Controller) GetVerification(txHash chainhash.Hash) (*verifier.VerificationRecord, error) {
	return ctl.verifier.GetVerification(txHash)
}

func (ctl *Controller) BeginEpoch(epochID string, participants []string, timeout time.Duration,
	metadata map[string]string) (*coordinator.Epoch, error) {
	e, evs, err := ctl.coordinator.BeginEpoch(epochID, participants, timeout, metadata)
	ctl.publish(evs)
	return e, err
}

func (ctl *Controller) Prepare(epochID, participantID, data string) (*coordinator.PrepareResult, error) {
	res, evs, err := ctl.coordinator.Prepare(epochID, participantID, data)
	ctl.publish(evs)
	return res, err
}

func (ctl *Controller) Commit(epochID string) (*coordinator.Epoch, error) {
	e, evs, err := ctl.coordinator.Commit(epochID)
	ctl.publish(evs)
	return e, err
}

func (ctl *Controller) Abort(epochID, reason string) (*coordinator.Epoch, error) {
	e, evs, err := ctl.coordinator.Abort(epochID, reason)
	ctl.publish(evs)
	return e, err
}

func (ctl *Controller) ConfirmCommit(epochID, participantID string) (*coordinator.ConfirmResult, error) {
	res, evs, err := ctl.coordinator.ConfirmCommit(epochID, participantID)
	ctl.publish(evs)
	return res, err
}

func (ctl *Controller) GetEpochStatus(epochID string) (*coordinator.Epoch, error) {
	return ctl.coordinator.GetEpochStatus(epochID)
}

func (ctl *Controller) ListEpochs(status coordinator.Status) ([]coordinator.Epoch, error) {
	return ctl.coordinator.ListEpochs(status)
}

func (ctl *Controller) CleanupTimeouts() ([]string, error) {
	aborted, evs, err := ctl.coordinator.CleanupTimeouts()
	ctl.publish(evs)
	return aborted, err
}

// Snapshot implements metrics.Source.
func (ctl *Controller) Snapshot() (metrics.Snapshot, error) {
	anchors, err := ctl.anchors.ListAnchors("")
	if err != nil {
		return metrics.Snapshot{}, err
	}
	roots, err := ctl.verifier.GetTrustedRoots("")
	if err != nil {
		return metrics.Snapshot{}, err
	}
	epochs, err := ctl.coordinator.ListEpochs("")
	if err != nil {
		return metrics.Snapshot{}, err
	}

	info := ctl.anchors.Validators()
	snap := metrics.Snapshot{
		Anchors:            len(anchors),
		TrustedRoots:       len(roots),
		Validators:         len(info.Validators),
		RequiredSignatures: info.RequiredSignatures,
		Epochs:             make(map[string]int),
	}
	for _, e := range epochs {
		snap.Epochs[string(e.Status)]++
	}
	return snap, nil
}
