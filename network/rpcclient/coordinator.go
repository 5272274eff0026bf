// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package rpcclient

import (
	"time"

	"gitlab.com/jaxnet/smicp/node/coordinator"
	"gitlab.com/jaxnet/smicp/types/rpcjson"
)

// FutureEpochResult is a future promise to deliver an epoch returned by
// beginEpoch, commit, abort and getEpochStatus.
type FutureEpochResult chan *response

// Receive waits for the response promised by the future and returns the
// epoch.
func (r FutureEpochResult) Receive() (*coordinator.Epoch, error) {
	var e coordinator.Epoch
	if err := receiveInto(r, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// BeginEpochAsync is the future variant of BeginEpoch.
func (c *Client) BeginEpochAsync(epochID string, participants []string, timeout time.Duration,
	metadata map[string]string) FutureEpochResult {
	return c.sendCmd(rpcjson.MethodBeginEpoch, &rpcjson.BeginEpochCmd{
		EpochID:      epochID,
		Participants: participants,
		Timeout:      timeout.Milliseconds(),
		Metadata:     metadata,
	})
}

// BeginEpoch starts a two-phase commit epoch.  The timeout travels in
// milliseconds.
func (c *Client) BeginEpoch(epochID string, participants []string, timeout time.Duration,
	metadata map[string]string) (*coordinator.Epoch, error) {
	return c.BeginEpochAsync(epochID, participants, timeout, metadata).Receive()
}

// CommitAsync is the future variant of Commit.
func (c *Client) CommitAsync(epochID string) FutureEpochResult {
	return c.sendCmd(rpcjson.MethodCommit, &rpcjson.EpochCmd{EpochID: epochID})
}

// Commit moves a fully prepared epoch to COMMITTED.
func (c *Client) Commit(epochID string) (*coordinator.Epoch, error) {
	return c.CommitAsync(epochID).Receive()
}

// AbortAsync is the future variant of Abort.
func (c *Client) AbortAsync(epochID, reason string) FutureEpochResult {
	return c.sendCmd(rpcjson.MethodAbort, &rpcjson.AbortCmd{EpochID: epochID, Reason: reason})
}

// Abort aborts an epoch that has not reached a terminal state.  Admin only.
func (c *Client) Abort(epochID, reason string) (*coordinator.Epoch, error) {
	return c.AbortAsync(epochID, reason).Receive()
}

// GetEpochStatusAsync is the future variant of GetEpochStatus.
func (c *Client) GetEpochStatusAsync(epochID string) FutureEpochResult {
	return c.sendCmd(rpcjson.MethodGetEpochStatus, &rpcjson.EpochCmd{EpochID: epochID})
}

// GetEpochStatus returns the stored epoch.
func (c *Client) GetEpochStatus(epochID string) (*coordinator.Epoch, error) {
	return c.GetEpochStatusAsync(epochID).Receive()
}

// FuturePrepareResult is a future promise to deliver the result of a
// PrepareAsync RPC invocation (or an applicable error).
type FuturePrepareResult chan *response

// Receive waits for the response promised by the future and returns the
// prepare outcome.
func (r FuturePrepareResult) Receive() (*coordinator.PrepareResult, error) {
	var res coordinator.PrepareResult
	if err := receiveInto(r, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// PrepareAsync is the future variant of Prepare.
func (c *Client) PrepareAsync(epochID, participantID, data string) FuturePrepareResult {
	return c.sendCmd(rpcjson.MethodPrepare, &rpcjson.PrepareCmd{
		EpochID:       epochID,
		ParticipantID: participantID,
		Data:          data,
	})
}

// Prepare records the vote of one participant.
func (c *Client) Prepare(epochID, participantID, data string) (*coordinator.PrepareResult, error) {
	return c.PrepareAsync(epochID, participantID, data).Receive()
}

// FutureConfirmResult is a future promise to deliver the result of a
// ConfirmCommitAsync RPC invocation (or an applicable error).
type FutureConfirmResult chan *response

// Receive waits for the response promised by the future and returns the
// confirmation outcome.
func (r FutureConfirmResult) Receive() (*coordinator.ConfirmResult, error) {
	var res coordinator.ConfirmResult
	if err := receiveInto(r, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ConfirmCommitAsync is the future variant of ConfirmCommit.
func (c *Client) ConfirmCommitAsync(epochID, participantID string) FutureConfirmResult {
	return c.sendCmd(rpcjson.MethodConfirmCommit, &rpcjson.ConfirmCommitCmd{
		EpochID:       epochID,
		ParticipantID: participantID,
	})
}

// ConfirmCommit records that a participant applied the commit.
func (c *Client) ConfirmCommit(epochID, participantID string) (*coordinator.ConfirmResult, error) {
	return c.ConfirmCommitAsync(epochID, participantID).Receive()
}

// FutureListEpochsResult is a future promise to deliver the result of a
// ListEpochsAsync RPC invocation (or an applicable error).
type FutureListEpochsResult chan *response

// Receive waits for the response promised by the future and returns the
// epochs.
func (r FutureListEpochsResult) Receive() ([]coordinator.Epoch, error) {
	var list []coordinator.Epoch
	if err := receiveInto(r, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// ListEpochsAsync is the future variant of ListEpochs.
func (c *Client) ListEpochsAsync(status coordinator.Status) FutureListEpochsResult {
	return c.sendCmd(rpcjson.MethodListEpochs, &rpcjson.ListEpochsCmd{Status: string(status)})
}

// ListEpochs lists the epochs in status, or every epoch when status is
// empty.
func (c *Client) ListEpochs(status coordinator.Status) ([]coordinator.Epoch, error) {
	return c.ListEpochsAsync(status).Receive()
}

// FutureCleanupResult is a future promise to deliver the result of a
// CleanupTimeoutsAsync RPC invocation (or an applicable error).
type FutureCleanupResult chan *response

// Receive waits for the response promised by the future and returns the ids
// of the aborted epochs.
func (r FutureCleanupResult) Receive() ([]string, error) {
	var res rpcjson.CleanupTimeoutsResult
	if err := receiveInto(r, &res); err != nil {
		return nil, err
	}
	return res.Aborted, nil
}

// CleanupTimeoutsAsync is the future variant of CleanupTimeouts.
func (c *Client) CleanupTimeoutsAsync() FutureCleanupResult {
	return c.sendCmd(rpcjson.MethodCleanupTimeouts, nil)
}

// CleanupTimeouts aborts every expired epoch.  Admin only.
func (c *Client) CleanupTimeouts() ([]string, error) {
	return c.CleanupTimeoutsAsync().Receive()
}
