// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package rpcclient

import (
	"gitlab.com/jaxnet/smicp/node/anchor"
	"gitlab.com/jaxnet/smicp/node/validators"
	"gitlab.com/jaxnet/smicp/types/chainhash"
	"gitlab.com/jaxnet/smicp/types/rpcjson"
)

// FutureAnchorResult is a future promise to deliver the result of an
// AnchorRootAsync or GetAnchoredRootAsync RPC invocation (or an applicable
// error).
type FutureAnchorResult chan *response

// Receive waits for the response promised by the future and returns the
// anchor record.
func (r FutureAnchorResult) Receive() (*anchor.Anchor, error) {
	var a anchor.Anchor
	if err := receiveInto(r, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// AnchorRootAsync returns an instance of a type that can be used to get the
// result of the RPC at some future time by invoking the Receive function on
// the returned instance.
//
// See AnchorRoot for the blocking version and more details.
func (c *Client) AnchorRootAsync(chainID string, blockNumber uint64, root chainhash.Hash,
	sigs []validators.Signature) FutureAnchorResult {
	return c.sendCmd(rpcjson.MethodAnchorRoot, &rpcjson.AnchorRootCmd{
		ChainID:     chainID,
		BlockNumber: blockNumber,
		Root:        root,
		Signatures:  sigs,
	})
}

// AnchorRoot submits a sidechain root with validator signatures.  The
// authenticated RPC user is recorded as the submitter.
func (c *Client) AnchorRoot(chainID string, blockNumber uint64, root chainhash.Hash,
	sigs []validators.Signature) (*anchor.Anchor, error) {
	return c.AnchorRootAsync(chainID, blockNumber, root, sigs).Receive()
}

// GetAnchoredRootAsync is the future variant of GetAnchoredRoot.
func (c *Client) GetAnchoredRootAsync(chainID string, blockNumber uint64) FutureAnchorResult {
	return c.sendCmd(rpcjson.MethodGetAnchoredRoot, &rpcjson.AnchorKeyCmd{
		ChainID:     chainID,
		BlockNumber: blockNumber,
	})
}

// GetAnchoredRoot returns the anchor stored for the block.
func (c *Client) GetAnchoredRoot(chainID string, blockNumber uint64) (*anchor.Anchor, error) {
	return c.GetAnchoredRootAsync(chainID, blockNumber).Receive()
}

// FutureListAnchorsResult is a future promise to deliver the result of a
// ListAnchorsAsync RPC invocation (or an applicable error).
type FutureListAnchorsResult chan *response

// Receive waits for the response promised by the future and returns the
// anchors.
func (r FutureListAnchorsResult) Receive() ([]anchor.Anchor, error) {
	var list []anchor.Anchor
	if err := receiveInto(r, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// ListAnchorsAsync is the future variant of ListAnchors.
func (c *Client) ListAnchorsAsync(chainID string) FutureListAnchorsResult {
	return c.sendCmd(rpcjson.MethodListAnchors, &rpcjson.ListAnchorsCmd{ChainID: chainID})
}

// ListAnchors returns the anchors of one chain, or of every chain when
// chainID is empty.
func (c *Client) ListAnchors(chainID string) ([]anchor.Anchor, error) {
	return c.ListAnchorsAsync(chainID).Receive()
}

// FutureValidatorSetResult is a future promise to deliver the validator set
// returned by getValidators, removeValidator and setRequiredSignatures.
type FutureValidatorSetResult chan *response

// Receive waits for the response promised by the future and returns the
// validator set.
func (r FutureValidatorSetResult) Receive() (*anchor.ValidatorSetInfo, error) {
	var info anchor.ValidatorSetInfo
	if err := receiveInto(r, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// GetValidatorsAsync is the future variant of GetValidators.
func (c *Client) GetValidatorsAsync() FutureValidatorSetResult {
	return c.sendCmd(rpcjson.MethodGetValidators, nil)
}

// GetValidators returns the current validator set and quorum.
func (c *Client) GetValidators() (*anchor.ValidatorSetInfo, error) {
	return c.GetValidatorsAsync().Receive()
}

// RemoveValidatorAsync is the future variant of RemoveValidator.
func (c *Client) RemoveValidatorAsync(id string) FutureValidatorSetResult {
	return c.sendCmd(rpcjson.MethodRemoveValidator, &rpcjson.RemoveValidatorCmd{ID: id})
}

// RemoveValidator removes a validator.  Admin only.
func (c *Client) RemoveValidator(id string) (*anchor.ValidatorSetInfo, error) {
	return c.RemoveValidatorAsync(id).Receive()
}

// SetRequiredSignaturesAsync is the future variant of SetRequiredSignatures.
func (c *Client) SetRequiredSignaturesAsync(n int) FutureValidatorSetResult {
	return c.sendCmd(rpcjson.MethodSetRequiredSignatures, &rpcjson.SetRequiredSignaturesCmd{Required: n})
}

// SetRequiredSignatures changes the anchor quorum.  Admin only.
func (c *Client) SetRequiredSignatures(n int) (*anchor.ValidatorSetInfo, error) {
	return c.SetRequiredSignaturesAsync(n).Receive()
}

// FutureAddValidatorResult is a future promise to deliver the result of an
// AddValidatorAsync RPC invocation (or an applicable error).
type FutureAddValidatorResult chan *response

// Receive waits for the response promised by the future and returns the
// added validator.
func (r FutureAddValidatorResult) Receive() (*validators.Validator, error) {
	var v validators.Validator
	if err := receiveInto(r, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// AddValidatorAsync is the future variant of AddValidator.
func (c *Client) AddValidatorAsync(id, pubKeyHex string) FutureAddValidatorResult {
	return c.sendCmd(rpcjson.MethodAddValidator, &rpcjson.AddValidatorCmd{ID: id, PubKey: pubKeyHex})
}

// AddValidator adds a validator.  An empty id is derived from the key.
// Admin only.
func (c *Client) AddValidator(id, pubKeyHex string) (*validators.Validator, error) {
	return c.AddValidatorAsync(id, pubKeyHex).Receive()
}
