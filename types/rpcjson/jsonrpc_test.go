// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package rpcjson

import (
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/jaxnet/smicp/types/coreerr"
)

func TestIsValidIDType(t *testing.T) {
	var req Request
	require.NoError(t, json.Unmarshal([]byte(`{"id":"1592982359788","method":"getEpochStatus"}`), &req))
	assert.True(t, IsValidIDType(req.ID))
	assert.True(t, IsValidIDType(nil))
	assert.False(t, IsValidIDType([]int{1}))
	assert.False(t, IsValidIDType(map[string]string{}))
}

func TestNewRequest(t *testing.T) {
	req, err := NewRequest(1, MethodCommit, &EpochCmd{EpochID: "e1"})
	require.NoError(t, err)
	assert.Equal(t, "2.0", req.Jsonrpc)
	assert.JSONEq(t, `{"epoch_id":"e1"}`, string(req.Params))

	_, err = NewRequest(struct{}{}, MethodCommit, nil)
	assert.Error(t, err)
	assert.Equal(t, ErrInvalidType, err.(Error).ErrorCode)
}

func TestMarshalResponse(t *testing.T) {
	b, err := MarshalResponse(7, map[string]bool{"all_prepared": true}, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","result":{"all_prepared":true},"error":null,"id":7}`, string(b))

	b, err = MarshalResponse("x", nil, ErrRPCMethodNotFound)
	require.NoError(t, err)
	var resp Response
	require.NoError(t, json.Unmarshal(b, &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, RPCErrorCode(-32601), resp.Error.Code)
}

func TestFromError(t *testing.T) {
	tests := []struct {
		err  error
		code RPCErrorCode
		kind string
	}{
		{coreerr.New(coreerr.ErrInvalidInput, "", "bad"), -32602, "ValidationError"},
		{coreerr.New(coreerr.ErrDuplicateAnchor, "root~a~1", ""), -8, "ConflictError"},
		{coreerr.New(coreerr.ErrInsufficientSignatures, "root~a~1", ""), -4, "AuthorizationError"},
		{coreerr.New(coreerr.ErrWrongState, "epoch~e", ""), -8, "StateError"},
		{coreerr.New(coreerr.ErrEpochNotFound, "epoch~e", ""), -5, "NotFoundError"},
		{coreerr.New(coreerr.ErrEpochTimedOut, "epoch~e", ""), -6, "TimeoutError"},
		{coreerr.Storage("epoch~e", errors.New("disk"), "put"), -32603, "StorageError"},
	}
	for _, test := range tests {
		rpcErr := FromError(test.err)
		require.NotNil(t, rpcErr)
		assert.Equal(t, test.code, rpcErr.Code, test.err.Error())
		require.NotNil(t, rpcErr.Data)
		assert.Equal(t, test.kind, rpcErr.Data.Kind)
	}

	wrapped := errors.Wrap(coreerr.New(coreerr.ErrNotFound, "root~a~2", ""), "lookup")
	rpcErr := FromError(wrapped)
	assert.Equal(t, ErrRPCNotFound, rpcErr.Code)
	assert.Equal(t, "root~a~2", rpcErr.Data.Key)
	assert.Equal(t, "NotFound", rpcErr.Data.Code)

	plain := FromError(errors.New("boom"))
	assert.Equal(t, ErrRPCInternal.Code, plain.Code)
	assert.Nil(t, plain.Data)

	assert.Nil(t, FromError(nil))
	assert.Equal(t, ErrRPCParse, FromError(ErrRPCParse))
}
