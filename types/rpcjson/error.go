// Copyright (c) 2014 The btcsuite developers
// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package rpcjson

import (
	"fmt"

	"gitlab.com/jaxnet/smicp/types/coreerr"
)

// Standard JSON-RPC 2.0 errors.
var (
	ErrRPCInvalidRequest = &RPCError{
		Code:    -32600,
		Message: "Invalid request",
	}
	ErrRPCMethodNotFound = &RPCError{
		Code:    -32601,
		Message: "Method not found",
	}
	ErrRPCInvalidParams = &RPCError{
		Code:    -32602,
		Message: "Invalid parameters",
	}
	ErrRPCInternal = &RPCError{
		Code:    -32603,
		Message: "Internal error",
	}
	ErrRPCParse = &RPCError{
		Code:    -32700,
		Message: "Parse error",
	}
)

// Protocol error codes, one per error kind.
const (
	ErrRPCValidation    RPCErrorCode = -32602
	ErrRPCUnauthorized  RPCErrorCode = -4
	ErrRPCNotFound      RPCErrorCode = -5
	ErrRPCTimeout       RPCErrorCode = -6
	ErrRPCConflict      RPCErrorCode = -8
	ErrRPCInvalidState  RPCErrorCode = -8
	ErrRPCStorage       RPCErrorCode = -32603
	ErrRPCLimitedAccess RPCErrorCode = -32604
)

var kindCodes = map[coreerr.Kind]RPCErrorCode{
	coreerr.KindValidation:    ErrRPCValidation,
	coreerr.KindConflict:      ErrRPCConflict,
	coreerr.KindAuthorization: ErrRPCUnauthorized,
	coreerr.KindState:         ErrRPCInvalidState,
	coreerr.KindNotFound:      ErrRPCNotFound,
	coreerr.KindTimeout:       ErrRPCTimeout,
	coreerr.KindStorage:       ErrRPCStorage,
}

// FromError converts a component failure into an RPC error.  Failures that
// are not *coreerr.Error become internal errors.
func FromError(err error) *RPCError {
	if err == nil {
		return nil
	}
	if rpcErr, ok := err.(*RPCError); ok {
		return rpcErr
	}
	cerr, ok := coreerr.As(err)
	if !ok {
		return NewRPCError(ErrRPCInternal.Code, err.Error())
	}
	return &RPCError{
		Code:    kindCodes[cerr.Kind()],
		Message: cerr.Error(),
		Data: &ErrorData{
			Kind: cerr.Kind().String(),
			Code: cerr.Code.String(),
			Key:  cerr.Key,
		},
	}
}

// ErrorCode identifies a kind of error.  These error codes are NOT used for
// JSON-RPC response errors.
type ErrorCode int

// These constants are used to identify a specific RuleError.
const (
	// ErrInvalidType indicates a type was passed that is not the required
	// type.
	ErrInvalidType ErrorCode = iota

	// ErrUnregisteredMethod indicates a method was specified that has not
	// been registered.
	ErrUnregisteredMethod

	// numErrorCodes is the maximum error code number used in tests.
	numErrorCodes
)

// Map of ErrorCode values back to their constant names for pretty printing.
var errorCodeStrings = map[ErrorCode]string{
	ErrInvalidType:        "ErrInvalidType",
	ErrUnregisteredMethod: "ErrUnregisteredMethod",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s := errorCodeStrings[e]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// Error identifies a general error.  This differs from an RPCError in that this
// error typically is used more by the consumers of the package as opposed to
// RPCErrors which are intended to be returned to the client across the wire via
// a JSON-RPC Response.  The caller can use type assertions to determine the
// specific error and access the ErrorCode field.
type Error struct {
	ErrorCode   ErrorCode // Describes the kind of error
	Description string    // Human readable description of the issue
}

// Error satisfies the error interface and prints human-readable errors.
func (e Error) Error() string {
	return e.Description
}

// makeError creates an Error given a set of arguments.
func makeError(c ErrorCode, desc string) Error {
	return Error{ErrorCode: c, Description: desc}
}
