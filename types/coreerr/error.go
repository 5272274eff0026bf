// Copyright (c) 2014-2016 The btcsuite developers
// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package coreerr defines the structured failures returned by the protocol
// components.  Every failure carries a code, the kind the code belongs to and
// the storage key of the entity it concerns.
package coreerr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind groups error codes by how a caller is expected to react.
type Kind int

const (
	KindValidation Kind = iota
	KindConflict
	KindAuthorization
	KindState
	KindNotFound
	KindTimeout
	// KindStorage reports a failure of the key/value collaborator rather
	// than of the protocol rules.
	KindStorage
)

var kindStrings = map[Kind]string{
	KindValidation:    "ValidationError",
	KindConflict:      "ConflictError",
	KindAuthorization: "AuthorizationError",
	KindState:         "StateError",
	KindNotFound:      "NotFoundError",
	KindTimeout:       "TimeoutError",
	KindStorage:       "StorageError",
}

// String returns the Kind as a human-readable name.
func (k Kind) String() string {
	if s := kindStrings[k]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown Kind (%d)", int(k))
}

// ErrorCode identifies a kind of error.
type ErrorCode int

// These constants are used to identify a specific Error.
const (
	// ErrInvalidInput indicates a malformed or missing argument.
	ErrInvalidInput ErrorCode = iota

	// ErrIndexOutOfRange indicates a proof was requested for a leaf that
	// is not part of the batch.
	ErrIndexOutOfRange

	// ErrEmptyParticipantSet indicates an epoch was started without
	// participants.
	ErrEmptyParticipantSet

	// ErrDuplicateAnchor indicates an anchor already exists for the
	// (chain, block) pair.
	ErrDuplicateAnchor

	// ErrDuplicateEpoch indicates the epoch id is already taken.
	ErrDuplicateEpoch

	// ErrInsufficientSignatures indicates fewer distinct valid validator
	// signatures than the quorum requires.
	ErrInsufficientSignatures

	// ErrNotAParticipant indicates the caller is not part of the epoch.
	ErrNotAParticipant

	// ErrUntrustedRoot indicates a relayed root does not match the
	// anchored one.
	ErrUntrustedRoot

	// ErrWrongState indicates the operation is not valid in the current
	// state of the epoch.
	ErrWrongState

	// ErrProofInvalid indicates the inclusion proof does not reproduce the
	// trusted root.
	ErrProofInvalid

	// ErrNotFound indicates an unknown anchor, record or validator.
	ErrNotFound

	// ErrNoTrustedRoot indicates no trusted root exists for the source
	// chain and block.
	ErrNoTrustedRoot

	// ErrEpochNotFound indicates an unknown epoch id.
	ErrEpochNotFound

	// ErrEpochTimedOut indicates the epoch exceeded its deadline and was
	// aborted.
	ErrEpochTimedOut

	// ErrStorage indicates the key/value store failed.
	ErrStorage

	// numErrorCodes is the maximum error code number used in tests.
	numErrorCodes
)

// Map of ErrorCode values back to their constant names for pretty printing.
var errorCodeStrings = map[ErrorCode]string{
	ErrInvalidInput:           "InvalidInput",
	ErrIndexOutOfRange:        "IndexOutOfRange",
	ErrEmptyParticipantSet:    "EmptyParticipantSet",
	ErrDuplicateAnchor:        "DuplicateAnchor",
	ErrDuplicateEpoch:         "DuplicateEpoch",
	ErrInsufficientSignatures: "InsufficientSignatures",
	ErrNotAParticipant:        "NotAParticipant",
	ErrUntrustedRoot:          "UntrustedRoot",
	ErrWrongState:             "WrongState",
	ErrProofInvalid:           "ProofInvalid",
	ErrNotFound:               "NotFound",
	ErrNoTrustedRoot:          "NoTrustedRoot",
	ErrEpochNotFound:          "EpochNotFound",
	ErrEpochTimedOut:          "EpochTimedOut",
	ErrStorage:                "Storage",
}

var errorCodeKinds = map[ErrorCode]Kind{
	ErrInvalidInput:           KindValidation,
	ErrIndexOutOfRange:        KindValidation,
	ErrEmptyParticipantSet:    KindValidation,
	ErrDuplicateAnchor:        KindConflict,
	ErrDuplicateEpoch:         KindConflict,
	ErrInsufficientSignatures: KindAuthorization,
	ErrNotAParticipant:        KindAuthorization,
	ErrUntrustedRoot:          KindAuthorization,
	ErrWrongState:             KindState,
	ErrProofInvalid:           KindState,
	ErrNotFound:               KindNotFound,
	ErrNoTrustedRoot:          KindNotFound,
	ErrEpochNotFound:          KindNotFound,
	ErrEpochTimedOut:          KindTimeout,
	ErrStorage:                KindStorage,
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s := errorCodeStrings[e]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// Error lets a bare code act as a sentinel for errors.Is.
func (e ErrorCode) Error() string {
	return e.String()
}

// Kind returns the group the code belongs to.
func (e ErrorCode) Kind() Kind {
	return errorCodeKinds[e]
}

// Error is the failure returned by every protocol operation.
type Error struct {
	Code        ErrorCode // Describes the kind of error
	Key         string    // Storage key of the offending entity, if any
	Description string    // Human readable description of the issue
	Err         error     // Underlying cause, set for storage failures
}

// Error satisfies the error interface and prints human-readable errors.
func (e *Error) Error() string {
	msg := e.Code.Kind().String() + "/" + e.Code.String()
	if e.Key != "" {
		msg += " [" + e.Key + "]"
	}
	if e.Description != "" {
		msg += ": " + e.Description
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Kind is a shortcut for e.Code.Kind().
func (e *Error) Kind() Kind {
	return e.Code.Kind()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the same error code.
func (e *Error) Is(target error) bool {
	switch t := target.(type) {
	case ErrorCode:
		return e.Code == t
	case *Error:
		return e.Code == t.Code
	}
	return false
}

// New creates an Error given a set of arguments.
func New(c ErrorCode, key, desc string) *Error {
	return &Error{Code: c, Key: key, Description: desc}
}

// Newf is New with a formatted description.
func Newf(c ErrorCode, key, format string, args ...interface{}) *Error {
	return &Error{Code: c, Key: key, Description: fmt.Sprintf(format, args...)}
}

// Storage wraps a collaborator failure.
func Storage(key string, err error, action string) *Error {
	return &Error{Code: ErrStorage, Key: key, Err: errors.Wrap(err, action)}
}

// As extracts the *Error from err, following wrapped causes.
func As(err error) (*Error, bool) {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e, true
		}
		switch u := err.(type) {
		case interface{ Unwrap() error }:
			err = u.Unwrap()
		case interface{ Cause() error }:
			err = u.Cause()
		default:
			return nil, false
		}
	}
	return nil, false
}

// CodeOf returns the code of err, or false when err is not a protocol error.
func CodeOf(err error) (ErrorCode, bool) {
	e, ok := As(err)
	if !ok {
		return 0, false
	}
	return e.Code, true
}

// KindOf returns the kind of err, or false when err is not a protocol error.
func KindOf(err error) (Kind, bool) {
	e, ok := As(err)
	if !ok {
		return 0, false
	}
	return e.Code.Kind(), true
}

// CodeIs reports whether err is a protocol error with code c.
func CodeIs(err error, c ErrorCode) bool {
	code, ok := CodeOf(err)
	return ok && code == c
}
