// Copyright (c) 2026 The mpcparty Authors.
// Use of this source code is governed by the MIT license found in the
// LICENSE file at the root of this repository.

// Package mpcerrors defines the closed error taxonomy participants use to
// report and propagate failures (see SPEC_FULL.md §A.4).
package mpcerrors

import (
	"errors"
	"fmt"
)

// Kind is a closed taxonomy of failure categories a caller can switch on.
type Kind string

const (
	// Config covers missing group_id, missing bearer token, and bad
	// parameters such as t < 2, t > n, n > 10.
	Config Kind = "config"
	// Network covers relay HTTP failures and socket open/close/read failures.
	Network Kind = "network"
	// ConnectTimeout is the 10 second socket open limit.
	ConnectTimeout Kind = "connect_timeout"
	// RelayRejected is a non-success relay response with a server reason.
	RelayRejected Kind = "relay_rejected"
	// BadKey is an AES key that is not 32 bytes, or invalid PBKDF2 input.
	BadKey Kind = "bad_key"
	// CryptoFailure covers GCM auth failure and base64 decode failure.
	CryptoFailure Kind = "crypto_failure"
	// BadPeer is an unknown from_id or an out-of-range to_index.
	BadPeer Kind = "bad_peer"
	// BadHash is a message_hash that is not exactly 32 bytes.
	BadHash Kind = "bad_hash"
	// ProtocolViolation is raised on malformed engine inputs, unexpected
	// round, or a missing partial signature at round 4.
	ProtocolViolation Kind = "protocol_violation"
	// Busy means a session is already active.
	Busy Kind = "busy"
	// NotStarted means a frame arrived while currentRound < 0.
	NotStarted Kind = "not_started"
	// StorageFull means the keyshare store is out of space after retries.
	StorageFull Kind = "storage_full"
	// StorageUnavailable means the keyshare store backend cannot be reached.
	StorageUnavailable Kind = "storage_unavailable"
	// Expired means a session token is older than its allowed window.
	Expired Kind = "expired"
	// GroupMismatch means the token's {n, t} disagree with the relay's GroupInfo.
	GroupMismatch Kind = "group_mismatch"
	// SessionEndedNonSuccess is a terminal END:<status> with status != SUCCESS.
	SessionEndedNonSuccess Kind = "session_ended_non_success"
)

// Error wraps a Kind, a human-readable message, an optional status payload
// (only populated for SessionEndedNonSuccess), and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Status  string
	Cause   error
}

func (e *Error) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("%s: %s (status=%s)", e.Kind, e.Message, e.Status)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same Kind, so callers can
// use errors.Is(err, mpcerrors.New(mpcerrors.Busy, "")) to test for a kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind
}

// New constructs an Error of the given kind with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs an Error of the given kind wrapping cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// WithStatus constructs a SessionEndedNonSuccess error carrying the relay's
// terminal status string.
func WithStatus(status string) *Error {
	return &Error{
		Kind:    SessionEndedNonSuccess,
		Message: "session ended without success",
		Status:  status,
	}
}

// KindOf extracts the Kind from err if it is (or wraps) an *Error, and
// reports whether one was found.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
