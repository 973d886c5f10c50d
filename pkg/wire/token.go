// Copyright (c) 2026 The mpcparty Authors.
// Use of this source code is governed by the MIT license found in the
// LICENSE file at the root of this repository.

package wire

import "time"

// TokenType selects which protocol an out-of-band session token bootstraps.
type TokenType string

const (
	TokenKeygen   TokenType = "keygen"
	TokenSign     TokenType = "sign"
	TokenRotation TokenType = "rotation"
)

// SessionToken is the JSON object an initiator hands to a participant out of
// band (e.g. via QR code) to bootstrap a session (spec.md §3, §4.7).
type SessionToken struct {
	Type         TokenType `json:"type"`
	AESKey       string    `json:"aes_key"` // base64, 32 raw bytes
	GroupId      GroupId   `json:"group_id"`
	Threshold    int       `json:"threshold"`
	TotalParties int       `json:"total_parties"`
	TimeoutSec   int       `json:"timeout,omitempty"`
	TimestampMs  int64     `json:"timestamp"`
	Version      int       `json:"version"`
	// Nonce is a random per-token identifier, distinguishing two tokens
	// built at the same millisecond for the same group.
	Nonce string `json:"nonce"`

	// MessageHash is present for TokenSign only: the 32-byte hash to sign,
	// hex-encoded.
	MessageHash string `json:"message_hash,omitempty"`
	// RotationType is present for TokenRotation only.
	RotationType string `json:"rotation_type,omitempty"`
}

// BootstrapWindow and ParseWindow are the freshness windows from spec.md §3:
// 2 minutes to bootstrap a session, 24 hours to merely parse one.
const (
	BootstrapWindow = 2 * time.Minute
	ParseWindow     = 24 * time.Hour
)

// Age returns how long ago the token was built, relative to now.
func (t *SessionToken) Age(now time.Time) time.Duration {
	return now.Sub(time.UnixMilli(t.TimestampMs))
}
