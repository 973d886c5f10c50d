// Copyright (c) 2026 The mpcparty Authors.
// Use of this source code is governed by the MIT license found in the
// LICENSE file at the root of this repository.

// Package bootstrap builds and parses the out-of-band session token (C7,
// spec.md §4.7) that carries the symmetric key and group parameters a
// participant needs to join a keygen, rotation, or signing session.
package bootstrap

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mpcparty/core/pkg/mpcerrors"
	"github.com/mpcparty/core/pkg/relay"
	"github.com/mpcparty/core/pkg/wire"
)

const tokenVersion = 1

// BuildOptions carries the per-type payload fields a token may need.
type BuildOptions struct {
	TimeoutSec   int
	MessageHash  string // required for TokenSign
	RotationType string // required for TokenRotation
}

// Build generates a fresh 256-bit AES key and a SessionToken of the given
// type for groupID/threshold/totalParties, serializing it to JSON. The
// caller installs the returned key into its transport before handing the
// token string to the participant (spec.md §4.7).
func Build(tokenType wire.TokenType, groupID wire.GroupId, threshold, totalParties int, opts BuildOptions) (string, []byte, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return "", nil, mpcerrors.Wrap(mpcerrors.CryptoFailure, "failed to generate session token key", err)
	}

	token := wire.SessionToken{
		Type:         tokenType,
		AESKey:       base64.StdEncoding.EncodeToString(key),
		GroupId:      groupID,
		Threshold:    threshold,
		TotalParties: totalParties,
		TimeoutSec:   opts.TimeoutSec,
		TimestampMs:  time.Now().UnixMilli(),
		Version:      tokenVersion,
		MessageHash:  opts.MessageHash,
		RotationType: opts.RotationType,
		Nonce:        uuid.NewString(),
	}

	if tokenType == wire.TokenSign && token.MessageHash == "" {
		return "", nil, mpcerrors.New(mpcerrors.Config, "sign token requires message_hash")
	}
	if tokenType == wire.TokenRotation && token.RotationType == "" {
		return "", nil, mpcerrors.New(mpcerrors.Config, "rotation token requires rotation_type")
	}

	data, err := json.Marshal(token)
	if err != nil {
		return "", nil, mpcerrors.Wrap(mpcerrors.Config, "failed to serialize session token", err)
	}
	return string(data), key, nil
}

// ParsedToken is the result of parsing and validating a session token
// string: the decoded token, its key, and (once fetched) the group info it
// was validated against.
type ParsedToken struct {
	Token wire.SessionToken
	Key   []byte
	Group wire.GroupInfo
}

// Parse decodes and validates tokenJSON's required fields and freshness
// against ParseWindow (24h), without contacting the relay. Use
// Bootstrap to additionally enforce the tighter BootstrapWindow (2m) and
// join the group.
func Parse(tokenJSON string, now time.Time) (wire.SessionToken, []byte, error) {
	var token wire.SessionToken
	if err := json.Unmarshal([]byte(tokenJSON), &token); err != nil {
		return wire.SessionToken{}, nil, mpcerrors.Wrap(mpcerrors.Config, "failed to parse session token", err)
	}

	if err := validateRequiredFields(token); err != nil {
		return wire.SessionToken{}, nil, err
	}

	if token.Age(now) > wire.ParseWindow {
		return wire.SessionToken{}, nil, mpcerrors.New(mpcerrors.Expired, "session token is older than the 24h parse window")
	}

	key, err := base64.StdEncoding.DecodeString(token.AESKey)
	if err != nil || len(key) != 32 {
		return wire.SessionToken{}, nil, mpcerrors.New(mpcerrors.BadKey, "session token aes_key must decode to 32 bytes")
	}

	return token, key, nil
}

func validateRequiredFields(token wire.SessionToken) error {
	if token.GroupId == "" {
		return mpcerrors.New(mpcerrors.Config, "session token missing group_id")
	}
	if token.Type != wire.TokenKeygen && token.Type != wire.TokenSign && token.Type != wire.TokenRotation {
		return mpcerrors.New(mpcerrors.Config, fmt.Sprintf("session token has unknown type %q", token.Type))
	}
	if token.TotalParties <= 0 || token.Threshold <= 0 {
		return mpcerrors.New(mpcerrors.Config, "session token missing threshold/total_parties")
	}
	if token.Nonce == "" {
		return mpcerrors.New(mpcerrors.Config, "session token missing nonce")
	}
	if token.Type == wire.TokenSign && token.MessageHash == "" {
		return mpcerrors.New(mpcerrors.Config, "sign token missing message_hash")
	}
	if token.Type == wire.TokenRotation && token.RotationType == "" {
		return mpcerrors.New(mpcerrors.Config, "rotation token missing rotation_type")
	}
	return nil
}

// Bootstrap parses tokenJSON under the tighter 2-minute bootstrap window,
// joins the group via client, fetches its GroupInfo, and checks that
// {n, t} agree with the token (GroupMismatch otherwise). The caller
// installs Key into its transport and proceeds with the session named by
// Token.Type.
func Bootstrap(ctx context.Context, client *relay.Client, tokenJSON string, now time.Time) (ParsedToken, error) {
	token, key, err := Parse(tokenJSON, now)
	if err != nil {
		return ParsedToken{}, err
	}
	if token.Age(now) > wire.BootstrapWindow {
		return ParsedToken{}, mpcerrors.New(mpcerrors.Expired, "session token is older than the 2m bootstrap window")
	}

	if err := client.JoinGroup(ctx, token.GroupId); err != nil {
		return ParsedToken{}, err
	}
	group, err := client.GroupInfo(ctx, token.GroupId)
	if err != nil {
		return ParsedToken{}, err
	}
	if !group.SameParameters(token.TotalParties, token.Threshold) {
		return ParsedToken{}, mpcerrors.New(mpcerrors.GroupMismatch, "group {n, t} does not match the session token")
	}

	return ParsedToken{Token: token, Key: key, Group: group}, nil
}
