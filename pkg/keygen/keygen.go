// Copyright (c) 2026 The mpcparty Authors.
// Use of this source code is governed by the MIT license found in the
// LICENSE file at the root of this repository.

// Package keygen specializes the base round session (C4) for distributed
// key generation and key rotation (C5, spec.md §4.5).
package keygen

import (
	"time"

	"github.com/mpcparty/core/internal/logger"
	"github.com/mpcparty/core/pkg/engine"
	"github.com/mpcparty/core/pkg/mpcerrors"
	"github.com/mpcparty/core/pkg/protosession"
	"github.com/mpcparty/core/pkg/wire"
)

// Result is the completed keygen/rotation artifact handed to the caller's
// completion callback.
type Result struct {
	KeyShare wire.KeyShare
}

// Session drives a single distributed-keygen or rotation run to
// completion.
type Session struct {
	base *protosession.Session

	eng     engine.KeygenSession
	group   wire.GroupInfo
	ownID   wire.PartyId
	groupID wire.GroupId

	emittedRound int

	result *wire.KeyShare
}

// New constructs a fresh-keygen Session bound to factory, using
// group/ownID for round filtering and wire addressing.
func New(groupID wire.GroupId, ownID wire.PartyId, group wire.GroupInfo, factory engine.KeygenFactory, seed []byte, log logger.Logger) (*Session, error) {
	ownIndex, ok := group.IndexOf(ownID)
	if !ok {
		return nil, mpcerrors.New(mpcerrors.BadPeer, "own party id is not a member of the group")
	}
	eng, err := factory(group.N, group.T, ownIndex, []byte(groupID), seed, true)
	if err != nil {
		return nil, mpcerrors.Wrap(mpcerrors.ProtocolViolation, "failed to start keygen engine", err)
	}
	s := &Session{eng: eng, group: group, ownID: ownID, groupID: groupID, emittedRound: -1}
	s.base = protosession.New(groupID, ownID, group, s, log)
	return s, nil
}

// NewRotation constructs a rotation Session, binding priorKeyshare's engine
// bytes into the new engine instance so the resulting public key can be
// checked against it.
func NewRotation(groupID wire.GroupId, ownID wire.PartyId, group wire.GroupInfo, factory engine.RotationFactory, prior wire.KeyShare, seed []byte, log logger.Logger) (*Session, error) {
	ownIndex, ok := group.IndexOf(ownID)
	if !ok {
		return nil, mpcerrors.New(mpcerrors.BadPeer, "own party id is not a member of the group")
	}
	priorEngine := engine.Keyshare{
		Bytes:      prior.Serialized,
		PublicKey:  prior.PublicKey,
		Threshold:  prior.Threshold,
		PartyIndex: prior.PartyIndex,
	}
	eng, err := factory(group.N, group.T, ownIndex, []byte(groupID), priorEngine, seed, true)
	if err != nil {
		return nil, mpcerrors.Wrap(mpcerrors.ProtocolViolation, "failed to start rotation engine", err)
	}
	s := &Session{eng: eng, group: group, ownID: ownID, groupID: groupID, emittedRound: -1}
	s.base = protosession.New(groupID, ownID, group, s, log)
	return s, nil
}

// SetCallbacks installs the completion/error hooks on the underlying base
// session.
func (s *Session) SetCallbacks(onComplete func(Result), onError func(string)) {
	s.base.SetCallbacks(func() {
		if onComplete != nil && s.result != nil {
			onComplete(Result{KeyShare: *s.result})
		}
	}, onError)
}

// HandleInbound feeds one frame through the base session pipeline.
func (s *Session) HandleInbound(frame wire.ProtocolMessage) ([]wire.ProtocolMessage, error) {
	return s.base.HandleInbound(frame)
}

// Destroy releases the engine handle. Safe to call multiple times.
func (s *Session) Destroy() {
	if s.eng != nil {
		s.eng.Destroy()
	}
}

// HandleStartRound implements protosession.Hooks: emits round 1's output.
func (s *Session) HandleStartRound() ([]wire.ProtocolMessage, error) {
	msg, err := s.eng.CreateFirstMessage()
	if err != nil {
		return nil, mpcerrors.Wrap(mpcerrors.ProtocolViolation, "keygen create_first_message failed", err)
	}
	s.emittedRound = wire.Round1
	frame, err := s.base.FromEngine(msg, wire.Round1)
	if err != nil {
		return nil, err
	}
	return []wire.ProtocolMessage{frame}, nil
}

// ExpectedMessageCount implements protosession.Hooks: every round needs
// n-1 peer frames for distributed keygen (spec.md §4.5).
func (s *Session) ExpectedMessageCount(round int) int {
	return s.group.N - 1
}

// ProcessRound implements protosession.Hooks: advances the engine and, at
// round 4, builds the resulting KeyShare record and emits DONE. The record
// is handed to the completion callback; this session does not store it.
func (s *Session) ProcessRound(round int, msgs []engine.Message) ([]wire.ProtocolMessage, error) {
	next, err := s.eng.HandleMessages(msgs)
	if err != nil {
		return nil, mpcerrors.Wrap(mpcerrors.ProtocolViolation, "keygen handle_messages failed", err)
	}

	if round < wire.Round4 {
		out := make([]wire.ProtocolMessage, 0, len(next))
		for _, m := range next {
			frame, err := s.base.FromEngine(m, round+1)
			if err != nil {
				return nil, err
			}
			out = append(out, frame)
		}
		return out, nil
	}

	ks, err := s.eng.GetKeyshare()
	if err != nil {
		return nil, mpcerrors.Wrap(mpcerrors.ProtocolViolation, "keygen get_keyshare failed", err)
	}

	participants := make([]wire.PartyId, 0, len(ks.Participants))
	for _, idx := range ks.Participants {
		if id, ok := s.group.PartyAt(idx); ok {
			participants = append(participants, id)
		}
	}

	s.result = &wire.KeyShare{
		Serialized:   ks.Bytes,
		PublicKey:    ks.PublicKey,
		Participants: participants,
		Threshold:    ks.Threshold,
		PartyId:      s.ownID,
		PartyIndex:   ks.PartyIndex,
		GroupId:      s.groupID,
		TotalParties: s.group.N,
		Timestamp:    time.Now(),
	}

	done := wire.ProtocolMessage{
		GroupId: s.groupID,
		FromId:  s.ownID,
		ToId:    string(wire.ServerId),
		Content: wire.ContentDone,
		Round:   wire.RoundEnd,
	}
	return []wire.ProtocolMessage{done}, nil
}
