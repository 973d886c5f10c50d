// Package signing specializes the base round session (C4) for distributed
// signature generation (C6, spec.md §4.6).
package signing

import (
	"github.com/mpcparty/core/internal/logger"
	"github.com/mpcparty/core/pkg/engine"
	"github.com/mpcparty/core/pkg/mpcerrors"
	"github.com/mpcparty/core/pkg/protosession"
	"github.com/mpcparty/core/pkg/wire"
)

// Signature is the completed (r, s) pair.
type Signature struct {
	R []byte
	S []byte
}

// Session drives a single distributed signing run to completion.
type Session struct {
	base *protosession.Session

	eng         engine.SignSession
	group       wire.GroupInfo
	ownID       wire.PartyId
	groupID     wire.GroupId
	messageHash []byte

	result *Signature
}

// New constructs a Session bound to keyshareBytes via factory, signing
// messageHash (exactly 32 bytes) under derivationPath.
func New(groupID wire.GroupId, ownID wire.PartyId, group wire.GroupInfo, factory engine.SignFactory, keyshareBytes []byte, derivationPath string, messageHash []byte, log logger.Logger) (*Session, error) {
	if len(messageHash) != 32 {
		return nil, mpcerrors.New(mpcerrors.BadHash, "message_hash must be exactly 32 bytes")
	}
	if derivationPath == "" {
		derivationPath = "m"
	}
	if _, ok := group.IndexOf(ownID); !ok {
		return nil, mpcerrors.New(mpcerrors.BadPeer, "own party id is not a member of the group")
	}

	eng, err := factory(keyshareBytes, derivationPath, nil)
	if err != nil {
		return nil, mpcerrors.Wrap(mpcerrors.ProtocolViolation, "failed to start signing engine", err)
	}

	s := &Session{eng: eng, group: group, ownID: ownID, groupID: groupID, messageHash: messageHash}
	s.base = protosession.New(groupID, ownID, group, s, log)
	return s, nil
}

// SetCallbacks installs the completion/error hooks on the underlying base
// session.
func (s *Session) SetCallbacks(onComplete func(Signature), onError func(string)) {
	s.base.SetCallbacks(func() {
		if onComplete != nil && s.result != nil {
			onComplete(*s.result)
		}
	}, onError)
}

// HandleInbound feeds one frame through the base session pipeline.
func (s *Session) HandleInbound(frame wire.ProtocolMessage) ([]wire.ProtocolMessage, error) {
	return s.base.HandleInbound(frame)
}

// Destroy releases the engine handle.
func (s *Session) Destroy() {
	if s.eng != nil {
		s.eng.Destroy()
	}
}

// HandleStartRound implements protosession.Hooks: emits round 1's output.
func (s *Session) HandleStartRound() ([]wire.ProtocolMessage, error) {
	msg, err := s.eng.CreateFirstMessage(s.messageHash)
	if err != nil {
		return nil, mpcerrors.Wrap(mpcerrors.ProtocolViolation, "sign create_first_message failed", err)
	}
	frame, err := s.base.FromEngine(msg, wire.Round1)
	if err != nil {
		return nil, err
	}
	return []wire.ProtocolMessage{frame}, nil
}

// ExpectedMessageCount implements protosession.Hooks: every round needs
// t-1 peer frames for signing (spec.md §4.6).
func (s *Session) ExpectedMessageCount(round int) int {
	return s.group.T - 1
}

// ProcessRound implements protosession.Hooks: advances the engine; at
// round 3 produces this party's partial signature for round 4; at round 4
// combines peer partials into (r, s) and emits DONE.
func (s *Session) ProcessRound(round int, msgs []engine.Message) ([]wire.ProtocolMessage, error) {
	if round == wire.Round4 {
		r, sVal, err := s.eng.Combine(msgs)
		if err != nil {
			return nil, mpcerrors.Wrap(mpcerrors.ProtocolViolation, "sign combine failed", err)
		}
		s.result = &Signature{R: r, S: sVal}

		done := wire.ProtocolMessage{
			GroupId: s.groupID,
			FromId:  s.ownID,
			ToId:    string(wire.ServerId),
			Content: wire.ContentDone,
			Round:   wire.RoundEnd,
		}
		return []wire.ProtocolMessage{done}, nil
	}

	next, err := s.eng.HandleMessages(msgs)
	if err != nil {
		return nil, mpcerrors.Wrap(mpcerrors.ProtocolViolation, "sign handle_messages failed", err)
	}

	nextRound := round + 1
	out := make([]wire.ProtocolMessage, 0, len(next)+1)
	for _, m := range next {
		frame, err := s.base.FromEngine(m, nextRound)
		if err != nil {
			return nil, err
		}
		out = append(out, frame)
	}

	if round == wire.Round3 {
		partial, err := s.eng.LastMessage(s.messageHash)
		if err != nil {
			return nil, mpcerrors.Wrap(mpcerrors.ProtocolViolation, "sign last_message failed", err)
		}
		frame, err := s.base.FromEngine(partial, wire.Round4)
		if err != nil {
			return nil, err
		}
		out = append(out, frame)
	}

	return out, nil
}
