// Package protosession implements the base round state machine (C4,
// spec.md §4.4) shared by keygen and signing: round buffering,
// deduplication, completion detection, and wire/engine message
// conversion. It is polymorphic over the concrete protocol via the Hooks
// interface.
package protosession

import (
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mpcparty/core/internal/logger"
	"github.com/mpcparty/core/pkg/engine"
	"github.com/mpcparty/core/pkg/mpcerrors"
	"github.com/mpcparty/core/pkg/wire"
)

// Hooks is implemented by keygen/signing specializations (C5/C6).
type Hooks interface {
	// HandleStartRound runs when round 0's START sentinel arrives. It
	// returns the session's first outbound messages.
	HandleStartRound() ([]wire.ProtocolMessage, error)
	// ProcessRound runs once a round's buffered message count reaches
	// ExpectedMessageCount(round). It returns the next round's outbound
	// messages (empty when the protocol has nothing left to emit).
	ProcessRound(round int, msgs []engine.Message) ([]wire.ProtocolMessage, error)
	// ExpectedMessageCount returns how many peer frames must be buffered
	// for round before ProcessRound fires.
	ExpectedMessageCount(round int) int
}

// CompletionFunc is invoked once, when an END:SUCCESS frame arrives.
type CompletionFunc func()

// ErrorFunc is invoked when an END:<non-SUCCESS> frame arrives, and each
// time HandleStartRound or ProcessRound returns an error.
type ErrorFunc func(reason string)

// roundState is the per-round bookkeeping from spec.md §3.
type roundState struct {
	buffered  []engine.Message
	seenHash  map[uint64]bool
	processed bool
	emitted   bool
}

// Session is the base round-driven state machine. GroupId, own party id,
// and the group membership are fixed for its lifetime.
type Session struct {
	log logger.Logger

	groupID wire.GroupId
	ownID   wire.PartyId
	group   wire.GroupInfo

	hooks Hooks

	mu           sync.Mutex
	currentRound int // -1 = not started
	complete     bool
	rounds       map[int]*roundState

	onComplete CompletionFunc
	onError    ErrorFunc
}

// New constructs a Session bound to group and ownID, not yet started
// (currentRound = -1 until a START frame arrives).
func New(groupID wire.GroupId, ownID wire.PartyId, group wire.GroupInfo, hooks Hooks, log logger.Logger) *Session {
	if log == nil {
		log = logger.GetDefaultLogger()
	}
	return &Session{
		log:          log,
		groupID:      groupID,
		ownID:        ownID,
		group:        group,
		hooks:        hooks,
		currentRound: -1,
		rounds:       make(map[int]*roundState),
	}
}

// SetCallbacks installs the completion/error hooks. onComplete fires at most
// once; onError can fire more than once if round processing keeps failing.
func (s *Session) SetCallbacks(onComplete CompletionFunc, onError ErrorFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onComplete = onComplete
	s.onError = onError
}

// IsComplete reports whether the session has reached a terminal END frame.
func (s *Session) IsComplete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.complete
}

// HandleInbound runs the message processing pipeline from spec.md §4.4 and
// returns the outbound frames produced by this step, if any.
func (s *Session) HandleInbound(frame wire.ProtocolMessage) ([]wire.ProtocolMessage, error) {
	s.mu.Lock()

	if s.complete {
		s.mu.Unlock()
		return nil, nil
	}

	if frame.IsStart() {
		s.currentRound = 0
		s.mu.Unlock()
		out, err := s.hooks.HandleStartRound()
		if err != nil {
			s.fireError(err.Error())
			return nil, err
		}
		return out, nil
	}

	if status, ok := frame.EndStatus(); ok && s.currentRound >= 0 {
		s.complete = true
		onComplete := s.onComplete
		onError := s.onError
		s.mu.Unlock()
		if status == "SUCCESS" {
			if onComplete != nil {
				onComplete()
			}
		} else if onError != nil {
			onError(status)
		}
		return nil, nil
	}

	if frame.FromId == s.ownID {
		s.mu.Unlock()
		return nil, nil
	}

	if s.currentRound < 0 {
		s.mu.Unlock()
		return nil, mpcerrors.New(mpcerrors.NotStarted, "frame received before session start")
	}

	if !addressedToSelf(s.ownID, frame) {
		s.mu.Unlock()
		return nil, nil // not for us: the relay socket is shared by the whole group
	}

	h := wire.DedupHash(frame.FromId, wire.PartyId(frame.ToId), frame.Round, frame.Content)
	rs := s.roundStateLocked(frame.Round)
	if rs.seenHash[h] {
		s.mu.Unlock()
		return nil, nil // replay/duplicate
	}
	rs.seenHash[h] = true

	msg, err := s.toEngineLocked(frame)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	rs.buffered = append(rs.buffered, msg)

	expected := s.hooks.ExpectedMessageCount(frame.Round)
	if rs.processed || len(rs.buffered) < expected {
		s.mu.Unlock()
		return nil, nil
	}
	rs.processed = true
	round := frame.Round
	buffered := append([]engine.Message(nil), rs.buffered...)
	s.mu.Unlock()

	out, err := s.hooks.ProcessRound(round, buffered)
	if err != nil {
		s.mu.Lock()
		rs.processed = false // revert to allow retry
		s.mu.Unlock()
		s.fireError(err.Error())
		return nil, err
	}
	return out, nil
}

func (s *Session) fireError(reason string) {
	s.mu.Lock()
	onError := s.onError
	s.mu.Unlock()
	if onError != nil {
		onError(reason)
	}
}

func (s *Session) roundStateLocked(round int) *roundState {
	rs, ok := s.rounds[round]
	if !ok {
		rs = &roundState{seenHash: make(map[uint64]bool)}
		s.rounds[round] = rs
	}
	return rs
}

// toEngineLocked converts a wire frame to an engine.Message. Must be called
// with s.mu held.
func (s *Session) toEngineLocked(frame wire.ProtocolMessage) (engine.Message, error) {
	payload, err := base64.StdEncoding.DecodeString(frame.Content)
	if err != nil {
		return engine.Message{}, mpcerrors.Wrap(mpcerrors.ProtocolViolation, "engine message content is not valid base64", err)
	}

	fromIndex, ok := s.group.IndexOf(frame.FromId)
	if !ok {
		return engine.Message{}, mpcerrors.New(mpcerrors.BadPeer, fmt.Sprintf("unknown peer %s", frame.FromId))
	}

	msg := engine.Message{Payload: payload, FromIndex: fromIndex}
	if frame.ToId != wire.BroadcastTo {
		toIndex, ok := s.group.IndexOf(wire.PartyId(frame.ToId))
		if !ok {
			return engine.Message{}, mpcerrors.New(mpcerrors.BadPeer, fmt.Sprintf("unknown peer %s", frame.ToId))
		}
		msg.ToIndex = &toIndex
	}
	return msg, nil
}

// FromEngine converts an engine.Message emitted for targetRound into an
// outbound wire frame, stamping the current timestamp.
func (s *Session) FromEngine(msg engine.Message, targetRound int) (wire.ProtocolMessage, error) {
	toID := wire.BroadcastTo
	if msg.ToIndex != nil {
		id, ok := s.group.PartyAt(*msg.ToIndex)
		if !ok {
			return wire.ProtocolMessage{}, mpcerrors.New(mpcerrors.BadPeer, fmt.Sprintf("engine addressed unknown index %d", *msg.ToIndex))
		}
		toID = string(id)
	}

	return wire.ProtocolMessage{
		GroupId:   s.groupID,
		FromId:    s.ownID,
		ToId:      toID,
		Content:   base64.StdEncoding.EncodeToString(msg.Payload),
		Round:     targetRound,
		Timestamp: time.Now(),
	}, nil
}

// BroadcastFilter keeps every message except those originating from self;
// used by keygen/signing for round 1 and round 4 semantics.
func BroadcastFilter(ownID wire.PartyId, frame wire.ProtocolMessage) bool {
	return frame.FromId != ownID
}

// PointToPointFilter keeps only frames addressed to self or to the
// broadcast sentinel "0"; used by keygen/signing for round 2 and 3
// semantics. (Point-to-point rounds never use "0" in practice, but the
// base session does not reject it — that is the specialization's call.)
func PointToPointFilter(ownID wire.PartyId, frame wire.ProtocolMessage) bool {
	return strings.TrimSpace(frame.ToId) == string(ownID) || frame.ToId == wire.BroadcastTo
}

// addressedToSelf applies the round-appropriate delivery filter (spec.md
// §4.5/§4.6) before a frame is counted or buffered. The relay socket is
// per-group, not per-party (one shared channel for every member), so
// round 2/3 point-to-point frames addressed to other peers also arrive
// here and must be dropped rather than buffered as if meant for us.
func addressedToSelf(ownID wire.PartyId, frame wire.ProtocolMessage) bool {
	switch frame.Round {
	case wire.Round2, wire.Round3:
		return PointToPointFilter(ownID, frame)
	default:
		return BroadcastFilter(ownID, frame)
	}
}
