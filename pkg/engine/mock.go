// Copyright (c) 2026 The mpcparty Authors.
// Use of this source code is governed by the MIT license found in the
// LICENSE file at the root of this repository.

package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// MockKeygen is a deterministic stand-in for the real engine, used to drive
// the §8 end-to-end scenarios without real threshold cryptography. All
// honest parties in a group derive the same public key because it is a
// function of the shared group id, embedded into round 4's output, matching
// spec.md §8's "mock engine that embeds the public key in round 4's output".
type MockKeygen struct {
	n, t, ownIndex int
	groupID        []byte
	round          int
	priorBytes     []byte // set for rotation
}

// NewMockKeygen implements KeygenFactory.
func NewMockKeygen(n, t, ownIndex int, groupID []byte, seed []byte, distributed bool) (KeygenSession, error) {
	return &MockKeygen{n: n, t: t, ownIndex: ownIndex, groupID: groupID, round: 0}, nil
}

// NewMockRotation implements RotationFactory: identical mechanics to
// NewMockKeygen, but carries the prior keyshare bytes forward so the
// resulting public key can be checked against it by the caller.
func NewMockRotation(n, t, ownIndex int, groupID []byte, prior Keyshare, seed []byte, distributed bool) (KeygenSession, error) {
	return &MockKeygen{n: n, t: t, ownIndex: ownIndex, groupID: groupID, round: 0, priorBytes: prior.Bytes}, nil
}

func groupPublicKey(groupID []byte) string {
	sum := sha256.Sum256(append([]byte("mock-pubkey"), groupID...))
	return "02" + hex.EncodeToString(sum[:32])[:64]
}

func (m *MockKeygen) CreateFirstMessage() (Message, error) {
	m.round = 1
	return Message{
		Payload:   []byte(fmt.Sprintf("round1-from-%d", m.ownIndex)),
		FromIndex: m.ownIndex,
		ToIndex:   nil,
	}, nil
}

func (m *MockKeygen) HandleMessages(msgs []Message) ([]Message, error) {
	switch m.round {
	case 1:
		m.round = 2
		return m.pointToPoint("round2"), nil
	case 2:
		m.round = 3
		return m.pointToPoint("round3"), nil
	case 3:
		m.round = 4
		return []Message{{
			Payload:   []byte("round4-pubkey-" + groupPublicKey(m.groupID)),
			FromIndex: m.ownIndex,
			ToIndex:   nil,
		}}, nil
	case 4:
		m.round = 5
		return nil, nil
	default:
		return nil, fmt.Errorf("mock keygen: unexpected round %d", m.round)
	}
}

func (m *MockKeygen) pointToPoint(tag string) []Message {
	out := make([]Message, 0, m.n-1)
	for i := 0; i < m.n; i++ {
		if i == m.ownIndex {
			continue
		}
		to := i
		out = append(out, Message{
			Payload:   []byte(fmt.Sprintf("%s-from-%d-to-%d", tag, m.ownIndex, i)),
			FromIndex: m.ownIndex,
			ToIndex:   &to,
		})
	}
	return out
}

func (m *MockKeygen) GetKeyshare() (Keyshare, error) {
	participants := make([]int, m.n)
	for i := range participants {
		participants[i] = i
	}
	return Keyshare{
		Bytes:        []byte(fmt.Sprintf("keyshare-%d-%s", m.ownIndex, groupPublicKey(m.groupID))),
		PublicKey:    groupPublicKey(m.groupID),
		Participants: participants,
		Threshold:    m.t,
		PartyIndex:   m.ownIndex,
	}, nil
}

func (m *MockKeygen) Destroy() {}

// MockSign is a deterministic SignSession: the final (r, s) is a function of
// the message hash alone, so every honest party obtains the identical pair,
// matching spec.md §8's combine invariant.
type MockSign struct {
	ownIndex       int
	round          int
	messageHash    []byte
	participants   int
	derivationPath string
}

// NewMockSignFactory returns a SignFactory bound to n (participant count) and
// ownIndex, for use where the session needs peer counts at construction.
func NewMockSignFactory(n, ownIndex int) SignFactory {
	return func(keyshareBytes []byte, derivationPath string, extra []byte) (SignSession, error) {
		return &MockSign{ownIndex: ownIndex, participants: n, derivationPath: derivationPath}, nil
	}
}

func (m *MockSign) CreateFirstMessage(messageHash []byte) (Message, error) {
	m.messageHash = append([]byte(nil), messageHash...)
	m.round = 1
	return Message{
		Payload:   []byte(fmt.Sprintf("sign-round1-from-%d", m.ownIndex)),
		FromIndex: m.ownIndex,
		ToIndex:   nil,
	}, nil
}

func (m *MockSign) HandleMessages(msgs []Message) ([]Message, error) {
	switch m.round {
	case 1:
		m.round = 2
		return m.pointToPoint("sign-round2"), nil
	case 2:
		m.round = 3
		return m.pointToPoint("sign-round3"), nil
	case 3:
		m.round = 4
		return nil, nil
	default:
		return nil, fmt.Errorf("mock sign: unexpected round %d", m.round)
	}
}

func (m *MockSign) pointToPoint(tag string) []Message {
	out := make([]Message, 0, m.participants-1)
	for i := 0; i < m.participants; i++ {
		if i == m.ownIndex {
			continue
		}
		to := i
		out = append(out, Message{
			Payload:   []byte(fmt.Sprintf("%s-from-%d-to-%d", tag, m.ownIndex, i)),
			FromIndex: m.ownIndex,
			ToIndex:   &to,
		})
	}
	return out
}

func (m *MockSign) LastMessage(messageHash []byte) (Message, error) {
	return Message{
		Payload:   []byte(fmt.Sprintf("sign-partial-from-%d", m.ownIndex)),
		FromIndex: m.ownIndex,
		ToIndex:   nil,
	}, nil
}

func (m *MockSign) Combine(peerPartials []Message) ([]byte, []byte, error) {
	r := sha256.Sum256(append(append([]byte(nil), m.messageHash...), 'r'))
	s := sha256.Sum256(append(append([]byte(nil), m.messageHash...), 's'))
	return r[:], s[:], nil
}

func (m *MockSign) Destroy() {}
