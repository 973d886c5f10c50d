// Copyright (c) 2026 The mpcparty Authors.
// Use of this source code is governed by the MIT license found in the
// LICENSE file at the root of this repository.

package keygen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpcparty/core/pkg/engine"
	"github.com/mpcparty/core/pkg/wire"
)

func threePartyGroup() wire.GroupInfo {
	return wire.GroupInfo{
		GroupId: "g1", N: 3, T: 2,
		Members: []wire.Member{
			{PartyId: "p0", Index: 0},
			{PartyId: "p1", Index: 1},
			{PartyId: "p2", Index: 2},
		},
	}
}

// driveToCompletion runs one party's session through START..END:SUCCESS by
// hand-delivering the other parties' frames, using the party's own engine
// output as a stand-in for what the relay would otherwise fan out.
func driveToCompletion(t *testing.T, s *Session, group wire.GroupInfo, self wire.PartyId) wire.KeyShare {
	t.Helper()
	var result wire.KeyShare
	s.SetCallbacks(func(r Result) { result = r.KeyShare }, func(reason string) {
		t.Fatalf("unexpected session error: %s", reason)
	})

	out, err := s.HandleInbound(wire.NewStartFrame("g1"))
	require.NoError(t, err)
	require.Len(t, out, 1)

	for round := wire.Round1; round <= wire.Round4; round++ {
		content := out[0].Content
		for _, m := range group.Members {
			if m.PartyId == self {
				continue
			}
			frame := wire.ProtocolMessage{
				GroupId: "g1", FromId: m.PartyId, ToId: "0", Round: round,
				Content: content,
			}
			out, err = s.HandleInbound(frame)
			require.NoError(t, err)
		}
	}

	done := out
	require.Len(t, done, 1)
	assert.Equal(t, wire.ContentDone, done[0].Content)

	_, err = s.HandleInbound(wire.NewEndFrame("g1", "SUCCESS"))
	require.NoError(t, err)
	return result
}

func TestKeygenProducesIdenticalPublicKeyAcrossParties(t *testing.T) {
	group := threePartyGroup()
	var shares []wire.KeyShare

	for i, m := range group.Members {
		factory := func(n, t, ownIndex int, groupID []byte, seed []byte, distributed bool) (engine.KeygenSession, error) {
			return engine.NewMockKeygen(n, t, i, groupID, seed, distributed)
		}
		s, err := New("g1", m.PartyId, group, factory, nil, nil)
		require.NoError(t, err)
		shares = append(shares, driveToCompletion(t, s, group, m.PartyId))
	}

	assert.Equal(t, shares[0].PublicKey, shares[1].PublicKey)
	assert.Equal(t, shares[1].PublicKey, shares[2].PublicKey)
	assert.True(t, shares[0].Validate() == nil)
}

func TestUnknownOwnPartyIdFails(t *testing.T) {
	group := threePartyGroup()
	factory := func(n, t, ownIndex int, groupID []byte, seed []byte, distributed bool) (engine.KeygenSession, error) {
		return engine.NewMockKeygen(n, t, ownIndex, groupID, seed, distributed)
	}
	_, err := New("g1", "not-a-member", group, factory, nil, nil)
	require.Error(t, err)
}

func TestRotationCarriesPriorKeyshareIntoFactory(t *testing.T) {
	group := threePartyGroup()
	prior := wire.KeyShare{Serialized: []byte("old"), PublicKey: "02deadbeef", PartyIndex: 0, Threshold: 2}

	var capturedPrior engine.Keyshare
	factory := func(n, t, ownIndex int, groupID []byte, prior engine.Keyshare, seed []byte, distributed bool) (engine.KeygenSession, error) {
		capturedPrior = prior
		return engine.NewMockRotation(n, t, ownIndex, groupID, prior, seed, distributed)
	}

	_, err := NewRotation("g1", "p0", group, factory, prior, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("old"), capturedPrior.Bytes)
	assert.Equal(t, "02deadbeef", capturedPrior.PublicKey)
}
