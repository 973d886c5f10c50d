// Copyright (c) 2026 The mpcparty Authors.
// Use of this source code is governed by the MIT license found in the
// LICENSE file at the root of this repository.

package wire

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPartyIdValidate(t *testing.T) {
	t.Run("server sentinel is always valid", func(t *testing.T) {
		require.NoError(t, ServerId.Validate())
		assert.True(t, ServerId.IsServer())
	})

	t.Run("wrong length rejected", func(t *testing.T) {
		err := PartyId("0201").Validate()
		require.Error(t, err)
	})

	t.Run("bad prefix rejected", func(t *testing.T) {
		bad := "04" + string(ServerId)[:64]
		err := PartyId(bad).Validate()
		require.Error(t, err)
	})
}

func TestGroupIdValidate(t *testing.T) {
	good := GroupId("1111111111111111111111111111111111111111111111111111111111111111")
	require.NoError(t, good.Validate())

	bad := GroupId("short")
	require.Error(t, bad.Validate())
}

func TestDedupHashStableAndDistinguishing(t *testing.T) {
	a := DedupHash("02aa", "03bb", 1, "cGF5bG9hZA==")
	b := DedupHash("02aa", "03bb", 1, "cGF5bG9hZA==")
	c := DedupHash("02aa", "03bb", 2, "cGF5bG9hZA==")

	assert.Equal(t, a, b, "identical inputs must hash identically")
	assert.NotEqual(t, a, c, "differing round must change the hash")
}

func TestGroupInfoValidate(t *testing.T) {
	g := &GroupInfo{
		N: 3, T: 2,
		Members: []Member{
			{PartyId: "a", Index: 0},
			{PartyId: "b", Index: 1},
			{PartyId: "c", Index: 2},
		},
	}
	require.NoError(t, g.Validate())

	badThreshold := &GroupInfo{N: 3, T: 1}
	require.Error(t, badThreshold.Validate())

	misordered := &GroupInfo{
		N: 2, T: 2,
		Members: []Member{{PartyId: "a", Index: 1}, {PartyId: "b", Index: 0}},
	}
	require.Error(t, misordered.Validate())
}

func TestGroupInfoIndexOf(t *testing.T) {
	g := &GroupInfo{Members: []Member{{PartyId: "a", Index: 0}, {PartyId: "b", Index: 1}}}

	idx, ok := g.IndexOf("b")
	require.True(t, ok)
	assert.Equal(t, 1, idx)

	_, ok = g.IndexOf("z")
	assert.False(t, ok)
}

func TestGroupInfoSameParameters(t *testing.T) {
	g := &GroupInfo{N: 3, T: 2}
	assert.True(t, g.SameParameters(3, 2))
	assert.False(t, g.SameParameters(3, 3))
}

func TestProtocolMessageFrameClassification(t *testing.T) {
	start := NewStartFrame("g")
	assert.True(t, start.IsStart())

	end := NewEndFrame("g", "SUCCESS")
	status, ok := end.EndStatus()
	require.True(t, ok)
	assert.Equal(t, "SUCCESS", status)

	done := ProtocolMessage{Round: RoundEnd, ToId: string(ServerId), Content: ContentDone}
	assert.True(t, done.IsDone())

	broadcast := ProtocolMessage{ToId: BroadcastTo}
	assert.True(t, broadcast.IsBroadcast())
}

func TestProtocolMessageValidate(t *testing.T) {
	valid := ProtocolMessage{GroupId: "g", FromId: "f", ToId: "0", Round: 1}
	require.NoError(t, valid.Validate())

	missing := ProtocolMessage{FromId: "f", ToId: "0"}
	require.Error(t, missing.Validate())
}

func TestSessionTokenAge(t *testing.T) {
	now := time.Now()
	tok := &SessionToken{TimestampMs: now.Add(-3 * time.Minute).UnixMilli()}
	age := tok.Age(now)
	assert.Greater(t, age, BootstrapWindow)
	assert.Less(t, age, ParseWindow)
}

func TestKeyShareValidate(t *testing.T) {
	ks := &KeyShare{PartyIndex: 0, TotalParties: 3, Threshold: 2}
	require.NoError(t, ks.Validate())

	bad := &KeyShare{PartyIndex: 3, TotalParties: 3}
	require.Error(t, bad.Validate())

	badThreshold := &KeyShare{PartyIndex: 0, TotalParties: 2, Threshold: 3}
	require.Error(t, badThreshold.Validate())
}
