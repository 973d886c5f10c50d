package signing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpcparty/core/pkg/engine"
	"github.com/mpcparty/core/pkg/wire"
)

func twoPartyGroup() wire.GroupInfo {
	return wire.GroupInfo{
		GroupId: "g1", N: 2, T: 2,
		Members: []wire.Member{
			{PartyId: "p0", Index: 0},
			{PartyId: "p1", Index: 1},
		},
	}
}

func driveToCompletion(t *testing.T, s *Session, group wire.GroupInfo, self wire.PartyId) Signature {
	t.Helper()
	var result Signature
	s.SetCallbacks(func(sig Signature) { result = sig }, func(reason string) {
		t.Fatalf("unexpected session error: %s", reason)
	})

	out, err := s.HandleInbound(wire.NewStartFrame("g1"))
	require.NoError(t, err)
	require.Len(t, out, 1)

	for round := wire.Round1; round <= wire.Round4; round++ {
		for _, m := range group.Members {
			if m.PartyId == self {
				continue
			}
			frame := wire.ProtocolMessage{
				GroupId: "g1", FromId: m.PartyId, ToId: "0", Round: round,
				Content: out[0].Content,
			}
			out, err = s.HandleInbound(frame)
			require.NoError(t, err)
		}
	}

	require.Len(t, out, 1)
	assert.Equal(t, wire.ContentDone, out[0].Content)

	_, err = s.HandleInbound(wire.NewEndFrame("g1", "SUCCESS"))
	require.NoError(t, err)
	return result
}

func TestSigningProducesIdenticalSignatureAcrossParties(t *testing.T) {
	group := twoPartyGroup()
	hash := make([]byte, 32)
	for i := range hash {
		hash[i] = byte(i + 1)
	}

	var sigs []Signature
	for i, m := range group.Members {
		factory := engine.NewMockSignFactory(group.N, i)
		s, err := New("g1", m.PartyId, group, factory, []byte("keyshare-bytes"), "m", hash, nil)
		require.NoError(t, err)
		sigs = append(sigs, driveToCompletion(t, s, group, m.PartyId))
	}

	assert.Equal(t, sigs[0].R, sigs[1].R)
	assert.Equal(t, sigs[0].S, sigs[1].S)
	assert.Len(t, sigs[0].R, 32)
}

func TestRejectsWrongLengthMessageHash(t *testing.T) {
	group := twoPartyGroup()
	factory := engine.NewMockSignFactory(group.N, 0)
	_, err := New("g1", "p0", group, factory, nil, "m", []byte("too-short"), nil)
	require.Error(t, err)
}

func TestDefaultsDerivationPathToM(t *testing.T) {
	group := twoPartyGroup()
	hash := make([]byte, 32)

	var capturedPath string
	factory := func(keyshareBytes []byte, derivationPath string, extra []byte) (engine.SignSession, error) {
		capturedPath = derivationPath
		return engine.NewMockSignFactory(group.N, 0)(keyshareBytes, derivationPath, extra)
	}

	_, err := New("g1", "p0", group, factory, nil, "", hash, nil)
	require.NoError(t, err)
	assert.Equal(t, "m", capturedPath)
}
