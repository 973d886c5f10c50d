package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockKeygenSamePublicKeyAcrossParties(t *testing.T) {
	groupID := []byte("group-under-test")

	var keys []string
	for i := 0; i < 3; i++ {
		sess, err := NewMockKeygen(3, 2, i, groupID, nil, true)
		require.NoError(t, err)

		_, err = sess.CreateFirstMessage()
		require.NoError(t, err)

		for round := 1; round <= 4; round++ {
			_, err := sess.HandleMessages(nil)
			require.NoError(t, err)
		}

		ks, err := sess.GetKeyshare()
		require.NoError(t, err)
		keys = append(keys, ks.PublicKey)
	}

	assert.Equal(t, keys[0], keys[1])
	assert.Equal(t, keys[1], keys[2])
}

func TestMockSignIdenticalResultAcrossParties(t *testing.T) {
	hash := make([]byte, 32)
	for i := range hash {
		hash[i] = byte(i + 1)
	}

	factory := NewMockSignFactory(2, 0)
	a, err := factory(nil, "m", nil)
	require.NoError(t, err)
	_, err = a.CreateFirstMessage(hash)
	require.NoError(t, err)

	factory2 := NewMockSignFactory(2, 1)
	b, err := factory2(nil, "m", nil)
	require.NoError(t, err)
	_, err = b.CreateFirstMessage(hash)
	require.NoError(t, err)

	rA, sA, err := a.Combine(nil)
	require.NoError(t, err)
	rB, sB, err := b.Combine(nil)
	require.NoError(t, err)

	assert.Equal(t, rA, rB)
	assert.Equal(t, sA, sB)
	assert.Len(t, rA, 32)
	assert.Len(t, sA, 32)
}
