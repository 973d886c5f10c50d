// Copyright (c) 2026 The mpcparty Authors.
// Use of this source code is governed by the MIT license found in the
// LICENSE file at the root of this repository.

package keystore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpcparty/core/pkg/mpcerrors"
	"github.com/mpcparty/core/pkg/wire"
)

// flakyStore wraps a MemoryStore whose first failCount Put calls report
// StorageUnavailable, simulating quota exhaustion so putWithRetry's
// scratch-eviction / full-purge recovery steps can be exercised.
type flakyStore struct {
	*MemoryStore
	failCount  int
	putCalls   int
	clearCalls int
}

func newFlakyStore(failCount int) *flakyStore {
	return &flakyStore{MemoryStore: NewMemoryStore(), failCount: failCount}
}

func (s *flakyStore) Put(key string, value []byte) error {
	s.putCalls++
	if s.putCalls <= s.failCount {
		return mpcerrors.New(mpcerrors.StorageUnavailable, "simulated quota exhaustion")
	}
	return s.MemoryStore.Put(key, value)
}

func (s *flakyStore) Clear() error {
	s.clearCalls++
	return s.MemoryStore.Clear()
}

func sampleKeyShare(groupID wire.GroupId, partyIndex int) wire.KeyShare {
	return wire.KeyShare{
		Serialized:   []byte("engine-bytes"),
		PublicKey:    "02deadbeef",
		Participants: []wire.PartyId{"p0", "p1", "p2"},
		Threshold:    2,
		PartyId:      "p0",
		PartyIndex:   partyIndex,
		GroupId:      groupID,
		TotalParties: 3,
		Timestamp:    time.Now(),
	}
}

func TestMemoryStoreSaveLoadRoundTrip(t *testing.T) {
	m := NewManager(NewMemoryStore(), nil)
	ks := sampleKeyShare("g1", 0)

	require.NoError(t, m.Save(ks, false))
	loaded, err := m.Load("g1", 0)
	require.NoError(t, err)
	assert.Equal(t, ks.PublicKey, loaded.PublicKey)
	assert.Equal(t, ks.Serialized, loaded.Serialized)
}

func TestLoadMissingKeyReturnsNotFound(t *testing.T) {
	m := NewManager(NewMemoryStore(), nil)
	_, err := m.Load("g1", 0)
	require.Error(t, err)
}

func TestRotationKeepsExactlyTwoGenerations(t *testing.T) {
	m := NewManager(NewMemoryStore(), nil)
	gen1 := sampleKeyShare("g1", 0)
	gen1.PublicKey = "gen1"
	require.NoError(t, m.Save(gen1, false))

	gen2 := sampleKeyShare("g1", 0)
	gen2.PublicKey = "gen2"
	require.NoError(t, m.Save(gen2, true))

	current, err := m.Load("g1", 0)
	require.NoError(t, err)
	assert.Equal(t, "gen2", current.PublicKey)

	previous, err := m.LoadPrevious("g1", 0)
	require.NoError(t, err)
	assert.Equal(t, "gen1", previous.PublicKey)

	gen3 := sampleKeyShare("g1", 0)
	gen3.PublicKey = "gen3"
	require.NoError(t, m.Save(gen3, true))

	previous, err = m.LoadPrevious("g1", 0)
	require.NoError(t, err)
	assert.Equal(t, "gen2", previous.PublicKey, "the oldest generation must be discarded on rotation")
}

func TestFileStoreRejectsPathTraversal(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	err = fs.Put("../escape", []byte("x"))
	require.Error(t, err)
}

func TestFileStorePersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	fs1, err := NewFileStore(dir)
	require.NoError(t, err)
	m1 := NewManager(fs1, nil)
	require.NoError(t, m1.Save(sampleKeyShare("g2", 1), false))

	fs2, err := NewFileStore(dir)
	require.NoError(t, err)
	m2 := NewManager(fs2, nil)
	loaded, err := m2.Load("g2", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.PartyIndex)
}

func TestFileStoreListKeys(t *testing.T) {
	fs, err := NewFileStore(filepath.Join(t.TempDir(), "ks"))
	require.NoError(t, err)
	m := NewManager(fs, nil)
	require.NoError(t, m.Save(sampleKeyShare("g3", 0), false))
	require.NoError(t, m.Save(sampleKeyShare("g4", 0), false))

	keys, err := m.List()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{Key("g3", 0), Key("g4", 0)}, keys)
}

func TestCipherRoundTripAndRejectsLowIterations(t *testing.T) {
	_, err := NewCipher("pass", []byte("salt"), 1000)
	require.Error(t, err)

	c, err := NewCipher("pass", []byte("salt"), MinIterations)
	require.NoError(t, err)

	ciphertext, err := c.Encrypt([]byte("secret"))
	require.NoError(t, err)
	plaintext, err := c.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "secret", string(plaintext))
}

func TestSaveRetriesSucceedAfterOneScratchEviction(t *testing.T) {
	store := newFlakyStore(1) // first Put fails, second (post-eviction) succeeds
	m := NewManager(store, nil)

	require.NoError(t, m.Save(sampleKeyShare("g6", 0), false))
	assert.Equal(t, 0, store.clearCalls, "a full purge must not be needed when scratch eviction alone recovers")

	loaded, err := m.Load("g6", 0)
	require.NoError(t, err)
	assert.Equal(t, "02deadbeef", loaded.PublicKey)
}

func TestSaveRetriesSucceedAfterFullScopePurge(t *testing.T) {
	store := newFlakyStore(2) // first two Puts fail, third (post-purge) succeeds
	m := NewManager(store, nil)

	require.NoError(t, m.Save(sampleKeyShare("g7", 0), false))
	assert.Equal(t, 1, store.clearCalls, "recovery must escalate to a full scope purge")

	loaded, err := m.Load("g7", 0)
	require.NoError(t, err)
	assert.Equal(t, "02deadbeef", loaded.PublicKey)
}

func TestSaveFailsWithStorageFullWhenBackendStaysExhausted(t *testing.T) {
	store := newFlakyStore(99) // every Put fails regardless of recovery attempts
	m := NewManager(store, nil)

	err := m.Save(sampleKeyShare("g8", 0), false)
	require.Error(t, err)
	assert.True(t, mpcerrors.Is(err, mpcerrors.StorageFull))
}

func TestEvictScratchRemovesOnlyScratchPrefixedKeys(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Put(scratchKeyPrefix+"tmp1", []byte("x")))
	require.NoError(t, store.Put(Key("g9", 0), []byte("keep-me")))

	m := NewManager(store, nil)
	require.NoError(t, m.evictScratch())

	keys, err := store.ListKeys()
	require.NoError(t, err)
	assert.Equal(t, []string{Key("g9", 0)}, keys)
}

func TestManagerEncryptsBlobsAtRestWhenCipherSet(t *testing.T) {
	c, err := NewCipher("pass", []byte("salt"), MinIterations)
	require.NoError(t, err)
	store := NewMemoryStore()
	m := NewManager(store, c)

	ks := sampleKeyShare("g5", 0)
	require.NoError(t, m.Save(ks, false))

	raw, err := store.Get(Key("g5", 0))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "engine-bytes", "blob must not contain plaintext when a cipher is installed")

	loaded, err := m.Load("g5", 0)
	require.NoError(t, err)
	assert.Equal(t, ks.Serialized, loaded.Serialized)
}
