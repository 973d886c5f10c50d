// Copyright (c) 2026 The mpcparty Authors.
// Use of this source code is governed by the MIT license found in the
// LICENSE file at the root of this repository.

// Package keystore persists keyshare records (C8, spec.md §4.8): an
// abstract blob-keyed store with memory, file, and Postgres backends, a
// two-generation rotation backup policy, and an optional PBKDF2-derived
// at-rest encryption layer.
package keystore

import (
	"fmt"
	"strings"

	"github.com/mpcparty/core/pkg/mpcerrors"
	"github.com/mpcparty/core/pkg/wire"
)

// Store is the abstract blob-keyed backend every keystore backend
// implements (spec.md §6.4). Values are application-opaque.
type Store interface {
	Get(key string) ([]byte, error)
	Put(key string, value []byte) error
	Delete(key string) error
	ListKeys() ([]string, error)
	// Clear removes every entry the backend holds — the "full scope
	// purge" step of the quota-exhaustion retry policy (spec.md §4.8).
	Clear() error
	// Available reports whether the backend can currently accept writes.
	Available() bool
}

// scratchKeyPrefix marks transient entries a caller may stage alongside
// keyshares for eventual eviction under quota pressure (spec.md §4.8's
// "session scratch entries"). Nothing in this package writes one today,
// but Save's retry policy still performs the lighter eviction pass
// before resorting to a full purge.
const scratchKeyPrefix = "scratch_"

// Key builds the canonical keyshare_<group_id>_<party_index> key.
func Key(groupID wire.GroupId, partyIndex int) string {
	return fmt.Sprintf("keyshare_%s_%d", groupID, partyIndex)
}

// previousKey builds the one rotation-backup slot kept per (group, index).
func previousKey(groupID wire.GroupId, partyIndex int) string {
	return Key(groupID, partyIndex) + "_previous"
}

// ErrNotFound is returned by Get when the key is absent.
var ErrNotFound = mpcerrors.New(mpcerrors.StorageUnavailable, "keyshare not found")

// Manager wraps a Store with keyshare (de)serialization and the
// two-generation rotation backup policy.
type Manager struct {
	store  Store
	cipher *Cipher // nil disables at-rest encryption
}

// NewManager constructs a Manager over store. If cipher is non-nil, every
// blob is encrypted before Put and decrypted after Get.
func NewManager(store Store, cipher *Cipher) *Manager {
	return &Manager{store: store, cipher: cipher}
}

// Save persists ks under its canonical key. If rotate is true (key
// rotation completed), the prior current generation is demoted to the
// "_previous" slot first, and any older previous generation is discarded —
// the store never holds more than two generations per (group, index).
func (m *Manager) Save(ks wire.KeyShare, rotate bool) error {
	if err := ks.Validate(); err != nil {
		return err
	}

	key := Key(ks.GroupId, ks.PartyIndex)
	if rotate {
		if existing, err := m.store.Get(key); err == nil {
			if err := m.putWithRetry(previousKey(ks.GroupId, ks.PartyIndex), existing); err != nil {
				return err
			}
		}
	}

	data, err := marshalKeyShare(ks)
	if err != nil {
		return err
	}
	if m.cipher != nil {
		data, err = m.cipher.Encrypt(data)
		if err != nil {
			return err
		}
	}
	return m.putWithRetry(key, data)
}

// putWithRetry implements spec.md §4.8's quota-exhaustion policy: try,
// evict session scratch entries and try again, then perform a full scope
// purge and try a final time.
func (m *Manager) putWithRetry(key string, data []byte) error {
	lastErr := m.tryPut(key, data)
	if lastErr == nil {
		return nil
	}

	_ = m.evictScratch() // best-effort: a failed eviction still leaves the retry worth trying
	if err := m.tryPut(key, data); err == nil {
		return nil
	} else {
		lastErr = err
	}

	_ = m.store.Clear() // best-effort full scope purge, the last resort before StorageFull
	if err := m.tryPut(key, data); err == nil {
		return nil
	} else {
		lastErr = err
	}

	return mpcerrors.Wrap(mpcerrors.StorageFull, "keystore put failed after quota-exhaustion retries", lastErr)
}

func (m *Manager) tryPut(key string, data []byte) error {
	if !m.store.Available() {
		return mpcerrors.New(mpcerrors.StorageUnavailable, "keystore backend unavailable")
	}
	return m.store.Put(key, data)
}

// evictScratch deletes every scratchKeyPrefix-tagged entry, the lighter
// first-pass eviction before a full Clear.
func (m *Manager) evictScratch() error {
	keys, err := m.store.ListKeys()
	if err != nil {
		return err
	}
	var lastErr error
	for _, k := range keys {
		if strings.HasPrefix(k, scratchKeyPrefix) {
			if err := m.store.Delete(k); err != nil {
				lastErr = err
			}
		}
	}
	return lastErr
}

// Load fetches and decodes the current keyshare for (groupID, partyIndex).
func (m *Manager) Load(groupID wire.GroupId, partyIndex int) (wire.KeyShare, error) {
	return m.loadKey(Key(groupID, partyIndex))
}

// LoadPrevious fetches the rotation-backup generation, if present.
func (m *Manager) LoadPrevious(groupID wire.GroupId, partyIndex int) (wire.KeyShare, error) {
	return m.loadKey(previousKey(groupID, partyIndex))
}

func (m *Manager) loadKey(key string) (wire.KeyShare, error) {
	data, err := m.store.Get(key)
	if err != nil {
		return wire.KeyShare{}, err
	}
	if m.cipher != nil {
		data, err = m.cipher.Decrypt(data)
		if err != nil {
			return wire.KeyShare{}, err
		}
	}
	return unmarshalKeyShare(data)
}

// List returns every key the backend holds, including "_previous" rotation
// backups and any scratch entries.
func (m *Manager) List() ([]string, error) {
	return m.store.ListKeys()
}
