// Copyright (c) 2026 The mpcparty Authors.
// Use of this source code is governed by the MIT license found in the
// LICENSE file at the root of this repository.

// Package transport implements the full-duplex message channel to the relay
// socket (C3, spec.md §4.3): connect with a bearer token, framed JSON
// ProtocolMessage send/receive, per-message AES-256-GCM content encryption,
// loop suppression, and a bounded outgoing queue for the not-yet-connected
// case.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mpcparty/core/internal/logger"
	"github.com/mpcparty/core/pkg/cryptoutil"
	"github.com/mpcparty/core/pkg/mpcerrors"
	"github.com/mpcparty/core/pkg/wire"
)

// ConnectTimeout is the socket-open deadline from spec.md §4.3.
const ConnectTimeout = 10 * time.Second

// QueueCapacity is the bounded ring's capacity; the oldest enqueued message
// is dropped on overflow.
const QueueCapacity = 100

// flushDelay is the permitted inter-message pause between queue flushes,
// to avoid head-of-line bursts (spec.md §4.3 ordering).
const flushDelay = 10 * time.Millisecond

// Handler is invoked for every inbound frame that parses, validates, is not
// from this party, and (when encrypted) decrypts. Duplicates are not
// filtered here.
type Handler func(wire.ProtocolMessage)

// Transport is a single relay-socket connection, exclusively owned by one
// coordinator instance (spec.md §5).
type Transport struct {
	baseURL string
	log     logger.Logger

	mu       sync.Mutex
	conn     *websocket.Conn
	connWG   sync.WaitGroup
	closed   bool
	protocol string
	groupID  wire.GroupId

	connMu    sync.RWMutex
	connected bool

	keyMu sync.RWMutex
	key   []byte // installed AES-256 key, nil until set_encryption_key

	ownMu   sync.RWMutex
	ownID   wire.PartyId
	hasOwn  bool
	handler Handler

	queueMu sync.Mutex
	queue   []wire.ProtocolMessage

	// cryptoMu serializes encrypt/decrypt calls: they are not re-entrant
	// per spec.md §4.3.
	cryptoMu sync.Mutex
}

// New constructs a Transport pointed at baseURL (e.g. "wss://relay.example.com").
func New(baseURL string, log logger.Logger) *Transport {
	if log == nil {
		log = logger.GetDefaultLogger()
	}
	return &Transport{baseURL: baseURL, log: log}
}

// SetEncryptionKey installs the session AES key. Must be called before any
// peer-to-peer message is sent or received.
func (t *Transport) SetEncryptionKey(key []byte) error {
	imported, err := cryptoutil.ImportKey(key)
	if err != nil {
		return err
	}
	t.keyMu.Lock()
	t.key = imported
	t.keyMu.Unlock()
	return nil
}

// SetOwnPartyId records this party's id, used for loop suppression.
func (t *Transport) SetOwnPartyId(id wire.PartyId) {
	t.ownMu.Lock()
	t.ownID = id
	t.hasOwn = true
	t.ownMu.Unlock()
}

// SetHandler installs the callback invoked for each validated inbound frame.
func (t *Transport) SetHandler(h Handler) {
	t.ownMu.Lock()
	t.handler = h
	t.ownMu.Unlock()
}

// IsConnected reports whether the socket is currently open.
func (t *Transport) IsConnected() bool {
	t.connMu.RLock()
	defer t.connMu.RUnlock()
	return t.connected
}

func (t *Transport) setConnected(v bool) {
	t.connMu.Lock()
	t.connected = v
	t.connMu.Unlock()
}

// markDisconnected clears the stored conn and the connected flag together,
// so a dead socket (read or write failure) is indistinguishable from never
// having connected: Connect's nil check is what decides whether to re-dial.
func (t *Transport) markDisconnected() {
	t.mu.Lock()
	t.conn = nil
	t.mu.Unlock()
	t.setConnected(false)
}

// Connect opens a socket to {base}/ws/{group_id}/{protocol}?token={token}. A
// second connect while already open is a no-op.
func (t *Transport) Connect(ctx context.Context, groupID wire.GroupId, protocol string, bearerToken string) error {
	t.mu.Lock()
	if t.conn != nil {
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()

	dialer := &websocket.Dialer{HandshakeTimeout: ConnectTimeout}
	dialCtx, cancel := context.WithTimeout(ctx, ConnectTimeout)
	defer cancel()

	target := fmt.Sprintf("%s/ws/%s/%s?token=%s", t.baseURL, groupID, protocol, url.QueryEscape(bearerToken))

	conn, _, err := dialer.DialContext(dialCtx, target, nil)
	if err != nil {
		if dialCtx.Err() != nil {
			return mpcerrors.Wrap(mpcerrors.ConnectTimeout, "relay socket connect timed out", err)
		}
		return mpcerrors.Wrap(mpcerrors.Network, "relay socket dial failed", err)
	}

	t.mu.Lock()
	t.conn = conn
	t.protocol = protocol
	t.groupID = groupID
	t.closed = false
	t.mu.Unlock()

	t.setConnected(true)
	t.connWG.Add(1)
	go t.readLoop()

	t.flushQueue()

	return nil
}

// Disconnect closes the socket with normal code 1000 and clears the
// outgoing queue. The handler installed by SetHandler is not cleared and
// receives frames again after a later Connect.
func (t *Transport) Disconnect() error {
	t.mu.Lock()
	conn := t.conn
	t.conn = nil
	t.closed = true
	t.mu.Unlock()

	t.setConnected(false)

	t.queueMu.Lock()
	t.queue = nil
	t.queueMu.Unlock()

	if conn == nil {
		return nil
	}

	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	err := conn.Close()
	t.connWG.Wait()
	return err
}

// shouldEncrypt applies the encryption policy from spec.md §4.3: encrypted
// iff a key is installed, from_id != ServerId, and the frame is not the
// literal DONE addressed to ServerId.
func shouldEncrypt(msg wire.ProtocolMessage, hasKey bool) bool {
	if !hasKey {
		return false
	}
	if msg.FromId == wire.ServerId {
		return false
	}
	if msg.IsDone() {
		return false
	}
	return true
}

// Send encrypts (per policy) and writes msg synchronously if the socket is
// open; otherwise it enqueues to the bounded ring.
func (t *Transport) Send(ctx context.Context, msg wire.ProtocolMessage) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()

	if conn == nil {
		t.enqueue(msg)
		return nil
	}

	return t.writeFrame(conn, msg)
}

func (t *Transport) writeFrame(conn *websocket.Conn, msg wire.ProtocolMessage) error {
	out := msg

	t.keyMu.RLock()
	key := t.key
	t.keyMu.RUnlock()

	if shouldEncrypt(msg, key != nil) {
		t.cryptoMu.Lock()
		ciphertext, err := cryptoutil.Encrypt(key, []byte(msg.Content))
		t.cryptoMu.Unlock()
		if err != nil {
			return err
		}
		out.Content = ciphertext
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		t.enqueue(msg)
		return nil
	}
	if err := t.conn.WriteJSON(out); err != nil {
		t.conn = nil
		t.setConnected(false)
		return mpcerrors.Wrap(mpcerrors.Network, "failed to write protocol message", err)
	}
	return nil
}

func (t *Transport) enqueue(msg wire.ProtocolMessage) {
	t.queueMu.Lock()
	defer t.queueMu.Unlock()
	if len(t.queue) >= QueueCapacity {
		t.log.Warn("outgoing queue full, dropping oldest message",
			logger.Int("capacity", QueueCapacity))
		t.queue = t.queue[1:]
	}
	t.queue = append(t.queue, msg)
}

// flushQueue drains the queue in enqueue order with a small inter-message
// delay, invoked after a successful Connect.
func (t *Transport) flushQueue() {
	t.queueMu.Lock()
	pending := t.queue
	t.queue = nil
	t.queueMu.Unlock()

	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return
	}

	for _, msg := range pending {
		if err := t.writeFrame(conn, msg); err != nil {
			t.log.Error("failed to flush queued message", logger.Error(err))
		}
		time.Sleep(flushDelay)
	}
}

func (t *Transport) readLoop() {
	defer t.connWG.Done()
	defer t.markDisconnected()

	for {
		t.mu.Lock()
		conn := t.conn
		t.mu.Unlock()
		if conn == nil {
			return
		}

		var raw json.RawMessage
		if err := conn.ReadJSON(&raw); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				t.log.Error("relay socket read error", logger.Error(err))
			}
			return
		}

		var msg wire.ProtocolMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			t.log.Debug("dropping malformed inbound frame", logger.Error(err))
			continue
		}
		if err := msg.Validate(); err != nil {
			t.log.Debug("dropping invalid inbound frame", logger.Error(err))
			continue
		}

		t.ownMu.RLock()
		ownID, hasOwn := t.ownID, t.hasOwn
		handler := t.handler
		t.ownMu.RUnlock()

		if hasOwn && msg.FromId == ownID {
			continue // loop suppression
		}

		t.keyMu.RLock()
		key := t.key
		t.keyMu.RUnlock()

		if shouldEncrypt(msg, key != nil) {
			t.cryptoMu.Lock()
			plaintext, err := cryptoutil.Decrypt(key, msg.Content)
			t.cryptoMu.Unlock()
			if err != nil {
				t.log.Debug("dropping frame with undecryptable content", logger.Error(err))
				continue
			}
			msg.Content = string(plaintext)
		}

		if handler != nil {
			handler(msg)
		}
	}
}
