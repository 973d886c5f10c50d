// Copyright (c) 2026 The mpcparty Authors.
// Use of this source code is governed by the MIT license found in the
// LICENSE file at the root of this repository.

// Package coordinator implements the stateful façade (C9, spec.md §4.9)
// external callers interact with: a single relay client, a single
// transport, and at most one active session (keygen xor sign). It routes
// inbound frames to the live session, drains session-emitted outbound
// frames through the transport in order, and persists completed keyshares.
package coordinator

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mpcparty/core/internal/logger"
	"github.com/mpcparty/core/pkg/engine"
	"github.com/mpcparty/core/pkg/keygen"
	"github.com/mpcparty/core/pkg/keystore"
	"github.com/mpcparty/core/pkg/mpcerrors"
	"github.com/mpcparty/core/pkg/relay"
	"github.com/mpcparty/core/pkg/signing"
	"github.com/mpcparty/core/pkg/transport"
	"github.com/mpcparty/core/pkg/wire"
)

// yieldDelay is the small inter-message pause the outgoing drain takes
// between transport.Send calls (spec.md §4.9, §5).
const yieldDelay = 5 * time.Millisecond

type activeKind int

const (
	activeNone activeKind = iota
	activeKeygen
	activeSign
)

func (k activeKind) String() string {
	switch k {
	case activeKeygen:
		return "keygen"
	case activeSign:
		return "sign"
	default:
		return "idle"
	}
}

// Config carries everything a Coordinator needs to construct its relay
// client, transport, and engine factories.
type Config struct {
	RelayBaseURL     string
	TransportBaseURL string
	Log              logger.Logger

	KeygenFactory   engine.KeygenFactory
	RotationFactory engine.RotationFactory
	SignFactory     engine.SignFactory

	// Store is optional: when set, a successful keygen/rotation persists its
	// keyshare automatically.
	Store *keystore.Manager
}

// Coordinator is the single entity external callers interact with. One
// instance exclusively owns one transport and at most one active session;
// multiple instances may run in the same process provided each owns its
// own transport (spec.md §5).
type Coordinator struct {
	log logger.Logger

	relayClient *relay.Client
	tr          *transport.Transport

	keygenFactory   engine.KeygenFactory
	rotationFactory engine.RotationFactory
	signFactory     engine.SignFactory
	store           *keystore.Manager

	mu          sync.Mutex
	ownID       wire.PartyId
	hasOwnID    bool
	active      activeKind
	wasRotation bool
	groupID     wire.GroupId
	group       wire.GroupInfo
	protocol    string
	keygenS     *keygen.Session
	signS       *signing.Session

	onKeygenDone func(keygen.Result)
	onKeygenErr  func(error)
	onSignDone   func(signing.Signature)
	onSignErr    func(error)

	outMu sync.Mutex
	outQ  []wire.ProtocolMessage
	sent  map[uint64]bool
	wake  chan struct{}

	drainMu   sync.Mutex
	eg        *errgroup.Group
	drainStop context.CancelFunc
}

// New constructs a Coordinator from cfg. The transport's inbound handler
// is wired immediately; no network I/O happens until Register/Connect.
func New(cfg Config) *Coordinator {
	if cfg.Log == nil {
		cfg.Log = logger.GetDefaultLogger()
	}
	c := &Coordinator{
		log:             cfg.Log,
		relayClient:     relay.New(cfg.RelayBaseURL, cfg.Log),
		tr:              transport.New(cfg.TransportBaseURL, cfg.Log),
		keygenFactory:   cfg.KeygenFactory,
		rotationFactory: cfg.RotationFactory,
		signFactory:     cfg.SignFactory,
		store:           cfg.Store,
		sent:            make(map[uint64]bool),
		wake:            make(chan struct{}, 1),
	}
	c.tr.SetHandler(c.onInboundFrame)
	return c
}

// SetKeygenHandlers installs the callbacks fired when a keygen or rotation
// session completes or ends in error. Each fires at most once per session.
func (c *Coordinator) SetKeygenHandlers(onComplete func(keygen.Result), onError func(error)) {
	c.mu.Lock()
	c.onKeygenDone = onComplete
	c.onKeygenErr = onError
	c.mu.Unlock()
}

// SetSigningHandlers installs the callbacks fired when a signing session
// completes or ends in error.
func (c *Coordinator) SetSigningHandlers(onComplete func(signing.Signature), onError func(error)) {
	c.mu.Lock()
	c.onSignDone = onComplete
	c.onSignErr = onError
	c.mu.Unlock()
}

// SetSignFactory overrides the sign engine factory installed at
// construction. Some factories (e.g. a mock bound to a fixed peer count)
// depend on the group's own-index, which is only known once GroupInfo has
// been fetched; callers rebuild the factory after JoinGroup/CreateGroup and
// install it here before StartSigning.
func (c *Coordinator) SetSignFactory(f engine.SignFactory) {
	c.mu.Lock()
	c.signFactory = f
	c.mu.Unlock()
}

// State reports the current session-level state: "idle", "keygen", or
// "sign".
func (c *Coordinator) State() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active.String()
}

// Initialize lists the keyshare keys in the configured store and logs how
// many there are. It does not load any keyshare and initializes no engine
// runtime; engine sessions are created from the factories per session.
// With no store configured this is a no-op.
func (c *Coordinator) Initialize(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	keys, err := c.store.List()
	if err != nil {
		return mpcerrors.Wrap(mpcerrors.StorageUnavailable, "failed to list persisted keyshares", err)
	}
	c.log.Info("loaded persisted keyshare index", logger.Int("count", len(keys)))
	return nil
}

// Register calls C2's register endpoint, stores the returned bearer token
// and party id, and installs the party id into the transport for loop
// suppression.
func (c *Coordinator) Register(ctx context.Context, ownID wire.PartyId) (wire.PartyId, error) {
	id, err := c.relayClient.Register(ctx, ownID)
	if err != nil {
		return "", err
	}
	c.mu.Lock()
	c.ownID = id
	c.hasOwnID = true
	c.mu.Unlock()
	c.tr.SetOwnPartyId(id)
	return id, nil
}

// CreateGroup calls C2's group/create endpoint.
func (c *Coordinator) CreateGroup(ctx context.Context, t, n, timeoutMinutes int) (wire.GroupInfo, error) {
	return c.relayClient.CreateGroup(ctx, t, n, timeoutMinutes)
}

// JoinGroup calls C2's group/join endpoint and returns the freshly fetched
// GroupInfo.
func (c *Coordinator) JoinGroup(ctx context.Context, groupID wire.GroupId) (wire.GroupInfo, error) {
	if err := c.relayClient.JoinGroup(ctx, groupID); err != nil {
		return wire.GroupInfo{}, err
	}
	return c.relayClient.GroupInfo(ctx, groupID)
}

func (c *Coordinator) requireOwnID() (wire.PartyId, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.hasOwnID {
		return "", mpcerrors.New(mpcerrors.Config, "coordinator has no registered party id; call Register first")
	}
	return c.ownID, nil
}

// beginSession claims the active slot or fails with Busy, resetting the
// coordinator-local dedup caches and outgoing queue for the new session.
func (c *Coordinator) beginSession(kind activeKind, groupID wire.GroupId, group wire.GroupInfo, rotate bool) error {
	c.mu.Lock()
	if c.active != activeNone {
		c.mu.Unlock()
		return mpcerrors.New(mpcerrors.Busy, "a session is already active")
	}
	c.active = kind
	c.wasRotation = rotate
	c.groupID = groupID
	c.group = group
	c.mu.Unlock()

	c.outMu.Lock()
	c.outQ = nil
	c.sent = make(map[uint64]bool)
	c.outMu.Unlock()
	return nil
}

func (c *Coordinator) abortSession() {
	c.mu.Lock()
	if c.keygenS != nil {
		c.keygenS.Destroy()
		c.keygenS = nil
	}
	if c.signS != nil {
		c.signS.Destroy()
		c.signS = nil
	}
	c.active = activeNone
	c.protocol = ""
	c.mu.Unlock()
}

// StartKeygen validates no session is active, creates a fresh distributed
// keygen session, installs the session's AES key into the transport, and
// connects with protocol tag "keygen" (spec.md §4.9, §4.5).
func (c *Coordinator) StartKeygen(ctx context.Context, groupID wire.GroupId, aesKey []byte, seed []byte) error {
	ownID, err := c.requireOwnID()
	if err != nil {
		return err
	}
	group, err := c.relayClient.GroupInfo(ctx, groupID)
	if err != nil {
		return err
	}
	if err := c.beginSession(activeKeygen, groupID, group, false); err != nil {
		return err
	}

	session, err := keygen.New(groupID, ownID, group, c.keygenFactory, seed, c.log)
	if err != nil {
		c.abortSession()
		return err
	}
	session.SetCallbacks(
		func(res keygen.Result) { c.handleKeygenComplete(res, false) },
		func(reason string) { c.handleSessionError(activeKeygen, reason) },
	)

	return c.finishStarting(ctx, groupID, "keygen", aesKey, func() {
		c.mu.Lock()
		c.keygenS = session
		c.mu.Unlock()
	})
}

// StartKeyRotation is like StartKeygen, but the engine is bound to prior's
// serialized bytes so the resulting public key can be checked against it
// (spec.md §4.5, §4.9).
func (c *Coordinator) StartKeyRotation(ctx context.Context, groupID wire.GroupId, prior wire.KeyShare, aesKey []byte, seed []byte) error {
	ownID, err := c.requireOwnID()
	if err != nil {
		return err
	}
	group, err := c.relayClient.GroupInfo(ctx, groupID)
	if err != nil {
		return err
	}
	if err := c.beginSession(activeKeygen, groupID, group, true); err != nil {
		return err
	}

	session, err := keygen.NewRotation(groupID, ownID, group, c.rotationFactory, prior, seed, c.log)
	if err != nil {
		c.abortSession()
		return err
	}
	session.SetCallbacks(
		func(res keygen.Result) { c.handleKeygenComplete(res, true) },
		func(reason string) { c.handleSessionError(activeKeygen, reason) },
	)

	return c.finishStarting(ctx, groupID, "keygen", aesKey, func() {
		c.mu.Lock()
		c.keygenS = session
		c.mu.Unlock()
	})
}

// StartSigning asserts |messageHash| == 32, destroys any lingering keygen
// session, creates a signing session bound to keyshare, and connects with
// protocol tag "sign" (spec.md §4.6, §4.9). Unlike start_keygen/
// start_rotation, start_signing is only Busy against another *signing*
// session: an idle-but-unconsumed keygen session does not block it, it is
// simply torn down first.
func (c *Coordinator) StartSigning(ctx context.Context, groupID wire.GroupId, messageHash []byte, keyshare wire.KeyShare, derivationPath string, aesKey []byte) error {
	if len(messageHash) != 32 {
		return mpcerrors.New(mpcerrors.BadHash, "message_hash must be exactly 32 bytes")
	}
	ownID, err := c.requireOwnID()
	if err != nil {
		return err
	}
	group, err := c.relayClient.GroupInfo(ctx, groupID)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.active == activeSign {
		c.mu.Unlock()
		return mpcerrors.New(mpcerrors.Busy, "a signing session is already active")
	}
	if c.keygenS != nil {
		c.keygenS.Destroy()
		c.keygenS = nil
	}
	c.active = activeSign
	c.groupID = groupID
	c.group = group
	c.mu.Unlock()

	c.outMu.Lock()
	c.outQ = nil
	c.sent = make(map[uint64]bool)
	c.outMu.Unlock()

	session, err := signing.New(groupID, ownID, group, c.signFactory, keyshare.Serialized, derivationPath, messageHash, c.log)
	if err != nil {
		c.abortSession()
		return err
	}
	session.SetCallbacks(
		func(sig signing.Signature) { c.handleSignComplete(sig) },
		func(reason string) { c.handleSessionError(activeSign, reason) },
	)

	return c.finishStarting(ctx, groupID, "sign", aesKey, func() {
		c.mu.Lock()
		c.signS = session
		c.mu.Unlock()
	})
}

// finishStarting installs the session (via install), sets the AES key,
// records the protocol tag, connects, and starts the outgoing drain. On
// any failure the session claimed by beginSession is released.
func (c *Coordinator) finishStarting(ctx context.Context, groupID wire.GroupId, protocol string, aesKey []byte, install func()) error {
	if err := c.tr.SetEncryptionKey(aesKey); err != nil {
		c.abortSession()
		return err
	}
	install()

	c.mu.Lock()
	c.protocol = protocol
	c.mu.Unlock()

	token, _ := c.relayClient.BearerToken()
	if err := c.tr.Connect(ctx, groupID, protocol, token); err != nil {
		c.abortSession()
		return err
	}
	c.startDrain()
	return nil
}

func (c *Coordinator) handleKeygenComplete(res keygen.Result, rotate bool) {
	if c.store != nil {
		if err := c.store.Save(res.KeyShare, rotate); err != nil {
			c.log.Error("failed to persist completed keyshare", logger.Error(err))
		}
	}
	c.mu.Lock()
	cb := c.onKeygenDone
	c.mu.Unlock()
	c.abortSession()
	if cb != nil {
		cb(res)
	}
}

func (c *Coordinator) handleSignComplete(sig signing.Signature) {
	c.mu.Lock()
	cb := c.onSignDone
	c.mu.Unlock()
	c.abortSession()
	if cb != nil {
		cb(sig)
	}
}

func (c *Coordinator) handleSessionError(kind activeKind, reason string) {
	c.mu.Lock()
	var cb func(error)
	if kind == activeKeygen {
		cb = c.onKeygenErr
	} else {
		cb = c.onSignErr
	}
	c.mu.Unlock()
	c.abortSession()
	if cb != nil {
		cb(mpcerrors.WithStatus(reason))
	}
}

// onInboundFrame is the transport.Handler wired at construction: it routes
// every inbound frame the transport delivers to the active session, which
// drops duplicates itself.
func (c *Coordinator) onInboundFrame(frame wire.ProtocolMessage) {
	if err := c.routeFrame(frame); err != nil {
		c.log.Debug("failed to route inbound frame", logger.Error(err))
	}
}

// HandleInbound is the public entry point: if the transport is
// disconnected while a session is active, it reconnects with the
// session's protocol tag, routes frame to the active session, and flushes
// the outgoing queue (spec.md §4.9).
func (c *Coordinator) HandleInbound(ctx context.Context, frame wire.ProtocolMessage) error {
	c.mu.Lock()
	active := c.active
	groupID := c.groupID
	protocol := c.protocol
	c.mu.Unlock()

	if active != activeNone && !c.tr.IsConnected() {
		token, _ := c.relayClient.BearerToken()
		if err := c.tr.Connect(ctx, groupID, protocol, token); err != nil {
			return err
		}
	}

	if err := c.routeFrame(frame); err != nil {
		return err
	}
	return c.drainOnce(ctx)
}

func (c *Coordinator) routeFrame(frame wire.ProtocolMessage) error {
	c.mu.Lock()
	active := c.active
	keygenS := c.keygenS
	signS := c.signS
	c.mu.Unlock()

	var out []wire.ProtocolMessage
	var err error
	switch active {
	case activeKeygen:
		if keygenS == nil {
			return nil
		}
		out, err = keygenS.HandleInbound(frame)
	case activeSign:
		if signS == nil {
			return nil
		}
		out, err = signS.HandleInbound(frame)
	default:
		return nil
	}
	if err != nil {
		return err
	}
	c.enqueueOutgoing(out)
	return nil
}

// enqueueOutgoing hashes each message's (from, to, round, content) with
// wire.DedupHash and
// enqueues the ones not already sent, then wakes the background drain
// (spec.md §4.9).
func (c *Coordinator) enqueueOutgoing(msgs []wire.ProtocolMessage) {
	if len(msgs) == 0 {
		return
	}
	c.outMu.Lock()
	for _, m := range msgs {
		h := wire.DedupHash(m.FromId, wire.PartyId(m.ToId), m.Round, m.Content)
		if c.sent[h] {
			continue
		}
		c.outQ = append(c.outQ, m)
	}
	c.outMu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *Coordinator) startDrain() {
	c.drainMu.Lock()
	defer c.drainMu.Unlock()
	if c.eg != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	eg, egCtx := errgroup.WithContext(ctx)
	c.drainStop = cancel
	c.eg = eg
	eg.Go(func() error {
		return c.drainLoop(egCtx)
	})
}

func (c *Coordinator) drainLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.wake:
			if err := c.drainOnce(ctx); err != nil {
				c.log.Error("outgoing drain failed", logger.Error(err))
			}
		}
	}
}

// drainOnce sends every currently queued message in enqueue order with a
// small inter-message yield, skipping anything the already-sent set marks
// as sent (guards against double-send across reprocessing).
func (c *Coordinator) drainOnce(ctx context.Context) error {
	for {
		c.outMu.Lock()
		if len(c.outQ) == 0 {
			c.outMu.Unlock()
			return nil
		}
		msg := c.outQ[0]
		c.outQ = c.outQ[1:]

		h := wire.DedupHash(msg.FromId, wire.PartyId(msg.ToId), msg.Round, msg.Content)
		if c.sent[h] {
			c.outMu.Unlock()
			continue
		}
		c.sent[h] = true
		c.outMu.Unlock()

		if err := c.tr.Send(ctx, msg); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(yieldDelay):
		}
	}
}

// Disconnect tears down any active session, stops the outgoing drain, and
// closes the transport socket. Safe to call when idle.
func (c *Coordinator) Disconnect() error {
	c.drainMu.Lock()
	if c.drainStop != nil {
		c.drainStop()
	}
	eg := c.eg
	c.eg = nil
	c.drainMu.Unlock()
	if eg != nil {
		_ = eg.Wait()
	}

	c.abortSession()

	c.outMu.Lock()
	c.outQ = nil
	c.sent = make(map[uint64]bool)
	c.outMu.Unlock()

	return c.tr.Disconnect()
}
