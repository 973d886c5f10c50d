// Package engine declares the black-box cryptographic engine contracts
// consumed by pkg/keygen and pkg/signing (spec.md §6.3, §9). The real
// engine is out of scope; this package only fixes the shape so session
// state machines can be built and tested against a mock.
package engine

// Message is the opaque payload the engine exchanges with the session, plus
// routing hints. ToIndex absent (nil) means broadcast.
type Message struct {
	Payload   []byte
	FromIndex int
	ToIndex   *int
}

// Keyshare is the engine's keygen/rotation output before the session wraps
// it into a wire.KeyShare record.
type Keyshare struct {
	Bytes        []byte
	PublicKey    string
	Participants []int
	Threshold    int
	PartyIndex   int
}

// KeygenSession is the black-box DKG/rotation engine handle (§6.3).
type KeygenSession interface {
	// CreateFirstMessage produces the round-1 output.
	CreateFirstMessage() (Message, error)
	// HandleMessages processes one round's peer inputs and returns the next
	// round's outputs (empty after the final round).
	HandleMessages(msgs []Message) ([]Message, error)
	// GetKeyshare returns the completed keyshare. Valid only after the
	// engine has processed round 4.
	GetKeyshare() (Keyshare, error)
	// Destroy releases the engine's internal state deterministically.
	Destroy()
}

// SignSession is the black-box DSG engine handle (§6.3).
type SignSession interface {
	// CreateFirstMessage starts signing over messageHash (32 bytes).
	CreateFirstMessage(messageHash []byte) (Message, error)
	// HandleMessages processes one round's peer inputs and returns the next
	// round's outputs.
	HandleMessages(msgs []Message) ([]Message, error)
	// LastMessage produces this party's round-4 partial signature output.
	LastMessage(messageHash []byte) (Message, error)
	// Combine merges peer partials (this party's own partial is held
	// internally) into the final (r, s) pair.
	Combine(peerPartials []Message) (r []byte, s []byte, error error)
	// Destroy releases the engine's internal state deterministically.
	Destroy()
}

// KeygenFactory constructs a KeygenSession. ownIndex is this party's 0-based
// index; seed is optional entropy for deterministic tests; distributed
// selects the distributed-keygen code path (always true per spec.md §4.5,
// parameterized here for future non-distributed variants).
type KeygenFactory func(n, t, ownIndex int, groupID []byte, seed []byte, distributed bool) (KeygenSession, error)

// RotationFactory constructs a KeygenSession bound to a prior keyshare, for
// key rotation (spec.md §4.5).
type RotationFactory func(n, t, ownIndex int, groupID []byte, prior Keyshare, seed []byte, distributed bool) (KeygenSession, error)

// SignFactory constructs a SignSession bound to a keyshare.
type SignFactory func(keyshareBytes []byte, derivationPath string, extra []byte) (SignSession, error)
