// Package wire defines the data model exchanged with the relay: identifiers,
// group metadata, the ProtocolMessage frame, and the out-of-band session
// token (see SPEC_FULL.md / spec.md §3).
package wire

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/mpcparty/core/pkg/mpcerrors"
)

// PartyId is the 66-hex-character compressed-public-key-shaped handle a
// party presents to the relay.
type PartyId string

// GroupId is the 64-hex-character identifier of a group.
type GroupId string

// ServerId is the sentinel PartyId the relay uses as from_id on control
// frames: 68 hex zero characters.
const ServerId PartyId = "00000000000000000000000000000000000000000000000000000000000000000000"

// BroadcastTo is the literal to_id value meaning "every peer".
const BroadcastTo = "0"

// Validate checks that p is shaped like a compressed secp256k1 public key:
// 66 hex characters with a "02" or "03" prefix, and that it actually parses
// as a point on the curve. This rejects malformed party ids the relay would
// otherwise accept verbatim.
func (p PartyId) Validate() error {
	s := string(p)
	if p == ServerId {
		return nil
	}
	if len(s) != 66 {
		return mpcerrors.New(mpcerrors.Config, fmt.Sprintf("party_id must be 66 hex characters, got %d", len(s)))
	}
	if s[:2] != "02" && s[:2] != "03" {
		return mpcerrors.New(mpcerrors.Config, "party_id must have 02 or 03 prefix")
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return mpcerrors.Wrap(mpcerrors.Config, "party_id is not valid hex", err)
	}
	if _, err := secp256k1.ParsePubKey(raw); err != nil {
		return mpcerrors.Wrap(mpcerrors.Config, "party_id is not a valid compressed secp256k1 point", err)
	}
	return nil
}

// IsServer reports whether p is the relay's control-frame sentinel.
func (p PartyId) IsServer() bool {
	return p == ServerId
}

// Validate checks that g is shaped like a 64-hex-character group id.
func (g GroupId) Validate() error {
	s := string(g)
	if len(s) != 64 {
		return mpcerrors.New(mpcerrors.Config, fmt.Sprintf("group_id must be 64 hex characters, got %d", len(s)))
	}
	if _, err := hex.DecodeString(s); err != nil {
		return mpcerrors.Wrap(mpcerrors.Config, "group_id is not valid hex", err)
	}
	return nil
}

// DedupHash computes a collision-resistant hash over the fields that define
// a message's identity for replay/duplicate suppression (SHA-256 truncated
// to 64 bits, per spec.md §9's recommendation over a 32-bit hash).
func DedupHash(fromID, toID PartyId, round int, content string) uint64 {
	h := sha256.New()
	h.Write([]byte(fromID))
	h.Write([]byte{0})
	h.Write([]byte(toID))
	h.Write([]byte{0})
	fmt.Fprintf(h, "%d", round)
	h.Write([]byte{0})
	h.Write([]byte(content))
	sum := h.Sum(nil)

	var v uint64
	for i := 0; i < 8; i++ {
		v = v<<8 | uint64(sum[i])
	}
	return v
}
