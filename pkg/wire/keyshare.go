package wire

import (
	"time"

	"github.com/mpcparty/core/pkg/mpcerrors"
)

// KeyShare is the per-party record produced by a successful keygen or
// rotation session (spec.md §3).
type KeyShare struct {
	Serialized   []byte    `json:"serialized"`
	PublicKey    string    `json:"public_key"` // hex
	Participants []PartyId `json:"participants"`
	Threshold    int       `json:"threshold"`
	PartyId      PartyId   `json:"party_id"`
	PartyIndex   int       `json:"party_index"`
	GroupId      GroupId   `json:"group_id"`
	TotalParties int       `json:"total_parties"`
	Timestamp    time.Time `json:"timestamp"`
	APIKey       string    `json:"api_key,omitempty"`
}

// Validate checks the KeyShare invariants from spec.md §3.
func (k *KeyShare) Validate() error {
	if k.PartyIndex >= k.TotalParties {
		return mpcerrors.New(mpcerrors.Config, "party_index must be less than total_parties")
	}
	if k.Threshold > k.TotalParties {
		return mpcerrors.New(mpcerrors.Config, "threshold must not exceed total_parties")
	}
	return nil
}
