// Copyright (c) 2026 The mpcparty Authors.
// Use of this source code is governed by the MIT license found in the
// LICENSE file at the root of this repository.

package wire

import (
	"fmt"
	"time"

	"github.com/mpcparty/core/pkg/mpcerrors"
)

// Member is a single party's entry in a group's ordered member list.
type Member struct {
	PartyId PartyId `json:"party_id"`
	Index   int     `json:"index"`
}

// GroupInfo describes a group's membership and threshold parameters, as
// returned by the relay's group/info endpoint.
type GroupInfo struct {
	GroupId        GroupId   `json:"group_id"`
	N              int       `json:"n"`
	T              int       `json:"t"`
	TimeoutMinutes int       `json:"timeout_minutes"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	CreatedBy      PartyId   `json:"created_by"`
	Members        []Member  `json:"members"`
	Status         string    `json:"status"`
}

// Validate checks the group-level invariants from spec.md §3: 2 ≤ t ≤ n, and
// each member's index matches its position in Members.
func (g *GroupInfo) Validate() error {
	if g.T < 2 || g.T > g.N {
		return mpcerrors.New(mpcerrors.Config, fmt.Sprintf("threshold must satisfy 2 <= t <= n, got t=%d n=%d", g.T, g.N))
	}
	for i, m := range g.Members {
		if m.Index != i {
			return mpcerrors.New(mpcerrors.Config, fmt.Sprintf("member %s has index %d, expected %d", m.PartyId, m.Index, i))
		}
	}
	return nil
}

// IndexOf returns the 0-based index of id within the group's member list.
// This is the single call site spec.md §9 flags as trusting relay ordering.
func (g *GroupInfo) IndexOf(id PartyId) (int, bool) {
	for _, m := range g.Members {
		if m.PartyId == id {
			return m.Index, true
		}
	}
	return 0, false
}

// PartyAt returns the PartyId at the given index, if present.
func (g *GroupInfo) PartyAt(index int) (PartyId, bool) {
	for _, m := range g.Members {
		if m.Index == index {
			return m.PartyId, true
		}
	}
	return "", false
}

// SameParameters reports whether two groups agree on {n, t}, used to detect
// GroupMismatch between a session token and a freshly fetched GroupInfo.
func (g *GroupInfo) SameParameters(n, t int) bool {
	return g.N == n && g.T == t
}
