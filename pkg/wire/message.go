package wire

import (
	"time"

	"github.com/mpcparty/core/pkg/mpcerrors"
)

// Round identifiers reserved by the protocol (spec.md §4.4).
const (
	RoundStart = 0
	Round1     = 1
	Round2     = 2
	Round3     = 3
	Round4     = 4
	RoundEnd   = 5
)

// Control frame contents exchanged on round 0 and round 5.
const (
	ContentStart    = "start"
	ContentStartAlt = "START"
	ContentDone     = "DONE"
)

// ProtocolMessage is the wire frame exchanged over the relay socket.
type ProtocolMessage struct {
	GroupId   GroupId   `json:"group_id"`
	FromId    PartyId   `json:"from_id"`
	ToId      string    `json:"to_id"`
	Content   string    `json:"content"`
	Round     int       `json:"round"`
	Timestamp time.Time `json:"timestamp"`
}

// IsBroadcast reports whether the frame is addressed to every peer.
func (m *ProtocolMessage) IsBroadcast() bool {
	return m.ToId == BroadcastTo
}

// IsStart reports whether m is the round-0 server sentinel.
func (m *ProtocolMessage) IsStart() bool {
	return m.Round == RoundStart && m.FromId == ServerId &&
		(m.Content == ContentStart || m.Content == ContentStartAlt)
}

// IsDone reports whether m is the round-5 local-completion frame sent to the
// server.
func (m *ProtocolMessage) IsDone() bool {
	return m.Round == RoundEnd && m.ToId == string(ServerId) && m.Content == ContentDone
}

// EndStatus returns the status carried by an END:<status> server frame, and
// whether m is such a frame.
func (m *ProtocolMessage) EndStatus() (string, bool) {
	if m.Round != RoundEnd || m.FromId != ServerId {
		return "", false
	}
	const prefix = "END:"
	if len(m.Content) <= len(prefix) || m.Content[:len(prefix)] != prefix {
		return "", false
	}
	return m.Content[len(prefix):], true
}

// Validate checks that all required fields are present and well-typed,
// rejecting malformed inbound payloads per spec.md §4.3 framing rules.
func (m *ProtocolMessage) Validate() error {
	if m.GroupId == "" {
		return mpcerrors.New(mpcerrors.Config, "protocol message missing group_id")
	}
	if m.FromId == "" {
		return mpcerrors.New(mpcerrors.Config, "protocol message missing from_id")
	}
	if m.ToId == "" {
		return mpcerrors.New(mpcerrors.Config, "protocol message missing to_id")
	}
	if m.Round < 0 {
		return mpcerrors.New(mpcerrors.Config, "protocol message has negative round")
	}
	return nil
}

// NewEndFrame builds the server's terminal END:<status> frame. Exposed for
// tests that drive a session against a scripted server.
func NewEndFrame(groupID GroupId, status string) ProtocolMessage {
	return ProtocolMessage{
		GroupId:   groupID,
		FromId:    ServerId,
		ToId:      BroadcastTo,
		Content:   "END:" + status,
		Round:     RoundEnd,
		Timestamp: time.Now(),
	}
}

// NewStartFrame builds the server's round-0 sentinel. Exposed for tests.
func NewStartFrame(groupID GroupId) ProtocolMessage {
	return ProtocolMessage{
		GroupId:   groupID,
		FromId:    ServerId,
		ToId:      BroadcastTo,
		Content:   ContentStart,
		Round:     RoundStart,
		Timestamp: time.Now(),
	}
}
