package domain

import (
	"olmstead/internal/protocol/megolm"
	"olmstead/internal/protocol/olm"
)

// OlmSession binds a ratchet session to the remote identity that holds the
// other end. Several sessions may legitimately share a SenderKey: either
// side can restart a session before the other has acknowledged it.
type OlmSession struct {
	SenderID     string       `json:"sender_id"`
	SenderDevice string       `json:"sender_device"`
	SenderKey    string       `json:"sender_key"`
	Session      *olm.Session `json:"session"`
}

// ID returns the underlying ratchet session's identifier.
func (s *OlmSession) ID() string { return s.Session.ID() }

// InboundGroupSession is a room ratchet session able to decrypt group
// messages from one sender, keyed in its store by (room, session) id.
type InboundGroupSession struct {
	RoomID            string                 `json:"room_id"`
	SenderKey         string                 `json:"sender_key"`
	SenderFingerprint string                 `json:"sender_fingerprint"`
	Session           *megolm.InboundSession `json:"session"`
}

// ID returns the group session identifier.
func (s *InboundGroupSession) ID() string { return s.Session.ID() }
