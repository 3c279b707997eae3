package events

import "encoding/json"

// MegolmAlgorithm is the group-ratchet algorithm name in room-key shares.
const MegolmAlgorithm = "m.megolm.v1.aes-sha2"

// RoomKeyType is the payload type of a room-key share.
const RoomKeyType = "m.room_key"

// RoomKey is the decrypted payload that seeds an inbound group session: a
// room key shared through a one-to-one encrypted channel.
type RoomKey struct {
	Algorithm  string `json:"algorithm"`
	RoomID     string `json:"room_id"`
	SessionID  string `json:"session_id"`
	SessionKey string `json:"session_key"`
}

// ParseRoomKey inspects decrypted plaintext for a room-key share. The
// second return is false when the payload is something else or malformed;
// inspecting arbitrary plaintext must never fail.
func ParseRoomKey(plaintext []byte) (*RoomKey, bool) {
	var payload struct {
		Type    string  `json:"type"`
		Content RoomKey `json:"content"`
	}
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return nil, false
	}
	if payload.Type != RoomKeyType || payload.Content.Algorithm != MegolmAlgorithm {
		return nil, false
	}
	c := payload.Content
	if c.RoomID == "" || c.SessionID == "" || c.SessionKey == "" {
		return nil, false
	}
	return &c, true
}
