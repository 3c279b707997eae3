package olm

// MessageType discriminates pre-key messages, which carry handshake
// material, from normal ratchet messages.
type MessageType int

const (
	// MessagePreKey is the first kind of message on a new session. It
	// carries enough material for the recipient to derive the session
	// without prior state.
	MessagePreKey MessageType = iota
	// MessageNormal is a plain ratchet message on an established session.
	MessageNormal
)

// Message is the wire form of a one-to-one encrypted message. The pre-key
// fields are only set when Type is MessagePreKey.
type Message struct {
	Type        MessageType `json:"type"`
	IdentityKey string      `json:"identity_key,omitempty"`
	BaseKey     string      `json:"base_key,omitempty"`
	OneTimeKey  string      `json:"one_time_key,omitempty"`
	Header      Header      `json:"header"`
	Ciphertext  []byte      `json:"ciphertext"`
}
