package olm

import (
	"crypto/sha256"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/crypto/hkdf"

	"olmstead/internal/crypto"
)

// ErrNotPreKey is returned when an inbound session is requested from a
// message that carries no handshake material.
var ErrNotPreKey = errors.New("message is not a pre-key message")

// handshake holds the three public keys of the triple Diffie–Hellman
// exchange. Both parties derive the session ID and associated data from it.
type handshake struct {
	IdentityKey crypto.Curve25519Public `json:"identity_key"`
	BaseKey     crypto.Curve25519Public `json:"base_key"`
	OneTimeKey  crypto.Curve25519Public `json:"one_time_key"`
}

func (h handshake) concat() []byte {
	out := make([]byte, 0, 96)
	out = append(out, h.IdentityKey.Slice()...)
	out = append(out, h.BaseKey.Slice()...)
	return append(out, h.OneTimeKey.Slice()...)
}

func (h handshake) sessionID() string {
	sum := sha256.Sum256(h.concat())
	return crypto.B64(sum[:])
}

// Session is a one-to-one ratchet session. The zero value is not usable;
// sessions come from NewOutboundSession, NewInboundSession or persistence.
type Session struct {
	SessID      string       `json:"session_id"`
	State       RatchetState `json:"state"`
	AD          []byte       `json:"ad"`
	Handshake   *handshake   `json:"handshake,omitempty"`
	Established bool         `json:"established"`
}

// ID returns the session identifier shared by both parties.
func (s *Session) ID() string { return s.SessID }

// NewOutboundSession establishes a session with a peer from its Curve25519
// identity key and a claimed one-time key, both unpadded base64. It runs the
// initiator side of the triple Diffie–Hellman handshake and seeds the
// sending chain.
func NewOutboundSession(acct *Account, peerIdentityKey, oneTimeKey string) (*Session, error) {
	peerIK, err := decodeKey(peerIdentityKey)
	if err != nil {
		return nil, errors.Wrap(err, "peer identity key")
	}
	otk, err := decodeKey(oneTimeKey)
	if err != nil {
		return nil, errors.Wrap(err, "one-time key")
	}

	basePriv, basePub, err := crypto.GenerateCurve25519()
	if err != nil {
		return nil, err
	}

	s1, err := crypto.DH(acct.IdentityPriv, otk)
	if err != nil {
		return nil, err
	}
	s2, err := crypto.DH(basePriv, peerIK)
	if err != nil {
		return nil, err
	}
	s3, err := crypto.DH(basePriv, otk)
	if err != nil {
		return nil, err
	}
	root := deriveSessionRoot(s1, s2, s3)

	st, err := initSender(root, peerIK)
	if err != nil {
		return nil, err
	}

	hs := handshake{IdentityKey: acct.IdentityPub, BaseKey: basePub, OneTimeKey: otk}
	return &Session{
		SessID:    hs.sessionID(),
		State:     st,
		AD:        hs.concat(),
		Handshake: &hs,
	}, nil
}

// NewInboundSession derives a session from a received pre-key message,
// consuming the referenced one-time key from the account pool.
func NewInboundSession(acct *Account, msg Message) (*Session, error) {
	if msg.Type != MessagePreKey || msg.IdentityKey == "" || msg.BaseKey == "" || msg.OneTimeKey == "" {
		return nil, ErrNotPreKey
	}
	peerIK, err := decodeKey(msg.IdentityKey)
	if err != nil {
		return nil, errors.Wrap(err, "sender identity key")
	}
	base, err := decodeKey(msg.BaseKey)
	if err != nil {
		return nil, errors.Wrap(err, "base key")
	}
	otkPub, err := decodeKey(msg.OneTimeKey)
	if err != nil {
		return nil, errors.Wrap(err, "one-time key")
	}

	otkPriv, ok := acct.takeOneTimeKey(otkPub)
	if !ok {
		return nil, ErrNoOneTimeKey
	}

	s1, err := crypto.DH(otkPriv, peerIK)
	if err != nil {
		return nil, err
	}
	s2, err := crypto.DH(acct.IdentityPriv, base)
	if err != nil {
		return nil, err
	}
	s3, err := crypto.DH(otkPriv, base)
	if err != nil {
		return nil, err
	}
	crypto.Wipe(otkPriv[:])
	root := deriveSessionRoot(s1, s2, s3)

	var senderRatchet crypto.Curve25519Public
	copy(senderRatchet[:], msg.Header.RatchetKey)
	st, err := initReceiver(root, acct.IdentityPriv, senderRatchet)
	if err != nil {
		return nil, err
	}

	hs := handshake{IdentityKey: peerIK, BaseKey: base, OneTimeKey: otkPub}
	return &Session{
		SessID: hs.sessionID(),
		State:  st,
		AD:     hs.concat(),
	}, nil
}

// PreKeySessionID computes the session ID a pre-key message would derive,
// letting callers match it against known sessions before consuming keys.
// The second return is false when msg is not a well-formed pre-key message.
func PreKeySessionID(msg Message) (string, bool) {
	if msg.Type != MessagePreKey {
		return "", false
	}
	ik, err1 := decodeKey(msg.IdentityKey)
	base, err2 := decodeKey(msg.BaseKey)
	otk, err3 := decodeKey(msg.OneTimeKey)
	if err1 != nil || err2 != nil || err3 != nil {
		return "", false
	}
	hs := handshake{IdentityKey: ik, BaseKey: base, OneTimeKey: otk}
	return hs.sessionID(), true
}

// Encrypt advances the sending chain and wraps plaintext into a wire
// message. Pre-key material keeps being attached until the peer has
// demonstrably derived the session by sending something we can decrypt.
func (s *Session) Encrypt(plaintext []byte) (Message, error) {
	h, ct, err := ratchetEncrypt(&s.State, s.AD, plaintext)
	if err != nil {
		return Message{}, err
	}
	msg := Message{Type: MessageNormal, Header: h, Ciphertext: ct}
	if !s.Established && s.Handshake != nil {
		msg.Type = MessagePreKey
		msg.IdentityKey = crypto.B64(s.Handshake.IdentityKey.Slice())
		msg.BaseKey = crypto.B64(s.Handshake.BaseKey.Slice())
		msg.OneTimeKey = crypto.B64(s.Handshake.OneTimeKey.Slice())
	}
	return msg, nil
}

// Decrypt opens a wire message and advances the receiving chain. A failure
// here leaves no partial state worth keeping: the underlying ratchet only
// commits its step when authentication succeeds.
func (s *Session) Decrypt(msg Message) ([]byte, error) {
	pt, err := ratchetDecrypt(&s.State, s.AD, msg.Header, msg.Ciphertext)
	if err != nil {
		return nil, err
	}
	s.Established = true
	return pt, nil
}

func deriveSessionRoot(s1, s2, s3 [32]byte) []byte {
	secret := make([]byte, 0, 96)
	secret = append(secret, s1[:]...)
	secret = append(secret, s2[:]...)
	secret = append(secret, s3[:]...)
	root := make([]byte, 32)
	_, _ = io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte("OLM_ROOT")), root)
	crypto.Wipe(secret)
	return root
}

func decodeKey(s string) (crypto.Curve25519Public, error) {
	var out crypto.Curve25519Public
	b, err := crypto.UnB64(s)
	if err != nil {
		return out, err
	}
	if len(b) != 32 {
		return out, errors.Errorf("key must be 32 bytes, got %d", len(b))
	}
	copy(out[:], b)
	return out, nil
}
