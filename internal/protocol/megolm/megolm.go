package megolm

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"olmstead/internal/crypto"
)

const (
	sessionKeyVersion = 1
	chainKeySize      = 32
	exportLen         = 1 + 4 + chainKeySize + 32 + 64
)

var (
	// ErrBadSessionKey is returned when an exported session key fails to
	// parse or its embedded signature does not verify.
	ErrBadSessionKey = errors.New("malformed or forged group session key")
	// ErrUnknownIndex is returned when a message predates the ratchet
	// state this inbound session was imported at.
	ErrUnknownIndex = errors.New("message index below first known ratchet index")
	// ErrBadSignature is returned when a group message fails signature
	// verification against the session's signing key.
	ErrBadSignature = errors.New("group message signature verification failed")
)

// OutboundSession is the sender side of a group ratchet.
type OutboundSession struct {
	SigningPriv crypto.Ed25519Private `json:"signing_priv"`
	SigningPub  crypto.Ed25519Public  `json:"signing_pub"`
	ChainKey    [chainKeySize]byte    `json:"chain_key"`
	Index       uint32                `json:"index"`
}

// NewOutboundSession creates a group session with a random chain seed and a
// fresh signing key.
func NewOutboundSession() (*OutboundSession, error) {
	sigPriv, sigPub, err := crypto.GenerateEd25519()
	if err != nil {
		return nil, errors.Wrap(err, "generating group signing key")
	}
	s := &OutboundSession{SigningPriv: sigPriv, SigningPub: sigPub}
	if _, err := rand.Read(s.ChainKey[:]); err != nil {
		return nil, err
	}
	return s, nil
}

// ID returns the session identifier: the base64 public signing key.
func (s *OutboundSession) ID() string { return crypto.B64(s.SigningPub.Slice()) }

// MessageIndex is the index the next encrypted message will carry.
func (s *OutboundSession) MessageIndex() uint32 { return s.Index }

// SessionKey exports the ratchet at the current index, signed so importers
// can tie the chain to the session's signing key.
func (s *OutboundSession) SessionKey() string {
	out := make([]byte, 0, exportLen)
	out = append(out, sessionKeyVersion)
	var idx [4]byte
	binary.BigEndian.PutUint32(idx[:], s.Index)
	out = append(out, idx[:]...)
	out = append(out, s.ChainKey[:]...)
	out = append(out, s.SigningPub.Slice()...)
	sig := crypto.Sign(s.SigningPriv, out)
	return crypto.B64(append(out, sig...))
}

// Encrypt seals plaintext at the current index, signs the result and
// advances the chain. Each index is used at most once.
func (s *OutboundSession) Encrypt(plaintext []byte) (string, error) {
	mk := messageKey(s.ChainKey)
	ct, err := sealAt(mk, s.Index, s.SigningPub, plaintext)
	crypto.Wipe(mk)
	if err != nil {
		return "", err
	}
	env := envelope{Index: s.Index, Ciphertext: ct}
	env.Signature = crypto.Sign(s.SigningPriv, env.signedBytes())

	wire, err := json.Marshal(env)
	if err != nil {
		return "", err
	}
	s.ChainKey = advance(s.ChainKey)
	s.Index++
	return crypto.B64(wire), nil
}

// InboundSession is the receiving side, importable from an exported session
// key. It retains the earliest known chain state so messages from FirstIndex
// onward stay decryptable in any order.
type InboundSession struct {
	SigningPub crypto.Ed25519Public `json:"signing_pub"`
	ChainKey   [chainKeySize]byte   `json:"chain_key"`
	FirstIndex uint32               `json:"first_index"`
}

// NewInboundSession imports an exported session key, verifying its
// signature before trusting any of it.
func NewInboundSession(sessionKey string) (*InboundSession, error) {
	raw, err := crypto.UnB64(sessionKey)
	if err != nil || len(raw) != exportLen || raw[0] != sessionKeyVersion {
		return nil, ErrBadSessionKey
	}
	body, sig := raw[:exportLen-64], raw[exportLen-64:]

	s := &InboundSession{FirstIndex: binary.BigEndian.Uint32(raw[1:5])}
	copy(s.ChainKey[:], raw[5:5+chainKeySize])
	copy(s.SigningPub[:], raw[5+chainKeySize:5+chainKeySize+32])

	if !crypto.Verify(s.SigningPub, body, sig) {
		return nil, ErrBadSessionKey
	}
	return s, nil
}

// ID returns the session identifier: the base64 public signing key.
func (s *InboundSession) ID() string { return crypto.B64(s.SigningPub.Slice()) }

// Decrypt opens a group message, returning the plaintext and the message
// index it was sent at.
func (s *InboundSession) Decrypt(wire string) ([]byte, uint32, error) {
	raw, err := crypto.UnB64(wire)
	if err != nil {
		return nil, 0, errors.Wrap(err, "decoding group message")
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, 0, errors.Wrap(err, "parsing group message")
	}
	if !crypto.Verify(s.SigningPub, env.signedBytes(), env.Signature) {
		return nil, 0, ErrBadSignature
	}
	if env.Index < s.FirstIndex {
		return nil, 0, ErrUnknownIndex
	}

	ck := s.ChainKey
	for i := s.FirstIndex; i < env.Index; i++ {
		ck = advance(ck)
	}
	mk := messageKey(ck)
	pt, err := openAt(mk, env.Index, s.SigningPub, env.Ciphertext)
	crypto.Wipe(mk)
	if err != nil {
		return nil, 0, errors.Wrap(err, "opening group message")
	}
	return pt, env.Index, nil
}

// envelope is the signed wire frame of a single group message.
type envelope struct {
	Index      uint32 `json:"index"`
	Ciphertext []byte `json:"ciphertext"`
	Signature  []byte `json:"signature"`
}

func (e envelope) signedBytes() []byte {
	out := make([]byte, 4, 4+len(e.Ciphertext))
	binary.BigEndian.PutUint32(out, e.Index)
	return append(out, e.Ciphertext...)
}

func advance(ck [chainKeySize]byte) (next [chainKeySize]byte) {
	r := hkdf.New(sha256.New, ck[:], nil, []byte("MEGOLM_CHAIN"))
	_, _ = io.ReadFull(r, next[:])
	return
}

func messageKey(ck [chainKeySize]byte) []byte {
	mk := make([]byte, chacha20poly1305.KeySize)
	_, _ = io.ReadFull(hkdf.New(sha256.New, ck[:], nil, []byte("MEGOLM_KEYS")), mk)
	return mk
}

func sealAt(mk []byte, index uint32, pub crypto.Ed25519Public, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(mk)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, chacha20poly1305.NonceSize)
	binary.BigEndian.PutUint32(nonce[len(nonce)-4:], index)
	return aead.Seal(nil, nonce, plaintext, pub.Slice()), nil
}

func openAt(mk []byte, index uint32, pub crypto.Ed25519Public, ciphertext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(mk)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, chacha20poly1305.NonceSize)
	binary.BigEndian.PutUint32(nonce[len(nonce)-4:], index)
	return aead.Open(nil, nonce, ciphertext, pub.Slice())
}
