package olm

import (
	"crypto/sha256"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"olmstead/internal/crypto"
)

const (
	chainKeySize = 32
	maxSkipped   = 1000
)

var errNoChain = errors.New("ratchet chain is uninitialised")

// Header accompanies every ciphertext and carries the sender's current
// ratchet public key and chain positions.
type Header struct {
	RatchetKey []byte `json:"ratchet_key"`
	PrevCount  uint32 `json:"prev_count"`
	Count      uint32 `json:"count"`
}

// RatchetState is the mutable double-ratchet state of a session. Every
// encrypt or decrypt advances it; callers persist it afterwards.
type RatchetState struct {
	RootKey        []byte                   `json:"root_key"`
	RatchetPriv    crypto.Curve25519Private `json:"ratchet_priv"`
	RatchetPub     crypto.Curve25519Public  `json:"ratchet_pub"`
	PeerRatchetPub crypto.Curve25519Public  `json:"peer_ratchet_pub"`
	SendChain      []byte                   `json:"send_chain,omitempty"`
	RecvChain      []byte                   `json:"recv_chain,omitempty"`
	SendCount      uint32                   `json:"send_count"`
	RecvCount      uint32                   `json:"recv_count"`
	PrevCount      uint32                   `json:"prev_count"`
	Skipped        map[string][]byte        `json:"skipped,omitempty"`
}

// clone copies the state deeply enough for speculative work: chain slices
// are replaced wholesale rather than mutated, so only the skipped-key map
// needs its own copy.
func (st *RatchetState) clone() RatchetState {
	c := *st
	c.Skipped = make(map[string][]byte, len(st.Skipped))
	for k, v := range st.Skipped {
		c.Skipped[k] = v
	}
	return c
}

// initSender seeds a sending chain from root using a fresh ratchet key pair
// and the peer's handshake key.
func initSender(root []byte, peerKey crypto.Curve25519Public) (RatchetState, error) {
	priv, pub, err := crypto.GenerateCurve25519()
	if err != nil {
		return RatchetState{}, err
	}
	shared, err := crypto.DH(priv, peerKey)
	if err != nil {
		return RatchetState{}, err
	}
	newRoot, chain := deriveRoot(root, shared[:])
	crypto.Wipe(shared[:])

	return RatchetState{
		RootKey:        newRoot,
		RatchetPriv:    priv,
		RatchetPub:     pub,
		PeerRatchetPub: peerKey, // replaced on the first remote ratchet step
		SendChain:      chain,
		Skipped:        make(map[string][]byte),
	}, nil
}

// initReceiver seeds a receiving chain from root using our handshake private
// key and the sender's advertised ratchet key.
func initReceiver(root []byte, ourPriv crypto.Curve25519Private, senderRatchet crypto.Curve25519Public) (RatchetState, error) {
	priv, pub, err := crypto.GenerateCurve25519()
	if err != nil {
		return RatchetState{}, err
	}
	shared, err := crypto.DH(ourPriv, senderRatchet)
	if err != nil {
		return RatchetState{}, err
	}
	newRoot, chain := deriveRoot(root, shared[:])
	crypto.Wipe(shared[:])

	return RatchetState{
		RootKey:        newRoot,
		RatchetPriv:    priv,
		RatchetPub:     pub,
		PeerRatchetPub: senderRatchet,
		RecvChain:      chain,
		Skipped:        make(map[string][]byte),
	}, nil
}

// ratchetEncrypt emits a header and ciphertext, stepping the ratchet if the
// sending chain has not been seeded yet (the receiver's first send).
func ratchetEncrypt(st *RatchetState, ad, plaintext []byte) (Header, []byte, error) {
	if len(st.SendChain) == 0 {
		if err := stepSending(st); err != nil {
			return Header{}, nil, err
		}
	}

	mk, err := nextSendKey(st)
	if err != nil {
		return Header{}, nil, err
	}
	h := Header{RatchetKey: st.RatchetPub.Slice(), PrevCount: st.PrevCount, Count: st.SendCount}

	ct, err := seal(mk, h, ad, plaintext)
	crypto.Wipe(mk)
	if err != nil {
		return Header{}, nil, err
	}
	st.SendCount++
	return h, ct, nil
}

// ratchetDecrypt tries skipped keys, performs a Diffie–Hellman ratchet step
// on a new remote key, then opens the message. All work happens on a copy of
// the state; the copy replaces st only after authentication succeeds, so a
// forged or corrupted message cannot desync the session.
func ratchetDecrypt(st *RatchetState, ad []byte, h Header, ciphertext []byte) ([]byte, error) {
	work := st.clone()
	pt, err := decryptAdvancing(&work, ad, h, ciphertext)
	if err != nil {
		return nil, err
	}
	*st = work
	return pt, nil
}

func decryptAdvancing(st *RatchetState, ad []byte, h Header, ciphertext []byte) ([]byte, error) {
	if sameKey(st.PeerRatchetPub, h.RatchetKey) {
		skipTo(st, h.Count)
		id := skippedID(st.PeerRatchetPub, h.Count)
		if mk, ok := st.Skipped[id]; ok {
			pt, err := open(mk, h, ad, ciphertext)
			if err != nil {
				return nil, err
			}
			delete(st.Skipped, id)
			crypto.Wipe(mk)
			return pt, nil
		}
	} else {
		skipTo(st, h.PrevCount)
		if err := stepReceiving(st, h.RatchetKey); err != nil {
			return nil, err
		}
		skipTo(st, h.Count)
	}

	mk, err := nextRecvKey(st)
	if err != nil {
		return nil, err
	}
	pt, err := open(mk, h, ad, ciphertext)
	if err != nil {
		return nil, err
	}
	crypto.Wipe(mk)
	st.RecvCount++
	return pt, nil
}

// stepSending rotates our ratchet key pair and seeds a fresh sending chain
// against the peer's current ratchet key.
func stepSending(st *RatchetState) error {
	st.PrevCount = st.SendCount
	st.SendCount = 0

	priv, pub, err := crypto.GenerateCurve25519()
	if err != nil {
		return err
	}
	shared, err := crypto.DH(priv, st.PeerRatchetPub)
	if err != nil {
		return err
	}
	newRoot, chain := deriveRoot(st.RootKey, shared[:])
	crypto.Wipe(shared[:])

	st.RootKey = newRoot
	st.RatchetPriv, st.RatchetPub = priv, pub
	st.SendChain = chain
	return nil
}

// stepReceiving advances the receiving chain for a new remote ratchet key,
// then immediately rotates our own key pair and sending chain.
func stepReceiving(st *RatchetState, remote []byte) error {
	var peer crypto.Curve25519Public
	copy(peer[:], remote)

	shared, err := crypto.DH(st.RatchetPriv, peer)
	if err != nil {
		return err
	}
	rootAfterRecv, recvChain := deriveRoot(st.RootKey, shared[:])
	crypto.Wipe(shared[:])

	priv, pub, err := crypto.GenerateCurve25519()
	if err != nil {
		return err
	}
	shared2, err := crypto.DH(priv, peer)
	if err != nil {
		return err
	}
	rootAfterSend, sendChain := deriveRoot(rootAfterRecv, shared2[:])
	crypto.Wipe(shared2[:])

	st.PrevCount = st.SendCount
	st.SendCount, st.RecvCount = 0, 0
	st.RootKey = rootAfterSend
	st.RatchetPriv, st.RatchetPub = priv, pub
	st.PeerRatchetPub = peer
	st.SendChain, st.RecvChain = sendChain, recvChain
	return nil
}

// --- key derivation and framing ---

func seal(mk []byte, h Header, ad, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(mk[:chacha20poly1305.KeySize])
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, chacha20poly1305.NonceSize)
	binary.BigEndian.PutUint32(nonce[len(nonce)-4:], h.Count)
	return aead.Seal(nil, nonce, plaintext, append(headerBytes(h), ad...)), nil
}

func open(mk []byte, h Header, ad, ciphertext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(mk[:chacha20poly1305.KeySize])
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, chacha20poly1305.NonceSize)
	binary.BigEndian.PutUint32(nonce[len(nonce)-4:], h.Count)
	return aead.Open(nil, nonce, ciphertext, append(headerBytes(h), ad...))
}

func headerBytes(h Header) []byte {
	out := make([]byte, 0, len(h.RatchetKey)+8)
	out = append(out, h.RatchetKey...)
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], h.PrevCount)
	out = append(out, b[:]...)
	binary.BigEndian.PutUint32(b[:], h.Count)
	return append(out, b[:]...)
}

func deriveRoot(root, shared []byte) (newRoot, chain []byte) {
	r := hkdf.New(sha256.New, shared, root, []byte("OLM_RATCHET"))
	newRoot = make([]byte, chainKeySize)
	chain = make([]byte, chainKeySize)
	_, _ = io.ReadFull(r, newRoot)
	_, _ = io.ReadFull(r, chain)
	return
}

func deriveChain(chain []byte) (next, mk []byte) {
	r := hkdf.New(sha256.New, chain, nil, []byte("OLM_CHAIN"))
	next = make([]byte, chainKeySize)
	mk = make([]byte, chainKeySize)
	_, _ = io.ReadFull(r, next)
	_, _ = io.ReadFull(r, mk)
	return
}

func nextSendKey(st *RatchetState) ([]byte, error) {
	if len(st.SendChain) == 0 {
		return nil, errNoChain
	}
	next, mk := deriveChain(st.SendChain)
	st.SendChain = next
	return mk, nil
}

func nextRecvKey(st *RatchetState) ([]byte, error) {
	if len(st.RecvChain) == 0 {
		return nil, errNoChain
	}
	next, mk := deriveChain(st.RecvChain)
	st.RecvChain = next
	return mk, nil
}

// skippedID labels a stashed message key with the peer ratchet key and
// chain position it belongs to. The label is base64 text: Skipped travels
// through JSON persistence, and raw bytes in map keys would not survive it.
func skippedID(peer crypto.Curve25519Public, n uint32) string {
	b := make([]byte, 32+4)
	copy(b, peer[:])
	binary.BigEndian.PutUint32(b[32:], n)
	return crypto.B64(b)
}

// skipTo derives and stashes message keys up to count, with a hard cap on
// retained skipped keys.
func skipTo(st *RatchetState, count uint32) {
	if len(st.RecvChain) == 0 {
		return
	}
	for st.RecvCount < count {
		mk, _ := nextRecvKey(st)
		if len(st.Skipped) >= maxSkipped {
			for k := range st.Skipped {
				delete(st.Skipped, k)
				break
			}
		}
		if st.Skipped == nil {
			st.Skipped = make(map[string][]byte)
		}
		st.Skipped[skippedID(st.PeerRatchetPub, st.RecvCount)] = mk
		st.RecvCount++
	}
}

func sameKey(a crypto.Curve25519Public, b []byte) bool {
	if len(b) != 32 {
		return false
	}
	var v byte
	for i := 0; i < 32; i++ {
		v |= a[i] ^ b[i]
	}
	return v == 0
}
