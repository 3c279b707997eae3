package olm

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"olmstead/internal/crypto"
)

// Key algorithm names as they appear in identity key maps and on the wire.
const (
	AlgCurve25519 = "curve25519"
	AlgEd25519    = "ed25519"
)

// ErrNoOneTimeKey is returned when a pre-key message references a one-time
// key this account no longer holds.
var ErrNoOneTimeKey = errors.New("one-time key not found in account pool")

// OneTimePair is a one-time pre-key held by the local account. The public
// half is uploaded for peers to claim; the private half is consumed exactly
// once when the matching pre-key message arrives.
type OneTimePair struct {
	ID        string                   `json:"id"`
	Priv      crypto.Curve25519Private `json:"priv"`
	Pub       crypto.Curve25519Public  `json:"pub"`
	Published bool                     `json:"published"`
}

// Account is a device's long-term identity: a Curve25519 key pair used for
// session establishment, an Ed25519 signing pair used as the device
// fingerprint, and the one-time key pool.
type Account struct {
	IdentityPriv crypto.Curve25519Private `json:"identity_priv"`
	IdentityPub  crypto.Curve25519Public  `json:"identity_pub"`
	SigningPriv  crypto.Ed25519Private    `json:"signing_priv"`
	SigningPub   crypto.Ed25519Public     `json:"signing_pub"`
	OneTime      []OneTimePair            `json:"one_time,omitempty"`
	NextKeyID    uint32                   `json:"next_key_id"`
}

// NewAccount generates a fresh account with no one-time keys.
func NewAccount() (*Account, error) {
	idPriv, idPub, err := crypto.GenerateCurve25519()
	if err != nil {
		return nil, errors.Wrap(err, "generating identity key")
	}
	sigPriv, sigPub, err := crypto.GenerateEd25519()
	if err != nil {
		return nil, errors.Wrap(err, "generating signing key")
	}
	return &Account{
		IdentityPriv: idPriv,
		IdentityPub:  idPub,
		SigningPriv:  sigPriv,
		SigningPub:   sigPub,
	}, nil
}

// IdentityKeys returns the public identity keys keyed by algorithm name.
func (a *Account) IdentityKeys() map[string]string {
	return map[string]string{
		AlgCurve25519: crypto.B64(a.IdentityPub.Slice()),
		AlgEd25519:    crypto.B64(a.SigningPub.Slice()),
	}
}

// GenerateOneTimeKeys adds n fresh one-time pre-keys to the pool.
func (a *Account) GenerateOneTimeKeys(n int) error {
	for i := 0; i < n; i++ {
		priv, pub, err := crypto.GenerateCurve25519()
		if err != nil {
			return errors.Wrap(err, "generating one-time key")
		}
		var id [4]byte
		binary.BigEndian.PutUint32(id[:], a.NextKeyID)
		a.NextKeyID++
		a.OneTime = append(a.OneTime, OneTimePair{
			ID:   crypto.B64(id[:]),
			Priv: priv,
			Pub:  pub,
		})
	}
	return nil
}

// OneTimeKeys returns the unpublished one-time public keys keyed by key ID.
func (a *Account) OneTimeKeys() map[string]string {
	out := make(map[string]string)
	for _, p := range a.OneTime {
		if !p.Published {
			out[p.ID] = crypto.B64(p.Pub.Slice())
		}
	}
	return out
}

// MarkKeysAsPublished flags every pooled key as uploaded, removing it from
// future OneTimeKeys listings.
func (a *Account) MarkKeysAsPublished() {
	for i := range a.OneTime {
		a.OneTime[i].Published = true
	}
}

// Sign signs msg with the account's Ed25519 key.
func (a *Account) Sign(msg []byte) []byte {
	return crypto.Sign(a.SigningPriv, msg)
}

// takeOneTimeKey removes and returns the private half matching pub.
func (a *Account) takeOneTimeKey(pub crypto.Curve25519Public) (crypto.Curve25519Private, bool) {
	for i, p := range a.OneTime {
		if p.Pub == pub {
			a.OneTime = append(a.OneTime[:i], a.OneTime[i+1:]...)
			return p.Priv, true
		}
	}
	return crypto.Curve25519Private{}, false
}
