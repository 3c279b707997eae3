package domain

import "github.com/pkg/errors"

// KeyType names a key algorithm as it appears in device key maps.
type KeyType string

// Key algorithms used for device identity and session establishment.
const (
	KeyEd25519    KeyType = "ed25519"
	KeyCurve25519 KeyType = "curve25519"
)

// Key is a device's claim to a public key: (user, device, algorithm, value).
// Equality is structural over all four fields, so Key values are usable as
// map keys and directly comparable for trust checks. Two keys with equal
// (UserID, DeviceID, Type) but different values are the same identity claim
// with conflicting material.
type Key struct {
	UserID   string
	DeviceID string
	Type     KeyType
	Value    string
}

// NewEd25519Key builds a fingerprint key claim.
func NewEd25519Key(userID, deviceID, value string) Key {
	return Key{UserID: userID, DeviceID: deviceID, Type: KeyEd25519, Value: value}
}

// NewCurve25519Key builds an identity key claim.
func NewCurve25519Key(userID, deviceID, value string) Key {
	return Key{UserID: userID, DeviceID: deviceID, Type: KeyCurve25519, Value: value}
}

// FingerprintOf extracts the device's Ed25519 fingerprint claim, the key the
// trust store pins on first use.
func FingerprintOf(d OlmDevice) (Key, error) {
	v, ok := d.Keys[KeyEd25519]
	if !ok {
		return Key{}, errors.Errorf("device %s/%s has no ed25519 key", d.UserID, d.DeviceID)
	}
	return NewEd25519Key(d.UserID, d.DeviceID, v), nil
}

// OneTimeKey is an ephemeral pre-key claimed from a remote device. It is
// consumed exactly once during session creation and never persisted.
type OneTimeKey struct {
	UserID   string
	DeviceID string
	Value    string
	Type     KeyType
}
