package domain

// OlmDevice is a remote device's full claimed key set as retrieved from the
// server. A record with any changed key is a different value for equality
// purposes even though it names the same logical device.
type OlmDevice struct {
	UserID   string
	DeviceID string
	Keys     map[KeyType]string
}

// NewOlmDevice copies keys so later mutation of the argument cannot alter
// the record.
func NewOlmDevice(userID, deviceID string, keys map[KeyType]string) OlmDevice {
	kc := make(map[KeyType]string, len(keys))
	for k, v := range keys {
		kc[k] = v
	}
	return OlmDevice{UserID: userID, DeviceID: deviceID, Keys: kc}
}

// Equal reports structural equality over every field, including the whole
// key map.
func (d OlmDevice) Equal(other OlmDevice) bool {
	if d.UserID != other.UserID || d.DeviceID != other.DeviceID || len(d.Keys) != len(other.Keys) {
		return false
	}
	for k, v := range d.Keys {
		ov, ok := other.Keys[k]
		if !ok || ov != v {
			return false
		}
	}
	return true
}

// IdentityKey returns the device's Curve25519 identity key, or "" when the
// claim set lacks one.
func (d OlmDevice) IdentityKey() string { return d.Keys[KeyCurve25519] }

// FingerprintKey returns the device's Ed25519 fingerprint value, or "".
func (d OlmDevice) FingerprintKey() string { return d.Keys[KeyEd25519] }
