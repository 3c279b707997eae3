package store

import "fmt"

// TrustError reports a device fingerprint conflicting with one pinned
// earlier for the same (user, device). It is fatal to the operation that
// raised it, never silently swallowed: the caller decides whether to treat
// it as an incident or re-verify the device out of band.
type TrustError struct {
	UserID   string
	DeviceID string
	Trusted  string
	Claimed  string
}

func (e *TrustError) Error() string {
	return fmt.Sprintf("device %s/%s claims fingerprint %s but %s was trusted earlier",
		e.UserID, e.DeviceID, e.Claimed, e.Trusted)
}
