package encryption

import "github.com/pkg/errors"

var (
	// ErrUnknownDevice is returned when a session is requested for a
	// device that was never registered through the device store. This is
	// missing prerequisite state, not a trust conflict.
	ErrUnknownDevice = errors.New("device not registered in device store")

	// ErrNoSession is returned when encryption is requested for an
	// identity key with no established session.
	ErrNoSession = errors.New("no session for identity key")

	// ErrDecryption marks a recoverable per-message failure: the message
	// is dropped, every store and every other session stays valid.
	ErrDecryption = errors.New("message could not be decrypted")

	// ErrSessionKeyMismatch is returned when a shared group session key
	// does not derive the session id it was announced under.
	ErrSessionKeyMismatch = errors.New("group session key does not match announced session id")
)
