package encryption

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"

	"olmstead/internal/domain"
	"olmstead/internal/events"
	"olmstead/internal/protocol/megolm"
	"olmstead/internal/protocol/olm"
	"olmstead/internal/store"
)

// defaultPassphrase protects state files when the caller supplies none.
// It provides obfuscation only; callers wanting real at-rest protection
// pass their own through WithPassphrase.
const defaultPassphrase = "DEFAULT_KEY"

// Option configures a facade at construction time.
type Option func(*config)

type config struct {
	passphrase string
	log        *jww.Notepad
}

// WithPassphrase sets the passphrase protecting the persisted state file.
func WithPassphrase(p string) Option {
	return func(c *config) { c.passphrase = p }
}

// WithLogger injects the structured logging sink used by the facade and
// its stores.
func WithLogger(log *jww.Notepad) Option {
	return func(c *config) { c.log = log }
}

// Olm is the session-layer facade: it owns the local account, the device
// directory and trust store, all one-to-one and group sessions, and their
// persistence lifecycle.
type Olm struct {
	UserID   string
	DeviceID string

	Account      *olm.Account
	Devices      *store.DeviceStore
	Sessions     *store.SessionStore
	InboundGroup *store.InboundGroupSessionStore

	outboundGroup map[string]*megolm.OutboundSession

	state *store.StateStore
	log   *jww.Notepad
}

// New opens or creates the encryption state for (userID, deviceID) under
// storagePath. When a persisted state file exists it is loaded verbatim;
// otherwise a fresh account is generated and persisted. Either way the
// returned facade is fully usable.
func New(userID, deviceID, storagePath string, opts ...Option) (*Olm, error) {
	cfg := config{passphrase: defaultPassphrase}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.log == nil {
		cfg.log = jww.NewNotepad(jww.LevelWarn, jww.LevelWarn, io.Discard, io.Discard, "olm", 0)
	}

	if err := os.MkdirAll(storagePath, 0o700); err != nil {
		return nil, errors.Wrap(err, "creating storage directory")
	}

	trustPath := filepath.Join(storagePath, fmt.Sprintf("%s_%s.trusted_devices", userID, deviceID))
	devices, err := store.LoadDeviceStore(trustPath, cfg.log)
	if err != nil {
		return nil, err
	}

	o := &Olm{
		UserID:        userID,
		DeviceID:      deviceID,
		Devices:       devices,
		Sessions:      store.NewSessionStore(),
		InboundGroup:  store.NewInboundGroupSessionStore(),
		outboundGroup: make(map[string]*megolm.OutboundSession),
		state:         store.NewStateStore(storagePath, userID, deviceID, cfg.passphrase),
		log:           cfg.log,
	}

	st, err := o.state.Load()
	if err != nil {
		return nil, err
	}
	if st == nil {
		o.log.INFO.Printf("no state for %s/%s, creating a new account", userID, deviceID)
		if o.Account, err = olm.NewAccount(); err != nil {
			return nil, err
		}
		return o, o.Save()
	}

	o.Account = st.Account
	for _, s := range st.Sessions {
		o.Sessions.Add(s)
	}
	for _, g := range st.GroupSessions {
		o.InboundGroup.Add(g)
	}
	if st.OutboundGroup != nil {
		o.outboundGroup = st.OutboundGroup
	}
	o.log.DEBUG.Printf("loaded state for %s/%s: %d sessions, %d group sessions",
		userID, deviceID, len(st.Sessions), len(st.GroupSessions))
	return o, nil
}

// Save persists the whole state synchronously. Mutating operations call it
// before reporting success; a failed save fails the operation.
func (o *Olm) Save() error {
	return o.state.Save(&store.State{
		Account:       o.Account,
		Sessions:      o.Sessions.All(),
		GroupSessions: o.InboundGroup.All(),
		OutboundGroup: o.outboundGroup,
	})
}

// IdentityKeys returns the local account's public identity keys by
// algorithm name.
func (o *Olm) IdentityKeys() map[string]string { return o.Account.IdentityKeys() }

// GenerateOneTimeKeys adds n one-time keys to the account pool and
// persists.
func (o *Olm) GenerateOneTimeKeys(n int) error {
	if err := o.Account.GenerateOneTimeKeys(n); err != nil {
		return err
	}
	return o.Save()
}

// MarkKeysAsPublished flags the pool as uploaded and persists.
func (o *Olm) MarkKeysAsPublished() error {
	o.Account.MarkKeysAsPublished()
	return o.Save()
}

// CreateSession establishes an outbound one-to-one session with a device
// previously registered (and therefore trusted) through the device store,
// using a one-time key claimed from it.
func (o *Olm) CreateSession(userID, deviceID, oneTimeKey string) (*domain.OlmSession, error) {
	device, ok := o.Devices.Get(userID, deviceID)
	if !ok {
		return nil, errors.Wrapf(ErrUnknownDevice, "%s/%s", userID, deviceID)
	}
	identityKey := device.IdentityKey()
	if identityKey == "" {
		return nil, errors.Errorf("device %s/%s has no curve25519 identity key", userID, deviceID)
	}

	sess, err := olm.NewOutboundSession(o.Account, identityKey, oneTimeKey)
	if err != nil {
		return nil, errors.Wrap(err, "creating outbound session")
	}
	wrapped := &domain.OlmSession{
		SenderID:     userID,
		SenderDevice: deviceID,
		SenderKey:    identityKey,
		Session:      sess,
	}
	o.Sessions.Add(wrapped)
	if err := o.Save(); err != nil {
		return nil, err
	}
	o.log.DEBUG.Printf("created outbound session %s with %s/%s", sess.ID(), userID, deviceID)
	return wrapped, nil
}

// CreateGroupSession registers an inbound group session from a shared
// session key, whether our own share or a peer's. The key must derive the
// announced session id. A key already registered for (room, session) is
// kept as is; re-shares of the same key are common and harmless.
func (o *Olm) CreateGroupSession(senderKey, senderFingerprint, roomID, sessionID, sessionKey string) error {
	inbound, err := megolm.NewInboundSession(sessionKey)
	if err != nil {
		return err
	}
	if inbound.ID() != sessionID {
		return errors.Wrapf(ErrSessionKeyMismatch, "announced %s, derived %s", sessionID, inbound.ID())
	}
	added := o.InboundGroup.Add(&domain.InboundGroupSession{
		RoomID:            roomID,
		SenderKey:         senderKey,
		SenderFingerprint: senderFingerprint,
		Session:           inbound,
	})
	if !added {
		o.log.WARN.Printf("group session %s for room %s already known, keeping original", sessionID, roomID)
		return nil
	}
	if err := o.Save(); err != nil {
		return err
	}
	o.log.DEBUG.Printf("registered group session %s for room %s", sessionID, roomID)
	return nil
}

// CreateOutboundGroupSession makes this account the room's outbound-session
// holder and shares the key with itself through the inbound store.
func (o *Olm) CreateOutboundGroupSession(roomID string) (*megolm.OutboundSession, error) {
	out, err := megolm.NewOutboundSession()
	if err != nil {
		return nil, err
	}
	o.outboundGroup[roomID] = out

	keys := o.IdentityKeys()
	if err := o.CreateGroupSession(
		keys[olm.AlgCurve25519], keys[olm.AlgEd25519],
		roomID, out.ID(), out.SessionKey(),
	); err != nil {
		return nil, err
	}
	return out, nil
}

// RoomKeyPayload builds the plaintext payload that shares the room's
// outbound session key with a peer over a one-to-one session.
func (o *Olm) RoomKeyPayload(roomID, recipientID, recipientFingerprint string) (map[string]any, error) {
	out, ok := o.outboundGroup[roomID]
	if !ok {
		return nil, errors.Errorf("no outbound group session for room %s", roomID)
	}
	return map[string]any{
		"type": events.RoomKeyType,
		"content": map[string]any{
			"algorithm":   events.MegolmAlgorithm,
			"room_id":     roomID,
			"session_id":  out.ID(),
			"session_key": out.SessionKey(),
			"chain_index": out.MessageIndex(),
		},
		"sender":         o.UserID,
		"sender_device":  o.DeviceID,
		"keys":           map[string]string{olm.AlgEd25519: o.IdentityKeys()[olm.AlgEd25519]},
		"recipient":      recipientID,
		"recipient_keys": map[string]string{olm.AlgEd25519: recipientFingerprint},
	}, nil
}

// Encrypt serialises payload as stable JSON and encrypts it for the
// session selected for recipientKey. The ratchet step is persisted before
// the ciphertext is handed back: a retry after a lost send must take a
// fresh step, never reuse this one.
func (o *Olm) Encrypt(recipientKey string, payload any) (olm.Message, error) {
	sess := o.Sessions.Get(recipientKey)
	if sess == nil {
		return olm.Message{}, errors.Wrap(ErrNoSession, recipientKey)
	}
	plaintext, err := json.Marshal(payload)
	if err != nil {
		return olm.Message{}, errors.Wrap(err, "encoding payload")
	}
	msg, err := sess.Session.Encrypt(plaintext)
	if err != nil {
		return olm.Message{}, err
	}
	if err := o.Save(); err != nil {
		return olm.Message{}, err
	}
	return msg, nil
}

// Decrypt recovers the plaintext payload of a one-to-one message, creating
// a new inbound session from a pre-key message when no existing session
// can open it. Room-key shares found in the plaintext register an inbound
// group session as a side effect. Failure is recoverable: no session or
// store is corrupted or discarded by an undecryptable message.
func (o *Olm) Decrypt(senderID, senderKey string, msg olm.Message) ([]byte, error) {
	for _, sess := range o.Sessions.ByKey(senderKey) {
		plaintext, err := sess.Session.Decrypt(msg)
		if err != nil {
			o.log.DEBUG.Printf("session %s could not decrypt from %s: %v", sess.ID(), senderID, err)
			continue
		}
		if err := o.afterDecrypt(senderID, senderKey, plaintext); err != nil {
			return nil, err
		}
		return plaintext, nil
	}

	if msg.Type != olm.MessagePreKey {
		return nil, errors.Wrapf(ErrDecryption, "no session for %s could open a normal message", senderID)
	}

	sess, err := olm.NewInboundSession(o.Account, msg)
	if err != nil {
		return nil, errors.Wrapf(ErrDecryption, "creating inbound session from %s: %v", senderID, err)
	}
	plaintext, err := sess.Decrypt(msg)
	if err != nil {
		return nil, errors.Wrapf(ErrDecryption, "new inbound session from %s: %v", senderID, err)
	}

	o.Sessions.Add(&domain.OlmSession{
		SenderID:     senderID,
		SenderDevice: senderDeviceOf(plaintext),
		SenderKey:    senderKey,
		Session:      sess,
	})
	o.log.DEBUG.Printf("created inbound session %s with %s", sess.ID(), senderID)

	if err := o.afterDecrypt(senderID, senderKey, plaintext); err != nil {
		return nil, err
	}
	return plaintext, nil
}

// afterDecrypt persists advanced session state and registers any room-key
// share carried in the plaintext.
func (o *Olm) afterDecrypt(senderID, senderKey string, plaintext []byte) error {
	if rk, ok := events.ParseRoomKey(plaintext); ok {
		if err := o.CreateGroupSession(
			senderKey, senderFingerprintOf(plaintext),
			rk.RoomID, rk.SessionID, rk.SessionKey,
		); err != nil {
			o.log.WARN.Printf("rejecting room key from %s for %s: %v", senderID, rk.RoomID, err)
			return err
		}
	}
	return o.Save()
}

// GroupEncrypt encrypts payload for a room, creating the room's outbound
// group session on first use. The advanced chain index is persisted before
// the ciphertext is returned.
func (o *Olm) GroupEncrypt(roomID string, payload any) (sessionID, ciphertext string, err error) {
	out, ok := o.outboundGroup[roomID]
	if !ok {
		if out, err = o.CreateOutboundGroupSession(roomID); err != nil {
			return "", "", err
		}
	}
	plaintext, err := json.Marshal(payload)
	if err != nil {
		return "", "", errors.Wrap(err, "encoding payload")
	}
	ciphertext, err = out.Encrypt(plaintext)
	if err != nil {
		return "", "", err
	}
	if err := o.Save(); err != nil {
		return "", "", err
	}
	return out.ID(), ciphertext, nil
}

// GroupDecrypt opens a group message with the inbound session stored for
// (roomID, sessionID).
func (o *Olm) GroupDecrypt(roomID, sessionID, ciphertext string) ([]byte, error) {
	sess := o.InboundGroup.Get(roomID, sessionID)
	if sess == nil {
		return nil, errors.Wrapf(ErrDecryption, "no group session %s for room %s", sessionID, roomID)
	}
	plaintext, _, err := sess.Session.Decrypt(ciphertext)
	if err != nil {
		return nil, errors.Wrapf(ErrDecryption, "group message in %s: %v", roomID, err)
	}
	return plaintext, nil
}

// senderDeviceOf pulls the claimed sender device out of a decrypted
// payload, best effort.
func senderDeviceOf(plaintext []byte) string {
	var p struct {
		SenderDevice string `json:"sender_device"`
	}
	_ = json.Unmarshal(plaintext, &p)
	return p.SenderDevice
}

// senderFingerprintOf pulls the claimed sender signing key out of a
// decrypted payload, best effort.
func senderFingerprintOf(plaintext []byte) string {
	var p struct {
		Keys map[string]string `json:"keys"`
	}
	_ = json.Unmarshal(plaintext, &p)
	return p.Keys[string(domain.KeyEd25519)]
}
