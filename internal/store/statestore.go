package store

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"

	"olmstead/internal/domain"
	"olmstead/internal/protocol/megolm"
	"olmstead/internal/protocol/olm"
)

// State is everything the persistence layer keeps for one (user, device):
// the account's key material and one-time key pool, every one-to-one
// session, every inbound group session and the outbound group registry.
// Reloading it reconstructs the in-memory state of the last successful
// persist.
type State struct {
	Account       *olm.Account                       `json:"account"`
	Sessions      []*domain.OlmSession               `json:"sessions,omitempty"`
	GroupSessions []*domain.InboundGroupSession      `json:"group_sessions,omitempty"`
	OutboundGroup map[string]*megolm.OutboundSession `json:"outbound_group,omitempty"`
}

// StateStore persists State as a single encrypted file per (user, device)
// under a storage directory. Writes are whole-state and atomic: either the
// previous state or the new one is observable on a later load, never a
// partial write.
type StateStore struct {
	path       string
	passphrase string
	mu         sync.Mutex
}

// NewStateStore addresses the state file for (userID, deviceID) under dir.
func NewStateStore(dir, userID, deviceID, passphrase string) *StateStore {
	return &StateStore{
		path:       filepath.Join(dir, fmt.Sprintf("%s_%s.db", userID, deviceID)),
		passphrase: passphrase,
	}
}

// Path returns the backing file path.
func (s *StateStore) Path() string { return s.path }

// Load reads and decrypts the persisted state. A missing file yields
// (nil, nil): a fresh start, not an error.
func (s *StateStore) Load() (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	blob, err := readFile(s.path)
	if err != nil {
		return nil, errors.Wrap(err, "reading state file")
	}
	if blob == nil {
		return nil, nil
	}
	raw, err := open(s.passphrase, blob)
	if err != nil {
		return nil, errors.Wrapf(err, "decrypting state file %s", s.path)
	}
	var st State
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, errors.Wrapf(err, "parsing state file %s", s.path)
	}
	return &st, nil
}

// Save encrypts and writes the whole state synchronously. The caller must
// not report success for the mutation that triggered this save if it
// returns an error.
func (s *StateStore) Save(st *State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := json.Marshal(st)
	if err != nil {
		return errors.Wrap(err, "encoding state")
	}
	blob, err := seal(s.passphrase, raw)
	if err != nil {
		return errors.Wrap(err, "encrypting state")
	}
	return errors.Wrap(writeFile(s.path, blob, 0o600), "writing state file")
}
