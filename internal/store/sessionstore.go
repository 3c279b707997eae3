package store

import (
	"sort"

	"olmstead/internal/domain"
)

// SessionStore holds every one-to-one ratchet session, addressable by the
// remote device's Curve25519 identity key. Sessions are never deleted
// implicitly, and any number may share an identity key.
type SessionStore struct {
	sessions map[string][]*domain.OlmSession
}

// NewSessionStore returns an empty store.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string][]*domain.OlmSession)}
}

// Add inserts a session, keeping the per-key list ordered by session ID.
func (s *SessionStore) Add(sess *domain.OlmSession) {
	list := append(s.sessions[sess.SenderKey], sess)
	sort.Slice(list, func(i, j int) bool { return list[i].ID() < list[j].ID() })
	s.sessions[sess.SenderKey] = list
}

// Check reports whether a session with the same sender key and session ID
// is present.
func (s *SessionStore) Check(sess *domain.OlmSession) bool {
	for _, cur := range s.sessions[sess.SenderKey] {
		if cur.ID() == sess.ID() {
			return true
		}
	}
	return false
}

// Get selects the session for an identity key. Among several candidates it
// returns the one with the lexicographically smallest session ID, so both
// peers converge on the same session without coordination, independent of
// insertion order. Nil when no session matches.
func (s *SessionStore) Get(senderKey string) *domain.OlmSession {
	list := s.sessions[senderKey]
	if len(list) == 0 {
		return nil
	}
	return list[0]
}

// ByKey returns every session for an identity key in ID order.
func (s *SessionStore) ByKey(senderKey string) []*domain.OlmSession {
	return s.sessions[senderKey]
}

// All returns every session in the store in stable order, for persistence.
func (s *SessionStore) All() []*domain.OlmSession {
	keys := make([]string, 0, len(s.sessions))
	for k := range s.sessions {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []*domain.OlmSession
	for _, k := range keys {
		out = append(out, s.sessions[k]...)
	}
	return out
}
