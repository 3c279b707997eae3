package store

import (
	"sort"

	"olmstead/internal/domain"
)

type groupIndex struct {
	roomID    string
	sessionID string
}

// InboundGroupSessionStore holds room ratchet sessions keyed by
// (room id, session id). Re-adding an existing key is not a supported use;
// Add reports whether the session was stored.
type InboundGroupSessionStore struct {
	sessions map[groupIndex]*domain.InboundGroupSession
}

// NewInboundGroupSessionStore returns an empty store.
func NewInboundGroupSessionStore() *InboundGroupSessionStore {
	return &InboundGroupSessionStore{sessions: make(map[groupIndex]*domain.InboundGroupSession)}
}

// Add stores a session under its (room, session) id. It reports false and
// leaves the existing entry untouched when the key is already present.
func (s *InboundGroupSessionStore) Add(sess *domain.InboundGroupSession) bool {
	idx := groupIndex{roomID: sess.RoomID, sessionID: sess.ID()}
	if _, ok := s.sessions[idx]; ok {
		return false
	}
	s.sessions[idx] = sess
	return true
}

// Get returns the session for (roomID, sessionID), or nil.
func (s *InboundGroupSessionStore) Get(roomID, sessionID string) *domain.InboundGroupSession {
	return s.sessions[groupIndex{roomID: roomID, sessionID: sessionID}]
}

// All returns every group session in stable order, for persistence.
func (s *InboundGroupSessionStore) All() []*domain.InboundGroupSession {
	idxs := make([]groupIndex, 0, len(s.sessions))
	for idx := range s.sessions {
		idxs = append(idxs, idx)
	}
	sort.Slice(idxs, func(i, j int) bool {
		if idxs[i].roomID != idxs[j].roomID {
			return idxs[i].roomID < idxs[j].roomID
		}
		return idxs[i].sessionID < idxs[j].sessionID
	})

	out := make([]*domain.InboundGroupSession, 0, len(idxs))
	for _, idx := range idxs {
		out = append(out, s.sessions[idx])
	}
	return out
}
