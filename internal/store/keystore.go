package store

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"olmstead/internal/domain"
)

// keyTypePrefix namespaces the algorithm column of the trust file.
const keyTypePrefix = "matrix-"

// KeyStore is the durable set of trusted key claims. Entries live in a
// line-oriented file of "user device matrix-<algorithm> value" records, one
// store per local account. A missing file is an empty store; a malformed
// line is a load error, never silently dropped trust data.
//
// KeyStore does not police conflicting values for the same (user, device,
// algorithm); that policy belongs to DeviceStore, its only legitimate
// caller for identity-trust decisions.
type KeyStore struct {
	path string

	mu   sync.Mutex
	keys map[domain.Key]struct{}
}

// LoadKeyStore reads the backing file at path and reconstructs the store.
func LoadKeyStore(path string) (*KeyStore, error) {
	s := &KeyStore{path: path, keys: make(map[domain.Key]struct{})}

	b, err := readFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading trust store")
	}
	for i, line := range strings.Split(string(b), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		k, err := parseLine(line)
		if err != nil {
			return nil, errors.Wrapf(err, "trust store %s line %d", path, i+1)
		}
		s.keys[k] = struct{}{}
	}
	return s, nil
}

// Contains reports whether a structurally equal entry is present.
func (s *KeyStore) Contains(k domain.Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.keys[k]
	return ok
}

// Find returns the trusted entry for (userID, deviceID, t), if any.
func (s *KeyStore) Find(userID, deviceID string, t domain.KeyType) (domain.Key, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k := range s.keys {
		if k.UserID == userID && k.DeviceID == deviceID && k.Type == t {
			return k, true
		}
	}
	return domain.Key{}, false
}

// Add inserts k and persists the store. It reports false without touching
// disk when an identical entry already exists.
func (s *KeyStore) Add(k domain.Key) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.keys[k]; ok {
		return false, nil
	}
	s.keys[k] = struct{}{}
	if err := s.persistLocked(); err != nil {
		delete(s.keys, k)
		return false, err
	}
	return true, nil
}

// Remove deletes a structurally equal entry and persists the store. It
// reports false when no such entry exists.
func (s *KeyStore) Remove(k domain.Key) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.keys[k]; !ok {
		return false, nil
	}
	delete(s.keys, k)
	if err := s.persistLocked(); err != nil {
		s.keys[k] = struct{}{}
		return false, err
	}
	return true, nil
}

// Keys lists all trusted entries in stable order.
func (s *KeyStore) Keys() []domain.Key {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.sortedLocked()
}

func (s *KeyStore) sortedLocked() []domain.Key {
	out := make([]domain.Key, 0, len(s.keys))
	for k := range s.keys {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.UserID != b.UserID {
			return a.UserID < b.UserID
		}
		if a.DeviceID != b.DeviceID {
			return a.DeviceID < b.DeviceID
		}
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		return a.Value < b.Value
	})
	return out
}

func (s *KeyStore) persistLocked() error {
	var sb strings.Builder
	for _, k := range s.sortedLocked() {
		fmt.Fprintf(&sb, "%s %s %s%s %s\n", k.UserID, k.DeviceID, keyTypePrefix, k.Type, k.Value)
	}
	return errors.Wrap(writeFile(s.path, []byte(sb.String()), 0o600), "writing trust store")
}

func parseLine(line string) (domain.Key, error) {
	fields := strings.Fields(line)
	if len(fields) != 4 {
		return domain.Key{}, errors.Errorf("want 4 fields, got %d", len(fields))
	}
	algo, ok := strings.CutPrefix(fields[2], keyTypePrefix)
	if !ok {
		return domain.Key{}, errors.Errorf("unrecognised key type %q", fields[2])
	}
	switch domain.KeyType(algo) {
	case domain.KeyEd25519, domain.KeyCurve25519:
	default:
		return domain.Key{}, errors.Errorf("unrecognised key algorithm %q", algo)
	}
	return domain.Key{
		UserID:   fields[0],
		DeviceID: fields[1],
		Type:     domain.KeyType(algo),
		Value:    fields[3],
	}, nil
}
