package store

import (
	"io"
	"sync"

	jww "github.com/spf13/jwalterweatherman"

	"olmstead/internal/domain"
)

type deviceIndex struct {
	userID   string
	deviceID string
}

// DeviceStore is the directory of known remote devices. Fingerprints are
// pinned on first sighting through the backing KeyStore; a device later
// claiming a different fingerprint for the same (user, device) is rejected
// with a TrustError and neither store is mutated.
type DeviceStore struct {
	fingerprints *KeyStore
	log          *jww.Notepad

	mu      sync.Mutex
	entries map[deviceIndex]domain.OlmDevice
}

// LoadDeviceStore builds a directory over the fingerprint store at path.
// A nil log discards.
func LoadDeviceStore(path string, log *jww.Notepad) (*DeviceStore, error) {
	ks, err := LoadKeyStore(path)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = jww.NewNotepad(jww.LevelError, jww.LevelError, io.Discard, io.Discard, "", 0)
	}
	return &DeviceStore{
		fingerprints: ks,
		entries:      make(map[deviceIndex]domain.OlmDevice),
		log:          log,
	}, nil
}

// Add registers or updates a device record. It reports true when the call
// changed anything (first sighting, or new key material under an unchanged
// fingerprint) and false when the exact record was already present. A
// conflicting fingerprint claim fails with a TrustError.
//
// Every successful first sighting persists the fingerprint store before
// returning.
func (s *DeviceStore) Add(d domain.OlmDevice) (bool, error) {
	fp, err := domain.FingerprintOf(d)
	if err != nil {
		return false, err
	}
	idx := deviceIndex{userID: d.UserID, deviceID: d.DeviceID}

	s.mu.Lock()
	defer s.mu.Unlock()

	trusted, seen := s.fingerprints.Find(d.UserID, d.DeviceID, domain.KeyEd25519)
	if !seen {
		if _, err := s.fingerprints.Add(fp); err != nil {
			return false, err
		}
		s.log.INFO.Printf("trusting %s/%s on first use: %s", d.UserID, d.DeviceID, fp.Value)
		s.entries[idx] = d
		return true, nil
	}

	if trusted.Value != fp.Value {
		s.log.WARN.Printf("fingerprint conflict for %s/%s", d.UserID, d.DeviceID)
		return false, &TrustError{
			UserID:   d.UserID,
			DeviceID: d.DeviceID,
			Trusted:  trusted.Value,
			Claimed:  fp.Value,
		}
	}

	if cur, ok := s.entries[idx]; ok && cur.Equal(d) {
		return false, nil
	}
	s.entries[idx] = d
	return true, nil
}

// Contains reports whether the directory holds this exact device record.
func (s *DeviceStore) Contains(d domain.OlmDevice) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.entries[deviceIndex{userID: d.UserID, deviceID: d.DeviceID}]
	return ok && cur.Equal(d)
}

// Get returns the directory record for (userID, deviceID).
func (s *DeviceStore) Get(userID, deviceID string) (domain.OlmDevice, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.entries[deviceIndex{userID: userID, deviceID: deviceID}]
	return d, ok
}

// Fingerprints exposes the backing trust store, read-mostly, for listing
// and manual re-verification flows.
func (s *DeviceStore) Fingerprints() *KeyStore { return s.fingerprints }
