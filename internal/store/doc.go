// Package store provides the trust and session collections of the
// encryption layer plus their file-based persistence.
//
// It contains:
//   - KeyStore: the durable trust-on-first-use fingerprint set, kept as a
//     human-auditable line-oriented file
//   - DeviceStore: the directory of known remote devices, enforcing the
//     one-fingerprint-per-device invariant on top of a KeyStore
//   - SessionStore: all one-to-one ratchet sessions with deterministic
//     selection among sessions sharing a remote identity key
//   - InboundGroupSessionStore: room ratchet sessions by (room, session) id
//   - StateStore: whole-state, atomic, encrypted-at-rest persistence of an
//     account and its sessions, one file per (user, device)
//
// Mutating methods that touch disk persist synchronously: they return only
// after the write has completed or failed, and a failed write is reported
// instead of success. Concurrent use of one storage path by two processes
// is a misuse and is not detected.
package store
