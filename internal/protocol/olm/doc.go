// Package olm implements the one-to-one ratchet primitive: long-term
// accounts, pre-key session establishment and the message-level double
// ratchet.
//
// An Account holds a device's Curve25519 identity key pair, its Ed25519
// signing key pair and a replenishable pool of one-time pre-keys. A Session
// is a forward-secret pairwise channel established with a triple
// Diffie–Hellman handshake against a peer's identity key and one of its
// one-time keys. The first messages of a session are "pre-key" messages
// carrying the handshake material; once the peer has demonstrably derived
// the session, normal messages are sent.
//
// Sessions are identified by an ID derived from the handshake public keys,
// so both parties compute the same ID without coordination.
package olm
