// Package megolm implements the group (room) ratchet primitive.
//
// An outbound group session is a hash-chain ratchet paired with an Ed25519
// signing key; its session ID is the public signing key. The exportable
// session key carries the chain state at a given message index together with
// the signing key, so recipients can decrypt every message from that index
// onward and verify each one against the session's signing key. The seed is
// shared once with each room member through one-to-one encrypted channels.
package megolm
