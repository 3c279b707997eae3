// Package crypto exposes the minimal primitives used by olmstead.
//
// Contents
//
//   - Curve25519 key generation, clamping and Diffie–Hellman
//     (GenerateCurve25519, DH)
//   - Ed25519 key generation, signing and verification (GenerateEd25519,
//     Sign, Verify)
//   - Base64 helpers for the unpadded encoding used on the wire (B64, UnB64)
//   - Best-effort memory wiping for sensitive byte slices (Wipe)
//
// # Notes
//
// All functions return fixed-size array types to avoid accidental
// reallocations. Callers should treat returned secrets as sensitive and rely
// on Wipe when practical to reduce lifetime in memory.
package crypto
