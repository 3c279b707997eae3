// Package domain defines the value types the session layer is built from:
// trusted key fingerprints, remote device records, one-time keys and the
// session wrappers held by the stores.
//
// Trust decisions compare these values structurally, never by reference:
// two Key values claiming the same (user, device, algorithm) with different
// key material are exactly the conflict the trust store polices.
package domain
