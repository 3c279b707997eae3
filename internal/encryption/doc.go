// Package encryption ties the account, trust, session and persistence
// pieces into a single entry point, the Olm facade.
//
// A facade owns exactly one account per (user id, device id) and the four
// stores around it: the device directory with its trust-on-first-use
// fingerprint store, the one-to-one session store, the inbound group
// session store and the outbound group registry. Every state-changing
// operation persists synchronously before reporting success.
//
// A facade instance is a single logical owner of ratchet state: callers
// must serialise calls into one instance themselves. Ratchet advancement is
// stateful and non-commutative, so there is no meaningful concurrent use to
// support. Opening one storage path from two processes at once is a misuse
// with undefined results.
package encryption
