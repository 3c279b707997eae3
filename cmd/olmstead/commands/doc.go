// Package commands defines the olmstead CLI and wires dependencies for
// subcommands.
//
// Commands
//
//   - init      Create the local account for a (user, device) pair
//   - keys      Print the account's identity and unpublished one-time keys
//   - devices   List fingerprints pinned in the trust store
//   - trust     Pin a device fingerprint by hand
//   - distrust  Drop a pinned fingerprint after out-of-band re-verification
//
// # Implementation
//
// The root command resolves configuration through viper (flags, the
// OLMSTEAD_* environment and an optional config file under the storage
// directory) and builds a logging notepad before any subcommand runs.
package commands
