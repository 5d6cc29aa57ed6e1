// Package tokenstore persists a serialized session between CLI invocations.
//
// The credential store of package credentials lives in memory only; the
// command line front end uses one of these backends to survive process exit:
//   - File: local file with atomic writes and 0600 permissions
//   - Env: read-only environment variable (e.g. a token minted elsewhere)
//   - Keyring: OS-native credential storage (macOS Keychain, Secret Service, ...)
//   - Memory: process-local, nothing survives exit
//
// Read returns ErrNotFound when nothing is stored, which callers treat as an
// anonymous session rather than a failure.
package tokenstore
