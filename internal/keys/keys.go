// Package keys derives the pre-shared master key and the activation proof
// token. Both are deterministic SHA-256 fingerprints over the shared secret,
// so any holder of the secret can re-derive them without touching the ledger.
package keys

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Derive returns the master key for email: the first 16 hex characters of
// SHA-256("{email}|lifetime|{secret}"), uppercased, no separators.
func Derive(email, secret string) string {
	sum := sha256.Sum256([]byte(email + "|lifetime|" + secret))
	return strings.ToUpper(hex.EncodeToString(sum[:])[:16])
}

// Normalize prepares a caller-supplied key for comparison: trims whitespace,
// strips hyphens, uppercases. Keys are often typed in as XXXX-XXXX-XXXX-XXXX.
func Normalize(candidate string) string {
	candidate = strings.TrimSpace(candidate)
	candidate = strings.ReplaceAll(candidate, "-", "")
	return strings.ToUpper(candidate)
}

// Verify reports whether candidate matches the key derived for email.
func Verify(candidate, email, secret string) bool {
	return Normalize(candidate) == Derive(email, secret)
}

// Token returns the activation proof token for (email, machineID): the full
// hex SHA-256 of "{email}|{machineID}|activated|{secret}". Stable across
// calls, so clients can verify it offline.
func Token(email, machineID, secret string) string {
	sum := sha256.Sum256([]byte(email + "|" + machineID + "|activated|" + secret))
	return hex.EncodeToString(sum[:])
}
