// Package obfuscate turns sensitive identifiers into short, stable,
// non-reversible tokens suitable for inclusion in log lines.
package obfuscate

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// fingerprintSize is the number of raw bytes kept from the blake2b digest
// before hex-encoding. 6 bytes (12 hex chars) is enough to tell sessions
// apart in a log stream without printing the session id itself.
const fingerprintSize = 6

// SessionID returns a short, deterministic, non-reversible token derived
// from a session id. Two calls with the same id always produce the same
// token, so log lines for one session can be correlated without ever
// printing the id itself.
func SessionID(id string) string {
	sum := blake2b.Sum256([]byte(id))
	return hex.EncodeToString(sum[:fingerprintSize])
}
