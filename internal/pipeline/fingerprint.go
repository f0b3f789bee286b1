package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint computes the SHA-256 digest of the file bytes and renders it as
// a 0x-prefixed hex string. It doubles as the content identifier recorded on
// the ledger and as an integrity check against the pinned bytes.
func Fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return "0x" + hex.EncodeToString(sum[:])
}
