package pseudonym

import (
	"crypto/sha256"
	"encoding/hex"
)

// Digest derives the pseudonym for a raw id: lowercase hex SHA-256 of its
// bytes, unsalted. It must stay a pure function of rawID: concurrent
// first-sight writers rely on computing the same value.
func Digest(rawID string) string {
	sum := sha256.Sum256([]byte(rawID))

	return hex.EncodeToString(sum[:])
}
