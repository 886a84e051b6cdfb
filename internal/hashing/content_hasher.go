// Package hashing stamps record content with a digest and size so stored
// versions can later be checked for tampering.
package hashing

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hash returns the hex encoded SHA-256 digest of content.
func Hash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// Size returns the byte length of content.
func Size(content string) int64 {
	return int64(len(content))
}

// Verify reports whether content still matches the digest recorded for it.
// A mismatch is reported, never corrected.
func Verify(content, digest string) bool {
	return Hash(content) == digest
}
