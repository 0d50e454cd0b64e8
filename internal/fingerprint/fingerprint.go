// Package fingerprint derives the content-addressed cache key of a transcript.
//
// The digest must match the backend byte for byte: SHA-256 over the UTF-8
// bytes of the transcript, rendered as lowercase hex.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
)

// Size is the length of a fingerprint in hex characters.
const Size = sha256.Size * 2

// Sum returns the fingerprint of a transcript.
func Sum(text string) string {
	return SumBytes([]byte(text))
}

// SumBytes returns the fingerprint of raw transcript bytes.
func SumBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Valid reports whether fp looks like a fingerprint produced by Sum.
func Valid(fp string) bool {
	if len(fp) != Size {
		return false
	}
	for i := 0; i < len(fp); i++ {
		c := fp[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
