package apikey

import (
	"crypto/sha256"
	"encoding/hex"
)

// FingerprintLength is the length of a fingerprint in hex characters.
const FingerprintLength = sha256.Size * 2

// Fingerprint returns the lowercase hex SHA-256 digest of value.
// Every string, including the empty one, has a fingerprint.
func Fingerprint(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
