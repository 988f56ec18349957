// Package anonymize de-identifies values with a one-way, unsalted digest so
// that equal inputs stay joinable after masking.
package anonymize

import (
	"crypto/sha256"
	"encoding/hex"
)

// DigestLen is the length of a masked value.
const DigestLen = sha256.Size * 2

// Mask returns the lowercase hex SHA-256 digest of value.
func Mask(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
