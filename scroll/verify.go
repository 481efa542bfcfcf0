package scroll

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// VerificationStatus is the outcome of comparing recovered bytes against
// an expected digest. A failed comparison is surfaced as data, never as
// an error, so callers can still display unverified content with a
// warning.
type VerificationStatus string

const (
	VerificationPassed       VerificationStatus = "passed"
	VerificationFailed       VerificationStatus = "failed"
	VerificationNotAttempted VerificationStatus = "notAttempted"
)

// HashHex returns the lowercase hex SHA-256 of data.
func HashHex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Verify hashes data and compares against the expected hex digest,
// case-insensitively. An empty expectation is not attempted, which is
// distinct from passing.
func Verify(data []byte, expectedHex string) (VerificationStatus, string) {
	sum := HashHex(data)
	if expectedHex == "" {
		return VerificationNotAttempted, sum
	}
	if strings.EqualFold(sum, expectedHex) {
		return VerificationPassed, sum
	}
	return VerificationFailed, sum
}
