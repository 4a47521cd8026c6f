// Package signing computes tamper-evidence digests for clinical records.
//
// A digest is the SHA-256 of the JSON encoding of a payload struct. Callers
// define the payload as a struct so field order is fixed by declaration and
// the encoding is canonical. It is not a legal digital signature.
package signing

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// Precision is the resolution timestamps are stored at. Signing times are
// truncated to it so a digest can be recomputed from a stored row.
const Precision = time.Microsecond

// Timestamp normalizes t for inclusion in a payload.
func Timestamp(t time.Time) string {
	return t.UTC().Truncate(Precision).Format(time.RFC3339Nano)
}

// Digest returns the hex SHA-256 of payload's JSON encoding.
func Digest(payload interface{}) (string, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode signing payload: %w", err)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// Matches compares two digests in constant time.
func Matches(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
