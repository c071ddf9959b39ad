package security

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// ContentHash returns the hex BLAKE2b-256 digest of v's JSON encoding.
// Map keys are sorted by encoding/json, so equal values hash equally.
func ContentHash(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode value for hashing: %w", err)
	}
	return HashBytes(data), nil
}

// HashBytes returns the hex BLAKE2b-256 digest of data
func HashBytes(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// VerifyContentHash reports whether v still matches a previously computed hash
func VerifyContentHash(v interface{}, expected string) (bool, error) {
	actual, err := ContentHash(v)
	if err != nil {
		return false, err
	}
	return actual == expected, nil
}
