package util

import (
	"crypto/sha256"
	"encoding/hex"
)

// SHA256Hex returns the lowercase hex SHA-256 of b.
func SHA256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// OwnerKey is the storage namespace for an owner. Guest ids carry a "guest:"
// prefix and arbitrary client text, so the id is hashed rather than used raw.
func OwnerKey(ownerID string) string {
	return SHA256Hex([]byte(ownerID))
}
