package chain

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/sheikh-saqib/tamper-evident-ledger/internal/models"
)

// Digest returns the lowercase hex SHA-256 of b.
func Digest(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// HashEntry computes the currentHash e should carry.
func HashEntry(e models.LedgerEntry) string {
	return Digest(Encode(e))
}

// HashPair combines two hex digests into a Merkle parent.
func HashPair(left, right string) string {
	return Digest([]byte(left + right))
}
