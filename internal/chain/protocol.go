// Package chain holds the tamper-evident ledger protocol: canonical encoding,
// hashing, linking, verification, rechaining, Merkle commitments and the
// advisory tamper heuristics. Everything here is pure and safe to call
// concurrently; persistence and locking live in the ledger service.
package chain

import "strings"

// Protocol constants. Changing any of them invalidates every stored hash and
// requires bumping ProtocolVersion together with a migration.
const (
	ProtocolVersion = 1
	FieldDelimiter  = "|"
	escapeChar      = `\`
	emptyMarker     = "empty"
)

// GenesisHash is the previousHash of the first entry of every ledger.
var GenesisHash = strings.Repeat("0", 64)

// EmptyRoot is the Merkle root of a day with no entries.
var EmptyRoot = Digest([]byte(emptyMarker))
