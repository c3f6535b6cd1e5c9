package chain

import "github.com/sheikh-saqib/tamper-evident-ledger/internal/models"

// Rechain sorts entries by timestamp and recomputes links and hashes from
// fromIndex to the end. An entry whose own fields no longer match its stored
// hash has been edited and gets its Version bumped; successors that only
// receive a new previousHash keep theirs.
//
// The input is not modified. Rechaining a consistent suffix is a no-op.
func Rechain(entries []models.LedgerEntry, fromIndex int) []models.LedgerEntry {
	out := SortByTimestamp(entries)
	if fromIndex < 0 {
		fromIndex = 0
	}

	for i := fromIndex; i < len(out); i++ {
		e := &out[i]
		edited := HashEntry(*e) != e.CurrentHash

		if i == 0 {
			e.PreviousHash = GenesisHash
		} else {
			e.PreviousHash = out[i-1].CurrentHash
		}
		e.CurrentHash = HashEntry(*e)

		if edited {
			e.Version++
		}
	}
	return out
}
