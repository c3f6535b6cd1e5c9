package chain

import (
	"sort"

	"github.com/sheikh-saqib/tamper-evident-ledger/internal/models"
)

// SortByTimestamp returns a deep copy of entries in chain order. Equal
// timestamps keep their input order, which stores supply as append order.
func SortByTimestamp(entries []models.LedgerEntry) []models.LedgerEntry {
	sorted := models.CloneEntries(entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp < sorted[j].Timestamp
	})
	return sorted
}

// IndexOf returns the position of id in a sorted slice, or -1.
func IndexOf(sorted []models.LedgerEntry, id string) int {
	for i, e := range sorted {
		if e.ID == id {
			return i
		}
	}
	return -1
}
