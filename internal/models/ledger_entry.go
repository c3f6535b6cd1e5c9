package models

import (
	"github.com/shopspring/decimal"
)

// LedgerEntry is one hash-linked financial record in an owner's ledger.
//
// Only ID, Amount, Currency, CategoryID, Timestamp, BillDueAt, PreviousHash and
// Nonce feed the hash. LedgerID, Version and DeletedAt are bookkeeping.
type LedgerEntry struct {
	ID           string          `json:"id"`
	LedgerID     string          `json:"ledgerId"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
	CategoryID   string          `json:"categoryId"`
	Timestamp    int64           `json:"timestamp"` // ms since epoch
	BillDueAt    *int64          `json:"billDueAt,omitempty"`
	PreviousHash string          `json:"previousHash"`
	CurrentHash  string          `json:"currentHash"`
	Nonce        int64           `json:"nonce"`
	Version      int64           `json:"version"`
	DeletedAt    *int64          `json:"deletedAt,omitempty"`
}

// Deleted reports whether the entry has been tombstoned.
func (e LedgerEntry) Deleted() bool {
	return e.DeletedAt != nil
}

// Clone returns a copy that shares no pointers with e.
func (e LedgerEntry) Clone() LedgerEntry {
	c := e
	if e.BillDueAt != nil {
		v := *e.BillDueAt
		c.BillDueAt = &v
	}
	if e.DeletedAt != nil {
		v := *e.DeletedAt
		c.DeletedAt = &v
	}
	return c
}

// CloneEntries deep-copies a slice of entries.
func CloneEntries(entries []LedgerEntry) []LedgerEntry {
	out := make([]LedgerEntry, len(entries))
	for i, e := range entries {
		out[i] = e.Clone()
	}
	return out
}
