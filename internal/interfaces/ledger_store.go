package interfaces

import (
	"context"

	"github.com/sheikh-saqib/tamper-evident-ledger/internal/models"
)

// LedgerStore is the key-ordered record store behind the ledger. Entries are
// returned in append order; chain order is derived by sorting on timestamp.
type LedgerStore interface {
	// Tail returns the latest entry of the ledger in timestamp order, or nil
	// when the ledger is empty. Equal timestamps resolve to the last appended.
	Tail(ctx context.Context, ledgerID string) (*models.LedgerEntry, error)

	// SaveEntry appends entry only if the ledger tail hash still equals
	// expectedTail ("" for an empty ledger). Otherwise it returns
	// models.ErrTailChanged and stores nothing.
	SaveEntry(ctx context.Context, entry models.LedgerEntry, expectedTail string) error

	GetEntry(ctx context.Context, ledgerID, entryID string) (models.LedgerEntry, error)
	GetEntriesByLedger(ctx context.Context, ledgerID string) ([]models.LedgerEntry, error)
	GetLedgerIDs(ctx context.Context) ([]string, error)

	// ReplaceEntries overwrites existing entries by id as one atomic batch.
	// Readers see either none or all of the batch.
	ReplaceEntries(ctx context.Context, ledgerID string, entries []models.LedgerEntry) error
}
