package chain

import (
	"fmt"

	"github.com/sheikh-saqib/tamper-evident-ledger/internal/models"
)

// Link turns a draft into a chained entry. tail is the latest entry of the
// ledger in timestamp order, or nil for an empty ledger.
//
// The draft must already carry its ID and Timestamp. A draft older than the
// tail is rejected rather than reordered.
func Link(ledgerID string, draft models.Draft, tail *models.LedgerEntry) (models.LedgerEntry, error) {
	entry := models.LedgerEntry{
		ID:         draft.ID,
		LedgerID:   ledgerID,
		Amount:     draft.Amount,
		Currency:   draft.Currency,
		CategoryID: draft.CategoryID,
		Timestamp:  draft.Timestamp,
		Nonce:      0,
		Version:    1,
	}
	if draft.BillDueAt != nil {
		v := *draft.BillDueAt
		entry.BillDueAt = &v
	}

	if err := ValidateEntry(entry); err != nil {
		return models.LedgerEntry{}, err
	}

	entry.PreviousHash = GenesisHash
	if tail != nil {
		if entry.Timestamp < tail.Timestamp {
			return models.LedgerEntry{}, fmt.Errorf("%w: %w: draft %d < tail %d",
				models.ErrValidation, models.ErrTimestampRegression, entry.Timestamp, tail.Timestamp)
		}
		entry.PreviousHash = tail.CurrentHash
	}

	entry.CurrentHash = HashEntry(entry)
	return entry, nil
}
