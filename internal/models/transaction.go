package models

import "github.com/shopspring/decimal"

// Draft represents the intent to record a transaction. The ledger turns it
// into a LedgerEntry by linking it to the current tail.
type Draft struct {
	ID         string          `json:"id,omitempty"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	CategoryID string          `json:"categoryId"`
	Timestamp  int64           `json:"timestamp,omitempty"`
	BillDueAt  *int64          `json:"billDueAt,omitempty"`
}

// EntryPatch carries a partial edit. Nil fields are left untouched.
type EntryPatch struct {
	Amount         *decimal.Decimal `json:"amount,omitempty"`
	Currency       *string          `json:"currency,omitempty"`
	CategoryID     *string          `json:"categoryId,omitempty"`
	Timestamp      *int64           `json:"timestamp,omitempty"`
	BillDueAt      *int64           `json:"billDueAt,omitempty"`
	ClearBillDueAt bool             `json:"clearBillDueAt,omitempty"`
}

// Apply returns a copy of e with the patch applied. Hashes are not touched.
func (p EntryPatch) Apply(e LedgerEntry) LedgerEntry {
	out := e.Clone()
	if p.Amount != nil {
		out.Amount = *p.Amount
	}
	if p.Currency != nil {
		out.Currency = *p.Currency
	}
	if p.CategoryID != nil {
		out.CategoryID = *p.CategoryID
	}
	if p.Timestamp != nil {
		out.Timestamp = *p.Timestamp
	}
	if p.ClearBillDueAt {
		out.BillDueAt = nil
	} else if p.BillDueAt != nil {
		v := *p.BillDueAt
		out.BillDueAt = &v
	}
	return out
}

// Empty reports whether the patch changes nothing.
func (p EntryPatch) Empty() bool {
	return p.Amount == nil && p.Currency == nil && p.CategoryID == nil &&
		p.Timestamp == nil && p.BillDueAt == nil && !p.ClearBillDueAt
}
