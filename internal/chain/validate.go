package chain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/tamper-evident-ledger/internal/models"
)

const (
	maxIDLength       = 128
	maxCategoryLength = 50
)

// ValidateEntry checks the hashed fields of e. All problems are joined into
// one error that matches models.ErrValidation.
func ValidateEntry(e models.LedgerEntry) error {
	var errs []error

	if e.ID == "" {
		errs = append(errs, &models.ValidationError{Field: "id", Reason: "must not be empty"})
	} else if len(e.ID) > maxIDLength {
		errs = append(errs, &models.ValidationError{Field: "id", Reason: fmt.Sprintf("must be at most %d characters", maxIDLength)})
	} else if hasReserved(e.ID) {
		errs = append(errs, reservedErr("id"))
	}

	if e.Amount.Cmp(decimal.Zero) <= 0 {
		errs = append(errs, &models.ValidationError{Field: "amount", Reason: "must be positive"})
	} else if !e.Amount.Equal(e.Amount.Round(2)) {
		errs = append(errs, &models.ValidationError{Field: "amount", Reason: "must have at most 2 decimal places"})
	}

	if !isCurrencyCode(e.Currency) {
		errs = append(errs, &models.ValidationError{Field: "currency", Reason: "must be a 3-letter upper-case code"})
	}

	switch {
	case e.CategoryID == "":
		errs = append(errs, &models.ValidationError{Field: "categoryId", Reason: "must not be empty"})
	case len(e.CategoryID) > maxCategoryLength:
		errs = append(errs, &models.ValidationError{Field: "categoryId", Reason: fmt.Sprintf("must be at most %d characters", maxCategoryLength)})
	case hasReserved(e.CategoryID):
		errs = append(errs, reservedErr("categoryId"))
	}

	if e.Timestamp <= 0 {
		errs = append(errs, &models.ValidationError{Field: "timestamp", Reason: "must be a positive epoch millisecond value"})
	}
	if e.BillDueAt != nil && *e.BillDueAt < 0 {
		errs = append(errs, &models.ValidationError{Field: "billDueAt", Reason: "must not be negative"})
	}

	return errors.Join(errs...)
}

func hasReserved(s string) bool {
	return strings.ContainsAny(s, FieldDelimiter+escapeChar)
}

func reservedErr(field string) error {
	return &models.ValidationError{Field: field, Reason: fmt.Sprintf("must not contain %q or %q", FieldDelimiter, escapeChar)}
}

func isCurrencyCode(s string) bool {
	if len(s) != 3 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < 'A' || s[i] > 'Z' {
			return false
		}
	}
	return true
}
