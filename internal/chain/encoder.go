package chain

import (
	"strconv"
	"strings"

	"github.com/sheikh-saqib/tamper-evident-ledger/internal/models"
)

var fieldEscaper = strings.NewReplacer(escapeChar, escapeChar+escapeChar, FieldDelimiter, escapeChar+FieldDelimiter)

// Encode serializes the hashed fields of e in protocol order:
//
//	id|amount|currency|categoryId|timestamp|billDueAt|previousHash|nonce
//
// CurrentHash, Version, LedgerID and DeletedAt are not part of the encoding.
func Encode(e models.LedgerEntry) []byte {
	billDueAt := ""
	if e.BillDueAt != nil {
		billDueAt = strconv.FormatInt(*e.BillDueAt, 10)
	}

	fields := []string{
		escapeField(e.ID),
		e.Amount.StringFixed(2),
		escapeField(e.Currency),
		escapeField(e.CategoryID),
		strconv.FormatInt(e.Timestamp, 10),
		billDueAt,
		escapeField(e.PreviousHash),
		strconv.FormatInt(e.Nonce, 10),
	}
	return []byte(strings.Join(fields, FieldDelimiter))
}

// escapeField is the identity for validated input, which never carries the
// delimiter or the escape character.
func escapeField(s string) string {
	if !strings.ContainsAny(s, FieldDelimiter+escapeChar) {
		return s
	}
	return fieldEscaper.Replace(s)
}
