package models

import "github.com/shopspring/decimal"

// ErrorKind classifies an integrity violation.
type ErrorKind string

const (
	KindHashMismatch    ErrorKind = "hash_mismatch"
	KindLinkMismatch    ErrorKind = "link_mismatch"
	KindGenesisMismatch ErrorKind = "genesis_mismatch"
)

// IsLink reports whether the violation concerns previousHash rather than the
// entry's own hash.
func (k ErrorKind) IsLink() bool {
	return k == KindLinkMismatch || k == KindGenesisMismatch
}

// IntegrityError pinpoints one violation. Index is the position in timestamp order.
type IntegrityError struct {
	Index    int       `json:"index"`
	EntryID  string    `json:"entryId"`
	Kind     ErrorKind `json:"kind"`
	Expected string    `json:"expected"`
	Actual   string    `json:"actual"`
}

// VerifyMode selects between stopping at the first violation and scanning everything.
type VerifyMode string

const (
	VerifyFailFast VerifyMode = "fail_fast"
	VerifyFullScan VerifyMode = "full_scan"
)

// IntegrityReport is the result of verifying a set of entries. A failed
// verification is a report, not an error.
type IntegrityReport struct {
	Valid          bool             `json:"valid"`
	Mode           VerifyMode       `json:"mode"`
	TotalChecked   int              `json:"totalChecked"`
	VerifiedCount  int              `json:"verifiedCount"`
	IntegrityScore float64          `json:"integrityScore"`
	FirstError     *IntegrityError  `json:"firstError,omitempty"`
	Errors         []IntegrityError `json:"errors,omitempty"`
}

// Offset shifts error indexes by n, turning positions within a verified
// range into positions in the whole ledger's sorted order.
func (r *IntegrityReport) Offset(n int) {
	if n == 0 {
		return
	}
	if r.FirstError != nil {
		first := *r.FirstError
		first.Index += n
		r.FirstError = &first
	}
	for i := range r.Errors {
		r.Errors[i].Index += n
	}
}

// FindingKind names a tamper heuristic.
type FindingKind string

const (
	FindingFutureTimestamp     FindingKind = "future_timestamp"
	FindingTimestampRegression FindingKind = "timestamp_regression"
	FindingLargeAmount         FindingKind = "large_amount"
	FindingNegativeAmount      FindingKind = "negative_amount"
	FindingDuplicateID         FindingKind = "duplicate_id"
)

// ClockAnomaly reports whether the finding is a clock warning rather than a data anomaly.
func (k FindingKind) ClockAnomaly() bool {
	return k == FindingFutureTimestamp || k == FindingTimestampRegression
}

// Finding is one flagged entry.
type Finding struct {
	EntryID string      `json:"entryId"`
	Kind    FindingKind `json:"kind"`
	Detail  string      `json:"detail"`
}

// RiskReport is advisory output of the tamper heuristics.
type RiskReport struct {
	SuspiciousIDs []string  `json:"suspiciousIds"`
	Patterns      []string  `json:"patterns"`
	Findings      []Finding `json:"findings"`
	RiskScore     int       `json:"riskScore"`
}

// Summary aggregates a whole ledger.
type Summary struct {
	LedgerID           string          `json:"ledgerId"`
	TotalEntries       int             `json:"totalEntries"`
	DeletedEntries     int             `json:"deletedEntries"`
	TotalValue         decimal.Decimal `json:"totalValue"`
	AverageBlockTimeMs float64         `json:"averageBlockTimeMs"`
	MerkleRoot         string          `json:"merkleRoot"`
	GenesisHash        string          `json:"genesisHash"`
	TailHash           string          `json:"tailHash"`
	ProtocolVersion    int             `json:"protocolVersion"`
	Integrity          IntegrityReport `json:"integrity"`
	Risk               RiskReport      `json:"risk"`
}
