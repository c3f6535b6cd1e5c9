package chain

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/tamper-evident-ledger/internal/models"
)

// HeuristicsConfig tunes the tamper scan.
type HeuristicsConfig struct {
	FutureSkew          time.Duration
	RegressionTolerance time.Duration
	AmountCeiling       decimal.Decimal
	WeightPerEntry      int
	Now                 func() time.Time
}

// DefaultHeuristics returns the stock tolerances: one minute of future skew,
// five minutes of regression and a ceiling of 10,000,000.
func DefaultHeuristics() HeuristicsConfig {
	return HeuristicsConfig{
		FutureSkew:          time.Minute,
		RegressionTolerance: 5 * time.Minute,
		AmountCeiling:       decimal.NewFromInt(10_000_000),
		WeightPerEntry:      20,
		Now:                 time.Now,
	}
}

// Scan flags suspicious entries. It is advisory and never fails.
//
// Regression is judged in the order entries are given (storage append
// order), since timestamp order cannot regress by construction.
func Scan(entries []models.LedgerEntry, cfg HeuristicsConfig) models.RiskReport {
	report := models.RiskReport{SuspiciousIDs: []string{}, Patterns: []string{}, Findings: []models.Finding{}}
	if len(entries) == 0 {
		return report
	}

	now := time.Now
	if cfg.Now != nil {
		now = cfg.Now
	}
	futureLimit := now().Add(cfg.FutureSkew).UnixMilli()
	tolerance := cfg.RegressionTolerance.Milliseconds()

	flagged := make(map[string]struct{})
	add := func(id string, kind models.FindingKind, detail string) {
		flagged[id] = struct{}{}
		report.Findings = append(report.Findings, models.Finding{EntryID: id, Kind: kind, Detail: detail})
		report.Patterns = append(report.Patterns, detail)
	}

	for i, e := range entries {
		if e.Timestamp > futureLimit {
			add(e.ID, models.FindingFutureTimestamp, fmt.Sprintf("Future timestamp detected in transaction %s", e.ID))
		}
		if i > 0 && e.Timestamp < entries[i-1].Timestamp-tolerance {
			add(e.ID, models.FindingTimestampRegression, fmt.Sprintf("Timestamp regression detected in transaction %s", e.ID))
		}
		if !cfg.AmountCeiling.IsZero() && e.Amount.GreaterThan(cfg.AmountCeiling) {
			add(e.ID, models.FindingLargeAmount, fmt.Sprintf("Unusually large amount detected in transaction %s", e.ID))
		}
		if e.Amount.IsNegative() {
			add(e.ID, models.FindingNegativeAmount, fmt.Sprintf("Negative amount detected in transaction %s", e.ID))
		}
	}

	counts := make(map[string]int, len(entries))
	var order []string
	for _, e := range entries {
		if counts[e.ID] == 0 {
			order = append(order, e.ID)
		}
		counts[e.ID]++
	}
	for _, id := range order {
		if counts[id] > 1 {
			add(id, models.FindingDuplicateID, fmt.Sprintf("Duplicate transaction ID detected: %s", id))
		}
	}

	for id := range flagged {
		report.SuspiciousIDs = append(report.SuspiciousIDs, id)
	}
	sort.Strings(report.SuspiciousIDs)
	report.RiskScore = min(100, len(flagged)*cfg.WeightPerEntry)
	return report
}
