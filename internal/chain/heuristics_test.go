package chain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/tamper-evident-ledger/internal/models"
)

func fixedHeuristics(now time.Time) HeuristicsConfig {
	cfg := DefaultHeuristics()
	cfg.Now = func() time.Time { return now }
	return cfg
}

func entryAt(id string, amount string, ts int64) models.LedgerEntry {
	return models.LedgerEntry{ID: id, Amount: decimal.RequireFromString(amount), Currency: "INR", CategoryID: "food", Timestamp: ts}
}

func TestScanClean(t *testing.T) {
	now := time.UnixMilli(10_000_000)
	entries := []models.LedgerEntry{entryAt("a", "10", 1000), entryAt("b", "20", 2000)}
	report := Scan(entries, fixedHeuristics(now))
	if report.RiskScore != 0 || len(report.SuspiciousIDs) != 0 || len(report.Patterns) != 0 {
		t.Errorf("Scan = %+v, want clean report", report)
	}
}

func TestScanFlags(t *testing.T) {
	now := time.UnixMilli(10_000_000)
	nowMs := now.UnixMilli()

	tests := []struct {
		name    string
		entries []models.LedgerEntry
		wantID  string
		want    models.FindingKind
	}{
		{
			name:    "future timestamp",
			entries: []models.LedgerEntry{entryAt("f", "1", nowMs+2*60_000)},
			wantID:  "f", want: models.FindingFutureTimestamp,
		},
		{
			name:    "regression beyond tolerance",
			entries: []models.LedgerEntry{entryAt("a", "1", nowMs), entryAt("r", "1", nowMs-6*60_000)},
			wantID:  "r", want: models.FindingTimestampRegression,
		},
		{
			name:    "amount above ceiling",
			entries: []models.LedgerEntry{entryAt("big", "10000000.01", 1000)},
			wantID:  "big", want: models.FindingLargeAmount,
		},
		{
			name:    "negative amount",
			entries: []models.LedgerEntry{entryAt("neg", "-5", 1000)},
			wantID:  "neg", want: models.FindingNegativeAmount,
		},
		{
			name:    "duplicate id",
			entries: []models.LedgerEntry{entryAt("dup", "1", 1000), entryAt("dup", "2", 2000)},
			wantID:  "dup", want: models.FindingDuplicateID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := Scan(tt.entries, fixedHeuristics(now))
			found := false
			for _, f := range report.Findings {
				if f.EntryID == tt.wantID && f.Kind == tt.want {
					found = true
				}
			}
			if !found {
				t.Errorf("findings = %+v, want %s on %s", report.Findings, tt.want, tt.wantID)
			}
			if report.RiskScore != 20 {
				t.Errorf("RiskScore = %d, want 20", report.RiskScore)
			}
		})
	}
}

func TestScanToleratesSmallSkew(t *testing.T) {
	now := time.UnixMilli(10_000_000)
	nowMs := now.UnixMilli()
	entries := []models.LedgerEntry{
		entryAt("a", "1", nowMs),
		entryAt("b", "1", nowMs-4*60_000),
		entryAt("c", "1", nowMs+30_000),
	}
	if report := Scan(entries, fixedHeuristics(now)); len(report.Findings) != 0 {
		t.Errorf("findings = %+v, want none within tolerance", report.Findings)
	}
}

func TestScanScoreCountsDistinctEntriesAndCaps(t *testing.T) {
	now := time.UnixMilli(10_000_000)
	future := now.UnixMilli() + 10*60_000

	// one entry tripping two rules counts once
	report := Scan([]models.LedgerEntry{entryAt("x", "-20000000", future)}, fixedHeuristics(now))
	if report.RiskScore != 20 || len(report.Findings) != 2 {
		t.Errorf("score/findings = %d/%d, want 20/2", report.RiskScore, len(report.Findings))
	}

	var many []models.LedgerEntry
	for i := 0; i < 8; i++ {
		many = append(many, entryAt(string(rune('a'+i)), "-1", 1000))
	}
	report = Scan(many, fixedHeuristics(now))
	if report.RiskScore != 100 {
		t.Errorf("RiskScore = %d, want capped 100", report.RiskScore)
	}
	if len(report.SuspiciousIDs) != 8 {
		t.Errorf("SuspiciousIDs = %d, want 8", len(report.SuspiciousIDs))
	}
}
