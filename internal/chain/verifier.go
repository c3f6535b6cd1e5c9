package chain

import (
	"math"

	"github.com/sheikh-saqib/tamper-evident-ledger/internal/models"
)

// Verify replays entries in timestamp order and stops at the first violation.
// Entries after the violation are left unverified.
func Verify(entries []models.LedgerEntry) models.IntegrityReport {
	return VerifyFrom(entries, GenesisHash, models.VerifyFailFast)
}

// VerifyAll checks every entry and reports every violation.
func VerifyAll(entries []models.LedgerEntry) models.IntegrityReport {
	return VerifyFrom(entries, GenesisHash, models.VerifyFullScan)
}

// VerifyFrom verifies entries whose first link must equal anchor. anchor is
// GenesisHash for a whole ledger, or the predecessor's hash for a range.
// The caller's slice is never reordered.
func VerifyFrom(entries []models.LedgerEntry, anchor string, mode models.VerifyMode) models.IntegrityReport {
	if mode == "" {
		mode = models.VerifyFailFast
	}
	report := models.IntegrityReport{
		Valid:          true,
		Mode:           mode,
		TotalChecked:   len(entries),
		IntegrityScore: 100,
	}
	if len(entries) == 0 {
		return report
	}

	sorted := SortByTimestamp(entries)
	verified := 0

	for i, e := range sorted {
		var found []models.IntegrityError

		if expected := HashEntry(e); expected != e.CurrentHash {
			found = append(found, models.IntegrityError{
				Index: i, EntryID: e.ID, Kind: models.KindHashMismatch,
				Expected: expected, Actual: e.CurrentHash,
			})
		}

		expectedPrev, kind := anchor, models.KindLinkMismatch
		if i == 0 && anchor == GenesisHash {
			kind = models.KindGenesisMismatch
		}
		if i > 0 {
			expectedPrev = sorted[i-1].CurrentHash
		}
		if e.PreviousHash != expectedPrev {
			found = append(found, models.IntegrityError{
				Index: i, EntryID: e.ID, Kind: kind,
				Expected: expectedPrev, Actual: e.PreviousHash,
			})
		}

		if len(found) == 0 {
			verified++
			continue
		}

		report.Valid = false
		if report.FirstError == nil {
			first := found[0]
			report.FirstError = &first
		}
		report.Errors = append(report.Errors, found...)
		if mode == models.VerifyFailFast {
			break
		}
	}

	report.VerifiedCount = verified
	report.IntegrityScore = score(verified, len(entries))
	return report
}

func score(verified, total int) float64 {
	if total == 0 {
		return 100
	}
	return math.Round(float64(verified)/float64(total)*100*100) / 100
}
