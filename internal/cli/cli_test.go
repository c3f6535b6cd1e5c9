package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/tamper-evident-ledger/internal/chain"
	"github.com/sheikh-saqib/tamper-evident-ledger/internal/models"
)

func scenario(t *testing.T) []models.LedgerEntry {
	t.Helper()
	a, err := chain.Link("user-1", models.Draft{
		ID: "tx-a", Amount: decimal.RequireFromString("100.50"), Currency: "INR", CategoryID: "food", Timestamp: 1000,
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	b, err := chain.Link("user-1", models.Draft{
		ID: "tx-b", Amount: decimal.RequireFromString("5000"), Currency: "INR", CategoryID: "salary", Timestamp: 2000,
	}, &a)
	if err != nil {
		t.Fatal(err)
	}
	return []models.LedgerEntry{a, b}
}

func writeExport(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "export.json")
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVerifyValidExport(t *testing.T) {
	path := writeExport(t, scenario(t))

	out, err := run(t, "verify", path)
	if err != nil {
		t.Fatalf("verify: %v\n%s", err, out)
	}
	var report models.IntegrityReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !report.Valid || report.VerifiedCount != 2 {
		t.Errorf("report = %+v", report)
	}
}

func TestVerifyAcceptsWrappedExport(t *testing.T) {
	path := writeExport(t, map[string]any{"entries": scenario(t)})
	if out, err := run(t, "verify", path); err != nil {
		t.Fatalf("verify: %v\n%s", err, out)
	}
}

func TestVerifyTamperedExport(t *testing.T) {
	entries := scenario(t)
	entries[0].Amount = decimal.RequireFromString("1.00")
	entries[1].CategoryID = "bonus"
	path := writeExport(t, entries)

	out, err := run(t, "verify", "--all", path)
	if !errors.Is(err, errChainInvalid) {
		t.Fatalf("error = %v, want errChainInvalid", err)
	}
	var report models.IntegrityReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if len(report.Errors) != 2 || report.Mode != models.VerifyFullScan || report.VerifiedCount != 0 {
		t.Errorf("errors = %+v", report.Errors)
	}
}

func TestRootCommand(t *testing.T) {
	path := writeExport(t, scenario(t))

	out, err := run(t, "root", path, "--date", "1970-01-01", "--entry", "tx-a")
	if err != nil {
		t.Fatalf("root: %v\n%s", err, out)
	}
	var resp struct {
		Root  string            `json:"root"`
		Leaf  string            `json:"leaf"`
		Proof []chain.ProofStep `json:"proof"`
	}
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Root != "d2d355f644aae60660eaeedd8b890eaec51746d82eb91bfa65f907aefd2f7664" {
		t.Errorf("root = %s", resp.Root)
	}
	if !chain.VerifyProof(resp.Leaf, resp.Proof, resp.Root) {
		t.Error("proof does not verify")
	}

	if _, err := run(t, "root", path); err == nil {
		t.Error("expected missing --date to fail")
	}
	if _, err := run(t, "root", path, "--date", "2024-01-01", "--entry", "tx-a"); err == nil {
		t.Error("expected entry outside the day to fail")
	}
}

func TestScanCommand(t *testing.T) {
	entries := scenario(t)
	path := writeExport(t, entries)

	out, err := run(t, "scan", path, "--ceiling", "1000")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	var report models.RiskReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if report.RiskScore != 20 || len(report.SuspiciousIDs) != 1 || report.SuspiciousIDs[0] != "tx-b" {
		t.Errorf("report = %+v", report)
	}

	if _, err := run(t, "scan", path, "--ceiling", "lots"); err == nil {
		t.Error("expected invalid ceiling to fail")
	}
}

func TestHashCommand(t *testing.T) {
	entries := scenario(t)
	entries[1].CategoryID = "bonus"
	path := writeExport(t, entries)

	out, err := run(t, "hash", path)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("output:\n%s", out)
	}
	if !strings.HasSuffix(strings.TrimSpace(lines[1]), "true") || !strings.HasSuffix(strings.TrimSpace(lines[2]), "false") {
		t.Errorf("unexpected match column:\n%s", out)
	}
}

func TestRechainCommand(t *testing.T) {
	entries := scenario(t)
	entries[0].Amount = decimal.RequireFromString("1.00")
	path := writeExport(t, entries)

	out, err := run(t, "rechain", path, "--from", "tx-a")
	if err != nil {
		t.Fatalf("rechain: %v", err)
	}
	var repaired []models.LedgerEntry
	if err := json.Unmarshal([]byte(out), &repaired); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if r := chain.Verify(repaired); !r.Valid {
		t.Errorf("rechained export invalid: %+v", r.FirstError)
	}
	if repaired[0].Version != 2 || repaired[1].Version != 1 {
		t.Errorf("versions = %d/%d, want 2/1", repaired[0].Version, repaired[1].Version)
	}

	if _, err := run(t, "rechain", path, "--from", "nope"); !errors.Is(err, models.ErrEntryNotFound) {
		t.Errorf("error = %v, want ErrEntryNotFound", err)
	}
}

func TestStdinInput(t *testing.T) {
	data, _ := json.Marshal(scenario(t))
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetIn(bytes.NewReader(data))
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"verify", "-"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("verify stdin: %v\n%s", err, out.String())
	}
}
