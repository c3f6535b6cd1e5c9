// Package storetest is a conformance suite every LedgerStore must pass.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/tamper-evident-ledger/internal/chain"
	interfaces "github.com/sheikh-saqib/tamper-evident-ledger/internal/interfaces"
	"github.com/sheikh-saqib/tamper-evident-ledger/internal/models"
)

// Run exercises newStore; each subtest gets a fresh store.
func Run(t *testing.T, newStore func(t *testing.T) interfaces.LedgerStore) {
	t.Run("empty ledger", func(t *testing.T) { testEmpty(t, newStore(t)) })
	t.Run("append and read back", func(t *testing.T) { testAppend(t, newStore(t)) })
	t.Run("tail compare-and-swap", func(t *testing.T) { testCAS(t, newStore(t)) })
	t.Run("duplicate id", func(t *testing.T) { testDuplicate(t, newStore(t)) })
	t.Run("replace batch", func(t *testing.T) { testReplace(t, newStore(t)) })
	t.Run("replace unknown entry is atomic", func(t *testing.T) { testReplaceUnknown(t, newStore(t)) })
	t.Run("ledgers are independent", func(t *testing.T) { testIsolation(t, newStore(t)) })
}

func link(t *testing.T, ledgerID, id string, ts int64, tail *models.LedgerEntry) models.LedgerEntry {
	t.Helper()
	due := ts + 86_400_000
	e, err := chain.Link(ledgerID, models.Draft{
		ID:         id,
		Amount:     decimal.RequireFromString("12.34"),
		Currency:   "INR",
		CategoryID: "food",
		Timestamp:  ts,
		BillDueAt:  &due,
	}, tail)
	if err != nil {
		t.Fatalf("link %s: %v", id, err)
	}
	return e
}

// Seed stores n linked entries in ledgerID and returns them in order.
func Seed(t *testing.T, store interfaces.LedgerStore, ledgerID string, n int) []models.LedgerEntry {
	t.Helper()
	ctx := context.Background()
	var out []models.LedgerEntry
	var tail *models.LedgerEntry
	for i := 0; i < n; i++ {
		e := link(t, ledgerID, fmt.Sprintf("%s-%d", ledgerID, i), int64(1000*(i+1)), tail)
		expected := ""
		if tail != nil {
			expected = tail.CurrentHash
		}
		if err := store.SaveEntry(ctx, e, expected); err != nil {
			t.Fatalf("SaveEntry %d: %v", i, err)
		}
		out = append(out, e)
		tail = &out[len(out)-1]
	}
	return out
}

func testEmpty(t *testing.T, store interfaces.LedgerStore) {
	ctx := context.Background()
	tail, err := store.Tail(ctx, "nobody")
	if err != nil || tail != nil {
		t.Errorf("Tail = %v, %v; want nil, nil", tail, err)
	}
	entries, err := store.GetEntriesByLedger(ctx, "nobody")
	if err != nil || len(entries) != 0 {
		t.Errorf("GetEntriesByLedger = %d, %v; want 0, nil", len(entries), err)
	}
	if _, err := store.GetEntry(ctx, "nobody", "x"); !errors.Is(err, models.ErrEntryNotFound) {
		t.Errorf("GetEntry error = %v, want ErrEntryNotFound", err)
	}
}

func testAppend(t *testing.T, store interfaces.LedgerStore) {
	ctx := context.Background()
	want := Seed(t, store, "alice", 3)

	got, err := store.GetEntriesByLedger(ctx, "alice")
	if err != nil {
		t.Fatalf("GetEntriesByLedger: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	for i := range want {
		if got[i].ID != want[i].ID || got[i].CurrentHash != want[i].CurrentHash {
			t.Errorf("entry %d = %s/%s, want %s/%s", i, got[i].ID, got[i].CurrentHash, want[i].ID, want[i].CurrentHash)
		}
		if !got[i].Amount.Equal(want[i].Amount) {
			t.Errorf("entry %d amount = %s, want %s", i, got[i].Amount, want[i].Amount)
		}
		if got[i].BillDueAt == nil || *got[i].BillDueAt != *want[i].BillDueAt {
			t.Errorf("entry %d billDueAt not round-tripped", i)
		}
	}
	if r := chain.Verify(got); !r.Valid {
		t.Errorf("stored chain does not verify: %+v", r.FirstError)
	}

	tail, err := store.Tail(ctx, "alice")
	if err != nil || tail == nil || tail.ID != want[2].ID {
		t.Errorf("Tail = %v, %v; want %s", tail, err, want[2].ID)
	}

	one, err := store.GetEntry(ctx, "alice", want[1].ID)
	if err != nil || one.CurrentHash != want[1].CurrentHash {
		t.Errorf("GetEntry = %v, %v", one.ID, err)
	}

	ids, err := store.GetLedgerIDs(ctx)
	if err != nil || len(ids) != 1 || ids[0] != "alice" {
		t.Errorf("GetLedgerIDs = %v, %v; want [alice]", ids, err)
	}
}

func testCAS(t *testing.T, store interfaces.LedgerStore) {
	ctx := context.Background()
	entries := Seed(t, store, "bob", 2)

	stale := link(t, "bob", "bob-stale", 5000, &entries[0])
	if err := store.SaveEntry(ctx, stale, entries[0].CurrentHash); !errors.Is(err, models.ErrTailChanged) {
		t.Errorf("stale SaveEntry error = %v, want ErrTailChanged", err)
	}

	genesis := link(t, "bob", "bob-genesis", 5000, nil)
	if err := store.SaveEntry(ctx, genesis, ""); !errors.Is(err, models.ErrTailChanged) {
		t.Errorf("genesis on non-empty ledger error = %v, want ErrTailChanged", err)
	}

	got, _ := store.GetEntriesByLedger(ctx, "bob")
	if len(got) != 2 {
		t.Errorf("rejected appends were stored: len = %d", len(got))
	}
}

func testDuplicate(t *testing.T, store interfaces.LedgerStore) {
	ctx := context.Background()
	entries := Seed(t, store, "carol", 1)

	dup := link(t, "carol", entries[0].ID, 9000, &entries[0])
	if err := store.SaveEntry(ctx, dup, entries[0].CurrentHash); !errors.Is(err, models.ErrDuplicateEntry) {
		t.Errorf("duplicate SaveEntry error = %v, want ErrDuplicateEntry", err)
	}
}

func testReplace(t *testing.T, store interfaces.LedgerStore) {
	ctx := context.Background()
	entries := Seed(t, store, "dave", 4)

	edited := models.CloneEntries(entries)
	edited[1].Amount = decimal.RequireFromString("99.99")
	deleted := int64(123)
	edited[3].DeletedAt = &deleted
	rechained := chain.Rechain(edited, 1)

	if err := store.ReplaceEntries(ctx, "dave", rechained[1:]); err != nil {
		t.Fatalf("ReplaceEntries: %v", err)
	}

	got, err := store.GetEntriesByLedger(ctx, "dave")
	if err != nil {
		t.Fatalf("GetEntriesByLedger: %v", err)
	}
	if r := chain.Verify(got); !r.Valid {
		t.Errorf("replaced chain does not verify: %+v", r.FirstError)
	}
	if !got[1].Amount.Equal(decimal.RequireFromString("99.99")) || got[1].Version != 2 {
		t.Errorf("entry 1 = %s v%d, want 99.99 v2", got[1].Amount, got[1].Version)
	}
	if got[3].DeletedAt == nil || *got[3].DeletedAt != deleted {
		t.Error("tombstone not persisted")
	}
}

func testReplaceUnknown(t *testing.T, store interfaces.LedgerStore) {
	ctx := context.Background()
	entries := Seed(t, store, "erin", 2)

	batch := models.CloneEntries(entries)
	batch[0].Currency = "USD"
	batch[1].ID = "missing"

	if err := store.ReplaceEntries(ctx, "erin", batch); !errors.Is(err, models.ErrEntryNotFound) {
		t.Errorf("ReplaceEntries error = %v, want ErrEntryNotFound", err)
	}
	got, _ := store.GetEntry(ctx, "erin", entries[0].ID)
	if got.Currency != "INR" {
		t.Errorf("partial batch became visible: currency = %s", got.Currency)
	}
}

func testIsolation(t *testing.T, store interfaces.LedgerStore) {
	ctx := context.Background()
	Seed(t, store, "frank", 2)
	Seed(t, store, "grace", 3)

	f, _ := store.GetEntriesByLedger(ctx, "frank")
	g, _ := store.GetEntriesByLedger(ctx, "grace")
	if len(f) != 2 || len(g) != 3 {
		t.Errorf("ledger sizes = %d/%d, want 2/3", len(f), len(g))
	}
	if f[0].PreviousHash != chain.GenesisHash || g[0].PreviousHash != chain.GenesisHash {
		t.Error("each ledger must start from genesis")
	}
	ids, _ := store.GetLedgerIDs(ctx)
	if len(ids) != 2 || ids[0] != "frank" || ids[1] != "grace" {
		t.Errorf("GetLedgerIDs = %v, want [frank grace]", ids)
	}
}
