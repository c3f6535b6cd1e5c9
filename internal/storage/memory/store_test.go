package memory

import (
	"context"
	"testing"

	interfaces "github.com/sheikh-saqib/tamper-evident-ledger/internal/interfaces"
	"github.com/sheikh-saqib/tamper-evident-ledger/internal/storage/storetest"
)

func TestMemoryLedgerStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) interfaces.LedgerStore {
		return NewMemoryLedgerStore()
	})
}

func TestReadsAreCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryLedgerStore()
	storetest.Seed(t, store, "alice", 2)

	entries, _ := store.GetEntriesByLedger(ctx, "alice")
	if len(entries) == 0 {
		t.Fatal("expected seeded entries")
	}
	entries[0].Currency = "XXX"
	*entries[0].BillDueAt = -1

	again, _ := store.GetEntriesByLedger(ctx, "alice")
	if again[0].Currency == "XXX" || *again[0].BillDueAt == -1 {
		t.Error("mutating a read leaked into the store")
	}
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewMemoryLedgerStore().GetEntriesByLedger(ctx, "x"); err == nil {
		t.Error("expected context error")
	}
}
