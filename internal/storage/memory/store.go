package memory

import (
	"context" // request-scoped cancellation
	"fmt"
	"sort"
	"sync" // guards the ledgers map

	interfaces "github.com/sheikh-saqib/tamper-evident-ledger/internal/interfaces"
	"github.com/sheikh-saqib/tamper-evident-ledger/internal/models"
)

// MemoryLedgerStore is an in-memory implementation of interfaces.LedgerStore.
// Each ledger is a slice in append order; every read hands out deep copies.
type MemoryLedgerStore struct {
	mu      sync.RWMutex                    // protects ledgers
	ledgers map[string][]models.LedgerEntry // ledger id -> entries in append order
}

// NewMemoryLedgerStore creates and returns a new MemoryLedgerStore instance
func NewMemoryLedgerStore() *MemoryLedgerStore {
	return &MemoryLedgerStore{
		ledgers: make(map[string][]models.LedgerEntry),
	}
}

// Tail returns the latest entry by timestamp; ties go to the last appended.
func (m *MemoryLedgerStore) Tail(ctx context.Context, ledgerID string) (*models.LedgerEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	tail := tailOf(m.ledgers[ledgerID])
	if tail == nil {
		return nil, nil
	}
	c := tail.Clone()
	return &c, nil
}

func tailOf(entries []models.LedgerEntry) *models.LedgerEntry {
	var tail *models.LedgerEntry
	for i := range entries {
		if tail == nil || entries[i].Timestamp >= tail.Timestamp {
			tail = &entries[i]
		}
	}
	return tail
}

// SaveEntry appends entry if the tail is still expectedTail.
func (m *MemoryLedgerStore) SaveEntry(ctx context.Context, entry models.LedgerEntry, expectedTail string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()         // lock the mutex to prevent concurrent writes
	defer m.mu.Unlock() // unlock automatically when function exits (even if error occurs)

	entries := m.ledgers[entry.LedgerID]

	current := ""
	if tail := tailOf(entries); tail != nil {
		current = tail.CurrentHash
	}
	if current != expectedTail {
		return models.ErrTailChanged
	}
	for _, e := range entries {
		if e.ID == entry.ID {
			return fmt.Errorf("%w: %s", models.ErrDuplicateEntry, entry.ID)
		}
	}

	m.ledgers[entry.LedgerID] = append(entries, entry.Clone())
	return nil
}

func (m *MemoryLedgerStore) GetEntry(ctx context.Context, ledgerID, entryID string) (models.LedgerEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, e := range m.ledgers[ledgerID] {
		if e.ID == entryID {
			return e.Clone(), nil
		}
	}
	return models.LedgerEntry{}, fmt.Errorf("%w: %s", models.ErrEntryNotFound, entryID)
}

// GetEntriesByLedger returns a copy of the ledger so callers can't modify internal state.
func (m *MemoryLedgerStore) GetEntriesByLedger(ctx context.Context, ledgerID string) ([]models.LedgerEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	return models.CloneEntries(m.ledgers[ledgerID]), nil
}

func (m *MemoryLedgerStore) GetLedgerIDs(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.ledgers))
	for id := range m.ledgers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// ReplaceEntries swaps in the whole batch under one write lock, so readers
// never observe a half-rechained suffix.
func (m *MemoryLedgerStore) ReplaceEntries(ctx context.Context, ledgerID string, entries []models.LedgerEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	current := m.ledgers[ledgerID]
	index := make(map[string]int, len(current))
	for i, e := range current {
		index[e.ID] = i
	}

	// validate the whole batch before touching anything
	for _, e := range entries {
		if _, ok := index[e.ID]; !ok {
			return fmt.Errorf("%w: %s", models.ErrEntryNotFound, e.ID)
		}
	}

	next := models.CloneEntries(current)
	for _, e := range entries {
		c := e.Clone()
		c.LedgerID = ledgerID
		next[index[e.ID]] = c
	}
	m.ledgers[ledgerID] = next
	return nil
}

// Compile-time check: ensure MemoryLedgerStore implements LedgerStore interface
var _ interfaces.LedgerStore = (*MemoryLedgerStore)(nil)
