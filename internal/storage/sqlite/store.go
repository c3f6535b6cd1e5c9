package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	interfaces "github.com/sheikh-saqib/tamper-evident-ledger/internal/interfaces"
	"github.com/sheikh-saqib/tamper-evident-ledger/internal/models"
)

const entryColumns = `id, ledger_id, amount, currency, category_id, timestamp_ms, bill_due_at,
	previous_hash, current_hash, nonce, version, deleted_at`

// SQLiteLedgerStore keeps ledgers in a single SQLite file. One connection
// serializes all access, which makes read-tail-then-insert atomic.
type SQLiteLedgerStore struct {
	db *sql.DB
}

func NewSQLiteLedgerStore(dbPath string) (*SQLiteLedgerStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteLedgerStore{db: db}, nil
}

func (s *SQLiteLedgerStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func tail(ctx context.Context, q queryer, ledgerID string) (*models.LedgerEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM ledger_entries
	WHERE ledger_id = ? ORDER BY timestamp_ms DESC, seq DESC LIMIT 1`

	entry, err := scanEntry(q.QueryRowContext(ctx, query, ledgerID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read tail: %w", err)
	}
	return &entry, nil
}

func (s *SQLiteLedgerStore) Tail(ctx context.Context, ledgerID string) (*models.LedgerEntry, error) {
	return tail(ctx, s.db, ledgerID)
}

func (s *SQLiteLedgerStore) SaveEntry(ctx context.Context, entry models.LedgerEntry, expectedTail string) (err error) {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			dbTx.Rollback()
		}
	}()

	current, err := tail(ctx, dbTx, entry.LedgerID)
	if err != nil {
		return err
	}
	currentHash := ""
	if current != nil {
		currentHash = current.CurrentHash
	}
	if currentHash != expectedTail {
		err = models.ErrTailChanged
		return err
	}

	const query = `INSERT INTO ledger_entries (` + entryColumns + `)
	VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`

	_, err = dbTx.ExecContext(ctx, query,
		entry.ID, entry.LedgerID, entry.Amount.String(), entry.Currency, entry.CategoryID, entry.Timestamp,
		nullInt(entry.BillDueAt), entry.PreviousHash, entry.CurrentHash, entry.Nonce, entry.Version,
		nullInt(entry.DeletedAt))
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		err = fmt.Errorf("%w: %s", models.ErrDuplicateEntry, entry.ID)
		return err
	}
	if err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}
	return dbTx.Commit()
}

func (s *SQLiteLedgerStore) GetEntry(ctx context.Context, ledgerID, entryID string) (models.LedgerEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM ledger_entries WHERE ledger_id = ? AND id = ?`

	entry, err := scanEntry(s.db.QueryRowContext(ctx, query, ledgerID, entryID))
	if errors.Is(err, sql.ErrNoRows) {
		return models.LedgerEntry{}, fmt.Errorf("%w: %s", models.ErrEntryNotFound, entryID)
	}
	return entry, err
}

func (s *SQLiteLedgerStore) GetEntriesByLedger(ctx context.Context, ledgerID string) ([]models.LedgerEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM ledger_entries WHERE ledger_id = ? ORDER BY seq`

	rows, err := s.db.QueryContext(ctx, query, ledgerID)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var entries []models.LedgerEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *SQLiteLedgerStore) GetLedgerIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT ledger_id FROM ledger_entries ORDER BY ledger_id`)
	if err != nil {
		return nil, fmt.Errorf("list ledgers: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLiteLedgerStore) ReplaceEntries(ctx context.Context, ledgerID string, entries []models.LedgerEntry) (err error) {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			dbTx.Rollback()
		}
	}()

	const query = `UPDATE ledger_entries SET amount = ?, currency = ?, category_id = ?,
	timestamp_ms = ?, bill_due_at = ?, previous_hash = ?, current_hash = ?,
	nonce = ?, version = ?, deleted_at = ?
	WHERE ledger_id = ? AND id = ?`

	for _, e := range entries {
		var res sql.Result
		res, err = dbTx.ExecContext(ctx, query,
			e.Amount.String(), e.Currency, e.CategoryID, e.Timestamp, nullInt(e.BillDueAt),
			e.PreviousHash, e.CurrentHash, e.Nonce, e.Version, nullInt(e.DeletedAt),
			ledgerID, e.ID)
		if err != nil {
			return fmt.Errorf("update entry %s: %w", e.ID, err)
		}
		var n int64
		if n, err = res.RowsAffected(); err != nil {
			return err
		}
		if n == 0 {
			err = fmt.Errorf("%w: %s", models.ErrEntryNotFound, e.ID)
			return err
		}
	}
	return dbTx.Commit()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (models.LedgerEntry, error) {
	var (
		e         models.LedgerEntry
		billDueAt sql.NullInt64
		deletedAt sql.NullInt64
	)
	err := row.Scan(&e.ID, &e.LedgerID, &e.Amount, &e.Currency, &e.CategoryID, &e.Timestamp, &billDueAt,
		&e.PreviousHash, &e.CurrentHash, &e.Nonce, &e.Version, &deletedAt)
	if err != nil {
		return models.LedgerEntry{}, err
	}
	if billDueAt.Valid {
		e.BillDueAt = &billDueAt.Int64
	}
	if deletedAt.Valid {
		e.DeletedAt = &deletedAt.Int64
	}
	return e, nil
}

func nullInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

var _ interfaces.LedgerStore = (*SQLiteLedgerStore)(nil)
