package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	interfaces "github.com/sheikh-saqib/tamper-evident-ledger/internal/interfaces"
	"github.com/sheikh-saqib/tamper-evident-ledger/internal/models"
)

const uniqueViolation = "23505"

const entryColumns = `id, ledger_id, amount, currency, category_id, timestamp_ms, bill_due_at,
	previous_hash, current_hash, nonce, version, deleted_at`

type PostgresLedgerStore struct {
	db *sql.DB
}

func NewPostgresLedgerStore(db *sql.DB) *PostgresLedgerStore {
	return &PostgresLedgerStore{
		db: db,
	}
}

// Open connects with lib/pq, pings and migrates.
func Open(ctx context.Context, dsn string) (*PostgresLedgerStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, err
	}
	return NewPostgresLedgerStore(db), nil
}

func (p *PostgresLedgerStore) Close() error {
	return p.db.Close()
}

// lockLedger serializes writers of one ledger across processes for the
// lifetime of dbTx.
func lockLedger(ctx context.Context, dbTx *sql.Tx, ledgerID string) error {
	_, err := dbTx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, ledgerID)
	return err
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func tail(ctx context.Context, q queryer, ledgerID string) (*models.LedgerEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM ledger_entries
	WHERE ledger_id = $1 ORDER BY timestamp_ms DESC, seq DESC LIMIT 1`

	entry, err := scanEntry(q.QueryRowContext(ctx, query, ledgerID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (p *PostgresLedgerStore) Tail(ctx context.Context, ledgerID string) (*models.LedgerEntry, error) {
	return tail(ctx, p.db, ledgerID)
}

func (p *PostgresLedgerStore) SaveEntry(ctx context.Context, entry models.LedgerEntry, expectedTail string) (err error) {
	dbTx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			dbTx.Rollback()
		}
	}()

	if err = lockLedger(ctx, dbTx, entry.LedgerID); err != nil {
		return err
	}

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
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`

	_, err = dbTx.ExecContext(ctx, query, entryArgs(entry)...)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		err = fmt.Errorf("%w: %s", models.ErrDuplicateEntry, entry.ID)
		return err
	}
	if err != nil {
		return err
	}
	return dbTx.Commit()
}

func (p *PostgresLedgerStore) GetEntry(ctx context.Context, ledgerID, entryID string) (models.LedgerEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM ledger_entries WHERE ledger_id = $1 AND id = $2`

	entry, err := scanEntry(p.db.QueryRowContext(ctx, query, ledgerID, entryID))
	if errors.Is(err, sql.ErrNoRows) {
		return models.LedgerEntry{}, fmt.Errorf("%w: %s", models.ErrEntryNotFound, entryID)
	}
	return entry, err
}

func (p *PostgresLedgerStore) GetEntriesByLedger(ctx context.Context, ledgerID string) ([]models.LedgerEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM ledger_entries WHERE ledger_id = $1 ORDER BY seq`

	rows, err := p.db.QueryContext(ctx, query, ledgerID)
	if err != nil {
		return nil, err
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

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (p *PostgresLedgerStore) GetLedgerIDs(ctx context.Context) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT DISTINCT ledger_id FROM ledger_entries ORDER BY ledger_id`)
	if err != nil {
		return nil, err
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

// ReplaceEntries rewrites the batch inside one transaction.
func (p *PostgresLedgerStore) ReplaceEntries(ctx context.Context, ledgerID string, entries []models.LedgerEntry) (err error) {
	dbTx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			dbTx.Rollback()
		}
	}()

	if err = lockLedger(ctx, dbTx, ledgerID); err != nil {
		return err
	}

	const query = `UPDATE ledger_entries SET amount = $3, currency = $4, category_id = $5,
	timestamp_ms = $6, bill_due_at = $7, previous_hash = $8, current_hash = $9,
	nonce = $10, version = $11, deleted_at = $12
	WHERE ledger_id = $1 AND id = $2`

	for _, e := range entries {
		var res sql.Result
		res, err = dbTx.ExecContext(ctx, query,
			ledgerID, e.ID, e.Amount, e.Currency, e.CategoryID, e.Timestamp, nullInt(e.BillDueAt),
			e.PreviousHash, e.CurrentHash, e.Nonce, e.Version, nullInt(e.DeletedAt))
		if err != nil {
			return err
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

func entryArgs(e models.LedgerEntry) []any {
	return []any{e.ID, e.LedgerID, e.Amount, e.Currency, e.CategoryID, e.Timestamp, nullInt(e.BillDueAt),
		e.PreviousHash, e.CurrentHash, e.Nonce, e.Version, nullInt(e.DeletedAt)}
}

func nullInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

var _ interfaces.LedgerStore = (*PostgresLedgerStore)(nil)
