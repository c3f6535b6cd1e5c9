package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/tamper-evident-ledger/internal/chain"
	interfaces "github.com/sheikh-saqib/tamper-evident-ledger/internal/interfaces"
	"github.com/sheikh-saqib/tamper-evident-ledger/internal/log"
	"github.com/sheikh-saqib/tamper-evident-ledger/internal/metrics"
	"github.com/sheikh-saqib/tamper-evident-ledger/internal/models"
	"github.com/sheikh-saqib/tamper-evident-ledger/internal/models/events"
)

// maxAppendAttempts bounds retries when another writer moves the tail
// between our read and our insert.
const maxAppendAttempts = 3

// Ledger is the main struct representing our ledger system
// It holds a reference to the storage layer and a mutex per ledger for concurrency control
type Ledger struct {
	store     interfaces.LedgerStore // Interface to save ledger entries, can be any storage implementation
	publisher interfaces.EventPublisher
	logger    *log.Logger
	now       func() time.Time
	loc       *time.Location // zone that defines a calendar day for Merkle roots
	heur      chain.HeuristicsConfig

	muMap map[string]*sync.Mutex // stores the *sync.Mutex for each ledger in a map
	mapMu sync.Mutex             // protects the muMap itself
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithPublisher sets where anchors and rechain audits are published.
func WithPublisher(p interfaces.EventPublisher) Option {
	return func(l *Ledger) { l.publisher = p }
}

func WithLogger(logger *log.Logger) Option {
	return func(l *Ledger) { l.logger = logger.WithComponent(log.ComponentLedger) }
}

// WithClock replaces time.Now, for default timestamps, tombstones and the
// future-timestamp heuristic.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

func WithLocation(loc *time.Location) Option {
	return func(l *Ledger) { l.loc = loc }
}

func WithHeuristics(cfg chain.HeuristicsConfig) Option {
	return func(l *Ledger) { l.heur = cfg }
}

// NewLedger is a constructor function that creates a new Ledger instance
// We pass in a storage implementation (MemoryLedgerStore, Postgres, SQLite)
func NewLedger(store interfaces.LedgerStore, opts ...Option) *Ledger {
	l := &Ledger{
		store:  store, // Assign the storage implementation to the ledger's store field
		logger: log.Discard(),
		now:    time.Now,
		loc:    time.UTC,
		heur:   chain.DefaultHeuristics(),
		muMap:  make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.loc == nil {
		l.loc = time.UTC
	}
	l.heur.Now = l.now
	return l
}

func (l *Ledger) getLedgerLock(ledgerID string) *sync.Mutex {

	l.mapMu.Lock()
	defer l.mapMu.Unlock()

	if _, exists := l.muMap[ledgerID]; !exists {
		l.muMap[ledgerID] = &sync.Mutex{}
	}
	return l.muMap[ledgerID]
}

// Location returns the zone used to cut calendar days.
func (l *Ledger) Location() *time.Location {
	return l.loc
}

// Append links a draft to the ledger tail and stores it.
// A missing ID gets a UUID and a missing timestamp gets the current time.
func (l *Ledger) Append(ctx context.Context, ledgerID string, draft models.Draft) (models.LedgerEntry, error) {
	if ledgerID == "" {
		return models.LedgerEntry{}, &models.ValidationError{Field: "ledgerId", Reason: "required"}
	}
	if draft.ID == "" {
		draft.ID = uuid.NewString()
	}

	// Serialize read-tail -> link -> persist for this ledger
	mu := l.getLedgerLock(ledgerID)
	mu.Lock()
	defer mu.Unlock()

	// Stamped under the lock so concurrent callers cannot regress each other
	if draft.Timestamp == 0 {
		draft.Timestamp = l.now().UnixMilli()
	}

	start := time.Now()
	entry, err := l.appendLocked(ctx, ledgerID, draft)
	metrics.AppendDuration.Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		metrics.Appends.WithLabelValues(metrics.ResultOK).Inc()
		l.logger.DebugContext(ctx, "entry appended",
			log.FieldLedgerID, ledgerID, log.FieldEntryID, entry.ID, log.FieldOperation, log.OpAppend,
			log.FieldTailHash, entry.CurrentHash)
	case errors.Is(err, models.ErrValidation), errors.Is(err, models.ErrDuplicateEntry):
		metrics.Appends.WithLabelValues(metrics.ResultInvalid).Inc()
	case errors.Is(err, models.ErrTailChanged):
		metrics.Appends.WithLabelValues(metrics.ResultConflict).Inc()
		l.logger.WarnContext(ctx, "append lost tail race",
			log.FieldLedgerID, ledgerID, log.FieldEntryID, draft.ID)
	default:
		metrics.Appends.WithLabelValues(metrics.ResultError).Inc()
		l.logger.ErrorContext(ctx, "append failed",
			log.FieldLedgerID, ledgerID, log.FieldEntryID, draft.ID, log.FieldError, err)
	}
	return entry, err
}

func (l *Ledger) appendLocked(ctx context.Context, ledgerID string, draft models.Draft) (models.LedgerEntry, error) {
	var err error
	for attempt := 0; attempt < maxAppendAttempts; attempt++ {
		var tail *models.LedgerEntry
		tail, err = l.store.Tail(ctx, ledgerID)
		if err != nil {
			return models.LedgerEntry{}, fmt.Errorf("read tail: %w", err)
		}

		entry, linkErr := chain.Link(ledgerID, draft, tail)
		if linkErr != nil {
			return models.LedgerEntry{}, linkErr
		}

		expected := ""
		if tail != nil {
			expected = tail.CurrentHash
		}
		err = l.store.SaveEntry(ctx, entry, expected)
		if err == nil {
			return entry, nil
		}
		if !errors.Is(err, models.ErrTailChanged) {
			return models.LedgerEntry{}, err
		}
	}
	return models.LedgerEntry{}, err
}

// Verify checks the ledger in fail-fast mode. from and to optionally bound
// the timestamps checked (inclusive).
func (l *Ledger) Verify(ctx context.Context, ledgerID string, from, to *int64) (models.IntegrityReport, error) {
	return l.verify(ctx, ledgerID, from, to, models.VerifyFailFast)
}

// VerifyAll checks every entry and reports every violation.
func (l *Ledger) VerifyAll(ctx context.Context, ledgerID string, from, to *int64) (models.IntegrityReport, error) {
	return l.verify(ctx, ledgerID, from, to, models.VerifyFullScan)
}

func (l *Ledger) verify(ctx context.Context, ledgerID string, from, to *int64, mode models.VerifyMode) (models.IntegrityReport, error) {
	entries, err := l.store.GetEntriesByLedger(ctx, ledgerID)
	if err != nil {
		return models.IntegrityReport{}, err
	}

	// A range is anchored on the hash of the entry just before it, so the
	// first in-range link is still checked.
	sorted := chain.SortByTimestamp(entries)
	lo, hi := rangeBounds(sorted, from, to)
	anchor := chain.GenesisHash
	if lo > 0 {
		anchor = sorted[lo-1].CurrentHash
	}
	report := chain.VerifyFrom(sorted[lo:hi], anchor, mode)
	report.Offset(lo)

	result := "valid"
	if !report.Valid {
		result = "invalid"
		for _, e := range report.Errors {
			metrics.IntegrityViolations.WithLabelValues(string(e.Kind)).Inc()
		}
		first := report.FirstError
		l.logger.WarnContext(ctx, "integrity violation",
			log.FieldLedgerID, ledgerID, log.FieldOperation, log.OpVerify,
			log.FieldEntryID, first.EntryID, log.FieldKind, first.Kind, log.FieldIndex, first.Index,
			log.FieldVerified, report.VerifiedCount, log.FieldTotal, report.TotalChecked,
			log.FieldScore, report.IntegrityScore)
	}
	metrics.Verifications.WithLabelValues(string(mode), result).Inc()
	return report, nil
}

// rangeBounds returns the half-open index range of sorted entries whose
// timestamp lies in [from, to].
func rangeBounds(sorted []models.LedgerEntry, from, to *int64) (int, int) {
	lo, hi := 0, len(sorted)
	if from != nil {
		for lo < hi && sorted[lo].Timestamp < *from {
			lo++
		}
	}
	if to != nil {
		for hi > lo && sorted[hi-1].Timestamp > *to {
			hi--
		}
	}
	return lo, hi
}

// RechainFrom recomputes links and hashes from entryID's chain position to
// the tail and persists the result as one batch. It returns the rewritten suffix.
func (l *Ledger) RechainFrom(ctx context.Context, ledgerID, entryID string) ([]models.LedgerEntry, error) {
	mu := l.getLedgerLock(ledgerID)
	mu.Lock()
	defer mu.Unlock()

	entries, err := l.store.GetEntriesByLedger(ctx, ledgerID)
	if err != nil {
		return nil, err
	}
	idx := chain.IndexOf(chain.SortByTimestamp(entries), entryID)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", models.ErrEntryNotFound, entryID)
	}

	return l.rechainLocked(ctx, ledgerID, entries, idx, entryID, log.OpRechain)
}

// rechainLocked rechains from index and stores the suffix. entries must be
// in store (append) order so ties sort the way later reads will sort them.
func (l *Ledger) rechainLocked(ctx context.Context, ledgerID string, entries []models.LedgerEntry, from int, triggerID, reason string) ([]models.LedgerEntry, error) {
	rechained := chain.Rechain(entries, from)
	suffix := rechained[from:]

	if err := l.store.ReplaceEntries(ctx, ledgerID, suffix); err != nil {
		l.logger.ErrorContext(ctx, "rechain persist failed",
			log.FieldLedgerID, ledgerID, log.FieldEntryID, triggerID, log.FieldError, err)
		return nil, fmt.Errorf("persist rechain: %w", err)
	}
	metrics.RechainedEntries.Add(float64(len(suffix)))

	tailHash := chain.GenesisHash
	if len(rechained) > 0 {
		tailHash = rechained[len(rechained)-1].CurrentHash
	}
	l.logger.InfoContext(ctx, "ledger rechained",
		log.FieldLedgerID, ledgerID, log.FieldEntryID, triggerID, log.FieldOperation, reason,
		log.FieldIndex, from, log.FieldEntries, len(suffix), log.FieldTailHash, tailHash)

	l.publish(ctx, events.TopicLedgerRechained, events.LedgerRechained{
		LedgerID:       ledgerID,
		TriggerID:      triggerID,
		Reason:         reason,
		FromIndex:      from,
		EntriesTouched: len(suffix),
		NewTailHash:    tailHash,
		OccurredAt:     l.now().UTC(),
	})
	return suffix, nil
}

// EditEntry applies patch and rechains from the earlier of the entry's old
// and new chain positions, all under the ledger lock. There is no way to
// edit without rechaining.
func (l *Ledger) EditEntry(ctx context.Context, ledgerID, entryID string, patch models.EntryPatch) ([]models.LedgerEntry, error) {
	if patch.Empty() {
		return nil, &models.ValidationError{Field: "patch", Reason: "no fields to change"}
	}

	mu := l.getLedgerLock(ledgerID)
	mu.Lock()
	defer mu.Unlock()

	entries, err := l.store.GetEntriesByLedger(ctx, ledgerID)
	if err != nil {
		return nil, err
	}

	pos := -1
	for i := range entries {
		if entries[i].ID == entryID {
			pos = i
			break
		}
	}
	if pos < 0 {
		return nil, fmt.Errorf("%w: %s", models.ErrEntryNotFound, entryID)
	}
	if entries[pos].Deleted() {
		return nil, fmt.Errorf("%w: %s", models.ErrEntryDeleted, entryID)
	}

	// Rechaining rewrites every later hash, so a stored break would vanish
	// without trace. Broken ledgers are repaired through RechainFrom only.
	sorted := chain.SortByTimestamp(entries)
	if report := chain.Verify(sorted); !report.Valid {
		first := report.FirstError
		l.logger.WarnContext(ctx, "edit refused on broken chain",
			log.FieldLedgerID, ledgerID, log.FieldEntryID, entryID, log.FieldOperation, log.OpEdit,
			log.FieldKind, first.Kind, log.FieldIndex, first.Index)
		return nil, fmt.Errorf("%w: %s at %s (index %d)", models.ErrIntegrityViolation, first.Kind, first.EntryID, first.Index)
	}
	oldIdx := chain.IndexOf(sorted, entryID)

	edited := patch.Apply(entries[pos])
	if err := chain.ValidateEntry(edited); err != nil {
		return nil, err
	}
	entries[pos] = edited

	newIdx := chain.IndexOf(chain.SortByTimestamp(entries), entryID)
	from := min(oldIdx, newIdx)

	return l.rechainLocked(ctx, ledgerID, entries, from, entryID, log.OpEdit)
}

// DeleteEntry tombstones an entry. Its hash does not cover DeletedAt, so the
// chain stays intact and the entry keeps taking part in verification.
func (l *Ledger) DeleteEntry(ctx context.Context, ledgerID, entryID string) (models.LedgerEntry, error) {
	mu := l.getLedgerLock(ledgerID)
	mu.Lock()
	defer mu.Unlock()

	entry, err := l.store.GetEntry(ctx, ledgerID, entryID)
	if err != nil {
		return models.LedgerEntry{}, err
	}
	if entry.Deleted() {
		return models.LedgerEntry{}, fmt.Errorf("%w: %s", models.ErrEntryDeleted, entryID)
	}

	deletedAt := l.now().UnixMilli()
	entry.DeletedAt = &deletedAt
	if err := l.store.ReplaceEntries(ctx, ledgerID, []models.LedgerEntry{entry}); err != nil {
		return models.LedgerEntry{}, fmt.Errorf("persist tombstone: %w", err)
	}

	l.logger.InfoContext(ctx, "entry deleted",
		log.FieldLedgerID, ledgerID, log.FieldEntryID, entryID, log.FieldOperation, log.OpDelete)
	return entry, nil
}

// DailyRoot returns the Merkle root of the ledger's entries on day.
func (l *Ledger) DailyRoot(ctx context.Context, ledgerID string, day models.Day) (string, error) {
	tree, err := l.DailyTree(ctx, ledgerID, day)
	if err != nil {
		return "", err
	}
	return tree.Root, nil
}

func (l *Ledger) DailyTree(ctx context.Context, ledgerID string, day models.Day) (chain.MerkleTree, error) {
	entries, err := l.store.GetEntriesByLedger(ctx, ledgerID)
	if err != nil {
		return chain.MerkleTree{}, err
	}
	tree := chain.DailyTree(entries, day, l.loc)
	l.logger.DebugContext(ctx, "daily tree built",
		log.FieldLedgerID, ledgerID, log.FieldOperation, log.OpRoot,
		log.FieldDay, day.String(), log.FieldMerkleRoot, tree.Root, log.FieldEntries, tree.LeafCount)
	return tree, nil
}

// Anchor computes the day's root and hands it to the publisher. Without a
// publisher the event is only returned.
func (l *Ledger) Anchor(ctx context.Context, ledgerID string, day models.Day) (events.DailyRootAnchored, error) {
	tree, err := l.DailyTree(ctx, ledgerID, day)
	if err != nil {
		return events.DailyRootAnchored{}, err
	}

	event := events.DailyRootAnchored{
		LedgerID:        ledgerID,
		Day:             day.String(),
		TimeZone:        l.loc.String(),
		MerkleRoot:      tree.Root,
		EntryCount:      tree.LeafCount,
		ProtocolVersion: chain.ProtocolVersion,
		ComputedAt:      l.now().UTC(),
	}

	if l.publisher == nil {
		return event, nil
	}
	if err := l.publisher.Publish(ctx, events.TopicDailyRootAnchored, event); err != nil {
		metrics.AnchorsPublished.WithLabelValues(metrics.ResultError).Inc()
		return event, fmt.Errorf("publish anchor: %w", err)
	}
	metrics.AnchorsPublished.WithLabelValues(metrics.ResultOK).Inc()

	l.logger.InfoContext(ctx, "daily root anchored",
		log.FieldLedgerID, ledgerID, log.FieldOperation, log.OpAnchor,
		log.FieldDay, event.Day, log.FieldMerkleRoot, event.MerkleRoot,
		log.FieldEntries, event.EntryCount)
	return event, nil
}

// ScanForTampering runs the heuristics over entries whose timestamp lies in
// [from, to], in storage order.
func (l *Ledger) ScanForTampering(ctx context.Context, ledgerID string, from, to *int64) (models.RiskReport, error) {
	entries, err := l.store.GetEntriesByLedger(ctx, ledgerID)
	if err != nil {
		return models.RiskReport{}, err
	}

	var inRange []models.LedgerEntry
	for _, e := range entries {
		if from != nil && e.Timestamp < *from {
			continue
		}
		if to != nil && e.Timestamp > *to {
			continue
		}
		inRange = append(inRange, e)
	}

	report := chain.Scan(inRange, l.heur)
	metrics.TamperRiskScore.Observe(float64(report.RiskScore))
	if report.RiskScore > 0 {
		l.logger.WarnContext(ctx, "suspicious entries",
			log.FieldLedgerID, ledgerID, log.FieldOperation, log.OpScan,
			log.FieldRiskScore, report.RiskScore, log.FieldEntries, len(report.SuspiciousIDs))
	}
	return report, nil
}

// Summary aggregates the whole ledger. Totals cover live entries only; the
// Merkle root, tail hash and reports cover the full chain.
func (l *Ledger) Summary(ctx context.Context, ledgerID string) (models.Summary, error) {
	entries, err := l.store.GetEntriesByLedger(ctx, ledgerID)
	if err != nil {
		return models.Summary{}, err
	}
	if len(entries) == 0 {
		return models.Summary{}, fmt.Errorf("%w: %s", models.ErrLedgerNotFound, ledgerID)
	}

	sorted := chain.SortByTimestamp(entries)
	summary := models.Summary{
		LedgerID:        ledgerID,
		TotalValue:      decimal.Zero,
		GenesisHash:     chain.GenesisHash,
		TailHash:        sorted[len(sorted)-1].CurrentHash,
		ProtocolVersion: chain.ProtocolVersion,
	}

	leaves := make([]string, 0, len(sorted))
	for _, e := range sorted {
		leaves = append(leaves, e.CurrentHash)
		if e.Deleted() {
			summary.DeletedEntries++
			continue
		}
		summary.TotalEntries++
		summary.TotalValue = summary.TotalValue.Add(e.Amount)
	}
	summary.MerkleRoot = chain.Root(leaves)

	if n := len(sorted); n > 1 {
		span := sorted[n-1].Timestamp - sorted[0].Timestamp
		summary.AverageBlockTimeMs = float64(span) / float64(n-1)
	}

	summary.Integrity, err = l.VerifyAll(ctx, ledgerID, nil, nil)
	if err != nil {
		return models.Summary{}, err
	}
	summary.Risk, err = l.ScanForTampering(ctx, ledgerID, nil, nil)
	if err != nil {
		return models.Summary{}, err
	}
	return summary, nil
}

// Entries lists the live entries of a ledger in chain order.
func (l *Ledger) Entries(ctx context.Context, ledgerID string) ([]models.LedgerEntry, error) {
	all, err := l.ChainEntries(ctx, ledgerID)
	if err != nil {
		return nil, err
	}
	live := make([]models.LedgerEntry, 0, len(all))
	for _, e := range all {
		if !e.Deleted() {
			live = append(live, e)
		}
	}
	return live, nil
}

// ChainEntries returns every entry in chain order, tombstones included. This
// is the set an offline verifier needs.
func (l *Ledger) ChainEntries(ctx context.Context, ledgerID string) ([]models.LedgerEntry, error) {
	entries, err := l.store.GetEntriesByLedger(ctx, ledgerID)
	if err != nil {
		return nil, err
	}
	return chain.SortByTimestamp(entries), nil
}

// Entry returns one entry, tombstoned or not.
func (l *Ledger) Entry(ctx context.Context, ledgerID, entryID string) (models.LedgerEntry, error) {
	return l.store.GetEntry(ctx, ledgerID, entryID)
}

func (l *Ledger) Ledgers(ctx context.Context) ([]string, error) {
	return l.store.GetLedgerIDs(ctx)
}

// publish is best effort: an audit event that fails to send is logged, the
// ledger change it describes has already been committed.
func (l *Ledger) publish(ctx context.Context, topic string, event any) {
	if l.publisher == nil {
		return
	}
	if err := l.publisher.Publish(ctx, topic, event); err != nil {
		l.logger.ErrorContext(ctx, "publish event failed", log.FieldTopic, topic, log.FieldError, err)
	}
}
