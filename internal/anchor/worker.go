// Package anchor periodically commits each ledger's previous-day Merkle root
// to the configured event broker.
package anchor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sheikh-saqib/tamper-evident-ledger/internal/log"
	"github.com/sheikh-saqib/tamper-evident-ledger/internal/models"
	"github.com/sheikh-saqib/tamper-evident-ledger/internal/models/events"
)

// Anchorer is the slice of the ledger service the worker needs.
type Anchorer interface {
	Ledgers(ctx context.Context) ([]string, error)
	Anchor(ctx context.Context, ledgerID string, day models.Day) (events.DailyRootAnchored, error)
	Location() *time.Location
}

type Worker struct {
	ledger      Anchorer
	interval    time.Duration
	concurrency int
	logger      *log.Logger

	mu       sync.Mutex
	anchored map[string]models.Day // last day successfully anchored per ledger
}

func NewWorker(ledger Anchorer, interval time.Duration, concurrency int, logger *log.Logger) *Worker {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Worker{
		ledger:      ledger,
		interval:    interval,
		concurrency: concurrency,
		logger:      logger.WithComponent(log.ComponentAnchor),
		anchored:    make(map[string]models.Day),
	}
}

// Run anchors once immediately, then on every tick until ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.InfoContext(ctx, "anchor worker started", "interval", w.interval, "concurrency", w.concurrency)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.tick(ctx, time.Now())
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("anchor worker stopped")
			return ctx.Err()
		case now := <-ticker.C:
			w.tick(ctx, now)
		}
	}
}

func (w *Worker) tick(ctx context.Context, now time.Time) {
	count, err := w.RunOnce(ctx, now)
	if err != nil {
		w.logger.ErrorContext(ctx, "anchoring incomplete", "anchored", count, log.FieldError, err)
		return
	}
	if count > 0 {
		w.logger.InfoContext(ctx, "anchoring complete", "anchored", count)
	}
}

// RunOnce anchors the day before now, in the ledger's zone, for every ledger
// not yet anchored for that day. One failing ledger does not stop the others;
// failures are retried on the next run.
func (w *Worker) RunOnce(ctx context.Context, now time.Time) (int, error) {
	day := models.DayOf(now.In(w.ledger.Location())).AddDays(-1)

	ids, err := w.ledger.Ledgers(ctx)
	if err != nil {
		return 0, fmt.Errorf("list ledgers: %w", err)
	}

	var (
		g     errgroup.Group
		errMu sync.Mutex
		errs  []error
		count int
	)
	g.SetLimit(w.concurrency)

	for _, id := range ids {
		if w.done(id, day) {
			continue
		}
		g.Go(func() error {
			event, err := w.ledger.Anchor(ctx, id, day)

			errMu.Lock()
			defer errMu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Errorf("ledger %s: %w", id, err))
				return nil
			}
			count++
			w.markDone(id, day)

			w.logger.DebugContext(ctx, "ledger anchored",
				log.FieldLedgerID, id, log.FieldDay, event.Day, log.FieldMerkleRoot, event.MerkleRoot)
			return nil
		})
	}
	g.Wait()

	return count, errors.Join(errs...)
}

func (w *Worker) done(ledgerID string, day models.Day) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	last, ok := w.anchored[ledgerID]
	return ok && last == day
}

func (w *Worker) markDone(ledgerID string, day models.Day) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.anchored[ledgerID] = day
}
