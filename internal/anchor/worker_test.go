package anchor

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/tamper-evident-ledger/internal/chain"
	"github.com/sheikh-saqib/tamper-evident-ledger/internal/ledger"
	"github.com/sheikh-saqib/tamper-evident-ledger/internal/log"
	"github.com/sheikh-saqib/tamper-evident-ledger/internal/models"
	"github.com/sheikh-saqib/tamper-evident-ledger/internal/models/events"
	"github.com/sheikh-saqib/tamper-evident-ledger/internal/storage/memory"
)

type capturePublisher struct {
	mu      sync.Mutex
	anchors []events.DailyRootAnchored
	failFor string
}

func (p *capturePublisher) Publish(ctx context.Context, topic string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := event.(events.DailyRootAnchored)
	if !ok {
		return nil
	}
	if e.LedgerID == p.failFor {
		return errors.New("broker unavailable")
	}
	p.anchors = append(p.anchors, e)
	return nil
}

func (p *capturePublisher) Close() error { return nil }

func (p *capturePublisher) ledgers() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var ids []string
	for _, a := range p.anchors {
		ids = append(ids, a.LedgerID)
	}
	sort.Strings(ids)
	return ids
}

var yesterday = time.Date(2024, time.March, 10, 9, 30, 0, 0, time.UTC)

func setup(t *testing.T, pub *capturePublisher, ledgers ...string) *ledger.Ledger {
	t.Helper()
	l := ledger.NewLedger(memory.NewMemoryLedgerStore(), ledger.WithPublisher(pub))
	for _, id := range ledgers {
		_, err := l.Append(context.Background(), id, models.Draft{
			ID:         id + "-1",
			Amount:     decimal.RequireFromString("10"),
			Currency:   "INR",
			CategoryID: "food",
			Timestamp:  yesterday.UnixMilli(),
		})
		if err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	return l
}

func TestRunOnceAnchorsPreviousDay(t *testing.T) {
	pub := &capturePublisher{}
	l := setup(t, pub, "alice", "bob", "carol")
	w := NewWorker(l, time.Hour, 2, log.Discard())

	now := yesterday.Add(20 * time.Hour) // 05:30 on the 11th
	count, err := w.RunOnce(context.Background(), now)
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if count != 3 {
		t.Errorf("count = %d, want 3", count)
	}

	got := pub.ledgers()
	if len(got) != 3 || got[0] != "alice" || got[2] != "carol" {
		t.Errorf("anchored ledgers = %v", got)
	}
	for _, a := range pub.anchors {
		if a.Day != "2024-03-10" || a.EntryCount != 1 || a.MerkleRoot == chain.EmptyRoot {
			t.Errorf("anchor = %+v", a)
		}
	}
}

func TestRunOnceSkipsAnchoredDays(t *testing.T) {
	pub := &capturePublisher{}
	l := setup(t, pub, "alice")
	w := NewWorker(l, time.Hour, 1, log.Discard())
	now := yesterday.Add(20 * time.Hour)

	if _, err := w.RunOnce(context.Background(), now); err != nil {
		t.Fatalf("first RunOnce: %v", err)
	}
	count, err := w.RunOnce(context.Background(), now.Add(time.Hour))
	if err != nil || count != 0 {
		t.Errorf("second RunOnce = %d, %v; want 0, nil", count, err)
	}
	if len(pub.anchors) != 1 {
		t.Errorf("published %d anchors, want 1", len(pub.anchors))
	}
}

func TestRunOnceRetriesFailures(t *testing.T) {
	pub := &capturePublisher{failFor: "bob"}
	l := setup(t, pub, "alice", "bob")
	w := NewWorker(l, time.Hour, 4, log.Discard())
	now := yesterday.Add(20 * time.Hour)

	count, err := w.RunOnce(context.Background(), now)
	if err == nil {
		t.Fatal("expected error for bob")
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}

	pub.mu.Lock()
	pub.failFor = ""
	pub.mu.Unlock()

	count, err = w.RunOnce(context.Background(), now)
	if err != nil || count != 1 {
		t.Errorf("retry = %d, %v; want bob anchored", count, err)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	pub := &capturePublisher{}
	l := setup(t, pub)
	w := NewWorker(l, time.Millisecond, 1, log.Discard())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := w.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Run error = %v, want deadline exceeded", err)
	}
}
