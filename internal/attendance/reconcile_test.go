package attendance

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
)

func TestReconcileMarksUnmarkedAbsent(t *testing.T) {
	f := newFixture(t, defaultCatalog())
	ctx := context.Background()
	f.putWindow("C1", "L1", "AB12CD", Clock24(10, 0), Clock24(10, 15))
	if _, err := f.submit("C1", "S1", "AB12CD", StatusPresent); err != nil {
		t.Fatalf("submit: %v", err)
	}

	if n, err := f.svc.Reconcile(ctx, "C1"); err != nil || n != 0 {
		t.Fatalf("reconcile while open = %d, %v; want no-op", n, err)
	}

	f.at(10, 16)
	n, err := f.svc.Reconcile(ctx, "C1")
	if err != nil || n != 1 {
		t.Fatalf("reconcile = %d, %v; want 1", n, err)
	}
	rec, ok, err := f.svc.Ledger.Get(ctx, "C1", "C1-L1", "S2")
	if err != nil || !ok || rec.Status != StatusAbsent || rec.MarkedBy != SystemActor {
		t.Fatalf("S2 record = %+v, %v, %v", rec, ok, err)
	}

	before := f.records("C1")
	n, err = f.svc.Reconcile(ctx, "C1")
	if err != nil || n != 0 {
		t.Fatalf("second reconcile = %d, %v; want 0", n, err)
	}
	if after := f.records("C1"); len(after) != len(before) {
		t.Fatalf("second reconcile changed the ledger: %d -> %d records", len(before), len(after))
	}
}

func TestReconcileNeverOverwrites(t *testing.T) {
	f := newFixture(t, defaultCatalog())
	ctx := context.Background()
	f.putWindow("C1", "L1", "AB12CD", Clock24(10, 0), Clock24(10, 15))
	if _, err := f.svc.Engine.Override(ctx, "C1", "S2", StatusExcused, "T1"); err != nil {
		t.Fatalf("Override: %v", err)
	}
	f.at(10, 30)
	if n, err := f.svc.Reconcile(ctx, "C1"); err != nil || n != 1 {
		t.Fatalf("reconcile = %d, %v; want 1", n, err)
	}
	rec, _, _ := f.svc.Ledger.Get(ctx, "C1", "C1-L1", "S2")
	if rec.Status != StatusExcused {
		t.Fatalf("excused record overwritten: %+v", rec)
	}
}

func TestReconcileWithoutWindow(t *testing.T) {
	f := newFixture(t, defaultCatalog())
	if n, err := f.svc.Reconcile(context.Background(), "C1"); err != nil || n != 0 {
		t.Fatalf("reconcile = %d, %v; want 0, nil", n, err)
	}
}

func TestReconcileDedupesRoster(t *testing.T) {
	f := newFixture(t, staticCatalog{students: map[string][]string{"C1": {"S1", "S1", "", "S2"}}})
	f.putWindow("C1", "L1", "AB12CD", Clock24(10, 0), Clock24(10, 15))
	f.at(11, 0)
	if n, err := f.svc.Reconcile(context.Background(), "C1"); err != nil || n != 2 {
		t.Fatalf("reconcile = %d, %v; want 2", n, err)
	}
}

func TestReconcileStorageFailure(t *testing.T) {
	fs := &failingStore{MemoryStore: NewMemoryStore()}
	f := newFixture(t, defaultCatalog())
	svc := NewService(fs, defaultCatalog(), WithClock(ClockFunc(func() time.Time { return f.now })))
	f.store = fs.MemoryStore
	f.putWindow("C1", "L1", "AB12CD", Clock24(10, 0), Clock24(10, 15))
	f.at(11, 0)

	fs.broken = true
	_, err := svc.Reconcile(context.Background(), "C1")
	if !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("err = %v, want ErrStorageUnavailable", err)
	}
	fs.broken = false
	if n, err := svc.Reconcile(context.Background(), "C1"); err != nil || n != 2 {
		t.Fatalf("retry = %d, %v; want 2", n, err)
	}
}

func TestReconcileClosed(t *testing.T) {
	cat := staticCatalog{students: map[string][]string{"C1": {"S1", "S2"}, "C2": {"S3"}}}
	f := newFixture(t, cat)
	f.putWindow("C1", "L1", "AAAAAA", Clock24(9, 0), Clock24(9, 30))
	f.putWindow("C2", "L1", "BBBBBB", Clock24(10, 0), Clock24(12, 0))
	f.at(10, 30)

	n, err := f.svc.ReconcileClosed(context.Background())
	if err != nil || n != 2 {
		t.Fatalf("ReconcileClosed = %d, %v; want 2", n, err)
	}
	if len(f.records("C2")) != 0 {
		t.Fatalf("open window must not be reconciled")
	}
}
