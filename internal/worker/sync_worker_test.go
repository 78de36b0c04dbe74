package worker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"dailyledger/internal/amqp"
	"dailyledger/internal/core"
	"dailyledger/internal/log"
	"dailyledger/internal/sheets/memory"
	"dailyledger/internal/storage"

	"github.com/shopspring/decimal"
)

type fakeSource struct {
	records map[string]storage.StoredRecord
	errors  map[string]int
	getErr  error
}

func newFakeSource(recs ...storage.StoredRecord) *fakeSource {
	s := &fakeSource{records: map[string]storage.StoredRecord{}, errors: map[string]int{}}
	for _, r := range recs {
		s.records[r.Record.Key()] = r
	}
	return s
}

func (s *fakeSource) GetRecord(_ context.Context, date core.Date) (storage.StoredRecord, error) {
	if s.getErr != nil {
		return storage.StoredRecord{}, s.getErr
	}
	r, ok := s.records[date.String()]
	if !ok {
		return storage.StoredRecord{}, fmt.Errorf("%s: %w", date, storage.ErrRecordNotFound)
	}
	return r, nil
}

func (s *fakeSource) GetPendingSync(_ context.Context, limit int) ([]storage.PendingSyncRecord, error) {
	var out []storage.PendingSyncRecord
	for _, r := range s.records {
		if r.SyncedVersion < r.Version {
			out = append(out, storage.PendingSyncRecord{Date: r.Record.Date, Version: r.Version})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeSource) MarkSynced(_ context.Context, date core.Date, version int64) error {
	r := s.records[date.String()]
	if version > r.SyncedVersion {
		r.SyncedVersion = version
	}
	s.records[date.String()] = r
	return nil
}

func (s *fakeSource) MarkSyncError(_ context.Context, date core.Date) error {
	s.errors[date.String()]++
	return nil
}

type failingTarget struct {
	*memory.Store
	err error
}

func (f *failingTarget) Upsert(ctx context.Context, r core.LedgerRecord) error {
	if f.err != nil {
		return f.err
	}
	return f.Store.Upsert(ctx, r)
}

func stored(date core.Date, orders int64, version, synced int64) storage.StoredRecord {
	rec := core.NewRecord(core.DailyEntry{
		Date:            date,
		StartingBalance: decimal.NewFromInt(1000),
		EndOfDayBalance: decimal.NewFromInt(500),
		Payout:          decimal.NewFromInt(900),
		Orders:          orders,
	})
	return storage.StoredRecord{Record: rec, Version: version, SyncedVersion: synced}
}

func TestHandleSyncMessageWritesLatestVersion(t *testing.T) {
	d := core.NewDate(2025, 1, 15)
	src := newFakeSource(stored(d, 7, 2, 1))
	target := memory.New()
	w := NewSyncWorker(src, target, 10, log.Discard())

	// A message for an older version still syncs what is stored now.
	if err := w.HandleSyncMessage(context.Background(), amqp.NewRecordSyncMessage(d, 1)); err != nil {
		t.Fatalf("HandleSyncMessage: %v", err)
	}

	rows, _ := target.ListRecords(context.Background())
	if len(rows) != 1 || rows[0].Orders != 7 {
		t.Fatalf("sheet rows = %+v", rows)
	}
	if got := src.records[d.String()].SyncedVersion; got != 2 {
		t.Fatalf("synced version = %d, want 2", got)
	}
}

func TestHandleSyncMessageSkipsSyncedAndMissing(t *testing.T) {
	d := core.NewDate(2025, 1, 15)
	src := newFakeSource(stored(d, 7, 3, 3))
	target := memory.New()
	w := NewSyncWorker(src, target, 10, log.Discard())
	ctx := context.Background()

	if err := w.HandleSyncMessage(ctx, amqp.NewRecordSyncMessage(d, 3)); err != nil {
		t.Fatalf("synced record: %v", err)
	}
	if err := w.HandleSyncMessage(ctx, amqp.NewRecordSyncMessage(core.NewDate(2025, 1, 1), 1)); err != nil {
		t.Fatalf("missing record: %v", err)
	}
	if rows, _ := target.ListRecords(ctx); len(rows) != 0 {
		t.Fatalf("nothing should be written, got %d rows", len(rows))
	}
}

func TestHandleSyncMessageTargetFailure(t *testing.T) {
	d := core.NewDate(2025, 1, 15)
	src := newFakeSource(stored(d, 7, 1, 0))
	w := NewSyncWorker(src, &failingTarget{Store: memory.New(), err: errors.New("quota exceeded")}, 10, log.Discard())

	err := w.HandleSyncMessage(context.Background(), amqp.NewRecordSyncMessage(d, 1))
	if err == nil {
		t.Fatal("expected error so the message is requeued")
	}
	if src.errors[d.String()] != 1 {
		t.Fatalf("sync error marks = %d, want 1", src.errors[d.String()])
	}
	if src.records[d.String()].SyncedVersion != 0 {
		t.Fatal("record must stay pending")
	}
}

func TestHandleSyncMessageStorageFailure(t *testing.T) {
	src := newFakeSource()
	src.getErr = errors.New("database is locked")
	w := NewSyncWorker(src, memory.New(), 10, log.Discard())

	if err := w.HandleSyncMessage(context.Background(), amqp.NewRecordSyncMessage(core.NewDate(2025, 1, 15), 1)); err == nil {
		t.Fatal("expected storage error")
	}
}

func TestHandleClearMessage(t *testing.T) {
	target := memory.New(stored(core.NewDate(2025, 1, 15), 3, 1, 1).Record)
	w := NewSyncWorker(newFakeSource(), target, 10, log.Discard())

	if err := w.HandleSyncMessage(context.Background(), amqp.NewClearMessage()); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if rows, _ := target.ListRecords(context.Background()); len(rows) != 0 {
		t.Fatalf("sheet should be empty, got %d rows", len(rows))
	}
}

func TestProcessPendingRespectsBatchSize(t *testing.T) {
	var recs []storage.StoredRecord
	for day := 1; day <= 5; day++ {
		recs = append(recs, stored(core.NewDate(2025, 1, day), int64(day), 1, 0))
	}
	recs = append(recs, stored(core.NewDate(2025, 1, 6), 6, 2, 2))
	src := newFakeSource(recs...)
	target := memory.New()
	w := NewSyncWorker(src, target, 3, log.Discard())
	ctx := context.Background()

	n, err := w.ProcessPending(ctx)
	if err != nil {
		t.Fatalf("ProcessPending: %v", err)
	}
	if n != 3 {
		t.Fatalf("synced %d, want 3", n)
	}
	n, err = w.ProcessPending(ctx)
	if err != nil || n != 2 {
		t.Fatalf("second sweep synced %d (err %v), want 2", n, err)
	}
	n, _ = w.ProcessPending(ctx)
	if n != 0 {
		t.Fatalf("third sweep synced %d, want 0", n)
	}
	if rows, _ := target.ListRecords(ctx); len(rows) != 5 {
		t.Fatalf("sheet has %d rows, want 5", len(rows))
	}
}

func TestProcessPendingContinuesPastFailures(t *testing.T) {
	src := newFakeSource(
		stored(core.NewDate(2025, 1, 1), 1, 1, 0),
		stored(core.NewDate(2025, 1, 2), 2, 1, 0),
	)
	w := NewSyncWorker(src, &failingTarget{Store: memory.New(), err: errors.New("offline")}, 10, log.Discard())

	n, err := w.ProcessPending(context.Background())
	if err != nil {
		t.Fatalf("ProcessPending: %v", err)
	}
	if n != 0 || len(src.errors) != 2 {
		t.Fatalf("synced %d, error marks %v", n, src.errors)
	}
}

type stubConsumer struct {
	msgs []*amqp.RecordSyncMessage
}

func (c *stubConsumer) ConsumeRecordSync(ctx context.Context, handler func(context.Context, *amqp.RecordSyncMessage) error) error {
	for _, m := range c.msgs {
		if err := handler(ctx, m); err != nil {
			return err
		}
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestRunConsumesUntilCancelled(t *testing.T) {
	d := core.NewDate(2025, 1, 15)
	src := newFakeSource(stored(d, 4, 1, 0))
	target := memory.New()
	w := NewSyncWorker(src, target, 10, log.Discard())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	consumer := &stubConsumer{msgs: []*amqp.RecordSyncMessage{amqp.NewClearMessage()}}
	if err := w.Run(ctx, consumer, 10*time.Millisecond); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Run: %v", err)
	}
	if src.records[d.String()].SyncedVersion != 1 {
		t.Fatal("startup sweep should sync the pending record")
	}
}
