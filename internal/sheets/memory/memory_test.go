package memory

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"dailyledger/internal/core"

	"github.com/shopspring/decimal"
)

func rec(day int, orders int64) core.LedgerRecord {
	return core.NewRecord(core.DailyEntry{
		Date:            core.NewDate(2025, 1, day),
		StartingBalance: decimal.NewFromInt(1000),
		Orders:          orders,
	})
}

func TestMemoryStoreUpsertReplacesByDate(t *testing.T) {
	ctx := context.Background()
	s := New(rec(1, 1), rec(2, 2))

	if err := s.Upsert(ctx, rec(1, 10)); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := s.Upsert(ctx, rec(3, 3)); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := s.ListRecords(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 records, got %d", len(got))
	}
	if got[0].Orders != 10 {
		t.Fatalf("expected replaced record in place, got orders=%d", got[0].Orders)
	}
}

func TestMemoryStoreRejectsZeroDate(t *testing.T) {
	s := New()
	if err := s.Upsert(context.Background(), core.LedgerRecord{}); err == nil {
		t.Fatal("expected error for record without date")
	}
}

func TestMemoryStoreClear(t *testing.T) {
	ctx := context.Background()
	s := New(rec(1, 1))
	if err := s.ClearRecords(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	got, _ := s.ListRecords(ctx)
	if len(got) != 0 {
		t.Fatalf("expected empty store, got %d", len(got))
	}
	if err := s.UpsertMany(ctx, []core.LedgerRecord{rec(1, 1), rec(1, 2)}); err != nil {
		t.Fatalf("upsert many: %v", err)
	}
	got, _ = s.ListRecords(ctx)
	if len(got) != 1 || got[0].Orders != 2 {
		t.Fatalf("unexpected records after upsert many: %+v", got)
	}
}

func TestNewFromFile(t *testing.T) {
	dir := t.TempDir()

	s, err := NewFromFile(filepath.Join(dir, "missing.csv"))
	if err != nil {
		t.Fatalf("missing file should give empty store: %v", err)
	}
	if got, _ := s.ListRecords(context.Background()); len(got) != 0 {
		t.Fatalf("expected empty store, got %d", len(got))
	}

	path := filepath.Join(dir, "seed.csv")
	content := "Date,Starting Balance,Bike Repairs,Fuel,Airtime,End of Day Balance,Payout,Orders\n" +
		"2025-01-15,478411,22500,10000,1000,149472,353600,75\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	s, err = NewFromFile(path)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	got, _ := s.ListRecords(context.Background())
	if len(got) != 1 || !got[0].Revenue.Equal(decimal.NewFromInt(47161)) {
		t.Fatalf("unexpected seeded records: %+v", got)
	}

	if err := os.WriteFile(path, []byte("Date\nnope\n"), 0o644); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	if _, err := NewFromFile(path); err == nil {
		t.Fatal("expected error for malformed seed")
	}
}
