package file

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"dailyledger/internal/core"
	"dailyledger/internal/records"

	"github.com/shopspring/decimal"
)

func rec(day int, orders int64) core.LedgerRecord {
	return core.NewRecord(core.DailyEntry{
		Date:            core.NewDate(2025, 1, day),
		StartingBalance: decimal.NewFromInt(478411),
		BikeRepairs:     decimal.NewFromInt(22500),
		Fuel:            decimal.NewFromInt(10000),
		Airtime:         decimal.NewFromInt(1000),
		EndOfDayBalance: decimal.NewFromInt(149472),
		Payout:          decimal.NewFromInt(353600),
		Orders:          orders,
	})
}

func TestMissingFileIsEmpty(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "ledger.csv"), "")
	got, err := s.ListRecords(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no records, got %d", len(got))
	}
}

func TestUpsertPersistsAndReplaces(t *testing.T) {
	for _, name := range []string{"ledger.csv", "ledger.json"} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			path := filepath.Join(t.TempDir(), "nested", name)
			s := New(path, "")

			for _, r := range []core.LedgerRecord{rec(16, 1), rec(15, 75), rec(16, 80)} {
				if err := s.Upsert(ctx, r); err != nil {
					t.Fatalf("upsert: %v", err)
				}
			}

			// A fresh store on the same path sees the same contents.
			got, err := New(path, "").ListRecords(ctx)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(got) != 2 {
				t.Fatalf("expected 2 records, got %d", len(got))
			}
			if got[0].Key() != "2025-01-15" || got[1].Orders != 80 {
				t.Fatalf("unexpected records: %+v", got)
			}
		})
	}
}

func TestClearLeavesHeader(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.csv")
	s := New(path, records.FormatCSV)
	if err := s.Upsert(ctx, rec(15, 75)); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := s.ClearRecords(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if strings.TrimSpace(string(data)) != strings.Join(records.Columns, ",") {
		t.Fatalf("expected header only, got %q", data)
	}
}

func TestMalformedFileSurfacesError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.csv")
	if err := os.WriteFile(path, []byte("Date,Orders\n2025-01-15,1\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	s := New(path, "")
	_, err := s.ListRecords(context.Background())
	if !errors.Is(err, records.ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "Date,Orders\n2025-01-15,1\n" {
		t.Fatalf("reading changed the malformed file: %q", data)
	}
}

func TestUpsertMovesMalformedFileAside(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ledger.csv")
	bad := "Date,Orders\n\"2025-01-15,1\n"
	if err := os.WriteFile(path, []byte(bad), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	s := New(path, "")
	s.now = func() time.Time { return time.Date(2025, 1, 15, 8, 30, 0, 0, time.UTC) }

	if err := s.Upsert(context.Background(), rec(15, 75)); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	moved, err := os.ReadFile(path + ".corrupt-20250115T083000Z")
	if err != nil {
		t.Fatalf("malformed file not kept: %v", err)
	}
	if string(moved) != bad {
		t.Fatalf("moved file changed: %q", moved)
	}
	got, err := s.ListRecords(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].Key() != "2025-01-15" {
		t.Fatalf("unexpected records after recovery: %+v", got)
	}
}

func TestFailedWriteKeepsPreviousFile(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("directory permissions are not enforced for root")
	}
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "ledger.csv")
	s := New(path, "")
	if err := s.Upsert(ctx, rec(15, 75)); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	before, _ := os.ReadFile(path)

	if err := os.Chmod(dir, 0o555); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	defer os.Chmod(dir, 0o755)

	if err := s.Upsert(ctx, rec(16, 1)); err == nil {
		t.Fatal("expected write error in read-only directory")
	}
	after, _ := os.ReadFile(path)
	if string(before) != string(after) {
		t.Fatal("file changed after failed write")
	}
}

func TestUpsertRejectsZeroDate(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "ledger.csv"), "")
	if err := s.Upsert(context.Background(), core.LedgerRecord{}); err == nil {
		t.Fatal("expected error")
	}
}
