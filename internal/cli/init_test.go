package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"dailyledger/internal/config"
	"dailyledger/internal/core"
	"dailyledger/internal/log"
)

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("LEDGER_TEST_CURRENCY=KES\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("LEDGER_TEST_CURRENCY", "")
	os.Unsetenv("LEDGER_TEST_CURRENCY")

	LoadEnvFile(path)
	if got := os.Getenv("LEDGER_TEST_CURRENCY"); got != "KES" {
		t.Fatalf("LEDGER_TEST_CURRENCY = %q, want KES", got)
	}
}

func TestOpenLedgerFileBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.csv")
	cfg := &config.Config{DataBackend: config.BackendFile, LedgerFile: path}
	ctx := context.Background()

	svc, err := OpenLedger(ctx, cfg, log.Discard())
	if err != nil {
		t.Fatalf("OpenLedger: %v", err)
	}
	in := core.EntryInput{
		Date: "2025-01-15", StartingBalance: "100", BikeRepairs: "0", Fuel: "0",
		Airtime: "0", EndOfDayBalance: "50", Payout: "80", Orders: "2",
	}
	if _, err := svc.SubmitEntry(ctx, in); err != nil {
		t.Fatalf("SubmitEntry: %v", err)
	}
	if err := svc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := OpenLedger(ctx, cfg, log.Discard())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if reopened.Store().Len() != 1 {
		t.Fatalf("reopened ledger has %d records, want 1", reopened.Store().Len())
	}
}

func TestOpenLedgerMalformedFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.csv")
	if err := os.WriteFile(path, []byte("not,a,ledger\n1,2,3\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	svc, err := OpenLedger(context.Background(), &config.Config{DataBackend: config.BackendFile, LedgerFile: path}, log.Discard())
	if err != nil {
		t.Fatalf("OpenLedger: %v", err)
	}
	defer svc.Close()
	if svc.Store().LoadErr() == nil {
		t.Fatal("load error should be kept on the store")
	}
	if svc.Store().Len() != 0 {
		t.Fatal("store should start empty")
	}
}

func TestOpenLedgerRejectsUnknownBackend(t *testing.T) {
	if _, err := OpenLedger(context.Background(), &config.Config{DataBackend: "redis"}, log.Discard()); err == nil {
		t.Fatal("expected error")
	}
}
