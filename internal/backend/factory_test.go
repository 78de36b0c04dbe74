package backend

import (
	"context"
	"path/filepath"
	"testing"

	"dailyledger/internal/config"
	"dailyledger/internal/core"
	"dailyledger/internal/log"
	"dailyledger/internal/records"
	"dailyledger/internal/sheets/file"
	"dailyledger/internal/storage"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"file ok", Config{Type: FileBackend, LedgerFile: "ledger.csv"}, false},
		{"file without path", Config{Type: FileBackend}, true},
		{"file bad format", Config{Type: FileBackend, LedgerFile: "x", LedgerFormat: "yaml"}, true},
		{"memory", Config{Type: MemoryBackend}, false},
		{"sqlite without path", Config{Type: SQLiteBackend}, true},
		{"sheets without id", Config{Type: SheetsBackend, GoogleServiceAccountFile: "sa.json"}, true},
		{"sheets without credentials", Config{Type: SheetsBackend, GoogleSpreadsheetID: "abc"}, true},
		{"sheets ok", Config{Type: SheetsBackend, GoogleSpreadsheetID: "abc", GoogleServiceAccountJSON: "{}"}, false},
		{"unknown", Config{Type: "postgres"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFromAppConfig(t *testing.T) {
	app := &config.Config{
		DataBackend:     "sqlite",
		SQLiteDBPath:    "/tmp/x.db",
		AMQPExchange:    "ledger",
		GoogleSheetName: "Ledger",
	}
	cfg, err := FromAppConfig(app)
	if err != nil {
		t.Fatalf("FromAppConfig: %v", err)
	}
	if cfg.Type != SQLiteBackend || cfg.SQLiteDBPath != "/tmp/x.db" || cfg.AMQPExchange != "ledger" {
		t.Fatalf("unexpected config %+v", cfg)
	}

	if _, err := FromAppConfig(&config.Config{DataBackend: "csv"}); err == nil {
		t.Fatal("expected error for unknown backend")
	}
	if _, err := FromAppConfig(nil); err == nil {
		t.Fatal("expected error for nil config")
	}
}

func TestCreateFileBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.json")
	res, err := NewFactory(log.Discard()).CreateBackend(context.Background(), Config{Type: FileBackend, LedgerFile: path})
	if err != nil {
		t.Fatalf("CreateBackend: %v", err)
	}
	defer res.Close()

	fs, ok := res.Backend.(*file.Store)
	if !ok {
		t.Fatalf("backend is %T, want *file.Store", res.Backend)
	}
	if fs.Format() != records.FormatJSON {
		t.Fatalf("format = %s, want json", fs.Format())
	}
	if res.Repo != nil || res.Publisher != nil {
		t.Fatal("file backend should not carry sqlite extras")
	}
}

func TestCreateMemoryBackendSeedsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.csv")
	seed := file.New(path, "")
	rec := core.NewRecord(core.DailyEntry{Date: core.NewDate(2025, 1, 2), Orders: 3})
	if err := seed.Upsert(context.Background(), rec); err != nil {
		t.Fatalf("seed: %v", err)
	}

	res, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: MemoryBackend, LedgerFile: path})
	if err != nil {
		t.Fatalf("CreateBackend: %v", err)
	}
	got, err := res.Backend.ListRecords(context.Background())
	if err != nil {
		t.Fatalf("ListRecords: %v", err)
	}
	if len(got) != 1 || got[0].Orders != 3 {
		t.Fatalf("seeded records = %+v", got)
	}
}

func TestCreateSQLiteBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	res, err := NewFactory(log.Discard()).CreateBackend(context.Background(), Config{Type: SQLiteBackend, SQLiteDBPath: path})
	if err != nil {
		t.Fatalf("CreateBackend: %v", err)
	}
	if _, ok := res.Backend.(*storage.SQLiteRepository); !ok || res.Repo == nil {
		t.Fatalf("backend is %T, repo %v", res.Backend, res.Repo)
	}
	if res.Publisher != nil {
		t.Fatal("no AMQP URL means no publisher")
	}
	if err := res.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
