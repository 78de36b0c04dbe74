package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"dailyledger/internal/core"
	ports "dailyledger/internal/sheets"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

// ErrRecordNotFound is returned when no record exists for a date.
var ErrRecordNotFound = errors.New("ledger record not found")

const timestampLayout = "2006-01-02 15:04:05"

var (
	_ ports.Backend     = (*SQLiteRepository)(nil)
	_ ports.BatchWriter = (*SQLiteRepository)(nil)
)

// SQLiteRepository stores raw ledger entries, one row per date. Derived
// metrics are recomputed on read. Every write bumps the row version so the
// sync worker can tell which rows still need mirroring.
type SQLiteRepository struct {
	db            *sql.DB
	schemaVersion uint
}

// StoredRecord is a record plus its sync bookkeeping.
type StoredRecord struct {
	Record        core.LedgerRecord
	Version       int64
	SyncedVersion int64
	UpdatedAt     time.Time
}

// PendingSyncRecord represents minimal data needed for sync queue messages
type PendingSyncRecord struct {
	Date      core.Date
	Version   int64
	UpdatedAt time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single connection serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, schemaVersion: version}, nil
}

// SchemaVersion is the migration version applied when the repository opened.
func (r *SQLiteRepository) SchemaVersion() uint {
	return r.schemaVersion
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

const upsertSQL = `
INSERT INTO ledger_records (
    date, starting_balance, bike_repairs, fuel, airtime,
    end_of_day_balance, payout, orders
) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(date) DO UPDATE SET
    starting_balance   = excluded.starting_balance,
    bike_repairs       = excluded.bike_repairs,
    fuel               = excluded.fuel,
    airtime            = excluded.airtime,
    end_of_day_balance = excluded.end_of_day_balance,
    payout             = excluded.payout,
    orders             = excluded.orders,
    version            = ledger_records.version + 1,
    sync_status        = 'pending',
    updated_at         = strftime('%Y-%m-%d %H:%M:%S', 'now')`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsert(ctx context.Context, db execer, rec core.LedgerRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	_, err := db.ExecContext(ctx, upsertSQL,
		rec.Date.String(),
		rec.StartingBalance.String(),
		rec.BikeRepairs.String(),
		rec.Fuel.String(),
		rec.Airtime.String(),
		rec.EndOfDayBalance.String(),
		rec.Payout.String(),
		rec.Orders,
	)
	return err
}

// Upsert implements sheets.RecordWriter
func (r *SQLiteRepository) Upsert(ctx context.Context, rec core.LedgerRecord) error {
	if err := upsert(ctx, r.db, rec); err != nil {
		return fmt.Errorf("upsert record %s: %w", rec.Date, err)
	}
	slog.DebugContext(ctx, "Record saved to SQLite", "date", rec.Date.String())
	return nil
}

// UpsertMany writes recs in one transaction.
func (r *SQLiteRepository) UpsertMany(ctx context.Context, recs []core.LedgerRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, rec := range recs {
		if err := upsert(ctx, tx, rec); err != nil {
			return fmt.Errorf("upsert record %s: %w", rec.Date, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	slog.InfoContext(ctx, "Records saved to SQLite", "count", len(recs))
	return nil
}

const selectColumns = `date, starting_balance, bike_repairs, fuel, airtime,
    end_of_day_balance, payout, orders, version, synced_version, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanStored(s scanner) (StoredRecord, error) {
	var (
		date, updatedAt string
		amounts         [6]string
		orders          int64
		out             StoredRecord
	)
	err := s.Scan(&date, &amounts[0], &amounts[1], &amounts[2], &amounts[3], &amounts[4], &amounts[5],
		&orders, &out.Version, &out.SyncedVersion, &updatedAt)
	if err != nil {
		return StoredRecord{}, err
	}

	d, err := core.ParseDate(date)
	if err != nil {
		return StoredRecord{}, fmt.Errorf("stored date %q: %w", date, err)
	}
	e := core.DailyEntry{Date: d, Orders: orders}
	dst := []*decimal.Decimal{&e.StartingBalance, &e.BikeRepairs, &e.Fuel, &e.Airtime, &e.EndOfDayBalance, &e.Payout}
	for i, raw := range amounts {
		v, err := decimal.NewFromString(raw)
		if err != nil {
			return StoredRecord{}, fmt.Errorf("stored amount %q for %s: %w", raw, date, err)
		}
		*dst[i] = v
	}
	out.Record = core.NewRecord(e)
	if t, err := time.Parse(timestampLayout, updatedAt); err == nil {
		out.UpdatedAt = t
	}
	return out, nil
}

// ListRecords implements sheets.RecordReader
func (r *SQLiteRepository) ListRecords(ctx context.Context) ([]core.LedgerRecord, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM ledger_records ORDER BY date`)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var out []core.LedgerRecord
	for rows.Next() {
		s, err := scanStored(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, s.Record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return out, nil
}

// ClearRecords implements sheets.RecordClearer
func (r *SQLiteRepository) ClearRecords(ctx context.Context) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM ledger_records`)
	if err != nil {
		return fmt.Errorf("clear records: %w", err)
	}
	n, _ := res.RowsAffected()
	slog.InfoContext(ctx, "Ledger cleared in SQLite", "deleted", n)
	return nil
}

// GetRecord retrieves a single record by date
func (r *SQLiteRepository) GetRecord(ctx context.Context, date core.Date) (StoredRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM ledger_records WHERE date = ?`, date.String())
	s, err := scanStored(row)
	if errors.Is(err, sql.ErrNoRows) {
		return StoredRecord{}, fmt.Errorf("%s: %w", date, ErrRecordNotFound)
	}
	if err != nil {
		return StoredRecord{}, fmt.Errorf("get record %s: %w", date, err)
	}
	return s, nil
}

// GetPendingSync returns records whose latest version has not been mirrored yet, oldest change first
func (r *SQLiteRepository) GetPendingSync(ctx context.Context, limit int) ([]PendingSyncRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT date, version, updated_at FROM ledger_records
WHERE synced_version < version
ORDER BY updated_at, date
LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending sync records: %w", err)
	}
	defer rows.Close()

	var out []PendingSyncRecord
	for rows.Next() {
		var date, updatedAt string
		var p PendingSyncRecord
		if err := rows.Scan(&date, &p.Version, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan pending record: %w", err)
		}
		if p.Date, err = core.ParseDate(date); err != nil {
			return nil, fmt.Errorf("stored date %q: %w", date, err)
		}
		p.UpdatedAt, _ = time.Parse(timestampLayout, updatedAt)
		out = append(out, p)
	}
	return out, rows.Err()
}

// MarkSynced records that version of the record was mirrored. A newer local
// version stays pending.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, date core.Date, version int64) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE ledger_records
SET synced_version = MAX(synced_version, ?),
    sync_status    = CASE WHEN version <= ? THEN 'synced' ELSE 'pending' END
WHERE date = ?`, version, version, date.String())
	if err != nil {
		return fmt.Errorf("mark record synced: %w", err)
	}
	slog.DebugContext(ctx, "Record marked as synced", "date", date.String(), "version", version)
	return nil
}

// MarkSyncError marks a record as having sync errors
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, date core.Date) error {
	_, err := r.db.ExecContext(ctx, `UPDATE ledger_records SET sync_status = 'error' WHERE date = ?`, date.String())
	if err != nil {
		return fmt.Errorf("mark record sync error: %w", err)
	}
	slog.WarnContext(ctx, "Record marked with sync error", "date", date.String())
	return nil
}

// RecordVersion returns the current version of the record for date.
func (r *SQLiteRepository) RecordVersion(ctx context.Context, date core.Date) (int64, error) {
	var v int64
	err := r.db.QueryRowContext(ctx, `SELECT version FROM ledger_records WHERE date = ?`, date.String()).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%s: %w", date, ErrRecordNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("get record version %s: %w", date, err)
	}
	return v, nil
}
