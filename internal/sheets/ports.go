package sheets

import (
	"context"

	"dailyledger/internal/core"
)

// Ports for durable ledger backends.
type (
	// RecordWriter persists one record, replacing any record with the same date.
	RecordWriter interface {
		Upsert(ctx context.Context, rec core.LedgerRecord) error
	}

	// RecordReader returns every persisted record.
	RecordReader interface {
		ListRecords(ctx context.Context) ([]core.LedgerRecord, error)
	}

	// RecordClearer removes every persisted record.
	RecordClearer interface {
		ClearRecords(ctx context.Context) error
	}

	// BatchWriter upserts many records in one durable write. Backends that
	// rewrite a whole file implement it so an import costs one write.
	BatchWriter interface {
		UpsertMany(ctx context.Context, recs []core.LedgerRecord) error
	}

	// Backend is the durable store behind a ledger.
	Backend interface {
		RecordReader
		RecordWriter
		RecordClearer
	}
)
