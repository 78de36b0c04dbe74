// Package worker mirrors the SQLite ledger into Google Sheets.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dailyledger/internal/amqp"
	"dailyledger/internal/core"
	"dailyledger/internal/log"
	ports "dailyledger/internal/sheets"
	"dailyledger/internal/storage"

	"golang.org/x/sync/errgroup"
)

// SyncSource is the versioned record store the worker drains.
type SyncSource interface {
	GetRecord(ctx context.Context, date core.Date) (storage.StoredRecord, error)
	GetPendingSync(ctx context.Context, limit int) ([]storage.PendingSyncRecord, error)
	MarkSynced(ctx context.Context, date core.Date, version int64) error
	MarkSyncError(ctx context.Context, date core.Date) error
}

// SyncTarget is the spreadsheet side of the sync.
type SyncTarget interface {
	ports.RecordWriter
	ports.RecordClearer
}

// Consumer delivers sync messages until its context ends.
type Consumer interface {
	ConsumeRecordSync(ctx context.Context, handler func(context.Context, *amqp.RecordSyncMessage) error) error
}

// SyncWorker handles synchronization of ledger records from SQLite to
// Google Sheets.
type SyncWorker struct {
	source    SyncSource
	target    SyncTarget
	batchSize int
	logger    *log.Logger
}

func NewSyncWorker(source SyncSource, target SyncTarget, batchSize int, logger *log.Logger) *SyncWorker {
	if batchSize <= 0 {
		batchSize = 10
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &SyncWorker{
		source:    source,
		target:    target,
		batchSize: batchSize,
		logger:    logger.WithComponent(log.ComponentWorker),
	}
}

// HandleSyncMessage processes a single message from AMQP. The record is
// always read back from SQLite, so a late message never writes stale data.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.RecordSyncMessage) error {
	if msg.Operation == amqp.OpClear {
		if err := w.target.ClearRecords(ctx); err != nil {
			return fmt.Errorf("clear sheet: %w", err)
		}
		w.logger.InfoContext(ctx, "Sheet cleared", log.FieldOperation, log.OpClear)
		return nil
	}

	date, err := msg.ParsedDate()
	if err != nil {
		return fmt.Errorf("message date: %w", err)
	}
	w.logger.DebugContext(ctx, "Processing sync message",
		log.FieldDate, msg.Date, log.FieldVersion, msg.Version)

	stored, err := w.source.GetRecord(ctx, date)
	if errors.Is(err, storage.ErrRecordNotFound) {
		// Cleared after the message was published.
		w.logger.WarnContext(ctx, "Record no longer stored, skipping", log.FieldDate, msg.Date)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get record from storage: %w", err)
	}
	if stored.SyncedVersion >= stored.Version {
		w.logger.DebugContext(ctx, "Record already synced", log.FieldDate, msg.Date, log.FieldVersion, stored.Version)
		return nil
	}
	return w.sync(ctx, stored)
}

// ProcessPending syncs up to batchSize records whose latest version has not
// reached the sheet. It backs up AMQP delivery: lost messages, worker
// downtime and publish failures all end up here.
func (w *SyncWorker) ProcessPending(ctx context.Context) (synced int, err error) {
	return w.processPending(ctx, w.batchSize)
}

// StartupSyncCheck runs a larger sweep when the worker starts.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	n, err := w.processPending(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("startup sync check: %w", err)
	}
	w.logger.InfoContext(ctx, "Startup sync completed", log.FieldCount, n)
	return nil
}

func (w *SyncWorker) processPending(ctx context.Context, limit int) (int, error) {
	pending, err := w.source.GetPendingSync(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("get pending records: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}
	w.logger.InfoContext(ctx, "Processing pending records", log.FieldCount, len(pending))

	synced := 0
	for _, p := range pending {
		if ctx.Err() != nil {
			return synced, ctx.Err()
		}
		stored, err := w.source.GetRecord(ctx, p.Date)
		if err != nil {
			w.logger.ErrorContext(ctx, "Failed to get record", log.FieldDate, p.Date.String(), log.FieldError, err)
			if err := w.source.MarkSyncError(ctx, p.Date); err != nil {
				w.logger.ErrorContext(ctx, "Failed to mark sync error", log.FieldDate, p.Date.String(), log.FieldError, err)
			}
			continue
		}
		if err := w.sync(ctx, stored); err != nil {
			w.logger.ErrorContext(ctx, "Failed to sync record", log.FieldDate, p.Date.String(), log.FieldError, err)
			continue
		}
		synced++
	}
	return synced, nil
}

func (w *SyncWorker) sync(ctx context.Context, stored storage.StoredRecord) error {
	date := stored.Record.Date
	if err := w.target.Upsert(ctx, stored.Record); err != nil {
		if markErr := w.source.MarkSyncError(ctx, date); markErr != nil {
			w.logger.ErrorContext(ctx, "Failed to mark sync error", log.FieldDate, date.String(), log.FieldError, markErr)
		}
		return fmt.Errorf("upsert to sheets: %w", err)
	}
	if err := w.source.MarkSynced(ctx, date, stored.Version); err != nil {
		// The sheet already has the row; the next sweep rewrites it.
		w.logger.ErrorContext(ctx, "Failed to mark as synced", log.FieldDate, date.String(), log.FieldError, err)
	}
	w.logger.InfoContext(ctx, "Record synced",
		log.FieldOperation, log.OpSync,
		log.FieldDate, date.String(),
		log.FieldVersion, stored.Version)
	return nil
}

// Run consumes messages and sweeps pending records every interval until ctx
// is cancelled or the consumer fails.
func (w *SyncWorker) Run(ctx context.Context, consumer Consumer, interval time.Duration) error {
	if err := w.StartupSyncCheck(ctx); err != nil {
		w.logger.ErrorContext(ctx, "Startup sync check failed", log.FieldError, err)
	}

	g, ctx := errgroup.WithContext(ctx)
	if consumer != nil {
		g.Go(func() error {
			return consumer.ConsumeRecordSync(ctx, w.HandleSyncMessage)
		})
	}
	g.Go(func() error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				if _, err := w.ProcessPending(ctx); err != nil {
					w.logger.ErrorContext(ctx, "Pending sync sweep failed", log.FieldError, err)
				}
			}
		}
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
