package services

import (
	"context"
	"errors"
	"fmt"
	"io"

	"dailyledger/internal/core"
	"dailyledger/internal/ledger"
	"dailyledger/internal/log"
	"dailyledger/internal/records"
)

// Publisher announces ledger changes to the sheets sync worker.
type Publisher interface {
	PublishRecordSync(ctx context.Context, date core.Date, version int64) error
	PublishClear(ctx context.Context) error
}

// VersionSource reports the stored version of a record, so published
// messages carry the version the worker should expect.
type VersionSource interface {
	RecordVersion(ctx context.Context, date core.Date) (int64, error)
}

// Submission is the outcome of a saved entry.
type Submission struct {
	Record   core.LedgerRecord
	Warnings []core.Warning
}

// Selection picks the records of an export: a period, or an inclusive date
// range when either bound is set.
type Selection struct {
	Period core.Period
	From   core.Date
	To     core.Date
}

// Report is a period summary plus its records, newest first.
type Report struct {
	Period  core.Period
	Today   core.Date
	Summary core.Summary
	Records []core.LedgerRecord
}

// LedgerService orchestrates ledger operations: parsing user input, the
// ledger store, and optional change notifications over AMQP.
type LedgerService struct {
	store      *ledger.Store
	publisher  Publisher
	versions   VersionSource
	closers    []io.Closer
	logger     *log.Logger
	structured *log.StructuredLogger
}

// Option configures a LedgerService.
type Option func(*LedgerService)

// WithPublisher enables change notifications. versions may be nil, in which
// case messages carry version 0 and the worker syncs whatever is stored.
func WithPublisher(p Publisher, versions VersionSource) Option {
	return func(s *LedgerService) {
		s.publisher = p
		s.versions = versions
	}
}

// WithCloser registers a resource released by Close.
func WithCloser(c io.Closer) Option {
	return func(s *LedgerService) { s.closers = append(s.closers, c) }
}

func WithLogger(l *log.Logger) Option {
	return func(s *LedgerService) { s.logger = l.WithComponent(log.ComponentLedger) }
}

func NewLedgerService(store *ledger.Store, opts ...Option) *LedgerService {
	s := &LedgerService{
		store:  store,
		logger: log.FromContext(context.Background()).WithComponent(log.ComponentLedger),
	}
	for _, o := range opts {
		o(s)
	}
	s.structured = log.NewStructuredLogger(s.logger)
	return s
}

// Store exposes the underlying ledger for read-only queries.
func (s *LedgerService) Store() *ledger.Store { return s.store }

// Preview parses and derives an entry without saving it.
func (s *LedgerService) Preview(in core.EntryInput) (Submission, error) {
	e, err := in.Parse(s.store.Today())
	if err != nil {
		return Submission{}, err
	}
	rec := core.NewRecord(e)
	return Submission{Record: rec, Warnings: core.Warnings(rec)}, nil
}

// SubmitEntry validates the input, derives the metrics and saves the record,
// replacing any record for the same date. Input problems are returned as
// core.FieldErrors; nothing is saved in that case.
func (s *LedgerService) SubmitEntry(ctx context.Context, in core.EntryInput) (Submission, error) {
	e, err := in.Parse(s.store.Today())
	if err != nil {
		return Submission{}, err
	}
	rec, warnings, err := s.store.Submit(ctx, e)
	if err != nil {
		s.structured.LogError(ctx, "Failed to save ledger record", err, log.ComponentLedger, log.OpSubmit,
			log.NewFields().WithRecord(e.Date.String(), e.Orders, "", ""))
		return Submission{}, fmt.Errorf("save entry: %w", err)
	}

	s.structured.LogRecordSaved(ctx, rec.Key(), rec.Orders, rec.Revenue.String(),
		rec.AverageOrderValue.StringFixed(2), len(warnings))
	s.notify(ctx, rec.Date)
	return Submission{Record: rec, Warnings: warnings}, nil
}

// Import merges records read from r into the ledger. Imported records win
// over existing ones with the same date.
func (s *LedgerService) Import(ctx context.Context, r io.Reader, format records.Format) (ledger.MergeResult, error) {
	recs, err := records.Load(r, format)
	if err != nil {
		return ledger.MergeResult{}, fmt.Errorf("read %s import: %w", format, err)
	}
	res, err := s.store.Merge(ctx, recs)
	if err != nil {
		return res, fmt.Errorf("merge import: %w", err)
	}
	for _, rec := range recs {
		s.notify(ctx, rec.Date)
	}
	s.logger.InfoContext(ctx, "Ledger import merged",
		log.FieldOperation, log.OpImport,
		log.FieldFormat, string(format),
		"added", res.Added,
		"replaced", res.Replaced)
	return res, nil
}

// Select returns the records matched by sel, oldest first.
func (s *LedgerService) Select(sel Selection) []core.LedgerRecord {
	if !sel.From.IsZero() || !sel.To.IsZero() {
		return s.store.Between(sel.From, sel.To)
	}
	p := sel.Period
	if p == "" {
		p = core.PeriodAll
	}
	return s.store.FilterByPeriod(p)
}

// Export writes the selected records to w and returns how many were written.
func (s *LedgerService) Export(ctx context.Context, w io.Writer, format records.Format, sel Selection) (int, error) {
	recs := s.Select(sel)
	if err := records.Dump(w, format, recs); err != nil {
		return 0, fmt.Errorf("export %s: %w", format, err)
	}
	s.logger.InfoContext(ctx, "Ledger exported",
		log.FieldOperation, log.OpExport,
		log.FieldFormat, string(format),
		log.FieldPeriod, string(sel.Period),
		log.FieldCount, len(recs))
	return len(recs), nil
}

// Clear removes the whole ledger.
func (s *LedgerService) Clear(ctx context.Context) error {
	if err := s.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear ledger: %w", err)
	}
	if s.publisher != nil {
		if err := s.publisher.PublishClear(ctx); err != nil {
			s.logger.ErrorContext(ctx, "Failed to publish clear message", log.FieldError, err)
		}
	}
	return nil
}

// Report summarizes a period.
func (s *LedgerService) Report(p core.Period) Report {
	recs := s.store.FilterByPeriod(p)
	return Report{
		Period:  p,
		Today:   s.store.Today(),
		Summary: core.Summarize(recs),
		Records: core.SortNewestFirst(recs),
	}
}

// Aggregate groups the whole ledger by "week" or "month".
func (s *LedgerService) Aggregate(by string) ([]core.GroupSummary, error) {
	switch by {
	case "week":
		return core.AggregateByWeek(s.store.All()), nil
	case "month", "":
		return core.AggregateByMonth(s.store.All()), nil
	default:
		return nil, fmt.Errorf("unknown grouping %q: use week or month", by)
	}
}

// notify publishes a sync message for date. Failures are logged only: the
// record is already saved and the worker's sweep will pick it up.
func (s *LedgerService) notify(ctx context.Context, date core.Date) {
	if s.publisher == nil {
		return
	}
	var version int64
	if s.versions != nil {
		v, err := s.versions.RecordVersion(ctx, date)
		if err != nil {
			s.logger.WarnContext(ctx, "Failed to read record version", log.FieldDate, date.String(), log.FieldError, err)
		}
		version = v
	}
	if err := s.publisher.PublishRecordSync(ctx, date, version); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish sync message",
			log.FieldDate, date.String(), log.FieldVersion, version, log.FieldError, err)
	}
}

// Close releases the resources registered with WithCloser.
func (s *LedgerService) Close() error {
	var errs []error
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close ledger service: %w", errors.Join(errs...))
	}
	return nil
}
