// Package ledger holds the keyed set of ledger records in memory over a
// durable backend.
//
// Writes go to the backend first and reach memory only once persisted, so
// the in-memory view never shows a record that a restart would lose.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"dailyledger/internal/core"
	"dailyledger/internal/log"
	ports "dailyledger/internal/sheets"
)

// ErrNotFound is returned by Get when no record exists for a date.
var ErrNotFound = errors.New("ledger record not found")

// LoadError reports that the backend could not be read when the store was
// opened or reloaded. The store keeps working, starting from what it had.
type LoadError struct {
	Err error
}

func (e *LoadError) Error() string { return "load ledger: " + e.Err.Error() }
func (e *LoadError) Unwrap() error { return e.Err }

// PersistError reports a failed durable write. Memory is left unchanged.
type PersistError struct {
	Op  string
	Err error
}

func (e *PersistError) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *PersistError) Unwrap() error { return e.Err }

// MergeResult counts the effect of a Merge.
type MergeResult struct {
	Added    int
	Replaced int
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the source of "now" used to evaluate periods.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithLogger(l *log.Logger) Option {
	return func(s *Store) { s.logger = l.WithComponent(log.ComponentLedger) }
}

// Store is the ledger: at most one record per date.
type Store struct {
	backend ports.Backend
	now     func() time.Time
	logger  *log.Logger

	mu      sync.RWMutex
	records map[string]core.LedgerRecord
	loadErr error
}

// Open loads every record from backend. If loading fails the store starts
// empty, the failure is logged, and it is returned as a *LoadError next to a
// usable store.
func Open(ctx context.Context, backend ports.Backend, opts ...Option) (*Store, error) {
	s := &Store{
		backend: backend,
		now:     time.Now,
		logger:  log.FromContext(ctx).WithComponent(log.ComponentLedger),
		records: map[string]core.LedgerRecord{},
	}
	for _, o := range opts {
		o(s)
	}
	if err := s.Reload(ctx); err != nil {
		return s, err
	}
	return s, nil
}

// Reload replaces memory with the backend contents. On failure the current
// contents are kept and a *LoadError is returned.
func (s *Store) Reload(ctx context.Context) error {
	recs, err := s.backend.ListRecords(ctx)
	if err != nil {
		lerr := &LoadError{Err: err}
		s.mu.Lock()
		s.loadErr = lerr
		s.mu.Unlock()
		s.logger.ErrorContext(ctx, "Failed to load ledger, continuing with in-memory state",
			log.FieldOperation, log.OpLoad, log.FieldError, err)
		return lerr
	}

	fresh := make(map[string]core.LedgerRecord, len(recs))
	for _, r := range recs {
		fresh[r.Key()] = r
	}
	s.mu.Lock()
	s.records = fresh
	s.loadErr = nil
	s.mu.Unlock()
	s.logger.InfoContext(ctx, "Ledger loaded", log.FieldOperation, log.OpLoad, log.FieldCount, len(fresh))
	return nil
}

// LoadErr returns the error of the last failed load, or nil.
func (s *Store) LoadErr() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadErr
}

// Upsert persists rec, then makes it the record for its date. The metrics
// of rec are recomputed from its raw fields first.
func (s *Store) Upsert(ctx context.Context, rec core.LedgerRecord) error {
	rec = rec.Rederive()
	if err := rec.Validate(); err != nil {
		return err
	}
	if err := s.backend.Upsert(ctx, rec); err != nil {
		return &PersistError{Op: "save " + rec.Key(), Err: err}
	}
	s.mu.Lock()
	s.records[rec.Key()] = rec
	s.mu.Unlock()
	return nil
}

// Submit derives the metrics of e, upserts the record and returns it with
// its plausibility warnings.
func (s *Store) Submit(ctx context.Context, e core.DailyEntry) (core.LedgerRecord, []core.Warning, error) {
	if err := e.Validate(); err != nil {
		return core.LedgerRecord{}, nil, err
	}
	rec := core.NewRecord(e)
	if err := s.Upsert(ctx, rec); err != nil {
		return core.LedgerRecord{}, nil, err
	}
	return rec, core.Warnings(rec), nil
}

// Merge upserts a batch of imported records. Imported records replace
// existing ones with the same date; within the batch the last one wins.
func (s *Store) Merge(ctx context.Context, batch []core.LedgerRecord) (MergeResult, error) {
	pos := map[string]int{}
	var unique []core.LedgerRecord
	for _, r := range batch {
		r = r.Rederive()
		if err := r.Validate(); err != nil {
			return MergeResult{}, fmt.Errorf("record %s: %w", r.Key(), err)
		}
		if i, ok := pos[r.Key()]; ok {
			unique[i] = r
			continue
		}
		pos[r.Key()] = len(unique)
		unique = append(unique, r)
	}
	if len(unique) == 0 {
		return MergeResult{}, nil
	}

	if bw, ok := s.backend.(ports.BatchWriter); ok {
		if err := bw.UpsertMany(ctx, unique); err != nil {
			return MergeResult{}, &PersistError{Op: "merge", Err: err}
		}
	} else {
		for i, r := range unique {
			if err := s.backend.Upsert(ctx, r); err != nil {
				// Keep memory in step with what did reach the backend.
				res := s.apply(unique[:i])
				return res, &PersistError{Op: "merge " + r.Key(), Err: err}
			}
		}
	}
	res := s.apply(unique)
	s.logger.InfoContext(ctx, "Records merged",
		log.FieldOperation, log.OpMerge, "added", res.Added, "replaced", res.Replaced)
	return res, nil
}

func (s *Store) apply(recs []core.LedgerRecord) MergeResult {
	var res MergeResult
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range recs {
		if _, ok := s.records[r.Key()]; ok {
			res.Replaced++
		} else {
			res.Added++
		}
		s.records[r.Key()] = r
	}
	return res
}

// Clear removes every record from the backend and then from memory.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.backend.ClearRecords(ctx); err != nil {
		return &PersistError{Op: "clear", Err: err}
	}
	s.mu.Lock()
	s.records = map[string]core.LedgerRecord{}
	s.mu.Unlock()
	s.logger.InfoContext(ctx, "Ledger cleared", log.FieldOperation, log.OpClear)
	return nil
}

// Get returns the record for d.
func (s *Store) Get(d core.Date) (core.LedgerRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[d.String()]
	if !ok {
		return core.LedgerRecord{}, fmt.Errorf("%s: %w", d, ErrNotFound)
	}
	return r, nil
}

// Len is the number of records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// All returns every record, oldest first.
func (s *Store) All() []core.LedgerRecord {
	s.mu.RLock()
	out := make([]core.LedgerRecord, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r)
	}
	s.mu.RUnlock()
	return core.SortOldestFirst(out)
}

// Today is the current day according to the store's clock.
func (s *Store) Today() core.Date {
	return core.DateOf(s.now())
}

// FilterByPeriod returns the records in p as of today, oldest first.
func (s *Store) FilterByPeriod(p core.Period) []core.LedgerRecord {
	return core.FilterByPeriod(s.All(), p, s.Today())
}

// Between returns the records dated from..to inclusive, oldest first. Zero
// bounds are open.
func (s *Store) Between(from, to core.Date) []core.LedgerRecord {
	return core.FilterByRange(s.All(), from, to)
}

// Summary summarizes the records in p.
func (s *Store) Summary(p core.Period) core.Summary {
	return core.Summarize(s.FilterByPeriod(p))
}
