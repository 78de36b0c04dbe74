package memory

import (
	"context"
	"os"
	"sync"

	"dailyledger/internal/core"
	"dailyledger/internal/records"
	ports "dailyledger/internal/sheets"
)

var (
	_ ports.Backend     = (*Store)(nil)
	_ ports.BatchWriter = (*Store)(nil)
)

// Store keeps records in process memory, in insertion order.
type Store struct {
	mu    sync.Mutex
	items []core.LedgerRecord
	index map[string]int
}

func New(seed ...core.LedgerRecord) *Store {
	s := &Store{index: map[string]int{}}
	for _, r := range seed {
		s.put(r)
	}
	return s
}

// NewFromFile seeds the store from a CSV, JSON or XLSX ledger file. A
// missing file gives an empty store.
func NewFromFile(path string) (*Store, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return New(), nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	recs, err := records.Load(f, records.FormatFromPath(path))
	if err != nil {
		return nil, err
	}
	return New(recs...), nil
}

// Upsert stores rec, replacing the record with the same date.
func (s *Store) Upsert(_ context.Context, rec core.LedgerRecord) error {
	if err := rec.Date.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(rec)
	return nil
}

func (s *Store) UpsertMany(_ context.Context, recs []core.LedgerRecord) error {
	for _, r := range recs {
		if err := r.Date.Validate(); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range recs {
		s.put(r)
	}
	return nil
}

func (s *Store) ListRecords(_ context.Context) ([]core.LedgerRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.LedgerRecord(nil), s.items...), nil
}

func (s *Store) ClearRecords(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
	s.index = map[string]int{}
	return nil
}

func (s *Store) put(r core.LedgerRecord) {
	if i, ok := s.index[r.Key()]; ok {
		s.items[i] = r
		return
	}
	s.index[r.Key()] = len(s.items)
	s.items = append(s.items, r)
}
