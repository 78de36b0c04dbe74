// Package file persists the ledger as a single CSV or JSON file.
//
// Every write rewrites the whole file through a temporary sibling that is
// synced and renamed over the original, so a crash mid-write leaves the
// previous contents in place. A file that cannot be decoded is moved aside
// as <name>.corrupt-<timestamp> by the next write, which then starts from an
// empty ledger.
package file

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"dailyledger/internal/core"
	"dailyledger/internal/records"
	ports "dailyledger/internal/sheets"
)

var (
	_ ports.Backend     = (*Store)(nil)
	_ ports.BatchWriter = (*Store)(nil)
)

type Store struct {
	mu     sync.Mutex
	path   string
	format records.Format
	now    func() time.Time
}

// New returns a Store for path. An empty format is inferred from the
// file extension.
func New(path string, format records.Format) *Store {
	if format == "" {
		format = records.FormatFromPath(path)
	}
	return &Store{path: path, format: format, now: time.Now}
}

func (s *Store) Path() string           { return s.path }
func (s *Store) Format() records.Format { return s.format }

// ListRecords reads the file. A missing or empty file is an empty ledger.
func (s *Store) ListRecords(_ context.Context) ([]core.LedgerRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

func (s *Store) Upsert(ctx context.Context, rec core.LedgerRecord) error {
	return s.UpsertMany(ctx, []core.LedgerRecord{rec})
}

// UpsertMany merges recs into the file contents, replacing records with the
// same date, and rewrites the file once.
func (s *Store) UpsertMany(ctx context.Context, recs []core.LedgerRecord) error {
	for _, r := range recs {
		if err := r.Date.Validate(); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.read()
	if errors.Is(err, records.ErrMalformed) {
		err = s.quarantine()
	}
	if err != nil {
		return err
	}
	pos := make(map[string]int, len(current))
	for i, r := range current {
		pos[r.Key()] = i
	}
	for _, r := range recs {
		if i, ok := pos[r.Key()]; ok {
			current[i] = r
			continue
		}
		pos[r.Key()] = len(current)
		current = append(current, r)
	}
	return s.write(core.SortOldestFirst(current))
}

// ClearRecords truncates the ledger to its header.
func (s *Store) ClearRecords(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(nil)
}

func (s *Store) read() ([]core.LedgerRecord, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	recs, err := records.Load(bytes.NewReader(data), s.format)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", s.path, err)
	}
	return recs, nil
}

// quarantine renames the undecodable file so the next write can replace it.
func (s *Store) quarantine() error {
	dst := s.path + ".corrupt-" + s.now().UTC().Format("20060102T150405Z")
	if err := os.Rename(s.path, dst); err != nil {
		return fmt.Errorf("move aside %s: %w", s.path, err)
	}
	return nil
}

func (s *Store) write(recs []core.LedgerRecord) error {
	var buf bytes.Buffer
	if err := records.Dump(&buf, s.format, recs); err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}
	if err := writeAtomic(s.path, buf.Bytes()); err != nil {
		return fmt.Errorf("write %s: %w", s.path, err)
	}
	return nil
}

// writeAtomic replaces path with data via a synced temp file in the same
// directory.
func writeAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
