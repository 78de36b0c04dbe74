package records

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"dailyledger/internal/core"
)

// WriteCSV writes a header row followed by one row per record.
func WriteCSV(w io.Writer, recs []core.LedgerRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range recs {
		if err := cw.Write(Row(r)); err != nil {
			return fmt.Errorf("write csv row %s: %w", r.Date, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV reads records written by WriteCSV, or any CSV whose header names
// at least the date and the raw input columns. Column order does not matter.
// An empty input yields no records.
func ReadCSV(r io.Reader) ([]core.LedgerRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, &DecodeError{Line: 1, Err: err}
	}
	rows, err := cr.ReadAll()
	if err != nil {
		var pe *csv.ParseError
		if errors.As(err, &pe) {
			return nil, &DecodeError{Line: pe.Line, Err: pe.Err}
		}
		return nil, &DecodeError{Err: err}
	}
	return decodeRows(header, rows, 2)
}
