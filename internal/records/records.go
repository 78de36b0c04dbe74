// Package records encodes and decodes ledger records in the durable formats:
// CSV and JSON records for storage, plus an XLSX workbook for export.
//
// Every format carries the same fifteen columns in the same order. Derived
// columns are written for the benefit of whoever opens the file, but are
// recomputed from the raw columns on load.
package records

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"dailyledger/internal/core"

	"github.com/shopspring/decimal"
)

// Column names of the persisted schema, in order.
const (
	ColDate                 = "Date"
	ColStartingBalance      = "Starting Balance"
	ColBikeRepairs          = "Bike Repairs"
	ColFuel                 = "Fuel"
	ColAirtime              = "Airtime"
	ColEndOfDayBalance      = "End of Day Balance"
	ColPayout               = "Payout"
	ColOrders               = "Orders"
	ColBalanceAfterRepairs  = "Balance After Repairs"
	ColTotalExpenses        = "Total Expenses"
	ColBalanceAfterExpenses = "Balance After Expenses"
	ColFoodPurchased        = "Food Purchased"
	ColClosingBalance       = "Closing Balance"
	ColRevenue              = "Revenue"
	ColAverageOrderValue    = "Average Order Value"
)

// Columns is the header row of every durable format.
var Columns = []string{
	ColDate,
	ColStartingBalance,
	ColBikeRepairs,
	ColFuel,
	ColAirtime,
	ColEndOfDayBalance,
	ColPayout,
	ColOrders,
	ColBalanceAfterRepairs,
	ColTotalExpenses,
	ColBalanceAfterExpenses,
	ColFoodPurchased,
	ColClosingBalance,
	ColRevenue,
	ColAverageOrderValue,
}

// requiredColumns must be present for a file to load; the derived ones are
// optional since they are recomputed anyway.
var requiredColumns = Columns[:8]

// ErrMalformed marks content that cannot be decoded as ledger records.
var ErrMalformed = errors.New("malformed ledger data")

// DecodeError locates a decoding failure. Line is 1-based and counts the
// header; Column is empty when the whole row or file is at fault.
type DecodeError struct {
	Line   int
	Column string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("line %d, column %q: %v", e.Line, e.Column, e.Err)
	}
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %v", e.Line, e.Err)
	}
	return e.Err.Error()
}

func (e *DecodeError) Unwrap() []error {
	return []error{ErrMalformed, e.Err}
}

// Format is a serialization of a record set.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatXLSX Format = "xlsx"
)

// ParseFormat accepts a format name, with or without a leading dot.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	case "xlsx", "excel":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("unsupported format %q", s)
	}
}

// FormatFromPath picks the format from a file extension, defaulting to CSV.
func FormatFromPath(path string) Format {
	if f, err := ParseFormat(filepath.Ext(path)); err == nil {
		return f
	}
	return FormatCSV
}

// ContentType is the MIME type used when serving the format.
func (f Format) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/json"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "text/csv; charset=utf-8"
	}
}

// Dump writes recs to w in the given format.
func Dump(w io.Writer, f Format, recs []core.LedgerRecord) error {
	switch f {
	case FormatCSV:
		return WriteCSV(w, recs)
	case FormatJSON:
		return WriteJSON(w, recs)
	case FormatXLSX:
		return WriteXLSX(w, recs)
	default:
		return fmt.Errorf("unsupported format %q", f)
	}
}

// Load reads a record set from r in the given format.
func Load(r io.Reader, f Format) ([]core.LedgerRecord, error) {
	switch f {
	case FormatCSV:
		return ReadCSV(r)
	case FormatJSON:
		return ReadJSON(r)
	case FormatXLSX:
		return ReadXLSX(r)
	default:
		return nil, fmt.Errorf("unsupported format %q", f)
	}
}

// Row renders a record as strings in column order.
func Row(r core.LedgerRecord) []string {
	return []string{
		r.Date.String(),
		r.StartingBalance.String(),
		r.BikeRepairs.String(),
		r.Fuel.String(),
		r.Airtime.String(),
		r.EndOfDayBalance.String(),
		r.Payout.String(),
		fmt.Sprint(r.Orders),
		r.BalanceAfterRepairs.String(),
		r.TotalExpenses.String(),
		r.BalanceAfterExpenses.String(),
		r.FoodPurchased.String(),
		r.ClosingBalance.String(),
		r.Revenue.String(),
		r.AverageOrderValue.String(),
	}
}

// DecodeRows decodes a header plus data rows taken from a tabular source,
// such as a spreadsheet range. Line numbers in errors count the header as 1.
func DecodeRows(header []string, rows [][]string) ([]core.LedgerRecord, error) {
	return decodeRows(header, rows, 2)
}

// decodeRows turns a header row plus data rows into records. Rows that are
// entirely blank are skipped; a later row for the same date replaces an
// earlier one.
func decodeRows(header []string, rows [][]string, firstLine int) ([]core.LedgerRecord, error) {
	idx := map[string]int{}
	for i, h := range header {
		h = strings.TrimPrefix(h, "\ufeff")
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, c := range requiredColumns {
		if _, ok := idx[strings.ToLower(c)]; !ok {
			return nil, &DecodeError{Line: firstLine - 1, Err: fmt.Errorf("missing column %q", c)}
		}
	}

	get := func(cols []string, name string) string {
		i := idx[strings.ToLower(name)]
		if i >= len(cols) {
			return ""
		}
		return strings.TrimSpace(cols[i])
	}

	var out []core.LedgerRecord
	pos := map[string]int{}
	for n, cols := range rows {
		line := firstLine + n
		if blank(cols) {
			continue
		}
		rec, err := decodeRow(func(name string) string { return get(cols, name) })
		if err != nil {
			err.Line = line
			return nil, err
		}
		if i, ok := pos[rec.Key()]; ok {
			out[i] = rec
			continue
		}
		pos[rec.Key()] = len(out)
		out = append(out, rec)
	}
	return out, nil
}

func decodeRow(get func(string) string) (core.LedgerRecord, *DecodeError) {
	var e core.DailyEntry
	d, err := parseDateCell(get(ColDate))
	if err != nil {
		return core.LedgerRecord{}, &DecodeError{Column: ColDate, Err: err}
	}
	e.Date = d

	amounts := []struct {
		col string
		dst *decimal.Decimal
	}{
		{ColStartingBalance, &e.StartingBalance},
		{ColBikeRepairs, &e.BikeRepairs},
		{ColFuel, &e.Fuel},
		{ColAirtime, &e.Airtime},
		{ColEndOfDayBalance, &e.EndOfDayBalance},
		{ColPayout, &e.Payout},
	}
	for _, a := range amounts {
		v, err := core.ParseAmount(get(a.col))
		if err != nil {
			return core.LedgerRecord{}, &DecodeError{Column: a.col, Err: err}
		}
		*a.dst = v
	}

	orders, err := core.ParseOrders(get(ColOrders))
	if err != nil {
		return core.LedgerRecord{}, &DecodeError{Column: ColOrders, Err: err}
	}
	e.Orders = orders
	return core.NewRecord(e), nil
}

// parseDateCell accepts ISO dates and the "YYYY-MM-DD 00:00:00" form that
// spreadsheet tools like to write back.
func parseDateCell(s string) (core.Date, error) {
	if len(s) > len(core.DateLayout) && (s[10] == ' ' || s[10] == 'T') {
		s = s[:10]
	}
	return core.ParseDate(s)
}

func blank(cols []string) bool {
	for _, c := range cols {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
