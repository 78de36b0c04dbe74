package google

import (
	"fmt"
	"strconv"
	"strings"

	"dailyledger/internal/core"
	"dailyledger/internal/records"
)

func headerRow() []any {
	out := make([]any, len(records.Columns))
	for i, c := range records.Columns {
		out[i] = c
	}
	return out
}

// recordRow renders a record for a RAW values update: the date stays text so
// column A can be matched exactly, amounts and orders are numbers.
func recordRow(r core.LedgerRecord) []any {
	out := make([]any, 0, len(records.Columns))
	out = append(out, r.Date.String())
	for i, a := range r.Amounts() {
		if i == 6 {
			out = append(out, r.Orders)
		}
		out = append(out, a.InexactFloat64())
	}
	return out
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = cellString(v)
	}
	return out
}

// cellString formats an unformatted cell value. Floats are written in plain
// notation since ParseAmount does not accept exponents.
func cellString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case string:
		return strings.TrimSpace(x)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// dateKey normalizes a column A value to the ISO date key.
func dateKey(s string) (string, bool) {
	if len(s) > len(core.DateLayout) {
		s = s[:len(core.DateLayout)]
	}
	d, err := core.ParseDate(s)
	if err != nil {
		return "", false
	}
	return d.String(), true
}
