package records

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"dailyledger/internal/core"

	"github.com/shopspring/decimal"
)

// jsonRecord is one element of the JSON records array. Amounts are written
// as JSON numbers so spreadsheet and dataframe tools read them natively.
type jsonRecord struct {
	Date                 string      `json:"Date"`
	StartingBalance      json.Number `json:"Starting Balance"`
	BikeRepairs          json.Number `json:"Bike Repairs"`
	Fuel                 json.Number `json:"Fuel"`
	Airtime              json.Number `json:"Airtime"`
	EndOfDayBalance      json.Number `json:"End of Day Balance"`
	Payout               json.Number `json:"Payout"`
	Orders               int64       `json:"Orders"`
	BalanceAfterRepairs  json.Number `json:"Balance After Repairs"`
	TotalExpenses        json.Number `json:"Total Expenses"`
	BalanceAfterExpenses json.Number `json:"Balance After Expenses"`
	FoodPurchased        json.Number `json:"Food Purchased"`
	ClosingBalance       json.Number `json:"Closing Balance"`
	Revenue              json.Number `json:"Revenue"`
	AverageOrderValue    json.Number `json:"Average Order Value"`
}

func num(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}

// WriteJSON writes recs as an indented JSON array of column-keyed objects.
func WriteJSON(w io.Writer, recs []core.LedgerRecord) error {
	out := make([]jsonRecord, 0, len(recs))
	for _, r := range recs {
		out = append(out, jsonRecord{
			Date:                 r.Date.String(),
			StartingBalance:      num(r.StartingBalance),
			BikeRepairs:          num(r.BikeRepairs),
			Fuel:                 num(r.Fuel),
			Airtime:              num(r.Airtime),
			EndOfDayBalance:      num(r.EndOfDayBalance),
			Payout:               num(r.Payout),
			Orders:               r.Orders,
			BalanceAfterRepairs:  num(r.BalanceAfterRepairs),
			TotalExpenses:        num(r.TotalExpenses),
			BalanceAfterExpenses: num(r.BalanceAfterExpenses),
			FoodPurchased:        num(r.FoodPurchased),
			ClosingBalance:       num(r.ClosingBalance),
			Revenue:              num(r.Revenue),
			AverageOrderValue:    num(r.AverageOrderValue),
		})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode json records: %w", err)
	}
	return nil
}

// ReadJSON reads a JSON array of column-keyed objects. Values may be numbers
// or strings; a numeric Date is taken as epoch milliseconds, the way
// dataframe libraries write dates by default. Empty input yields no records.
func ReadJSON(r io.Reader) ([]core.LedgerRecord, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read json records: %w", err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var items []map[string]any
	if err := dec.Decode(&items); err != nil {
		return nil, &DecodeError{Err: err}
	}

	lowered := make([]map[string]any, len(items))
	seen := map[string]bool{}
	for i, item := range items {
		lowered[i] = make(map[string]any, len(item))
		for k, v := range item {
			k = strings.ToLower(strings.TrimSpace(k))
			lowered[i][k] = v
			seen[k] = true
		}
	}

	// Only columns present in the input go into the header, so a missing
	// required column is reported as such rather than as empty cells.
	var header []string
	for _, name := range Columns {
		if seen[strings.ToLower(name)] {
			header = append(header, name)
		}
	}
	rows := make([][]string, 0, len(items))
	for i, item := range lowered {
		cols := make([]string, len(header))
		for c, name := range header {
			v, ok := item[strings.ToLower(name)]
			if !ok || v == nil {
				continue
			}
			s, err := jsonCell(name, v)
			if err != nil {
				return nil, &DecodeError{Line: i + 1, Column: name, Err: err}
			}
			cols[c] = s
		}
		rows = append(rows, cols)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return decodeRows(header, rows, 1)
}

func jsonCell(col string, v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case json.Number:
		if col == ColDate {
			ms, err := x.Int64()
			if err != nil {
				return "", err
			}
			return time.UnixMilli(ms).UTC().Format(core.DateLayout), nil
		}
		d, err := decimal.NewFromString(x.String())
		if err != nil {
			return "", err
		}
		return d.String(), nil
	default:
		return "", fmt.Errorf("unexpected value %v", v)
	}
}
