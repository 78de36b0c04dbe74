package core

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// Summary is the headline of a report over a set of ledger records.
type Summary struct {
	Days            int
	TotalRevenue    decimal.Decimal
	TotalOrders     int64
	AvgDailyRevenue decimal.Decimal
	AvgDailyOrders  decimal.Decimal
	// AvgOrderValue is TotalRevenue / TotalOrders, not the mean of the
	// per-day averages.
	AvgOrderValue decimal.Decimal
}

// GroupSummary rolls up the records of one calendar week or month.
type GroupSummary struct {
	Key               string // "2025-W03" or "2025-01"
	From              Date
	To                Date
	Days              int
	Revenue           decimal.Decimal
	Orders            int64
	StartingBalance   decimal.Decimal // of the earliest day in the group
	EndOfDayBalance   decimal.Decimal // of the latest day in the group
	AverageOrderValue decimal.Decimal
}

// Range formats the dates covered by the group, e.g. "2025-01-06 to 2025-01-12".
func (g GroupSummary) Range() string {
	return g.From.String() + " to " + g.To.String()
}

// Summarize totals revenue and orders over recs. Averages over an empty set
// are zero.
func Summarize(recs []LedgerRecord) Summary {
	s := Summary{Days: len(recs), TotalRevenue: decimal.Zero}
	for _, r := range recs {
		s.TotalRevenue = s.TotalRevenue.Add(r.Revenue)
		s.TotalOrders += r.Orders
	}
	s.AvgOrderValue = ratio(s.TotalRevenue, s.TotalOrders)
	if s.Days == 0 {
		s.AvgDailyRevenue = decimal.Zero
		s.AvgDailyOrders = decimal.Zero
		return s
	}
	days := decimal.NewFromInt(int64(s.Days))
	s.AvgDailyRevenue = s.TotalRevenue.Div(days)
	s.AvgDailyOrders = decimal.NewFromInt(s.TotalOrders).Div(days)
	return s
}

// WeekKey is the ISO week of d, formatted "YYYY-Www" with the ISO year.
func WeekKey(d Date) string {
	y, w := d.ISOWeek()
	return fmt.Sprintf("%04d-W%02d", y, w)
}

// MonthKey is the calendar month of d, formatted "YYYY-MM".
func MonthKey(d Date) string {
	return fmt.Sprintf("%04d-%02d", d.Year(), int(d.Month()))
}

// AggregateByWeek groups recs by ISO week. Groups are sorted by key.
func AggregateByWeek(recs []LedgerRecord) []GroupSummary {
	return aggregate(recs, WeekKey)
}

// AggregateByMonth groups recs by calendar month. Groups are sorted by key.
func AggregateByMonth(recs []LedgerRecord) []GroupSummary {
	return aggregate(recs, MonthKey)
}

func aggregate(recs []LedgerRecord, keyOf func(Date) string) []GroupSummary {
	sorted := SortOldestFirst(recs)
	groups := map[string]*GroupSummary{}
	var keys []string
	for _, r := range sorted {
		k := keyOf(r.Date)
		g, ok := groups[k]
		if !ok {
			g = &GroupSummary{
				Key:             k,
				From:            r.Date,
				Revenue:         decimal.Zero,
				StartingBalance: r.StartingBalance,
			}
			groups[k] = g
			keys = append(keys, k)
		}
		g.To = r.Date
		g.Days++
		g.Revenue = g.Revenue.Add(r.Revenue)
		g.Orders += r.Orders
		g.EndOfDayBalance = r.EndOfDayBalance
	}
	sort.Strings(keys)
	out := make([]GroupSummary, 0, len(keys))
	for _, k := range keys {
		g := groups[k]
		g.AverageOrderValue = ratio(g.Revenue, g.Orders)
		out = append(out, *g)
	}
	return out
}

// SortNewestFirst returns a copy of recs ordered by date, latest first.
func SortNewestFirst(recs []LedgerRecord) []LedgerRecord {
	out := append([]LedgerRecord(nil), recs...)
	sort.SliceStable(out, func(i, j int) bool { return out[j].Date.Before(out[i].Date) })
	return out
}

// SortOldestFirst returns a copy of recs ordered by date, earliest first.
func SortOldestFirst(recs []LedgerRecord) []LedgerRecord {
	out := append([]LedgerRecord(nil), recs...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}
