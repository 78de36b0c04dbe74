package core

import "testing"

func TestSummarizeUsesAggregateRatio(t *testing.T) {
	recs := []LedgerRecord{
		recOn(NewDate(2025, 1, 1), "100", 10),
		recOn(NewDate(2025, 1, 2), "50", 0),
	}
	s := Summarize(recs)
	if !s.TotalRevenue.Equal(dec("150")) || s.TotalOrders != 10 || s.Days != 2 {
		t.Fatalf("unexpected totals: %+v", s)
	}
	if !s.AvgOrderValue.Equal(dec("15")) {
		t.Fatalf("expected aggregate ratio 15, got %s", s.AvgOrderValue)
	}
	if !s.AvgDailyRevenue.Equal(dec("75")) || !s.AvgDailyOrders.Equal(dec("5")) {
		t.Fatalf("unexpected daily averages: %s %s", s.AvgDailyRevenue, s.AvgDailyOrders)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil)
	if s.Days != 0 || !s.TotalRevenue.IsZero() || !s.AvgOrderValue.IsZero() || !s.AvgDailyRevenue.IsZero() {
		t.Fatalf("expected zero summary, got %+v", s)
	}
}

func TestAggregateByWeek(t *testing.T) {
	mk := func(d Date, start, end, revenue string, orders int64) LedgerRecord {
		r := recOn(d, revenue, orders)
		r.StartingBalance = dec(start)
		r.EndOfDayBalance = dec(end)
		return r
	}
	recs := []LedgerRecord{
		mk(NewDate(2025, 1, 2), "20", "21", "10", 5),   // 2025-W01
		mk(NewDate(2024, 12, 30), "10", "11", "30", 0), // 2025-W01 (ISO year)
		mk(NewDate(2025, 1, 6), "30", "31", "40", 4),   // 2025-W02
	}
	groups := AggregateByWeek(recs)
	if len(groups) != 2 {
		t.Fatalf("expected 2 weeks, got %d", len(groups))
	}
	w1 := groups[0]
	if w1.Key != "2025-W01" || w1.Days != 2 || w1.Orders != 5 {
		t.Fatalf("unexpected first week: %+v", w1)
	}
	if !w1.From.Equal(NewDate(2024, 12, 30)) || !w1.To.Equal(NewDate(2025, 1, 2)) {
		t.Fatalf("unexpected range %s", w1.Range())
	}
	if !w1.StartingBalance.Equal(dec("10")) || !w1.EndOfDayBalance.Equal(dec("21")) {
		t.Fatalf("expected first start and last end, got %s / %s", w1.StartingBalance, w1.EndOfDayBalance)
	}
	if !w1.Revenue.Equal(dec("40")) || !w1.AverageOrderValue.Equal(dec("8")) {
		t.Fatalf("unexpected revenue/aov: %s / %s", w1.Revenue, w1.AverageOrderValue)
	}
	if groups[1].Key != "2025-W02" {
		t.Fatalf("expected 2025-W02, got %s", groups[1].Key)
	}
}

func TestAggregateByMonth(t *testing.T) {
	recs := []LedgerRecord{
		recOn(NewDate(2025, 2, 3), "10", 1),
		recOn(NewDate(2025, 1, 3), "10", 0),
		recOn(NewDate(2025, 1, 20), "20", 0),
	}
	groups := AggregateByMonth(recs)
	if len(groups) != 2 || groups[0].Key != "2025-01" || groups[1].Key != "2025-02" {
		t.Fatalf("unexpected groups: %+v", groups)
	}
	if !groups[0].AverageOrderValue.IsZero() {
		t.Fatalf("zero orders should give zero aov, got %s", groups[0].AverageOrderValue)
	}
}

func TestSortNewestFirst(t *testing.T) {
	recs := []LedgerRecord{
		recOn(NewDate(2025, 1, 2), "0", 0),
		recOn(NewDate(2025, 1, 3), "0", 0),
		recOn(NewDate(2025, 1, 1), "0", 0),
	}
	got := SortNewestFirst(recs)
	if got[0].Date.Day() != 3 || got[2].Date.Day() != 1 {
		t.Fatalf("unexpected order: %s %s %s", got[0].Date, got[1].Date, got[2].Date)
	}
	if recs[0].Date.Day() != 2 {
		t.Fatalf("input must not be reordered")
	}
}

func TestWarnings(t *testing.T) {
	clean := NewRecord(sampleEntry())
	if w := Warnings(clean); len(w) != 0 {
		t.Fatalf("expected no warnings for the reference day, got %v", w)
	}
	e := sampleEntry()
	e.EndOfDayBalance = dec("500000")
	e.Orders = 0
	w := Warnings(NewRecord(e))
	fields := map[string]bool{}
	for _, x := range w {
		fields[x.Field] = true
	}
	if !fields["food_purchased"] {
		t.Fatalf("expected negative food purchased warning, got %v", w)
	}
	if !fields[FieldOrders] {
		t.Fatalf("expected revenue without orders warning, got %v", w)
	}
}
