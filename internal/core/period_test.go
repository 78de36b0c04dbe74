package core

import "testing"

func TestPeriodStart(t *testing.T) {
	wed := NewDate(2025, 1, 15)
	sun := NewDate(2025, 1, 19)
	mon := NewDate(2025, 1, 13)
	cases := []struct {
		p     Period
		today Date
		want  Date
	}{
		{PeriodDay, wed, wed},
		{PeriodWeek, wed, mon},
		{PeriodWeek, sun, mon},
		{PeriodWeek, mon, mon},
		{PeriodMonth, wed, NewDate(2025, 1, 1)},
		{PeriodAll, wed, Date{}},
	}
	for i, tc := range cases {
		if got := tc.p.Start(tc.today); !got.Equal(tc.want) {
			t.Fatalf("case %d (%s): expected %s, got %s", i, tc.p, tc.want, got)
		}
	}
}

func TestParsePeriod(t *testing.T) {
	cases := map[string]Period{
		"":           PeriodAll,
		"all":        PeriodAll,
		"Today":      PeriodDay,
		"day":        PeriodDay,
		"this week":  PeriodWeek,
		"WEEK":       PeriodWeek,
		"This Month": PeriodMonth,
	}
	for in, want := range cases {
		got, err := ParsePeriod(in)
		if err != nil || got != want {
			t.Fatalf("%q expected %s, got %s (err=%v)", in, want, got, err)
		}
	}
	if _, err := ParsePeriod("year"); err == nil {
		t.Fatalf("expected error for unknown period")
	}
}

func recOn(d Date, revenue string, orders int64) LedgerRecord {
	return LedgerRecord{
		DailyEntry:     DailyEntry{Date: d, Orders: orders},
		DerivedMetrics: DerivedMetrics{Revenue: dec(revenue)},
	}
}

func TestFilterByPeriodMonth(t *testing.T) {
	today := NewDate(2025, 2, 10)
	recs := []LedgerRecord{
		recOn(NewDate(2025, 1, 30), "100", 1),
		recOn(NewDate(2025, 1, 31), "200", 2),
		recOn(NewDate(2025, 2, 1), "300", 3),
		recOn(NewDate(2025, 2, 10), "400", 4),
	}
	got := FilterByPeriod(recs, PeriodMonth, today)
	if len(got) != 2 {
		t.Fatalf("expected 2 records this month, got %d", len(got))
	}
	s := Summarize(got)
	if !s.TotalRevenue.Equal(dec("700")) || s.TotalOrders != 7 {
		t.Fatalf("unexpected summary: %+v", s)
	}
	if len(recs) != 4 {
		t.Fatalf("filter must not modify input")
	}
}

func TestFilterByPeriodWeekAndDay(t *testing.T) {
	today := NewDate(2025, 1, 15) // Wednesday
	recs := []LedgerRecord{
		recOn(NewDate(2025, 1, 12), "1", 1), // previous Sunday
		recOn(NewDate(2025, 1, 13), "1", 1),
		recOn(NewDate(2025, 1, 15), "1", 1),
	}
	if got := FilterByPeriod(recs, PeriodWeek, today); len(got) != 2 {
		t.Fatalf("expected 2 records this week, got %d", len(got))
	}
	if got := FilterByPeriod(recs, PeriodDay, today); len(got) != 1 || !got[0].Date.Equal(today) {
		t.Fatalf("expected only today's record, got %v", got)
	}
	if got := FilterByPeriod(recs, PeriodAll, today); len(got) != 3 {
		t.Fatalf("expected all records, got %d", len(got))
	}
	// Same ledger, one week later: nothing left in "week".
	if got := FilterByPeriod(recs, PeriodWeek, today.AddDays(7)); len(got) != 0 {
		t.Fatalf("expected no records next week, got %d", len(got))
	}
}

func TestFilterByRange(t *testing.T) {
	recs := []LedgerRecord{
		recOn(NewDate(2025, 1, 1), "1", 1),
		recOn(NewDate(2025, 1, 5), "1", 1),
		recOn(NewDate(2025, 1, 9), "1", 1),
	}
	if got := FilterByRange(recs, NewDate(2025, 1, 5), NewDate(2025, 1, 9)); len(got) != 2 {
		t.Fatalf("expected inclusive range of 2, got %d", len(got))
	}
	if got := FilterByRange(recs, Date{}, NewDate(2025, 1, 4)); len(got) != 1 {
		t.Fatalf("expected open lower bound, got %d", len(got))
	}
}
