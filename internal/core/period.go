package core

import (
	"fmt"
	"strings"
)

// Period selects a window of the ledger relative to the current day.
type Period string

const (
	PeriodDay   Period = "day"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
	PeriodAll   Period = "all"
)

// Periods lists the periods in the order the dashboard offers them.
func Periods() []Period {
	return []Period{PeriodDay, PeriodWeek, PeriodMonth, PeriodAll}
}

// ParsePeriod accepts the period names case-insensitively, plus the labels
// used by the dashboard ("today", "this week", "this month", "all time").
// An empty string means all.
func ParsePeriod(s string) (Period, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all", "all time":
		return PeriodAll, nil
	case "day", "today":
		return PeriodDay, nil
	case "week", "this week":
		return PeriodWeek, nil
	case "month", "this month":
		return PeriodMonth, nil
	default:
		return "", fmt.Errorf("unknown period %q", s)
	}
}

func (p Period) IsValid() bool {
	switch p {
	case PeriodDay, PeriodWeek, PeriodMonth, PeriodAll:
		return true
	default:
		return false
	}
}

// Label is the human-readable name of the period.
func (p Period) Label() string {
	switch p {
	case PeriodDay:
		return "Today"
	case PeriodWeek:
		return "This Week"
	case PeriodMonth:
		return "This Month"
	default:
		return "All Time"
	}
}

// Start returns the first day included in the period when today is the
// given day. PeriodAll has no lower bound and returns the zero Date.
func (p Period) Start(today Date) Date {
	switch p {
	case PeriodDay:
		return today
	case PeriodWeek:
		// Monday is the first day of an ISO week.
		offset := (int(today.Weekday()) + 6) % 7
		return today.AddDays(-offset)
	case PeriodMonth:
		return NewDate(today.Year(), int(today.Month()), 1)
	default:
		return Date{}
	}
}

// Contains reports whether d falls in the period evaluated on today.
// Week and month are open-ended: anything on or after the start matches.
func (p Period) Contains(d, today Date) bool {
	switch p {
	case PeriodDay:
		return d.Equal(today)
	case PeriodWeek, PeriodMonth:
		return !d.Before(p.Start(today))
	default:
		return true
	}
}

// FilterByPeriod returns the records of recs that fall in p. The input slice
// is never modified.
func FilterByPeriod(recs []LedgerRecord, p Period, today Date) []LedgerRecord {
	out := make([]LedgerRecord, 0, len(recs))
	for _, r := range recs {
		if p.Contains(r.Date, today) {
			out = append(out, r)
		}
	}
	return out
}

// FilterByRange returns the records dated between from and to inclusive.
// A zero bound is open.
func FilterByRange(recs []LedgerRecord, from, to Date) []LedgerRecord {
	out := make([]LedgerRecord, 0, len(recs))
	for _, r := range recs {
		if !from.IsZero() && r.Date.Before(from) {
			continue
		}
		if !to.IsZero() && to.Before(r.Date) {
			continue
		}
		out = append(out, r)
	}
	return out
}
