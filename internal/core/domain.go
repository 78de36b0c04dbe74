package core

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the ISO-8601 calendar date layout used everywhere a date is
// persisted or exchanged.
const DateLayout = "2006-01-02"

type (
	// Date is a calendar day at UTC midnight.
	Date struct {
		time.Time
	}

	// DailyEntry holds the figures entered by hand at the end of a day.
	DailyEntry struct {
		Date            Date
		StartingBalance decimal.Decimal
		BikeRepairs     decimal.Decimal // repairs and other company expenses
		Fuel            decimal.Decimal
		Airtime         decimal.Decimal
		EndOfDayBalance decimal.Decimal
		Payout          decimal.Decimal
		Orders          int64
	}

	// DerivedMetrics are computed from a DailyEntry by Derive and never
	// stored without it.
	DerivedMetrics struct {
		BalanceAfterRepairs  decimal.Decimal
		TotalExpenses        decimal.Decimal
		BalanceAfterExpenses decimal.Decimal
		FoodPurchased        decimal.Decimal
		ClosingBalance       decimal.Decimal
		Revenue              decimal.Decimal
		AverageOrderValue    decimal.Decimal
	}

	// LedgerRecord is one row of the ledger: the raw entry plus its metrics.
	LedgerRecord struct {
		DailyEntry
		DerivedMetrics
	}
)

var (
	ErrInvalidDate   = errors.New("invalid date")
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidOrders = errors.New("invalid order count")
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day, keeping t's own wall clock.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	return nil
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// Equal reports whether both dates name the same calendar day.
func (d Date) Equal(o Date) bool {
	return d.String() == o.String()
}

// Before reports whether d is an earlier calendar day than o.
func (d Date) Before(o Date) bool {
	return d.Time.Before(o.Time)
}

// AddDays returns the date n days after d.
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (e DailyEntry) Validate() error {
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if e.Orders < 0 {
		return ErrInvalidOrders
	}
	return nil
}

// Key is the unique ledger key of the record.
func (r LedgerRecord) Key() string {
	return r.Date.String()
}

// Equal compares every raw and derived field numerically.
func (r LedgerRecord) Equal(o LedgerRecord) bool {
	if !r.Date.Equal(o.Date) || r.Orders != o.Orders {
		return false
	}
	a, b := r.Amounts(), o.Amounts()
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// Amounts returns every currency column in persisted column order, skipping
// Date and Orders.
func (r LedgerRecord) Amounts() []decimal.Decimal {
	return []decimal.Decimal{
		r.StartingBalance,
		r.BikeRepairs,
		r.Fuel,
		r.Airtime,
		r.EndOfDayBalance,
		r.Payout,
		r.BalanceAfterRepairs,
		r.TotalExpenses,
		r.BalanceAfterExpenses,
		r.FoodPurchased,
		r.ClosingBalance,
		r.Revenue,
		r.AverageOrderValue,
	}
}
