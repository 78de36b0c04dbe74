package core

import "github.com/shopspring/decimal"

// Derive computes the day's metrics from the raw figures.
//
// The chain follows the cash flow of a delivery day: repairs come off the
// opening balance first, then fuel and airtime; whatever is missing from the
// account at the end of the day went on food, and revenue is what the payout
// brought back on top of the post-repair balance.
//
// Derive never fails. A day without orders has an average order value of
// zero rather than an error.
func Derive(e DailyEntry) DerivedMetrics {
	var m DerivedMetrics
	m.BalanceAfterRepairs = e.StartingBalance.Sub(e.BikeRepairs)
	m.TotalExpenses = e.Fuel.Add(e.Airtime)
	m.BalanceAfterExpenses = m.BalanceAfterRepairs.Sub(m.TotalExpenses)
	m.FoodPurchased = m.BalanceAfterExpenses.Sub(e.EndOfDayBalance)
	m.ClosingBalance = e.EndOfDayBalance.Add(e.Payout)
	m.Revenue = m.ClosingBalance.Sub(m.BalanceAfterRepairs)
	m.AverageOrderValue = ratio(m.Revenue, e.Orders)
	return m
}

// NewRecord derives the metrics for e and bundles them into a ledger row.
func NewRecord(e DailyEntry) LedgerRecord {
	return LedgerRecord{DailyEntry: e, DerivedMetrics: Derive(e)}
}

// Rederive recomputes the metrics from the raw fields. Loaders call it so a
// stored derived column can never disagree with the raw ones.
func (r LedgerRecord) Rederive() LedgerRecord {
	return NewRecord(r.DailyEntry)
}

// ratio divides amount by count, returning zero for a zero count.
func ratio(amount decimal.Decimal, count int64) decimal.Decimal {
	if count <= 0 {
		return decimal.Zero
	}
	return amount.Div(decimal.NewFromInt(count))
}
