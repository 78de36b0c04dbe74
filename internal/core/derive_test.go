package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func sampleEntry() DailyEntry {
	return DailyEntry{
		Date:            NewDate(2025, 1, 15),
		StartingBalance: dec("478411"),
		BikeRepairs:     dec("22500"),
		Fuel:            dec("10000"),
		Airtime:         dec("1000"),
		EndOfDayBalance: dec("149472"),
		Payout:          dec("353600"),
		Orders:          75,
	}
}

func TestDeriveReferenceDay(t *testing.T) {
	m := Derive(sampleEntry())
	cases := []struct {
		name string
		got  decimal.Decimal
		want string
	}{
		{"balance_after_repairs", m.BalanceAfterRepairs, "455911"},
		{"total_expenses", m.TotalExpenses, "11000"},
		{"balance_after_expenses", m.BalanceAfterExpenses, "444911"},
		{"food_purchased", m.FoodPurchased, "295439"},
		{"closing_balance", m.ClosingBalance, "503072"},
		{"revenue", m.Revenue, "47161"},
	}
	for _, tc := range cases {
		if !tc.got.Equal(dec(tc.want)) {
			t.Fatalf("%s: expected %s, got %s", tc.name, tc.want, tc.got)
		}
	}
	if got := m.AverageOrderValue.StringFixed(4); got != "628.8133" {
		t.Fatalf("average_order_value: expected 628.8133, got %s", got)
	}
}

func TestDeriveZeroOrders(t *testing.T) {
	e := sampleEntry()
	e.Orders = 0
	m := Derive(e)
	if !m.AverageOrderValue.IsZero() {
		t.Fatalf("expected zero average order value, got %s", m.AverageOrderValue)
	}
	if !m.Revenue.Equal(dec("47161")) {
		t.Fatalf("revenue should not depend on orders, got %s", m.Revenue)
	}
}

func TestDeriveIsDeterministic(t *testing.T) {
	e := sampleEntry()
	a, b := Derive(e), Derive(e)
	ra := LedgerRecord{DailyEntry: e, DerivedMetrics: a}
	rb := LedgerRecord{DailyEntry: e, DerivedMetrics: b}
	if !ra.Equal(rb) {
		t.Fatalf("derive returned different metrics for identical input: %+v vs %+v", a, b)
	}
	if a.AverageOrderValue.String() != b.AverageOrderValue.String() {
		t.Fatalf("average order value differs: %s vs %s", a.AverageOrderValue, b.AverageOrderValue)
	}
}

func TestDeriveNegativeInputsFlowThrough(t *testing.T) {
	e := DailyEntry{
		Date:            NewDate(2025, 1, 15),
		StartingBalance: dec("100"),
		BikeRepairs:     dec("500"),
		Fuel:            dec("-20"),
		EndOfDayBalance: dec("900"),
		Payout:          dec("0"),
		Orders:          2,
	}
	m := Derive(e)
	if !m.BalanceAfterRepairs.Equal(dec("-400")) {
		t.Fatalf("expected -400, got %s", m.BalanceAfterRepairs)
	}
	if !m.FoodPurchased.Equal(dec("-1280")) {
		t.Fatalf("expected -1280, got %s", m.FoodPurchased)
	}
}

func TestRederiveIgnoresStaleMetrics(t *testing.T) {
	r := NewRecord(sampleEntry())
	stale := r
	stale.Revenue = dec("1")
	stale.AverageOrderValue = dec("2")
	if !stale.Rederive().Equal(r) {
		t.Fatalf("rederive should restore metrics from raw fields")
	}
}
