package core

// Warning flags an economically implausible figure. Warnings never block a
// save; they are shown next to the derived metrics.
type Warning struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Warnings inspects a record for values that are arithmetically valid but
// unlikely to be what the operator meant.
func Warnings(r LedgerRecord) []Warning {
	var out []Warning
	add := func(field, msg string) {
		out = append(out, Warning{Field: field, Message: msg})
	}

	inputs := []struct {
		field string
		neg   bool
	}{
		{FieldStartingBalance, r.StartingBalance.IsNegative()},
		{FieldBikeRepairs, r.BikeRepairs.IsNegative()},
		{FieldFuel, r.Fuel.IsNegative()},
		{FieldAirtime, r.Airtime.IsNegative()},
		{FieldEndOfDayBalance, r.EndOfDayBalance.IsNegative()},
		{FieldPayout, r.Payout.IsNegative()},
	}
	for _, in := range inputs {
		if in.neg {
			add(in.field, "is negative")
		}
	}
	if r.Orders < 0 {
		add(FieldOrders, "is negative")
	}

	if r.BalanceAfterRepairs.IsNegative() {
		add("balance_after_repairs", "repairs exceed the starting balance")
	}
	if r.BalanceAfterExpenses.IsNegative() {
		add("balance_after_expenses", "expenses exceed the balance after repairs")
	}
	if r.FoodPurchased.IsNegative() {
		add("food_purchased", "end of day balance is higher than the cash left after expenses")
	}
	if r.Revenue.IsNegative() {
		add("revenue", "closing balance is below the balance after repairs")
	}
	if r.Orders == 0 && !r.Revenue.IsZero() {
		add(FieldOrders, "revenue recorded on a day without orders")
	}
	return out
}
