package http

import (
	"html/template"
	"sort"

	"dailyledger/internal/core"
	"dailyledger/internal/services"

	"github.com/shopspring/decimal"
)

// metricView is one labelled figure of a derived result.
type metricView struct {
	Label    string
	Value    string
	Negative bool
}

// entryResultView feeds entry_result.html.
type entryResultView struct {
	Saved       bool
	Date        string
	Metrics     []metricView
	Warnings    []core.Warning
	FieldErrors []fieldErrorView
	Message     string
}

type fieldErrorView struct {
	Field   string
	Message string
}

// reportView feeds report.html.
type reportView struct {
	Period  core.Period
	Label   string
	Periods []core.Period
	Today   string
	Days    int
	Summary []metricView
	Rows    []recordRow
}

type recordRow struct {
	Date  string
	Cells []string
}

// aggregatesView feeds aggregates.html.
type aggregatesView struct {
	By     string
	Groups []groupRow
}

type groupRow struct {
	Key, Range, Revenue, Orders, AOV, Start, End string
	Days                                         int
}

// indexView feeds index.html.
type indexView struct {
	Today    string
	Defaults core.EntryInput
	Currency string
	Periods  []core.Period
}

// recordHeaders label the report table, in the order of recordRow.Cells.
var recordHeaders = []string{
	"Starting Balance", "Bike Repairs", "Fuel", "Airtime", "End of Day Balance",
	"Payout", "Orders", "Balance After Repairs", "Total Expenses",
	"Balance After Expenses", "Food Purchased", "Closing Balance", "Revenue",
	"Average Order Value",
}

// defaultEntry pre-fills the form with a typical day.
func defaultEntry(today core.Date) core.EntryInput {
	return core.EntryInput{
		Date:            today.String(),
		StartingBalance: "478411",
		BikeRepairs:     "22500",
		Fuel:            "10000",
		Airtime:         "1000",
		EndOfDayBalance: "149472",
		Payout:          "353600",
		Orders:          "75",
	}
}

func (s *Server) money(d decimal.Decimal) string {
	return core.FormatAmount(d, s.currency)
}

func (s *Server) metricsOf(r core.LedgerRecord) []metricView {
	m := func(label string, d decimal.Decimal) metricView {
		return metricView{Label: label, Value: s.money(d), Negative: d.IsNegative()}
	}
	return []metricView{
		m("Balance After Repairs", r.BalanceAfterRepairs),
		m("Total Expenses", r.TotalExpenses),
		m("Balance After Expenses", r.BalanceAfterExpenses),
		m("Food Purchased", r.FoodPurchased),
		m("Closing Balance", r.ClosingBalance),
		m("Revenue", r.Revenue),
		m("Average Order Value", r.AverageOrderValue),
	}
}

func (s *Server) rowOf(r core.LedgerRecord) recordRow {
	cells := make([]string, 0, len(recordHeaders))
	for i, d := range r.Amounts() {
		if i == 6 {
			cells = append(cells, decimal.NewFromInt(r.Orders).String())
		}
		cells = append(cells, s.money(d))
	}
	return recordRow{Date: r.Date.String(), Cells: cells}
}

func (s *Server) reportViewOf(rep services.Report) reportView {
	v := reportView{
		Period:  rep.Period,
		Label:   rep.Period.Label(),
		Periods: core.Periods(),
		Today:   rep.Today.String(),
		Days:    rep.Summary.Days,
		Summary: []metricView{
			{Label: "Total Revenue", Value: s.money(rep.Summary.TotalRevenue), Negative: rep.Summary.TotalRevenue.IsNegative()},
			{Label: "Total Orders", Value: decimal.NewFromInt(rep.Summary.TotalOrders).String()},
			{Label: "Avg Daily Revenue", Value: s.money(rep.Summary.AvgDailyRevenue)},
			{Label: "Avg Daily Orders", Value: rep.Summary.AvgDailyOrders.StringFixed(1)},
			{Label: "Avg Order Value", Value: s.money(rep.Summary.AvgOrderValue)},
		},
	}
	for _, r := range rep.Records {
		v.Rows = append(v.Rows, s.rowOf(r))
	}
	return v
}

func (s *Server) aggregatesViewOf(by string, groups []core.GroupSummary) aggregatesView {
	v := aggregatesView{By: by}
	for _, g := range groups {
		v.Groups = append(v.Groups, groupRow{
			Key:     g.Key,
			Range:   g.Range(),
			Days:    g.Days,
			Revenue: s.money(g.Revenue),
			Orders:  decimal.NewFromInt(g.Orders).String(),
			AOV:     s.money(g.AverageOrderValue),
			Start:   s.money(g.StartingBalance),
			End:     s.money(g.EndOfDayBalance),
		})
	}
	return v
}

func fieldErrorsView(fe core.FieldErrors) []fieldErrorView {
	out := make([]fieldErrorView, 0, len(fe))
	for k, v := range fe {
		out = append(out, fieldErrorView{Field: k, Message: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Field < out[j].Field })
	return out
}

var templateFuncs = template.FuncMap{
	"headers": func() []string { return recordHeaders },
}

// recordJSON is the API shape of a ledger record. Amounts are decimal
// strings.
type recordJSON struct {
	Date                 string          `json:"date"`
	StartingBalance      decimal.Decimal `json:"starting_balance"`
	BikeRepairs          decimal.Decimal `json:"bike_repairs"`
	Fuel                 decimal.Decimal `json:"fuel"`
	Airtime              decimal.Decimal `json:"airtime"`
	EndOfDayBalance      decimal.Decimal `json:"end_of_day_balance"`
	Payout               decimal.Decimal `json:"payout"`
	Orders               int64           `json:"orders"`
	BalanceAfterRepairs  decimal.Decimal `json:"balance_after_repairs"`
	TotalExpenses        decimal.Decimal `json:"total_expenses"`
	BalanceAfterExpenses decimal.Decimal `json:"balance_after_expenses"`
	FoodPurchased        decimal.Decimal `json:"food_purchased"`
	ClosingBalance       decimal.Decimal `json:"closing_balance"`
	Revenue              decimal.Decimal `json:"revenue"`
	AverageOrderValue    decimal.Decimal `json:"average_order_value"`
}

type submissionJSON struct {
	Record   recordJSON     `json:"record"`
	Warnings []core.Warning `json:"warnings"`
	Saved    bool           `json:"saved"`
}

func toRecordJSON(r core.LedgerRecord) recordJSON {
	return recordJSON{
		Date:                 r.Date.String(),
		StartingBalance:      r.StartingBalance,
		BikeRepairs:          r.BikeRepairs,
		Fuel:                 r.Fuel,
		Airtime:              r.Airtime,
		EndOfDayBalance:      r.EndOfDayBalance,
		Payout:               r.Payout,
		Orders:               r.Orders,
		BalanceAfterRepairs:  r.BalanceAfterRepairs,
		TotalExpenses:        r.TotalExpenses,
		BalanceAfterExpenses: r.BalanceAfterExpenses,
		FoodPurchased:        r.FoodPurchased,
		ClosingBalance:       r.ClosingBalance,
		Revenue:              r.Revenue,
		AverageOrderValue:    r.AverageOrderValue.Round(2),
	}
}

func toSubmissionJSON(sub services.Submission, saved bool) submissionJSON {
	w := sub.Warnings
	if w == nil {
		w = []core.Warning{}
	}
	return submissionJSON{Record: toRecordJSON(sub.Record), Warnings: w, Saved: saved}
}
