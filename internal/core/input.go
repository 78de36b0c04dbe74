package core

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Input field names, shared by the entry form, the JSON API and FieldErrors.
const (
	FieldDate            = "date"
	FieldStartingBalance = "starting_balance"
	FieldBikeRepairs     = "bike_repairs"
	FieldFuel            = "fuel"
	FieldAirtime         = "airtime"
	FieldEndOfDayBalance = "end_of_day_balance"
	FieldPayout          = "payout"
	FieldOrders          = "orders"
)

// EntryInput is a DailyEntry as typed by the user, before any parsing.
type EntryInput struct {
	Date            string `json:"date"`
	StartingBalance string `json:"starting_balance"`
	BikeRepairs     string `json:"bike_repairs"`
	Fuel            string `json:"fuel"`
	Airtime         string `json:"airtime"`
	EndOfDayBalance string `json:"end_of_day_balance"`
	Payout          string `json:"payout"`
	Orders          string `json:"orders"`
}

// FieldErrors maps an input field name to the reason it was rejected.
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	keys := make([]string, 0, len(fe))
	for k := range fe {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+fe[k])
	}
	return "invalid entry: " + strings.Join(parts, "; ")
}

// Parse validates every field and returns the typed entry. All problems are
// reported at once as FieldErrors; nothing reaches Derive unless all fields
// parse. An empty date means today.
func (in EntryInput) Parse(today Date) (DailyEntry, error) {
	var e DailyEntry
	errs := FieldErrors{}

	if strings.TrimSpace(in.Date) == "" {
		e.Date = today
	} else if d, err := ParseDate(strings.TrimSpace(in.Date)); err != nil {
		errs[FieldDate] = "must be a date in YYYY-MM-DD format"
	} else {
		e.Date = d
	}

	amounts := []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{FieldStartingBalance, in.StartingBalance, &e.StartingBalance},
		{FieldBikeRepairs, in.BikeRepairs, &e.BikeRepairs},
		{FieldFuel, in.Fuel, &e.Fuel},
		{FieldAirtime, in.Airtime, &e.Airtime},
		{FieldEndOfDayBalance, in.EndOfDayBalance, &e.EndOfDayBalance},
		{FieldPayout, in.Payout, &e.Payout},
	}
	for _, a := range amounts {
		if strings.TrimSpace(a.raw) == "" {
			errs[a.name] = "is required"
			continue
		}
		v, err := ParseAmount(a.raw)
		if err != nil {
			errs[a.name] = "must be a number"
			continue
		}
		*a.dst = v
	}

	if strings.TrimSpace(in.Orders) == "" {
		errs[FieldOrders] = "is required"
	} else if n, err := ParseOrders(in.Orders); err != nil {
		errs[FieldOrders] = "must be a whole number of zero or more"
	} else {
		e.Orders = n
	}

	if len(errs) > 0 {
		return DailyEntry{}, errs
	}
	return e, nil
}
