// Package core provides money parsing and handling utilities.
//
// This file contains the parsing of user-typed amounts and order counts, and
// the display formatting used by the dashboard and exports.
package core

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultCurrencySymbol is the naira sign shown in front of amounts.
const DefaultCurrencySymbol = "₦"

// ParseAmount converts a user-formatted amount to a decimal.
//
// Commas are thousands separators and a dot is the decimal point. A leading
// currency marker (₦, NGN, N) and surrounding spaces are ignored. Negative
// values are accepted; plausibility is judged later by Warnings.
//
// Examples:
//
//	ParseAmount("478411")      -> 478411
//	ParseAmount("₦12,345.50")  -> 12345.5
//	ParseAmount("-250")        -> -250
//	ParseAmount("12.3.4")      -> ErrInvalidAmount
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = strings.TrimSpace(s[1:])
	} else if strings.HasPrefix(s, "+") {
		s = strings.TrimSpace(s[1:])
	}
	for _, marker := range []string{DefaultCurrencySymbol, "NGN", "ngn", "N"} {
		if strings.HasPrefix(s, marker) {
			s = strings.TrimSpace(strings.TrimPrefix(s, marker))
			break
		}
	}
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, " ", "")
	if s == "" || s == "." {
		return decimal.Zero, ErrInvalidAmount
	}
	dots := 0
	for _, r := range s {
		switch {
		case r == '.':
			dots++
		case r < '0' || r > '9':
			return decimal.Zero, ErrInvalidAmount
		}
	}
	if dots > 1 {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if neg {
		d = d.Neg()
	}
	return d, nil
}

// ParseOrders parses a non-negative whole order count. "75.0" is accepted
// since spreadsheets often hand integers back as floats.
func ParseOrders(s string) (int64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0, ErrInvalidOrders
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n < 0 {
			return 0, ErrInvalidOrders
		}
		return n, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil || !d.IsInteger() || d.IsNegative() {
		return 0, ErrInvalidOrders
	}
	return d.IntPart(), nil
}

// FormatAmount renders d with two decimals, thousands separators and the
// given currency symbol, e.g. "₦455,911.00" or "-₦1,200.50".
func FormatAmount(d decimal.Decimal, symbol string) string {
	neg := d.IsNegative()
	s := d.Abs().StringFixed(2)
	intPart, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	b.WriteString(symbol)
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	b.WriteString(frac)
	return b.String()
}
