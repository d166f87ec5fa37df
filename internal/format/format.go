// Package format renders ledger values for display. Formatting never feeds
// back into stored values.
package format

import (
	"fmt"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

var (
	billion = decimal.NewFromInt(1_000_000_000)
	million = decimal.NewFromInt(1_000_000)
	cents   = decimal.NewFromInt(100)

	hundredth     = decimal.NewFromFloat(0.01)
	oneUnit       = decimal.NewFromInt(1)
	currencyCode  = money.USD
	currencyGlyph = "$"
)

// Currency formats a USD amount: $1.23B at or above a billion, $4.56M at or
// above a million, otherwise $12,345.68.
func Currency(v decimal.Decimal) string {
	switch {
	case v.GreaterThanOrEqual(billion):
		return currencyGlyph + v.Div(billion).StringFixed(2) + "B"
	case v.GreaterThanOrEqual(million):
		return currencyGlyph + v.Div(million).StringFixed(2) + "M"
	}
	return money.New(v.Mul(cents).Round(0).IntPart(), currencyCode).Display()
}

// Quantity formats an instrument quantity with precision that grows as the
// amount shrinks.
func Quantity(v decimal.Decimal, symbol string) string {
	places := int32(2)
	switch {
	case v.LessThan(hundredth):
		places = 6
	case v.LessThan(oneUnit):
		places = 4
	}
	return v.StringFixed(places) + " " + symbol
}

// Percent formats a signed percentage with two decimals.
func Percent(v decimal.Decimal) string {
	s := v.StringFixed(2) + "%"
	if !v.IsNegative() {
		return "+" + s
	}
	return s
}

// Clock formats a timestamp as hour and minute, e.g. "03:04 PM".
func Clock(t time.Time) string {
	return t.Format("03:04 PM")
}

// RelativeDate describes t relative to now: "Today", "Yesterday",
// "3 days ago", and "Jan 2" beyond a week.
func RelativeDate(t, now time.Time) string {
	days := int(now.Sub(t) / (24 * time.Hour))
	switch {
	case days <= 0:
		return "Today"
	case days == 1:
		return "Yesterday"
	case days < 7:
		return fmt.Sprintf("%d days ago", days)
	}
	return t.Format("Jan 2")
}
