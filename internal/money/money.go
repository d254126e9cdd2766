// Package money holds the storefront's price arithmetic and display formatting.
// Amounts are whole euros, the smallest unit the storefront shows.
package money

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const CurrencySymbol = "€"

var printer = message.NewPrinter(language.Spanish)

// Tax rounds subtotal*rate half away from zero, so 29.9 becomes 30.
func Tax(subtotal int64, rate decimal.Decimal) int64 {
	return decimal.NewFromInt(subtotal).Mul(rate).Round(0).IntPart()
}

// Format renders an amount the way the storefront displays prices, e.g. €299.
func Format(amount int64) string {
	return printer.Sprintf("%s%d", CurrencySymbol, amount)
}

// FormatRate renders a tax rate as a whole percentage, e.g. 10%.
func FormatRate(rate decimal.Decimal) string {
	return rate.Shift(2).StringFixed(0) + "%"
}
