package economy

import (
	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// Money renders a dollar figure rounded to cents, e.g. "20600.00".
func Money(v float64) string {
	return decimal.NewFromFloat(v).Round(2).StringFixed(2)
}

// Cents rounds a dollar figure to cents for display and comparison.
func Cents(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(2)
}

// Readable renders large figures with SI prefixes for logs, e.g. "$1.2 T".
func Readable(v float64) string {
	s := humanize.SIWithDigits(v, 2, "")
	return "$" + s
}
