package commerce

import "github.com/shopspring/decimal"

// RoundMoney renders a decimal amount the way every destination expects it:
// rounded to two fractional digits.
func RoundMoney(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}
