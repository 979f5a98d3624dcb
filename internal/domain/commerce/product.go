package commerce

import "github.com/shopspring/decimal"

// Product is the catalog item as supplied by the products service.
type Product struct {
	ID       string
	Name     string
	Category string
	Image    string
	URL      string
	Price    decimal.Decimal
}

// RoundedPrice returns the price rounded to two fractional digits.
func (p *Product) RoundedPrice() float64 {
	return RoundMoney(p.Price)
}
