package commerce

import "github.com/shopspring/decimal"

// CartItem is one line in a shopping cart.
type CartItem struct {
	ProductID   string
	ProductName string
	Quantity    int
	Price       decimal.Decimal
}

// RoundedPrice returns the unit price rounded to two fractional digits.
func (i CartItem) RoundedPrice() float64 {
	return RoundMoney(i.Price)
}

// Cart is a transient cart snapshot supplied per call by the caller.
type Cart struct {
	ID    string
	Items []CartItem
}

// HasItems reports whether the cart contains at least one line.
func (c *Cart) HasItems() bool {
	return len(c.Items) > 0
}
