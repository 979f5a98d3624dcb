package commerce

import "github.com/shopspring/decimal"

// OrderItem is one line of a completed order.
type OrderItem struct {
	ProductID   string
	ProductName string
	Quantity    int
	Price       decimal.Decimal
}

// RoundedPrice returns the unit price rounded to two fractional digits.
func (i OrderItem) RoundedPrice() float64 {
	return RoundMoney(i.Price)
}

// Order is a completed order as returned by the orders service.
type Order struct {
	ID    string
	Total decimal.Decimal
	Items []OrderItem
}

// RoundedTotal returns the order total rounded to two fractional digits.
func (o *Order) RoundedTotal() float64 {
	return RoundMoney(o.Total)
}
