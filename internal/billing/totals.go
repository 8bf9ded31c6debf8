package billing

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Totals are the derived money fields of an invoice. Values keep full
// precision; rounding to cents only happens when they are displayed.
type Totals struct {
	Subtotal  decimal.Decimal `json:"subtotal"`
	TaxAmount decimal.Decimal `json:"tax_amount"`
	Total     decimal.Decimal `json:"total"`
}

// Subtotal sums the amount of every item.
func Subtotal(items []LineItem) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(it.Amount())
	}
	return sum
}

// TaxAmount applies a percentage rate (0-100) to a subtotal.
func TaxAmount(subtotal, rate decimal.Decimal) decimal.Decimal {
	return subtotal.Mul(rate).Div(hundred)
}

// Compute derives subtotal, tax and total for items at the given tax rate.
func Compute(items []LineItem, rate decimal.Decimal) Totals {
	sub := Subtotal(items)
	tax := TaxAmount(sub, rate)
	return Totals{Subtotal: sub, TaxAmount: tax, Total: sub.Add(tax)}
}
