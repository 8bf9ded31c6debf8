package billing

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// LineItem is one billable row of an invoice that is still being edited.
// Quantity and unit price can only change through the setters, which keep
// Amount equal to their product.
type LineItem struct {
	Name        string
	Description string

	quantity  decimal.Decimal
	unitPrice decimal.Decimal
	amount    decimal.Decimal
}

// NewLineItem builds a line item with its amount already computed.
func NewLineItem(name, description string, quantity, unitPrice decimal.Decimal) LineItem {
	li := LineItem{Name: name, Description: description}
	li.quantity = quantity
	li.unitPrice = unitPrice
	li.recompute()
	return li
}

// BlankLineItem is the empty row shown on a fresh form.
func BlankLineItem() LineItem {
	return NewLineItem("", "", decimal.NewFromInt(1), decimal.Zero)
}

func (li LineItem) Quantity() decimal.Decimal  { return li.quantity }
func (li LineItem) UnitPrice() decimal.Decimal { return li.unitPrice }
func (li LineItem) Amount() decimal.Decimal    { return li.amount }

// SetQuantity replaces the quantity and recomputes the amount.
func (li *LineItem) SetQuantity(q decimal.Decimal) {
	li.quantity = q
	li.recompute()
}

// SetUnitPrice replaces the unit price and recomputes the amount.
func (li *LineItem) SetUnitPrice(p decimal.Decimal) {
	li.unitPrice = p
	li.recompute()
}

// SetQuantityText parses user input; blank input counts as zero.
func (li *LineItem) SetQuantityText(s string) error {
	q, err := ParseAmount(s)
	if err != nil {
		return fmt.Errorf("quantity: %w", err)
	}
	li.SetQuantity(q)
	return nil
}

// SetUnitPriceText parses user input; blank input counts as zero.
func (li *LineItem) SetUnitPriceText(s string) error {
	p, err := ParseAmount(s)
	if err != nil {
		return fmt.Errorf("unit price: %w", err)
	}
	li.SetUnitPrice(p)
	return nil
}

// MarshalJSON exposes the derived amount alongside the editable fields.
func (li LineItem) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Name        string          `json:"name"`
		Description string          `json:"description,omitempty"`
		Quantity    decimal.Decimal `json:"quantity"`
		UnitPrice   decimal.Decimal `json:"unit_price"`
		Amount      decimal.Decimal `json:"amount"`
	}{li.Name, li.Description, li.quantity, li.unitPrice, li.amount})
}

func (li *LineItem) recompute() {
	li.amount = li.quantity.Mul(li.unitPrice)
}

var amountReplacer = strings.NewReplacer(",", "", " ", "", "_", "", "$", "", "€", "", "£", "")

// ParseAmount converts a numeric form field to a decimal. An empty field is
// zero rather than an error so partially filled rows still total up.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = amountReplacer.Replace(strings.TrimSpace(s))
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid number %q", s)
	}
	return d, nil
}

// JoinDescription encodes name and description into the single-field form
// used by older rows: name, a newline, then the description.
func JoinDescription(name, description string) string {
	if description == "" {
		return name
	}
	return name + "\n" + description
}

// SplitDescription reverses JoinDescription. Only the first newline separates
// the name, so descriptions may themselves span several lines.
func SplitDescription(stored string) (name, description string) {
	name, description, _ = strings.Cut(stored, "\n")
	return name, description
}
