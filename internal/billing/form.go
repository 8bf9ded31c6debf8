package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the wire format of calendar dates in forms and JSON.
const DateLayout = "2006-01-02"

// Form holds the state of the new-invoice form.
type Form struct {
	ClientName    string          `json:"client_name" validate:"required"`
	ClientEmail   string          `json:"client_email" validate:"required,email"`
	ClientAddress string          `json:"client_address" validate:"required"`
	IssueDate     string          `json:"issue_date" validate:"omitempty,datetime=2006-01-02"`
	DueDate       string          `json:"due_date" validate:"required,datetime=2006-01-02"`
	TaxRate       decimal.Decimal `json:"tax_rate"`
	Notes         string          `json:"notes"`
	Items         []LineItem      `json:"-"`
}

// NewForm returns the defaults a form is reset to: empty client fields, one
// blank item, no tax, and today as issue date.
func NewForm(today time.Time) Form {
	return Form{
		IssueDate: today.Format(DateLayout),
		TaxRate:   decimal.Zero,
		Items:     []LineItem{BlankLineItem()},
	}
}

// Totals computes the live totals of the form.
func (f Form) Totals() Totals {
	return Compute(f.Items, f.TaxRate)
}

// AddItem appends a blank row.
func (f *Form) AddItem() {
	f.Items = append(f.Items, BlankLineItem())
}

// RemoveItem drops row i but never the last remaining row.
func (f *Form) RemoveItem(i int) {
	if len(f.Items) <= 1 || i < 0 || i >= len(f.Items) {
		return
	}
	f.Items = append(f.Items[:i], f.Items[i+1:]...)
}
