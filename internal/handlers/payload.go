package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/diewo77/invoicegen/internal/billing"
	"github.com/diewo77/invoicegen/validation"
	"github.com/shopspring/decimal"
)

// numField accepts a JSON number or a string; blank and null count as zero.
type numField struct {
	decimal.Decimal
	bad bool
}

func (n *numField) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		n.Decimal = decimal.Zero
		return nil
	}
	raw := string(b)
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &raw); err != nil {
			return err
		}
	}
	d, err := billing.ParseAmount(raw)
	if err != nil {
		n.bad = true
		n.Decimal = decimal.Zero
		return nil
	}
	n.Decimal = d
	return nil
}

type itemPayload struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Quantity    numField `json:"quantity"`
	UnitPrice   numField `json:"unit_price"`
}

// invoicePayload is the JSON body of POST /invoices and POST /invoices/quote.
type invoicePayload struct {
	ClientName    string        `json:"client_name"`
	ClientEmail   string        `json:"client_email"`
	ClientAddress string        `json:"client_address"`
	IssueDate     string        `json:"issue_date"`
	DueDate       string        `json:"due_date"`
	TaxRate       numField      `json:"tax_rate"`
	Notes         string        `json:"notes"`
	Items         []itemPayload `json:"items"`
}

// form converts the payload and reports numbers that failed to parse.
func (p invoicePayload) form() (billing.Form, validation.Violations) {
	v := validation.Violations{}
	f := billing.Form{
		ClientName:    p.ClientName,
		ClientEmail:   p.ClientEmail,
		ClientAddress: p.ClientAddress,
		IssueDate:     p.IssueDate,
		DueDate:       p.DueDate,
		TaxRate:       p.TaxRate.Decimal,
		Notes:         p.Notes,
	}
	if p.TaxRate.bad {
		v.Add("tax_rate", "invalid_number")
	}
	for i, it := range p.Items {
		if it.Quantity.bad {
			v.Add(fmt.Sprintf("items[%d].quantity", i), "invalid_number")
		}
		if it.UnitPrice.bad {
			v.Add(fmt.Sprintf("items[%d].unit_price", i), "invalid_number")
		}
		f.Items = append(f.Items, billing.NewLineItem(it.Name, it.Description, it.Quantity.Decimal, it.UnitPrice.Decimal))
	}
	return f, v
}

// parseInvoiceForm reads the urlencoded new-invoice form. Item columns are
// parallel arrays indexed by row.
func parseInvoiceForm(r *http.Request, today time.Time) (billing.Form, validation.Violations) {
	v := validation.Violations{}
	f := billing.NewForm(today)
	f.ClientName = r.PostFormValue("client_name")
	f.ClientEmail = r.PostFormValue("client_email")
	f.ClientAddress = r.PostFormValue("client_address")
	f.IssueDate = r.PostFormValue("issue_date")
	f.DueDate = r.PostFormValue("due_date")
	f.Notes = r.PostFormValue("notes")
	if rate, err := billing.ParseAmount(r.PostFormValue("tax_rate")); err != nil {
		v.Add("tax_rate", "invalid_number")
	} else {
		f.TaxRate = rate
	}

	names := r.PostForm["item_name"]
	descs := r.PostForm["item_description"]
	qtys := r.PostForm["item_quantity"]
	prices := r.PostForm["item_unit_price"]
	f.Items = f.Items[:0]
	for i := range names {
		desc, qty, price := at(descs, i), at(qtys, i), at(prices, i)
		li := billing.BlankLineItem()
		li.Name = names[i]
		li.Description = desc
		if err := li.SetQuantityText(qty); err != nil {
			v.Add(fmt.Sprintf("items[%d].quantity", i), "invalid_number")
		}
		if err := li.SetUnitPriceText(price); err != nil {
			v.Add(fmt.Sprintf("items[%d].unit_price", i), "invalid_number")
		}
		f.Items = append(f.Items, li)
	}
	return f, v
}

func at(s []string, i int) string {
	if i < len(s) {
		return s[i]
	}
	return ""
}

// formAction splits the submit button value, e.g. "remove_item:2".
func formAction(r *http.Request) (string, int) {
	name, arg, _ := strings.Cut(r.PostFormValue("action"), ":")
	idx, _ := strconv.Atoi(arg)
	if name == "" {
		name = "create"
	}
	return name, idx
}
