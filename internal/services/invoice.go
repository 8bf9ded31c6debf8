package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/diewo77/invoicegen/gate"
	"github.com/diewo77/invoicegen/internal/billing"
	"github.com/diewo77/invoicegen/internal/config"
	"github.com/diewo77/invoicegen/internal/models"
	"github.com/diewo77/invoicegen/internal/policy"
	"github.com/diewo77/invoicegen/internal/store"
	"github.com/diewo77/invoicegen/validation"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

var maxTaxRate = decimal.NewFromInt(100)

// InvoiceService runs the invoice workflows on top of the store. Every
// operation is scoped to the calling user through the gate.
type InvoiceService struct {
	store    store.Invoices
	gate     *gate.Gate[uint]
	validate *validation.Validator
	log      logrus.FieldLogger

	Numbers *billing.NumberGenerator
	Now     func() time.Time
}

func NewInvoiceService(st store.Invoices, g *gate.Gate[uint], log logrus.FieldLogger) *InvoiceService {
	return &InvoiceService{
		store:    st,
		gate:     g,
		validate: validation.NewValidator(),
		log:      log,
		Numbers:  billing.NewNumberGenerator(),
		Now:      time.Now,
	}
}

// Validate checks a form without touching the store.
func (s *InvoiceService) Validate(form billing.Form) validation.Violations {
	v := validation.Violations{}
	if err := s.validate.Struct(form, v); err != nil {
		v.Add("form", "required")
	}
	validation.Required("client_name", form.ClientName, v)
	validation.Required("client_address", form.ClientAddress, v)
	validation.RangeDecimal("tax_rate", form.TaxRate, decimal.Zero, maxTaxRate, v)
	if len(form.Items) == 0 {
		v.Add("items", "required")
	}
	for i, it := range form.Items {
		prefix := fmt.Sprintf("items[%d].", i)
		validation.Required(prefix+"name", it.Name, v)
		validation.PositiveDecimal(prefix+"quantity", it.Quantity(), v)
		validation.NonNegativeDecimal(prefix+"unit_price", it.UnitPrice(), v)
	}
	return v
}

// Create validates the form, numbers the invoice, computes its totals and
// stores the invoice together with its items in one transaction.
func (s *InvoiceService) Create(ctx context.Context, userID uint, form billing.Form) (*models.Invoice, error) {
	if err := s.gate.Authorize(ctx, userID, gate.ActionCreate, policy.ResourceInvoice, nil); err != nil {
		return nil, ErrForbidden
	}
	if v := s.Validate(form); !v.Empty() {
		return nil, &ValidationError{Violations: v}
	}

	issued := s.Now()
	if form.IssueDate != "" {
		issued, _ = time.Parse(billing.DateLayout, form.IssueDate)
	}
	due, _ := time.Parse(billing.DateLayout, form.DueDate)
	totals := billing.Compute(form.Items, form.TaxRate)

	inv := &models.Invoice{
		UserID:        userID,
		Number:        s.Numbers.Next(),
		ClientName:    strings.TrimSpace(form.ClientName),
		ClientEmail:   strings.TrimSpace(form.ClientEmail),
		ClientAddress: strings.TrimSpace(form.ClientAddress),
		IssueDate:     datatypes.Date(issued),
		DueDate:       datatypes.Date(due),
		Status:        models.StatusDraft,
		TaxRate:       models.NewNumeric(form.TaxRate),
		Subtotal:      models.NewNumeric(totals.Subtotal),
		TaxAmount:     models.NewNumeric(totals.TaxAmount),
		Total:         models.NewNumeric(totals.Total),
		Notes:         strings.TrimSpace(form.Notes),
	}

	err := s.store.Transaction(ctx, func(tx store.Invoices) error {
		if err := tx.InsertInvoice(ctx, inv); err != nil {
			return &PersistenceError{Op: "insert invoice", Err: err}
		}
		items := make([]models.InvoiceItem, 0, len(form.Items))
		for i, li := range form.Items {
			it := models.NewInvoiceItem(i, li)
			it.InvoiceID = inv.ID
			items = append(items, it)
		}
		if err := tx.InsertItems(ctx, items); err != nil {
			return &PersistenceError{Op: "insert invoice items", Err: err}
		}
		inv.Items = items
		return nil
	})
	if err != nil {
		var pe *PersistenceError
		if !errors.As(err, &pe) {
			pe = &PersistenceError{Op: "create invoice", Err: err}
		}
		config.LogError(s.log, "invoice", "Create", pe.Op, map[string]any{"number": inv.Number, "user_id": userID}, pe.Err)
		return nil, pe
	}
	s.log.WithFields(logrus.Fields{"invoice_id": inv.ID, "number": inv.Number, "user_id": userID}).Info("invoice created")
	return inv, nil
}

// Quote returns the live totals of unsaved items.
func (s *InvoiceService) Quote(items []billing.LineItem, rate decimal.Decimal) billing.Totals {
	return billing.Compute(items, rate)
}

// ListFilter selects a page of the caller's invoices.
type ListFilter struct {
	Status models.Status
	Query  string
	Limit  int
	Offset int
}

// ListResult is one page of invoices, newest first.
type ListResult struct {
	Items  []models.Invoice `json:"items"`
	Total  int64            `json:"total"`
	Limit  int              `json:"limit"`
	Offset int              `json:"offset"`
}

func (s *InvoiceService) List(ctx context.Context, userID uint, f ListFilter) (ListResult, error) {
	if err := s.gate.Authorize(ctx, userID, gate.ActionList, policy.ResourceInvoice, nil); err != nil {
		return ListResult{}, ErrForbidden
	}
	if f.Status != "" && !f.Status.Valid() {
		return ListResult{}, ErrInvalidStatus
	}
	if f.Limit <= 0 {
		f.Limit = DefaultPageSize
	}
	if f.Limit > MaxPageSize {
		f.Limit = MaxPageSize
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	items, total, err := s.store.FindInvoices(ctx, store.InvoiceFilter{
		UserID: userID,
		Status: f.Status,
		Query:  f.Query,
		Limit:  f.Limit,
		Offset: f.Offset,
	})
	if err != nil {
		config.LogError(s.log, "invoice", "List", "find invoices", f, err)
		return ListResult{}, &PersistenceError{Op: "list invoices", Err: err}
	}
	return ListResult{Items: items, Total: total, Limit: f.Limit, Offset: f.Offset}, nil
}

// Summary is the count and amount of the caller's invoices per status.
type Summary struct {
	Counts map[models.Status]int64           `json:"counts"`
	Totals map[models.Status]decimal.Decimal `json:"totals"`
}

// Outstanding is what is still owed: sent and overdue invoices.
func (s Summary) Outstanding() decimal.Decimal {
	return s.Totals[models.StatusSent].Add(s.Totals[models.StatusOverdue])
}

func (s *InvoiceService) Summary(ctx context.Context, userID uint) (Summary, error) {
	sum := Summary{Counts: map[models.Status]int64{}, Totals: map[models.Status]decimal.Decimal{}}
	rows, err := s.store.TotalsByStatus(ctx, userID)
	if err != nil {
		return sum, &PersistenceError{Op: "summarize invoices", Err: err}
	}
	for _, r := range rows {
		sum.Counts[r.Status] = r.Count
		sum.Totals[r.Status] = r.Total
	}
	return sum, nil
}

// Get returns one invoice with its items in display order.
func (s *InvoiceService) Get(ctx context.Context, userID uint, id uuid.UUID) (*models.Invoice, error) {
	inv, err := s.owned(ctx, userID, id, gate.ActionView)
	if err != nil {
		return nil, err
	}
	items, err := s.store.FindItems(ctx, inv.ID)
	if err != nil {
		config.LogError(s.log, "invoice", "Get", "find items", id, err)
		return nil, &PersistenceError{Op: "load invoice items", Err: err}
	}
	inv.Items = items
	return inv, nil
}

// UpdateStatus sets a new status. It changes nothing else.
func (s *InvoiceService) UpdateStatus(ctx context.Context, userID uint, id uuid.UUID, status models.Status) (*models.Invoice, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}
	inv, err := s.owned(ctx, userID, id, gate.ActionUpdate)
	if err != nil {
		return nil, err
	}
	if !models.CanTransition(inv.Status, status) {
		return nil, ErrInvalidTransition
	}
	if err := s.store.UpdateStatus(ctx, id, status); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		config.LogError(s.log, "invoice", "UpdateStatus", "update status", map[string]any{"id": id, "status": status}, err)
		return nil, &PersistenceError{Op: "update invoice status", Err: err}
	}
	inv.Status = status
	return inv, nil
}

// Delete removes the invoice and its items.
func (s *InvoiceService) Delete(ctx context.Context, userID uint, id uuid.UUID) error {
	if _, err := s.owned(ctx, userID, id, gate.ActionDelete); err != nil {
		return err
	}
	if err := s.store.DeleteInvoice(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		config.LogError(s.log, "invoice", "Delete", "delete invoice", id, err)
		return &PersistenceError{Op: "delete invoice", Err: err}
	}
	s.log.WithFields(logrus.Fields{"invoice_id": id, "user_id": userID}).Info("invoice deleted")
	return nil
}

func (s *InvoiceService) owned(ctx context.Context, userID uint, id uuid.UUID, action gate.Action) (*models.Invoice, error) {
	inv, err := s.store.FindInvoice(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, &PersistenceError{Op: "load invoice", Err: err}
	}
	if err := s.gate.Authorize(ctx, userID, action, policy.ResourceInvoice, inv); err != nil {
		return nil, ErrForbidden
	}
	return inv, nil
}
