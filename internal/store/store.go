// Package store is the persistence layer: invoices, their items, and users.
package store

import (
	"context"
	"errors"

	"github.com/diewo77/invoicegen/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

// InvoiceFilter narrows a listing to one owner and optionally a status or a
// search term matched against invoice number and client name.
type InvoiceFilter struct {
	UserID uint
	Status models.Status
	Query  string
	Limit  int
	Offset int
}

// StatusTotal aggregates one owner's invoices sharing a status.
type StatusTotal struct {
	Status models.Status
	Count  int64
	Total  decimal.Decimal
}

// Invoices persists invoices and their items. Listing is always newest first.
type Invoices interface {
	InsertInvoice(ctx context.Context, inv *models.Invoice) error
	InsertItems(ctx context.Context, items []models.InvoiceItem) error
	FindInvoices(ctx context.Context, f InvoiceFilter) ([]models.Invoice, int64, error)
	FindInvoice(ctx context.Context, id uuid.UUID) (*models.Invoice, error)
	FindItems(ctx context.Context, invoiceID uuid.UUID) ([]models.InvoiceItem, error)
	TotalsByStatus(ctx context.Context, userID uint) ([]StatusTotal, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.Status) error
	// DeleteInvoice removes the invoice and every item it owns.
	DeleteInvoice(ctx context.Context, id uuid.UUID) error
	// Transaction runs fn against a store bound to a single transaction;
	// returning an error rolls everything back.
	Transaction(ctx context.Context, fn func(tx Invoices) error) error
}

// Users persists accounts.
type Users interface {
	InsertUser(ctx context.Context, u *models.User) error
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	UserExists(ctx context.Context, id uint) (bool, error)
}
