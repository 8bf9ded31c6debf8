package models

import (
	"time"

	"github.com/diewo77/invoicegen/internal/billing"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Invoice is a persisted invoice. Totals are computed once at creation and
// stored as-is; they are never re-derived from the items on read.
// Implements the Ownable interface for ownership-based authorization.
type Invoice struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// UserID is the owner of this invoice
	UserID uint `gorm:"index;not null" json:"user_id"`

	Number string `gorm:"column:invoice_number;size:32;index;not null" json:"invoice_number"`

	ClientName    string `gorm:"size:255;not null" json:"client_name"`
	ClientEmail   string `gorm:"size:255;not null" json:"client_email"`
	ClientAddress string `gorm:"type:text;not null" json:"client_address"`

	IssueDate datatypes.Date `gorm:"not null" json:"issue_date"`
	DueDate   datatypes.Date `gorm:"not null" json:"due_date"`

	Status Status `gorm:"size:20;not null;default:'draft';index" json:"status"`

	TaxRate   Numeric `gorm:"not null" json:"tax_rate"`
	Subtotal  Numeric `gorm:"not null" json:"subtotal"`
	TaxAmount Numeric `gorm:"not null" json:"tax_amount"`
	Total     Numeric `gorm:"not null" json:"total"`

	Notes string `gorm:"type:text" json:"notes,omitempty"`

	Items []InvoiceItem `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
}

// BeforeCreate assigns the identity and the initial status.
func (i *Invoice) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	if i.Status == "" {
		i.Status = StatusDraft
	}
	return nil
}

// GetUserID implements the Ownable interface for authorization.
func (i *Invoice) GetUserID() uint {
	return i.UserID
}

// Issued returns the issue date as a time.Time.
func (i *Invoice) Issued() time.Time { return time.Time(i.IssueDate) }

// Due returns the due date as a time.Time.
func (i *Invoice) Due() time.Time { return time.Time(i.DueDate) }

// InvoiceItem is one persisted line of an invoice. Items are written together
// with their invoice and never edited afterwards.
type InvoiceItem struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	InvoiceID uuid.UUID `gorm:"type:uuid;index;not null" json:"invoice_id"`
	Position  int       `gorm:"not null" json:"position"`

	Name        string `gorm:"size:255" json:"name"`
	Description string `gorm:"type:text" json:"description,omitempty"`

	Quantity  Numeric `gorm:"not null" json:"quantity"`
	UnitPrice Numeric `gorm:"not null" json:"unit_price"`
	Amount    Numeric `gorm:"not null" json:"amount"`
}

func (it *InvoiceItem) BeforeCreate(*gorm.DB) error {
	if it.ID == uuid.Nil {
		it.ID = uuid.New()
	}
	return nil
}

// DisplayName is the item's name. Rows written before name and description
// had their own columns keep both in Description, separated by a newline.
func (it InvoiceItem) DisplayName() string {
	if it.Name != "" {
		return it.Name
	}
	name, _ := billing.SplitDescription(it.Description)
	return name
}

// DisplayDescription is the item's description, see DisplayName.
func (it InvoiceItem) DisplayDescription() string {
	if it.Name != "" {
		return it.Description
	}
	_, desc := billing.SplitDescription(it.Description)
	return desc
}

// NewInvoiceItem converts an edited line item into its persisted form.
func NewInvoiceItem(position int, li billing.LineItem) InvoiceItem {
	return InvoiceItem{
		Position:    position,
		Name:        li.Name,
		Description: li.Description,
		Quantity:    NewNumeric(li.Quantity()),
		UnitPrice:   NewNumeric(li.UnitPrice()),
		Amount:      NewNumeric(li.Amount()),
	}
}
