package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/diewo77/invoicegen/internal/db"
	"github.com/diewo77/invoicegen/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupStoreTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), db.GormConfig(false))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

func newInvoice(userID uint, number, client string, created time.Time) *models.Invoice {
	day := datatypes.Date(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))
	return &models.Invoice{
		CreatedAt:     created,
		UserID:        userID,
		Number:        number,
		ClientName:    client,
		ClientEmail:   "billing@example.com",
		ClientAddress: "1 Main St",
		IssueDate:     day,
		DueDate:       day,
		TaxRate:       models.NewNumeric(decimal.NewFromInt(10)),
		Subtotal:      models.NewNumeric(decimal.NewFromInt(125)),
		TaxAmount:     models.NewNumeric(decimal.RequireFromString("12.5")),
		Total:         models.NewNumeric(decimal.RequireFromString("137.5")),
	}
}

func TestGormStore_InsertAndFind(t *testing.T) {
	s := NewGormStore(setupStoreTestDB(t))
	ctx := context.Background()

	inv := newInvoice(1, "INV-202405-042", "Acme", time.Now())
	if err := s.InsertInvoice(ctx, inv); err != nil {
		t.Fatalf("InsertInvoice: %v", err)
	}
	if inv.ID == uuid.Nil {
		t.Fatal("expected id to be assigned on insert")
	}
	items := []models.InvoiceItem{
		{InvoiceID: inv.ID, Position: 1, Name: "Hosting", Quantity: models.NewNumeric(decimal.NewFromInt(1)), UnitPrice: models.NewNumeric(decimal.NewFromInt(25)), Amount: models.NewNumeric(decimal.NewFromInt(25))},
		{InvoiceID: inv.ID, Position: 0, Name: "Design", Quantity: models.NewNumeric(decimal.NewFromInt(2)), UnitPrice: models.NewNumeric(decimal.NewFromInt(50)), Amount: models.NewNumeric(decimal.NewFromInt(100))},
	}
	if err := s.InsertItems(ctx, items); err != nil {
		t.Fatalf("InsertItems: %v", err)
	}

	got, err := s.FindInvoice(ctx, inv.ID)
	if err != nil {
		t.Fatalf("FindInvoice: %v", err)
	}
	if got.Status != models.StatusDraft {
		t.Errorf("Status = %q, want draft", got.Status)
	}
	if !got.Total.Equal(decimal.RequireFromString("137.5")) || !got.TaxAmount.Equal(decimal.RequireFromString("12.5")) {
		t.Errorf("stored totals changed: total=%s tax=%s", got.Total, got.TaxAmount)
	}
	if got.Due().Format("2006-01-02") != "2024-05-01" {
		t.Errorf("DueDate = %v", got.Due())
	}

	stored, err := s.FindItems(ctx, inv.ID)
	if err != nil {
		t.Fatalf("FindItems: %v", err)
	}
	if len(stored) != 2 || stored[0].Name != "Design" || stored[1].Name != "Hosting" {
		t.Fatalf("items not ordered by position: %+v", stored)
	}
}

func TestGormStore_DecimalPrecision(t *testing.T) {
	s := NewGormStore(setupStoreTestDB(t))
	ctx := context.Background()

	const exact = "12345678.123456789012"
	inv := newInvoice(1, "INV-202405-043", "Acme", time.Now())
	inv.Total = models.NewNumeric(decimal.RequireFromString(exact))
	if err := s.InsertInvoice(ctx, inv); err != nil {
		t.Fatalf("InsertInvoice: %v", err)
	}
	item := models.InvoiceItem{
		InvoiceID: inv.ID,
		Name:      "Precise",
		Quantity:  models.NewNumeric(decimal.RequireFromString("0.000000000001")),
		UnitPrice: models.NewNumeric(decimal.RequireFromString(exact)),
		Amount:    models.NewNumeric(decimal.RequireFromString(exact)),
	}
	if err := s.InsertItems(ctx, []models.InvoiceItem{item}); err != nil {
		t.Fatalf("InsertItems: %v", err)
	}

	got, err := s.FindInvoice(ctx, inv.ID)
	if err != nil {
		t.Fatalf("FindInvoice: %v", err)
	}
	if got.Total.String() != exact {
		t.Errorf("Total = %s, want %s", got.Total, exact)
	}
	items, err := s.FindItems(ctx, inv.ID)
	if err != nil || len(items) != 1 {
		t.Fatalf("FindItems: %v (%d items)", err, len(items))
	}
	if items[0].UnitPrice.String() != exact || items[0].Quantity.String() != "0.000000000001" {
		t.Errorf("item = %s x %s", items[0].Quantity, items[0].UnitPrice)
	}
}

func TestGormStore_FindInvoice_NotFound(t *testing.T) {
	s := NewGormStore(setupStoreTestDB(t))
	if _, err := s.FindInvoice(context.Background(), uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestGormStore_FindInvoices_OrderAndFilter(t *testing.T) {
	s := NewGormStore(setupStoreTestDB(t))
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	older := newInvoice(1, "INV-202405-001", "Acme", base)
	newer := newInvoice(1, "INV-202405-002", "Globex", base.Add(time.Hour))
	paid := newInvoice(1, "INV-202405-003", "Initech", base.Add(2*time.Hour))
	paid.Status = models.StatusPaid
	other := newInvoice(2, "INV-202405-004", "Acme", base.Add(3*time.Hour))
	for _, inv := range []*models.Invoice{older, newer, paid, other} {
		if err := s.InsertInvoice(ctx, inv); err != nil {
			t.Fatalf("InsertInvoice: %v", err)
		}
	}

	all, total, err := s.FindInvoices(ctx, InvoiceFilter{UserID: 1})
	if err != nil {
		t.Fatalf("FindInvoices: %v", err)
	}
	if total != 3 || len(all) != 3 {
		t.Fatalf("got %d/%d invoices, want 3", len(all), total)
	}
	if all[0].Number != "INV-202405-003" || all[2].Number != "INV-202405-001" {
		t.Errorf("not ordered newest first: %s, %s, %s", all[0].Number, all[1].Number, all[2].Number)
	}

	byStatus, _, _ := s.FindInvoices(ctx, InvoiceFilter{UserID: 1, Status: models.StatusPaid})
	if len(byStatus) != 1 || byStatus[0].ClientName != "Initech" {
		t.Errorf("status filter returned %+v", byStatus)
	}

	bySearch, _, _ := s.FindInvoices(ctx, InvoiceFilter{UserID: 1, Query: "GLOB"})
	if len(bySearch) != 1 || bySearch[0].Number != "INV-202405-002" {
		t.Errorf("search by client returned %+v", bySearch)
	}
	byNumber, _, _ := s.FindInvoices(ctx, InvoiceFilter{UserID: 1, Query: "-001"})
	if len(byNumber) != 1 || byNumber[0].ClientName != "Acme" {
		t.Errorf("search by number returned %+v", byNumber)
	}

	page, total, _ := s.FindInvoices(ctx, InvoiceFilter{UserID: 1, Limit: 1, Offset: 1})
	if total != 3 || len(page) != 1 || page[0].Number != "INV-202405-002" {
		t.Errorf("pagination returned %d of %d: %+v", len(page), total, page)
	}
}

func TestGormStore_TotalsByStatus(t *testing.T) {
	s := NewGormStore(setupStoreTestDB(t))
	ctx := context.Background()
	a := newInvoice(1, "INV-202405-020", "Acme", time.Now())
	b := newInvoice(1, "INV-202405-021", "Acme", time.Now())
	c := newInvoice(1, "INV-202405-022", "Acme", time.Now())
	c.Status = models.StatusPaid
	other := newInvoice(2, "INV-202405-023", "Acme", time.Now())
	for _, inv := range []*models.Invoice{a, b, c, other} {
		if err := s.InsertInvoice(ctx, inv); err != nil {
			t.Fatalf("InsertInvoice: %v", err)
		}
	}
	rows, err := s.TotalsByStatus(ctx, 1)
	if err != nil {
		t.Fatalf("TotalsByStatus: %v", err)
	}
	got := map[models.Status]StatusTotal{}
	for _, r := range rows {
		got[r.Status] = r
	}
	if got[models.StatusDraft].Count != 2 || !got[models.StatusDraft].Total.Equal(decimal.NewFromInt(275)) {
		t.Errorf("draft totals = %+v", got[models.StatusDraft])
	}
	if got[models.StatusPaid].Count != 1 || !got[models.StatusPaid].Total.Equal(decimal.RequireFromString("137.5")) {
		t.Errorf("paid totals = %+v", got[models.StatusPaid])
	}
}

func TestGormStore_UpdateStatus(t *testing.T) {
	s := NewGormStore(setupStoreTestDB(t))
	ctx := context.Background()
	inv := newInvoice(1, "INV-202405-010", "Acme", time.Now())
	if err := s.InsertInvoice(ctx, inv); err != nil {
		t.Fatalf("InsertInvoice: %v", err)
	}
	if err := s.UpdateStatus(ctx, inv.ID, models.StatusPaid); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	got, _ := s.FindInvoice(ctx, inv.ID)
	if got.Status != models.StatusPaid {
		t.Errorf("Status = %q, want paid", got.Status)
	}
	if err := s.UpdateStatus(ctx, uuid.New(), models.StatusSent); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown id, got %v", err)
	}
}

func TestGormStore_DeleteInvoice_Cascades(t *testing.T) {
	conn := setupStoreTestDB(t)
	s := NewGormStore(conn)
	ctx := context.Background()
	inv := newInvoice(1, "INV-202405-011", "Acme", time.Now())
	if err := s.InsertInvoice(ctx, inv); err != nil {
		t.Fatalf("InsertInvoice: %v", err)
	}
	if err := s.InsertItems(ctx, []models.InvoiceItem{{InvoiceID: inv.ID, Name: "x", Quantity: models.NewNumeric(decimal.NewFromInt(1)), UnitPrice: models.NewNumeric(decimal.NewFromInt(1)), Amount: models.NewNumeric(decimal.NewFromInt(1))}}); err != nil {
		t.Fatalf("InsertItems: %v", err)
	}

	if err := s.DeleteInvoice(ctx, inv.ID); err != nil {
		t.Fatalf("DeleteInvoice: %v", err)
	}
	list, _, _ := s.FindInvoices(ctx, InvoiceFilter{UserID: 1})
	if len(list) != 0 {
		t.Errorf("deleted invoice still listed: %+v", list)
	}
	var count int64
	conn.Model(&models.InvoiceItem{}).Where("invoice_id = ?", inv.ID).Count(&count)
	if count != 0 {
		t.Errorf("expected items to be deleted, %d remain", count)
	}
	if err := s.DeleteInvoice(ctx, inv.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete: expected ErrNotFound, got %v", err)
	}
}

func TestGormStore_Transaction_RollsBack(t *testing.T) {
	s := NewGormStore(setupStoreTestDB(t))
	ctx := context.Background()
	boom := errors.New("items failed")

	inv := newInvoice(1, "INV-202405-012", "Acme", time.Now())
	err := s.Transaction(ctx, func(tx Invoices) error {
		if err := tx.InsertInvoice(ctx, inv); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Transaction err = %v, want %v", err, boom)
	}
	if _, err := s.FindInvoice(ctx, inv.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("invoice survived rollback: %v", err)
	}
}

func TestGormStore_Users(t *testing.T) {
	s := NewGormStore(setupStoreTestDB(t))
	ctx := context.Background()
	u := &models.User{Email: "ada@example.com", Password: "hash"}
	if err := s.InsertUser(ctx, u); err != nil {
		t.Fatalf("InsertUser: %v", err)
	}
	got, err := s.FindUserByEmail(ctx, " Ada@Example.com ")
	if err != nil || got.ID != u.ID {
		t.Fatalf("FindUserByEmail = %+v, %v", got, err)
	}
	if ok, _ := s.UserExists(ctx, u.ID); !ok {
		t.Error("UserExists = false for inserted user")
	}
	if ok, _ := s.UserExists(ctx, u.ID+100); ok {
		t.Error("UserExists = true for unknown user")
	}
	if _, err := s.FindUserByEmail(ctx, "nobody@example.com"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
