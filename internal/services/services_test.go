package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/diewo77/invoicegen/internal/billing"
	"github.com/diewo77/invoicegen/internal/db"
	"github.com/diewo77/invoicegen/internal/models"
	"github.com/diewo77/invoicegen/internal/policy"
	"github.com/diewo77/invoicegen/internal/store"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestStore(t *testing.T) *store.GormStore {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), db.GormConfig(false))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store.NewGormStore(conn)
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestInvoiceService(st store.Invoices) *InvoiceService {
	svc := NewInvoiceService(st, policy.NewGate(), quietLogger())
	svc.Numbers = &billing.NumberGenerator{
		Now:  func() time.Time { return time.Date(2024, 5, 15, 0, 0, 0, 0, time.UTC) },
		Intn: func(int) int { return 42 },
	}
	return svc
}

func validForm() billing.Form {
	f := billing.NewForm(time.Date(2024, 5, 15, 0, 0, 0, 0, time.UTC))
	f.ClientName = "Acme Corp"
	f.ClientEmail = "billing@acme.test"
	f.ClientAddress = "1 Main St"
	f.DueDate = "2024-06-14"
	f.TaxRate = decimal.NewFromInt(10)
	f.Items = []billing.LineItem{
		billing.NewLineItem("Design", "Landing page", decimal.NewFromInt(2), decimal.NewFromInt(50)),
		billing.NewLineItem("Hosting", "", decimal.NewFromInt(1), decimal.NewFromInt(25)),
	}
	return f
}

// failingItems fails every item insert so the surrounding transaction rolls back.
type failingItems struct {
	store.Invoices
}

func (f failingItems) InsertItems(context.Context, []models.InvoiceItem) error {
	return errors.New("disk full")
}

func (f failingItems) Transaction(ctx context.Context, fn func(tx store.Invoices) error) error {
	return f.Invoices.Transaction(ctx, func(tx store.Invoices) error {
		return fn(failingItems{tx})
	})
}

// recordingStore counts calls and panics on anything unexpected.
type recordingStore struct {
	store.Invoices
	calls int
}

func (r *recordingStore) Transaction(context.Context, func(store.Invoices) error) error {
	r.calls++
	return nil
}

func TestInvoiceService_Create(t *testing.T) {
	st := setupTestStore(t)
	svc := newTestInvoiceService(st)
	ctx := context.Background()

	inv, err := svc.Create(ctx, 1, validForm())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if inv.Number != "INV-202405-042" {
		t.Errorf("number = %q", inv.Number)
	}
	if inv.Status != models.StatusDraft {
		t.Errorf("status = %q, want draft", inv.Status)
	}
	if !inv.Subtotal.Equal(decimal.NewFromInt(125)) ||
		!inv.TaxAmount.Equal(decimal.RequireFromString("12.5")) ||
		!inv.Total.Equal(decimal.RequireFromString("137.5")) {
		t.Errorf("totals = %s / %s / %s", inv.Subtotal, inv.TaxAmount, inv.Total)
	}
	if got := inv.Issued().Format(billing.DateLayout); got != "2024-05-15" {
		t.Errorf("issue date = %s", got)
	}

	got, err := svc.Get(ctx, 1, inv.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(got.Items))
	}
	if got.Items[0].Name != "Design" || got.Items[0].Description != "Landing page" {
		t.Errorf("first item = %+v", got.Items[0])
	}
	if !got.Items[0].Amount.Equal(decimal.NewFromInt(100)) {
		t.Errorf("first item amount = %s", got.Items[0].Amount)
	}
}

func TestInvoiceService_CreateValidation(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(f *billing.Form)
		field string
		code  string
	}{
		{"missing client", func(f *billing.Form) { f.ClientName = "  " }, "client_name", "required"},
		{"bad email", func(f *billing.Form) { f.ClientEmail = "nope" }, "client_email", "invalid_email"},
		{"missing due date", func(f *billing.Form) { f.DueDate = "" }, "due_date", "required"},
		{"bad due date", func(f *billing.Form) { f.DueDate = "14/06/2024" }, "due_date", "invalid_date"},
		{"tax too high", func(f *billing.Form) { f.TaxRate = decimal.NewFromInt(101) }, "tax_rate", "out_of_range"},
		{"no items", func(f *billing.Form) { f.Items = nil }, "items", "required"},
		{"unnamed item", func(f *billing.Form) { f.Items[1].Name = "" }, "items[1].name", "required"},
		{"zero quantity", func(f *billing.Form) { f.Items[0].SetQuantity(decimal.Zero) }, "items[0].quantity", "must_be_positive"},
		{"negative price", func(f *billing.Form) { f.Items[0].SetUnitPrice(decimal.NewFromInt(-1)) }, "items[0].unit_price", "must_not_be_negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recordingStore{}
			svc := newTestInvoiceService(rec)
			f := validForm()
			tt.edit(&f)

			_, err := svc.Create(context.Background(), 1, f)
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("err = %v, want ValidationError", err)
			}
			if ve.Violations[tt.field] != tt.code {
				t.Errorf("violations = %v, want %s=%s", ve.Violations, tt.field, tt.code)
			}
			if rec.calls != 0 {
				t.Errorf("store called %d times on invalid input", rec.calls)
			}
		})
	}
}

func TestInvoiceService_CreateRollsBackOnItemFailure(t *testing.T) {
	st := setupTestStore(t)
	svc := newTestInvoiceService(failingItems{st})
	ctx := context.Background()

	_, err := svc.Create(ctx, 1, validForm())
	var pe *PersistenceError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want PersistenceError", err)
	}
	if pe.Op != "insert invoice items" {
		t.Errorf("op = %q", pe.Op)
	}
	rows, total, err := st.FindInvoices(ctx, store.InvoiceFilter{UserID: 1})
	if err != nil {
		t.Fatalf("FindInvoices: %v", err)
	}
	if total != 0 || len(rows) != 0 {
		t.Fatalf("invoice persisted despite item failure: %d rows", total)
	}
}

func TestInvoiceService_CreateRequiresUser(t *testing.T) {
	svc := newTestInvoiceService(&recordingStore{})
	if _, err := svc.Create(context.Background(), 0, validForm()); !errors.Is(err, ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
}

func TestInvoiceService_Ownership(t *testing.T) {
	st := setupTestStore(t)
	svc := newTestInvoiceService(st)
	ctx := context.Background()

	inv, err := svc.Create(ctx, 1, validForm())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Get(ctx, 2, inv.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("Get by stranger: %v", err)
	}
	if _, err := svc.UpdateStatus(ctx, 2, inv.ID, models.StatusPaid); !errors.Is(err, ErrForbidden) {
		t.Errorf("UpdateStatus by stranger: %v", err)
	}
	if err := svc.Delete(ctx, 2, inv.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("Delete by stranger: %v", err)
	}
	res, err := svc.List(ctx, 2, ListFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if res.Total != 0 {
		t.Errorf("stranger sees %d invoices", res.Total)
	}
}

func TestInvoiceService_UpdateStatus(t *testing.T) {
	st := setupTestStore(t)
	svc := newTestInvoiceService(st)
	ctx := context.Background()

	inv, err := svc.Create(ctx, 1, validForm())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.UpdateStatus(ctx, 1, inv.ID, models.StatusPaid); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	got, err := svc.Get(ctx, 1, inv.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != models.StatusPaid {
		t.Errorf("status = %q, want paid", got.Status)
	}
	if !got.Total.Equal(inv.Total.Decimal) || got.Number != inv.Number {
		t.Error("status update changed other fields")
	}
	if _, err := svc.UpdateStatus(ctx, 1, inv.ID, models.Status("void")); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("invalid status: %v", err)
	}
}

func TestInvoiceService_DeleteAndNotFound(t *testing.T) {
	st := setupTestStore(t)
	svc := newTestInvoiceService(st)
	ctx := context.Background()

	inv, err := svc.Create(ctx, 1, validForm())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := svc.Delete(ctx, 1, inv.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := svc.Get(ctx, 1, inv.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete: %v", err)
	}
	items, err := st.FindItems(ctx, inv.ID)
	if err != nil {
		t.Fatalf("FindItems: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("%d orphaned items", len(items))
	}
	if err := svc.Delete(ctx, 1, inv.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete: %v", err)
	}
}

func TestInvoiceService_ListAndSummary(t *testing.T) {
	st := setupTestStore(t)
	svc := newTestInvoiceService(st)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		f := validForm()
		f.ClientName = fmt.Sprintf("Client %d", i)
		inv, err := svc.Create(ctx, 1, f)
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		ids = append(ids, inv.ID.String())
		if i == 0 {
			if _, err := svc.UpdateStatus(ctx, 1, inv.ID, models.StatusSent); err != nil {
				t.Fatalf("UpdateStatus: %v", err)
			}
		}
	}

	res, err := svc.List(ctx, 1, ListFilter{Limit: 500})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if res.Limit != MaxPageSize {
		t.Errorf("limit = %d, want clamp to %d", res.Limit, MaxPageSize)
	}
	if res.Total != 3 {
		t.Errorf("total = %d", res.Total)
	}

	res, err = svc.List(ctx, 1, ListFilter{Status: models.StatusSent})
	if err != nil {
		t.Fatalf("List sent: %v", err)
	}
	if res.Total != 1 || res.Items[0].ID.String() != ids[0] {
		t.Errorf("sent filter = %+v", res)
	}
	if res.Limit != DefaultPageSize {
		t.Errorf("default limit = %d", res.Limit)
	}

	if _, err := svc.List(ctx, 1, ListFilter{Status: "void"}); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("bad status filter: %v", err)
	}

	sum, err := svc.Summary(ctx, 1)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if sum.Counts[models.StatusDraft] != 2 || sum.Counts[models.StatusSent] != 1 {
		t.Errorf("counts = %v", sum.Counts)
	}
	if !sum.Outstanding().Equal(decimal.RequireFromString("137.5")) {
		t.Errorf("outstanding = %s", sum.Outstanding())
	}
}

func TestInvoiceService_Quote(t *testing.T) {
	svc := newTestInvoiceService(&recordingStore{})
	f := validForm()
	q := svc.Quote(f.Items, f.TaxRate)
	if !q.Total.Equal(decimal.RequireFromString("137.5")) {
		t.Errorf("total = %s", q.Total)
	}
}
