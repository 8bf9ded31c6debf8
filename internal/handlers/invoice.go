package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/diewo77/invoicegen/auth"
	"github.com/diewo77/invoicegen/httpx"
	"github.com/diewo77/invoicegen/i18n"
	"github.com/diewo77/invoicegen/internal/billing"
	"github.com/diewo77/invoicegen/internal/config"
	"github.com/diewo77/invoicegen/internal/middleware"
	"github.com/diewo77/invoicegen/internal/models"
	"github.com/diewo77/invoicegen/internal/services"
	"github.com/diewo77/invoicegen/validation"
	"github.com/diewo77/invoicegen/view"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type InvoiceHandler struct {
	svc *services.InvoiceService
	log logrus.FieldLogger
	now func() time.Time
}

func NewInvoiceHandler(svc *services.InvoiceService, log logrus.FieldLogger) *InvoiceHandler {
	return &InvoiceHandler{svc: svc, log: log, now: time.Now}
}

func (h *InvoiceHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	q := r.URL.Query()

	status := models.Status(q.Get("status"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit <= 0 {
		limit = services.DefaultPageSize
	}
	// Clamp before deriving the offset so pages stay contiguous.
	limit = min(limit, services.MaxPageSize)
	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * limit
	if o, err := strconv.Atoi(q.Get("offset")); err == nil && o >= 0 {
		offset = o
	}

	res, err := h.svc.List(r.Context(), userID, services.ListFilter{
		Status: status,
		Query:  q.Get("q"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		if errors.Is(err, services.ErrInvalidStatus) {
			h.fail(w, r, http.StatusUnprocessableEntity, "invalid_status", nil)
			return
		}
		h.fail(w, r, statusFor(err), "load_failed", nil)
		return
	}
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, res)
		return
	}

	summary, err := h.svc.Summary(r.Context(), userID)
	if err != nil {
		config.LogError(h.log, "handlers", "List", "summary", userID, err)
	}
	prev, next := 0, 0
	if page > 1 {
		prev = page - 1
	}
	if int64(offset+res.Limit) < res.Total {
		next = page + 1
	}
	h.render(w, r, http.StatusOK, "invoices/index.html", map[string]any{
		"Result":   res,
		"Summary":  summary,
		"Statuses": models.Statuses,
		"Status":   status,
		"Query":    q.Get("q"),
		"Page":     page,
		"PrevPage": prev,
		"NextPage": next,
	})
}

func (h *InvoiceHandler) New(w http.ResponseWriter, r *http.Request) {
	h.renderForm(w, r, http.StatusOK, billing.NewForm(h.now()), nil)
}

// Create accepts the HTML form or a JSON body. The HTML form also posts its
// add/remove row buttons here; those re-render the form without saving.
func (h *InvoiceHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	asJSON := httpx.IsJSONBody(r)

	var form billing.Form
	var bad validation.Violations
	if asJSON {
		var p invoicePayload
		if err := httpx.DecodeJSON(w, r, &p); err != nil {
			httpx.JSONError(w, http.StatusBadRequest, err.Error(), nil)
			return
		}
		form, bad = p.form()
	} else {
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		form, bad = parseInvoiceForm(r, h.now())
		switch action, idx := formAction(r); action {
		case "add_item":
			form.AddItem()
			h.renderForm(w, r, http.StatusOK, form, nil)
			return
		case "remove_item":
			form.RemoveItem(idx)
			h.renderForm(w, r, http.StatusOK, form, nil)
			return
		}
	}

	if !bad.Empty() {
		// Report unparseable numbers together with every other rule.
		for field, code := range h.svc.Validate(form) {
			bad.Add(field, code)
		}
		h.invalid(w, r, asJSON, form, bad)
		return
	}
	inv, err := h.svc.Create(r.Context(), userID, form)
	if err != nil {
		var ve *services.ValidationError
		if errors.As(err, &ve) {
			h.invalid(w, r, asJSON, form, ve.Violations)
			return
		}
		if asJSON {
			h.fail(w, r, statusFor(err), "invoice_create_failed", nil)
			return
		}
		h.render(w, r, statusFor(err), "invoices/new.html", map[string]any{
			"Form":   form,
			"Totals": form.Totals(),
			"Flash": &middleware.FlashMessage{
				Kind: middleware.FlashError,
				Text: i18n.T(i18n.LangFromContext(r.Context()), "invoice_create_failed"),
			},
		})
		return
	}
	if asJSON || httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusCreated, inv)
		return
	}
	middleware.SetFlash(w, r, middleware.FlashSuccess, "invoice_created")
	http.Redirect(w, r, "/invoices", http.StatusSeeOther)
}

func (h *InvoiceHandler) invalid(w http.ResponseWriter, r *http.Request, asJSON bool, form billing.Form, v validation.Violations) {
	if asJSON || httpx.WantsJSON(r) {
		httpx.JSONError(w, http.StatusUnprocessableEntity, "validation_failed", v)
		return
	}
	h.renderForm(w, r, http.StatusUnprocessableEntity, form, v)
}

// Quote returns live totals for an unsaved invoice.
func (h *InvoiceHandler) Quote(w http.ResponseWriter, r *http.Request) {
	var p invoicePayload
	if err := httpx.DecodeJSON(w, r, &p); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	form, bad := p.form()
	if !bad.Empty() {
		httpx.JSONError(w, http.StatusUnprocessableEntity, "validation_failed", bad)
		return
	}
	httpx.JSON(w, http.StatusOK, h.svc.Quote(form.Items, form.TaxRate))
}

func (h *InvoiceHandler) View(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	inv, err := h.svc.Get(r.Context(), userID, id)
	if err != nil {
		h.fail(w, r, statusFor(err), codeFor(err, "load_failed"), nil)
		return
	}
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, inv)
		return
	}
	h.render(w, r, http.StatusOK, "invoices/view.html", map[string]any{
		"Invoice":     inv,
		"Statuses":    models.Statuses,
		"GeneratedOn": h.now(),
	})
}

func (h *InvoiceHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var raw string
	if httpx.IsJSONBody(r) {
		var body struct {
			Status string `json:"status"`
		}
		if err := httpx.DecodeJSON(w, r, &body); err != nil {
			httpx.JSONError(w, http.StatusBadRequest, err.Error(), nil)
			return
		}
		raw = body.Status
	} else {
		raw = r.PostFormValue("status")
	}

	back := "/invoices/" + id.String()
	status, err := models.ParseStatus(raw)
	if err == nil {
		var inv *models.Invoice
		inv, err = h.svc.UpdateStatus(r.Context(), userID, id, status)
		if err == nil {
			if httpx.WantsJSON(r) || httpx.IsJSONBody(r) {
				httpx.JSON(w, http.StatusOK, inv)
				return
			}
			middleware.SetFlash(w, r, middleware.FlashSuccess, "status_updated")
			http.Redirect(w, r, back, http.StatusSeeOther)
			return
		}
	}
	code := codeFor(err, "status_update_failed")
	if errors.Is(err, services.ErrInvalidStatus) || errors.Is(err, services.ErrInvalidTransition) {
		code = "invalid_status"
	}
	h.failOrRedirect(w, r, err, code, back)
}

func (h *InvoiceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), userID, id); err != nil {
		h.failOrRedirect(w, r, err, codeFor(err, "invoice_delete_failed"), "/invoices")
		return
	}
	if httpx.WantsJSON(r) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	middleware.SetFlash(w, r, middleware.FlashSuccess, "invoice_deleted")
	http.Redirect(w, r, "/invoices", http.StatusSeeOther)
}

func (h *InvoiceHandler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.fail(w, r, http.StatusNotFound, "invoice_not_found", nil)
		return uuid.Nil, false
	}
	return id, true
}

// failOrRedirect reports err as JSON, or as a flash on the page at back.
// Missing and foreign invoices still get a plain error page.
func (h *InvoiceHandler) failOrRedirect(w http.ResponseWriter, r *http.Request, err error, code, back string) {
	status := statusFor(err)
	if httpx.WantsJSON(r) || httpx.IsJSONBody(r) || status == http.StatusNotFound || status == http.StatusForbidden {
		h.fail(w, r, status, code, nil)
		return
	}
	middleware.SetFlash(w, r, middleware.FlashError, code)
	http.Redirect(w, r, back, http.StatusSeeOther)
}

func (h *InvoiceHandler) fail(w http.ResponseWriter, r *http.Request, status int, code string, details any) {
	msg := i18n.T(i18n.LangFromContext(r.Context()), code)
	if httpx.WantsJSON(r) || httpx.IsJSONBody(r) {
		httpx.JSONError(w, status, msg, details)
		return
	}
	http.Error(w, msg, status)
}

func (h *InvoiceHandler) renderForm(w http.ResponseWriter, r *http.Request, status int, form billing.Form, v validation.Violations) {
	h.render(w, r, status, "invoices/new.html", map[string]any{
		"Form":   form,
		"Totals": form.Totals(),
		"Errors": v,
	})
}

func (h *InvoiceHandler) render(w http.ResponseWriter, r *http.Request, status int, name string, data map[string]any) {
	if err := view.RenderStatus(w, r, status, name, data); err != nil {
		config.LogError(h.log, "handlers", "render", name, nil, err)
		http.Error(w, "Failed to render template", http.StatusInternalServerError)
	}
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	var ve *services.ValidationError
	var ae *services.AuthError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &ve),
		errors.Is(err, services.ErrInvalidStatus),
		errors.Is(err, services.ErrInvalidTransition):
		return http.StatusUnprocessableEntity
	case errors.As(err, &ae):
		if ae.Code == "email_taken" {
			return http.StatusConflict
		}
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// codeFor picks the i18n key describing err.
func codeFor(err error, fallback string) string {
	switch {
	case errors.Is(err, services.ErrForbidden):
		return "forbidden"
	case errors.Is(err, services.ErrNotFound):
		return "invoice_not_found"
	}
	return fallback
}
