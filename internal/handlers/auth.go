package handlers

import (
	"errors"
	"net/http"

	"github.com/diewo77/invoicegen/auth"
	"github.com/diewo77/invoicegen/httpx"
	"github.com/diewo77/invoicegen/i18n"
	"github.com/diewo77/invoicegen/internal/config"
	"github.com/diewo77/invoicegen/internal/middleware"
	"github.com/diewo77/invoicegen/internal/models"
	"github.com/diewo77/invoicegen/internal/services"
	"github.com/diewo77/invoicegen/view"
	"github.com/sirupsen/logrus"
)

type AuthHandler struct {
	svc      *services.AuthService
	sessions *auth.Sessions
	log      logrus.FieldLogger
}

func NewAuthHandler(svc *services.AuthService, sessions *auth.Sessions, log logrus.FieldLogger) *AuthHandler {
	return &AuthHandler{svc: svc, sessions: sessions, log: log}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		h.render(w, r, http.StatusOK, "login.html", map[string]any{"Email": ""})
		return
	}
	creds, ok := h.credentials(w, r)
	if !ok {
		return
	}
	user, err := h.svc.SignIn(r.Context(), creds)
	if err != nil {
		h.authFailed(w, r, "login.html", creds, err)
		return
	}
	h.signedIn(w, r, http.StatusOK, user)
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		h.render(w, r, http.StatusOK, "signup.html", map[string]any{"Email": ""})
		return
	}
	creds, ok := h.credentials(w, r)
	if !ok {
		return
	}
	user, err := h.svc.SignUp(r.Context(), creds)
	if err != nil {
		h.authFailed(w, r, "signup.html", creds, err)
		return
	}
	h.signedIn(w, r, http.StatusCreated, user)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if uid, ok := h.sessions.Parse(r); ok {
		h.svc.SignOut(r.Context(), uid)
	}
	h.sessions.Clear(w)
	if httpx.WantsJSON(r) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	middleware.SetFlash(w, r, middleware.FlashSuccess, "signed_out")
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (h *AuthHandler) credentials(w http.ResponseWriter, r *http.Request) (services.Credentials, bool) {
	var c services.Credentials
	if httpx.IsJSONBody(r) {
		if err := httpx.DecodeJSON(w, r, &c); err != nil {
			httpx.JSONError(w, http.StatusBadRequest, err.Error(), nil)
			return c, false
		}
		return c, true
	}
	c.Email = r.PostFormValue("email")
	c.Password = r.PostFormValue("password")
	return c, true
}

func (h *AuthHandler) signedIn(w http.ResponseWriter, r *http.Request, status int, user *models.User) {
	h.sessions.Create(w, user.ID)
	if httpx.IsJSONBody(r) || httpx.WantsJSON(r) {
		httpx.JSON(w, status, user)
		return
	}
	middleware.SetFlash(w, r, middleware.FlashSuccess, "welcome")
	http.Redirect(w, r, "/invoices", http.StatusSeeOther)
}

func (h *AuthHandler) authFailed(w http.ResponseWriter, r *http.Request, page string, c services.Credentials, err error) {
	lang := i18n.LangFromContext(r.Context())
	status := statusFor(err)
	code := "auth_failed"
	var ae *services.AuthError
	var ve *services.ValidationError
	switch {
	case errors.As(err, &ae):
		code = ae.Code
	case errors.As(err, &ve):
		code = "fix_errors"
	default:
		config.LogError(h.log, "handlers", "auth", page, c.Email, err)
	}
	if httpx.IsJSONBody(r) || httpx.WantsJSON(r) {
		var details any
		if ve != nil {
			details = ve.Violations
		}
		httpx.JSONError(w, status, i18n.T(lang, code), details)
		return
	}
	data := map[string]any{"Email": c.Email, "Error": i18n.T(lang, code)}
	if ve != nil {
		data["Errors"] = ve.Violations
	}
	h.render(w, r, status, page, data)
}

func (h *AuthHandler) render(w http.ResponseWriter, r *http.Request, status int, name string, data map[string]any) {
	if err := view.RenderStatus(w, r, status, name, data); err != nil {
		config.LogError(h.log, "handlers", "render", name, nil, err)
		http.Error(w, "Failed to render template", http.StatusInternalServerError)
	}
}
