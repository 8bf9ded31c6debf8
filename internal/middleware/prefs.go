// Package middleware holds the HTTP wrappers shared by every route.
package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/diewo77/invoicegen/i18n"
)

const (
	langCookie  = "lang"
	flashCookie = "flash"
)

// Preferences resolves the UI language from ?lang=, the lang cookie, then
// Accept-Language, falling back to defaultLang. A valid ?lang= is remembered.
func Preferences(defaultLang string) func(http.Handler) http.Handler {
	if !i18n.Supported(defaultLang) {
		defaultLang = i18n.DefaultLang
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			lang := ""
			if q := r.URL.Query().Get("lang"); i18n.Supported(q) {
				lang = q
				http.SetCookie(w, &http.Cookie{
					Name:     langCookie,
					Value:    lang,
					Path:     "/",
					MaxAge:   86400 * 365,
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
				})
			} else if c, err := r.Cookie(langCookie); err == nil && i18n.Supported(c.Value) {
				lang = c.Value
			} else if h := r.Header.Get("Accept-Language"); h != "" {
				lang = i18n.DetectLanguage(h)
			}
			if lang == "" {
				lang = defaultLang
			}
			next.ServeHTTP(w, r.WithContext(i18n.WithLang(r.Context(), lang)))
		})
	}
}

// Flash kinds.
const (
	FlashSuccess = "success"
	FlashError   = "error"
)

// FlashMessage is a one-shot notification shown on the next rendered page.
type FlashMessage struct {
	Kind string
	Text string
}

// SetFlash stores a translated notification for the next page load.
func SetFlash(w http.ResponseWriter, r *http.Request, kind, code string) {
	text := i18n.T(i18n.LangFromContext(r.Context()), code)
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    url.QueryEscape(kind + ":" + text),
		Path:     "/",
		MaxAge:   60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// PopFlash reads the pending notification and clears it.
func PopFlash(w http.ResponseWriter, r *http.Request) *FlashMessage {
	c, err := r.Cookie(flashCookie)
	if err != nil || c.Value == "" {
		return nil
	}
	http.SetCookie(w, &http.Cookie{Name: flashCookie, Value: "", Path: "/", MaxAge: -1})
	raw, err := url.QueryUnescape(c.Value)
	if err != nil {
		return nil
	}
	kind, text, ok := strings.Cut(raw, ":")
	if !ok || (kind != FlashSuccess && kind != FlashError) {
		return nil
	}
	return &FlashMessage{Kind: kind, Text: text}
}
