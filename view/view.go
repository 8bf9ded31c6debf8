// Package view renders the server-side HTML pages. Templates live on disk
// under templates/ and are wrapped in templates/layout.html unless they are
// full documents themselves.
package view

import (
	"bytes"
	"crypto/sha1"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/diewo77/invoicegen/auth"
	"github.com/diewo77/invoicegen/i18n"
	"github.com/diewo77/invoicegen/internal/billing"
	"github.com/diewo77/invoicegen/internal/middleware"
	"github.com/diewo77/invoicegen/internal/models"
	"gorm.io/datatypes"
)

var (
	baseMu   sync.Mutex
	baseDir  string
	tplCache = struct {
		sync.RWMutex
		m map[string]*template.Template
	}{m: map[string]*template.Template{}}
	manifestMu        sync.RWMutex
	assetManifest     map[string]string
	assetManifestOnce sync.Once

	partials = []string{"errors-alert.html", "flash.html", "status-badge.html"}
)

// layoutBase walks upward from a template path to find the directory that contains layout.html.
// If none is found, it returns the template's own directory.
func layoutBase(mainPath string) string {
	d := filepath.Dir(mainPath)
	for {
		lp := filepath.Join(d, "layout.html")
		if fi, err := os.Stat(lp); err == nil && !fi.IsDir() {
			return d
		}
		p := filepath.Dir(d)
		if p == d {
			return filepath.Dir(mainPath)
		}
		d = p
	}
}

func detectBase() string {
	candidates := []string{"templates", "../templates", "../../templates"}
	for _, c := range candidates {
		if fi, err := os.Stat(filepath.Clean(c)); err == nil && fi.IsDir() {
			return filepath.Clean(c)
		}
	}
	return "templates"
}

// templatesDir returns the template base directory, detecting it on first use.
func templatesDir() string {
	baseMu.Lock()
	defer baseMu.Unlock()
	if baseDir == "" {
		baseDir = detectBase()
	}
	return baseDir
}

// fixedPoint is satisfied by decimal.Decimal and models.Numeric.
type fixedPoint interface {
	StringFixed(places int32) string
}

// Money formats an amount with two decimals.
func Money(v fixedPoint) string { return v.StringFixed(2) }

// Quantity formats a quantity with two decimals.
func Quantity(v fixedPoint) string { return v.StringFixed(2) }

func formatDate(v any) string {
	switch d := v.(type) {
	case time.Time:
		return d.Format(billing.DateLayout)
	case datatypes.Date:
		return time.Time(d).Format(billing.DateLayout)
	case *time.Time:
		if d != nil {
			return d.Format(billing.DateLayout)
		}
	}
	return ""
}

// Funcs returns the standard func map including i18n and formatting helpers.
func Funcs(r *http.Request) template.FuncMap {
	lang := i18n.LangFromContext(r.Context())
	return template.FuncMap{
		"t":     func(code string) string { return i18n.T(lang, code) },
		"lang":  func() string { return lang },
		"money": Money,
		"qty":   Quantity,
		"date":  formatDate,
		"statusLabel": func(s models.Status) string {
			return i18n.T(lang, "status_"+string(s))
		},
		"year":  func() int { return time.Now().Year() },
		"asset": func(path string) string { return resolveAsset(path) },
	}
}

// versionedAsset returns /static/<name>?v=<hash> for cache busting.
func versionedAsset(rel string) string {
	if strings.HasPrefix(rel, "http://") || strings.HasPrefix(rel, "https://") || strings.HasPrefix(rel, "//") {
		return rel
	}
	b, err := os.ReadFile(filepath.Join(staticDir(), rel))
	if err != nil {
		return "/static/" + rel
	}
	h := sha1.Sum(b)
	return "/static/" + rel + "?v=" + fmt.Sprintf("%x", h[:8])
}

// staticDir sits next to the templates directory.
func staticDir() string {
	return filepath.Join(filepath.Dir(templatesDir()), "static")
}

// resolveAsset prefers a hashed filename from manifest.json then falls back to query param versioning.
func resolveAsset(rel string) string {
	if os.Getenv("DEV") == "1" {
		parseManifest()
	} else {
		assetManifestOnce.Do(parseManifest)
	}
	manifestMu.RLock()
	h, ok := assetManifest[rel]
	manifestMu.RUnlock()
	if ok {
		return "/static/" + h
	}
	return versionedAsset(rel)
}

func parseManifest() {
	b, err := os.ReadFile(filepath.Join(staticDir(), "manifest.json"))
	if err != nil {
		return
	}
	var m map[string]string
	if err := json.Unmarshal(b, &m); err != nil {
		return
	}
	manifestMu.Lock()
	assetManifest = m
	manifestMu.Unlock()
}

// SetBaseDir overrides the template base directory (useful for tests or custom setups).
func SetBaseDir(path string) {
	if path == "" {
		return
	}
	baseMu.Lock()
	baseDir = filepath.Clean(path)
	baseMu.Unlock()
}

// ResetForTests clears caches and forces base dir detection to rerun.
func ResetForTests() {
	tplCache.Lock()
	tplCache.m = map[string]*template.Template{}
	tplCache.Unlock()
	baseMu.Lock()
	baseDir = ""
	baseMu.Unlock()
}

// cacheKey includes the language: the func map captures it at parse time.
func cacheKey(name, lang string) string { return lang + "/" + name }

// Render parses and executes a template file with shared funcs.
// name is relative to the templates directory (e.g. "invoices/index.html").
// Rendering into a buffer first keeps a failing template from sending a
// half-written page.
func Render(w http.ResponseWriter, r *http.Request, name string, data map[string]any) error {
	return RenderStatus(w, r, http.StatusOK, name, data)
}

// RenderStatus is Render with an explicit status code.
func RenderStatus(w http.ResponseWriter, r *http.Request, status int, name string, data map[string]any) error {
	if data == nil {
		data = map[string]any{}
	}
	if _, exists := data["Year"]; !exists {
		data["Year"] = time.Now().Year()
	}
	if _, exists := data["IsLoggedIn"]; !exists {
		_, loggedIn := auth.UserIDFromContext(r.Context())
		data["IsLoggedIn"] = loggedIn
	}
	if _, exists := data["Flash"]; !exists {
		data["Flash"] = middleware.PopFlash(w, r)
	}

	t, err := lookup(r, name)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err = buf.WriteTo(w)
	return err
}

func lookup(r *http.Request, name string) (*template.Template, error) {
	key := cacheKey(name, i18n.LangFromContext(r.Context()))
	devMode := os.Getenv("DEV") == "1"
	if !devMode {
		tplCache.RLock()
		t, ok := tplCache.m[key]
		tplCache.RUnlock()
		if ok && t != nil {
			return t, nil
		}
	}

	mainPath := filepath.Join(templatesDir(), name)
	if _, err := os.Stat(mainPath); err != nil {
		candidates := []string{
			filepath.Join("templates", name),
			filepath.Join("../templates", name),
			filepath.Join("../../templates", name),
			filepath.Join("../../../templates", name),
		}
		for _, c := range candidates {
			if fi, e2 := os.Stat(c); e2 == nil && !fi.IsDir() {
				mainPath = c
				break
			}
		}
		if _, err2 := os.Stat(mainPath); err2 != nil {
			return nil, err
		}
	}
	base := layoutBase(mainPath)
	layoutPath := filepath.Join(base, "layout.html")
	files := []string{mainPath}
	for _, p := range partials {
		pp := filepath.Join(base, "partials", p)
		if pf, err := os.Stat(pp); err == nil && !pf.IsDir() {
			files = append(files, pp)
		}
	}

	contentBytes, _ := os.ReadFile(mainPath)
	useLayout := !bytes.Contains(bytes.ToLower(contentBytes), []byte("<!doctype"))
	if fi, err := os.Stat(layoutPath); err != nil || fi.IsDir() {
		useLayout = false
	}

	root := filepath.Base(mainPath)
	if useLayout {
		root = "layout.html"
		files = append([]string{layoutPath}, files...)
	}
	t, err := template.New(root).Funcs(Funcs(r)).ParseFiles(files...)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, errors.New("template not parsed")
	}
	if !devMode {
		tplCache.Lock()
		tplCache.m[key] = t
		tplCache.Unlock()
	}
	return t, nil
}
