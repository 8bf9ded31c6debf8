package main

import (
	"context"
	"net/http"
	"time"

	"github.com/diewo77/invoicegen/auth"
	"github.com/diewo77/invoicegen/httpx"
	"github.com/diewo77/invoicegen/internal/handlers"
	"github.com/diewo77/invoicegen/internal/middleware"
	"github.com/diewo77/invoicegen/internal/policy"
	"github.com/diewo77/invoicegen/internal/services"
	"github.com/diewo77/invoicegen/internal/store"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const verifierTTL = time.Minute

// App is the main application handler that sets up all routes.
type App struct {
	mux      *http.ServeMux
	handler  http.Handler
	db       *gorm.DB
	log      logrus.FieldLogger
	sessions *auth.Sessions
	verifier *auth.CachedVerifier

	invoices *handlers.InvoiceHandler
	auth     *handlers.AuthHandler
	events   *handlers.EventsHandler
}

// AppOptions carries the collaborators built in main.
type AppOptions struct {
	DB            *gorm.DB
	Broker        auth.Broker
	Log           logrus.FieldLogger
	SessionSecret string
	DefaultLang   string
}

// NewApp wires services and handlers. The verifier's cache watches the
// broker until ctx is done.
func NewApp(ctx context.Context, opts AppOptions) *App {
	st := store.NewGormStore(opts.DB)
	invoiceSvc := services.NewInvoiceService(st, policy.NewGate(), opts.Log)
	authSvc := services.NewAuthService(st, opts.Broker, opts.Log)

	verifier := auth.NewCachedVerifier(authSvc.UserExists, verifierTTL)
	verifier.Watch(ctx, opts.Broker)

	app := &App{
		mux:      http.NewServeMux(),
		db:       opts.DB,
		log:      opts.Log,
		sessions: auth.NewSessions(opts.SessionSecret),
		verifier: verifier,
		invoices: handlers.NewInvoiceHandler(invoiceSvc, opts.Log),
		events:   handlers.NewEventsHandler(opts.Broker, opts.Log),
	}
	app.auth = handlers.NewAuthHandler(authSvc, app.sessions, opts.Log)
	app.setupRoutes()

	// Outermost first: recover, session, language, then request logging so
	// the log line carries the user id.
	app.handler = middleware.Recover(opts.Log)(
		app.sessions.Middleware(
			middleware.Preferences(opts.DefaultLang)(
				middleware.Logging(opts.Log)(app.mux))))
	return app
}

// ServeHTTP implements http.Handler.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.handler.ServeHTTP(w, r)
}

// setupRoutes configures all application routes.
func (a *App) setupRoutes() {
	// Public routes
	a.mux.HandleFunc("GET /{$}", a.landingPage)
	a.mux.HandleFunc("GET /login", a.auth.Login)
	a.mux.HandleFunc("POST /login", a.auth.Login)
	a.mux.HandleFunc("GET /signup", a.auth.Signup)
	a.mux.HandleFunc("POST /signup", a.auth.Signup)
	a.mux.HandleFunc("POST /logout", a.auth.Logout)
	a.mux.HandleFunc("GET /health", a.health)
	a.mux.HandleFunc("GET /healthz", a.healthz)

	// Authenticated routes; ownership is checked by the invoice service.
	ih := a.invoices
	a.mux.Handle("GET /session/events", a.requireAuth(a.events.Stream))
	a.mux.Handle("GET /invoices", a.requireAuth(ih.List))
	a.mux.Handle("GET /invoices/new", a.requireAuth(ih.New))
	a.mux.Handle("POST /invoices", a.requireAuth(ih.Create))
	a.mux.Handle("POST /invoices/quote", a.requireAuth(ih.Quote))
	a.mux.Handle("GET /invoices/{id}", a.requireAuth(ih.View))
	a.mux.Handle("POST /invoices/{id}/status", a.requireAuth(ih.UpdateStatus))
	a.mux.Handle("POST /invoices/{id}/delete", a.requireAuth(ih.Delete))

	a.mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(staticDir()))))
}

// requireAuth wraps a handler to require a session whose user still exists.
func (a *App) requireAuth(next http.HandlerFunc) http.Handler {
	return a.sessions.RequireAuth(a.verifier.Verify)(next)
}

func (a *App) landingPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.UserIDFromContext(r.Context()); ok {
		http.Redirect(w, r, "/invoices", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (a *App) health(w http.ResponseWriter, _ *http.Request) {
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// healthz also checks the database connection.
func (a *App) healthz(w http.ResponseWriter, r *http.Request) {
	sqlDB, err := a.db.DB()
	if err == nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		a.log.WithError(err).Warn("health check failed")
		httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok", "database": "ok"})
}
