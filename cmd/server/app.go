package main

import (
	"net/http"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/diewo77/go-quotes/auth"
	"github.com/diewo77/go-quotes/gate"
	"github.com/diewo77/go-quotes/internal/cache"
	"github.com/diewo77/go-quotes/internal/db"
	"github.com/diewo77/go-quotes/internal/eligibility"
	"github.com/diewo77/go-quotes/internal/handlers"
	"github.com/diewo77/go-quotes/internal/middleware"
	"github.com/diewo77/go-quotes/internal/policy"
	"github.com/diewo77/go-quotes/internal/services"
	"github.com/diewo77/go-quotes/internal/workflow"
)

// Deps are the collaborators NewApp wires together.
type Deps struct {
	DB        *gorm.DB
	Log       *zap.Logger
	JWTSecret string
	Gate      *policy.AuthGate
	RuleCache cache.RuleCache
	Defaults  eligibility.Defaults
}

// App is the main application handler that sets up all routes.
type App struct {
	mux     *http.ServeMux
	handler http.Handler
	auth    *auth.Authenticator
	gate    *policy.AuthGate

	health  *handlers.HealthHandler
	rules   *handlers.RuleHandler
	quotes  *handlers.QuoteHandler
	reports *handlers.ReportHandler
	users   *handlers.AdminUserHandler
}

// NewApp creates a new application with all routes configured.
func NewApp(d Deps) *App {
	userSvc := services.NewUserService(d.DB, d.Gate.InvalidateUser)
	actionSvc := services.NewActionService(d.DB)
	a := &App{
		mux:     http.NewServeMux(),
		auth:    auth.New(d.JWTSecret, userSvc.Exists),
		gate:    d.Gate,
		health:  handlers.NewHealthHandler(func() error { return db.Ping(d.DB) }, d.Log),
		rules:   handlers.NewRuleHandler(services.NewRuleService(d.DB, d.RuleCache, d.Defaults, d.Log), d.Log),
		quotes:  handlers.NewQuoteHandler(services.NewQuoteService(d.DB, d.Log), actionSvc, d.Gate, d.Log),
		reports: handlers.NewReportHandler(actionSvc, d.Log),
		users:   handlers.NewAdminUserHandler(userSvc, d.Log),
	}
	a.setupRoutes()
	a.handler = middleware.Chain(a.mux,
		middleware.RequestID,
		middleware.Logger(d.Log),
		middleware.Recover(d.Log),
		a.auth.Middleware,
		middleware.TrackUser,
	)
	return a
}

// ServeHTTP implements http.Handler.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.handler.ServeHTTP(w, r)
}

func (a *App) setupRoutes() {
	// Public
	a.mux.HandleFunc("GET /health", a.health.Live)
	a.mux.HandleFunc("GET /healthz", a.health.Ready)

	// Parts and eligibility rules
	a.handle("GET /api/parts", policy.ResourcePart, gate.ActionList, a.rules.Parts)
	a.handle("GET /api/parts/availability", policy.ResourcePart, gate.ActionList, a.rules.Availability)
	a.handle("GET /api/rules", policy.ResourceRule, gate.ActionList, a.rules.List)
	a.handle("GET /api/rules/{name}", policy.ResourceRule, gate.ActionList, a.rules.Get)
	a.handle("POST /api/rules", policy.ResourceRule, gate.ActionCreate, a.rules.Create)
	a.handle("PUT /api/rules/{name}", policy.ResourceRule, gate.ActionUpdate, a.rules.Update)
	a.handle("DELETE /api/rules/{name}", policy.ResourceRule, gate.ActionDelete, a.rules.Delete)

	// Quotes
	a.handle("GET /api/quotes", policy.ResourceQuote, gate.ActionList, a.quotes.List)
	a.handle("POST /api/quotes", policy.ResourceQuote, gate.ActionCreate, a.quotes.Create)
	a.handle("GET /api/quotes/{id}", policy.ResourceQuote, gate.ActionView, a.quotes.Get)
	a.handle("DELETE /api/quotes/{id}", policy.ResourceQuote, gate.ActionDelete, a.quotes.Delete)
	a.handle("GET /api/quotes/{id}/actions", policy.ResourceQuote, gate.ActionView, a.quotes.Actions)
	a.handle("PUT /api/quotes/{id}/prices", policy.ResourceQuote, eventAction(workflow.EventPriceEntered), a.quotes.Prices)
	a.handle("PUT /api/quotes/{id}/parts", policy.ResourceQuote, eventAction(workflow.EventPartsCorrected), a.quotes.Parts)
	a.handle("POST /api/quotes/{id}/verify", policy.ResourceQuote, eventAction(workflow.EventVerify), a.quotes.Verify)
	a.handle("POST /api/quotes/{id}/complete", policy.ResourceQuote, eventAction(workflow.EventComplete), a.quotes.Complete)
	a.handle("POST /api/quotes/{id}/order", policy.ResourceQuote, eventAction(workflow.EventOrder), a.quotes.Order)
	a.handle("POST /api/quotes/{id}/wrong", policy.ResourceQuote, eventAction(workflow.EventMarkWrong), a.quotes.MarkWrong)
	a.handle("POST /api/quotes/deliver", policy.ResourceQuote, eventAction(workflow.EventDeliver), a.quotes.Deliver)

	// Reports
	a.handle("GET /api/reports/actions", policy.ResourceReport, gate.ActionView, a.reports.Actions)
	a.handle("GET /api/reports/actions.xlsx", policy.ResourceReport, gate.ActionView, a.reports.ActionsXLSX)

	// Admin
	a.handle("GET /api/admin/users", policy.ResourceUser, gate.ActionList, a.users.List)
	a.handle("POST /api/admin/users", policy.ResourceUser, gate.ActionCreate, a.users.Create)
	a.handle("PUT /api/admin/users/{id}/role", policy.ResourceUser, gate.ActionUpdate, a.users.SetRole)
}

// handle registers fn behind authentication and a resource permission.
func (a *App) handle(pattern, resourceType string, action gate.Action, fn http.HandlerFunc) {
	a.mux.Handle(pattern, a.requireAuth(a.requirePermission(resourceType, action)(fn)))
}

// requireAuth wraps a handler to require authentication.
func (a *App) requireAuth(next http.Handler) http.Handler {
	return a.auth.RequireAuth(next)
}

// requirePermission wraps a handler to require specific resource permission.
func (a *App) requirePermission(resourceType string, action gate.Action) func(http.Handler) http.Handler {
	return a.gate.RequirePermission(resourceType, action)
}

func eventAction(ev workflow.Event) gate.Action {
	action, ok := policy.EventAction(ev)
	if !ok {
		panic("no permission mapped for event " + string(ev))
	}
	return action
}
