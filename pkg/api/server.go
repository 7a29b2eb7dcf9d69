package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/meridianhq/meridian/pkg/accounts"
	"github.com/meridianhq/meridian/pkg/audit"
	"github.com/meridianhq/meridian/pkg/auth"
	"github.com/meridianhq/meridian/pkg/currencies"
	"github.com/meridianhq/meridian/pkg/httputil"
	"github.com/meridianhq/meridian/pkg/identity"
	"github.com/meridianhq/meridian/pkg/middleware"
	"github.com/meridianhq/meridian/pkg/observability"
	"github.com/meridianhq/meridian/pkg/rbac"
)

// Deps carries everything the server needs. Google, Metrics, and
// AuditStore may be nil; Recorder must not be (use audit.NopRecorder).
type Deps struct {
	Logger     *observability.Logger
	Metrics    *observability.Metrics
	Accounts   *accounts.Service
	Tokens     *auth.TokenManager
	Reconciler *identity.Reconciler
	Google     *identity.GoogleProvider
	Resolver   *rbac.Resolver
	Checker    rbac.Checker
	Currencies *currencies.Store
	Recorder   audit.Recorder
	AuditStore *audit.SQLRecorder

	DefaultCurrency string
}

// Server is the API server
type Server struct {
	router *mux.Router
	deps   Deps

	gate        *rbac.Gate
	authMW      *middleware.AuthMiddleware
	optionalMW  *middleware.AuthMiddleware
	currencyCtx *currencies.Resolver
	states      *stateStore
}

// NewServer creates the API server and registers all routes
func NewServer(deps Deps) *Server {
	s := &Server{
		router: mux.NewRouter(),
		deps:   deps,
		states: newStateStore(),
	}

	s.gate = &rbac.Gate{
		Checker: deps.Checker,
		Metrics: deps.Metrics,
		OnDeny:  s.auditDenial,
	}
	s.authMW = middleware.NewAuthMiddleware(deps.Tokens, deps.Accounts.Store(), deps.Metrics, false)
	s.optionalMW = middleware.NewAuthMiddleware(deps.Tokens, deps.Accounts.Store(), deps.Metrics, true)
	s.currencyCtx = currencies.NewResolver(deps.Currencies, deps.DefaultCurrency, deps.Logger)

	s.setupRoutes()
	return s
}

// Router returns the configured handler
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.Use(httputil.RequestIDMiddleware)
	s.router.Use(httputil.LoggingMiddleware(s.deps.Logger, s.deps.Metrics))

	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Authentication
	api.HandleFunc("/auth/register", s.register).Methods("POST")
	api.HandleFunc("/auth/login", s.login).Methods("POST")
	if s.deps.Google != nil {
		api.HandleFunc("/auth/google/login", s.googleLogin).Methods("GET")
		api.HandleFunc("/auth/google/callback", s.googleCallback).Methods("GET")
	}

	// Self-service profile
	me := api.PathPrefix("/me").Subrouter()
	me.Use(s.authMW.Handler)
	me.HandleFunc("", s.currentAccount).Methods("GET")
	me.HandleFunc("", s.updateProfile).Methods("PUT")
	me.HandleFunc("/currencies", s.listMyCurrencies).Methods("GET")
	me.HandleFunc("/currencies/{code}/default", s.setDefaultCurrency).Methods("PUT")

	// User administration
	users := api.PathPrefix("/users").Subrouter()
	users.Use(s.authMW.Handler)
	users.Handle("", s.gate.RequirePermission("users.view")(http.HandlerFunc(s.listUsers))).Methods("GET")
	users.Handle("", s.gate.RequirePermission("users.create")(http.HandlerFunc(s.createUser))).Methods("POST")
	users.Handle("/{id:[0-9]+}", s.gate.RequirePermission("users.view")(http.HandlerFunc(s.getUser))).Methods("GET")
	users.Handle("/{id:[0-9]+}", s.gate.RequirePermission("users.edit")(http.HandlerFunc(s.updateUser))).Methods("PUT")
	users.Handle("/{id:[0-9]+}", s.gate.RequirePermission("users.delete")(http.HandlerFunc(s.deleteUser))).Methods("DELETE")
	users.Handle("/{id:[0-9]+}/currencies", s.gate.RequirePermission("users.edit")(http.HandlerFunc(s.assignCurrency))).Methods("POST")
	users.Handle("/{id:[0-9]+}/currencies/{code}", s.gate.RequirePermission("users.edit")(http.HandlerFunc(s.unassignCurrency))).Methods("DELETE")

	// Role administration
	roles := api.PathPrefix("/roles").Subrouter()
	roles.Use(s.authMW.Handler)
	roles.Handle("", s.gate.RequireAdmin()(http.HandlerFunc(s.listRoles))).Methods("GET")
	roles.Handle("", s.gate.RequireAdmin()(http.HandlerFunc(s.createRole))).Methods("POST")
	roles.Handle("/{id:[0-9]+}", s.gate.RequireAdmin()(http.HandlerFunc(s.renameRole))).Methods("PUT")
	roles.Handle("/{id:[0-9]+}", s.gate.RequireAdmin()(http.HandlerFunc(s.deleteRole))).Methods("DELETE")
	roles.Handle("/{name}/permissions", s.gate.RequireAdmin()(http.HandlerFunc(s.rolePermissions))).Methods("GET")

	// Currency catalog
	catalog := api.PathPrefix("/currencies").Subrouter()
	catalog.Use(s.optionalMW.Handler)
	catalog.Use(s.currencyCtx.Middleware())
	catalog.HandleFunc("", s.listCurrencies).Methods("GET")

	catalogAdmin := api.PathPrefix("/currencies").Subrouter()
	catalogAdmin.Use(s.authMW.Handler)
	catalogAdmin.Handle("", s.gate.RequireAdmin()(http.HandlerFunc(s.createCurrency))).Methods("POST")
	catalogAdmin.Handle("/{code}", s.gate.RequireAdmin()(http.HandlerFunc(s.updateCurrency))).Methods("PUT")
	catalogAdmin.Handle("/{code}", s.gate.RequireAdmin()(http.HandlerFunc(s.deleteCurrency))).Methods("DELETE")

	// Audit trail
	if s.deps.AuditStore != nil {
		auditRoutes := api.PathPrefix("/audit").Subrouter()
		auditRoutes.Use(s.authMW.Handler)
		auditRoutes.Handle("/events", s.gate.RequireAdmin()(http.HandlerFunc(s.listAuditEvents))).Methods("GET")
	}
}
