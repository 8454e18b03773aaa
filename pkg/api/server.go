package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/catalogforge/catalog/pkg/audit"
	"github.com/catalogforge/catalog/pkg/catalog"
	"github.com/catalogforge/catalog/pkg/fulfillment"
	"github.com/catalogforge/catalog/pkg/httputil"
	"github.com/catalogforge/catalog/pkg/notifications"
	"github.com/catalogforge/catalog/pkg/observability"
	"github.com/catalogforge/catalog/pkg/rbac"
	"github.com/catalogforge/catalog/pkg/storage"
)

// AuditReader lists recorded audit events, newest first.
type AuditReader interface {
	List(ctx context.Context, tenant string, limit int) ([]*audit.Event, error)
}

// EntitlementCache is the invalidation hook called after sharing changes.
type EntitlementCache interface {
	Invalidate(ctx context.Context) error
}

// Deps carries everything the API server needs. Audit defaults to a no-op
// logger; Cache, AuditReader and RateLimit may be nil.
type Deps struct {
	Store        *catalog.Store
	Service      *catalog.Service
	Gate         *rbac.Gate
	Resolver     *rbac.ScopeResolver
	Entitlements *rbac.Store
	Cache        EntitlementCache
	Audit        audit.Logger
	AuditReader  AuditReader
	Icons        storage.IconStore
	Consumer     *fulfillment.Consumer
	Notifier     *notifications.Notifier
	AdminRole    string
	Identity     mux.MiddlewareFunc
	RateLimit    mux.MiddlewareFunc
	Logger       *observability.Logger
}

// Server is the catalog HTTP API.
type Server struct {
	router *mux.Router
	deps   Deps
	logger *observability.Logger
}

// NewServer creates a server and registers all routes.
func NewServer(deps Deps) *Server {
	if deps.Audit == nil {
		deps.Audit = audit.NopLogger{}
	}

	s := &Server{
		router: mux.NewRouter(),
		deps:   deps,
		logger: deps.Logger,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(httputil.RequestIDMiddleware)
	s.router.Use(httputil.LoggingMiddleware(s.logger))
	s.router.Use(httputil.RecoveryMiddleware(s.logger))

	v1 := s.router.PathPrefix("/api/v1").Subrouter()
	if s.deps.Identity != nil {
		v1.Use(s.deps.Identity)
	}
	if s.deps.RateLimit != nil {
		v1.Use(s.deps.RateLimit)
	}

	NewPortfolioHandlers(s).RegisterRoutes(v1)
	NewOrderHandlers(s).RegisterRoutes(v1)
	NewWebhookHandlers(s).RegisterRoutes(v1)
	NewEventHandlers(s).RegisterRoutes(v1)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
