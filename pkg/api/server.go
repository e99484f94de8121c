package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/campusgate/campusgate/pkg/accounts"
	"github.com/campusgate/campusgate/pkg/audit"
	"github.com/campusgate/campusgate/pkg/auth"
	"github.com/campusgate/campusgate/pkg/httputil"
	"github.com/campusgate/campusgate/pkg/middleware"
	"github.com/campusgate/campusgate/pkg/observability"
	"github.com/campusgate/campusgate/pkg/sso"
)

// Server is the portal's HTTP surface. Requests pass through panic
// recovery, request-ID tagging, metrics, the authentication filter,
// rate limiting, and the access policy before reaching a handler, so
// handlers can assume the policy has already been enforced.
type Server struct {
	router *mux.Router
	// routerHandler is the outermost handler, trace-wrapped when enabled
	routerHandler http.Handler
	logger        *observability.Logger

	authHandlers    *AuthHandlers
	accountHandlers *AccountHandlers
	auditHandlers   *AuditHandlers
}

// ServerOptions collects the wired dependencies for NewServer
type ServerOptions struct {
	Store    accounts.Store
	Service  *auth.Service
	Codec    *auth.Codec
	Provider *sso.GoogleProvider
	Audit    audit.Logger
	Policy   *middleware.AccessPolicy
	// RateLimit is the chosen limiter middleware, in-memory or Redis
	RateLimit func(http.Handler) http.Handler
	Metrics   *observability.Metrics
	Logger    *observability.Logger
	// TraceHTTP wraps the router in otelhttp instrumentation
	TraceHTTP bool
}

// NewServer wires the middleware chain and routes
func NewServer(opts ServerOptions) *Server {
	s := &Server{
		router:          mux.NewRouter(),
		logger:          opts.Logger,
		authHandlers:    NewAuthHandlers(opts.Service, opts.Provider, opts.Audit, opts.Metrics, opts.Logger),
		accountHandlers: NewAccountHandlers(opts.Store, opts.Audit, opts.Logger),
		auditHandlers:   NewAuditHandlers(opts.Audit, opts.Logger),
	}

	filter := middleware.NewAuthenticationFilter(opts.Codec, opts.Service, opts.Metrics, opts.Logger)

	// Rate limiting runs after the filter so authenticated traffic is
	// keyed by account; login routes are keyed by IP inside the limiter.
	chain := []func(http.Handler) http.Handler{
		observability.PanicRecoveryMiddleware(opts.Logger),
		middleware.RequestIDMiddleware(),
	}
	if opts.Metrics != nil {
		chain = append(chain, observability.HTTPMetricsMiddleware(opts.Metrics))
	}
	chain = append(chain, filter.Handler)
	if opts.RateLimit != nil {
		chain = append(chain, opts.RateLimit)
	}
	chain = append(chain, opts.Policy.Handler)

	for _, mw := range chain {
		s.router.Use(mux.MiddlewareFunc(mw))
	}

	// mux only applies Use middleware to matched routes. Unrouted and
	// method-mismatched requests must still pass the filter and policy,
	// or any unregistered path would be reachable anonymously.
	s.router.NotFoundHandler = wrapChain(chain, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteNotFoundError(w, "not found")
	}))
	s.router.MethodNotAllowedHandler = wrapChain(chain, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteErrorMessage(w, http.StatusMethodNotAllowed, "method not allowed")
	}))

	s.setupRoutes()

	if opts.TraceHTTP {
		// Wrap after route setup so span names carry the route.
		s.routerHandler = otelhttp.NewHandler(s.router, "campusgate")
	} else {
		s.routerHandler = s.router
	}

	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	// Authentication routes
	s.router.HandleFunc("/auth/login", s.authHandlers.PasswordLogin).Methods("POST")
	s.router.HandleFunc("/auth/login/google", s.authHandlers.GoogleLogin).Methods("POST")
	s.router.HandleFunc("/auth/google/redirect", s.authHandlers.GoogleRedirect).Methods("GET")
	s.router.HandleFunc("/auth/google/callback", s.authHandlers.GoogleCallback).Methods("GET")

	// Current principal
	s.router.HandleFunc("/me", s.authHandlers.CurrentPrincipal).Methods("GET")

	// Account administration
	s.router.HandleFunc("/accounts", s.accountHandlers.Create).Methods("POST")
	s.router.HandleFunc("/accounts", s.accountHandlers.List).Methods("GET")
	s.router.HandleFunc("/accounts/{email}", s.accountHandlers.Get).Methods("GET")
	s.router.HandleFunc("/accounts/{email}/status", s.accountHandlers.UpdateStatus).Methods("PUT")
	s.router.HandleFunc("/accounts/{email}", s.accountHandlers.Delete).Methods("DELETE")

	// Audit trail
	s.router.HandleFunc("/audit/events", s.auditHandlers.List).Methods("GET")
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.routerHandler.ServeHTTP(w, r)
}

func wrapChain(chain []func(http.Handler) http.Handler, h http.Handler) http.Handler {
	for i := len(chain) - 1; i >= 0; i-- {
		h = chain[i](h)
	}
	return h
}
