package middleware

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/campusgate/campusgate/pkg/accounts"
	"github.com/campusgate/campusgate/pkg/async"
	"github.com/campusgate/campusgate/pkg/audit"
	"github.com/campusgate/campusgate/pkg/auth"
	"github.com/campusgate/campusgate/pkg/contextkeys"
	"github.com/campusgate/campusgate/pkg/httputil"
	"github.com/campusgate/campusgate/pkg/observability"
)

// PredicateKind names the authorization predicate a rule applies
type PredicateKind string

const (
	PermitAll            PredicateKind = "permitAll"
	RequireAuthenticated PredicateKind = "requireAuthenticated"
	RequireAnyRole       PredicateKind = "requireAnyRole"
)

// Rule maps (method, path pattern) to an authorization predicate.
// Method "*" matches every method. Path patterns match segment-wise:
// a literal segment matches itself, "*" matches exactly one segment,
// and a trailing "**" matches any remainder including none.
type Rule struct {
	Method    string          `yaml:"method"`
	Path      string          `yaml:"path"`
	Predicate PredicateKind   `yaml:"predicate"`
	Roles     []accounts.Role `yaml:"roles,omitempty"`
}

// Matches reports whether the rule governs the given method and path
func (r Rule) Matches(method, path string) bool {
	if r.Method != "*" && !strings.EqualFold(r.Method, method) {
		return false
	}
	return pathMatches(r.Path, path)
}

func pathMatches(pattern, path string) bool {
	patSegs := splitPath(pattern)
	pathSegs := splitPath(path)

	for i, seg := range patSegs {
		if seg == "**" {
			// Trailing ** swallows the rest.
			return i == len(patSegs)-1
		}
		if i >= len(pathSegs) {
			return false
		}
		if seg != "*" && seg != pathSegs[i] {
			return false
		}
	}
	return len(patSegs) == len(pathSegs)
}

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

// Validate checks rule shape at load time so a misconfigured policy
// fails at startup instead of at request time.
func (r Rule) Validate() error {
	if r.Method == "" || r.Path == "" {
		return fmt.Errorf("policy rule requires method and path")
	}
	switch r.Predicate {
	case PermitAll, RequireAuthenticated:
		if len(r.Roles) > 0 {
			return fmt.Errorf("predicate %s takes no roles", r.Predicate)
		}
	case RequireAnyRole:
		if len(r.Roles) == 0 {
			return fmt.Errorf("predicate %s requires at least one role", RequireAnyRole)
		}
		for _, role := range r.Roles {
			if !role.Valid() {
				return fmt.Errorf("unknown role %q in policy rule", role)
			}
		}
	default:
		return fmt.Errorf("unknown predicate %q", r.Predicate)
	}
	return nil
}

// AccessPolicy is the ordered rule table evaluated after authentication.
// The first rule whose method and path match governs the request; when
// no rule matches, the default is requireAuthenticated. The table is
// fixed at construction and never mutated.
type AccessPolicy struct {
	rules    []Rule
	metrics  *observability.Metrics
	auditLog audit.Logger
	logger   *observability.Logger
}

// NewAccessPolicy validates and freezes a rule table. auditLog may be
// nil when no audit trail is configured.
func NewAccessPolicy(rules []Rule, metrics *observability.Metrics, auditLog audit.Logger, logger *observability.Logger) (*AccessPolicy, error) {
	for i, rule := range rules {
		if err := rule.Validate(); err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
	}
	return &AccessPolicy{
		rules:    rules,
		metrics:  metrics,
		auditLog: auditLog,
		logger:   logger,
	}, nil
}

// LoadRulesFile reads a YAML rule table, letting deployments adjust
// route protection without a rebuild.
func LoadRulesFile(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}
	var doc struct {
		Rules []Rule `yaml:"rules"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse policy file: %w", err)
	}
	return doc.Rules, nil
}

// DefaultRules is the built-in portal policy. There is deliberately no
// broad GET permitAll: unmatched routes fall through to the
// authenticated default, so new endpoints are private until a rule says
// otherwise.
func DefaultRules() []Rule {
	return []Rule{
		{Method: "POST", Path: "/auth/login", Predicate: PermitAll},
		{Method: "POST", Path: "/auth/login/google", Predicate: PermitAll},
		{Method: "GET", Path: "/auth/google/redirect", Predicate: PermitAll},
		{Method: "GET", Path: "/auth/google/callback", Predicate: PermitAll},
		// Health endpoints are served by the separate health listener.
		// These rules keep a probe that reaches the API port instead
		// answering 404 rather than demanding credentials.
		{Method: "GET", Path: "/healthz", Predicate: PermitAll},
		{Method: "GET", Path: "/readyz", Predicate: PermitAll},
		{Method: "GET", Path: "/metrics", Predicate: PermitAll},
		{Method: "GET", Path: "/me", Predicate: RequireAuthenticated},
		{Method: "*", Path: "/accounts/**", Predicate: RequireAnyRole, Roles: []accounts.Role{accounts.RoleAdmin}},
		{Method: "GET", Path: "/audit/**", Predicate: RequireAnyRole, Roles: []accounts.Role{accounts.RoleAdmin, accounts.RoleStaff}},
	}
}

// Decision is the policy outcome for a request
type Decision int

const (
	DecisionAllow Decision = iota
	DecisionUnauthenticated
	DecisionForbidden
)

// Evaluate applies the first matching rule to the security context.
// A nil context fails every predicate except permitAll.
func (p *AccessPolicy) Evaluate(method, path string, authCtx *auth.AuthContext) Decision {
	predicate := RequireAuthenticated
	var roles []accounts.Role
	for _, rule := range p.rules {
		if rule.Matches(method, path) {
			predicate = rule.Predicate
			roles = rule.Roles
			break
		}
	}

	switch predicate {
	case PermitAll:
		return DecisionAllow
	case RequireAuthenticated:
		if authCtx == nil {
			return DecisionUnauthenticated
		}
		return DecisionAllow
	case RequireAnyRole:
		if authCtx == nil {
			return DecisionUnauthenticated
		}
		if authCtx.HasAnyRole(roles...) {
			return DecisionAllow
		}
		return DecisionForbidden
	default:
		// Unreachable after Validate; fail closed anyway.
		return DecisionUnauthenticated
	}
}

// Handler wraps an HTTP handler with the policy check. It runs after
// the authentication filter so the security context, if any, is already
// attached.
func (p *AccessPolicy) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authCtx := GetAuthContext(r)

		switch p.Evaluate(r.Method, r.URL.Path, authCtx) {
		case DecisionAllow:
			next.ServeHTTP(w, r)
		case DecisionUnauthenticated:
			p.countDenied("401")
			httputil.WriteUnauthorized(w, "authentication required")
		case DecisionForbidden:
			p.countDenied("403")
			p.logger.WithField("path", r.URL.Path).
				WithField("email", authCtx.Email()).
				WithField("request_id", contextkeys.GetRequestID(r.Context())).
				Warn("access denied by policy")
			p.recordDenied(r, authCtx.Email())
			httputil.WriteForbidden(w, "insufficient role")
		}
	})
}

func (p *AccessPolicy) countDenied(status string) {
	if p.metrics != nil {
		p.metrics.AccessDeniedTotal.WithLabelValues(status).Inc()
	}
}

// recordDenied writes an audit event for a principal hitting a route
// its role does not cover. Anonymous 401s are routine and not recorded.
func (p *AccessPolicy) recordDenied(r *http.Request, actor string) {
	if p.auditLog == nil {
		return
	}
	clientIP := httputil.ClientIP(r)
	detail := r.Method + " " + r.URL.Path
	async.Go(r.Context(), 5*time.Second, "audit write", p.logger, func(ctx context.Context) error {
		return audit.Record(ctx, p.auditLog, audit.EventTypeAccessDenied, audit.EventStatusDenied, actor, clientIP, detail)
	})
}
