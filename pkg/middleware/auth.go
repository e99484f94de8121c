package middleware

import (
	"net/http"

	"github.com/campusgate/campusgate/pkg/auth"
	"github.com/campusgate/campusgate/pkg/contextkeys"
	"github.com/campusgate/campusgate/pkg/httputil"
	"github.com/campusgate/campusgate/pkg/observability"
)

// AuthenticationFilter resolves the bearer token on each inbound request
// and, when it maps to an active account, attaches an auth.AuthContext to
// the request scope. It never rejects a request itself: a missing,
// malformed, invalid, or orphaned token simply leaves the request
// unauthenticated for the access policy to judge.
type AuthenticationFilter struct {
	codec   *auth.Codec
	service *auth.Service
	metrics *observability.Metrics
	logger  *observability.Logger
}

// NewAuthenticationFilter creates the per-request authentication filter
func NewAuthenticationFilter(codec *auth.Codec, service *auth.Service, metrics *observability.Metrics, logger *observability.Logger) *AuthenticationFilter {
	return &AuthenticationFilter{
		codec:   codec,
		service: service,
		metrics: metrics,
		logger:  logger,
	}
}

// Handler wraps an HTTP handler with token resolution
func (f *AuthenticationFilter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Single-pass design; if a context is somehow already attached,
		// leave it alone.
		if GetAuthContext(r) != nil {
			next.ServeHTTP(w, r)
			return
		}

		token := httputil.BearerToken(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		subject, err := f.codec.Validate(token)
		if err != nil {
			f.countValidation("invalid")
			f.logger.WithField("path", r.URL.Path).Debug("rejected bearer token, continuing unauthenticated")
			next.ServeHTTP(w, r)
			return
		}

		account, err := f.service.ResolvePrincipal(r.Context(), subject)
		if err != nil {
			// Store failure: treat as unauthenticated rather than 500;
			// the policy decides whether the route needed identity.
			f.countValidation("store_error")
			f.logger.WithError(err).WithField("subject", subject).Error("principal lookup failed during authentication")
			next.ServeHTTP(w, r)
			return
		}
		if account == nil {
			f.countValidation("unknown_subject")
			next.ServeHTTP(w, r)
			return
		}

		f.countValidation("ok")
		ctx := contextkeys.WithAuth(r.Context(), auth.NewAuthContext(account))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (f *AuthenticationFilter) countValidation(outcome string) {
	if f.metrics != nil {
		f.metrics.TokenValidationsTotal.WithLabelValues(outcome).Inc()
	}
}

// GetAuthContext extracts the security context from a request, or nil
// when the request is unauthenticated.
func GetAuthContext(r *http.Request) *auth.AuthContext {
	v := r.Context().Value(contextkeys.AuthKey)
	if v == nil {
		return nil
	}
	authCtx, ok := v.(*auth.AuthContext)
	if !ok {
		return nil
	}
	return authCtx
}
