package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"time"

	"github.com/campusgate/campusgate/pkg/async"
	"github.com/campusgate/campusgate/pkg/audit"
	"github.com/campusgate/campusgate/pkg/auth"
	"github.com/campusgate/campusgate/pkg/httputil"
	"github.com/campusgate/campusgate/pkg/middleware"
	"github.com/campusgate/campusgate/pkg/observability"
	"github.com/campusgate/campusgate/pkg/sso"
)

const stateCookieName = "campusgate_oauth_state"

// AuthHandlers serves the login endpoints
type AuthHandlers struct {
	service  *auth.Service
	provider *sso.GoogleProvider
	audit    audit.Logger
	metrics  *observability.Metrics
	logger   *observability.Logger
}

// NewAuthHandlers creates the login endpoint handlers. provider may be
// nil when the browser flow is not configured.
func NewAuthHandlers(service *auth.Service, provider *sso.GoogleProvider, auditLog audit.Logger, metrics *observability.Metrics, logger *observability.Logger) *AuthHandlers {
	return &AuthHandlers{
		service:  service,
		provider: provider,
		audit:    auditLog,
		metrics:  metrics,
		logger:   logger,
	}
}

// PasswordLogin handles POST /auth/login
func (h *AuthHandlers) PasswordLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	result, err := h.service.PasswordLogin(r.Context(), req.Email, req.Password)
	if err != nil {
		h.countLogin("password", "failure")
		h.recordAudit(r, audit.EventTypeLoginFailed, audit.EventStatusFailure, req.Email, "password login rejected")
		h.writeAuthError(w, err)
		return
	}

	h.countLogin("password", "success")
	h.recordAudit(r, audit.EventTypeLogin, audit.EventStatusSuccess, req.Email, "password login")
	httputil.WriteSuccess(w, result)
}

// GoogleLogin handles POST /auth/login/google with a raw identity token
func (h *AuthHandlers) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IdentityToken string `json:"identityToken"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	result, err := h.service.GoogleLogin(r.Context(), req.IdentityToken)
	if err != nil {
		h.countLogin("google", "failure")
		h.recordAudit(r, audit.EventTypeGoogleLoginFailed, audit.EventStatusFailure, "", "google login rejected")
		h.writeAuthError(w, err)
		return
	}

	h.countLogin("google", "success")
	h.recordProvisioned(r, result)
	h.recordAudit(r, audit.EventTypeGoogleLogin, audit.EventStatusSuccess, result.Email, "google login")
	httputil.WriteSuccess(w, result)
}

// GoogleRedirect handles GET /auth/google/redirect, starting the browser flow
func (h *AuthHandlers) GoogleRedirect(w http.ResponseWriter, r *http.Request) {
	if h.provider == nil {
		httputil.WriteNotFoundError(w, "google login is not configured")
		return
	}

	state, err := randomState()
	if err != nil {
		h.logger.WithError(err).Error("failed to generate oauth state")
		httputil.WriteInternalError(w)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/auth/google",
		Expires:  time.Now().Add(10 * time.Minute),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})

	h.provider.InitiateLogin(w, r, state)
}

// GoogleCallback handles GET /auth/google/callback, finishing the browser flow
func (h *AuthHandlers) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	if h.provider == nil {
		httputil.WriteNotFoundError(w, "google login is not configured")
		return
	}

	cookie, err := r.Cookie(stateCookieName)
	if err != nil || cookie.Value == "" || cookie.Value != r.URL.Query().Get("state") {
		httputil.WriteBadRequest(w, "state mismatch")
		return
	}

	identity, err := h.provider.HandleCallback(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		h.countLogin("google", "failure")
		h.recordAudit(r, audit.EventTypeGoogleLoginFailed, audit.EventStatusFailure, "", "callback code exchange failed")
		h.logger.WithError(err).Warn("google callback rejected")
		httputil.WriteBadRequest(w, "invalid identity token")
		return
	}

	result, err := h.service.LoginWithIdentity(r.Context(), identity)
	if err != nil {
		h.countLogin("google", "failure")
		h.recordAudit(r, audit.EventTypeGoogleLoginFailed, audit.EventStatusFailure, identity.Email, "google login rejected")
		h.writeAuthError(w, err)
		return
	}

	h.countLogin("google", "success")
	h.recordProvisioned(r, result)
	h.recordAudit(r, audit.EventTypeGoogleLogin, audit.EventStatusSuccess, identity.Email, "google login via browser flow")
	httputil.WriteSuccess(w, result)
}

// CurrentPrincipal handles GET /me
func (h *AuthHandlers) CurrentPrincipal(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.GetAuthContext(r)
	if authCtx == nil {
		// The access policy gates this route; reaching here without a
		// context means the policy was misconfigured.
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	httputil.WriteSuccess(w, map[string]interface{}{
		"email":       authCtx.Account.Email,
		"displayName": authCtx.Account.DisplayName,
		"role":        authCtx.Account.Role,
		"status":      authCtx.Account.Status,
	})
}

// writeAuthError maps service error kinds onto HTTP responses. Only the
// public message leaves the process; the wrapped cause stays in logs.
func (h *AuthHandlers) writeAuthError(w http.ResponseWriter, err error) {
	var authErr *auth.Error
	if !errors.As(err, &authErr) {
		h.logger.WithError(err).Error("unclassified login error")
		httputil.WriteInternalError(w)
		return
	}

	switch authErr.Kind {
	case auth.KindBadInput, auth.KindNotFound, auth.KindBadCredentials,
		auth.KindDisabled, auth.KindInvalidIdentityToken:
		httputil.WriteBadRequest(w, authErr.PublicMessage())
	case auth.KindNotAllowed:
		httputil.WriteForbidden(w, authErr.PublicMessage())
	default:
		h.logger.WithError(err).Error("login failed internally")
		httputil.WriteInternalError(w)
	}
}

func (h *AuthHandlers) countLogin(method, outcome string) {
	if h.metrics != nil {
		h.metrics.LoginAttemptsTotal.WithLabelValues(method, outcome).Inc()
	}
}

// recordProvisioned notes a first-time third-party login that created
// an account.
func (h *AuthHandlers) recordProvisioned(r *http.Request, result *auth.LoginResult) {
	if !result.Provisioned {
		return
	}
	if h.metrics != nil {
		h.metrics.AccountsProvisioned.Inc()
	}
	h.recordAudit(r, audit.EventTypeAccountProvisioned, audit.EventStatusSuccess, result.Email, "student account auto-provisioned")
}

func (h *AuthHandlers) recordAudit(r *http.Request, eventType audit.EventType, status audit.EventStatus, actor, detail string) {
	clientIP := httputil.ClientIP(r)
	async.Go(r.Context(), 5*time.Second, "audit write", h.logger, func(ctx context.Context) error {
		return audit.Record(ctx, h.audit, eventType, status, actor, clientIP, detail)
	})
}

func randomState() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
