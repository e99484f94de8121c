package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/campusgate/campusgate/pkg/accounts"
	"github.com/campusgate/campusgate/pkg/async"
	"github.com/campusgate/campusgate/pkg/audit"
	"github.com/campusgate/campusgate/pkg/auth"
	"github.com/campusgate/campusgate/pkg/httputil"
	"github.com/campusgate/campusgate/pkg/middleware"
	"github.com/campusgate/campusgate/pkg/observability"
)

// AccountHandlers serves the account administration endpoints. The
// access policy restricts every route here to administrators.
type AccountHandlers struct {
	store  accounts.Store
	audit  audit.Logger
	logger *observability.Logger
}

// NewAccountHandlers creates the account administration handlers
func NewAccountHandlers(store accounts.Store, auditLog audit.Logger, logger *observability.Logger) *AccountHandlers {
	return &AccountHandlers{
		store:  store,
		audit:  auditLog,
		logger: logger,
	}
}

// Create handles POST /accounts
func (h *AccountHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email       string        `json:"email"`
		DisplayName string        `json:"displayName"`
		Role        accounts.Role `json:"role"`
		Password    string        `json:"password"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	email := strings.TrimSpace(strings.ToLower(req.Email))
	if email == "" {
		httputil.WriteBadRequest(w, "email is required")
		return
	}
	if !req.Role.Valid() {
		httputil.WriteBadRequest(w, "unknown role")
		return
	}

	account := &accounts.Account{
		Email:       email,
		DisplayName: req.DisplayName,
		Role:        req.Role,
		Status:      accounts.StatusActive,
		LoginMethod: accounts.LoginMethodPassword,
	}

	if req.Password == "" {
		httputil.WriteBadRequest(w, "password is required")
		return
	}
	if err := auth.ValidatePasswordPolicy(req.Password); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.logger.WithError(err).Error("failed to hash password")
		httputil.WriteInternalError(w)
		return
	}
	account.PasswordHash = &hash

	created, err := h.store.Create(r.Context(), account)
	if errors.Is(err, accounts.ErrDuplicate) {
		httputil.WriteConflict(w, "an account with that email already exists")
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("failed to create account")
		httputil.WriteInternalError(w)
		return
	}

	h.recordAudit(r, audit.EventTypeAccountCreated, email, "account created by "+h.actorEmail(r))
	httputil.WriteCreated(w, created)
}

// List handles GET /accounts
func (h *AccountHandlers) List(w http.ResponseWriter, r *http.Request) {
	all, err := h.store.List(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("failed to list accounts")
		httputil.WriteInternalError(w)
		return
	}
	httputil.WriteSuccess(w, all)
}

// Get handles GET /accounts/{email}
func (h *AccountHandlers) Get(w http.ResponseWriter, r *http.Request) {
	email, ok := httputil.ParsePathStringOrError(w, r, "email")
	if !ok {
		return
	}

	account, err := h.store.FindByEmail(r.Context(), strings.ToLower(email))
	if errors.Is(err, accounts.ErrNotFound) {
		httputil.WriteNotFoundError(w, "account not found")
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("failed to fetch account")
		httputil.WriteInternalError(w)
		return
	}
	httputil.WriteSuccess(w, account)
}

// UpdateStatus handles PUT /accounts/{email}/status. Deactivating an
// account invalidates its live tokens on the next request, since the
// authentication filter re-checks status every time.
func (h *AccountHandlers) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	email, ok := httputil.ParsePathStringOrError(w, r, "email")
	if !ok {
		return
	}

	var req struct {
		Status accounts.Status `json:"status"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !req.Status.Valid() {
		httputil.WriteBadRequest(w, "unknown status")
		return
	}

	email = strings.ToLower(email)
	err := h.store.UpdateStatus(r.Context(), email, req.Status)
	if errors.Is(err, accounts.ErrNotFound) {
		httputil.WriteNotFoundError(w, "account not found")
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("failed to update account status")
		httputil.WriteInternalError(w)
		return
	}

	h.recordAudit(r, audit.EventTypeAccountStatus, email, "status set to "+string(req.Status)+" by "+h.actorEmail(r))
	httputil.WriteNoContent(w)
}

// Delete handles DELETE /accounts/{email}
func (h *AccountHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	email, ok := httputil.ParsePathStringOrError(w, r, "email")
	if !ok {
		return
	}

	email = strings.ToLower(email)
	err := h.store.Delete(r.Context(), email)
	if errors.Is(err, accounts.ErrNotFound) {
		httputil.WriteNotFoundError(w, "account not found")
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("failed to delete account")
		httputil.WriteInternalError(w)
		return
	}

	h.recordAudit(r, audit.EventTypeAccountDeleted, email, "account deleted by "+h.actorEmail(r))
	httputil.WriteNoContent(w)
}

func (h *AccountHandlers) actorEmail(r *http.Request) string {
	if authCtx := middleware.GetAuthContext(r); authCtx != nil {
		return authCtx.Email()
	}
	return "unknown"
}

func (h *AccountHandlers) recordAudit(r *http.Request, eventType audit.EventType, actor, detail string) {
	clientIP := httputil.ClientIP(r)
	async.Go(r.Context(), 5*time.Second, "audit write", h.logger, func(ctx context.Context) error {
		return audit.Record(ctx, h.audit, eventType, audit.EventStatusSuccess, actor, clientIP, detail)
	})
}
