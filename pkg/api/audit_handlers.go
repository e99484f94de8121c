package api

import (
	"net/http"
	"strconv"

	"github.com/campusgate/campusgate/pkg/audit"
	"github.com/campusgate/campusgate/pkg/httputil"
	"github.com/campusgate/campusgate/pkg/observability"
)

// AuditHandlers exposes the audit trail to administrators and staff
type AuditHandlers struct {
	audit  audit.Logger
	logger *observability.Logger
}

// NewAuditHandlers creates the audit trail handlers
func NewAuditHandlers(auditLog audit.Logger, logger *observability.Logger) *AuditHandlers {
	return &AuditHandlers{
		audit:  auditLog,
		logger: logger,
	}
}

// List handles GET /audit/events. Supports optional type and limit
// query parameters.
func (h *AuditHandlers) List(w http.ResponseWriter, r *http.Request) {
	eventType := audit.EventType(r.URL.Query().Get("type"))

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			httputil.WriteBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	events, err := h.audit.List(r.Context(), eventType, limit)
	if err != nil {
		h.logger.WithError(err).Error("failed to list audit events")
		httputil.WriteInternalError(w)
		return
	}
	if events == nil {
		events = []*audit.Event{}
	}
	httputil.WriteSuccess(w, events)
}
