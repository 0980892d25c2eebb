package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/workdeck/workdeck-backend/middleware"
	"github.com/workdeck/workdeck-backend/repositories"
	"github.com/workdeck/workdeck-backend/utils"
	"go.uber.org/zap"
)

// AuditHandler exposes the audit log read side to tenant administrators
type AuditHandler struct {
	auditRepo repositories.AuditRepository
	logger    *zap.Logger
}

// NewAuditHandler creates a new audit handler
func NewAuditHandler(auditRepo repositories.AuditRepository, logger *zap.Logger) *AuditHandler {
	return &AuditHandler{
		auditRepo: auditRepo,
		logger:    logger,
	}
}

// ListLogs handles GET /audit/logs. Results are always scoped to the
// caller's tenant.
func (h *AuditHandler) ListLogs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tenantID := middleware.GetTenantIDFromContext(ctx)
	if tenantID == 0 {
		_ = utils.WriteBadRequest(w, "Tenant not identified", nil)
		return
	}

	limit := 50
	offset := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 && parsed <= 500 {
			limit = parsed
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	start := r.URL.Query().Get("start_date")
	end := r.URL.Query().Get("end_date")
	if start != "" && end != "" {
		startTime, err := time.Parse("2006-01-02", start)
		if err != nil {
			_ = utils.WriteBadRequest(w, "Invalid start_date, expected YYYY-MM-DD", nil)
			return
		}
		endTime, err := time.Parse("2006-01-02", end)
		if err != nil {
			_ = utils.WriteBadRequest(w, "Invalid end_date, expected YYYY-MM-DD", nil)
			return
		}

		logs, err := h.auditRepo.GetByDateRange(ctx, tenantID, startTime, endTime.AddDate(0, 0, 1), limit, offset)
		if err != nil {
			h.logger.Error("failed to query audit logs", zap.Error(err))
			_ = utils.WriteInternalServerError(w, "")
			return
		}
		_ = utils.WriteOK(w, logs)
		return
	}

	logs, err := h.auditRepo.GetByTenantID(ctx, tenantID, limit, offset)
	if err != nil {
		h.logger.Error("failed to query audit logs", zap.Error(err))
		_ = utils.WriteInternalServerError(w, "")
		return
	}

	_ = utils.WriteOK(w, logs)
}
