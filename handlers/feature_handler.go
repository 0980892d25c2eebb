package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/workdeck/workdeck-backend/middleware"
	"github.com/workdeck/workdeck-backend/models"
	"github.com/workdeck/workdeck-backend/services/entitlement"
	"github.com/workdeck/workdeck-backend/utils"
	"go.uber.org/zap"
)

// ActivateFeatureRequest represents a request to activate a feature
type ActivateFeatureRequest struct {
	FeatureCode string     `json:"feature_code" validate:"required"`
	ValidUntil  *time.Time `json:"valid_until,omitempty"`
	UsageLimit  *int       `json:"usage_limit,omitempty" validate:"omitempty,gt=0"`
	TrialDays   int        `json:"trial_days" validate:"gte=0"`
	CustomPrice *float64   `json:"custom_price,omitempty" validate:"omitempty,gte=0"`
}

// DeactivateFeatureRequest represents a request to deactivate a feature
type DeactivateFeatureRequest struct {
	FeatureCode string `json:"feature_code" validate:"required"`
}

// EntitlementService defines the interface for feature entitlement operations
type EntitlementService interface {
	// FindFeature retrieves a catalog feature by code
	FindFeature(ctx context.Context, code string) (*models.Feature, error)

	// ListTenantFeatures returns the catalog annotated with the tenant's availability
	ListTenantFeatures(ctx context.Context, tenantID int64) ([]models.TenantFeature, error)

	// Activate creates or replaces the tenant's entitlement for a feature
	Activate(ctx context.Context, tenantID int64, code string, opts entitlement.ActivateOptions) (*models.Entitlement, error)

	// Deactivate disables the tenant's entitlement for a feature
	Deactivate(ctx context.Context, tenantID int64, code string) error

	// UsageSeries aggregates daily feature usage over a date range
	UsageSeries(ctx context.Context, tenantID int64, code string, start, end time.Time) ([]models.UsageBucket, error)
}

// FeatureAuditor records feature administration events
type FeatureAuditor interface {
	LogFeatureActivated(tenantID int64, userID int64, feature *models.Feature, ent *models.Entitlement) error
	LogFeatureDeactivated(tenantID int64, userID int64, featureCode string) error
}

// FeatureCatalog lists the globally available features
type FeatureCatalog interface {
	ListActive(ctx context.Context) ([]*models.Feature, error)
}

// FeatureHandler handles feature entitlement HTTP endpoints
type FeatureHandler struct {
	service EntitlementService
	catalog FeatureCatalog
	auditor FeatureAuditor
	logger  *zap.Logger
}

// NewFeatureHandler creates a new feature handler
func NewFeatureHandler(service EntitlementService, catalog FeatureCatalog, auditor FeatureAuditor, logger *zap.Logger) *FeatureHandler {
	return &FeatureHandler{
		service: service,
		catalog: catalog,
		auditor: auditor,
		logger:  logger,
	}
}

// ListAvailable handles GET /features/available
func (h *FeatureHandler) ListAvailable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	features, err := h.catalog.ListActive(ctx)
	if err != nil {
		h.logger.Error("failed to list catalog features", zap.Error(err))
		_ = utils.WriteInternalServerError(w, "")
		return
	}

	_ = utils.WriteOK(w, features)
}

// ListMyFeatures handles GET /features/my-features
func (h *FeatureHandler) ListMyFeatures(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	tenantID := middleware.GetTenantIDFromContext(ctx)
	if tenantID == 0 {
		h.logger.Warn("tenant not identified", zap.String("request_id", requestID))
		_ = utils.WriteBadRequest(w, "Tenant not identified", nil)
		return
	}

	rows, err := h.service.ListTenantFeatures(ctx, tenantID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, rows)
}

// Activate handles POST /features/activate
func (h *FeatureHandler) Activate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	tenantID := middleware.GetTenantIDFromContext(ctx)
	if tenantID == 0 {
		_ = utils.WriteBadRequest(w, "Tenant not identified", nil)
		return
	}

	var req ActivateFeatureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}

	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	ent, err := h.service.Activate(ctx, tenantID, req.FeatureCode, entitlement.ActivateOptions{
		ValidUntil:  req.ValidUntil,
		UsageLimit:  req.UsageLimit,
		TrialDays:   req.TrialDays,
		CustomPrice: req.CustomPrice,
	})
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if feature, ferr := h.service.FindFeature(ctx, req.FeatureCode); ferr == nil {
		if aerr := h.auditor.LogFeatureActivated(tenantID, middleware.GetUserIDFromContext(ctx), feature, ent); aerr != nil {
			h.logger.Warn("failed to audit feature activation",
				zap.String("request_id", requestID),
				zap.Error(aerr))
		}
	}

	_ = utils.WriteOK(w, ent)
}

// Deactivate handles POST /features/deactivate
func (h *FeatureHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	tenantID := middleware.GetTenantIDFromContext(ctx)
	if tenantID == 0 {
		_ = utils.WriteBadRequest(w, "Tenant not identified", nil)
		return
	}

	var req DeactivateFeatureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}

	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	if err := h.service.Deactivate(ctx, tenantID, req.FeatureCode); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if aerr := h.auditor.LogFeatureDeactivated(tenantID, middleware.GetUserIDFromContext(ctx), req.FeatureCode); aerr != nil {
		h.logger.Warn("failed to audit feature deactivation",
			zap.String("request_id", requestID),
			zap.Error(aerr))
	}

	_ = utils.WriteOK(w, map[string]interface{}{
		"feature_code": req.FeatureCode,
		"status":       models.EntitlementDisabled,
	})
}

// UsageSeries handles GET /features/usage/{featureCode}
func (h *FeatureHandler) UsageSeries(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tenantID := middleware.GetTenantIDFromContext(ctx)
	if tenantID == 0 {
		_ = utils.WriteBadRequest(w, "Tenant not identified", nil)
		return
	}

	featureCode := chi.URLParam(r, "featureCode")
	if featureCode == "" {
		_ = utils.WriteBadRequest(w, "Feature code is required", nil)
		return
	}

	// Default window: the last 30 days.
	end := time.Now()
	start := end.AddDate(0, 0, -30)

	if v := r.URL.Query().Get("start_date"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			_ = utils.WriteBadRequest(w, "Invalid start_date, expected YYYY-MM-DD", nil)
			return
		}
		start = parsed
	}
	if v := r.URL.Query().Get("end_date"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			_ = utils.WriteBadRequest(w, "Invalid end_date, expected YYYY-MM-DD", nil)
			return
		}
		// Include the whole end day.
		end = parsed.AddDate(0, 0, 1)
	}

	buckets, err := h.service.UsageSeries(ctx, tenantID, featureCode, start, end)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, buckets)
}
