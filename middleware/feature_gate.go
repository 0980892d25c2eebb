package middleware

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/workdeck/workdeck-backend/models"
	"github.com/workdeck/workdeck-backend/repositories"
	"github.com/workdeck/workdeck-backend/utils"
	"go.uber.org/zap"
)

// FeatureChecker answers feature access questions and records usage
type FeatureChecker interface {
	// CheckAccess reports whether the tenant currently has access to the feature
	CheckAccess(ctx context.Context, tenantID int64, code string) (bool, error)

	// RecordUsage appends a usage record for the feature
	RecordUsage(ctx context.Context, tenantID int64, code string, userID *int64, metadata map[string]interface{}) error
}

// TenantResolver resolves explicit tenant references from requests
type TenantResolver interface {
	GetBySubdomain(ctx context.Context, subdomain string) (*models.Tenant, error)
}

// FeatureGate guards routes behind feature entitlements
type FeatureGate struct {
	features FeatureChecker
	tenants  TenantResolver
	logger   *zap.Logger
}

// NewFeatureGate creates a new feature gate
func NewFeatureGate(features FeatureChecker, tenants TenantResolver, logger *zap.Logger) *FeatureGate {
	return &FeatureGate{
		features: features,
		tenants:  tenants,
		logger:   logger,
	}
}

// GateOption configures a single gate
type GateOption func(*gateConfig)

type gateConfig struct {
	recordUsage bool
}

// WithUsageRecording makes the gate record one usage event per allowed request
func WithUsageRecording() GateOption {
	return func(c *gateConfig) {
		c.recordUsage = true
	}
}

// RequireFeature allows the request through only when the tenant has access
// to the feature. Denials carry a structured body naming the feature.
func (g *FeatureGate) RequireFeature(code string, opts ...GateOption) func(http.Handler) http.Handler {
	cfg := &gateConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			tenantID, ok := g.resolveTenant(w, r)
			if !ok {
				return
			}

			allowed, err := g.features.CheckAccess(ctx, tenantID, code)
			if err != nil {
				g.logger.Error("feature access check failed",
					zap.String("request_id", GetRequestIDFromContext(ctx)),
					zap.String("feature_code", code),
					zap.Error(err))
				_ = utils.WriteInternalServerError(w, "")
				return
			}

			if !allowed {
				g.deny(w, r, tenantID, code)
				return
			}

			if cfg.recordUsage {
				g.recordUsage(r, tenantID, code)
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireAnyFeature allows the request through when the tenant has access to
// at least one of the features
func (g *FeatureGate) RequireAnyFeature(codes ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			tenantID, ok := g.resolveTenant(w, r)
			if !ok {
				return
			}

			for _, code := range codes {
				allowed, err := g.features.CheckAccess(ctx, tenantID, code)
				if err != nil {
					g.logger.Error("feature access check failed",
						zap.String("request_id", GetRequestIDFromContext(ctx)),
						zap.String("feature_code", code),
						zap.Error(err))
					_ = utils.WriteInternalServerError(w, "")
					return
				}
				if allowed {
					next.ServeHTTP(w, r)
					return
				}
			}

			g.deny(w, r, tenantID, codes...)
		})
	}
}

// RequireAllFeatures allows the request through only when the tenant has
// access to every one of the features
func (g *FeatureGate) RequireAllFeatures(codes ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			tenantID, ok := g.resolveTenant(w, r)
			if !ok {
				return
			}

			for _, code := range codes {
				allowed, err := g.features.CheckAccess(ctx, tenantID, code)
				if err != nil {
					g.logger.Error("feature access check failed",
						zap.String("request_id", GetRequestIDFromContext(ctx)),
						zap.String("feature_code", code),
						zap.Error(err))
					_ = utils.WriteInternalServerError(w, "")
					return
				}
				if !allowed {
					g.deny(w, r, tenantID, code)
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// resolveTenant determines which tenant the request is about. An explicit
// tenant reference on the request wins over the credential's tenant; a
// request with neither is rejected. Writes the error response itself and
// returns ok=false when resolution fails.
func (g *FeatureGate) resolveTenant(w http.ResponseWriter, r *http.Request) (int64, bool) {
	ctx := r.Context()
	requestID := GetRequestIDFromContext(ctx)

	if ref := GetTenantRefFromContext(ctx); ref != "" {
		if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
			return id, true
		}

		tenant, err := g.tenants.GetBySubdomain(ctx, ref)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				g.logger.Warn("unknown tenant subdomain",
					zap.String("request_id", requestID),
					zap.String("subdomain", ref))
				_ = utils.WriteNotFound(w, "Tenant not found")
				return 0, false
			}
			g.logger.Error("tenant lookup failed",
				zap.String("request_id", requestID),
				zap.String("subdomain", ref),
				zap.Error(err))
			_ = utils.WriteInternalServerError(w, "")
			return 0, false
		}
		return tenant.ID, true
	}

	if claims := GetClaimsFromContext(ctx); claims != nil && claims.TenantID != 0 {
		return claims.TenantID, true
	}

	g.logger.Warn("tenant not identified", zap.String("request_id", requestID))
	_ = utils.WriteBadRequest(w, "Tenant not identified", nil)
	return 0, false
}

func (g *FeatureGate) deny(w http.ResponseWriter, r *http.Request, tenantID int64, codes ...string) {
	g.logger.Info("feature access denied",
		zap.String("request_id", GetRequestIDFromContext(r.Context())),
		zap.Int64("tenant_id", tenantID),
		zap.Strings("feature_codes", codes))
	_ = utils.WriteFeatureUnavailable(w, "", codes...)
}

// recordUsage records one usage event for an allowed request. Recording
// failures are logged and never block the request.
func (g *FeatureGate) recordUsage(r *http.Request, tenantID int64, code string) {
	ctx := r.Context()

	var userID *int64
	if claims := GetClaimsFromContext(ctx); claims != nil {
		id := claims.UserID
		userID = &id
	}

	metadata := map[string]interface{}{
		"path":   r.URL.Path,
		"method": r.Method,
	}

	if err := g.features.RecordUsage(ctx, tenantID, code, userID, metadata); err != nil {
		g.logger.Warn("failed to record feature usage",
			zap.String("request_id", GetRequestIDFromContext(ctx)),
			zap.String("feature_code", code),
			zap.Error(err))
	}
}
