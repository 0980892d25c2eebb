package entitlement

import (
	"context"
	"errors"
	"time"

	"github.com/workdeck/workdeck-backend/models"
	"github.com/workdeck/workdeck-backend/repositories"
	"github.com/workdeck/workdeck-backend/services"
	"go.uber.org/zap"
)

// AccessPredicate decides whether an entitlement grants access right now.
// It is a single swappable function so a policy change (for example letting
// trials through) touches exactly one place.
type AccessPredicate func(ent *models.Entitlement, now time.Time) bool

// DefaultAccessPredicate grants access only to active entitlements that are
// inside their validity window and under their usage limit. Trial status
// does not grant access.
func DefaultAccessPredicate(ent *models.Entitlement, now time.Time) bool {
	if ent == nil {
		return false
	}
	if ent.Status != models.EntitlementActive {
		return false
	}
	if ent.ValidUntil != nil && now.After(*ent.ValidUntil) {
		return false
	}
	if ent.UsageLimit != nil && ent.CurrentUsage >= *ent.UsageLimit {
		return false
	}
	return true
}

// ActivateOptions carries the commercial terms for an activation
type ActivateOptions struct {
	ValidUntil  *time.Time
	UsageLimit  *int
	TrialDays   int
	CustomPrice *float64
}

// Service is the feature entitlement registry: it answers access checks,
// lists per-tenant availability, and manages activation and usage.
type Service struct {
	featureRepo     repositories.FeatureRepository
	entitlementRepo repositories.EntitlementRepository
	usageRepo       repositories.UsageLogRepository
	txManager       repositories.TransactionManager
	logger          *zap.Logger
	predicate       AccessPredicate
	now             func() time.Time
}

// Option configures a Service
type Option func(*Service)

// WithAccessPredicate swaps the access policy
func WithAccessPredicate(p AccessPredicate) Option {
	return func(s *Service) {
		s.predicate = p
	}
}

// WithClock overrides the time source, used in tests
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a new entitlement service
func NewService(
	featureRepo repositories.FeatureRepository,
	entitlementRepo repositories.EntitlementRepository,
	usageRepo repositories.UsageLogRepository,
	txManager repositories.TransactionManager,
	logger *zap.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		featureRepo:     featureRepo,
		entitlementRepo: entitlementRepo,
		usageRepo:       usageRepo,
		txManager:       txManager,
		logger:          logger,
		predicate:       DefaultAccessPredicate,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FindFeature retrieves a catalog feature by code
func (s *Service) FindFeature(ctx context.Context, code string) (*models.Feature, error) {
	feature, err := s.featureRepo.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.NewDomainError(services.ErrorTypeNotFound, "feature not found", nil).
				WithDetail("feature_code", code)
		}
		return nil, services.WrapInternal("failed to find feature", err)
	}
	return feature, nil
}

// CheckAccess reports whether the tenant currently has access to the
// feature. An unknown feature or a missing entitlement is simply no access,
// not an error.
func (s *Service) CheckAccess(ctx context.Context, tenantID int64, code string) (bool, error) {
	feature, err := s.featureRepo.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return false, nil
		}
		return false, services.WrapInternal("failed to check feature access", err)
	}
	if !feature.IsActive {
		return false, nil
	}

	ent, err := s.entitlementRepo.GetByTenantAndFeature(ctx, tenantID, feature.ID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return false, nil
		}
		return false, services.WrapInternal("failed to check feature access", err)
	}

	return s.predicate(ent, s.now()), nil
}

// ListTenantFeatures returns the full catalog annotated with the tenant's
// entitlement and current availability for each feature.
func (s *Service) ListTenantFeatures(ctx context.Context, tenantID int64) ([]models.TenantFeature, error) {
	rows, err := s.entitlementRepo.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, services.WrapInternal("failed to list tenant features", err)
	}

	now := s.now()
	for i := range rows {
		rows[i].IsAvailable = rows[i].Feature.IsActive && s.predicate(rows[i].Entitlement, now)
	}

	return rows, nil
}

// Activate creates or replaces the tenant's entitlement for a feature.
// TrialDays > 0 starts a trial whose validity window is computed from now;
// otherwise the entitlement is active immediately.
func (s *Service) Activate(ctx context.Context, tenantID int64, code string, opts ActivateOptions) (*models.Entitlement, error) {
	feature, err := s.FindFeature(ctx, code)
	if err != nil {
		return nil, err
	}

	now := s.now()
	ent := &models.Entitlement{
		TenantID:    tenantID,
		FeatureID:   feature.ID,
		Status:      models.EntitlementActive,
		ValidFrom:   now,
		ValidUntil:  opts.ValidUntil,
		UsageLimit:  opts.UsageLimit,
		TrialDays:   opts.TrialDays,
		CustomPrice: opts.CustomPrice,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if opts.TrialDays > 0 {
		ent.Status = models.EntitlementTrial
		trialEnd := now.AddDate(0, 0, opts.TrialDays)
		ent.ValidUntil = &trialEnd
	}

	if err := s.entitlementRepo.Upsert(ctx, ent); err != nil {
		return nil, services.WrapInternal("failed to activate feature", err)
	}

	s.logger.Info("feature activated",
		zap.Int64("tenant_id", tenantID),
		zap.String("feature_code", code),
		zap.String("status", string(ent.Status)))

	return ent, nil
}

// Deactivate disables the tenant's entitlement for a feature
func (s *Service) Deactivate(ctx context.Context, tenantID int64, code string) error {
	feature, err := s.FindFeature(ctx, code)
	if err != nil {
		return err
	}

	if err := s.entitlementRepo.SetStatus(ctx, tenantID, feature.ID, models.EntitlementDisabled); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return services.NewDomainError(services.ErrorTypeNotFound, "entitlement not found", nil).
				WithDetail("feature_code", code)
		}
		return services.WrapInternal("failed to deactivate feature", err)
	}

	s.logger.Info("feature deactivated",
		zap.Int64("tenant_id", tenantID),
		zap.String("feature_code", code))

	return nil
}

// RecordUsage appends a usage log entry and bumps the usage counter in one
// transaction. The counter addition is done in SQL so concurrent recorders
// never lose an increment.
func (s *Service) RecordUsage(ctx context.Context, tenantID int64, code string, userID *int64, metadata map[string]interface{}) error {
	feature, err := s.FindFeature(ctx, code)
	if err != nil {
		return err
	}

	entry := models.NewUsageLogEntry(tenantID, feature.ID)
	if userID != nil {
		entry.WithUser(*userID)
	}
	if metadata != nil {
		entry.WithMetadata(metadata)
	}

	err = s.txManager.InTransaction(ctx, func(txCtx context.Context, tx repositories.Transaction) error {
		if err := s.usageRepo.Insert(txCtx, entry); err != nil {
			return err
		}
		if err := s.entitlementRepo.IncrementUsage(txCtx, tenantID, feature.ID); err != nil {
			// Usage on a feature without an entitlement is still recorded.
			if errors.Is(err, repositories.ErrNotFound) {
				return nil
			}
			return err
		}
		return nil
	})
	if err != nil {
		return services.WrapInternal("failed to record usage", err)
	}

	return nil
}

// UsageSeries aggregates a tenant's daily feature usage over a date range
func (s *Service) UsageSeries(ctx context.Context, tenantID int64, code string, start, end time.Time) ([]models.UsageBucket, error) {
	if end.Before(start) {
		return nil, services.ErrInvalidDateRange
	}

	feature, err := s.FindFeature(ctx, code)
	if err != nil {
		return nil, err
	}

	buckets, err := s.usageRepo.DailySeries(ctx, tenantID, feature.ID, start, end)
	if err != nil {
		return nil, services.WrapInternal("failed to load usage series", err)
	}

	return buckets, nil
}
