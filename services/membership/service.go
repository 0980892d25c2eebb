package membership

import (
	"context"
	"errors"
	"fmt"

	"github.com/workdeck/workdeck-backend/models"
	"github.com/workdeck/workdeck-backend/repositories"
	"github.com/workdeck/workdeck-backend/services"
	"go.uber.org/zap"
)

// SecurityLogger receives tenant mismatch events for the audit trail
type SecurityLogger interface {
	LogTenantMismatch(claimedTenantID, actualTenantID, userID int64, requestID string) error
}

// Service verifies that a user actually belongs to the tenant a credential
// claims. Claims are never trusted for authorization decisions; the user is
// re-read from storage on every call.
type Service struct {
	userRepo repositories.UserRepository
	security SecurityLogger
	logger   *zap.Logger
}

// NewService creates a new membership verification service
func NewService(userRepo repositories.UserRepository, security SecurityLogger, logger *zap.Logger) *Service {
	return &Service{
		userRepo: userRepo,
		security: security,
		logger:   logger,
	}
}

// Verify re-reads the user scoped to the claimed tenant and returns the
// stored record. A user that exists under a different tenant is a security
// violation: it is logged loudly, recorded in the audit trail, and surfaced
// to the caller as a generic access denial. Any storage fault denies access.
func (s *Service) Verify(ctx context.Context, userID, claimedTenantID int64, requestID string) (*models.User, error) {
	user, err := s.userRepo.GetByIDAndTenant(ctx, userID, claimedTenantID)
	if err == nil {
		return user, nil
	}

	if !errors.Is(err, repositories.ErrNotFound) {
		return nil, services.WrapInternal("membership verification failed", err)
	}

	// Distinguish a deleted user from one claiming the wrong tenant.
	actual, lookupErr := s.userRepo.GetByID(ctx, userID)
	if lookupErr != nil {
		if errors.Is(lookupErr, repositories.ErrNotFound) {
			return nil, services.ErrUserNotFound
		}
		return nil, services.WrapInternal("membership verification failed", lookupErr)
	}

	s.logger.Error("tenant mismatch detected",
		zap.Int64("user_id", userID),
		zap.Int64("claimed_tenant_id", claimedTenantID),
		zap.Int64("actual_tenant_id", actual.TenantID),
		zap.String("request_id", requestID))

	if s.security != nil {
		if auditErr := s.security.LogTenantMismatch(claimedTenantID, actual.TenantID, userID, requestID); auditErr != nil {
			s.logger.Error("failed to audit tenant mismatch", zap.Error(auditErr))
		}
	}

	return nil, services.NewDomainError(services.ErrorTypeTenantMismatch, "access denied", fmt.Errorf("user %d does not belong to tenant %d", userID, claimedTenantID))
}
