package roleswitch

import (
	"context"
	"errors"
	"time"

	"github.com/workdeck/workdeck-backend/auth"
	"github.com/workdeck/workdeck-backend/models"
	"github.com/workdeck/workdeck-backend/repositories"
	"github.com/workdeck/workdeck-backend/services"
	"go.uber.org/zap"
)

// MembershipVerifier re-validates that a user belongs to the claimed tenant
type MembershipVerifier interface {
	Verify(ctx context.Context, userID, claimedTenantID int64, requestID string) (*models.User, error)
}

// TokenIssuer signs fresh session credentials
type TokenIssuer interface {
	Issue(user *models.User, activeRole models.Role, isRoleSwitched bool) (string, time.Time, error)
}

// AuditWriter records role switch entries, joining any transaction in ctx
type AuditWriter interface {
	LogRoleSwitch(ctx context.Context, user *models.User, before, after models.Role, requestID, ipAddress, userAgent string) error
}

// RequestMeta carries request metadata into audit entries
type RequestMeta struct {
	RequestID string
	IPAddress string
	UserAgent string
}

// Result is a successful role switch outcome
type Result struct {
	Token      string      `json:"token"`
	ExpiresAt  time.Time   `json:"expires_at"`
	ActiveRole models.Role `json:"active_role"`
	Switched   bool        `json:"is_role_switched"`
	NoOp       bool        `json:"-"`
}

// Service coordinates role transitions. Each switch re-verifies tenant
// membership, checks the transition table, applies side effects and the
// audit entry in one transaction, and only then issues a new credential.
type Service struct {
	membership MembershipVerifier
	userRepo   repositories.UserRepository
	txManager  repositories.TransactionManager
	audit      AuditWriter
	tokens     TokenIssuer
	logger     *zap.Logger
}

// NewService creates a new role switch service
func NewService(
	membership MembershipVerifier,
	userRepo repositories.UserRepository,
	txManager repositories.TransactionManager,
	audit AuditWriter,
	tokens TokenIssuer,
	logger *zap.Logger,
) *Service {
	return &Service{
		membership: membership,
		userRepo:   userRepo,
		txManager:  txManager,
		audit:      audit,
		tokens:     tokens,
		logger:     logger,
	}
}

// SwitchToEmployee descends the caller to the employee role
func (s *Service) SwitchToEmployee(ctx context.Context, claims *auth.Claims, meta RequestMeta) (*Result, error) {
	return s.switchTo(ctx, claims, models.RoleEmployee, meta)
}

// SwitchToOriginal ascends the caller back to their original role
func (s *Service) SwitchToOriginal(ctx context.Context, claims *auth.Claims, meta RequestMeta) (*Result, error) {
	return s.switchTo(ctx, claims, claims.Role, meta)
}

// SwitchRootToAdmin descends a root caller one step to admin
func (s *Service) SwitchRootToAdmin(ctx context.Context, claims *auth.Claims, meta RequestMeta) (*Result, error) {
	if claims.Role != models.RoleRoot {
		return nil, services.ErrInsufficientPermissions
	}
	return s.switchTo(ctx, claims, models.RoleAdmin, meta)
}

func (s *Service) switchTo(ctx context.Context, claims *auth.Claims, target models.Role, meta RequestMeta) (*Result, error) {
	user, err := s.membership.Verify(ctx, claims.UserID, claims.TenantID, meta.RequestID)
	if err != nil {
		return nil, err
	}

	active := claims.ActiveRole
	if active == "" {
		active = user.Role
	}

	// Repeating the current state is a benign no-op: hand back a fresh
	// credential, change nothing, write nothing.
	if active == target {
		token, expiresAt, err := s.tokens.Issue(user, active, active != user.Role)
		if err != nil {
			return nil, services.WrapInternal("failed to issue token", err)
		}
		return &Result{
			Token:      token,
			ExpiresAt:  expiresAt,
			ActiveRole: active,
			Switched:   active != user.Role,
			NoOp:       true,
		}, nil
	}

	// The stored role is authoritative for the permission decision; the
	// claimed active role only tells us where the user is coming from.
	next, allowed := NextRole(user.Role, active, target)
	if !allowed {
		s.logger.Warn("role transition denied",
			zap.Int64("user_id", user.ID),
			zap.String("original_role", string(user.Role)),
			zap.String("active_role", string(active)),
			zap.String("target_role", string(target)))
		return nil, services.NewDomainError(services.ErrorTypeForbidden, "insufficient permissions", nil).
			WithDetail("target_role", string(target))
	}

	err = s.txManager.InTransaction(ctx, func(txCtx context.Context, tx repositories.Transaction) error {
		if next == models.RoleEmployee && !user.HasPosition() {
			// Acting as an employee requires a position; default-fill once.
			if err := s.userRepo.UpdatePosition(txCtx, user.ID, models.DefaultEmployeePosition); err != nil {
				return services.WrapInternal("failed to assign default position", err)
			}
			position := models.DefaultEmployeePosition
			user.Position = &position
		}

		if err := s.audit.LogRoleSwitch(txCtx, user, active, next, meta.RequestID, meta.IPAddress, meta.UserAgent); err != nil {
			return services.WrapInternal("failed to write audit entry", err)
		}

		return nil
	})
	if err != nil {
		var domainErr *services.DomainError
		if errors.As(err, &domainErr) {
			return nil, err
		}
		return nil, services.WrapInternal("role switch transaction failed", err)
	}

	switched := next != user.Role
	token, expiresAt, err := s.tokens.Issue(user, next, switched)
	if err != nil {
		return nil, services.WrapInternal("failed to issue token", err)
	}

	s.logger.Info("role switched",
		zap.Int64("user_id", user.ID),
		zap.Int64("tenant_id", user.TenantID),
		zap.String("from_role", string(active)),
		zap.String("to_role", string(next)),
		zap.String("request_id", meta.RequestID))

	return &Result{
		Token:      token,
		ExpiresAt:  expiresAt,
		ActiveRole: next,
		Switched:   switched,
	}, nil
}
