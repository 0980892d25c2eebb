package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/workdeck/workdeck-backend/auth"
	"github.com/workdeck/workdeck-backend/middleware"
	"github.com/workdeck/workdeck-backend/models"
	"github.com/workdeck/workdeck-backend/services/roleswitch"
	"github.com/workdeck/workdeck-backend/utils"
	"go.uber.org/zap"
)

// RoleSwitchResponse is the body returned for a successful role switch
type RoleSwitchResponse struct {
	Token          string      `json:"token"`
	ExpiresAt      time.Time   `json:"expires_at"`
	ActiveRole     models.Role `json:"active_role"`
	OriginalRole   models.Role `json:"original_role"`
	IsRoleSwitched bool        `json:"is_role_switched"`
	Message        string      `json:"message,omitempty"`
}

// RoleSwitchService defines the interface for role transitions
type RoleSwitchService interface {
	// SwitchToEmployee descends the caller to the employee role
	SwitchToEmployee(ctx context.Context, claims *auth.Claims, meta roleswitch.RequestMeta) (*roleswitch.Result, error)

	// SwitchToOriginal ascends the caller back to their original role
	SwitchToOriginal(ctx context.Context, claims *auth.Claims, meta roleswitch.RequestMeta) (*roleswitch.Result, error)

	// SwitchRootToAdmin descends a root caller one step to admin
	SwitchRootToAdmin(ctx context.Context, claims *auth.Claims, meta roleswitch.RequestMeta) (*roleswitch.Result, error)
}

// RoleSwitchHandler handles role switch HTTP endpoints
type RoleSwitchHandler struct {
	service RoleSwitchService
	logger  *zap.Logger
}

// NewRoleSwitchHandler creates a new role switch handler
func NewRoleSwitchHandler(service RoleSwitchService, logger *zap.Logger) *RoleSwitchHandler {
	return &RoleSwitchHandler{
		service: service,
		logger:  logger,
	}
}

// SwitchToEmployee handles POST /role-switch/to-employee
func (h *RoleSwitchHandler) SwitchToEmployee(w http.ResponseWriter, r *http.Request) {
	h.handleSwitch(w, r, h.service.SwitchToEmployee)
}

// SwitchToOriginal handles POST /role-switch/to-original
func (h *RoleSwitchHandler) SwitchToOriginal(w http.ResponseWriter, r *http.Request) {
	h.handleSwitch(w, r, h.service.SwitchToOriginal)
}

// SwitchRootToAdmin handles POST /role-switch/root-to-admin
func (h *RoleSwitchHandler) SwitchRootToAdmin(w http.ResponseWriter, r *http.Request) {
	h.handleSwitch(w, r, h.service.SwitchRootToAdmin)
}

type switchFunc func(ctx context.Context, claims *auth.Claims, meta roleswitch.RequestMeta) (*roleswitch.Result, error)

func (h *RoleSwitchHandler) handleSwitch(w http.ResponseWriter, r *http.Request, fn switchFunc) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	claims := middleware.GetClaimsFromContext(ctx)
	if claims == nil {
		h.logger.Error("claims not found in context", zap.String("request_id", requestID))
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	meta := roleswitch.RequestMeta{
		RequestID: requestID,
		IPAddress: r.RemoteAddr,
		UserAgent: r.UserAgent(),
	}

	result, err := fn(ctx, claims, meta)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	resp := RoleSwitchResponse{
		Token:          result.Token,
		ExpiresAt:      result.ExpiresAt,
		ActiveRole:     result.ActiveRole,
		OriginalRole:   claims.Role,
		IsRoleSwitched: result.Switched,
	}
	if result.NoOp {
		resp.Message = "already in requested role"
	}

	_ = utils.WriteOK(w, resp)
}
