package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of action being audited
type AuditAction string

const (
	AuditActionRoleSwitch         AuditAction = "role_switch"
	AuditActionFeatureActivated   AuditAction = "feature_activated"
	AuditActionFeatureDeactivated AuditAction = "feature_deactivated"
	AuditActionTenantMismatch     AuditAction = "tenant_mismatch"
)

// AuditLog represents an append-only audit trail entry
type AuditLog struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	TenantID     int64           `json:"tenant_id" db:"tenant_id"`
	UserID       *int64          `json:"user_id,omitempty" db:"user_id"`
	Action       AuditAction     `json:"action" db:"action"`
	ResourceType string          `json:"resource_type" db:"resource_type"`
	ResourceID   *string         `json:"resource_id,omitempty" db:"resource_id"`
	Details      json.RawMessage `json:"details,omitempty" db:"details"`
	IPAddress    string          `json:"ip_address" db:"ip_address"`
	UserAgent    string          `json:"user_agent" db:"user_agent"`
	RequestID    string          `json:"request_id" db:"request_id"`
	Timestamp    time.Time       `json:"timestamp" db:"timestamp"`

	// Role-switch fields
	BeforeRole      *Role `json:"before_role,omitempty" db:"before_role"`
	AfterRole       *Role `json:"after_role,omitempty" db:"after_role"`
	WasRoleSwitched *bool `json:"was_role_switched,omitempty" db:"was_role_switched"`
}

// TableName returns the table name for the AuditLog model
func (AuditLog) TableName() string {
	return "audit_logs"
}

// NewAuditLog creates a new AuditLog instance
func NewAuditLog(tenantID int64, action AuditAction, resourceType string) *AuditLog {
	return &AuditLog{
		ID:           uuid.New(),
		TenantID:     tenantID,
		Action:       action,
		ResourceType: resourceType,
		Timestamp:    time.Now(),
	}
}

// WithUser sets the acting user
func (a *AuditLog) WithUser(userID int64) *AuditLog {
	a.UserID = &userID
	return a
}

// WithResource sets the resource identifier
func (a *AuditLog) WithResource(resourceID string) *AuditLog {
	a.ResourceID = &resourceID
	return a
}

// WithDetails sets the details payload
func (a *AuditLog) WithDetails(details interface{}) *AuditLog {
	if data, err := json.Marshal(details); err == nil {
		a.Details = data
	}
	return a
}

// WithRequest sets request metadata
func (a *AuditLog) WithRequest(requestID, ipAddress, userAgent string) *AuditLog {
	a.RequestID = requestID
	a.IPAddress = ipAddress
	a.UserAgent = userAgent
	return a
}

// WithRoleTransition sets before/after roles for a role switch entry
func (a *AuditLog) WithRoleTransition(before, after Role, switched bool) *AuditLog {
	a.BeforeRole = &before
	a.AfterRole = &after
	a.WasRoleSwitched = &switched
	return a
}
