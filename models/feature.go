package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Feature represents an entry in the global feature catalog
type Feature struct {
	ID        int64     `json:"id" db:"id"`
	Code      string    `json:"code" db:"code"`
	Name      string    `json:"name" db:"name"`
	Category  string    `json:"category" db:"category"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the Feature model
func (Feature) TableName() string {
	return "features"
}

// EntitlementStatus represents the lifecycle state of a tenant's entitlement
type EntitlementStatus string

const (
	EntitlementActive   EntitlementStatus = "active"
	EntitlementTrial    EntitlementStatus = "trial"
	EntitlementDisabled EntitlementStatus = "disabled"
)

// Entitlement links a tenant to a catalog feature with commercial terms
type Entitlement struct {
	ID           int64             `json:"id" db:"id"`
	TenantID     int64             `json:"tenant_id" db:"tenant_id"`
	FeatureID    int64             `json:"feature_id" db:"feature_id"`
	Status       EntitlementStatus `json:"status" db:"status"`
	ValidFrom    time.Time         `json:"valid_from" db:"valid_from"`
	ValidUntil   *time.Time        `json:"valid_until,omitempty" db:"valid_until"`
	UsageLimit   *int              `json:"usage_limit,omitempty" db:"usage_limit"`
	CurrentUsage int               `json:"current_usage" db:"current_usage"`
	TrialDays    int               `json:"trial_days" db:"trial_days"`
	CustomPrice  *float64          `json:"custom_price,omitempty" db:"custom_price"`
	CreatedAt    time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the Entitlement model
func (Entitlement) TableName() string {
	return "tenant_features"
}

// TenantFeature is a catalog row joined with a tenant's entitlement, if any
type TenantFeature struct {
	Feature     Feature      `json:"feature"`
	Entitlement *Entitlement `json:"entitlement,omitempty"`
	IsAvailable bool         `json:"is_available"`
}

// UsageLogEntry records a single billable use of a feature by a tenant
type UsageLogEntry struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	TenantID  int64           `json:"tenant_id" db:"tenant_id"`
	FeatureID int64           `json:"feature_id" db:"feature_id"`
	UserID    *int64          `json:"user_id,omitempty" db:"user_id"`
	Metadata  json.RawMessage `json:"metadata,omitempty" db:"metadata"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

// TableName returns the table name for the UsageLogEntry model
func (UsageLogEntry) TableName() string {
	return "feature_usage_logs"
}

// NewUsageLogEntry creates a usage log entry for a tenant and feature
func NewUsageLogEntry(tenantID, featureID int64) *UsageLogEntry {
	return &UsageLogEntry{
		ID:        uuid.New(),
		TenantID:  tenantID,
		FeatureID: featureID,
		CreatedAt: time.Now(),
	}
}

// WithUser attaches the acting user
func (e *UsageLogEntry) WithUser(userID int64) *UsageLogEntry {
	e.UserID = &userID
	return e
}

// WithMetadata attaches arbitrary metadata, silently dropped if unmarshalable
func (e *UsageLogEntry) WithMetadata(metadata interface{}) *UsageLogEntry {
	if data, err := json.Marshal(metadata); err == nil {
		e.Metadata = data
	}
	return e
}

// UsageBucket is one day of aggregated usage for a tenant feature
type UsageBucket struct {
	Date  time.Time `json:"date" db:"date"`
	Count int       `json:"count" db:"count"`
}
