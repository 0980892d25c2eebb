package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/workdeck/workdeck-backend/models"
)

// ErrNotFound is wrapped by repositories when a record does not exist,
// so callers can distinguish absence from storage faults with errors.Is.
var ErrNotFound = errors.New("record not found")

// ErrDuplicate is wrapped when an insert violates a uniqueness constraint.
var ErrDuplicate = errors.New("duplicate record")

// TransactionManager manages database transactions
type TransactionManager interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) (Transaction, error)

	// InTransaction executes a function within a transaction
	// Automatically commits if function succeeds, rolls back on error
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error
}

// Transaction represents a database transaction
type Transaction interface {
	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Context returns the transaction context
	Context() context.Context
}

// UserRepository handles user data operations
type UserRepository interface {
	// Create creates a new user
	Create(ctx context.Context, user *models.User) error

	// GetByID retrieves a user by ID regardless of tenant
	GetByID(ctx context.Context, id int64) (*models.User, error)

	// GetByIDAndTenant retrieves a user by ID scoped to a tenant
	GetByIDAndTenant(ctx context.Context, id, tenantID int64) (*models.User, error)

	// GetByEmail retrieves a user by email
	GetByEmail(ctx context.Context, email string) (*models.User, error)

	// ListByTenant retrieves users belonging to a tenant
	ListByTenant(ctx context.Context, tenantID int64, limit, offset int) ([]*models.User, error)

	// UpdatePosition sets the user's position attribute
	UpdatePosition(ctx context.Context, id int64, position string) error

	// WithTx returns a new repository instance bound to the transaction
	WithTx(tx Transaction) UserRepository
}

// TenantRepository handles tenant data operations
type TenantRepository interface {
	// Create creates a new tenant
	Create(ctx context.Context, tenant *models.Tenant) error

	// GetByID retrieves a tenant by ID
	GetByID(ctx context.Context, id int64) (*models.Tenant, error)

	// GetBySubdomain retrieves a tenant by its subdomain
	GetBySubdomain(ctx context.Context, subdomain string) (*models.Tenant, error)

	// WithTx returns a new repository instance bound to the transaction
	WithTx(tx Transaction) TenantRepository
}

// FeatureRepository handles the global feature catalog
type FeatureRepository interface {
	// Create creates a new catalog feature
	Create(ctx context.Context, feature *models.Feature) error

	// GetByID retrieves a feature by ID
	GetByID(ctx context.Context, id int64) (*models.Feature, error)

	// GetByCode retrieves a feature by its unique code
	GetByCode(ctx context.Context, code string) (*models.Feature, error)

	// ListActive retrieves all active catalog features
	ListActive(ctx context.Context) ([]*models.Feature, error)

	// WithTx returns a new repository instance bound to the transaction
	WithTx(tx Transaction) FeatureRepository
}

// EntitlementRepository handles per-tenant feature entitlements
type EntitlementRepository interface {
	// GetByTenantAndFeature retrieves a tenant's entitlement for a feature
	GetByTenantAndFeature(ctx context.Context, tenantID, featureID int64) (*models.Entitlement, error)

	// ListByTenant returns every active catalog feature left-joined with the
	// tenant's entitlement; features without one carry a nil entitlement
	ListByTenant(ctx context.Context, tenantID int64) ([]models.TenantFeature, error)

	// Upsert creates or replaces a tenant's entitlement for a feature
	Upsert(ctx context.Context, ent *models.Entitlement) error

	// SetStatus updates an entitlement's status
	SetStatus(ctx context.Context, tenantID, featureID int64, status models.EntitlementStatus) error

	// IncrementUsage atomically adds one to current_usage in the database
	IncrementUsage(ctx context.Context, tenantID, featureID int64) error

	// WithTx returns a new repository instance bound to the transaction
	WithTx(tx Transaction) EntitlementRepository
}

// UsageLogRepository handles feature usage records
type UsageLogRepository interface {
	// Insert appends a usage log entry
	Insert(ctx context.Context, entry *models.UsageLogEntry) error

	// DailySeries aggregates usage per day over a date range
	DailySeries(ctx context.Context, tenantID, featureID int64, start, end time.Time) ([]models.UsageBucket, error)

	// WithTx returns a new repository instance bound to the transaction
	WithTx(tx Transaction) UsageLogRepository
}

// AuditRepository handles the append-only audit log
type AuditRepository interface {
	// Insert appends an audit log entry
	Insert(ctx context.Context, log *models.AuditLog) error

	// AsyncInsert appends an audit log entry without blocking the caller
	AsyncInsert(log *models.AuditLog)

	// GetByID retrieves an audit log entry by ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.AuditLog, error)

	// GetByTenantID retrieves audit log entries for a tenant
	GetByTenantID(ctx context.Context, tenantID int64, limit, offset int) ([]*models.AuditLog, error)

	// GetByUserID retrieves audit log entries for a user
	GetByUserID(ctx context.Context, userID int64, limit, offset int) ([]*models.AuditLog, error)

	// GetByDateRange retrieves audit log entries within a time window
	GetByDateRange(ctx context.Context, tenantID int64, start, end time.Time, limit, offset int) ([]*models.AuditLog, error)

	// WithTx returns a new repository instance bound to the transaction
	WithTx(tx Transaction) AuditRepository
}

// Repositories aggregates all repository interfaces
type Repositories struct {
	Users        UserRepository
	Tenants      TenantRepository
	Features     FeatureRepository
	Entitlements EntitlementRepository
	UsageLogs    UsageLogRepository
	AuditLogs    AuditRepository
	TxManager    TransactionManager
}
