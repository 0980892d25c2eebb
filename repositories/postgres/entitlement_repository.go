package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/workdeck/workdeck-backend/models"
	"github.com/workdeck/workdeck-backend/repositories"
	"go.uber.org/zap"
)

// EntitlementRepository implements the repositories.EntitlementRepository interface
type EntitlementRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewEntitlementRepository creates a new entitlement repository
func NewEntitlementRepository(db *DB, logger *zap.Logger) repositories.EntitlementRepository {
	return &EntitlementRepository{
		db:     db,
		logger: logger,
	}
}

// GetByTenantAndFeature retrieves a tenant's entitlement for a feature
func (r *EntitlementRepository) GetByTenantAndFeature(ctx context.Context, tenantID, featureID int64) (*models.Entitlement, error) {
	query := `
		SELECT id, tenant_id, feature_id, status, valid_from, valid_until,
		       usage_limit, current_usage, trial_days, custom_price, created_at, updated_at
		FROM tenant_features
		WHERE tenant_id = $1 AND feature_id = $2
	`

	executor := GetExecutor(ctx, r.db)
	ent := &models.Entitlement{}

	err := executor.QueryRowContext(ctx, query, tenantID, featureID).Scan(
		&ent.ID,
		&ent.TenantID,
		&ent.FeatureID,
		&ent.Status,
		&ent.ValidFrom,
		&ent.ValidUntil,
		&ent.UsageLimit,
		&ent.CurrentUsage,
		&ent.TrialDays,
		&ent.CustomPrice,
		&ent.CreatedAt,
		&ent.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("entitlement: %w", repositories.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get entitlement: %w", err)
	}

	return ent, nil
}

// ListByTenant returns every active catalog feature left-joined with the
// tenant's entitlement; features without one carry a nil entitlement
func (r *EntitlementRepository) ListByTenant(ctx context.Context, tenantID int64) ([]models.TenantFeature, error) {
	query := `
		SELECT f.id, f.code, f.name, f.category, f.is_active, f.created_at, f.updated_at,
		       tf.id, tf.tenant_id, tf.feature_id, tf.status, tf.valid_from, tf.valid_until,
		       tf.usage_limit, tf.current_usage, tf.trial_days, tf.custom_price, tf.created_at, tf.updated_at
		FROM features f
		LEFT JOIN tenant_features tf ON tf.feature_id = f.id AND tf.tenant_id = $1
		WHERE f.is_active = true
		ORDER BY f.category, f.code
	`

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tenant features: %w", err)
	}
	defer rows.Close()

	var results []models.TenantFeature
	for rows.Next() {
		var tf models.TenantFeature
		var entID sql.NullInt64
		var entTenantID, entFeatureID sql.NullInt64
		var status sql.NullString
		var validFrom, validUntil, entCreatedAt, entUpdatedAt sql.NullTime
		var usageLimit sql.NullInt64
		var currentUsage, trialDays sql.NullInt64
		var customPrice sql.NullFloat64

		err := rows.Scan(
			&tf.Feature.ID,
			&tf.Feature.Code,
			&tf.Feature.Name,
			&tf.Feature.Category,
			&tf.Feature.IsActive,
			&tf.Feature.CreatedAt,
			&tf.Feature.UpdatedAt,
			&entID,
			&entTenantID,
			&entFeatureID,
			&status,
			&validFrom,
			&validUntil,
			&usageLimit,
			&currentUsage,
			&trialDays,
			&customPrice,
			&entCreatedAt,
			&entUpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tenant feature: %w", err)
		}

		if entID.Valid {
			ent := &models.Entitlement{
				ID:           entID.Int64,
				TenantID:     entTenantID.Int64,
				FeatureID:    entFeatureID.Int64,
				Status:       models.EntitlementStatus(status.String),
				ValidFrom:    validFrom.Time,
				CurrentUsage: int(currentUsage.Int64),
				TrialDays:    int(trialDays.Int64),
				CreatedAt:    entCreatedAt.Time,
				UpdatedAt:    entUpdatedAt.Time,
			}
			if validUntil.Valid {
				t := validUntil.Time
				ent.ValidUntil = &t
			}
			if usageLimit.Valid {
				l := int(usageLimit.Int64)
				ent.UsageLimit = &l
			}
			if customPrice.Valid {
				p := customPrice.Float64
				ent.CustomPrice = &p
			}
			tf.Entitlement = ent
		}

		results = append(results, tf)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tenant feature rows: %w", err)
	}

	return results, nil
}

// Upsert creates or replaces a tenant's entitlement for a feature
func (r *EntitlementRepository) Upsert(ctx context.Context, ent *models.Entitlement) error {
	query := `
		INSERT INTO tenant_features
			(tenant_id, feature_id, status, valid_from, valid_until, usage_limit,
			 current_usage, trial_days, custom_price, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (tenant_id, feature_id) DO UPDATE SET
			status = EXCLUDED.status,
			valid_from = EXCLUDED.valid_from,
			valid_until = EXCLUDED.valid_until,
			usage_limit = EXCLUDED.usage_limit,
			trial_days = EXCLUDED.trial_days,
			custom_price = EXCLUDED.custom_price,
			updated_at = EXCLUDED.updated_at
		RETURNING id
	`

	executor := GetExecutor(ctx, r.db)
	err := executor.QueryRowContext(ctx, query,
		ent.TenantID,
		ent.FeatureID,
		ent.Status,
		ent.ValidFrom,
		ent.ValidUntil,
		ent.UsageLimit,
		ent.CurrentUsage,
		ent.TrialDays,
		ent.CustomPrice,
		ent.CreatedAt,
		ent.UpdatedAt,
	).Scan(&ent.ID)

	if err != nil {
		return fmt.Errorf("failed to upsert entitlement: %w", err)
	}

	r.logger.Debug("entitlement upserted",
		zap.Int64("tenant_id", ent.TenantID),
		zap.Int64("feature_id", ent.FeatureID),
		zap.String("status", string(ent.Status)))
	return nil
}

// SetStatus updates an entitlement's status
func (r *EntitlementRepository) SetStatus(ctx context.Context, tenantID, featureID int64, status models.EntitlementStatus) error {
	query := `
		UPDATE tenant_features
		SET status = $3,
		    updated_at = $4
		WHERE tenant_id = $1 AND feature_id = $2
	`

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query, tenantID, featureID, status, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update entitlement status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("entitlement: %w", repositories.ErrNotFound)
	}

	return nil
}

// IncrementUsage atomically adds one to current_usage in the database.
// The addition happens in SQL so concurrent recorders never lose updates.
func (r *EntitlementRepository) IncrementUsage(ctx context.Context, tenantID, featureID int64) error {
	query := `
		UPDATE tenant_features
		SET current_usage = current_usage + 1,
		    updated_at = $3
		WHERE tenant_id = $1 AND feature_id = $2
	`

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query, tenantID, featureID, time.Now())
	if err != nil {
		return fmt.Errorf("failed to increment usage: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("entitlement: %w", repositories.ErrNotFound)
	}

	return nil
}

// WithTx returns a new repository instance bound to the transaction
func (r *EntitlementRepository) WithTx(tx repositories.Transaction) repositories.EntitlementRepository {
	return &EntitlementRepository{
		db:     r.db,
		logger: r.logger,
	}
}
