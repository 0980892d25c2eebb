package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/workdeck/workdeck-backend/models"
	"github.com/workdeck/workdeck-backend/repositories"
	"go.uber.org/zap"
)

// FeatureRepository implements the repositories.FeatureRepository interface
type FeatureRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewFeatureRepository creates a new feature repository
func NewFeatureRepository(db *DB, logger *zap.Logger) repositories.FeatureRepository {
	return &FeatureRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new catalog feature
func (r *FeatureRepository) Create(ctx context.Context, feature *models.Feature) error {
	query := `
		INSERT INTO features (code, name, category, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	executor := GetExecutor(ctx, r.db)
	err := executor.QueryRowContext(ctx, query,
		feature.Code,
		feature.Name,
		feature.Category,
		feature.IsActive,
		feature.CreatedAt,
		feature.UpdatedAt,
	).Scan(&feature.ID)

	if err != nil {
		return fmt.Errorf("failed to create feature: %w", err)
	}

	r.logger.Debug("feature created", zap.Int64("id", feature.ID), zap.String("code", feature.Code))
	return nil
}

// GetByID retrieves a feature by ID
func (r *FeatureRepository) GetByID(ctx context.Context, id int64) (*models.Feature, error) {
	query := `
		SELECT id, code, name, category, is_active, created_at, updated_at
		FROM features
		WHERE id = $1
	`

	executor := GetExecutor(ctx, r.db)
	return r.scanFeature(executor.QueryRowContext(ctx, query, id))
}

// GetByCode retrieves a feature by its unique code
func (r *FeatureRepository) GetByCode(ctx context.Context, code string) (*models.Feature, error) {
	query := `
		SELECT id, code, name, category, is_active, created_at, updated_at
		FROM features
		WHERE code = $1
	`

	executor := GetExecutor(ctx, r.db)
	return r.scanFeature(executor.QueryRowContext(ctx, query, code))
}

// ListActive retrieves all active catalog features
func (r *FeatureRepository) ListActive(ctx context.Context) ([]*models.Feature, error) {
	query := `
		SELECT id, code, name, category, is_active, created_at, updated_at
		FROM features
		WHERE is_active = true
		ORDER BY category, code
	`

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query features: %w", err)
	}
	defer rows.Close()

	var features []*models.Feature
	for rows.Next() {
		feature := &models.Feature{}
		err := rows.Scan(
			&feature.ID,
			&feature.Code,
			&feature.Name,
			&feature.Category,
			&feature.IsActive,
			&feature.CreatedAt,
			&feature.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feature: %w", err)
		}
		features = append(features, feature)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating feature rows: %w", err)
	}

	return features, nil
}

// WithTx returns a new repository instance bound to the transaction
func (r *FeatureRepository) WithTx(tx repositories.Transaction) repositories.FeatureRepository {
	return &FeatureRepository{
		db:     r.db,
		logger: r.logger,
	}
}

func (r *FeatureRepository) scanFeature(row *sql.Row) (*models.Feature, error) {
	feature := &models.Feature{}
	err := row.Scan(
		&feature.ID,
		&feature.Code,
		&feature.Name,
		&feature.Category,
		&feature.IsActive,
		&feature.CreatedAt,
		&feature.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("feature: %w", repositories.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get feature: %w", err)
	}

	return feature, nil
}
