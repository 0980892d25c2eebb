package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/workdeck/workdeck-backend/models"
	"github.com/workdeck/workdeck-backend/repositories"
	"go.uber.org/zap"
)

// UsageLogRepository implements the repositories.UsageLogRepository interface
type UsageLogRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewUsageLogRepository creates a new usage log repository
func NewUsageLogRepository(db *DB, logger *zap.Logger) repositories.UsageLogRepository {
	return &UsageLogRepository{
		db:     db,
		logger: logger,
	}
}

// Insert appends a usage log entry
func (r *UsageLogRepository) Insert(ctx context.Context, entry *models.UsageLogEntry) error {
	query := `
		INSERT INTO feature_usage_logs (id, tenant_id, feature_id, user_id, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		entry.ID,
		entry.TenantID,
		entry.FeatureID,
		entry.UserID,
		entry.Metadata,
		entry.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to insert usage log: %w", err)
	}

	return nil
}

// DailySeries aggregates usage per day over a date range
func (r *UsageLogRepository) DailySeries(ctx context.Context, tenantID, featureID int64, start, end time.Time) ([]models.UsageBucket, error) {
	query := `
		SELECT DATE_TRUNC('day', created_at) AS day, COUNT(*) AS count
		FROM feature_usage_logs
		WHERE tenant_id = $1 AND feature_id = $2
		  AND created_at >= $3 AND created_at < $4
		GROUP BY day
		ORDER BY day
	`

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, tenantID, featureID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage series: %w", err)
	}
	defer rows.Close()

	var buckets []models.UsageBucket
	for rows.Next() {
		var b models.UsageBucket
		if err := rows.Scan(&b.Date, &b.Count); err != nil {
			return nil, fmt.Errorf("failed to scan usage bucket: %w", err)
		}
		buckets = append(buckets, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating usage rows: %w", err)
	}

	return buckets, nil
}

// WithTx returns a new repository instance bound to the transaction
func (r *UsageLogRepository) WithTx(tx repositories.Transaction) repositories.UsageLogRepository {
	return &UsageLogRepository{
		db:     r.db,
		logger: r.logger,
	}
}
