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

// UserRepository implements the repositories.UserRepository interface
type UserRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *DB, logger *zap.Logger) repositories.UserRepository {
	return &UserRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (tenant_id, username, email, role, position, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	executor := GetExecutor(ctx, r.db)
	err := executor.QueryRowContext(ctx, query,
		user.TenantID,
		user.Username,
		user.Email,
		user.Role,
		user.Position,
		user.CreatedAt,
		user.UpdatedAt,
	).Scan(&user.ID)

	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	r.logger.Debug("user created", zap.Int64("id", user.ID), zap.String("email", user.Email))
	return nil
}

// GetByID retrieves a user by ID regardless of tenant
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	query := `
		SELECT id, tenant_id, username, email, role, position, created_at, updated_at
		FROM users
		WHERE id = $1
	`

	executor := GetExecutor(ctx, r.db)
	return r.scanUser(executor.QueryRowContext(ctx, query, id))
}

// GetByIDAndTenant retrieves a user by ID scoped to a tenant
func (r *UserRepository) GetByIDAndTenant(ctx context.Context, id, tenantID int64) (*models.User, error) {
	query := `
		SELECT id, tenant_id, username, email, role, position, created_at, updated_at
		FROM users
		WHERE id = $1 AND tenant_id = $2
	`

	executor := GetExecutor(ctx, r.db)
	return r.scanUser(executor.QueryRowContext(ctx, query, id, tenantID))
}

// GetByEmail retrieves a user by email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `
		SELECT id, tenant_id, username, email, role, position, created_at, updated_at
		FROM users
		WHERE email = $1
	`

	executor := GetExecutor(ctx, r.db)
	return r.scanUser(executor.QueryRowContext(ctx, query, email))
}

// ListByTenant retrieves users belonging to a tenant
func (r *UserRepository) ListByTenant(ctx context.Context, tenantID int64, limit, offset int) ([]*models.User, error) {
	query := `
		SELECT id, tenant_id, username, email, role, position, created_at, updated_at
		FROM users
		WHERE tenant_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, tenantID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user := &models.User{}
		err := rows.Scan(
			&user.ID,
			&user.TenantID,
			&user.Username,
			&user.Email,
			&user.Role,
			&user.Position,
			&user.CreatedAt,
			&user.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating user rows: %w", err)
	}

	return users, nil
}

// UpdatePosition sets the user's position attribute
func (r *UserRepository) UpdatePosition(ctx context.Context, id int64, position string) error {
	query := `
		UPDATE users
		SET position = $2,
		    updated_at = $3
		WHERE id = $1
	`

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query, id, position, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update user position: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("user %d: %w", id, repositories.ErrNotFound)
	}

	r.logger.Debug("user position updated", zap.Int64("id", id), zap.String("position", position))
	return nil
}

// WithTx returns a new repository instance bound to the transaction
func (r *UserRepository) WithTx(tx repositories.Transaction) repositories.UserRepository {
	return &UserRepository{
		db:     r.db,
		logger: r.logger,
	}
}

func (r *UserRepository) scanUser(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID,
		&user.TenantID,
		&user.Username,
		&user.Email,
		&user.Role,
		&user.Position,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("user: %w", repositories.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}
