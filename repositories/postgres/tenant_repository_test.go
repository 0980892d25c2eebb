package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/workdeck/workdeck-backend/models"
	"github.com/workdeck/workdeck-backend/repositories"
	"go.uber.org/zap"
)

var tenantColumns = []string{"id", "name", "subdomain", "is_active", "created_at", "updated_at"}

func tenantRow(id int64, subdomain string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(tenantColumns).
		AddRow(id, "Acme Corp", subdomain, true, now, now)
}

func TestTenantRepository_Create(t *testing.T) {
	t.Run("creates and assigns id", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewTenantRepository(db, zap.NewNop())

		tenant := &models.Tenant{
			Name:      "Acme Corp",
			Subdomain: "acme",
			IsActive:  true,
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		}

		mock.ExpectQuery("INSERT INTO tenants").
			WithArgs(tenant.Name, tenant.Subdomain, tenant.IsActive, tenant.CreatedAt, tenant.UpdatedAt).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))

		err := repo.Create(context.Background(), tenant)

		require.NoError(t, err)
		assert.Equal(t, int64(7), tenant.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate subdomain", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewTenantRepository(db, zap.NewNop())

		mock.ExpectQuery("INSERT INTO tenants").
			WillReturnError(&pq.Error{Code: "23505", Constraint: "tenants_subdomain_key"})

		err := repo.Create(context.Background(), &models.Tenant{Subdomain: "acme"})

		assert.ErrorIs(t, err, repositories.ErrDuplicate)
		assert.Contains(t, err.Error(), "acme")
	})

	t.Run("other database errors pass through", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewTenantRepository(db, zap.NewNop())

		mock.ExpectQuery("INSERT INTO tenants").
			WillReturnError(errors.New("connection reset"))

		err := repo.Create(context.Background(), &models.Tenant{Subdomain: "acme"})

		require.Error(t, err)
		assert.False(t, errors.Is(err, repositories.ErrDuplicate))
	})
}

func TestTenantRepository_GetByID(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewTenantRepository(db, zap.NewNop())

		mock.ExpectQuery("SELECT (.+) FROM tenants WHERE id = \\$1").
			WithArgs(int64(7)).
			WillReturnRows(tenantRow(7, "acme"))

		tenant, err := repo.GetByID(context.Background(), 7)

		require.NoError(t, err)
		assert.Equal(t, "acme", tenant.Subdomain)
	})

	t.Run("not found", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewTenantRepository(db, zap.NewNop())

		mock.ExpectQuery("SELECT (.+) FROM tenants WHERE id = \\$1").
			WithArgs(int64(404)).
			WillReturnRows(sqlmock.NewRows(tenantColumns))

		tenant, err := repo.GetByID(context.Background(), 404)

		assert.Nil(t, tenant)
		assert.ErrorIs(t, err, repositories.ErrNotFound)
	})
}

func TestTenantRepository_GetBySubdomain(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewTenantRepository(db, zap.NewNop())

		mock.ExpectQuery("SELECT (.+) FROM tenants WHERE subdomain = \\$1").
			WithArgs("acme").
			WillReturnRows(tenantRow(7, "acme"))

		tenant, err := repo.GetBySubdomain(context.Background(), "acme")

		require.NoError(t, err)
		assert.Equal(t, int64(7), tenant.ID)
	})

	t.Run("unknown subdomain", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewTenantRepository(db, zap.NewNop())

		mock.ExpectQuery("SELECT (.+) FROM tenants WHERE subdomain = \\$1").
			WithArgs("ghost").
			WillReturnRows(sqlmock.NewRows(tenantColumns))

		tenant, err := repo.GetBySubdomain(context.Background(), "ghost")

		assert.Nil(t, tenant)
		assert.ErrorIs(t, err, repositories.ErrNotFound)
	})
}
