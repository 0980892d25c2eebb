package roleswitch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/workdeck/workdeck-backend/auth"
	"github.com/workdeck/workdeck-backend/models"
	"github.com/workdeck/workdeck-backend/repositories"
	"github.com/workdeck/workdeck-backend/services"
	"go.uber.org/zap"
)

// MockMembership verifies tenant membership
type MockMembership struct {
	mock.Mock
}

func (m *MockMembership) Verify(ctx context.Context, userID, claimedTenantID int64, requestID string) (*models.User, error) {
	args := m.Called(ctx, userID, claimedTenantID, requestID)
	if user := args.Get(0); user != nil {
		return user.(*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockUserRepository implements repositories.UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	args := m.Called(ctx, id)
	if user := args.Get(0); user != nil {
		return user.(*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserRepository) GetByIDAndTenant(ctx context.Context, id, tenantID int64) (*models.User, error) {
	args := m.Called(ctx, id, tenantID)
	if user := args.Get(0); user != nil {
		return user.(*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if user := args.Get(0); user != nil {
		return user.(*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserRepository) ListByTenant(ctx context.Context, tenantID int64, limit, offset int) ([]*models.User, error) {
	args := m.Called(ctx, tenantID, limit, offset)
	if users := args.Get(0); users != nil {
		return users.([]*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserRepository) UpdatePosition(ctx context.Context, id int64, position string) error {
	return m.Called(ctx, id, position).Error(0)
}

func (m *MockUserRepository) WithTx(tx repositories.Transaction) repositories.UserRepository {
	m.Called(tx)
	return m
}

// MockTxManager runs the function inline without a real transaction
type MockTxManager struct {
	beginErr error
}

func (m *MockTxManager) Begin(ctx context.Context) (repositories.Transaction, error) {
	return nil, errors.New("not used")
}

func (m *MockTxManager) InTransaction(ctx context.Context, fn func(ctx context.Context, tx repositories.Transaction) error) error {
	if m.beginErr != nil {
		return m.beginErr
	}
	return fn(ctx, nil)
}

// MockAuditWriter records role switch audit calls
type MockAuditWriter struct {
	mock.Mock
}

func (m *MockAuditWriter) LogRoleSwitch(ctx context.Context, user *models.User, before, after models.Role, requestID, ipAddress, userAgent string) error {
	return m.Called(ctx, user, before, after, requestID, ipAddress, userAgent).Error(0)
}

// MockTokenIssuer issues fake tokens
type MockTokenIssuer struct {
	mock.Mock
}

func (m *MockTokenIssuer) Issue(user *models.User, activeRole models.Role, isRoleSwitched bool) (string, time.Time, error) {
	args := m.Called(user, activeRole, isRoleSwitched)
	return args.String(0), args.Get(1).(time.Time), args.Error(2)
}

type fixture struct {
	membership *MockMembership
	users      *MockUserRepository
	tx         *MockTxManager
	audit      *MockAuditWriter
	tokens     *MockTokenIssuer
	service    *Service
}

func newFixture() *fixture {
	f := &fixture{
		membership: new(MockMembership),
		users:      new(MockUserRepository),
		tx:         &MockTxManager{},
		audit:      new(MockAuditWriter),
		tokens:     new(MockTokenIssuer),
	}
	f.service = NewService(f.membership, f.users, f.tx, f.audit, f.tokens, zap.NewNop())
	return f
}

func adminClaims() *auth.Claims {
	return &auth.Claims{
		UserID:     42,
		TenantID:   7,
		Role:       models.RoleAdmin,
		ActiveRole: models.RoleAdmin,
	}
}

func adminUser() *models.User {
	pos := "Engineer"
	return &models.User{
		ID:       42,
		TenantID: 7,
		Username: "alice",
		Role:     models.RoleAdmin,
		Position: &pos,
	}
}

func TestSwitchToEmployee(t *testing.T) {
	expiry := time.Now().Add(24 * time.Hour)

	t.Run("admin descends to employee", func(t *testing.T) {
		f := newFixture()
		user := adminUser()
		f.membership.On("Verify", mock.Anything, int64(42), int64(7), "req-1").Return(user, nil)
		f.audit.On("LogRoleSwitch", mock.Anything, user, models.RoleAdmin, models.RoleEmployee, "req-1", "10.0.0.1", "agent").Return(nil)
		f.tokens.On("Issue", user, models.RoleEmployee, true).Return("new-token", expiry, nil)

		result, err := f.service.SwitchToEmployee(context.Background(), adminClaims(), RequestMeta{
			RequestID: "req-1", IPAddress: "10.0.0.1", UserAgent: "agent",
		})
		require.NoError(t, err)

		assert.Equal(t, "new-token", result.Token)
		assert.Equal(t, models.RoleEmployee, result.ActiveRole)
		assert.True(t, result.Switched)
		assert.False(t, result.NoOp)

		f.audit.AssertExpectations(t)
		f.tokens.AssertExpectations(t)
		f.users.AssertNotCalled(t, "UpdatePosition", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("default position filled on first descend", func(t *testing.T) {
		f := newFixture()
		user := adminUser()
		user.Position = nil
		f.membership.On("Verify", mock.Anything, int64(42), int64(7), "").Return(user, nil)
		f.users.On("UpdatePosition", mock.Anything, int64(42), models.DefaultEmployeePosition).Return(nil)
		f.audit.On("LogRoleSwitch", mock.Anything, user, models.RoleAdmin, models.RoleEmployee, "", "", "").Return(nil)
		f.tokens.On("Issue", user, models.RoleEmployee, true).Return("new-token", expiry, nil)

		result, err := f.service.SwitchToEmployee(context.Background(), adminClaims(), RequestMeta{})
		require.NoError(t, err)
		assert.True(t, result.Switched)

		f.users.AssertExpectations(t)
		require.NotNil(t, user.Position)
		assert.Equal(t, models.DefaultEmployeePosition, *user.Position)
	})

	t.Run("employee cannot switch", func(t *testing.T) {
		f := newFixture()
		claims := &auth.Claims{UserID: 42, TenantID: 7, Role: models.RoleEmployee, ActiveRole: models.RoleEmployee}

		_, err := f.service.SwitchRootToAdmin(context.Background(), claims, RequestMeta{})
		assert.True(t, services.IsForbiddenError(err))
		f.tokens.AssertNotCalled(t, "Issue", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("repeat switch is a benign no-op", func(t *testing.T) {
		f := newFixture()
		user := adminUser()
		f.membership.On("Verify", mock.Anything, int64(42), int64(7), "").Return(user, nil)
		f.tokens.On("Issue", user, models.RoleEmployee, true).Return("fresh-token", expiry, nil)

		claims := adminClaims()
		claims.ActiveRole = models.RoleEmployee
		claims.IsRoleSwitched = true

		result, err := f.service.SwitchToEmployee(context.Background(), claims, RequestMeta{})
		require.NoError(t, err)

		assert.True(t, result.NoOp)
		assert.True(t, result.Switched)
		assert.Equal(t, "fresh-token", result.Token)
		f.audit.AssertNotCalled(t, "LogRoleSwitch", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("membership failure blocks the switch", func(t *testing.T) {
		f := newFixture()
		f.membership.On("Verify", mock.Anything, int64(42), int64(7), "").Return(nil, services.ErrTenantMismatch)

		_, err := f.service.SwitchToEmployee(context.Background(), adminClaims(), RequestMeta{})
		assert.True(t, services.IsTenantMismatchError(err))
		f.tokens.AssertNotCalled(t, "Issue", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("no credential when audit write fails", func(t *testing.T) {
		f := newFixture()
		user := adminUser()
		f.membership.On("Verify", mock.Anything, int64(42), int64(7), "").Return(user, nil)
		f.audit.On("LogRoleSwitch", mock.Anything, user, models.RoleAdmin, models.RoleEmployee, "", "", "").Return(errors.New("disk full"))

		_, err := f.service.SwitchToEmployee(context.Background(), adminClaims(), RequestMeta{})
		require.Error(t, err)
		assert.True(t, services.IsInternalError(err))
		f.tokens.AssertNotCalled(t, "Issue", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("no credential when transaction fails", func(t *testing.T) {
		f := newFixture()
		user := adminUser()
		f.membership.On("Verify", mock.Anything, int64(42), int64(7), "").Return(user, nil)
		f.tx.beginErr = errors.New("connection lost")

		_, err := f.service.SwitchToEmployee(context.Background(), adminClaims(), RequestMeta{})
		require.Error(t, err)
		f.tokens.AssertNotCalled(t, "Issue", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestSwitchToOriginal(t *testing.T) {
	expiry := time.Now().Add(24 * time.Hour)

	t.Run("descended admin ascends back", func(t *testing.T) {
		f := newFixture()
		user := adminUser()
		f.membership.On("Verify", mock.Anything, int64(42), int64(7), "").Return(user, nil)
		f.audit.On("LogRoleSwitch", mock.Anything, user, models.RoleEmployee, models.RoleAdmin, "", "", "").Return(nil)
		f.tokens.On("Issue", user, models.RoleAdmin, false).Return("admin-token", expiry, nil)

		claims := adminClaims()
		claims.ActiveRole = models.RoleEmployee
		claims.IsRoleSwitched = true

		result, err := f.service.SwitchToOriginal(context.Background(), claims, RequestMeta{})
		require.NoError(t, err)

		assert.Equal(t, models.RoleAdmin, result.ActiveRole)
		assert.False(t, result.Switched)
		assert.False(t, result.NoOp)
	})

	t.Run("already original is a no-op", func(t *testing.T) {
		f := newFixture()
		user := adminUser()
		f.membership.On("Verify", mock.Anything, int64(42), int64(7), "").Return(user, nil)
		f.tokens.On("Issue", user, models.RoleAdmin, false).Return("fresh", expiry, nil)

		result, err := f.service.SwitchToOriginal(context.Background(), adminClaims(), RequestMeta{})
		require.NoError(t, err)
		assert.True(t, result.NoOp)
		assert.False(t, result.Switched)
	})
}

func TestSwitchRootToAdmin(t *testing.T) {
	expiry := time.Now().Add(24 * time.Hour)

	rootClaims := func(active models.Role) *auth.Claims {
		return &auth.Claims{UserID: 1, TenantID: 7, Role: models.RoleRoot, ActiveRole: active}
	}
	rootUser := func() *models.User {
		return &models.User{ID: 1, TenantID: 7, Role: models.RoleRoot}
	}

	t.Run("root descends to admin", func(t *testing.T) {
		f := newFixture()
		user := rootUser()
		f.membership.On("Verify", mock.Anything, int64(1), int64(7), "").Return(user, nil)
		f.audit.On("LogRoleSwitch", mock.Anything, user, models.RoleRoot, models.RoleAdmin, "", "", "").Return(nil)
		f.tokens.On("Issue", user, models.RoleAdmin, true).Return("admin-token", expiry, nil)

		result, err := f.service.SwitchRootToAdmin(context.Background(), rootClaims(models.RoleRoot), RequestMeta{})
		require.NoError(t, err)
		assert.Equal(t, models.RoleAdmin, result.ActiveRole)
		assert.True(t, result.Switched)
		// Admin has a position requirement only for the employee role
		f.users.AssertNotCalled(t, "UpdatePosition", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("non-root caller rejected before any lookup", func(t *testing.T) {
		f := newFixture()

		_, err := f.service.SwitchRootToAdmin(context.Background(), adminClaims(), RequestMeta{})
		assert.True(t, services.IsForbiddenError(err))
		f.membership.AssertNotCalled(t, "Verify", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("root acting as employee cannot jump sideways", func(t *testing.T) {
		f := newFixture()
		user := rootUser()
		f.membership.On("Verify", mock.Anything, int64(1), int64(7), "").Return(user, nil)

		_, err := f.service.SwitchRootToAdmin(context.Background(), rootClaims(models.RoleEmployee), RequestMeta{})
		require.Error(t, err)
		assert.True(t, services.IsForbiddenError(err))
		f.tokens.AssertNotCalled(t, "Issue", mock.Anything, mock.Anything, mock.Anything)
	})
}
