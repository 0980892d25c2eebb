package audit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/workdeck/workdeck-backend/models"
	"github.com/workdeck/workdeck-backend/repositories"
	"go.uber.org/zap"
)

// MockAuditRepository is a mock implementation of AuditRepository
type MockAuditRepository struct {
	mock.Mock
	mu           sync.Mutex
	insertedLogs []*models.AuditLog
}

func (m *MockAuditRepository) Insert(ctx context.Context, log *models.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	args := m.Called(ctx, log)
	m.insertedLogs = append(m.insertedLogs, log)
	return args.Error(0)
}

func (m *MockAuditRepository) AsyncInsert(log *models.AuditLog) {
	m.Called(log)
}

func (m *MockAuditRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.AuditLog, error) {
	args := m.Called(ctx, id)
	if log := args.Get(0); log != nil {
		return log.(*models.AuditLog), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAuditRepository) GetByTenantID(ctx context.Context, tenantID int64, limit, offset int) ([]*models.AuditLog, error) {
	args := m.Called(ctx, tenantID, limit, offset)
	if logs := args.Get(0); logs != nil {
		return logs.([]*models.AuditLog), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAuditRepository) GetByUserID(ctx context.Context, userID int64, limit, offset int) ([]*models.AuditLog, error) {
	args := m.Called(ctx, userID, limit, offset)
	if logs := args.Get(0); logs != nil {
		return logs.([]*models.AuditLog), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAuditRepository) GetByDateRange(ctx context.Context, tenantID int64, start, end time.Time, limit, offset int) ([]*models.AuditLog, error) {
	args := m.Called(ctx, tenantID, start, end, limit, offset)
	if logs := args.Get(0); logs != nil {
		return logs.([]*models.AuditLog), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAuditRepository) WithTx(tx repositories.Transaction) repositories.AuditRepository {
	args := m.Called(tx)
	return args.Get(0).(repositories.AuditRepository)
}

func (m *MockAuditRepository) GetInsertedLogs() []*models.AuditLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertedLogs
}

func TestAuditService_StartStop(t *testing.T) {
	logger := zap.NewNop()
	mockRepo := new(MockAuditRepository)
	config := Config{
		BufferSize:  10,
		WorkerCount: 2,
	}

	service := NewAuditService(mockRepo, logger, config)

	err := service.Start()
	require.NoError(t, err)

	stats := service.GetStats()
	assert.True(t, stats.Started)
	assert.Equal(t, 2, stats.WorkerCount)
	assert.Equal(t, 10, stats.BufferSize)

	// Cannot start again
	err = service.Start()
	assert.Error(t, err)

	err = service.Stop(5 * time.Second)
	require.NoError(t, err)
}

func TestAuditService_LogEvent(t *testing.T) {
	logger := zap.NewNop()
	mockRepo := new(MockAuditRepository)
	mockRepo.On("Insert", mock.Anything, mock.Anything).Return(nil)

	service := NewAuditService(mockRepo, logger, Config{BufferSize: 10, WorkerCount: 1})
	require.NoError(t, service.Start())

	log := models.NewAuditLog(1, models.AuditActionFeatureActivated, "feature")
	log.WithUser(42).WithResource("reporting")

	err := service.LogEvent(&AuditEvent{Log: log, Priority: 1})
	require.NoError(t, err)

	require.NoError(t, service.Stop(5*time.Second))

	inserted := mockRepo.GetInsertedLogs()
	require.Len(t, inserted, 1)
	assert.Equal(t, models.AuditActionFeatureActivated, inserted[0].Action)
	assert.Equal(t, int64(1), inserted[0].TenantID)
}

func TestAuditService_LogEvent_NotStarted(t *testing.T) {
	service := NewAuditService(new(MockAuditRepository), zap.NewNop(), DefaultConfig())

	log := models.NewAuditLog(1, models.AuditActionFeatureDeactivated, "feature")
	err := service.LogEvent(&AuditEvent{Log: log})
	assert.Error(t, err)
}

func TestAuditService_BufferFull(t *testing.T) {
	logger := zap.NewNop()
	mockRepo := new(MockAuditRepository)

	// Zero workers so nothing drains the channel
	service := NewAuditService(mockRepo, logger, Config{BufferSize: 1, WorkerCount: 0})
	require.NoError(t, service.Start())
	defer func() { _ = service.Stop(time.Second) }()

	first := models.NewAuditLog(1, models.AuditActionFeatureActivated, "feature")
	require.NoError(t, service.LogEvent(&AuditEvent{Log: first}))

	// Second event should be dropped, not block
	second := models.NewAuditLog(1, models.AuditActionFeatureActivated, "feature")
	err := service.LogEvent(&AuditEvent{Log: second})
	assert.Error(t, err)
}

func TestAuditService_LogEventSync(t *testing.T) {
	logger := zap.NewNop()
	mockRepo := new(MockAuditRepository)
	mockRepo.On("Insert", mock.Anything, mock.Anything).Return(nil)

	// Sync writes do not require the worker pool
	service := NewAuditService(mockRepo, logger, DefaultConfig())

	log := models.NewAuditLog(7, models.AuditActionRoleSwitch, "user")
	err := service.LogEventSync(context.Background(), log)
	require.NoError(t, err)

	require.Len(t, mockRepo.GetInsertedLogs(), 1)
	mockRepo.AssertExpectations(t)
}

func TestAuditService_LogRoleSwitch(t *testing.T) {
	logger := zap.NewNop()
	mockRepo := new(MockAuditRepository)
	mockRepo.On("Insert", mock.Anything, mock.Anything).Return(nil)

	service := NewAuditService(mockRepo, logger, DefaultConfig())

	user := &models.User{ID: 42, TenantID: 7, Username: "alice", Role: models.RoleAdmin}
	err := service.LogRoleSwitch(context.Background(), user, models.RoleAdmin, models.RoleEmployee, "req-1", "10.0.0.1", "test-agent")
	require.NoError(t, err)

	inserted := mockRepo.GetInsertedLogs()
	require.Len(t, inserted, 1)

	entry := inserted[0]
	assert.Equal(t, models.AuditActionRoleSwitch, entry.Action)
	assert.Equal(t, int64(7), entry.TenantID)
	require.NotNil(t, entry.UserID)
	assert.Equal(t, int64(42), *entry.UserID)
	require.NotNil(t, entry.BeforeRole)
	assert.Equal(t, models.RoleAdmin, *entry.BeforeRole)
	require.NotNil(t, entry.AfterRole)
	assert.Equal(t, models.RoleEmployee, *entry.AfterRole)
	require.NotNil(t, entry.WasRoleSwitched)
	assert.True(t, *entry.WasRoleSwitched)
	assert.Equal(t, "req-1", entry.RequestID)
}

func TestAuditService_LogRoleSwitch_BackToOriginal(t *testing.T) {
	mockRepo := new(MockAuditRepository)
	mockRepo.On("Insert", mock.Anything, mock.Anything).Return(nil)

	service := NewAuditService(mockRepo, zap.NewNop(), DefaultConfig())

	user := &models.User{ID: 42, TenantID: 7, Role: models.RoleAdmin}
	err := service.LogRoleSwitch(context.Background(), user, models.RoleEmployee, models.RoleAdmin, "req-2", "", "")
	require.NoError(t, err)

	entry := mockRepo.GetInsertedLogs()[0]
	require.NotNil(t, entry.WasRoleSwitched)
	assert.False(t, *entry.WasRoleSwitched)
}

func TestAuditService_LogFeatureActivated(t *testing.T) {
	logger := zap.NewNop()
	mockRepo := new(MockAuditRepository)
	mockRepo.On("Insert", mock.Anything, mock.Anything).Return(nil)

	service := NewAuditService(mockRepo, logger, Config{BufferSize: 10, WorkerCount: 1})
	require.NoError(t, service.Start())

	limit := 100
	feature := &models.Feature{ID: 3, Code: "reporting", Name: "Reporting"}
	ent := &models.Entitlement{TenantID: 7, FeatureID: 3, Status: models.EntitlementTrial, TrialDays: 14, UsageLimit: &limit}

	err := service.LogFeatureActivated(7, 42, feature, ent)
	require.NoError(t, err)

	require.NoError(t, service.Stop(5*time.Second))

	inserted := mockRepo.GetInsertedLogs()
	require.Len(t, inserted, 1)
	assert.Equal(t, models.AuditActionFeatureActivated, inserted[0].Action)
	require.NotNil(t, inserted[0].ResourceID)
	assert.Equal(t, "reporting", *inserted[0].ResourceID)
}

func TestAuditService_LogTenantMismatch(t *testing.T) {
	logger := zap.NewNop()
	mockRepo := new(MockAuditRepository)
	mockRepo.On("Insert", mock.Anything, mock.Anything).Return(nil)

	service := NewAuditService(mockRepo, logger, Config{BufferSize: 10, WorkerCount: 1})
	require.NoError(t, service.Start())

	err := service.LogTenantMismatch(99, 7, 42, "req-3")
	require.NoError(t, err)

	require.NoError(t, service.Stop(5*time.Second))

	inserted := mockRepo.GetInsertedLogs()
	require.Len(t, inserted, 1)
	assert.Equal(t, models.AuditActionTenantMismatch, inserted[0].Action)
	// Entry is recorded under the tenant the user actually belongs to
	assert.Equal(t, int64(7), inserted[0].TenantID)
	assert.Equal(t, "req-3", inserted[0].RequestID)
}

func TestAuditService_ConcurrentLogging(t *testing.T) {
	logger := zap.NewNop()
	mockRepo := new(MockAuditRepository)
	mockRepo.On("Insert", mock.Anything, mock.Anything).Return(nil)

	service := NewAuditService(mockRepo, logger, Config{BufferSize: 1000, WorkerCount: 5})
	require.NoError(t, service.Start())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				log := models.NewAuditLog(1, models.AuditActionFeatureActivated, "feature")
				_ = service.LogEvent(&AuditEvent{Log: log})
			}
		}()
	}
	wg.Wait()

	require.NoError(t, service.Stop(5*time.Second))
	assert.Len(t, mockRepo.GetInsertedLogs(), 100)
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	assert.Equal(t, 10000, config.BufferSize)
	assert.Equal(t, 5, config.WorkerCount)
}
