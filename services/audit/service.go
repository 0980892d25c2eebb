package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/workdeck/workdeck-backend/models"
	"github.com/workdeck/workdeck-backend/repositories"
	"go.uber.org/zap"
)

// AuditEvent represents an event to be audited
type AuditEvent struct {
	Log      *models.AuditLog
	Priority int // Higher priority events are processed first (for future enhancements)
}

// AuditService handles audit logging. Administrative events flow through a
// background worker pool; role switches bypass the queue and are written
// synchronously so the entry is durable before a credential is returned.
type AuditService struct {
	auditRepo   repositories.AuditRepository
	logger      *zap.Logger
	eventChan   chan *AuditEvent
	workerCount int
	bufferSize  int
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	started     bool
	mu          sync.Mutex
}

// Config holds configuration for the AuditService
type Config struct {
	BufferSize  int // Size of the event buffer channel
	WorkerCount int // Number of concurrent workers
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		BufferSize:  10000, // Buffer up to 10k events
		WorkerCount: 5,     // 5 concurrent workers
	}
}

// NewAuditService creates a new AuditService instance
func NewAuditService(auditRepo repositories.AuditRepository, logger *zap.Logger, config Config) *AuditService {
	ctx, cancel := context.WithCancel(context.Background())

	return &AuditService{
		auditRepo:   auditRepo,
		logger:      logger,
		eventChan:   make(chan *AuditEvent, config.BufferSize),
		workerCount: config.WorkerCount,
		bufferSize:  config.BufferSize,
		ctx:         ctx,
		cancel:      cancel,
		started:     false,
	}
}

// Start starts the background workers
func (s *AuditService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("audit service already started")
	}

	// Start worker goroutines
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.started = true
	s.logger.Info("started audit service",
		zap.Int("worker_count", s.workerCount),
		zap.Int("buffer_size", s.bufferSize))

	return nil
}

// Stop gracefully stops the audit service
// Waits for all pending events to be processed
func (s *AuditService) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return fmt.Errorf("audit service not started")
	}
	s.mu.Unlock()

	s.logger.Info("stopping audit service", zap.Int("pending_events", len(s.eventChan)))

	// Close the event channel (no more events will be accepted)
	close(s.eventChan)

	// Wait for workers to finish with timeout
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("audit service stopped gracefully")
		s.cancel()
		return nil
	case <-time.After(timeout):
		s.cancel()
		return fmt.Errorf("audit service stop timeout after %v", timeout)
	}
}

// LogEvent logs an event asynchronously (non-blocking)
// Returns immediately, event is processed in background
func (s *AuditService) LogEvent(event *AuditEvent) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return fmt.Errorf("audit service not started")
	}
	s.mu.Unlock()

	// Try to send event to channel (non-blocking)
	select {
	case s.eventChan <- event:
		return nil
	default:
		// Channel is full, log warning and drop event
		s.logger.Warn("audit event channel full, dropping event",
			zap.String("action", string(event.Log.Action)),
			zap.Int64("tenant_id", event.Log.TenantID))
		return fmt.Errorf("audit event buffer full")
	}
}

// LogEventSync writes an entry directly through the repository, honoring any
// transaction carried in the context. Used for entries that must be durable
// before the caller's response, such as role switches.
func (s *AuditService) LogEventSync(ctx context.Context, log *models.AuditLog) error {
	if err := s.auditRepo.Insert(ctx, log); err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}
	return nil
}

// worker processes events from the channel
func (s *AuditService) worker(id int) {
	defer s.wg.Done()

	s.logger.Debug("audit worker started", zap.Int("worker_id", id))

	for event := range s.eventChan {
		if err := s.processEvent(event); err != nil {
			s.logger.Error("failed to process audit event",
				zap.Int("worker_id", id),
				zap.Error(err),
				zap.String("action", string(event.Log.Action)),
				zap.Int64("tenant_id", event.Log.TenantID))
		}
	}

	s.logger.Debug("audit worker stopped", zap.Int("worker_id", id))
}

// processEvent processes a single audit event
func (s *AuditService) processEvent(event *AuditEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.auditRepo.Insert(ctx, event.Log); err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}

	return nil
}

// GetStats returns statistics about the audit service
func (s *AuditService) GetStats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Stats{
		BufferSize:    s.bufferSize,
		PendingEvents: len(s.eventChan),
		WorkerCount:   s.workerCount,
		Started:       s.started,
	}
}

// Stats represents audit service statistics
type Stats struct {
	BufferSize    int
	PendingEvents int
	WorkerCount   int
	Started       bool
}

// Convenience methods for logging common events

// LogRoleSwitch writes a role switch entry synchronously. When called inside
// a transaction context the insert joins that transaction.
func (s *AuditService) LogRoleSwitch(ctx context.Context, user *models.User, before, after models.Role, requestID, ipAddress, userAgent string) error {
	log := models.NewAuditLog(user.TenantID, models.AuditActionRoleSwitch, "user")
	log.WithUser(user.ID)
	log.WithResource(fmt.Sprintf("%d", user.ID))
	log.WithRequest(requestID, ipAddress, userAgent)
	log.WithRoleTransition(before, after, after != user.Role)

	return s.LogEventSync(ctx, log)
}

// LogFeatureActivated logs a feature activation event
func (s *AuditService) LogFeatureActivated(tenantID int64, userID int64, feature *models.Feature, ent *models.Entitlement) error {
	log := models.NewAuditLog(tenantID, models.AuditActionFeatureActivated, "feature")
	log.WithUser(userID)
	log.WithResource(feature.Code)

	details := map[string]interface{}{
		"feature_code": feature.Code,
		"status":       ent.Status,
		"trial_days":   ent.TrialDays,
	}
	if ent.UsageLimit != nil {
		details["usage_limit"] = *ent.UsageLimit
	}
	log.WithDetails(details)

	event := &AuditEvent{
		Log:      log,
		Priority: 1,
	}

	return s.LogEvent(event)
}

// LogFeatureDeactivated logs a feature deactivation event
func (s *AuditService) LogFeatureDeactivated(tenantID int64, userID int64, featureCode string) error {
	log := models.NewAuditLog(tenantID, models.AuditActionFeatureDeactivated, "feature")
	log.WithUser(userID)
	log.WithResource(featureCode)

	event := &AuditEvent{
		Log:      log,
		Priority: 1,
	}

	return s.LogEvent(event)
}

// LogTenantMismatch logs a tenant mismatch security event with high priority
func (s *AuditService) LogTenantMismatch(claimedTenantID, actualTenantID, userID int64, requestID string) error {
	log := models.NewAuditLog(actualTenantID, models.AuditActionTenantMismatch, "user")
	log.WithUser(userID)
	log.WithResource(fmt.Sprintf("%d", userID))

	details := map[string]interface{}{
		"claimed_tenant_id": claimedTenantID,
		"actual_tenant_id":  actualTenantID,
	}
	log.WithDetails(details)
	log.RequestID = requestID

	event := &AuditEvent{
		Log:      log,
		Priority: 2, // Higher priority for security events
	}

	return s.LogEvent(event)
}
