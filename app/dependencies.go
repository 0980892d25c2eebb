package app

import (
	"context"
	"fmt"
	"time"

	"github.com/workdeck/workdeck-backend/auth"
	"github.com/workdeck/workdeck-backend/config"
	"github.com/workdeck/workdeck-backend/handlers"
	"github.com/workdeck/workdeck-backend/middleware"
	"github.com/workdeck/workdeck-backend/repositories"
	"github.com/workdeck/workdeck-backend/repositories/postgres"
	"github.com/workdeck/workdeck-backend/services/audit"
	"github.com/workdeck/workdeck-backend/services/entitlement"
	"github.com/workdeck/workdeck-backend/services/membership"
	"github.com/workdeck/workdeck-backend/services/roleswitch"
	"go.uber.org/zap"
)

// Dependencies holds every long-lived component of the application.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	DB     *postgres.DB
	Logger *zap.Logger

	// Repository Factory
	RepoFactory *postgres.RepositoryFactory

	// Repositories
	Users        repositories.UserRepository
	Tenants      repositories.TenantRepository
	Features     repositories.FeatureRepository
	Entitlements repositories.EntitlementRepository
	UsageLogs    repositories.UsageLogRepository
	AuditLogs    repositories.AuditRepository
	TxManager    repositories.TransactionManager

	// Services
	Tokens       *auth.TokenService
	Audit        *audit.AuditService
	Membership   *membership.Service
	RoleSwitch   *roleswitch.Service
	Entitlement  *entitlement.Service

	// Middleware
	AuthMiddleware *middleware.AuthMiddleware
	FeatureGate    *middleware.FeatureGate

	// Handlers
	RoleSwitchHandler *handlers.RoleSwitchHandler
	FeatureHandler    *handlers.FeatureHandler
	AuditHandler      *handlers.AuditHandler
	HealthHandler     *handlers.HealthHandler
}

// NewDependencies creates and wires up all application dependencies.
// Construction is ordered: database, repositories, services, HTTP layer.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initDatabase(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := deps.initRepositories(); err != nil {
		return nil, fmt.Errorf("failed to initialize repositories: %w", err)
	}

	if err := deps.initServices(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	deps.initHTTP(cfg)

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initDatabase initializes the PostgreSQL database connection and factory
func (d *Dependencies) initDatabase(ctx context.Context, cfg *config.Config) error {
	factory, err := postgres.NewRepositoryFactory(cfg, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to create repository factory: %w", err)
	}

	d.RepoFactory = factory
	d.DB = factory.GetDB()

	// Test the connection
	if err := d.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	// Initialize audit schema when using separate audit DB
	if err := factory.InitAuditSchema(ctx); err != nil {
		return fmt.Errorf("failed to initialize audit schema: %w", err)
	}

	d.Logger.Info("database connection established",
		zap.String("connection", cfg.Database.LogString()))

	return nil
}

// initRepositories initializes all repository instances
func (d *Dependencies) initRepositories() error {
	repos := d.RepoFactory.NewRepositories()

	d.Users = repos.Users
	d.Tenants = repos.Tenants
	d.Features = repos.Features
	d.Entitlements = repos.Entitlements
	d.UsageLogs = repos.UsageLogs
	d.AuditLogs = repos.AuditLogs
	d.TxManager = repos.TxManager

	d.Logger.Info("repositories initialized")
	return nil
}

// initServices wires the token issuer, audit pipeline, and domain services
func (d *Dependencies) initServices(cfg *config.Config) error {
	tokens, err := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.Issuer,
		auth.WithTTL(cfg.Auth.TokenTTL))
	if err != nil {
		return fmt.Errorf("failed to create token service: %w", err)
	}
	d.Tokens = tokens

	d.Audit = audit.NewAuditService(d.AuditLogs, d.Logger, audit.DefaultConfig())
	if err := d.Audit.Start(); err != nil {
		return fmt.Errorf("failed to start audit service: %w", err)
	}

	d.Membership = membership.NewService(d.Users, d.Audit, d.Logger)

	d.RoleSwitch = roleswitch.NewService(
		d.Membership,
		d.Users,
		d.TxManager,
		d.Audit,
		d.Tokens,
		d.Logger,
	)

	d.Entitlement = entitlement.NewService(
		d.Features,
		d.Entitlements,
		d.UsageLogs,
		d.TxManager,
		d.Logger,
	)

	d.Logger.Info("services initialized")
	return nil
}

// initHTTP wires auth middleware, the feature gate, and HTTP handlers
func (d *Dependencies) initHTTP(cfg *config.Config) {
	d.AuthMiddleware = middleware.NewAuthMiddleware(d.Tokens, d.Logger)
	d.FeatureGate = middleware.NewFeatureGate(d.Entitlement, d.Tenants, d.Logger)

	d.RoleSwitchHandler = handlers.NewRoleSwitchHandler(d.RoleSwitch, d.Logger)
	d.FeatureHandler = handlers.NewFeatureHandler(d.Entitlement, d.Features, d.Audit, d.Logger)
	d.AuditHandler = handlers.NewAuditHandler(d.AuditLogs, d.Logger)
	d.HealthHandler = handlers.NewHealthHandler(d.DB.DB, d.Logger)
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	// Drain the audit worker pool before the DB goes away
	if d.Audit != nil {
		if err := d.Audit.Stop(10 * time.Second); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop audit service: %w", err))
		}
	}

	// Close database connection
	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
	}

	// Sync logger
	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	return nil
}
