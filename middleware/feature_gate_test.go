package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/workdeck/workdeck-backend/models"
	"github.com/workdeck/workdeck-backend/repositories"
	"go.uber.org/zap"
)

// stubFeatureChecker grants access per feature code
type stubFeatureChecker struct {
	allowed  map[string]bool
	checkErr error

	usageTenant int64
	usageCode   string
	usageUser   *int64
	usageMeta   map[string]interface{}
	usageErr    error
	usageCalls  int
}

func (s *stubFeatureChecker) CheckAccess(ctx context.Context, tenantID int64, code string) (bool, error) {
	if s.checkErr != nil {
		return false, s.checkErr
	}
	return s.allowed[code], nil
}

func (s *stubFeatureChecker) RecordUsage(ctx context.Context, tenantID int64, code string, userID *int64, metadata map[string]interface{}) error {
	s.usageCalls++
	s.usageTenant = tenantID
	s.usageCode = code
	s.usageUser = userID
	s.usageMeta = metadata
	return s.usageErr
}

// stubTenantResolver resolves subdomains from a fixed map
type stubTenantResolver struct {
	tenants map[string]*models.Tenant
	err     error
}

func (s *stubTenantResolver) GetBySubdomain(ctx context.Context, subdomain string) (*models.Tenant, error) {
	if s.err != nil {
		return nil, s.err
	}
	if tenant, ok := s.tenants[subdomain]; ok {
		return tenant, nil
	}
	return nil, fmt.Errorf("tenant %q: %w", subdomain, repositories.ErrNotFound)
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireFeature(t *testing.T) {
	logger := zap.NewNop()

	t.Run("allowed via credential tenant", func(t *testing.T) {
		checker := &stubFeatureChecker{allowed: map[string]bool{"reporting": true}}
		gate := NewFeatureGate(checker, &stubTenantResolver{}, logger)

		req := httptest.NewRequest(http.MethodGet, "/reports", nil)
		req = req.WithContext(WithClaims(req.Context(), testClaims(models.RoleAdmin, models.RoleAdmin)))
		w := httptest.NewRecorder()

		gate.RequireFeature("reporting")(okHandler()).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Zero(t, checker.usageCalls)
	})

	t.Run("denied with structured body", func(t *testing.T) {
		checker := &stubFeatureChecker{allowed: map[string]bool{}}
		gate := NewFeatureGate(checker, &stubTenantResolver{}, logger)

		req := httptest.NewRequest(http.MethodGet, "/reports", nil)
		req = req.WithContext(WithClaims(req.Context(), testClaims(models.RoleAdmin, models.RoleAdmin)))
		w := httptest.NewRecorder()

		gate.RequireFeature("reporting")(okHandler()).ServeHTTP(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Equal(t, "feature_not_available", body["error"])
		assert.Equal(t, "reporting", body["feature_code"])
		assert.Equal(t, true, body["upgrade_hint"])
	})

	t.Run("explicit numeric tenant wins over credential", func(t *testing.T) {
		checker := &stubFeatureChecker{allowed: map[string]bool{"reporting": true}}
		gate := NewFeatureGate(checker, &stubTenantResolver{}, logger)

		req := httptest.NewRequest(http.MethodGet, "/reports", nil)
		ctx := WithClaims(req.Context(), testClaims(models.RoleAdmin, models.RoleAdmin))
		ctx = WithTenantRef(ctx, "99")
		req = req.WithContext(ctx)
		w := httptest.NewRecorder()

		gate.RequireFeature("reporting", WithUsageRecording())(okHandler()).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, int64(99), checker.usageTenant)
	})

	t.Run("subdomain reference resolves through lookup", func(t *testing.T) {
		checker := &stubFeatureChecker{allowed: map[string]bool{"reporting": true}}
		resolver := &stubTenantResolver{tenants: map[string]*models.Tenant{
			"acme": {ID: 7, Subdomain: "acme"},
		}}
		gate := NewFeatureGate(checker, resolver, logger)

		req := httptest.NewRequest(http.MethodGet, "/reports", nil)
		req = req.WithContext(WithTenantRef(req.Context(), "acme"))
		w := httptest.NewRecorder()

		gate.RequireFeature("reporting", WithUsageRecording())(okHandler()).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, int64(7), checker.usageTenant)
	})

	t.Run("unknown subdomain is 404", func(t *testing.T) {
		checker := &stubFeatureChecker{allowed: map[string]bool{"reporting": true}}
		gate := NewFeatureGate(checker, &stubTenantResolver{tenants: map[string]*models.Tenant{}}, logger)

		req := httptest.NewRequest(http.MethodGet, "/reports", nil)
		req = req.WithContext(WithTenantRef(req.Context(), "ghost"))
		w := httptest.NewRecorder()

		gate.RequireFeature("reporting")(okHandler()).ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("no tenant at all is 400", func(t *testing.T) {
		checker := &stubFeatureChecker{allowed: map[string]bool{"reporting": true}}
		gate := NewFeatureGate(checker, &stubTenantResolver{}, logger)

		req := httptest.NewRequest(http.MethodGet, "/reports", nil)
		w := httptest.NewRecorder()

		gate.RequireFeature("reporting")(okHandler()).ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Equal(t, "Tenant not identified", body["message"])
	})

	t.Run("check failure is 500, fail closed", func(t *testing.T) {
		checker := &stubFeatureChecker{checkErr: errors.New("db down")}
		gate := NewFeatureGate(checker, &stubTenantResolver{}, logger)

		req := httptest.NewRequest(http.MethodGet, "/reports", nil)
		req = req.WithContext(WithClaims(req.Context(), testClaims(models.RoleAdmin, models.RoleAdmin)))
		w := httptest.NewRecorder()

		gate.RequireFeature("reporting")(okHandler()).ServeHTTP(w, req)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})

	t.Run("usage recording failure does not block", func(t *testing.T) {
		checker := &stubFeatureChecker{
			allowed:  map[string]bool{"reporting": true},
			usageErr: errors.New("insert failed"),
		}
		gate := NewFeatureGate(checker, &stubTenantResolver{}, logger)

		req := httptest.NewRequest(http.MethodGet, "/reports", nil)
		req = req.WithContext(WithClaims(req.Context(), testClaims(models.RoleAdmin, models.RoleAdmin)))
		w := httptest.NewRecorder()

		gate.RequireFeature("reporting", WithUsageRecording())(okHandler()).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 1, checker.usageCalls)
	})

	t.Run("usage metadata carries path and user", func(t *testing.T) {
		checker := &stubFeatureChecker{allowed: map[string]bool{"reporting": true}}
		gate := NewFeatureGate(checker, &stubTenantResolver{}, logger)

		req := httptest.NewRequest(http.MethodPost, "/reports/export", nil)
		req = req.WithContext(WithClaims(req.Context(), testClaims(models.RoleAdmin, models.RoleAdmin)))
		w := httptest.NewRecorder()

		gate.RequireFeature("reporting", WithUsageRecording())(okHandler()).ServeHTTP(w, req)

		require.NotNil(t, checker.usageUser)
		assert.Equal(t, int64(42), *checker.usageUser)
		assert.Equal(t, "/reports/export", checker.usageMeta["path"])
		assert.Equal(t, http.MethodPost, checker.usageMeta["method"])
		assert.Equal(t, "reporting", checker.usageCode)
	})
}

func TestRequireAnyFeature(t *testing.T) {
	logger := zap.NewNop()

	t.Run("one of several suffices", func(t *testing.T) {
		checker := &stubFeatureChecker{allowed: map[string]bool{"exports": true}}
		gate := NewFeatureGate(checker, &stubTenantResolver{}, logger)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(WithClaims(req.Context(), testClaims(models.RoleAdmin, models.RoleAdmin)))
		w := httptest.NewRecorder()

		gate.RequireAnyFeature("reporting", "exports")(okHandler()).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("none allowed lists every code", func(t *testing.T) {
		checker := &stubFeatureChecker{allowed: map[string]bool{}}
		gate := NewFeatureGate(checker, &stubTenantResolver{}, logger)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(WithClaims(req.Context(), testClaims(models.RoleAdmin, models.RoleAdmin)))
		w := httptest.NewRecorder()

		gate.RequireAnyFeature("reporting", "exports")(okHandler()).ServeHTTP(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		codes, ok := body["feature_codes"].([]interface{})
		require.True(t, ok)
		assert.Len(t, codes, 2)
	})
}

func TestRequireAllFeatures(t *testing.T) {
	logger := zap.NewNop()

	t.Run("all present", func(t *testing.T) {
		checker := &stubFeatureChecker{allowed: map[string]bool{"reporting": true, "exports": true}}
		gate := NewFeatureGate(checker, &stubTenantResolver{}, logger)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(WithClaims(req.Context(), testClaims(models.RoleAdmin, models.RoleAdmin)))
		w := httptest.NewRecorder()

		gate.RequireAllFeatures("reporting", "exports")(okHandler()).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("one missing denies and names it", func(t *testing.T) {
		checker := &stubFeatureChecker{allowed: map[string]bool{"reporting": true}}
		gate := NewFeatureGate(checker, &stubTenantResolver{}, logger)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(WithClaims(req.Context(), testClaims(models.RoleAdmin, models.RoleAdmin)))
		w := httptest.NewRecorder()

		gate.RequireAllFeatures("reporting", "exports")(okHandler()).ServeHTTP(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Equal(t, "exports", body["feature_code"])
	})
}
