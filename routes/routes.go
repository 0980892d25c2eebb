package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/workdeck/workdeck-backend/app"
	"github.com/workdeck/workdeck-backend/middleware"
	"github.com/workdeck/workdeck-backend/models"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "https://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Tenant"},
		ExposedHeaders:   []string{"Link", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Explicit tenant context (X-Tenant header or subdomain)
	r.Use(middleware.TenantContext(deps.Config.Server.BaseDomain))

	// Health check endpoints
	r.Get("/healthz", deps.HealthHandler.HandleHealth)
	r.Get("/readyz", deps.HealthHandler.HandleReadiness)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Role switching
		r.Route("/role-switch", func(r chi.Router) {
			r.Use(deps.AuthMiddleware.RequireAuth)
			r.Post("/to-employee", deps.RoleSwitchHandler.SwitchToEmployee)
			r.Post("/to-original", deps.RoleSwitchHandler.SwitchToOriginal)
			r.Post("/root-to-admin", deps.RoleSwitchHandler.SwitchRootToAdmin)
		})

		// Feature entitlements
		r.Route("/features", func(r chi.Router) {
			// Public catalog
			r.Get("/available", deps.FeatureHandler.ListAvailable)

			r.Group(func(r chi.Router) {
				r.Use(deps.AuthMiddleware.RequireAuth)
				r.Get("/my-features", deps.FeatureHandler.ListMyFeatures)

				r.Group(func(r chi.Router) {
					r.Use(deps.AuthMiddleware.RequireRole(models.RoleAdmin, models.RoleRoot))
					r.Post("/activate", deps.FeatureHandler.Activate)
					r.Post("/deactivate", deps.FeatureHandler.Deactivate)
					r.Get("/usage/{featureCode}", deps.FeatureHandler.UsageSeries)
				})
			})
		})

		// Audit logs (require admin role)
		r.Route("/audit", func(r chi.Router) {
			r.Use(deps.AuthMiddleware.RequireAuth)
			r.Use(deps.AuthMiddleware.RequireRole(models.RoleAdmin, models.RoleRoot))
			r.Get("/logs", deps.AuditHandler.ListLogs)
		})
	})

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"endpoint not found"}`))
	})

	return r
}
