package middleware

import (
	"context"

	"github.com/workdeck/workdeck-backend/auth"
)

// Context key type to avoid collisions
type contextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey contextKey = "request_id"

	// ClaimsKey is the context key for session claims
	ClaimsKey contextKey = "claims"

	// TenantIDKey is the context key for the authenticated tenant ID
	TenantIDKey contextKey = "tenant_id"

	// TenantRefKey is the context key for an explicit tenant reference
	// (numeric ID or subdomain) supplied by the request itself
	TenantRefKey contextKey = "tenant_ref"

	// UserIDKey is the context key for user ID
	UserIDKey contextKey = "user_id"
)

// GetRequestIDFromContext retrieves the request ID from context
func GetRequestIDFromContext(ctx context.Context) string {
	if val := ctx.Value(RequestIDKey); val != nil {
		if requestID, ok := val.(string); ok {
			return requestID
		}
	}
	return ""
}

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetClaimsFromContext retrieves session claims from context
func GetClaimsFromContext(ctx context.Context) *auth.Claims {
	if val := ctx.Value(ClaimsKey); val != nil {
		if claims, ok := val.(*auth.Claims); ok {
			return claims
		}
	}
	return nil
}

// WithClaims adds session claims to the context
func WithClaims(ctx context.Context, claims *auth.Claims) context.Context {
	return context.WithValue(ctx, ClaimsKey, claims)
}

// GetTenantIDFromContext retrieves the authenticated tenant ID from context
func GetTenantIDFromContext(ctx context.Context) int64 {
	if val := ctx.Value(TenantIDKey); val != nil {
		if tenantID, ok := val.(int64); ok {
			return tenantID
		}
	}
	return 0
}

// WithTenantID adds the authenticated tenant ID to the context
func WithTenantID(ctx context.Context, tenantID int64) context.Context {
	return context.WithValue(ctx, TenantIDKey, tenantID)
}

// GetTenantRefFromContext retrieves an explicit tenant reference from
// context. Empty means the request carried none.
func GetTenantRefFromContext(ctx context.Context) string {
	if val := ctx.Value(TenantRefKey); val != nil {
		if ref, ok := val.(string); ok {
			return ref
		}
	}
	return ""
}

// WithTenantRef adds an explicit tenant reference to the context
func WithTenantRef(ctx context.Context, ref string) context.Context {
	return context.WithValue(ctx, TenantRefKey, ref)
}

// GetUserIDFromContext retrieves the user ID from context
func GetUserIDFromContext(ctx context.Context) int64 {
	if val := ctx.Value(UserIDKey); val != nil {
		if userID, ok := val.(int64); ok {
			return userID
		}
	}
	return 0
}

// WithUserID adds a user ID to the context
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}
