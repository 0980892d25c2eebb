package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/workdeck/workdeck-backend/models"
)

var (
	// ErrInvalidToken is returned when the token is invalid
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired is returned when the token has expired
	ErrTokenExpired = errors.New("token expired")

	// ErrMissingSecret is returned when no signing secret is configured
	ErrMissingSecret = errors.New("signing secret is required")
)

// TokenTypeAccess is the only token type this service issues.
const TokenTypeAccess = "access"

// AccessTokenTTL is the fixed lifetime of an access token. Role switches
// re-issue a fresh token rather than extending an existing one.
const AccessTokenTTL = 24 * time.Hour

// Claims represents the session claims carried in a signed access token.
// Role is the user's original role and never changes between re-issues;
// ActiveRole reflects the role the user is currently acting under.
type Claims struct {
	jwt.RegisteredClaims
	UserID         int64       `json:"id"`
	Username       string      `json:"username"`
	Email          string      `json:"email"`
	TenantID       int64       `json:"tenant_id"`
	Role           models.Role `json:"role"`
	ActiveRole     models.Role `json:"activeRole"`
	IsRoleSwitched bool        `json:"isRoleSwitched"`
	TokenType      string      `json:"type"`
}

// TokenService issues and verifies HMAC-signed session tokens
type TokenService struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// Option configures a TokenService
type Option func(*TokenService)

// WithClock overrides the time source, used in tests
func WithClock(now func() time.Time) Option {
	return func(s *TokenService) {
		s.now = now
	}
}

// WithTTL overrides the token lifetime
func WithTTL(ttl time.Duration) Option {
	return func(s *TokenService) {
		s.ttl = ttl
	}
}

// NewTokenService creates a token service. The secret must be supplied by
// configuration; an empty secret is a hard error so startup fails closed.
func NewTokenService(secret, issuer string, opts ...Option) (*TokenService, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	s := &TokenService{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    AccessTokenTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Issue signs a fresh access token for the user acting under activeRole.
// The embedded original role always comes from the stored user record.
func (s *TokenService) Issue(user *models.User, activeRole models.Role, isRoleSwitched bool) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.ttl)

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   fmt.Sprintf("%d", user.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		UserID:         user.ID,
		Username:       user.Username,
		Email:          user.Email,
		TenantID:       user.TenantID,
		Role:           user.Role,
		ActiveRole:     activeRole,
		IsRoleSwitched: isRoleSwitched,
		TokenType:      TokenTypeAccess,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify parses and validates a signed access token and returns its claims
func (s *TokenService) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	if claims.TokenType != TokenTypeAccess {
		return nil, fmt.Errorf("%w: unexpected token type %q", ErrInvalidToken, claims.TokenType)
	}
	if s.issuer != "" && claims.Issuer != s.issuer {
		return nil, fmt.Errorf("%w: unexpected issuer %q", ErrInvalidToken, claims.Issuer)
	}
	if !claims.Role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, claims.Role)
	}
	if claims.ActiveRole == "" {
		claims.ActiveRole = claims.Role
	}

	return claims, nil
}
