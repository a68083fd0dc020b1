// Package middleware provides the HTTP middleware chain for the meter
// reader service.
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	svcerrors "github.com/metervision/meter-reader/internal/errors"
	"github.com/metervision/meter-reader/internal/httputil"
	"github.com/metervision/meter-reader/internal/logging"
	"github.com/metervision/meter-reader/supabase/client"
)

// AuthUser is the authenticated caller attached to the request context.
type AuthUser struct {
	ID    string
	Email string
	Role  string
}

// UserResolver verifies an access token against the identity provider.
// *client.AuthClient satisfies it.
type UserResolver interface {
	GetUser(ctx context.Context, accessToken string) (*client.User, error)
}

type contextKey string

const (
	userContextKey  contextKey = "auth_user"
	tokenContextKey contextKey = "auth_token"
)

// AuthMiddleware rejects requests without a valid Supabase bearer token.
// When a JWT secret is configured the token is verified locally; otherwise
// (or when local verification fails) it is checked against the Auth API.
type AuthMiddleware struct {
	jwtSecret string
	resolver  UserResolver
	logger    *logging.Logger
	skipPaths map[string]bool
}

// NewAuthMiddleware creates the authentication middleware. skipPaths are
// served without authentication (health, info, metrics).
func NewAuthMiddleware(jwtSecret string, resolver UserResolver, logger *logging.Logger, skipPaths []string) *AuthMiddleware {
	skip := make(map[string]bool, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = true
	}
	return &AuthMiddleware{
		jwtSecret: jwtSecret,
		resolver:  resolver,
		logger:    logger,
		skipPaths: skip,
	}
}

// Handler returns the middleware handler.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.skipPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			httputil.WriteError(w, svcerrors.Unauthorized("missing Authorization header"))
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			httputil.WriteError(w, svcerrors.Unauthorized("invalid Authorization header format"))
			return
		}
		token := parts[1]

		user, err := m.verify(r.Context(), token)
		if err != nil {
			m.logger.WithContext(r.Context()).WithError(err).Warn("token verification failed")
			httputil.WriteError(w, svcerrors.Unauthorized("invalid or expired token"))
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, user)
		ctx = context.WithValue(ctx, tokenContextKey, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *AuthMiddleware) verify(ctx context.Context, token string) (*AuthUser, error) {
	// Local verification avoids a network round trip per request.
	if m.jwtSecret != "" {
		if user, err := m.verifyLocal(token); err == nil {
			return user, nil
		}
	}
	if m.resolver == nil {
		return nil, fmt.Errorf("no token verifier available")
	}
	resolved, err := m.resolver.GetUser(ctx, token)
	if err != nil {
		return nil, err
	}
	return &AuthUser{ID: resolved.ID, Email: resolved.Email, Role: resolved.Role}, nil
}

func (m *AuthMiddleware) verifyLocal(token string) (*AuthUser, error) {
	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(m.jwtSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("jwt parse: %w", err)
	}
	if !parsed.Valid {
		return nil, fmt.Errorf("jwt invalid")
	}

	user := &AuthUser{
		ID:    stringClaim(claims, "sub"),
		Email: stringClaim(claims, "email"),
		Role:  stringClaim(claims, "role"),
	}
	if user.ID == "" {
		return nil, fmt.Errorf("jwt missing sub claim")
	}
	return user, nil
}

func stringClaim(claims jwt.MapClaims, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}

// UserFromContext retrieves the authenticated user, or nil.
func UserFromContext(ctx context.Context) *AuthUser {
	user, _ := ctx.Value(userContextKey).(*AuthUser)
	return user
}

// TokenFromContext retrieves the raw bearer token for downstream
// row-level-security usage.
func TokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(tokenContextKey).(string)
	return token
}

// WithTestUser injects a user and token into a context. Test helper.
func WithTestUser(ctx context.Context, user *AuthUser, token string) context.Context {
	ctx = context.WithValue(ctx, userContextKey, user)
	return context.WithValue(ctx, tokenContextKey, token)
}
