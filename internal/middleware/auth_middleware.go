package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"socialnet/internal/auth"
)

// contextKey 是用于在 context.Context 中存储值的自定义类型，以避免键冲突。
type contextKey string

const (
	// UserIDKey 是用于在上下文中存储用户ID的键。
	UserIDKey contextKey = "userID"
	// UsernameKey 是用于在上下文中存储用户名的键。
	UsernameKey contextKey = "username"
	claimsKey   contextKey = "claims"
)

// TokenValidator turns a raw token into the principal it identifies.
type TokenValidator func(ctx context.Context, token string) (*auth.Claims, error)

// NewTokenValidator validates with the given key, consulting blacklist when it is non-nil.
func NewTokenValidator(jwtKey string, blacklist auth.TokenBlacklist) TokenValidator {
	return func(ctx context.Context, token string) (*auth.Claims, error) {
		return auth.ValidateToken(ctx, token, jwtKey, blacklist)
	}
}

// AuthMiddleware 是一个 HTTP 中间件，用于验证 Bearer JWT 并将用户信息添加到上下文中。
func AuthMiddleware(validate TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeUnauthorized(w, "请求未包含授权令牌")
				return
			}

			headerParts := strings.Split(authHeader, " ")
			if len(headerParts) != 2 || strings.ToLower(headerParts[0]) != "bearer" {
				writeUnauthorized(w, "授权头部格式无效，应为 Bearer {token}")
				return
			}

			claims, err := validate(r.Context(), headerParts[1])
			if err != nil {
				writeUnauthorized(w, "令牌无效")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// WithClaims stores the authenticated principal in ctx.
func WithClaims(ctx context.Context, claims *auth.Claims) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, claims.UserID)
	ctx = context.WithValue(ctx, UsernameKey, claims.Username)
	return context.WithValue(ctx, claimsKey, claims)
}

// GetUserIDFromContext 从上下文中获取用户ID。
func GetUserIDFromContext(ctx context.Context) (uint, bool) {
	userID, ok := ctx.Value(UserIDKey).(uint)
	return userID, ok
}

// GetUsernameFromContext 从上下文中获取用户名。
func GetUsernameFromContext(ctx context.Context) (string, bool) {
	username, ok := ctx.Value(UsernameKey).(string)
	return username, ok
}

// GetClaimsFromContext returns the full token claims, used by logout to revoke the token.
func GetClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*auth.Claims)
	return claims, ok
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
