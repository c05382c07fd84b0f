package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/motorent/backend/internal/models"
	"github.com/spf13/viper"
)

type contextKey string

// IdentityContextKey is where the authenticated caller lives in the request
// context.
const IdentityContextKey contextKey = "identity"

var revocationStore *redis.Client

// InitAuthMiddleware wires the Redis client used for token revocation
// lookups. A nil client disables the revocation check but not auth itself.
func InitAuthMiddleware(redisClient *redis.Client) {
	revocationStore = redisClient
}

// AuthMiddleware verifies the bearer token and places the caller identity in
// the request context. Token issuance happens in the identity service; this
// backend only verifies signatures and trusts the account_id/role claims.
func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Authorization header required", http.StatusUnauthorized)
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			http.Error(w, "Invalid authorization header format", http.StatusUnauthorized)
			return
		}

		token := parts[1]

		if isRevoked(r.Context(), token) {
			http.Error(w, "Token has been revoked", http.StatusUnauthorized)
			return
		}

		identity, err := validateToken(token)
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), IdentityContextKey, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AdminOnly rejects callers whose role claim is not admin. It must run after
// AuthMiddleware.
func AdminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := CallerIdentity(r.Context())
		if !ok || !identity.IsAdmin() {
			http.Error(w, "Admin access required", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// CallerIdentity extracts the authenticated caller from the context.
func CallerIdentity(ctx context.Context) (models.Identity, bool) {
	identity, ok := ctx.Value(IdentityContextKey).(models.Identity)
	return identity, ok
}

func isRevoked(ctx context.Context, token string) bool {
	if revocationStore == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	exists, err := revocationStore.Exists(ctx, "revoked:"+token).Result()
	return err == nil && exists > 0
}

func validateToken(tokenString string) (models.Identity, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(viper.GetString("jwt.secret_key")), nil
	})
	if err != nil || !token.Valid {
		return models.Identity{}, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return models.Identity{}, fmt.Errorf("invalid token claims")
	}

	accountID, _ := claims["account_id"].(string)
	if accountID == "" {
		return models.Identity{}, fmt.Errorf("token missing account_id claim")
	}

	role, _ := claims["role"].(string)
	if role != models.RoleAdmin {
		role = models.RoleCustomer
	}

	return models.Identity{AccountID: accountID, Role: role}, nil
}
