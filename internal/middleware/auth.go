// Package middleware provides Gin HTTP middleware for authentication, authorization,
// rate limiting, security headers, and audit shipping.
//
// Middleware ordering matters and is enforced in router.go:
//
//	RequestID → Metrics → Logger → CORS → Security → RateLimit → Auth → Permission → Audit → Handler
//
// Rate limiting runs before auth so brute-force attempts are refused before any
// database work. Auth loads the account; RequirePermission reads it from the
// context and consults the role policy.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/MiRedo238/Chemsphere-sub000/internal/auth"
	"github.com/MiRedo238/Chemsphere-sub000/internal/db/models"
)

// Context keys set by AuthMiddleware.
const (
	UserKey     = "user"
	UserIDKey   = "user_id"
	UserRoleKey = "user_role"
)

// UserLoader resolves the account behind a session token.
// *repositories.UserRepository implements it.
type UserLoader interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// AuthMiddleware requires a valid session token and loads its account.
// Inactive or unverified accounts still pass; RequirePermission refuses them
// so that /auth/me can report their state.
func AuthMiddleware(users UserLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, msg := bearerToken(c.GetHeader("Authorization"))
		if msg != "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
			return
		}

		claims, err := auth.ValidateJWT(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid or expired session",
			})
			return
		}

		user, err := users.GetUserByID(c.Request.Context(), claims.UserID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to load user",
			})
			return
		}
		if user == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "User not found",
			})
			return
		}

		c.Set(UserKey, user)
		c.Set(UserIDKey, user.ID)
		c.Set(UserRoleKey, string(user.Role))
		c.Next()
	}
}

// bearerToken extracts the token from an Authorization header. A non-empty
// message explains why the header was refused.
func bearerToken(header string) (token, msg string) {
	if header == "" {
		return "", "Missing authorization header"
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return "", "Authorization header must start with 'Bearer '"
	}
	token = strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return "", "Authorization token is empty"
	}
	return token, ""
}

// CurrentUser returns the account loaded by AuthMiddleware, or nil.
func CurrentUser(c *gin.Context) *models.User {
	v, ok := c.Get(UserKey)
	if !ok {
		return nil
	}
	u, _ := v.(*models.User)
	return u
}
