// rbac.go gates routes on the central role policy. Permissions are resolved
// from the account's current role on every request, so a role change takes
// effect without reissuing the session token.

package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MiRedo238/Chemsphere-sub000/internal/auth"
)

// RequirePermission aborts unless the authenticated account may perform action.
func RequirePermission(action auth.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "User not authenticated",
			})
			return
		}

		err := auth.Authorize(user, action)
		switch {
		case err == nil:
			c.Next()
		case errors.Is(err, auth.ErrInactive):
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "Account is deactivated",
			})
		case errors.Is(err, auth.ErrUnverified):
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "Account is not verified",
				"details": "An administrator must verify your account before you can use ChemSphere",
			})
		default:
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "Insufficient permissions",
				"details": "Required permission: " + string(action),
			})
		}
	}
}
