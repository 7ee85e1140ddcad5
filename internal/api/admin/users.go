// users.go implements the account administration handlers: listing users,
// verifying and (de)activating accounts, and changing roles.
package admin

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/MiRedo238/Chemsphere-sub000/internal/api/httperr"
	"github.com/MiRedo238/Chemsphere-sub000/internal/db/models"
	"github.com/MiRedo238/Chemsphere-sub000/internal/middleware"
	"github.com/MiRedo238/Chemsphere-sub000/internal/services"
)

// UserDirectory is the administration side of the user service.
// *services.UserService implements it.
type UserDirectory interface {
	ListUsers(ctx context.Context, limit, offset int) ([]*models.User, int, error)
	ChangeRole(ctx context.Context, actor services.Actor, id string, role models.Role) (*models.User, error)
	SetActive(ctx context.Context, actor services.Actor, id string, active bool) (*models.User, error)
	Verify(ctx context.Context, actor services.Actor, id string) (*models.User, error)
}

// UserHandlers handles user management endpoints
type UserHandlers struct {
	users UserDirectory
}

// NewUserHandlers creates a new UserHandlers instance
func NewUserHandlers(users UserDirectory) *UserHandlers {
	return &UserHandlers{users: users}
}

// pageParams reads page and per_page, clamping them the same way for every
// paginated admin list.
func pageParams(c *gin.Context) (page, perPage int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ = strconv.Atoi(c.DefaultQuery("per_page", "20"))
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}
	return page, perPage
}

// @Summary      List users
// @Description  Get a paginated list of all accounts. Requires users:read.
// @Tags         Users
// @Security     Bearer
// @Produce      json
// @Param        page      query  int  false  "Page number (default 1)"
// @Param        per_page  query  int  false  "Items per page, max 100 (default 20)"
// @Success      200  {object}  map[string]interface{}  "users: []models.User, pagination"
// @Router       /api/v1/users [get]
// ListUsersHandler lists all users with pagination
// GET /api/v1/users?page=1&per_page=20
func (h *UserHandlers) ListUsersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		page, perPage := pageParams(c)
		users, total, err := h.users.ListUsers(c.Request.Context(), perPage, (page-1)*perPage)
		if err != nil {
			httperr.Write(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"users": users,
			"pagination": gin.H{
				"page":     page,
				"per_page": perPage,
				"total":    total,
			},
		})
	}
}

// ChangeRoleRequest is the body of PATCH /users/:id/role.
type ChangeRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

// ChangeRoleHandler assigns a role. Requires users:manage_roles.
// PATCH /api/v1/users/:id/role
func (h *UserHandlers) ChangeRoleHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ChangeRoleRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			httperr.BadRequest(c, "A role is required")
			return
		}
		role, err := models.ParseRole(req.Role)
		if err != nil {
			httperr.BadRequest(c, err.Error())
			return
		}
		user, err := h.users.ChangeRole(c.Request.Context(), actor(c), c.Param("id"), role)
		if httperr.Failed(c, err) {
			return
		}
		c.JSON(http.StatusOK, user)
	}
}

// SetStatusRequest is the body of PATCH /users/:id/status.
type SetStatusRequest struct {
	Active *bool `json:"active" binding:"required"`
}

// SetStatusHandler activates or deactivates an account.
// PATCH /api/v1/users/:id/status
func (h *UserHandlers) SetStatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SetStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			httperr.BadRequest(c, "Field active is required")
			return
		}
		user, err := h.users.SetActive(c.Request.Context(), actor(c), c.Param("id"), *req.Active)
		if httperr.Failed(c, err) {
			return
		}
		c.JSON(http.StatusOK, user)
	}
}

// VerifyHandler marks a self-registered account as verified.
// PATCH /api/v1/users/:id/verify
func (h *UserHandlers) VerifyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := h.users.Verify(c.Request.Context(), actor(c), c.Param("id"))
		if httperr.Failed(c, err) {
			return
		}
		c.JSON(http.StatusOK, user)
	}
}

func actor(c *gin.Context) services.Actor {
	return services.ActorFromUser(middleware.CurrentUser(c))
}
