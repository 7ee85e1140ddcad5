// auth.go implements HTTP handlers for password sign-up and sign-in, Google
// sign-in over OIDC, token refresh, and the current-user endpoint.
package admin

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/MiRedo238/Chemsphere-sub000/internal/api/httperr"
	"github.com/MiRedo238/Chemsphere-sub000/internal/auth"
	"github.com/MiRedo238/Chemsphere-sub000/internal/auth/oidc"
	"github.com/MiRedo238/Chemsphere-sub000/internal/config"
	"github.com/MiRedo238/Chemsphere-sub000/internal/db/models"
	"github.com/MiRedo238/Chemsphere-sub000/internal/middleware"
	"github.com/MiRedo238/Chemsphere-sub000/internal/services"
)

// Accounts is the sign-in side of the user service.
// *services.UserService implements it.
type Accounts interface {
	Signup(ctx context.Context, in services.SignupInput) (*models.User, error)
	Login(ctx context.Context, email, password string) (*models.User, error)
	ProvisionOIDC(ctx context.Context, id *oidc.Identity) (*models.User, error)
}

// GoogleSignIn runs the OIDC redirect round trip. *oidc.Provider implements it.
type GoogleSignIn interface {
	AuthURL(state string) string
	Authenticate(ctx context.Context, code string) (*oidc.Identity, error)
}

// AuthHandlers handles authentication-related endpoints
type AuthHandlers struct {
	cfg      *config.Config
	accounts Accounts
	google   GoogleSignIn
	states   *oidc.StateStore
}

// NewAuthHandlers creates a new AuthHandlers instance. google may be nil when
// Google sign-in is not configured.
func NewAuthHandlers(cfg *config.Config, accounts Accounts, google GoogleSignIn) *AuthHandlers {
	return &AuthHandlers{
		cfg:      cfg,
		accounts: accounts,
		google:   google,
		states:   oidc.NewStateStore(oidc.StateTTL),
	}
}

func (h *AuthHandlers) sessionTTL() time.Duration {
	if h.cfg.Auth.SessionTTL > 0 {
		return h.cfg.Auth.SessionTTL
	}
	return 24 * time.Hour
}

// issue writes a session token for user.
func (h *AuthHandlers) issue(c *gin.Context, status int, user *models.User) {
	ttl := h.sessionTTL()
	token, err := auth.GenerateJWT(user.ID, user.Email, ttl)
	if err != nil {
		httperr.Write(c, fmt.Errorf("sign session token: %w", err))
		return
	}
	c.JSON(status, gin.H{
		"token":      token,
		"expires_in": int(ttl.Seconds()),
		"user":       user,
	})
}

// LoginRequest is the body of a password sign-in.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// @Summary      Register an account
// @Description  Creates an unverified user account. An admin must verify it before it can use the inventory.
// @Tags         Authentication
// @Accept       json
// @Produce      json
// @Success      201  {object}  map[string]interface{}  "token, expires_in, user"
// @Failure      400  {object}  map[string]interface{}  "Invalid email or password"
// @Failure      403  {object}  map[string]interface{}  "Self-registration is disabled"
// @Failure      409  {object}  map[string]interface{}  "Email already registered"
// @Router       /api/v1/auth/signup [post]
// SignupHandler registers a new account and signs it in
// POST /api/v1/auth/signup
func (h *AuthHandlers) SignupHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var in services.SignupInput
		if err := c.ShouldBindJSON(&in); err != nil {
			httperr.BadRequest(c, "Invalid request body", err.Error())
			return
		}
		user, err := h.accounts.Signup(c.Request.Context(), in)
		if err != nil {
			httperr.Write(c, err)
			return
		}
		slog.Info("account registered", "user_id", user.ID)
		h.issue(c, http.StatusCreated, user)
	}
}

// @Summary      Sign in with email and password
// @Tags         Authentication
// @Accept       json
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "token, expires_in, user"
// @Failure      401  {object}  map[string]interface{}  "Invalid email or password"
// @Failure      403  {object}  map[string]interface{}  "Account is deactivated"
// @Failure      429  {object}  map[string]interface{}  "Too many attempts"
// @Router       /api/v1/auth/login [post]
// LoginHandler checks a password and issues a session token
// POST /api/v1/auth/login
func (h *AuthHandlers) LoginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			httperr.BadRequest(c, "Email and password are required")
			return
		}
		email := strings.ToLower(strings.TrimSpace(req.Email))
		user, err := h.accounts.Login(c.Request.Context(), email, req.Password)
		if err != nil {
			httperr.Write(c, err)
			return
		}
		h.issue(c, http.StatusOK, user)
	}
}

// GoogleLoginHandler redirects the browser to Google to begin sign-in
// GET /api/v1/auth/google/login
func (h *AuthHandlers) GoogleLoginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.google == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Google sign-in is not configured"})
			return
		}
		state, err := h.states.Issue()
		if err != nil {
			httperr.Write(c, fmt.Errorf("generate oauth state: %w", err))
			return
		}
		c.Redirect(http.StatusFound, h.google.AuthURL(state))
	}
}

// GoogleCallbackHandler completes Google sign-in and hands the session token
// to the frontend's /auth/callback page. Failures are reported to the same
// page as error query parameters.
// GET /api/v1/auth/google/callback?code=...&state=...
func (h *AuthHandlers) GoogleCallbackHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		frontendBase := strings.TrimRight(h.cfg.Server.GetFrontendURL(), "/")

		callbackError := func(errCode, description string) {
			target := fmt.Sprintf(
				"%s/auth/callback?error=%s&error_description=%s",
				frontendBase,
				url.QueryEscape(errCode),
				url.QueryEscape(description),
			)
			c.Redirect(http.StatusFound, target)
		}

		if h.google == nil {
			callbackError("provider_not_configured", "Google sign-in is not configured.")
			return
		}
		if e := c.Query("error"); e != "" {
			callbackError(e, "Google sign-in was cancelled or refused.")
			return
		}
		if !h.states.Consume(c.Query("state")) {
			callbackError("invalid_state", "Login session expired or is invalid. Please try logging in again.")
			return
		}

		ctx := c.Request.Context()
		id, err := h.google.Authenticate(ctx, c.Query("code"))
		if err != nil {
			slog.Warn("google sign-in failed", "error", err)
			callbackError("token_exchange_failed", "Google did not confirm your identity.")
			return
		}
		user, err := h.accounts.ProvisionOIDC(ctx, id)
		if err != nil {
			slog.Error("failed to provision google account", "error", err)
			callbackError("user_creation_failed", "Failed to look up or create your account.")
			return
		}
		if !user.Active {
			callbackError("account_inactive", "Your account has been deactivated.")
			return
		}

		token, err := auth.GenerateJWT(user.ID, user.Email, h.sessionTTL())
		if err != nil {
			callbackError("jwt_failed", "Failed to generate an authentication token.")
			return
		}
		c.Redirect(http.StatusFound, fmt.Sprintf("%s/auth/callback?token=%s", frontendBase, url.QueryEscape(token)))
	}
}

// RefreshHandler issues a new token for the signed-in user
// POST /api/v1/auth/refresh
// Authorization: Bearer <existing_jwt>
func (h *AuthHandlers) RefreshHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := middleware.CurrentUser(c)
		if user == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
			return
		}
		h.issue(c, http.StatusOK, user)
	}
}

// MeHandler returns the signed-in user and what their role allows
// GET /api/v1/auth/me
func (h *AuthHandlers) MeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := middleware.CurrentUser(c)
		if user == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
			return
		}
		allowed := make([]auth.Action, 0)
		if user.Active && user.Verified {
			for _, a := range auth.AllActions() {
				if auth.Can(user.Role, a) {
					allowed = append(allowed, a)
				}
			}
		}
		c.JSON(http.StatusOK, gin.H{
			"user":            user,
			"allowed_actions": allowed,
		})
	}
}
