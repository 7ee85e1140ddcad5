package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/MiRedo238/Chemsphere-sub000/internal/db/models"
)

const userColumns = `id, username, email, password_hash, oidc_sub, role, verified, active, created_at, updated_at`

// UserRepository handles user database operations
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// CreateUser creates a new user. Emails are stored lower-cased.
func (r *UserRepository) CreateUser(ctx context.Context, user *models.User) error {
	user.ID = uuid.New().String()
	user.CreatedAt = time.Now().UTC()
	user.UpdatedAt = user.CreatedAt
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if user.Role == "" {
		user.Role = models.RoleUser
	}

	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.ExecContext(ctx, query,
		user.ID, user.Username, user.Email, user.PasswordHash, user.OIDCSub,
		user.Role, user.Verified, user.Active, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *UserRepository) getOne(ctx context.Context, where string, arg interface{}) (*models.User, error) {
	var u models.User
	err := r.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE `+where, arg)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByID retrieves a user by ID
func (r *UserRepository) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	return r.getOne(ctx, "id = $1", userID)
}

// GetUserByEmail retrieves a user by email, case-insensitively
func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getOne(ctx, "email = $1", strings.ToLower(strings.TrimSpace(email)))
}

// GetUserByOIDCSub retrieves a user by OIDC subject
func (r *UserRepository) GetUserByOIDCSub(ctx context.Context, oidcSub string) (*models.User, error) {
	return r.getOne(ctx, "oidc_sub = $1", oidcSub)
}

// LinkOIDCSub attaches an OIDC subject to an existing account. A verified
// provider email also marks the account verified.
func (r *UserRepository) LinkOIDCSub(ctx context.Context, userID, oidcSub string, verified bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET oidc_sub = $2, verified = verified OR $3, updated_at = $4 WHERE id = $1`,
		userID, oidcSub, verified, time.Now().UTC())
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

// ListUsers returns a page of users ordered by email, plus the total count
func (r *UserRepository) ListUsers(ctx context.Context, limit, offset int) ([]*models.User, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM users`); err != nil {
		return nil, 0, err
	}
	users := make([]*models.User, 0)
	query := `SELECT ` + userColumns + ` FROM users ORDER BY email LIMIT $1 OFFSET $2`
	if err := r.db.SelectContext(ctx, &users, query, limit, offset); err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// UpdateRole changes a user's role
func (r *UserRepository) UpdateRole(ctx context.Context, userID string, role models.Role) error {
	return r.setColumn(ctx, userID, "role", role)
}

// SetActive enables or disables an account
func (r *UserRepository) SetActive(ctx context.Context, userID string, active bool) error {
	return r.setColumn(ctx, userID, "active", active)
}

// SetVerified marks an account verified or unverified
func (r *UserRepository) SetVerified(ctx context.Context, userID string, verified bool) error {
	return r.setColumn(ctx, userID, "verified", verified)
}

// setColumn updates one fixed column; callers pass only literal names.
func (r *UserRepository) setColumn(ctx context.Context, userID, column string, value interface{}) error {
	query := fmt.Sprintf(`UPDATE users SET %s = $2, updated_at = $3 WHERE id = $1`, column)
	res, err := r.db.ExecContext(ctx, query, userID, value, time.Now().UTC())
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

// ListActiveVerifiedAdmins returns the accounts that receive expiration notices
func (r *UserRepository) ListActiveVerifiedAdmins(ctx context.Context) ([]*models.User, error) {
	users := make([]*models.User, 0)
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE role IN ('admin', 'super_admin') AND active AND verified
		ORDER BY email
	`
	if err := r.db.SelectContext(ctx, &users, query); err != nil {
		return nil, err
	}
	return users, nil
}
