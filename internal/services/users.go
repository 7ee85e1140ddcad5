package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/MiRedo238/Chemsphere-sub000/internal/auth"
	"github.com/MiRedo238/Chemsphere-sub000/internal/auth/oidc"
	"github.com/MiRedo238/Chemsphere-sub000/internal/cache"
	"github.com/MiRedo238/Chemsphere-sub000/internal/config"
	"github.com/MiRedo238/Chemsphere-sub000/internal/db/models"
	"github.com/MiRedo238/Chemsphere-sub000/internal/db/repositories"
)

// ErrSignupDisabled is returned by Signup when self-registration is off.
var ErrSignupDisabled = errors.New("self-registration is disabled")

// UserStore is account persistence. *repositories.UserRepository
// implements it.
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByOIDCSub(ctx context.Context, sub string) (*models.User, error)
	LinkOIDCSub(ctx context.Context, userID, sub string, verified bool) error
	ListUsers(ctx context.Context, limit, offset int) ([]*models.User, int, error)
	UpdateRole(ctx context.Context, userID string, role models.Role) error
	SetActive(ctx context.Context, userID string, active bool) error
	SetVerified(ctx context.Context, userID string, verified bool) error
}

// UserService handles sign-up, sign-in and admin account management.
type UserService struct {
	users  UserStore
	audits AuditWriter
	cfg    config.AuthConfig
	after  afterCommit
}

// NewUserService creates the service.
func NewUserService(users UserStore, audits AuditWriter, cfg config.AuthConfig, invalidator CacheInvalidator, shipper AuditShipper) *UserService {
	return &UserService{
		users:  users,
		audits: audits,
		cfg:    cfg,
		after:  afterCommit{cache: invalidator, shipper: shipper},
	}
}

// SignupInput is a self-registration request.
type SignupInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Signup creates an unverified, active account with the user role. An admin
// verifies it before it can do anything.
func (s *UserService) Signup(ctx context.Context, in SignupInput) (*models.User, error) {
	if !s.cfg.AllowSignup {
		return nil, ErrSignupDisabled
	}
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, invalid("email", "not a valid email address")
	}
	if err := auth.ValidatePassword(in.Password, s.cfg.PasswordMinLength); err != nil {
		return nil, &ValidationError{Field: "password", Err: err}
	}
	existing, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("email %s: %w", email, ErrConflict)
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	username := strings.TrimSpace(in.Username)
	if username == "" {
		username = strings.SplitN(email, "@", 2)[0]
	}
	u := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: &hash,
		Role:         models.RoleUser,
		Active:       true,
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Login checks an email/password pair. Unknown emails and wrong passwords
// both yield auth.ErrInvalidCredentials.
func (s *UserService) Login(ctx context.Context, email, password string) (*models.User, error) {
	u, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, auth.ErrInvalidCredentials
	}
	if err := auth.CheckPassword(u.PasswordHash, password); err != nil {
		return nil, err
	}
	if !u.Active {
		return nil, auth.ErrInactive
	}
	return u, nil
}

// ProvisionOIDC finds or creates the account for a Google identity. A known
// subject signs straight in, a matching email links the subject to that
// account, and anyone else gets a new user account.
func (s *UserService) ProvisionOIDC(ctx context.Context, id *oidc.Identity) (*models.User, error) {
	u, err := s.users.GetUserByOIDCSub(ctx, id.Subject)
	if err != nil {
		return nil, err
	}
	if u != nil {
		return u, nil
	}

	u, err = s.users.GetUserByEmail(ctx, id.Email)
	if err != nil {
		return nil, err
	}
	if u != nil {
		if err := s.users.LinkOIDCSub(ctx, u.ID, id.Subject, id.EmailVerified); err != nil {
			return nil, fmt.Errorf("link google account: %w", err)
		}
		return s.users.GetUserByID(ctx, u.ID)
	}

	sub := id.Subject
	name := strings.TrimSpace(id.Name)
	if name == "" {
		name = strings.SplitN(id.Email, "@", 2)[0]
	}
	u = &models.User{
		Username: name,
		Email:    id.Email,
		OIDCSub:  &sub,
		Role:     models.RoleUser,
		Verified: id.EmailVerified,
		Active:   true,
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// ListUsers returns a page of accounts and the total count.
func (s *UserService) ListUsers(ctx context.Context, limit, offset int) ([]*models.User, int, error) {
	return s.users.ListUsers(ctx, limit, offset)
}

func (s *UserService) target(ctx context.Context, id string) (*models.User, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	u, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, repositories.ErrNotFound
	}
	return u, nil
}

// ChangeRole sets a user's role. Admins cannot demote themselves.
func (s *UserService) ChangeRole(ctx context.Context, actor Actor, id string, role models.Role) (*models.User, error) {
	u, err := s.target(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.ID == id && role != u.Role {
		return nil, invalid("role", "you cannot change your own role")
	}
	if err := s.users.UpdateRole(ctx, id, role); err != nil {
		return nil, err
	}
	entry := actor.audit(models.AuditTypeUser, models.AuditActionRoleChange, u.Email, models.JSONMap{
		"user_id": id,
		"from":    string(u.Role),
		"to":      string(role),
	})
	u.Role = role
	return u, s.record(ctx, entry)
}

// SetActive activates or deactivates an account. Admins cannot deactivate
// themselves.
func (s *UserService) SetActive(ctx context.Context, actor Actor, id string, active bool) (*models.User, error) {
	u, err := s.target(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.ID == id && !active {
		return nil, invalid("active", "you cannot deactivate your own account")
	}
	if err := s.users.SetActive(ctx, id, active); err != nil {
		return nil, err
	}
	entry := actor.audit(models.AuditTypeUser, models.AuditActionStatusChange, u.Email, models.JSONMap{
		"user_id": id,
		"active":  active,
	})
	u.Active = active
	return u, s.record(ctx, entry)
}

// Verify marks an account verified.
func (s *UserService) Verify(ctx context.Context, actor Actor, id string) (*models.User, error) {
	u, err := s.target(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.users.SetVerified(ctx, id, true); err != nil {
		return nil, err
	}
	entry := actor.audit(models.AuditTypeUser, models.AuditActionVerify, u.Email, models.JSONMap{"user_id": id})
	u.Verified = true
	return u, s.record(ctx, entry)
}

func (s *UserService) record(ctx context.Context, entry *models.AuditLog) error {
	err := s.audits.CreateAuditLog(ctx, entry)
	if err != nil {
		entry = nil
		err = fmt.Errorf("%w: %w", ErrAuditNotRecorded, err)
	}
	s.after.run(ctx, entry, cache.SectionAuditLogs)
	return err
}
