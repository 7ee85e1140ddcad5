// Package services implements the workflows that span more than one
// repository: recording and reversing usage logs, inventory writes with
// their audit trail, bulk CSV imports and exports, and account management.
// Every mutation drops the cache sections it touched and ships its audit
// entry once the database write has committed.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MiRedo238/Chemsphere-sub000/internal/cache"
	"github.com/MiRedo238/Chemsphere-sub000/internal/db/models"
	"github.com/MiRedo238/Chemsphere-sub000/internal/db/repositories"
	"github.com/MiRedo238/Chemsphere-sub000/internal/safego"
)

// ValidationError reports input that was rejected before anything was
// written.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Err.Error()
	}
	return e.Field + ": " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Err: fmt.Errorf(format, args...)}
}

// validID reports whether id is a canonical UUID, the only form a row
// key takes.
func validID(id string) bool {
	if len(id) != 36 {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}

// checkID maps an id that cannot name a row to ErrNotFound.
func checkID(id string) error {
	if !validID(id) {
		return repositories.ErrNotFound
	}
	return nil
}

// ErrConflict is returned when a write would duplicate a unique value.
var ErrConflict = errors.New("already exists")

// ErrAuditNotRecorded wraps a failed audit insert that followed a committed
// write. The write itself stands; callers treat it as success and log it.
var ErrAuditNotRecorded = errors.New("audit entry not recorded")

// Actor is the account a mutation is performed for.
type Actor struct {
	ID   string
	Name string
	Role models.Role
}

// SystemActor is used by the seed command and background jobs.
var SystemActor = Actor{Name: "system", Role: models.RoleSuperAdmin}

// ActorFromUser builds an Actor from the signed-in user.
func ActorFromUser(u *models.User) Actor {
	if u == nil {
		return SystemActor
	}
	name := u.Username
	if name == "" {
		name = u.Email
	}
	return Actor{ID: u.ID, Name: name, Role: u.Role}
}

func (a Actor) audit(typ, action, item string, details models.JSONMap) *models.AuditLog {
	entry := &models.AuditLog{
		Type:     typ,
		Action:   action,
		UserName: a.Name,
		UserRole: string(a.Role),
		ItemName: item,
		Details:  details,
	}
	if a.ID != "" {
		id := a.ID
		entry.UserID = &id
	}
	return entry
}

// CacheInvalidator drops cached snapshots. *cache.Store implements it.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, sections ...cache.Section) error
}

// AuditShipper forwards committed audit entries. *audit.MultiShipper
// implements it.
type AuditShipper interface {
	ShipModel(ctx context.Context, entry *models.AuditLog) error
}

// AuditWriter appends an audit entry outside a workflow transaction.
type AuditWriter interface {
	CreateAuditLog(ctx context.Context, entry *models.AuditLog) error
}

// afterCommit holds the side effects every committed mutation triggers.
// Either collaborator may be nil.
type afterCommit struct {
	cache   CacheInvalidator
	shipper AuditShipper
}

func (h afterCommit) run(ctx context.Context, entry *models.AuditLog, sections ...cache.Section) {
	if h.cache != nil {
		if err := h.cache.Invalidate(ctx, sections...); err != nil {
			slog.Warn("cache invalidation failed", "sections", sections, "error", err)
		}
	}
	if h.shipper != nil && entry != nil {
		shipCtx := context.WithoutCancel(ctx)
		safego.Go("audit-ship", func() {
			if err := h.shipper.ShipModel(shipCtx, entry); err != nil {
				slog.Debug("audit entry not shipped", "id", entry.ID, "error", err)
			}
		})
	}
}

// parseDate accepts YYYY-MM-DD or RFC 3339; nil or blank is nil.
func parseDate(field string, s *string) (*time.Time, error) {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil, nil
	}
	v := strings.TrimSpace(*s)
	if t, err := time.Parse("2006-01-02", v); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, invalid(field, "expected YYYY-MM-DD or RFC 3339 date, got %q", v)
	}
	t = t.UTC()
	return &t, nil
}
