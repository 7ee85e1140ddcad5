package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/MiRedo238/Chemsphere-sub000/internal/db/models"
)

const auditColumns = `id, type, action, user_id, user_name, user_role, item_name, details, created_at`

// AuditRepository handles audit log database operations
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// AuditFilter narrows ListAuditLogs. Zero values are ignored.
type AuditFilter struct {
	Type   string
	Action string
	UserID string
	Since  *time.Time
	Until  *time.Time
}

// insertAuditLog writes an entry through q so mutations can record their
// audit row inside the same transaction.
func insertAuditLog(ctx context.Context, q sqlx.ExecerContext, log *models.AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.New().String()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO audit_logs (` + auditColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := q.ExecContext(ctx, query,
		log.ID, log.Type, log.Action, log.UserID, log.UserName,
		log.UserRole, log.ItemName, log.Details, log.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

// CreateAuditLog creates a new audit log entry
func (r *AuditRepository) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	return insertAuditLog(ctx, r.db, log)
}

// ListAuditLogs retrieves audit logs newest first, with optional filtering
func (r *AuditRepository) ListAuditLogs(ctx context.Context, f AuditFilter, limit, offset int) ([]*models.AuditLog, int, error) {
	var conditions []string
	var args []interface{}
	argNum := 1

	if f.Type != "" {
		conditions = append(conditions, fmt.Sprintf("type = $%d", argNum))
		args = append(args, f.Type)
		argNum++
	}
	if f.Action != "" {
		conditions = append(conditions, fmt.Sprintf("action = $%d", argNum))
		args = append(args, f.Action)
		argNum++
	}
	if f.UserID != "" {
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", argNum))
		args = append(args, f.UserID)
		argNum++
	}
	if f.Since != nil {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", argNum))
		args = append(args, *f.Since)
		argNum++
	}
	if f.Until != nil {
		conditions = append(conditions, fmt.Sprintf("created_at <= $%d", argNum))
		args = append(args, *f.Until)
		argNum++
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM audit_logs"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count audit logs: %w", err)
	}

	query := fmt.Sprintf("SELECT %s FROM audit_logs%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		auditColumns, where, argNum, argNum+1)
	args = append(args, limit, offset)

	logs := make([]*models.AuditLog, 0)
	if err := r.db.SelectContext(ctx, &logs, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list audit logs: %w", err)
	}
	return logs, total, nil
}

// ListRecent returns the newest entries, used to warm the cache.
func (r *AuditRepository) ListRecent(ctx context.Context, limit int) ([]*models.AuditLog, error) {
	logs := make([]*models.AuditLog, 0)
	query := `SELECT ` + auditColumns + ` FROM audit_logs ORDER BY created_at DESC LIMIT $1`
	if err := r.db.SelectContext(ctx, &logs, query, limit); err != nil {
		return nil, err
	}
	return logs, nil
}
