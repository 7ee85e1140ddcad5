package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/MiRedo238/Chemsphere-sub000/internal/db/models"
)

const (
	usageLogColumns      = `id, user_id, user_name, date, notes, location, created_at, updated_at`
	chemicalUsageColumns = `id, usage_log_id, chemical_id, chemical_name, quantity, unit, opened, remaining_amount, opened_chemical_id`
	equipmentLinkColumns = `id, usage_log_id, equipment_id, equipment_name`
)

// UsageLogRepository owns usage logs and their child rows. Every write that
// touches stock runs in a single transaction.
type UsageLogRepository struct {
	db *sqlx.DB
}

// NewUsageLogRepository creates a new UsageLogRepository
func NewUsageLogRepository(db *sqlx.DB) *UsageLogRepository {
	return &UsageLogRepository{db: db}
}

// UsageRecord is everything CreateUsageLog writes in one transaction.
type UsageRecord struct {
	Log *models.UsageLog
	// Opened holds the opened-container record to create for a usage,
	// keyed by the usage's index in Log.Chemicals.
	Opened map[int]*models.Chemical
	Audit  *models.AuditLog
}

// CreateUsageLog decrements stock for every usage, creates the opened
// containers, then inserts the log, its children and the audit entry. A
// usage that would drive stock negative fails with a *StockError and
// nothing is written.
func (r *UsageLogRepository) CreateUsageLog(ctx context.Context, rec UsageRecord) error {
	log := rec.Log
	now := time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	// Lock rows in a stable order so concurrent logs cannot deadlock.
	order := make([]int, len(log.Chemicals))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return chemicalKey(log.Chemicals[order[a]]) < chemicalKey(log.Chemicals[order[b]])
	})
	for _, i := range order {
		u := log.Chemicals[i]
		if u.ChemicalID == nil {
			return fmt.Errorf("chemical usage %d has no chemical", i+1)
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE chemicals
			SET current_quantity = current_quantity - $1, updated_at = $2
			WHERE id = $3 AND current_quantity >= $1
		`, u.Quantity, now, *u.ChemicalID)
		if err != nil {
			return fmt.Errorf("decrement %s: %w", u.ChemicalName, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return &StockError{ChemicalID: *u.ChemicalID, ChemicalName: u.ChemicalName, Requested: u.Quantity, Available: -1}
		}
	}

	for i := range log.Chemicals {
		opened, ok := rec.Opened[i]
		if !ok {
			continue
		}
		if err := insertChemical(ctx, tx, opened); err != nil {
			return err
		}
		id := opened.ID
		log.Chemicals[i].OpenedChemicalID = &id
	}

	log.ID = uuid.New().String()
	if log.Date.IsZero() {
		log.Date = now
	}
	log.CreatedAt = now
	log.UpdatedAt = now
	_, err = tx.ExecContext(ctx, `
		INSERT INTO usage_logs (`+usageLogColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, log.ID, log.UserID, log.UserName, log.Date, log.Notes, log.Location, log.CreatedAt, log.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert usage log: %w", err)
	}

	for i := range log.Chemicals {
		u := &log.Chemicals[i]
		u.ID = uuid.New().String()
		u.UsageLogID = log.ID
		_, err := tx.ExecContext(ctx, `
			INSERT INTO chemical_usage (`+chemicalUsageColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, u.ID, u.UsageLogID, u.ChemicalID, u.ChemicalName, u.Quantity, u.Unit,
			u.Opened, u.RemainingAmount, u.OpenedChemicalID)
		if err != nil {
			return fmt.Errorf("insert chemical usage: %w", err)
		}
	}

	for i := range log.Equipment {
		l := &log.Equipment[i]
		l.ID = uuid.New().String()
		l.UsageLogID = log.ID
		_, err := tx.ExecContext(ctx, `
			INSERT INTO usage_log_equipment (`+equipmentLinkColumns+`)
			VALUES ($1, $2, $3, $4)
		`, l.ID, l.UsageLogID, l.EquipmentID, l.EquipmentName)
		if err != nil {
			return fmt.Errorf("insert equipment link: %w", err)
		}
	}

	if rec.Audit != nil {
		if err := insertAuditLog(ctx, tx, rec.Audit); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit usage log: %w", err)
	}
	return nil
}

func chemicalKey(u models.ChemicalUsage) string {
	if u.ChemicalID == nil {
		return ""
	}
	return *u.ChemicalID
}

// DeleteUsageLog removes a log with its children and returns every consumed
// quantity to its chemical. auditFor, when non-nil, builds the audit entry
// from the deleted log. A missing log yields ErrNotFound, so a second
// delete of the same log never restores stock twice.
func (r *UsageLogRepository) DeleteUsageLog(ctx context.Context, id string, auditFor func(*models.UsageLog) *models.AuditLog) (*models.UsageLog, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var log models.UsageLog
	err = tx.GetContext(ctx, &log, `SELECT `+usageLogColumns+` FROM usage_logs WHERE id = $1 FOR UPDATE`, id)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := loadChildren(ctx, tx, []*models.UsageLog{&log}); err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM usage_log_equipment WHERE usage_log_id = $1`, id); err != nil {
		return nil, fmt.Errorf("delete equipment links: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM chemical_usage WHERE usage_log_id = $1`, id); err != nil {
		return nil, fmt.Errorf("delete chemical usage: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM usage_logs WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("delete usage log: %w", err)
	}
	if err := expectOneRow(res); err != nil {
		return nil, err
	}

	restore := models.Restorations(log.Chemicals)
	ids := make([]string, 0, len(restore))
	for cid := range restore {
		ids = append(ids, cid)
	}
	sort.Strings(ids)
	now := time.Now().UTC()
	for _, cid := range ids {
		_, err := tx.ExecContext(ctx, `
			UPDATE chemicals
			SET current_quantity = current_quantity + $1, updated_at = $2
			WHERE id = $3
		`, restore[cid], now, cid)
		if err != nil {
			return nil, fmt.Errorf("restore chemical %s: %w", cid, err)
		}
	}

	if auditFor != nil {
		if entry := auditFor(&log); entry != nil {
			if err := insertAuditLog(ctx, tx, entry); err != nil {
				return nil, err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit usage log delete: %w", err)
	}
	return &log, nil
}

// UpdateUsageLog changes the notes and location of a log. Chemical and
// equipment rows are never touched here.
func (r *UsageLogRepository) UpdateUsageLog(ctx context.Context, id, notes, location string, audit *models.AuditLog) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx,
		`UPDATE usage_logs SET notes = $2, location = $3, updated_at = $4 WHERE id = $1`,
		id, notes, location, time.Now().UTC())
	if err != nil {
		return err
	}
	if err := expectOneRow(res); err != nil {
		return err
	}
	if audit != nil {
		if err := insertAuditLog(ctx, tx, audit); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetUsageLog retrieves a log with its children; nil, nil when absent
func (r *UsageLogRepository) GetUsageLog(ctx context.Context, id string) (*models.UsageLog, error) {
	var log models.UsageLog
	err := r.db.GetContext(ctx, &log, `SELECT `+usageLogColumns+` FROM usage_logs WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := loadChildren(ctx, r.db, []*models.UsageLog{&log}); err != nil {
		return nil, err
	}
	return &log, nil
}

// ListUsageLogs returns every log, newest first, with children attached
func (r *UsageLogRepository) ListUsageLogs(ctx context.Context) ([]*models.UsageLog, error) {
	logs := make([]*models.UsageLog, 0)
	query := `SELECT ` + usageLogColumns + ` FROM usage_logs ORDER BY date DESC, created_at DESC`
	if err := r.db.SelectContext(ctx, &logs, query); err != nil {
		return nil, err
	}
	if err := loadChildren(ctx, r.db, logs); err != nil {
		return nil, err
	}
	return logs, nil
}

// loadChildren attaches chemical usages and equipment links to logs using
// one query per child table.
func loadChildren(ctx context.Context, q sqlx.QueryerContext, logs []*models.UsageLog) error {
	if len(logs) == 0 {
		return nil
	}
	ids := make([]string, len(logs))
	byID := make(map[string]*models.UsageLog, len(logs))
	for i, l := range logs {
		ids[i] = l.ID
		byID[l.ID] = l
		l.Chemicals = make([]models.ChemicalUsage, 0)
		l.Equipment = make([]models.EquipmentLink, 0)
	}

	var usages []models.ChemicalUsage
	err := sqlx.SelectContext(ctx, q, &usages,
		`SELECT `+chemicalUsageColumns+` FROM chemical_usage WHERE usage_log_id = ANY($1) ORDER BY chemical_name`,
		pq.Array(ids))
	if err != nil {
		return fmt.Errorf("load chemical usage: %w", err)
	}
	for _, u := range usages {
		if l, ok := byID[u.UsageLogID]; ok {
			l.Chemicals = append(l.Chemicals, u)
		}
	}

	var links []models.EquipmentLink
	err = sqlx.SelectContext(ctx, q, &links,
		`SELECT `+equipmentLinkColumns+` FROM usage_log_equipment WHERE usage_log_id = ANY($1) ORDER BY equipment_name`,
		pq.Array(ids))
	if err != nil {
		return fmt.Errorf("load equipment links: %w", err)
	}
	for _, e := range links {
		if l, ok := byID[e.UsageLogID]; ok {
			l.Equipment = append(l.Equipment, e)
		}
	}
	return nil
}
