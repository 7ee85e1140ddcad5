package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/MiRedo238/Chemsphere-sub000/internal/db/models"
)

const equipmentColumns = `id, name, model, serial_id, status, location,
	purchase_date, warranty_expiration, last_maintenance, next_maintenance,
	condition, created_at, updated_at`

// EquipmentRepository handles equipment database operations
type EquipmentRepository struct {
	db *sqlx.DB
}

// NewEquipmentRepository creates a new EquipmentRepository
func NewEquipmentRepository(db *sqlx.DB) *EquipmentRepository {
	return &EquipmentRepository{db: db}
}

func insertEquipment(ctx context.Context, q sqlx.ExecerContext, e *models.Equipment) error {
	now := time.Now().UTC()
	e.ID = uuid.New().String()
	e.CreatedAt = now
	e.UpdatedAt = now

	query := `
		INSERT INTO equipment (` + equipmentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := q.ExecContext(ctx, query,
		e.ID, e.Name, e.Model, e.SerialID, e.Status, e.Location,
		e.PurchaseDate, e.WarrantyExpiration, e.LastMaintenance, e.NextMaintenance,
		e.Condition, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert equipment %q: %w", e.Name, err)
	}
	return nil
}

// Create inserts one piece of equipment
func (r *EquipmentRepository) Create(ctx context.Context, e *models.Equipment) error {
	return insertEquipment(ctx, r.db, e)
}

// CreateBatch inserts all items in one transaction
func (r *EquipmentRepository) CreateBatch(ctx context.Context, items []*models.Equipment) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	for i, e := range items {
		if err := insertEquipment(ctx, tx, e); err != nil {
			return fmt.Errorf("row %d: %w", i+1, err)
		}
	}
	return tx.Commit()
}

// GetByID retrieves equipment by ID; nil, nil when absent
func (r *EquipmentRepository) GetByID(ctx context.Context, id string) (*models.Equipment, error) {
	var e models.Equipment
	err := r.db.GetContext(ctx, &e, `SELECT `+equipmentColumns+` FROM equipment WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// GetByIDs retrieves the equipment with the given IDs keyed by ID
func (r *EquipmentRepository) GetByIDs(ctx context.Context, ids []string) (map[string]*models.Equipment, error) {
	out := make(map[string]*models.Equipment, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var items []*models.Equipment
	query := `SELECT ` + equipmentColumns + ` FROM equipment WHERE id = ANY($1)`
	if err := r.db.SelectContext(ctx, &items, query, pq.Array(ids)); err != nil {
		return nil, err
	}
	for _, e := range items {
		out[e.ID] = e
	}
	return out, nil
}

// List returns all equipment ordered by name
func (r *EquipmentRepository) List(ctx context.Context) ([]*models.Equipment, error) {
	items := make([]*models.Equipment, 0)
	query := `SELECT ` + equipmentColumns + ` FROM equipment ORDER BY LOWER(name), created_at`
	if err := r.db.SelectContext(ctx, &items, query); err != nil {
		return nil, err
	}
	return items, nil
}

// Update overwrites the editable fields of a piece of equipment
func (r *EquipmentRepository) Update(ctx context.Context, e *models.Equipment) error {
	e.UpdatedAt = time.Now().UTC()
	query := `
		UPDATE equipment SET
			name = $2, model = $3, serial_id = $4, status = $5, location = $6,
			purchase_date = $7, warranty_expiration = $8, last_maintenance = $9,
			next_maintenance = $10, condition = $11, updated_at = $12
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query,
		e.ID, e.Name, e.Model, e.SerialID, e.Status, e.Location,
		e.PurchaseDate, e.WarrantyExpiration, e.LastMaintenance,
		e.NextMaintenance, e.Condition, e.UpdatedAt,
	)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

// Delete removes a piece of equipment
func (r *EquipmentRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM equipment WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}
