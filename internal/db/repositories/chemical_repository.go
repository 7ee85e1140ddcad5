// Package repositories implements the data access layer for ChemSphere.
// Each repository type owns the SQL for one entity; handlers and services
// never issue SQL directly.
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

const chemicalColumns = `id, name, batch_number, brand, physical_state, unit,
	initial_quantity, current_quantity, expiration_date, date_of_arrival,
	safety_class, location, ghs_symbols, opened, remaining_amount,
	parent_chemical_id, created_at, updated_at`

// ChemicalRepository handles chemical database operations
type ChemicalRepository struct {
	db *sqlx.DB
}

// NewChemicalRepository creates a new ChemicalRepository
func NewChemicalRepository(db *sqlx.DB) *ChemicalRepository {
	return &ChemicalRepository{db: db}
}

// insertChemical assigns an ID and timestamps to c and inserts it through q,
// which may be the pool or an open transaction.
func insertChemical(ctx context.Context, q sqlx.ExecerContext, c *models.Chemical) error {
	now := time.Now().UTC()
	c.ID = uuid.New().String()
	c.CreatedAt = now
	c.UpdatedAt = now
	if c.GHSSymbols == nil {
		c.GHSSymbols = models.GHSSymbols{}
	}

	query := `
		INSERT INTO chemicals (` + chemicalColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`
	_, err := q.ExecContext(ctx, query,
		c.ID, c.Name, c.BatchNumber, c.Brand, c.PhysicalState, c.Unit,
		c.InitialQuantity, c.CurrentQuantity, c.ExpirationDate, c.DateOfArrival,
		c.SafetyClass, c.Location, c.GHSSymbols, c.Opened, c.RemainingAmount,
		c.ParentChemicalID, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert chemical %q: %w", c.Name, err)
	}
	return nil
}

// Create inserts a single chemical
func (r *ChemicalRepository) Create(ctx context.Context, c *models.Chemical) error {
	return insertChemical(ctx, r.db, c)
}

// CreateBatch inserts every chemical in one transaction; one failing row
// rolls back the whole batch.
func (r *ChemicalRepository) CreateBatch(ctx context.Context, chems []*models.Chemical) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	for i, c := range chems {
		if err := insertChemical(ctx, tx, c); err != nil {
			return fmt.Errorf("row %d: %w", i+1, err)
		}
	}
	return tx.Commit()
}

// GetByID retrieves a chemical by ID; nil, nil when absent
func (r *ChemicalRepository) GetByID(ctx context.Context, id string) (*models.Chemical, error) {
	var c models.Chemical
	query := `SELECT ` + chemicalColumns + ` FROM chemicals WHERE id = $1`
	err := r.db.GetContext(ctx, &c, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetByIDs retrieves the chemicals with the given IDs keyed by ID. Missing
// IDs are simply absent from the map.
func (r *ChemicalRepository) GetByIDs(ctx context.Context, ids []string) (map[string]*models.Chemical, error) {
	out := make(map[string]*models.Chemical, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var chems []*models.Chemical
	query := `SELECT ` + chemicalColumns + ` FROM chemicals WHERE id = ANY($1)`
	if err := r.db.SelectContext(ctx, &chems, query, pq.Array(ids)); err != nil {
		return nil, err
	}
	for _, c := range chems {
		out[c.ID] = c
	}
	return out, nil
}

// List returns every chemical ordered by name
func (r *ChemicalRepository) List(ctx context.Context) ([]*models.Chemical, error) {
	chems := make([]*models.Chemical, 0)
	query := `SELECT ` + chemicalColumns + ` FROM chemicals ORDER BY LOWER(name), created_at`
	if err := r.db.SelectContext(ctx, &chems, query); err != nil {
		return nil, err
	}
	return chems, nil
}

// ListExpiringBetween returns chemicals whose expiration date falls in
// [from, to], soonest first.
func (r *ChemicalRepository) ListExpiringBetween(ctx context.Context, from, to time.Time) ([]*models.Chemical, error) {
	chems := make([]*models.Chemical, 0)
	query := `
		SELECT ` + chemicalColumns + `
		FROM chemicals
		WHERE expiration_date IS NOT NULL
		  AND expiration_date >= $1
		  AND expiration_date <= $2
		ORDER BY expiration_date ASC, LOWER(name)
	`
	if err := r.db.SelectContext(ctx, &chems, query, from, to); err != nil {
		return nil, err
	}
	return chems, nil
}

// Update overwrites the editable fields of a chemical
func (r *ChemicalRepository) Update(ctx context.Context, c *models.Chemical) error {
	c.UpdatedAt = time.Now().UTC()
	if c.GHSSymbols == nil {
		c.GHSSymbols = models.GHSSymbols{}
	}
	query := `
		UPDATE chemicals SET
			name = $2, batch_number = $3, brand = $4, physical_state = $5, unit = $6,
			initial_quantity = $7, current_quantity = $8, expiration_date = $9,
			date_of_arrival = $10, safety_class = $11, location = $12, ghs_symbols = $13,
			opened = $14, remaining_amount = $15, updated_at = $16
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query,
		c.ID, c.Name, c.BatchNumber, c.Brand, c.PhysicalState, c.Unit,
		c.InitialQuantity, c.CurrentQuantity, c.ExpirationDate,
		c.DateOfArrival, c.SafetyClass, c.Location, c.GHSSymbols,
		c.Opened, c.RemainingAmount, c.UpdatedAt,
	)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

// Delete removes a chemical. Usage rows keep their recorded name; their
// chemical reference is cleared by the foreign key.
func (r *ChemicalRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM chemicals WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

// expectOneRow maps a zero rows-affected result to ErrNotFound.
func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
