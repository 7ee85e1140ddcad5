package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/MiRedo238/Chemsphere-sub000/internal/db/models"
)

var chemicalCols = []string{
	"id", "name", "batch_number", "brand", "physical_state", "unit",
	"initial_quantity", "current_quantity", "expiration_date", "date_of_arrival",
	"safety_class", "location", "ghs_symbols", "opened", "remaining_amount",
	"parent_chemical_id", "created_at", "updated_at",
}

func newChemicalRepo(t *testing.T) (*ChemicalRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock := newMockDB(t)
	return NewChemicalRepository(db), mock
}

func floatPtr(f float64) *float64 { return &f }

func chemicalRow(rows *sqlmock.Rows, id, name string, current float64) *sqlmock.Rows {
	exp := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	return rows.AddRow(id, name, "B-001", "Sigma", "liquid", "mL",
		10.0, current, exp, nil,
		"flammable", "Shelf A", "{Flame,\"Exclamation Mark\"}", false, nil,
		nil, time.Now(), time.Now())
}

// ---------------------------------------------------------------------------
// Create / CreateBatch
// ---------------------------------------------------------------------------

func TestChemicalCreate_Success(t *testing.T) {
	repo, mock := newChemicalRepo(t)
	mock.ExpectExec("INSERT INTO chemicals").
		WillReturnResult(sqlmock.NewResult(1, 1))

	c := &models.Chemical{Name: "Ethanol", PhysicalState: models.PhysicalStateLiquid, SafetyClass: models.SafetyClassFlammable}
	if err := repo.Create(context.Background(), c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.ID == "" {
		t.Error("expected ID to be set")
	}
	if c.GHSSymbols == nil {
		t.Error("expected empty symbol set, got nil")
	}
}

func TestChemicalCreateBatch_RollsBackOnFailure(t *testing.T) {
	repo, mock := newChemicalRepo(t)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO chemicals").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO chemicals").WillReturnError(errDB)
	mock.ExpectRollback()

	err := repo.CreateBatch(context.Background(), []*models.Chemical{
		{Name: "Ethanol"}, {Name: "Acetone"},
	})
	if !errors.Is(err, errDB) {
		t.Fatalf("err = %v, want wrapped errDB", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestChemicalCreateBatch_Commits(t *testing.T) {
	repo, mock := newChemicalRepo(t)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO chemicals").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO chemicals").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	if err := repo.CreateBatch(context.Background(), []*models.Chemical{{Name: "A"}, {Name: "B"}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

// ---------------------------------------------------------------------------
// Reads
// ---------------------------------------------------------------------------

func TestChemicalGetByID_Found(t *testing.T) {
	repo, mock := newChemicalRepo(t)
	mock.ExpectQuery("FROM chemicals WHERE id = \\$1").
		WithArgs("chem-1").
		WillReturnRows(chemicalRow(sqlmock.NewRows(chemicalCols), "chem-1", "Ethanol", 7))

	c, err := repo.GetByID(context.Background(), "chem-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c == nil {
		t.Fatal("expected chemical, got nil")
	}
	if c.CurrentQuantity != 7 {
		t.Errorf("CurrentQuantity = %v, want 7", c.CurrentQuantity)
	}
	want := models.GHSSymbols{models.GHSFlame, models.GHSExclamationMark}
	if len(c.GHSSymbols) != 2 || c.GHSSymbols[0] != want[0] || c.GHSSymbols[1] != want[1] {
		t.Errorf("GHSSymbols = %v, want %v", c.GHSSymbols, want)
	}
}

func TestChemicalGetByID_NotFound(t *testing.T) {
	repo, mock := newChemicalRepo(t)
	mock.ExpectQuery("FROM chemicals WHERE id = \\$1").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(chemicalCols))

	c, err := repo.GetByID(context.Background(), "missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c != nil {
		t.Errorf("expected nil, got %+v", c)
	}
}

func TestChemicalGetByIDs(t *testing.T) {
	repo, mock := newChemicalRepo(t)
	rows := sqlmock.NewRows(chemicalCols)
	chemicalRow(rows, "chem-1", "Ethanol", 7)
	chemicalRow(rows, "chem-2", "Acetone", 3)
	mock.ExpectQuery("FROM chemicals WHERE id = ANY\\(\\$1\\)").WillReturnRows(rows)

	got, err := repo.GetByIDs(context.Background(), []string{"chem-1", "chem-2", "chem-3"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got["chem-2"].Name != "Acetone" {
		t.Errorf("got %v", got)
	}
}

func TestChemicalGetByIDs_EmptyInputSkipsQuery(t *testing.T) {
	repo, mock := newChemicalRepo(t)
	got, err := repo.GetByIDs(context.Background(), nil)
	if err != nil || len(got) != 0 {
		t.Fatalf("got %v, %v", got, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unexpected query: %v", err)
	}
}

func TestChemicalList(t *testing.T) {
	repo, mock := newChemicalRepo(t)
	rows := sqlmock.NewRows(chemicalCols)
	chemicalRow(rows, "chem-1", "Acetone", 3)
	chemicalRow(rows, "chem-2", "Ethanol", 7)
	mock.ExpectQuery("FROM chemicals ORDER BY LOWER\\(name\\)").WillReturnRows(rows)

	chems, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chems) != 2 {
		t.Errorf("len = %d, want 2", len(chems))
	}
}

func TestChemicalListExpiringBetween(t *testing.T) {
	repo, mock := newChemicalRepo(t)
	from := time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 90)
	mock.ExpectQuery("expiration_date >= \\$1 AND expiration_date <= \\$2").
		WithArgs(from, to).
		WillReturnRows(chemicalRow(sqlmock.NewRows(chemicalCols), "chem-1", "Ethanol", 7))

	chems, err := repo.ListExpiringBetween(context.Background(), from, to)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chems) != 1 {
		t.Errorf("len = %d, want 1", len(chems))
	}
}

// ---------------------------------------------------------------------------
// Update / Delete
// ---------------------------------------------------------------------------

func TestChemicalUpdate_NotFound(t *testing.T) {
	repo, mock := newChemicalRepo(t)
	mock.ExpectExec("UPDATE chemicals SET").WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), &models.Chemical{ID: "missing", Name: "X"})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestChemicalUpdate_Success(t *testing.T) {
	repo, mock := newChemicalRepo(t)
	mock.ExpectExec("UPDATE chemicals SET").WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Update(context.Background(), &models.Chemical{ID: "chem-1", Name: "Ethanol"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestChemicalDelete(t *testing.T) {
	repo, mock := newChemicalRepo(t)
	mock.ExpectExec("DELETE FROM chemicals WHERE id = \\$1").
		WithArgs("chem-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM chemicals WHERE id = \\$1").
		WithArgs("chem-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.Delete(context.Background(), "chem-1"); err != nil {
		t.Fatalf("first delete: %v", err)
	}
	if err := repo.Delete(context.Background(), "chem-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}

// ---------------------------------------------------------------------------
// StockError
// ---------------------------------------------------------------------------

func TestStockError(t *testing.T) {
	err := error(&StockError{ChemicalID: "chem-1", ChemicalName: "Ethanol", Requested: 5, Available: 2})
	if !errors.Is(err, ErrInsufficientStock) {
		t.Error("expected StockError to match ErrInsufficientStock")
	}
	if got := err.Error(); got != "insufficient stock for Ethanol: 5 requested, 2 available" {
		t.Errorf("Error() = %q", got)
	}
	unknown := &StockError{ChemicalID: "chem-1", Requested: 5, Available: -1}
	if got := unknown.Error(); got != "insufficient stock for chem-1: 5 requested" {
		t.Errorf("Error() = %q", got)
	}
}
