package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/MiRedo238/Chemsphere-sub000/internal/cache"
	"github.com/MiRedo238/Chemsphere-sub000/internal/csvio"
	"github.com/MiRedo238/Chemsphere-sub000/internal/db/models"
	"github.com/MiRedo238/Chemsphere-sub000/internal/db/repositories"
	"github.com/MiRedo238/Chemsphere-sub000/internal/storage"
	"github.com/MiRedo238/Chemsphere-sub000/internal/telemetry"
)

// ErrArchiveDisabled is returned by Archive when no storage backend is set.
var ErrArchiveDisabled = errors.New("export archiving is not configured")

// ChemicalStore is chemical persistence. *repositories.ChemicalRepository
// implements it.
type ChemicalStore interface {
	Create(ctx context.Context, c *models.Chemical) error
	CreateBatch(ctx context.Context, chems []*models.Chemical) error
	GetByID(ctx context.Context, id string) (*models.Chemical, error)
	Update(ctx context.Context, c *models.Chemical) error
	Delete(ctx context.Context, id string) error
}

// EquipmentStore is equipment persistence. *repositories.EquipmentRepository
// implements it.
type EquipmentStore interface {
	Create(ctx context.Context, e *models.Equipment) error
	CreateBatch(ctx context.Context, items []*models.Equipment) error
	GetByID(ctx context.Context, id string) (*models.Equipment, error)
	Update(ctx context.Context, e *models.Equipment) error
	Delete(ctx context.Context, id string) error
}

// Snapshots serves the cached collections exports are built from.
// *cache.Store implements it.
type Snapshots interface {
	Chemicals(ctx context.Context) ([]*models.Chemical, error)
	Equipment(ctx context.Context) ([]*models.Equipment, error)
	UsageLogs(ctx context.Context) ([]*models.UsageLog, error)
}

// Entity names an exportable collection.
type Entity string

const (
	EntityChemicals Entity = "chemicals"
	EntityEquipment Entity = "equipment"
	EntityUsageLogs Entity = "usage_logs"
)

// ChemicalInput is the writable form of a chemical.
type ChemicalInput struct {
	Name          string               `json:"name"`
	BatchNumber   string               `json:"batch_number"`
	Brand         string               `json:"brand"`
	PhysicalState models.PhysicalState `json:"physical_state"`
	Unit          string               `json:"unit"`
	// InitialQuantity is left unchanged on update when nil.
	InitialQuantity *float64 `json:"initial_quantity"`
	// CurrentQuantity defaults to the initial quantity on create and is
	// left unchanged on update when nil.
	CurrentQuantity *float64           `json:"current_quantity"`
	ExpirationDate  *string            `json:"expiration_date"`
	DateOfArrival   *string            `json:"date_of_arrival"`
	SafetyClass     models.SafetyClass `json:"safety_class"`
	Location        string             `json:"location"`
	GHSSymbols      []string           `json:"ghs_symbols"`
	Opened          bool               `json:"opened"`
	RemainingAmount *float64           `json:"remaining_amount"`
}

func (in *ChemicalInput) apply(c *models.Chemical, creating bool) error {
	c.Name = strings.TrimSpace(in.Name)
	c.BatchNumber = strings.TrimSpace(in.BatchNumber)
	c.Brand = strings.TrimSpace(in.Brand)
	c.Unit = strings.TrimSpace(in.Unit)
	c.Location = strings.TrimSpace(in.Location)
	c.Opened = in.Opened
	c.RemainingAmount = in.RemainingAmount

	c.PhysicalState = models.PhysicalState(strings.ToLower(string(in.PhysicalState)))
	if c.PhysicalState == "" {
		c.PhysicalState = models.PhysicalStateLiquid
	}
	c.SafetyClass = models.SafetyClass(strings.ToLower(string(in.SafetyClass)))
	if c.SafetyClass == "" {
		c.SafetyClass = models.SafetyClassSafe
	}

	if in.InitialQuantity != nil {
		c.InitialQuantity = *in.InitialQuantity
	}
	switch {
	case in.CurrentQuantity != nil:
		c.CurrentQuantity = *in.CurrentQuantity
	case creating:
		c.CurrentQuantity = c.InitialQuantity
	}

	var err error
	if c.ExpirationDate, err = parseDate("expiration_date", in.ExpirationDate); err != nil {
		return err
	}
	if c.DateOfArrival, err = parseDate("date_of_arrival", in.DateOfArrival); err != nil {
		return err
	}
	if c.GHSSymbols, err = models.ParseGHSSymbols(in.GHSSymbols); err != nil {
		return &ValidationError{Field: "ghs_symbols", Err: err}
	}
	if err := c.Validate(); err != nil {
		return &ValidationError{Err: err}
	}
	return nil
}

// EquipmentInput is the writable form of a piece of equipment.
type EquipmentInput struct {
	Name               string  `json:"name"`
	Model              string  `json:"model"`
	SerialID           string  `json:"serial_id"`
	Status             string  `json:"status"`
	Location           string  `json:"location"`
	PurchaseDate       *string `json:"purchase_date"`
	WarrantyExpiration *string `json:"warranty_expiration"`
	LastMaintenance    *string `json:"last_maintenance"`
	NextMaintenance    *string `json:"next_maintenance"`
	Condition          string  `json:"condition"`
}

func (in *EquipmentInput) apply(e *models.Equipment) error {
	e.Name = strings.TrimSpace(in.Name)
	e.Model = strings.TrimSpace(in.Model)
	e.SerialID = strings.TrimSpace(in.SerialID)
	e.Location = strings.TrimSpace(in.Location)
	e.Condition = strings.TrimSpace(in.Condition)

	e.Status = models.EquipmentAvailable
	if strings.TrimSpace(in.Status) != "" {
		st, err := models.ParseEquipmentStatus(in.Status)
		if err != nil {
			return &ValidationError{Field: "status", Err: err}
		}
		e.Status = st
	}

	var err error
	if e.PurchaseDate, err = parseDate("purchase_date", in.PurchaseDate); err != nil {
		return err
	}
	if e.WarrantyExpiration, err = parseDate("warranty_expiration", in.WarrantyExpiration); err != nil {
		return err
	}
	if e.LastMaintenance, err = parseDate("last_maintenance", in.LastMaintenance); err != nil {
		return err
	}
	if e.NextMaintenance, err = parseDate("next_maintenance", in.NextMaintenance); err != nil {
		return err
	}
	if err := e.Validate(); err != nil {
		return &ValidationError{Err: err}
	}
	return nil
}

// InventoryService owns chemical and equipment writes, bulk imports and
// exports.
type InventoryService struct {
	chemicals ChemicalStore
	equipment EquipmentStore
	audits    AuditWriter
	snapshots Snapshots
	archive   storage.Storage
	after     afterCommit
	now       func() time.Time
}

// NewInventoryService creates the service. archive may be nil, which
// disables Archive.
func NewInventoryService(chemicals ChemicalStore, equipment EquipmentStore, audits AuditWriter, snapshots Snapshots, archive storage.Storage, invalidator CacheInvalidator, shipper AuditShipper) *InventoryService {
	return &InventoryService{
		chemicals: chemicals,
		equipment: equipment,
		audits:    audits,
		snapshots: snapshots,
		archive:   archive,
		after:     afterCommit{cache: invalidator, shipper: shipper},
		now:       time.Now,
	}
}

// record appends an audit entry for a committed write and runs the
// post-commit hooks. A failed audit insert is returned, the write itself
// stays.
func (s *InventoryService) record(ctx context.Context, entry *models.AuditLog, sections ...cache.Section) error {
	err := s.audits.CreateAuditLog(ctx, entry)
	if err != nil {
		entry = nil
		err = fmt.Errorf("%w: %w", ErrAuditNotRecorded, err)
	}
	s.after.run(ctx, entry, append(sections, cache.SectionAuditLogs)...)
	return err
}

// GetChemical returns a chemical or ErrNotFound.
func (s *InventoryService) GetChemical(ctx context.Context, id string) (*models.Chemical, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	c, err := s.chemicals.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, repositories.ErrNotFound
	}
	return c, nil
}

// CreateChemical validates and stores a new chemical.
func (s *InventoryService) CreateChemical(ctx context.Context, actor Actor, in ChemicalInput) (*models.Chemical, error) {
	c := &models.Chemical{}
	if err := in.apply(c, true); err != nil {
		return nil, err
	}
	if err := s.chemicals.Create(ctx, c); err != nil {
		return nil, err
	}
	entry := actor.audit(models.AuditTypeChemical, models.AuditActionCreate, c.Name, models.JSONMap{
		"chemical_id": c.ID,
		"quantity":    c.CurrentQuantity,
		"unit":        c.Unit,
	})
	return c, s.record(ctx, entry, cache.SectionChemicals)
}

// UpdateChemical replaces the editable fields of a chemical.
func (s *InventoryService) UpdateChemical(ctx context.Context, actor Actor, id string, in ChemicalInput) (*models.Chemical, error) {
	c, err := s.GetChemical(ctx, id)
	if err != nil {
		return nil, err
	}
	before := c.CurrentQuantity
	if err := in.apply(c, false); err != nil {
		return nil, err
	}
	if err := s.chemicals.Update(ctx, c); err != nil {
		return nil, err
	}
	details := models.JSONMap{"chemical_id": c.ID}
	if before != c.CurrentQuantity {
		details["previous_quantity"] = before
		details["quantity"] = c.CurrentQuantity
	}
	entry := actor.audit(models.AuditTypeChemical, models.AuditActionUpdate, c.Name, details)
	return c, s.record(ctx, entry, cache.SectionChemicals)
}

// DeleteChemical removes a chemical. Usage history keeps the recorded name.
func (s *InventoryService) DeleteChemical(ctx context.Context, actor Actor, id string) error {
	c, err := s.GetChemical(ctx, id)
	if err != nil {
		return err
	}
	if err := s.chemicals.Delete(ctx, id); err != nil {
		return err
	}
	entry := actor.audit(models.AuditTypeChemical, models.AuditActionDelete, c.Name, models.JSONMap{"chemical_id": id})
	return s.record(ctx, entry, cache.SectionChemicals, cache.SectionUsageLogs)
}

// GetEquipment returns a piece of equipment or ErrNotFound.
func (s *InventoryService) GetEquipment(ctx context.Context, id string) (*models.Equipment, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	e, err := s.equipment.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, repositories.ErrNotFound
	}
	return e, nil
}

// CreateEquipment validates and stores a new piece of equipment.
func (s *InventoryService) CreateEquipment(ctx context.Context, actor Actor, in EquipmentInput) (*models.Equipment, error) {
	e := &models.Equipment{}
	if err := in.apply(e); err != nil {
		return nil, err
	}
	if err := s.equipment.Create(ctx, e); err != nil {
		return nil, err
	}
	entry := actor.audit(models.AuditTypeEquipment, models.AuditActionCreate, e.Name, models.JSONMap{
		"equipment_id": e.ID,
		"status":       string(e.Status),
	})
	return e, s.record(ctx, entry, cache.SectionEquipment)
}

// UpdateEquipment replaces the editable fields of a piece of equipment. A
// status change is audited as such.
func (s *InventoryService) UpdateEquipment(ctx context.Context, actor Actor, id string, in EquipmentInput) (*models.Equipment, error) {
	e, err := s.GetEquipment(ctx, id)
	if err != nil {
		return nil, err
	}
	before := e.Status
	if err := in.apply(e); err != nil {
		return nil, err
	}
	if err := s.equipment.Update(ctx, e); err != nil {
		return nil, err
	}
	action := models.AuditActionUpdate
	details := models.JSONMap{"equipment_id": e.ID}
	if before != e.Status {
		action = models.AuditActionStatusChange
		details["from"] = string(before)
		details["to"] = string(e.Status)
	}
	entry := actor.audit(models.AuditTypeEquipment, action, e.Name, details)
	return e, s.record(ctx, entry, cache.SectionEquipment)
}

// DeleteEquipment removes a piece of equipment.
func (s *InventoryService) DeleteEquipment(ctx context.Context, actor Actor, id string) error {
	e, err := s.GetEquipment(ctx, id)
	if err != nil {
		return err
	}
	if err := s.equipment.Delete(ctx, id); err != nil {
		return err
	}
	entry := actor.audit(models.AuditTypeEquipment, models.AuditActionDelete, e.Name, models.JSONMap{"equipment_id": id})
	return s.record(ctx, entry, cache.SectionEquipment, cache.SectionUsageLogs)
}

// ImportChemicals parses a CSV file and inserts every row in one
// transaction. It returns the number of rows created.
func (s *InventoryService) ImportChemicals(ctx context.Context, actor Actor, r io.Reader) (int, error) {
	chems, err := csvio.ReadChemicals(r)
	if err != nil {
		return 0, &ValidationError{Field: "file", Err: err}
	}
	if len(chems) == 0 {
		return 0, invalid("file", "no rows to import")
	}
	if err := s.chemicals.CreateBatch(ctx, chems); err != nil {
		return 0, err
	}
	telemetry.CSVRowsImportedTotal.WithLabelValues(string(EntityChemicals)).Add(float64(len(chems)))
	entry := actor.audit(models.AuditTypeChemical, models.AuditActionImport, fmt.Sprintf("%d chemicals", len(chems)), models.JSONMap{
		"count": len(chems),
	})
	return len(chems), s.record(ctx, entry, cache.SectionChemicals)
}

// ImportEquipment parses a CSV file and inserts every row in one
// transaction.
func (s *InventoryService) ImportEquipment(ctx context.Context, actor Actor, r io.Reader) (int, error) {
	items, err := csvio.ReadEquipment(r)
	if err != nil {
		return 0, &ValidationError{Field: "file", Err: err}
	}
	if len(items) == 0 {
		return 0, invalid("file", "no rows to import")
	}
	if err := s.equipment.CreateBatch(ctx, items); err != nil {
		return 0, err
	}
	telemetry.CSVRowsImportedTotal.WithLabelValues(string(EntityEquipment)).Add(float64(len(items)))
	entry := actor.audit(models.AuditTypeEquipment, models.AuditActionImport, fmt.Sprintf("%d equipment", len(items)), models.JSONMap{
		"count": len(items),
	})
	return len(items), s.record(ctx, entry, cache.SectionEquipment)
}

// Export writes the current snapshot of entity to w as CSV.
func (s *InventoryService) Export(ctx context.Context, entity Entity, w io.Writer) error {
	switch entity {
	case EntityChemicals:
		chems, err := s.snapshots.Chemicals(ctx)
		if err != nil {
			return err
		}
		return csvio.WriteChemicals(w, chems)
	case EntityEquipment:
		items, err := s.snapshots.Equipment(ctx)
		if err != nil {
			return err
		}
		return csvio.WriteEquipment(w, items)
	case EntityUsageLogs:
		logs, err := s.snapshots.UsageLogs(ctx)
		if err != nil {
			return err
		}
		return csvio.WriteUsageLogs(w, logs)
	}
	return invalid("entity", "unknown export %q", entity)
}

// Archive renders an export and stores it in the configured backend under
// exports/<entity>/<timestamp>.csv.
func (s *InventoryService) Archive(ctx context.Context, entity Entity) (*storage.Object, error) {
	if s.archive == nil {
		return nil, ErrArchiveDisabled
	}
	var buf bytes.Buffer
	if err := s.Export(ctx, entity, &buf); err != nil {
		return nil, err
	}
	return storage.Archive(ctx, s.archive, string(entity), s.now(), buf.Bytes())
}

// Archives lists stored exports, newest first.
func (s *InventoryService) Archives(ctx context.Context) ([]storage.Object, error) {
	if s.archive == nil {
		return nil, ErrArchiveDisabled
	}
	return s.archive.List(ctx, storage.ExportPrefix)
}

// OpenArchive streams a stored export.
func (s *InventoryService) OpenArchive(ctx context.Context, p string) (io.ReadCloser, error) {
	if s.archive == nil {
		return nil, ErrArchiveDisabled
	}
	clean, err := storage.CleanPath(p)
	if err != nil || !strings.HasPrefix(clean, storage.ExportPrefix) {
		return nil, invalid("path", "not an export path")
	}
	return s.archive.Open(ctx, clean)
}
