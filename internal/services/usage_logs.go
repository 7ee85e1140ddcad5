package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MiRedo238/Chemsphere-sub000/internal/cache"
	"github.com/MiRedo238/Chemsphere-sub000/internal/db/models"
	"github.com/MiRedo238/Chemsphere-sub000/internal/db/repositories"
	"github.com/MiRedo238/Chemsphere-sub000/internal/telemetry"
)

// UsageLogStore is the persistence the usage workflow needs.
// *repositories.UsageLogRepository implements it.
type UsageLogStore interface {
	CreateUsageLog(ctx context.Context, rec repositories.UsageRecord) error
	DeleteUsageLog(ctx context.Context, id string, auditFor func(*models.UsageLog) *models.AuditLog) (*models.UsageLog, error)
	UpdateUsageLog(ctx context.Context, id, notes, location string, audit *models.AuditLog) error
	GetUsageLog(ctx context.Context, id string) (*models.UsageLog, error)
	ListUsageLogs(ctx context.Context) ([]*models.UsageLog, error)
}

// ChemicalLookup resolves chemicals by ID.
type ChemicalLookup interface {
	GetByIDs(ctx context.Context, ids []string) (map[string]*models.Chemical, error)
}

// EquipmentLookup resolves equipment by ID.
type EquipmentLookup interface {
	GetByIDs(ctx context.Context, ids []string) (map[string]*models.Equipment, error)
}

// ChemicalUsageInput is one chemical consumed in a session.
type ChemicalUsageInput struct {
	ChemicalID string  `json:"chemical_id"`
	Quantity   float64 `json:"quantity"`
	// Unit defaults to the chemical's own unit.
	Unit   string `json:"unit"`
	Opened bool   `json:"opened"`
	// RemainingAmount and RemainingLocation describe the opened remainder
	// and are required when Opened is set.
	RemainingAmount   *float64 `json:"remaining_amount"`
	RemainingLocation string   `json:"remaining_location"`
}

// UsageInput is a usage log submission.
type UsageInput struct {
	Date         *time.Time           `json:"date"`
	Location     string               `json:"location"`
	Notes        string               `json:"notes"`
	Chemicals    []ChemicalUsageInput `json:"chemicals"`
	EquipmentIDs []string             `json:"equipment_ids"`
}

// validate checks everything that does not need the database.
func (in *UsageInput) validate() error {
	if len(in.Chemicals) == 0 && len(in.EquipmentIDs) == 0 {
		return invalid("chemicals", "a usage log needs at least one chemical or piece of equipment")
	}
	seen := make(map[string]bool, len(in.Chemicals))
	for i, u := range in.Chemicals {
		field := fmt.Sprintf("chemicals[%d]", i)
		if strings.TrimSpace(u.ChemicalID) == "" {
			return invalid(field+".chemical_id", "is required")
		}
		if !validID(u.ChemicalID) {
			return invalid(field+".chemical_id", "%q is not a chemical id", u.ChemicalID)
		}
		if seen[u.ChemicalID] {
			return invalid(field+".chemical_id", "chemical %s is listed more than once", u.ChemicalID)
		}
		seen[u.ChemicalID] = true
		if u.Quantity <= 0 {
			return invalid(field+".quantity", "must be positive")
		}
		if !models.QuantityFits(u.Quantity) {
			return invalid(field+".quantity", "at most %d decimal places and below %g", models.QuantityScale, models.MaxQuantity)
		}
		if u.Opened {
			if u.RemainingAmount == nil || *u.RemainingAmount <= 0 {
				return invalid(field+".remaining_amount", "an opened container needs a positive remaining amount")
			}
			if !models.QuantityFits(*u.RemainingAmount) {
				return invalid(field+".remaining_amount", "at most %d decimal places and below %g", models.QuantityScale, models.MaxQuantity)
			}
			if strings.TrimSpace(u.RemainingLocation) == "" {
				return invalid(field+".remaining_location", "an opened container needs a storage location")
			}
		}
	}
	for i, id := range in.EquipmentIDs {
		if strings.TrimSpace(id) == "" {
			return invalid(fmt.Sprintf("equipment_ids[%d]", i), "is required")
		}
		if !validID(id) {
			return invalid(fmt.Sprintf("equipment_ids[%d]", i), "%q is not an equipment id", id)
		}
	}
	return nil
}

// UsageLogService records lab sessions and keeps chemical stock in step
// with them.
type UsageLogService struct {
	logs      UsageLogStore
	chemicals ChemicalLookup
	equipment EquipmentLookup
	after     afterCommit
	now       func() time.Time
}

// NewUsageLogService creates the service. invalidator and shipper may be nil.
func NewUsageLogService(logs UsageLogStore, chemicals ChemicalLookup, equipment EquipmentLookup, invalidator CacheInvalidator, shipper AuditShipper) *UsageLogService {
	return &UsageLogService{
		logs:      logs,
		chemicals: chemicals,
		equipment: equipment,
		after:     afterCommit{cache: invalidator, shipper: shipper},
		now:       time.Now,
	}
}

// RecordUsage validates a submission, then in one transaction decrements
// stock, creates any opened containers, and writes the log with its audit
// entry. A chemical without enough stock fails with a
// *repositories.StockError before anything is written, or when a concurrent
// session consumed it first, with everything rolled back.
func (s *UsageLogService) RecordUsage(ctx context.Context, actor Actor, in UsageInput) (*models.UsageLog, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	chemIDs := make([]string, len(in.Chemicals))
	for i, u := range in.Chemicals {
		chemIDs[i] = u.ChemicalID
	}
	chems, err := s.chemicals.GetByIDs(ctx, chemIDs)
	if err != nil {
		return nil, err
	}
	equipIDs := dedupe(in.EquipmentIDs)
	equipment, err := s.equipment.GetByIDs(ctx, equipIDs)
	if err != nil {
		return nil, err
	}

	log := &models.UsageLog{
		UserName:  actor.Name,
		Notes:     strings.TrimSpace(in.Notes),
		Location:  strings.TrimSpace(in.Location),
		Chemicals: make([]models.ChemicalUsage, 0, len(in.Chemicals)),
		Equipment: make([]models.EquipmentLink, 0, len(equipIDs)),
	}
	if actor.ID != "" {
		uid := actor.ID
		log.UserID = &uid
	}
	if in.Date != nil && !in.Date.IsZero() {
		log.Date = in.Date.UTC()
	} else {
		log.Date = s.now().UTC()
	}

	opened := make(map[int]*models.Chemical)
	usageDetails := make([]interface{}, 0, len(in.Chemicals))
	for i, u := range in.Chemicals {
		c, ok := chems[u.ChemicalID]
		if !ok {
			return nil, invalid(fmt.Sprintf("chemicals[%d].chemical_id", i), "chemical %s does not exist", u.ChemicalID)
		}
		if c.CurrentQuantity < u.Quantity {
			telemetry.ChemicalStockRejectionsTotal.WithLabelValues("precheck").Inc()
			return nil, &repositories.StockError{
				ChemicalID:   c.ID,
				ChemicalName: c.Name,
				Requested:    u.Quantity,
				Available:    c.CurrentQuantity,
			}
		}
		unit := strings.TrimSpace(u.Unit)
		if unit == "" {
			unit = c.Unit
		}
		id := c.ID
		usage := models.ChemicalUsage{
			ChemicalID:   &id,
			ChemicalName: c.Name,
			Quantity:     u.Quantity,
			Unit:         unit,
			Opened:       u.Opened,
		}
		if u.Opened {
			amount := *u.RemainingAmount
			usage.RemainingAmount = &amount
			opened[i] = c.OpenedContainer(amount, strings.TrimSpace(u.RemainingLocation))
		}
		log.Chemicals = append(log.Chemicals, usage)
		usageDetails = append(usageDetails, map[string]interface{}{
			"chemical_id": c.ID,
			"name":        c.Name,
			"quantity":    u.Quantity,
			"unit":        unit,
			"opened":      u.Opened,
		})
	}

	equipNames := make([]interface{}, 0, len(equipIDs))
	for _, id := range equipIDs {
		e, ok := equipment[id]
		if !ok {
			return nil, invalid("equipment_ids", "equipment %s does not exist", id)
		}
		eid := e.ID
		log.Equipment = append(log.Equipment, models.EquipmentLink{EquipmentID: &eid, EquipmentName: e.Name})
		equipNames = append(equipNames, e.Name)
	}

	entry := actor.audit(models.AuditTypeUsageLog, models.AuditActionCreate, usageSummary(log), models.JSONMap{
		"chemicals": usageDetails,
		"equipment": equipNames,
		"location":  log.Location,
	})

	err = s.logs.CreateUsageLog(ctx, repositories.UsageRecord{Log: log, Opened: opened, Audit: entry})
	if err != nil {
		if errors.Is(err, repositories.ErrInsufficientStock) {
			telemetry.ChemicalStockRejectionsTotal.WithLabelValues("conflict").Inc()
		}
		return nil, err
	}

	telemetry.UsageLogsRecordedTotal.Inc()
	if len(opened) > 0 {
		telemetry.OpenedContainersCreatedTotal.Add(float64(len(opened)))
	}
	s.after.run(ctx, entry, cache.SectionChemicals, cache.SectionUsageLogs, cache.SectionAuditLogs)
	return log, nil
}

// DeleteUsageLog removes a log and returns its consumed stock. Opened
// containers it created are left alone.
func (s *UsageLogService) DeleteUsageLog(ctx context.Context, actor Actor, id string) (*models.UsageLog, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	var entry *models.AuditLog
	deleted, err := s.logs.DeleteUsageLog(ctx, id, func(l *models.UsageLog) *models.AuditLog {
		restored := make(map[string]interface{})
		for cid, q := range models.Restorations(l.Chemicals) {
			restored[cid] = q
		}
		entry = actor.audit(models.AuditTypeUsageLog, models.AuditActionDelete, usageSummary(l), models.JSONMap{
			"usage_log_id": l.ID,
			"restored":     restored,
		})
		return entry
	})
	if err != nil {
		return nil, err
	}

	telemetry.UsageLogsDeletedTotal.Inc()
	s.after.run(ctx, entry, cache.SectionChemicals, cache.SectionUsageLogs, cache.SectionAuditLogs)
	return deleted, nil
}

// UpdateUsageLog changes only the notes and location of a log.
func (s *UsageLogService) UpdateUsageLog(ctx context.Context, actor Actor, id, notes, location string) (*models.UsageLog, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	notes = strings.TrimSpace(notes)
	location = strings.TrimSpace(location)
	entry := actor.audit(models.AuditTypeUsageLog, models.AuditActionUpdate, "usage log "+id, models.JSONMap{
		"usage_log_id": id,
		"notes":        notes,
		"location":     location,
	})
	if err := s.logs.UpdateUsageLog(ctx, id, notes, location, entry); err != nil {
		return nil, err
	}
	s.after.run(ctx, entry, cache.SectionUsageLogs, cache.SectionAuditLogs)
	return s.GetUsageLog(ctx, id)
}

// GetUsageLog returns a log with its children or ErrNotFound.
func (s *UsageLogService) GetUsageLog(ctx context.Context, id string) (*models.UsageLog, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	log, err := s.logs.GetUsageLog(ctx, id)
	if err != nil {
		return nil, err
	}
	if log == nil {
		return nil, repositories.ErrNotFound
	}
	return log, nil
}

// ListUsageLogs returns every log, newest first.
func (s *UsageLogService) ListUsageLogs(ctx context.Context) ([]*models.UsageLog, error) {
	return s.logs.ListUsageLogs(ctx)
}

// usageSummary names a log by what it used, for the audit trail.
func usageSummary(l *models.UsageLog) string {
	names := make([]string, 0, len(l.Chemicals)+len(l.Equipment))
	for _, u := range l.Chemicals {
		names = append(names, u.ChemicalName)
	}
	for _, e := range l.Equipment {
		names = append(names, e.EquipmentName)
	}
	if len(names) == 0 {
		return "usage log"
	}
	return strings.Join(names, ", ")
}

func dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
