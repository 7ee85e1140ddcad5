// Package inventory serves the lab inventory API: chemicals, equipment,
// usage logs, the dashboard, CSV import/export and the PubChem lookup.
// List endpoints read the cached snapshots and apply search, filter, sort
// and pagination in process; writes go through the services layer.
package inventory

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/MiRedo238/Chemsphere-sub000/internal/api/httperr"
	"github.com/MiRedo238/Chemsphere-sub000/internal/config"
	"github.com/MiRedo238/Chemsphere-sub000/internal/db/models"
	views "github.com/MiRedo238/Chemsphere-sub000/internal/inventory"
	"github.com/MiRedo238/Chemsphere-sub000/internal/middleware"
	"github.com/MiRedo238/Chemsphere-sub000/internal/pubchem"
	"github.com/MiRedo238/Chemsphere-sub000/internal/services"
	"github.com/MiRedo238/Chemsphere-sub000/internal/storage"
)

// Snapshots serves the cached collections. *cache.Store implements it.
type Snapshots interface {
	Chemicals(ctx context.Context) ([]*models.Chemical, error)
	Equipment(ctx context.Context) ([]*models.Equipment, error)
	UsageLogs(ctx context.Context) ([]*models.UsageLog, error)
}

// InventoryService is the write side. *services.InventoryService
// implements it.
type InventoryService interface {
	GetChemical(ctx context.Context, id string) (*models.Chemical, error)
	CreateChemical(ctx context.Context, actor services.Actor, in services.ChemicalInput) (*models.Chemical, error)
	UpdateChemical(ctx context.Context, actor services.Actor, id string, in services.ChemicalInput) (*models.Chemical, error)
	DeleteChemical(ctx context.Context, actor services.Actor, id string) error

	GetEquipment(ctx context.Context, id string) (*models.Equipment, error)
	CreateEquipment(ctx context.Context, actor services.Actor, in services.EquipmentInput) (*models.Equipment, error)
	UpdateEquipment(ctx context.Context, actor services.Actor, id string, in services.EquipmentInput) (*models.Equipment, error)
	DeleteEquipment(ctx context.Context, actor services.Actor, id string) error

	ImportChemicals(ctx context.Context, actor services.Actor, r io.Reader) (int, error)
	ImportEquipment(ctx context.Context, actor services.Actor, r io.Reader) (int, error)
	Export(ctx context.Context, entity services.Entity, w io.Writer) error
	Archive(ctx context.Context, entity services.Entity) (*storage.Object, error)
	Archives(ctx context.Context) ([]storage.Object, error)
	OpenArchive(ctx context.Context, p string) (io.ReadCloser, error)
}

// UsageLogService records and reverses lab sessions.
// *services.UsageLogService implements it.
type UsageLogService interface {
	RecordUsage(ctx context.Context, actor services.Actor, in services.UsageInput) (*models.UsageLog, error)
	DeleteUsageLog(ctx context.Context, actor services.Actor, id string) (*models.UsageLog, error)
	UpdateUsageLog(ctx context.Context, actor services.Actor, id, notes, location string) (*models.UsageLog, error)
	GetUsageLog(ctx context.Context, id string) (*models.UsageLog, error)
}

// CompoundLookup resolves a chemical name. *pubchem.Client implements it.
type CompoundLookup interface {
	Lookup(ctx context.Context, name string) (*pubchem.Compound, error)
}

// Handlers serves the inventory routes.
type Handlers struct {
	snapshots  Snapshots
	inventory  InventoryService
	usage      UsageLogService
	lookup     CompoundLookup
	thresholds views.Thresholds
	now        func() time.Time
}

// NewHandlers creates the handlers. lookup may be nil, which disables the
// chemical lookup endpoint.
func NewHandlers(snapshots Snapshots, inventory InventoryService, usage UsageLogService, lookup CompoundLookup, cfg config.InventoryConfig) *Handlers {
	return &Handlers{
		snapshots: snapshots,
		inventory: inventory,
		usage:     usage,
		lookup:    lookup,
		thresholds: views.Thresholds{
			LowStock:       cfg.LowStockThreshold,
			NearExpiration: time.Duration(cfg.NearExpirationDays) * 24 * time.Hour,
		},
		now: time.Now,
	}
}

func actor(c *gin.Context) services.Actor {
	return services.ActorFromUser(middleware.CurrentUser(c))
}

// list answers a list request from a snapshot, applying the query string.
func list[T any](c *gin.Context, load func(context.Context) ([]T, error), schema views.Schema[T]) {
	q, err := views.ParseQuery(c.Request.URL.Query())
	if err == nil {
		err = schema.Check(q)
	}
	if err != nil {
		httperr.BadRequest(c, "Invalid query", err.Error())
		return
	}
	items, err := load(c.Request.Context())
	if err != nil {
		httperr.Write(c, err)
		return
	}
	c.JSON(http.StatusOK, views.Apply(items, schema, q))
}

// @Summary      Dashboard
// @Description  Counts and the near-expiration, low-stock, expired and out-of-stock lists. Requires dashboard:read.
// @Tags         Dashboard
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  inventory.Dashboard
// @Router       /api/v1/dashboard [get]
// Dashboard returns the derived dashboard buckets.
func (h *Handlers) Dashboard(c *gin.Context) {
	ctx := c.Request.Context()
	chems, err := h.snapshots.Chemicals(ctx)
	if err != nil {
		httperr.Write(c, err)
		return
	}
	equipment, err := h.snapshots.Equipment(ctx)
	if err != nil {
		httperr.Write(c, err)
		return
	}
	c.JSON(http.StatusOK, views.BuildDashboard(chems, equipment, h.now(), h.thresholds))
}
