// maintenance.go implements operator endpoints: refreshing the inventory
// cache and running the expiration check on demand.
package admin

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MiRedo238/Chemsphere-sub000/internal/api/httperr"
	"github.com/MiRedo238/Chemsphere-sub000/internal/cache"
	"github.com/MiRedo238/Chemsphere-sub000/internal/jobs"
	"github.com/MiRedo238/Chemsphere-sub000/internal/middleware"
)

// CacheRefresher reloads cached sections. *cache.Store implements it.
type CacheRefresher interface {
	Refresh(ctx context.Context, sections ...cache.Section) error
}

// ExpirationChecker runs the expiration digest once.
// *jobs.ExpirationNotifier implements it.
type ExpirationChecker interface {
	Check(ctx context.Context) (*jobs.Summary, error)
}

// MaintenanceHandlers handles operator-triggered maintenance
type MaintenanceHandlers struct {
	cache      CacheRefresher
	expiration ExpirationChecker
}

// NewMaintenanceHandlers creates a new MaintenanceHandlers instance
func NewMaintenanceHandlers(cache CacheRefresher, expiration ExpirationChecker) *MaintenanceHandlers {
	return &MaintenanceHandlers{cache: cache, expiration: expiration}
}

// RefreshCacheRequest names the sections to reload; empty means all.
type RefreshCacheRequest struct {
	Sections []string `json:"sections"`
}

// RefreshCacheHandler reloads cache sections from the database
// POST /api/v1/admin/cache/refresh
func (h *MaintenanceHandlers) RefreshCacheHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RefreshCacheRequest
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				httperr.BadRequest(c, "Invalid request body", err.Error())
				return
			}
		}
		sections := make([]cache.Section, 0, len(req.Sections))
		for _, s := range req.Sections {
			sec, err := cache.ParseSection(s)
			if err != nil {
				httperr.BadRequest(c, err.Error())
				return
			}
			sections = append(sections, sec)
		}
		if err := h.cache.Refresh(c.Request.Context(), sections...); err != nil {
			httperr.Write(c, err)
			return
		}
		if len(sections) == 0 {
			sections = cache.AllSections
		}
		slog.Info("cache refreshed", "sections", sections, "user_id", c.GetString(middleware.UserIDKey))
		c.JSON(http.StatusOK, gin.H{"refreshed": sections})
	}
}

// CheckExpirationHandler runs the expiration digest now and returns its
// summary
// POST /api/v1/admin/jobs/check-expiration
func (h *MaintenanceHandlers) CheckExpirationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		summary, err := h.expiration.Check(c.Request.Context())
		if err != nil {
			httperr.Write(c, err)
			return
		}
		c.JSON(http.StatusOK, summary)
	}
}
