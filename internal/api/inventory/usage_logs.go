package inventory

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/MiRedo238/Chemsphere-sub000/internal/api/httperr"
	views "github.com/MiRedo238/Chemsphere-sub000/internal/inventory"
	"github.com/MiRedo238/Chemsphere-sub000/internal/services"
)

// RecordUsageRequest is the body of POST /usage-logs. Date accepts
// YYYY-MM-DD or RFC 3339 and defaults to now.
type RecordUsageRequest struct {
	Date         string                        `json:"date"`
	Location     string                        `json:"location"`
	Notes        string                        `json:"notes"`
	Chemicals    []services.ChemicalUsageInput `json:"chemicals"`
	EquipmentIDs []string                      `json:"equipment_ids"`
}

// UpdateUsageRequest is the body of PATCH /usage-logs/:id.
type UpdateUsageRequest struct {
	Notes    string `json:"notes"`
	Location string `json:"location"`
}

func parseUsageDate(s string, now time.Time) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return now.UTC(), true
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, true
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

// @Summary      List usage logs
// @Description  Search, filter, sort and paginate usage logs. Requires usage_logs:read.
// @Tags         Usage Logs
// @Security     Bearer
// @Produce      json
// @Param        search        query  string  false  "Case-insensitive substring over the search fields"
// @Param        filter        query  string  false  "Exact value of the filter field; \"all\" disables"
// @Param        filter_field  query  string  false  "Field to filter on (default location)"
// @Param        sort          query  string  false  "Field to sort by"
// @Param        order         query  string  false  "asc or desc (default asc)"
// @Param        page          query  int     false  "Page number (default 1)"
// @Param        per_page      query  int     false  "Items per page, max 500 (default 10)"
// @Success      200  {object}  map[string]interface{}  "items: []models.UsageLog, pagination"
// @Failure      400  {object}  map[string]interface{}  "Invalid query"
// @Router       /api/v1/usage-logs [get]
// ListUsageLogs lists usage logs, newest first unless sorted otherwise.
func (h *Handlers) ListUsageLogs(c *gin.Context) {
	list(c, h.snapshots.UsageLogs, views.UsageLogSchema)
}

// @Summary      Get usage log
// @Description  Requires usage_logs:read.
// @Tags         Usage Logs
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true   "Usage log ID (UUID)"
// @Success      200  {object}  models.UsageLog
// @Failure      404  {object}  map[string]interface{}  "Not found"
// @Router       /api/v1/usage-logs/{id} [get]
// GetUsageLog returns one usage log with its line items.
func (h *Handlers) GetUsageLog(c *gin.Context) {
	l, err := h.usage.GetUsageLog(c.Request.Context(), c.Param("id"))
	if err != nil {
		httperr.Write(c, err)
		return
	}
	c.JSON(http.StatusOK, l)
}

// @Summary      Record usage
// @Description  Log a lab session. Stock is decremented and opened containers are created in one transaction. Requires usage_logs:create.
// @Tags         Usage Logs
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  RecordUsageRequest  true   "Session"
// @Success      201  {object}  models.UsageLog
// @Failure      400  {object}  map[string]interface{}  "Validation error"
// @Failure      409  {object}  map[string]interface{}  "Insufficient stock"
// @Router       /api/v1/usage-logs [post]
// RecordUsage logs a lab session and decrements stock.
func (h *Handlers) RecordUsage(c *gin.Context) {
	var req RecordUsageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.BadRequest(c, "Invalid request body", err.Error())
		return
	}
	date, ok := parseUsageDate(req.Date, h.now())
	if !ok {
		httperr.BadRequest(c, "date: expected YYYY-MM-DD or RFC 3339")
		return
	}
	l, err := h.usage.RecordUsage(c.Request.Context(), actor(c), services.UsageInput{
		Date:         &date,
		Location:     req.Location,
		Notes:        req.Notes,
		Chemicals:    req.Chemicals,
		EquipmentIDs: req.EquipmentIDs,
	})
	if httperr.Failed(c, err) {
		return
	}
	c.JSON(http.StatusCreated, l)
}

// @Summary      Update usage log
// @Description  Only notes and location can change. Requires usage_logs:update.
// @Tags         Usage Logs
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string              true   "Usage log ID (UUID)"
// @Param        body  body  UpdateUsageRequest  true   "Notes and location"
// @Success      200  {object}  models.UsageLog
// @Failure      404  {object}  map[string]interface{}  "Not found"
// @Router       /api/v1/usage-logs/{id} [patch]
// UpdateUsageLog edits a log's notes and location. Quantities are fixed
// once recorded; delete and re-record to change them.
func (h *Handlers) UpdateUsageLog(c *gin.Context) {
	var req UpdateUsageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.BadRequest(c, "Invalid request body", err.Error())
		return
	}
	l, err := h.usage.UpdateUsageLog(c.Request.Context(), actor(c), c.Param("id"), req.Notes, req.Location)
	if httperr.Failed(c, err) {
		return
	}
	c.JSON(http.StatusOK, l)
}

// @Summary      Delete usage log
// @Description  Restores the consumed stock. Requires usage_logs:delete.
// @Tags         Usage Logs
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true   "Usage log ID (UUID)"
// @Success      200  {object}  map[string]interface{}  "message, usage_log"
// @Failure      404  {object}  map[string]interface{}  "Not found"
// @Router       /api/v1/usage-logs/{id} [delete]
// DeleteUsageLog removes a log and restores the stock it consumed.
func (h *Handlers) DeleteUsageLog(c *gin.Context) {
	l, err := h.usage.DeleteUsageLog(c.Request.Context(), actor(c), c.Param("id"))
	if httperr.Failed(c, err) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Usage log deleted", "usage_log": l})
}
