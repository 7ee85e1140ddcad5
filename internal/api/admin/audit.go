// audit.go implements the audit trail endpoint.
package admin

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/MiRedo238/Chemsphere-sub000/internal/api/httperr"
	"github.com/MiRedo238/Chemsphere-sub000/internal/db/repositories"
)

// AuditHandlers serves the audit trail straight from the database, so
// filters and pagination apply to the whole history rather than the cached
// recent window.
type AuditHandlers struct {
	auditRepo *repositories.AuditRepository
}

// NewAuditHandlers creates a new AuditHandlers instance
func NewAuditHandlers(auditRepo *repositories.AuditRepository) *AuditHandlers {
	return &AuditHandlers{auditRepo: auditRepo}
}

func parseBound(c *gin.Context, name string) (*time.Time, bool) {
	s := c.Query(name)
	if s == "" {
		return nil, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, true
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, false
	}
	if name == "until" {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, true
}

// @Summary      List audit logs
// @Description  Audit trail entries, newest first. Requires audit:read.
// @Tags         Audit
// @Security     Bearer
// @Produce      json
// @Param        type      query  string  false  "chemical, equipment, usage_log or user"
// @Param        action    query  string  false  "create, update, delete, ..."
// @Param        user_id   query  string  false  "Acting user"
// @Param        since     query  string  false  "YYYY-MM-DD or RFC 3339"
// @Param        until     query  string  false  "YYYY-MM-DD (inclusive) or RFC 3339"
// @Param        page      query  int     false  "Page number (default 1)"
// @Param        per_page  query  int     false  "Items per page, max 100 (default 20)"
// @Success      200  {object}  map[string]interface{}  "audit_logs, pagination"
// @Router       /api/v1/audit-logs [get]
// ListAuditLogsHandler lists audit entries with filters and pagination
// GET /api/v1/audit-logs
func (h *AuditHandlers) ListAuditLogsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		page, perPage := pageParams(c)
		since, ok := parseBound(c, "since")
		if !ok {
			httperr.BadRequest(c, "since: expected YYYY-MM-DD or RFC 3339")
			return
		}
		until, ok := parseBound(c, "until")
		if !ok {
			httperr.BadRequest(c, "until: expected YYYY-MM-DD or RFC 3339")
			return
		}

		filter := repositories.AuditFilter{
			Type:   c.Query("type"),
			Action: c.Query("action"),
			UserID: c.Query("user_id"),
			Since:  since,
			Until:  until,
		}
		logs, total, err := h.auditRepo.ListAuditLogs(c.Request.Context(), filter, perPage, (page-1)*perPage)
		if err != nil {
			httperr.Write(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"audit_logs": logs,
			"pagination": gin.H{
				"page":     page,
				"per_page": perPage,
				"total":    total,
			},
		})
	}
}
