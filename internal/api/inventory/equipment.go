package inventory

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MiRedo238/Chemsphere-sub000/internal/api/httperr"
	views "github.com/MiRedo238/Chemsphere-sub000/internal/inventory"
	"github.com/MiRedo238/Chemsphere-sub000/internal/services"
)

// @Summary      List equipment
// @Description  Search, filter, sort and paginate equipment. Requires equipment:read.
// @Tags         Equipment
// @Security     Bearer
// @Produce      json
// @Param        search        query  string  false  "Case-insensitive substring over the search fields"
// @Param        filter        query  string  false  "Exact value of the filter field; \"all\" disables"
// @Param        filter_field  query  string  false  "Field to filter on (default status)"
// @Param        sort          query  string  false  "Field to sort by"
// @Param        order         query  string  false  "asc or desc (default asc)"
// @Param        page          query  int     false  "Page number (default 1)"
// @Param        per_page      query  int     false  "Items per page, max 500 (default 10)"
// @Success      200  {object}  map[string]interface{}  "items: []models.Equipment, pagination"
// @Failure      400  {object}  map[string]interface{}  "Invalid query"
// @Router       /api/v1/equipment [get]
// ListEquipment lists equipment.
func (h *Handlers) ListEquipment(c *gin.Context) {
	list(c, h.snapshots.Equipment, views.EquipmentSchema)
}

// @Summary      Get equipment
// @Description  Requires equipment:read.
// @Tags         Equipment
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true   "Equipment ID (UUID)"
// @Success      200  {object}  models.Equipment
// @Failure      404  {object}  map[string]interface{}  "Not found"
// @Router       /api/v1/equipment/{id} [get]
// GetEquipment returns one piece of equipment.
func (h *Handlers) GetEquipment(c *gin.Context) {
	e, err := h.inventory.GetEquipment(c.Request.Context(), c.Param("id"))
	if err != nil {
		httperr.Write(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

// @Summary      Create equipment
// @Description  Requires equipment:write.
// @Tags         Equipment
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  services.EquipmentInput  true   "Equipment"
// @Success      201  {object}  models.Equipment
// @Failure      400  {object}  map[string]interface{}  "Validation error"
// @Router       /api/v1/equipment [post]
// CreateEquipment adds equipment.
func (h *Handlers) CreateEquipment(c *gin.Context) {
	var in services.EquipmentInput
	if err := c.ShouldBindJSON(&in); err != nil {
		httperr.BadRequest(c, "Invalid request body", err.Error())
		return
	}
	e, err := h.inventory.CreateEquipment(c.Request.Context(), actor(c), in)
	if httperr.Failed(c, err) {
		return
	}
	c.JSON(http.StatusCreated, e)
}

// @Summary      Update equipment
// @Description  A status change is audited as such. Requires equipment:write.
// @Tags         Equipment
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string                   true   "Equipment ID (UUID)"
// @Param        body  body  services.EquipmentInput  true   "Equipment"
// @Success      200  {object}  models.Equipment
// @Failure      400  {object}  map[string]interface{}  "Validation error"
// @Failure      404  {object}  map[string]interface{}  "Not found"
// @Router       /api/v1/equipment/{id} [put]
// UpdateEquipment replaces equipment's editable fields.
func (h *Handlers) UpdateEquipment(c *gin.Context) {
	var in services.EquipmentInput
	if err := c.ShouldBindJSON(&in); err != nil {
		httperr.BadRequest(c, "Invalid request body", err.Error())
		return
	}
	e, err := h.inventory.UpdateEquipment(c.Request.Context(), actor(c), c.Param("id"), in)
	if httperr.Failed(c, err) {
		return
	}
	c.JSON(http.StatusOK, e)
}

// @Summary      Delete equipment
// @Description  Requires equipment:delete.
// @Tags         Equipment
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true   "Equipment ID (UUID)"
// @Success      204  "No Content"
// @Failure      404  {object}  map[string]interface{}  "Not found"
// @Router       /api/v1/equipment/{id} [delete]
// DeleteEquipment removes equipment.
func (h *Handlers) DeleteEquipment(c *gin.Context) {
	if httperr.Failed(c, h.inventory.DeleteEquipment(c.Request.Context(), actor(c), c.Param("id"))) {
		return
	}
	c.Status(http.StatusNoContent)
}
