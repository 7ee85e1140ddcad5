package inventory

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/MiRedo238/Chemsphere-sub000/internal/api/httperr"
	views "github.com/MiRedo238/Chemsphere-sub000/internal/inventory"
	"github.com/MiRedo238/Chemsphere-sub000/internal/pubchem"
	"github.com/MiRedo238/Chemsphere-sub000/internal/services"
)

// @Summary      List chemicals
// @Description  Search, filter, sort and paginate the chemical inventory. Requires chemicals:read.
// @Tags         Chemicals
// @Security     Bearer
// @Produce      json
// @Param        search        query  string  false  "Case-insensitive substring over the search fields"
// @Param        filter        query  string  false  "Exact value of the filter field; \"all\" disables"
// @Param        filter_field  query  string  false  "Field to filter on (default safety_class)"
// @Param        sort          query  string  false  "Field to sort by"
// @Param        order         query  string  false  "asc or desc (default asc)"
// @Param        page          query  int     false  "Page number (default 1)"
// @Param        per_page      query  int     false  "Items per page, max 500 (default 10)"
// @Success      200  {object}  map[string]interface{}  "items: []models.Chemical, pagination"
// @Failure      400  {object}  map[string]interface{}  "Invalid query"
// @Router       /api/v1/chemicals [get]
// ListChemicals lists chemicals.
func (h *Handlers) ListChemicals(c *gin.Context) {
	list(c, h.snapshots.Chemicals, views.ChemicalSchema)
}

// @Summary      Get chemical
// @Description  Requires chemicals:read.
// @Tags         Chemicals
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true   "Chemical ID (UUID)"
// @Success      200  {object}  models.Chemical
// @Failure      404  {object}  map[string]interface{}  "Not found"
// @Router       /api/v1/chemicals/{id} [get]
// GetChemical returns one chemical.
func (h *Handlers) GetChemical(c *gin.Context) {
	chem, err := h.inventory.GetChemical(c.Request.Context(), c.Param("id"))
	if err != nil {
		httperr.Write(c, err)
		return
	}
	c.JSON(http.StatusOK, chem)
}

// @Summary      Create chemical
// @Description  Requires chemicals:write. The change is audited.
// @Tags         Chemicals
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  services.ChemicalInput  true   "Chemical"
// @Success      201  {object}  models.Chemical
// @Failure      400  {object}  map[string]interface{}  "Validation error"
// @Router       /api/v1/chemicals [post]
// CreateChemical adds a chemical.
func (h *Handlers) CreateChemical(c *gin.Context) {
	var in services.ChemicalInput
	if err := c.ShouldBindJSON(&in); err != nil {
		httperr.BadRequest(c, "Invalid request body", err.Error())
		return
	}
	chem, err := h.inventory.CreateChemical(c.Request.Context(), actor(c), in)
	if httperr.Failed(c, err) {
		return
	}
	c.JSON(http.StatusCreated, chem)
}

// @Summary      Update chemical
// @Description  Replace the editable fields. Requires chemicals:write.
// @Tags         Chemicals
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string                  true   "Chemical ID (UUID)"
// @Param        body  body  services.ChemicalInput  true   "Chemical"
// @Success      200  {object}  models.Chemical
// @Failure      400  {object}  map[string]interface{}  "Validation error"
// @Failure      404  {object}  map[string]interface{}  "Not found"
// @Router       /api/v1/chemicals/{id} [put]
// UpdateChemical replaces a chemical's editable fields.
func (h *Handlers) UpdateChemical(c *gin.Context) {
	var in services.ChemicalInput
	if err := c.ShouldBindJSON(&in); err != nil {
		httperr.BadRequest(c, "Invalid request body", err.Error())
		return
	}
	chem, err := h.inventory.UpdateChemical(c.Request.Context(), actor(c), c.Param("id"), in)
	if httperr.Failed(c, err) {
		return
	}
	c.JSON(http.StatusOK, chem)
}

// @Summary      Delete chemical
// @Description  Usage history keeps the recorded name. Requires chemicals:delete.
// @Tags         Chemicals
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true   "Chemical ID (UUID)"
// @Success      204  "No Content"
// @Failure      404  {object}  map[string]interface{}  "Not found"
// @Router       /api/v1/chemicals/{id} [delete]
// DeleteChemical removes a chemical.
func (h *Handlers) DeleteChemical(c *gin.Context) {
	if httperr.Failed(c, h.inventory.DeleteChemical(c.Request.Context(), actor(c), c.Param("id"))) {
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary      Look up compound
// @Description  Resolve a compound name through PubChem. Requires chemicals:lookup.
// @Tags         Chemicals
// @Security     Bearer
// @Produce      json
// @Param        q  query  string  true   "Compound name"
// @Success      200  {object}  pubchem.Compound
// @Failure      404  {object}  map[string]interface{}  "No compound matches"
// @Failure      503  {object}  map[string]interface{}  "Lookup disabled"
// @Router       /api/v1/chemicals/lookup [get]
// LookupChemical fetches a compound's identifiers from PubChem.
func (h *Handlers) LookupChemical(c *gin.Context) {
	if h.lookup == nil {
		httperr.Write(c, pubchem.ErrDisabled)
		return
	}
	name := strings.TrimSpace(c.Query("q"))
	if name == "" {
		httperr.BadRequest(c, "Query parameter q is required")
		return
	}
	compound, err := h.lookup.Lookup(c.Request.Context(), name)
	if err != nil {
		httperr.Write(c, err)
		return
	}
	c.JSON(http.StatusOK, compound)
}
