package inventory

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/MiRedo238/Chemsphere-sub000/internal/api/httperr"
	"github.com/MiRedo238/Chemsphere-sub000/internal/services"
	"github.com/MiRedo238/Chemsphere-sub000/internal/storage"
)

// MaxImportBytes caps an uploaded CSV file.
const MaxImportBytes = 10 << 20

// @Summary      Export CSV
// @Description  Download the collection as CSV, or with archive=true store it in the export archive. Requires inventory:export.
// @Tags         Exports
// @Security     Bearer
// @Produce      text/csv
// @Param        archive  query  bool  false  "Store in the archive instead of downloading"
// @Success      200  {file}  file  "CSV"
// @Success      201  {object}  storage.Object  "Archived export"
// @Failure      503  {object}  map[string]interface{}  "Archive not configured"
// @Router       /api/v1/chemicals/export [get]
// @Router       /api/v1/equipment/export [get]
// @Router       /api/v1/usage-logs/export [get]
// Export returns a handler that downloads entity as CSV, or with
// ?archive=true stores the file in the export archive and returns its
// descriptor.
func (h *Handlers) Export(entity services.Entity) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Query("archive") == "true" {
			obj, err := h.inventory.Archive(c.Request.Context(), entity)
			if err != nil {
				httperr.Write(c, err)
				return
			}
			c.JSON(http.StatusCreated, obj)
			return
		}

		var buf bytes.Buffer
		if err := h.inventory.Export(c.Request.Context(), entity, &buf); err != nil {
			httperr.Write(c, err)
			return
		}
		name := fmt.Sprintf("%s_%s.csv", entity, h.now().UTC().Format("2006-01-02"))
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
		c.Data(http.StatusOK, storage.CSVContentType, buf.Bytes())
	}
}

// @Summary      Import CSV
// @Description  Bulk-create rows from a CSV file in the multipart field "file" or the raw body. All rows are inserted or none. Requires inventory:import.
// @Tags         Exports
// @Security     Bearer
// @Accept       multipart/form-data
// @Produce      json
// @Param        file  formData  file  false  "CSV file"
// @Success      201  {object}  map[string]interface{}  "imported: int"
// @Failure      400  {object}  map[string]interface{}  "Invalid row"
// @Router       /api/v1/chemicals/import [post]
// @Router       /api/v1/equipment/import [post]
// Import returns a handler that bulk-creates rows from a CSV upload. The
// file is read from the multipart field "file", or from the raw body when
// the request is not multipart.
func (h *Handlers) Import(entity services.Entity) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxImportBytes)

		var src io.Reader = c.Request.Body
		if strings.HasPrefix(c.ContentType(), "multipart/") {
			fh, err := c.FormFile("file")
			if err != nil {
				httperr.BadRequest(c, "A CSV file is required in the \"file\" field", err.Error())
				return
			}
			f, err := fh.Open()
			if err != nil {
				httperr.BadRequest(c, "Unreadable upload", err.Error())
				return
			}
			defer f.Close()
			src = f
		}

		var (
			n   int
			err error
		)
		switch entity {
		case services.EntityChemicals:
			n, err = h.inventory.ImportChemicals(c.Request.Context(), actor(c), src)
		case services.EntityEquipment:
			n, err = h.inventory.ImportEquipment(c.Request.Context(), actor(c), src)
		default:
			httperr.BadRequest(c, "Import is not supported for "+string(entity))
			return
		}
		if httperr.Failed(c, err) {
			return
		}
		c.JSON(http.StatusCreated, gin.H{"imported": n})
	}
}

// @Summary      List archived exports
// @Description  Newest first. Requires inventory:export.
// @Tags         Exports
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "archives: []storage.Object"
// @Failure      503  {object}  map[string]interface{}  "Archive not configured"
// @Router       /api/v1/exports [get]
// ListArchives lists stored exports, newest first.
func (h *Handlers) ListArchives(c *gin.Context) {
	objs, err := h.inventory.Archives(c.Request.Context())
	if err != nil {
		httperr.Write(c, err)
		return
	}
	if objs == nil {
		objs = []storage.Object{}
	}
	c.JSON(http.StatusOK, gin.H{"archives": objs})
}

// @Summary      Download archived export
// @Description  Requires inventory:export.
// @Tags         Exports
// @Security     Bearer
// @Produce      text/csv
// @Param        path  path  string  true   "Archive path"
// @Success      200  {file}  file  "CSV"
// @Failure      404  {object}  map[string]interface{}  "Not found"
// @Router       /api/v1/exports/files/{path} [get]
// ServeArchive streams a stored export. Local storage links point here.
func (h *Handlers) ServeArchive(c *gin.Context) {
	p := strings.TrimPrefix(c.Param("path"), "/")
	rc, err := h.inventory.OpenArchive(c.Request.Context(), p)
	if err != nil {
		httperr.Write(c, err)
		return
	}
	defer rc.Close()

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", path.Base(p)))
	c.DataFromReader(http.StatusOK, -1, storage.CSVContentType, rc, nil)
}
