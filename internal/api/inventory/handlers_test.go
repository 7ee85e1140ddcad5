package inventory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/MiRedo238/Chemsphere-sub000/internal/config"
	"github.com/MiRedo238/Chemsphere-sub000/internal/db/models"
	"github.com/MiRedo238/Chemsphere-sub000/internal/db/repositories"
	"github.com/MiRedo238/Chemsphere-sub000/internal/middleware"
	"github.com/MiRedo238/Chemsphere-sub000/internal/pubchem"
	"github.com/MiRedo238/Chemsphere-sub000/internal/services"
	"github.com/MiRedo238/Chemsphere-sub000/internal/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var testNow = time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)

func day(offset int) *time.Time {
	t := testNow.AddDate(0, 0, offset)
	return &t
}

// ---- fakes ----

type fakeSnapshots struct {
	chems     []*models.Chemical
	equipment []*models.Equipment
	logs      []*models.UsageLog
	err       error
}

func (f *fakeSnapshots) Chemicals(context.Context) ([]*models.Chemical, error) {
	return f.chems, f.err
}

func (f *fakeSnapshots) Equipment(context.Context) ([]*models.Equipment, error) {
	return f.equipment, f.err
}

func (f *fakeSnapshots) UsageLogs(context.Context) ([]*models.UsageLog, error) {
	return f.logs, f.err
}

type fakeInventory struct {
	chems    map[string]*models.Chemical
	err      error
	actor    services.Actor
	lastIn   services.ChemicalInput
	imported string
	archives []storage.Object
	files    map[string]string
}

func (f *fakeInventory) GetChemical(_ context.Context, id string) (*models.Chemical, error) {
	c, ok := f.chems[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return c, nil
}

func (f *fakeInventory) CreateChemical(_ context.Context, actor services.Actor, in services.ChemicalInput) (*models.Chemical, error) {
	f.actor, f.lastIn = actor, in
	if f.err != nil && !errors.Is(f.err, services.ErrAuditNotRecorded) {
		return nil, f.err
	}
	return &models.Chemical{ID: "new", Name: in.Name}, f.err
}

func (f *fakeInventory) UpdateChemical(_ context.Context, actor services.Actor, id string, in services.ChemicalInput) (*models.Chemical, error) {
	f.actor, f.lastIn = actor, in
	if _, ok := f.chems[id]; !ok {
		return nil, repositories.ErrNotFound
	}
	return &models.Chemical{ID: id, Name: in.Name}, nil
}

func (f *fakeInventory) DeleteChemical(_ context.Context, actor services.Actor, id string) error {
	f.actor = actor
	if _, ok := f.chems[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(f.chems, id)
	return nil
}

func (f *fakeInventory) GetEquipment(context.Context, string) (*models.Equipment, error) {
	return &models.Equipment{ID: "eq-1", Name: "Centrifuge", Status: models.EquipmentAvailable}, nil
}

func (f *fakeInventory) CreateEquipment(_ context.Context, _ services.Actor, in services.EquipmentInput) (*models.Equipment, error) {
	if in.Name == "" {
		return nil, &services.ValidationError{Field: "name", Err: errors.New("is required")}
	}
	return &models.Equipment{ID: "eq-new", Name: in.Name}, nil
}

func (f *fakeInventory) UpdateEquipment(_ context.Context, _ services.Actor, id string, in services.EquipmentInput) (*models.Equipment, error) {
	return &models.Equipment{ID: id, Name: in.Name}, nil
}

func (f *fakeInventory) DeleteEquipment(context.Context, services.Actor, string) error {
	return nil
}

func (f *fakeInventory) ImportChemicals(_ context.Context, _ services.Actor, r io.Reader) (int, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	f.imported = string(b)
	return strings.Count(strings.TrimSpace(f.imported), "\n"), nil
}

func (f *fakeInventory) ImportEquipment(context.Context, services.Actor, io.Reader) (int, error) {
	return 0, &services.ValidationError{Field: "file", Err: errors.New("no rows to import")}
}

func (f *fakeInventory) Export(_ context.Context, entity services.Entity, w io.Writer) error {
	_, err := fmt.Fprintf(w, "header\n%s\n", entity)
	return err
}

func (f *fakeInventory) Archive(_ context.Context, entity services.Entity) (*storage.Object, error) {
	if f.archives == nil {
		return nil, services.ErrArchiveDisabled
	}
	return &storage.Object{Path: "exports/" + string(entity) + "/20261016T090000Z.csv"}, nil
}

func (f *fakeInventory) Archives(context.Context) ([]storage.Object, error) {
	if f.archives == nil {
		return nil, services.ErrArchiveDisabled
	}
	return f.archives, nil
}

func (f *fakeInventory) OpenArchive(_ context.Context, p string) (io.ReadCloser, error) {
	body, ok := f.files[p]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

type fakeUsage struct {
	got  services.UsageInput
	logs map[string]*models.UsageLog
	err  error
}

func (f *fakeUsage) RecordUsage(_ context.Context, _ services.Actor, in services.UsageInput) (*models.UsageLog, error) {
	f.got = in
	if f.err != nil {
		return nil, f.err
	}
	return &models.UsageLog{ID: "log-1", Date: *in.Date, Notes: in.Notes}, nil
}

func (f *fakeUsage) DeleteUsageLog(_ context.Context, _ services.Actor, id string) (*models.UsageLog, error) {
	l, ok := f.logs[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return l, nil
}

func (f *fakeUsage) UpdateUsageLog(_ context.Context, _ services.Actor, id, notes, location string) (*models.UsageLog, error) {
	l, ok := f.logs[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	l.Notes, l.Location = notes, location
	return l, nil
}

func (f *fakeUsage) GetUsageLog(_ context.Context, id string) (*models.UsageLog, error) {
	l, ok := f.logs[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return l, nil
}

type fakeLookup struct{}

func (fakeLookup) Lookup(_ context.Context, name string) (*pubchem.Compound, error) {
	if name == "ethanol" {
		return &pubchem.Compound{Name: "ethanol", MolecularFormula: "C2H6O"}, nil
	}
	return nil, pubchem.ErrNotFound
}

// ---- harness ----

type harness struct {
	router    *gin.Engine
	snapshots *fakeSnapshots
	inventory *fakeInventory
	usage     *fakeUsage
}

func newHarness(lookup CompoundLookup) *harness {
	h := &harness{
		snapshots: &fakeSnapshots{
			chems: []*models.Chemical{
				{ID: "c1", Name: "Ethanol", SafetyClass: models.SafetyClassFlammable, CurrentQuantity: 3, ExpirationDate: day(10)},
				{ID: "c2", Name: "acetone", SafetyClass: models.SafetyClassFlammable, CurrentQuantity: 40},
				{ID: "c3", Name: "Sodium chloride", SafetyClass: models.SafetyClassSafe, CurrentQuantity: 0, ExpirationDate: day(-3)},
			},
			equipment: []*models.Equipment{
				{ID: "e1", Name: "Centrifuge", Status: models.EquipmentAvailable},
				{ID: "e2", Name: "Balance", Status: models.EquipmentBroken},
			},
		},
		inventory: &fakeInventory{
			chems: map[string]*models.Chemical{"c1": {ID: "c1", Name: "Ethanol"}},
			files: map[string]string{"exports/chemicals/a.csv": "name\nEthanol\n"},
		},
		usage: &fakeUsage{logs: map[string]*models.UsageLog{"log-1": {ID: "log-1", Notes: "titration"}}},
	}
	handlers := NewHandlers(h.snapshots, h.inventory, h.usage, lookup, config.InventoryConfig{
		LowStockThreshold:  5,
		NearExpirationDays: 90,
	})
	handlers.now = func() time.Time { return testNow }

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.UserKey, &models.User{ID: "u1", Username: "dana", Role: models.RoleAdmin})
		c.Next()
	})
	v1 := r.Group("/api/v1")
	v1.GET("/dashboard", handlers.Dashboard)
	v1.GET("/chemicals", handlers.ListChemicals)
	v1.GET("/chemicals/lookup", handlers.LookupChemical)
	v1.GET("/chemicals/export", handlers.Export(services.EntityChemicals))
	v1.POST("/chemicals/import", handlers.Import(services.EntityChemicals))
	v1.GET("/chemicals/:id", handlers.GetChemical)
	v1.POST("/chemicals", handlers.CreateChemical)
	v1.PUT("/chemicals/:id", handlers.UpdateChemical)
	v1.DELETE("/chemicals/:id", handlers.DeleteChemical)
	v1.GET("/equipment", handlers.ListEquipment)
	v1.POST("/equipment", handlers.CreateEquipment)
	v1.POST("/equipment/import", handlers.Import(services.EntityEquipment))
	v1.GET("/usage-logs", handlers.ListUsageLogs)
	v1.GET("/usage-logs/:id", handlers.GetUsageLog)
	v1.POST("/usage-logs", handlers.RecordUsage)
	v1.PATCH("/usage-logs/:id", handlers.UpdateUsageLog)
	v1.DELETE("/usage-logs/:id", handlers.DeleteUsageLog)
	v1.GET("/exports", handlers.ListArchives)
	v1.GET("/exports/files/*path", handlers.ServeArchive)
	h.router = r
	return h
}

func (h *harness) do(method, target string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func (h *harness) doJSON(method, target string, v interface{}) *httptest.ResponseRecorder {
	b, _ := json.Marshal(v)
	return h.do(method, target, bytes.NewReader(b), "application/json")
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return body
}

// ---- lists ----

func TestListChemicals_SearchSortPaginate(t *testing.T) {
	h := newHarness(nil)
	w := h.do(http.MethodGet, "/api/v1/chemicals?filter=flammable&sort=name&per_page=1", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	body := decode(t, w)
	items := body["items"].([]interface{})
	if len(items) != 1 || items[0].(map[string]interface{})["name"] != "acetone" {
		t.Errorf("items = %v", items)
	}
	p := body["pagination"].(map[string]interface{})
	if p["total"] != 2.0 || p["total_pages"] != 2.0 || p["per_page"] != 1.0 {
		t.Errorf("pagination = %v", p)
	}
}

func TestListChemicals_BadQuery(t *testing.T) {
	h := newHarness(nil)
	for _, q := range []string{"order=sideways", "sort=colour", "per_page=1000", "page=0"} {
		t.Run(q, func(t *testing.T) {
			w := h.do(http.MethodGet, "/api/v1/chemicals?"+q, nil, "")
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d", w.Code)
			}
		})
	}
}

func TestListChemicals_SnapshotError(t *testing.T) {
	h := newHarness(nil)
	h.snapshots.err = errors.New("redis: connection refused")
	w := h.do(http.MethodGet, "/api/v1/chemicals", nil, "")
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "redis") {
		t.Errorf("internal error leaked: %s", w.Body.String())
	}
}

func TestListEquipment_FilterByStatus(t *testing.T) {
	h := newHarness(nil)
	w := h.do(http.MethodGet, "/api/v1/equipment?filter=Broken", nil, "")
	body := decode(t, w)
	items := body["items"].([]interface{})
	if len(items) != 1 || items[0].(map[string]interface{})["id"] != "e2" {
		t.Errorf("items = %v", items)
	}
}

func TestListUsageLogs_Empty(t *testing.T) {
	h := newHarness(nil)
	body := decode(t, h.do(http.MethodGet, "/api/v1/usage-logs", nil, ""))
	if items, ok := body["items"].([]interface{}); !ok || len(items) != 0 {
		t.Errorf("items = %v", body["items"])
	}
}

// ---- dashboard ----

func TestDashboard(t *testing.T) {
	h := newHarness(nil)
	w := h.do(http.MethodGet, "/api/v1/dashboard", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	counts := decode(t, w)["counts"].(map[string]interface{})
	want := map[string]float64{"chemicals": 3, "equipment": 2, "near_expiration": 1, "low_stock": 1, "expired": 1, "out_of_stock": 1}
	for k, v := range want {
		if counts[k] != v {
			t.Errorf("counts[%s] = %v, want %v", k, counts[k], v)
		}
	}
}

// ---- chemicals CRUD ----

func TestGetChemical(t *testing.T) {
	h := newHarness(nil)
	if w := h.do(http.MethodGet, "/api/v1/chemicals/c1", nil, ""); w.Code != http.StatusOK {
		t.Errorf("existing: status = %d", w.Code)
	}
	if w := h.do(http.MethodGet, "/api/v1/chemicals/nope", nil, ""); w.Code != http.StatusNotFound {
		t.Errorf("missing: status = %d", w.Code)
	}
}

func TestCreateChemical(t *testing.T) {
	h := newHarness(nil)
	qty := 2.5
	w := h.doJSON(http.MethodPost, "/api/v1/chemicals", map[string]interface{}{
		"name":             "Methanol",
		"physical_state":   "liquid",
		"initial_quantity": qty,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if h.inventory.actor.ID != "u1" || h.inventory.actor.Name != "dana" {
		t.Errorf("actor = %+v", h.inventory.actor)
	}
	if h.inventory.lastIn.InitialQuantity == nil || *h.inventory.lastIn.InitialQuantity != qty {
		t.Errorf("input = %+v", h.inventory.lastIn)
	}
}

func TestCreateChemical_AuditFailureStillCreated(t *testing.T) {
	h := newHarness(nil)
	h.inventory.err = fmt.Errorf("%w: %w", services.ErrAuditNotRecorded, errors.New("pq: deadlock"))
	w := h.doJSON(http.MethodPost, "/api/v1/chemicals", map[string]string{"name": "Methanol"})
	if w.Code != http.StatusCreated {
		t.Errorf("status = %d", w.Code)
	}
}

func TestCreateChemical_Errors(t *testing.T) {
	h := newHarness(nil)
	if w := h.do(http.MethodPost, "/api/v1/chemicals", strings.NewReader("{"), "application/json"); w.Code != http.StatusBadRequest {
		t.Errorf("malformed: status = %d", w.Code)
	}
	h.inventory.err = &services.ValidationError{Field: "name", Err: errors.New("is required")}
	w := h.doJSON(http.MethodPost, "/api/v1/chemicals", map[string]string{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid: status = %d", w.Code)
	}
	if got := decode(t, w)["error"]; got != "name: is required" {
		t.Errorf("error = %v", got)
	}
}

func TestUpdateAndDeleteChemical(t *testing.T) {
	h := newHarness(nil)
	if w := h.doJSON(http.MethodPut, "/api/v1/chemicals/c1", map[string]string{"name": "Ethanol 96%"}); w.Code != http.StatusOK {
		t.Errorf("update: status = %d", w.Code)
	}
	if w := h.doJSON(http.MethodPut, "/api/v1/chemicals/zz", map[string]string{"name": "x"}); w.Code != http.StatusNotFound {
		t.Errorf("update missing: status = %d", w.Code)
	}
	if w := h.do(http.MethodDelete, "/api/v1/chemicals/c1", nil, ""); w.Code != http.StatusNoContent {
		t.Errorf("delete: status = %d", w.Code)
	}
	if w := h.do(http.MethodDelete, "/api/v1/chemicals/c1", nil, ""); w.Code != http.StatusNotFound {
		t.Errorf("delete twice: status = %d", w.Code)
	}
}

func TestCreateEquipment_Validation(t *testing.T) {
	h := newHarness(nil)
	if w := h.doJSON(http.MethodPost, "/api/v1/equipment", map[string]string{"name": "Hotplate"}); w.Code != http.StatusCreated {
		t.Errorf("status = %d", w.Code)
	}
	if w := h.doJSON(http.MethodPost, "/api/v1/equipment", map[string]string{}); w.Code != http.StatusBadRequest {
		t.Errorf("status = %d", w.Code)
	}
}

// ---- lookup ----

func TestLookupChemical(t *testing.T) {
	h := newHarness(fakeLookup{})
	tests := []struct {
		query string
		want  int
	}{
		{"q=ethanol", http.StatusOK},
		{"q=unobtainium", http.StatusNotFound},
		{"q=%20", http.StatusBadRequest},
		{"", http.StatusBadRequest},
	}
	for _, tt := range tests {
		if w := h.do(http.MethodGet, "/api/v1/chemicals/lookup?"+tt.query, nil, ""); w.Code != tt.want {
			t.Errorf("%q: status = %d, want %d", tt.query, w.Code, tt.want)
		}
	}
}

func TestLookupChemical_Disabled(t *testing.T) {
	h := newHarness(nil)
	if w := h.do(http.MethodGet, "/api/v1/chemicals/lookup?q=ethanol", nil, ""); w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d", w.Code)
	}
}

// ---- usage logs ----

func TestRecordUsage_DateHandling(t *testing.T) {
	tests := []struct {
		name string
		date string
		want time.Time
	}{
		{"default now", "", testNow},
		{"plain date", "2026-10-01", time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)},
		{"rfc3339", "2026-10-01T15:30:00+02:00", time.Date(2026, 10, 1, 13, 30, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(nil)
			w := h.doJSON(http.MethodPost, "/api/v1/usage-logs", map[string]interface{}{
				"date":      tt.date,
				"notes":     "titration",
				"chemicals": []map[string]interface{}{{"chemical_id": "c1", "quantity": 1}},
			})
			if w.Code != http.StatusCreated {
				t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
			}
			if !h.usage.got.Date.Equal(tt.want) {
				t.Errorf("date = %v, want %v", h.usage.got.Date, tt.want)
			}
			if len(h.usage.got.Chemicals) != 1 || h.usage.got.Chemicals[0].Quantity != 1 {
				t.Errorf("chemicals = %+v", h.usage.got.Chemicals)
			}
		})
	}
}

func TestRecordUsage_BadDate(t *testing.T) {
	h := newHarness(nil)
	w := h.doJSON(http.MethodPost, "/api/v1/usage-logs", map[string]string{"date": "16/10/2026"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d", w.Code)
	}
}

func TestRecordUsage_InsufficientStock(t *testing.T) {
	h := newHarness(nil)
	h.usage.err = &repositories.StockError{ChemicalID: "c1", ChemicalName: "Ethanol", Requested: 10, Available: 3}
	w := h.doJSON(http.MethodPost, "/api/v1/usage-logs", map[string]interface{}{
		"chemicals": []map[string]interface{}{{"chemical_id": "c1", "quantity": 10}},
	})
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d", w.Code)
	}
	details := decode(t, w)["details"].(map[string]interface{})
	if details["available"] != 3.0 {
		t.Errorf("details = %v", details)
	}
}

func TestUsageLog_GetUpdateDelete(t *testing.T) {
	h := newHarness(nil)
	if w := h.do(http.MethodGet, "/api/v1/usage-logs/log-1", nil, ""); w.Code != http.StatusOK {
		t.Errorf("get: status = %d", w.Code)
	}
	w := h.doJSON(http.MethodPatch, "/api/v1/usage-logs/log-1", map[string]string{"notes": "redo", "location": "Lab 2"})
	if w.Code != http.StatusOK || decode(t, w)["location"] != "Lab 2" {
		t.Errorf("patch: status = %d, body = %s", w.Code, w.Body.String())
	}
	if w := h.do(http.MethodDelete, "/api/v1/usage-logs/log-1", nil, ""); w.Code != http.StatusOK {
		t.Errorf("delete: status = %d", w.Code)
	}
	if w := h.do(http.MethodDelete, "/api/v1/usage-logs/missing", nil, ""); w.Code != http.StatusNotFound {
		t.Errorf("delete missing: status = %d", w.Code)
	}
}

func TestUsageLog_MalformedIDs(t *testing.T) {
	h := newHarness(nil)
	// A real service with no stores behind it: malformed ids must be
	// rejected before any database call.
	handlers := NewHandlers(h.snapshots, h.inventory, services.NewUsageLogService(nil, nil, nil, nil, nil), nil, config.InventoryConfig{})
	r := gin.New()
	r.GET("/usage-logs/:id", handlers.GetUsageLog)
	r.PATCH("/usage-logs/:id", handlers.UpdateUsageLog)
	r.DELETE("/usage-logs/:id", handlers.DeleteUsageLog)
	r.POST("/usage-logs", handlers.RecordUsage)

	serve := func(method, target string, body interface{}) *httptest.ResponseRecorder {
		var rd io.Reader
		if body != nil {
			b, _ := json.Marshal(body)
			rd = bytes.NewReader(b)
		}
		req := httptest.NewRequest(method, target, rd)
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	if w := serve(http.MethodGet, "/usage-logs/abc", nil); w.Code != http.StatusNotFound {
		t.Errorf("get: status = %d, body = %s", w.Code, w.Body.String())
	}
	if w := serve(http.MethodPatch, "/usage-logs/abc", map[string]string{"notes": "x"}); w.Code != http.StatusNotFound {
		t.Errorf("patch: status = %d, body = %s", w.Code, w.Body.String())
	}
	if w := serve(http.MethodDelete, "/usage-logs/abc", nil); w.Code != http.StatusNotFound {
		t.Errorf("delete: status = %d, body = %s", w.Code, w.Body.String())
	}

	w := serve(http.MethodPost, "/usage-logs", map[string]interface{}{
		"chemicals": []map[string]interface{}{{"chemical_id": "abc", "quantity": 1}},
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("post: status = %d, body = %s", w.Code, w.Body.String())
	}
	if !strings.Contains(decode(t, w)["error"].(string), "chemical_id") {
		t.Errorf("post: body = %s", w.Body.String())
	}
	w = serve(http.MethodPost, "/usage-logs", map[string]interface{}{"equipment_ids": []string{"abc"}})
	if w.Code != http.StatusBadRequest {
		t.Errorf("post equipment: status = %d, body = %s", w.Code, w.Body.String())
	}
}

// ---- export / import ----

func TestExport_Download(t *testing.T) {
	h := newHarness(nil)
	w := h.do(http.MethodGet, "/api/v1/chemicals/export", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if got := w.Header().Get("Content-Disposition"); got != `attachment; filename="chemicals_2026-10-16.csv"` {
		t.Errorf("Content-Disposition = %q", got)
	}
	if got := w.Header().Get("Content-Type"); got != storage.CSVContentType {
		t.Errorf("Content-Type = %q", got)
	}
	if w.Body.String() != "header\nchemicals\n" {
		t.Errorf("body = %q", w.Body.String())
	}
}

func TestExport_Archive(t *testing.T) {
	h := newHarness(nil)
	if w := h.do(http.MethodGet, "/api/v1/chemicals/export?archive=true", nil, ""); w.Code != http.StatusServiceUnavailable {
		t.Errorf("unconfigured: status = %d", w.Code)
	}
	h.inventory.archives = []storage.Object{}
	w := h.do(http.MethodGet, "/api/v1/chemicals/export?archive=true", nil, "")
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d", w.Code)
	}
	if got := decode(t, w)["path"]; got != "exports/chemicals/20261016T090000Z.csv" {
		t.Errorf("path = %v", got)
	}
}

func TestImport_RawBody(t *testing.T) {
	h := newHarness(nil)
	csv := "name,unit\nEthanol,L\nAcetone,L\n"
	w := h.do(http.MethodPost, "/api/v1/chemicals/import", strings.NewReader(csv), "text/csv")
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if decode(t, w)["imported"] != 2.0 {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestImport_Multipart(t *testing.T) {
	h := newHarness(nil)
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("file", "chemicals.csv")
	_, _ = fw.Write([]byte("name\nEthanol\n"))
	_ = mw.Close()

	w := h.do(http.MethodPost, "/api/v1/chemicals/import", &buf, mw.FormDataContentType())
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if h.inventory.imported != "name\nEthanol\n" {
		t.Errorf("imported = %q", h.inventory.imported)
	}
}

func TestImport_MultipartMissingFile(t *testing.T) {
	h := newHarness(nil)
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("other", "x")
	_ = mw.Close()
	if w := h.do(http.MethodPost, "/api/v1/chemicals/import", &buf, mw.FormDataContentType()); w.Code != http.StatusBadRequest {
		t.Errorf("status = %d", w.Code)
	}
}

func TestImport_ValidationError(t *testing.T) {
	h := newHarness(nil)
	if w := h.do(http.MethodPost, "/api/v1/equipment/import", strings.NewReader("name\n"), "text/csv"); w.Code != http.StatusBadRequest {
		t.Errorf("status = %d", w.Code)
	}
}

func TestArchives(t *testing.T) {
	h := newHarness(nil)
	if w := h.do(http.MethodGet, "/api/v1/exports", nil, ""); w.Code != http.StatusServiceUnavailable {
		t.Errorf("unconfigured: status = %d", w.Code)
	}
	h.inventory.archives = []storage.Object{{Path: "exports/chemicals/a.csv"}}
	if w := h.do(http.MethodGet, "/api/v1/exports", nil, ""); w.Code != http.StatusOK {
		t.Errorf("list: status = %d", w.Code)
	}

	w := h.do(http.MethodGet, "/api/v1/exports/files/exports/chemicals/a.csv", nil, "")
	if w.Code != http.StatusOK || w.Body.String() != "name\nEthanol\n" {
		t.Errorf("serve: status = %d, body = %q", w.Code, w.Body.String())
	}
	if got := w.Header().Get("Content-Disposition"); got != `attachment; filename="a.csv"` {
		t.Errorf("Content-Disposition = %q", got)
	}
	if w := h.do(http.MethodGet, "/api/v1/exports/files/exports/chemicals/b.csv", nil, ""); w.Code != http.StatusNotFound {
		t.Errorf("missing: status = %d", w.Code)
	}
}
