package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/MiRedo238/Chemsphere-sub000/internal/cache"
	"github.com/MiRedo238/Chemsphere-sub000/internal/csvio"
	"github.com/MiRedo238/Chemsphere-sub000/internal/db/models"
	"github.com/MiRedo238/Chemsphere-sub000/internal/db/repositories"
	"github.com/MiRedo238/Chemsphere-sub000/internal/storage"
)

// memSnapshots serves memDB contents the way the cache would.
type memSnapshots struct{ *memDB }

func (s memSnapshots) Chemicals(context.Context) ([]*models.Chemical, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Chemical, 0, len(s.chems))
	for _, c := range s.chems {
		out = append(out, c)
	}
	return out, nil
}

func (s memSnapshots) Equipment(context.Context) ([]*models.Equipment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Equipment, 0, len(s.equipment))
	for _, e := range s.equipment {
		out = append(out, e)
	}
	return out, nil
}

func (s memSnapshots) UsageLogs(ctx context.Context) ([]*models.UsageLog, error) {
	return usageRepo(s).ListUsageLogs(ctx)
}

// memArchive is a storage.Storage that keeps objects in memory.
type memArchive struct {
	objects map[string][]byte
}

func (m *memArchive) Put(_ context.Context, p string, r io.Reader, contentType string) (*storage.Object, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if m.objects == nil {
		m.objects = make(map[string][]byte)
	}
	m.objects[p] = data
	return &storage.Object{Path: p, Size: int64(len(data)), ContentType: contentType}, nil
}

func (m *memArchive) Open(_ context.Context, p string) (io.ReadCloser, error) {
	data, ok := m.objects[p]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memArchive) Delete(_ context.Context, p string) error {
	delete(m.objects, p)
	return nil
}

func (m *memArchive) URL(_ context.Context, p string, _ time.Duration) (string, error) {
	return "https://files.example/" + p, nil
}

func (m *memArchive) Exists(_ context.Context, p string) (bool, error) {
	_, ok := m.objects[p]
	return ok, nil
}

func (m *memArchive) List(_ context.Context, prefix string) ([]storage.Object, error) {
	var out []storage.Object
	for p, data := range m.objects {
		if strings.HasPrefix(p, prefix) {
			out = append(out, storage.Object{Path: p, Size: int64(len(data))})
		}
	}
	return out, nil
}

func newInventoryService(db *memDB, archive storage.Storage) (*InventoryService, *recordingCache) {
	rc := &recordingCache{}
	svc := NewInventoryService(chemicalRepo{db}, equipmentRepo{db}, auditRepo{db}, memSnapshots{db}, archive, rc, nil)
	svc.now = func() time.Time { return time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC) }
	return svc, rc
}

var adminActor = Actor{ID: "admin-1", Name: "Admin", Role: models.RoleAdmin}

func TestCreateChemical_Defaults(t *testing.T) {
	db := newMemDB()
	svc, rc := newInventoryService(db, nil)

	c, err := svc.CreateChemical(context.Background(), adminActor, ChemicalInput{
		Name:            " Acetone ",
		Unit:            "mL",
		InitialQuantity: ptr(250.0),
		ExpirationDate:  ptr("2027-06-30"),
		GHSSymbols:      []string{"flammable", "GHS07", "Flame"},
	})
	if err != nil {
		t.Fatalf("CreateChemical: %v", err)
	}
	if c.Name != "Acetone" || c.CurrentQuantity != 250 {
		t.Errorf("chemical = %+v", c)
	}
	if c.PhysicalState != models.PhysicalStateLiquid || c.SafetyClass != models.SafetyClassSafe {
		t.Errorf("defaults = %s/%s", c.PhysicalState, c.SafetyClass)
	}
	if len(c.GHSSymbols) != 2 {
		t.Errorf("ghs = %v, want canonical deduplicated pair", c.GHSSymbols)
	}
	if c.ExpirationDate == nil || c.ExpirationDate.Month() != time.June {
		t.Errorf("expiration = %v", c.ExpirationDate)
	}
	entry := db.lastAudit(t)
	if entry.Type != models.AuditTypeChemical || entry.ItemName != "Acetone" || entry.UserID == nil {
		t.Errorf("audit = %+v", entry)
	}
	if !rc.has(cache.SectionChemicals) || !rc.has(cache.SectionAuditLogs) {
		t.Error("chemicals and audit sections should be invalidated")
	}
}

func TestCreateChemical_Invalid(t *testing.T) {
	db := newMemDB()
	svc, _ := newInventoryService(db, nil)
	tests := []struct {
		name string
		in   ChemicalInput
	}{
		{"no name", ChemicalInput{InitialQuantity: ptr(1.0)}},
		{"current above initial", ChemicalInput{Name: "X", InitialQuantity: ptr(1.0), CurrentQuantity: ptr(2.0)}},
		{"bad state", ChemicalInput{Name: "X", PhysicalState: "gas"}},
		{"bad ghs", ChemicalInput{Name: "X", GHSSymbols: []string{"glitter"}}},
		{"bad date", ChemicalInput{Name: "X", ExpirationDate: ptr("next week")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateChemical(context.Background(), adminActor, tt.in)
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("err = %v, want *ValidationError", err)
			}
		})
	}
	if len(db.chems) != 0 {
		t.Error("invalid chemicals were stored")
	}
}

func TestUpdateChemical_KeepsQuantityWhenOmitted(t *testing.T) {
	db := newMemDB()
	eth := db.addChemical("Ethanol", 40)
	svc, _ := newInventoryService(db, nil)

	c, err := svc.UpdateChemical(context.Background(), adminActor, eth.ID, ChemicalInput{
		Name:        "Ethanol 96%",
		SafetyClass: "flammable",
	})
	if err != nil {
		t.Fatalf("UpdateChemical: %v", err)
	}
	if c.CurrentQuantity != 40 || c.InitialQuantity != 40 {
		t.Errorf("quantities changed: %v/%v", c.CurrentQuantity, c.InitialQuantity)
	}
	if db.chemical(eth.ID).Name != "Ethanol 96%" {
		t.Error("update not stored")
	}

	_, err = svc.UpdateChemical(context.Background(), adminActor, "missing", ChemicalInput{Name: "x"})
	if !errors.Is(err, repositories.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestDeleteChemical(t *testing.T) {
	db := newMemDB()
	eth := db.addChemical("Ethanol", 4)
	svc, rc := newInventoryService(db, nil)

	if err := svc.DeleteChemical(context.Background(), adminActor, eth.ID); err != nil {
		t.Fatalf("DeleteChemical: %v", err)
	}
	if db.lastAudit(t).Action != models.AuditActionDelete {
		t.Error("delete not audited")
	}
	if !rc.has(cache.SectionUsageLogs) {
		t.Error("usage logs reference chemicals and should be invalidated")
	}
	if err := svc.DeleteChemical(context.Background(), adminActor, eth.ID); !errors.Is(err, repositories.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestUpdateEquipment_StatusChangeAudited(t *testing.T) {
	db := newMemDB()
	cf := db.addEquipment("Centrifuge")
	svc, _ := newInventoryService(db, nil)

	e, err := svc.UpdateEquipment(context.Background(), adminActor, cf.ID, EquipmentInput{
		Name:   "Centrifuge",
		Status: "under maintenance",
	})
	if err != nil {
		t.Fatalf("UpdateEquipment: %v", err)
	}
	if e.Status != models.EquipmentUnderMaintenance {
		t.Errorf("status = %s", e.Status)
	}
	entry := db.lastAudit(t)
	if entry.Action != models.AuditActionStatusChange || entry.Details["to"] != "Under Maintenance" {
		t.Errorf("audit = %+v", entry)
	}

	_, err = svc.CreateEquipment(context.Background(), adminActor, EquipmentInput{Name: "Scope", Status: "on fire"})
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Field != "status" {
		t.Errorf("err = %v, want status validation error", err)
	}
}

func TestImportChemicals_AllOrNothing(t *testing.T) {
	db := newMemDB()
	svc, _ := newInventoryService(db, nil)
	ctx := context.Background()

	n, err := svc.ImportChemicals(ctx, adminActor, strings.NewReader("name,initial_quantity,ghs_symbols\nEthanol,5,Flame\nAcetone,3,\"Flame,Exclamation Mark\"\n"))
	if err != nil {
		t.Fatalf("ImportChemicals: %v", err)
	}
	if n != 2 || len(db.chems) != 2 {
		t.Errorf("imported %d, stored %d", n, len(db.chems))
	}
	if db.lastAudit(t).Action != models.AuditActionImport {
		t.Error("import not audited")
	}

	_, err = svc.ImportChemicals(ctx, adminActor, strings.NewReader("name,initial_quantity\nA,1\nB,lots\n"))
	var re *csvio.RowError
	if !errors.As(err, &re) || re.Line != 3 {
		t.Fatalf("err = %v, want row error on line 3", err)
	}
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Error("row errors should surface as validation errors")
	}
	if len(db.chems) != 2 {
		t.Error("failed import stored rows")
	}

	db.failWrites = errWrite
	if _, err := svc.ImportChemicals(ctx, adminActor, strings.NewReader("name\nC\n")); !errors.Is(err, errWrite) {
		t.Errorf("err = %v, want write error", err)
	}

	if _, err := svc.ImportChemicals(ctx, adminActor, strings.NewReader("name\n")); !errors.As(err, &ve) {
		t.Errorf("empty import err = %v", err)
	}
}

func TestImportEquipment(t *testing.T) {
	db := newMemDB()
	svc, _ := newInventoryService(db, nil)
	n, err := svc.ImportEquipment(context.Background(), adminActor, strings.NewReader("Name,Status\nScale,Broken\nHood,\n"))
	if err != nil {
		t.Fatalf("ImportEquipment: %v", err)
	}
	if n != 2 {
		t.Errorf("n = %d", n)
	}
}

func TestExportAndArchive(t *testing.T) {
	db := newMemDB()
	db.addChemical("Ethanol", 4)
	archive := &memArchive{}
	svc, _ := newInventoryService(db, archive)
	ctx := context.Background()

	var buf bytes.Buffer
	if err := svc.Export(ctx, EntityChemicals, &buf); err != nil {
		t.Fatalf("Export: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "id,name,") || !strings.Contains(buf.String(), "Ethanol") {
		t.Errorf("export = %q", buf.String())
	}
	if err := svc.Export(ctx, Entity("users"), &buf); err == nil {
		t.Error("unknown entity should fail")
	}

	obj, err := svc.Archive(ctx, EntityChemicals)
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if obj.Path != "exports/chemicals/20261016T120000Z.csv" {
		t.Errorf("path = %s", obj.Path)
	}
	if obj.URL != "https://files.example/"+obj.Path {
		t.Errorf("url = %s", obj.URL)
	}

	list, err := svc.Archives(ctx)
	if err != nil || len(list) != 1 {
		t.Fatalf("Archives = %v, %v", list, err)
	}
	rc, err := svc.OpenArchive(ctx, obj.Path)
	if err != nil {
		t.Fatalf("OpenArchive: %v", err)
	}
	rc.Close()
	if _, err := svc.OpenArchive(ctx, "../etc/passwd"); err == nil {
		t.Error("path outside exports should be refused")
	}

	noArchive, _ := newInventoryService(db, nil)
	if _, err := noArchive.Archive(ctx, EntityChemicals); !errors.Is(err, ErrArchiveDisabled) {
		t.Errorf("err = %v, want ErrArchiveDisabled", err)
	}
}
