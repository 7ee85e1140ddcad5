package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/MiRedo238/Chemsphere-sub000/internal/cache"
	"github.com/MiRedo238/Chemsphere-sub000/internal/db/models"
	"github.com/MiRedo238/Chemsphere-sub000/internal/db/repositories"
)

// memDB is an in-memory stand-in for the repositories. Workflow writes
// either apply completely or not at all, like the real transactions.
type memDB struct {
	mu        sync.Mutex
	chems     map[string]*models.Chemical
	equipment map[string]*models.Equipment
	logs      map[string]*models.UsageLog
	users     map[string]*models.User
	audits    []*models.AuditLog

	// consumeBeforeCommit simulates another session draining stock between
	// the precheck and the transaction.
	consumeBeforeCommit map[string]float64
	failWrites          error
}

func newMemDB() *memDB {
	return &memDB{
		chems:     make(map[string]*models.Chemical),
		equipment: make(map[string]*models.Equipment),
		logs:      make(map[string]*models.UsageLog),
		users:     make(map[string]*models.User),
	}
}

// id hands out row keys in the same canonical UUID form Postgres does.
func (m *memDB) id() string {
	return uuid.NewString()
}

func (m *memDB) addChemical(name string, current float64) *models.Chemical {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := &models.Chemical{
		ID:              m.id(),
		Name:            name,
		BatchNumber:     "B-" + name,
		PhysicalState:   models.PhysicalStateLiquid,
		Unit:            "mL",
		InitialQuantity: current,
		CurrentQuantity: current,
		SafetyClass:     models.SafetyClassFlammable,
		GHSSymbols:      models.GHSSymbols{models.GHSFlame},
	}
	m.chems[c.ID] = c
	return c
}

func (m *memDB) addEquipment(name string) *models.Equipment {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := &models.Equipment{ID: m.id(), Name: name, Status: models.EquipmentAvailable}
	m.equipment[e.ID] = e
	return e
}

func (m *memDB) chemical(id string) models.Chemical {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.chems[id]
}

// chemicalRepo adapts memDB to ChemicalStore and ChemicalLookup.
type chemicalRepo struct{ *memDB }

func (r chemicalRepo) Create(_ context.Context, c *models.Chemical) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWrites != nil {
		return r.failWrites
	}
	c.ID = r.id()
	cp := *c
	r.chems[c.ID] = &cp
	return nil
}

func (r chemicalRepo) CreateBatch(ctx context.Context, chems []*models.Chemical) error {
	if r.failWrites != nil {
		return r.failWrites
	}
	for _, c := range chems {
		if err := r.Create(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

func (r chemicalRepo) GetByID(_ context.Context, id string) (*models.Chemical, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.chems[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (r chemicalRepo) GetByIDs(_ context.Context, ids []string) (map[string]*models.Chemical, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]*models.Chemical)
	for _, id := range ids {
		if c, ok := r.chems[id]; ok {
			cp := *c
			out[id] = &cp
		}
	}
	return out, nil
}

func (r chemicalRepo) Update(_ context.Context, c *models.Chemical) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.chems[c.ID]; !ok {
		return repositories.ErrNotFound
	}
	cp := *c
	r.chems[c.ID] = &cp
	return nil
}

func (r chemicalRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.chems[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(r.chems, id)
	return nil
}

// equipmentRepo adapts memDB to EquipmentStore and EquipmentLookup.
type equipmentRepo struct{ *memDB }

func (r equipmentRepo) Create(_ context.Context, e *models.Equipment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e.ID = r.id()
	cp := *e
	r.equipment[e.ID] = &cp
	return nil
}

func (r equipmentRepo) CreateBatch(ctx context.Context, items []*models.Equipment) error {
	for _, e := range items {
		if err := r.Create(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (r equipmentRepo) GetByID(_ context.Context, id string) (*models.Equipment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.equipment[id]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

func (r equipmentRepo) GetByIDs(_ context.Context, ids []string) (map[string]*models.Equipment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]*models.Equipment)
	for _, id := range ids {
		if e, ok := r.equipment[id]; ok {
			cp := *e
			out[id] = &cp
		}
	}
	return out, nil
}

func (r equipmentRepo) Update(_ context.Context, e *models.Equipment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.equipment[e.ID]; !ok {
		return repositories.ErrNotFound
	}
	cp := *e
	r.equipment[e.ID] = &cp
	return nil
}

func (r equipmentRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.equipment[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(r.equipment, id)
	return nil
}

// usageRepo adapts memDB to UsageLogStore with all-or-nothing writes.
type usageRepo struct{ *memDB }

func (r usageRepo) CreateUsageLog(_ context.Context, rec repositories.UsageRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, q := range r.consumeBeforeCommit {
		r.chems[id].CurrentQuantity -= q
	}
	r.consumeBeforeCommit = nil

	for _, u := range rec.Log.Chemicals {
		c := r.chems[*u.ChemicalID]
		if c.CurrentQuantity < u.Quantity {
			return &repositories.StockError{ChemicalID: c.ID, ChemicalName: c.Name, Requested: u.Quantity, Available: -1}
		}
	}
	if r.failWrites != nil {
		return r.failWrites
	}

	for _, u := range rec.Log.Chemicals {
		r.chems[*u.ChemicalID].CurrentQuantity -= u.Quantity
	}
	for i, opened := range rec.Opened {
		opened.ID = r.id()
		cp := *opened
		r.chems[opened.ID] = &cp
		oid := opened.ID
		rec.Log.Chemicals[i].OpenedChemicalID = &oid
	}
	rec.Log.ID = r.id()
	for i := range rec.Log.Chemicals {
		rec.Log.Chemicals[i].UsageLogID = rec.Log.ID
	}
	stored := *rec.Log
	stored.Chemicals = append([]models.ChemicalUsage(nil), rec.Log.Chemicals...)
	stored.Equipment = append([]models.EquipmentLink(nil), rec.Log.Equipment...)
	r.logs[rec.Log.ID] = &stored
	if rec.Audit != nil {
		r.audits = append(r.audits, rec.Audit)
	}
	return nil
}

func (r usageRepo) DeleteUsageLog(_ context.Context, id string, auditFor func(*models.UsageLog) *models.AuditLog) (*models.UsageLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.logs[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	delete(r.logs, id)
	for cid, q := range models.Restorations(l.Chemicals) {
		if c, ok := r.chems[cid]; ok {
			c.CurrentQuantity += q
		}
	}
	if auditFor != nil {
		if entry := auditFor(l); entry != nil {
			r.audits = append(r.audits, entry)
		}
	}
	return l, nil
}

func (r usageRepo) UpdateUsageLog(_ context.Context, id, notes, location string, audit *models.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.logs[id]
	if !ok {
		return repositories.ErrNotFound
	}
	l.Notes = notes
	l.Location = location
	if audit != nil {
		r.audits = append(r.audits, audit)
	}
	return nil
}

func (r usageRepo) GetUsageLog(_ context.Context, id string) (*models.UsageLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.logs[id]
	if !ok {
		return nil, nil
	}
	cp := *l
	return &cp, nil
}

func (r usageRepo) ListUsageLogs(_ context.Context) ([]*models.UsageLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.UsageLog, 0, len(r.logs))
	for _, l := range r.logs {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}

// auditRepo adapts memDB to AuditWriter.
type auditRepo struct{ *memDB }

func (r auditRepo) CreateAuditLog(_ context.Context, entry *models.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry.ID == "" {
		entry.ID = r.id()
	}
	r.audits = append(r.audits, entry)
	return nil
}

func (m *memDB) lastAudit(t *testing.T) *models.AuditLog {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.audits) == 0 {
		t.Fatal("no audit entries recorded")
	}
	return m.audits[len(m.audits)-1]
}

// userRepo adapts memDB to UserStore.
type userRepo struct{ *memDB }

func (r userRepo) CreateUser(_ context.Context, u *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u.ID = r.id()
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r userRepo) find(match func(*models.User) bool) *models.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if match(u) {
			cp := *u
			return &cp
		}
	}
	return nil
}

func (r userRepo) GetUserByID(_ context.Context, id string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.ID == id }), nil
}

func (r userRepo) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.Email == email }), nil
}

func (r userRepo) GetUserByOIDCSub(_ context.Context, sub string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.OIDCSub != nil && *u.OIDCSub == sub }), nil
}

func (r userRepo) update(id string, fn func(*models.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return repositories.ErrNotFound
	}
	fn(u)
	return nil
}

func (r userRepo) LinkOIDCSub(_ context.Context, id, sub string, verified bool) error {
	return r.update(id, func(u *models.User) {
		u.OIDCSub = &sub
		u.Verified = u.Verified || verified
	})
}

func (r userRepo) ListUsers(_ context.Context, limit, offset int) ([]*models.User, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := make([]*models.User, 0, len(r.users))
	for _, u := range r.users {
		all = append(all, u)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Email < all[j].Email })
	if offset > len(all) {
		offset = len(all)
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], len(all), nil
}

func (r userRepo) UpdateRole(_ context.Context, id string, role models.Role) error {
	return r.update(id, func(u *models.User) { u.Role = role })
}

func (r userRepo) SetActive(_ context.Context, id string, active bool) error {
	return r.update(id, func(u *models.User) { u.Active = active })
}

func (r userRepo) SetVerified(_ context.Context, id string, verified bool) error {
	return r.update(id, func(u *models.User) { u.Verified = verified })
}

// recordingCache records invalidated sections.
type recordingCache struct {
	mu       sync.Mutex
	sections []cache.Section
}

func (c *recordingCache) Invalidate(_ context.Context, sections ...cache.Section) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sections = append(c.sections, sections...)
	return nil
}

func (c *recordingCache) has(sec cache.Section) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range c.sections {
		if s == sec {
			return true
		}
	}
	return false
}

// chanShipper delivers shipped entries on a channel.
type chanShipper chan *models.AuditLog

func (c chanShipper) ShipModel(_ context.Context, entry *models.AuditLog) error {
	c <- entry
	return nil
}

func (c chanShipper) wait(t *testing.T) *models.AuditLog {
	t.Helper()
	select {
	case e := <-c:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("audit entry was not shipped")
		return nil
	}
}

var errWrite = errors.New("write failed")

func ptr[T any](v T) *T { return &v }
