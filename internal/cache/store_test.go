package cache

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MiRedo238/Chemsphere-sub000/internal/config"
	"github.com/MiRedo238/Chemsphere-sub000/internal/db/models"
)

type countingLoaders struct {
	chemicals atomic.Int32
	equipment atomic.Int32
	usage     atomic.Int32
	audit     atomic.Int32
	chemList  []*models.Chemical
	chemErr   error
}

func (c *countingLoaders) loaders() Loaders {
	return Loaders{
		Chemicals: func(context.Context) ([]*models.Chemical, error) {
			c.chemicals.Add(1)
			return c.chemList, c.chemErr
		},
		Equipment: func(context.Context) ([]*models.Equipment, error) {
			c.equipment.Add(1)
			return []*models.Equipment{{ID: "eq-1", Name: "Centrifuge", Status: models.EquipmentAvailable}}, nil
		},
		UsageLogs: func(context.Context) ([]*models.UsageLog, error) {
			c.usage.Add(1)
			return nil, nil
		},
		AuditLogs: func(context.Context) ([]*models.AuditLog, error) {
			c.audit.Add(1)
			return []*models.AuditLog{{ID: "a-1", Details: models.JSONMap{"k": "v"}}}, nil
		},
	}
}

func newTestStore(t *testing.T) (*Store, *countingLoaders) {
	t.Helper()
	cl := &countingLoaders{chemList: []*models.Chemical{{
		ID:         "chem-1",
		Name:       "Ethanol",
		GHSSymbols: models.GHSSymbols{models.GHSFlame},
	}}}
	return NewStore(NewMemoryBackend(), cl.loaders(), time.Minute), cl
}

func TestStore_LoadsOnMissThenHits(t *testing.T) {
	s, cl := newTestStore(t)
	ctx := context.Background()

	first, err := s.Chemicals(ctx)
	require.NoError(t, err)
	second, err := s.Chemicals(ctx)
	require.NoError(t, err)

	assert.EqualValues(t, 1, cl.chemicals.Load())
	require.Len(t, second, 1)
	assert.Equal(t, first[0].Name, second[0].Name)
	assert.Equal(t, models.GHSSymbols{models.GHSFlame}, second[0].GHSSymbols)
}

func TestStore_NilLoadBecomesEmptySlice(t *testing.T) {
	s, _ := newTestStore(t)
	logs, err := s.UsageLogs(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, logs)
	assert.Empty(t, logs)
}

func TestStore_InvalidateForcesReload(t *testing.T) {
	s, cl := newTestStore(t)
	ctx := context.Background()

	_, _ = s.Chemicals(ctx)
	_, _ = s.Equipment(ctx)
	require.NoError(t, s.Invalidate(ctx, SectionChemicals))
	_, _ = s.Chemicals(ctx)
	_, _ = s.Equipment(ctx)

	assert.EqualValues(t, 2, cl.chemicals.Load())
	assert.EqualValues(t, 1, cl.equipment.Load())
}

func TestStore_InvalidateAll(t *testing.T) {
	s, cl := newTestStore(t)
	ctx := context.Background()

	_, _ = s.Chemicals(ctx)
	_, _ = s.AuditLogs(ctx)
	require.NoError(t, s.Invalidate(ctx))
	_, _ = s.Chemicals(ctx)
	_, _ = s.AuditLogs(ctx)

	assert.EqualValues(t, 2, cl.chemicals.Load())
	assert.EqualValues(t, 2, cl.audit.Load())
}

func TestStore_InvalidateDuringLoadDropsStaleSnapshot(t *testing.T) {
	var mu sync.Mutex
	qty := 8.0
	loading := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32

	s := NewStore(NewMemoryBackend(), Loaders{
		Chemicals: func(context.Context) ([]*models.Chemical, error) {
			mu.Lock()
			snapshot := []*models.Chemical{{ID: "chem-1", Name: "Ethanol", CurrentQuantity: qty}}
			mu.Unlock()
			if calls.Add(1) == 1 {
				close(loading)
				<-release
			}
			return snapshot, nil
		},
	}, time.Minute)
	ctx := context.Background()

	done := make(chan []*models.Chemical)
	go func() {
		chems, err := s.Chemicals(ctx)
		assert.NoError(t, err)
		done <- chems
	}()

	<-loading
	mu.Lock()
	qty = 7
	mu.Unlock()
	require.NoError(t, s.Invalidate(ctx, SectionChemicals))
	close(release)

	stale := <-done
	require.Len(t, stale, 1)
	assert.Equal(t, 8.0, stale[0].CurrentQuantity, "the racing read sees what it loaded")

	fresh, err := s.Chemicals(ctx)
	require.NoError(t, err)
	require.Len(t, fresh, 1)
	assert.Equal(t, 7.0, fresh[0].CurrentQuantity)
	assert.EqualValues(t, 2, calls.Load())
}

func TestMemoryBackend_SetIfGeneration(t *testing.T) {
	m := NewMemoryBackend()
	ctx := context.Background()

	gen, err := m.Generation(ctx, "k")
	require.NoError(t, err)
	assert.EqualValues(t, 0, gen)

	ok, err := m.SetIfGeneration(ctx, "k", gen, []byte("v1"), time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, m.Bump(ctx, "k"))
	ok, err = m.SetIfGeneration(ctx, "k", gen, []byte("stale"), time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
	val, _, _ := m.Get(ctx, "k")
	assert.Equal(t, "v1", string(val))

	gen, _ = m.Generation(ctx, "k")
	assert.EqualValues(t, 1, gen)
}

func TestStore_RefreshWritesThrough(t *testing.T) {
	s, cl := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Refresh(ctx))
	assert.EqualValues(t, 1, cl.chemicals.Load())
	assert.EqualValues(t, 1, cl.usage.Load())

	_, _ = s.Chemicals(ctx)
	assert.EqualValues(t, 1, cl.chemicals.Load(), "read after refresh should hit")

	assert.Error(t, s.Refresh(ctx, Section("bogus")))
}

func TestStore_LoaderErrorNotCached(t *testing.T) {
	s, cl := newTestStore(t)
	cl.chemErr = errors.New("db down")

	_, err := s.Chemicals(context.Background())
	assert.ErrorContains(t, err, "db down")

	cl.chemErr = nil
	chems, err := s.Chemicals(context.Background())
	require.NoError(t, err)
	assert.Len(t, chems, 1)
	assert.EqualValues(t, 2, cl.chemicals.Load())
}

func TestStore_MissingLoader(t *testing.T) {
	s := NewStore(NewMemoryBackend(), Loaders{}, 0)
	_, err := s.Equipment(context.Background())
	assert.Error(t, err)
}

func TestStore_ConcurrentReads(t *testing.T) {
	s, _ := newTestStore(t)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			chems, err := s.Chemicals(context.Background())
			assert.NoError(t, err)
			assert.Len(t, chems, 1)
		}()
	}
	wg.Wait()
}

func TestMemoryBackend_Expiry(t *testing.T) {
	m := NewMemoryBackend()
	clock := time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return clock }
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k", []byte("v"), time.Minute))
	require.NoError(t, m.Set(ctx, "forever", []byte("v"), 0))

	_, ok, _ := m.Get(ctx, "k")
	assert.True(t, ok)

	clock = clock.Add(time.Minute)
	_, ok, _ = m.Get(ctx, "k")
	assert.False(t, ok, "entry should expire at its deadline")
	_, ok, _ = m.Get(ctx, "forever")
	assert.True(t, ok)

	require.NoError(t, m.Delete(ctx, "forever", "missing"))
	_, ok, _ = m.Get(ctx, "forever")
	assert.False(t, ok)
}

func TestParseSection(t *testing.T) {
	sec, err := ParseSection("usage_logs")
	require.NoError(t, err)
	assert.Equal(t, SectionUsageLogs, sec)
	_, err = ParseSection("users")
	assert.Error(t, err)
}

// TestRedisBackend runs against a real server when CHEM_TEST_REDIS_ADDR is set.
func TestRedisBackend(t *testing.T) {
	addr := os.Getenv("CHEM_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("CHEM_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	b, err := NewRedisBackend(ctx, config.RedisConfig{Addr: addr, KeyPrefix: "chemsphere-test:"})
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })

	require.NoError(t, b.Set(ctx, "k", []byte("v"), time.Minute))
	val, ok, err := b.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", string(val))

	require.NoError(t, b.Delete(ctx, "k"))
	_, ok, err = b.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	gen, err := b.Generation(ctx, "g")
	require.NoError(t, err)
	stored, err := b.SetIfGeneration(ctx, "g", gen, []byte("v"), time.Minute)
	require.NoError(t, err)
	assert.True(t, stored)
	require.NoError(t, b.Bump(ctx, "g"))
	stored, err = b.SetIfGeneration(ctx, "g", gen, []byte("stale"), time.Minute)
	require.NoError(t, err)
	assert.False(t, stored)
	require.NoError(t, b.Delete(ctx, "g", "g:gen"))
}

func TestNewRedisBackend_RequiresAddr(t *testing.T) {
	_, err := NewRedisBackend(context.Background(), config.RedisConfig{})
	assert.Error(t, err)
}
