package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/MiRedo238/Chemsphere-sub000/internal/db/models"
	"github.com/MiRedo238/Chemsphere-sub000/internal/telemetry"
)

// Section names one cached collection.
type Section string

const (
	SectionChemicals Section = "chemicals"
	SectionEquipment Section = "equipment"
	SectionUsageLogs Section = "usage_logs"
	SectionAuditLogs Section = "audit_logs"
)

// AllSections lists every section in refresh order.
var AllSections = []Section{SectionChemicals, SectionEquipment, SectionUsageLogs, SectionAuditLogs}

// ParseSection validates a section name.
func ParseSection(s string) (Section, error) {
	for _, sec := range AllSections {
		if string(sec) == s {
			return sec, nil
		}
	}
	return "", fmt.Errorf("unknown cache section %q", s)
}

// DefaultTTL bounds how stale a snapshot can get when a write on another
// replica was not seen.
const DefaultTTL = 5 * time.Minute

// Loaders fetch fresh data for each section, normally straight from the
// repositories.
type Loaders struct {
	Chemicals func(ctx context.Context) ([]*models.Chemical, error)
	Equipment func(ctx context.Context) ([]*models.Equipment, error)
	UsageLogs func(ctx context.Context) ([]*models.UsageLog, error)
	AuditLogs func(ctx context.Context) ([]*models.AuditLog, error)
}

// Store serves inventory snapshots. It is safe for concurrent use;
// concurrent misses on one section share a single load.
type Store struct {
	backend Backend
	loaders Loaders
	ttl     time.Duration
	group   singleflight.Group
}

// NewStore creates a store over backend. A ttl of zero uses DefaultTTL.
func NewStore(backend Backend, loaders Loaders, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{backend: backend, loaders: loaders, ttl: ttl}
}

func key(s Section) string {
	return "snapshot:" + string(s)
}

// Chemicals returns the chemical snapshot.
func (s *Store) Chemicals(ctx context.Context) ([]*models.Chemical, error) {
	return read(ctx, s, SectionChemicals, s.loaders.Chemicals)
}

// Equipment returns the equipment snapshot.
func (s *Store) Equipment(ctx context.Context) ([]*models.Equipment, error) {
	return read(ctx, s, SectionEquipment, s.loaders.Equipment)
}

// UsageLogs returns the usage log snapshot, newest first.
func (s *Store) UsageLogs(ctx context.Context) ([]*models.UsageLog, error) {
	return read(ctx, s, SectionUsageLogs, s.loaders.UsageLogs)
}

// AuditLogs returns the recent audit trail snapshot.
func (s *Store) AuditLogs(ctx context.Context) ([]*models.AuditLog, error) {
	return read(ctx, s, SectionAuditLogs, s.loaders.AuditLogs)
}

func read[T any](ctx context.Context, s *Store, sec Section, load func(context.Context) ([]T, error)) ([]T, error) {
	if raw, ok, err := s.backend.Get(ctx, key(sec)); err != nil {
		slog.Warn("cache read failed, loading from source", "section", sec, "error", err)
		telemetry.CacheRequestsTotal.WithLabelValues(string(sec), "error").Inc()
	} else if ok {
		var items []T
		err := json.Unmarshal(raw, &items)
		if err == nil {
			telemetry.CacheRequestsTotal.WithLabelValues(string(sec), "hit").Inc()
			return items, nil
		}
		slog.Warn("discarding undecodable cache snapshot", "section", sec, "error", err)
	}
	telemetry.CacheRequestsTotal.WithLabelValues(string(sec), "miss").Inc()

	v, err, _ := s.group.Do(string(sec), func() (interface{}, error) {
		return fill(ctx, s, sec, load)
	})
	if err != nil {
		return nil, err
	}
	return v.([]T), nil
}

// fill loads a section from its source and writes the snapshot through.
func fill[T any](ctx context.Context, s *Store, sec Section, load func(context.Context) ([]T, error)) ([]T, error) {
	if load == nil {
		return nil, fmt.Errorf("no loader configured for cache section %s", sec)
	}
	// The generation is read before loading so an Invalidate that lands
	// while the load runs keeps the pre-write snapshot out of the cache.
	gen, genErr := s.backend.Generation(ctx, key(sec))
	items, err := load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", sec, err)
	}
	if items == nil {
		items = make([]T, 0)
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("encode %s snapshot: %w", sec, err)
	}
	if genErr != nil {
		slog.Warn("cache generation read failed, not caching snapshot", "section", sec, "error", genErr)
		return items, nil
	}
	stored, err := s.backend.SetIfGeneration(ctx, key(sec), gen, raw, s.ttl)
	switch {
	case err != nil:
		slog.Warn("cache write failed", "section", sec, "error", err)
	case !stored:
		slog.Debug("section invalidated during load, snapshot not cached", "section", sec)
	}
	return items, nil
}

// Refresh reloads the given sections (all when none) from their sources.
func (s *Store) Refresh(ctx context.Context, sections ...Section) error {
	if len(sections) == 0 {
		sections = AllSections
	}
	for _, sec := range sections {
		var err error
		switch sec {
		case SectionChemicals:
			_, err = fill(ctx, s, sec, s.loaders.Chemicals)
		case SectionEquipment:
			_, err = fill(ctx, s, sec, s.loaders.Equipment)
		case SectionUsageLogs:
			_, err = fill(ctx, s, sec, s.loaders.UsageLogs)
		case SectionAuditLogs:
			_, err = fill(ctx, s, sec, s.loaders.AuditLogs)
		default:
			err = fmt.Errorf("unknown cache section %q", sec)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Invalidate drops the given sections (all when none); the next read
// reloads them. Loads already in flight for these sections do not cache
// their result.
func (s *Store) Invalidate(ctx context.Context, sections ...Section) error {
	if len(sections) == 0 {
		sections = AllSections
	}
	keys := make([]string, len(sections))
	for i, sec := range sections {
		keys[i] = key(sec)
		s.group.Forget(string(sec))
	}
	// Bump before delete: a load that stored before the bump is removed by
	// the delete, and one that stores after it is refused.
	if err := s.backend.Bump(ctx, keys...); err != nil {
		return fmt.Errorf("invalidate %v: %w", sections, err)
	}
	if err := s.backend.Delete(ctx, keys...); err != nil {
		return fmt.Errorf("invalidate %v: %w", sections, err)
	}
	return nil
}
