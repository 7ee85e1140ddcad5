package inventory

import (
	"sort"
	"strings"
	"time"

	"github.com/MiRedo238/Chemsphere-sub000/internal/db/models"
)

// Defaults for the dashboard buckets.
const (
	DefaultLowStockThreshold = 5
	DefaultNearExpiration    = 90 * 24 * time.Hour
)

// Thresholds configures the dashboard buckets. Zero values fall back to the
// defaults.
type Thresholds struct {
	LowStock       float64
	NearExpiration time.Duration
}

func (t Thresholds) withDefaults() Thresholds {
	if t.LowStock <= 0 {
		t.LowStock = DefaultLowStockThreshold
	}
	if t.NearExpiration <= 0 {
		t.NearExpiration = DefaultNearExpiration
	}
	return t
}

// NearExpiration returns chemicals expiring in (now, now+window], soonest
// first. A window of zero or less uses the default of 90 days.
func NearExpiration(chems []*models.Chemical, now time.Time, window time.Duration) []*models.Chemical {
	if window <= 0 {
		window = DefaultNearExpiration
	}
	limit := now.Add(window)
	out := selectChemicals(chems, func(c *models.Chemical) bool {
		return c.ExpirationDate != nil && c.ExpirationDate.After(now) && !c.ExpirationDate.After(limit)
	})
	sortByExpiration(out)
	return out
}

// LowStock returns chemicals with 0 < current_quantity <= threshold, lowest
// first. A threshold of zero or less uses the default of 5.
func LowStock(chems []*models.Chemical, threshold float64) []*models.Chemical {
	if threshold <= 0 {
		threshold = DefaultLowStockThreshold
	}
	out := selectChemicals(chems, func(c *models.Chemical) bool {
		return c.CurrentQuantity > 0 && c.CurrentQuantity <= threshold
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].CurrentQuantity < out[j].CurrentQuantity })
	return out
}

// Expired returns chemicals whose expiration date is before now, oldest first.
func Expired(chems []*models.Chemical, now time.Time) []*models.Chemical {
	out := selectChemicals(chems, func(c *models.Chemical) bool {
		return c.ExpirationDate != nil && c.ExpirationDate.Before(now)
	})
	sortByExpiration(out)
	return out
}

// OutOfStock returns chemicals with nothing left, by name.
func OutOfStock(chems []*models.Chemical) []*models.Chemical {
	out := selectChemicals(chems, func(c *models.Chemical) bool { return c.CurrentQuantity == 0 })
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out
}

func selectChemicals(chems []*models.Chemical, keep func(*models.Chemical) bool) []*models.Chemical {
	out := make([]*models.Chemical, 0)
	for _, c := range chems {
		if keep(c) {
			out = append(out, c)
		}
	}
	return out
}

func sortByExpiration(chems []*models.Chemical) {
	sort.SliceStable(chems, func(i, j int) bool { return chems[i].ExpirationDate.Before(*chems[j].ExpirationDate) })
}

// DashboardCounts summarises the buckets and the stock totals.
type DashboardCounts struct {
	Chemicals       int `json:"chemicals"`
	OpenedChemicals int `json:"opened_chemicals"`
	Equipment       int `json:"equipment"`
	NearExpiration  int `json:"near_expiration"`
	LowStock        int `json:"low_stock"`
	Expired         int `json:"expired"`
	OutOfStock      int `json:"out_of_stock"`
}

// Dashboard is the response for the dashboard view.
type Dashboard struct {
	GeneratedAt     time.Time                      `json:"generated_at"`
	Counts          DashboardCounts                `json:"counts"`
	EquipmentStatus map[models.EquipmentStatus]int `json:"equipment_status"`
	NearExpiration  []*models.Chemical             `json:"near_expiration"`
	LowStock        []*models.Chemical             `json:"low_stock"`
	Expired         []*models.Chemical             `json:"expired"`
	OutOfStock      []*models.Chemical             `json:"out_of_stock"`
}

// BuildDashboard derives every dashboard bucket from one snapshot.
func BuildDashboard(chems []*models.Chemical, equipment []*models.Equipment, now time.Time, t Thresholds) Dashboard {
	t = t.withDefaults()
	d := Dashboard{
		GeneratedAt:    now,
		NearExpiration: NearExpiration(chems, now, t.NearExpiration),
		LowStock:       LowStock(chems, t.LowStock),
		Expired:        Expired(chems, now),
		OutOfStock:     OutOfStock(chems),
	}
	d.EquipmentStatus = map[models.EquipmentStatus]int{
		models.EquipmentAvailable:        0,
		models.EquipmentBroken:           0,
		models.EquipmentUnderMaintenance: 0,
	}
	for _, c := range chems {
		if c.Opened {
			d.Counts.OpenedChemicals++
		}
	}
	for _, e := range equipment {
		d.EquipmentStatus[e.Status]++
	}
	d.Counts.Chemicals = len(chems)
	d.Counts.Equipment = len(equipment)
	d.Counts.NearExpiration = len(d.NearExpiration)
	d.Counts.LowStock = len(d.LowStock)
	d.Counts.Expired = len(d.Expired)
	d.Counts.OutOfStock = len(d.OutOfStock)
	return d
}
