// Package models - usage_log.go defines usage logs and the child rows they own.
package models

import "time"

// UsageLog records one lab session. It owns its ChemicalUsage and
// EquipmentLink rows; they are created and deleted with it.
type UsageLog struct {
	ID        string    `db:"id" json:"id"`
	UserID    *string   `db:"user_id" json:"user_id"`
	UserName  string    `db:"user_name" json:"user_name"`
	Date      time.Time `db:"date" json:"date"`
	Notes     string    `db:"notes" json:"notes"`
	Location  string    `db:"location" json:"location"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`

	Chemicals []ChemicalUsage `db:"-" json:"chemicals"`
	Equipment []EquipmentLink `db:"-" json:"equipment"`
}

// ChemicalUsage is the quantity of one chemical consumed in a session.
type ChemicalUsage struct {
	ID               string   `db:"id" json:"id"`
	UsageLogID       string   `db:"usage_log_id" json:"usage_log_id"`
	ChemicalID       *string  `db:"chemical_id" json:"chemical_id"`
	ChemicalName     string   `db:"chemical_name" json:"chemical_name"`
	Quantity         float64  `db:"quantity" json:"quantity"`
	Unit             string   `db:"unit" json:"unit"`
	Opened           bool     `db:"opened" json:"opened"`
	RemainingAmount  *float64 `db:"remaining_amount" json:"remaining_amount"`
	OpenedChemicalID *string  `db:"opened_chemical_id" json:"opened_chemical_id"`
}

// EquipmentLink ties a piece of equipment to a session.
type EquipmentLink struct {
	ID            string  `db:"id" json:"id"`
	UsageLogID    string  `db:"usage_log_id" json:"usage_log_id"`
	EquipmentID   *string `db:"equipment_id" json:"equipment_id"`
	EquipmentName string  `db:"equipment_name" json:"equipment_name"`
}

// Restorations sums the consumed quantity per chemical. Usages whose
// chemical has since been deleted are skipped.
func Restorations(usages []ChemicalUsage) map[string]float64 {
	out := make(map[string]float64, len(usages))
	for _, u := range usages {
		if u.ChemicalID == nil {
			continue
		}
		out[*u.ChemicalID] += u.Quantity
	}
	return out
}
