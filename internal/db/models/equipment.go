// Package models - equipment.go defines lab equipment records.
package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// EquipmentStatus is the availability of a piece of equipment.
type EquipmentStatus string

const (
	EquipmentAvailable        EquipmentStatus = "Available"
	EquipmentBroken           EquipmentStatus = "Broken"
	EquipmentUnderMaintenance EquipmentStatus = "Under Maintenance"
)

// ParseEquipmentStatus matches a status case-insensitively.
func ParseEquipmentStatus(s string) (EquipmentStatus, error) {
	for _, st := range []EquipmentStatus{EquipmentAvailable, EquipmentBroken, EquipmentUnderMaintenance} {
		if strings.EqualFold(strings.TrimSpace(s), string(st)) {
			return st, nil
		}
	}
	return "", fmt.Errorf("invalid equipment status %q", s)
}

// Equipment is a tracked lab instrument.
type Equipment struct {
	ID                 string          `db:"id" json:"id"`
	Name               string          `db:"name" json:"name"`
	Model              string          `db:"model" json:"model"`
	SerialID           string          `db:"serial_id" json:"serial_id"`
	Status             EquipmentStatus `db:"status" json:"status"`
	Location           string          `db:"location" json:"location"`
	PurchaseDate       *time.Time      `db:"purchase_date" json:"purchase_date"`
	WarrantyExpiration *time.Time      `db:"warranty_expiration" json:"warranty_expiration"`
	LastMaintenance    *time.Time      `db:"last_maintenance" json:"last_maintenance"`
	NextMaintenance    *time.Time      `db:"next_maintenance" json:"next_maintenance"`
	Condition          string          `db:"condition" json:"condition"`
	CreatedAt          time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time       `db:"updated_at" json:"updated_at"`
}

// Validate checks required fields and the status enum.
func (e *Equipment) Validate() error {
	var errs []error
	if strings.TrimSpace(e.Name) == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if _, err := ParseEquipmentStatus(string(e.Status)); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
