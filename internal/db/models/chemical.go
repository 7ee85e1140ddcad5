// Package models - chemical.go defines the Chemical inventory record, its
// enums, and the opened-container split.
package models

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// Quantity columns are NUMERIC(14,3).
const (
	QuantityScale = 3
	MaxQuantity   = 1e11
)

// epsilon is the float64 machine epsilon.
const epsilon = 2.220446049250313e-16

// QuantityFits reports whether q is stored exactly by a quantity column:
// no more than QuantityScale decimal places and below MaxQuantity.
func QuantityFits(q float64) bool {
	if math.IsNaN(q) || math.IsInf(q, 0) || math.Abs(q) >= MaxQuantity {
		return false
	}
	scaled := q * math.Pow10(QuantityScale)
	tol := math.Max(1e-6, 4*epsilon*math.Abs(scaled))
	return math.Abs(scaled-math.Round(scaled)) <= tol
}

// PhysicalState is the state a chemical is stocked in.
type PhysicalState string

const (
	PhysicalStateLiquid PhysicalState = "liquid"
	PhysicalStateSolid  PhysicalState = "solid"
)

// Valid reports whether p is a known state.
func (p PhysicalState) Valid() bool {
	return p == PhysicalStateLiquid || p == PhysicalStateSolid
}

// SafetyClass is the storage/handling class of a chemical.
type SafetyClass string

const (
	SafetyClassSafe      SafetyClass = "safe"
	SafetyClassToxic     SafetyClass = "toxic"
	SafetyClassCorrosive SafetyClass = "corrosive"
	SafetyClassReactive  SafetyClass = "reactive"
	SafetyClassFlammable SafetyClass = "flammable"
)

// Valid reports whether s is a known safety class.
func (s SafetyClass) Valid() bool {
	switch s {
	case SafetyClassSafe, SafetyClassToxic, SafetyClassCorrosive, SafetyClassReactive, SafetyClassFlammable:
		return true
	}
	return false
}

// OpenedSuffix is appended to a chemical's name for its opened-container record.
const OpenedSuffix = " (Opened)"

// Chemical is a lab chemical container or batch.
type Chemical struct {
	ID               string        `db:"id" json:"id"`
	Name             string        `db:"name" json:"name"`
	BatchNumber      string        `db:"batch_number" json:"batch_number"`
	Brand            string        `db:"brand" json:"brand"`
	PhysicalState    PhysicalState `db:"physical_state" json:"physical_state"`
	Unit             string        `db:"unit" json:"unit"`
	InitialQuantity  float64       `db:"initial_quantity" json:"initial_quantity"`
	CurrentQuantity  float64       `db:"current_quantity" json:"current_quantity"`
	ExpirationDate   *time.Time    `db:"expiration_date" json:"expiration_date"`
	DateOfArrival    *time.Time    `db:"date_of_arrival" json:"date_of_arrival"`
	SafetyClass      SafetyClass   `db:"safety_class" json:"safety_class"`
	Location         string        `db:"location" json:"location"`
	GHSSymbols       GHSSymbols    `db:"ghs_symbols" json:"ghs_symbols"`
	Opened           bool          `db:"opened" json:"opened"`
	RemainingAmount  *float64      `db:"remaining_amount" json:"remaining_amount"`
	ParentChemicalID *string       `db:"parent_chemical_id" json:"parent_chemical_id"`
	CreatedAt        time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time     `db:"updated_at" json:"updated_at"`
}

// Validate checks the invariants a chemical must hold before it is written.
func (c *Chemical) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Name) == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if !c.PhysicalState.Valid() {
		errs = append(errs, fmt.Errorf("physical_state must be liquid or solid, got %q", c.PhysicalState))
	}
	if !c.SafetyClass.Valid() {
		errs = append(errs, fmt.Errorf("invalid safety_class %q", c.SafetyClass))
	}
	if c.InitialQuantity < 0 {
		errs = append(errs, errors.New("initial_quantity must not be negative"))
	}
	if c.CurrentQuantity < 0 {
		errs = append(errs, errors.New("current_quantity must not be negative"))
	}
	if c.CurrentQuantity > c.InitialQuantity {
		errs = append(errs, errors.New("current_quantity must not exceed initial_quantity"))
	}
	if !QuantityFits(c.InitialQuantity) || !QuantityFits(c.CurrentQuantity) {
		errs = append(errs, fmt.Errorf("quantities allow at most %d decimal places", QuantityScale))
	}
	if c.Opened && (c.RemainingAmount == nil || *c.RemainingAmount <= 0) {
		errs = append(errs, errors.New("opened chemicals need a positive remaining_amount"))
	}
	if c.RemainingAmount != nil && !QuantityFits(*c.RemainingAmount) {
		errs = append(errs, fmt.Errorf("remaining_amount allows at most %d decimal places", QuantityScale))
	}
	return errors.Join(errs...)
}

// OpenedContainer builds the record for the opened remainder of c. The
// result has no ID yet; it shares c's metadata, holds exactly one container
// and points back at c.
func (c *Chemical) OpenedContainer(remaining float64, location string) *Chemical {
	parent := c.ID
	amount := remaining
	return &Chemical{
		Name:             c.Name + OpenedSuffix,
		BatchNumber:      c.BatchNumber,
		Brand:            c.Brand,
		PhysicalState:    c.PhysicalState,
		Unit:             c.Unit,
		InitialQuantity:  1,
		CurrentQuantity:  1,
		ExpirationDate:   c.ExpirationDate,
		DateOfArrival:    c.DateOfArrival,
		SafetyClass:      c.SafetyClass,
		Location:         location,
		GHSSymbols:       append(GHSSymbols(nil), c.GHSSymbols...),
		Opened:           true,
		RemainingAmount:  &amount,
		ParentChemicalID: &parent,
	}
}
