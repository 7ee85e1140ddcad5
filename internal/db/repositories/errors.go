package repositories

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by write paths that target a row which does
	// not exist (or no longer exists). Plain lookups return nil, nil instead.
	ErrNotFound = errors.New("record not found")

	// ErrInsufficientStock is returned when a chemical holds less than the
	// quantity a usage log tries to consume.
	ErrInsufficientStock = errors.New("insufficient stock")
)

// StockError describes which chemical could not cover a usage. It matches
// ErrInsufficientStock under errors.Is.
type StockError struct {
	ChemicalID   string
	ChemicalName string
	Requested    float64
	// Available is the quantity seen at check time; -1 when the shortfall
	// was detected by the conditional decrement and the quantity is unknown.
	Available float64
}

func (e *StockError) Error() string {
	if e.Available < 0 {
		return fmt.Sprintf("insufficient stock for %s: %g requested", e.label(), e.Requested)
	}
	return fmt.Sprintf("insufficient stock for %s: %g requested, %g available", e.label(), e.Requested, e.Available)
}

func (e *StockError) label() string {
	if e.ChemicalName != "" {
		return e.ChemicalName
	}
	return e.ChemicalID
}

// Is lets errors.Is(err, ErrInsufficientStock) match.
func (e *StockError) Is(target error) bool {
	return target == ErrInsufficientStock
}
