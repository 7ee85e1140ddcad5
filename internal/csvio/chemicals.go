package csvio

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/MiRedo238/Chemsphere-sub000/internal/db/models"
)

// ChemicalColumns is the export header, in order.
var ChemicalColumns = []string{
	"id", "name", "batch_number", "brand", "physical_state", "unit",
	"initial_quantity", "current_quantity", "expiration_date", "date_of_arrival",
	"safety_class", "location", "ghs_symbols", "opened", "remaining_amount",
	"parent_chemical_id", "created_at",
}

// WriteChemicals exports chemicals with GHS symbols as a JSON array cell.
func WriteChemicals(w io.Writer, chems []*models.Chemical) error {
	records := make([][]string, 0, len(chems))
	for _, c := range chems {
		ghs, err := json.Marshal(c.GHSSymbols)
		if err != nil {
			return fmt.Errorf("encode ghs symbols for %s: %w", c.Name, err)
		}
		records = append(records, []string{
			c.ID,
			c.Name,
			c.BatchNumber,
			c.Brand,
			string(c.PhysicalState),
			c.Unit,
			formatFloat(c.InitialQuantity),
			formatFloat(c.CurrentQuantity),
			formatDate(c.ExpirationDate),
			formatDate(c.DateOfArrival),
			string(c.SafetyClass),
			c.Location,
			string(ghs),
			fmt.Sprint(c.Opened),
			formatOptFloat(c.RemainingAmount),
			deref(c.ParentChemicalID),
			formatTime(c.CreatedAt),
		})
	}
	return writeAll(w, ChemicalColumns, records)
}

// ReadChemicals parses an import file into new chemical records. Only name
// is required. physical_state defaults to liquid and safety_class to safe;
// an empty current_quantity takes the initial quantity. Any id column is
// ignored since imports always create.
func ReadChemicals(r io.Reader) ([]*models.Chemical, error) {
	var out []*models.Chemical
	err := readRows(r, func(rw row) error {
		c, err := chemicalFromRow(rw)
		if err != nil {
			return err
		}
		out = append(out, c)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func chemicalFromRow(rw row) (*models.Chemical, error) {
	c := &models.Chemical{
		Name:        rw.str("name"),
		BatchNumber: rw.str("batch_number"),
		Brand:       rw.str("brand"),
		Unit:        rw.str("unit"),
		Location:    rw.str("location"),
	}
	if c.Name == "" {
		return nil, rw.fail("name", errors.New("name is required"))
	}

	c.PhysicalState = models.PhysicalState(strings.ToLower(rw.str("physical_state")))
	if c.PhysicalState == "" {
		c.PhysicalState = models.PhysicalStateLiquid
	}
	c.SafetyClass = models.SafetyClass(strings.ToLower(rw.str("safety_class")))
	if c.SafetyClass == "" {
		c.SafetyClass = models.SafetyClassSafe
	}

	var err error
	if c.InitialQuantity, err = rw.float("initial_quantity"); err != nil {
		return nil, err
	}
	if rw.str("current_quantity") == "" {
		c.CurrentQuantity = c.InitialQuantity
	} else if c.CurrentQuantity, err = rw.float("current_quantity"); err != nil {
		return nil, err
	}
	if c.ExpirationDate, err = rw.date("expiration_date"); err != nil {
		return nil, err
	}
	if c.DateOfArrival, err = rw.date("date_of_arrival"); err != nil {
		return nil, err
	}
	if c.Opened, err = rw.bool("opened"); err != nil {
		return nil, err
	}
	if c.RemainingAmount, err = rw.optFloat("remaining_amount"); err != nil {
		return nil, err
	}

	ghs, err := NormalizeGHSField(rw.cells["ghs_symbols"])
	if err != nil {
		return nil, rw.fail("ghs_symbols", err)
	}
	c.GHSSymbols = ghs

	if err := c.Validate(); err != nil {
		return nil, rw.fail("", err)
	}
	return c, nil
}
