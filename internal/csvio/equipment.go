package csvio

import (
	"errors"
	"io"

	"github.com/MiRedo238/Chemsphere-sub000/internal/db/models"
)

// EquipmentColumns is the export header, in order.
var EquipmentColumns = []string{
	"id", "name", "model", "serial_id", "status", "location",
	"purchase_date", "warranty_expiration", "last_maintenance", "next_maintenance",
	"condition", "created_at",
}

// WriteEquipment exports equipment records.
func WriteEquipment(w io.Writer, equipment []*models.Equipment) error {
	records := make([][]string, 0, len(equipment))
	for _, e := range equipment {
		records = append(records, []string{
			e.ID,
			e.Name,
			e.Model,
			e.SerialID,
			string(e.Status),
			e.Location,
			formatDate(e.PurchaseDate),
			formatDate(e.WarrantyExpiration),
			formatDate(e.LastMaintenance),
			formatDate(e.NextMaintenance),
			e.Condition,
			formatTime(e.CreatedAt),
		})
	}
	return writeAll(w, EquipmentColumns, records)
}

// ReadEquipment parses an import file. Only name is required; status
// defaults to Available.
func ReadEquipment(r io.Reader) ([]*models.Equipment, error) {
	var out []*models.Equipment
	err := readRows(r, func(rw row) error {
		e := &models.Equipment{
			Name:      rw.str("name"),
			Model:     rw.str("model"),
			SerialID:  rw.str("serial_id"),
			Location:  rw.str("location"),
			Condition: rw.str("condition"),
			Status:    models.EquipmentAvailable,
		}
		if e.Name == "" {
			return rw.fail("name", errors.New("name is required"))
		}
		if s := rw.str("status"); s != "" {
			st, err := models.ParseEquipmentStatus(s)
			if err != nil {
				return rw.fail("status", err)
			}
			e.Status = st
		}

		var err error
		if e.PurchaseDate, err = rw.date("purchase_date"); err != nil {
			return err
		}
		if e.WarrantyExpiration, err = rw.date("warranty_expiration"); err != nil {
			return err
		}
		if e.LastMaintenance, err = rw.date("last_maintenance"); err != nil {
			return err
		}
		if e.NextMaintenance, err = rw.date("next_maintenance"); err != nil {
			return err
		}
		out = append(out, e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
