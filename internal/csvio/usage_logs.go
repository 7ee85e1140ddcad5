package csvio

import (
	"io"
	"strings"

	"github.com/MiRedo238/Chemsphere-sub000/internal/db/models"
)

// UsageLogColumns is the export header, in order.
var UsageLogColumns = []string{
	"id", "date", "user_name", "location", "notes", "chemicals", "equipment", "created_at",
}

// WriteUsageLogs exports one row per log. Chemicals are flattened to
// "name: quantity unit" entries and equipment to names, both joined by "; ".
func WriteUsageLogs(w io.Writer, logs []*models.UsageLog) error {
	records := make([][]string, 0, len(logs))
	for _, l := range logs {
		chems := make([]string, 0, len(l.Chemicals))
		for _, u := range l.Chemicals {
			entry := u.ChemicalName + ": " + formatFloat(u.Quantity)
			if u.Unit != "" {
				entry += " " + u.Unit
			}
			if u.Opened {
				entry += " (opened)"
			}
			chems = append(chems, entry)
		}
		equipment := make([]string, 0, len(l.Equipment))
		for _, e := range l.Equipment {
			equipment = append(equipment, e.EquipmentName)
		}
		records = append(records, []string{
			l.ID,
			formatTime(l.Date),
			l.UserName,
			l.Location,
			l.Notes,
			strings.Join(chems, "; "),
			strings.Join(equipment, "; "),
			formatTime(l.CreatedAt),
		})
	}
	return writeAll(w, UsageLogColumns, records)
}
