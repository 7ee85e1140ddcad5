package inventory

import (
	"strings"
	"time"

	"github.com/MiRedo238/Chemsphere-sub000/internal/db/models"
)

// ChemicalSchema queries chemicals. Search covers name, batch number and
// brand; the default filter is safety_class.
var ChemicalSchema = Schema[*models.Chemical]{
	Fields: map[string]Field[*models.Chemical]{
		"name":             {Str: func(c *models.Chemical) string { return c.Name }},
		"batch_number":     {Str: func(c *models.Chemical) string { return c.BatchNumber }},
		"brand":            {Str: func(c *models.Chemical) string { return c.Brand }},
		"physical_state":   {Str: func(c *models.Chemical) string { return string(c.PhysicalState) }},
		"safety_class":     {Str: func(c *models.Chemical) string { return string(c.SafetyClass) }},
		"location":         {Str: func(c *models.Chemical) string { return c.Location }},
		"unit":             {Str: func(c *models.Chemical) string { return c.Unit }},
		"ghs_symbols":      {Str: func(c *models.Chemical) string { return strings.Join(c.GHSSymbols.Strings(), ",") }},
		"opened":           {Str: func(c *models.Chemical) string { return boolText(c.Opened) }},
		"initial_quantity": {Num: func(c *models.Chemical) float64 { return c.InitialQuantity }},
		"current_quantity": {Num: func(c *models.Chemical) float64 { return c.CurrentQuantity }},
		"expiration_date":  {Time: func(c *models.Chemical) *time.Time { return c.ExpirationDate }},
		"date_of_arrival":  {Time: func(c *models.Chemical) *time.Time { return c.DateOfArrival }},
		"created_at":       {Time: func(c *models.Chemical) *time.Time { return &c.CreatedAt }},
	},
	Search: []string{"name", "batch_number", "brand"},
	Filter: "safety_class",
}

// EquipmentSchema queries equipment; the default filter is status.
var EquipmentSchema = Schema[*models.Equipment]{
	Fields: map[string]Field[*models.Equipment]{
		"name":                {Str: func(e *models.Equipment) string { return e.Name }},
		"model":               {Str: func(e *models.Equipment) string { return e.Model }},
		"serial_id":           {Str: func(e *models.Equipment) string { return e.SerialID }},
		"status":              {Str: func(e *models.Equipment) string { return string(e.Status) }},
		"location":            {Str: func(e *models.Equipment) string { return e.Location }},
		"condition":           {Str: func(e *models.Equipment) string { return e.Condition }},
		"purchase_date":       {Time: func(e *models.Equipment) *time.Time { return e.PurchaseDate }},
		"warranty_expiration": {Time: func(e *models.Equipment) *time.Time { return e.WarrantyExpiration }},
		"last_maintenance":    {Time: func(e *models.Equipment) *time.Time { return e.LastMaintenance }},
		"next_maintenance":    {Time: func(e *models.Equipment) *time.Time { return e.NextMaintenance }},
	},
	Search: []string{"name", "model", "serial_id"},
	Filter: "status",
}

// UsageLogSchema queries usage logs; the default filter is location.
var UsageLogSchema = Schema[*models.UsageLog]{
	Fields: map[string]Field[*models.UsageLog]{
		"user_name": {Str: func(l *models.UsageLog) string { return l.UserName }},
		"notes":     {Str: func(l *models.UsageLog) string { return l.Notes }},
		"location":  {Str: func(l *models.UsageLog) string { return l.Location }},
		"date":      {Time: func(l *models.UsageLog) *time.Time { return &l.Date }},
	},
	Search: []string{"user_name", "notes", "location"},
	Filter: "location",
}

// AuditLogSchema queries the cached audit trail.
var AuditLogSchema = Schema[*models.AuditLog]{
	Fields: map[string]Field[*models.AuditLog]{
		"type":       {Str: func(a *models.AuditLog) string { return a.Type }},
		"action":     {Str: func(a *models.AuditLog) string { return a.Action }},
		"user_name":  {Str: func(a *models.AuditLog) string { return a.UserName }},
		"item_name":  {Str: func(a *models.AuditLog) string { return a.ItemName }},
		"created_at": {Time: func(a *models.AuditLog) *time.Time { return &a.CreatedAt }},
	},
	Search: []string{"user_name", "item_name", "action"},
	Filter: "type",
}

func boolText(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
