// Package models - audit_log.go defines the append-only audit trail entry.
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Audit entry types.
const (
	AuditTypeChemical  = "chemical"
	AuditTypeEquipment = "equipment"
	AuditTypeUsageLog  = "usage_log"
	AuditTypeUser      = "user"
)

// Audit entry actions.
const (
	AuditActionCreate       = "create"
	AuditActionUpdate       = "update"
	AuditActionDelete       = "delete"
	AuditActionImport       = "import"
	AuditActionRoleChange   = "role_change"
	AuditActionStatusChange = "status_change"
	AuditActionVerify       = "verify"
)

// AuditLog records one user-initiated mutation. Entries are never updated.
type AuditLog struct {
	ID        string    `db:"id" json:"id"`
	Type      string    `db:"type" json:"type"`
	Action    string    `db:"action" json:"action"`
	UserID    *string   `db:"user_id" json:"user_id"`
	UserName  string    `db:"user_name" json:"user_name"`
	UserRole  string    `db:"user_role" json:"user_role"`
	ItemName  string    `db:"item_name" json:"item_name"`
	Details   JSONMap   `db:"details" json:"details"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// JSONMap is a free-form object stored in a JSONB column.
type JSONMap map[string]interface{}

// Value implements driver.Valuer; a nil map is stored as SQL NULL.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(map[string]interface{}(m))
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Scan implements sql.Scanner.
func (m *JSONMap) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*m = nil
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into JSONMap", src)
	}
	out := make(map[string]interface{})
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("scan details: %w", err)
	}
	*m = out
	return nil
}
