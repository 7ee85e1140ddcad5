package auth

import (
	"errors"
	"fmt"

	"github.com/MiRedo238/Chemsphere-sub000/internal/db/models"
)

// Action is a permission checked by the router before a handler runs.
type Action string

const (
	ActionChemicalsRead   Action = "chemicals:read"
	ActionChemicalsWrite  Action = "chemicals:write"
	ActionChemicalsDelete Action = "chemicals:delete"
	ActionChemicalsLookup Action = "chemicals:lookup"

	ActionEquipmentRead   Action = "equipment:read"
	ActionEquipmentWrite  Action = "equipment:write"
	ActionEquipmentDelete Action = "equipment:delete"

	ActionUsageLogsRead   Action = "usage_logs:read"
	ActionUsageLogsCreate Action = "usage_logs:create"
	ActionUsageLogsUpdate Action = "usage_logs:update"
	ActionUsageLogsDelete Action = "usage_logs:delete"

	ActionInventoryImport Action = "inventory:import"
	ActionInventoryExport Action = "inventory:export"
	ActionDashboardRead   Action = "dashboard:read"

	ActionAuditRead Action = "audit:read"

	ActionUsersRead        Action = "users:read"
	ActionUsersManage      Action = "users:manage"
	ActionUsersManageRoles Action = "users:manage_roles"

	ActionCacheRefresh Action = "cache:refresh"
	ActionJobsRun      Action = "jobs:run"
)

var (
	// ErrInactive is returned for deactivated accounts.
	ErrInactive = errors.New("account is deactivated")
	// ErrUnverified is returned for accounts an admin has not verified yet.
	ErrUnverified = errors.New("account is not verified")
	// ErrForbidden is returned when the role does not grant the action.
	ErrForbidden = errors.New("insufficient permissions")
)

var userActions = []Action{
	ActionChemicalsRead,
	ActionChemicalsLookup,
	ActionEquipmentRead,
	ActionUsageLogsRead,
	ActionUsageLogsCreate,
	ActionUsageLogsUpdate,
	ActionInventoryExport,
	ActionDashboardRead,
}

var adminActions = []Action{
	ActionChemicalsWrite,
	ActionChemicalsDelete,
	ActionEquipmentWrite,
	ActionEquipmentDelete,
	ActionUsageLogsDelete,
	ActionInventoryImport,
	ActionAuditRead,
	ActionUsersRead,
	ActionUsersManage,
	ActionCacheRefresh,
	ActionJobsRun,
}

var superAdminActions = []Action{
	ActionUsersManageRoles,
}

// Policy is the single table of which role may perform which action.
// Each role inherits everything granted to the roles below it.
var Policy = buildPolicy()

func buildPolicy() map[models.Role]map[Action]bool {
	grant := func(sets ...[]Action) map[Action]bool {
		m := make(map[Action]bool)
		for _, set := range sets {
			for _, a := range set {
				m[a] = true
			}
		}
		return m
	}
	return map[models.Role]map[Action]bool{
		models.RoleUser:       grant(userActions),
		models.RoleAdmin:      grant(userActions, adminActions),
		models.RoleSuperAdmin: grant(userActions, adminActions, superAdminActions),
	}
}

// AllActions returns every action the policy knows about.
func AllActions() []Action {
	out := make([]Action, 0, len(userActions)+len(adminActions)+len(superAdminActions))
	out = append(out, userActions...)
	out = append(out, adminActions...)
	return append(out, superAdminActions...)
}

// Can reports whether role is granted action. Unknown roles get nothing.
func Can(role models.Role, action Action) bool {
	return Policy[role][action]
}

// Authorize decides whether user may perform action. Deactivated and
// unverified accounts are refused before the role is consulted.
func Authorize(user *models.User, action Action) error {
	if user == nil {
		return ErrForbidden
	}
	if !user.Active {
		return ErrInactive
	}
	if !user.Verified {
		return ErrUnverified
	}
	if !Can(user.Role, action) {
		return fmt.Errorf("%w: %s cannot %s", ErrForbidden, user.Role, action)
	}
	return nil
}
