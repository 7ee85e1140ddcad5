// Package seed loads the demo data set used by local and test environments:
// two accounts, eight chemicals, six pieces of equipment, three usage logs
// and three audit entries.
package seed

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/MiRedo238/Chemsphere-sub000/internal/auth"
	"github.com/MiRedo238/Chemsphere-sub000/internal/db/models"
	"github.com/MiRedo238/Chemsphere-sub000/internal/services"
)

// DefaultPassword is used for both demo accounts when none is configured.
const DefaultPassword = "chemsphere123"

const (
	AdminEmail = "admin@chemsphere.local"
	UserEmail  = "user@chemsphere.local"
)

// ErrAlreadySeeded is returned when the demo admin account already exists.
var ErrAlreadySeeded = errors.New("database already contains the demo data")

// Users creates and finds accounts. *repositories.UserRepository implements it.
type Users interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// Chemicals bulk-inserts chemicals. *repositories.ChemicalRepository implements it.
type Chemicals interface {
	CreateBatch(ctx context.Context, chems []*models.Chemical) error
}

// Equipment bulk-inserts equipment. *repositories.EquipmentRepository implements it.
type Equipment interface {
	CreateBatch(ctx context.Context, items []*models.Equipment) error
}

// UsageRecorder runs the usage-logging workflow. *services.UsageLogService
// implements it.
type UsageRecorder interface {
	RecordUsage(ctx context.Context, actor services.Actor, in services.UsageInput) (*models.UsageLog, error)
}

// Audits appends audit entries. *repositories.AuditRepository implements it.
type Audits interface {
	CreateAuditLog(ctx context.Context, entry *models.AuditLog) error
}

// Targets are the stores the seed writes through.
type Targets struct {
	Users     Users
	Chemicals Chemicals
	Equipment Equipment
	Usage     UsageRecorder
	Audits    Audits
}

// Result reports what was inserted.
type Result struct {
	Users     int
	Chemicals int
	Equipment int
	UsageLogs int
	AuditLogs int
}

// Run inserts the demo data. Dates are relative to now so the dashboard
// always has something expiring soon. It refuses to run twice.
func Run(ctx context.Context, t Targets, password string, now time.Time) (*Result, error) {
	if password == "" {
		password = DefaultPassword
	}
	existing, err := t.Users.GetUserByEmail(ctx, AdminEmail)
	if err != nil {
		return nil, fmt.Errorf("check existing accounts: %w", err)
	}
	if existing != nil {
		return nil, ErrAlreadySeeded
	}

	res := &Result{}
	today := now.UTC().Truncate(24 * time.Hour)

	admin, user, err := seedUsers(ctx, t.Users, password)
	if err != nil {
		return nil, err
	}
	res.Users = 2
	log.Printf("Seeded users: %s (super_admin), %s (user)", admin.Email, user.Email)

	chems := demoChemicals(today)
	if err := t.Chemicals.CreateBatch(ctx, chems); err != nil {
		return nil, fmt.Errorf("seed chemicals: %w", err)
	}
	res.Chemicals = len(chems)
	log.Printf("Seeded %d chemicals", len(chems))

	equipment := demoEquipment(today)
	if err := t.Equipment.CreateBatch(ctx, equipment); err != nil {
		return nil, fmt.Errorf("seed equipment: %w", err)
	}
	res.Equipment = len(equipment)
	log.Printf("Seeded %d equipment items", len(equipment))

	adminActor := services.ActorFromUser(admin)
	userActor := services.ActorFromUser(user)

	for i, u := range demoUsage(today, chems, equipment) {
		actor := userActor
		if i == 0 {
			actor = adminActor
		}
		if _, err := t.Usage.RecordUsage(ctx, actor, u); err != nil {
			return nil, fmt.Errorf("seed usage log %d: %w", i+1, err)
		}
		res.UsageLogs++
	}
	log.Printf("Seeded %d usage logs", res.UsageLogs)

	for _, e := range demoAudits(admin, chems, equipment) {
		if err := t.Audits.CreateAuditLog(ctx, e); err != nil {
			return nil, fmt.Errorf("seed audit log: %w", err)
		}
		res.AuditLogs++
	}
	log.Printf("Seeded %d audit entries", res.AuditLogs)

	return res, nil
}

func seedUsers(ctx context.Context, users Users, password string) (admin, user *models.User, err error) {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, nil, fmt.Errorf("hash seed password: %w", err)
	}
	admin = &models.User{
		Username:     "Lab Admin",
		Email:        AdminEmail,
		PasswordHash: &hash,
		Role:         models.RoleSuperAdmin,
		Verified:     true,
		Active:       true,
	}
	user = &models.User{
		Username:     "Lab User",
		Email:        UserEmail,
		PasswordHash: &hash,
		Role:         models.RoleUser,
		Verified:     true,
		Active:       true,
	}
	for _, u := range []*models.User{admin, user} {
		if err := users.CreateUser(ctx, u); err != nil {
			return nil, nil, fmt.Errorf("seed user %s: %w", u.Email, err)
		}
	}
	return admin, user, nil
}

func day(t time.Time, offset int) *time.Time {
	d := t.AddDate(0, 0, offset)
	return &d
}

func demoChemicals(today time.Time) []*models.Chemical {
	chem := func(name, batch, brand string, state models.PhysicalState, unit string, initial, current float64,
		expires int, class models.SafetyClass, location string, ghs ...models.GHSSymbol) *models.Chemical {
		return &models.Chemical{
			Name:            name,
			BatchNumber:     batch,
			Brand:           brand,
			PhysicalState:   state,
			Unit:            unit,
			InitialQuantity: initial,
			CurrentQuantity: current,
			ExpirationDate:  day(today, expires),
			DateOfArrival:   day(today, -120),
			SafetyClass:     class,
			Location:        location,
			GHSSymbols:      models.GHSSymbols(ghs),
		}
	}
	return []*models.Chemical{
		chem("Ethanol", "ETH-2024-001", "Sigma-Aldrich", models.PhysicalStateLiquid, "mL", 2500, 1800, 400,
			models.SafetyClassFlammable, "Cabinet A1", models.GHSFlame, models.GHSExclamationMark),
		chem("Acetone", "ACE-2024-014", "Merck", models.PhysicalStateLiquid, "mL", 1000, 750, 20,
			models.SafetyClassFlammable, "Cabinet A1", models.GHSFlame, models.GHSExclamationMark),
		chem("Hydrochloric Acid", "HCL-2023-087", "Fisher Scientific", models.PhysicalStateLiquid, "mL", 500, 320, 60,
			models.SafetyClassCorrosive, "Acid Cabinet B2", models.GHSCorrosion, models.GHSExclamationMark),
		chem("Sodium Hydroxide", "NAOH-2024-003", "Sigma-Aldrich", models.PhysicalStateSolid, "g", 1000, 860, 730,
			models.SafetyClassCorrosive, "Base Shelf B3", models.GHSCorrosion),
		chem("Sodium Chloride", "NACL-2024-021", "Merck", models.PhysicalStateSolid, "g", 2000, 1950, 1095,
			models.SafetyClassSafe, "Shelf C1"),
		chem("Methanol", "MEOH-2023-045", "Fisher Scientific", models.PhysicalStateLiquid, "mL", 1000, 80, 5,
			models.SafetyClassToxic, "Cabinet A2", models.GHSFlame, models.GHSSkullAndCrossbones, models.GHSHealthHazard),
		chem("Potassium Permanganate", "KMNO4-2024-002", "Merck", models.PhysicalStateSolid, "g", 250, 200, 540,
			models.SafetyClassReactive, "Oxidizer Shelf D1", models.GHSFlameOverCircle, models.GHSEnvironment),
		chem("Copper(II) Sulfate", "CUSO4-2022-010", "Sigma-Aldrich", models.PhysicalStateSolid, "g", 500, 410, -15,
			models.SafetyClassToxic, "Shelf C2", models.GHSExclamationMark, models.GHSEnvironment),
	}
}

func demoEquipment(today time.Time) []*models.Equipment {
	eq := func(name, model, serial string, status models.EquipmentStatus, location, condition string, lastMaint, nextMaint int) *models.Equipment {
		return &models.Equipment{
			Name:               name,
			Model:              model,
			SerialID:           serial,
			Status:             status,
			Location:           location,
			PurchaseDate:       day(today, -900),
			WarrantyExpiration: day(today, 200),
			LastMaintenance:    day(today, lastMaint),
			NextMaintenance:    day(today, nextMaint),
			Condition:          condition,
		}
	}
	return []*models.Equipment{
		eq("Centrifuge", "Eppendorf 5810R", "EQ-CEN-001", models.EquipmentAvailable, "Lab 101", "Good", -30, 150),
		eq("Analytical Balance", "Mettler Toledo XS205", "EQ-BAL-002", models.EquipmentAvailable, "Lab 101", "Excellent", -10, 80),
		eq("pH Meter", "Hanna HI2211", "EQ-PHM-003", models.EquipmentAvailable, "Lab 102", "Good", -60, 30),
		eq("Fume Hood", "Labconco Protector XStream", "EQ-FUM-004", models.EquipmentUnderMaintenance, "Lab 102", "Fair", -200, 5),
		eq("UV-Vis Spectrophotometer", "Shimadzu UV-1900i", "EQ-SPC-005", models.EquipmentAvailable, "Instrument Room", "Good", -45, 135),
		eq("Hot Plate Stirrer", "IKA C-MAG HS 7", "EQ-HPS-006", models.EquipmentBroken, "Lab 103", "Poor", -365, -5),
	}
}

func demoUsage(today time.Time, chems []*models.Chemical, equipment []*models.Equipment) []services.UsageInput {
	remaining := 400.0
	return []services.UsageInput{
		{
			Date:     day(today, -7),
			Location: "Lab 101",
			Notes:    "Buffer preparation",
			Chemicals: []services.ChemicalUsageInput{
				{ChemicalID: chems[4].ID, Quantity: 50},
				{ChemicalID: chems[3].ID, Quantity: 20},
			},
			EquipmentIDs: []string{equipment[1].ID, equipment[2].ID},
		},
		{
			Date:     day(today, -3),
			Location: "Lab 102",
			Notes:    "Glassware rinse and extraction",
			Chemicals: []services.ChemicalUsageInput{
				{ChemicalID: chems[0].ID, Quantity: 100, Opened: true, RemainingAmount: &remaining, RemainingLocation: "Lab 102 bench"},
				{ChemicalID: chems[1].ID, Quantity: 50},
			},
			EquipmentIDs: []string{equipment[0].ID},
		},
		{
			Date:     day(today, -1),
			Location: "Instrument Room",
			Notes:    "Absorbance calibration",
			Chemicals: []services.ChemicalUsageInput{
				{ChemicalID: chems[6].ID, Quantity: 5},
			},
			EquipmentIDs: []string{equipment[4].ID},
		},
	}
}

func demoAudits(admin *models.User, chems []*models.Chemical, equipment []*models.Equipment) []*models.AuditLog {
	actor := services.ActorFromUser(admin)
	entry := func(typ, action, item string, details models.JSONMap) *models.AuditLog {
		return &models.AuditLog{
			Type:     typ,
			Action:   action,
			UserID:   &admin.ID,
			UserName: actor.Name,
			UserRole: string(actor.Role),
			ItemName: item,
			Details:  details,
		}
	}
	return []*models.AuditLog{
		entry(models.AuditTypeChemical, models.AuditActionImport, "chemicals", models.JSONMap{"count": len(chems), "source": "seed"}),
		entry(models.AuditTypeEquipment, models.AuditActionImport, "equipment", models.JSONMap{"count": len(equipment), "source": "seed"}),
		entry(models.AuditTypeEquipment, models.AuditActionUpdate, equipment[3].Name, models.JSONMap{
			"status": string(models.EquipmentUnderMaintenance),
		}),
	}
}
