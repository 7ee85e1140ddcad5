// Package main loads the ChemSphere demo data set into the configured
// database. It takes no flags: configuration comes from CONFIG_PATH and the
// CHEM_* environment, and CHEM_SEED_PASSWORD sets the demo account password.
package main

import (
	"context"
	"errors"
	"log"
	"os"
	"time"

	"github.com/MiRedo238/Chemsphere-sub000/internal/config"
	"github.com/MiRedo238/Chemsphere-sub000/internal/db"
	"github.com/MiRedo238/Chemsphere-sub000/internal/db/repositories"
	"github.com/MiRedo238/Chemsphere-sub000/internal/seed"
	"github.com/MiRedo238/Chemsphere-sub000/internal/services"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	database, err := db.Connect(cfg.Database.GetDSN(), cfg.Database.MaxConnections, cfg.Database.MinIdleConnections)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	if err := db.RunMigrations(database, "up"); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	x := db.Wrap(database)
	chemicals := repositories.NewChemicalRepository(x)
	equipment := repositories.NewEquipmentRepository(x)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	res, err := seed.Run(ctx, seed.Targets{
		Users:     repositories.NewUserRepository(x),
		Chemicals: chemicals,
		Equipment: equipment,
		Usage:     services.NewUsageLogService(repositories.NewUsageLogRepository(x), chemicals, equipment, nil, nil),
		Audits:    repositories.NewAuditRepository(x),
	}, os.Getenv("CHEM_SEED_PASSWORD"), time.Now())
	if errors.Is(err, seed.ErrAlreadySeeded) {
		log.Println("Demo data already present, nothing to do")
		return
	}
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Printf("Seed complete: %d users, %d chemicals, %d equipment, %d usage logs, %d audit entries",
		res.Users, res.Chemicals, res.Equipment, res.UsageLogs, res.AuditLogs)
}
