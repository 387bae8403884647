package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/bengkel-pos/api/internal/auth"
	"github.com/bengkel-pos/api/internal/config"
	"github.com/bengkel-pos/api/internal/database"
	"github.com/bengkel-pos/api/internal/enum"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type catalogSeed struct {
	name  string
	price string
}

var spareParts = []catalogSeed{
	{"Oli Mesin 1L", "55000"},
	{"Filter Oli", "35000"},
	{"Kampas Rem Depan", "120000"},
	{"Busi", "25000"},
}

var laborTypes = []catalogSeed{
	{"Ganti Oli", "25000"},
	{"Servis Rem", "75000"},
	{"Tune Up", "150000"},
}

func main() {
	garageName := flag.String("garage", "Bengkel Demo", "Garage name")
	plate := flag.String("plate", "B 1234 XYZ", "Vehicle plate of the sample repair order")
	tokenTTL := flag.Duration("token-ttl", 24*time.Hour, "Lifetime of the printed dev token")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("Unable to ping database: %v", err)
	}
	log.Println("Connected to database")

	// garage, catalog and sample order are seeded together or not at all
	tx, err := pool.Begin(ctx)
	if err != nil {
		log.Fatalf("Failed to begin transaction: %v", err)
	}
	defer tx.Rollback(ctx)

	q := database.New(tx)
	ownerID := uuid.New()

	garage, err := q.CreateGarage(ctx, *garageName)
	if err != nil {
		log.Fatalf("Failed to seed garage: %v", err)
	}
	if err := seedCatalog(ctx, q, garage.ID); err != nil {
		log.Fatalf("Failed to seed catalog: %v", err)
	}
	ro, err := q.CreateRepairOrder(ctx, database.CreateRepairOrderParams{
		GarageID:     garage.ID,
		OrderNumber:  fmt.Sprintf("RO-%s-0001", time.Now().Format("20060102")),
		VehiclePlate: *plate,
		CustomerName: database.TextOrNull("Pelanggan Demo"),
		CreatedBy:    ownerID,
	})
	if err != nil {
		log.Fatalf("Failed to seed repair order: %v", err)
	}

	if err := tx.Commit(ctx); err != nil {
		log.Fatalf("Failed to commit transaction: %v", err)
	}

	token, err := auth.GenerateTokenWithTTL(cfg.Auth.JWTSecret, ownerID, garage.ID, enum.UserRoleOwner, *tokenTTL)
	if err != nil {
		log.Fatalf("Failed to sign dev token: %v", err)
	}

	fmt.Println("Seed completed successfully!")
	fmt.Printf("  Garage:       %s (%s)\n", garage.Name, garage.ID)
	fmt.Printf("  Repair order: %s (%s)\n", ro.OrderNumber, ro.ID)
	fmt.Printf("  Owner token:  %s\n", token)
}

func seedCatalog(ctx context.Context, q *database.Queries, garageID uuid.UUID) error {
	for _, p := range spareParts {
		if _, err := q.CreateSparePart(ctx, database.CreateSparePartParams{
			GarageID: garageID,
			Name:     p.name,
			Price:    database.DecimalToNumeric(decimal.RequireFromString(p.price)),
		}); err != nil {
			return fmt.Errorf("spare part %q: %w", p.name, err)
		}
	}
	for _, l := range laborTypes {
		if _, err := q.CreateLaborType(ctx, database.CreateLaborTypeParams{
			GarageID: garageID,
			Name:     l.name,
			Cost:     database.DecimalToNumeric(decimal.RequireFromString(l.price)),
		}); err != nil {
			return fmt.Errorf("labor type %q: %w", l.name, err)
		}
	}
	return nil
}
