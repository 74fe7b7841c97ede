package main

import (
	"context"
	"log"
	"time"

	"github.com/GabrielChurchill/YudokuChallenge/internal/config"
	"github.com/GabrielChurchill/YudokuChallenge/internal/repository"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Seeds the puzzle catalog into PostgreSQL and prints what is there.
// The server does the same seed on startup; this exists for provisioning a
// database ahead of the first deploy.
func main() {
	log.Println("Seeding Yudoku puzzle catalog...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := initPostgres(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	log.Println("✓ Connected to PostgreSQL")

	repo := repository.NewPostgresRepository(db)

	if err := repo.AutoMigrate(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("✓ Database migrations completed")

	ctx := context.Background()

	if err := repo.SeedPuzzles(ctx); err != nil {
		log.Fatalf("Failed to seed puzzles: %v", err)
	}

	puzzles, err := repo.ListPuzzles(ctx)
	if err != nil {
		log.Fatalf("Failed to list puzzles: %v", err)
	}

	log.Printf("✓ Catalog holds %d puzzles:", len(puzzles))
	for _, p := range puzzles {
		givens := 0
		for i := 0; i < len(p.PuzzleString); i++ {
			if p.PuzzleString[i] != '.' {
				givens++
			}
		}
		log.Printf("   %s (%d givens)", p.ID, givens)
	}

	if err := repo.Close(); err != nil {
		log.Printf("Error closing PostgreSQL: %v", err)
	}

	log.Println("Seeder finished")
}

// initPostgres initializes PostgreSQL connection
func initPostgres(cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.GetDSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, err
	}

	return db, nil
}
