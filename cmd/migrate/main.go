package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"ms-events/internal/config"
	"ms-events/internal/models"
)

// Development reset tool: drops, recreates and optionally seeds the
// schema straight from the bun models. Production deployments run the
// versioned SQL migrations instead.
func main() {
	seed := flag.Bool("seed", false, "insert sample data after creating tables")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()

	ctx := context.Background()

	connector := pgdriver.NewConnector(pgdriver.WithDSN(cfg.Database.DSN))
	sqldb := sql.OpenDB(connector)
	defer sqldb.Close()

	if err := sqldb.PingContext(ctx); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	db := bun.NewDB(sqldb, pgdialect.New())

	log.Println("Dropping tables...")
	dropTables(ctx, db)

	log.Println("Creating tables...")
	createTables(ctx, db)

	if *seed {
		log.Println("Seeding sample data...")
		seedData(ctx, db)
	}

	log.Println("Done.")
}

func dropTables(ctx context.Context, db *bun.DB) {
	tables := []interface{}{(*models.Order)(nil), (*models.Event)(nil), (*models.Category)(nil)}
	for _, m := range tables {
		_, _ = db.NewDropTable().Model(m).IfExists().Cascade().Exec(ctx)
	}
}

func createTables(ctx context.Context, db *bun.DB) {
	tables := []interface{}{(*models.Category)(nil), (*models.Event)(nil), (*models.Order)(nil)}
	for _, m := range tables {
		if _, err := db.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
			log.Fatalf("Failed to create table for %T: %v", m, err)
		}
	}
}

func seedData(ctx context.Context, db *bun.DB) {
	categories := []models.Category{
		{ID: "cat001", Name: "Music"},
		{ID: "cat002", Name: "Tech"},
	}
	_, _ = db.NewInsert().Model(&categories).Exec(ctx)

	events := []models.Event{
		{
			ID:            "event001",
			Title:         "Summer Fest 2026",
			Description:   "Annual summer music festival.",
			Location:      "Riverside Park",
			StartDateTime: time.Now().AddDate(0, 1, 0),
			EndDateTime:   time.Now().AddDate(0, 1, 3),
			Price:         "49.99",
			IsFree:        false,
			CategoryID:    "cat001",
			Organizer:     "user_seed_organizer",
			CreatedAt:     time.Now().UTC(),
		},
		{
			ID:            "event002",
			Title:         "Go Meetup",
			Description:   "Monthly community meetup.",
			Location:      "Downtown Hub",
			StartDateTime: time.Now().AddDate(0, 0, 14),
			EndDateTime:   time.Now().AddDate(0, 0, 14),
			IsFree:        true,
			CategoryID:    "cat002",
			Organizer:     "user_seed_organizer",
			CreatedAt:     time.Now().UTC(),
		},
	}
	_, _ = db.NewInsert().Model(&events).Exec(ctx)

	orders := []models.Order{
		{
			ID:          "order001",
			StripeID:    "cs_seed_001",
			EventID:     "event001",
			BuyerID:     "user_seed_buyer",
			TotalAmount: "49.99",
			CreatedAt:   time.Now().UTC(),
		},
	}
	_, _ = db.NewInsert().Model(&orders).Exec(ctx)
}
