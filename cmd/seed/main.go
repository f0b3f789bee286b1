package main

import (
	"context"
	"flag"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/dnovriandi/receipt-audit/internal/config"
	"github.com/dnovriandi/receipt-audit/internal/logger"
	"github.com/dnovriandi/receipt-audit/internal/store"
)

func main() {
	cfg := config.Load()

	var (
		dsn     = flag.String("dsn", cfg.DatabaseDSN, "Postgres DSN (or set DATABASE_DSN env)")
		name    = flag.String("actor-name", "", "optional auditor name to register")
		address = flag.String("actor-address", "", "optional auditor wallet address to register")
	)
	flag.Parse()

	log := logger.New()
	ctx := context.Background()

	db, err := gorm.Open(postgres.Open(*dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}

	st := store.New(db)
	if err := st.AutoMigrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate schema")
	}

	if err := st.Seed(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to seed defaults")
	}
	log.Info().
		Int("categories", len(store.DefaultCategories)).
		Str("guest", store.GuestWalletAddress).
		Msg("Default taxonomy and guest actor seeded")

	if *address != "" {
		actor, err := st.SeedActor(ctx, *name, *address)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to register auditor")
		}
		log.Info().Str("actor_id", actor.ID).Str("address", actor.WalletAddress).Msg("Auditor registered")
	}
}
