package main

import (
	"context"
	"log"
	"time"

	"apotekpos/backend/internal/config"
	"apotekpos/backend/internal/store/postgres"
)

func main() {
	cfg := config.Load()
	if cfg.DatabaseURL == "" {
		log.Fatal("[migrate] DATABASE_URL is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	pg, err := postgres.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("[migrate] connect: %v", err)
	}
	defer pg.Close()

	if err := pg.Migrate(ctx); err != nil {
		log.Fatalf("[migrate] apply migrations: %v", err)
	}
	log.Println("[migrate] schema is up to date")
}
