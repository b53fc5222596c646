package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"apotekpos/backend/internal/cache"
	"apotekpos/backend/internal/config"
	"apotekpos/backend/internal/excel"
	"apotekpos/backend/internal/service"
	"apotekpos/backend/internal/store"
	"apotekpos/backend/internal/store/memory"
	"apotekpos/backend/internal/store/postgres"
)

func main() {
	filePath := flag.String("file", "", "path to the xlsx catalog export")
	pharmacyID := flag.String("pharmacy", "", "pharmacy id to import into")
	flag.Parse()

	if *filePath == "" || *pharmacyID == "" {
		log.Fatal("[import] usage: importcatalog -file catalog.xlsx -pharmacy <id>")
	}

	cfg := config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	var repo store.Repository
	if cfg.DatabaseURL != "" {
		pg, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("[import] connect: %v", err)
		}
		defer pg.Close()
		repo = pg
	} else {
		log.Println("[import] DATABASE_URL not set, importing into the in-memory store")
		repo = memory.New()
	}

	file, err := os.Open(*filePath)
	if err != nil {
		log.Fatalf("[import] open file: %v", err)
	}
	defer file.Close()

	rows, err := excel.ParseCatalogRows(file)
	if err != nil {
		log.Fatalf("[import] parse: %v", err)
	}
	log.Printf("[import] parsed %d rows from %s", len(rows), *filePath)

	var catalogCache cache.CatalogCache = cache.NoopCatalogCache{}
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisCatalogCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			log.Printf("[import] WARN: redis unavailable, catalog cache disabled: %v", err)
		} else {
			defer redisCache.Close()
			catalogCache = redisCache
		}
	}

	svc := service.New(repo, catalogCache, cfg.CatalogCacheTTL, cfg.LowStockThreshold)
	summary, err := svc.ImportCatalog(ctx, *pharmacyID, rows)
	if err != nil {
		log.Fatalf("[import] import: %v", err)
	}

	log.Printf("[import] done: %d created, %d updated, %d skipped",
		summary.Created, summary.Updated, summary.Skipped)
}
