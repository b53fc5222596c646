package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"math/rand"
	"sync"
	"time"

	"apotekpos/backend/internal/cache"
	"apotekpos/backend/internal/config"
	"apotekpos/backend/internal/domain"
	"apotekpos/backend/internal/service"
	"apotekpos/backend/internal/store"
	"apotekpos/backend/internal/store/memory"
	"apotekpos/backend/internal/store/postgres"
)

// saleload hammers the sale engine with concurrent checkouts and refunds,
// then reconciles stock levels against its own accounting. Any negative
// stock or drift between the two is a correctness failure.
func main() {
	workers := flag.Int("workers", 8, "concurrent workers")
	sales := flag.Int("sales", 200, "sale attempts per worker")
	pharmacyID := flag.String("pharmacy", "apotek-sehat", "pharmacy id to load")
	flag.Parse()

	cfg := config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	var repo store.Repository
	if cfg.DatabaseURL != "" {
		pg, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("[saleload] connect: %v", err)
		}
		defer pg.Close()
		repo = pg
	} else {
		log.Println("[saleload] DATABASE_URL not set, loading the seeded in-memory store")
		repo = memory.NewSeeded()
	}

	var catalogCache cache.CatalogCache = cache.NoopCatalogCache{}
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisCatalogCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			log.Printf("[saleload] WARN: redis unavailable, catalog cache disabled: %v", err)
		} else {
			defer redisCache.Close()
			catalogCache = redisCache
		}
	}

	svc := service.New(repo, catalogCache, cfg.CatalogCacheTTL, cfg.LowStockThreshold)

	products, err := svc.ListProducts(ctx, *pharmacyID)
	if err != nil {
		log.Fatalf("[saleload] list products: %v", err)
	}
	if len(products) == 0 {
		log.Fatalf("[saleload] pharmacy %s has no products to sell", *pharmacyID)
	}

	initialStock := make(map[string]int, len(products))
	for _, p := range products {
		initialStock[p.ID] = p.Stock
	}

	var (
		mu         sync.Mutex
		netSold    = make(map[string]int, len(products))
		completed  int
		refunded   int
		outOfStock int
	)

	start := time.Now()
	var wg sync.WaitGroup
	for worker := 0; worker < *workers; worker++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))

			for attempt := 0; attempt < *sales; attempt++ {
				product := products[rng.Intn(len(products))]
				qty := 1 + rng.Intn(3)

				sale, err := svc.CreateSale(ctx, *pharmacyID, []domain.SaleItemInput{{
					ProductID:     product.ID,
					Qty:           qty,
					UnitSellCents: product.SellPriceCents,
				}}, domain.PaymentCash)
				if err != nil {
					if errors.Is(err, store.ErrInsufficientStock) {
						mu.Lock()
						outOfStock++
						mu.Unlock()
						continue
					}
					log.Fatalf("[saleload] create sale: %v", err)
				}

				doRefund := rng.Intn(4) == 0
				mu.Lock()
				completed++
				if !doRefund {
					netSold[product.ID] += qty
				}
				mu.Unlock()

				if doRefund {
					if _, err := svc.RefundSale(ctx, *pharmacyID, sale.ID); err != nil {
						log.Fatalf("[saleload] refund sale %s: %v", sale.ID, err)
					}
					mu.Lock()
					refunded++
					mu.Unlock()
				}
			}
		}(time.Now().UnixNano() + int64(worker))
	}
	wg.Wait()

	final, err := svc.ListProducts(ctx, *pharmacyID)
	if err != nil {
		log.Fatalf("[saleload] list products after run: %v", err)
	}

	drift := 0
	for _, p := range final {
		if p.Stock < 0 {
			log.Fatalf("[saleload] FAIL: product %s has negative stock %d", p.ID, p.Stock)
		}
		expected := initialStock[p.ID] - netSold[p.ID]
		if p.Stock != expected {
			log.Printf("[saleload] FAIL: product %s stock=%d expected=%d", p.ID, p.Stock, expected)
			drift++
		}
	}
	if drift > 0 {
		log.Fatalf("[saleload] FAIL: %d products drifted from expected stock", drift)
	}

	log.Printf("[saleload] OK: %d sales, %d refunds, %d rejected for stock in %s",
		completed, refunded, outOfStock, time.Since(start).Round(time.Millisecond))
}
