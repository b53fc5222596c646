package cache

import (
	"context"
	"time"

	"apotekpos/backend/internal/domain"
)

// CatalogCache holds per-pharmacy product listings for display reads.
// The sale engine never consults it; stock is always re-read from the
// store inside each unit of work.
type CatalogCache interface {
	GetProducts(ctx context.Context, pharmacyID string) ([]domain.Product, bool, error)
	SetProducts(ctx context.Context, pharmacyID string, products []domain.Product, ttl time.Duration) error
	InvalidateProducts(ctx context.Context, pharmacyID string) error
}

type NoopCatalogCache struct{}

func (NoopCatalogCache) GetProducts(_ context.Context, _ string) ([]domain.Product, bool, error) {
	return nil, false, nil
}

func (NoopCatalogCache) SetProducts(_ context.Context, _ string, _ []domain.Product, _ time.Duration) error {
	return nil
}

func (NoopCatalogCache) InvalidateProducts(_ context.Context, _ string) error {
	return nil
}
