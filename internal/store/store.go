package store

import (
	"context"

	"apotekpos/backend/internal/domain"
)

// Repository is the tenant-scoped persistence contract shared by the
// Postgres and in-memory stores. Every method takes the pharmacy id
// explicitly; implementations must never read or write rows belonging
// to another pharmacy.
type Repository interface {
	ListProducts(ctx context.Context, pharmacyID string) ([]domain.Product, error)
	GetProduct(ctx context.Context, pharmacyID string, productID string) (*domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	DeleteProduct(ctx context.Context, pharmacyID string, productID string) error
	AddStock(ctx context.Context, pharmacyID string, productID string, qty int) (*domain.Product, error)
	ListLowStock(ctx context.Context, pharmacyID string, threshold int) ([]domain.Product, error)

	// CreateSale persists the draft sale as one atomic unit of work:
	// product resolution, the stock check-and-debit, header and item
	// rows, and totals all commit together or not at all.
	CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	// RefundSale credits every item's quantity back to its product and
	// flips the sale to refunded, atomically. A sale already refunded
	// fails with ErrAlreadyRefunded and credits nothing.
	RefundSale(ctx context.Context, pharmacyID string, saleID string) (*domain.Sale, error)
	GetSale(ctx context.Context, pharmacyID string, saleID string) (*domain.Sale, error)
	ListSales(ctx context.Context, pharmacyID string, limit int) ([]domain.Sale, error)
}
