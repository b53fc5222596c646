package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"apotekpos/backend/internal/domain"
	"apotekpos/backend/internal/store"
)

func newIntegrationStore(t *testing.T) (*Store, context.Context) {
	t.Helper()

	databaseURL := os.Getenv("APOTEKPOS_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set APOTEKPOS_TEST_DATABASE_URL to run postgres integration tests")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})

	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s, ctx
}

func cleanupPharmacy(t *testing.T, s *Store, ctx context.Context, pharmacyID string) {
	t.Helper()
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sale_items WHERE pharmacy_id = $1`, pharmacyID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sales WHERE pharmacy_id = $1`, pharmacyID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM products WHERE pharmacy_id = $1`, pharmacyID)
	})
}

func TestSaleAndRefundRoundTrip(t *testing.T) {
	s, ctx := newIntegrationStore(t)

	pharmacyID := fmt.Sprintf("apotek-it-%d", time.Now().UnixNano())
	cleanupPharmacy(t, s, ctx, pharmacyID)

	product, err := s.CreateProduct(ctx, domain.Product{
		PharmacyID:     pharmacyID,
		Name:           "Paracetamol IT",
		Category:       "analgesic",
		BuyPriceCents:  500,
		SellPriceCents: 800,
		Stock:          10,
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}

	sale, err := s.CreateSale(ctx, domain.Sale{
		PharmacyID:    pharmacyID,
		PaymentMethod: domain.PaymentCash,
		Items: []domain.SaleItem{
			{ProductID: product.ID, Qty: 3, UnitSellCents: 800},
		},
	})
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}
	if sale.TotalCents != 2400 || sale.ProfitCents != 900 {
		t.Fatalf("unexpected totals: total=%d profit=%d", sale.TotalCents, sale.ProfitCents)
	}

	after, err := s.GetProduct(ctx, pharmacyID, product.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if after.Stock != 7 {
		t.Fatalf("expected stock 7 after sale, got %d", after.Stock)
	}

	refunded, err := s.RefundSale(ctx, pharmacyID, sale.ID)
	if err != nil {
		t.Fatalf("refund sale: %v", err)
	}
	if refunded.Status != domain.SaleStatusRefunded {
		t.Fatalf("expected refunded status, got %s", refunded.Status)
	}

	after, err = s.GetProduct(ctx, pharmacyID, product.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if after.Stock != 10 {
		t.Fatalf("expected stock restored to 10, got %d", after.Stock)
	}

	if _, err := s.RefundSale(ctx, pharmacyID, sale.ID); !errors.Is(err, store.ErrAlreadyRefunded) {
		t.Fatalf("expected already refunded error, got %v", err)
	}
}

func TestSaleInsufficientStockRollsBack(t *testing.T) {
	s, ctx := newIntegrationStore(t)

	pharmacyID := fmt.Sprintf("apotek-it-%d", time.Now().UnixNano())
	cleanupPharmacy(t, s, ctx, pharmacyID)

	first, err := s.CreateProduct(ctx, domain.Product{
		PharmacyID:     pharmacyID,
		Name:           "Oralit IT",
		BuyPriceCents:  200,
		SellPriceCents: 400,
		Stock:          50,
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	second, err := s.CreateProduct(ctx, domain.Product{
		PharmacyID:     pharmacyID,
		Name:           "Masker IT",
		BuyPriceCents:  2500,
		SellPriceCents: 3900,
		Stock:          2,
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}

	_, err = s.CreateSale(ctx, domain.Sale{
		PharmacyID:    pharmacyID,
		PaymentMethod: domain.PaymentCash,
		Items: []domain.SaleItem{
			{ProductID: first.ID, Qty: 10, UnitSellCents: 400},
			{ProductID: second.ID, Qty: 5, UnitSellCents: 3900},
		},
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock error, got %v", err)
	}

	var stockErr *store.InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected typed insufficient stock error, got %T", err)
	}
	if stockErr.ProductID != second.ID || stockErr.Available != 2 || stockErr.Requested != 5 {
		t.Fatalf("unexpected error detail: %+v", stockErr)
	}

	// The first line's debit must have rolled back with the transaction.
	reloaded, err := s.GetProduct(ctx, pharmacyID, first.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if reloaded.Stock != 50 {
		t.Fatalf("expected stock 50 after rollback, got %d", reloaded.Stock)
	}

	sales, err := s.ListSales(ctx, pharmacyID, 10)
	if err != nil {
		t.Fatalf("list sales: %v", err)
	}
	if len(sales) != 0 {
		t.Fatalf("expected no sale recorded, got %d", len(sales))
	}
}

func TestDeleteSoldProductRejected(t *testing.T) {
	s, ctx := newIntegrationStore(t)

	pharmacyID := fmt.Sprintf("apotek-it-%d", time.Now().UnixNano())
	cleanupPharmacy(t, s, ctx, pharmacyID)

	product, err := s.CreateProduct(ctx, domain.Product{
		PharmacyID:     pharmacyID,
		Name:           "Betadine IT",
		BuyPriceCents:  1800,
		SellPriceCents: 2600,
		Stock:          5,
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}

	if _, err := s.CreateSale(ctx, domain.Sale{
		PharmacyID:    pharmacyID,
		PaymentMethod: domain.PaymentCard,
		Items: []domain.SaleItem{
			{ProductID: product.ID, Qty: 1, UnitSellCents: 2600},
		},
	}); err != nil {
		t.Fatalf("create sale: %v", err)
	}

	if err := s.DeleteProduct(ctx, pharmacyID, product.ID); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict deleting a sold product, got %v", err)
	}
}
