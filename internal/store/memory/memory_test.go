package memory

import (
	"context"
	"errors"
	"testing"

	"apotekpos/backend/internal/domain"
	"apotekpos/backend/internal/store"
)

func TestBarcodeUniquePerPharmacy(t *testing.T) {
	s := New()
	ctx := context.Background()

	_, err := s.CreateProduct(ctx, domain.Product{
		PharmacyID:     "apotek-a",
		Name:           "Paracetamol",
		Barcode:        "899000111",
		BuyPriceCents:  500,
		SellPriceCents: 800,
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}

	_, err = s.CreateProduct(ctx, domain.Product{
		PharmacyID:     "apotek-a",
		Name:           "Paracetamol Duplikat",
		Barcode:        "899000111",
		BuyPriceCents:  500,
		SellPriceCents: 800,
	})
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict for duplicate barcode, got %v", err)
	}

	// The same barcode is fine in another pharmacy.
	_, err = s.CreateProduct(ctx, domain.Product{
		PharmacyID:     "apotek-b",
		Name:           "Paracetamol",
		Barcode:        "899000111",
		BuyPriceCents:  500,
		SellPriceCents: 800,
	})
	if err != nil {
		t.Fatalf("create product in second pharmacy: %v", err)
	}
}

func TestSaleItemsAreSnapshotted(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	sale, err := s.CreateSale(ctx, domain.Sale{
		PharmacyID: "apotek-sehat",
		Items: []domain.SaleItem{
			{ProductID: "prd-para-01", Qty: 1, UnitSellCents: 800},
		},
	})
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}

	// Mutating the returned sale must not leak into the store.
	sale.Items[0].Qty = 999

	fetched, err := s.GetSale(ctx, "apotek-sehat", sale.ID)
	if err != nil {
		t.Fatalf("get sale: %v", err)
	}
	if fetched.Items[0].Qty != 1 {
		t.Fatalf("expected stored qty 1, got %d", fetched.Items[0].Qty)
	}
}

func TestUpdateProductKeepsStock(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	product, err := s.GetProduct(ctx, "apotek-sehat", "prd-vitc-01")
	if err != nil {
		t.Fatalf("get product: %v", err)
	}

	changed := *product
	changed.SellPriceCents = 650
	changed.Stock = 0 // must be ignored

	updated, err := s.UpdateProduct(ctx, changed)
	if err != nil {
		t.Fatalf("update product: %v", err)
	}
	if updated.SellPriceCents != 650 {
		t.Fatalf("expected sell price 650, got %d", updated.SellPriceCents)
	}
	if updated.Stock != product.Stock {
		t.Fatalf("expected stock %d preserved, got %d", product.Stock, updated.Stock)
	}
}
