package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"apotekpos/backend/internal/domain"
	"apotekpos/backend/internal/store"
)

// Store is an in-memory Repository for tests and dev mode. A single
// mutex hold per mutating call gives the same all-or-nothing semantics
// the Postgres transaction provides.
type Store struct {
	mu       sync.RWMutex
	products map[string]map[string]domain.Product // pharmacy id -> product id
	sales    map[string]map[string]domain.Sale    // pharmacy id -> sale id
	itemRefs map[string]int                       // product id -> sale item references
}

func New() *Store {
	return &Store{
		products: make(map[string]map[string]domain.Product),
		sales:    make(map[string]map[string]domain.Sale),
		itemRefs: make(map[string]int),
	}
}

// NewSeeded returns a store preloaded with a demo pharmacy catalog.
func NewSeeded() *Store {
	s := New()
	seeded := []domain.Product{
		{ID: "prd-para-01", Name: "Paracetamol 500mg", Category: "analgesic", Barcode: "8991234500011", BuyPriceCents: 500, SellPriceCents: 800, Stock: 120},
		{ID: "prd-amox-01", Name: "Amoxicillin 500mg", Category: "antibiotic", Barcode: "8991234500028", BuyPriceCents: 1200, SellPriceCents: 1800, Stock: 80},
		{ID: "prd-vitc-01", Name: "Vitamin C 500mg", Category: "supplement", Barcode: "8991234500035", BuyPriceCents: 300, SellPriceCents: 600, Stock: 200},
		{ID: "prd-obh-01", Name: "OBH Sirup Batuk 100ml", Category: "cough-cold", Barcode: "8991234500042", BuyPriceCents: 1500, SellPriceCents: 2200, Stock: 60},
		{ID: "prd-anta-01", Name: "Antasida Tablet", Category: "digestive", Barcode: "8991234500059", BuyPriceCents: 400, SellPriceCents: 700, Stock: 90},
		{ID: "prd-beta-01", Name: "Betadine 30ml", Category: "antiseptic", Barcode: "8991234500066", BuyPriceCents: 1800, SellPriceCents: 2600, Stock: 45},
		{ID: "prd-oral-01", Name: "Oralit Sachet", Category: "digestive", Barcode: "8991234500073", BuyPriceCents: 200, SellPriceCents: 400, Stock: 150},
		{ID: "prd-mask-01", Name: "Masker Medis 50pcs", Category: "medical-supply", Barcode: "8991234500080", BuyPriceCents: 2500, SellPriceCents: 3900, Stock: 30},
	}

	const pharmacyID = "apotek-sehat"
	s.products[pharmacyID] = make(map[string]domain.Product, len(seeded))
	for _, p := range seeded {
		p.PharmacyID = pharmacyID
		s.products[pharmacyID][p.ID] = p
	}
	return s
}

func (s *Store) ListProducts(_ context.Context, pharmacyID string) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products[pharmacyID]))
	for _, p := range s.products[pharmacyID] {
		products = append(products, p)
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		if a.Category == b.Category {
			return strings.Compare(a.Name, b.Name)
		}
		return strings.Compare(a.Category, b.Category)
	})
	return products, nil
}

func (s *Store) GetProduct(_ context.Context, pharmacyID string, productID string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.products[pharmacyID][productID]
	if !exists {
		return nil, &store.NotFoundError{Entity: "product", ID: productID}
	}
	found := p
	return &found, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	if product.PharmacyID == "" || product.Name == "" {
		return nil, &store.ValidationError{Reason: "pharmacy id and name required"}
	}
	if product.BuyPriceCents < 0 || product.SellPriceCents < 0 || product.Stock < 0 {
		return nil, &store.ValidationError{Reason: "prices and stock must not be negative"}
	}
	if product.ID == "" {
		product.ID = domain.NewID("prd")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if product.Barcode != "" && s.barcodeTaken(product.PharmacyID, product.Barcode, product.ID) {
		return nil, &store.ConflictError{Reason: "barcode already in use"}
	}
	if _, ok := s.products[product.PharmacyID]; !ok {
		s.products[product.PharmacyID] = make(map[string]domain.Product)
	}
	s.products[product.PharmacyID][product.ID] = product
	created := product
	return &created, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	if product.Name == "" {
		return nil, &store.ValidationError{Reason: "name required"}
	}
	if product.BuyPriceCents < 0 || product.SellPriceCents < 0 {
		return nil, &store.ValidationError{Reason: "prices must not be negative"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.products[product.PharmacyID][product.ID]
	if !exists {
		return nil, &store.NotFoundError{Entity: "product", ID: product.ID}
	}
	if product.Barcode != "" && s.barcodeTaken(product.PharmacyID, product.Barcode, product.ID) {
		return nil, &store.ConflictError{Reason: "barcode already in use"}
	}

	// Stock moves only through sales, refunds and restock.
	product.Stock = existing.Stock
	s.products[product.PharmacyID][product.ID] = product
	updated := product
	return &updated, nil
}

func (s *Store) DeleteProduct(_ context.Context, pharmacyID string, productID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.products[pharmacyID][productID]; !exists {
		return &store.NotFoundError{Entity: "product", ID: productID}
	}
	if s.itemRefs[productID] > 0 {
		return &store.ConflictError{Reason: "product is referenced by recorded sales"}
	}
	delete(s.products[pharmacyID], productID)
	return nil
}

func (s *Store) AddStock(_ context.Context, pharmacyID string, productID string, qty int) (*domain.Product, error) {
	if qty < 1 {
		return nil, &store.ValidationError{Reason: "restock quantity must be positive"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, exists := s.products[pharmacyID][productID]
	if !exists {
		return nil, &store.NotFoundError{Entity: "product", ID: productID}
	}
	p.Stock += qty
	s.products[pharmacyID][productID] = p
	updated := p
	return &updated, nil
}

func (s *Store) ListLowStock(_ context.Context, pharmacyID string, threshold int) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, 16)
	for _, p := range s.products[pharmacyID] {
		if p.Stock <= threshold {
			products = append(products, p)
		}
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		if a.Stock == b.Stock {
			return strings.Compare(a.Name, b.Name)
		}
		return a.Stock - b.Stock
	})
	return products, nil
}

func (s *Store) CreateSale(_ context.Context, sale domain.Sale) (*domain.Sale, error) {
	if sale.PharmacyID == "" || len(sale.Items) == 0 {
		return nil, &store.ValidationError{Reason: "sale requires a pharmacy id and at least one item"}
	}
	if sale.ID == "" {
		sale.ID = domain.NewID("sale")
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}
	if sale.Status == "" {
		sale.Status = domain.SaleStatusCompleted
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	catalog := s.products[sale.PharmacyID]

	// Validate every line before touching stock so a late failure
	// leaves no partial debit behind.
	required := make(map[string]int, len(sale.Items))
	for _, item := range sale.Items {
		if item.Qty < 1 {
			return nil, &store.ValidationError{Reason: "item quantity must be positive"}
		}
		if item.UnitSellCents < 0 {
			return nil, &store.ValidationError{Reason: "item price must not be negative"}
		}
		product, exists := catalog[item.ProductID]
		if !exists {
			return nil, &store.NotFoundError{Entity: "product", ID: item.ProductID}
		}
		required[item.ProductID] += item.Qty
		if required[item.ProductID] > product.Stock {
			return nil, &store.InsufficientStockError{
				ProductID: item.ProductID,
				Available: product.Stock,
				Requested: required[item.ProductID],
			}
		}
	}

	items := make([]domain.SaleItem, 0, len(sale.Items))
	totalCents := int64(0)
	profitCents := int64(0)
	for _, item := range sale.Items {
		product := catalog[item.ProductID]
		product.Stock -= item.Qty
		catalog[item.ProductID] = product
		s.itemRefs[item.ProductID]++

		line := domain.SaleItem{
			ID:            domain.NewID("itm"),
			SaleID:        sale.ID,
			ProductID:     item.ProductID,
			ProductName:   product.Name,
			Qty:           item.Qty,
			UnitSellCents: item.UnitSellCents,
			UnitBuyCents:  product.BuyPriceCents,
			TotalCents:    item.UnitSellCents * int64(item.Qty),
			ProfitCents:   (item.UnitSellCents - product.BuyPriceCents) * int64(item.Qty),
		}
		items = append(items, line)
		totalCents += line.TotalCents
		profitCents += line.ProfitCents
	}

	sale.TotalCents = totalCents
	sale.ProfitCents = profitCents
	sale.Items = items
	if _, ok := s.sales[sale.PharmacyID]; !ok {
		s.sales[sale.PharmacyID] = make(map[string]domain.Sale)
	}
	s.sales[sale.PharmacyID][sale.ID] = cloneSale(sale)

	created := cloneSale(sale)
	return &created, nil
}

func (s *Store) RefundSale(_ context.Context, pharmacyID string, saleID string) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sale, exists := s.sales[pharmacyID][saleID]
	if !exists {
		return nil, &store.NotFoundError{Entity: "sale", ID: saleID}
	}
	if sale.Status == domain.SaleStatusRefunded {
		return nil, &store.AlreadyRefundedError{SaleID: saleID}
	}

	for _, item := range sale.Items {
		product, ok := s.products[pharmacyID][item.ProductID]
		if !ok {
			continue
		}
		product.Stock += item.Qty
		s.products[pharmacyID][item.ProductID] = product
	}

	sale.Status = domain.SaleStatusRefunded
	s.sales[pharmacyID][saleID] = cloneSale(sale)

	refunded := cloneSale(sale)
	return &refunded, nil
}

func (s *Store) GetSale(_ context.Context, pharmacyID string, saleID string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, exists := s.sales[pharmacyID][saleID]
	if !exists {
		return nil, &store.NotFoundError{Entity: "sale", ID: saleID}
	}
	found := cloneSale(sale)
	return &found, nil
}

func (s *Store) ListSales(_ context.Context, pharmacyID string, limit int) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit < 1 {
		limit = 50
	}

	sales := make([]domain.Sale, 0, len(s.sales[pharmacyID]))
	for _, sale := range s.sales[pharmacyID] {
		sales = append(sales, cloneSale(sale))
	}
	slices.SortFunc(sales, func(a, b domain.Sale) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return strings.Compare(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if len(sales) > limit {
		sales = sales[:limit]
	}
	return sales, nil
}

func (s *Store) barcodeTaken(pharmacyID string, barcode string, excludeID string) bool {
	for id, p := range s.products[pharmacyID] {
		if id != excludeID && p.Barcode == barcode {
			return true
		}
	}
	return false
}

func cloneSale(sale domain.Sale) domain.Sale {
	cloned := sale
	cloned.Items = make([]domain.SaleItem, len(sale.Items))
	copy(cloned.Items, sale.Items)
	return cloned
}
