package service

import (
	"context"
	"log"
	"strings"
	"time"

	"apotekpos/backend/internal/cache"
	"apotekpos/backend/internal/domain"
	"apotekpos/backend/internal/store"
)

const defaultLowStockThreshold = 10

// Service is the sale transaction engine plus the catalog-management
// surface around it. Every operation is scoped by the pharmacy id the
// caller passes in; there is no ambient tenant state.
type Service struct {
	repo              store.Repository
	catalogCache      cache.CatalogCache
	catalogCacheTTL   time.Duration
	lowStockThreshold int
}

func New(repo store.Repository, catalogCache cache.CatalogCache, catalogCacheTTL time.Duration, lowStockThreshold int) *Service {
	if catalogCache == nil {
		catalogCache = cache.NoopCatalogCache{}
	}
	if lowStockThreshold < 1 {
		lowStockThreshold = defaultLowStockThreshold
	}

	return &Service{
		repo:              repo,
		catalogCache:      catalogCache,
		catalogCacheTTL:   catalogCacheTTL,
		lowStockThreshold: lowStockThreshold,
	}
}

// CreateSale validates the request and delegates the atomic
// check-debit-persist unit of work to the repository. On any error no
// sale exists and no stock changed.
func (s *Service) CreateSale(ctx context.Context, pharmacyID string, items []domain.SaleItemInput, paymentMethod string) (domain.Sale, error) {
	pharmacyID = strings.TrimSpace(pharmacyID)
	if pharmacyID == "" {
		return domain.Sale{}, &store.ValidationError{Reason: "pharmacy id required"}
	}
	if len(items) == 0 {
		return domain.Sale{}, &store.ValidationError{Reason: "sale requires at least one item"}
	}
	if !domain.IsSupportedPaymentMethod(paymentMethod) {
		return domain.Sale{}, &store.ValidationError{Reason: "unsupported payment method " + paymentMethod}
	}

	lines := make([]domain.SaleItem, 0, len(items))
	for _, item := range items {
		if strings.TrimSpace(item.ProductID) == "" {
			return domain.Sale{}, &store.ValidationError{Reason: "item product id required"}
		}
		if item.Qty < 1 {
			return domain.Sale{}, &store.ValidationError{Reason: "item quantity must be positive"}
		}
		if item.UnitSellCents < 0 {
			return domain.Sale{}, &store.ValidationError{Reason: "item price must not be negative"}
		}
		lines = append(lines, domain.SaleItem{
			ProductID:     strings.TrimSpace(item.ProductID),
			Qty:           item.Qty,
			UnitSellCents: item.UnitSellCents,
		})
	}

	draft := domain.Sale{
		ID:            domain.NewID("sale"),
		PharmacyID:    pharmacyID,
		PaymentMethod: paymentMethod,
		Status:        domain.SaleStatusCompleted,
		CreatedAt:     time.Now().UTC(),
		Items:         lines,
	}

	created, err := s.repo.CreateSale(ctx, draft)
	if err != nil {
		return domain.Sale{}, err
	}

	s.invalidateCatalog(ctx, pharmacyID)
	return *created, nil
}

// RefundSale reverses the sale's stock debits and flips its status, once.
// A second call for the same sale fails with ErrAlreadyRefunded.
func (s *Service) RefundSale(ctx context.Context, pharmacyID string, saleID string) (domain.Sale, error) {
	pharmacyID = strings.TrimSpace(pharmacyID)
	saleID = strings.TrimSpace(saleID)
	if pharmacyID == "" || saleID == "" {
		return domain.Sale{}, &store.ValidationError{Reason: "pharmacy id and sale id required"}
	}

	refunded, err := s.repo.RefundSale(ctx, pharmacyID, saleID)
	if err != nil {
		return domain.Sale{}, err
	}

	s.invalidateCatalog(ctx, pharmacyID)
	return *refunded, nil
}

func (s *Service) GetSale(ctx context.Context, pharmacyID string, saleID string) (domain.Sale, error) {
	if pharmacyID == "" || saleID == "" {
		return domain.Sale{}, &store.ValidationError{Reason: "pharmacy id and sale id required"}
	}
	sale, err := s.repo.GetSale(ctx, pharmacyID, saleID)
	if err != nil {
		return domain.Sale{}, err
	}
	return *sale, nil
}

func (s *Service) ListSales(ctx context.Context, pharmacyID string, limit int) ([]domain.Sale, error) {
	if pharmacyID == "" {
		return nil, &store.ValidationError{Reason: "pharmacy id required"}
	}
	return s.repo.ListSales(ctx, pharmacyID, limit)
}

func (s *Service) ListProducts(ctx context.Context, pharmacyID string) ([]domain.Product, error) {
	if pharmacyID == "" {
		return nil, &store.ValidationError{Reason: "pharmacy id required"}
	}

	if cached, hit, err := s.catalogCache.GetProducts(ctx, pharmacyID); err == nil && hit {
		return cached, nil
	} else if err != nil {
		log.Printf("[service] WARN: catalog cache read failed pharmacy=%s: %v", pharmacyID, err)
	}

	products, err := s.repo.ListProducts(ctx, pharmacyID)
	if err != nil {
		return nil, err
	}

	if err := s.catalogCache.SetProducts(ctx, pharmacyID, products, s.catalogCacheTTL); err != nil {
		log.Printf("[service] WARN: catalog cache write failed pharmacy=%s: %v", pharmacyID, err)
	}
	return products, nil
}

func (s *Service) GetProduct(ctx context.Context, pharmacyID string, productID string) (domain.Product, error) {
	if pharmacyID == "" || productID == "" {
		return domain.Product{}, &store.ValidationError{Reason: "pharmacy id and product id required"}
	}
	product, err := s.repo.GetProduct(ctx, pharmacyID, productID)
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

func (s *Service) CreateProduct(ctx context.Context, pharmacyID string, req domain.ProductCreateRequest) (domain.Product, error) {
	pharmacyID = strings.TrimSpace(pharmacyID)
	req.Name = strings.TrimSpace(req.Name)
	req.Category = strings.TrimSpace(req.Category)
	req.Barcode = strings.TrimSpace(req.Barcode)

	if pharmacyID == "" || req.Name == "" {
		return domain.Product{}, &store.ValidationError{Reason: "pharmacy id and name required"}
	}
	if req.BuyPriceCents < 0 || req.SellPriceCents < 0 || req.InitialStock < 0 {
		return domain.Product{}, &store.ValidationError{Reason: "prices and initial stock must not be negative"}
	}

	product := domain.Product{
		ID:             domain.NewID("prd"),
		PharmacyID:     pharmacyID,
		Name:           req.Name,
		Category:       req.Category,
		Barcode:        req.Barcode,
		BuyPriceCents:  req.BuyPriceCents,
		SellPriceCents: req.SellPriceCents,
		Stock:          req.InitialStock,
	}

	created, err := s.repo.CreateProduct(ctx, product)
	if err != nil {
		return domain.Product{}, err
	}

	s.invalidateCatalog(ctx, pharmacyID)
	return *created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, pharmacyID string, productID string, req domain.ProductUpdateRequest) (domain.Product, error) {
	if pharmacyID == "" || productID == "" {
		return domain.Product{}, &store.ValidationError{Reason: "pharmacy id and product id required"}
	}

	existing, err := s.repo.GetProduct(ctx, pharmacyID, productID)
	if err != nil {
		return domain.Product{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Product{}, &store.ValidationError{Reason: "name must not be empty"}
		}
		updated.Name = name
	}
	if req.Category != nil {
		updated.Category = strings.TrimSpace(*req.Category)
	}
	if req.Barcode != nil {
		updated.Barcode = strings.TrimSpace(*req.Barcode)
	}
	if req.BuyPriceCents != nil {
		if *req.BuyPriceCents < 0 {
			return domain.Product{}, &store.ValidationError{Reason: "buy price must not be negative"}
		}
		updated.BuyPriceCents = *req.BuyPriceCents
	}
	if req.SellPriceCents != nil {
		if *req.SellPriceCents < 0 {
			return domain.Product{}, &store.ValidationError{Reason: "sell price must not be negative"}
		}
		updated.SellPriceCents = *req.SellPriceCents
	}

	saved, err := s.repo.UpdateProduct(ctx, updated)
	if err != nil {
		return domain.Product{}, err
	}

	s.invalidateCatalog(ctx, pharmacyID)
	return *saved, nil
}

// DeleteProduct removes a catalog entry. Products referenced by any sale
// item stay in place and the call fails with ErrConflict.
func (s *Service) DeleteProduct(ctx context.Context, pharmacyID string, productID string) error {
	if pharmacyID == "" || productID == "" {
		return &store.ValidationError{Reason: "pharmacy id and product id required"}
	}
	if err := s.repo.DeleteProduct(ctx, pharmacyID, productID); err != nil {
		return err
	}
	s.invalidateCatalog(ctx, pharmacyID)
	return nil
}

func (s *Service) RestockProduct(ctx context.Context, pharmacyID string, productID string, qty int) (domain.Product, error) {
	if pharmacyID == "" || productID == "" {
		return domain.Product{}, &store.ValidationError{Reason: "pharmacy id and product id required"}
	}
	if qty < 1 {
		return domain.Product{}, &store.ValidationError{Reason: "restock quantity must be positive"}
	}

	product, err := s.repo.AddStock(ctx, pharmacyID, productID, qty)
	if err != nil {
		return domain.Product{}, err
	}

	s.invalidateCatalog(ctx, pharmacyID)
	return *product, nil
}

func (s *Service) ListLowStock(ctx context.Context, pharmacyID string, threshold int) ([]domain.Product, error) {
	if pharmacyID == "" {
		return nil, &store.ValidationError{Reason: "pharmacy id required"}
	}
	if threshold < 1 {
		threshold = s.lowStockThreshold
	}
	return s.repo.ListLowStock(ctx, pharmacyID, threshold)
}

// ImportCatalog upserts parsed spreadsheet rows by normalized product
// name: known names get prices refreshed and stock credited, new names
// become products. Rows that fail are skipped and logged.
func (s *Service) ImportCatalog(ctx context.Context, pharmacyID string, rows []domain.CatalogImportRow) (domain.ImportSummary, error) {
	pharmacyID = strings.TrimSpace(pharmacyID)
	if pharmacyID == "" {
		return domain.ImportSummary{}, &store.ValidationError{Reason: "pharmacy id required"}
	}
	if len(rows) == 0 {
		return domain.ImportSummary{}, &store.ValidationError{Reason: "import requires at least one row"}
	}

	existing, err := s.repo.ListProducts(ctx, pharmacyID)
	if err != nil {
		return domain.ImportSummary{}, err
	}
	byName := make(map[string]domain.Product, len(existing))
	for _, p := range existing {
		byName[normalizeName(p.Name)] = p
	}

	var summary domain.ImportSummary
	for _, row := range rows {
		name := strings.TrimSpace(row.Name)
		if name == "" || row.BuyPriceCents < 0 || row.SellPriceCents < 0 || row.Stock < 0 {
			summary.Skipped++
			continue
		}

		if current, ok := byName[normalizeName(name)]; ok {
			_, err := s.UpdateProduct(ctx, pharmacyID, current.ID, domain.ProductUpdateRequest{
				BuyPriceCents:  &row.BuyPriceCents,
				SellPriceCents: &row.SellPriceCents,
			})
			if err != nil {
				log.Printf("[service] WARN: import update failed product=%s: %v", current.ID, err)
				summary.Skipped++
				continue
			}
			if row.Stock > 0 {
				if _, err := s.repo.AddStock(ctx, pharmacyID, current.ID, row.Stock); err != nil {
					log.Printf("[service] WARN: import restock failed product=%s: %v", current.ID, err)
				}
			}
			summary.Updated++
			continue
		}

		created, err := s.CreateProduct(ctx, pharmacyID, domain.ProductCreateRequest{
			Name:           name,
			Category:       row.Category,
			Barcode:        row.Barcode,
			BuyPriceCents:  row.BuyPriceCents,
			SellPriceCents: row.SellPriceCents,
			InitialStock:   row.Stock,
		})
		if err != nil {
			log.Printf("[service] WARN: import create failed name=%q: %v", name, err)
			summary.Skipped++
			continue
		}
		byName[normalizeName(created.Name)] = created
		summary.Created++
	}

	s.invalidateCatalog(ctx, pharmacyID)
	return summary, nil
}

func (s *Service) invalidateCatalog(ctx context.Context, pharmacyID string) {
	if err := s.catalogCache.InvalidateProducts(ctx, pharmacyID); err != nil {
		log.Printf("[service] WARN: catalog cache invalidate failed pharmacy=%s: %v", pharmacyID, err)
	}
}

func normalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}
