package postgres

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"apotekpos/backend/internal/domain"
	"apotekpos/backend/internal/store"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ListProducts(ctx context.Context, pharmacyID string) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, pharmacy_id, name, category, barcode, buy_price_cents, sell_price_cents, stock
		FROM products
		WHERE pharmacy_id = $1
		ORDER BY category, name
	`, pharmacyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanProducts(rows)
}

func (s *Store) GetProduct(ctx context.Context, pharmacyID string, productID string) (*domain.Product, error) {
	var p domain.Product
	var barcode sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, pharmacy_id, name, category, barcode, buy_price_cents, sell_price_cents, stock
		FROM products
		WHERE pharmacy_id = $1 AND id = $2
	`, pharmacyID, productID).Scan(&p.ID, &p.PharmacyID, &p.Name, &p.Category, &barcode, &p.BuyPriceCents, &p.SellPriceCents, &p.Stock)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &store.NotFoundError{Entity: "product", ID: productID}
		}
		return nil, err
	}
	if barcode.Valid {
		p.Barcode = barcode.String
	}
	return &p, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.PharmacyID == "" || product.Name == "" {
		return nil, &store.ValidationError{Reason: "pharmacy id and name required"}
	}
	if product.BuyPriceCents < 0 || product.SellPriceCents < 0 || product.Stock < 0 {
		return nil, &store.ValidationError{Reason: "prices and stock must not be negative"}
	}
	if product.ID == "" {
		product.ID = domain.NewID("prd")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, pharmacy_id, name, category, barcode, buy_price_cents, sell_price_cents, stock, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,now(),now())
	`, product.ID, product.PharmacyID, product.Name, product.Category, nullIfEmpty(product.Barcode), product.BuyPriceCents, product.SellPriceCents, product.Stock)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, &store.ConflictError{Reason: "barcode already in use"}
		}
		return nil, err
	}

	created := product
	return &created, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.Name == "" {
		return nil, &store.ValidationError{Reason: "name required"}
	}
	if product.BuyPriceCents < 0 || product.SellPriceCents < 0 {
		return nil, &store.ValidationError{Reason: "prices must not be negative"}
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET name = $3, category = $4, barcode = $5, buy_price_cents = $6, sell_price_cents = $7, updated_at = now()
		WHERE pharmacy_id = $1 AND id = $2
	`, product.PharmacyID, product.ID, product.Name, product.Category, nullIfEmpty(product.Barcode), product.BuyPriceCents, product.SellPriceCents)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, &store.ConflictError{Reason: "barcode already in use"}
		}
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, &store.NotFoundError{Entity: "product", ID: product.ID}
	}

	return s.GetProduct(ctx, product.PharmacyID, product.ID)
}

func (s *Store) DeleteProduct(ctx context.Context, pharmacyID string, productID string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM products
		WHERE pharmacy_id = $1 AND id = $2
	`, pharmacyID, productID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return &store.ConflictError{Reason: "product is referenced by recorded sales"}
		}
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return &store.NotFoundError{Entity: "product", ID: productID}
	}
	return nil
}

func (s *Store) AddStock(ctx context.Context, pharmacyID string, productID string, qty int) (*domain.Product, error) {
	if qty < 1 {
		return nil, &store.ValidationError{Reason: "restock quantity must be positive"}
	}

	var p domain.Product
	var barcode sql.NullString
	err := s.db.QueryRowContext(ctx, `
		UPDATE products
		SET stock = stock + $3, updated_at = now()
		WHERE pharmacy_id = $1 AND id = $2
		RETURNING id, pharmacy_id, name, category, barcode, buy_price_cents, sell_price_cents, stock
	`, pharmacyID, productID, qty).Scan(&p.ID, &p.PharmacyID, &p.Name, &p.Category, &barcode, &p.BuyPriceCents, &p.SellPriceCents, &p.Stock)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &store.NotFoundError{Entity: "product", ID: productID}
		}
		return nil, err
	}
	if barcode.Valid {
		p.Barcode = barcode.String
	}
	return &p, nil
}

func (s *Store) ListLowStock(ctx context.Context, pharmacyID string, threshold int) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, pharmacy_id, name, category, barcode, buy_price_cents, sell_price_cents, stock
		FROM products
		WHERE pharmacy_id = $1 AND stock <= $2
		ORDER BY stock ASC, name
	`, pharmacyID, threshold)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanProducts(rows)
}

// CreateSale runs the whole sale as one transaction: product rows are
// locked in ascending id order, checked, and debited with a conditional
// update before the sale header and items are written. Any failure rolls
// everything back.
func (s *Store) CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
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

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	productIDs := uniqueProductIDs(sale.Items)

	// Ascending id order keeps lock acquisition deterministic across
	// concurrent multi-line sales sharing products.
	lockRows, err := tx.QueryContext(ctx, `
		SELECT id, name, buy_price_cents, stock
		FROM products
		WHERE pharmacy_id = $1 AND id = ANY($2)
		ORDER BY id
		FOR UPDATE
	`, sale.PharmacyID, productIDs)
	if err != nil {
		return nil, err
	}

	type lockedProduct struct {
		name     string
		buyCents int64
		stock    int
	}
	locked := make(map[string]*lockedProduct, len(productIDs))
	for lockRows.Next() {
		var id string
		var p lockedProduct
		if err := lockRows.Scan(&id, &p.name, &p.buyCents, &p.stock); err != nil {
			_ = lockRows.Close()
			return nil, err
		}
		locked[id] = &p
	}
	if err := lockRows.Err(); err != nil {
		_ = lockRows.Close()
		return nil, err
	}
	_ = lockRows.Close()

	items := make([]domain.SaleItem, 0, len(sale.Items))
	totalCents := int64(0)
	profitCents := int64(0)
	for _, item := range sale.Items {
		if item.Qty < 1 {
			return nil, &store.ValidationError{Reason: "item quantity must be positive"}
		}
		if item.UnitSellCents < 0 {
			return nil, &store.ValidationError{Reason: "item price must not be negative"}
		}

		product, exists := locked[item.ProductID]
		if !exists {
			return nil, &store.NotFoundError{Entity: "product", ID: item.ProductID}
		}
		if product.stock < item.Qty {
			return nil, &store.InsufficientStockError{
				ProductID: item.ProductID,
				Available: product.stock,
				Requested: item.Qty,
			}
		}

		// The lock above already serializes concurrent sales on this
		// row; the stock >= qty guard keeps the debit itself atomic.
		res, err := tx.ExecContext(ctx, `
			UPDATE products
			SET stock = stock - $3, updated_at = now()
			WHERE pharmacy_id = $1 AND id = $2 AND stock >= $3
		`, sale.PharmacyID, item.ProductID, item.Qty)
		if err != nil {
			return nil, err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if affected == 0 {
			return nil, &store.InsufficientStockError{
				ProductID: item.ProductID,
				Available: product.stock,
				Requested: item.Qty,
			}
		}
		product.stock -= item.Qty

		line := domain.SaleItem{
			ID:            domain.NewID("itm"),
			SaleID:        sale.ID,
			ProductID:     item.ProductID,
			ProductName:   product.name,
			Qty:           item.Qty,
			UnitSellCents: item.UnitSellCents,
			UnitBuyCents:  product.buyCents,
			TotalCents:    item.UnitSellCents * int64(item.Qty),
			ProfitCents:   (item.UnitSellCents - product.buyCents) * int64(item.Qty),
		}
		items = append(items, line)
		totalCents += line.TotalCents
		profitCents += line.ProfitCents
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sales (id, pharmacy_id, total_cents, profit_cents, payment_method, status, created_at)
		VALUES ($1,$2,0,0,$3,$4,$5)
	`, sale.ID, sale.PharmacyID, sale.PaymentMethod, sale.Status, sale.CreatedAt)
	if err != nil {
		return nil, err
	}

	for _, line := range items {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sale_items (id, pharmacy_id, sale_id, product_id, product_name, qty, unit_sell_cents, unit_buy_cents, total_cents, profit_cents)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		`, line.ID, sale.PharmacyID, line.SaleID, line.ProductID, line.ProductName, line.Qty, line.UnitSellCents, line.UnitBuyCents, line.TotalCents, line.ProfitCents)
		if err != nil {
			return nil, err
		}
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE sales
		SET total_cents = $2, profit_cents = $3
		WHERE id = $1
	`, sale.ID, totalCents, profitCents)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	sale.TotalCents = totalCents
	sale.ProfitCents = profitCents
	sale.Items = items
	return &sale, nil
}

// RefundSale checks and flips the sale status under a row lock so two
// concurrent refunds cannot both credit stock.
func (s *Store) RefundSale(ctx context.Context, pharmacyID string, saleID string) (*domain.Sale, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var sale domain.Sale
	err = tx.QueryRowContext(ctx, `
		SELECT id, pharmacy_id, total_cents, profit_cents, payment_method, status, created_at
		FROM sales
		WHERE pharmacy_id = $1 AND id = $2
		FOR UPDATE
	`, pharmacyID, saleID).Scan(&sale.ID, &sale.PharmacyID, &sale.TotalCents, &sale.ProfitCents, &sale.PaymentMethod, &sale.Status, &sale.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &store.NotFoundError{Entity: "sale", ID: saleID}
		}
		return nil, err
	}
	if sale.Status == domain.SaleStatusRefunded {
		return nil, &store.AlreadyRefundedError{SaleID: saleID}
	}

	itemRows, err := tx.QueryContext(ctx, `
		SELECT id, sale_id, product_id, product_name, qty, unit_sell_cents, unit_buy_cents, total_cents, profit_cents
		FROM sale_items
		WHERE sale_id = $1
		ORDER BY id
	`, saleID)
	if err != nil {
		return nil, err
	}
	items, err := scanSaleItems(itemRows)
	if err != nil {
		return nil, err
	}

	for _, item := range items {
		_, err := tx.ExecContext(ctx, `
			UPDATE products
			SET stock = stock + $3, updated_at = now()
			WHERE pharmacy_id = $1 AND id = $2
		`, pharmacyID, item.ProductID, item.Qty)
		if err != nil {
			return nil, err
		}
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE sales
		SET status = $2
		WHERE id = $1
	`, saleID, domain.SaleStatusRefunded)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	sale.Status = domain.SaleStatusRefunded
	sale.CreatedAt = sale.CreatedAt.UTC()
	sale.Items = items
	return &sale, nil
}

func (s *Store) GetSale(ctx context.Context, pharmacyID string, saleID string) (*domain.Sale, error) {
	var sale domain.Sale
	err := s.db.QueryRowContext(ctx, `
		SELECT id, pharmacy_id, total_cents, profit_cents, payment_method, status, created_at
		FROM sales
		WHERE pharmacy_id = $1 AND id = $2
	`, pharmacyID, saleID).Scan(&sale.ID, &sale.PharmacyID, &sale.TotalCents, &sale.ProfitCents, &sale.PaymentMethod, &sale.Status, &sale.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &store.NotFoundError{Entity: "sale", ID: saleID}
		}
		return nil, err
	}
	sale.CreatedAt = sale.CreatedAt.UTC()

	itemRows, err := s.db.QueryContext(ctx, `
		SELECT id, sale_id, product_id, product_name, qty, unit_sell_cents, unit_buy_cents, total_cents, profit_cents
		FROM sale_items
		WHERE sale_id = $1
		ORDER BY id
	`, saleID)
	if err != nil {
		return nil, err
	}
	items, err := scanSaleItems(itemRows)
	if err != nil {
		return nil, err
	}
	sale.Items = items

	return &sale, nil
}

func (s *Store) ListSales(ctx context.Context, pharmacyID string, limit int) ([]domain.Sale, error) {
	if limit < 1 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, pharmacy_id, total_cents, profit_cents, payment_method, status, created_at
		FROM sales
		WHERE pharmacy_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, pharmacyID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, limit)
	saleIndex := make(map[string]int, limit)
	saleIDs := make([]string, 0, limit)
	for rows.Next() {
		var sale domain.Sale
		if err := rows.Scan(&sale.ID, &sale.PharmacyID, &sale.TotalCents, &sale.ProfitCents, &sale.PaymentMethod, &sale.Status, &sale.CreatedAt); err != nil {
			return nil, err
		}
		sale.CreatedAt = sale.CreatedAt.UTC()
		sale.Items = make([]domain.SaleItem, 0, 4)
		saleIndex[sale.ID] = len(sales)
		saleIDs = append(saleIDs, sale.ID)
		sales = append(sales, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(sales) == 0 {
		return sales, nil
	}

	itemRows, err := s.db.QueryContext(ctx, `
		SELECT id, sale_id, product_id, product_name, qty, unit_sell_cents, unit_buy_cents, total_cents, profit_cents
		FROM sale_items
		WHERE sale_id = ANY($1)
		ORDER BY id
	`, saleIDs)
	if err != nil {
		return nil, err
	}
	items, err := scanSaleItems(itemRows)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		idx, ok := saleIndex[item.SaleID]
		if !ok {
			continue
		}
		sales[idx].Items = append(sales[idx].Items, item)
	}

	return sales, nil
}

func scanProducts(rows *sql.Rows) ([]domain.Product, error) {
	products := make([]domain.Product, 0, 64)
	for rows.Next() {
		var p domain.Product
		var barcode sql.NullString
		if err := rows.Scan(&p.ID, &p.PharmacyID, &p.Name, &p.Category, &barcode, &p.BuyPriceCents, &p.SellPriceCents, &p.Stock); err != nil {
			return nil, err
		}
		if barcode.Valid {
			p.Barcode = barcode.String
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func scanSaleItems(rows *sql.Rows) ([]domain.SaleItem, error) {
	defer rows.Close()

	items := make([]domain.SaleItem, 0, 8)
	for rows.Next() {
		var item domain.SaleItem
		if err := rows.Scan(&item.ID, &item.SaleID, &item.ProductID, &item.ProductName, &item.Qty, &item.UnitSellCents, &item.UnitBuyCents, &item.TotalCents, &item.ProfitCents); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func uniqueProductIDs(items []domain.SaleItem) []string {
	seen := make(map[string]struct{}, len(items))
	ids := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}
	sort.Strings(ids)
	return ids
}

func nullIfEmpty(value string) sql.NullString {
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
