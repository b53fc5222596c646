package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Product is a catalog entry owned by a single pharmacy. Stock must never
// go negative; only the sale engine and restock operations mutate it.
type Product struct {
	ID             string `json:"id"`
	PharmacyID     string `json:"pharmacy_id"`
	Name           string `json:"name"`
	Category       string `json:"category"`
	Barcode        string `json:"barcode,omitempty"`
	BuyPriceCents  int64  `json:"buy_price_cents"`
	SellPriceCents int64  `json:"sell_price_cents"`
	Stock          int    `json:"stock"`
}

type ProductCreateRequest struct {
	Name           string `json:"name"`
	Category       string `json:"category"`
	Barcode        string `json:"barcode,omitempty"`
	BuyPriceCents  int64  `json:"buy_price_cents"`
	SellPriceCents int64  `json:"sell_price_cents"`
	InitialStock   int    `json:"initial_stock"`
}

type ProductUpdateRequest struct {
	Name           *string `json:"name,omitempty"`
	Category       *string `json:"category,omitempty"`
	Barcode        *string `json:"barcode,omitempty"`
	BuyPriceCents  *int64  `json:"buy_price_cents,omitempty"`
	SellPriceCents *int64  `json:"sell_price_cents,omitempty"`
}

// SaleItemInput is one requested sale line. UnitSellCents is the price
// declared at the counter; the buy price always comes from the catalog.
type SaleItemInput struct {
	ProductID     string `json:"product_id"`
	Qty           int    `json:"qty"`
	UnitSellCents int64  `json:"unit_sell_cents"`
}

type SaleItem struct {
	ID            string `json:"id"`
	SaleID        string `json:"sale_id"`
	ProductID     string `json:"product_id"`
	ProductName   string `json:"product_name"`
	Qty           int    `json:"qty"`
	UnitSellCents int64  `json:"unit_sell_cents"`
	UnitBuyCents  int64  `json:"unit_buy_cents"`
	TotalCents    int64  `json:"total_cents"`
	ProfitCents   int64  `json:"profit_cents"`
}

type Sale struct {
	ID            string     `json:"id"`
	PharmacyID    string     `json:"pharmacy_id"`
	TotalCents    int64      `json:"total_cents"`
	ProfitCents   int64      `json:"profit_cents"`
	PaymentMethod string     `json:"payment_method"`
	Status        string     `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	Items         []SaleItem `json:"items"`
}

type CatalogImportRow struct {
	Name           string
	Category       string
	Barcode        string
	BuyPriceCents  int64
	SellPriceCents int64
	Stock          int
}

type ImportSummary struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
}

const (
	PaymentCash     = "cash"
	PaymentCard     = "card"
	PaymentTransfer = "transfer"
)

const (
	SaleStatusCompleted = "completed"
	SaleStatusRefunded  = "refunded"
)

func IsSupportedPaymentMethod(method string) bool {
	switch method {
	case PaymentCash, PaymentCard, PaymentTransfer:
		return true
	}
	return false
}

// NewID returns a prefixed opaque identifier.
func NewID(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, uuid.NewString())
}
