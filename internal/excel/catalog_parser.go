package excel

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"apotekpos/backend/internal/domain"

	"github.com/xuri/excelize/v2"
)

var headerAliases = map[string]string{
	"name":         "name",
	"product name": "name",
	"product":      "name",
	"nama":         "name",
	"nama produk":  "name",
	"category":     "category",
	"kategori":     "category",
	"barcode":      "barcode",
	"buy price":    "buy_price",
	"harga beli":   "buy_price",
	"sell price":   "sell_price",
	"harga jual":   "sell_price",
	"stock":        "stock",
	"stok":         "stock",
	"qty":          "stock",
	"quantity":     "stock",
}

// ParseCatalogRows reads the first sheet of an xlsx catalog export.
// Prices are read as decimal currency amounts and converted to cents.
func ParseCatalogRows(reader io.Reader) ([]domain.CatalogImportRow, error) {
	file, err := excelize.OpenReader(reader)
	if err != nil {
		return nil, fmt.Errorf("open excel file: %w", err)
	}
	defer file.Close()

	sheets := file.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("excel file has no sheets")
	}

	rows, err := file.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("excel file is empty")
	}

	colMap := mapColumns(rows[0])
	for _, required := range []string{"name", "buy_price", "sell_price"} {
		if _, ok := colMap[required]; !ok {
			return nil, fmt.Errorf("missing required column: %s", required)
		}
	}

	result := make([]domain.CatalogImportRow, 0, len(rows)-1)
	for index := 1; index < len(rows); index++ {
		cells := rows[index]
		name := strings.TrimSpace(readCell(cells, colMap["name"]))
		if name == "" {
			continue
		}

		buyPrice, err := parsePriceCents(readCell(cells, colMap["buy_price"]))
		if err != nil {
			return nil, fmt.Errorf("row %d invalid buy price: %w", index+1, err)
		}
		sellPrice, err := parsePriceCents(readCell(cells, colMap["sell_price"]))
		if err != nil {
			return nil, fmt.Errorf("row %d invalid sell price: %w", index+1, err)
		}

		stock := 0
		if idx, ok := colMap["stock"]; ok {
			raw := strings.TrimSpace(readCell(cells, idx))
			if raw != "" {
				parsed, err := parseInt(raw)
				if err != nil {
					return nil, fmt.Errorf("row %d invalid stock: %w", index+1, err)
				}
				stock = parsed
			}
		}

		var category, barcode string
		if idx, ok := colMap["category"]; ok {
			category = strings.TrimSpace(readCell(cells, idx))
		}
		if idx, ok := colMap["barcode"]; ok {
			barcode = strings.TrimSpace(readCell(cells, idx))
		}

		result = append(result, domain.CatalogImportRow{
			Name:           name,
			Category:       category,
			Barcode:        barcode,
			BuyPriceCents:  buyPrice,
			SellPriceCents: sellPrice,
			Stock:          stock,
		})
	}

	if len(result) == 0 {
		return nil, fmt.Errorf("excel file has no valid data rows")
	}
	return result, nil
}

func mapColumns(header []string) map[string]int {
	mapped := make(map[string]int)
	for idx, col := range header {
		normalized := normalizeHeader(col)
		if normalized == "" {
			continue
		}
		canonical, ok := headerAliases[normalized]
		if !ok {
			continue
		}
		if _, exists := mapped[canonical]; !exists {
			mapped[canonical] = idx
		}
	}
	return mapped
}

func normalizeHeader(raw string) string {
	value := strings.TrimSpace(raw)
	value = strings.TrimPrefix(value, "\uFEFF")
	value = strings.ToLower(value)
	value = strings.ReplaceAll(value, "_", " ")
	value = strings.Join(strings.Fields(value), " ")
	return value
}

func readCell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func parsePriceCents(raw string) (int64, error) {
	value, err := parseFloat(raw)
	if err != nil {
		return 0, err
	}
	if value < 0 {
		return 0, fmt.Errorf("must not be negative")
	}
	return int64(math.Round(value * 100)), nil
}

func parseInt(raw string) (int, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return 0, fmt.Errorf("value is empty")
	}

	asFloat, err := strconv.ParseFloat(strings.ReplaceAll(value, ",", ""), 64)
	if err != nil {
		return 0, fmt.Errorf("not a number")
	}
	if math.Mod(asFloat, 1) != 0 {
		return 0, fmt.Errorf("must be an integer")
	}
	return int(asFloat), nil
}

func parseFloat(raw string) (float64, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return 0, fmt.Errorf("value is empty")
	}
	parsed, err := strconv.ParseFloat(strings.ReplaceAll(value, ",", ""), 64)
	if err != nil {
		return 0, fmt.Errorf("not a number")
	}
	return parsed, nil
}
