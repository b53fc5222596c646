package excel

import (
	"bytes"
	"testing"

	"github.com/xuri/excelize/v2"
)

func buildWorkbook(t *testing.T, rows [][]interface{}) *bytes.Reader {
	t.Helper()

	file := excelize.NewFile()
	defer file.Close()

	sheet := file.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("coordinates: %v", err)
		}
		if err := file.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("set row: %v", err)
		}
	}

	var buf bytes.Buffer
	if err := file.Write(&buf); err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return bytes.NewReader(buf.Bytes())
}

func TestParseCatalogRows(t *testing.T) {
	reader := buildWorkbook(t, [][]interface{}{
		{"Nama Produk", "Kategori", "Barcode", "Harga Beli", "Harga Jual", "Stok"},
		{"Paracetamol 500mg", "Obat Bebas", "899123", 5.00, 8.00, 120},
		{"Vitamin C 100mg", "Suplemen", "", 3.50, 6.25, 200},
		{"", "ignored", "", 1, 1, 1},
	})

	rows, err := ParseCatalogRows(reader)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}

	first := rows[0]
	if first.Name != "Paracetamol 500mg" {
		t.Fatalf("unexpected name %q", first.Name)
	}
	if first.Category != "Obat Bebas" || first.Barcode != "899123" {
		t.Fatalf("unexpected category/barcode %q/%q", first.Category, first.Barcode)
	}
	if first.BuyPriceCents != 500 || first.SellPriceCents != 800 {
		t.Fatalf("unexpected prices %d/%d", first.BuyPriceCents, first.SellPriceCents)
	}
	if first.Stock != 120 {
		t.Fatalf("unexpected stock %d", first.Stock)
	}

	second := rows[1]
	if second.SellPriceCents != 625 {
		t.Fatalf("expected fractional price rounded to cents, got %d", second.SellPriceCents)
	}
	if second.Barcode != "" {
		t.Fatalf("expected empty barcode, got %q", second.Barcode)
	}
}

func TestParseCatalogRowsEnglishHeaders(t *testing.T) {
	reader := buildWorkbook(t, [][]interface{}{
		{"Name", "Buy Price", "Sell Price", "Qty"},
		{"Betadine 30ml", 18.00, 26.00, 45},
	})

	rows, err := ParseCatalogRows(reader)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0].Stock != 45 {
		t.Fatalf("expected qty column mapped to stock, got %d", rows[0].Stock)
	}
	if rows[0].Category != "" {
		t.Fatalf("expected empty category, got %q", rows[0].Category)
	}
}

func TestParseCatalogRowsMissingColumn(t *testing.T) {
	reader := buildWorkbook(t, [][]interface{}{
		{"Name", "Sell Price"},
		{"Oralit", 4.00},
	})

	if _, err := ParseCatalogRows(reader); err == nil {
		t.Fatal("expected error for missing buy price column")
	}
}

func TestParseCatalogRowsInvalidStock(t *testing.T) {
	reader := buildWorkbook(t, [][]interface{}{
		{"Name", "Buy Price", "Sell Price", "Stock"},
		{"Masker Medis", 25.00, 39.00, "lots"},
	})

	if _, err := ParseCatalogRows(reader); err == nil {
		t.Fatal("expected error for non-numeric stock")
	}
}
