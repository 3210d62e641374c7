package export

import (
	"bytes"
	"encoding/csv"
	"errors"
	"testing"

	"github.com/xuri/excelize/v2"

	"expense_tracker_bot/internal/domain"
)

func sampleRecords() []domain.ExpenseRecord {
	return []domain.ExpenseRecord{
		{UserID: 1, SortKey: "1717200000_aaaaaaa", Date: "2024-06-01", Amount: domain.MustMoney("12.5"), Category: domain.CategoryFood, Description: "lunch, with tip"},
		{UserID: 1, SortKey: "1717286400_bbbbbbb", Date: "2024-06-02", Amount: domain.MustMoney("1000"), Category: domain.CategoryIncome, Description: "bonus", Income: true},
	}
}

func namer(id int) string {
	return domain.DefaultCategories[id]
}

func TestRenderCSV(t *testing.T) {
	data, err := Render(FormatCSV, sampleRecords(), namer)
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}

	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "Date" || rows[0][4] != "Income" {
		t.Fatalf("unexpected header %v", rows[0])
	}
	want := []string{"2024-06-01", "12.50", "🍔 Food", "lunch, with tip", "false"}
	for i, cell := range want {
		if rows[1][i] != cell {
			t.Fatalf("row 1 col %d = %q, want %q", i, rows[1][i], cell)
		}
	}
	if rows[2][4] != "true" {
		t.Fatalf("expected income flag, got %v", rows[2])
	}
}

func TestRenderXLSX(t *testing.T) {
	data, err := Render(FormatXLSX, sampleRecords(), namer)
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open xlsx: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	if err != nil {
		t.Fatalf("read rows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[0][2] != "Category" || rows[1][2] != "🍔 Food" || rows[2][3] != "bonus" {
		t.Fatalf("unexpected rows %v", rows)
	}
}

func TestParseFormat(t *testing.T) {
	if got, err := ParseFormat(""); err != nil || got != FormatCSV {
		t.Fatalf("expected csv default, got %s %v", got, err)
	}
	if got, err := ParseFormat("XLSX"); err != nil || got != FormatXLSX {
		t.Fatalf("expected xlsx, got %s %v", got, err)
	}
	if _, err := ParseFormat("pdf"); !errors.Is(err, ErrUnknownFormat) {
		t.Fatalf("expected ErrUnknownFormat, got %v", err)
	}
	if _, err := Render("pdf", nil, nil); !errors.Is(err, ErrUnknownFormat) {
		t.Fatalf("expected ErrUnknownFormat from Render, got %v", err)
	}
}

func TestFilename(t *testing.T) {
	if got := Filename(42, FormatXLSX); got != "expenses_42.xlsx" {
		t.Fatalf("unexpected filename %q", got)
	}
}
