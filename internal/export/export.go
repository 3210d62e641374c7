// Package export renders a user's ledger as CSV or XLSX.
package export

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"expense_tracker_bot/internal/domain"
)

// Format is an export file type.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

const sheetName = "Expenses"

// ErrUnknownFormat is returned for formats other than csv and xlsx.
var ErrUnknownFormat = errors.New("unknown export format")

// Header is the column layout shared by both formats.
var Header = []string{"Date", "Amount", "Category", "Description", "Income"}

// CategoryNamer resolves a category id for display.
type CategoryNamer func(id int) string

// ParseFormat reads a user-supplied format, defaulting to CSV.
func ParseFormat(raw string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(raw))) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, raw)
	}
}

// Filename names the export file for a user.
func Filename(userID int64, format Format) string {
	return fmt.Sprintf("expenses_%d.%s", userID, format)
}

// Render writes records in the requested format.
func Render(format Format, records []domain.ExpenseRecord, name CategoryNamer) ([]byte, error) {
	if name == nil {
		name = strconv.Itoa
	}
	switch format {
	case FormatCSV:
		return renderCSV(records, name)
	case FormatXLSX:
		return renderXLSX(records, name)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

func renderCSV(records []domain.ExpenseRecord, name CategoryNamer) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(Header); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for _, rec := range records {
		row := []string{
			rec.Date,
			rec.Amount.StringFixed(2),
			name(rec.Category),
			rec.Description,
			strconv.FormatBool(rec.Income),
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("write csv row %s: %w", rec.SortKey, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

func renderXLSX(records []domain.ExpenseRecord, name CategoryNamer) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, fmt.Errorf("name sheet: %w", err)
	}

	header := make([]interface{}, len(Header))
	for i, title := range Header {
		header[i] = title
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return nil, fmt.Errorf("write xlsx header: %w", err)
	}

	for i, rec := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, fmt.Errorf("cell name: %w", err)
		}
		row := []interface{}{
			rec.Date,
			rec.Amount.InexactFloat64(),
			name(rec.Category),
			rec.Description,
			rec.Income,
		}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return nil, fmt.Errorf("write xlsx row %s: %w", rec.SortKey, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("encode xlsx: %w", err)
	}
	return buf.Bytes(), nil
}
