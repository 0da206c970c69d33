// Package export renders dashboard data into downloadable workbooks.
package export

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/dynpricing/dashboard-service/internal/api"
)

const productsSheet = "Товары"

var productHeaders = []string{
	"Название",
	"Бренд",
	"Категория",
	"Подкатегория",
	"В избранном",
	"Последний раз в наличии",
	"Дней без остатка",
	"Ссылка",
}

// Products builds an XLSX workbook from a product list. Nullable fields are
// written as empty cells, matching how the dashboard shows them as a dash.
func Products(products []api.Product) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(productsSheet)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to remove default sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for col, title := range productHeaders {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, fmt.Errorf("failed to address header cell: %w", err)
		}
		if err := f.SetCellValue(productsSheet, cell, title); err != nil {
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
	}
	lastHeader, _ := excelize.CoordinatesToCellName(len(productHeaders), 1)
	if err := f.SetCellStyle(productsSheet, "A1", lastHeader, headerStyle); err != nil {
		return nil, fmt.Errorf("failed to style header: %w", err)
	}

	for i, p := range products {
		row := []any{
			p.Name,
			strOrEmpty(p.Brand),
			strOrEmpty(p.CategoryLevel1),
			strOrEmpty(p.CategoryLevel2),
			p.FavoritesCount,
			strOrEmpty(p.LastInStock),
			intOrEmpty(p.DaysOutOfStock),
			strOrEmpty(p.Link),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, fmt.Errorf("failed to address row %d: %w", i+2, err)
		}
		if err := f.SetSheetRow(productsSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	// Readable default widths for the name and date columns.
	if err := f.SetColWidth(productsSheet, "A", "A", 48); err != nil {
		return nil, fmt.Errorf("failed to set column width: %w", err)
	}
	if err := f.SetColWidth(productsSheet, "B", "D", 24); err != nil {
		return nil, fmt.Errorf("failed to set column width: %w", err)
	}
	if err := f.SetColWidth(productsSheet, "F", "F", 22); err != nil {
		return nil, fmt.Errorf("failed to set column width: %w", err)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to serialize workbook: %w", err)
	}
	return &buf, nil
}

func strOrEmpty(s *string) any {
	if s == nil {
		return ""
	}
	return *s
}

func intOrEmpty(n *int) any {
	if n == nil {
		return ""
	}
	return *n
}
