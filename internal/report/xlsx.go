// Package report renders the top-10 ranking as an Excel workbook.
package report

import (
	"fmt"
	"io"

	"github.com/2haed/cs-market/internal/models"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Top"

var header = []interface{}{
	"Item", "Market price", "Current market price", "Lis-skins price",
	"Net profit", "Current profit", "ROS %", "Sales 7d", "Rating", "Market URL", "Lis-skins URL",
}

// WriteTopXLSX writes rows to w as a single-sheet workbook.
func WriteTopXLSX(w io.Writer, rows []models.RankedItem) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := []interface{}{
			r.FullName,
			cellValue(r.MarketPrice),
			cellValue(r.MarketCurrentPrice),
			cellValue(r.LisSkinsPrice),
			cellValue(r.NetProfit),
			cellValue(r.CurrentProfit),
			cellValue(r.ROS),
			r.Sales7d,
			r.Rating,
			r.MarketURL,
			r.LisSkinsURL,
		}
		if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	if err := f.SetColWidth(sheetName, "A", "A", 45); err != nil {
		return err
	}
	if err := f.SetColWidth(sheetName, "B", "I", 14); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// nil prices stay empty cells
func cellValue(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
