// Package export renders ledger history as spreadsheets for the shop owner.
package export

import (
	"bytes"
	"fmt"
	"time"

	"welcome-craft/internal/localtime"
	"welcome-craft/internal/models"

	"github.com/xuri/excelize/v2"
)

const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var headers = []string{"Date", "Price per tola (Rs.)", "Daily change", "Last scraped (NPT)"}

// PriceHistoryWorkbook writes one row per ledger record, in the order given.
func PriceHistoryWorkbook(metal models.Metal, records []models.MetalPrice) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := string(metal)
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return nil, err
		}
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		f.SetCellStyle(sheet, "A1", "D1", style)
	}

	for i, rec := range records {
		row := i + 2
		price, _ := rec.PricePerTola.Round(2).Float64()
		values := []interface{}{
			localtime.Date(rec.EffectiveDate),
			price,
			rec.DailyChange,
			rec.LastScrapedAt.In(localtime.Zone).Format("2006-01-02 15:04"),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return nil, fmt.Errorf("write %s: %w", cell, err)
			}
		}
	}
	f.SetColWidth(sheet, "A", "D", 22)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Filename is the attachment name for a metal's export, e.g. silver-prices-2024-03-10.xlsx.
func Filename(metal models.Metal, at time.Time) string {
	return fmt.Sprintf("%s-prices-%s.xlsx", metal, localtime.Date(at))
}
