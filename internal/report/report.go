// Package report renders reservation exports as spreadsheets.
package report

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const (
	sheetName  = "Reservations"
	dateLayout = "2006-01-02"
)

// Row is one reservation line in the export.
type Row struct {
	Code         string
	Status       string
	Guest        string
	Email        string
	Organization string
	Resources    string
	StartDate    time.Time
	EndDate      time.Time
	Nights       int
	Total        decimal.Decimal
	Currency     string
	Source       string
	CreatedAt    time.Time
}

var headers = []string{
	"Code", "Status", "Guest", "Email", "Organization", "Resources",
	"Start Date", "End Date", "Nights", "Total", "Currency", "Source", "Created At",
}

func (r Row) values() []any {
	total, _ := r.Total.Float64()
	return []any{
		r.Code, r.Status, r.Guest, r.Email, r.Organization, r.Resources,
		r.StartDate.Format(dateLayout), r.EndDate.Format(dateLayout), r.Nights,
		total, r.Currency, r.Source, r.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// Reservations writes rows to a single-sheet xlsx workbook and returns its bytes.
func Reservations(rows []Row) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, fmt.Errorf("rename sheet failed: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("create header style failed: %w", err)
	}
	if err := writeRow(f, 1, toAny(headers)); err != nil {
		return nil, err
	}
	last, _ := excelize.CoordinatesToCellName(len(headers), 1)
	if err := f.SetCellStyle(sheetName, "A1", last, bold); err != nil {
		return nil, fmt.Errorf("style header failed: %w", err)
	}

	money, err := f.NewStyle(&excelize.Style{NumFmt: 4}) // #,##0.00
	if err != nil {
		return nil, fmt.Errorf("create amount style failed: %w", err)
	}
	for i, r := range rows {
		if err := writeRow(f, i+2, r.values()); err != nil {
			return nil, err
		}
	}
	if len(rows) > 0 {
		top, _ := excelize.CoordinatesToCellName(10, 2)
		bottom, _ := excelize.CoordinatesToCellName(10, len(rows)+1)
		if err := f.SetCellStyle(sheetName, top, bottom, money); err != nil {
			return nil, fmt.Errorf("style amounts failed: %w", err)
		}
	}

	if err := f.SetPanes(sheetName, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return nil, fmt.Errorf("freeze header failed: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook failed: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
		return fmt.Errorf("write row %d failed: %w", row, err)
	}
	return nil
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
