package export

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"FinSheet/internal/model"
)

// PricesSheet is the name of the closing-price sheet.
const PricesSheet = "Year-End Closing Prices"

// Write exports the fetched tables to an .xlsx workbook in dir, one sheet
// per non-empty statement (rows = fields, columns = 4-digit fiscal years,
// numeric cells coerced with missing values as 0) plus a year/closing-price
// sheet. Returns the written file path.
func Write(financials model.Financials, prices model.PriceSeries, symbol, dir string) (string, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("save directory does not exist: %s", dir)
	}

	f := excelize.NewFile()
	defer f.Close()

	wrote := false
	for _, st := range model.StatementOrder {
		rows := financials[st]
		if len(rows) == 0 {
			continue
		}
		if err := writeStatementSheet(f, st.DisplayName(), rows); err != nil {
			return "", err
		}
		wrote = true
	}

	if len(prices) > 0 {
		if err := writePricesSheet(f, prices); err != nil {
			return "", err
		}
		wrote = true
	}

	if !wrote {
		return "", fmt.Errorf("nothing to export for %s", symbol)
	}

	if err := f.DeleteSheet("Sheet1"); err != nil {
		return "", fmt.Errorf("drop default sheet: %w", err)
	}
	f.SetActiveSheet(0)

	path := filepath.Join(dir, symbol+"_financials.xlsx")
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("save workbook: %w", err)
	}
	return path, nil
}

// writeStatementSheet transposes the report rows: each fiscal period
// becomes a column headed by its 4-digit year, each provider field a row.
func writeStatementSheet(f *excelize.File, sheet string, rows []model.Row) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("create sheet %s: %w", sheet, err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(i+2, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, fiscalYearLabel(row)); err != nil {
			return err
		}
	}

	for r, field := range exportFields(rows) {
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, field); err != nil {
			return err
		}
		for i, row := range rows {
			cell, err := excelize.CoordinatesToCellName(i+2, r+2)
			if err != nil {
				return err
			}
			val, _ := row.Get(field)
			if err := f.SetCellValue(sheet, cell, coerceNumeric(val)); err != nil {
				return err
			}
		}
	}
	return nil
}

func writePricesSheet(f *excelize.File, prices model.PriceSeries) error {
	if _, err := f.NewSheet(PricesSheet); err != nil {
		return fmt.Errorf("create sheet %s: %w", PricesSheet, err)
	}
	if err := f.SetCellValue(PricesSheet, "A1", "Year"); err != nil {
		return err
	}
	if err := f.SetCellValue(PricesSheet, "B1", "Closing Price"); err != nil {
		return err
	}

	years := make([]string, 0, len(prices))
	for y := range prices {
		years = append(years, y)
	}
	sort.Strings(years)

	for i, y := range years {
		row := i + 2
		if err := f.SetCellValue(PricesSheet, fmt.Sprintf("A%d", row), y); err != nil {
			return err
		}
		if p := prices[y]; p != nil {
			if err := f.SetCellValue(PricesSheet, fmt.Sprintf("B%d", row), *p); err != nil {
				return err
			}
		}
	}
	return nil
}

// exportFields returns every field seen across the rows, in provider order,
// excluding the fiscal date (it becomes the column header).
func exportFields(rows []model.Row) []string {
	var fields []string
	seen := make(map[string]bool)
	for _, row := range rows {
		for _, field := range row.Fields() {
			if field == model.FiscalDateField || seen[field] {
				continue
			}
			seen[field] = true
			fields = append(fields, field)
		}
	}
	return fields
}

// fiscalYearLabel reduces a fiscal date to its 4-digit year.
func fiscalYearLabel(row model.Row) string {
	d := row.FiscalDateEnding()
	if len(d) >= 4 {
		return d[:4]
	}
	return d
}

// coerceNumeric converts a provider value to a number, mapping the
// provider's missing-value markers and any non-numeric text to 0.
func coerceNumeric(val string) float64 {
	switch strings.TrimSpace(val) {
	case "", "None", "none", "null", "-", "N/A":
		return 0
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
	if err != nil {
		return 0
	}
	return n
}
