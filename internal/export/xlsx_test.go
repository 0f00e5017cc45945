package export

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"FinSheet/internal/model"
)

func sampleFinancials() model.Financials {
	return model.Financials{
		model.IncomeStatement: {
			model.NewRow(
				[2]string{"fiscalDateEnding", "2022-12-31"},
				[2]string{"totalRevenue", "100"},
				[2]string{"netIncome", "55.5"},
			),
			model.NewRow(
				[2]string{"fiscalDateEnding", "2023-12-31"},
				[2]string{"totalRevenue", "200"},
				[2]string{"netIncome", "None"},
			),
		},
		model.BalanceSheet: {},
		model.CashFlow:     {},
	}
}

func TestWriteStatementWorkbook(t *testing.T) {
	dir := t.TempDir()
	p2022 := 129.93

	path, err := Write(sampleFinancials(), model.PriceSeries{"2022": &p2022, "2023": nil}, "AAPL", dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "AAPL_financials.xlsx"), path)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	// Empty statements get no sheet; the default sheet is gone.
	assert.ElementsMatch(t, []string{"Income Statement", PricesSheet}, f.GetSheetList())

	rows, err := f.GetRows("Income Statement")
	require.NoError(t, err)
	require.Len(t, rows, 3)

	// Fiscal periods become year columns; fields become rows.
	assert.Equal(t, []string{"", "2022", "2023"}, rows[0])
	assert.Equal(t, []string{"totalRevenue", "100", "200"}, rows[1])
	assert.Equal(t, []string{"netIncome", "55.5", "0"}, rows[2])

	year, err := f.GetCellValue(PricesSheet, "A2")
	require.NoError(t, err)
	assert.Equal(t, "2022", year)
	price, err := f.GetCellValue(PricesSheet, "B2")
	require.NoError(t, err)
	assert.Equal(t, "129.93", price)

	// A year without trading data keeps its row but leaves the price blank.
	year, err = f.GetCellValue(PricesSheet, "A3")
	require.NoError(t, err)
	assert.Equal(t, "2023", year)
	price, err = f.GetCellValue(PricesSheet, "B3")
	require.NoError(t, err)
	assert.Empty(t, price)
}

func TestWritePricesOnly(t *testing.T) {
	dir := t.TempDir()
	p := 42.0

	path, err := Write(model.Financials{}, model.PriceSeries{"2025": &p}, "MSFT", dir)
	require.NoError(t, err)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{PricesSheet}, f.GetSheetList())
}

func TestWriteNothingToExport(t *testing.T) {
	_, err := Write(model.Financials{}, model.PriceSeries{}, "AAPL", t.TempDir())
	assert.Error(t, err)
}

func TestWriteMissingDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "absent")
	_, err := Write(sampleFinancials(), model.PriceSeries{}, "AAPL", dir)
	require.Error(t, err)

	_, statErr := os.Stat(dir)
	assert.True(t, os.IsNotExist(statErr))
}

func TestCoerceNumeric(t *testing.T) {
	tests := map[string]float64{
		"100":      100,
		"55.5":     55.5,
		"-12":      -12,
		"None":     0,
		"none":     0,
		"null":     0,
		"-":        0,
		"N/A":      0,
		"":         0,
		" 42 ":     42,
		"gibberish": 0,
	}
	for in, want := range tests {
		assert.Equal(t, want, coerceNumeric(in), "%q", in)
	}
}

func TestExportFieldsUnionInProviderOrder(t *testing.T) {
	rows := []model.Row{
		model.NewRow(
			[2]string{"fiscalDateEnding", "2022-12-31"},
			[2]string{"totalRevenue", "100"},
		),
		model.NewRow(
			[2]string{"fiscalDateEnding", "2023-12-31"},
			[2]string{"totalRevenue", "200"},
			[2]string{"ebitda", "40"},
		),
	}

	assert.Equal(t, []string{"totalRevenue", "ebitda"}, exportFields(rows))
}
