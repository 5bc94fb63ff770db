package services

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func fixedExport() *ExportService {
	s := NewExportService()
	s.now = func() time.Time { return testTime }
	return s
}

func samplePeriods() []PeriodSummary {
	return []PeriodSummary{
		{
			Period: "2026-03",
			Start:  time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
			Totals: Totals{Revenue: dec("600"), Expenses: dec("540"), Net: dec("60"), TransactionCount: 3},
		},
		{
			Period: "2026-02",
			Start:  time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
			Totals: Totals{Revenue: dec("50"), Expenses: dec("45"), Net: dec("5"), TransactionCount: 1},
		},
	}
}

func TestPeriodsCSV(t *testing.T) {
	data, filename, err := fixedExport().PeriodsCSV(GranularityMonth, samplePeriods())
	require.NoError(t, err)
	assert.Equal(t, "ledger_month_report_2026-03-10.csv", filename)

	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, periodHeader, records[0])
	assert.Equal(t, []string{"2026-03", "2026-03-01", "600.00", "540.00", "60.00", "3"}, records[1])
}

func TestPeriodsXLSX(t *testing.T) {
	data, filename, err := fixedExport().PeriodsXLSX(GranularityMonth, samplePeriods())
	require.NoError(t, err)
	assert.Equal(t, "ledger_month_report_2026-03-10.xlsx", filename)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	period, err := f.GetCellValue("Ledger", "A4")
	require.NoError(t, err)
	assert.Equal(t, "2026-03", period)

	formula, err := f.GetCellFormula("Ledger", "E6")
	require.NoError(t, err)
	assert.Equal(t, "SUM(E4:E5)", formula)
}

func TestStatementPDF(t *testing.T) {
	cached := dec("12")
	statement := &DriverStatement{
		DriverID:          "drv-1",
		DriverName:        "Ana",
		DriverType:        "manual",
		RecomputedBalance: dec("-40"),
		CachedBalance:     &cached,
		Mismatch:          true,
		Warning:           "cached balance 12.00 differs from ledger -40.00",
		GeneratedAt:       testTime,
		Lines: []StatementLine{{
			TransactionID:  "t1",
			Type:           "reservation_completed",
			Date:           testTime,
			Revenue:        dec("40"),
			Effect:         dec("-40"),
			RunningBalance: dec("-40"),
		}},
	}

	data, filename, err := fixedExport().StatementPDF(statement)
	require.NoError(t, err)
	assert.Equal(t, "driver_statement_drv-1_2026-03-10.pdf", filename)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))
}
