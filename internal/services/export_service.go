package services

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"
)

// ExportService renders reports as files
type ExportService struct {
	now func() time.Time
}

func NewExportService() *ExportService {
	return &ExportService{now: time.Now}
}

var periodHeader = []string{"Period", "Start", "Revenue", "Expenses", "Net", "Transactions"}

// PeriodsCSV renders period summaries as CSV
func (s *ExportService) PeriodsCSV(granularity string, periods []PeriodSummary) ([]byte, string, error) {
	buf := new(bytes.Buffer)
	writer := csv.NewWriter(buf)

	if err := writer.Write(periodHeader); err != nil {
		return nil, "", err
	}
	for _, p := range periods {
		record := []string{
			p.Period,
			p.Start.Format("2006-01-02"),
			p.Revenue.StringFixed(2),
			p.Expenses.StringFixed(2),
			p.Net.StringFixed(2),
			fmt.Sprintf("%d", p.TransactionCount),
		}
		if err := writer.Write(record); err != nil {
			return nil, "", err
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, "", err
	}

	filename := fmt.Sprintf("ledger_%s_report_%s.csv", granularity, s.now().Format("2006-01-02"))
	return buf.Bytes(), filename, nil
}

// PeriodsXLSX renders period summaries as a spreadsheet with a totals row
func (s *ExportService) PeriodsXLSX(granularity string, periods []PeriodSummary) ([]byte, string, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Ledger"
	_ = f.SetSheetName("Sheet1", sheet)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
	})
	moneyStyle, _ := f.NewStyle(&excelize.Style{NumFmt: 4})

	_ = f.SetCellValue(sheet, "A1", fmt.Sprintf("Ledger report by %s", granularity))
	for i, title := range periodHeader {
		cell, _ := excelize.CoordinatesToCellName(i+1, 3)
		_ = f.SetCellValue(sheet, cell, title)
	}
	_ = f.SetCellStyle(sheet, "A3", "F3", headerStyle)

	row := 4
	for _, p := range periods {
		revenue, _ := p.Revenue.Float64()
		expenses, _ := p.Expenses.Float64()
		net, _ := p.Net.Float64()
		values := []interface{}{p.Period, p.Start.Format("2006-01-02"), revenue, expenses, net, p.TransactionCount}
		for i, v := range values {
			cell, _ := excelize.CoordinatesToCellName(i+1, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
		row++
	}

	if len(periods) > 0 {
		last := row - 1
		_ = f.SetCellValue(sheet, fmt.Sprintf("A%d", row), "Total")
		for _, col := range []string{"C", "D", "E", "F"} {
			_ = f.SetCellFormula(sheet, fmt.Sprintf("%s%d", col, row), fmt.Sprintf("SUM(%s4:%s%d)", col, col, last))
		}
		_ = f.SetCellStyle(sheet, "C4", fmt.Sprintf("E%d", row), moneyStyle)
		_ = f.SetCellStyle(sheet, fmt.Sprintf("A%d", row), fmt.Sprintf("F%d", row), headerStyle)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", err
	}

	filename := fmt.Sprintf("ledger_%s_report_%s.xlsx", granularity, s.now().Format("2006-01-02"))
	return buf.Bytes(), filename, nil
}

// StatementPDF renders a driver statement
func (s *ExportService) StatementPDF(statement *DriverStatement) ([]byte, string, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(40, 10, "Driver Statement")
	pdf.Ln(12)

	pdf.SetFont("Arial", "", 10)
	pdf.Cell(40, 6, "Driver:")
	pdf.Cell(80, 6, fmt.Sprintf("%s (%s)", statement.DriverName, statement.DriverType))
	pdf.Ln(6)
	pdf.Cell(40, 6, "Generated:")
	pdf.Cell(80, 6, statement.GeneratedAt.Format("2006-01-02 15:04"))
	pdf.Ln(10)

	widths := []float64{26, 38, 26, 26, 26, 30}
	pdf.SetFont("Arial", "B", 9)
	for i, title := range []string{"Date", "Type", "Revenue", "Expense", "Effect", "Balance"} {
		pdf.CellFormat(widths[i], 7, title, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	for _, line := range statement.Lines {
		cells := []string{
			line.Date.Format("2006-01-02"),
			line.Type,
			line.Revenue.StringFixed(2),
			line.Expense.StringFixed(2),
			line.Effect.StringFixed(2),
			line.RunningBalance.StringFixed(2),
		}
		for i, text := range cells {
			align := "R"
			if i < 2 {
				align = "L"
			}
			pdf.CellFormat(widths[i], 6, text, "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	pdf.Ln(4)
	pdf.SetFont("Arial", "B", 10)
	pdf.Cell(60, 6, "Ledger balance:")
	pdf.Cell(40, 6, statement.RecomputedBalance.StringFixed(2))
	pdf.Ln(6)
	if statement.Mismatch {
		pdf.SetTextColor(200, 0, 0)
		pdf.MultiCell(0, 6, statement.Warning, "", "L", false)
		pdf.SetTextColor(0, 0, 0)
	}

	buf := new(bytes.Buffer)
	if err := pdf.Output(buf); err != nil {
		return nil, "", err
	}

	filename := fmt.Sprintf("driver_statement_%s_%s.pdf", statement.DriverID, s.now().Format("2006-01-02"))
	return buf.Bytes(), filename, nil
}
