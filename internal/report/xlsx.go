package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"

	"invoicer/internal/domain"
)

const sheetName = "Results"

// WriteXLSX writes a workbook with one row per result of sess.
func WriteXLSX(out io.Writer, sess *domain.Session) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("renaming sheet: %w", err)
	}

	for i, h := range columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheetName, cell, h)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		last, _ := excelize.CoordinatesToCellName(len(columns), 1)
		_ = f.SetCellStyle(sheetName, "A1", last, bold)
	}

	for i := range sess.Results {
		row := resultToRow(&sess.Results[i])
		for col, v := range row {
			cell, _ := excelize.CoordinatesToCellName(col+1, i+2)
			_ = f.SetCellValue(sheetName, cell, cellValue(col, v))
		}
	}

	_ = f.SetColWidth(sheetName, "A", "A", 32)
	_ = f.SetColWidth(sheetName, "C", "C", 40)
	_ = f.SetColWidth(sheetName, "D", "D", 12)
	_ = f.SetColWidth(sheetName, "E", "F", 28)
	_ = f.SetColWidth(sheetName, "I", "I", 20)
	_ = f.SetColWidth(sheetName, "J", "J", 80)

	if _, err := f.WriteTo(out); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	return nil
}

// cellValue stores the numeric columns as numbers.
func cellValue(col int, v string) any {
	switch col {
	case 6:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	case 7:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return v
}

// Write encodes sess in format.
func Write(out io.Writer, format domain.ReportFormat, sess *domain.Session) error {
	switch format {
	case domain.ReportFormatCSV:
		return WriteCSV(out, sess)
	case domain.ReportFormatXLSX:
		return WriteXLSX(out, sess)
	}
	return fmt.Errorf("%w: %q", domain.ErrUnsupportedReport, format)
}

// ContentType returns the MIME type of format.
func ContentType(format domain.ReportFormat) string {
	if format == domain.ReportFormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// ParseFormat maps a query value to a format; empty selects CSV.
func ParseFormat(s string) (domain.ReportFormat, error) {
	switch domain.ReportFormat(s) {
	case "", domain.ReportFormatCSV:
		return domain.ReportFormatCSV, nil
	case domain.ReportFormatXLSX:
		return domain.ReportFormatXLSX, nil
	}
	return "", fmt.Errorf("%w: %q", domain.ErrUnsupportedReport, s)
}
