// Package export renders an account statement as a PDF or XLSX document.
package export

import (
	"fmt"
	"io"
	"strconv"

	"nobugs-bank/models"

	"github.com/jung-kurt/gofpdf"
	"github.com/tealeg/xlsx"
)

type Format string

const (
	FormatPDF  Format = "pdf"
	FormatXLSX Format = "xlsx"
)

// ContentType is the response media type of f.
func (f Format) ContentType() string {
	switch f {
	case FormatPDF:
		return "application/pdf"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "application/octet-stream"
}

func ParseFormat(raw string) (Format, error) {
	switch f := Format(raw); f {
	case FormatPDF, FormatXLSX:
		return f, nil
	}
	return "", fmt.Errorf("export: unsupported format %q", raw)
}

var header = []string{"Account", "ID", "Type", "Amount", "Date", "Related Account"}

func cells(row models.StatementRow) []string {
	related := ""
	if row.RelatedAccountID != 0 {
		related = strconv.FormatInt(row.RelatedAccountID, 10)
	}
	return []string{
		row.AccountNumber,
		strconv.FormatInt(row.TransactionID, 10),
		string(row.Type),
		row.Amount.StringFixed(2),
		row.Date,
		related,
	}
}

// Write renders rows in format f to w.
func Write(w io.Writer, f Format, title string, rows []models.StatementRow) error {
	switch f {
	case FormatPDF:
		return WritePDF(w, title, rows)
	case FormatXLSX:
		return WriteXLSX(w, rows)
	}
	return fmt.Errorf("export: unsupported format %q", f)
}

var pdfWidths = []float64{30, 20, 35, 30, 45, 30}

func WritePDF(w io.Writer, title string, rows []models.StatementRow) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(40, 10, title)
	pdf.Ln(10)

	pdf.SetFont("Arial", "B", 12)
	for i, h := range header {
		pdf.Cell(pdfWidths[i], 7, h)
	}
	pdf.Ln(7)

	pdf.SetFont("Arial", "", 11)
	for _, row := range rows {
		for i, v := range cells(row) {
			pdf.CellFormat(pdfWidths[i], 7, v, "1", 0, "", false, 0, "")
		}
		pdf.Ln(7)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("export: pdf: %w", err)
	}
	return nil
}

func WriteXLSX(w io.Writer, rows []models.StatementRow) error {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Statement")
	if err != nil {
		return fmt.Errorf("export: xlsx: %w", err)
	}

	row := sheet.AddRow()
	for _, h := range header {
		row.AddCell().SetValue(h)
	}
	for _, r := range rows {
		row = sheet.AddRow()
		for _, v := range cells(r) {
			row.AddCell().SetValue(v)
		}
	}

	if err := file.Write(w); err != nil {
		return fmt.Errorf("export: xlsx: %w", err)
	}
	return nil
}
