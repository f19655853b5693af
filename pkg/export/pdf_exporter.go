package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

const (
	pageWidth    = 190.0
	numericShare = 0.5
	rowHeight    = 7.0
)

// PDFExporter renders datasets into a tabular A4 PDF. Text is translated to
// cp1252 for the core fonts.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render lays out a title block and a bordered table that repeats its header on
// every page.
func (e *PDFExporter) Render(data Dataset, title string) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("pdf requires at least one header")
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AliasNbPages("")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	widths := columnWidths(data)

	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Arial", "I", 8)
		pdf.CellFormat(0, 8, fmt.Sprintf("%d/{nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	if title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, tr(strings.ToUpper(title)), "", 1, "C", false, 0, "")
		if data.Subtitle != "" {
			pdf.SetFont("Arial", "", 10)
			pdf.CellFormat(0, 6, tr(data.Subtitle), "", 1, "C", false, 0, "")
		}
		pdf.Ln(5)
	}

	header := func() {
		pdf.SetFont("Arial", "B", 10)
		pdf.SetFillColor(230, 230, 230)
		for i, h := range data.Headers {
			pdf.CellFormat(widths[i], 8, tr(h), "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 9)
	}
	header()

	_, pageHeight := pdf.GetPageSize()
	_, _, _, bottom := pdf.GetMargins()
	for _, row := range data.Rows {
		if pdf.GetY()+rowHeight > pageHeight-bottom {
			pdf.AddPage()
			header()
		}
		for i, h := range data.Headers {
			align := "L"
			if data.Numeric[h] {
				align = "R"
			}
			pdf.CellFormat(widths[i], rowHeight, tr(row[h]), "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// columnWidths gives numeric columns half the width of text columns.
func columnWidths(data Dataset) []float64 {
	units := 0.0
	for _, h := range data.Headers {
		if data.Numeric[h] {
			units += numericShare
		} else {
			units++
		}
	}
	widths := make([]float64, len(data.Headers))
	for i, h := range data.Headers {
		share := 1.0
		if data.Numeric[h] {
			share = numericShare
		}
		widths[i] = pageWidth * share / units
	}
	return widths
}
