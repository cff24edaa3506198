package codec

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

const pdfCellMaxChars = 28

// EncodePDF renders the table as a paginated grid. Wide selections flip
// the page to landscape; long cells are truncated.
func EncodePDF(t Table, title string) ([]byte, error) {
	orientation := "P"
	if len(t.Fields) > 6 {
		orientation = "L"
	}
	pdf := gofpdf.New(orientation, "mm", "A4", "")
	pdf.SetAutoPageBreak(true, 12)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 8, title, "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 8)
	pdf.CellFormat(0, 5, fmt.Sprintf("Generated %s, %d records",
		time.Now().UTC().Format("2006-01-02 15:04 UTC"), len(t.Records)), "", 1, "L", false, 0, "")
	pdf.Ln(2)

	pageW, _ := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()
	usable := pageW - left - right
	colW := usable / float64(len(t.Fields))

	writeHeader := func() {
		pdf.SetFont("Helvetica", "B", 7)
		pdf.SetFillColor(230, 230, 230)
		for _, field := range t.Fields {
			pdf.CellFormat(colW, 6, truncateCell(FieldLabel(field)), "1", 0, "L", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Helvetica", "", 7)
	}
	writeHeader()

	_, pageH := pdf.GetPageSize()
	for _, rec := range t.Records {
		if pdf.GetY() > pageH-18 {
			pdf.AddPage()
			writeHeader()
		}
		for _, field := range t.Fields {
			pdf.CellFormat(colW, 5, truncateCell(FormatCell(rec[field])), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// truncateCell keeps cells inside the column width. The marker is plain
// ASCII because the resident fonts encode cp1252, not UTF-8.
func truncateCell(s string) string {
	runes := []rune(s)
	if len(runes) <= pdfCellMaxChars {
		return s
	}
	return string(runes[:pdfCellMaxChars-3]) + "..."
}
