package pdf

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/helioserv/solarops-submissions/internal/dateutil"
	"github.com/helioserv/solarops-submissions/internal/model"
)

type Generator struct {
	fontName string
}

func NewGenerator() *Generator {
	return &Generator{fontName: "Helvetica"}
}

// Generate renders the submissions report: header block with totals, then
// one table row per submission.
func (g *Generator) Generate(submissions []model.Submission, generatedAt time.Time) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	pdf.SetFont(g.fontName, "B", 14)
	pdf.CellFormat(0, 10, "Solar Plant Submissions Report", "", 1, "C", false, 0, "")

	pdf.SetFont(g.fontName, "", 11)
	pdf.CellFormat(0, 6, fmt.Sprintf("Generated %s", generatedAt.UTC().Format("2006-01-02 15:04 MST")), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	var totalInvGen, totalAbtExport float64
	for _, sub := range submissions {
		totalInvGen += sub.InvGen
		totalAbtExport += sub.AbtExport
	}

	pdf.SetFont(g.fontName, "B", 12)
	pdf.CellFormat(0, 8, "Totals", "", 1, "L", false, 0, "")
	pdf.SetFont(g.fontName, "", 11)
	pdf.CellFormat(0, 6, fmt.Sprintf("Submissions: %d", len(submissions)), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Inverter generation: %.2f kWh", totalInvGen), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("ABT export: %.2f kWh", totalAbtExport), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	headers := []string{"Site", "Date", "Inv Gen (kWh)", "ABT Export (kWh)", "POA (kWh/m2)", "Status"}
	colWidths := []float64{70, 30, 40, 40, 40, 47}
	drawTableRow(pdf, g.fontName, headers, colWidths, true)

	for _, sub := range submissions {
		row := []string{
			sub.Site,
			dateutil.FormatDDMMYYYY(sub.Date),
			fmt.Sprintf("%.2f", sub.InvGen),
			fmt.Sprintf("%.2f", sub.AbtExport),
			fmt.Sprintf("%.2f", sub.POA),
			string(sub.Status),
		}
		drawTableRow(pdf, g.fontName, row, colWidths, false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func drawTableRow(pdf *gofpdf.Fpdf, fontName string, cols []string, widths []float64, header bool) {
	style := ""
	if header {
		style = "B"
	}
	pdf.SetFont(fontName, style, 10)
	for i, col := range cols {
		align := "L"
		if i > 1 {
			align = "R"
		}
		pdf.CellFormat(widths[i], 8, col, "1", 0, align, false, 0, "")
	}
	pdf.Ln(-1)
}
