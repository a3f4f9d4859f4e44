package excel

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/helioserv/solarops-submissions/internal/dateutil"
	"github.com/helioserv/solarops-submissions/internal/model"
)

type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

// Generate renders submissions into a workbook: a summary sheet with status
// counts plus a detail sheet with one row per submission.
func (g *Generator) Generate(submissions []model.Submission) ([]byte, error) {
	file := excelize.NewFile()

	summarySheet := "Summary"
	file.SetSheetName("Sheet1", summarySheet)
	if err := g.writeSummary(file, summarySheet, submissions); err != nil {
		return nil, err
	}

	detailSheet := "Submissions"
	if _, err := file.NewSheet(detailSheet); err != nil {
		return nil, err
	}
	if err := g.writeDetail(file, detailSheet, submissions); err != nil {
		return nil, err
	}

	file.SetActiveSheet(0)
	buf, err := file.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (g *Generator) writeSummary(file *excelize.File, sheet string, submissions []model.Submission) error {
	counts := map[model.SubmissionStatus]int{}
	var totalInvGen, totalAbtExport float64
	for _, sub := range submissions {
		counts[sub.Status]++
		totalInvGen += sub.InvGen
		totalAbtExport += sub.AbtExport
	}

	set := func(cell string, value interface{}) {
		_ = file.SetCellValue(sheet, cell, value)
	}

	set("A1", "Total submissions")
	set("B1", len(submissions))
	set("A2", "Total inverter generation, kWh")
	set("B2", fmt.Sprintf("%.2f", totalInvGen))
	set("A3", "Total ABT export, kWh")
	set("B3", fmt.Sprintf("%.2f", totalAbtExport))

	tableRow := 5
	set(fmt.Sprintf("A%d", tableRow), "Status")
	set(fmt.Sprintf("B%d", tableRow), "Count")

	statuses := []model.SubmissionStatus{
		model.StatusDraft,
		model.StatusSitePublish,
		model.StatusSendToHQ,
		model.StatusHQApproved,
		model.StatusSiteHold,
	}
	for i, status := range statuses {
		row := tableRow + 1 + i
		set(fmt.Sprintf("A%d", row), string(status))
		set(fmt.Sprintf("B%d", row), counts[status])
	}

	_ = file.SetColWidth(sheet, "A", "A", 36)
	_ = file.SetColWidth(sheet, "B", "B", 16)
	return nil
}

func (g *Generator) writeDetail(file *excelize.File, sheet string, submissions []model.Submission) error {
	set := func(cell string, value interface{}) {
		_ = file.SetCellValue(sheet, cell, value)
	}

	headers := []string{
		"Site",
		"Date",
		"Inv Gen (kWh)",
		"ABT Export (kWh)",
		"POA (kWh/m²)",
		"Status",
	}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		set(cell, header)
	}

	for i, sub := range submissions {
		row := i + 2
		set(fmt.Sprintf("A%d", row), sub.Site)
		set(fmt.Sprintf("B%d", row), dateutil.FormatDDMMYYYY(sub.Date))
		set(fmt.Sprintf("C%d", row), fmt.Sprintf("%.2f", sub.InvGen))
		set(fmt.Sprintf("D%d", row), fmt.Sprintf("%.2f", sub.AbtExport))
		set(fmt.Sprintf("E%d", row), fmt.Sprintf("%.2f", sub.POA))
		set(fmt.Sprintf("F%d", row), string(sub.Status))
	}

	_ = file.SetColWidth(sheet, "A", "A", 28)
	_ = file.SetColWidth(sheet, "B", "B", 14)
	_ = file.SetColWidth(sheet, "C", "E", 18)
	_ = file.SetColWidth(sheet, "F", "F", 22)
	return nil
}
