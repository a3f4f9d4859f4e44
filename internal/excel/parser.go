package excel

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Row is one parsed upload line. Site and Date are mandatory; rows missing
// either are skipped, not rejected. InvGen and AbtExport stay nil when the
// sheet does not carry them so the service can auto-calculate.
type Row struct {
	Site      string
	Date      string
	POA       float64
	InvGen    *float64
	AbtExport *float64
	Status    string
}

// Header aliases accepted in uploaded sheets, matched case-insensitively.
var (
	siteHeaders      = []string{"site"}
	dateHeaders      = []string{"date"}
	poaHeaders       = []string{"poa (kwh/m²)", "poa"}
	statusHeaders    = []string{"status"}
	invGenHeaders    = []string{"inv gen (kwh)", "invgen"}
	abtExportHeaders = []string{"abt export (kwh)", "abtexport"}
)

type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

// Parse reads the first sheet of an xlsx workbook into upload rows.
func (p *Parser) Parse(content []byte) ([]Row, error) {
	file, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer file.Close()

	sheets := file.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	rows, err := file.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("file is empty")
	}

	header := indexHeader(rows[0])
	parsed := make([]Row, 0, len(rows)-1)
	for _, cells := range rows[1:] {
		site := cellValue(cells, header, siteHeaders)
		date := cellValue(cells, header, dateHeaders)
		if site == "" || date == "" {
			continue
		}

		row := Row{
			Site:   site,
			Date:   date,
			Status: cellValue(cells, header, statusHeaders),
		}
		if poa, ok := cellFloat(cells, header, poaHeaders); ok {
			row.POA = poa
		}
		if invGen, ok := cellFloat(cells, header, invGenHeaders); ok {
			row.InvGen = &invGen
		}
		if abtExport, ok := cellFloat(cells, header, abtExportHeaders); ok {
			row.AbtExport = &abtExport
		}
		parsed = append(parsed, row)
	}
	return parsed, nil
}

func indexHeader(cells []string) map[string]int {
	index := make(map[string]int, len(cells))
	for i, cell := range cells {
		key := strings.ToLower(strings.TrimSpace(cell))
		if key != "" {
			index[key] = i
		}
	}
	return index
}

func cellValue(cells []string, header map[string]int, aliases []string) string {
	for _, alias := range aliases {
		if i, ok := header[alias]; ok && i < len(cells) {
			return strings.TrimSpace(cells[i])
		}
	}
	return ""
}

func cellFloat(cells []string, header map[string]int, aliases []string) (float64, bool) {
	raw := cellValue(cells, header, aliases)
	if raw == "" {
		return 0, false
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}
