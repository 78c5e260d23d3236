// Package comps imports comparable sale records from the appraiser's Excel
// workbook into the store.
package comps

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/shamay-group/appraisal-engine/internal/model"
)

// ImportOptions configures the workbook parser.
type ImportOptions struct {
	SheetIndex int    // default 0
	SheetName  string // if set, overrides SheetIndex
}

// Column headers of the comparable-data sheet. The workbook is the external
// contract here; headers are matched case-insensitively.
const (
	colSaleDate         = "sale_date"
	colAddress          = "address"
	colGushChelkaSub    = "gush_chelka_sub"
	colRooms            = "rooms"
	colFloor            = "floor_number"
	colAreaSqm          = "apartment_area_sqm"
	colDeclaredPrice    = "declared_price"
	colPricePerSqm      = "price_per_sqm_rounded"
	colConstructionYear = "construction_year"
)

// ImportFile reads comparable sale rows from an xlsx workbook. Rows missing
// the two fields statistics depend on (area and price per sqm) are skipped
// and counted, not fatal.
func ImportFile(path string, opts ImportOptions) ([]model.ComparableRecord, int, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, 0, eris.Wrap(err, "comps: open workbook")
	}
	return importWorkbook(f, opts)
}

// ImportBinary parses an in-memory workbook; the HTTP upload path uses it.
func ImportBinary(data []byte, opts ImportOptions) ([]model.ComparableRecord, int, error) {
	f, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, 0, eris.Wrap(err, "comps: open workbook")
	}
	return importWorkbook(f, opts)
}

func importWorkbook(f *xlsx.File, opts ImportOptions) ([]model.ComparableRecord, int, error) {
	sheet, err := getSheet(f, opts)
	if err != nil {
		return nil, 0, err
	}
	if len(sheet.Rows) < 2 {
		return nil, 0, eris.New("comps: workbook has no data rows")
	}

	cols := headerIndex(sheet.Rows[0])
	for _, required := range []string{colAreaSqm, colPricePerSqm} {
		if _, ok := cols[required]; !ok {
			return nil, 0, eris.Errorf("comps: missing required column %q", required)
		}
	}

	var records []model.ComparableRecord
	skipped := 0
	for _, row := range sheet.Rows[1:] {
		rec, ok := parseRow(row, cols)
		if !ok {
			skipped++
			continue
		}
		records = append(records, rec)
	}
	return records, skipped, nil
}

func parseRow(row *xlsx.Row, cols map[string]int) (model.ComparableRecord, bool) {
	area, areaOK := numberAt(row, cols, colAreaSqm)
	price, priceOK := numberAt(row, cols, colPricePerSqm)
	if !areaOK || !priceOK || area <= 0 || price <= 0 {
		return model.ComparableRecord{}, false
	}

	rec := model.ComparableRecord{
		SaleDate:         stringAt(row, cols, colSaleDate),
		Address:          stringAt(row, cols, colAddress),
		GushChelkaSub:    stringAt(row, cols, colGushChelkaSub),
		Floor:            stringAt(row, cols, colFloor),
		AreaSqm:          area,
		PricePerAreaUnit: price,
		Included:         true,
	}
	if rooms, ok := numberAt(row, cols, colRooms); ok {
		rec.Rooms = rooms
	}
	if total, ok := numberAt(row, cols, colDeclaredPrice); ok {
		rec.TotalPrice = total
	}
	if year, ok := numberAt(row, cols, colConstructionYear); ok {
		rec.ConstructionYear = int(year)
	}
	return rec, true
}

func getSheet(f *xlsx.File, opts ImportOptions) (*xlsx.Sheet, error) {
	if opts.SheetName != "" {
		sheet, ok := f.Sheet[opts.SheetName]
		if !ok {
			return nil, eris.Errorf("comps: sheet %q not found", opts.SheetName)
		}
		return sheet, nil
	}
	if opts.SheetIndex >= len(f.Sheets) {
		return nil, eris.Errorf("comps: sheet index %d out of range (file has %d sheets)", opts.SheetIndex, len(f.Sheets))
	}
	return f.Sheets[opts.SheetIndex], nil
}

func headerIndex(row *xlsx.Row) map[string]int {
	cols := make(map[string]int, len(row.Cells))
	for i, cell := range row.Cells {
		name := strings.ToLower(strings.TrimSpace(cell.String()))
		if name != "" {
			cols[name] = i
		}
	}
	return cols
}

func stringAt(row *xlsx.Row, cols map[string]int, name string) string {
	i, ok := cols[name]
	if !ok || i >= len(row.Cells) {
		return ""
	}
	return strings.TrimSpace(row.Cells[i].String())
}

func numberAt(row *xlsx.Row, cols map[string]int, name string) (float64, bool) {
	s := stringAt(row, cols, name)
	if s == "" {
		return 0, false
	}
	s = strings.ReplaceAll(s, ",", "")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
