package comps

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

var compsHeader = []string{
	"sale_date", "address", "gush_chelka_sub", "rooms", "floor_number",
	"apartment_area_sqm", "declared_price", "price_per_sqm_rounded", "construction_year",
}

func createTestXLSX(t *testing.T, sheets map[string][][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	for name, rows := range sheets {
		sheet, err := f.AddSheet(name)
		require.NoError(t, err)
		for _, rowData := range rows {
			row := sheet.AddRow()
			for _, cellData := range rowData {
				cell := row.AddCell()
				cell.SetString(cellData)
			}
		}
	}
	path := filepath.Join(t.TempDir(), "comps.xlsx")
	err := f.Save(path)
	require.NoError(t, err)
	return path
}

func TestImportFile_Basic(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Sheet1": {
			compsHeader,
			{"2024-01-15", "הרצל 12, תל אביב", "6158/224/12", "4", "3", "92.5", "2,400,000", "25,946", "1998"},
			{"2024-02-20", "ביאליק 3, רמת גן", "6158/230/4", "3.5", "1", "80", "1,950,000", "24,375", "2005"},
		},
	})

	records, skipped, err := ImportFile(path, ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, skipped)
	require.Len(t, records, 2)

	first := records[0]
	assert.Equal(t, "2024-01-15", first.SaleDate)
	assert.Equal(t, "הרצל 12, תל אביב", first.Address)
	assert.Equal(t, "6158/224/12", first.GushChelkaSub)
	assert.Equal(t, float64(4), first.Rooms)
	assert.Equal(t, "3", first.Floor)
	assert.Equal(t, 92.5, first.AreaSqm)
	assert.Equal(t, float64(2400000), first.TotalPrice)
	assert.Equal(t, float64(25946), first.PricePerAreaUnit)
	assert.Equal(t, 1998, first.ConstructionYear)
	assert.True(t, first.Included)
}

func TestImportFile_SkipsRowsMissingAreaOrPrice(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Sheet1": {
			compsHeader,
			{"2024-01-15", "addr", "", "", "", "92.5", "", "25000", ""},
			{"2024-02-20", "addr", "", "", "", "", "", "24000", ""},      // no area
			{"2024-03-05", "addr", "", "", "", "80", "", "", ""},         // no price
			{"2024-04-01", "addr", "", "", "", "לא ידוע", "", "25000", ""}, // unparsable area
		},
	})

	records, skipped, err := ImportFile(path, ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, skipped)
	require.Len(t, records, 1)
	assert.Equal(t, "2024-01-15", records[0].SaleDate)
}

func TestImportFile_MissingRequiredColumn(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Sheet1": {
			{"sale_date", "address", "apartment_area_sqm"},
			{"2024-01-15", "addr", "92.5"},
		},
	})

	_, _, err := ImportFile(path, ImportOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "price_per_sqm_rounded")
}

func TestImportFile_SheetName(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Summary": {{"irrelevant"}},
		"Comps": {
			compsHeader,
			{"2024-01-15", "", "", "", "", "90", "", "25000", ""},
		},
	})

	records, _, err := ImportFile(path, ImportOptions{SheetName: "Comps"})
	require.NoError(t, err)
	assert.Len(t, records, 1)

	_, _, err = ImportFile(path, ImportOptions{SheetName: "Missing"})
	require.Error(t, err)
}

func TestImportFile_NoDataRows(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Sheet1": {compsHeader},
	})

	_, _, err := ImportFile(path, ImportOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no data rows")
}

func TestImportFile_HeaderCaseInsensitive(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Sheet1": {
			{"Sale_Date", "APARTMENT_AREA_SQM", "Price_Per_Sqm_Rounded"},
			{"2024-01-15", "90", "25000"},
		},
	})

	records, _, err := ImportFile(path, ImportOptions{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, float64(90), records[0].AreaSqm)
}

func TestImportBinary(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Sheet1": {
			compsHeader,
			{"2024-01-15", "", "", "", "", "90", "", "25000", ""},
		},
	})
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	records, skipped, err := ImportBinary(data, ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, skipped)
	assert.Len(t, records, 1)
}
