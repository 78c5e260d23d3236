package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanSection_OwnershipBlock(t *testing.T) {
	spec := landRegistryManifest.Sections[SectionOwnerships]
	lines := []string{
		"נסח רישום מקרקעין",
		"בעלויות",
		`ישראל ישראלי ת"ז 012345678 חלק בנכס: 1/2`,
		`שרה כהן ת"ז 087654321 חלק בנכס: 1/2`,
		"משכנתאות",
		`לטובת בנק לאומי ע"ס 1,200,000`,
	}

	recs := ScanSection(lines, spec, testProv, 50)
	require.Len(t, recs, 2)

	assert.Equal(t, "ישראל ישראלי", recs[0].Values["name"])
	assert.Equal(t, "012345678", recs[0].Values["id_number"])
	assert.Equal(t, "1/2", recs[0].Values["share"])
	assert.False(t, recs[0].Source.LowConfidence)
	assert.Equal(t, "doc-1", recs[0].Source.DocumentID)
	assert.Equal(t, 1, recs[0].Source.Page)

	assert.Equal(t, "שרה כהן", recs[1].Values["name"])
}

func TestScanSection_MissingOptionalCaptureIsLowConfidence(t *testing.T) {
	spec := landRegistryManifest.Sections[SectionOwnerships]
	lines := []string{
		"בעלויות",
		`דוד לוי ת"ז 034567890`,
		"הערות",
	}

	recs := ScanSection(lines, spec, testProv, 50)
	require.Len(t, recs, 1)
	assert.Equal(t, "דוד לוי", recs[0].Values["name"])
	_, hasShare := recs[0].Values["share"]
	assert.False(t, hasShare)
	assert.True(t, recs[0].Source.LowConfidence)
}

func TestScanSection_NoStartMarker(t *testing.T) {
	spec := landRegistryManifest.Sections[SectionOwnerships]
	lines := []string{
		`ישראל ישראלי ת"ז 012345678 חלק בנכס: 1/2`,
	}

	recs := ScanSection(lines, spec, testProv, 50)
	assert.Empty(t, recs)
}

func TestScanSection_SkipsNonMatchingLines(t *testing.T) {
	spec := landRegistryManifest.Sections[SectionMortgages]
	lines := []string{
		"משכנתאות",
		"",
		"--- עמוד 2 ---",
		`לטובת בנק הפועלים ע"ס 950,000`,
		"הערות",
		"הערה כלשהי",
	}

	recs := ScanSection(lines, spec, testProv, 50)
	require.Len(t, recs, 1)
	assert.Equal(t, "בנק הפועלים", recs[0].Values["beneficiary"])
	assert.Equal(t, "950,000", recs[0].Values["amount"])
}

func TestScanSection_RunsToEndOfDocument(t *testing.T) {
	spec := landRegistryManifest.Sections[SectionNotes]
	lines := []string{
		"הערות",
		"הערה לפי סעיף 126 לטובת צד ג",
		"הערה נוספת על הנכס",
	}

	recs := ScanSection(lines, spec, testProv, 50)
	assert.Len(t, recs, 2)
}

func TestScanSection_PageEstimate(t *testing.T) {
	spec := landRegistryManifest.Sections[SectionOwnerships]
	lines := make([]string, 0, 62)
	for i := 0; i < 59; i++ {
		lines = append(lines, "שורת רקע")
	}
	lines = append(lines, "בעלויות")
	lines = append(lines, `ישראל ישראלי ת"ז 012345678 חלק בנכס: בשלמות`)

	recs := ScanSection(lines, spec, testProv, 50)
	require.Len(t, recs, 1)
	assert.Equal(t, 2, recs[0].Source.Page)
	assert.Equal(t, "בשלמות", recs[0].Values["share"])
}
