package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shamay-group/appraisal-engine/internal/model"
)

const sampleLandRegistry = `נסח רישום מקרקעין
לשכת רישום מקרקעין: פתח תקווה
תאריך הפקה: 15.3.2024
גוש: 6158
חלקה: 224
שטח החלקה במ"ר: 1,250
תת חלקה: 12
שטח רשום במ"ר: 85.5
שטח מרפסת: 12
קומה: 3
תקנון: מוסכם
בעלויות
ישראל ישראלי ת"ז 012345678 חלק בנכס: בשלמות
משכנתאות
לטובת בנק לאומי ע"ס 1,200,000
הערות
הערה לפי סעיף 126 לטובת בנק לאומי`

func TestExtract_LandRegistry(t *testing.T) {
	m, err := ManifestFor(model.TypeLandRegistry)
	require.NoError(t, err)

	fs := Extract(Document{ID: "tabu-6158-224.pdf", Text: sampleLandRegistry}, m)

	want := map[string]any{
		"registrar_office":          "פתח תקווה",
		"issue_date":                "2024-03-15",
		"block_number":              float64(6158),
		"parcel_number":             float64(224),
		"parcel_area":               float64(1250),
		"subparcel_number":          float64(12),
		"subparcel_registered_area": 85.5,
		"balcony_area":              float64(12),
		"floor":                     "3",
		"regulation_type":           "מוסכם",
	}
	for field, value := range want {
		fv, ok := fs.Scalars[field]
		require.True(t, ok, "field %s missing from result", field)
		require.True(t, fv.Resolved(), "field %s unresolved", field)
		assert.Equal(t, value, fv.Value, "field %s", field)
		assert.Equal(t, "tabu-6158-224.pdf", fv.Source.DocumentID)
		assert.False(t, fv.Source.LowConfidence)
	}

	require.Len(t, fs.Sections[SectionOwnerships], 1)
	assert.Equal(t, "ישראל ישראלי", fs.Sections[SectionOwnerships][0].Values["name"])
	require.Len(t, fs.Sections[SectionMortgages], 1)
	assert.Equal(t, "בנק לאומי", fs.Sections[SectionMortgages][0].Values["beneficiary"])
	require.Len(t, fs.Sections[SectionNotes], 1)
}

// parcel_number must not match inside "תת חלקה" when the plain parcel line
// is absent.
func TestExtract_ParcelNumberNotFromSubParcel(t *testing.T) {
	m, err := ManifestFor(model.TypeLandRegistry)
	require.NoError(t, err)

	fs := Extract(Document{ID: "d", Text: "גוש: 6158\nתת חלקה: 12"}, m)

	assert.False(t, fs.Scalars["parcel_number"].Resolved())
	require.True(t, fs.Scalars["subparcel_number"].Resolved())
	assert.Equal(t, float64(12), fs.Scalars["subparcel_number"].Value)
}

func TestExtract_EmptyDocument(t *testing.T) {
	m, err := ManifestFor(model.TypeLandRegistry)
	require.NoError(t, err)

	fs := Extract(Document{ID: "empty", Text: ""}, m)

	assert.Len(t, fs.Scalars, len(m.Fields))
	for field, fv := range fs.Scalars {
		assert.False(t, fv.Resolved(), "field %s", field)
		assert.True(t, fv.Source.LowConfidence, "field %s", field)
	}
	assert.Empty(t, fs.Sections)
}

func TestExtract_Permit(t *testing.T) {
	m, err := ManifestFor(model.TypePermit)
	require.NoError(t, err)

	text := `ועדה מקומית לתכנון ולבנייה: רמת גן
היתר בנייה מספר: 2021/0455
תאריך ההיתר: 7/6/21
שימוש מותר: מגורים`
	fs := Extract(Document{ID: "permit.pdf", Text: text}, m)

	assert.Equal(t, "2021/0455", fs.Scalars["permit_number"].Value)
	assert.Equal(t, "2021-06-07", fs.Scalars["permit_date"].Value)
	assert.Equal(t, "מגורים", fs.Scalars["permitted_usage"].Value)
	assert.Equal(t, "רמת גן", fs.Scalars["local_committee"].Value)
	assert.False(t, fs.Scalars["permit_issue_date"].Resolved())
}

func TestExtract_SharedBuilding(t *testing.T) {
	m, err := ManifestFor(model.TypeSharedBuilding)
	require.NoError(t, err)

	text := `צו רישום בית משותף
תאריך צו: 2.11.1998
תיאור הבניין: בניין מגורים בן 4 קומות
מספר קומות: 4
מספר תתי חלקות: 16
כתובת הבניין: רחוב הרצל 10, תל אביב`
	fs := Extract(Document{ID: "order.pdf", Text: text}, m)

	assert.Equal(t, "1998-11-02", fs.Scalars["order_issue_date"].Value)
	assert.Equal(t, float64(4), fs.Scalars["building_floors"].Value)
	assert.Equal(t, float64(16), fs.Scalars["sub_plots_count"].Value)
	assert.Equal(t, "רחוב הרצל 10, תל אביב", fs.Scalars["building_address"].Value)
}
