package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractionTypeValid(t *testing.T) {
	for _, typ := range KnownExtractionTypes {
		assert.True(t, typ.Valid(), "type %s", typ)
	}
	assert.False(t, ExtractionType("tax_form").Valid())
	assert.False(t, ExtractionType("").Valid())
}

func TestFieldValueResolved(t *testing.T) {
	assert.False(t, FieldValue{}.Resolved())
	assert.True(t, FieldValue{Value: "x"}.Resolved())
	assert.True(t, FieldValue{Value: float64(0)}.Resolved())
}

// The JSON field names are the wire contract with the report editor; a
// rename here breaks stored extractions.
func TestFieldValueJSONShape(t *testing.T) {
	fv := FieldValue{
		Value: "2021/0455",
		Source: Provenance{
			Origin:     OriginPattern,
			DocumentID: "permit.pdf",
			Page:       2,
		},
	}

	data, err := json.Marshal(fv)
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"value":"2021/0455","source":{"source":"pattern","file_id":"permit.pdf","page":2,"low_confidence":false}}`,
		string(data))
}

func TestFieldSetJSONRoundTrip(t *testing.T) {
	fs := FieldSet{
		Scalars: map[string]FieldValue{
			"block_number": {Value: float64(6158), Source: Provenance{Origin: OriginPattern, DocumentID: "d", Page: 1}},
		},
		Sections: map[string][]SectionRecord{
			"ownerships": {{
				Values: map[string]string{"name": "ישראל ישראלי", "id_number": "012345678"},
				Source: Provenance{Origin: OriginPattern, DocumentID: "d", Page: 1, LowConfidence: true},
			}},
		},
	}

	data, err := json.Marshal(fs)
	require.NoError(t, err)

	var got FieldSet
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, fs, got)
}
