package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shamay-group/appraisal-engine/internal/model"
)

func field(value any, low bool) model.FieldValue {
	return model.FieldValue{
		Value:  value,
		Source: model.Provenance{Origin: model.OriginPattern, DocumentID: "doc", LowConfidence: low},
	}
}

func TestValidate_AllMandatoryPresent(t *testing.T) {
	fields := model.FieldSet{Scalars: map[string]model.FieldValue{
		"permit_number":   field("2021/0455", false),
		"permit_date":     field("2021-06-07", false),
		"permitted_usage": field("מגורים", false),
	}}

	res := Validate(model.TypePermit, fields)
	assert.True(t, res.Valid)
	assert.Empty(t, res.Missing)
	assert.Empty(t, res.Warnings)
	assert.Empty(t, res.BlockingIssues)
}

func TestValidate_MissingFieldBlocks(t *testing.T) {
	fields := model.FieldSet{Scalars: map[string]model.FieldValue{
		"permit_number":   field("2021/0455", false),
		"permitted_usage": field("מגורים", false),
	}}

	res := Validate(model.TypePermit, fields)
	assert.False(t, res.Valid)
	assert.Equal(t, []string{"permit_date"}, res.Missing)
	require.Len(t, res.BlockingIssues, 1)
	assert.Equal(t, "permit_date", res.BlockingIssues[0].FieldID)
	assert.Equal(t, SeverityBlocking, res.BlockingIssues[0].Level)
}

func TestValidate_UnresolvedFieldIsMissing(t *testing.T) {
	fields := model.FieldSet{Scalars: map[string]model.FieldValue{
		"permit_number":   field(nil, true),
		"permit_date":     field("2021-06-07", false),
		"permitted_usage": field("מגורים", false),
	}}

	res := Validate(model.TypePermit, fields)
	assert.False(t, res.Valid)
	assert.Contains(t, res.Missing, "permit_number")
}

// A present value extracted with low confidence yields a warning without
// affecting validity; unresolved low-confidence fields yield both a blocking
// issue and a warning.
func TestValidate_LowConfidenceOrthogonalToMissing(t *testing.T) {
	fields := model.FieldSet{Scalars: map[string]model.FieldValue{
		"permit_number":   field("2021/0455", true),
		"permit_date":     field(nil, true),
		"permitted_usage": field("מגורים", false),
	}}

	res := Validate(model.TypePermit, fields)
	assert.False(t, res.Valid)
	assert.Equal(t, []string{"permit_date"}, res.Missing)
	assert.ElementsMatch(t, []string{"permit_number", "permit_date"}, res.Warnings)
}

func TestValidate_NonMandatoryFieldsIgnored(t *testing.T) {
	fields := model.FieldSet{Scalars: map[string]model.FieldValue{
		"permit_number":     field("2021/0455", false),
		"permit_date":       field("2021-06-07", false),
		"permitted_usage":   field("מגורים", false),
		"permit_issue_date": field(nil, true),
		"local_committee":   field("רמת גן", true),
	}}

	res := Validate(model.TypePermit, fields)
	assert.True(t, res.Valid)
	assert.Empty(t, res.Warnings)
}

func TestMandatoryFields_DefinedPerType(t *testing.T) {
	for _, typ := range model.KnownExtractionTypes {
		assert.NotEmpty(t, MandatoryFields(typ), "type %s", typ)
	}
	assert.Empty(t, MandatoryFields(model.ExtractionType("bogus")))
}
