// Package validate checks a completed extraction against the mandatory-field
// manifest for its document type. Validation failures are results, not
// errors: the caller renders partial progress from them.
package validate

import (
	"fmt"

	"github.com/shamay-group/appraisal-engine/internal/model"
)

// Severity distinguishes issues that block report generation from advisory
// ones.
type Severity string

const (
	SeverityBlocking Severity = "blocking"
	SeverityWarning  Severity = "warning"
)

// Issue is one validation finding for a single field.
type Issue struct {
	FieldID string   `json:"field_id"`
	Message string   `json:"message"`
	Level   Severity `json:"level"`
}

// Result is the structured validation output. Valid is true iff no mandatory
// field is missing; warnings never affect validity.
type Result struct {
	Valid          bool     `json:"valid"`
	Missing        []string `json:"missing"`
	Warnings       []string `json:"warnings"`
	BlockingIssues []Issue  `json:"blocking_issues"`
	WarningIssues  []Issue  `json:"warning_issues"`
}

// Requirement names one mandatory field. The identifiers are a fixed
// contract with the report-generation side and must not be renamed.
type Requirement struct {
	ID    string
	Label string
}

var mandatoryFields = map[model.ExtractionType][]Requirement{
	model.TypeLandRegistry: {
		{ID: "registrar_office", Label: "registrar office"},
		{ID: "block_number", Label: "block number (gush)"},
		{ID: "parcel_number", Label: "parcel number (chelka)"},
		{ID: "parcel_area", Label: "parcel area"},
		{ID: "subparcel_number", Label: "subparcel number"},
		{ID: "subparcel_registered_area", Label: "subparcel registered area"},
	},
	model.TypePermit: {
		{ID: "permit_number", Label: "permit number"},
		{ID: "permit_date", Label: "permit date"},
		{ID: "permitted_usage", Label: "permitted usage"},
	},
	model.TypeSharedBuilding: {
		{ID: "order_issue_date", Label: "order issue date"},
		{ID: "building_description", Label: "building description"},
		{ID: "sub_plots_count", Label: "sub-plot count"},
	},
}

// MandatoryFields returns the requirement manifest for a document type.
func MandatoryFields(t model.ExtractionType) []Requirement {
	return mandatoryFields[t]
}

// Validate checks the extraction's scalar fields against the mandatory-field
// manifest for its type. Missing values and low-confidence values are
// orthogonal: a present-but-low-confidence field yields a warning, an absent
// one a blocking issue, and both can apply to one extraction.
func Validate(typ model.ExtractionType, fields model.FieldSet) Result {
	res := Result{}
	for _, req := range mandatoryFields[typ] {
		fv, ok := fields.Scalars[req.ID]
		if !ok || !fv.Resolved() {
			res.Missing = append(res.Missing, req.ID)
			res.BlockingIssues = append(res.BlockingIssues, Issue{
				FieldID: req.ID,
				Message: fmt.Sprintf("%s could not be extracted from the document", req.Label),
				Level:   SeverityBlocking,
			})
		}
		if ok && fv.Source.LowConfidence {
			res.Warnings = append(res.Warnings, req.ID)
			res.WarningIssues = append(res.WarningIssues, Issue{
				FieldID: req.ID,
				Message: fmt.Sprintf("%s was extracted with low confidence and should be verified", req.Label),
				Level:   SeverityWarning,
			})
		}
	}
	res.Valid = len(res.Missing) == 0
	return res
}
