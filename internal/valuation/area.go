package valuation

import "github.com/shamay-group/appraisal-engine/internal/model"

// AreaFromFields derives the subject's area figures from a land-registry
// extraction: registered apartment area as built area, balcony area as
// secondary. Returns false when the extraction carries no usable built area.
func AreaFromFields(fields model.FieldSet) (model.SubjectArea, bool) {
	built, ok := numberField(fields, "subparcel_registered_area")
	if !ok || built <= 0 {
		return model.SubjectArea{}, false
	}
	area := model.SubjectArea{Built: built}
	if balcony, ok := numberField(fields, "balcony_area"); ok {
		area.Balcony = balcony
	}
	return area, true
}

func numberField(fields model.FieldSet, id string) (float64, bool) {
	fv, ok := fields.Scalars[id]
	if !ok || !fv.Resolved() {
		return 0, false
	}
	n, ok := fv.Value.(float64)
	return n, ok
}
