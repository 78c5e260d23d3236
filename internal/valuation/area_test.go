package valuation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shamay-group/appraisal-engine/internal/model"
)

func TestAreaFromFields(t *testing.T) {
	fields := model.FieldSet{Scalars: map[string]model.FieldValue{
		"subparcel_registered_area": {Value: 85.5},
		"balcony_area":              {Value: float64(12)},
	}}

	area, ok := AreaFromFields(fields)
	require.True(t, ok)
	assert.Equal(t, 85.5, area.Built)
	assert.Equal(t, float64(12), area.Balcony)
	assert.Zero(t, area.Coefficient)
}

func TestAreaFromFields_NoRegisteredArea(t *testing.T) {
	fields := model.FieldSet{Scalars: map[string]model.FieldValue{
		"subparcel_registered_area": {Value: nil},
		"balcony_area":              {Value: float64(12)},
	}}

	_, ok := AreaFromFields(fields)
	assert.False(t, ok)

	_, ok = AreaFromFields(model.FieldSet{})
	assert.False(t, ok)
}
