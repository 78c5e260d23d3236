// Package valuation converts a curated set of comparable sales into a
// defensible point estimate of property value.
package valuation

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/shamay-group/appraisal-engine/internal/model"
)

// MinComparables is the hard minimum of included comparables. The engine
// refuses to value a property on fewer.
const MinComparables = 3

// DefaultEquivalenceCoefficient weights balcony area at half its footprint
// when computing the equivalent area.
const DefaultEquivalenceCoefficient = 0.5

// ErrInsufficientData is returned when fewer than MinComparables comparables
// are included. It is recoverable: the appraiser includes more comparables
// and retries.
var ErrInsufficientData = eris.New("valuation: insufficient comparable data")

// Options adjust a single valuation run.
type Options struct {
	// VATIncluded records the pricing convention of the comparables; the
	// engine never computes tax, only flags the convention.
	VATIncluded bool
}

// ComputeValuation derives the subject's asset value from the included
// comparables. The median price per area unit is the pricing basis; median
// over mean is a deliberate outlier-robustness decision, not a knob.
func ComputeValuation(subjectID string, comparables []model.ComparableRecord, area model.SubjectArea, opts Options) (*model.CalculationResult, error) {
	var prices []float64
	for _, c := range comparables {
		if c.Included {
			prices = append(prices, c.PricePerAreaUnit)
		}
	}
	if len(prices) < MinComparables {
		return nil, eris.Wrapf(ErrInsufficientData, "%d of %d required comparables included", len(prices), MinComparables)
	}

	stats := Describe(prices)

	coeff := area.Coefficient
	if coeff == 0 {
		coeff = DefaultEquivalenceCoefficient
	}
	equivalentArea := area.Built + area.Balcony*coeff
	pricePerArea := stats.Median

	return &model.CalculationResult{
		SubjectID:              subjectID,
		AreaBuilt:              area.Built,
		AreaBalcony:            area.Balcony,
		EquivalenceCoefficient: coeff,
		EquivalentArea:         equivalentArea,
		EquivalentPricePerArea: pricePerArea,
		AssetValue:             roundUpToThousand(equivalentArea * pricePerArea),
		PriceSource:            model.PriceSourceMedian,
		VATIncluded:            opts.VATIncluded,
		Stats:                  stats,
	}, nil
}

// roundUpToThousand rounds up to the nearest thousand currency units, an
// appraisal convention. Values already on a thousand boundary stay put.
func roundUpToThousand(v float64) float64 {
	return math.Ceil(v/1000) * 1000
}
