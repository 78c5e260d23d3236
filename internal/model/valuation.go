package model

// PriceSource names the central-tendency statistic used as the pricing basis.
type PriceSource string

const (
	PriceSourceMedian PriceSource = "median"
	PriceSourceMean   PriceSource = "mean"
)

// Statistics are descriptive statistics over the included comparables'
// price per area unit. StdDev is the population standard deviation and is
// reported only; it never feeds the point estimate.
type Statistics struct {
	Count   int     `json:"count"`
	Average float64 `json:"average"`
	Median  float64 `json:"median"`
	StdDev  float64 `json:"std_dev"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
}

// CalculationResult is the output of one valuation run. It is recomputed
// wholesale on every request, never incrementally updated.
type CalculationResult struct {
	SubjectID              string      `json:"subject_id"`
	AreaBuilt              float64     `json:"area_built"`
	AreaBalcony            float64     `json:"area_balcony"`
	EquivalenceCoefficient float64     `json:"equivalence_coefficient"`
	EquivalentArea         float64     `json:"equivalent_area"`
	EquivalentPricePerArea float64     `json:"equivalent_price_per_area"`
	AssetValue             float64     `json:"asset_value"`
	PriceSource            PriceSource `json:"price_source"`
	VATIncluded            bool        `json:"vat_included"`
	Stats                  Statistics  `json:"statistics"`
}
