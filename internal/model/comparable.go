package model

import "time"

// ComparableRecord is one comparable sale curated by the appraiser.
// Included gates participation in valuation statistics and is the only
// field the appraiser mutates after import.
type ComparableRecord struct {
	ID               string    `json:"id"`
	SubjectID        string    `json:"subject_id"`
	SaleDate         string    `json:"sale_date"` // ISO date
	Address          string    `json:"address,omitempty"`
	GushChelkaSub    string    `json:"gush_chelka_sub,omitempty"`
	Rooms            float64   `json:"rooms,omitempty"`
	Floor            string    `json:"floor,omitempty"`
	AreaSqm          float64   `json:"area_sqm"`
	PricePerAreaUnit float64   `json:"price_per_sqm"`
	TotalPrice       float64   `json:"total_price"`
	ConstructionYear int       `json:"construction_year,omitempty"`
	Included         bool      `json:"included"`
	CreatedAt        time.Time `json:"created_at"`
}

// SubjectArea holds the subject property's area figures used by the
// valuation calculator. Coefficient weights balcony area when computing the
// equivalent area; zero means "use the engine default".
type SubjectArea struct {
	Built       float64 `json:"area_built"`
	Balcony     float64 `json:"area_balcony"`
	Coefficient float64 `json:"equivalence_coefficient,omitempty"`
}
