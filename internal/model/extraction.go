package model

import "time"

// Origin identifies how a field value entered the system.
type Origin string

const (
	OriginPattern  Origin = "pattern"
	OriginAIVision Origin = "ai_vision"
	OriginManual   Origin = "manual"
)

// ExtractionType identifies the kind of source document an extraction was
// parsed from.
type ExtractionType string

const (
	TypeLandRegistry   ExtractionType = "land_registry"
	TypePermit         ExtractionType = "permit"
	TypeSharedBuilding ExtractionType = "shared_building"
)

// KnownExtractionTypes lists every document type the engine can parse.
var KnownExtractionTypes = []ExtractionType{TypeLandRegistry, TypePermit, TypeSharedBuilding}

// Valid reports whether t is a recognized extraction type.
func (t ExtractionType) Valid() bool {
	for _, k := range KnownExtractionTypes {
		if t == k {
			return true
		}
	}
	return false
}

// Provenance is the citation attached to every extracted value. It is
// immutable once attached to a FieldValue.
type Provenance struct {
	Origin        Origin `json:"source"`
	DocumentID    string `json:"file_id"`
	Page          int    `json:"page,omitempty"`
	LowConfidence bool   `json:"low_confidence"`
}

// FieldValue is a single extracted scalar carrying its source citation.
// A nil Value means the field is unresolved regardless of confidence.
type FieldValue struct {
	Value  any        `json:"value"`
	Source Provenance `json:"source"`
}

// Resolved reports whether the field carries an actual value.
func (f FieldValue) Resolved() bool {
	return f.Value != nil
}

// SectionRecord is one line-level record found inside a bounded document
// section (an ownership line, an attachment, a mortgage, a note). Values are
// keyed by capture name; the record carries its own provenance so two lines
// from the same document can independently be low-confidence.
type SectionRecord struct {
	Values map[string]string `json:"values"`
	Source Provenance        `json:"source"`
}

// FieldSet is the full structured output of one extraction attempt:
// scalar fields keyed by stable field id, plus zero or more section record
// lists (ownerships, attachments, mortgages, notes) keyed by section id.
type FieldSet struct {
	Scalars  map[string]FieldValue      `json:"fields"`
	Sections map[string][]SectionRecord `json:"sections,omitempty"`
}

// ExtractionRecord is one parse attempt over a document. Records are
// append-only: superseded attempts are deactivated, never deleted.
// For a given (SubjectID, Type) at most one record has IsActive=true.
type ExtractionRecord struct {
	ID         string         `json:"id"`
	SubjectID  string         `json:"subject_id"`
	Type       ExtractionType `json:"extraction_type"`
	RawSource  string         `json:"raw_source,omitempty"`
	Fields     FieldSet       `json:"extracted_fields"`
	Method     string         `json:"method"`
	Confidence *float64       `json:"confidence,omitempty"`
	IsActive   bool           `json:"is_active"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Subject is the document-owning entity extractions attach to (one appraisal
// subject property).
type Subject struct {
	ID        string    `json:"id"`
	Address   string    `json:"address"`
	City      string    `json:"city,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
