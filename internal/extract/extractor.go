// Package extract turns unstructured Hebrew legal document text into typed
// fields, each carrying a binary confidence flag and a source citation.
// Parse failures are absorbed into nil values, never errors, so a single bad
// line cannot abort extraction of the rest of a document.
package extract

import (
	"github.com/shamay-group/appraisal-engine/internal/model"
)

// Document is the plain-text form of a converted source document.
// PDF-to-text conversion happens upstream.
type Document struct {
	ID   string
	Text string
}

// Extract runs every field pattern and section spec in the manifest over the
// document and returns the structured field set. All values cite the
// document id; pages are estimated by line density.
func Extract(doc Document, m *Manifest) model.FieldSet {
	text := NormalizeText(doc.Text)
	lines := SplitLines(text)
	prov := ProvenanceContext{DocumentID: doc.ID, Origin: model.OriginPattern}

	fs := model.FieldSet{Scalars: make(map[string]model.FieldValue, len(m.Fields))}
	for _, p := range m.Fields {
		fs.Scalars[p.Field] = ExtractField(text, p, prov, m.LinesPerPage)
	}

	for id, spec := range m.Sections {
		recs := ScanSection(lines, spec, prov, m.LinesPerPage)
		if len(recs) == 0 {
			continue
		}
		if fs.Sections == nil {
			fs.Sections = make(map[string][]model.SectionRecord, len(m.Sections))
		}
		fs.Sections[id] = recs
	}
	return fs
}
