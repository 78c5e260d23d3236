package extract

import (
	"os"
	"regexp"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/shamay-group/appraisal-engine/internal/model"
)

// Section ids shared with the report-generation side.
const (
	SectionOwnerships  = "ownerships"
	SectionAttachments = "attachments"
	SectionMortgages   = "mortgages"
	SectionNotes       = "notes"
)

// Manifest is the full pattern table for one document type. Manifests are
// data: new document layouts ship as new manifest versions, not code changes.
type Manifest struct {
	Type         model.ExtractionType
	Version      string
	LinesPerPage int
	Fields       []Pattern
	Sections     map[string]SectionSpec
}

// manifestYAML is the on-disk manifest shape.
type manifestYAML struct {
	Type         string `yaml:"type"`
	Version      string `yaml:"version"`
	LinesPerPage int    `yaml:"lines_per_page"`
	Fields       []struct {
		Field   string `yaml:"field"`
		Kind    string `yaml:"kind"`
		Pattern string `yaml:"pattern"`
	} `yaml:"fields"`
	Sections map[string]struct {
		Start  []string `yaml:"start"`
		End    []string `yaml:"end"`
		Record struct {
			Pattern  string   `yaml:"pattern"`
			Optional []string `yaml:"optional"`
		} `yaml:"record"`
	} `yaml:"sections"`
}

// ParseManifest decodes and compiles a YAML pattern manifest.
func ParseManifest(data []byte) (*Manifest, error) {
	var raw manifestYAML
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, eris.Wrap(err, "manifest: decode yaml")
	}

	typ := model.ExtractionType(raw.Type)
	if !typ.Valid() {
		return nil, eris.Errorf("manifest: unknown extraction type %q", raw.Type)
	}

	m := &Manifest{
		Type:         typ,
		Version:      raw.Version,
		LinesPerPage: raw.LinesPerPage,
		Sections:     make(map[string]SectionSpec, len(raw.Sections)),
	}
	for _, f := range raw.Fields {
		re, err := regexp.Compile(f.Pattern)
		if err != nil {
			return nil, eris.Wrapf(err, "manifest: compile pattern for field %s", f.Field)
		}
		kind := FieldKind(f.Kind)
		switch kind {
		case KindText, KindNumber, KindDate:
		default:
			return nil, eris.Errorf("manifest: unknown kind %q for field %s", f.Kind, f.Field)
		}
		m.Fields = append(m.Fields, Pattern{Field: f.Field, Kind: kind, Regexp: re})
	}
	for id, s := range raw.Sections {
		re, err := regexp.Compile(s.Record.Pattern)
		if err != nil {
			return nil, eris.Wrapf(err, "manifest: compile record pattern for section %s", id)
		}
		m.Sections[id] = SectionSpec{
			Start:  s.Start,
			End:    s.End,
			Record: RecordPattern{Regexp: re, Optional: s.Record.Optional},
		}
	}
	return m, nil
}

// LoadManifest reads and compiles a manifest file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "manifest: read %s", path)
	}
	return ParseManifest(data)
}

// ManifestFor returns the built-in manifest for a document type.
func ManifestFor(t model.ExtractionType) (*Manifest, error) {
	switch t {
	case model.TypeLandRegistry:
		return landRegistryManifest, nil
	case model.TypePermit:
		return permitManifest, nil
	case model.TypeSharedBuilding:
		return sharedBuildingManifest, nil
	default:
		return nil, eris.Errorf("manifest: no built-in manifest for type %q", t)
	}
}

// Built-in manifests. Field identifiers are a fixed contract with the
// report-generation side and must not be renamed.
var (
	landRegistryManifest = &Manifest{
		Type:         model.TypeLandRegistry,
		Version:      "1",
		LinesPerPage: DefaultLinesPerPage,
		Fields: []Pattern{
			{Field: "registrar_office", Kind: KindText,
				Regexp: regexp.MustCompile(`(?m)לשכת רישום מקרקעין\s*[:\-]?\s*(.+)$`)},
			{Field: "issue_date", Kind: KindDate,
				Regexp: regexp.MustCompile(`(?m)(?:תאריך הפקה|הופק בתאריך)\s*[:\-]?\s*([\d./]+)`)},
			{Field: "block_number", Kind: KindNumber,
				Regexp: regexp.MustCompile(`(?m)גוש\s*[:\-]?\s*([\d,]+)`)},
			// The guard class keeps this from matching inside "תת חלקה".
			{Field: "parcel_number", Kind: KindNumber,
				Regexp: regexp.MustCompile(`(?m)(?:^|[^ת ])\s*חלקה\s*[:\-]?\s*([\d,]+)`)},
			{Field: "parcel_area", Kind: KindNumber,
				Regexp: regexp.MustCompile(`(?m)שטח החלקה\s*(?:במ"ר)?\s*[:\-]?\s*([\d.,]+)`)},
			{Field: "subparcel_number", Kind: KindNumber,
				Regexp: regexp.MustCompile(`(?m)תת\s*חלקה\s*[:\-]?\s*([\d,]+)`)},
			{Field: "subparcel_registered_area", Kind: KindNumber,
				Regexp: regexp.MustCompile(`(?m)שטח רשום\s*(?:במ"ר)?\s*[:\-]?\s*([\d.,]+)`)},
			{Field: "balcony_area", Kind: KindNumber,
				Regexp: regexp.MustCompile(`(?m)שטח מרפסת\s*(?:במ"ר)?\s*[:\-]?\s*([\d.,]+)`)},
			{Field: "floor", Kind: KindText,
				Regexp: regexp.MustCompile(`(?m)קומה\s*[:\-]?\s*(\d+|קרקע|מרתף)`)},
			{Field: "regulation_type", Kind: KindText,
				Regexp: regexp.MustCompile(`(?m)תקנון\s*[:\-]?\s*(מוסכם|מצוי)`)},
		},
		Sections: map[string]SectionSpec{
			SectionOwnerships: {
				Start: []string{"בעלויות", "בעלים"},
				End:   []string{"הצמדות", "משכנתאות", "הערות"},
				Record: RecordPattern{
					Regexp: regexp.MustCompile(
						`^(?P<name>[\p{Hebrew}\s"׳'\-]+?)\s+(?:ת"ז|ת\.ז\.?|ח"פ)\s*(?P<id_number>\d{5,9})(?:\s+(?:חלק בנכס|החלק)\s*[:\-]?\s*(?P<share>\d+\s*/\s*\d+|בשלמות))?`),
					Optional: []string{"share"},
				},
			},
			SectionAttachments: {
				Start: []string{"הצמדות", "הצמדה"},
				End:   []string{"משכנתאות", "הערות"},
				Record: RecordPattern{
					Regexp: regexp.MustCompile(
						`^(?P<description>(?:מחסן|חניה|חנייה|גג|גינה)[\p{Hebrew}\s,'"\-]*?)(?:\s+בשטח\s*(?:של)?\s*(?P<area>[\d.,]+))?\s*(?:מ"ר)?$`),
					Optional: []string{"area"},
				},
			},
			SectionMortgages: {
				Start: []string{"משכנתאות", "משכנתא"},
				End:   []string{"הערות"},
				Record: RecordPattern{
					Regexp: regexp.MustCompile(
						`(?:לטובת|הזוכה)\s*[:\-]?\s*(?P<beneficiary>[\p{Hebrew}\s"׳'\-]+?)(?:\s+ע"ס\s*(?P<amount>[\d.,]+))?\s*$`),
					Optional: []string{"amount"},
				},
			},
			SectionNotes: {
				Start: []string{"הערות"},
				End:   nil, // runs to end of document
				Record: RecordPattern{
					Regexp: regexp.MustCompile(`(?P<text>הערה[\p{Hebrew}\d\s./:()'"\-]+)`),
				},
			},
		},
	}

	permitManifest = &Manifest{
		Type:         model.TypePermit,
		Version:      "1",
		LinesPerPage: DefaultLinesPerPage,
		Fields: []Pattern{
			{Field: "permit_number", Kind: KindText,
				Regexp: regexp.MustCompile(`(?m)היתר(?:\s*בני[יה]ה)?\s*(?:מס'?|מספר)\s*[:\-]?\s*([\w/\-]+)`)},
			{Field: "permit_date", Kind: KindDate,
				Regexp: regexp.MustCompile(`(?m)תאריך(?:\s*ה)?היתר\s*[:\-]?\s*([\d./]+)`)},
			{Field: "permit_issue_date", Kind: KindDate,
				Regexp: regexp.MustCompile(`(?m)תאריך הנפקה\s*[:\-]?\s*([\d./]+)`)},
			{Field: "permitted_usage", Kind: KindText,
				Regexp: regexp.MustCompile(`(?m)(?:שימוש מותר|מהות הבקשה)\s*[:\-]?\s*(.+)$`)},
			{Field: "local_committee", Kind: KindText,
				Regexp: regexp.MustCompile(`(?m)ועדה מקומית\s*(?:לתכנון ולבני[יה]ה)?\s*[:\-]?\s*(.+)$`)},
		},
	}

	sharedBuildingManifest = &Manifest{
		Type:         model.TypeSharedBuilding,
		Version:      "1",
		LinesPerPage: DefaultLinesPerPage,
		Fields: []Pattern{
			{Field: "order_issue_date", Kind: KindDate,
				Regexp: regexp.MustCompile(`(?m)(?:תאריך צו|צו רישום.*?מיום)\s*[:\-]?\s*([\d./]+)`)},
			{Field: "building_description", Kind: KindText,
				Regexp: regexp.MustCompile(`(?m)תיאור הבני[יי]ן\s*[:\-]?\s*(.+)$`)},
			{Field: "building_floors", Kind: KindNumber,
				Regexp: regexp.MustCompile(`(?m)(?:מספר קומות|בן)\s*[:\-]?\s*(\d+)(?:\s*קומות)?`)},
			{Field: "sub_plots_count", Kind: KindNumber,
				Regexp: regexp.MustCompile(`(?m)(?:מספר תתי[\s\-]חלקות|תתי חלקות)\s*[:\-]?\s*(\d+)`)},
			{Field: "building_address", Kind: KindText,
				Regexp: regexp.MustCompile(`(?m)כתובת(?:\s*הבני[יי]ן)?\s*[:\-]?\s*(.+)$`)},
		},
	}
)
