package extract

import (
	"regexp"
	"strings"

	"github.com/shamay-group/appraisal-engine/internal/model"
)

// RecordPattern matches one record line inside a bounded section. Named
// capture groups become record values; groups listed in Optional may fail to
// match without rejecting the line, but a failed optional capture marks the
// record low-confidence.
type RecordPattern struct {
	Regexp   *regexp.Regexp
	Optional []string
}

// SectionSpec bounds one document section and describes its record lines.
// The same scanner handles ownerships, attachments, mortgages and notes;
// only the markers and record pattern differ.
type SectionSpec struct {
	Start  []string
	End    []string
	Record RecordPattern
}

// ScanSection walks document lines with a two-state scanner. A line
// containing any start marker opens the section; a line containing any end
// marker (or end of input) closes it. While inside, each line is tested
// independently against the record pattern; non-matching lines are skipped,
// which tolerates headers, blank lines and page-break artifacts.
func ScanSection(lines []string, spec SectionSpec, prov ProvenanceContext, linesPerPage int) []model.SectionRecord {
	if linesPerPage <= 0 {
		linesPerPage = DefaultLinesPerPage
	}

	var records []model.SectionRecord
	inside := false
	for i, line := range lines {
		if !inside {
			if containsAny(line, spec.Start) {
				inside = true
			}
			continue
		}
		if containsAny(line, spec.End) {
			inside = false
			continue
		}
		rec, ok := matchRecord(line, spec.Record)
		if !ok {
			continue
		}
		page := (i + linesPerPage) / linesPerPage // ceil((i+1)/linesPerPage)
		rec.Source = prov.cite(page, rec.Source.LowConfidence)
		records = append(records, rec)
	}
	return records
}

// matchRecord applies the record pattern to one line. The returned record's
// Source only carries the low-confidence flag; the caller fills in the rest.
func matchRecord(line string, rp RecordPattern) (model.SectionRecord, bool) {
	m := rp.Regexp.FindStringSubmatch(line)
	if m == nil {
		return model.SectionRecord{}, false
	}

	optional := make(map[string]bool, len(rp.Optional))
	for _, name := range rp.Optional {
		optional[name] = true
	}

	values := make(map[string]string)
	low := false
	for gi, name := range rp.Regexp.SubexpNames() {
		if gi == 0 || name == "" {
			continue
		}
		v := strings.TrimSpace(m[gi])
		if v == "" {
			if optional[name] {
				// Mandatory capture matched but this optional one did not.
				low = true
			}
			continue
		}
		values[name] = v
	}
	if len(values) == 0 {
		return model.SectionRecord{}, false
	}
	return model.SectionRecord{
		Values: values,
		Source: model.Provenance{LowConfidence: low},
	}, true
}

func containsAny(line string, markers []string) bool {
	for _, m := range markers {
		if m != "" && strings.Contains(line, m) {
			return true
		}
	}
	return false
}
