package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shamay-group/appraisal-engine/internal/model"
)

// PatternConfidence is the coarse record-level confidence score attached to
// pattern-based extractions. Field-level confidence stays binary; this
// baseline is reported per extraction attempt, alongside model-reported
// scores for AI-based attempts.
const PatternConfidence = 0.95

// FieldKind selects the typed parse applied to a pattern's capture group.
type FieldKind string

const (
	KindText   FieldKind = "text"
	KindNumber FieldKind = "number"
	KindDate   FieldKind = "date"
)

// Pattern is one anchored field pattern: a label token followed by a typed
// capture group. Patterns are data, not code; they arrive via a Manifest.
type Pattern struct {
	Field  string
	Kind   FieldKind
	Regexp *regexp.Regexp
}

// ProvenanceContext carries the citation fields shared by every value
// extracted from the same document pass.
type ProvenanceContext struct {
	DocumentID string
	Origin     model.Origin
}

func (c ProvenanceContext) cite(page int, low bool) model.Provenance {
	return model.Provenance{
		Origin:        c.Origin,
		DocumentID:    c.DocumentID,
		Page:          page,
		LowConfidence: low,
	}
}

// ExtractField applies a single anchored pattern against the full document
// text. A missing match or an unparsable payload resolves to a nil value
// with LowConfidence=true; extraction never fails on bad input.
func ExtractField(text string, p Pattern, prov ProvenanceContext, linesPerPage int) model.FieldValue {
	loc := p.Regexp.FindStringSubmatchIndex(text)
	if loc == nil || len(loc) < 4 || loc[2] < 0 {
		return model.FieldValue{Source: prov.cite(0, true)}
	}
	raw := strings.TrimSpace(text[loc[2]:loc[3]])
	page := pageOfOffset(text, loc[0], linesPerPage)

	value, ok := parseCapture(raw, p.Kind)
	if !ok {
		return model.FieldValue{Source: prov.cite(page, true)}
	}
	return model.FieldValue{Value: value, Source: prov.cite(page, false)}
}

func parseCapture(raw string, kind FieldKind) (any, bool) {
	switch kind {
	case KindNumber:
		n, ok := parseNumber(raw)
		if !ok {
			return nil, false
		}
		return n, true
	case KindDate:
		d, ok := parseDate(raw)
		if !ok {
			return nil, false
		}
		return d, true
	default:
		if raw == "" {
			return nil, false
		}
		return raw, true
	}
}

// parseNumber parses a numeric payload from document text. Thousands
// separators are stripped and both '.' and ',' are accepted as the decimal
// point, so "1,234.50", "1234,5" and "250.5" all parse.
func parseNumber(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	switch {
	case strings.Contains(s, "."):
		// Dot decimal point; any commas are grouping.
		s = strings.ReplaceAll(s, ",", "")
	case strings.Contains(s, ","):
		// Comma is grouping when it sits before a 3-digit group, otherwise
		// it is the decimal point.
		parts := strings.Split(s, ",")
		if len(parts[len(parts)-1]) == 3 {
			s = strings.Join(parts, "")
		} else if len(parts) == 2 {
			s = parts[0] + "." + parts[1]
		} else {
			return 0, false
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

var dateSeparators = regexp.MustCompile(`[./]`)

// parseDate parses D.M.Y or D/M/Y with 2- or 4-digit years into an ISO
// calendar date string. Two-digit years map to 2000+yy. Anything that is not
// exactly three segments is unparsable, not a partial match.
func parseDate(raw string) (string, bool) {
	segs := dateSeparators.Split(strings.TrimSpace(raw), -1)
	if len(segs) != 3 {
		return "", false
	}
	day, err1 := strconv.Atoi(segs[0])
	month, err2 := strconv.Atoi(segs[1])
	year, err3 := strconv.Atoi(segs[2])
	if err1 != nil || err2 != nil || err3 != nil {
		return "", false
	}
	if year < 100 {
		year += 2000
	}
	// Reject dates the calendar would silently normalize (32.1 -> 1.2).
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day || int(t.Month()) != month || t.Year() != year {
		return "", false
	}
	return fmt.Sprintf("%04d-%02d-%02d", year, month, day), true
}

// pageOfOffset estimates the page a byte offset falls on by line density.
// This is a heuristic: documents with variable line density will misattribute
// pages. When true page boundaries are available upstream they should be
// used instead.
func pageOfOffset(text string, offset int, linesPerPage int) int {
	if linesPerPage <= 0 {
		linesPerPage = DefaultLinesPerPage
	}
	line := strings.Count(text[:offset], "\n") + 1
	return (line + linesPerPage - 1) / linesPerPage
}

// DefaultLinesPerPage is the line-density estimate used when a manifest does
// not supply one.
const DefaultLinesPerPage = 50
