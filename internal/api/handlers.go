package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shamay-group/appraisal-engine/internal/comps"
	"github.com/shamay-group/appraisal-engine/internal/extract"
	"github.com/shamay-group/appraisal-engine/internal/model"
	"github.com/shamay-group/appraisal-engine/internal/store"
	"github.com/shamay-group/appraisal-engine/internal/validate"
	"github.com/shamay-group/appraisal-engine/internal/valuation"
)

func (s *Server) handleCreateSubject(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Address string `json:"address"`
		City    string `json:"city"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if req.Address == "" {
		badRequest(w, "address is required")
		return
	}

	subj, err := s.store.CreateSubject(r.Context(), req.Address, req.City)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, subj)
}

func (s *Server) handleGetSubject(w http.ResponseWriter, r *http.Request) {
	subj, err := s.store.GetSubject(r.Context(), chi.URLParam(r, "subjectID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, subj)
}

// saveExtractionRequest carries either pre-parsed fields (AI / manual paths)
// or raw document text to run through the pattern extractor server-side.
type saveExtractionRequest struct {
	SubjectID  string          `json:"subject_id"`
	Type       string          `json:"extraction_type"`
	RawText    string          `json:"raw_text,omitempty"`
	Fields     *model.FieldSet `json:"extracted_fields,omitempty"`
	Method     string          `json:"method,omitempty"`
	Confidence *float64        `json:"confidence,omitempty"`
	Origin     string          `json:"source,omitempty"`
	DocumentID string          `json:"file_id,omitempty"`
	ChangedBy  string          `json:"changed_by,omitempty"`
}

func (s *Server) handleSaveExtraction(w http.ResponseWriter, r *http.Request) {
	var req saveExtractionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	typ := model.ExtractionType(req.Type)
	if !typ.Valid() {
		badRequest(w, "unknown extraction_type")
		return
	}
	if req.SubjectID == "" {
		badRequest(w, "subject_id is required")
		return
	}

	meta := store.SaveMeta{
		Method:     req.Method,
		Confidence: req.Confidence,
		Origin:     model.Origin(req.Origin),
		DocumentID: req.DocumentID,
		ChangedBy:  req.ChangedBy,
	}

	var fields model.FieldSet
	switch {
	case req.Fields != nil:
		fields = *req.Fields
		if meta.Origin == "" {
			meta.Origin = model.OriginManual
		}
	case req.RawText != "":
		m, err := s.manifests(typ)
		if err != nil {
			writeError(w, err)
			return
		}
		fields = extract.Extract(extract.Document{ID: req.DocumentID, Text: req.RawText}, m)
		conf := extract.PatternConfidence
		meta.Origin = model.OriginPattern
		meta.Confidence = &conf
		if meta.Method == "" {
			meta.Method = "pattern/v" + m.Version
		}
	default:
		badRequest(w, "either extracted_fields or raw_text is required")
		return
	}

	id, err := s.store.SaveExtraction(r.Context(), req.SubjectID, typ, req.RawText, fields, meta)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"id":         id,
		"validation": validate.Validate(typ, fields),
	})
}

func (s *Server) handleListExtractions(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.ListBySubject(r.Context(), chi.URLParam(r, "subjectID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleLatestExtraction(w http.ResponseWriter, r *http.Request) {
	typ := model.ExtractionType(r.URL.Query().Get("type"))
	if !typ.Valid() {
		badRequest(w, "unknown or missing type query parameter")
		return
	}
	rec, err := s.store.GetLatestActive(r.Context(), chi.URLParam(r, "subjectID"), typ)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Deactivate(r.Context(), chi.URLParam(r, "extractionID"), changedBy(r)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	subjectID := chi.URLParam(r, "subjectID")
	extractionID := chi.URLParam(r, "extractionID")
	if err := s.store.Restore(r.Context(), subjectID, extractionID, changedBy(r)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Type   string         `json:"extraction_type"`
		Fields model.FieldSet `json:"extracted_fields"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	typ := model.ExtractionType(req.Type)
	if !typ.Valid() {
		badRequest(w, "unknown extraction_type")
		return
	}
	writeJSON(w, http.StatusOK, validate.Validate(typ, req.Fields))
}

func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.ListAudit(r.Context(), chi.URLParam(r, "subjectID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleListComparables(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.ListComparables(r.Context(), chi.URLParam(r, "subjectID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// handleImportComparables accepts an xlsx workbook body and upserts its rows.
func (s *Server) handleImportComparables(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 16<<20))
	if err != nil {
		badRequest(w, "read workbook body")
		return
	}
	records, skipped, err := comps.ImportBinary(data, comps.ImportOptions{
		SheetName: r.URL.Query().Get("sheet"),
	})
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	inserted, err := s.store.UpsertComparables(r.Context(), chi.URLParam(r, "subjectID"), records)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"inserted": inserted, "skipped": skipped})
}

func (s *Server) handleSetIncluded(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Included  bool   `json:"included"`
		ChangedBy string `json:"changed_by"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	user := req.ChangedBy
	if user == "" {
		user = "api"
	}
	if err := s.store.SetComparableIncluded(r.Context(), chi.URLParam(r, "comparableID"), req.Included, user); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetArea(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Built       float64 `json:"built"`
		Balcony     float64 `json:"balcony"`
		Coefficient float64 `json:"coefficient"`
		ChangedBy   string  `json:"changed_by"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if req.Built <= 0 {
		badRequest(w, "built area must be positive")
		return
	}
	user := req.ChangedBy
	if user == "" {
		user = "api"
	}
	area := model.SubjectArea{Built: req.Built, Balcony: req.Balcony, Coefficient: req.Coefficient}
	if err := s.store.SetSubjectArea(r.Context(), chi.URLParam(r, "subjectID"), area, user); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleValuation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subjectID := chi.URLParam(r, "subjectID")

	area, err := s.store.GetSubjectArea(ctx, subjectID)
	if err != nil {
		writeError(w, err)
		return
	}
	comparables, err := s.store.ListComparables(ctx, subjectID)
	if err != nil {
		writeError(w, err)
		return
	}

	if area.Coefficient == 0 {
		area.Coefficient = s.opts.EquivalenceCoefficient
	}
	result, err := valuation.ComputeValuation(subjectID, comparables, *area, valuation.Options{
		VATIncluded: s.opts.VATIncluded,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// changedBy reads the audit actor from the X-Changed-By header, defaulting
// to "api".
func changedBy(r *http.Request) string {
	if v := r.Header.Get("X-Changed-By"); v != "" {
		return v
	}
	return "api"
}
