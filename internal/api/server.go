// Package api exposes the extraction lifecycle and valuation calculator over
// HTTP for the report-editing frontend.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/shamay-group/appraisal-engine/internal/extract"
	"github.com/shamay-group/appraisal-engine/internal/model"
	"github.com/shamay-group/appraisal-engine/internal/store"
	"github.com/shamay-group/appraisal-engine/internal/valuation"
)

// ManifestResolver returns the pattern manifest for a document type. The
// server takes a resolver instead of fixed manifests so YAML overrides and
// page-size tweaks stay a wiring concern.
type ManifestResolver func(model.ExtractionType) (*extract.Manifest, error)

// Options configure the API server.
type Options struct {
	EquivalenceCoefficient float64
	VATIncluded            bool
}

// Server routes HTTP requests to the store and the calculators.
type Server struct {
	store     store.Store
	manifests ManifestResolver
	opts      Options
}

// New creates an API server over the given store.
func New(s store.Store, manifests ManifestResolver, opts Options) *Server {
	return &Server{store: s, manifests: manifests, opts: opts}
}

// Router builds the chi handler tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders: []string{"Accept", "Content-Type", "Authorization"},
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/subjects", s.handleCreateSubject)
		r.Route("/subjects/{subjectID}", func(r chi.Router) {
			r.Get("/", s.handleGetSubject)
			r.Get("/extractions", s.handleListExtractions)
			r.Get("/extractions/latest", s.handleLatestExtraction)
			r.Post("/extractions/{extractionID}/restore", s.handleRestore)
			r.Get("/audit", s.handleListAudit)
			r.Get("/comparables", s.handleListComparables)
			r.Post("/comparables", s.handleImportComparables)
			r.Put("/area", s.handleSetArea)
			r.Get("/valuation", s.handleValuation)
		})

		r.Post("/extractions", s.handleSaveExtraction)
		r.Post("/extractions/validate", s.handleValidate)
		r.Post("/extractions/{extractionID}/deactivate", s.handleDeactivate)

		r.Put("/comparables/{comparableID}/included", s.handleSetIncluded)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// requestLogger logs one line per request through the global zap logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

// errorBody is the wire shape of every non-2xx response.
type errorBody struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("encode response", zap.Error(err))
	}
}

// writeError maps domain errors onto HTTP statuses. Insufficient comparable
// data is a recoverable client condition, not a server fault.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case eris.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
	case eris.Is(err, valuation.ErrInsufficientData):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{
			Error:   "insufficient comparable data",
			Code:    "insufficient_data",
			Details: err.Error(),
		})
	default:
		zap.L().Error("request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: msg})
}
