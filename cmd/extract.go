package main

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/shamay-group/appraisal-engine/internal/extract"
	"github.com/shamay-group/appraisal-engine/internal/model"
	"github.com/shamay-group/appraisal-engine/internal/store"
	"github.com/shamay-group/appraisal-engine/internal/validate"
)

var (
	extractType    string
	extractSubject string
	extractSave    bool
)

// extractResult is the per-document CLI output shape.
type extractResult struct {
	Document     string          `json:"document"`
	ExtractionID string          `json:"extraction_id,omitempty"`
	Fields       model.FieldSet  `json:"extracted_fields"`
	Validation   validate.Result `json:"validation"`
}

var extractCmd = &cobra.Command{
	Use:   "extract [files...]",
	Short: "Extract structured fields from converted document text files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		typ := model.ExtractionType(extractType)
		if !typ.Valid() {
			return eris.Errorf("unknown extraction type %q", extractType)
		}
		manifest, err := manifestFor(typ)
		if err != nil {
			return err
		}

		if extractSave && extractSubject == "" {
			return eris.New("--subject is required with --save")
		}

		var s store.Store
		if extractSave {
			s, err = initStore(ctx)
			if err != nil {
				return eris.Wrap(err, "init store")
			}
			defer s.Close()
		}

		// Parsing is CPU-bound and independent per document; each goroutine
		// writes its own result slot.
		results := make([]extractResult, len(args))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(4)
		for i, path := range args {
			g.Go(func() error {
				data, err := os.ReadFile(path)
				if err != nil {
					return eris.Wrapf(err, "read %s", path)
				}
				doc := extract.Document{ID: filepath.Base(path), Text: string(data)}
				fields := extract.Extract(doc, manifest)
				res := extractResult{
					Document:   path,
					Fields:     fields,
					Validation: validate.Validate(typ, fields),
				}

				if extractSave {
					conf := extract.PatternConfidence
					id, err := s.SaveExtraction(gctx, extractSubject, typ, string(data), fields, store.SaveMeta{
						Method:     "pattern/v" + manifest.Version,
						Confidence: &conf,
						Origin:     model.OriginPattern,
						DocumentID: doc.ID,
						ChangedBy:  "cli",
					})
					if err != nil {
						return eris.Wrapf(err, "save extraction for %s", path)
					}
					res.ExtractionID = id
				}

				results[i] = res
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			return eris.Wrap(err, "encode results")
		}

		zap.L().Info("extraction complete",
			zap.Int("documents", len(args)),
			zap.String("type", extractType),
			zap.Bool("saved", extractSave),
		)
		return nil
	},
}

func init() {
	extractCmd.Flags().StringVar(&extractType, "type", string(model.TypeLandRegistry), "document type (land_registry|permit|shared_building)")
	extractCmd.Flags().StringVar(&extractSubject, "subject", "", "subject id to save extractions under")
	extractCmd.Flags().BoolVar(&extractSave, "save", false, "persist extractions to the store")
	rootCmd.AddCommand(extractCmd)
}
