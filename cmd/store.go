package main

import (
	"context"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/shamay-group/appraisal-engine/internal/extract"
	"github.com/shamay-group/appraisal-engine/internal/model"
	"github.com/shamay-group/appraisal-engine/internal/store"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "appraisal.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &cfg.Store.Pool)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// manifestFor resolves the pattern manifest for a document type, preferring
// YAML manifests from extract.manifest_dir over the built-ins.
func manifestFor(typ model.ExtractionType) (*extract.Manifest, error) {
	if cfg.Extract.ManifestDir != "" {
		path := filepath.Join(cfg.Extract.ManifestDir, string(typ)+".yaml")
		m, err := extract.LoadManifest(path)
		if err == nil {
			return m, nil
		}
	}
	m, err := extract.ManifestFor(typ)
	if err != nil {
		return nil, err
	}
	if cfg.Extract.LinesPerPage > 0 {
		clone := *m
		clone.LinesPerPage = cfg.Extract.LinesPerPage
		return &clone, nil
	}
	return m, nil
}
