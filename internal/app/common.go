package app

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/fernwell-systems/appscout/internal/catalog"
	"github.com/fernwell-systems/appscout/internal/config"
	"github.com/fernwell-systems/appscout/internal/hardware"
	"github.com/fernwell-systems/appscout/internal/nixpkgs"
	"github.com/fernwell-systems/appscout/internal/pipeline"
	"github.com/fernwell-systems/appscout/internal/recommend"
	"github.com/fernwell-systems/appscout/internal/scanner"
	"github.com/fernwell-systems/appscout/internal/store"
	"github.com/fernwell-systems/appscout/internal/usage"
)

// openStore opens the database and ensures the schema exists.
func openStore(cfg *config.Config) (*store.Store, error) {
	dbPath, err := cfg.ResolveDBPath()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve database path: %w", err)
	}
	db, err := store.New(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.CreateSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare database schema: %w", err)
	}
	return db, nil
}

// buildPipeline assembles the full pipeline from configuration.
func buildPipeline(cfg *config.Config, db *store.Store) (*pipeline.Pipeline, error) {
	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return nil, err
	}

	dataDir, err := cfg.ResolveDataDir()
	if err != nil {
		return nil, err
	}

	inv := scanner.New(nixpkgs.NewLister(), cat)
	prof := hardware.NewProfiler()
	eng := recommend.New(
		recommend.Weights{
			Hardware:   cfg.Weights.Hardware,
			Similarity: cfg.Weights.Similarity,
			Popularity: cfg.Weights.Popularity,
			MinScore:   cfg.Weights.MinScore,
			MaxResults: cfg.Weights.MaxResults,
		},
		usage.Params{
			WindowDays:   cfg.Usage.WindowDays,
			HalfLifeDays: cfg.Usage.HalfLifeDays,
		},
	)
	return pipeline.New(db, cat, inv, prof, eng, dataDir, cfg.Usage, log.Default()), nil
}

// ExitCode maps an Execute error to the process exit code. Storage
// failures are fatal and distinct; everything else is a generic failure.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if errors.Is(err, pipeline.ErrStorage) || errors.Is(err, store.ErrSchemaVersion) {
		return 2
	}
	return 1
}
