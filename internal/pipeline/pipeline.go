// Package pipeline orchestrates a full appscout run: enumerate the
// system, ingest spooled usage events, and rescore recommendations, all
// committed in a single transaction per run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/fernwell-systems/appscout/internal/catalog"
	"github.com/fernwell-systems/appscout/internal/config"
	"github.com/fernwell-systems/appscout/internal/hardware"
	"github.com/fernwell-systems/appscout/internal/recommend"
	"github.com/fernwell-systems/appscout/internal/store"
	"github.com/fernwell-systems/appscout/internal/usage"
)

// Sentinel errors distinguishing recoverable enumeration failures from
// fatal persistence failures.
var (
	// ErrScan marks a failed enumeration phase. The run still commits
	// whatever the other phases produced; stale data stays in place.
	ErrScan = errors.New("scan failed")
	// ErrStorage marks a failed database operation. Nothing from the run
	// is persisted.
	ErrStorage = errors.New("storage failed")
)

// InventorySource enumerates the currently installed packages.
type InventorySource interface {
	Observe(ctx context.Context) ([]*store.Package, error)
}

// HardwareSource enumerates the machine's hardware facts.
type HardwareSource interface {
	Scan(ctx context.Context) ([]hardware.Fact, error)
}

// Options selects which phases a run executes. The zero value runs
// nothing; callers enable at least one phase.
type Options struct {
	Scan      bool
	Usage     bool
	Recommend bool
}

// All enables every phase.
func All() Options {
	return Options{Scan: true, Usage: true, Recommend: true}
}

// Result reports what a run changed.
type Result struct {
	PackagesSeen    int
	InstallChanges  int
	HardwareFacts   int
	EventsIngested  int
	EventsPruned    int64
	Recommendations int
}

// Pipeline wires the enumeration sources, the usage spool, the scoring
// engine, and the store into one runnable unit.
type Pipeline struct {
	store     *store.Store
	catalog   *catalog.Catalog
	inventory InventorySource
	profiler  HardwareSource
	engine    *recommend.Engine
	dataDir   string
	usageCfg  config.UsageConfig
	logger    *log.Logger
}

// New creates a Pipeline.
func New(st *store.Store, cat *catalog.Catalog, inv InventorySource, hw HardwareSource, eng *recommend.Engine, dataDir string, usageCfg config.UsageConfig, logger *log.Logger) *Pipeline {
	if logger == nil {
		logger = log.Default()
	}
	return &Pipeline{
		store:     st,
		catalog:   cat,
		inventory: inv,
		profiler:  hw,
		engine:    eng,
		dataDir:   dataDir,
		usageCfg:  usageCfg,
		logger:    logger.With("component", "pipeline"),
	}
}

// Run executes the selected phases. Enumeration happens outside the
// transaction; every durable write happens inside one transaction, so a
// run is all-or-nothing at the storage level. A failed enumeration phase
// contributes no writes and surfaces as ErrScan after the rest of the
// run has committed.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Result, error) {
	now := time.Now().UTC()
	res := &Result{}

	var (
		observed []*store.Package
		facts    []hardware.Fact
		pkgErr   error
		hwErr    error
	)
	if opts.Scan {
		// Both enumerations run concurrently and independently. Errors
		// are held per phase so one failing never starves the other.
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			observed, pkgErr = p.inventory.Observe(gctx)
			return nil
		})
		g.Go(func() error {
			facts, hwErr = p.profiler.Scan(gctx)
			return nil
		})
		_ = g.Wait() // goroutines never return errors

		if pkgErr != nil {
			p.logger.Warn("package enumeration failed, keeping stale inventory", "err", pkgErr)
		}
		if hwErr != nil {
			p.logger.Warn("hardware enumeration failed, keeping stale facts", "err", hwErr)
		}
	}

	var (
		events []store.UsageEvent
		offset int64
	)
	if opts.Usage {
		var err error
		events, offset, err = usage.ReadSpool(p.dataDir, p.usageCfg.SpoolBatch)
		if err != nil {
			return nil, fmt.Errorf("%w: reading launch spool: %w", ErrStorage, err)
		}
	}

	err := p.store.InTx(func(tx *store.Tx) error {
		for _, entry := range p.catalog.Entries() {
			if err := tx.UpsertPackage(entry.Package()); err != nil {
				return fmt.Errorf("syncing catalog entry %s: %w", entry.Name, err)
			}
		}

		if opts.Scan && hwErr == nil {
			stored := make([]store.HardwareFact, len(facts))
			for i, f := range facts {
				stored[i] = store.HardwareFact{
					Class:      f.Class,
					Vendor:     f.Vendor,
					Model:      f.Model,
					ObservedAt: now,
				}
			}
			if err := tx.ReplaceHardwareFacts(stored); err != nil {
				return fmt.Errorf("replacing hardware facts: %w", err)
			}
			res.HardwareFacts = len(stored)
		}

		if opts.Scan && pkgErr == nil {
			changed, err := tx.ApplyInventory(observed, now)
			if err != nil {
				return fmt.Errorf("applying inventory: %w", err)
			}
			res.PackagesSeen = len(observed)
			res.InstallChanges = changed
		}

		if opts.Usage && len(events) > 0 {
			n, err := tx.AppendUsageEvents(events)
			if err != nil {
				return fmt.Errorf("appending usage events: %w", err)
			}
			res.EventsIngested = n
		}
		if opts.Usage && p.usageCfg.RetentionDays > 0 {
			cutoff := now.AddDate(0, 0, -p.usageCfg.RetentionDays)
			pruned, err := tx.PruneUsageEvents(cutoff)
			if err != nil {
				return fmt.Errorf("pruning usage events: %w", err)
			}
			res.EventsPruned = pruned
		}

		if opts.Recommend {
			recs, err := p.engine.Compute(tx, now)
			if err != nil {
				return fmt.Errorf("scoring candidates: %w", err)
			}
			if err := tx.ReplaceRecommendations(recs); err != nil {
				return fmt.Errorf("replacing recommendations: %w", err)
			}
			res.Recommendations = len(recs)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	// The offset moves only after the transaction is durable, so a crash
	// replays events rather than losing them.
	if opts.Usage && offset > 0 {
		if err := usage.CommitOffset(p.dataDir, offset); err != nil {
			return res, fmt.Errorf("%w: committing spool offset: %w", ErrStorage, err)
		}
	}

	p.logger.Info("run complete",
		"packages", res.PackagesSeen,
		"changes", res.InstallChanges,
		"facts", res.HardwareFacts,
		"events", res.EventsIngested,
		"recommendations", res.Recommendations)

	if pkgErr != nil {
		return res, fmt.Errorf("%w: package enumeration: %w", ErrScan, pkgErr)
	}
	if hwErr != nil {
		return res, fmt.Errorf("%w: hardware enumeration: %w", ErrScan, hwErr)
	}
	return res, nil
}
