package app

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fernwell-systems/appscout/internal/pipeline"
)

var (
	runScan      bool
	runUsage     bool
	runRecommend bool

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Scan the system, ingest usage, and refresh recommendations",
		Long: `Execute the appscout pipeline. With no flags, all three phases run:

  scan       enumerate installed packages and hardware
  usage      ingest pending launch events from the spool
  recommend  rescore and replace the recommendation set

Phase flags restrict the run to the named phases. A failing enumeration
phase is reported but never blocks the others; previously stored data
stays in place.`,
		Example: `  # Full refresh
  appscout run

  # Inventory and hardware only
  appscout run --scan

  # Ingest usage and rescore without touching the inventory
  appscout run --usage --recommend`,
		RunE: runRun,
	}
)

func init() {
	runCmd.Flags().BoolVar(&runScan, "scan", false, "enumerate installed packages and hardware")
	runCmd.Flags().BoolVar(&runUsage, "usage", false, "ingest pending launch events")
	runCmd.Flags().BoolVar(&runRecommend, "recommend", false, "rescore recommendations")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	pipe, err := buildPipeline(cfg, db)
	if err != nil {
		return err
	}

	opts := pipeline.Options{Scan: runScan, Usage: runUsage, Recommend: runRecommend}
	if !runScan && !runUsage && !runRecommend {
		opts = pipeline.All()
	}

	res, err := pipe.Run(cmd.Context(), opts)
	if res != nil {
		printRunResult(opts, res)
	}
	if errors.Is(err, pipeline.ErrScan) {
		fmt.Println("\nSome data above may be stale; see the warnings for the failed phase.")
	}
	return err
}

func printRunResult(opts pipeline.Options, res *pipeline.Result) {
	if opts.Scan {
		fmt.Printf("Scanned %d packages (%d install changes), %d hardware facts\n",
			res.PackagesSeen, res.InstallChanges, res.HardwareFacts)
	}
	if opts.Usage {
		fmt.Printf("Ingested %d usage events", res.EventsIngested)
		if res.EventsPruned > 0 {
			fmt.Printf(" (pruned %d old events)", res.EventsPruned)
		}
		fmt.Println()
	}
	if opts.Recommend {
		fmt.Printf("Generated %d recommendations\n", res.Recommendations)
	}
}
