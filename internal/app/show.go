package app

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/fernwell-systems/appscout/internal/output"
	"github.com/fernwell-systems/appscout/internal/store"
)

var (
	showLimit    int
	showJSON     bool
	showPackages bool
	showHardware bool

	showCmd = &cobra.Command{
		Use:   "show",
		Short: "Show stored recommendations, packages, or hardware facts",
		Long: `Display the current recommendation set from the database. This is a pure
read: nothing is rescanned or rescored. Use 'appscout run' to refresh.

With --packages or --hardware the tracked inventory or the hardware
profile is shown instead.`,
		Example: `  # Ranked suggestions
  appscout show

  # Top 10 as JSON (for scripts)
  appscout show --limit 10 --json

  # Tracked packages with usage recency
  appscout show --packages

  # Detected hardware
  appscout show --hardware`,
		RunE: runShow,
	}
)

func init() {
	showCmd.Flags().IntVar(&showLimit, "limit", 0, "show at most N rows (0 = all stored)")
	showCmd.Flags().BoolVar(&showJSON, "json", false, "emit JSON instead of a table")
	showCmd.Flags().BoolVar(&showPackages, "packages", false, "show the tracked package inventory")
	showCmd.Flags().BoolVar(&showHardware, "hardware", false, "show detected hardware facts")
	showCmd.MarkFlagsMutuallyExclusive("packages", "hardware")
}

func runShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	switch {
	case showPackages:
		return showPackageTable(db)
	case showHardware:
		return showHardwareTable(db)
	default:
		return showRecommendations(db)
	}
}

func showRecommendations(db *store.Store) error {
	recs, err := db.ListRecommendations(showLimit)
	if err != nil {
		return fmt.Errorf("failed to load recommendations: %w", err)
	}

	if showJSON {
		return writeJSON(recs)
	}
	fmt.Print(output.RenderRecommendationTable(recs))
	return nil
}

func showPackageTable(db *store.Store) error {
	pkgs, err := db.ListPackages()
	if err != nil {
		return fmt.Errorf("failed to load packages: %w", err)
	}
	installed, err := db.InstalledSet()
	if err != nil {
		return fmt.Errorf("failed to load installed set: %w", err)
	}
	lastUsed := make(map[string]time.Time, len(pkgs))
	for _, p := range pkgs {
		t, err := db.LastUsage(p.Name)
		if err != nil {
			return fmt.Errorf("failed to load usage for %s: %w", p.Name, err)
		}
		if t != nil {
			lastUsed[p.Name] = *t
		}
	}

	if showLimit > 0 && len(pkgs) > showLimit {
		pkgs = pkgs[:showLimit]
	}
	if showJSON {
		return writeJSON(pkgs)
	}
	fmt.Print(output.RenderPackageTable(pkgs, installed, lastUsed))
	return nil
}

func showHardwareTable(db *store.Store) error {
	facts, err := db.ListHardwareFacts()
	if err != nil {
		return fmt.Errorf("failed to load hardware facts: %w", err)
	}
	if showJSON {
		return writeJSON(facts)
	}
	fmt.Print(output.RenderHardwareTable(facts))
	return nil
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
