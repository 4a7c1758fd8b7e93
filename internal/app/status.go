package app

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/fernwell-systems/appscout/internal/store"
	"github.com/fernwell-systems/appscout/internal/watcher"
)

// minTrackingDays is how much usage history a recommendation set needs
// before the category signal is trustworthy.
const minTrackingDays = 14

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show tracking state and data counts",
	Long: `Report what appscout currently knows: how many packages, hardware facts,
usage events, and recommendations are stored, whether the background
watcher is running, and whether enough usage history has accumulated for
habit-based suggestions.`,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	packages, err := db.CountPackages()
	if err != nil {
		return err
	}
	installed, err := db.CountInstalled()
	if err != nil {
		return err
	}
	events, err := db.CountUsageEvents()
	if err != nil {
		return err
	}
	facts, err := db.CountHardwareFacts()
	if err != nil {
		return err
	}
	recs, err := db.CountRecommendations()
	if err != nil {
		return err
	}

	fmt.Println("appscout status")
	fmt.Println()
	fmt.Printf("  Packages tracked:  %d (%d installed)\n", packages, installed)
	fmt.Printf("  Hardware facts:    %d\n", facts)
	fmt.Printf("  Usage events:      %d\n", events)
	fmt.Printf("  Recommendations:   %d\n", recs)
	fmt.Println()

	dataDir, err := cfg.ResolveDataDir()
	if err != nil {
		return err
	}
	running, err := watcher.IsDaemonRunning(pidFilePath(dataDir))
	if err != nil {
		return err
	}
	if running {
		fmt.Println("  Watcher:           running")
	} else {
		fmt.Println("  Watcher:           not running (start with 'appscout watch --daemon')")
	}

	state, detail, err := trackingState(db)
	if err != nil {
		return err
	}
	fmt.Printf("  Usage tracking:    %s", state)
	if detail != "" {
		fmt.Printf(" (%s)", detail)
	}
	fmt.Println()
	return nil
}

// trackingState classifies how mature the usage history is. COLLECTING
// means suggestions lean on hardware and popularity only; READY means the
// category signal has enough history behind it.
func trackingState(db *store.Store) (string, string, error) {
	first, err := db.FirstEventTime()
	if err != nil {
		return "", "", err
	}
	if first.IsZero() {
		return "COLLECTING", "no usage events yet", nil
	}

	age := time.Since(first)
	if age < minTrackingDays*24*time.Hour {
		remaining := minTrackingDays*24*time.Hour - age
		return "COLLECTING", fmt.Sprintf("ready %s", humanize.Time(time.Now().Add(remaining))), nil
	}
	return "READY", fmt.Sprintf("tracking since %s", humanize.Time(first)), nil
}
