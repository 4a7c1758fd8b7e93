package app

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/fernwell-systems/appscout/internal/store"
	"github.com/fernwell-systems/appscout/internal/usage"
)

var (
	recordKind string

	recordCmd = &cobra.Command{
		Use:   "record <package>",
		Short: "Record a usage event for a package",
		Long: `Record one usage event directly in the database. Desktop launchers append
to the spool instead; this command exists for shell hooks and scripts
that want to report usage synchronously.`,
		Example: `  # From a shell alias wrapping an editor
  appscout record vscode

  # A window manager reporting focus
  appscout record firefox --kind foreground`,
		Args: cobra.ExactArgs(1),
		RunE: runRecord,
	}
)

func init() {
	recordCmd.Flags().StringVar(&recordKind, "kind", store.EventLaunch, "event kind: launch or foreground")
	RootCmd.AddCommand(recordCmd)
}

func runRecord(cmd *cobra.Command, args []string) error {
	if recordKind != store.EventLaunch && recordKind != store.EventForeground {
		return fmt.Errorf("invalid event kind %q (want launch or foreground)", recordKind)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	pkg := usage.NormalizeAppID(args[0])
	rec := usage.NewRecorder(db)
	if err := rec.Record(pkg, recordKind, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to record event: %w", err)
	}
	fmt.Printf("Recorded %s event for %s\n", recordKind, pkg)
	return nil
}
