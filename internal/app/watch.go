package app

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fernwell-systems/appscout/internal/watcher"
)

var (
	watchDaemon      bool
	watchDaemonChild bool
	watchStop        bool
	watchStatus      bool

	watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Keep data fresh in the background",
		Long: `Run the pipeline continuously: launch events are ingested shortly after
they land in the spool, and a full scan runs on the configured interval.

Watch modes:
  foreground (default)  run in this terminal, Ctrl+C to stop
  --daemon              detach into the background
  --stop                stop a running daemon
  --status              report whether the daemon is running`,
		Example: `  # Run in foreground
  appscout watch

  # Run in the background
  appscout watch --daemon

  # Stop the background watcher
  appscout watch --stop`,
		RunE: runWatch,
	}
)

func init() {
	watchCmd.Flags().BoolVar(&watchDaemon, "daemon", false, "run as background daemon")
	watchCmd.Flags().BoolVar(&watchDaemonChild, "daemon-child", false, "internal flag for daemon child process")
	watchCmd.Flags().BoolVar(&watchStop, "stop", false, "stop running daemon")
	watchCmd.Flags().BoolVar(&watchStatus, "status", false, "report daemon status")
	watchCmd.Flags().MarkHidden("daemon-child")
	watchCmd.MarkFlagsMutuallyExclusive("daemon", "stop", "status")
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	dataDir, err := cfg.ResolveDataDir()
	if err != nil {
		return err
	}
	pidFile := pidFilePath(dataDir)

	if watchStatus {
		running, err := watcher.IsDaemonRunning(pidFile)
		if err != nil {
			return err
		}
		if running {
			fmt.Println("Watcher daemon is running")
		} else {
			fmt.Println("Watcher daemon is not running")
		}
		return nil
	}

	if watchStop {
		running, err := watcher.IsDaemonRunning(pidFile)
		if err != nil {
			return err
		}
		if !running {
			fmt.Println("Watcher daemon is not running")
			return nil
		}
		if err := watcher.StopDaemon(pidFile); err != nil {
			return err
		}
		fmt.Println("Watcher daemon stopped")
		return nil
	}

	if watchDaemon {
		logFile := logFilePath(dataDir)
		if err := watcher.Daemonize(pidFile, logFile, "watch", "--daemon-child"); err != nil {
			return err
		}
		fmt.Println("Watcher daemon started")
		fmt.Printf("  PID file: %s\n", pidFile)
		fmt.Printf("  Log file: %s\n", logFile)
		fmt.Println("\nTo stop: appscout watch --stop")
		return nil
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
	w, err := watcher.New(pipe, dataDir, cfg.ScanInterval.Std(), nil)
	if err != nil {
		return err
	}

	if watchDaemonChild {
		// Output goes to the daemon log file.
		return w.RunUntilSignal(pidFile)
	}

	fmt.Println("Watching for launch events (press Ctrl+C to stop)...")
	if err := w.Start(); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigCh
	fmt.Printf("\nReceived %v, shutting down...\n", sig)

	if err := w.Stop(); err != nil {
		return err
	}
	fmt.Println("Watcher stopped")
	return nil
}
