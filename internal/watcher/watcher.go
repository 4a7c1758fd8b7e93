// Package watcher keeps appscout current in the background. It watches
// the launch spool with fsnotify so usage events land in the database
// shortly after they are written, and runs the full pipeline on a fixed
// interval so inventory, hardware facts, and recommendations never go
// stale.
package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"

	"github.com/fernwell-systems/appscout/internal/pipeline"
	"github.com/fernwell-systems/appscout/internal/usage"
)

// debounce coalesces bursts of spool appends into one ingest.
const debounce = 2 * time.Second

// Watcher drives the pipeline in the background.
type Watcher struct {
	pipe         *pipeline.Pipeline
	dataDir      string
	scanInterval time.Duration
	logger       *log.Logger

	fsw    *fsnotify.Watcher
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New creates a Watcher. scanInterval controls how often the full
// pipeline runs; spool ingestion is event-driven on top of that.
func New(pipe *pipeline.Pipeline, dataDir string, scanInterval time.Duration, logger *log.Logger) (*Watcher, error) {
	if pipe == nil {
		return nil, fmt.Errorf("pipeline cannot be nil")
	}
	if scanInterval <= 0 {
		return nil, fmt.Errorf("scan interval must be positive, got %s", scanInterval)
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Watcher{
		pipe:         pipe,
		dataDir:      dataDir,
		scanInterval: scanInterval,
		logger:       logger.With("component", "watcher"),
		stopCh:       make(chan struct{}),
	}, nil
}

// Start runs one full pipeline pass, then begins watching the spool and
// ticking the scan interval. It returns once the background goroutine is
// running.
func (w *Watcher) Start() error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fs watcher: %w", err)
	}
	// Watch the directory, not the file: the spool may not exist yet,
	// and writers may recreate it.
	if err := fsw.Add(w.dataDir); err != nil {
		fsw.Close()
		return fmt.Errorf("failed to watch %s: %w", w.dataDir, err)
	}
	w.fsw = fsw

	if _, err := w.pipe.Run(context.Background(), pipeline.All()); err != nil {
		w.logger.Error("initial run failed", "err", err)
	}

	w.wg.Add(1)
	go w.loop()
	return nil
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	scanTicker := time.NewTicker(w.scanInterval)
	defer scanTicker.Stop()

	// Drained timer, armed on the first spool event of a burst.
	flush := time.NewTimer(0)
	if !flush.Stop() {
		<-flush.C
	}
	defer flush.Stop()

	spool := filepath.Join(w.dataDir, usage.SpoolFile)
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Name != spool {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			flush.Reset(debounce)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("fs watch error", "err", err)

		case <-flush.C:
			w.ingest()

		case <-scanTicker.C:
			if _, err := w.pipe.Run(context.Background(), pipeline.All()); err != nil {
				w.logger.Error("scheduled run failed", "err", err)
			}

		case <-w.stopCh:
			w.ingest()
			return
		}
	}
}

// ingest drains the spool into the database and rescores.
func (w *Watcher) ingest() {
	opts := pipeline.Options{Usage: true, Recommend: true}
	if _, err := w.pipe.Run(context.Background(), opts); err != nil {
		w.logger.Error("spool ingest failed", "err", err)
	}
}

// Stop flushes the spool one last time and halts the watcher.
func (w *Watcher) Stop() error {
	close(w.stopCh)
	w.wg.Wait()
	if w.fsw != nil {
		return w.fsw.Close()
	}
	return nil
}
