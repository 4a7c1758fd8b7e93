package usage

import (
	"fmt"
	"time"

	"github.com/fernwell-systems/appscout/internal/store"
)

// Recorder appends usage events to the store.
type Recorder struct {
	store *store.Store
}

// NewRecorder creates a Recorder.
func NewRecorder(st *store.Store) *Recorder {
	return &Recorder{store: st}
}

// Record appends one usage event, creating a placeholder package row if
// the id has never been seen (foreign-key discipline: every event
// references an existing package).
func (r *Recorder) Record(pkg, kind string, ts time.Time) error {
	err := r.store.InTx(func(tx *store.Tx) error {
		_, err := tx.AppendUsageEvents([]store.UsageEvent{
			{Package: pkg, Kind: kind, Timestamp: ts},
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to record usage event for %s: %w", pkg, err)
	}
	return nil
}
