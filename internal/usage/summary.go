// Package usage records per-application usage signals and aggregates them
// into decayed summaries for scoring.
package usage

import (
	"math"
	"time"

	"github.com/fernwell-systems/appscout/internal/store"
)

// Params tunes summary aggregation.
type Params struct {
	// WindowDays bounds the frequency count to a rolling window.
	WindowDays int
	// HalfLifeDays sets the exponential recency half-life.
	HalfLifeDays float64
}

// DefaultParams mirrors the config defaults.
func DefaultParams() Params {
	return Params{WindowDays: 30, HalfLifeDays: 14}
}

// Summary aggregates a package's usage history.
type Summary struct {
	Package string
	// Frequency is the event count within the rolling window, bounding
	// the influence of very old, very active phases of use.
	Frequency int
	// Recency is the sum of exponentially decayed event contributions:
	// an event HalfLifeDays old contributes 0.5, one happening now 1.0.
	Recency float64
}

// Weight is the scalar used to rank packages by usage. Recency carries the
// signal; frequency adds a dampened bonus so bursts do not dominate.
func (s Summary) Weight() float64 {
	return s.Recency * (1 + math.Log1p(float64(s.Frequency)))
}

// Summarize aggregates events for one package as of now. Events after now
// are ignored. Pure: no clock reads, deterministic for fixed inputs.
func Summarize(pkg string, events []store.UsageEvent, now time.Time, p Params) Summary {
	window := time.Duration(p.WindowDays) * 24 * time.Hour
	s := Summary{Package: pkg}

	for _, ev := range events {
		age := now.Sub(ev.Timestamp)
		if age < 0 {
			continue
		}
		if age <= window {
			s.Frequency++
		}
		ageDays := age.Hours() / 24
		s.Recency += math.Exp2(-ageDays / p.HalfLifeDays)
	}
	return s
}
