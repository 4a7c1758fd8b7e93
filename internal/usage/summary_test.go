package usage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/fernwell-systems/appscout/internal/store"
)

func launchAt(ts time.Time) store.UsageEvent {
	return store.UsageEvent{Package: "firefox", Kind: store.EventLaunch, Timestamp: ts}
}

func TestSummarize_Empty(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := Summarize("firefox", nil, now, DefaultParams())
	assert.Equal(t, 0, s.Frequency)
	assert.Zero(t, s.Recency)
	assert.Zero(t, s.Weight())
}

func TestSummarize_WindowBoundsFrequency(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	events := []store.UsageEvent{
		launchAt(now),
		launchAt(now.AddDate(0, 0, -10)),
		launchAt(now.AddDate(0, 0, -45)), // outside the 30-day window
	}

	s := Summarize("firefox", events, now, DefaultParams())
	assert.Equal(t, 2, s.Frequency)
	// The old event still contributes decayed recency.
	assert.Greater(t, s.Recency, 2.0)
}

func TestSummarize_RecencyHalfLife(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := Params{WindowDays: 30, HalfLifeDays: 14}

	fresh := Summarize("firefox", []store.UsageEvent{launchAt(now)}, now, p)
	assert.InDelta(t, 1.0, fresh.Recency, 1e-9)

	halved := Summarize("firefox", []store.UsageEvent{launchAt(now.AddDate(0, 0, -14))}, now, p)
	assert.InDelta(t, 0.5, halved.Recency, 1e-9)
}

func TestSummarize_IgnoresFutureEvents(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := Summarize("firefox", []store.UsageEvent{launchAt(now.Add(time.Hour))}, now, DefaultParams())
	assert.Equal(t, 0, s.Frequency)
	assert.Zero(t, s.Recency)
}

func TestWeight_MonotonicInRecencyAndFrequency(t *testing.T) {
	base := Summary{Frequency: 3, Recency: 1.5}
	moreRecent := Summary{Frequency: 3, Recency: 2.0}
	moreFrequent := Summary{Frequency: 6, Recency: 1.5}

	assert.Greater(t, moreRecent.Weight(), base.Weight())
	assert.Greater(t, moreFrequent.Weight(), base.Weight())
}

func TestWeight_RecencyDominatesBursts(t *testing.T) {
	// A huge burst long ago should not outrank steady recent use.
	burst := Summary{Frequency: 100, Recency: 0.05}
	steady := Summary{Frequency: 5, Recency: 1.2}
	assert.Greater(t, steady.Weight(), burst.Weight())
}
