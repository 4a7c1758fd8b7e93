// Package recommend scores not-yet-installed catalog packages against the
// observed hardware profile and usage history, producing the ranked
// recommendation set.
package recommend

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/fernwell-systems/appscout/internal/hardware"
	"github.com/fernwell-systems/appscout/internal/store"
	"github.com/fernwell-systems/appscout/internal/usage"
)

// Weights are the tunable scoring knobs. They are configuration, not
// discovered constants.
type Weights struct {
	// Hardware is added per candidate hardware tag matched by an
	// observed fact.
	Hardware float64
	// Similarity scales the usage-weighted category affinity.
	Similarity float64
	// Popularity scales the catalog's curated prior, breaking zero-score
	// ties.
	Popularity float64
	// MinScore discards candidates below this threshold.
	MinScore float64
	// MaxResults caps the ranked result set.
	MaxResults int
}

// DefaultWeights returns the built-in weights.
func DefaultWeights() Weights {
	return Weights{
		Hardware:   2.0,
		Similarity: 1.5,
		Popularity: 0.5,
		MinScore:   0.1,
		MaxResults: 50,
	}
}

// Database is the read surface the engine needs. Both *store.Store and
// *store.Tx satisfy it, so scoring can run inside the run transaction.
type Database interface {
	CatalogPackages() ([]*store.Package, error)
	ListPackages() ([]*store.Package, error)
	InstalledSet() (map[string]bool, error)
	ListHardwareFacts() ([]store.HardwareFact, error)
	EventsByPackage(since time.Time) (map[string][]store.UsageEvent, error)
}

// Engine computes recommendations.
type Engine struct {
	weights Weights
	params  usage.Params
}

// New creates an Engine.
func New(weights Weights, params usage.Params) *Engine {
	return &Engine{weights: weights, params: params}
}

// Compute returns the ranked recommendation set as of now. Fully
// deterministic for fixed inputs: no randomness, ties broken by package
// name. An empty usage history degrades to hardware affinity and
// popularity; the result may legitimately be empty.
func (e *Engine) Compute(db Database, now time.Time) ([]store.Recommendation, error) {
	candidates, err := db.CatalogPackages()
	if err != nil {
		return nil, fmt.Errorf("failed to load candidates: %w", err)
	}

	installed, err := db.InstalledSet()
	if err != nil {
		return nil, fmt.Errorf("failed to load installed set: %w", err)
	}

	facts, err := db.ListHardwareFacts()
	if err != nil {
		return nil, fmt.Errorf("failed to load hardware facts: %w", err)
	}
	hwFacts := toHardwareFacts(facts)

	affinity, err := e.categoryAffinity(db, installed, now)
	if err != nil {
		return nil, err
	}

	var recs []store.Recommendation
	for _, cand := range candidates {
		// A recommendation never names an installed package.
		if installed[cand.Name] {
			continue
		}

		score, reasons, ok := e.scoreCandidate(cand, hwFacts, affinity)
		if !ok {
			continue // malformed candidate skipped, never fatal
		}
		if score < e.weights.MinScore {
			continue
		}

		recs = append(recs, store.Recommendation{
			Package:     cand.Name,
			Score:       score,
			Reasons:     reasons,
			GeneratedAt: now,
		})
	}

	sort.Slice(recs, func(i, j int) bool {
		if recs[i].Score != recs[j].Score {
			return recs[i].Score > recs[j].Score
		}
		return recs[i].Package < recs[j].Package
	})

	if e.weights.MaxResults > 0 && len(recs) > e.weights.MaxResults {
		recs = recs[:e.weights.MaxResults]
	}
	return recs, nil
}

// scoreCandidate computes the weighted sum of independent signals. ok is
// false when the stored candidate data is malformed.
func (e *Engine) scoreCandidate(cand *store.Package, facts []hardware.Fact, affinity map[string]float64) (float64, []string, bool) {
	if cand.Popularity < 0 || cand.Popularity > 1 || math.IsNaN(cand.Popularity) {
		return 0, nil, false
	}

	var score float64
	var reasons []string

	for _, tag := range cand.HardwareTags {
		if hardware.MatchTag(facts, tag) {
			score += e.weights.Hardware
			reasons = append(reasons, "hardware:"+tag)
		}
	}

	if a := affinity[cand.Category]; a > 0 {
		score += e.weights.Similarity * a
		reasons = append(reasons, "category:"+cand.Category)
	}

	if cand.Popularity > 0 {
		score += e.weights.Popularity * cand.Popularity
		reasons = append(reasons, "popular")
	}

	return score, reasons, true
}

// categoryAffinity computes each category's normalized share of the user's
// usage, summed over the usage-summary weights of currently-installed
// packages. Content-based: there is no cross-user data. Events for
// packages no longer installed are retained historically but excluded
// here.
func (e *Engine) categoryAffinity(db Database, installed map[string]bool, now time.Time) (map[string]float64, error) {
	events, err := db.EventsByPackage(time.Time{})
	if err != nil {
		return nil, fmt.Errorf("failed to load usage events: %w", err)
	}
	if len(events) == 0 {
		return nil, nil // fresh install: fall back to hardware + popularity
	}

	packages, err := db.ListPackages()
	if err != nil {
		return nil, fmt.Errorf("failed to load packages: %w", err)
	}
	categories := make(map[string]string, len(packages))
	for _, p := range packages {
		categories[p.Name] = p.Category
	}

	byCategory := make(map[string]float64)
	var total float64
	for name, evs := range events {
		if !installed[name] {
			continue
		}
		cat, ok := categories[name]
		if !ok || cat == store.CategoryUnknown {
			continue
		}
		w := usage.Summarize(name, evs, now, e.params).Weight()
		byCategory[cat] += w
		total += w
	}

	if total == 0 {
		return nil, nil
	}
	for cat := range byCategory {
		byCategory[cat] /= total
	}
	return byCategory, nil
}

func toHardwareFacts(facts []store.HardwareFact) []hardware.Fact {
	out := make([]hardware.Fact, len(facts))
	for i, f := range facts {
		out[i] = hardware.Fact{Class: f.Class, Vendor: f.Vendor, Model: f.Model}
	}
	return out
}
