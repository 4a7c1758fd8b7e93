package store

import "time"

// Package sources. Catalog-sourced packages carry curated metadata and are
// the only recommendation candidates; observed packages were seen on the
// system without a catalog entry.
const (
	SourceCatalog  = "catalog"
	SourceObserved = "observed"
)

// CategoryUnknown is assigned to packages observed on the system that have
// no catalog entry. Nothing is silently dropped during an inventory scan.
const CategoryUnknown = "unknown"

// Package is a known or observed package. Rows are never deleted, only
// marked installed/not-installed via installed_state.
type Package struct {
	Name         string   `json:"name"`
	DisplayName  string   `json:"display_name"`
	Category     string   `json:"category"`
	Description  string   `json:"description,omitempty"`
	Source       string   `json:"source"`
	HardwareTags []string `json:"hardware_tags,omitempty"`
	Popularity   float64  `json:"popularity"`
}

// Placeholder returns a minimal Package for a name observed on the system
// with no catalog entry.
func Placeholder(name string) *Package {
	return &Package{
		Name:        name,
		DisplayName: name,
		Category:    CategoryUnknown,
		Source:      SourceObserved,
	}
}

// InstalledState records whether a package is currently installed and when
// that state last changed.
type InstalledState struct {
	Package   string    `json:"package"`
	Installed bool      `json:"installed"`
	ChangedAt time.Time `json:"changed_at"`
}

// UsageEvent records one observed usage signal for a package.
type UsageEvent struct {
	Package   string    `json:"package"`
	Kind      string    `json:"kind"` // "launch" or "foreground"
	Timestamp time.Time `json:"timestamp"`
}

// Usage event kinds.
const (
	EventLaunch     = "launch"
	EventForeground = "foreground"
)

// HardwareFact is one normalized device observation, identified by
// (class, vendor). A scan replaces the whole fact set.
type HardwareFact struct {
	Class      string    `json:"class"`
	Vendor     string    `json:"vendor"`
	Model      string    `json:"model,omitempty"`
	ObservedAt time.Time `json:"observed_at"`
}

// Recommendation is one ranked install suggestion. The table is derived
// and disposable: fully regenerated on every scoring run.
type Recommendation struct {
	Package     string    `json:"package"`
	Score       float64   `json:"score"`
	Reasons     []string  `json:"reasons"`
	GeneratedAt time.Time `json:"generated_at"`
}
