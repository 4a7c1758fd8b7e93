// Package catalog loads the curated list of known installable packages
// with category, hardware-affinity, and popularity metadata.
//
// A default catalog ships embedded in the binary; a user catalog file can
// be merged over it, with user entries winning on name collisions.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"

	"github.com/fernwell-systems/appscout/internal/store"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Hardware tags a catalog entry may declare. An entry with an unknown tag
// is malformed and skipped so one bad row never aborts a scoring run.
var knownHardwareTags = map[string]bool{
	"gpu":        true,
	"gpu-amd":    true,
	"gpu-nvidia": true,
	"gpu-intel":  true,
	"laptop":     true,
	"wifi":       true,
	"ethernet":   true,
	"audio":      true,
	"nvme":       true,
}

// Entry is one catalog package.
type Entry struct {
	Name        string   `yaml:"name"`
	DisplayName string   `yaml:"display_name"`
	Category    string   `yaml:"category"`
	Description string   `yaml:"description"`
	Hardware    []string `yaml:"hardware"`
	Popularity  float64  `yaml:"popularity"`
}

// Package converts the entry to its stored representation.
func (e Entry) Package() *store.Package {
	display := e.DisplayName
	if display == "" {
		display = e.Name
	}
	return &store.Package{
		Name:         e.Name,
		DisplayName:  display,
		Category:     e.Category,
		Description:  e.Description,
		Source:       store.SourceCatalog,
		HardwareTags: e.Hardware,
		Popularity:   e.Popularity,
	}
}

// validate reports why an entry is unusable, or "" if it is fine.
func (e Entry) validate() string {
	if e.Name == "" {
		return "missing name"
	}
	if e.Category == "" {
		return "missing category"
	}
	if e.Popularity < 0 || e.Popularity > 1 {
		return fmt.Sprintf("popularity %v outside [0,1]", e.Popularity)
	}
	for _, tag := range e.Hardware {
		if !knownHardwareTags[tag] {
			return fmt.Sprintf("unknown hardware tag %q", tag)
		}
	}
	return ""
}

type catalogFile struct {
	Packages []Entry `yaml:"packages"`
}

// Catalog is a validated, name-keyed set of entries.
type Catalog struct {
	entries map[string]Entry
}

// Default returns the embedded catalog.
func Default() (*Catalog, error) {
	c := &Catalog{entries: make(map[string]Entry)}
	if err := c.merge(defaultCatalog, "embedded catalog"); err != nil {
		return nil, err
	}
	return c, nil
}

// Load returns the embedded catalog merged with the user catalog at path.
// An empty path skips the user file; a non-empty path must exist.
func Load(path string) (*Catalog, error) {
	c, err := Default()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return c, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}
	if err := c.merge(data, path); err != nil {
		return nil, err
	}
	return c, nil
}

// merge parses YAML entries into the catalog, skipping malformed entries
// with a warning.
func (c *Catalog) merge(data []byte, source string) error {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("failed to parse catalog %s: %w", source, err)
	}

	for _, e := range f.Packages {
		if reason := e.validate(); reason != "" {
			log.Warn("skipping malformed catalog entry", "catalog", source, "package", e.Name, "reason", reason)
			continue
		}
		c.entries[e.Name] = e
	}
	return nil
}

// Lookup returns the entry for name, if known.
func (c *Catalog) Lookup(name string) (Entry, bool) {
	e, ok := c.entries[name]
	return e, ok
}

// Len returns the number of catalog entries.
func (c *Catalog) Len() int {
	return len(c.entries)
}

// Entries returns all entries sorted by name for deterministic iteration.
func (c *Catalog) Entries() []Entry {
	out := make([]Entry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
