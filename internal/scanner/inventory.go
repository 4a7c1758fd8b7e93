// Package scanner turns the host's installed-package listing into catalog-
// resolved package observations for the store.
package scanner

import (
	"context"
	"fmt"

	"github.com/fernwell-systems/appscout/internal/catalog"
	"github.com/fernwell-systems/appscout/internal/nixpkgs"
	"github.com/fernwell-systems/appscout/internal/store"
)

// Lister is the package-manager collaborator boundary.
type Lister interface {
	ListInstalled(ctx context.Context) ([]nixpkgs.InstalledPackage, error)
}

// Scanner maps installed packages onto catalog entries.
type Scanner struct {
	lister  Lister
	catalog *catalog.Catalog
}

// New creates a Scanner.
func New(lister Lister, cat *catalog.Catalog) *Scanner {
	return &Scanner{lister: lister, catalog: cat}
}

// Observe returns the full currently-installed set as package observations:
// catalog entries where known, minimal placeholders otherwise so nothing is
// silently dropped. The result is deterministic for an unchanged system
// (sorted by name, deduplicated by the lister).
func (s *Scanner) Observe(ctx context.Context) ([]*store.Package, error) {
	installed, err := s.lister.ListInstalled(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to scan packages: %w", err)
	}

	obs := make([]*store.Package, 0, len(installed))
	for _, p := range installed {
		if entry, ok := s.catalog.Lookup(p.Name); ok {
			obs = append(obs, entry.Package())
			continue
		}
		obs = append(obs, store.Placeholder(p.Name))
	}
	return obs, nil
}
