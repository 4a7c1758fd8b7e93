// Package nixpkgs is the read-only package-manager collaborator. It
// queries the host's installed-package listing via nix-env. appscout never
// calls back into the package manager to install anything.
package nixpkgs

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"sort"
	"time"
)

// queryTimeout bounds the nix-env invocation so a wedged nix daemon fails
// fast instead of hanging the scheduled run.
const queryTimeout = 2 * time.Minute

// InstalledPackage is one entry from the host's installed-package listing.
type InstalledPackage struct {
	Name    string // attribute-independent package name (pname)
	Version string
}

// Runner executes an external command and returns its stdout. Injectable
// for tests.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// execRunner runs the command via os/exec with stderr captured into the
// returned error.
func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("%s failed: %w (stderr: %s)", name, err, string(exitErr.Stderr))
		}
		return nil, fmt.Errorf("%s failed: %w", name, err)
	}
	return out, nil
}

// Lister queries installed packages from the host.
type Lister struct {
	run Runner
}

// NewLister returns a Lister backed by the real nix-env binary.
func NewLister() *Lister {
	return &Lister{run: execRunner}
}

// NewListerWithRunner returns a Lister using the given runner.
func NewListerWithRunner(run Runner) *Lister {
	return &Lister{run: run}
}

// nixEnvEntry mirrors one value of `nix-env --query --installed --json`
// output, which is a map keyed by attribute path.
type nixEnvEntry struct {
	Name    string `json:"name"`
	PName   string `json:"pname"`
	Version string `json:"version"`
}

// ListInstalled returns the deduplicated set of installed packages,
// deterministically ordered by name. Two scans of an unchanged system
// produce the same result.
func (l *Lister) ListInstalled(ctx context.Context) ([]InstalledPackage, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	out, err := l.run(ctx, "nix-env", "--query", "--installed", "--json")
	if err != nil {
		return nil, fmt.Errorf("failed to list installed packages: %w", err)
	}

	var entries map[string]nixEnvEntry
	if err := json.Unmarshal(out, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse nix-env output: %w", err)
	}

	seen := make(map[string]InstalledPackage, len(entries))
	for _, e := range entries {
		name := e.PName
		if name == "" {
			name = e.Name
		}
		if name == "" {
			continue
		}
		seen[name] = InstalledPackage{Name: name, Version: e.Version}
	}

	packages := make([]InstalledPackage, 0, len(seen))
	for _, p := range seen {
		packages = append(packages, p)
	}
	sort.Slice(packages, func(i, j int) bool { return packages[i].Name < packages[j].Name })

	return packages, nil
}
