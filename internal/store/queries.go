package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Package operations

// UpsertPackage inserts or updates a package row. Metadata (category,
// description, tags, popularity) from the caller wins; installed_state is
// untouched.
func (q *queries) UpsertPackage(pkg *Package) error {
	tagsJSON, err := json.Marshal(pkg.HardwareTags)
	if err != nil {
		return fmt.Errorf("failed to marshal hardware tags: %w", err)
	}

	query := `
		INSERT INTO packages (name, display_name, category, description, source, hardware_tags, popularity)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			display_name = excluded.display_name,
			category = excluded.category,
			description = excluded.description,
			source = excluded.source,
			hardware_tags = excluded.hardware_tags,
			popularity = excluded.popularity
	`

	_, err = q.db.Exec(query,
		pkg.Name,
		pkg.DisplayName,
		pkg.Category,
		pkg.Description,
		pkg.Source,
		string(tagsJSON),
		pkg.Popularity,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert package %s: %w", pkg.Name, err)
	}

	return nil
}

// EnsurePackage inserts a placeholder row for name if no package row
// exists yet. Existing rows (including catalog entries) are left alone.
func (q *queries) EnsurePackage(name string) error {
	p := Placeholder(name)

	query := `
		INSERT OR IGNORE INTO packages (name, display_name, category, description, source, hardware_tags, popularity)
		VALUES (?, ?, ?, ?, ?, '[]', 0)
	`

	_, err := q.db.Exec(query, p.Name, p.DisplayName, p.Category, p.Description, p.Source)
	if err != nil {
		return fmt.Errorf("failed to ensure package %s: %w", name, err)
	}
	return nil
}

func scanPackage(scan func(...any) error) (*Package, error) {
	var pkg Package
	var tagsJSON string

	if err := scan(
		&pkg.Name,
		&pkg.DisplayName,
		&pkg.Category,
		&pkg.Description,
		&pkg.Source,
		&tagsJSON,
		&pkg.Popularity,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(tagsJSON), &pkg.HardwareTags); err != nil {
		return nil, fmt.Errorf("failed to unmarshal hardware tags for %s: %w", pkg.Name, err)
	}
	return &pkg, nil
}

// GetPackage retrieves a package by name.
func (q *queries) GetPackage(name string) (*Package, error) {
	row := q.db.QueryRow(`
		SELECT name, display_name, category, description, source, hardware_tags, popularity
		FROM packages
		WHERE name = ?
	`, name)

	pkg, err := scanPackage(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("package %s: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get package %s: %w", name, err)
	}
	return pkg, nil
}

func (q *queries) listPackagesWhere(where string, args ...any) ([]*Package, error) {
	query := `
		SELECT name, display_name, category, description, source, hardware_tags, popularity
		FROM packages
	` + where + ` ORDER BY name`

	rows, err := q.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list packages: %w", err)
	}
	defer rows.Close()

	var packages []*Package
	for rows.Next() {
		pkg, err := scanPackage(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan package row: %w", err)
		}
		packages = append(packages, pkg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating packages: %w", err)
	}
	return packages, nil
}

// ListPackages returns all packages ordered by name.
func (q *queries) ListPackages() ([]*Package, error) {
	return q.listPackagesWhere("")
}

// CatalogPackages returns all catalog-sourced packages ordered by name.
// These are the only recommendation candidates.
func (q *queries) CatalogPackages() ([]*Package, error) {
	return q.listPackagesWhere("WHERE source = ?", SourceCatalog)
}

// CountPackages returns the total number of package rows.
func (q *queries) CountPackages() (int, error) {
	var count int
	if err := q.db.QueryRow("SELECT COUNT(*) FROM packages").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count packages: %w", err)
	}
	return count, nil
}

// Installed-state operations

// ApplyInventory reconciles installed_state against the full set of
// currently-installed observations. Observed packages are upserted first,
// newly-seen names flip to installed, and previously-installed names
// missing from obs flip to not-installed. changed_at only moves when the
// flag actually changes, so re-applying an unchanged inventory is a no-op.
// Returns the number of state transitions.
func (q *queries) ApplyInventory(obs []*Package, now time.Time) (int, error) {
	prev, err := q.installedMap()
	if err != nil {
		return 0, err
	}

	changed := 0
	seen := make(map[string]bool, len(obs))

	for _, pkg := range obs {
		seen[pkg.Name] = true

		// Placeholder observations must not clobber catalog metadata.
		if pkg.Source == SourceObserved {
			if err := q.EnsurePackage(pkg.Name); err != nil {
				return changed, err
			}
		} else {
			if err := q.UpsertPackage(pkg); err != nil {
				return changed, err
			}
		}

		if installed, known := prev[pkg.Name]; !known || !installed {
			if err := q.setInstalled(pkg.Name, true, now); err != nil {
				return changed, err
			}
			changed++
		}
	}

	for name, installed := range prev {
		if installed && !seen[name] {
			if err := q.setInstalled(name, false, now); err != nil {
				return changed, err
			}
			changed++
		}
	}

	return changed, nil
}

func (q *queries) setInstalled(name string, installed bool, now time.Time) error {
	query := `
		INSERT INTO installed_state (package, installed, changed_at)
		VALUES (?, ?, ?)
		ON CONFLICT(package) DO UPDATE SET
			installed = excluded.installed,
			changed_at = excluded.changed_at
	`
	_, err := q.db.Exec(query, name, installed, now.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to set installed state for %s: %w", name, err)
	}
	return nil
}

func (q *queries) installedMap() (map[string]bool, error) {
	rows, err := q.db.Query("SELECT package, installed FROM installed_state")
	if err != nil {
		return nil, fmt.Errorf("failed to read installed state: %w", err)
	}
	defer rows.Close()

	state := make(map[string]bool)
	for rows.Next() {
		var name string
		var installed bool
		if err := rows.Scan(&name, &installed); err != nil {
			return nil, fmt.Errorf("failed to scan installed state row: %w", err)
		}
		state[name] = installed
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating installed state: %w", err)
	}
	return state, nil
}

// InstalledSet returns the names of all currently-installed packages.
func (q *queries) InstalledSet() (map[string]bool, error) {
	rows, err := q.db.Query("SELECT package FROM installed_state WHERE installed = 1")
	if err != nil {
		return nil, fmt.Errorf("failed to read installed set: %w", err)
	}
	defer rows.Close()

	set := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan installed row: %w", err)
		}
		set[name] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating installed set: %w", err)
	}
	return set, nil
}

// GetInstalledState returns the state row for one package.
func (q *queries) GetInstalledState(name string) (*InstalledState, error) {
	var st InstalledState
	var changedAt string

	err := q.db.QueryRow(`
		SELECT package, installed, changed_at FROM installed_state WHERE package = ?
	`, name).Scan(&st.Package, &st.Installed, &changedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("installed state for %s: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get installed state for %s: %w", name, err)
	}

	st.ChangedAt, err = time.Parse(time.RFC3339, changedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse changed_at for %s: %w", name, err)
	}
	return &st, nil
}

// CountInstalled returns the number of currently-installed packages.
func (q *queries) CountInstalled() (int, error) {
	var count int
	err := q.db.QueryRow("SELECT COUNT(*) FROM installed_state WHERE installed = 1").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count installed packages: %w", err)
	}
	return count, nil
}

// Usage event operations

// AppendUsageEvents appends usage events, creating placeholder package
// rows for names not seen before so foreign-key discipline holds.
// Events are append-only and never mutated.
func (q *queries) AppendUsageEvents(events []UsageEvent) (int, error) {
	inserted := 0
	for _, ev := range events {
		if err := q.EnsurePackage(ev.Package); err != nil {
			return inserted, err
		}
		_, err := q.db.Exec(`
			INSERT INTO usage_events (package, kind, timestamp) VALUES (?, ?, ?)
		`, ev.Package, ev.Kind, ev.Timestamp.UTC().Format(time.RFC3339))
		if err != nil {
			return inserted, fmt.Errorf("failed to insert usage event for %s: %w", ev.Package, err)
		}
		inserted++
	}
	return inserted, nil
}

// UsageEvents returns usage events for a package since the given time,
// newest first.
func (q *queries) UsageEvents(pkg string, since time.Time) ([]UsageEvent, error) {
	rows, err := q.db.Query(`
		SELECT package, kind, timestamp
		FROM usage_events
		WHERE package = ? AND timestamp >= ?
		ORDER BY timestamp DESC
	`, pkg, since.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("failed to get usage events for %s: %w", pkg, err)
	}
	defer rows.Close()

	return collectEvents(rows)
}

// EventsByPackage returns all usage events since the given time, grouped
// by package name, newest first within each group.
func (q *queries) EventsByPackage(since time.Time) (map[string][]UsageEvent, error) {
	rows, err := q.db.Query(`
		SELECT package, kind, timestamp
		FROM usage_events
		WHERE timestamp >= ?
		ORDER BY package, timestamp DESC
	`, since.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("failed to get usage events: %w", err)
	}
	defer rows.Close()

	events, err := collectEvents(rows)
	if err != nil {
		return nil, err
	}

	grouped := make(map[string][]UsageEvent)
	for _, ev := range events {
		grouped[ev.Package] = append(grouped[ev.Package], ev)
	}
	return grouped, nil
}

func collectEvents(rows *sql.Rows) ([]UsageEvent, error) {
	var events []UsageEvent
	for rows.Next() {
		var ev UsageEvent
		var ts string
		if err := rows.Scan(&ev.Package, &ev.Kind, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan usage event row: %w", err)
		}
		parsed, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			return nil, fmt.Errorf("failed to parse event timestamp: %w", err)
		}
		ev.Timestamp = parsed
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating usage events: %w", err)
	}
	return events, nil
}

// LastUsage returns the timestamp of the most recent usage event for a
// package, or nil if none exist.
func (q *queries) LastUsage(pkg string) (*time.Time, error) {
	var ts string
	err := q.db.QueryRow(`
		SELECT timestamp FROM usage_events WHERE package = ? ORDER BY timestamp DESC LIMIT 1
	`, pkg).Scan(&ts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last usage for %s: %w", pkg, err)
	}

	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return nil, fmt.Errorf("failed to parse timestamp: %w", err)
	}
	return &t, nil
}

// CountUsageEvents returns the total number of usage events recorded.
func (q *queries) CountUsageEvents() (int, error) {
	var count int
	if err := q.db.QueryRow("SELECT COUNT(*) FROM usage_events").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count usage events: %w", err)
	}
	return count, nil
}

// FirstEventTime returns the timestamp of the earliest usage event, or the
// zero time if no events exist.
func (q *queries) FirstEventTime() (time.Time, error) {
	var ts sql.NullString
	err := q.db.QueryRow("SELECT MIN(timestamp) FROM usage_events").Scan(&ts)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get first event time: %w", err)
	}
	if !ts.Valid || ts.String == "" {
		return time.Time{}, nil
	}

	t, err := time.Parse(time.RFC3339, ts.String)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp: %w", err)
	}
	return t, nil
}

// PruneUsageEvents deletes events older than the given cutoff and returns
// the number removed. Retention is operational policy, not correctness.
func (q *queries) PruneUsageEvents(before time.Time) (int64, error) {
	res, err := q.db.Exec(`
		DELETE FROM usage_events WHERE timestamp < ?
	`, before.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("failed to prune usage events: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get pruned row count: %w", err)
	}
	return n, nil
}

// Hardware fact operations

// ReplaceHardwareFacts swaps the full fact set for the one just observed.
// Superseded facts are replaced, never accumulated. Call inside InTx so
// readers never see a half-replaced set.
func (q *queries) ReplaceHardwareFacts(facts []HardwareFact) error {
	if _, err := q.db.Exec("DELETE FROM hardware_facts"); err != nil {
		return fmt.Errorf("failed to clear hardware facts: %w", err)
	}

	for _, f := range facts {
		_, err := q.db.Exec(`
			INSERT OR REPLACE INTO hardware_facts (class, vendor, model, observed_at)
			VALUES (?, ?, ?, ?)
		`, f.Class, f.Vendor, f.Model, f.ObservedAt.UTC().Format(time.RFC3339))
		if err != nil {
			return fmt.Errorf("failed to insert hardware fact %s/%s: %w", f.Class, f.Vendor, err)
		}
	}
	return nil
}

// ListHardwareFacts returns all facts ordered by class then vendor.
func (q *queries) ListHardwareFacts() ([]HardwareFact, error) {
	rows, err := q.db.Query(`
		SELECT class, vendor, model, observed_at
		FROM hardware_facts
		ORDER BY class, vendor
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list hardware facts: %w", err)
	}
	defer rows.Close()

	var facts []HardwareFact
	for rows.Next() {
		var f HardwareFact
		var model sql.NullString
		var observedAt string
		if err := rows.Scan(&f.Class, &f.Vendor, &model, &observedAt); err != nil {
			return nil, fmt.Errorf("failed to scan hardware fact row: %w", err)
		}
		f.Model = model.String
		f.ObservedAt, err = time.Parse(time.RFC3339, observedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse observed_at: %w", err)
		}
		facts = append(facts, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating hardware facts: %w", err)
	}
	return facts, nil
}

// CountHardwareFacts returns the number of stored hardware facts.
func (q *queries) CountHardwareFacts() (int, error) {
	var count int
	if err := q.db.QueryRow("SELECT COUNT(*) FROM hardware_facts").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count hardware facts: %w", err)
	}
	return count, nil
}

// Recommendation operations

// ReplaceRecommendations atomically swaps the recommendation table for the
// newly computed ranked set. The table is derived and disposable; a failed
// run must leave the previous set fully intact, so call inside InTx.
func (q *queries) ReplaceRecommendations(recs []Recommendation) error {
	if _, err := q.db.Exec("DELETE FROM recommendations"); err != nil {
		return fmt.Errorf("failed to clear recommendations: %w", err)
	}

	for _, r := range recs {
		reasonsJSON, err := json.Marshal(r.Reasons)
		if err != nil {
			return fmt.Errorf("failed to marshal reasons for %s: %w", r.Package, err)
		}
		_, err = q.db.Exec(`
			INSERT INTO recommendations (package, score, reasons, generated_at)
			VALUES (?, ?, ?, ?)
		`, r.Package, r.Score, string(reasonsJSON), r.GeneratedAt.UTC().Format(time.RFC3339))
		if err != nil {
			return fmt.Errorf("failed to insert recommendation %s: %w", r.Package, err)
		}
	}
	return nil
}

// ListRecommendations returns recommendations ordered by score descending,
// ties broken by package name. limit <= 0 means no limit.
func (q *queries) ListRecommendations(limit int) ([]*Recommendation, error) {
	query := `
		SELECT package, score, reasons, generated_at
		FROM recommendations
		ORDER BY score DESC, package ASC
	`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := q.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list recommendations: %w", err)
	}
	defer rows.Close()

	var recs []*Recommendation
	for rows.Next() {
		var r Recommendation
		var reasonsJSON string
		var generatedAt string
		if err := rows.Scan(&r.Package, &r.Score, &reasonsJSON, &generatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan recommendation row: %w", err)
		}
		if err := json.Unmarshal([]byte(reasonsJSON), &r.Reasons); err != nil {
			return nil, fmt.Errorf("failed to unmarshal reasons for %s: %w", r.Package, err)
		}
		r.GeneratedAt, err = time.Parse(time.RFC3339, generatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse generated_at for %s: %w", r.Package, err)
		}
		recs = append(recs, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating recommendations: %w", err)
	}
	return recs, nil
}

// CountRecommendations returns the number of stored recommendations.
func (q *queries) CountRecommendations() (int, error) {
	var count int
	if err := q.db.QueryRow("SELECT COUNT(*) FROM recommendations").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count recommendations: %w", err)
	}
	return count, nil
}
