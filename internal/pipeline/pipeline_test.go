package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fernwell-systems/appscout/internal/catalog"
	"github.com/fernwell-systems/appscout/internal/config"
	"github.com/fernwell-systems/appscout/internal/hardware"
	"github.com/fernwell-systems/appscout/internal/recommend"
	"github.com/fernwell-systems/appscout/internal/store"
	"github.com/fernwell-systems/appscout/internal/usage"
)

type fakeInventory struct {
	pkgs []*store.Package
	err  error
}

func (f *fakeInventory) Observe(ctx context.Context) ([]*store.Package, error) {
	return f.pkgs, f.err
}

type fakeHardware struct {
	facts []hardware.Fact
	err   error
}

func (f *fakeHardware) Scan(ctx context.Context) ([]hardware.Fact, error) {
	return f.facts, f.err
}

type testRig struct {
	db      *store.Store
	inv     *fakeInventory
	hw      *fakeHardware
	dataDir string
	pipe    *Pipeline
}

func newTestRig(t *testing.T, usageCfg config.UsageConfig) *testRig {
	t.Helper()

	db, err := store.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.CreateSchema())

	cat, err := catalog.Default()
	require.NoError(t, err)

	inv := &fakeInventory{}
	hw := &fakeHardware{}
	eng := recommend.New(recommend.DefaultWeights(), usage.DefaultParams())
	dataDir := t.TempDir()

	return &testRig{
		db:      db,
		inv:     inv,
		hw:      hw,
		dataDir: dataDir,
		pipe:    New(db, cat, inv, hw, eng, dataDir, usageCfg, nil),
	}
}

func defaultUsageCfg() config.UsageConfig {
	return config.UsageConfig{WindowDays: 30, HalfLifeDays: 14, SpoolBatch: 1000}
}

func TestRun_FullPass(t *testing.T) {
	rig := newTestRig(t, defaultUsageCfg())
	rig.inv.pkgs = []*store.Package{store.Placeholder("firefox")}
	rig.hw.facts = []hardware.Fact{{Class: "gpu", Vendor: "amd", Model: "Radeon RX 7800"}}

	res, err := rig.pipe.Run(context.Background(), All())
	require.NoError(t, err)

	assert.Equal(t, 1, res.PackagesSeen)
	assert.Equal(t, 1, res.InstallChanges)
	assert.Equal(t, 1, res.HardwareFacts)
	assert.Greater(t, res.Recommendations, 0)

	installed, err := rig.db.InstalledSet()
	require.NoError(t, err)
	assert.True(t, installed["firefox"])

	facts, err := rig.db.ListHardwareFacts()
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, "amd", facts[0].Vendor)

	// Installed packages never appear in the recommendation set.
	recs, err := rig.db.ListRecommendations(0)
	require.NoError(t, err)
	require.NotEmpty(t, recs)
	for _, r := range recs {
		assert.NotEqual(t, "firefox", r.Package)
	}
}

func TestRun_HardwareFailureKeepsStaleFacts(t *testing.T) {
	rig := newTestRig(t, defaultUsageCfg())
	rig.hw.facts = []hardware.Fact{{Class: "gpu", Vendor: "nvidia"}}

	_, err := rig.pipe.Run(context.Background(), Options{Scan: true})
	require.NoError(t, err)

	rig.hw.err = fmt.Errorf("lspci exploded")
	rig.inv.pkgs = []*store.Package{store.Placeholder("vim")}

	res, err := rig.pipe.Run(context.Background(), Options{Scan: true})
	require.ErrorIs(t, err, ErrScan)

	// The package phase still committed.
	require.NotNil(t, res)
	assert.Equal(t, 1, res.PackagesSeen)
	installed, ierr := rig.db.InstalledSet()
	require.NoError(t, ierr)
	assert.True(t, installed["vim"])

	// Old facts survive the failed phase.
	facts, ferr := rig.db.ListHardwareFacts()
	require.NoError(t, ferr)
	require.Len(t, facts, 1)
	assert.Equal(t, "nvidia", facts[0].Vendor)
}

func TestRun_InventoryFailureKeepsStaleInstalledState(t *testing.T) {
	rig := newTestRig(t, defaultUsageCfg())
	rig.inv.pkgs = []*store.Package{store.Placeholder("firefox")}

	_, err := rig.pipe.Run(context.Background(), Options{Scan: true})
	require.NoError(t, err)

	rig.inv.err = errors.New("nix-env not found")
	_, err = rig.pipe.Run(context.Background(), Options{Scan: true})
	require.ErrorIs(t, err, ErrScan)

	installed, err := rig.db.InstalledSet()
	require.NoError(t, err)
	assert.True(t, installed["firefox"], "a failed enumeration must not mark packages uninstalled")
}

func TestRun_UninstallDetectedBetweenRuns(t *testing.T) {
	rig := newTestRig(t, defaultUsageCfg())
	rig.inv.pkgs = []*store.Package{store.Placeholder("firefox"), store.Placeholder("vim")}

	_, err := rig.pipe.Run(context.Background(), Options{Scan: true})
	require.NoError(t, err)

	rig.inv.pkgs = []*store.Package{store.Placeholder("firefox")}
	res, err := rig.pipe.Run(context.Background(), Options{Scan: true})
	require.NoError(t, err)
	assert.Equal(t, 1, res.InstallChanges)

	installed, err := rig.db.InstalledSet()
	require.NoError(t, err)
	assert.True(t, installed["firefox"])
	assert.False(t, installed["vim"])
}

func TestRun_IngestsSpoolAndCommitsOffset(t *testing.T) {
	rig := newTestRig(t, defaultUsageCfg())

	ts := time.Now().Add(-time.Hour)
	line := fmt.Sprintf("%d,org.mozilla.firefox\n", ts.UnixNano())
	spool := filepath.Join(rig.dataDir, usage.SpoolFile)
	require.NoError(t, os.WriteFile(spool, []byte(line), 0o644))

	res, err := rig.pipe.Run(context.Background(), Options{Usage: true})
	require.NoError(t, err)
	assert.Equal(t, 1, res.EventsIngested)

	events, err := rig.db.UsageEvents("firefox", time.Time{})
	require.NoError(t, err)
	assert.Len(t, events, 1)

	// The offset committed, so a second run ingests nothing.
	res, err = rig.pipe.Run(context.Background(), Options{Usage: true})
	require.NoError(t, err)
	assert.Zero(t, res.EventsIngested)

	count, err := rig.db.CountUsageEvents()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRun_RetentionPrunesOldEvents(t *testing.T) {
	cfg := defaultUsageCfg()
	cfg.RetentionDays = 30
	rig := newTestRig(t, cfg)

	_, err := rig.db.AppendUsageEvents([]store.UsageEvent{
		{Package: "git", Kind: store.EventLaunch, Timestamp: time.Now().AddDate(0, 0, -100)},
		{Package: "git", Kind: store.EventLaunch, Timestamp: time.Now().AddDate(0, 0, -1)},
	})
	require.NoError(t, err)

	res, err := rig.pipe.Run(context.Background(), Options{Usage: true})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.EventsPruned)

	count, err := rig.db.CountUsageEvents()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRun_CatalogSyncSeedsCandidates(t *testing.T) {
	rig := newTestRig(t, defaultUsageCfg())

	_, err := rig.pipe.Run(context.Background(), Options{Recommend: true})
	require.NoError(t, err)

	candidates, err := rig.db.CatalogPackages()
	require.NoError(t, err)
	assert.NotEmpty(t, candidates, "catalog entries should be synced into the packages table")
}
