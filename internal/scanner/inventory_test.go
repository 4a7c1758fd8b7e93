package scanner

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fernwell-systems/appscout/internal/catalog"
	"github.com/fernwell-systems/appscout/internal/nixpkgs"
	"github.com/fernwell-systems/appscout/internal/store"
)

type fakeLister struct {
	pkgs []nixpkgs.InstalledPackage
	err  error
}

func (f *fakeLister) ListInstalled(ctx context.Context) ([]nixpkgs.InstalledPackage, error) {
	return f.pkgs, f.err
}

func TestObserve_ResolvesCatalogEntries(t *testing.T) {
	cat, err := catalog.Default()
	require.NoError(t, err)

	lister := &fakeLister{pkgs: []nixpkgs.InstalledPackage{
		{Name: "firefox", Version: "122.0"},
		{Name: "obscure-internal-tool", Version: "1.0"},
	}}

	obs, err := New(lister, cat).Observe(context.Background())
	require.NoError(t, err)
	require.Len(t, obs, 2)

	// Known package carries catalog metadata.
	assert.Equal(t, store.SourceCatalog, obs[0].Source)
	assert.NotEqual(t, store.CategoryUnknown, obs[0].Category)

	// Unknown package becomes a placeholder, never dropped.
	assert.Equal(t, "obscure-internal-tool", obs[1].Name)
	assert.Equal(t, store.SourceObserved, obs[1].Source)
	assert.Equal(t, store.CategoryUnknown, obs[1].Category)
}

func TestObserve_ListerErrorPropagates(t *testing.T) {
	cat, err := catalog.Default()
	require.NoError(t, err)

	boom := errors.New("nix-env timed out")
	_, err = New(&fakeLister{err: boom}, cat).Observe(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestObserve_EmptySystem(t *testing.T) {
	cat, err := catalog.Default()
	require.NoError(t, err)

	obs, err := New(&fakeLister{}, cat).Observe(context.Background())
	require.NoError(t, err)
	assert.Empty(t, obs)
}
