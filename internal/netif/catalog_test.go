package netif

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeSysClassNet builds a synthetic /sys/class/net tree. Interfaces in
// physical get a device descriptor; the rest are virtual.
func fakeSysClassNet(t *testing.T, physical, virtual []string) string {
	t.Helper()
	root := t.TempDir()
	for _, name := range physical {
		require.NoError(t, os.MkdirAll(filepath.Join(root, name, "device"), 0o755))
	}
	for _, name := range virtual {
		require.NoError(t, os.MkdirAll(filepath.Join(root, name), 0o755))
	}
	return root
}

func TestDiscoverKeepsOnlyPhysicalInterfaces(t *testing.T) {
	root := fakeSysClassNet(t, []string{"eth0", "wlan0"}, []string{"lo", "docker0", "veth12ab"})

	catalog := Discover(root, Filter{})
	require.Equal(t, []string{"eth0", "wlan0"}, catalog.Interfaces)
}

func TestDiscoverExcludeWinsOverInclude(t *testing.T) {
	root := fakeSysClassNet(t, []string{"eth0", "eth1", "wlan0"}, nil)

	catalog := Discover(root, Filter{
		Include: []string{"eth0", "eth1"},
		Exclude: []string{"eth1"},
	})
	require.Equal(t, []string{"eth0"}, catalog.Interfaces)
}

func TestDiscoverIncludeFilter(t *testing.T) {
	root := fakeSysClassNet(t, []string{"eth0", "eth1", "wlan0"}, nil)

	catalog := Discover(root, Filter{Include: []string{"wlan0"}})
	require.Equal(t, []string{"wlan0"}, catalog.Interfaces)
}

func TestDiscoverEmptyIncludeListSelectsNothing(t *testing.T) {
	// A present-but-empty include list means "include nothing", which is
	// distinct from a nil (unset) filter.
	root := fakeSysClassNet(t, []string{"eth0"}, nil)

	catalog := Discover(root, Filter{Include: []string{}})
	require.Empty(t, catalog.Interfaces)
}

func TestDiscoverMissingRoot(t *testing.T) {
	catalog := Discover(filepath.Join(t.TempDir(), "does-not-exist"), Filter{})
	require.NotNil(t, catalog.Interfaces)
	require.Empty(t, catalog.Interfaces)
}

func TestDiscoverIdempotentWithoutTopologyChanges(t *testing.T) {
	root := fakeSysClassNet(t, []string{"eth1", "eth0", "enp3s0"}, []string{"lo"})

	first := Discover(root, Filter{})
	second := Discover(root, Filter{})
	require.Equal(t, first.Interfaces, second.Interfaces)
	require.Equal(t, []string{"enp3s0", "eth0", "eth1"}, first.Interfaces)
}

func TestCatalogStale(t *testing.T) {
	now := time.Now()
	catalog := Catalog{RefreshedAt: now}

	require.False(t, catalog.Stale(now.Add(5*time.Second)))
	require.True(t, catalog.Stale(now.Add(11*time.Second)))
}
