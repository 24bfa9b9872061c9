package source

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeCounters(t *testing.T, root, iface string, rx, tx uint64) {
	t.Helper()
	statsDir := filepath.Join(root, iface, "statistics")
	require.NoError(t, os.MkdirAll(statsDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(statsDir, "rx_bytes"), []byte(strconv.FormatUint(rx, 10)+"\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(statsDir, "tx_bytes"), []byte(strconv.FormatUint(tx, 10)+"\n"), 0o644))
}

func TestNetDevRead(t *testing.T) {
	root := t.TempDir()
	writeCounters(t, root, "eth0", 2_000_000, 1_000_000)
	writeCounters(t, root, "wlan0", 512, 128)

	counters := NewNetDev(root).Read([]string{"eth0", "wlan0"})
	require.Len(t, counters, 2)
	require.Equal(t, NetCounters{RxBytes: 2_000_000, TxBytes: 1_000_000}, counters["eth0"])
	require.Equal(t, NetCounters{RxBytes: 512, TxBytes: 128}, counters["wlan0"])
}

func TestNetDevReadDropsVanishedInterface(t *testing.T) {
	root := t.TempDir()
	writeCounters(t, root, "eth0", 100, 200)

	counters := NewNetDev(root).Read([]string{"eth0", "eth1"})
	require.Len(t, counters, 1)
	require.Contains(t, counters, "eth0")
}

func TestNetDevReadGarbageCounterFile(t *testing.T) {
	root := t.TempDir()
	statsDir := filepath.Join(root, "eth0", "statistics")
	require.NoError(t, os.MkdirAll(statsDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(statsDir, "rx_bytes"), []byte("garbage\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(statsDir, "tx_bytes"), []byte("4096\n"), 0o644))

	counters := NewNetDev(root).Read([]string{"eth0"})
	require.Equal(t, NetCounters{RxBytes: 0, TxBytes: 4096}, counters["eth0"])
}
