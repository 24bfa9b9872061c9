package source

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// NetCounters are cumulative byte counters for one interface since the
// device (or kernel counter) came up. Rate conversion happens in the
// collector's delta engine, not here.
type NetCounters struct {
	RxBytes uint64
	TxBytes uint64
}

// NetDev reads per-interface cumulative counters from the sysfs
// statistics files.
type NetDev struct {
	sysRoot string
}

func NewNetDev(sysRoot string) *NetDev {
	return &NetDev{sysRoot: sysRoot}
}

// Read returns counters for each named interface. An interface that
// vanished since discovery reads as zero; it is dropped from the result
// rather than reported as an error so one unplugged NIC cannot fail the
// cycle.
func (n *NetDev) Read(interfaces []string) map[string]NetCounters {
	counters := make(map[string]NetCounters, len(interfaces))
	for _, name := range interfaces {
		statsDir := filepath.Join(n.sysRoot, name, "statistics")
		rx, rxOK := readUintFile(filepath.Join(statsDir, "rx_bytes"))
		tx, txOK := readUintFile(filepath.Join(statsDir, "tx_bytes"))
		if !rxOK && !txOK {
			continue
		}
		counters[name] = NetCounters{RxBytes: rx, TxBytes: tx}
	}
	return counters
}

func readUintFile(path string) (uint64, bool) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return 0, false
	}
	value, err := strconv.ParseUint(strings.Fields(text)[0], 10, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}
