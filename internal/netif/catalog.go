package netif

import (
	"os"
	"path/filepath"
	"sort"
	"time"
)

// DefaultSysRoot is the kernel's network device namespace.
const DefaultSysRoot = "/sys/class/net"

// RefreshInterval bounds how often the filesystem is re-enumerated. The
// sampling tick is much faster; hot-plugged devices appear within this
// window.
const RefreshInterval = 10 * time.Second

// Filter is the user-controlled interface selection. A nil slice means
// the filter is unset. When a name appears in both lists, exclude wins.
type Filter struct {
	Include []string
	Exclude []string
}

// Catalog is the set of physical interface names from one discovery pass.
// Rebuilding fully replaces the previous value; there is no incremental
// mutation, so a stale scan can never leave ghost entries behind.
type Catalog struct {
	Interfaces  []string
	RefreshedAt time.Time
}

func (c Catalog) Stale(now time.Time) bool {
	return now.Sub(c.RefreshedAt) > RefreshInterval
}

func (c Catalog) Contains(name string) bool {
	for _, iface := range c.Interfaces {
		if iface == name {
			return true
		}
	}
	return false
}

// Discover enumerates sysRoot and returns the sorted names of physical
// interfaces that pass the filter. An interface is physical when it has a
// backing device descriptor (<sysRoot>/<name>/device); loopback, bridges
// and veth pairs do not. An unreadable sysRoot yields an empty set; the
// sampling loop treats that as zero throughput, not a failure.
func Discover(sysRoot string, filter Filter) Catalog {
	entries, err := os.ReadDir(sysRoot)
	if err != nil {
		return Catalog{Interfaces: []string{}, RefreshedAt: time.Now()}
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if _, err := os.Stat(filepath.Join(sysRoot, name, "device")); err != nil {
			continue
		}
		names = append(names, name)
	}

	names = applyFilter(names, filter)
	sort.Strings(names)
	return Catalog{Interfaces: names, RefreshedAt: time.Now()}
}

func applyFilter(names []string, filter Filter) []string {
	if filter.Include != nil {
		kept := names[:0]
		for _, name := range names {
			if containsName(filter.Include, name) {
				kept = append(kept, name)
			}
		}
		names = kept
	}
	if filter.Exclude != nil {
		kept := names[:0]
		for _, name := range names {
			if !containsName(filter.Exclude, name) {
				kept = append(kept, name)
			}
		}
		names = kept
	}
	return names
}

func containsName(list []string, name string) bool {
	for _, candidate := range list {
		if candidate == name {
			return true
		}
	}
	return false
}
