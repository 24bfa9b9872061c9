package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"sysmon-agent/internal/netif"
)

// Settings are the user-facing options, persisted to a yaml file that the
// desktop frontend (or the user) may also edit. Nil interface lists mean
// the filter is unset; an empty list is a deliberate "match nothing".
type Settings struct {
	IncludeInterfaces []string `yaml:"include_interfaces" json:"include_interfaces"`
	ExcludeInterfaces []string `yaml:"exclude_interfaces" json:"exclude_interfaces"`
	IncludeSwapInRAM  bool     `yaml:"include_swap_in_ram" json:"include_swap_in_ram"`
}

func (s Settings) Filter() netif.Filter {
	return netif.Filter{Include: s.IncludeInterfaces, Exclude: s.ExcludeInterfaces}
}

func (s Settings) clone() Settings {
	out := s
	if s.IncludeInterfaces != nil {
		out.IncludeInterfaces = append([]string(nil), s.IncludeInterfaces...)
	}
	if s.ExcludeInterfaces != nil {
		out.ExcludeInterfaces = append([]string(nil), s.ExcludeInterfaces...)
	}
	return out
}

// Store owns the settings file. Readers take an immutable copy per
// sampling cycle; writes persist first-to-memory so a failed save leaves
// the toggled value in effect until the next load.
type Store struct {
	logger *slog.Logger
	path   string

	mu      sync.RWMutex
	current Settings
}

func LoadStore(path string, logger *slog.Logger) (*Store, error) {
	store := &Store{logger: logger, path: path}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return store, nil
		}
		return nil, fmt.Errorf("read settings %s: %w", path, err)
	}
	var settings Settings
	if err := yaml.Unmarshal(raw, &settings); err != nil {
		return nil, fmt.Errorf("parse settings %s: %w", path, err)
	}
	store.current = settings
	return store, nil
}

// Snapshot returns an immutable copy of the current settings.
func (s *Store) Snapshot() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.clone()
}

// SetIncludeSwapInRAM updates the toggle and persists it. On a persist
// failure the in-memory value stands and the error is returned for the
// caller to log; nothing is silently reverted.
func (s *Store) SetIncludeSwapInRAM(value bool) error {
	s.mu.Lock()
	s.current.IncludeSwapInRAM = value
	settings := s.current.clone()
	s.mu.Unlock()
	return s.save(settings)
}

func (s *Store) save(settings Settings) error {
	raw, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}
	if err := os.WriteFile(s.path, raw, 0o644); err != nil {
		return fmt.Errorf("write settings %s: %w", s.path, err)
	}
	return nil
}

// Watch reloads the settings file when it changes on disk, until the
// context is canceled. The watch is on the parent directory because
// editors typically replace the file (rename) rather than write in place.
func (s *Store) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("settings watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Name != s.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			s.reload()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("settings watcher error", "error", err)
		}
	}
}

func (s *Store) reload() {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		s.logger.Warn("settings reload failed", "path", s.path, "error", err)
		return
	}
	var settings Settings
	if err := yaml.Unmarshal(raw, &settings); err != nil {
		s.logger.Warn("settings reload parse failed", "path", s.path, "error", err)
		return
	}
	s.mu.Lock()
	s.current = settings
	s.mu.Unlock()
	s.logger.Info("settings reloaded", "path", s.path)
}
