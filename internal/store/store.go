package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"
)

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SanitizeName reduces an identifier to a safe filename charset.
func SanitizeName(name string) string {
	name = unsafeNameChars.ReplaceAllString(strings.TrimSpace(name), "")
	return strings.Trim(name, ".")
}

// Store is the per-group config store: one JSON file per group under
// dir/groups, fronted by a TTL read-through cache. A save refreshes the
// cache entry for its key, so a reader never observes a value staler
// than its own latest write.
type Store struct {
	dir      string
	cacheTTL time.Duration

	mu    sync.Mutex
	cache map[string]cacheEntry
}

type cacheEntry struct {
	cfg     *GroupConfig
	fetched time.Time
}

// NewStore creates the store rooted at dir.
func NewStore(dir string, cacheTTL time.Duration) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(dir, "groups"), 0755); err != nil {
		return nil, fmt.Errorf("store: create group dir: %w", err)
	}
	return &Store{
		dir:      dir,
		cacheTTL: cacheTTL,
		cache:    make(map[string]cacheEntry),
	}, nil
}

func (s *Store) groupPath(groupID string) string {
	return filepath.Join(s.dir, "groups", SanitizeName(groupID)+".json")
}

// Load returns the fully-defaulted config for groupID. A missing record
// is synthesized and persisted; a malformed record is backed up with a
// timestamp and replaced by the default. Load never fails.
func (s *Store) Load(groupID string) *GroupConfig {
	s.mu.Lock()
	if e, ok := s.cache[groupID]; ok && time.Since(e.fetched) < s.cacheTTL {
		cfg := e.cfg.Clone()
		s.mu.Unlock()
		return cfg
	}
	s.mu.Unlock()

	path := s.groupPath(groupID)
	cfg := DefaultGroupConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if uerr := json.Unmarshal(data, cfg); uerr != nil {
			backup := fmt.Sprintf("%s.corrupt.%d", path, time.Now().Unix())
			if rerr := os.Rename(path, backup); rerr != nil {
				slog.Error("group config corrupt, backup failed", "group", groupID, "error", rerr)
			} else {
				slog.Warn("group config corrupt, backed up", "group", groupID, "backup", backup, "error", uerr)
			}
			cfg = DefaultGroupConfig()
			s.Save(groupID, cfg)
		}
	case os.IsNotExist(err):
		s.Save(groupID, cfg)
	default:
		slog.Error("group config read failed, using defaults", "group", groupID, "error", err)
	}

	cfg.Normalize()
	s.mu.Lock()
	s.cache[groupID] = cacheEntry{cfg: cfg.Clone(), fetched: time.Now()}
	s.mu.Unlock()
	return cfg
}

// Peek returns the config for groupID without materializing a record
// for groups the store has never seen. The second return reports
// whether a record exists; when it is false the returned config is the
// default and nothing is written to disk or cached.
func (s *Store) Peek(groupID string) (*GroupConfig, bool) {
	s.mu.Lock()
	if e, ok := s.cache[groupID]; ok && time.Since(e.fetched) < s.cacheTTL {
		cfg := e.cfg.Clone()
		s.mu.Unlock()
		return cfg, true
	}
	s.mu.Unlock()

	data, err := os.ReadFile(s.groupPath(groupID))
	if err != nil {
		cfg := DefaultGroupConfig()
		cfg.Normalize()
		return cfg, false
	}
	cfg := DefaultGroupConfig()
	if uerr := json.Unmarshal(data, cfg); uerr != nil {
		slog.Warn("group config unreadable on peek", "group", groupID, "error", uerr)
		cfg = DefaultGroupConfig()
	}
	cfg.Normalize()
	return cfg, true
}

// Save persists cfg via write-temp-then-rename so readers never see a
// partial record. Failures are logged and reported as false; they never
// crash the caller.
func (s *Store) Save(groupID string, cfg *GroupConfig) bool {
	cfg.Normalize()
	path := s.groupPath(groupID)

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		slog.Error("group config marshal failed", "group", groupID, "error", err)
		return false
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		slog.Error("group config write failed", "group", groupID, "error", err)
		return false
	}
	if err := os.Rename(tmp, path); err != nil {
		slog.Error("group config rename failed", "group", groupID, "error", err)
		os.Remove(tmp)
		return false
	}

	s.mu.Lock()
	s.cache[groupID] = cacheEntry{cfg: cfg.Clone(), fetched: time.Now()}
	s.mu.Unlock()
	return true
}

// List enumerates known group IDs from the directory listing.
func (s *Store) List() []string {
	entries, err := os.ReadDir(filepath.Join(s.dir, "groups"))
	if err != nil {
		slog.Error("group dir listing failed", "error", err)
		return nil
	}
	var out []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		out = append(out, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(out)
	return out
}

// Invalidate drops the cache entry for groupID.
func (s *Store) Invalidate(groupID string) {
	s.mu.Lock()
	delete(s.cache, groupID)
	s.mu.Unlock()
}
