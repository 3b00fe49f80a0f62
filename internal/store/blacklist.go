package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// Errors surfaced by blacklist mutations. They become user-visible
// rejection replies at the command layer.
var (
	ErrNotFound      = errors.New("blacklist not found")
	ErrNotAuthorized = errors.New("only the creator may modify this blacklist")
	ErrExists        = errors.New("blacklist already exists")
	ErrBadName       = errors.New("blacklist name is empty after sanitizing")
)

// NamedBlacklist is a user-created blacklist that groups can subscribe
// to. Existence is defined by the underlying file: a loaded record with
// an empty Creator means "does not exist".
type NamedBlacklist struct {
	Name      string    `json:"name"`
	Creator   string    `json:"creator"`
	Users     []string  `json:"users"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Exists reports whether the record is backed by storage.
func (b *NamedBlacklist) Exists() bool {
	return b != nil && b.Creator != ""
}

// BlacklistStore persists named blacklists and serves the global public
// blacklist and banned-word list. The flat global records are
// maintained by an external admin process and are read-only here.
type BlacklistStore struct {
	dir        string
	publicPath string
	wordsPath  string
	mu         sync.Mutex
}

// NewBlacklistStore creates the store rooted at dir.
func NewBlacklistStore(dir string) (*BlacklistStore, error) {
	if err := os.MkdirAll(filepath.Join(dir, "blacklists"), 0755); err != nil {
		return nil, fmt.Errorf("store: create blacklist dir: %w", err)
	}
	return &BlacklistStore{
		dir:        dir,
		publicPath: filepath.Join(dir, "public_blacklist.json"),
		wordsPath:  filepath.Join(dir, "banned_words.json"),
	}, nil
}

func (s *BlacklistStore) namedPath(name string) string {
	return filepath.Join(s.dir, "blacklists", name+".json")
}

// LoadPublic returns the global public blacklist.
func (s *BlacklistStore) LoadPublic() []string {
	return readStringList(s.publicPath)
}

// LoadBannedWords returns the global banned-word list in file order.
func (s *BlacklistStore) LoadBannedWords() []string {
	return readStringList(s.wordsPath)
}

func readStringList(path string) []string {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Error("global list read failed", "path", path, "error", err)
		}
		return nil
	}
	var out []string
	if err := json.Unmarshal(data, &out); err != nil {
		slog.Warn("global list malformed, treated as empty", "path", path, "error", err)
		return nil
	}
	return out
}

// LoadNamed returns the named blacklist, or a non-existent record
// (empty Creator) when there is no such list.
func (s *BlacklistStore) LoadNamed(name string) *NamedBlacklist {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(SanitizeName(name))
}

func (s *BlacklistStore) loadLocked(name string) *NamedBlacklist {
	empty := &NamedBlacklist{Name: name, Users: []string{}}
	if name == "" {
		return empty
	}
	data, err := os.ReadFile(s.namedPath(name))
	if err != nil {
		return empty
	}
	var bl NamedBlacklist
	if err := json.Unmarshal(data, &bl); err != nil {
		slog.Warn("named blacklist malformed", "name", name, "error", err)
		return empty
	}
	if bl.Users == nil {
		bl.Users = []string{}
	}
	bl.Name = name
	return &bl
}

func (s *BlacklistStore) saveLocked(bl *NamedBlacklist) error {
	bl.UpdatedAt = time.Now()
	data, err := json.MarshalIndent(bl, "", "  ")
	if err != nil {
		return err
	}
	path := s.namedPath(bl.Name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Create makes a new named blacklist owned by creatorID. The name is
// sanitized first; collision with an existing record fails with
// ErrExists.
func (s *BlacklistStore) Create(name, creatorID string) (*NamedBlacklist, error) {
	clean := SanitizeName(name)
	if clean == "" {
		return nil, ErrBadName
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loadLocked(clean).Exists() {
		return nil, ErrExists
	}
	bl := &NamedBlacklist{
		Name:      clean,
		Creator:   creatorID,
		Users:     []string{},
		CreatedAt: time.Now(),
	}
	if err := s.saveLocked(bl); err != nil {
		return nil, fmt.Errorf("store: create blacklist %q: %w", clean, err)
	}
	return bl, nil
}

// AddUser adds userID to the list. Only the creator may mutate.
func (s *BlacklistStore) AddUser(name, userID, requesterID string) error {
	return s.mutate(name, requesterID, func(bl *NamedBlacklist) bool {
		var changed bool
		bl.Users, changed = Add(bl.Users, userID)
		return changed
	})
}

// RemoveUser removes userID from the list. Only the creator may mutate.
func (s *BlacklistStore) RemoveUser(name, userID, requesterID string) error {
	return s.mutate(name, requesterID, func(bl *NamedBlacklist) bool {
		var changed bool
		bl.Users, changed = Remove(bl.Users, userID)
		return changed
	})
}

func (s *BlacklistStore) mutate(name, requesterID string, fn func(*NamedBlacklist) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	bl := s.loadLocked(SanitizeName(name))
	if !bl.Exists() {
		return ErrNotFound
	}
	if bl.Creator != requesterID {
		return ErrNotAuthorized
	}
	if !fn(bl) {
		return nil
	}
	if err := s.saveLocked(bl); err != nil {
		return fmt.Errorf("store: save blacklist %q: %w", bl.Name, err)
	}
	return nil
}

// Rename moves oldName to newName atomically: the old record disappears
// and the new one appears in a single filesystem rename.
func (s *BlacklistStore) Rename(oldName, newName, requesterID string) error {
	oldClean := SanitizeName(oldName)
	newClean := SanitizeName(newName)
	if newClean == "" {
		return ErrBadName
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	bl := s.loadLocked(oldClean)
	if !bl.Exists() {
		return ErrNotFound
	}
	if bl.Creator != requesterID {
		return ErrNotAuthorized
	}
	if s.loadLocked(newClean).Exists() {
		return ErrExists
	}

	// Rewrite the record with the new embedded name via a temp file and
	// rename, so an interrupted write never leaves the old record torn.
	// Then move it: old gone and new present in a single rename.
	bl.Name = newClean
	bl.UpdatedAt = time.Now()
	data, err := json.MarshalIndent(bl, "", "  ")
	if err != nil {
		return fmt.Errorf("store: rename blacklist %q: %w", oldClean, err)
	}
	tmp := s.namedPath(oldClean) + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("store: rename blacklist %q: %w", oldClean, err)
	}
	if err := os.Rename(tmp, s.namedPath(oldClean)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("store: rename blacklist %q: %w", oldClean, err)
	}
	if err := os.Rename(s.namedPath(oldClean), s.namedPath(newClean)); err != nil {
		return fmt.Errorf("store: rename blacklist %q: %w", oldClean, err)
	}
	return nil
}

// Delete removes the named blacklist. Only the creator may delete.
func (s *BlacklistStore) Delete(name, requesterID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clean := SanitizeName(name)
	bl := s.loadLocked(clean)
	if !bl.Exists() {
		return ErrNotFound
	}
	if bl.Creator != requesterID {
		return ErrNotAuthorized
	}
	if err := os.Remove(s.namedPath(clean)); err != nil {
		return fmt.Errorf("store: delete blacklist %q: %w", clean, err)
	}
	return nil
}

// ListNames returns all named blacklists, sorted.
func (s *BlacklistStore) ListNames() []string {
	entries, err := os.ReadDir(filepath.Join(s.dir, "blacklists"))
	if err != nil {
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
