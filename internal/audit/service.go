// Package audit keeps a sqlite log of moderation actions and a registry
// of groups the bot has seen. The log feeds the admin UI; losing a row
// never affects moderation decisions, so writers treat failures as
// log-and-continue.
package audit

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Service wraps the audit database.
type Service struct {
	db *sql.DB
}

// Open opens (and creates) the audit database at dbPath.
func Open(dbPath string) (*Service, error) {
	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("audit: open db: %w", err)
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit: apply schema: %w", err)
	}
	return &Service{db: db}, nil
}

// Close closes the database.
func (s *Service) Close() error {
	return s.db.Close()
}

// Record appends one event.
func (s *Service) Record(ev Event) error {
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(
		`INSERT INTO events (trace_id, group_id, user_id, action, detail, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		ev.TraceID, ev.GroupID, ev.UserID, ev.Action, ev.Detail, ev.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("audit: record event: %w", err)
	}
	return nil
}

// Recent returns up to limit events, newest first.
func (s *Service) Recent(limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(
		`SELECT id, trace_id, group_id, user_id, action, detail, created_at
		 FROM events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("audit: query events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var ev Event
		if err := rows.Scan(&ev.ID, &ev.TraceID, &ev.GroupID, &ev.UserID, &ev.Action, &ev.Detail, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("audit: scan event: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// RecentForGroup returns up to limit events for one group, newest first.
func (s *Service) RecentForGroup(groupID string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(
		`SELECT id, trace_id, group_id, user_id, action, detail, created_at
		 FROM events WHERE group_id = ? ORDER BY id DESC LIMIT ?`, groupID, limit)
	if err != nil {
		return nil, fmt.Errorf("audit: query events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var ev Event
		if err := rows.Scan(&ev.ID, &ev.TraceID, &ev.GroupID, &ev.UserID, &ev.Action, &ev.Detail, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("audit: scan event: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// TouchGroup upserts the group registry entry, refreshing last_seen and
// the display name when one is known.
func (s *Service) TouchGroup(groupID, name string) error {
	now := time.Now().UTC()
	_, err := s.db.Exec(`
		INSERT INTO groups (group_id, name, first_seen, last_seen) VALUES (?, ?, ?, ?)
		ON CONFLICT(group_id) DO UPDATE SET
			last_seen = excluded.last_seen,
			name = CASE WHEN excluded.name != '' THEN excluded.name ELSE groups.name END`,
		groupID, name, now, now)
	if err != nil {
		return fmt.Errorf("audit: touch group: %w", err)
	}
	return nil
}

// Groups returns the registry, most recently seen first.
func (s *Service) Groups() ([]GroupInfo, error) {
	rows, err := s.db.Query(`SELECT group_id, name, first_seen, last_seen FROM groups ORDER BY last_seen DESC`)
	if err != nil {
		return nil, fmt.Errorf("audit: query groups: %w", err)
	}
	defer rows.Close()

	var out []GroupInfo
	for rows.Next() {
		var g GroupInfo
		if err := rows.Scan(&g.GroupID, &g.Name, &g.FirstSeen, &g.LastSeen); err != nil {
			return nil, fmt.Errorf("audit: scan group: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}
