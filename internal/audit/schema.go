package audit

import "time"

// Action classifies a recorded moderation event.
const (
	ActionIntercept = "intercept"
	ActionRelay     = "relay"
	ActionVote      = "vote"
	ActionMute      = "mute"
	ActionUnmute    = "unmute"
	ActionLink      = "link"
	ActionBroadcast = "broadcast"
)

// Event is one row of the moderation audit log.
type Event struct {
	ID        int64     `json:"id"`
	TraceID   string    `json:"trace_id"`
	GroupID   string    `json:"group_id"`
	UserID    string    `json:"user_id"`
	Action    string    `json:"action"`
	Detail    string    `json:"detail"`
	CreatedAt time.Time `json:"created_at"`
}

// GroupInfo is one row of the known-group registry backing the admin UI
// and the `yunguard groups` command.
type GroupInfo struct {
	GroupID   string    `json:"group_id"`
	Name      string    `json:"name"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}

// Schema is applied on open. Migrations below it are best-effort.
const Schema = `
CREATE TABLE IF NOT EXISTS events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	trace_id TEXT,
	group_id TEXT NOT NULL,
	user_id TEXT,
	action TEXT NOT NULL,
	detail TEXT,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_events_group ON events(group_id);
CREATE INDEX IF NOT EXISTS idx_events_action ON events(action);
CREATE INDEX IF NOT EXISTS idx_events_trace ON events(trace_id);

CREATE TABLE IF NOT EXISTS groups (
	group_id TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	first_seen DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	last_seen DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`
