// Package votemute tracks per-group vote tallies toward muting a user.
// Sessions live only in memory; the muted-user list is the durable part
// and lives in the group config.
package votemute

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/YunGuard/YunGuard/internal/audit"
	"github.com/YunGuard/YunGuard/internal/openapi"
	"github.com/YunGuard/YunGuard/internal/store"
)

// Errors surfaced to the command layer.
var (
	ErrNotAuthorized = errors.New("requester may not unmute")
	ErrNotMuted      = errors.New("user is not muted")
)

// Rejection reasons reported in VoteResult.
const (
	ReasonDisabled     = "voting disabled"
	ReasonNotAdmin     = "voter is not a vote admin"
	ReasonSelfVote     = "cannot vote against yourself"
	ReasonAlreadyMuted = "target is already muted"
	ReasonDuplicate    = "voter already voted in this session"
)

// Notifier sends the group-facing announcements.
type Notifier interface {
	SendText(ctx context.Context, recvID, recvType, text string) (*openapi.Result, error)
}

// VoteResult reports the outcome of one cast vote.
type VoteResult struct {
	Accepted bool
	Reason   string
	Count    int
	Required int
	Passed   bool
}

type session struct {
	target  string
	voters  map[string]struct{}
	started time.Time
}

// Engine holds at most one active session per group.
type Engine struct {
	store *store.Store
	api   Notifier
	audit *audit.Service
	ttl   time.Duration

	mu       sync.Mutex
	sessions map[string]*session
}

// New creates an engine. Sessions older than ttl are purged by Sweep.
func New(s *store.Store, api Notifier, auditSvc *audit.Service, ttl time.Duration) *Engine {
	return &Engine{
		store:    s,
		api:      api,
		audit:    auditSvc,
		ttl:      ttl,
		sessions: make(map[string]*session),
	}
}

// required is ceil(admins * threshold / 100).
func required(admins, threshold int) int {
	return (admins*threshold + 99) / 100
}

// CastVote records one vote from voterID against targetID. A vote
// against a different target than the active session's replaces the
// session, discarding prior votes.
func (e *Engine) CastVote(ctx context.Context, groupID, voterID, targetID string) VoteResult {
	cfg := e.store.Load(groupID)
	need := required(len(cfg.VoteMute.Admins), cfg.VoteMute.Threshold)

	reject := func(reason string, count int) VoteResult {
		return VoteResult{Reason: reason, Count: count, Required: need}
	}
	switch {
	case !cfg.VoteMute.Enabled:
		return reject(ReasonDisabled, 0)
	case !store.Contains(cfg.VoteMute.Admins, voterID):
		return reject(ReasonNotAdmin, 0)
	case voterID == targetID:
		return reject(ReasonSelfVote, 0)
	case store.Contains(cfg.VoteMute.MutedUsers, targetID):
		return reject(ReasonAlreadyMuted, 0)
	}

	e.mu.Lock()
	sess := e.sessions[groupID]
	if sess == nil || sess.target != targetID {
		sess = &session{target: targetID, voters: make(map[string]struct{}), started: time.Now()}
		e.sessions[groupID] = sess
	}
	if _, dup := sess.voters[voterID]; dup {
		count := len(sess.voters)
		e.mu.Unlock()
		return reject(ReasonDuplicate, count)
	}
	sess.voters[voterID] = struct{}{}
	count := len(sess.voters)
	passed := count >= need
	if passed {
		delete(e.sessions, groupID)
	}
	e.mu.Unlock()

	if e.audit != nil {
		_ = e.audit.Record(audit.Event{
			GroupID: groupID,
			UserID:  targetID,
			Action:  audit.ActionVote,
			Detail:  fmt.Sprintf("by %s (%d/%d)", voterID, count, need),
		})
	}

	if passed {
		e.applyMute(ctx, groupID, targetID)
	}
	return VoteResult{Accepted: true, Count: count, Required: need, Passed: passed}
}

// applyMute appends the target to the persisted muted list and notifies
// the group. The re-load keeps the read-modify-write against the latest
// config.
func (e *Engine) applyMute(ctx context.Context, groupID, targetID string) {
	cfg := e.store.Load(groupID)
	var changed bool
	cfg.VoteMute.MutedUsers, changed = store.Add(cfg.VoteMute.MutedUsers, targetID)
	if changed && !e.store.Save(groupID, cfg) {
		slog.Error("mute persist failed", "group", groupID, "target", targetID)
	}

	if res, err := e.api.SendText(ctx, groupID, openapi.RecvTypeGroup, fmt.Sprintf("Vote passed: %s is now muted.", targetID)); err != nil {
		slog.Warn("mute notice failed", "group", groupID, "error", err)
	} else if !res.Ok() {
		slog.Warn("mute notice rejected", "group", groupID, "code", res.Code)
	}

	if e.audit != nil {
		_ = e.audit.Record(audit.Event{GroupID: groupID, UserID: targetID, Action: audit.ActionMute})
	}
}

// Unmute removes targetID from the persisted muted list. The requester
// must hold an owner/administrator role claim; the vote-admin list does
// not count here.
func (e *Engine) Unmute(ctx context.Context, groupID, requesterID string, privileged bool, targetID string) error {
	if !privileged {
		return ErrNotAuthorized
	}
	cfg := e.store.Load(groupID)
	var changed bool
	cfg.VoteMute.MutedUsers, changed = store.Remove(cfg.VoteMute.MutedUsers, targetID)
	if !changed {
		return ErrNotMuted
	}
	if !e.store.Save(groupID, cfg) {
		return fmt.Errorf("votemute: persist unmute of %s in %s failed", targetID, groupID)
	}
	if e.audit != nil {
		_ = e.audit.Record(audit.Event{GroupID: groupID, UserID: targetID, Action: audit.ActionUnmute, Detail: "by " + requesterID})
	}
	return nil
}

// Sweep purges sessions older than the TTL. Purging is silent: the
// group is not notified. Returns the number purged.
func (e *Engine) Sweep(now time.Time) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	purged := 0
	for groupID, sess := range e.sessions {
		if now.Sub(sess.started) >= e.ttl {
			delete(e.sessions, groupID)
			purged++
		}
	}
	return purged
}

// RunSweeper runs Sweep every interval until ctx is cancelled.
func (e *Engine) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := e.Sweep(now); n > 0 {
				slog.Debug("expired vote sessions purged", "count", n)
			}
		}
	}
}

// ActiveTarget returns the target of the group's active session, if any.
func (e *Engine) ActiveTarget(groupID string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	sess, ok := e.sessions[groupID]
	if !ok {
		return "", false
	}
	return sess.target, true
}
