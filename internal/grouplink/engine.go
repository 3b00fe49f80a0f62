// Package grouplink manages the request/verify handshake that links two
// groups for message relay. Pending verifications live only in memory
// and expire after a short TTL; confirmed links are persisted in both
// groups' configs.
package grouplink

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
	ErrNoPending     = errors.New("no pending link verification for this group")
	ErrNotAuthorized = errors.New("only a group owner or administrator may confirm a link")
	ErrSelfLink      = errors.New("a group cannot link to itself")
	ErrAlreadyLinked = errors.New("groups are already linked")
)

// Notifier sends the group-facing notices.
type Notifier interface {
	SendText(ctx context.Context, recvID, recvType, text string) (*openapi.Result, error)
}

type pending struct {
	source  string
	created time.Time
}

// Engine tracks pending link verifications, keyed by target group.
type Engine struct {
	store *store.Store
	api   Notifier
	audit *audit.Service
	ttl   time.Duration

	mu      sync.Mutex
	pending map[string]pending
}

// New creates an engine. Pending requests older than ttl are dropped by
// Sweep.
func New(s *store.Store, api Notifier, auditSvc *audit.Service, ttl time.Duration) *Engine {
	return &Engine{
		store:   s,
		api:     api,
		audit:   auditSvc,
		ttl:     ttl,
		pending: make(map[string]pending),
	}
}

// RequestLink starts the handshake: it notifies the target group and
// records a pending verification. A later request for the same target
// restarts the clock.
func (e *Engine) RequestLink(ctx context.Context, sourceGroupID, targetGroupID string) error {
	if sourceGroupID == targetGroupID {
		return ErrSelfLink
	}
	if store.Contains(e.store.Load(sourceGroupID).CrossGroup.LinkedGroups, targetGroupID) {
		return ErrAlreadyLinked
	}

	e.mu.Lock()
	e.pending[targetGroupID] = pending{source: sourceGroupID, created: time.Now()}
	e.mu.Unlock()

	notice := fmt.Sprintf(
		"Group %s requests a message relay link with this group. An owner or administrator can confirm with /linkconfirm within %s.",
		sourceGroupID, e.ttl)
	if res, err := e.api.SendText(ctx, targetGroupID, openapi.RecvTypeGroup, notice); err != nil {
		slog.Warn("link request notice failed", "source", sourceGroupID, "target", targetGroupID, "error", err)
	} else if !res.Ok() {
		slog.Warn("link request notice rejected", "source", sourceGroupID, "target", targetGroupID, "code", res.Code)
	}
	return nil
}

// ConfirmLink completes the handshake from inside the target group. It
// adds each group to the other's linkedGroups, notifies both sides, and
// clears the pending record.
func (e *Engine) ConfirmLink(ctx context.Context, groupID string, privileged bool) error {
	e.mu.Lock()
	p, ok := e.pending[groupID]
	if ok && time.Since(p.created) >= e.ttl {
		delete(e.pending, groupID)
		ok = false
	}
	if !ok {
		e.mu.Unlock()
		return ErrNoPending
	}
	if !privileged {
		e.mu.Unlock()
		return ErrNotAuthorized
	}
	delete(e.pending, groupID)
	e.mu.Unlock()

	for _, pair := range [][2]string{{p.source, groupID}, {groupID, p.source}} {
		cfg := e.store.Load(pair[0])
		cfg.CrossGroup.Enabled = true
		var changed bool
		cfg.CrossGroup.LinkedGroups, changed = store.Add(cfg.CrossGroup.LinkedGroups, pair[1])
		if changed && !e.store.Save(pair[0], cfg) {
			return fmt.Errorf("grouplink: persist link %s<->%s failed", p.source, groupID)
		}
	}

	for _, gid := range []string{p.source, groupID} {
		other := p.source
		if gid == p.source {
			other = groupID
		}
		if res, err := e.api.SendText(ctx, gid, openapi.RecvTypeGroup, fmt.Sprintf("Relay link with group %s is now active.", other)); err != nil {
			slog.Warn("link notice failed", "group", gid, "error", err)
		} else if !res.Ok() {
			slog.Warn("link notice rejected", "group", gid, "code", res.Code)
		}
	}

	if e.audit != nil {
		_ = e.audit.Record(audit.Event{GroupID: groupID, Action: audit.ActionLink, Detail: "with " + p.source})
	}
	return nil
}

// HasPending reports whether a verification is pending for groupID.
func (e *Engine) HasPending(groupID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.pending[groupID]
	return ok
}

// Sweep silently drops pending verifications older than the TTL.
func (e *Engine) Sweep(now time.Time) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	dropped := 0
	for gid, p := range e.pending {
		if now.Sub(p.created) >= e.ttl {
			delete(e.pending, gid)
			dropped++
		}
	}
	return dropped
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
				slog.Debug("expired link verifications dropped", "count", n)
			}
		}
	}
}

// Unlink removes the relay link between two groups from both configs.
func (e *Engine) Unlink(ctx context.Context, groupID, peerID string) error {
	for _, pair := range [][2]string{{groupID, peerID}, {peerID, groupID}} {
		cfg := e.store.Load(pair[0])
		var changed bool
		cfg.CrossGroup.LinkedGroups, changed = store.Remove(cfg.CrossGroup.LinkedGroups, pair[1])
		if changed && !e.store.Save(pair[0], cfg) {
			return fmt.Errorf("grouplink: persist unlink %s<->%s failed", groupID, peerID)
		}
	}
	if e.audit != nil {
		_ = e.audit.Record(audit.Event{GroupID: groupID, Action: audit.ActionLink, Detail: "unlinked " + peerID})
	}
	return nil
}
