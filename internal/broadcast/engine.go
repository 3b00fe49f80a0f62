// Package broadcast runs per-group scheduled announcements. Each
// enabled group gets its own ticker goroutine; schedules persist in the
// group config and are rehydrated on startup.
package broadcast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/YunGuard/YunGuard/internal/audit"
	"github.com/YunGuard/YunGuard/internal/openapi"
	"github.com/YunGuard/YunGuard/internal/store"
)

var (
	ErrBadInterval = errors.New("broadcast interval must be a positive number of minutes")
	ErrEmptyBody   = errors.New("broadcast content must not be empty")
	ErrNoTargets   = errors.New("broadcast has no target groups")
)

// Sender sends the broadcast lines.
type Sender interface {
	SendText(ctx context.Context, recvID, recvType, text string) (*openapi.Result, error)
	SendMarkdown(ctx context.Context, recvID, recvType, text string) (*openapi.Result, error)
	BatchSend(ctx context.Context, recvIDs []string, recvType, contentType, text string) (*openapi.Result, error)
}

// Engine owns one timer per broadcasting group.
type Engine struct {
	store     *store.Store
	api       Sender
	audit     *audit.Service
	lineDelay time.Duration

	mu     sync.Mutex
	timers map[string]context.CancelFunc
	wg     sync.WaitGroup
}

func New(s *store.Store, api Sender, auditSvc *audit.Service, lineDelay time.Duration) *Engine {
	return &Engine{
		store:     s,
		api:       api,
		audit:     auditSvc,
		lineDelay: lineDelay,
		timers:    make(map[string]context.CancelFunc),
	}
}

// Setup validates and persists a schedule, replaces any running timer
// for the group, sends the content once immediately, and then repeats
// every intervalMinutes.
func (e *Engine) Setup(ctx context.Context, groupID string, intervalMinutes int, content string) error {
	if intervalMinutes <= 0 {
		return ErrBadInterval
	}
	if strings.TrimSpace(content) == "" {
		return ErrEmptyBody
	}

	cfg := e.store.Load(groupID)
	cfg.Scheduled.Enabled = true
	cfg.Scheduled.Interval = intervalMinutes
	cfg.Scheduled.Content = content
	if !e.store.Save(groupID, cfg) {
		return fmt.Errorf("broadcast: persist schedule for %s failed", groupID)
	}

	e.start(ctx, groupID, time.Duration(intervalMinutes)*time.Minute, content, true)

	if e.audit != nil {
		_ = e.audit.Record(audit.Event{
			GroupID: groupID,
			Action:  audit.ActionBroadcast,
			Detail:  fmt.Sprintf("scheduled every %dm", intervalMinutes),
		})
	}
	return nil
}

// Clear stops the group's timer and persists the disabled schedule.
func (e *Engine) Clear(groupID string) error {
	e.stop(groupID)

	cfg := e.store.Load(groupID)
	cfg.Scheduled.Enabled = false
	cfg.Scheduled.Interval = 0
	cfg.Scheduled.Content = ""
	if !e.store.Save(groupID, cfg) {
		return fmt.Errorf("broadcast: persist cleared schedule for %s failed", groupID)
	}
	if e.audit != nil {
		_ = e.audit.Record(audit.Event{GroupID: groupID, Action: audit.ActionBroadcast, Detail: "cleared"})
	}
	return nil
}

// RestoreAll rehydrates timers for every group with a persisted
// schedule. Restored timers wait a full interval before the first send
// so a restart does not double-post.
func (e *Engine) RestoreAll(ctx context.Context) int {
	restored := 0
	for _, gid := range e.store.List() {
		cfg := e.store.Load(gid)
		if !cfg.Scheduled.Enabled || cfg.Scheduled.Interval <= 0 || cfg.Scheduled.Content == "" {
			continue
		}
		e.start(ctx, gid, time.Duration(cfg.Scheduled.Interval)*time.Minute, cfg.Scheduled.Content, false)
		restored++
	}
	if restored > 0 {
		slog.Info("broadcast schedules restored", "count", restored)
	}
	return restored
}

// Announce sends content once to every group in groupIDs through the
// batch endpoint, line by line like a scheduled delivery. Lines the
// markdown filter bounces are retried once as plain text to the whole
// batch.
func (e *Engine) Announce(ctx context.Context, groupIDs []string, content string) error {
	if len(groupIDs) == 0 {
		return ErrNoTargets
	}
	if strings.TrimSpace(content) == "" {
		return ErrEmptyBody
	}

	lines := strings.Split(content, "\n")
	sent := 0
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if sent > 0 && e.lineDelay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(e.lineDelay):
			}
		}
		e.batchLine(ctx, groupIDs, line)
		sent++
	}

	if e.audit != nil {
		_ = e.audit.Record(audit.Event{
			Action: audit.ActionBroadcast,
			Detail: fmt.Sprintf("announced to %d groups", len(groupIDs)),
		})
	}
	return nil
}

func (e *Engine) batchLine(ctx context.Context, groupIDs []string, line string) {
	res, err := e.api.BatchSend(ctx, groupIDs, openapi.RecvTypeGroup, openapi.ContentMarkdown, line)
	if err != nil {
		slog.Warn("announce line failed", "groups", len(groupIDs), "error", err)
		return
	}
	if res.Ok() {
		return
	}
	if res.Code == openapi.CodeContentRejected {
		retry, retryErr := e.api.BatchSend(ctx, groupIDs, openapi.RecvTypeGroup, openapi.ContentText, line)
		if retryErr == nil && retry.Ok() {
			return
		}
	}
	slog.Warn("announce line rejected", "groups", len(groupIDs), "code", res.Code, "msg", res.Msg)
}

// Active reports whether the group has a running timer.
func (e *Engine) Active(groupID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.timers[groupID]
	return ok
}

// Shutdown stops all timers and waits for in-flight sends to finish.
func (e *Engine) Shutdown() {
	e.mu.Lock()
	for gid, cancel := range e.timers {
		cancel()
		delete(e.timers, gid)
	}
	e.mu.Unlock()
	e.wg.Wait()
}

func (e *Engine) start(ctx context.Context, groupID string, interval time.Duration, content string, sendNow bool) {
	e.mu.Lock()
	if cancel, ok := e.timers[groupID]; ok {
		cancel()
	}
	runCtx, cancel := context.WithCancel(ctx)
	e.timers[groupID] = cancel
	e.mu.Unlock()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		if sendNow {
			e.deliver(runCtx, groupID, content)
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				e.deliver(runCtx, groupID, content)
			}
		}
	}()
}

func (e *Engine) stop(groupID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if cancel, ok := e.timers[groupID]; ok {
		cancel()
		delete(e.timers, groupID)
	}
}

// deliver sends the content line by line with a small delay between
// lines. A failed line is logged and the rest still go out. Content
// rejected by the platform's markdown filter is retried once as plain
// text.
func (e *Engine) deliver(ctx context.Context, groupID, content string) {
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if i > 0 && e.lineDelay > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(e.lineDelay):
			}
		}
		e.sendLine(ctx, groupID, line)
	}
}

func (e *Engine) sendLine(ctx context.Context, groupID, line string) {
	res, err := e.api.SendMarkdown(ctx, groupID, openapi.RecvTypeGroup, line)
	if err != nil {
		slog.Warn("broadcast line failed", "group", groupID, "error", err)
		return
	}
	if res.Ok() {
		return
	}
	if res.Code == openapi.CodeContentRejected {
		// Markdown filter bounced the line; try it as plain text.
		retry, retryErr := e.api.SendText(ctx, groupID, openapi.RecvTypeGroup, line)
		if retryErr == nil && retry.Ok() {
			return
		}
	}
	slog.Warn("broadcast line rejected", "group", groupID, "code", res.Code, "msg", res.Msg)
}
