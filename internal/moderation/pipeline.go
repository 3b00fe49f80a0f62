// Package moderation decides, for each inbound group message, whether
// to intercept it, and relays passing messages to linked groups.
package moderation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/YunGuard/YunGuard/internal/audit"
	"github.com/YunGuard/YunGuard/internal/event"
	"github.com/YunGuard/YunGuard/internal/openapi"
	"github.com/YunGuard/YunGuard/internal/store"
)

// Stage names, in evaluation order. The pipeline short-circuits on the
// first matching stage.
const (
	StageSubscribed = "subscribed-blacklist"
	StageVoteMute   = "vote-mute"
	StagePublic     = "public-blacklist"
	StageGroup      = "group-blacklist"
	StageWords      = "banned-word"
)

// Messenger is the outbound API surface the pipeline needs.
type Messenger interface {
	SendText(ctx context.Context, recvID, recvType, text string) (*openapi.Result, error)
	Recall(ctx context.Context, msgID, chatID, chatType string) (*openapi.Result, error)
}

// Verdict is the pipeline outcome for one message.
type Verdict struct {
	Intercepted bool
	Stage       string
	Word        string // matched banned word, when Stage == StageWords
}

// Pipeline evaluates the per-group moderation rules.
type Pipeline struct {
	store *store.Store
	lists *store.BlacklistStore
	api   Messenger
	audit *audit.Service
}

// New creates a pipeline. audit may be nil.
func New(s *store.Store, lists *store.BlacklistStore, api Messenger, auditSvc *audit.Service) *Pipeline {
	return &Pipeline{store: s, lists: lists, api: api, audit: auditSvc}
}

// Handle runs stages 1..5 on a normal group message. The message text,
// sender and chat come validated from the event boundary.
func (p *Pipeline) Handle(ctx context.Context, msg *event.MessageEvent, traceID string) Verdict {
	groupID := msg.Chat.ChatID
	senderID := msg.Sender.SenderID
	cfg := p.store.Load(groupID)

	// 1. Subscribed named blacklists.
	if cfg.Subscription.Enabled {
		for _, name := range cfg.Subscription.List {
			bl := p.lists.LoadNamed(name)
			if bl.Exists() && store.Contains(bl.Users, senderID) {
				notice := fmt.Sprintf("Message from %s recalled: listed on subscribed blacklist %q.", senderID, bl.Name)
				p.intercept(ctx, msg, traceID, StageSubscribed, notice)
				return Verdict{Intercepted: true, Stage: StageSubscribed}
			}
		}
	}

	// 2. Vote-mute. Muted users are recalled silently.
	if cfg.VoteMute.Enabled && store.Contains(cfg.VoteMute.MutedUsers, senderID) {
		p.intercept(ctx, msg, traceID, StageVoteMute, "")
		return Verdict{Intercepted: true, Stage: StageVoteMute}
	}

	// 3. Public blacklist.
	if cfg.UsePublicBlacklist && store.Contains(p.lists.LoadPublic(), senderID) {
		notice := fmt.Sprintf("Message from %s recalled: listed on the public blacklist.", senderID)
		p.intercept(ctx, msg, traceID, StagePublic, notice)
		return Verdict{Intercepted: true, Stage: StagePublic}
	}

	// 4. Group / shared blacklist.
	if store.Contains(p.effectiveBlacklist(cfg), senderID) {
		notice := fmt.Sprintf("Message from %s recalled: listed on this group's blacklist.", senderID)
		p.intercept(ctx, msg, traceID, StageGroup, notice)
		return Verdict{Intercepted: true, Stage: StageGroup}
	}

	// 5. Banned words.
	if !cfg.BlockedWords.Disabled {
		if word := p.matchBannedWord(cfg, msg.Message.Content.Text); word != "" {
			notice := fmt.Sprintf("Message from %s recalled: contains the banned word %q.", senderID, word)
			p.intercept(ctx, msg, traceID, StageWords, notice)
			return Verdict{Intercepted: true, Stage: StageWords, Word: word}
		}
	}

	return Verdict{}
}

// effectiveBlacklist is the group's own list, widened to the union with
// all bound groups' lists when shared mode is on.
func (p *Pipeline) effectiveBlacklist(cfg *store.GroupConfig) []string {
	switch {
	case cfg.UseSharedBlacklist:
		merged := append([]string(nil), cfg.Blacklist...)
		for _, peer := range cfg.BoundGroups {
			merged = append(merged, p.store.Load(peer).Blacklist...)
		}
		return merged
	case cfg.UseGroupBlacklist:
		return cfg.Blacklist
	}
	return nil
}

// matchBannedWord returns the first global banned word present in text,
// skipping the group's exemptions. Matching is a case-sensitive
// substring check.
func (p *Pipeline) matchBannedWord(cfg *store.GroupConfig, text string) string {
	for _, word := range p.lists.LoadBannedWords() {
		if word == "" || store.Contains(cfg.BlockedWords.DisabledWords, word) {
			continue
		}
		if strings.Contains(text, word) {
			return word
		}
	}
	return ""
}

// intercept recalls the message and, unless notice is empty, sends the
// notice to the group. Recall failures are logged; the interception
// decision is not reversed and the notice is still attempted.
func (p *Pipeline) intercept(ctx context.Context, msg *event.MessageEvent, traceID, stage, notice string) {
	groupID := msg.Chat.ChatID
	res, err := p.api.Recall(ctx, msg.Message.MsgID, groupID, msg.Chat.ChatType)
	switch {
	case err != nil:
		slog.Error("recall failed", "group", groupID, "msg", msg.Message.MsgID, "stage", stage, "error", err)
	case !res.Ok():
		slog.Error("recall rejected", "group", groupID, "msg", msg.Message.MsgID, "stage", stage, "code", res.Code, "msg_text", res.Msg)
	}

	if notice != "" {
		if res, err := p.api.SendText(ctx, groupID, openapi.RecvTypeGroup, notice); err != nil {
			slog.Warn("intercept notice failed", "group", groupID, "error", err)
		} else if !res.Ok() {
			slog.Warn("intercept notice rejected", "group", groupID, "code", res.Code)
		}
	}

	if p.audit != nil {
		_ = p.audit.Record(audit.Event{
			TraceID: traceID,
			GroupID: groupID,
			UserID:  msg.Sender.SenderID,
			Action:  audit.ActionIntercept,
			Detail:  stage,
		})
	}
}

// Relay forwards a passing message to every mutually linked group,
// prefixed with the originating group and sender identity. Delivery is
// best-effort per peer.
func (p *Pipeline) Relay(ctx context.Context, msg *event.MessageEvent, traceID string) int {
	groupID := msg.Chat.ChatID
	cfg := p.store.Load(groupID)
	if !cfg.CrossGroup.Enabled || len(cfg.CrossGroup.LinkedGroups) == 0 {
		return 0
	}

	framed := fmt.Sprintf("[%s]%s(%s): %s", groupID, msg.Sender.SenderNickname, msg.Sender.SenderID, msg.Message.Content.Text)
	sent := 0
	for _, peer := range cfg.CrossGroup.LinkedGroups {
		if peer == groupID {
			continue
		}
		// Only mutually verified links relay.
		if !store.Contains(p.store.Load(peer).CrossGroup.LinkedGroups, groupID) {
			continue
		}
		if res, err := p.api.SendText(ctx, peer, openapi.RecvTypeGroup, framed); err != nil {
			slog.Warn("relay failed", "from", groupID, "to", peer, "error", err)
			continue
		} else if !res.Ok() {
			slog.Warn("relay rejected", "from", groupID, "to", peer, "code", res.Code)
			continue
		}
		sent++
		if p.audit != nil {
			_ = p.audit.Record(audit.Event{
				TraceID: traceID,
				GroupID: groupID,
				UserID:  msg.Sender.SenderID,
				Action:  audit.ActionRelay,
				Detail:  "-> " + peer,
			})
		}
	}
	return sent
}
