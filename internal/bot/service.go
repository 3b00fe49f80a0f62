// Package bot is the event loop: it consumes inbound platform events
// from the bus and routes them through moderation, the command router,
// and the engines. One Service instance owns all mutable state; nothing
// here is a package-level singleton.
package bot

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/YunGuard/YunGuard/internal/audit"
	"github.com/YunGuard/YunGuard/internal/broadcast"
	"github.com/YunGuard/YunGuard/internal/bus"
	"github.com/YunGuard/YunGuard/internal/event"
	"github.com/YunGuard/YunGuard/internal/grouplink"
	"github.com/YunGuard/YunGuard/internal/moderation"
	"github.com/YunGuard/YunGuard/internal/openapi"
	"github.com/YunGuard/YunGuard/internal/store"
	"github.com/YunGuard/YunGuard/internal/votemute"
)

// API is the outbound platform surface the service needs. *openapi.Client
// satisfies it.
type API interface {
	SendText(ctx context.Context, recvID, recvType, text string) (*openapi.Result, error)
	SendMarkdown(ctx context.Context, recvID, recvType, text string) (*openapi.Result, error)
	Edit(ctx context.Context, msgID, recvID, recvType, contentType, text string) (*openapi.Result, error)
	Recall(ctx context.Context, msgID, chatID, chatType string) (*openapi.Result, error)
	IsGroupAdmin(ctx context.Context, groupID, userID string) (bool, error)
}

// Service wires the engines to the event stream.
type Service struct {
	store      *store.Store
	lists      *store.BlacklistStore
	api        API
	audit      *audit.Service
	pipeline   *moderation.Pipeline
	votes      *votemute.Engine
	links      *grouplink.Engine
	broadcasts *broadcast.Engine
	bus        *bus.EventBus
}

// Deps carries everything a Service needs. audit may be nil.
type Deps struct {
	Store      *store.Store
	Lists      *store.BlacklistStore
	API        API
	Audit      *audit.Service
	Pipeline   *moderation.Pipeline
	Votes      *votemute.Engine
	Links      *grouplink.Engine
	Broadcasts *broadcast.Engine
	Bus        *bus.EventBus
}

func NewService(d Deps) *Service {
	return &Service{
		store:      d.Store,
		lists:      d.Lists,
		api:        d.API,
		audit:      d.Audit,
		pipeline:   d.Pipeline,
		votes:      d.Votes,
		links:      d.Links,
		broadcasts: d.Broadcasts,
		bus:        d.Bus,
	}
}

// Run consumes the bus until ctx is cancelled. Handler panics for a
// single event must not take the loop down.
func (s *Service) Run(ctx context.Context) error {
	for {
		in, err := s.bus.Consume(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		s.dispatch(ctx, in)
	}
}

func (s *Service) dispatch(ctx context.Context, in *event.Inbound) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("event handler panicked", "type", in.Type, "trace", in.TraceID, "panic", r)
		}
	}()

	switch in.Type {
	case event.TypeMessageNormal:
		s.handleMessage(ctx, in, false)
	case event.TypeMessageInstruction:
		s.handleMessage(ctx, in, true)
	case event.TypeBotFollowed:
		s.reply(ctx, in.Follow.Sender.SenderID, openapi.RecvTypeUser, helpText)
	case event.TypeBotUnfollowed:
		slog.Info("user unfollowed", "user", in.Follow.Sender.SenderID)
	case event.TypeGroupJoin:
		s.handleMember(ctx, in.GroupMember, true)
	case event.TypeGroupLeave:
		s.handleMember(ctx, in.GroupMember, false)
	case event.TypeButtonReport:
		s.handleButtonReport(ctx, in.ButtonReport)
	case event.TypeBotSetting:
		s.handleSetting(ctx, in.Setting)
	case event.TypeShortcutMenu:
		s.reply(ctx, in.ShortcutMenu.Chat.ChatID, recvTypeFor(in.ShortcutMenu.Chat), helpText)
	default:
		slog.Debug("unhandled event type", "type", in.Type)
	}
}

func recvTypeFor(c event.Chat) string {
	if c.ChatType == event.ChatTypeGroup {
		return openapi.RecvTypeGroup
	}
	return openapi.RecvTypeUser
}

// handleMessage is the §control-flow spine for chat messages: private
// chats go straight to the command router; group messages run the
// moderation pipeline first and are relayed when they pass.
func (s *Service) handleMessage(ctx context.Context, in *event.Inbound, instruction bool) {
	msg := in.Message
	if msg.Chat.ChatType != event.ChatTypeGroup {
		s.handlePrivateCommand(ctx, msg)
		return
	}

	groupID := msg.Chat.ChatID
	if s.audit != nil {
		if err := s.audit.TouchGroup(groupID, ""); err != nil {
			slog.Warn("group registry update failed", "group", groupID, "error", err)
		}
	}

	if !instruction {
		if v := s.pipeline.Handle(ctx, msg, in.TraceID); v.Intercepted {
			return
		}
	}

	text := msg.Text()
	if strings.HasPrefix(text, "/") {
		s.handleGroupCommand(ctx, msg)
		return
	}
	if !instruction {
		s.pipeline.Relay(ctx, msg, in.TraceID)
	}
}

func (s *Service) handleMember(ctx context.Context, ev *event.GroupMemberEvent, joined bool) {
	cfg := s.store.Load(ev.Chat.ChatID)
	tpl := cfg.GroupMessages.Goodbye
	if joined {
		tpl = cfg.GroupMessages.Welcome
	}
	if strings.TrimSpace(tpl.Content) == "" {
		return
	}
	text := renderTemplate(tpl.Content, memberVars(ev, time.Now()))
	if tpl.Format == "markdown" {
		s.replyMarkdown(ctx, ev.Chat.ChatID, openapi.RecvTypeGroup, text)
	} else {
		s.reply(ctx, ev.Chat.ChatID, openapi.RecvTypeGroup, text)
	}
}

func (s *Service) handleButtonReport(ctx context.Context, ev *event.ButtonReportEvent) {
	applied := s.applyForm(ev.Chat.ChatID, ev.ReportData.FormData)
	if len(applied) > 0 {
		s.reply(ctx, ev.Sender.SenderID, openapi.RecvTypeUser,
			"Updated for group "+ev.Chat.ChatID+": "+strings.Join(applied, ", "))
	}
}

func (s *Service) handleSetting(ctx context.Context, ev *event.SettingEvent) {
	data, err := ev.FormData()
	if err != nil {
		slog.Debug("settings payload dropped", "group", ev.GroupID, "error", err)
		return
	}
	applied := s.applyForm(ev.GroupID, data)
	if len(applied) > 0 && ev.Sender.SenderID != "" {
		s.reply(ctx, ev.Sender.SenderID, openapi.RecvTypeUser,
			"Updated for group "+ev.GroupID+": "+strings.Join(applied, ", "))
	}
}

// privileged reports whether the sender may run admin-only commands in
// groupID. The event's role claim wins; when the platform sends none,
// fall back to the member-admin lookup.
func (s *Service) privileged(ctx context.Context, groupID string, sender event.Sender) bool {
	if sender.SenderUserLevel != "" {
		return sender.IsPrivileged()
	}
	ok, err := s.api.IsGroupAdmin(ctx, groupID, sender.SenderID)
	if err != nil {
		slog.Warn("admin lookup failed", "group", groupID, "user", sender.SenderID, "error", err)
		return false
	}
	return ok
}

func (s *Service) reply(ctx context.Context, recvID, recvType, text string) {
	if text == "" {
		return
	}
	if res, err := s.api.SendText(ctx, recvID, recvType, text); err != nil {
		slog.Warn("reply failed", "recv", recvID, "error", err)
	} else if !res.Ok() {
		slog.Warn("reply rejected", "recv", recvID, "code", res.Code, "msg", res.Msg)
	}
}

func (s *Service) replyMarkdown(ctx context.Context, recvID, recvType, text string) {
	if res, err := s.api.SendMarkdown(ctx, recvID, recvType, text); err != nil {
		slog.Warn("reply failed", "recv", recvID, "error", err)
	} else if !res.Ok() {
		slog.Warn("reply rejected", "recv", recvID, "code", res.Code, "msg", res.Msg)
	}
}
