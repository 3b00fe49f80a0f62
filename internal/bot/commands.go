package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/YunGuard/YunGuard/internal/broadcast"
	"github.com/YunGuard/YunGuard/internal/event"
	"github.com/YunGuard/YunGuard/internal/grouplink"
	"github.com/YunGuard/YunGuard/internal/openapi"
	"github.com/YunGuard/YunGuard/internal/store"
	"github.com/YunGuard/YunGuard/internal/votemute"
)

const helpText = `YunGuard group-moderation bot.

Group commands:
/help — this message
/board — show the group board
/votemute <userId> — vote to mute a user (vote admins only)
/unmute <userId> — lift a mute (owner/administrator)
/link <groupId> — request a relay link to another group (owner/administrator)
/linkconfirm — confirm a pending relay link (owner/administrator)
/unlink <groupId> — remove a relay link (owner/administrator)
/broadcast <minutes> <content> — schedule a recurring broadcast (owner/administrator)
/broadcast clear — stop the scheduled broadcast (owner/administrator)
/subscribe <name> / /unsubscribe <name> — manage blacklist subscriptions (owner/administrator)
/voteadmin add|remove <userId> — manage vote admins (owner/administrator)
/bind <groupId> / /unbind <groupId> — share blacklists with another group (owner/administrator)
/exempt add|remove <word> — exempt a banned word in this group (owner/administrator)

Private commands:
/board <groupId> <content> — set a group board (group admins)
/welcome <groupId> <content> — set the join message (group admins)
/goodbye <groupId> <content> — set the leave message (group admins)
/blacklist add|remove <groupId> <userId> — edit a group blacklist (group admins)
/bl create|add|remove|rename|delete|list — manage named blacklists`

// handleGroupCommand routes slash commands sent inside a group.
func (s *Service) handleGroupCommand(ctx context.Context, msg *event.MessageEvent) {
	groupID := msg.Chat.ChatID
	sender := msg.Sender
	args := strings.Fields(msg.Text())
	cmd, rest := args[0], args[1:]

	switch cmd {
	case "/help":
		s.reply(ctx, groupID, openapi.RecvTypeGroup, helpText)

	case "/board":
		s.showBoard(ctx, groupID)

	case "/votemute":
		if len(rest) != 1 {
			s.reply(ctx, groupID, openapi.RecvTypeGroup, "Usage: /votemute <userId>")
			return
		}
		s.commandVoteMute(ctx, groupID, sender.SenderID, rest[0])

	case "/unmute":
		if len(rest) != 1 {
			s.reply(ctx, groupID, openapi.RecvTypeGroup, "Usage: /unmute <userId>")
			return
		}
		err := s.votes.Unmute(ctx, groupID, sender.SenderID, s.privileged(ctx, groupID, sender), rest[0])
		switch {
		case errors.Is(err, votemute.ErrNotAuthorized):
			s.reply(ctx, groupID, openapi.RecvTypeGroup, "Only a group owner or administrator can unmute.")
		case errors.Is(err, votemute.ErrNotMuted):
			s.reply(ctx, groupID, openapi.RecvTypeGroup, fmt.Sprintf("User %s is not muted.", rest[0]))
		case err != nil:
			s.reply(ctx, groupID, openapi.RecvTypeGroup, "Unmute failed, please retry.")
		default:
			s.reply(ctx, groupID, openapi.RecvTypeGroup, fmt.Sprintf("User %s has been unmuted.", rest[0]))
		}

	case "/link":
		if len(rest) != 1 {
			s.reply(ctx, groupID, openapi.RecvTypeGroup, "Usage: /link <groupId>")
			return
		}
		if !s.privileged(ctx, groupID, sender) {
			s.reply(ctx, groupID, openapi.RecvTypeGroup, "Only a group owner or administrator can request a link.")
			return
		}
		switch err := s.links.RequestLink(ctx, groupID, rest[0]); {
		case errors.Is(err, grouplink.ErrSelfLink):
			s.reply(ctx, groupID, openapi.RecvTypeGroup, "A group cannot link to itself.")
		case errors.Is(err, grouplink.ErrAlreadyLinked):
			s.reply(ctx, groupID, openapi.RecvTypeGroup, "These groups are already linked.")
		case err != nil:
			s.reply(ctx, groupID, openapi.RecvTypeGroup, "Link request failed, please retry.")
		default:
			s.reply(ctx, groupID, openapi.RecvTypeGroup,
				fmt.Sprintf("Link request sent to group %s. It expires if not confirmed there within 5 minutes.", rest[0]))
		}

	case "/linkconfirm":
		switch err := s.links.ConfirmLink(ctx, groupID, s.privileged(ctx, groupID, sender)); {
		case errors.Is(err, grouplink.ErrNoPending):
			s.reply(ctx, groupID, openapi.RecvTypeGroup, "There is no pending link request for this group.")
		case errors.Is(err, grouplink.ErrNotAuthorized):
			s.reply(ctx, groupID, openapi.RecvTypeGroup, "Only a group owner or administrator can confirm a link.")
		case err != nil:
			s.reply(ctx, groupID, openapi.RecvTypeGroup, "Link confirmation failed, please retry.")
		}

	case "/unlink":
		if len(rest) != 1 {
			s.reply(ctx, groupID, openapi.RecvTypeGroup, "Usage: /unlink <groupId>")
			return
		}
		if !s.privileged(ctx, groupID, sender) {
			s.reply(ctx, groupID, openapi.RecvTypeGroup, "Only a group owner or administrator can unlink.")
			return
		}
		if err := s.links.Unlink(ctx, groupID, rest[0]); err != nil {
			s.reply(ctx, groupID, openapi.RecvTypeGroup, "Unlink failed, please retry.")
			return
		}
		s.reply(ctx, groupID, openapi.RecvTypeGroup, fmt.Sprintf("Relay link with group %s removed.", rest[0]))

	case "/broadcast":
		s.commandBroadcast(ctx, groupID, sender, rest)

	case "/subscribe", "/unsubscribe":
		if len(rest) != 1 {
			s.reply(ctx, groupID, openapi.RecvTypeGroup, "Usage: "+cmd+" <name>")
			return
		}
		if !s.privileged(ctx, groupID, sender) {
			s.reply(ctx, groupID, openapi.RecvTypeGroup, "Only a group owner or administrator can manage subscriptions.")
			return
		}
		s.commandSubscribe(ctx, groupID, rest[0], cmd == "/subscribe")

	case "/voteadmin":
		if len(rest) != 2 || (rest[0] != "add" && rest[0] != "remove") {
			s.reply(ctx, groupID, openapi.RecvTypeGroup, "Usage: /voteadmin add|remove <userId>")
			return
		}
		if !s.privileged(ctx, groupID, sender) {
			s.reply(ctx, groupID, openapi.RecvTypeGroup, "Only a group owner or administrator can manage vote admins.")
			return
		}
		s.commandVoteAdmin(ctx, groupID, rest[0] == "add", rest[1])

	case "/bind", "/unbind":
		if len(rest) != 1 {
			s.reply(ctx, groupID, openapi.RecvTypeGroup, "Usage: "+cmd+" <groupId>")
			return
		}
		if !s.privileged(ctx, groupID, sender) {
			s.reply(ctx, groupID, openapi.RecvTypeGroup, "Only a group owner or administrator can manage bound groups.")
			return
		}
		s.commandBind(ctx, groupID, rest[0], cmd == "/bind")

	case "/exempt":
		if len(rest) != 2 || (rest[0] != "add" && rest[0] != "remove") {
			s.reply(ctx, groupID, openapi.RecvTypeGroup, "Usage: /exempt add|remove <word>")
			return
		}
		if !s.privileged(ctx, groupID, sender) {
			s.reply(ctx, groupID, openapi.RecvTypeGroup, "Only a group owner or administrator can manage word exemptions.")
			return
		}
		s.commandExempt(ctx, groupID, rest[0] == "add", rest[1])

	default:
		// Unknown slash text is ordinary chatter, not a command error.
	}
}

// showBoard posts the group board. When a board message was posted
// before, its ID is kept in the group config and the existing message
// is edited in place instead of posting a duplicate; a stale ID falls
// back to a fresh post.
func (s *Service) showBoard(ctx context.Context, groupID string) {
	cfg := s.store.Load(groupID)
	if cfg.Board == "" {
		s.reply(ctx, groupID, openapi.RecvTypeGroup, "No board has been set for this group.")
		return
	}

	if cfg.BoardMsgID != "" {
		res, err := s.api.Edit(ctx, cfg.BoardMsgID, groupID, openapi.RecvTypeGroup, openapi.ContentMarkdown, cfg.Board)
		if err == nil && res.Ok() {
			return
		}
		if err != nil {
			slog.Warn("board edit failed, posting fresh", "group", groupID, "error", err)
		}
	}

	res, err := s.api.SendMarkdown(ctx, groupID, openapi.RecvTypeGroup, cfg.Board)
	if err != nil {
		slog.Warn("board post failed", "group", groupID, "error", err)
		return
	}
	if !res.Ok() {
		slog.Warn("board post rejected", "group", groupID, "code", res.Code, "msg", res.Msg)
		return
	}
	if id := res.MsgID(); id != cfg.BoardMsgID {
		cfg.BoardMsgID = id
		s.store.Save(groupID, cfg)
	}
}

func (s *Service) commandVoteMute(ctx context.Context, groupID, voterID, targetID string) {
	r := s.votes.CastVote(ctx, groupID, voterID, targetID)
	if !r.Accepted {
		s.reply(ctx, groupID, openapi.RecvTypeGroup, "Vote rejected: "+r.Reason+".")
		return
	}
	if r.Passed {
		// The engine announces the mute itself.
		return
	}
	s.reply(ctx, groupID, openapi.RecvTypeGroup,
		fmt.Sprintf("Vote recorded against %s (%d/%d).", targetID, r.Count, r.Required))
}

func (s *Service) commandBroadcast(ctx context.Context, groupID string, sender event.Sender, rest []string) {
	if len(rest) == 0 {
		s.reply(ctx, groupID, openapi.RecvTypeGroup, "Usage: /broadcast <minutes> <content> or /broadcast clear")
		return
	}
	if !s.privileged(ctx, groupID, sender) {
		s.reply(ctx, groupID, openapi.RecvTypeGroup, "Only a group owner or administrator can manage broadcasts.")
		return
	}
	if rest[0] == "clear" {
		if err := s.broadcasts.Clear(groupID); err != nil {
			s.reply(ctx, groupID, openapi.RecvTypeGroup, "Clearing the broadcast failed, please retry.")
			return
		}
		s.reply(ctx, groupID, openapi.RecvTypeGroup, "Scheduled broadcast cleared.")
		return
	}
	minutes, err := strconv.Atoi(rest[0])
	if err != nil || len(rest) < 2 {
		s.reply(ctx, groupID, openapi.RecvTypeGroup, "Usage: /broadcast <minutes> <content>")
		return
	}
	content := strings.Join(rest[1:], " ")
	switch err := s.broadcasts.Setup(ctx, groupID, minutes, content); {
	case errors.Is(err, broadcast.ErrBadInterval), errors.Is(err, broadcast.ErrEmptyBody):
		s.reply(ctx, groupID, openapi.RecvTypeGroup, "Broadcast needs a positive interval in minutes and non-empty content.")
	case err != nil:
		s.reply(ctx, groupID, openapi.RecvTypeGroup, "Scheduling the broadcast failed, please retry.")
	default:
		s.reply(ctx, groupID, openapi.RecvTypeGroup, fmt.Sprintf("Broadcast scheduled every %d minutes.", minutes))
	}
}

func (s *Service) commandSubscribe(ctx context.Context, groupID, name string, subscribe bool) {
	cfg := s.store.Load(groupID)
	if subscribe {
		if !s.lists.LoadNamed(name).Exists() {
			s.reply(ctx, groupID, openapi.RecvTypeGroup, fmt.Sprintf("Blacklist %q does not exist.", name))
			return
		}
		cfg.Subscription.Enabled = true
		cfg.Subscription.List, _ = store.Add(cfg.Subscription.List, store.SanitizeName(name))
	} else {
		cfg.Subscription.List, _ = store.Remove(cfg.Subscription.List, store.SanitizeName(name))
		cfg.Subscription.Enabled = len(cfg.Subscription.List) > 0
	}
	if !s.store.Save(groupID, cfg) {
		s.reply(ctx, groupID, openapi.RecvTypeGroup, "Saving the subscription change failed, please retry.")
		return
	}
	if subscribe {
		s.reply(ctx, groupID, openapi.RecvTypeGroup, fmt.Sprintf("Subscribed to blacklist %q.", name))
	} else {
		s.reply(ctx, groupID, openapi.RecvTypeGroup, fmt.Sprintf("Unsubscribed from blacklist %q.", name))
	}
}

func (s *Service) commandVoteAdmin(ctx context.Context, groupID string, add bool, userID string) {
	cfg := s.store.Load(groupID)
	var changed bool
	if add {
		cfg.VoteMute.Enabled = true
		cfg.VoteMute.Admins, changed = store.Add(cfg.VoteMute.Admins, userID)
	} else {
		cfg.VoteMute.Admins, changed = store.Remove(cfg.VoteMute.Admins, userID)
	}
	if !changed {
		s.reply(ctx, groupID, openapi.RecvTypeGroup, "No change: vote-admin list already in that state.")
		return
	}
	if !s.store.Save(groupID, cfg) {
		s.reply(ctx, groupID, openapi.RecvTypeGroup, "Saving the vote-admin change failed, please retry.")
		return
	}
	s.reply(ctx, groupID, openapi.RecvTypeGroup,
		fmt.Sprintf("Vote admins updated: %d total.", len(cfg.VoteMute.Admins)))
}

func (s *Service) commandBind(ctx context.Context, groupID, peerID string, bind bool) {
	cfg := s.store.Load(groupID)
	var changed bool
	if bind {
		cfg.UseSharedBlacklist = true
		cfg.BoundGroups, changed = store.Add(cfg.BoundGroups, peerID)
	} else {
		cfg.BoundGroups, changed = store.Remove(cfg.BoundGroups, peerID)
		cfg.UseSharedBlacklist = len(cfg.BoundGroups) > 0
	}
	if !changed {
		s.reply(ctx, groupID, openapi.RecvTypeGroup, "No change: bound-group list already in that state.")
		return
	}
	if !s.store.Save(groupID, cfg) {
		s.reply(ctx, groupID, openapi.RecvTypeGroup, "Saving the bound-group change failed, please retry.")
		return
	}
	if bind {
		s.reply(ctx, groupID, openapi.RecvTypeGroup, fmt.Sprintf("Now sharing blacklists with group %s.", peerID))
	} else {
		s.reply(ctx, groupID, openapi.RecvTypeGroup, fmt.Sprintf("No longer sharing blacklists with group %s.", peerID))
	}
}

func (s *Service) commandExempt(ctx context.Context, groupID string, add bool, word string) {
	cfg := s.store.Load(groupID)
	var changed bool
	if add {
		cfg.BlockedWords.DisabledWords, changed = store.Add(cfg.BlockedWords.DisabledWords, word)
	} else {
		cfg.BlockedWords.DisabledWords, changed = store.Remove(cfg.BlockedWords.DisabledWords, word)
	}
	if !changed {
		s.reply(ctx, groupID, openapi.RecvTypeGroup, "No change: exemption list already in that state.")
		return
	}
	if !s.store.Save(groupID, cfg) {
		s.reply(ctx, groupID, openapi.RecvTypeGroup, "Saving the exemption change failed, please retry.")
		return
	}
	s.reply(ctx, groupID, openapi.RecvTypeGroup,
		fmt.Sprintf("Word exemptions updated: %d active.", len(cfg.BlockedWords.DisabledWords)))
}

// handlePrivateCommand routes slash commands sent in a one-on-one chat
// with the bot.
func (s *Service) handlePrivateCommand(ctx context.Context, msg *event.MessageEvent) {
	userID := msg.Sender.SenderID
	args := strings.Fields(msg.Text())
	if len(args) == 0 {
		return
	}
	cmd, rest := args[0], args[1:]

	switch cmd {
	case "/help":
		s.reply(ctx, userID, openapi.RecvTypeUser, helpText)

	case "/board", "/welcome", "/goodbye":
		if len(rest) < 2 {
			s.reply(ctx, userID, openapi.RecvTypeUser, "Usage: "+cmd+" <groupId> <content>")
			return
		}
		groupID, content := rest[0], strings.Join(rest[1:], " ")
		if !s.requireGroupAdmin(ctx, userID, groupID) {
			return
		}
		cfg := s.store.Load(groupID)
		var what string
		switch cmd {
		case "/board":
			cfg.Board, what = content, "board"
		case "/welcome":
			cfg.GroupMessages.Welcome.Content, what = content, "welcome message"
		case "/goodbye":
			cfg.GroupMessages.Goodbye.Content, what = content, "goodbye message"
		}
		if !s.store.Save(groupID, cfg) {
			s.reply(ctx, userID, openapi.RecvTypeUser, "Saving failed, please retry.")
			return
		}
		s.reply(ctx, userID, openapi.RecvTypeUser, fmt.Sprintf("The %s for group %s is now: %s", what, groupID, content))

	case "/blacklist":
		if len(rest) != 3 || (rest[0] != "add" && rest[0] != "remove") {
			s.reply(ctx, userID, openapi.RecvTypeUser, "Usage: /blacklist add|remove <groupId> <userId>")
			return
		}
		groupID, targetID := rest[1], rest[2]
		if !s.requireGroupAdmin(ctx, userID, groupID) {
			return
		}
		s.commandGroupBlacklist(ctx, userID, groupID, rest[0] == "add", targetID)

	case "/bl":
		s.handleNamedBlacklist(ctx, userID, rest)

	default:
		s.reply(ctx, userID, openapi.RecvTypeUser, "Unknown command. Send /help for usage.")
	}
}

func (s *Service) requireGroupAdmin(ctx context.Context, userID, groupID string) bool {
	ok, err := s.api.IsGroupAdmin(ctx, groupID, userID)
	if err != nil {
		s.reply(ctx, userID, openapi.RecvTypeUser, "Could not verify your role in group "+groupID+", please retry.")
		return false
	}
	if !ok {
		s.reply(ctx, userID, openapi.RecvTypeUser, "You are not an administrator of group "+groupID+".")
		return false
	}
	return true
}

func (s *Service) commandGroupBlacklist(ctx context.Context, userID, groupID string, add bool, targetID string) {
	cfg := s.store.Load(groupID)
	var changed bool
	if add {
		cfg.UseGroupBlacklist = true
		cfg.Blacklist, changed = store.Add(cfg.Blacklist, targetID)
	} else {
		cfg.Blacklist, changed = store.Remove(cfg.Blacklist, targetID)
	}
	if !changed {
		if add {
			s.reply(ctx, userID, openapi.RecvTypeUser, fmt.Sprintf("User %s is already on the blacklist of group %s.", targetID, groupID))
		} else {
			s.reply(ctx, userID, openapi.RecvTypeUser, fmt.Sprintf("User %s is not on the blacklist of group %s.", targetID, groupID))
		}
		return
	}
	if !s.store.Save(groupID, cfg) {
		s.reply(ctx, userID, openapi.RecvTypeUser, "Saving the blacklist change failed, please retry.")
		return
	}
	if add {
		s.reply(ctx, userID, openapi.RecvTypeUser, fmt.Sprintf("User %s added to the blacklist of group %s.", targetID, groupID))
	} else {
		s.reply(ctx, userID, openapi.RecvTypeUser, fmt.Sprintf("User %s removed from the blacklist of group %s.", targetID, groupID))
	}
}

func (s *Service) handleNamedBlacklist(ctx context.Context, userID string, rest []string) {
	usage := "Usage: /bl create <name> | add <name> <userId> | remove <name> <userId> | rename <old> <new> | delete <name> | list"
	if len(rest) == 0 {
		s.reply(ctx, userID, openapi.RecvTypeUser, usage)
		return
	}

	fail := func(err error, name string) {
		switch {
		case errors.Is(err, store.ErrNotFound):
			s.reply(ctx, userID, openapi.RecvTypeUser, fmt.Sprintf("Blacklist %q does not exist.", name))
		case errors.Is(err, store.ErrNotAuthorized):
			s.reply(ctx, userID, openapi.RecvTypeUser, fmt.Sprintf("Only the creator of %q may change it.", name))
		case errors.Is(err, store.ErrExists):
			s.reply(ctx, userID, openapi.RecvTypeUser, fmt.Sprintf("A blacklist named %q already exists.", name))
		case errors.Is(err, store.ErrBadName):
			s.reply(ctx, userID, openapi.RecvTypeUser, "That name contains no usable characters.")
		default:
			s.reply(ctx, userID, openapi.RecvTypeUser, "The operation failed, please retry.")
		}
	}

	switch rest[0] {
	case "create":
		if len(rest) != 2 {
			s.reply(ctx, userID, openapi.RecvTypeUser, usage)
			return
		}
		bl, err := s.lists.Create(rest[1], userID)
		if err != nil {
			fail(err, rest[1])
			return
		}
		s.reply(ctx, userID, openapi.RecvTypeUser, fmt.Sprintf("Blacklist %q created.", bl.Name))
	case "add", "remove":
		if len(rest) != 3 {
			s.reply(ctx, userID, openapi.RecvTypeUser, usage)
			return
		}
		var err error
		if rest[0] == "add" {
			err = s.lists.AddUser(rest[1], rest[2], userID)
		} else {
			err = s.lists.RemoveUser(rest[1], rest[2], userID)
		}
		if err != nil {
			fail(err, rest[1])
			return
		}
		s.reply(ctx, userID, openapi.RecvTypeUser, fmt.Sprintf("Blacklist %q updated.", rest[1]))
	case "rename":
		if len(rest) != 3 {
			s.reply(ctx, userID, openapi.RecvTypeUser, usage)
			return
		}
		if err := s.lists.Rename(rest[1], rest[2], userID); err != nil {
			fail(err, rest[1])
			return
		}
		s.reply(ctx, userID, openapi.RecvTypeUser, fmt.Sprintf("Blacklist %q renamed to %q.", rest[1], rest[2]))
	case "delete":
		if len(rest) != 2 {
			s.reply(ctx, userID, openapi.RecvTypeUser, usage)
			return
		}
		if err := s.lists.Delete(rest[1], userID); err != nil {
			fail(err, rest[1])
			return
		}
		s.reply(ctx, userID, openapi.RecvTypeUser, fmt.Sprintf("Blacklist %q deleted.", rest[1]))
	case "list":
		names := s.lists.ListNames()
		if len(names) == 0 {
			s.reply(ctx, userID, openapi.RecvTypeUser, "No named blacklists exist yet.")
			return
		}
		s.reply(ctx, userID, openapi.RecvTypeUser, "Named blacklists: "+strings.Join(names, ", "))
	default:
		s.reply(ctx, userID, openapi.RecvTypeUser, usage)
	}
}
