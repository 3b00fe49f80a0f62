package bot

import (
	"strings"

	"github.com/YunGuard/YunGuard/internal/event"
	"github.com/YunGuard/YunGuard/internal/store"
)

// formBinding maps one opaque platform form-field ID onto a config
// field. New deployments add rows here, not handler code.
type formBinding struct {
	label string
	apply func(cfg *store.GroupConfig, v event.FormValue)
}

var formBindings = map[string]formBinding{
	"qavaqt": {"board", func(cfg *store.GroupConfig, v event.FormValue) {
		cfg.Board = v.Chosen()
	}},
	"ynpcgr": {"welcome message", func(cfg *store.GroupConfig, v event.FormValue) {
		cfg.GroupMessages.Welcome.Content = v.Chosen()
	}},
	"kcykjx": {"goodbye message", func(cfg *store.GroupConfig, v event.FormValue) {
		cfg.GroupMessages.Goodbye.Content = v.Chosen()
	}},
	"khonut": {"group blacklist", func(cfg *store.GroupConfig, v event.FormValue) {
		cfg.Blacklist = splitIDList(v.Chosen())
		cfg.UseGroupBlacklist = len(cfg.Blacklist) > 0
	}},
	"mzqwtd": {"public blacklist check", func(cfg *store.GroupConfig, v event.FormValue) {
		cfg.UsePublicBlacklist = v.On()
	}},
	"rkpfuv": {"group blacklist check", func(cfg *store.GroupConfig, v event.FormValue) {
		cfg.UseGroupBlacklist = v.On()
	}},
	"cuvhnd": {"vote mute", func(cfg *store.GroupConfig, v event.FormValue) {
		cfg.VoteMute.Enabled = v.On()
	}},
	"dqwxat": {"word filter", func(cfg *store.GroupConfig, v event.FormValue) {
		cfg.BlockedWords.Disabled = !v.On()
	}},
}

func splitIDList(raw string) []string {
	out := []string{}
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}

// applyForm runs every recognised field of a submitted form against the
// group's config, saves once, and returns the labels of the fields that
// changed. Unknown field IDs are skipped.
func (s *Service) applyForm(groupID string, data map[string]event.FormValue) []string {
	if len(data) == 0 {
		return nil
	}
	cfg := s.store.Load(groupID)
	var applied []string
	for id, value := range data {
		binding, ok := formBindings[id]
		if !ok {
			continue
		}
		binding.apply(cfg, value)
		applied = append(applied, binding.label)
	}
	if len(applied) == 0 {
		return nil
	}
	if !s.store.Save(groupID, cfg) {
		return nil
	}
	return applied
}
