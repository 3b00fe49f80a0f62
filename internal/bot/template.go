package bot

import (
	"regexp"
	"time"

	"github.com/YunGuard/YunGuard/internal/event"
)

var tokenPattern = regexp.MustCompile(`\{[a-zA-Z]+\}`)

// renderTemplate substitutes {token} placeholders from vars. Unknown
// tokens render as empty strings rather than leaking the placeholder.
func renderTemplate(tpl string, vars map[string]string) string {
	return tokenPattern.ReplaceAllStringFunc(tpl, func(tok string) string {
		return vars[tok[1:len(tok)-1]]
	})
}

func memberVars(ev *event.GroupMemberEvent, now time.Time) map[string]string {
	return map[string]string{
		"userId":    ev.Sender.SenderID,
		"nickname":  ev.Sender.SenderNickname,
		"avatarUrl": ev.AvatarURL,
		"groupName": ev.GroupName,
		"groupId":   ev.Chat.ChatID,
		"time":      now.Format("2006-01-02 15:04:05"),
		"date":      now.Format("2006-01-02"),
		"hour":      now.Format("15"),
		"shortTime": now.Format("15:04"),
	}
}
