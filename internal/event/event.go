// Package event defines the inbound webhook envelope and the typed
// per-event payloads pushed by the Yunhu platform.
package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Event type strings as they appear in the envelope header.
const (
	TypeMessageNormal      = "message.receive.normal"
	TypeMessageInstruction = "message.receive.instruction"
	TypeBotFollowed        = "bot.followed"
	TypeBotUnfollowed      = "bot.unfollowed"
	TypeGroupJoin          = "group.join"
	TypeGroupLeave         = "group.leave"
	TypeButtonReport       = "button.report.inline"
	TypeBotSetting         = "bot.setting"
	TypeShortcutMenu       = "bot.shortcut.menu"
)

// Chat type strings.
const (
	ChatTypeGroup = "group"
	ChatTypeBot   = "bot"
)

// Sender user levels carried on events. These are platform role claims,
// not derived from any per-group admin list.
const (
	LevelOwner         = "owner"
	LevelAdministrator = "administrator"
	LevelMember        = "member"
)

// ErrMalformed marks payloads missing required fields. Malformed events
// are dropped at the boundary, never propagated.
var ErrMalformed = errors.New("event: malformed payload")

// Envelope is the outer webhook body: {"header":{...},"event":{...}}.
type Envelope struct {
	Version string          `json:"version"`
	Header  Header          `json:"header"`
	Event   json.RawMessage `json:"event"`
}

// Header identifies the event.
type Header struct {
	EventID   string `json:"eventId"`
	EventType string `json:"eventType"`
	EventTime int64  `json:"eventTime"`
}

// Sender identifies the user that triggered an event.
type Sender struct {
	SenderID        string `json:"senderId"`
	SenderType      string `json:"senderType"`
	SenderNickname  string `json:"senderNickname"`
	SenderUserLevel string `json:"senderUserLevel"`
}

// IsPrivileged reports whether the sender holds an owner or
// administrator role claim.
func (s Sender) IsPrivileged() bool {
	return s.SenderUserLevel == LevelOwner || s.SenderUserLevel == LevelAdministrator
}

// Chat identifies the conversation an event belongs to.
type Chat struct {
	ChatID   string `json:"chatId"`
	ChatType string `json:"chatType"`
}

// MessageContent holds the text body of a message.
type MessageContent struct {
	Text string `json:"text"`
}

// Message is the message portion of a message event.
type Message struct {
	MsgID       string         `json:"msgId"`
	ParentID    string         `json:"parentId"`
	ContentType string         `json:"contentType"`
	Content     MessageContent `json:"content"`
}

// MessageEvent is the payload of normal and instruction messages.
type MessageEvent struct {
	Sender  Sender  `json:"sender"`
	Chat    Chat    `json:"chat"`
	Message Message `json:"message"`
}

// Text returns the trimmed message text.
func (m *MessageEvent) Text() string {
	return strings.TrimSpace(m.Message.Content.Text)
}

// FollowEvent is the payload of bot.followed / bot.unfollowed.
type FollowEvent struct {
	Sender Sender `json:"sender"`
	Chat   Chat   `json:"chat"`
}

// GroupMemberEvent is the payload of group.join / group.leave.
type GroupMemberEvent struct {
	Sender    Sender `json:"sender"`
	Chat      Chat   `json:"chat"`
	AvatarURL string `json:"avatarUrl"`
	GroupName string `json:"groupName"`
}

// FormValue is one submitted form field: either a free-text value or a
// select choice, depending on the widget.
type FormValue struct {
	Value       string `json:"value"`
	SelectValue string `json:"selectValue"`
}

// Chosen returns whichever of the two value slots is populated.
func (v FormValue) Chosen() string {
	if v.SelectValue != "" {
		return v.SelectValue
	}
	return v.Value
}

// On reports whether a select/toggle field reads as enabled.
func (v FormValue) On() bool {
	switch strings.ToLower(v.Chosen()) {
	case "on", "true", "1", "enabled", "yes":
		return true
	}
	return false
}

// ButtonReportEvent is the payload of button.report.inline form submits.
type ButtonReportEvent struct {
	Sender     Sender `json:"sender"`
	Chat       Chat   `json:"chat"`
	ReportData struct {
		FormData map[string]FormValue `json:"formData"`
	} `json:"reportData"`
}

// SettingEvent is the payload of bot.setting. SettingJSON is a
// JSON-encoded map of opaque form-field IDs to FormValue.
type SettingEvent struct {
	GroupID     string `json:"groupId"`
	Sender      Sender `json:"sender"`
	SettingJSON string `json:"settingJson"`
}

// FormData decodes the embedded settingJson map.
func (e *SettingEvent) FormData() (map[string]FormValue, error) {
	out := map[string]FormValue{}
	if strings.TrimSpace(e.SettingJSON) == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(e.SettingJSON), &out); err != nil {
		return nil, fmt.Errorf("event: settingJson: %w", err)
	}
	return out, nil
}

// ShortcutMenuEvent is the payload of bot.shortcut.menu.
type ShortcutMenuEvent struct {
	Sender Sender `json:"sender"`
	Chat   Chat   `json:"chat"`
}

// Inbound is a validated, tagged event ready for the bot loop. Exactly
// one payload pointer is non-nil, matching Type.
type Inbound struct {
	TraceID  string
	Type     string
	Received time.Time

	Message      *MessageEvent
	Follow       *FollowEvent
	GroupMember  *GroupMemberEvent
	ButtonReport *ButtonReportEvent
	Setting      *SettingEvent
	ShortcutMenu *ShortcutMenuEvent
}

// Parse decodes a webhook body into an Envelope.
func Parse(body []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("event: decode envelope: %w", err)
	}
	if env.Header.EventType == "" {
		return nil, fmt.Errorf("%w: missing header.eventType", ErrMalformed)
	}
	return &env, nil
}

// Decode validates the envelope payload and returns a tagged Inbound.
// Unknown event types and payloads missing required fields return
// ErrMalformed so the caller can drop them with a debug log.
func Decode(env *Envelope) (*Inbound, error) {
	in := &Inbound{Type: env.Header.EventType}

	switch env.Header.EventType {
	case TypeMessageNormal, TypeMessageInstruction:
		var ev MessageEvent
		if err := json.Unmarshal(env.Event, &ev); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if ev.Sender.SenderID == "" || ev.Chat.ChatID == "" || ev.Message.MsgID == "" {
			return nil, fmt.Errorf("%w: message event missing sender/chat/msgId", ErrMalformed)
		}
		in.Message = &ev
	case TypeBotFollowed, TypeBotUnfollowed:
		var ev FollowEvent
		if err := json.Unmarshal(env.Event, &ev); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if ev.Sender.SenderID == "" {
			return nil, fmt.Errorf("%w: follow event missing sender", ErrMalformed)
		}
		in.Follow = &ev
	case TypeGroupJoin, TypeGroupLeave:
		var ev GroupMemberEvent
		if err := json.Unmarshal(env.Event, &ev); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if ev.Sender.SenderID == "" || ev.Chat.ChatID == "" {
			return nil, fmt.Errorf("%w: member event missing sender/chat", ErrMalformed)
		}
		in.GroupMember = &ev
	case TypeButtonReport:
		var ev ButtonReportEvent
		if err := json.Unmarshal(env.Event, &ev); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if ev.Chat.ChatID == "" {
			return nil, fmt.Errorf("%w: button report missing chat", ErrMalformed)
		}
		in.ButtonReport = &ev
	case TypeBotSetting:
		var ev SettingEvent
		if err := json.Unmarshal(env.Event, &ev); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if ev.GroupID == "" {
			return nil, fmt.Errorf("%w: setting event missing groupId", ErrMalformed)
		}
		in.Setting = &ev
	case TypeShortcutMenu:
		var ev ShortcutMenuEvent
		if err := json.Unmarshal(env.Event, &ev); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if ev.Chat.ChatID == "" {
			return nil, fmt.Errorf("%w: shortcut menu missing chat", ErrMalformed)
		}
		in.ShortcutMenu = &ev
	default:
		return nil, fmt.Errorf("%w: unknown event type %q", ErrMalformed, env.Header.EventType)
	}

	return in, nil
}
