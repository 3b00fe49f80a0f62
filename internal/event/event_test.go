package event

import (
	"errors"
	"testing"
)

func TestParseAndDecodeNormalMessage(t *testing.T) {
	body := []byte(`{
		"version": "1.0",
		"header": {"eventId": "e1", "eventType": "message.receive.normal", "eventTime": 1712000000},
		"event": {
			"sender": {"senderId": "U1", "senderNickname": "alice", "senderUserLevel": "member"},
			"chat": {"chatId": "G1", "chatType": "group"},
			"message": {"msgId": "M1", "contentType": "text", "content": {"text": " hello "}}
		}
	}`)

	env, err := Parse(body)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	in, err := Decode(env)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if in.Type != TypeMessageNormal {
		t.Errorf("type = %q", in.Type)
	}
	if in.Message == nil {
		t.Fatal("expected message payload")
	}
	if in.Message.Text() != "hello" {
		t.Errorf("text = %q", in.Message.Text())
	}
	if in.Message.Chat.ChatType != ChatTypeGroup {
		t.Errorf("chat type = %q", in.Message.Chat.ChatType)
	}
}

func TestDecodeDropsMessageWithoutSender(t *testing.T) {
	env, err := Parse([]byte(`{
		"header": {"eventType": "message.receive.normal"},
		"event": {"chat": {"chatId": "G1"}, "message": {"msgId": "M1"}}
	}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, err := Decode(env); !errors.Is(err, ErrMalformed) {
		t.Errorf("expected ErrMalformed, got %v", err)
	}
}

func TestDecodeDropsShortcutMenuWithoutChat(t *testing.T) {
	env, err := Parse([]byte(`{
		"header": {"eventType": "bot.shortcut.menu"},
		"event": {"sender": {"senderId": "U1"}}
	}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, err := Decode(env); !errors.Is(err, ErrMalformed) {
		t.Errorf("expected ErrMalformed, got %v", err)
	}
}

func TestDecodeShortcutMenu(t *testing.T) {
	env, err := Parse([]byte(`{
		"header": {"eventType": "bot.shortcut.menu"},
		"event": {"sender": {"senderId": "U1"}, "chat": {"chatId": "G1", "chatType": "group"}}
	}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	in, err := Decode(env)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if in.ShortcutMenu == nil || in.ShortcutMenu.Chat.ChatID != "G1" {
		t.Errorf("shortcut payload = %+v", in.ShortcutMenu)
	}
}

func TestDecodeUnknownType(t *testing.T) {
	env, err := Parse([]byte(`{"header": {"eventType": "message.receive.hologram"}, "event": {}}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, err := Decode(env); !errors.Is(err, ErrMalformed) {
		t.Errorf("expected ErrMalformed, got %v", err)
	}
}

func TestParseRejectsMissingEventType(t *testing.T) {
	if _, err := Parse([]byte(`{"header": {}, "event": {}}`)); !errors.Is(err, ErrMalformed) {
		t.Errorf("expected ErrMalformed, got %v", err)
	}
}

func TestSettingEventFormData(t *testing.T) {
	ev := SettingEvent{
		GroupID:     "G1",
		SettingJSON: `{"qavaqt": {"value": "rules text"}, "wzqhum": {"selectValue": "on"}}`,
	}
	form, err := ev.FormData()
	if err != nil {
		t.Fatalf("FormData: %v", err)
	}
	if form["qavaqt"].Chosen() != "rules text" {
		t.Errorf("value = %q", form["qavaqt"].Chosen())
	}
	if !form["wzqhum"].On() {
		t.Error("expected toggle to read as on")
	}
}

func TestSenderIsPrivileged(t *testing.T) {
	if !(Sender{SenderUserLevel: LevelOwner}).IsPrivileged() {
		t.Error("owner should be privileged")
	}
	if !(Sender{SenderUserLevel: LevelAdministrator}).IsPrivileged() {
		t.Error("administrator should be privileged")
	}
	if (Sender{SenderUserLevel: LevelMember}).IsPrivileged() {
		t.Error("member should not be privileged")
	}
}
