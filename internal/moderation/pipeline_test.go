package moderation

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/YunGuard/YunGuard/internal/event"
	"github.com/YunGuard/YunGuard/internal/openapi"
	"github.com/YunGuard/YunGuard/internal/store"
)

type sentMessage struct {
	RecvID string
	Text   string
}

type recalled struct {
	MsgID    string
	ChatID   string
	ChatType string
}

type fakeAPI struct {
	sends      []sentMessage
	recalls    []recalled
	recallCode int
}

func (f *fakeAPI) SendText(ctx context.Context, recvID, recvType, text string) (*openapi.Result, error) {
	f.sends = append(f.sends, sentMessage{RecvID: recvID, Text: text})
	return &openapi.Result{Code: openapi.CodeOK}, nil
}

func (f *fakeAPI) Recall(ctx context.Context, msgID, chatID, chatType string) (*openapi.Result, error) {
	f.recalls = append(f.recalls, recalled{MsgID: msgID, ChatID: chatID, ChatType: chatType})
	return &openapi.Result{Code: f.recallCode}, nil
}

type fixture struct {
	pipeline *Pipeline
	store    *store.Store
	lists    *store.BlacklistStore
	api      *fakeAPI
	dir      string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	s, err := store.NewStore(dir, 5*time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	lists, err := store.NewBlacklistStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	api := &fakeAPI{}
	return &fixture{
		pipeline: New(s, lists, api, nil),
		store:    s,
		lists:    lists,
		api:      api,
		dir:      dir,
	}
}

func (f *fixture) writeGlobal(t *testing.T, file string, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(f.dir, file), []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
}

func groupMessage(groupID, senderID, nickname, text string) *event.MessageEvent {
	return &event.MessageEvent{
		Sender: event.Sender{SenderID: senderID, SenderNickname: nickname},
		Chat:   event.Chat{ChatID: groupID, ChatType: event.ChatTypeGroup},
		Message: event.Message{
			MsgID:       "M1",
			ContentType: "text",
			Content:     event.MessageContent{Text: text},
		},
	}
}

func TestGroupBlacklistIntercepts(t *testing.T) {
	f := newFixture(t)
	cfg := f.store.Load("G1")
	cfg.UseGroupBlacklist = true
	cfg.Blacklist = []string{"U1"}
	f.store.Save("G1", cfg)

	v := f.pipeline.Handle(context.Background(), groupMessage("G1", "U1", "alice", "hi"), "t1")
	if !v.Intercepted || v.Stage != StageGroup {
		t.Fatalf("verdict = %+v", v)
	}
	if len(f.api.recalls) != 1 {
		t.Fatalf("recalls = %v", f.api.recalls)
	}
	rc := f.api.recalls[0]
	if rc.MsgID != "M1" || rc.ChatID != "G1" || rc.ChatType != "group" {
		t.Errorf("recall = %+v", rc)
	}
	if len(f.api.sends) != 1 || !strings.Contains(f.api.sends[0].Text, "U1") {
		t.Errorf("sends = %v", f.api.sends)
	}
}

func TestPublicBlacklistPrecedesBannedWords(t *testing.T) {
	f := newFixture(t)
	f.writeGlobal(t, "public_blacklist.json", `["U1"]`)
	f.writeGlobal(t, "banned_words.json", `["spam"]`)
	cfg := f.store.Load("G1")
	cfg.UsePublicBlacklist = true
	f.store.Save("G1", cfg)

	v := f.pipeline.Handle(context.Background(), groupMessage("G1", "U1", "alice", "buy spam now"), "t1")
	if v.Stage != StagePublic {
		t.Errorf("stage = %q, want public blacklist to win over banned words", v.Stage)
	}
}

func TestSubscribedBlacklistIsFirst(t *testing.T) {
	f := newFixture(t)
	f.writeGlobal(t, "public_blacklist.json", `["U1"]`)
	f.lists.Create("trolls", "creator")
	f.lists.AddUser("trolls", "U1", "creator")

	cfg := f.store.Load("G1")
	cfg.UsePublicBlacklist = true
	cfg.Subscription = store.SubscriptionConfig{Enabled: true, List: []string{"trolls"}}
	f.store.Save("G1", cfg)

	v := f.pipeline.Handle(context.Background(), groupMessage("G1", "U1", "alice", "hi"), "t1")
	if v.Stage != StageSubscribed {
		t.Errorf("stage = %q", v.Stage)
	}
}

func TestVoteMutedIsSilent(t *testing.T) {
	f := newFixture(t)
	cfg := f.store.Load("G1")
	cfg.VoteMute.Enabled = true
	cfg.VoteMute.MutedUsers = []string{"U1"}
	f.store.Save("G1", cfg)

	v := f.pipeline.Handle(context.Background(), groupMessage("G1", "U1", "alice", "hi"), "t1")
	if !v.Intercepted || v.Stage != StageVoteMute {
		t.Fatalf("verdict = %+v", v)
	}
	if len(f.api.recalls) != 1 {
		t.Errorf("recalls = %v", f.api.recalls)
	}
	if len(f.api.sends) != 0 {
		t.Errorf("vote-mute recall must not send a notice, got %v", f.api.sends)
	}
}

func TestSharedBlacklistUnionsBoundGroups(t *testing.T) {
	f := newFixture(t)
	peer := f.store.Load("G2")
	peer.Blacklist = []string{"U1"}
	f.store.Save("G2", peer)

	cfg := f.store.Load("G1")
	cfg.UseSharedBlacklist = true
	cfg.BoundGroups = []string{"G2"}
	f.store.Save("G1", cfg)

	v := f.pipeline.Handle(context.Background(), groupMessage("G1", "U1", "alice", "hi"), "t1")
	if v.Stage != StageGroup {
		t.Errorf("stage = %q", v.Stage)
	}
}

func TestBannedWordMatch(t *testing.T) {
	f := newFixture(t)
	f.writeGlobal(t, "banned_words.json", `["spam"]`)
	f.store.Load("G1")

	v := f.pipeline.Handle(context.Background(), groupMessage("G1", "U1", "alice", "this is spammy"), "t1")
	if !v.Intercepted || v.Word != "spam" {
		t.Fatalf("verdict = %+v", v)
	}
	if len(f.api.sends) != 1 || !strings.Contains(f.api.sends[0].Text, "spam") {
		t.Errorf("notice should name the word, got %v", f.api.sends)
	}

	// Case-sensitive: "SPAM" does not match.
	f.api.sends = nil
	f.api.recalls = nil
	if v := f.pipeline.Handle(context.Background(), groupMessage("G1", "U1", "alice", "SPAM"), "t2"); v.Intercepted {
		t.Errorf("matching must be case-sensitive, got %+v", v)
	}
}

func TestDisabledWordIsExempt(t *testing.T) {
	f := newFixture(t)
	f.writeGlobal(t, "banned_words.json", `["spam"]`)
	cfg := f.store.Load("G1")
	cfg.BlockedWords.DisabledWords = []string{"spam"}
	f.store.Save("G1", cfg)

	if v := f.pipeline.Handle(context.Background(), groupMessage("G1", "U1", "alice", "spam spam"), "t1"); v.Intercepted {
		t.Errorf("exempted word must pass, got %+v", v)
	}
}

func TestBlockedWordsDisabledSkipsStage(t *testing.T) {
	f := newFixture(t)
	f.writeGlobal(t, "banned_words.json", `["spam"]`)
	cfg := f.store.Load("G1")
	cfg.BlockedWords.Disabled = true
	f.store.Save("G1", cfg)

	if v := f.pipeline.Handle(context.Background(), groupMessage("G1", "U1", "alice", "spam"), "t1"); v.Intercepted {
		t.Errorf("disabled stage must pass, got %+v", v)
	}
}

func TestRelayFramingAndMutuality(t *testing.T) {
	f := newFixture(t)
	g1 := f.store.Load("G1")
	g1.CrossGroup = store.CrossGroupConfig{Enabled: true, LinkedGroups: []string{"G1", "G2", "G3"}}
	f.store.Save("G1", g1)

	g2 := f.store.Load("G2")
	g2.CrossGroup = store.CrossGroupConfig{Enabled: true, LinkedGroups: []string{"G1"}}
	f.store.Save("G2", g2)

	// G3 never confirmed the link back.
	f.store.Load("G3")

	sent := f.pipeline.Relay(context.Background(), groupMessage("G1", "U1", "sender", "text"), "t1")
	if sent != 1 {
		t.Fatalf("sent = %d", sent)
	}
	if len(f.api.sends) != 1 || f.api.sends[0].RecvID != "G2" {
		t.Fatalf("sends = %v", f.api.sends)
	}
	if f.api.sends[0].Text != "[G1]sender(U1): text" {
		t.Errorf("framing = %q", f.api.sends[0].Text)
	}
}

func TestRelayDisabled(t *testing.T) {
	f := newFixture(t)
	f.store.Load("G1")
	if sent := f.pipeline.Relay(context.Background(), groupMessage("G1", "U1", "alice", "hi"), "t1"); sent != 0 {
		t.Errorf("sent = %d", sent)
	}
}

func TestCleanMessagePasses(t *testing.T) {
	f := newFixture(t)
	f.store.Load("G1")

	v := f.pipeline.Handle(context.Background(), groupMessage("G1", "U1", "alice", "hello"), "t1")
	if v.Intercepted {
		t.Errorf("verdict = %+v", v)
	}
	if len(f.api.recalls) != 0 || len(f.api.sends) != 0 {
		t.Errorf("no calls expected, got recalls=%v sends=%v", f.api.recalls, f.api.sends)
	}
}
