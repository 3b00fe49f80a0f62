package broadcast

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/YunGuard/YunGuard/internal/openapi"
	"github.com/YunGuard/YunGuard/internal/store"
)

type batchCall struct {
	recvIDs     []string
	contentType string
	text        string
}

type fakeSender struct {
	mu         sync.Mutex
	markdown   []string
	text       []string
	batches    []batchCall
	rejectCode int
}

func (f *fakeSender) SendMarkdown(ctx context.Context, recvID, recvType, text string) (*openapi.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markdown = append(f.markdown, text)
	if f.rejectCode != 0 {
		return &openapi.Result{Code: f.rejectCode}, nil
	}
	return &openapi.Result{Code: openapi.CodeOK}, nil
}

func (f *fakeSender) SendText(ctx context.Context, recvID, recvType, text string) (*openapi.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.text = append(f.text, text)
	return &openapi.Result{Code: openapi.CodeOK}, nil
}

func (f *fakeSender) BatchSend(ctx context.Context, recvIDs []string, recvType, contentType, text string) (*openapi.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, batchCall{
		recvIDs:     append([]string(nil), recvIDs...),
		contentType: contentType,
		text:        text,
	})
	if f.rejectCode != 0 && contentType == openapi.ContentMarkdown {
		return &openapi.Result{Code: f.rejectCode}, nil
	}
	return &openapi.Result{Code: openapi.CodeOK}, nil
}

func (f *fakeSender) batchCalls() []batchCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]batchCall(nil), f.batches...)
}

func (f *fakeSender) sent() (markdown, text []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.markdown...), append([]string(nil), f.text...)
}

func newTestEngine(t *testing.T) (*Engine, *store.Store, *fakeSender) {
	t.Helper()
	s, err := store.NewStore(t.TempDir(), 5*time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	api := &fakeSender{}
	return New(s, api, nil, 0), s, api
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestSetupValidation(t *testing.T) {
	e, _, _ := newTestEngine(t)
	if err := e.Setup(context.Background(), "G1", 0, "hello"); !errors.Is(err, ErrBadInterval) {
		t.Errorf("err = %v, want ErrBadInterval", err)
	}
	if err := e.Setup(context.Background(), "G1", 5, "   "); !errors.Is(err, ErrEmptyBody) {
		t.Errorf("err = %v, want ErrEmptyBody", err)
	}
}

func TestSetupPersistsAndSendsImmediately(t *testing.T) {
	e, s, api := newTestEngine(t)
	defer e.Shutdown()

	if err := e.Setup(context.Background(), "G1", 30, "line one\nline two"); err != nil {
		t.Fatal(err)
	}

	cfg := s.Load("G1")
	if !cfg.Scheduled.Enabled || cfg.Scheduled.Interval != 30 || cfg.Scheduled.Content != "line one\nline two" {
		t.Errorf("persisted schedule = %+v", cfg.Scheduled)
	}
	if !e.Active("G1") {
		t.Error("timer should be running")
	}

	waitFor(t, func() bool {
		md, _ := api.sent()
		return len(md) == 2
	})
}

func TestBlankLinesSkipped(t *testing.T) {
	e, _, api := newTestEngine(t)
	defer e.Shutdown()

	if err := e.Setup(context.Background(), "G1", 30, "one\n\n  \ntwo"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool {
		md, _ := api.sent()
		return len(md) == 2
	})
	md, _ := api.sent()
	if md[0] != "one" || md[1] != "two" {
		t.Errorf("lines = %v", md)
	}
}

func TestContentRejectedRetriesAsText(t *testing.T) {
	e, _, api := newTestEngine(t)
	defer e.Shutdown()
	api.rejectCode = openapi.CodeContentRejected

	if err := e.Setup(context.Background(), "G1", 30, "spicy **markdown**"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool {
		_, text := api.sent()
		return len(text) == 1
	})
	_, text := api.sent()
	if text[0] != "spicy **markdown**" {
		t.Errorf("retry text = %q", text[0])
	}
}

func TestClearStopsAndPersists(t *testing.T) {
	e, s, api := newTestEngine(t)
	defer e.Shutdown()

	if err := e.Setup(context.Background(), "G1", 30, "hello"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool {
		md, _ := api.sent()
		return len(md) == 1
	})

	if err := e.Clear("G1"); err != nil {
		t.Fatal(err)
	}
	if e.Active("G1") {
		t.Error("timer still running after clear")
	}
	cfg := s.Load("G1")
	if cfg.Scheduled.Enabled || cfg.Scheduled.Interval != 0 || cfg.Scheduled.Content != "" {
		t.Errorf("schedule after clear = %+v", cfg.Scheduled)
	}
}

func TestSetupReplacesTimer(t *testing.T) {
	e, s, api := newTestEngine(t)
	defer e.Shutdown()

	if err := e.Setup(context.Background(), "G1", 30, "old"); err != nil {
		t.Fatal(err)
	}
	if err := e.Setup(context.Background(), "G1", 10, "new"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool {
		md, _ := api.sent()
		return len(md) >= 2
	})
	if cfg := s.Load("G1"); cfg.Scheduled.Interval != 10 || cfg.Scheduled.Content != "new" {
		t.Errorf("schedule = %+v, want replacement", cfg.Scheduled)
	}
}

func TestRestoreAllSkipsImmediateSend(t *testing.T) {
	e, s, api := newTestEngine(t)
	defer e.Shutdown()

	cfg := s.Load("G1")
	cfg.Scheduled.Enabled = true
	cfg.Scheduled.Interval = 60
	cfg.Scheduled.Content = "restored"
	if !s.Save("G1", cfg) {
		t.Fatal("save failed")
	}
	other := s.Load("G2")
	if !s.Save("G2", other) {
		t.Fatal("save failed")
	}

	if n := e.RestoreAll(context.Background()); n != 1 {
		t.Fatalf("restored = %d, want 1", n)
	}
	if !e.Active("G1") {
		t.Error("restored timer should be running")
	}
	if e.Active("G2") {
		t.Error("group without a schedule must not get a timer")
	}

	// A restored schedule waits a full interval; nothing goes out now.
	time.Sleep(50 * time.Millisecond)
	md, text := api.sent()
	if len(md) != 0 || len(text) != 0 {
		t.Errorf("restore sent immediately: md=%v text=%v", md, text)
	}
}

func TestAnnounceBatchesEachLine(t *testing.T) {
	e, _, api := newTestEngine(t)

	groups := []string{"G1", "G2", "G3"}
	if err := e.Announce(context.Background(), groups, "first\n\nsecond"); err != nil {
		t.Fatal(err)
	}

	calls := api.batchCalls()
	if len(calls) != 2 {
		t.Fatalf("batch calls = %d, want 2", len(calls))
	}
	for _, c := range calls {
		if len(c.recvIDs) != 3 || c.recvIDs[0] != "G1" || c.recvIDs[2] != "G3" {
			t.Errorf("batch targets = %v", c.recvIDs)
		}
		if c.contentType != openapi.ContentMarkdown {
			t.Errorf("contentType = %q", c.contentType)
		}
	}
	if calls[0].text != "first" || calls[1].text != "second" {
		t.Errorf("lines = %q, %q", calls[0].text, calls[1].text)
	}
}

func TestAnnounceValidation(t *testing.T) {
	e, _, api := newTestEngine(t)

	if err := e.Announce(context.Background(), nil, "hello"); !errors.Is(err, ErrNoTargets) {
		t.Errorf("err = %v, want ErrNoTargets", err)
	}
	if err := e.Announce(context.Background(), []string{"G1"}, "  \n "); !errors.Is(err, ErrEmptyBody) {
		t.Errorf("err = %v, want ErrEmptyBody", err)
	}
	if calls := api.batchCalls(); len(calls) != 0 {
		t.Errorf("rejected announce still sent %d batches", len(calls))
	}
}

func TestAnnounceRejectedLineRetriesAsText(t *testing.T) {
	e, _, api := newTestEngine(t)
	api.rejectCode = openapi.CodeContentRejected

	if err := e.Announce(context.Background(), []string{"G1", "G2"}, "spicy **markdown**"); err != nil {
		t.Fatal(err)
	}

	calls := api.batchCalls()
	if len(calls) != 2 {
		t.Fatalf("batch calls = %d, want markdown then text retry", len(calls))
	}
	if calls[0].contentType != openapi.ContentMarkdown || calls[1].contentType != openapi.ContentText {
		t.Errorf("content types = %q, %q", calls[0].contentType, calls[1].contentType)
	}
	if calls[1].text != "spicy **markdown**" {
		t.Errorf("retry text = %q", calls[1].text)
	}
}
