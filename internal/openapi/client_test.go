package openapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL, "test-token", 5*time.Second)
}

func TestSendChecksLogicalCode(t *testing.T) {
	var gotPath, gotToken string
	var gotBody map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotToken = r.URL.Query().Get("token")
		json.NewDecoder(r.Body).Decode(&gotBody)
		// HTTP 200 but logical failure.
		json.NewEncoder(w).Encode(Result{Code: 40, Msg: "rate limited"})
	})

	res, err := c.SendText(context.Background(), "G1", RecvTypeGroup, "hi")
	if err != nil {
		t.Fatalf("SendText: %v", err)
	}
	if res.Ok() {
		t.Error("HTTP 200 must not imply logical success")
	}
	if gotPath != "/bot/send" {
		t.Errorf("path = %q", gotPath)
	}
	if gotToken != "test-token" {
		t.Errorf("token = %q", gotToken)
	}
	if gotBody["recvId"] != "G1" || gotBody["contentType"] != "text" {
		t.Errorf("body = %v", gotBody)
	}
	content, _ := gotBody["content"].(map[string]any)
	if content["text"] != "hi" {
		t.Errorf("content = %v", gotBody["content"])
	}
}

func TestRecall(t *testing.T) {
	var gotBody map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bot/recall" {
			t.Errorf("path = %q", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(Result{Code: CodeOK})
	})

	res, err := c.Recall(context.Background(), "M1", "G1", "group")
	if err != nil {
		t.Fatalf("Recall: %v", err)
	}
	if !res.Ok() {
		t.Errorf("expected success, got code %d", res.Code)
	}
	if gotBody["msgId"] != "M1" || gotBody["chatId"] != "G1" || gotBody["chatType"] != "group" {
		t.Errorf("body = %v", gotBody)
	}
}

func TestBatchSend(t *testing.T) {
	var gotBody map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bot/batch_send" {
			t.Errorf("path = %q", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(Result{Code: CodeOK})
	})

	if _, err := c.BatchSend(context.Background(), []string{"G1", "G2"}, RecvTypeGroup, ContentMarkdown, "news"); err != nil {
		t.Fatalf("BatchSend: %v", err)
	}
	ids, _ := gotBody["recvIds"].([]any)
	if len(ids) != 2 {
		t.Errorf("recvIds = %v", gotBody["recvIds"])
	}
}

func TestResultMsgID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Result{
			Code: CodeOK,
			Data: json.RawMessage(`{"messageInfo":{"msgId":"M42"}}`),
		})
	})

	res, err := c.SendMarkdown(context.Background(), "G1", RecvTypeGroup, "hi")
	if err != nil {
		t.Fatalf("SendMarkdown: %v", err)
	}
	if got := res.MsgID(); got != "M42" {
		t.Errorf("MsgID = %q", got)
	}

	if got := (&Result{Code: CodeOK}).MsgID(); got != "" {
		t.Errorf("MsgID without data = %q", got)
	}
}

func TestSendHTTPErrorIsError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})
	if _, err := c.SendText(context.Background(), "U1", RecvTypeUser, "hi"); err == nil {
		t.Error("expected error on HTTP 502")
	}
}

func TestIsGroupAdmin(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/group/G1/members/U1/admin" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Write([]byte(`{"code": 0, "data": {"isAdmin": true}}`))
	})

	ok, err := c.IsGroupAdmin(context.Background(), "G1", "U1")
	if err != nil {
		t.Fatalf("IsGroupAdmin: %v", err)
	}
	if !ok {
		t.Error("expected admin")
	}
}
