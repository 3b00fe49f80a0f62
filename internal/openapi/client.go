// Package openapi is the outbound client for the Yunhu bot open-api.
package openapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Receiver and content type strings used by the send endpoints.
const (
	RecvTypeUser  = "user"
	RecvTypeGroup = "group"

	ContentText     = "text"
	ContentMarkdown = "markdown"
)

// Platform result codes. The HTTP status is not enough: the platform
// reports logical failure inside the body, so call sites must check Code.
const (
	// CodeOK is the logical success code.
	CodeOK = 0
	// CodeContentRejected is returned when the platform refuses the
	// content payload, typically malformed markdown. The broadcast
	// engine retries such sends once as plain text.
	CodeContentRejected = 1002
)

// Result is the decoded platform response body.
type Result struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Ok reports logical success.
func (r *Result) Ok() bool {
	return r != nil && r.Code == CodeOK
}

// MsgID extracts the message ID a send response carries, or "" when the
// response has none. Callers keep the ID to edit or recall the message
// later.
func (r *Result) MsgID() string {
	if r == nil || len(r.Data) == 0 {
		return ""
	}
	var data struct {
		MessageInfo struct {
			MsgID string `json:"msgId"`
		} `json:"messageInfo"`
	}
	if err := json.Unmarshal(r.Data, &data); err != nil {
		return ""
	}
	return data.MessageInfo.MsgID
}

// Client talks to the Yunhu open-api with a bot token.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New creates a client. timeout bounds every outbound call.
func New(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

type textContent struct {
	Text string `json:"text"`
}

// Send sends a message to a single receiver.
func (c *Client) Send(ctx context.Context, recvID, recvType, contentType, text string) (*Result, error) {
	return c.post(ctx, "/bot/send", map[string]any{
		"recvId":      recvID,
		"recvType":    recvType,
		"contentType": contentType,
		"content":     textContent{Text: text},
	})
}

// SendText sends a plain-text message.
func (c *Client) SendText(ctx context.Context, recvID, recvType, text string) (*Result, error) {
	return c.Send(ctx, recvID, recvType, ContentText, text)
}

// SendMarkdown sends a markdown message.
func (c *Client) SendMarkdown(ctx context.Context, recvID, recvType, text string) (*Result, error) {
	return c.Send(ctx, recvID, recvType, ContentMarkdown, text)
}

// BatchSend sends one message to many receivers of the same type.
func (c *Client) BatchSend(ctx context.Context, recvIDs []string, recvType, contentType, text string) (*Result, error) {
	return c.post(ctx, "/bot/batch_send", map[string]any{
		"recvIds":     recvIDs,
		"recvType":    recvType,
		"contentType": contentType,
		"content":     textContent{Text: text},
	})
}

// Edit replaces the content of a previously sent message.
func (c *Client) Edit(ctx context.Context, msgID, recvID, recvType, contentType, text string) (*Result, error) {
	return c.post(ctx, "/bot/edit", map[string]any{
		"msgId":       msgID,
		"recvId":      recvID,
		"recvType":    recvType,
		"contentType": contentType,
		"content":     textContent{Text: text},
	})
}

// Recall retracts a message from a chat.
func (c *Client) Recall(ctx context.Context, msgID, chatID, chatType string) (*Result, error) {
	return c.post(ctx, "/bot/recall", map[string]any{
		"msgId":    msgID,
		"chatId":   chatID,
		"chatType": chatType,
	})
}

// IsGroupAdmin asks the platform whether userID administers groupID.
// Lookup failures read as "not admin" rather than an error surfaced to
// the chat; the caller only gets err for transport problems worth logging.
func (c *Client) IsGroupAdmin(ctx context.Context, groupID, userID string) (bool, error) {
	u := fmt.Sprintf("%s/group/%s/members/%s/admin?token=%s",
		c.baseURL, url.PathEscape(groupID), url.PathEscape(userID), url.QueryEscape(c.token))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	var body struct {
		Code int `json:"code"`
		Data struct {
			IsAdmin bool `json:"isAdmin"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, fmt.Errorf("openapi: decode admin check: %w", err)
	}
	return body.Code == CodeOK && body.Data.IsAdmin, nil
}

func (c *Client) post(ctx context.Context, path string, params map[string]any) (*Result, error) {
	payload, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	u := fmt.Sprintf("%s%s?token=%s", c.baseURL, path, url.QueryEscape(c.token))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("openapi: %s status %d", path, resp.StatusCode)
	}
	var res Result
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, fmt.Errorf("openapi: decode %s response: %w", path, err)
	}
	return &res, nil
}
