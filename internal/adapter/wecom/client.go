// Package wecom posts text messages to a WeCom group-bot webhook.
package wecom

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Client sends text messages to a single webhook URL.
type Client struct {
	webhookURL string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a webhook client. An empty webhookURL yields a client
// that logs messages instead of sending them.
func NewClient(webhookURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		webhookURL: webhookURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// Enabled reports whether a webhook URL is configured.
func (c *Client) Enabled() bool {
	return c.webhookURL != ""
}

// Notify posts content as a text message. Non-2xx responses and bot-level
// error codes are returned as errors.
func (c *Client) Notify(ctx context.Context, content string) error {
	if !c.Enabled() {
		c.logger.Warn("webhook url is empty, message not sent", "content", content)
		return nil
	}

	payload, err := json.Marshal(message{MsgType: "text", Text: textBody{Content: content}})
	if err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook error: status %d: %s", resp.StatusCode, body)
	}

	// The bot answers 200 with a non-zero errcode for bad keys and rate limits.
	var r result
	if json.Unmarshal(body, &r) == nil && r.ErrCode != 0 {
		return fmt.Errorf("webhook error: errcode %d: %s", r.ErrCode, r.ErrMsg)
	}

	c.logger.Info("notification sent", "status", resp.StatusCode)
	return nil
}

// Webhook wire types.

type message struct {
	MsgType string   `json:"msgtype"`
	Text    textBody `json:"text"`
}

type textBody struct {
	Content string `json:"content"`
}

type result struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}
