package line

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	DefaultAPIBase     = "https://api.line.me"
	defaultHTTPTimeout = 10 * time.Second

	// MaxTextLength is the Messaging API limit for one text message, in characters.
	MaxTextLength = 5000
	truncatedTail = "…"
)

// ErrEmptyReplyToken is returned when an event carries no reply token.
var ErrEmptyReplyToken = errors.New("line: reply token is required")

// Client sends replies through the LINE Messaging API.
type Client struct {
	channelAccessToken string
	apiBase            string
	httpClient         *http.Client
}

func NewClient(channelAccessToken string) *Client {
	return &Client{
		channelAccessToken: channelAccessToken,
		apiBase:            DefaultAPIBase,
		httpClient:         &http.Client{Timeout: defaultHTTPTimeout},
	}
}

// SetAPIBase overrides the Messaging API base URL.
func (c *Client) SetAPIBase(base string) {
	if base = strings.TrimRight(strings.TrimSpace(base), "/"); base != "" {
		c.apiBase = base
	}
}

// ReplyText answers a webhook event with a single text message.
func (c *Client) ReplyText(ctx context.Context, replyToken, text string) error {
	if replyToken == "" {
		return ErrEmptyReplyToken
	}
	body, err := json.Marshal(ReplyRequest{
		ReplyToken: replyToken,
		Messages:   []TextMessage{{Type: MessageTypeText, Text: TruncateText(text)}},
	})
	if err != nil {
		return fmt.Errorf("line: marshal reply: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+"/v2/bot/message/reply", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("line: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.channelAccessToken)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("line: send reply: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var apiErr ErrorResponse
	if err := json.Unmarshal(respBody, &apiErr); err == nil && apiErr.Message != "" {
		return fmt.Errorf("line: API error %d: %s", resp.StatusCode, apiErr.Message)
	}
	return fmt.Errorf("line: unexpected status %d: %s", resp.StatusCode, string(respBody))
}

// TruncateText cuts text to MaxTextLength characters.
func TruncateText(text string) string {
	if utf8.RuneCountInString(text) <= MaxTextLength {
		return text
	}
	runes := []rune(text)
	return string(runes[:MaxTextLength-utf8.RuneCountInString(truncatedTail)]) + truncatedTail
}
