package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// TelegramClient sends outbound messages through the Bot API and manages
// webhook registration. Inbound updates arrive on our webhook handler; this
// client is outbound only.
type TelegramClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// InlineButton is one tappable action under a message.
type InlineButton struct {
	Text         string `json:"text"`
	URL          string `json:"url,omitempty"`
	CallbackData string `json:"callback_data,omitempty"`
}

type sendMessageRequest struct {
	ChatID      string       `json:"chat_id"`
	Text        string       `json:"text"`
	ParseMode   string       `json:"parse_mode,omitempty"`
	ReplyMarkup *replyMarkup `json:"reply_markup,omitempty"`
}

type replyMarkup struct {
	InlineKeyboard [][]InlineButton `json:"inline_keyboard"`
}

type telegramEnvelope struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

// WebhookInfo is the Bot API's view of the registered webhook.
type WebhookInfo struct {
	URL                  string `json:"url"`
	PendingUpdateCount   int    `json:"pending_update_count"`
	LastErrorMessage     string `json:"last_error_message"`
	LastErrorDate        int64  `json:"last_error_date"`
	MaxConnections       int    `json:"max_connections"`
	IPAddress            string `json:"ip_address"`
	HasCustomCertificate bool   `json:"has_custom_certificate"`
}

// NewTelegramClient creates a Bot API client.
func NewTelegramClient(token string) *TelegramClient {
	return &TelegramClient{
		baseURL:    "https://api.telegram.org",
		token:      token,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// SendMessage delivers a message, optionally with one row of inline buttons.
func (c *TelegramClient) SendMessage(ctx context.Context, chatID, text string, buttons []InlineButton) error {
	req := sendMessageRequest{
		ChatID:    chatID,
		Text:      text,
		ParseMode: "Markdown",
	}
	if len(buttons) > 0 {
		req.ReplyMarkup = &replyMarkup{InlineKeyboard: [][]InlineButton{buttons}}
	}

	_, err := c.makeRequest(ctx, "sendMessage", req)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// GetWebhookInfo reports webhook registration status for operational checks.
func (c *TelegramClient) GetWebhookInfo(ctx context.Context) (*WebhookInfo, error) {
	result, err := c.makeRequest(ctx, "getWebhookInfo", nil)
	if err != nil {
		return nil, fmt.Errorf("get webhook info: %w", err)
	}

	var info WebhookInfo
	if err := json.Unmarshal(result, &info); err != nil {
		return nil, fmt.Errorf("parse webhook info: %w", err)
	}
	return &info, nil
}

// SetWebhook registers the inbound update URL with the Bot API.
func (c *TelegramClient) SetWebhook(ctx context.Context, url string) error {
	_, err := c.makeRequest(ctx, "setWebhook", map[string]string{"url": url})
	if err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}
	logrus.WithField("url", url).Info("telegram webhook registered")
	return nil
}

func (c *TelegramClient) makeRequest(ctx context.Context, method string, data interface{}) (json.RawMessage, error) {
	defer observeVendor("telegram", method, time.Now())
	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)

	var body io.Reader
	if data != nil {
		jsonData, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("telegram request failed: %w", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var envelope telegramEnvelope
	if err := json.Unmarshal(responseBody, &envelope); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if !envelope.OK {
		return nil, &RejectedError{Reason: fmt.Sprintf("telegram %s: %s", method, envelope.Description)}
	}
	return envelope.Result, nil
}
