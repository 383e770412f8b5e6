package telegramauth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Sender delivers a text message to a Telegram chat.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// BotClient calls the Telegram Bot API.
type BotClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewBotClient(baseURL, token string) *BotClient {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}
	return &BotClient{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type sendMessageRequest struct {
	ChatID    int64  `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

type botResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func (b *BotClient) SendMessage(ctx context.Context, chatID int64, text string) error {
	if b.token == "" {
		return errors.New("BOT_TOKEN is not configured")
	}
	payload, err := json.Marshal(sendMessageRequest{ChatID: chatID, Text: text, ParseMode: "HTML"})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/bot"+b.token+"/sendMessage", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := b.httpClient.Do(req)
	if err != nil {
		// The URL carries the token; keep it out of the error.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			return fmt.Errorf("telegram sendMessage: %w", urlErr.Err)
		}
		return errors.New("telegram sendMessage failed")
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("telegram read response: %w", err)
	}
	var out botResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("telegram status %d", resp.StatusCode)
	}
	if !out.OK {
		return fmt.Errorf("telegram sendMessage rejected: %s", out.Description)
	}
	return nil
}
