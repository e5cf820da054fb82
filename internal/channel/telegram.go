// Copyright 2026 The Agentdesk Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/agentdesk/agentdesk/internal/pool"
)

// TelegramClient talks to the Telegram Bot API for one bot token. It
// backs both the outbound chat sender and pool token validation.
type TelegramClient struct {
	apiBase string
	client  *http.Client
}

// NewTelegramClient creates a client against the given API base
// (override the default for tests)
func NewTelegramClient(apiBase string, timeout time.Duration) *TelegramClient {
	if apiBase == "" {
		apiBase = "https://api.telegram.org"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &TelegramClient{
		apiBase: strings.TrimRight(apiBase, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

type telegramResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

func (c *TelegramClient) call(ctx context.Context, token, method string, payload any) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", method, err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", c.apiBase, token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("telegram %s request failed: %w", method, err)
	}
	defer resp.Body.Close()

	var parsed telegramResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("telegram returned non-JSON response: %w", err)
	}
	if !parsed.OK {
		if parsed.Description == "" {
			parsed.Description = "unknown Telegram API error"
		}
		return nil, fmt.Errorf("telegram API error: %s", parsed.Description)
	}

	return parsed.Result, nil
}

// GetMe fetches the bot profile for a token
func (c *TelegramClient) GetMe(ctx context.Context, token string) (username, displayName string, err error) {
	result, err := c.call(ctx, token, "getMe", map[string]any{})
	if err != nil {
		return "", "", err
	}

	var me struct {
		Username  string `json:"username"`
		FirstName string `json:"first_name"`
	}
	if err := json.Unmarshal(result, &me); err != nil {
		return "", "", fmt.Errorf("failed to decode getMe result: %w", err)
	}
	if me.Username == "" {
		return "", "", fmt.Errorf("getMe result missing username")
	}
	if me.FirstName == "" {
		me.FirstName = me.Username
	}

	return me.Username, me.FirstName, nil
}

// SetWebhook points the bot at an inbound webhook URL. Best effort
// during onboarding.
func (c *TelegramClient) SetWebhook(ctx context.Context, token, url, secret string) error {
	payload := map[string]any{"url": url}
	if secret != "" {
		payload["secret_token"] = secret
	}
	_, err := c.call(ctx, token, "setWebhook", payload)
	return err
}

// Validate implements pool.Validator
func (c *TelegramClient) Validate(ctx context.Context, token string) (*pool.Identity, error) {
	username, displayName, err := c.GetMe(ctx, token)
	if err != nil {
		return nil, err
	}
	return &pool.Identity{Username: username, DisplayName: displayName}, nil
}

// TelegramSender sends chat messages through one bot token
type TelegramSender struct {
	client *TelegramClient
	token  string
}

// NewTelegramSender binds a client to a bot token
func NewTelegramSender(client *TelegramClient, token string) *TelegramSender {
	return &TelegramSender{client: client, token: token}
}

// Send implements Sender. Destination is the chat ID.
func (s *TelegramSender) Send(ctx context.Context, destination, text string) SendResult {
	result, err := s.client.call(ctx, s.token, "sendMessage", map[string]any{
		"chat_id": destination,
		"text":    text,
	})
	if err != nil {
		return SendResult{Success: false, Error: err.Error()}
	}

	var message struct {
		MessageID int64 `json:"message_id"`
	}
	if err := json.Unmarshal(result, &message); err == nil && message.MessageID != 0 {
		return SendResult{Success: true, MessageID: fmt.Sprintf("%d", message.MessageID)}
	}

	return SendResult{Success: true}
}
