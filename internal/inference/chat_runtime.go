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

package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ChatRuntimeConfig holds the backend endpoint configuration
type ChatRuntimeConfig struct {
	BaseURL      string
	ChatEndpoint string
	APIKey       string
	Model        string
	Timeout      time.Duration
}

// ChatRuntime invokes a chat-completions-compatible HTTP backend. It
// accepts both the structured choice-list response shape and flat
// top-level text fields.
type ChatRuntime struct {
	baseURL  string
	endpoint string
	apiKey   string
	model    string
	client   *http.Client
}

// NewChatRuntime creates a runtime for the configured backend
func NewChatRuntime(cfg ChatRuntimeConfig) *ChatRuntime {
	endpoint := cfg.ChatEndpoint
	if endpoint == "" {
		endpoint = "/v1/chat/completions"
	}
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	return &ChatRuntime{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		endpoint: endpoint,
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		client:   &http.Client{Timeout: timeout},
	}
}

// Run implements Runtime
func (r *ChatRuntime) Run(ctx context.Context, systemPrompt, message string, history []Message, tools []Tool) (string, error) {
	payload := r.buildPayload(systemPrompt, message, history, tools)

	body, err := json.Marshal(payload)
	if err != nil {
		return "", &Error{Code: CodeInvalidPayload, Description: "failed to encode request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+r.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", &Error{Code: CodeTransport, Description: "failed to build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", &Error{Code: CodeTransport, Description: "backend request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &Error{
			Code:        CodeTransport,
			Description: fmt.Sprintf("backend returned status %d", resp.StatusCode),
		}
	}

	var data map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return "", &Error{Code: CodeInvalidPayload, Description: "backend returned invalid payload", Err: err}
	}

	text := extractResponseText(data)
	if text == "" {
		return "", &Error{Code: CodeMissingText, Description: "backend response missing assistant text"}
	}

	return text, nil
}

func (r *ChatRuntime) buildPayload(systemPrompt, message string, history []Message, tools []Tool) map[string]any {
	messages := make([]Message, 0, len(history)+2)

	if systemPrompt != "" {
		messages = append(messages, Message{Role: "system", Content: systemPrompt})
	}
	for _, m := range history {
		if m.Role == "" || m.Content == "" {
			continue
		}
		messages = append(messages, m)
	}
	messages = append(messages, Message{Role: "user", Content: message})

	payload := map[string]any{"messages": messages}
	if r.model != "" {
		payload["model"] = r.model
	}
	if len(tools) > 0 {
		payload["tools"] = tools
	}

	return payload
}

// extractResponseText pulls assistant text out of the supported response
// shapes, empty string when none matches.
func extractResponseText(data map[string]any) string {
	// Structured choice list with nested message content
	if choices, ok := data["choices"].([]any); ok && len(choices) > 0 {
		first, _ := choices[0].(map[string]any)

		if message, ok := first["message"].(map[string]any); ok {
			switch content := message["content"].(type) {
			case string:
				if strings.TrimSpace(content) != "" {
					return content
				}
			case []any:
				// Array of text-fragment parts, concatenated
				var b strings.Builder
				for _, part := range content {
					if fragment, ok := part.(map[string]any); ok {
						if text, ok := fragment["text"].(string); ok {
							b.WriteString(text)
						}
					}
				}
				if combined := strings.TrimSpace(b.String()); combined != "" {
					return combined
				}
			}
		}

		// Some backends place text directly at choice.text
		if text, ok := first["text"].(string); ok && strings.TrimSpace(text) != "" {
			return text
		}
	}

	// Flat top-level text fields
	for _, key := range []string{"response", "text", "output"} {
		if value, ok := data[key].(string); ok && strings.TrimSpace(value) != "" {
			return value
		}
	}

	return ""
}
