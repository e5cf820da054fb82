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
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRuntime(t *testing.T, handler http.HandlerFunc) *ChatRuntime {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewChatRuntime(ChatRuntimeConfig{
		BaseURL: server.URL,
		APIKey:  "test-key",
		Model:   "test-model",
	})
}

// TestPurpose: Validates request construction against a chat-completions
// backend.
// Scope: Unit Test
// Security: Confirms the API key travels only in the Authorization header.
// Expected: System prompt first, history in order, user message last,
// model field set.
// Test Case ID: INF-01
func TestChatRuntime_RequestShape(t *testing.T) {
	var captured struct {
		Model    string    `json:"model"`
		Messages []Message `json:"messages"`
	}
	var authHeader, contentType string

	runtime := newTestRuntime(t, func(w http.ResponseWriter, r *http.Request) {
		authHeader = r.Header.Get("Authorization")
		contentType = r.Header.Get("Content-Type")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		respondChatJSON(w, `{"choices":[{"message":{"content":"ok"}}]}`)
	})

	history := []Message{
		{Role: "user", Content: "earlier question"},
		{Role: "assistant", Content: "earlier answer"},
		{Role: "", Content: "dropped"},
	}
	reply, err := runtime.Run(context.Background(), "You are Milo.", "new question", history, nil)

	require.NoError(t, err)
	assert.Equal(t, "ok", reply)
	assert.Equal(t, "Bearer test-key", authHeader)
	assert.Equal(t, "application/json", contentType)
	assert.Equal(t, "test-model", captured.Model)
	require.Len(t, captured.Messages, 4)
	assert.Equal(t, Message{Role: "system", Content: "You are Milo."}, captured.Messages[0])
	assert.Equal(t, "earlier question", captured.Messages[1].Content)
	assert.Equal(t, Message{Role: "user", Content: "new question"}, captured.Messages[3])
}

func TestChatRuntime_ResponseShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "nested message content string",
			body: `{"choices":[{"message":{"content":"hello"}}]}`,
			want: "hello",
		},
		{
			name: "content parts array",
			body: `{"choices":[{"message":{"content":[{"type":"text","text":"hel"},{"type":"text","text":"lo"}]}}]}`,
			want: "hello",
		},
		{
			name: "choice text field",
			body: `{"choices":[{"text":"hello"}]}`,
			want: "hello",
		},
		{
			name: "top-level response",
			body: `{"response":"hello"}`,
			want: "hello",
		},
		{
			name: "top-level text",
			body: `{"text":"hello"}`,
			want: "hello",
		},
		{
			name: "top-level output",
			body: `{"output":"hello"}`,
			want: "hello",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runtime := newTestRuntime(t, func(w http.ResponseWriter, r *http.Request) {
				respondChatJSON(w, tt.body)
			})

			reply, err := runtime.Run(context.Background(), "", "question", nil, nil)

			require.NoError(t, err)
			assert.Equal(t, tt.want, reply)
		})
	}
}

// TestPurpose: Validates the error taxonomy for backend failures.
// Scope: Unit Test
// Expected: Non-2xx maps to a transport code, malformed JSON to an
// invalid-payload code, and an empty body to a missing-text code.
// Test Case ID: INF-02
func TestChatRuntime_ErrorCodes(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantCode string
	}{
		{name: "server error", status: http.StatusInternalServerError, body: `{}`, wantCode: CodeTransport},
		{name: "rate limited", status: http.StatusTooManyRequests, body: `{}`, wantCode: CodeTransport},
		{name: "malformed json", status: http.StatusOK, body: `{"choices": [`, wantCode: CodeInvalidPayload},
		{name: "no assistant text", status: http.StatusOK, body: `{"choices":[]}`, wantCode: CodeMissingText},
		{name: "whitespace only", status: http.StatusOK, body: `{"text":"   "}`, wantCode: CodeMissingText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runtime := newTestRuntime(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := runtime.Run(context.Background(), "", "question", nil, nil)

			require.Error(t, err)
			infErr, ok := AsError(err)
			require.True(t, ok)
			assert.Equal(t, tt.wantCode, infErr.Code)
		})
	}
}

func TestChatRuntime_UnreachableBackend(t *testing.T) {
	runtime := NewChatRuntime(ChatRuntimeConfig{BaseURL: "http://127.0.0.1:1"})

	_, err := runtime.Run(context.Background(), "", "question", nil, nil)

	require.Error(t, err)
	infErr, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, CodeTransport, infErr.Code)
}

func TestChatRuntime_EndpointNormalization(t *testing.T) {
	var path string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		respondChatJSON(w, `{"text":"ok"}`)
	}))
	defer server.Close()

	runtime := NewChatRuntime(ChatRuntimeConfig{
		BaseURL:      server.URL + "/",
		ChatEndpoint: "api/generate",
	})

	_, err := runtime.Run(context.Background(), "", "question", nil, nil)

	require.NoError(t, err)
	assert.Equal(t, "/api/generate", path)
}

func respondChatJSON(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(body))
}
