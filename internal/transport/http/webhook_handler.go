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

package http

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/agentdesk/agentdesk/internal/billing"
	"github.com/agentdesk/agentdesk/internal/channel"
	"github.com/agentdesk/agentdesk/internal/observability/logger"
	"github.com/agentdesk/agentdesk/internal/pool"
)

// chatUpdate is the subset of the chat provider's update payload the
// dispatcher needs
type chatUpdate struct {
	Message struct {
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
		Text string `json:"text"`
	} `json:"message"`
}

// ChatWebhook receives chat-bot updates for one tenant, dispatches the
// text, and sends the reply back through the tenant's bot identity.
// Always acknowledges with 200 once the payload parses; the provider
// retries non-2xx deliveries and a retried dispatch would double-bill.
func (h *Handler) ChatWebhook(w http.ResponseWriter, r *http.Request) {
	if h.webhookSecret != "" {
		presented := r.Header.Get("X-Telegram-Bot-Api-Secret-Token")
		if subtle.ConstantTimeCompare([]byte(presented), []byte(h.webhookSecret)) != 1 {
			respondError(w, http.StatusUnauthorized, "invalid webhook secret")
			return
		}
	}

	tenantID := chi.URLParam(r, "tenantID")

	var update chatUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		respondError(w, http.StatusBadRequest, "invalid update payload")
		return
	}
	if update.Message.Text == "" {
		// Non-text updates (joins, stickers, edits) are acknowledged
		// and ignored
		respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
		return
	}

	reply, err := h.dispatcher.Dispatch(r.Context(), tenantID, update.Message.Text, channel.TypeChatBot)
	if err != nil {
		slog.ErrorContext(r.Context(), "dispatch failed",
			logger.TenantID(tenantID),
			logger.ChannelType(channel.TypeChatBot),
			logger.Error(err))
	}

	h.sendChatReply(r, tenantID, strconv.FormatInt(update.Message.Chat.ID, 10), reply)

	respondJSON(w, http.StatusOK, map[string]any{"ok": true, "reply": reply})
}

func (h *Handler) sendChatReply(r *http.Request, tenantID, chatID, reply string) {
	resource, err := h.pools.ResourceFor(r.Context(), tenantID)
	if err != nil {
		if !errors.Is(err, pool.ErrNotFound) {
			slog.ErrorContext(r.Context(), "failed to resolve bot identity",
				logger.TenantID(tenantID),
				logger.Error(err))
		}
		return
	}

	sender := channel.NewTelegramSender(h.telegram, resource.Token)
	if result := sender.Send(r.Context(), chatID, reply); !result.Success {
		slog.ErrorContext(r.Context(), "failed to send chat reply",
			logger.TenantID(tenantID),
			logger.String("send_error", result.Error))
	}
}

// SMSWebhook receives inbound SMS events. The tenant is resolved from
// the receiving phone number; the reply is returned in the response
// body for the SMS gateway to relay.
func (h *Handler) SMSWebhook(w http.ResponseWriter, r *http.Request) {
	var req struct {
		To   string `json:"to"`
		From string `json:"from"`
		Body string `json:"body"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.To == "" || req.Body == "" {
		respondError(w, http.StatusBadRequest, "to and body are required")
		return
	}

	ch, err := h.channels.FindByPhone(r.Context(), req.To)
	if err != nil {
		if errors.Is(err, channel.ErrChannelNotFound) {
			respondError(w, http.StatusNotFound, "no tenant is bound to this number")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to resolve channel")
		return
	}

	reply, err := h.dispatcher.Dispatch(r.Context(), ch.TenantID, req.Body, channel.TypeSMS)
	if err != nil {
		slog.ErrorContext(r.Context(), "dispatch failed",
			logger.TenantID(ch.TenantID),
			logger.ChannelType(channel.TypeSMS),
			logger.Error(err))
	}

	respondJSON(w, http.StatusOK, map[string]string{"reply": reply})
}

// VoiceWebhook receives transcribed voice input. Like SMS, the tenant
// is resolved from the called number; the reply is returned for the
// telephony gateway to speak back.
func (h *Handler) VoiceWebhook(w http.ResponseWriter, r *http.Request) {
	var req struct {
		To         string `json:"to"`
		From       string `json:"from"`
		Transcript string `json:"transcript"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.To == "" || req.Transcript == "" {
		respondError(w, http.StatusBadRequest, "to and transcript are required")
		return
	}

	ch, err := h.channels.FindByPhone(r.Context(), req.To)
	if err != nil {
		if errors.Is(err, channel.ErrChannelNotFound) {
			respondError(w, http.StatusNotFound, "no tenant is bound to this number")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to resolve channel")
		return
	}

	reply, err := h.dispatcher.Dispatch(r.Context(), ch.TenantID, req.Transcript, channel.TypeVoice)
	if err != nil {
		slog.ErrorContext(r.Context(), "dispatch failed",
			logger.TenantID(ch.TenantID),
			logger.ChannelType(channel.TypeVoice),
			logger.Error(err))
	}

	respondJSON(w, http.StatusOK, map[string]string{"reply": reply})
}

// PaymentWebhook receives payment-provider events and applies credit
// grants
func (h *Handler) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	var event billing.Event
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		respondError(w, http.StatusBadRequest, "invalid event payload")
		return
	}
	if event.TenantID == "" {
		respondError(w, http.StatusBadRequest, "tenant_id is required")
		return
	}

	if err := h.billing.HandleEvent(r.Context(), event); err != nil {
		if errors.Is(err, billing.ErrUnknownTier) {
			respondError(w, http.StatusBadRequest, "unknown billing tier")
			return
		}
		slog.ErrorContext(r.Context(), "failed to apply payment event",
			logger.TenantID(event.TenantID),
			logger.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to apply payment event")
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"received": true})
}
