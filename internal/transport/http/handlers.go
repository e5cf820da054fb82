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
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/agentdesk/agentdesk/internal/agent"
	"github.com/agentdesk/agentdesk/internal/auth"
	"github.com/agentdesk/agentdesk/internal/billing"
	"github.com/agentdesk/agentdesk/internal/channel"
	"github.com/agentdesk/agentdesk/internal/credit"
	"github.com/agentdesk/agentdesk/internal/dispatch"
	"github.com/agentdesk/agentdesk/internal/observability/logger"
	"github.com/agentdesk/agentdesk/internal/onboarding"
	"github.com/agentdesk/agentdesk/internal/pool"
	"github.com/agentdesk/agentdesk/internal/tenant"
)

// Handler holds HTTP handlers and dependencies
type Handler struct {
	onboarding    *onboarding.Service
	dispatcher    *dispatch.Pipeline
	credits       *credit.Service
	pools         *pool.Service
	tenants       *tenant.Service
	agents        *agent.Service
	billing       *billing.Service
	channels      channel.Repository
	tokens        *auth.TokenManager
	telegram      *channel.TelegramClient
	adminKey      string
	webhookSecret string
}

// NewHandler creates a new HTTP handler
func NewHandler(
	onboardingService *onboarding.Service,
	dispatcher *dispatch.Pipeline,
	creditService *credit.Service,
	poolService *pool.Service,
	tenantService *tenant.Service,
	agentService *agent.Service,
	billingService *billing.Service,
	channelRepo channel.Repository,
	tokens *auth.TokenManager,
	telegram *channel.TelegramClient,
	adminKey string,
	webhookSecret string,
) *Handler {
	return &Handler{
		onboarding:    onboardingService,
		dispatcher:    dispatcher,
		credits:       creditService,
		pools:         poolService,
		tenants:       tenantService,
		agents:        agentService,
		billing:       billingService,
		channels:      channelRepo,
		tokens:        tokens,
		telegram:      telegram,
		adminKey:      adminKey,
		webhookSecret: webhookSecret,
	}
}

// NewRouter creates a new HTTP router
func NewRouter(h *Handler, rateLimiter *RateLimiter) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(RateLimitMiddleware(rateLimiter))
	r.Use(func(handler http.Handler) http.Handler {
		return otelhttp.NewHandler(handler, "http_request",
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	})
	r.Use(LoggingMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check
	r.Get("/health", h.HealthCheck)

	// Inbound provider webhooks. Authenticated by provider secrets, not
	// tenant tokens.
	r.Route("/webhooks", func(r chi.Router) {
		r.Post("/chat/{tenantID}", h.ChatWebhook)
		r.Post("/sms", h.SMSWebhook)
		r.Post("/voice", h.VoiceWebhook)
		r.Post("/payment", h.PaymentWebhook)
	})

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/onboarding/claim-agent", h.ClaimAgent)

		// Tenant-scoped endpoints, authenticated by API token
		r.Group(func(r chi.Router) {
			r.Use(h.TenantAuthMiddleware)
			r.Get("/billing/balance", h.GetBalance)
			r.Get("/billing/history", h.GetHistory)
			r.Get("/agent/config", h.GetAgentConfig)
			r.Put("/agent/config", h.UpdateAgentConfig)
		})
	})

	// Admin surface
	r.Route("/admin", func(r chi.Router) {
		r.Use(h.AdminAuthMiddleware)
		r.Post("/resources", h.AddResource)
		r.Post("/resources/bulk", h.BulkAddResources)
		r.Post("/resources/{resourceID}/retire", h.RetireResource)
		r.Get("/resources/status", h.PoolStatus)
		r.Get("/tenants", h.ListTenants)
	})

	return r
}

// HealthCheck returns the health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "agentdesk",
	})
}

// ClaimAgent onboards a new tenant with a pooled bot identity
func (h *Handler) ClaimAgent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" || req.Email == "" {
		respondError(w, http.StatusBadRequest, "name and email are required")
		return
	}

	result, err := h.onboarding.ClaimAgent(r.Context(), req.Name, req.Email)
	if err != nil {
		switch {
		case errors.Is(err, tenant.ErrEmailTaken):
			respondError(w, http.StatusConflict, "email is already registered")
		case errors.Is(err, pool.ErrExhausted):
			respondError(w, http.StatusServiceUnavailable, "no agent identities available right now, please try again later")
		default:
			slog.ErrorContext(r.Context(), "onboarding failed", logger.Error(err))
			respondError(w, http.StatusInternalServerError, "failed to provision agent")
		}
		return
	}

	respondJSON(w, http.StatusCreated, result)
}

// GetBalance returns the authenticated tenant's credit balance
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	tenantID := GetTenantID(r.Context())

	balance, err := h.credits.Balance(r.Context(), tenantID)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to read balance",
			logger.TenantID(tenantID), logger.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to read balance")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"tenant_id": tenantID,
		"balance":   balance,
	})
}

// GetHistory returns the authenticated tenant's recent ledger entries
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	tenantID := GetTenantID(r.Context())

	transactions, err := h.credits.History(r.Context(), tenantID, 50)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to read transaction history",
			logger.TenantID(tenantID), logger.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to read history")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"tenant_id":    tenantID,
		"transactions": transactions,
	})
}

// GetAgentConfig returns the authenticated tenant's agent configuration
func (h *Handler) GetAgentConfig(w http.ResponseWriter, r *http.Request) {
	tenantID := GetTenantID(r.Context())

	cfg, err := h.agents.GetConfig(r.Context(), tenantID)
	if err != nil {
		if errors.Is(err, agent.ErrConfigNotFound) {
			respondError(w, http.StatusNotFound, "agent is not configured")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to read agent config")
		return
	}

	respondJSON(w, http.StatusOK, cfg)
}

// UpdateAgentConfig replaces the tenant's agent settings and recompiles
// the system prompt
func (h *Handler) UpdateAgentConfig(w http.ResponseWriter, r *http.Request) {
	tenantID := GetTenantID(r.Context())

	var req struct {
		AgentName          string `json:"agent_name"`
		Personality        string `json:"personality"`
		Language           string `json:"language"`
		CustomInstructions string `json:"custom_instructions"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cfg, err := h.agents.GetConfig(r.Context(), tenantID)
	if err != nil {
		if !errors.Is(err, agent.ErrConfigNotFound) {
			respondError(w, http.StatusInternalServerError, "failed to read agent config")
			return
		}
		cfg = &agent.Config{TenantID: tenantID}
	}

	if req.AgentName != "" {
		cfg.AgentName = req.AgentName
	}
	if req.Personality != "" {
		cfg.Personality = req.Personality
	}
	if req.Language != "" {
		cfg.Language = req.Language
	}
	cfg.CustomInstructions = req.CustomInstructions

	if err := h.agents.SaveConfig(r.Context(), cfg); err != nil {
		if errors.Is(err, agent.ErrInvalidPersonality) {
			respondError(w, http.StatusBadRequest, "personality must be formal, friendly, or brief")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to save agent config")
		return
	}

	respondJSON(w, http.StatusOK, cfg)
}

func queryInt(r *http.Request, key string, fallback int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
