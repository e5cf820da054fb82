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

	"github.com/go-chi/chi/v5"

	"github.com/agentdesk/agentdesk/internal/observability/logger"
	"github.com/agentdesk/agentdesk/internal/pool"
)

// AddResource validates and registers one bot token in the pool
func (h *Handler) AddResource(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Token == "" {
		respondError(w, http.StatusBadRequest, "token is required")
		return
	}

	resource, err := h.pools.Add(r.Context(), req.Token)
	if err != nil {
		switch {
		case errors.Is(err, pool.ErrInvalidResource):
			respondError(w, http.StatusUnprocessableEntity, "token was rejected by the provider")
		case errors.Is(err, pool.ErrAlreadyInPool):
			respondError(w, http.StatusConflict, "resource is already registered")
		default:
			slog.ErrorContext(r.Context(), "failed to add pooled resource", logger.Error(err))
			respondError(w, http.StatusInternalServerError, "failed to add resource")
		}
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"id":           resource.ID,
		"username":     resource.Username,
		"display_name": resource.DisplayName,
		"status":       resource.Status,
	})
}

// BulkAddResources registers a batch of bot tokens, reporting per-batch
// counts instead of failing on the first invalid token
func (h *Handler) BulkAddResources(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Tokens []string `json:"tokens"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Tokens) == 0 {
		respondError(w, http.StatusBadRequest, "tokens are required")
		return
	}

	added, invalid, err := h.pools.BulkAdd(r.Context(), req.Tokens)
	if err != nil {
		slog.ErrorContext(r.Context(), "bulk add failed", logger.Error(err))
		respondError(w, http.StatusInternalServerError, "bulk add failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]int{
		"added":   added,
		"invalid": invalid,
	})
}

// RetireResource forces a resource into the terminal retired state
func (h *Handler) RetireResource(w http.ResponseWriter, r *http.Request) {
	resourceID := chi.URLParam(r, "resourceID")

	retired, err := h.pools.Retire(r.Context(), resourceID)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to retire resource",
			logger.ResourceID(resourceID), logger.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to retire resource")
		return
	}
	if !retired {
		respondError(w, http.StatusNotFound, "resource not found or already retired")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"id":     resourceID,
		"status": pool.StatusRetired,
	})
}

// PoolStatus reports pool capacity and the low-water alert
func (h *Handler) PoolStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.pools.PoolStatus(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to read pool status", logger.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to read pool status")
		return
	}

	respondJSON(w, http.StatusOK, status)
}

// ListTenants returns a page of tenants
func (h *Handler) ListTenants(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	tenants, err := h.tenants.ListTenants(r.Context(), limit, offset)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to list tenants", logger.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to list tenants")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"tenants": tenants,
		"limit":   limit,
		"offset":  offset,
	})
}
