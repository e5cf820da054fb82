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

package memory

import (
	"context"
	"fmt"
	"time"
)

// Service provides conversation memory with an optional cache in front
// of durable storage. The cache holds only the recent window used as
// inference context.
type Service struct {
	repo        Repository
	cache       Cache
	windowLimit int
}

// NewService creates a memory service. cache may be nil.
func NewService(repo Repository, cache Cache, windowLimit int) *Service {
	if windowLimit <= 0 {
		windowLimit = 20
	}
	return &Service{
		repo:        repo,
		cache:       cache,
		windowLimit: windowLimit,
	}
}

// History returns the recent conversation window in chronological order
func (s *Service) History(ctx context.Context, tenantID string) ([]Entry, error) {
	if s.cache != nil {
		if entries, ok := s.cache.Get(ctx, tenantID); ok {
			return entries, nil
		}
	}

	entries, err := s.repo.Recent(ctx, tenantID, s.windowLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation history: %w", err)
	}

	if s.cache != nil {
		s.cache.Set(ctx, tenantID, entries)
	}

	return entries, nil
}

// RecordExchange persists a completed user/assistant exchange and
// invalidates the cached window
func (s *Service) RecordExchange(ctx context.Context, tenantID, channelType, userText, replyText string) error {
	if err := s.repo.AppendExchange(ctx, tenantID, channelType, userText, replyText, time.Now()); err != nil {
		return fmt.Errorf("failed to record exchange: %w", err)
	}

	if s.cache != nil {
		s.cache.Invalidate(ctx, tenantID)
	}

	return nil
}
