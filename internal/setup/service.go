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

package setup

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/agentdesk/agentdesk/internal/audit"
)

const cancelledMessage = "Setup cancelled. You can start again anytime by saying 'setup'."

// Service orchestrates multi-turn setup flows. One open session per
// tenant: the entry path always checks for an active session before
// starting a new flow.
type Service struct {
	repo        Repository
	flows       []Flow
	auditLogger audit.Logger
}

// NewService creates the setup orchestrator over a fixed set of flows
func NewService(repo Repository, auditLogger audit.Logger, flows ...Flow) *Service {
	return &Service{
		repo:        repo,
		flows:       flows,
		auditLogger: auditLogger,
	}
}

// Handle processes one setup-related message for a tenant and returns
// the reply text.
func (s *Service) Handle(ctx context.Context, tenantID, message string) (string, error) {
	session, err := s.repo.GetOpen(ctx, tenantID)
	switch {
	case err == nil:
		return s.continueFlow(ctx, session, message)
	case errors.Is(err, ErrNoOpenSession):
		return s.startFlow(ctx, tenantID, message)
	default:
		return "", fmt.Errorf("failed to load setup session: %w", err)
	}
}

func (s *Service) startFlow(ctx context.Context, tenantID, message string) (string, error) {
	flow := s.detectFlow(message)
	if flow == nil {
		return s.menuMessage(), nil
	}

	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("failed to generate session id: %w", err)
	}

	session := &Session{
		ID:        id.String(),
		TenantID:  tenantID,
		FlowName:  flow.Name(),
		Step:      0,
		Answers:   Answers{},
		StartedAt: time.Now(),
	}
	if err := s.repo.Create(ctx, session); err != nil {
		return "", fmt.Errorf("failed to create setup session: %w", err)
	}

	return Prompt(flow, 0), nil
}

func (s *Service) continueFlow(ctx context.Context, session *Session, message string) (string, error) {
	if isCancel(message) {
		if err := s.complete(ctx, session); err != nil {
			return "", err
		}
		s.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeSetupCancelled,
			TenantID: session.TenantID,
			Resource: session.FlowName,
		})
		return cancelledMessage, nil
	}

	flow := s.flowByName(session.FlowName)
	if flow == nil {
		// A session referencing a removed flow cannot make progress
		if err := s.complete(ctx, session); err != nil {
			return "", err
		}
		return "That setup flow is no longer available. " + s.menuMessage(), nil
	}

	// Every step already has an answer when a previous Execute attempt
	// failed mid-completion. The new message retries the completion; it
	// is not another answer.
	if session.Step >= len(flow.Steps()) {
		return s.finish(ctx, session, flow)
	}

	if err := flow.Validate(session.Step, message); err != nil {
		var validation *ValidationError
		if errors.As(err, &validation) {
			// Invalid input: re-prompt, no session mutation
			return validation.Message, nil
		}
		return "", err
	}

	session.Answers[session.Step] = message
	session.Step++
	if err := s.repo.Update(ctx, session); err != nil {
		return "", fmt.Errorf("failed to advance setup session: %w", err)
	}

	if session.Step >= len(flow.Steps()) {
		return s.finish(ctx, session, flow)
	}

	return Prompt(flow, session.Step), nil
}

func (s *Service) finish(ctx context.Context, session *Session, flow Flow) (string, error) {
	result, err := flow.Execute(ctx, session.TenantID, session.Answers)
	if err != nil {
		return "", err
	}
	if err := s.complete(ctx, session); err != nil {
		return "", err
	}
	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeSetupCompleted,
		TenantID: session.TenantID,
		Resource: session.FlowName,
	})
	return result, nil
}

func (s *Service) complete(ctx context.Context, session *Session) error {
	now := time.Now()
	session.CompletedAt = &now
	if err := s.repo.Update(ctx, session); err != nil {
		return fmt.Errorf("failed to complete setup session: %w", err)
	}
	return nil
}

func (s *Service) detectFlow(message string) Flow {
	lower := strings.ToLower(message)
	for _, flow := range s.flows {
		for _, trigger := range flow.Triggers() {
			if strings.Contains(lower, trigger) {
				return flow
			}
		}
	}
	return nil
}

func (s *Service) flowByName(name string) Flow {
	for _, flow := range s.flows {
		if flow.Name() == name {
			return flow
		}
	}
	return nil
}

func (s *Service) menuMessage() string {
	names := make([]string, 0, len(s.flows))
	for _, flow := range s.flows {
		names = append(names, flow.Name())
	}
	return fmt.Sprintf("I can help you set up: %s. Which would you like?", strings.Join(names, ", "))
}

func isCancel(message string) bool {
	switch strings.ToLower(strings.TrimSpace(message)) {
	case "cancel", "stop", "exit":
		return true
	}
	return false
}
