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

// Package dispatch routes inbound messages through intent
// classification, credit accounting, and inference, returning the
// reply text for the channel adapter to send.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/agentdesk/agentdesk/internal/agent"
	"github.com/agentdesk/agentdesk/internal/inference"
	"github.com/agentdesk/agentdesk/internal/intent"
	"github.com/agentdesk/agentdesk/internal/memory"
	"github.com/agentdesk/agentdesk/internal/observability/logger"
	"github.com/agentdesk/agentdesk/internal/observability/metrics"
)

const (
	replyNotConfigured = "Error: Agent not configured"
	replyOutOfCredits  = "You've run out of credits. Reply 'buy credits' to top up."
	replyApology       = "Sorry, I encountered an error. Please try again."
	replyHelp          = "I can handle customer chats, update my own settings, and check your balance. " +
		"Say 'help with setup' to configure me, or 'check balance' to see your credits."
)

// ConfigSource resolves a tenant's agent configuration
type ConfigSource interface {
	GetConfig(ctx context.Context, tenantID string) (*agent.Config, error)
}

// Ledger is the credit surface the pipeline needs
type Ledger interface {
	Balance(ctx context.Context, tenantID string) (int64, error)
	Deduct(ctx context.Context, tenantID string, amount int64, description string) (bool, error)
	Refund(ctx context.Context, tenantID string, amount int64, reason string) error
	LowBalanceMessage(balance int64) string
}

// SetupHandler drives setup-session conversations
type SetupHandler interface {
	Handle(ctx context.Context, tenantID, message string) (string, error)
}

// Memory reads and appends conversation history
type Memory interface {
	History(ctx context.Context, tenantID string) ([]memory.Entry, error)
	RecordExchange(ctx context.Context, tenantID, channelType, userText, replyText string) error
}

// Pipeline orchestrates a single inbound message end to end. Credits
// are deducted before any billable work and refunded if that work does
// not complete.
type Pipeline struct {
	configs ConfigSource
	ledger  Ledger
	setup   SetupHandler
	runtime inference.Runtime
	memory  Memory
	costs   map[string]int64
	metrics *metrics.Dispatch
}

// NewPipeline creates a dispatch pipeline. costs maps channel type to
// per-message credit cost; missing types cost 1. metrics may be nil.
func NewPipeline(configs ConfigSource, ledger Ledger, setupHandler SetupHandler, runtime inference.Runtime, mem Memory, costs map[string]int64, dispatchMetrics *metrics.Dispatch) *Pipeline {
	return &Pipeline{
		configs: configs,
		ledger:  ledger,
		setup:   setupHandler,
		runtime: runtime,
		memory:  mem,
		costs:   costs,
		metrics: dispatchMetrics,
	}
}

// Cost returns the per-message credit cost for a channel type
func (p *Pipeline) Cost(channelType string) int64 {
	if cost, ok := p.costs[channelType]; ok && cost > 0 {
		return cost
	}
	return 1
}

// Dispatch handles one inbound message and returns the reply text.
// A non-nil error means an internal failure after the user-facing
// reply was already decided; the reply is always usable.
func (p *Pipeline) Dispatch(ctx context.Context, tenantID, message, channelType string) (string, error) {
	cfg, err := p.configs.GetConfig(ctx, tenantID)
	if err != nil {
		if errors.Is(err, agent.ErrConfigNotFound) {
			return replyNotConfigured, nil
		}
		return replyApology, fmt.Errorf("failed to load agent config: %w", err)
	}

	route := intent.RouteMessage(message)

	slog.InfoContext(ctx, "dispatching message",
		logger.TenantID(tenantID),
		logger.ChannelType(channelType),
		logger.Intent(string(route.Intent)))

	p.metrics.RecordDispatch(ctx, string(route.Intent))

	switch route.Intent {
	case intent.Setup:
		return p.setup.Handle(ctx, tenantID, message)
	case intent.Account:
		return p.accountReply(ctx, tenantID)
	case intent.Help:
		return replyHelp, nil
	}

	return p.runTask(ctx, tenantID, cfg, message, channelType)
}

// runTask is the billable path: deduct, infer, persist, with the
// refund guaranteed for any failure after the deduction succeeded.
func (p *Pipeline) runTask(ctx context.Context, tenantID string, cfg *agent.Config, message, channelType string) (reply string, err error) {
	cost := p.Cost(channelType)

	ok, err := p.ledger.Deduct(ctx, tenantID, cost, fmt.Sprintf("Message on %s", channelType))
	if err != nil {
		return replyApology, fmt.Errorf("credit deduction failed: %w", err)
	}
	if !ok {
		return replyOutOfCredits, nil
	}
	p.metrics.RecordDeduction(ctx, cost)

	// Refund whenever the dispatch does not finish cleanly after the
	// deduction. settled flips only once the exchange is persisted.
	settled := false
	defer func() {
		if settled {
			return
		}
		reason := "dispatch failed"
		if err != nil {
			reason = err.Error()
		}
		if refundErr := p.ledger.Refund(ctx, tenantID, cost, reason); refundErr != nil {
			slog.ErrorContext(ctx, "refund failed after dispatch error",
				logger.TenantID(tenantID),
				logger.Credits(cost),
				logger.Error(refundErr))
			return
		}
		p.metrics.RecordRefund(ctx, cost)
	}()

	history, err := p.memory.History(ctx, tenantID)
	if err != nil {
		return replyApology, fmt.Errorf("failed to load conversation history: %w", err)
	}

	answer, err := p.runtime.Run(ctx, cfg.CompiledPrompt, message, toMessages(history), nil)
	if err != nil {
		return replyApology, fmt.Errorf("inference failed: %w", err)
	}

	if err := p.memory.RecordExchange(ctx, tenantID, channelType, message, answer); err != nil {
		return replyApology, fmt.Errorf("failed to persist exchange: %w", err)
	}

	settled = true

	if balance, balErr := p.ledger.Balance(ctx, tenantID); balErr == nil {
		if notice := p.ledger.LowBalanceMessage(balance); notice != "" {
			answer = answer + "\n\n" + notice
		}
	}

	return answer, nil
}

func (p *Pipeline) accountReply(ctx context.Context, tenantID string) (string, error) {
	balance, err := p.ledger.Balance(ctx, tenantID)
	if err != nil {
		return replyApology, fmt.Errorf("failed to read balance: %w", err)
	}
	reply := fmt.Sprintf("You have %d credits remaining.", balance)
	if notice := p.ledger.LowBalanceMessage(balance); notice != "" {
		reply = reply + " " + notice
	}
	return reply, nil
}

func toMessages(entries []memory.Entry) []inference.Message {
	if len(entries) == 0 {
		return nil
	}
	messages := make([]inference.Message, 0, len(entries))
	for _, entry := range entries {
		messages = append(messages, inference.Message{Role: entry.Role, Content: entry.Content})
	}
	return messages
}
