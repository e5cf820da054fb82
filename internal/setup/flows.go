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
	"fmt"
	"strings"

	"github.com/agentdesk/agentdesk/internal/agent"
)

// PersonalityFlow collects the agent's name, tone, business description
// and custom instructions, then recompiles the tenant's prompt.
type PersonalityFlow struct {
	agents *agent.Service
}

// NewPersonalityFlow creates the personality setup flow
func NewPersonalityFlow(agents *agent.Service) *PersonalityFlow {
	return &PersonalityFlow{agents: agents}
}

func (f *PersonalityFlow) Name() string { return "personality" }

func (f *PersonalityFlow) Triggers() []string {
	return []string{"personality", "name", "style", "character"}
}

func (f *PersonalityFlow) Steps() []string {
	return []string{
		"What's your agent's name?",
		"How should it communicate? (formal / friendly / brief)",
		"What's your business about? Describe it in a few words.",
		"Any specific instructions? (languages, things to avoid, etc.)",
	}
}

func (f *PersonalityFlow) Validate(step int, input string) error {
	if step == 1 && !agent.ValidPersonality(strings.ToLower(strings.TrimSpace(input))) {
		return validationError("Please choose: formal, friendly, or brief")
	}
	return nil
}

func (f *PersonalityFlow) Execute(ctx context.Context, tenantID string, answers Answers) (string, error) {
	cfg, err := f.agents.GetConfig(ctx, tenantID)
	if err != nil {
		cfg = &agent.Config{TenantID: tenantID, Language: "en"}
	}

	cfg.AgentName = strings.TrimSpace(answers[0])
	cfg.Personality = strings.ToLower(strings.TrimSpace(answers[1]))
	cfg.CustomInstructions = strings.TrimSpace(answers[2])
	if extra := strings.TrimSpace(answers[3]); extra != "" {
		cfg.CustomInstructions += "\n" + extra
	}

	if err := f.agents.SaveConfig(ctx, cfg); err != nil {
		return "", fmt.Errorf("failed to apply personality setup: %w", err)
	}

	return fmt.Sprintf("Your agent '%s' is ready!", cfg.AgentName), nil
}

// VoiceProvisioner provisions a voice number for a tenant. The actual
// telephony wiring lives with the channel adapters.
type VoiceProvisioner interface {
	ProvisionVoice(ctx context.Context, tenantID, greeting string, hasNumber bool) error
}

// VoiceFlow walks a tenant through voice-channel setup
type VoiceFlow struct {
	provisioner VoiceProvisioner
}

// NewVoiceFlow creates the voice setup flow
func NewVoiceFlow(provisioner VoiceProvisioner) *VoiceFlow {
	return &VoiceFlow{provisioner: provisioner}
}

func (f *VoiceFlow) Name() string { return "voice" }

func (f *VoiceFlow) Triggers() []string {
	return []string{"phone", "voice", "call", "number"}
}

func (f *VoiceFlow) Steps() []string {
	return []string{
		"Do you have a voice number or should I create one for you? (reply: 'have' or 'create')",
		"What should I say when I answer calls?",
		"Great! I'll configure this now.",
	}
}

func (f *VoiceFlow) Validate(step int, input string) error {
	if step == 0 {
		answer := strings.ToLower(strings.TrimSpace(input))
		if answer != "have" && answer != "create" {
			return validationError("Please reply 'have' if you have a number, or 'create' if you need one.")
		}
	}
	return nil
}

func (f *VoiceFlow) Execute(ctx context.Context, tenantID string, answers Answers) (string, error) {
	hasNumber := strings.ToLower(strings.TrimSpace(answers[0])) == "have"
	greeting := strings.TrimSpace(answers[1])

	if f.provisioner != nil {
		if err := f.provisioner.ProvisionVoice(ctx, tenantID, greeting, hasNumber); err != nil {
			return "", fmt.Errorf("failed to provision voice channel: %w", err)
		}
	}

	return "Voice configured! Your number will be ready in a few minutes.", nil
}
