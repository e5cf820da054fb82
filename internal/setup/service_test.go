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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentdesk/agentdesk/internal/audit"
)

// fakeSessionRepo keeps sessions in memory with the one-open-session
// rule the storage layer enforces
type fakeSessionRepo struct {
	sessions map[string]*Session // keyed by session ID
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[string]*Session)}
}

func (f *fakeSessionRepo) GetOpen(ctx context.Context, tenantID string) (*Session, error) {
	for _, s := range f.sessions {
		if s.TenantID == tenantID && s.CompletedAt == nil {
			copied := *s
			copied.Answers = Answers{}
			for k, v := range s.Answers {
				copied.Answers[k] = v
			}
			return &copied, nil
		}
	}
	return nil, ErrNoOpenSession
}

func (f *fakeSessionRepo) Create(ctx context.Context, session *Session) error {
	copied := *session
	f.sessions[session.ID] = &copied
	return nil
}

func (f *fakeSessionRepo) Update(ctx context.Context, session *Session) error {
	if _, ok := f.sessions[session.ID]; !ok {
		return ErrNoOpenSession
	}
	copied := *session
	f.sessions[session.ID] = &copied
	return nil
}

// scriptedFlow is a minimal two-step flow for orchestrator tests
type scriptedFlow struct {
	name     string
	triggers []string
	executed []Answers
	fail     bool
}

func (f *scriptedFlow) Name() string       { return f.name }
func (f *scriptedFlow) Triggers() []string { return f.triggers }
func (f *scriptedFlow) Steps() []string {
	return []string{"First question?", "Second question?"}
}

func (f *scriptedFlow) Validate(step int, input string) error {
	if step == 0 && input == "bogus" {
		return validationError("Please give a real answer")
	}
	return nil
}

func (f *scriptedFlow) Execute(ctx context.Context, tenantID string, answers Answers) (string, error) {
	f.executed = append(f.executed, answers)
	if f.fail {
		return "", assert.AnError
	}
	return "All done!", nil
}

type nopAudit struct{}

func (nopAudit) Log(ctx context.Context, event audit.Event) {}

func newTestOrchestrator(flows ...Flow) (*Service, *fakeSessionRepo) {
	repo := newFakeSessionRepo()
	return NewService(repo, nopAudit{}, flows...), repo
}

// TestPurpose: Validates the full start-answer-complete lifecycle of a setup session.
// Scope: Unit Test
// Expected: Each valid answer advances one step; the final answer triggers execute and completes the session.
// Test Case ID: SET-01
func TestSetup_Handle_FullFlow(t *testing.T) {
	flow := &scriptedFlow{name: "scripted", triggers: []string{"scripted"}}
	service, repo := newTestOrchestrator(flow)
	ctx := context.Background()

	reply, err := service.Handle(ctx, "tenant-1", "start scripted setup")
	require.NoError(t, err)
	assert.Equal(t, "First question?", reply)

	reply, err = service.Handle(ctx, "tenant-1", "answer one")
	require.NoError(t, err)
	assert.Equal(t, "Second question?", reply)

	reply, err = service.Handle(ctx, "tenant-1", "answer two")
	require.NoError(t, err)
	assert.Equal(t, "All done!", reply)

	require.Len(t, flow.executed, 1)
	assert.Equal(t, Answers{0: "answer one", 1: "answer two"}, flow.executed[0])

	_, err = repo.GetOpen(ctx, "tenant-1")
	assert.ErrorIs(t, err, ErrNoOpenSession)
}

// TestPurpose: Validates that invalid input re-prompts without advancing the session.
// Scope: Unit Test
// Expected: The validator message is returned and the step index does not move.
// Test Case ID: SET-02
func TestSetup_Handle_InvalidInputDoesNotAdvance(t *testing.T) {
	flow := &scriptedFlow{name: "scripted", triggers: []string{"scripted"}}
	service, repo := newTestOrchestrator(flow)
	ctx := context.Background()

	_, err := service.Handle(ctx, "tenant-1", "scripted")
	require.NoError(t, err)

	reply, err := service.Handle(ctx, "tenant-1", "bogus")
	require.NoError(t, err)
	assert.Equal(t, "Please give a real answer", reply)

	session, err := repo.GetOpen(ctx, "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, 0, session.Step)
	assert.Empty(t, session.Answers)

	// A valid answer still works afterwards
	reply, err = service.Handle(ctx, "tenant-1", "real answer")
	require.NoError(t, err)
	assert.Equal(t, "Second question?", reply)
}

// TestPurpose: Validates cancellation semantics at any step.
// Scope: Unit Test
// Expected: "cancel" (any case, any step) completes the session; the next message starts fresh.
// Test Case ID: SET-03
func TestSetup_Handle_CancelCompletesSession(t *testing.T) {
	flow := &scriptedFlow{name: "scripted", triggers: []string{"scripted"}}
	service, repo := newTestOrchestrator(flow)
	ctx := context.Background()

	_, err := service.Handle(ctx, "tenant-1", "scripted")
	require.NoError(t, err)
	_, err = service.Handle(ctx, "tenant-1", "answer one")
	require.NoError(t, err)

	reply, err := service.Handle(ctx, "tenant-1", "  CANCEL  ")
	require.NoError(t, err)
	assert.Equal(t, cancelledMessage, reply)
	assert.Empty(t, flow.executed)

	_, err = repo.GetOpen(ctx, "tenant-1")
	assert.ErrorIs(t, err, ErrNoOpenSession)

	// A fresh message starts a new session at step zero, not a resume
	reply, err = service.Handle(ctx, "tenant-1", "scripted again")
	require.NoError(t, err)
	assert.Equal(t, "First question?", reply)
}

// TestPurpose: Validates recovery when the flow's terminal action fails.
// Scope: Unit Test
// Expected: The session stays open, the next message retries completion
// with the original answers only, and success closes the session.
// Test Case ID: SET-04
func TestSetup_Handle_ExecuteFailureRetriesWithoutStrayAnswers(t *testing.T) {
	flow := &scriptedFlow{name: "scripted", triggers: []string{"scripted"}, fail: true}
	service, repo := newTestOrchestrator(flow)
	ctx := context.Background()

	_, err := service.Handle(ctx, "tenant-1", "scripted")
	require.NoError(t, err)
	_, err = service.Handle(ctx, "tenant-1", "answer one")
	require.NoError(t, err)

	_, err = service.Handle(ctx, "tenant-1", "answer two")
	require.Error(t, err)

	// Session is still open for a retry
	session, err := repo.GetOpen(ctx, "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, 2, session.Step)

	flow.fail = false
	reply, err := service.Handle(ctx, "tenant-1", "try again please")
	require.NoError(t, err)
	assert.Equal(t, "All done!", reply)

	// The retry message was not stored as an answer
	require.Len(t, flow.executed, 2)
	assert.Equal(t, Answers{0: "answer one", 1: "answer two"}, flow.executed[1])

	_, err = repo.GetOpen(ctx, "tenant-1")
	assert.ErrorIs(t, err, ErrNoOpenSession)
}

func TestSetup_Handle_UnknownFlowShowsMenu(t *testing.T) {
	flow := &scriptedFlow{name: "scripted", triggers: []string{"scripted"}}
	service, repo := newTestOrchestrator(flow)
	ctx := context.Background()

	reply, err := service.Handle(ctx, "tenant-1", "do something unrelated")
	require.NoError(t, err)
	assert.Equal(t, "I can help you set up: scripted. Which would you like?", reply)

	// No session is created for a menu response
	_, err = repo.GetOpen(ctx, "tenant-1")
	assert.ErrorIs(t, err, ErrNoOpenSession)
}

func TestSetup_Handle_OnlyOneOpenSession(t *testing.T) {
	first := &scriptedFlow{name: "alpha", triggers: []string{"alpha"}}
	second := &scriptedFlow{name: "beta", triggers: []string{"beta"}}
	service, repo := newTestOrchestrator(first, second)
	ctx := context.Background()

	_, err := service.Handle(ctx, "tenant-1", "alpha")
	require.NoError(t, err)

	// Mentioning another flow mid-session is treated as an answer, not
	// a new flow start
	reply, err := service.Handle(ctx, "tenant-1", "beta")
	require.NoError(t, err)
	assert.Equal(t, "Second question?", reply)

	session, err := repo.GetOpen(ctx, "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, "alpha", session.FlowName)
}

func TestSetup_PersonalityFlow_ValidatesTone(t *testing.T) {
	flow := NewPersonalityFlow(nil)

	assert.NoError(t, flow.Validate(0, "Milo"))
	assert.NoError(t, flow.Validate(1, "friendly"))
	assert.NoError(t, flow.Validate(1, " FORMAL "))

	err := flow.Validate(1, "sarcastic")
	var validation *ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "Please choose: formal, friendly, or brief", validation.Message)
}

func TestSetup_VoiceFlow_ValidatesFirstStep(t *testing.T) {
	flow := NewVoiceFlow(nil)

	assert.NoError(t, flow.Validate(0, "have"))
	assert.NoError(t, flow.Validate(0, "CREATE"))
	assert.Error(t, flow.Validate(0, "maybe"))
	assert.NoError(t, flow.Validate(1, "Hello, you've reached Acme!"))
}
