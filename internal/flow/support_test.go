package flow

import (
	"context"
	"strings"
	"testing"

	"github.com/spurbey/smart-whatsapping/internal/kvstore"
	"github.com/spurbey/smart-whatsapping/internal/models"
	"github.com/spurbey/smart-whatsapping/internal/session"
)

func newTestSessions() *session.Manager {
	return session.NewManager(kvstore.NewMemoryStore(), session.DefaultSessionTimeout)
}

func TestParseIssueType(t *testing.T) {
	cases := []struct {
		input    string
		expected string
	}{
		{"1", IssueOrder},
		{"order", IssueOrder},
		{"tracking", IssueOrder},
		{"2", IssueProduct},
		{"Product Question", IssueProduct},
		{"3", IssueAccount},
		{"billing", IssueAccount},
		{"4", IssueReturn},
		{"refund", IssueReturn},
		{"banana", ""},
		{"", ""},
	}
	for _, tc := range cases {
		if got := ParseIssueType(tc.input); got != tc.expected {
			t.Errorf("ParseIssueType(%q) = %q, want %q", tc.input, got, tc.expected)
		}
	}
}

func TestSupportFlowOrderIssueResolved(t *testing.T) {
	ctx := context.Background()
	sessions := newTestSessions()
	engine := NewSupportEngine(sessions)

	reply := engine.Start(ctx, "cust-1", "I need help with my order")
	if !strings.Contains(reply, "What type of issue are you having?") {
		t.Fatalf("unexpected start prompt: %q", reply)
	}

	state := sessions.GetState(ctx, "cust-1")
	if state.CurrentFlow != FlowSupport || state.CurrentStep != StepIssueType {
		t.Fatalf("unexpected state after start: flow=%q step=%q", state.CurrentFlow, state.CurrentStep)
	}

	reply = engine.Process(ctx, "cust-1", "1")
	if !strings.Contains(reply, "order issue") {
		t.Errorf("expected order detail prompt, got %q", reply)
	}

	reply = engine.Process(ctx, "cust-1", "My package never arrived, order #1234")
	if !strings.Contains(reply, "email address or phone number") {
		t.Errorf("expected info gathering prompt, got %q", reply)
	}

	// Supplying contact info triggers the automatic solution step.
	reply = engine.Process(ctx, "cust-1", "ana@example.com")
	if !strings.Contains(reply, "Check Order Status") {
		t.Errorf("expected order solution, got %q", reply)
	}
	if !strings.Contains(reply, "Did this help resolve your issue?") {
		t.Errorf("expected confirmation prompt appended, got %q", reply)
	}

	state = sessions.GetState(ctx, "cust-1")
	if state.CurrentStep != StepConfirmation {
		t.Fatalf("expected confirmation step, got %q", state.CurrentStep)
	}
	if state.CollectedData["issue_type"] != IssueOrder {
		t.Errorf("expected collected issue_type, got %v", state.CollectedData)
	}
	if state.CollectedData["problem_details"] != "My package never arrived, order #1234" {
		t.Errorf("expected collected problem details, got %v", state.CollectedData)
	}

	reply = engine.Process(ctx, "cust-1", "yes")
	if !strings.Contains(reply, "glad I could help") {
		t.Errorf("expected resolution reply, got %q", reply)
	}

	state = sessions.GetState(ctx, "cust-1")
	if state.CurrentFlow != "" {
		t.Errorf("flow slot not cleared after resolution: %q", state.CurrentFlow)
	}
	if len(state.FlowHistory) != 1 || state.FlowHistory[0].Outcome != models.FlowOutcomeResolved {
		t.Errorf("unexpected flow history: %+v", state.FlowHistory)
	}
}

func TestSupportFlowProductQuestionSkipsGathering(t *testing.T) {
	ctx := context.Background()
	sessions := newTestSessions()
	engine := NewSupportEngine(sessions)

	engine.Start(ctx, "cust-1", "question")
	engine.Process(ctx, "cust-1", "2")

	// Detail collection jumps straight to the solution for product questions.
	reply := engine.Process(ctx, "cust-1", "Does the speaker support bluetooth 5?")
	if !strings.Contains(reply, "product information") {
		t.Errorf("expected product solution, got %q", reply)
	}
	if state := sessions.GetState(ctx, "cust-1"); state.CurrentStep != StepConfirmation {
		t.Errorf("expected confirmation step, got %q", state.CurrentStep)
	}
}

func TestSupportFlowEscalation(t *testing.T) {
	ctx := context.Background()
	sessions := newTestSessions()
	engine := NewSupportEngine(sessions)

	engine.Start(ctx, "cust-1", "help")
	engine.Process(ctx, "cust-1", "3")
	engine.Process(ctx, "cust-1", "I can't log in")
	engine.Process(ctx, "cust-1", "ana@example.com")

	reply := engine.Process(ctx, "cust-1", "2")
	if !strings.Contains(reply, "escalated") {
		t.Errorf("expected escalation reply, got %q", reply)
	}

	state := sessions.GetState(ctx, "cust-1")
	if len(state.FlowHistory) != 1 || state.FlowHistory[0].Outcome != models.FlowOutcomeEscalated {
		t.Errorf("unexpected flow history: %+v", state.FlowHistory)
	}
}

func TestSupportFlowInvalidInputs(t *testing.T) {
	ctx := context.Background()
	sessions := newTestSessions()
	engine := NewSupportEngine(sessions)

	// No active flow.
	reply := engine.Process(ctx, "cust-1", "hello")
	if !strings.Contains(reply, "don't have an active support session") {
		t.Errorf("expected no-session reply, got %q", reply)
	}

	engine.Start(ctx, "cust-1", "help")

	// Invalid issue selection re-prompts without advancing.
	reply = engine.Process(ctx, "cust-1", "banana")
	if !strings.Contains(reply, "Please select a valid option") {
		t.Errorf("expected re-prompt, got %q", reply)
	}
	if state := sessions.GetState(ctx, "cust-1"); state.CurrentStep != StepIssueType {
		t.Errorf("invalid input advanced the step to %q", state.CurrentStep)
	}

	// Ambiguous confirmation replies re-prompt too.
	engine.Process(ctx, "cust-1", "1")
	engine.Process(ctx, "cust-1", "details")
	engine.Process(ctx, "cust-1", "ana@example.com")
	reply = engine.Process(ctx, "cust-1", "maybe")
	if !strings.Contains(reply, "Please let me know if the solution helped") {
		t.Errorf("expected confirmation re-prompt, got %q", reply)
	}
}
