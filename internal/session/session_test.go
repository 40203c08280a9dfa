package session

import (
	"context"
	"testing"

	"github.com/spurbey/smart-whatsapping/internal/kvstore"
	"github.com/spurbey/smart-whatsapping/internal/models"
)

func newTestManager() *Manager {
	return NewManager(kvstore.NewMemoryStore(), DefaultSessionTimeout)
}

func TestCreateSession(t *testing.T) {
	ctx := context.Background()
	m := newTestManager()

	state := m.CreateSession(ctx, "cust-1")
	if state == nil {
		t.Fatal("CreateSession returned nil")
	}
	if state.CustomerID != "cust-1" {
		t.Errorf("expected customer_id cust-1, got %s", state.CustomerID)
	}
	if state.SessionID == "" {
		t.Error("expected a generated session id")
	}
	if state.CurrentFlow != "" || state.CurrentStep != "" {
		t.Errorf("expected empty flow slot, got flow=%q step=%q", state.CurrentFlow, state.CurrentStep)
	}
	if state.Metadata.MessageCount != 0 || state.Metadata.TotalFlowsStarted != 0 {
		t.Errorf("expected zeroed counters, got %+v", state.Metadata)
	}

	// A second create replaces the session.
	first := state.SessionID
	state = m.CreateSession(ctx, "cust-1")
	if state.SessionID == first {
		t.Error("expected a fresh session id on recreate")
	}
}

func TestGetStateMissing(t *testing.T) {
	m := newTestManager()
	if state := m.GetState(context.Background(), "nobody"); state != nil {
		t.Errorf("expected nil for missing session, got %+v", state)
	}
}

func TestGetStateRefreshesTTL(t *testing.T) {
	ctx := context.Background()
	kv := kvstore.NewMemoryStore()
	m := NewManager(kv, 600)

	m.CreateSession(ctx, "cust-1")
	if state := m.GetState(ctx, "cust-1"); state == nil {
		t.Fatal("expected session back")
	}
	ttl := kv.GetTTL(ctx, m.Key("cust-1"))
	if ttl <= 0 || ttl > 600 {
		t.Errorf("expected TTL in (0, 600] after refresh, got %d", ttl)
	}
}

func TestUpdateState(t *testing.T) {
	ctx := context.Background()
	m := newTestManager()
	m.CreateSession(ctx, "cust-1")

	ok := m.UpdateState(ctx, "cust-1", map[string]interface{}{
		"current_flow":              "support",
		"current_step":              "1_issue_type",
		"collected_data.issue_type": "order_issue",
	})
	if !ok {
		t.Fatal("UpdateState failed")
	}

	state := m.GetState(ctx, "cust-1")
	if state.CurrentFlow != "support" || state.CurrentStep != "1_issue_type" {
		t.Errorf("unexpected flow state: %+v", state)
	}
	if state.CollectedData["issue_type"] != "order_issue" {
		t.Errorf("expected collected issue_type, got %v", state.CollectedData)
	}
}

func TestUpdateStateRejectsUnknownPath(t *testing.T) {
	ctx := context.Background()
	m := newTestManager()
	m.CreateSession(ctx, "cust-1")

	ok := m.UpdateState(ctx, "cust-1", map[string]interface{}{
		"current_flow": "support",
		"customer_id":  "hijacked",
	})
	if ok {
		t.Fatal("expected rejection of non-allow-listed path")
	}

	// The rejected batch must not have written anything.
	state := m.GetState(ctx, "cust-1")
	if state.CurrentFlow != "" {
		t.Errorf("rejected batch partially applied: flow=%q", state.CurrentFlow)
	}
	if state.CustomerID != "cust-1" {
		t.Errorf("customer_id was overwritten to %q", state.CustomerID)
	}
}

func TestUpdateStateNoSession(t *testing.T) {
	m := newTestManager()
	if m.UpdateState(context.Background(), "nobody", map[string]interface{}{"current_flow": "support"}) {
		t.Error("expected false when no session exists")
	}
}

func TestStartFlow(t *testing.T) {
	ctx := context.Background()
	m := newTestManager()

	// StartFlow without a session creates one.
	if !m.StartFlow(ctx, "cust-1", "support") {
		t.Fatal("StartFlow failed")
	}
	state := m.GetState(ctx, "cust-1")
	if state.CurrentFlow != "support" || state.CurrentStep != StepFlowStarted {
		t.Errorf("unexpected state after StartFlow: %+v", state)
	}
	if state.Metadata.TotalFlowsStarted != 1 {
		t.Errorf("expected 1 flow started, got %d", state.Metadata.TotalFlowsStarted)
	}

	// Starting another flow clears collected data and bumps the counter.
	m.UpdateState(ctx, "cust-1", map[string]interface{}{"collected_data.issue_type": "order_issue"})
	if !m.StartFlow(ctx, "cust-1", "support") {
		t.Fatal("second StartFlow failed")
	}
	state = m.GetState(ctx, "cust-1")
	if len(state.CollectedData) != 0 {
		t.Errorf("expected collected data cleared, got %v", state.CollectedData)
	}
	if state.Metadata.TotalFlowsStarted != 2 {
		t.Errorf("expected 2 flows started, got %d", state.Metadata.TotalFlowsStarted)
	}
}

func TestCompleteFlow(t *testing.T) {
	ctx := context.Background()
	m := newTestManager()

	// No active flow yet.
	if m.CompleteFlow(ctx, "cust-1", models.FlowOutcomeResolved) {
		t.Error("expected false with no active flow")
	}

	m.StartFlow(ctx, "cust-1", "support")
	m.UpdateState(ctx, "cust-1", map[string]interface{}{"collected_data.issue_type": "order_issue"})

	if !m.CompleteFlow(ctx, "cust-1", models.FlowOutcomeResolved) {
		t.Fatal("CompleteFlow failed")
	}

	state := m.GetState(ctx, "cust-1")
	if state == nil {
		t.Fatal("session should survive flow completion")
	}
	if state.CurrentFlow != "" || state.CurrentStep != "" {
		t.Errorf("flow slot not cleared: %+v", state)
	}
	if len(state.FlowHistory) != 1 {
		t.Fatalf("expected 1 history record, got %d", len(state.FlowHistory))
	}
	record := state.FlowHistory[0]
	if record.Flow != "support" || record.Outcome != models.FlowOutcomeResolved {
		t.Errorf("unexpected history record: %+v", record)
	}
	if record.DataCollected["issue_type"] != "order_issue" {
		t.Errorf("expected collected data in history, got %v", record.DataCollected)
	}
	if state.Metadata.TotalFlowsCompleted != 1 {
		t.Errorf("expected 1 flow completed, got %d", state.Metadata.TotalFlowsCompleted)
	}
}

func TestClearSessionAndHasActive(t *testing.T) {
	ctx := context.Background()
	m := newTestManager()

	if m.HasActiveSession(ctx, "cust-1") {
		t.Error("expected no active session initially")
	}
	m.CreateSession(ctx, "cust-1")
	if !m.HasActiveSession(ctx, "cust-1") {
		t.Error("expected active session after create")
	}
	if !m.ClearSession(ctx, "cust-1") {
		t.Error("ClearSession failed")
	}
	if m.HasActiveSession(ctx, "cust-1") {
		t.Error("expected no active session after clear")
	}
}

func TestIncrementMessageCount(t *testing.T) {
	ctx := context.Background()
	m := newTestManager()

	// Missing session is a no-op.
	m.IncrementMessageCount(ctx, "cust-1")

	m.CreateSession(ctx, "cust-1")
	m.IncrementMessageCount(ctx, "cust-1")
	m.IncrementMessageCount(ctx, "cust-1")

	state := m.GetState(ctx, "cust-1")
	if state.Metadata.MessageCount != 2 {
		t.Errorf("expected message count 2, got %d", state.Metadata.MessageCount)
	}
}

func TestGetOrCreateState(t *testing.T) {
	ctx := context.Background()
	m := newTestManager()

	state := m.GetOrCreateState(ctx, "cust-1")
	if state == nil {
		t.Fatal("GetOrCreateState returned nil")
	}
	again := m.GetOrCreateState(ctx, "cust-1")
	if again.SessionID != state.SessionID {
		t.Error("expected existing session to be reused")
	}
}
