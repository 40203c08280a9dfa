// Package session implements the per-customer conversation state machine on
// top of a TTL key-value store.
//
// Sessions are stored as one JSON document per customer under
// "conversation:<customer_id>" and expire after a fixed idle duration. Every
// mutating operation that touches an existing session resets the TTL to the
// full idle-expiry value, so a conversation stays alive only while actively
// used. Callers must treat a missing session as "no active session", never as
// an error.
//
// Concurrent updates to the same customer's session are not mutually
// excluded: the load-modify-store cycle admits a last-writer-wins race.
package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/spurbey/smart-whatsapping/internal/kvstore"
	"github.com/spurbey/smart-whatsapping/internal/models"
	"github.com/spurbey/smart-whatsapping/internal/util"
)

// DefaultSessionTimeout is the idle expiry applied to sessions, in seconds.
const DefaultSessionTimeout = 1800

// keyPrefix namespaces session documents in the key-value store.
const keyPrefix = "conversation:"

// StepFlowStarted is the transitional step set by StartFlow before a flow
// engine advances to its first real step.
const StepFlowStarted = "flow_started"

// allowedUpdatePaths is the validated allow-list for dotted-path updates.
// collected_data.* is handled separately since its keys are flow-defined.
var allowedUpdatePaths = map[string]bool{
	"current_flow":                   true,
	"current_step":                   true,
	"collected_data":                 true,
	"flow_history":                   true,
	"metadata.message_count":         true,
	"metadata.total_flows_started":   true,
	"metadata.total_flows_completed": true,
}

// Manager is the conversation state machine. All operations degrade to
// false/nil when the backing store is unavailable.
type Manager struct {
	kv      kvstore.KeyValue
	timeout int // idle expiry in seconds
}

// NewManager creates a session manager with the given idle timeout in
// seconds. Non-positive timeouts fall back to DefaultSessionTimeout.
func NewManager(kv kvstore.KeyValue, timeoutSeconds int) *Manager {
	if timeoutSeconds <= 0 {
		timeoutSeconds = DefaultSessionTimeout
	}
	slog.Debug("Creating session Manager", "timeout_seconds", timeoutSeconds)
	return &Manager{kv: kv, timeout: timeoutSeconds}
}

// Key returns the store key for a customer's session.
func (m *Manager) Key(customerID string) string {
	return keyPrefix + customerID
}

// CreateSession creates a fresh session for the customer, unconditionally
// overwriting any prior session, and returns the new state.
func (m *Manager) CreateSession(ctx context.Context, customerID string) *models.SessionState {
	now := time.Now().UTC().Format(time.RFC3339)
	state := map[string]interface{}{
		"customer_id":    customerID,
		"session_id":     util.GenerateSessionID(),
		"current_flow":   nil,
		"current_step":   nil,
		"collected_data": map[string]interface{}{},
		"flow_history":   []interface{}{},
		"metadata": map[string]interface{}{
			"created_at":            now,
			"last_activity":         now,
			"message_count":         0,
			"total_flows_started":   0,
			"total_flows_completed": 0,
		},
	}

	if !m.kv.SetData(ctx, m.Key(customerID), state, m.timeout) {
		slog.Error("Session CreateSession store write failed", "customerID", customerID)
		return nil
	}
	slog.Info("Session created", "customerID", customerID, "sessionID", state["session_id"])
	return decodeState(state)
}

// GetState returns the customer's current session, or nil when none exists
// or the TTL has lapsed. On a hit it touches last_activity and re-persists
// with the TTL reset to its full value (sliding-window expiry).
func (m *Manager) GetState(ctx context.Context, customerID string) *models.SessionState {
	key := m.Key(customerID)
	raw := m.kv.GetData(ctx, key)
	if raw == nil {
		slog.Debug("Session GetState miss", "customerID", customerID)
		return nil
	}

	touchLastActivity(raw)
	if !m.kv.SetData(ctx, key, raw, m.timeout) {
		slog.Error("Session GetState TTL refresh failed", "customerID", customerID)
	}
	slog.Debug("Session GetState hit", "customerID", customerID)
	return decodeState(raw)
}

// UpdateState applies dotted-path updates to an existing session and
// re-persists it with the TTL reset. Returns false when no session exists or
// any path is outside the allow-list; a rejected batch writes nothing.
func (m *Manager) UpdateState(ctx context.Context, customerID string, updates map[string]interface{}) bool {
	key := m.Key(customerID)
	raw := m.kv.GetData(ctx, key)
	if raw == nil {
		slog.Warn("Session UpdateState no active session", "customerID", customerID)
		return false
	}

	for path := range updates {
		if !pathAllowed(path) {
			slog.Warn("Session UpdateState rejected path", "customerID", customerID, "path", path)
			return false
		}
	}

	for path, value := range updates {
		applyPath(raw, path, value)
	}
	touchLastActivity(raw)

	if !m.kv.SetData(ctx, key, raw, m.timeout) {
		slog.Error("Session UpdateState store write failed", "customerID", customerID)
		return false
	}
	slog.Debug("Session UpdateState succeeded", "customerID", customerID, "fields", len(updates))
	return true
}

// StartFlow begins a named flow for the customer, creating a session first
// when none exists. Collected data is cleared and the flows-started counter
// incremented.
func (m *Manager) StartFlow(ctx context.Context, customerID, flowName string) bool {
	state := m.GetState(ctx, customerID)
	started := 1
	if state != nil {
		started = state.Metadata.TotalFlowsStarted + 1
	} else if m.CreateSession(ctx, customerID) == nil {
		return false
	}

	ok := m.UpdateState(ctx, customerID, map[string]interface{}{
		"current_flow":                 flowName,
		"current_step":                 StepFlowStarted,
		"collected_data":               map[string]interface{}{},
		"metadata.total_flows_started": started,
	})
	if ok {
		slog.Info("Session flow started", "customerID", customerID, "flow", flowName)
	}
	return ok
}

// CompleteFlow appends the active flow to the session's history with the
// given outcome and clears the flow slot. The session itself stays alive so
// the customer can start a new flow on their next message. Returns false
// when no flow is active.
func (m *Manager) CompleteFlow(ctx context.Context, customerID, outcome string) bool {
	state := m.GetState(ctx, customerID)
	if state == nil || state.CurrentFlow == "" {
		slog.Warn("Session CompleteFlow no active flow", "customerID", customerID)
		return false
	}

	record := models.FlowRecord{
		Flow:          state.CurrentFlow,
		Outcome:       outcome,
		CompletedAt:   time.Now().UTC().Format(time.RFC3339),
		DataCollected: state.CollectedData,
	}
	history := append(state.FlowHistory, record)

	ok := m.UpdateState(ctx, customerID, map[string]interface{}{
		"current_flow":                   nil,
		"current_step":                   nil,
		"collected_data":                 map[string]interface{}{},
		"flow_history":                   encodeHistory(history),
		"metadata.total_flows_completed": state.Metadata.TotalFlowsCompleted + 1,
	})
	if ok {
		slog.Info("Session flow completed", "customerID", customerID, "flow", record.Flow, "outcome", outcome)
	}
	return ok
}

// ClearSession deletes the session outright.
func (m *Manager) ClearSession(ctx context.Context, customerID string) bool {
	ok := m.kv.DeleteData(ctx, m.Key(customerID))
	if ok {
		slog.Info("Session cleared", "customerID", customerID)
	}
	return ok
}

// HasActiveSession reports whether a live session exists. Unlike GetState it
// does not refresh the TTL.
func (m *Manager) HasActiveSession(ctx context.Context, customerID string) bool {
	return m.kv.GetTTL(ctx, m.Key(customerID)) != kvstore.TTLMissing
}

// GetOrCreateState returns the existing session or creates a new one.
func (m *Manager) GetOrCreateState(ctx context.Context, customerID string) *models.SessionState {
	if state := m.GetState(ctx, customerID); state != nil {
		return state
	}
	return m.CreateSession(ctx, customerID)
}

// IncrementMessageCount bumps the session's message counter if a session
// exists; a missing session is not an error.
func (m *Manager) IncrementMessageCount(ctx context.Context, customerID string) {
	state := m.GetState(ctx, customerID)
	if state == nil {
		return
	}
	m.UpdateState(ctx, customerID, map[string]interface{}{
		"metadata.message_count": state.Metadata.MessageCount + 1,
	})
}

func pathAllowed(path string) bool {
	if allowedUpdatePaths[path] {
		return true
	}
	return strings.HasPrefix(path, "collected_data.")
}

// applyPath sets value at a dotted path, creating intermediate maps as
// needed. Paths are pre-validated by pathAllowed so nesting is at most one
// level deep.
func applyPath(doc map[string]interface{}, path string, value interface{}) {
	parts := strings.Split(path, ".")
	target := doc
	for _, part := range parts[:len(parts)-1] {
		next, ok := target[part].(map[string]interface{})
		if !ok {
			next = map[string]interface{}{}
			target[part] = next
		}
		target = next
	}
	target[parts[len(parts)-1]] = value
}

func touchLastActivity(doc map[string]interface{}) {
	meta, ok := doc["metadata"].(map[string]interface{})
	if !ok {
		meta = map[string]interface{}{}
		doc["metadata"] = meta
	}
	meta["last_activity"] = time.Now().UTC().Format(time.RFC3339)
}

// decodeState converts the raw store document into the typed session state.
func decodeState(raw map[string]interface{}) *models.SessionState {
	payload, err := json.Marshal(raw)
	if err != nil {
		slog.Error("Session decodeState marshal failed", "error", err)
		return nil
	}
	var state models.SessionState
	if err := json.Unmarshal(payload, &state); err != nil {
		slog.Error("Session decodeState unmarshal failed", "error", err)
		return nil
	}
	if state.CollectedData == nil {
		state.CollectedData = map[string]interface{}{}
	}
	return &state
}

// encodeHistory converts typed flow records back to the store's generic
// document shape.
func encodeHistory(history []models.FlowRecord) []interface{} {
	out := make([]interface{}, 0, len(history))
	for _, r := range history {
		data := r.DataCollected
		if data == nil {
			data = map[string]interface{}{}
		}
		out = append(out, map[string]interface{}{
			"flow":           r.Flow,
			"outcome":        r.Outcome,
			"completed_at":   r.CompletedAt,
			"data_collected": data,
		})
	}
	return out
}
