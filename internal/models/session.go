// Package models defines conversation session structures for smart-whatsapping.
package models

// SessionState is the per-customer conversational state held in the
// key-value store. A nil CurrentFlow means the session is idle (no active
// multi-step dialog). The whole object is serialized as one JSON document and
// subject to sliding TTL expiry.
type SessionState struct {
	CustomerID    string                 `json:"customer_id"`
	SessionID     string                 `json:"session_id"`
	CurrentFlow   string                 `json:"current_flow,omitempty"`
	CurrentStep   string                 `json:"current_step,omitempty"`
	CollectedData map[string]interface{} `json:"collected_data"`
	FlowHistory   []FlowRecord           `json:"flow_history"`
	Metadata      SessionMetadata        `json:"metadata"`
}

// FlowRecord captures one completed flow in a session's history.
type FlowRecord struct {
	Flow          string                 `json:"flow"`
	Outcome       string                 `json:"outcome"`
	CompletedAt   string                 `json:"completed_at"`
	DataCollected map[string]interface{} `json:"data_collected"`
}

// SessionMetadata tracks activity counters for a session.
type SessionMetadata struct {
	CreatedAt           string `json:"created_at"`
	LastActivity        string `json:"last_activity"`
	MessageCount        int    `json:"message_count"`
	TotalFlowsStarted   int    `json:"total_flows_started"`
	TotalFlowsCompleted int    `json:"total_flows_completed"`
}

// Flow outcomes recorded in FlowRecord.Outcome.
const (
	FlowOutcomeCompleted = "completed"
	FlowOutcomeResolved  = "resolved"
	FlowOutcomeEscalated = "escalated"
	FlowOutcomeAbandoned = "abandoned"
)
