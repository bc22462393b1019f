package archive

import "time"

const recordVersion = "1.0"

// Record is the JSON document written for one resolved conversation.
type Record struct {
	Version        string    `json:"version"`
	ConversationID string    `json:"conversation_id"`
	OperatorID     string    `json:"operator_id"`
	SessionID      string    `json:"session_id"`
	Status         string    `json:"status"`
	HandoffState   string    `json:"handoff_state,omitempty"`
	AgentRequested bool      `json:"agent_requested"`
	EmailHash      string    `json:"email_hash,omitempty"`
	PhoneHash      string    `json:"phone_hash,omitempty"`
	StartedAt      time.Time `json:"started_at"`
	ArchivedAt     time.Time `json:"archived_at"`
	MessageCount   int       `json:"message_count"`
	Messages       []Message `json:"messages"`
}

// Message is a single conversation turn.
type Message struct {
	Seq       int       `json:"seq"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ManifestEntry is one JSONL line in the monthly manifest file.
type ManifestEntry struct {
	ConversationID string `json:"conversation_id"`
	OperatorID     string `json:"operator_id"`
	S3Key          string `json:"s3_key"`
	ArchivedAt     string `json:"archived_at"`
	MessageCount   int    `json:"message_count"`
	AgentRequested bool   `json:"agent_requested"`
}
