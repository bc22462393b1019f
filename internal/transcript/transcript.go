// Package transcript is the durable, append-only record of every
// conversation and its messages. It is the source of truth the session
// cache is rebuilt from.
package transcript

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wolfman30/chatdesk/internal/handoff"
)

var (
	// ErrConversationNotFound is returned for unknown conversation ids or
	// session keys.
	ErrConversationNotFound = errors.New("transcript: conversation not found")

	// ErrInvalidStatus is returned when a status outside the closed set is used.
	ErrInvalidStatus = errors.New("transcript: invalid status")

	// ErrInvalidRole is returned when a message role outside the closed set is used.
	ErrInvalidRole = errors.New("transcript: invalid role")
)

// Status is the lifecycle status of a conversation.
type Status string

const (
	StatusNew        Status = "new"
	StatusInProgress Status = "in_progress"
	StatusResolved   Status = "resolved"
	StatusOnHold     Status = "on_hold"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusInProgress, StatusResolved, StatusOnHold:
		return true
	}
	return false
}

// Role is the author of a message.
type Role string

const (
	RoleCustomer  Role = "customer"
	RoleAssistant Role = "assistant"
	RoleOperator  Role = "operator"
	RoleSystem    Role = "system"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleAssistant, RoleOperator, RoleSystem:
		return true
	}
	return false
}

// Contact is the customer contact information collected so far.
type Contact struct {
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	SMSNumber string `json:"sms_number,omitempty"`
}

// ContactUpdate changes only the non-nil fields.
type ContactUpdate struct {
	Email     *string
	Phone     *string
	SMSNumber *string
}

// Empty reports whether the update changes nothing.
func (u ContactUpdate) Empty() bool {
	return u.Email == nil && u.Phone == nil && u.SMSNumber == nil
}

func (u ContactUpdate) apply(c Contact) Contact {
	if u.Email != nil {
		c.Email = *u.Email
	}
	if u.Phone != nil {
		c.Phone = *u.Phone
	}
	if u.SMSNumber != nil {
		c.SMSNumber = *u.SMSNumber
	}
	return c
}

// Conversation is one customer session with an operator.
type Conversation struct {
	ID             uuid.UUID        `json:"id"`
	OperatorID     string           `json:"operator_id"`
	SessionKey     string           `json:"session_key"`
	Status         Status           `json:"status"`
	AgentRequested bool             `json:"agent_requested"`
	Contact        Contact          `json:"contact"`
	Handoff        handoff.Snapshot `json:"handoff"`

	MessageCount          int `json:"message_count"`
	CustomerMessageCount  int `json:"customer_message_count"`
	AssistantMessageCount int `json:"assistant_message_count"`
	OperatorMessageCount  int `json:"operator_message_count"`

	StartedAt             time.Time  `json:"started_at"`
	LastMessageAt         time.Time  `json:"last_message_at"`
	LastOperatorMessageAt *time.Time `json:"last_operator_message_at,omitempty"`
}

// Message is a single immutable entry in a conversation. Seq is the
// zero-based position of the message within its conversation.
type Message struct {
	ID             uuid.UUID `json:"id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	Seq            int       `json:"seq"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// ListFilter narrows ListConversations.
type ListFilter struct {
	Status Status
	Limit  int
}

const defaultListLimit = 100

func (f ListFilter) limit() int {
	if f.Limit <= 0 || f.Limit > 500 {
		return defaultListLimit
	}
	return f.Limit
}

// Store is the durable conversation log.
type Store interface {
	GetOrCreateConversation(ctx context.Context, operatorID, sessionKey string) (*Conversation, error)
	GetConversation(ctx context.Context, id uuid.UUID) (*Conversation, error)
	GetConversationBySession(ctx context.Context, sessionKey string) (*Conversation, error)
	AppendMessage(ctx context.Context, conversationID uuid.UUID, role Role, content string) (*Message, error)
	ListMessages(ctx context.Context, conversationID uuid.UUID) ([]Message, error)
	UpdateContact(ctx context.Context, sessionKey string, update ContactUpdate) error
	SetStatus(ctx context.Context, conversationID uuid.UUID, status Status) error
	MarkAgentRequested(ctx context.Context, sessionKey string) error
	SaveHandoff(ctx context.Context, conversationID uuid.UUID, snap handoff.Snapshot) error
	ListConversations(ctx context.Context, operatorID string, filter ListFilter) ([]Conversation, error)
}

// SessionKey composes the unique key for an operator's client session.
func SessionKey(operatorID, sessionID string) string {
	return fmt.Sprintf("webchat:%s:%s", operatorID, sessionID)
}
