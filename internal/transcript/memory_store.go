package transcript

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wolfman30/chatdesk/internal/handoff"
)

// MemoryStore keeps conversations in process memory. Reads return copies.
type MemoryStore struct {
	mu        sync.RWMutex
	bySession map[string]uuid.UUID
	convs     map[uuid.UUID]*Conversation
	messages  map[uuid.UUID][]Message
	now       func() time.Time
}

// NewMemoryStore returns an empty in-memory transcript store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		bySession: make(map[string]uuid.UUID),
		convs:     make(map[uuid.UUID]*Conversation),
		messages:  make(map[uuid.UUID][]Message),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func cloneConversation(c *Conversation) *Conversation {
	out := *c
	if c.LastOperatorMessageAt != nil {
		t := *c.LastOperatorMessageAt
		out.LastOperatorMessageAt = &t
	}
	return &out
}

func (s *MemoryStore) GetOrCreateConversation(_ context.Context, operatorID, sessionKey string) (*Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.bySession[sessionKey]; ok {
		return cloneConversation(s.convs[id]), nil
	}
	now := s.now()
	conv := &Conversation{
		ID:            uuid.New(),
		OperatorID:    operatorID,
		SessionKey:    sessionKey,
		Status:        StatusNew,
		Handoff:       handoff.Snapshot{State: handoff.StateNone},
		StartedAt:     now,
		LastMessageAt: now,
	}
	s.bySession[sessionKey] = conv.ID
	s.convs[conv.ID] = conv
	return cloneConversation(conv), nil
}

func (s *MemoryStore) GetConversation(_ context.Context, id uuid.UUID) (*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.convs[id]
	if !ok {
		return nil, ErrConversationNotFound
	}
	return cloneConversation(conv), nil
}

func (s *MemoryStore) GetConversationBySession(_ context.Context, sessionKey string) (*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.bySession[sessionKey]
	if !ok {
		return nil, ErrConversationNotFound
	}
	return cloneConversation(s.convs[id]), nil
}

func (s *MemoryStore) AppendMessage(_ context.Context, conversationID uuid.UUID, role Role, content string) (*Message, error) {
	if !role.Valid() {
		return nil, ErrInvalidRole
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.convs[conversationID]
	if !ok {
		return nil, ErrConversationNotFound
	}
	now := s.now()
	msg := Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		Seq:            conv.MessageCount,
		Role:           role,
		Content:        content,
		CreatedAt:      now,
	}
	s.messages[conversationID] = append(s.messages[conversationID], msg)
	conv.MessageCount++
	conv.LastMessageAt = now
	switch role {
	case RoleCustomer:
		conv.CustomerMessageCount++
	case RoleAssistant:
		conv.AssistantMessageCount++
	case RoleOperator:
		conv.OperatorMessageCount++
		t := now
		conv.LastOperatorMessageAt = &t
	}
	return &msg, nil
}

func (s *MemoryStore) ListMessages(_ context.Context, conversationID uuid.UUID) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.convs[conversationID]; !ok {
		return nil, ErrConversationNotFound
	}
	msgs := s.messages[conversationID]
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (s *MemoryStore) UpdateContact(_ context.Context, sessionKey string, update ContactUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.bySession[sessionKey]
	if !ok {
		return ErrConversationNotFound
	}
	conv := s.convs[id]
	conv.Contact = update.apply(conv.Contact)
	return nil
}

func (s *MemoryStore) SetStatus(_ context.Context, conversationID uuid.UUID, status Status) error {
	if !status.Valid() {
		return ErrInvalidStatus
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.convs[conversationID]
	if !ok {
		return ErrConversationNotFound
	}
	conv.Status = status
	return nil
}

func (s *MemoryStore) MarkAgentRequested(_ context.Context, sessionKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.bySession[sessionKey]
	if !ok {
		return ErrConversationNotFound
	}
	s.convs[id].AgentRequested = true
	return nil
}

func (s *MemoryStore) SaveHandoff(_ context.Context, conversationID uuid.UUID, snap handoff.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.convs[conversationID]
	if !ok {
		return ErrConversationNotFound
	}
	conv.Handoff = snap
	return nil
}

func (s *MemoryStore) ListConversations(_ context.Context, operatorID string, filter ListFilter) ([]Conversation, error) {
	s.mu.RLock()
	var out []Conversation
	for _, conv := range s.convs {
		if conv.OperatorID != operatorID {
			continue
		}
		if filter.Status != "" && conv.Status != filter.Status {
			continue
		}
		out = append(out, *cloneConversation(conv))
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastMessageAt.After(out[j].LastMessageAt)
	})
	if limit := filter.limit(); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
